package player

import (
	"log"

	"github.com/nrks/karago/internal/store"
)

// Snapshot is the persisted audio-status document. The engine owns the
// playback fields; the microphone manager owns the device and mic/reverb
// gain fields. Both merge into the same document so a restart restores the
// whole audio state.
type Snapshot struct {
	SongID            string  `json:"songId"`
	CurrentTime       float64 `json:"currentTime"`
	Duration          float64 `json:"duration"`
	Volume            int     `json:"volume"`
	Pitch             float64 `json:"pitch"`
	AudioInput1ID     string  `json:"audioInput1Id"`
	AudioInput2ID     string  `json:"audioInput2Id"`
	Microphone1Volume int     `json:"microphone1Volume"`
	Microphone2Volume int     `json:"microphone2Volume"`
	Reverb1Volume     int     `json:"reverb1Volume"`
	Reverb2Volume     int     `json:"reverb2Volume"`
	VocalsEnabled     bool    `json:"vocalsEnabled"`
	LyricsEnabled     bool    `json:"lyricsEnabled"`
	GraphEnabled      bool    `json:"graphEnabled"`
}

func DefaultSnapshot() Snapshot {
	return Snapshot{
		Volume:            50,
		AudioInput1ID:     "default",
		AudioInput2ID:     "default",
		Microphone1Volume: 50,
		Microphone2Volume: 50,
		Reverb1Volume:     50,
		Reverb2Volume:     50,
		VocalsEnabled:     true,
	}
}

// LoadSnapshot reads the stored audio status, falling back to defaults
// when none has ever been written.
func LoadSnapshot(st *store.Store) Snapshot {
	snap := DefaultSnapshot()
	if st == nil {
		return snap
	}
	if _, err := st.Get(store.KeyAudioStatus, &snap); err != nil {
		log.Printf("read audio status: %v", err)
		return DefaultSnapshot()
	}
	return snap
}

// SaveStatus merges the engine's fields into the stored snapshot, leaving
// the microphone manager's fields as they were.
func (e *Engine) SaveStatus() {
	if e.store == nil {
		return
	}

	snap := LoadSnapshot(e.store)

	e.mu.Lock()
	if e.current != nil {
		snap.SongID = e.current.SongID
	} else {
		snap.SongID = ""
	}
	snap.CurrentTime = e.elapsed
	snap.Duration = e.duration
	snap.Volume = e.volume
	snap.Pitch = e.pitch
	snap.VocalsEnabled = e.vocals
	snap.LyricsEnabled = e.lyricsOn
	snap.GraphEnabled = e.graphOn
	e.mu.Unlock()

	if err := e.store.Set(store.KeyAudioStatus, snap); err != nil {
		log.Printf("save audio status: %v", err)
	}
}

// Restore rebuilds playback from the persisted snapshot: sliders and flags
// first, then the song itself, paused at its saved position. A snapshot
// pointing at a song that has since left the library restores everything
// except the song.
func (e *Engine) Restore() {
	snap := LoadSnapshot(e.store)

	e.SetVolume(snap.Volume)
	e.SetPitch(snap.Pitch)

	e.mu.Lock()
	e.vocals = snap.VocalsEnabled
	e.lyricsOn = snap.LyricsEnabled
	e.graphOn = snap.GraphEnabled
	e.mu.Unlock()

	if snap.SongID == "" || e.library == nil {
		return
	}
	song, ok := e.library.Get(snap.SongID)
	if !ok {
		return
	}
	if err := e.LoadSong(song, false, false); err != nil {
		log.Printf("restore song: %v", err)
		return
	}
	if snap.Duration > 0 && snap.CurrentTime > 0 {
		e.Seek(snap.CurrentTime)
	}
}
