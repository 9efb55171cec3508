// Package player implements the playback engine: a state machine over the
// loaded song, the master gain stage, and the single active
// time-stretch/pitch-shift source feeding it.
package player

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/nrks/karago/internal/alert"
	"github.com/nrks/karago/internal/audio"
	"github.com/nrks/karago/internal/fileio"
	"github.com/nrks/karago/internal/library"
	"github.com/nrks/karago/internal/songqueue"
	"github.com/nrks/karago/internal/store"
)

var (
	ErrFileMissing  = errors.New("player: audio file missing")
	ErrDecodeFailed = errors.New("player: could not decode audio")
)

// Engine parameter bounds. The UI sliders move in a narrower band; these
// are the authoritative clamps.
const (
	MinPitch = -3.5
	MaxPitch = 3.5
	MinTempo = 0.5
	MaxTempo = 2.0

	skipSeconds = 10.0
	// Seeking to exactly zero confuses downstream progress consumers that
	// treat 0 as "not started"; rewinds land just above it.
	seekEpsilon = 0.01
)

// State is the engine's lifecycle position.
type State int

const (
	StateEmpty State = iota
	StateLoading
	StatePaused
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoading:
		return "loading"
	case StatePaused:
		return "paused"
	case StatePlaying:
		return "playing"
	}
	return "unknown"
}

// Source is the playback engine's view of an active audio source. Exactly
// one source is connected to the master gain's input while a song is
// loaded; the previous one is always disconnected before its replacement
// attaches.
type Source interface {
	Connect(dst *audio.Bus)
	Disconnect()
	Close()
	SetPitchSemitones(float64)
	SetTempo(float64)
	SeekFraction(float64)
	Fraction() float64
	Duration() float64
	SetProgressFunc(audio.ProgressFunc)
}

// SourceFactory decodes an asset path into a playable source.
type SourceFactory func(path string) (Source, error)

// NewFFmpegSourceFactory builds the production factory: ffmpeg decode into
// a granular stretch source.
func NewFFmpegSourceFactory(dec *audio.FFmpegDecoder, grainSize int) SourceFactory {
	return func(path string) (Source, error) {
		buf, err := dec.Decode(path)
		if err != nil {
			return nil, err
		}
		return audio.NewStretchSource(buf, grainSize), nil
	}
}

// Options wires the engine's collaborators.
type Options struct {
	Session   *audio.Session
	Queue     *songqueue.Queue
	Store     *store.Store
	FS        fileio.FS
	Alerts    alert.Notifier
	NewSource SourceFactory
	Library   *library.Library
}

// Engine owns playback. All mutating methods are safe for concurrent use;
// progress callbacks from the render loop serialize through the same
// mutex.
type Engine struct {
	dest      *audio.Bus
	gain      *audio.GainNode
	queue     *songqueue.Queue
	store     *store.Store
	fs        fileio.FS
	alerts    alert.Notifier
	newSource SourceFactory
	library   *library.Library

	mu        sync.Mutex
	state     State
	current   *library.Song
	source    Source
	elapsed   float64
	duration  float64
	volume    int
	pitch     float64
	tempo     float64
	vocals    bool
	lyricsOn  bool
	graphOn   bool
	loadGen   uint64
	completed bool
}

func New(opts Options) *Engine {
	e := &Engine{
		queue:     opts.Queue,
		store:     opts.Store,
		fs:        opts.FS,
		alerts:    opts.Alerts,
		newSource: opts.NewSource,
		library:   opts.Library,
		gain:      audio.NewGainNode(0.5),
		volume:    50,
		tempo:     1,
		vocals:    true,
	}
	if opts.Session != nil {
		e.dest = opts.Session.Destination()
	} else {
		e.dest = audio.NewBus()
	}
	if e.alerts == nil {
		e.alerts = alert.Discard{}
	}
	if e.fs == nil {
		e.fs = fileio.OSFS{}
	}
	return e
}

// LoadSong decodes the song's active asset (primary or accompaniment,
// depending on the vocals flag) and swaps it in as the playing source. The
// old source is disconnected and discarded before the new one attaches.
// With preserveOffset the new source resumes at the same fractional
// position, which is what makes mid-song vocals switching seamless. A
// load that is superseded by a newer one before its decode finishes is
// discarded without touching engine state.
func (e *Engine) LoadSong(song library.Song, preserveOffset, playNow bool) error {
	e.mu.Lock()
	path := song.SongPath
	if !e.vocals && song.AccompanimentPath != "" {
		path = song.AccompanimentPath
	}
	resume := 0.0
	if preserveOffset && e.duration > 0 {
		resume = e.elapsed / e.duration
	}
	prevState := e.state
	wasPlaying := e.state == StatePlaying
	e.loadGen++
	gen := e.loadGen
	e.state = StateLoading
	e.mu.Unlock()

	fail := func(err error) error {
		e.mu.Lock()
		if gen == e.loadGen {
			e.state = prevState
		}
		e.mu.Unlock()
		return err
	}

	if !e.fs.Exists(path) {
		e.alerts.Notify(alert.Alert{
			Severity: alert.SeverityError,
			Message:  fmt.Sprintf("Audio file not found: %s", path),
		})
		return fail(fmt.Errorf("%w: %s", ErrFileMissing, path))
	}

	src, err := e.newSource(path)
	if err != nil {
		e.alerts.Notify(alert.Alert{
			Severity: alert.SeverityError,
			Message:  fmt.Sprintf("Could not play %s: %v", song.SongName, err),
		})
		return fail(fmt.Errorf("%w: %v", ErrDecodeFailed, err))
	}

	e.mu.Lock()
	if gen != e.loadGen {
		e.mu.Unlock()
		src.Close()
		return nil
	}

	if old := e.source; old != nil {
		old.Disconnect()
		old.Close()
		e.source = nil
	}

	src.SetPitchSemitones(e.pitch)
	src.SetTempo(e.tempo)
	if resume > 0 {
		src.SeekFraction(resume)
	}
	src.SetProgressFunc(e.progressFunc(gen))
	src.Connect(e.gain.Input())

	e.source = src
	copied := song
	e.current = &copied
	e.duration = src.Duration()
	e.elapsed = resume * e.duration
	e.completed = false

	if playNow || wasPlaying {
		e.state = StatePlaying
		e.gain.Connect(e.dest)
	} else {
		e.state = StatePaused
		e.gain.Disconnect()
	}
	e.mu.Unlock()

	e.SaveStatus()
	return nil
}

func (e *Engine) progressFunc(gen uint64) audio.ProgressFunc {
	return func(elapsed, percent float64) {
		e.mu.Lock()
		if gen != e.loadGen {
			e.mu.Unlock()
			return
		}
		e.elapsed = elapsed
		finished := percent >= 100 && !e.completed
		if finished {
			e.completed = true
		}
		e.mu.Unlock()

		if finished {
			e.EndSong()
		}
	}
}

// Play resumes the loaded song, or starts the next queued one when nothing
// is loaded. With an empty queue and no song this does nothing.
func (e *Engine) Play() {
	e.mu.Lock()
	if e.source != nil {
		e.state = StatePlaying
		e.mu.Unlock()
		e.gain.Connect(e.dest)
		return
	}
	e.mu.Unlock()

	item, err := e.queue.Dequeue()
	if err != nil {
		return
	}
	if err := e.LoadSong(item.Song, false, true); err != nil {
		log.Printf("play next: %v", err)
	}
}

// Pause cuts the gain stage off from the destination without discarding
// the source, so resume picks up exactly where audio stopped.
func (e *Engine) Pause() {
	e.mu.Lock()
	if e.source == nil {
		e.mu.Unlock()
		return
	}
	e.state = StatePaused
	e.mu.Unlock()
	e.gain.Disconnect()
}

// TogglePlay flips between playing and paused.
func (e *Engine) TogglePlay() {
	if e.State() == StatePlaying {
		e.Pause()
	} else {
		e.Play()
	}
}

// Seek moves to targetSeconds, clamped to the song bounds.
func (e *Engine) Seek(targetSeconds float64) {
	e.mu.Lock()
	src := e.source
	dur := e.duration
	if src == nil || dur <= 0 {
		e.mu.Unlock()
		return
	}
	if targetSeconds < 0 {
		targetSeconds = 0
	}
	if targetSeconds > dur {
		targetSeconds = dur
	}
	e.elapsed = targetSeconds
	e.mu.Unlock()

	src.SeekFraction(targetSeconds / dur)
}

func (e *Engine) SkipForward() {
	e.mu.Lock()
	target := e.elapsed + skipSeconds
	e.mu.Unlock()
	e.Seek(target)
}

func (e *Engine) SkipBackward() {
	e.mu.Lock()
	target := e.elapsed - skipSeconds
	e.mu.Unlock()
	if target < seekEpsilon {
		target = seekEpsilon
	}
	e.Seek(target)
}

// SetVolume sets the master gain from an integer percent.
func (e *Engine) SetVolume(percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	e.mu.Lock()
	e.volume = percent
	e.mu.Unlock()
	e.gain.SetGain(float64(percent) / 100)
}

func (e *Engine) Mute() { e.SetVolume(0) }

// SetPitch shifts the source by whole or half semitones, clamped to the
// engine's range.
func (e *Engine) SetPitch(semitones float64) {
	if semitones < MinPitch {
		semitones = MinPitch
	}
	if semitones > MaxPitch {
		semitones = MaxPitch
	}
	e.mu.Lock()
	e.pitch = semitones
	src := e.source
	e.mu.Unlock()
	if src != nil {
		src.SetPitchSemitones(semitones)
	}
}

func (e *Engine) ResetPitch() { e.SetPitch(0) }

func (e *Engine) SetTempo(multiplier float64) {
	if multiplier < MinTempo {
		multiplier = MinTempo
	}
	if multiplier > MaxTempo {
		multiplier = MaxTempo
	}
	e.mu.Lock()
	e.tempo = multiplier
	src := e.source
	e.mu.Unlock()
	if src != nil {
		src.SetTempo(multiplier)
	}
}

// ToggleVocals switches between the primary mix and the accompaniment
// asset, reloading at the same fractional position. Turning vocals off
// requires a processed accompaniment; without one the toggle raises an
// info alert and changes nothing.
func (e *Engine) ToggleVocals() error {
	e.mu.Lock()
	if e.current == nil {
		e.vocals = !e.vocals
		e.mu.Unlock()
		return nil
	}
	turningOff := e.vocals
	if turningOff && e.current.AccompanimentPath == "" {
		e.mu.Unlock()
		e.alerts.Notify(alert.Alert{
			Severity: alert.SeverityInfo,
			Message:  "Song must be processed for vocals to be turned off",
		})
		return nil
	}
	prior := e.vocals
	e.vocals = !e.vocals
	song := *e.current
	e.mu.Unlock()

	if err := e.LoadSong(song, true, false); err != nil {
		e.mu.Lock()
		e.vocals = prior
		e.mu.Unlock()
		return err
	}
	return nil
}

// ToggleLyrics flips the lyrics display. Turning it on for a song whose
// lyrics file is absent raises an info alert and changes nothing.
func (e *Engine) ToggleLyrics() {
	e.mu.Lock()
	turningOn := !e.lyricsOn
	if turningOn && e.current != nil {
		if e.current.LyricsPath == "" || !e.fs.Exists(e.current.LyricsPath) {
			e.mu.Unlock()
			e.alerts.Notify(alert.Alert{
				Severity: alert.SeverityInfo,
				Message:  "Lyrics file not found",
			})
			return
		}
	}
	e.lyricsOn = turningOn
	e.mu.Unlock()
	e.SaveStatus()
}

func (e *Engine) ToggleGraph() {
	e.mu.Lock()
	e.graphOn = !e.graphOn
	e.mu.Unlock()
	e.SaveStatus()
}

// EndSong advances to the next queued song, or tears playback down to the
// empty state when the queue is drained. Vocals come back on for the next
// song; a paused engine stays paused across the advance.
func (e *Engine) EndSong() {
	e.mu.Lock()
	e.vocals = true
	wasPlaying := e.state == StatePlaying
	e.mu.Unlock()

	item, err := e.queue.Dequeue()
	if err == nil {
		if err := e.LoadSong(item.Song, false, wasPlaying); err != nil {
			log.Printf("advance to next song: %v", err)
		}
		return
	}

	e.mu.Lock()
	e.loadGen++
	if e.source != nil {
		e.source.Disconnect()
		e.source.Close()
		e.source = nil
	}
	e.current = nil
	e.elapsed = 0
	e.duration = 0
	e.state = StateEmpty
	e.mu.Unlock()

	e.gain.Disconnect()
	e.SaveStatus()
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Current returns a copy of the loaded song, or nil when empty.
func (e *Engine) Current() *library.Song {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return nil
	}
	copied := *e.current
	return &copied
}

func (e *Engine) Elapsed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.elapsed
}

func (e *Engine) Duration() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.duration
}

func (e *Engine) Volume() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

func (e *Engine) Pitch() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pitch
}

func (e *Engine) Tempo() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tempo
}

func (e *Engine) VocalsEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vocals
}

func (e *Engine) LyricsEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lyricsOn
}

func (e *Engine) GraphEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graphOn
}
