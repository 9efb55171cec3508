// Package library manages the persistent song collection and its search
// index.
package library

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/nrks/karago/internal/store"
)

var ErrSongNotFound = errors.New("song not found")

// Song is the library record. Queue items hold copies of it, never live
// references, so deleting a song does not touch an existing queue.
type Song struct {
	SongID            string `json:"songId"`
	SongName          string `json:"songName"`
	Artist            string `json:"artist"`
	SongPath          string `json:"songPath"`
	LyricsPath        string `json:"lyricsPath"`
	AccompanimentPath string `json:"accompanimentPath"`
	GraphPath         string `json:"graphPath"`
}

// Library keeps the canonical song list in the document store and a
// lowercase search index in memory.
type Library struct {
	store *store.Store

	mu    sync.Mutex
	songs []Song
	index map[string]string // songId -> normalized "name artist"
}

func New(st *store.Store) (*Library, error) {
	l := &Library{
		store: st,
		index: make(map[string]string),
	}

	var songs []Song
	if _, err := st.Get(store.KeySongs, &songs); err != nil {
		return nil, fmt.Errorf("loading song library: %w", err)
	}
	l.songs = songs
	for _, s := range songs {
		l.index[s.SongID] = searchKey(s)
	}

	return l, nil
}

// NewSong builds a Song from a picked file path. Name and artist may come
// from tag metadata when the caller has it; empty name falls back to the
// file name stem.
func NewSong(songPath, name, artist string) Song {
	if name == "" {
		name = stem(songPath)
	}
	return Song{
		SongID:   uuid.NewString(),
		SongName: name,
		Artist:   artist,
		SongPath: songPath,
	}
}

func (l *Library) Add(song Song) error {
	l.mu.Lock()
	l.songs = append(l.songs, song)
	l.index[song.SongID] = searchKey(song)
	snapshot := l.snapshotLocked()
	l.mu.Unlock()

	return l.persist(snapshot)
}

func (l *Library) AddAll(songs []Song) error {
	l.mu.Lock()
	l.songs = append(l.songs, songs...)
	for _, s := range songs {
		l.index[s.SongID] = searchKey(s)
	}
	snapshot := l.snapshotLocked()
	l.mu.Unlock()

	return l.persist(snapshot)
}

// Update replaces the stored song with the same id.
func (l *Library) Update(song Song) error {
	l.mu.Lock()
	found := false
	for i, s := range l.songs {
		if s.SongID == song.SongID {
			l.songs[i] = song
			found = true
			break
		}
	}
	if !found {
		l.mu.Unlock()
		return ErrSongNotFound
	}
	l.index[song.SongID] = searchKey(song)
	snapshot := l.snapshotLocked()
	l.mu.Unlock()

	return l.persist(snapshot)
}

// Delete removes the song from the store and the search index. It does not
// touch the queue: queued items carry their own copy.
func (l *Library) Delete(songID string) error {
	l.mu.Lock()
	kept := l.songs[:0]
	for _, s := range l.songs {
		if s.SongID != songID {
			kept = append(kept, s)
		}
	}
	l.songs = kept
	delete(l.index, songID)
	snapshot := l.snapshotLocked()
	l.mu.Unlock()

	return l.persist(snapshot)
}

func (l *Library) Get(songID string) (Song, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range l.songs {
		if s.SongID == songID {
			return s, true
		}
	}
	return Song{}, false
}

func (l *Library) All() []Song {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *Library) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.songs)
}

// Search returns songs whose name or artist contains every term of the
// query, best matches first.
func (l *Library) Search(query string) []Song {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return l.All()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	type scored struct {
		song  Song
		score int
	}
	var matches []scored

	for _, s := range l.songs {
		key := l.index[s.SongID]
		score := 0
		ok := true
		for _, term := range terms {
			idx := strings.Index(key, term)
			if idx < 0 {
				ok = false
				break
			}
			// Earlier matches rank higher.
			score += len(key) - idx
		}
		if ok {
			matches = append(matches, scored{song: s, score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})

	out := make([]Song, len(matches))
	for i, m := range matches {
		out[i] = m.song
	}
	return out
}

func (l *Library) snapshotLocked() []Song {
	out := make([]Song, len(l.songs))
	copy(out, l.songs)
	return out
}

func (l *Library) persist(songs []Song) error {
	if l.store == nil {
		return nil
	}
	if err := l.store.Set(store.KeySongs, songs); err != nil {
		return fmt.Errorf("persisting song library: %w", err)
	}
	return nil
}

func searchKey(s Song) string {
	return strings.ToLower(s.SongName + " " + s.Artist)
}

func stem(path string) string {
	base := path
	if i := strings.LastIndexAny(base, "/\\"); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	return base
}
