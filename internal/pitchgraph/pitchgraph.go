// Package pitchgraph prepares precomputed pitch-detection output for
// display: overlapping note events are merged once per song, then filtered
// to a sliding window around the playback position on every tick.
package pitchgraph

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/nrks/karago/internal/fileio"
)

// VisibleWindowSeconds is the lookahead and lookbehind around the playback
// position.
const VisibleWindowSeconds = 5.0

// NoteEvent is one detected pitch segment.
type NoteEvent struct {
	Start     float64 `json:"startTimeSeconds"`
	Duration  float64 `json:"durationSeconds"`
	Pitch     float64 `json:"pitchMidi"`
	Amplitude float64 `json:"amplitude"`
}

func (n NoteEvent) End() float64 { return n.Start + n.Duration }

// Load reads a pitch-contour document produced by the offline extraction
// job.
func Load(fs fileio.FS, path string) ([]NoteEvent, error) {
	raw, err := fs.ReadBinary(path)
	if err != nil {
		return nil, fmt.Errorf("read pitch contour: %w", err)
	}
	var events []NoteEvent
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, fmt.Errorf("parse pitch contour: %w", err)
	}
	return events, nil
}

// Merge sorts events by start time and collapses overlapping ones into
// single segments. A note whose start falls at or before the previous
// segment's end joins it: the merged pitch is that of the longer note, and
// the segment stretches to cover both. The input is not modified.
func Merge(events []NoteEvent) []NoteEvent {
	if len(events) == 0 {
		return nil
	}

	sorted := make([]NoteEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	merged := []NoteEvent{sorted[0]}
	for _, note := range sorted[1:] {
		prev := &merged[len(merged)-1]
		if note.Start > prev.End() {
			merged = append(merged, note)
			continue
		}
		if note.Duration >= prev.Duration {
			prev.Pitch = note.Pitch
			prev.Amplitude = note.Amplitude
		}
		if span := note.End() - prev.Start; span > prev.Duration {
			prev.Duration = span
		}
	}
	return merged
}

// Visible returns the segments inside the sliding display window around
// elapsed. A segment on the lookahead edge counts as visible; one whose
// end sits exactly on the trailing edge has already left the window.
func Visible(segments []NoteEvent, elapsed float64) []NoteEvent {
	var out []NoteEvent
	for _, s := range segments {
		if elapsed+VisibleWindowSeconds >= s.Start && elapsed-VisibleWindowSeconds < s.End() {
			out = append(out, s)
		}
	}
	return out
}

// Graph is the per-song contour state: merged once at load, filtered per
// tick.
type Graph struct {
	segments []NoteEvent
}

// NewGraph loads, merges, and caches the contour for a song. A song with
// no contour document gets an empty graph.
func NewGraph(fs fileio.FS, path string) (*Graph, error) {
	if path == "" || !fs.Exists(path) {
		return &Graph{}, nil
	}
	events, err := Load(fs, path)
	if err != nil {
		return nil, err
	}
	return &Graph{segments: Merge(events)}, nil
}

func (g *Graph) Empty() bool { return g == nil || len(g.segments) == 0 }

func (g *Graph) At(elapsed float64) []NoteEvent {
	if g == nil {
		return nil
	}
	return Visible(g.segments, elapsed)
}
