// Package lyrics parses line-timed lyrics documents and resolves the
// current and upcoming line for a playback position.
package lyrics

import (
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/nrks/karago/internal/fileio"
)

var ErrNoTimedLines = errors.New("lyrics: no timed lines")

var (
	timeTagRe   = regexp.MustCompile(`\[(\d{1,3}):(\d{2})(?:[.:](\d{1,3}))?\]`)
	offsetTagRe = regexp.MustCompile(`^\[offset:\s*([+-]?\d+)\s*\]$`)
)

// Line is one timed lyric.
type Line struct {
	Time float64 // seconds from song start
	Text string
}

// Document is a parsed lyrics file, lines sorted by time.
type Document struct {
	Lines []Line
}

// Parse reads an LRC-style document. A line may carry several time tags,
// each yielding the same text; a global [offset:ms] tag shifts every
// timestamp (positive offset shows lines earlier). Metadata tags without a
// time are ignored.
func Parse(text string) (*Document, error) {
	var lines []Line
	offset := 0.0

	for _, raw := range strings.Split(text, "\n") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if m := offsetTagRe.FindStringSubmatch(raw); m != nil {
			ms, err := strconv.Atoi(m[1])
			if err == nil {
				offset = float64(ms) / 1000
			}
			continue
		}

		tags := timeTagRe.FindAllStringSubmatch(raw, -1)
		if len(tags) == 0 {
			continue
		}
		textStart := timeTagRe.FindAllStringIndex(raw, -1)
		content := strings.TrimSpace(raw[textStart[len(textStart)-1][1]:])

		for _, tag := range tags {
			minutes, _ := strconv.Atoi(tag[1])
			seconds, _ := strconv.Atoi(tag[2])
			frac := 0.0
			if tag[3] != "" {
				f, err := strconv.ParseFloat("0."+tag[3], 64)
				if err == nil {
					frac = f
				}
			}
			at := float64(minutes*60+seconds) + frac - offset
			if at < 0 {
				at = 0
			}
			lines = append(lines, Line{Time: at, Text: content})
		}
	}

	if len(lines) == 0 {
		return nil, ErrNoTimedLines
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Time < lines[j].Time })
	return &Document{Lines: lines}, nil
}

// At resolves the line playing at elapsed and the one after it. Before the
// first timestamp both are empty; past the last line next is empty.
func (d *Document) At(elapsed float64) (current, next string) {
	idx := -1
	for i, line := range d.Lines {
		if line.Time <= elapsed {
			idx = i
		} else {
			break
		}
	}
	if idx < 0 {
		if len(d.Lines) > 0 {
			next = d.Lines[0].Text
		}
		return "", next
	}
	current = d.Lines[idx].Text
	if idx+1 < len(d.Lines) {
		next = d.Lines[idx+1].Text
	}
	return current, next
}

// Tracker holds the lyrics state for one loaded song: a parsed document,
// or the explicit absence of one. Absence ("no lyrics for this song") is
// distinct from the lyrics display being switched off.
type Tracker struct {
	doc *Document
}

// NewTracker loads and parses the lyrics at path. A missing path, missing
// file, or unparseable document yields a tracker with no lyrics rather
// than an error; playback does not care.
func NewTracker(fs fileio.FS, path string) *Tracker {
	t := &Tracker{}
	if path == "" || fs == nil || !fs.Exists(path) {
		return t
	}
	text, err := fs.ReadText(path)
	if err != nil {
		return t
	}
	doc, err := Parse(text)
	if err != nil {
		return t
	}
	t.doc = doc
	return t
}

func (t *Tracker) HasLyrics() bool {
	return t != nil && t.doc != nil
}

// Resolve returns the current and next lines for the elapsed time, or
// empty strings when display is disabled or the song has no lyrics.
func (t *Tracker) Resolve(elapsed float64, enabled bool) (current, next string) {
	if !enabled || !t.HasLyrics() {
		return "", ""
	}
	return t.doc.At(elapsed)
}
