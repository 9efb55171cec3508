package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/nrks/karago/internal/pitchgraph"
	"github.com/nrks/karago/internal/player"
)

func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("karago"))
	b.WriteString("  ")
	b.WriteString(dimStyle.Render(m.tabLine()))
	b.WriteString("\n\n")

	switch m.view {
	case viewPlayer:
		b.WriteString(m.playerView())
	case viewQueue:
		b.WriteString(m.queueView())
	case viewLibrary:
		b.WriteString(m.libraryView())
	case viewMics:
		b.WriteString(m.micView())
	}

	b.WriteString("\n")
	b.WriteString(m.alertLine())
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.helpLine()))
	return b.String()
}

func (m *Model) tabLine() string {
	names := []string{"player", "queue", "library", "mics"}
	for i, name := range names {
		if view(i) == m.view {
			names[i] = "[" + name + "]"
		}
	}
	return strings.Join(names, "  ")
}

func (m *Model) playerView() string {
	var b strings.Builder

	cur := m.engine.Current()
	if cur == nil {
		b.WriteString(dimStyle.Render("nothing playing — queue a song and press space"))
		b.WriteString("\n\n")
	} else {
		b.WriteString(sectionStyle.Render(fmt.Sprintf("%s — %s", cur.SongName, cur.Artist)))
		if !m.engine.VocalsEnabled() {
			b.WriteString(dimStyle.Render("  (instrumental)"))
		}
		if m.engine.State() == player.StatePaused {
			b.WriteString(dimStyle.Render("  ⏸"))
		}
		b.WriteString("\n")
		b.WriteString(m.progressBar())
		b.WriteString("\n\n")
	}

	for i, s := range m.playerSliders() {
		b.WriteString(s.Render(m.width, m.focused, i))
		b.WriteString("\n")
	}

	if m.engine.LyricsEnabled() {
		b.WriteString("\n")
		b.WriteString(m.lyricsView())
	}
	if m.engine.GraphEnabled() {
		b.WriteString("\n")
		b.WriteString(m.graphView())
	}
	return b.String()
}

func (m *Model) progressBar() string {
	elapsed := m.engine.Elapsed()
	duration := m.engine.Duration()
	barW := 40
	pos := 0
	if duration > 0 {
		pos = int(elapsed / duration * float64(barW))
		if pos >= barW {
			pos = barW - 1
		}
	}
	bar := strings.Repeat("=", pos) + ">" + strings.Repeat(" ", barW-pos-1)
	return fmt.Sprintf("[%s] %s / %s", bar, formatClock(elapsed), formatClock(duration))
}

func (m *Model) lyricsView() string {
	if m.tracker == nil || !m.tracker.HasLyrics() {
		return dimStyle.Render("no lyrics for this song") + "\n"
	}
	current, next := m.tracker.Resolve(m.engine.Elapsed(), true)
	var b strings.Builder
	b.WriteString(lyricStyle.Render(current))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(next))
	b.WriteString("\n")
	return b.String()
}

// graphView draws the visible pitch segments as rows of dashes, highest
// pitch on top, with the playback position anchored mid-line.
func (m *Model) graphView() string {
	if m.graph == nil || m.graph.Empty() {
		return dimStyle.Render("no pitch contour for this song") + "\n"
	}
	elapsed := m.engine.Elapsed()
	segments := m.graph.At(elapsed)
	if len(segments) == 0 {
		return dimStyle.Render("·") + "\n"
	}

	const width = 60
	window := 2 * pitchgraph.VisibleWindowSeconds
	left := elapsed - pitchgraph.VisibleWindowSeconds

	lo, hi := segments[0].Pitch, segments[0].Pitch
	for _, s := range segments {
		if s.Pitch < lo {
			lo = s.Pitch
		}
		if s.Pitch > hi {
			hi = s.Pitch
		}
	}
	rows := int(hi-lo) + 1
	if rows > 12 {
		rows = 12
	}

	grid := make([][]byte, rows)
	for r := range grid {
		grid[r] = []byte(strings.Repeat(" ", width))
	}
	for _, s := range segments {
		row := 0
		if hi > lo {
			row = int((hi - s.Pitch) / (hi - lo) * float64(rows-1))
		}
		from := int((s.Start - left) / window * width)
		to := int((s.End() - left) / window * width)
		for x := from; x <= to; x++ {
			if x >= 0 && x < width {
				grid[row][x] = '-'
			}
		}
	}
	// playback position marker
	mid := width / 2
	for r := range grid {
		if grid[r][mid] == ' ' {
			grid[r][mid] = '.'
		}
	}

	var b strings.Builder
	for _, row := range grid {
		b.Write(row)
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) queueView() string {
	items := m.queue.All()
	if len(items) == 0 {
		return dimStyle.Render("queue is empty") + "\n"
	}
	var b strings.Builder
	b.WriteString(sectionStyle.Render(fmt.Sprintf("up next (%d/%d)", len(items), m.queue.Cap())))
	b.WriteString("\n")
	for i, item := range items {
		line := fmt.Sprintf("%4s  %s — %s", ordinal(i+1), item.Song.SongName, item.Song.Artist)
		if i == m.cursor {
			line = focusStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) libraryView() string {
	var b strings.Builder
	b.WriteString(m.search.View())
	b.WriteString("\n")
	if m.addPath.Focused() {
		b.WriteString(m.addPath.View())
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if len(m.results) == 0 {
		b.WriteString(dimStyle.Render("no songs found"))
		b.WriteString("\n")
		return b.String()
	}
	for i, song := range m.results {
		line := fmt.Sprintf("%s — %s", song.SongName, song.Artist)
		if song.AccompanimentPath != "" {
			line += dimStyle.Render("  [vocals-off ready]")
		}
		if i == m.cursor {
			line = focusStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) micView() string {
	var b strings.Builder
	sliders := m.micSliders()
	for n := 1; n <= 2; n++ {
		ch := m.mics.Channel(n)
		state := "off"
		if ch.Enabled() {
			state = "on"
		}
		if ch.ReverbEnabled() {
			state += "+reverb"
		}
		b.WriteString(sectionStyle.Render(fmt.Sprintf("microphone %d (%s, %s)", n, ch.DeviceID(), state)))
		b.WriteString("\n")
		b.WriteString(sliders[(n-1)*2].Render(m.width, m.focused, (n-1)*2))
		b.WriteString("\n")
		b.WriteString(sliders[(n-1)*2+1].Render(m.width, m.focused, (n-1)*2+1))
		b.WriteString("\n\n")
	}
	return b.String()
}

func (m *Model) alertLine() string {
	if m.lastAlert.Message == "" || time.Since(m.lastAlertAt) > alertTTL {
		return ""
	}
	return alertStyles[m.lastAlert.Severity].Render(m.lastAlert.Message)
}

func (m *Model) helpLine() string {
	switch m.view {
	case viewQueue:
		return "enter play now · d remove · u up · f front · s shuffle · c clear · tab view · m mics · q quit"
	case viewLibrary:
		return "/ search · a add song · enter queue · p play now · tab view · m mics · q quit"
	case viewMics:
		return "1/2 mic on/off · 3/4 reverb on/off · i/o device · +/- adjust · r defaults · tab view · m mics · q quit"
	}
	return "space play/pause · ←/→ seek 10s · n next · v vocals · l lyrics · g graph · ,/. pitch · [/] tempo · tab view · m mics · q quit"
}
