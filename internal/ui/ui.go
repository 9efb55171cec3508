// Package ui is the terminal front end: it translates key presses into
// engine, queue, and microphone calls, renders their state, and persists
// the audio-status snapshot on a debounce.
package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/nrks/karago/internal/alert"
	"github.com/nrks/karago/internal/audio"
	"github.com/nrks/karago/internal/fileio"
	"github.com/nrks/karago/internal/library"
	"github.com/nrks/karago/internal/lyrics"
	"github.com/nrks/karago/internal/mic"
	"github.com/nrks/karago/internal/pitchgraph"
	"github.com/nrks/karago/internal/player"
	"github.com/nrks/karago/internal/songqueue"
)

type view int

const (
	viewPlayer view = iota
	viewQueue
	viewLibrary
	viewMics
)

type (
	msgTick  struct{}
	msgSave  struct{}
	msgAlert alert.Alert
	msgQueue struct{}
)

const (
	tickInterval = 250 * time.Millisecond
	saveDebounce = 500 * time.Millisecond
	alertTTL     = 4 * time.Second
)

// TagReader prefills name and artist for imported songs.
type TagReader interface {
	ReadTags(path string) (audio.Tags, error)
}

// Options carries everything the model drives.
type Options struct {
	Engine  *player.Engine
	Queue   *songqueue.Queue
	Library *library.Library
	Mics    *mic.Manager
	Alerts  *alert.Hub
	FS      fileio.FS
	Devices fileio.DeviceLister
	Tags    TagReader
}

type slider struct {
	Label string
	Value float64
	Min   float64
	Max   float64
	Step  float64
	Unit  string
}

func (s *slider) Inc() { s.Value = clamp(s.Value+s.Step, s.Min, s.Max) }
func (s *slider) Dec() { s.Value = clamp(s.Value-s.Step, s.Min, s.Max) }

func (s *slider) Render(width, focused int, me int) string {
	barW := 24
	pos := 0
	if s.Max > s.Min {
		pos = int(math.Round((s.Value - s.Min) / (s.Max - s.Min) * float64(barW-1)))
		pos = int(clamp(float64(pos), 0, float64(barW-1)))
	}
	bar := strings.Repeat("=", pos) + "|" + strings.Repeat("-", barW-pos-1)
	val := fmt.Sprintf("%.0f%s", s.Value, s.Unit)
	if s.Step < 1 {
		val = fmt.Sprintf("%.2f%s", s.Value, s.Unit)
	}
	line := fmt.Sprintf("%-12s [%s] %7s", s.Label, bar, val)
	if focused == me {
		return focusStyle.Render(line)
	}
	return line
}

// Model is the bubbletea program state.
type Model struct {
	engine  *player.Engine
	queue   *songqueue.Queue
	library *library.Library
	mics    *mic.Manager
	alerts  *alert.Hub
	fs      fileio.FS
	devices fileio.DeviceLister

	view    view
	width   int
	focused int

	volume *slider
	pitch  *slider
	tempo  *slider
	mic1   *slider
	mic2   *slider
	rev1   *slider
	rev2   *slider

	search  textinput.Model
	addPath textinput.Model
	tags    TagReader
	results []library.Song
	cursor  int

	trackedSongID string
	tracker       *lyrics.Tracker
	graph         *pitchgraph.Graph

	lastAlert   alert.Alert
	lastAlertAt time.Time
	pendingSave bool

	queueChanged chan struct{}
}

func New(opts Options) *Model {
	ti := textinput.New()
	ti.Placeholder = "search songs"
	ti.Prompt = "/ "
	ti.CharLimit = 128
	ti.Width = 40

	addTi := textinput.New()
	addTi.Placeholder = "/path/to/song.mp3"
	addTi.Prompt = "add: "
	addTi.CharLimit = 4096
	addTi.Width = 60

	queueChanged := make(chan struct{}, 1)
	opts.Queue.Subscribe(func([]songqueue.Item) {
		select {
		case queueChanged <- struct{}{}:
		default:
		}
	})

	eng := opts.Engine
	return &Model{
		engine:  eng,
		queue:   opts.Queue,
		library: opts.Library,
		mics:    opts.Mics,
		alerts:  opts.Alerts,
		fs:      opts.FS,
		devices: opts.Devices,
		tags:    opts.Tags,

		queueChanged: queueChanged,
		search:  ti,
		addPath: addTi,
		results: opts.Library.All(),
		volume:  &slider{Label: "Volume", Value: float64(eng.Volume()), Min: 0, Max: 100, Step: 5, Unit: "%"},
		pitch:   &slider{Label: "Pitch", Value: eng.Pitch(), Min: player.MinPitch, Max: player.MaxPitch, Step: 0.5},
		tempo:   &slider{Label: "Tempo", Value: eng.Tempo(), Min: 0.9, Max: 1.1, Step: 0.01, Unit: "x"},
		mic1:    &slider{Label: "Mic 1", Value: float64(opts.Mics.Channel(1).Gain()), Min: 0, Max: 100, Step: 5, Unit: "%"},
		mic2:    &slider{Label: "Mic 2", Value: float64(opts.Mics.Channel(2).Gain()), Min: 0, Max: 100, Step: 5, Unit: "%"},
		rev1:    &slider{Label: "Reverb 1", Value: float64(opts.Mics.Channel(1).ReverbGain()), Min: 0, Max: 100, Step: 5, Unit: "%"},
		rev2:    &slider{Label: "Reverb 2", Value: float64(opts.Mics.Channel(2).ReverbGain()), Min: 0, Max: 100, Step: 5, Unit: "%"},
	}
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#88C0D0"))
	sectionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#81A1C1"))
	focusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EBCB8B"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#4C566A"))
	lyricStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A3BE8C"))
	alertStyles  = map[alert.Severity]lipgloss.Style{
		alert.SeverityInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("#88C0D0")),
		alert.SeverityWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("#EBCB8B")),
		alert.SeverityError:   lipgloss.NewStyle().Foreground(lipgloss.Color("#BF616A")),
	}
)

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.waitForAlert(), m.waitForQueue())
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(tickInterval, func(time.Time) tea.Msg { return msgTick{} })
}

func (m *Model) waitForAlert() tea.Cmd {
	ch := m.alerts.Chan()
	return func() tea.Msg { return msgAlert(<-ch) }
}

// waitForQueue wakes the program when another goroutine mutates the queue,
// so auto-advance shows up without waiting for the next tick.
func (m *Model) waitForQueue() tea.Cmd {
	ch := m.queueChanged
	return func() tea.Msg {
		<-ch
		return msgQueue{}
	}
}

// scheduleSave coalesces slider spam into one snapshot write.
func (m *Model) scheduleSave() tea.Cmd {
	if m.pendingSave {
		return nil
	}
	m.pendingSave = true
	return tea.Tick(saveDebounce, func(time.Time) tea.Msg { return msgSave{} })
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case msgTick:
		m.refreshSongContext()
		return m, m.tick()

	case msgSave:
		m.pendingSave = false
		m.engine.SaveStatus()
		m.mics.SaveStatus()
		return m, nil

	case msgAlert:
		m.lastAlert = alert.Alert(msg)
		m.lastAlertAt = time.Now()
		return m, m.waitForAlert()

	case msgQueue:
		if m.view == viewQueue && m.cursor >= m.queue.Len() {
			m.cursor = 0
		}
		return m, m.waitForQueue()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

// refreshSongContext reloads lyrics and pitch contour when the engine
// moves to a different song.
func (m *Model) refreshSongContext() {
	cur := m.engine.Current()
	if cur == nil {
		m.trackedSongID = ""
		m.tracker = nil
		m.graph = nil
		return
	}
	if cur.SongID == m.trackedSongID {
		return
	}
	m.trackedSongID = cur.SongID
	m.tracker = lyrics.NewTracker(m.fs, cur.LyricsPath)
	g, err := pitchgraph.NewGraph(m.fs, cur.GraphPath)
	if err != nil {
		g = &pitchgraph.Graph{}
	}
	m.graph = g
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.view == viewLibrary && m.addPath.Focused() {
		switch msg.String() {
		case "esc":
			m.addPath.Blur()
			m.addPath.SetValue("")
			return m, nil
		case "enter":
			path := strings.TrimSpace(m.addPath.Value())
			m.addPath.Blur()
			m.addPath.SetValue("")
			m.importSong(path)
			return m, nil
		}
		var cmd tea.Cmd
		m.addPath, cmd = m.addPath.Update(msg)
		return m, cmd
	}

	if m.view == viewLibrary && m.search.Focused() {
		switch msg.String() {
		case "esc":
			m.search.Blur()
			return m, nil
		case "enter":
			m.search.Blur()
			m.results = m.library.Search(m.search.Value())
			m.cursor = 0
			return m, nil
		}
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "ctrl+c", "q":
		m.engine.SaveStatus()
		m.mics.SaveStatus()
		return m, tea.Quit
	case "tab":
		m.view = (m.view + 1) % 4
		m.focused = 0
		return m, nil
	case "m":
		m.view = viewMics
		m.focused = 0
		return m, nil
	case " ":
		m.engine.TogglePlay()
		return m, nil
	case "n":
		m.engine.EndSong()
		return m, nil
	case "left":
		m.engine.SkipBackward()
		return m, nil
	case "right":
		m.engine.SkipForward()
		return m, nil
	case "v":
		if err := m.engine.ToggleVocals(); err != nil {
			return m, nil
		}
		return m, m.scheduleSave()
	case "l":
		m.engine.ToggleLyrics()
		return m, nil
	case "g":
		m.engine.ToggleGraph()
		return m, nil
	case ",":
		m.pitch.Dec()
		m.engine.SetPitch(m.pitch.Value)
		return m, m.scheduleSave()
	case ".":
		m.pitch.Inc()
		m.engine.SetPitch(m.pitch.Value)
		return m, m.scheduleSave()
	case "[":
		m.tempo.Dec()
		m.engine.SetTempo(m.tempo.Value)
		return m, m.scheduleSave()
	case "]":
		m.tempo.Inc()
		m.engine.SetTempo(m.tempo.Value)
		return m, m.scheduleSave()
	}

	switch m.view {
	case viewPlayer:
		return m.handlePlayerKey(msg)
	case viewQueue:
		return m.handleQueueKey(msg)
	case viewLibrary:
		return m.handleLibraryKey(msg)
	case viewMics:
		return m.handleMicKey(msg)
	}
	return m, nil
}

func (m *Model) playerSliders() []*slider {
	return []*slider{m.volume, m.pitch, m.tempo}
}

func (m *Model) handlePlayerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sliders := m.playerSliders()
	switch msg.String() {
	case "up":
		if m.focused > 0 {
			m.focused--
		}
	case "down":
		if m.focused < len(sliders)-1 {
			m.focused++
		}
	case "-", "+", "=":
		s := sliders[m.focused]
		if msg.String() == "-" {
			s.Dec()
		} else {
			s.Inc()
		}
		m.applyPlayerSlider(m.focused)
		return m, m.scheduleSave()
	case "0":
		switch m.focused {
		case 1:
			m.engine.ResetPitch()
			m.pitch.Value = 0
		case 0:
			m.engine.Mute()
			m.volume.Value = 0
		case 2:
			m.engine.SetTempo(1)
			m.tempo.Value = 1
		}
		return m, m.scheduleSave()
	}
	return m, nil
}

func (m *Model) applyPlayerSlider(i int) {
	switch i {
	case 0:
		m.engine.SetVolume(int(m.volume.Value))
	case 1:
		m.engine.SetPitch(m.pitch.Value)
	case 2:
		m.engine.SetTempo(m.tempo.Value)
	}
}

func (m *Model) handleQueueKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := m.queue.Len()
	switch msg.String() {
	case "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down":
		if m.cursor < n-1 {
			m.cursor++
		}
	case "d":
		m.queue.RemoveAt(m.cursor)
		if m.cursor >= m.queue.Len() && m.cursor > 0 {
			m.cursor--
		}
	case "u":
		m.queue.MoveUp(m.cursor)
		if m.cursor > 0 {
			m.cursor--
		}
	case "f":
		m.queue.SendToFront(m.cursor)
		m.cursor = 0
	case "s":
		m.queue.Shuffle()
	case "c":
		m.queue.Clear()
		m.cursor = 0
	case "enter":
		item, err := m.queue.TakeAt(m.cursor)
		if err != nil {
			return m, nil
		}
		if m.cursor >= m.queue.Len() && m.cursor > 0 {
			m.cursor--
		}
		go func() {
			if err := m.engine.LoadSong(item.Song, false, true); err == nil {
				m.engine.SaveStatus()
			}
		}()
	}
	return m, nil
}

func (m *Model) handleLibraryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "/":
		m.search.Focus()
		return m, textinput.Blink
	case "a":
		m.addPath.Focus()
		return m, textinput.Blink
	case "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down":
		if m.cursor < len(m.results)-1 {
			m.cursor++
		}
	case "enter":
		if m.cursor < len(m.results) {
			if m.queue.Len() >= m.queue.Cap() {
				m.alerts.Notify(alert.Alert{
					Severity: alert.SeverityWarning,
					Message:  fmt.Sprintf("Queue is full (%d songs)", m.queue.Cap()),
				})
				return m, nil
			}
			m.queue.Enqueue(m.results[m.cursor])
		}
	case "p":
		if m.cursor < len(m.results) {
			song := m.results[m.cursor]
			go func() {
				if err := m.engine.LoadSong(song, false, true); err == nil {
					m.engine.SaveStatus()
				}
			}()
		}
	}
	return m, nil
}

// importSong adds one audio file to the library, prefilled from container
// tags when a reader is available.
func (m *Model) importSong(path string) {
	if path == "" {
		return
	}
	if !m.fs.Exists(path) {
		m.alerts.Notify(alert.Alert{
			Severity: alert.SeverityError,
			Message:  fmt.Sprintf("Audio file not found: %s", path),
		})
		return
	}

	name, artist := "", ""
	if m.tags != nil {
		if tags, err := m.tags.ReadTags(path); err == nil {
			name, artist = tags.Title, tags.Artist
		}
	}
	song := library.NewSong(path, name, artist)
	if err := m.library.Add(song); err != nil {
		m.alerts.Notify(alert.Alert{
			Severity: alert.SeverityError,
			Message:  fmt.Sprintf("Could not save song: %v", err),
		})
		return
	}
	m.results = m.library.Search(m.search.Value())
	m.alerts.Notify(alert.Alert{
		Severity: alert.SeverityInfo,
		Message:  fmt.Sprintf("Added %s", song.SongName),
	})
}

func (m *Model) micSliders() []*slider {
	return []*slider{m.mic1, m.rev1, m.mic2, m.rev2}
}

func (m *Model) handleMicKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sliders := m.micSliders()
	switch msg.String() {
	case "up":
		if m.focused > 0 {
			m.focused--
		}
	case "down":
		if m.focused < len(sliders)-1 {
			m.focused++
		}
	case "-", "+", "=":
		s := sliders[m.focused]
		if msg.String() == "-" {
			s.Dec()
		} else {
			s.Inc()
		}
		m.applyMicSlider(m.focused)
		return m, m.scheduleSave()
	case "1":
		m.toggleMic(1)
	case "2":
		m.toggleMic(2)
	case "3":
		m.toggleReverb(1)
	case "4":
		m.toggleReverb(2)
	case "i":
		m.cycleDevice(1)
	case "o":
		m.cycleDevice(2)
	case "r":
		m.mics.Channel(1).RestoreDefaults()
		m.mics.Channel(2).RestoreDefaults()
		m.mic1.Value, m.mic2.Value = 50, 50
		m.rev1.Value, m.rev2.Value = 50, 50
		return m, m.scheduleSave()
	}
	return m, nil
}

func (m *Model) applyMicSlider(i int) {
	switch i {
	case 0:
		m.mics.Channel(1).SetGain(int(m.mic1.Value))
	case 1:
		m.mics.Channel(1).SetReverbGain(int(m.rev1.Value))
	case 2:
		m.mics.Channel(2).SetGain(int(m.mic2.Value))
	case 3:
		m.mics.Channel(2).SetReverbGain(int(m.rev2.Value))
	}
}

// cycleDevice steps the channel through the enumerated inputs.
func (m *Model) cycleDevice(n int) {
	devices, err := m.devices.ListAudioInputDevices()
	if err != nil || len(devices) == 0 {
		return
	}
	ch := m.mics.Channel(n)
	next := devices[0].ID
	for i, d := range devices {
		if d.ID == ch.DeviceID() {
			next = devices[(i+1)%len(devices)].ID
			break
		}
	}
	_ = ch.SetDevice(next)
}

func (m *Model) toggleMic(n int) {
	ch := m.mics.Channel(n)
	if ch.Enabled() {
		ch.Disable()
		return
	}
	_ = ch.Enable()
}

func (m *Model) toggleReverb(n int) {
	ch := m.mics.Channel(n)
	if ch.ReverbEnabled() {
		ch.DisableReverb()
		return
	}
	_ = ch.EnableReverb()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func formatClock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	s := int(seconds)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

func ordinal(i int) string {
	return humanize.Ordinal(i)
}
