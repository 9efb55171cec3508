// Package mic manages the two microphone channels of the mixing graph:
// device capture, dry gain staging, and a convolution-reverb send per
// channel, all feeding the shared session destination.
package mic

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/nrks/karago/internal/alert"
	"github.com/nrks/karago/internal/audio"
	"github.com/nrks/karago/internal/player"
	"github.com/nrks/karago/internal/store"
)

var (
	ErrInputUnavailable   = errors.New("mic: input unavailable")
	ErrReverbAssetMissing = errors.New("mic: reverb impulse unavailable")
)

// ImpulseLoader decodes the bundled impulse response to a mono buffer.
// The production loader is audio.DecodeWAVMono.
type ImpulseLoader func(path string) (*audio.Buffer, error)

// Options wires the manager's collaborators.
type Options struct {
	Session     *audio.Session
	Opener      audio.CaptureOpener
	Alerts      alert.Notifier
	Store       *store.Store
	ImpulsePath string
	LoadImpulse ImpulseLoader
}

// Manager owns both channels and the shared, lazily decoded impulse
// response.
type Manager struct {
	mu           sync.Mutex
	dest         *audio.Bus
	opener       audio.CaptureOpener
	alerts       alert.Notifier
	store        *store.Store
	impulsePath  string
	loadImpulse  ImpulseLoader
	frameSamples int
	channelCount int
	impulse      []float64
	channels     [2]*Channel
}

func NewManager(opts Options) *Manager {
	m := &Manager{
		opener:      opts.Opener,
		alerts:      opts.Alerts,
		store:       opts.Store,
		impulsePath: opts.ImpulsePath,
		loadImpulse: opts.LoadImpulse,
	}
	if opts.Session != nil {
		m.dest = opts.Session.Destination()
		m.frameSamples = opts.Session.FrameSamples()
		m.channelCount = opts.Session.Channels()
	} else {
		m.dest = audio.NewBus()
		m.frameSamples = 882 * 2
		m.channelCount = 2
	}
	if m.alerts == nil {
		m.alerts = alert.Discard{}
	}
	if m.loadImpulse == nil {
		m.loadImpulse = audio.DecodeWAVMono
	}
	for i := range m.channels {
		m.channels[i] = &Channel{
			m:          m,
			number:     i + 1,
			deviceID:   "default",
			gain:       audio.NewGainNode(0.5),
			reverbGain: audio.NewGainNode(0.5),
			gainPct:    50,
			reverbPct:  50,
		}
	}
	return m
}

// Channel returns channel 1 or 2.
func (m *Manager) Channel(n int) *Channel {
	return m.channels[n-1]
}

// impulseLocked decodes the impulse response once and reuses it for both
// channels.
func (m *Manager) impulseLocked() ([]float64, error) {
	if m.impulse != nil {
		return m.impulse, nil
	}
	buf, err := m.loadImpulse(m.impulsePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReverbAssetMissing, err)
	}
	m.impulse = buf.Data
	return m.impulse, nil
}

// Channel is one microphone strip. A live capture exists exactly while the
// dry path or the reverb send is enabled; disabling both releases the
// device.
type Channel struct {
	m      *Manager
	number int

	deviceID  string
	enabled   bool
	reverbOn  bool
	gainPct   int
	reverbPct int

	gain       *audio.GainNode
	reverbGain *audio.GainNode
	capture    audio.Capture
	convolver  *audio.ConvolverNode
}

// Enable opens the selected device and routes it dry to the destination.
// On device failure the channel stays disabled and an alert is raised.
func (c *Channel) Enable() error {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if c.enabled {
		return nil
	}
	if err := c.ensureCaptureLocked(); err != nil {
		return err
	}
	c.gain.Input().Attach(c.capture)
	c.gain.Connect(c.m.dest)
	c.enabled = true
	return nil
}

// Disable tears the whole strip down, reverb included — the send cannot
// outlive the microphone it draws from.
func (c *Channel) Disable() {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.disableReverbLocked()
	c.disableDryLocked()
	c.releaseCaptureLocked()
}

// EnableReverb routes the capture through the convolver in parallel with
// the dry path, opening the device first if the dry path is off.
func (c *Channel) EnableReverb() error {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if c.reverbOn {
		return nil
	}
	if err := c.ensureCaptureLocked(); err != nil {
		return err
	}

	ir, err := c.m.impulseLocked()
	if err != nil {
		c.m.alerts.Notify(alert.Alert{
			Severity: alert.SeverityWarning,
			Message:  fmt.Sprintf("Reverb unavailable: %v", err),
		})
		if !c.enabled {
			c.releaseCaptureLocked()
		}
		return err
	}

	if c.convolver == nil {
		conv, err := audio.NewConvolverNode(ir, c.m.frameSamples, c.m.channelCount)
		if err != nil {
			c.m.alerts.Notify(alert.Alert{
				Severity: alert.SeverityWarning,
				Message:  fmt.Sprintf("Reverb unavailable: %v", err),
			})
			if !c.enabled {
				c.releaseCaptureLocked()
			}
			return err
		}
		c.convolver = conv
	}

	c.convolver.Input().Attach(c.capture)
	c.convolver.Connect(c.reverbGain.Input())
	c.reverbGain.Connect(c.m.dest)
	c.reverbOn = true
	return nil
}

// DisableReverb removes only the send; the dry path, if enabled, keeps
// running.
func (c *Channel) DisableReverb() {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.disableReverbLocked()
	if !c.enabled {
		c.releaseCaptureLocked()
	}
}

// SetDevice rebinds the channel to another input. A capture is tied to the
// device it was opened on, so an active strip is fully torn down and
// rebuilt against the new device.
func (c *Channel) SetDevice(deviceID string) error {
	c.m.mu.Lock()
	wasEnabled := c.enabled
	wasReverb := c.reverbOn
	c.disableReverbLocked()
	c.disableDryLocked()
	c.releaseCaptureLocked()
	c.deviceID = deviceID
	c.m.mu.Unlock()

	var err error
	if wasEnabled {
		err = c.Enable()
	}
	if wasReverb {
		if e := c.EnableReverb(); err == nil {
			err = e
		}
	}
	return err
}

// RestoreDefaults disables the strip and resets device and gains.
func (c *Channel) RestoreDefaults() {
	c.Disable()
	c.m.mu.Lock()
	c.deviceID = "default"
	c.gainPct = 50
	c.reverbPct = 50
	c.m.mu.Unlock()
	c.gain.SetGain(0.5)
	c.reverbGain.SetGain(0.5)
}

func (c *Channel) SetGain(percent int) {
	percent = clampPercent(percent)
	c.m.mu.Lock()
	c.gainPct = percent
	c.m.mu.Unlock()
	c.gain.SetGain(float64(percent) / 100)
}

func (c *Channel) SetReverbGain(percent int) {
	percent = clampPercent(percent)
	c.m.mu.Lock()
	c.reverbPct = percent
	c.m.mu.Unlock()
	c.reverbGain.SetGain(float64(percent) / 100)
}

func (c *Channel) Enabled() bool {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.enabled
}

func (c *Channel) ReverbEnabled() bool {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.reverbOn
}

func (c *Channel) DeviceID() string {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.deviceID
}

func (c *Channel) Gain() int {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.gainPct
}

func (c *Channel) ReverbGain() int {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.reverbPct
}

func (c *Channel) ensureCaptureLocked() error {
	if c.capture != nil {
		return nil
	}
	capture, err := c.m.opener.Open(c.deviceID)
	if err != nil {
		c.m.alerts.Notify(alert.Alert{
			Severity: alert.SeverityError,
			Message:  fmt.Sprintf("Microphone %d unavailable: %v", c.number, err),
		})
		return fmt.Errorf("%w: %v", ErrInputUnavailable, err)
	}
	c.capture = capture
	return nil
}

func (c *Channel) disableDryLocked() {
	if !c.enabled {
		return
	}
	c.gain.Disconnect()
	if c.capture != nil {
		c.gain.Input().Detach(c.capture)
	}
	c.enabled = false
}

func (c *Channel) disableReverbLocked() {
	if !c.reverbOn {
		return
	}
	c.reverbGain.Disconnect()
	if c.convolver != nil {
		c.convolver.Disconnect()
		if c.capture != nil {
			c.convolver.Input().Detach(c.capture)
		}
	}
	c.reverbOn = false
}

func (c *Channel) releaseCaptureLocked() {
	if c.capture == nil || c.enabled || c.reverbOn {
		return
	}
	if err := c.capture.Close(); err != nil {
		log.Printf("close capture %d: %v", c.number, err)
	}
	c.capture = nil
}

// SaveStatus merges the device and gain selections into the shared audio
// status document.
func (m *Manager) SaveStatus() {
	if m.store == nil {
		return
	}
	snap := player.LoadSnapshot(m.store)

	m.mu.Lock()
	snap.AudioInput1ID = m.channels[0].deviceID
	snap.AudioInput2ID = m.channels[1].deviceID
	snap.Microphone1Volume = m.channels[0].gainPct
	snap.Microphone2Volume = m.channels[1].gainPct
	snap.Reverb1Volume = m.channels[0].reverbPct
	snap.Reverb2Volume = m.channels[1].reverbPct
	m.mu.Unlock()

	if err := m.store.Set(store.KeyAudioStatus, snap); err != nil {
		log.Printf("save microphone status: %v", err)
	}
}

// Restore applies persisted device and gain selections. Channels come back
// disabled; capture never starts without an explicit enable.
func (m *Manager) Restore() {
	snap := player.LoadSnapshot(m.store)

	m.mu.Lock()
	m.channels[0].deviceID = snap.AudioInput1ID
	m.channels[1].deviceID = snap.AudioInput2ID
	m.mu.Unlock()

	m.channels[0].SetGain(snap.Microphone1Volume)
	m.channels[1].SetGain(snap.Microphone2Volume)
	m.channels[0].SetReverbGain(snap.Reverb1Volume)
	m.channels[1].SetReverbGain(snap.Reverb2Volume)
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
