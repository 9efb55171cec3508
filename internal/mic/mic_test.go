package mic

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/nrks/karago/internal/alert"
	"github.com/nrks/karago/internal/audio"
	"github.com/nrks/karago/internal/store"
)

type fakeCapture struct {
	device string
	closed bool
}

func (c *fakeCapture) Pull(dst []float64) int { return 0 }
func (c *fakeCapture) Close() error           { c.closed = true; return nil }

type fakeOpener struct {
	opened []*fakeCapture
	fail   bool
}

func (o *fakeOpener) Open(deviceID string) (audio.Capture, error) {
	if o.fail {
		return nil, errors.New("device busy")
	}
	c := &fakeCapture{device: deviceID}
	o.opened = append(o.opened, c)
	return c, nil
}

func testImpulse(calls *int) ImpulseLoader {
	return func(path string) (*audio.Buffer, error) {
		if calls != nil {
			*calls++
		}
		return &audio.Buffer{Data: []float64{1, 0.5}, Channels: 1, SampleRate: 44100}, nil
	}
}

func newTestManager(t *testing.T, opener audio.CaptureOpener, loader ImpulseLoader) (*Manager, *alert.Hub) {
	t.Helper()
	hub := alert.NewHub()
	m := NewManager(Options{
		Opener:      opener,
		Alerts:      hub,
		ImpulsePath: "/assets/impulse.wav",
		LoadImpulse: loader,
	})
	return m, hub
}

func TestEnableRoutesCaptureDry(t *testing.T) {
	opener := &fakeOpener{}
	m, _ := newTestManager(t, opener, testImpulse(nil))
	ch := m.Channel(1)

	if err := ch.Enable(); err != nil {
		t.Fatal(err)
	}
	if !ch.Enabled() {
		t.Fatal("channel should be enabled")
	}
	if len(opener.opened) != 1 || opener.opened[0].device != "default" {
		t.Fatalf("opened = %+v, want one capture on default", opener.opened)
	}
	if !ch.gain.Input().Attached(ch.capture) {
		t.Fatal("capture must feed the channel gain")
	}
	if !m.dest.Attached(ch.gain) {
		t.Fatal("channel gain must feed the destination")
	}
}

func TestEnableFailureLeavesChannelDisabled(t *testing.T) {
	m, hub := newTestManager(t, &fakeOpener{fail: true}, testImpulse(nil))
	ch := m.Channel(1)

	err := ch.Enable()
	if !errors.Is(err, ErrInputUnavailable) {
		t.Fatalf("err = %v, want ErrInputUnavailable", err)
	}
	if ch.Enabled() || ch.capture != nil {
		t.Fatal("channel must stay disabled with no capture")
	}
	a, ok := hub.Next()
	if !ok || a.Severity != alert.SeverityError {
		t.Fatalf("expected error alert, got %+v ok=%v", a, ok)
	}
}

func TestDisableTearsDownReverbToo(t *testing.T) {
	opener := &fakeOpener{}
	m, _ := newTestManager(t, opener, testImpulse(nil))
	ch := m.Channel(1)

	if err := ch.Enable(); err != nil {
		t.Fatal(err)
	}
	if err := ch.EnableReverb(); err != nil {
		t.Fatal(err)
	}

	ch.Disable()

	if ch.Enabled() || ch.ReverbEnabled() {
		t.Fatal("both paths must be off")
	}
	if !opener.opened[0].closed {
		t.Fatal("capture must be released")
	}
	if ch.capture != nil {
		t.Fatal("capture reference must be discarded")
	}
	if m.dest.Attached(ch.gain) || m.dest.Attached(ch.reverbGain) {
		t.Fatal("nothing may remain attached to the destination")
	}
}

func TestReverbAloneHoldsCapture(t *testing.T) {
	opener := &fakeOpener{}
	m, _ := newTestManager(t, opener, testImpulse(nil))
	ch := m.Channel(2)

	if err := ch.EnableReverb(); err != nil {
		t.Fatal(err)
	}
	if ch.Enabled() {
		t.Fatal("dry path should stay off")
	}
	if !ch.ReverbEnabled() || ch.capture == nil {
		t.Fatal("reverb needs a live capture")
	}
	if !m.dest.Attached(ch.reverbGain) {
		t.Fatal("reverb gain must feed the destination")
	}

	ch.DisableReverb()
	if ch.capture != nil || !opener.opened[0].closed {
		t.Fatal("capture must be released once nothing uses it")
	}
}

func TestReverbAssetMissingKeepsDryPath(t *testing.T) {
	opener := &fakeOpener{}
	hub := alert.NewHub()
	m := NewManager(Options{
		Opener:      opener,
		Alerts:      hub,
		ImpulsePath: "/assets/impulse.wav",
		LoadImpulse: func(string) (*audio.Buffer, error) {
			return nil, errors.New("no such file")
		},
	})
	ch := m.Channel(1)

	if err := ch.Enable(); err != nil {
		t.Fatal(err)
	}
	err := ch.EnableReverb()
	if !errors.Is(err, ErrReverbAssetMissing) {
		t.Fatalf("err = %v, want ErrReverbAssetMissing", err)
	}
	if ch.ReverbEnabled() {
		t.Fatal("reverb must stay off")
	}
	if !ch.Enabled() {
		t.Fatal("dry path must be unaffected")
	}
	a, ok := hub.Next()
	if !ok || a.Severity != alert.SeverityWarning {
		t.Fatalf("expected warning alert, got %+v ok=%v", a, ok)
	}
}

func TestImpulseDecodedOnce(t *testing.T) {
	calls := 0
	m, _ := newTestManager(t, &fakeOpener{}, testImpulse(&calls))

	if err := m.Channel(1).EnableReverb(); err != nil {
		t.Fatal(err)
	}
	if err := m.Channel(2).EnableReverb(); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("impulse decoded %d times, want 1", calls)
	}
}

func TestDeviceChangeRebuildsRouting(t *testing.T) {
	opener := &fakeOpener{}
	m, _ := newTestManager(t, opener, testImpulse(nil))
	ch := m.Channel(1)

	if err := ch.Enable(); err != nil {
		t.Fatal(err)
	}
	if err := ch.EnableReverb(); err != nil {
		t.Fatal(err)
	}

	if err := ch.SetDevice("usb-mic"); err != nil {
		t.Fatal(err)
	}

	if !opener.opened[0].closed {
		t.Fatal("old capture must be closed")
	}
	if len(opener.opened) != 2 || opener.opened[1].device != "usb-mic" {
		t.Fatalf("opened = %+v, want a fresh capture on usb-mic", opener.opened)
	}
	if !ch.Enabled() || !ch.ReverbEnabled() {
		t.Fatal("routing must come back in full")
	}
	if !ch.gain.Input().Attached(ch.capture) {
		t.Fatal("new capture must feed the gain")
	}
}

func TestRestoreDefaults(t *testing.T) {
	opener := &fakeOpener{}
	m, _ := newTestManager(t, opener, testImpulse(nil))
	ch := m.Channel(1)

	if err := ch.SetDevice("usb-mic"); err != nil {
		t.Fatal(err)
	}
	ch.SetGain(80)
	ch.SetReverbGain(20)
	if err := ch.Enable(); err != nil {
		t.Fatal(err)
	}

	ch.RestoreDefaults()

	if ch.Enabled() {
		t.Fatal("channel must be disabled")
	}
	if ch.DeviceID() != "default" {
		t.Fatalf("device = %q, want default", ch.DeviceID())
	}
	if ch.Gain() != 50 || ch.ReverbGain() != 50 {
		t.Fatalf("gains = %d/%d, want 50/50", ch.Gain(), ch.ReverbGain())
	}
}

func TestStatusRoundTrip(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "karago.sqlite3"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	m := NewManager(Options{
		Opener:      &fakeOpener{},
		Store:       st,
		LoadImpulse: testImpulse(nil),
	})
	if err := m.Channel(1).SetDevice("usb-mic"); err != nil {
		t.Fatal(err)
	}
	m.Channel(1).SetGain(75)
	m.Channel(2).SetReverbGain(10)
	m.SaveStatus()

	restored := NewManager(Options{
		Opener:      &fakeOpener{},
		Store:       st,
		LoadImpulse: testImpulse(nil),
	})
	restored.Restore()

	if got := restored.Channel(1).DeviceID(); got != "usb-mic" {
		t.Fatalf("device = %q, want usb-mic", got)
	}
	if got := restored.Channel(1).Gain(); got != 75 {
		t.Fatalf("gain = %d, want 75", got)
	}
	if got := restored.Channel(2).ReverbGain(); got != 10 {
		t.Fatalf("reverb gain = %d, want 10", got)
	}
	if restored.Channel(1).Enabled() {
		t.Fatal("restore must not auto-enable capture")
	}
}
