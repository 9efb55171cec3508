package audio

import (
	"math"
	"testing"
)

type constTap struct {
	value float64
	n     int
}

func (t *constTap) Pull(dst []float64) int {
	n := t.n
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		dst[i] = t.value
	}
	return n
}

func TestBusSumsAttachedTaps(t *testing.T) {
	bus := NewBus()
	bus.Attach(&constTap{value: 0.25, n: 4})
	bus.Attach(&constTap{value: 0.5, n: 2})

	dst := make([]float64, 4)
	scratch := make([]float64, 4)
	n := bus.Pull(dst, scratch)

	if n != 4 {
		t.Fatalf("Pull returned %d, want 4", n)
	}
	want := []float64{0.75, 0.75, 0.25, 0.25}
	for i := range want {
		if math.Abs(dst[i]-want[i]) > 1e-12 {
			t.Fatalf("dst[%d] = %v, want %v", i, dst[i], want[i])
		}
	}
}

func TestBusAttachIsIdempotent(t *testing.T) {
	bus := NewBus()
	tap := &constTap{value: 1, n: 2}
	bus.Attach(tap)
	bus.Attach(tap)

	dst := make([]float64, 2)
	bus.Pull(dst, make([]float64, 2))
	if dst[0] != 1 {
		t.Fatalf("double attach doubled the signal: %v", dst[0])
	}

	bus.Detach(tap)
	if bus.Attached(tap) {
		t.Fatal("tap still attached after detach")
	}
}

func TestGainNodeScalesAndRoutes(t *testing.T) {
	g := NewGainNode(0.5)
	g.Input().Attach(&constTap{value: 1, n: 4})

	dest := NewBus()
	g.Connect(dest)
	if !dest.Attached(g) {
		t.Fatal("connect did not attach to destination")
	}

	dst := make([]float64, 4)
	dest.Pull(dst, make([]float64, 4))
	if math.Abs(dst[0]-0.5) > 1e-12 {
		t.Fatalf("gained sample = %v, want 0.5", dst[0])
	}

	other := NewBus()
	g.Connect(other)
	if dest.Attached(g) {
		t.Fatal("connect did not detach from previous destination")
	}
	if !other.Attached(g) {
		t.Fatal("connect did not attach to new destination")
	}

	g.Disconnect()
	if other.Attached(g) || g.Connected() {
		t.Fatal("disconnect left the node attached")
	}
}

func constantBuffer(frames int) *Buffer {
	data := make([]float64, frames)
	for i := range data {
		data[i] = 1
	}
	return &Buffer{Data: data, Channels: 1, SampleRate: 44100}
}

func TestStretchSourceReconstructsConstantSignal(t *testing.T) {
	const grain = 512
	src := NewStretchSource(constantBuffer(8*grain), grain)

	out := make([]float64, 3*grain)
	if n := src.Pull(out); n != len(out) {
		t.Fatalf("Pull returned %d, want %d", n, len(out))
	}

	// Skip the attack of the first grain; past it the overlapped windows
	// sum back to unity.
	for i := grain; i < 2*grain; i++ {
		if math.Abs(out[i]-1) > 0.05 {
			t.Fatalf("out[%d] = %v, want ~1", i, out[i])
		}
	}
}

func TestStretchSourceProgressReachesCompletion(t *testing.T) {
	const grain = 512
	src := NewStretchSource(constantBuffer(4*grain), grain)

	var lastPercent float64
	src.SetProgressFunc(func(elapsed, percent float64) {
		if percent < lastPercent {
			t.Fatalf("percent went backwards: %v -> %v", lastPercent, percent)
		}
		lastPercent = percent
	})

	dst := make([]float64, grain)
	for i := 0; i < 64; i++ {
		if src.Pull(dst) == 0 {
			break
		}
	}
	if lastPercent != 100 {
		t.Fatalf("final percent = %v, want 100", lastPercent)
	}
}

func TestStretchSourceSeekFraction(t *testing.T) {
	src := NewStretchSource(constantBuffer(44100), 1024)
	src.SeekFraction(0.5)
	if f := src.Fraction(); math.Abs(f-0.5) > 1e-9 {
		t.Fatalf("Fraction after seek = %v, want 0.5", f)
	}
	src.SeekFraction(2)
	if f := src.Fraction(); f != 1 {
		t.Fatalf("Fraction after over-seek = %v, want 1", f)
	}
}

func TestStretchSourceTempoChangesOutputLength(t *testing.T) {
	const grain = 512
	frames := 16 * grain
	src := NewStretchSource(constantBuffer(frames), grain)
	src.SetTempo(2)

	dst := make([]float64, grain)
	total := 0
	for i := 0; i < 256; i++ {
		n := src.Pull(dst)
		if n == 0 {
			break
		}
		total += n
	}

	want := frames / 2
	if total < want-grain || total > want+2*grain {
		t.Fatalf("double-tempo output = %d samples, want about %d", total, want)
	}
}

func TestConvolverDelayedDelta(t *testing.T) {
	const frame = 64
	impulse := make([]float64, 3)
	impulse[2] = 1 // pure two-sample delay

	conv, err := NewConvolverNode(impulse, frame, 1)
	if err != nil {
		t.Fatal(err)
	}
	conv.Input().Attach(&constTap{value: 1, n: frame})

	dest := NewBus()
	conv.Connect(dest)

	dst := make([]float64, frame)
	dest.Pull(dst, make([]float64, frame))

	if math.Abs(dst[0]) > 1e-9 || math.Abs(dst[1]) > 1e-9 {
		t.Fatalf("delay line leaked early: %v %v", dst[0], dst[1])
	}
	for i := 2; i < frame; i++ {
		if math.Abs(dst[i]-1) > 1e-6 {
			t.Fatalf("dst[%d] = %v, want 1", i, dst[i])
		}
	}
}

func TestConvolverCarriesTailAcrossBlocks(t *testing.T) {
	const frame = 32
	impulse := make([]float64, 40)
	impulse[39] = 1 // delay longer than one block

	conv, err := NewConvolverNode(impulse, frame, 1)
	if err != nil {
		t.Fatal(err)
	}

	tap := &constTap{value: 1, n: frame}
	conv.Input().Attach(tap)
	dest := NewBus()
	conv.Connect(dest)

	dst := make([]float64, frame)
	scratch := make([]float64, frame)

	dest.Pull(dst, scratch)
	for i, v := range dst {
		if math.Abs(v) > 1e-6 {
			t.Fatalf("block 1 sample %d = %v, want silence", i, v)
		}
	}

	dest.Pull(dst, scratch)
	if math.Abs(dst[7]-1) > 1e-6 {
		t.Fatalf("delayed sample = %v, want 1 at offset 7 of block 2", dst[7])
	}
	if math.Abs(dst[6]) > 1e-6 {
		t.Fatalf("sample before the delay = %v, want 0", dst[6])
	}
}

func TestBufferDuration(t *testing.T) {
	b := &Buffer{Data: make([]float64, 44100*2), Channels: 2, SampleRate: 44100}
	if b.Frames() != 44100 {
		t.Fatalf("Frames = %d, want 44100", b.Frames())
	}
	if b.Duration() != 1 {
		t.Fatalf("Duration = %v, want 1", b.Duration())
	}
}
