package audio

import "sync"

// Tap is anything that can be pulled for interleaved samples. Pull fills
// dst and returns the number of samples written; a Tap that has nothing to
// contribute returns 0 and must not touch dst.
type Tap interface {
	Pull(dst []float64) int
}

// Bus is a connection point: zero or more upstream taps feeding one
// downstream consumer. Attach and detach are the graph's connect and
// disconnect primitives; both are safe against the render loop.
type Bus struct {
	mu   sync.Mutex
	taps []Tap
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) Attach(t Tap) {
	if t == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, existing := range b.taps {
		if existing == t {
			return
		}
	}
	b.taps = append(b.taps, t)
}

func (b *Bus) Detach(t Tap) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, existing := range b.taps {
		if existing == t {
			b.taps = append(b.taps[:i], b.taps[i+1:]...)
			return
		}
	}
}

func (b *Bus) Attached(t Tap) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, existing := range b.taps {
		if existing == t {
			return true
		}
	}
	return false
}

// Pull mixes every attached tap into dst, summing with clipping deferred to
// the sink. scratch must be at least len(dst).
func (b *Bus) Pull(dst, scratch []float64) int {
	b.mu.Lock()
	taps := make([]Tap, len(b.taps))
	copy(taps, b.taps)
	b.mu.Unlock()

	for i := range dst {
		dst[i] = 0
	}

	written := 0
	for _, t := range taps {
		for i := range scratch {
			scratch[i] = 0
		}
		n := t.Pull(scratch)
		if n > written {
			written = n
		}
		for i := 0; i < n; i++ {
			dst[i] += scratch[i]
		}
	}
	return written
}

// GainNode scales everything attached to its input bus by a scalar gain and
// forwards it to wherever the node itself is connected.
type GainNode struct {
	in *Bus

	mu   sync.Mutex
	gain float64
	out  *Bus
}

func NewGainNode(gain float64) *GainNode {
	return &GainNode{in: NewBus(), gain: gain}
}

// Input is the bus upstream nodes connect to.
func (g *GainNode) Input() *Bus {
	return g.in
}

// Connect attaches this node to a downstream bus, detaching from any
// previous one first.
func (g *GainNode) Connect(dst *Bus) {
	g.mu.Lock()
	prev := g.out
	g.out = dst
	g.mu.Unlock()

	if prev != nil && prev != dst {
		prev.Detach(g)
	}
	if dst != nil {
		dst.Attach(g)
	}
}

// Disconnect detaches the node from its downstream bus. Upstream
// connections into the input bus are untouched.
func (g *GainNode) Disconnect() {
	g.mu.Lock()
	prev := g.out
	g.out = nil
	g.mu.Unlock()

	if prev != nil {
		prev.Detach(g)
	}
}

func (g *GainNode) Connected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.out != nil
}

func (g *GainNode) SetGain(gain float64) {
	if gain < 0 {
		gain = 0
	}
	g.mu.Lock()
	g.gain = gain
	g.mu.Unlock()
}

func (g *GainNode) Gain() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gain
}

func (g *GainNode) Pull(dst []float64) int {
	scratch := make([]float64, len(dst))
	n := g.in.Pull(dst, scratch)

	g.mu.Lock()
	gain := g.gain
	g.mu.Unlock()

	for i := 0; i < n; i++ {
		dst[i] *= gain
	}
	return n
}
