package audio

import (
	"errors"
	"math"
	"sync"

	"github.com/mjibson/go-dsp/fft"
)

var ErrEmptyImpulse = errors.New("audio: empty impulse response")

// ConvolverNode convolves its input with a mono impulse response using
// FFT overlap-add, one block per render pull. It carries the reverb send
// of each microphone channel. The impulse spectrum is computed once at
// construction; each pull costs a forward and inverse transform per
// channel.
type ConvolverNode struct {
	in  *Bus
	out *Bus

	mu       sync.Mutex
	channels int
	frame    int // frames per pull
	fftSize  int
	irFFT    []complex128
	tail     [][]float64 // per-channel overlap carry
	block    []float64
	scratch  []float64
	inBuf    []float64
}

// NewConvolverNode prepares a convolver for fixed-size pulls of
// frameSamples interleaved samples. The impulse is energy-normalized so
// dense responses do not blow past full scale.
func NewConvolverNode(impulse []float64, frameSamples, channels int) (*ConvolverNode, error) {
	if len(impulse) == 0 {
		return nil, ErrEmptyImpulse
	}
	if channels < 1 {
		channels = 1
	}

	frame := frameSamples / channels
	size := nextPow2(frame + len(impulse) - 1)

	norm := 0.0
	for _, v := range impulse {
		norm += v * v
	}
	scale := 1.0
	if norm > 0 {
		scale = 1 / math.Sqrt(norm)
	}

	padded := make([]float64, size)
	for i, v := range impulse {
		padded[i] = v * scale
	}

	tail := make([][]float64, channels)
	for c := range tail {
		tail[c] = make([]float64, len(impulse)-1)
	}

	return &ConvolverNode{
		in:       NewBus(),
		channels: channels,
		frame:    frame,
		fftSize:  size,
		irFFT:    fft.FFTReal(padded),
		tail:     tail,
		block:    make([]float64, size),
		scratch:  make([]float64, frameSamples),
		inBuf:    make([]float64, frameSamples),
	}, nil
}

func (n *ConvolverNode) Input() *Bus { return n.in }

func (n *ConvolverNode) Connect(dst *Bus) {
	n.mu.Lock()
	prev := n.out
	n.out = dst
	n.mu.Unlock()

	if prev != nil && prev != dst {
		prev.Detach(n)
	}
	if dst != nil {
		dst.Attach(n)
	}
}

func (n *ConvolverNode) Disconnect() {
	n.mu.Lock()
	prev := n.out
	n.out = nil
	n.mu.Unlock()

	if prev != nil {
		prev.Detach(n)
	}
}

func (n *ConvolverNode) Pull(dst []float64) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i := range n.inBuf {
		n.inBuf[i] = 0
	}
	got := n.in.Pull(n.inBuf, n.scratch)
	if got == 0 && n.tailSilentLocked() {
		return 0
	}

	frames := len(dst) / n.channels
	if frames > n.frame {
		frames = n.frame
	}

	for c := 0; c < n.channels; c++ {
		for i := range n.block {
			n.block[i] = 0
		}
		for f := 0; f < frames; f++ {
			n.block[f] = n.inBuf[f*n.channels+c]
		}

		spec := fft.FFTReal(n.block)
		for i := range spec {
			spec[i] *= n.irFFT[i]
		}
		wet := fft.IFFT(spec)

		tail := n.tail[c]
		for f := 0; f < frames; f++ {
			v := real(wet[f])
			if f < len(tail) {
				v += tail[f]
			}
			dst[f*n.channels+c] += v
		}

		// Carry everything past this block into the next one.
		for i := 0; i < len(tail); i++ {
			carry := real(wet[frames+i])
			if frames+i < len(tail) {
				carry += tail[frames+i]
			}
			tail[i] = carry
		}
	}

	return frames * n.channels
}

func (n *ConvolverNode) tailSilentLocked() bool {
	const eps = 1e-7
	for _, tail := range n.tail {
		for _, v := range tail {
			if v > eps || v < -eps {
				return false
			}
		}
	}
	return true
}

func nextPow2(n int) int {
	size := 1
	for size < n {
		size <<= 1
	}
	return size
}
