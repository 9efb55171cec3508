// Package audio owns the shared processing graph: one session per process,
// a pull-based node graph (sources, gain stages, convolver, capture taps)
// and a render loop that mixes the destination bus into a sink at a fixed
// frame rate.
package audio

import "time"

const (
	// FrameDuration is the render quantum. 20ms at 44.1kHz stereo is 882
	// frames per channel per pull.
	FrameDuration = 20 * time.Millisecond
)

// Buffer holds decoded PCM, interleaved when stereo.
type Buffer struct {
	Data       []float64
	Channels   int
	SampleRate int
}

// Frames returns the per-channel sample count.
func (b *Buffer) Frames() int {
	if b == nil || b.Channels == 0 {
		return 0
	}
	return len(b.Data) / b.Channels
}

// Duration returns the buffer length in seconds.
func (b *Buffer) Duration() float64 {
	if b == nil || b.SampleRate == 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}
