package audio

import (
	"math"
	"sync"

	"github.com/mjibson/go-dsp/window"
)

// Hard bounds for the source parameters. The UI offers a narrower range;
// these keep a misbehaving caller from driving the resampler off a cliff.
const (
	MinPitchSemitones = -12.0
	MaxPitchSemitones = 12.0
	MinTempo          = 0.25
	MaxTempo          = 4.0
)

// ProgressFunc receives the source's elapsed input time and percentage
// played after every render pull. Percent reaches exactly 100 when the
// buffer is exhausted.
type ProgressFunc func(elapsedSeconds, percentPlayed float64)

// StretchSource plays a decoded buffer through a granular overlap-add
// resynthesis that decouples playback speed from pitch: the grain advance
// rate sets tempo, the intra-grain resampling ratio sets pitch. It is the
// "time-stretch/pitch-shift source" of the playback graph; exactly one is
// connected to the master gain stage at a time.
type StretchSource struct {
	mu sync.Mutex

	buffer *Buffer
	win    []float64
	grain  int
	hop    int

	pos        float64 // input read position, frames
	pitchRatio float64
	tempo      float64

	overlap []float64 // grain accumulation, grain*channels samples
	fifo    []float64 // synthesized output not yet pulled
	ended   bool

	out      *Bus
	progress ProgressFunc
}

func NewStretchSource(buf *Buffer, grainSize int) *StretchSource {
	if grainSize < 256 {
		grainSize = 256
	}
	if grainSize%2 != 0 {
		grainSize++
	}

	return &StretchSource{
		buffer:     buf,
		win:        window.Hann(grainSize),
		grain:      grainSize,
		hop:        grainSize / 2,
		pitchRatio: 1,
		tempo:      1,
		overlap:    make([]float64, grainSize*buf.Channels),
	}
}

func (s *StretchSource) Connect(dst *Bus) {
	s.mu.Lock()
	prev := s.out
	s.out = dst
	s.mu.Unlock()

	if prev != nil && prev != dst {
		prev.Detach(s)
	}
	if dst != nil {
		dst.Attach(s)
	}
}

func (s *StretchSource) Disconnect() {
	s.mu.Lock()
	prev := s.out
	s.out = nil
	s.mu.Unlock()

	if prev != nil {
		prev.Detach(s)
	}
}

// Close disconnects and drops the buffer reference so a discarded source
// cannot keep multi-minute PCM alive.
func (s *StretchSource) Close() {
	s.Disconnect()
	s.mu.Lock()
	s.buffer = nil
	s.fifo = nil
	s.overlap = nil
	s.progress = nil
	s.mu.Unlock()
}

func (s *StretchSource) SetProgressFunc(fn ProgressFunc) {
	s.mu.Lock()
	s.progress = fn
	s.mu.Unlock()
}

func (s *StretchSource) SetPitchSemitones(semitones float64) {
	semitones = clampFloat(semitones, MinPitchSemitones, MaxPitchSemitones)
	s.mu.Lock()
	s.pitchRatio = math.Pow(2, semitones/12)
	s.mu.Unlock()
}

func (s *StretchSource) SetTempo(multiplier float64) {
	multiplier = clampFloat(multiplier, MinTempo, MaxTempo)
	s.mu.Lock()
	s.tempo = multiplier
	s.mu.Unlock()
}

// SeekFraction jumps to the given fractional position and resets the
// synthesis pipeline so no stale grains bleed across the seek.
func (s *StretchSource) SeekFraction(fraction float64) {
	fraction = clampFloat(fraction, 0, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buffer == nil {
		return
	}
	s.pos = fraction * float64(s.buffer.Frames())
	s.fifo = s.fifo[:0]
	for i := range s.overlap {
		s.overlap[i] = 0
	}
	s.ended = fraction >= 1
}

func (s *StretchSource) Fraction() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buffer == nil || s.buffer.Frames() == 0 {
		return 0
	}
	f := s.pos / float64(s.buffer.Frames())
	return clampFloat(f, 0, 1)
}

func (s *StretchSource) Duration() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer.Duration()
}

func (s *StretchSource) Pull(dst []float64) int {
	s.mu.Lock()

	if s.buffer == nil {
		s.mu.Unlock()
		return 0
	}

	for len(s.fifo) < len(dst) && !s.ended {
		s.synthesizeHopLocked()
	}

	n := len(dst)
	if len(s.fifo) < n {
		n = len(s.fifo)
	}
	copy(dst[:n], s.fifo[:n])
	s.fifo = s.fifo[n:]

	elapsed := s.pos / float64(s.buffer.SampleRate)
	percent := 100.0
	if frames := s.buffer.Frames(); frames > 0 {
		percent = 100 * s.pos / float64(frames)
	}
	if percent > 100 || (s.ended && len(s.fifo) == 0) {
		percent = 100
	}
	progress := s.progress
	s.mu.Unlock()

	if progress != nil {
		progress(elapsed, percent)
	}
	return n
}

// synthesizeHopLocked renders one grain into the overlap buffer and moves
// hop frames of finished audio to the fifo. Hann windows at 50% overlap sum
// to unity, so no renormalization pass is needed.
func (s *StretchSource) synthesizeHopLocked() {
	frames := float64(s.buffer.Frames())
	if s.pos >= frames {
		s.ended = true
		return
	}

	ch := s.buffer.Channels
	for k := 0; k < s.grain; k++ {
		srcPos := s.pos + float64(k)*s.pitchRatio
		w := s.win[k]
		for c := 0; c < ch; c++ {
			s.overlap[k*ch+c] += s.sampleAt(srcPos, c) * w
		}
	}

	ready := s.hop * ch
	s.fifo = append(s.fifo, s.overlap[:ready]...)
	copy(s.overlap, s.overlap[ready:])
	for i := len(s.overlap) - ready; i < len(s.overlap); i++ {
		s.overlap[i] = 0
	}

	s.pos += float64(s.hop) * s.tempo
}

// sampleAt linearly interpolates the buffer at a fractional frame position,
// returning silence past either end.
func (s *StretchSource) sampleAt(pos float64, channel int) float64 {
	if pos < 0 {
		return 0
	}
	i := int(pos)
	frames := s.buffer.Frames()
	if i >= frames-1 {
		if i >= frames {
			return 0
		}
		return s.buffer.Data[i*s.buffer.Channels+channel]
	}

	frac := pos - float64(i)
	ch := s.buffer.Channels
	a := s.buffer.Data[i*ch+channel]
	b := s.buffer.Data[(i+1)*ch+channel]
	return a + (b-a)*frac
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
