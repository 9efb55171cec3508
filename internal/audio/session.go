package audio

import (
	"context"
	"log"
	"time"
)

// Session owns the one audio context shared by playback and microphone
// mixing. Everything audible ends up on the destination bus, which the
// render loop drains into the sink once per frame quantum.
type Session struct {
	sampleRate int
	channels   int

	dest *Bus
	sink Sink
}

func NewSession(sampleRate, channels int, sink Sink) *Session {
	if sink == nil {
		sink = NullSink{}
	}
	return &Session{
		sampleRate: sampleRate,
		channels:   channels,
		dest:       NewBus(),
		sink:       sink,
	}
}

func (s *Session) SampleRate() int {
	return s.sampleRate
}

func (s *Session) Channels() int {
	return s.channels
}

// Destination is the output bus. Gain stages connect here; nothing ever
// detaches the destination itself.
func (s *Session) Destination() *Bus {
	return s.dest
}

// FrameSamples is the interleaved sample count per render quantum.
func (s *Session) FrameSamples() int {
	perChannel := s.sampleRate * int(FrameDuration/time.Millisecond) / 1000
	return perChannel * s.channels
}

// Run drives the render loop until ctx is cancelled. The loop stands in
// for the hardware rendering callback: it must never be blocked by UI
// work, so graph mutations happen through the node locks only.
func (s *Session) Run(ctx context.Context) {
	ticker := time.NewTicker(FrameDuration)
	defer ticker.Stop()
	defer s.sink.Close()

	frame := make([]float64, s.FrameSamples())
	scratch := make([]float64, s.FrameSamples())

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s.dest.Pull(frame, scratch)
		if err := s.sink.WriteFrame(frame); err != nil {
			log.Printf("audio sink error: %v", err)
			return
		}
	}
}
