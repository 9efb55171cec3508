package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os/exec"
	"strconv"
)

// Sink receives rendered frames. Implementations own their teardown.
type Sink interface {
	WriteFrame(frame []float64) error
	Close() error
}

// NullSink swallows frames. Used headless and in tests.
type NullSink struct{}

func (NullSink) WriteFrame([]float64) error { return nil }
func (NullSink) Close() error               { return nil }

// FFplaySink pipes s16le PCM into an ffplay child process.
type FFplaySink struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	buf   []byte
}

func NewFFplaySink(ffplayPath string, sampleRate, channels int) (*FFplaySink, error) {
	cmd := exec.Command(ffplayPath,
		"-f", "s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ch_layout", layoutForChannels(channels),
		"-nodisp",
		"-loglevel", "quiet",
		"-i", "pipe:0",
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("creating ffplay stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting ffplay: %w", err)
	}

	return &FFplaySink{cmd: cmd, stdin: stdin}, nil
}

func (s *FFplaySink) WriteFrame(frame []float64) error {
	need := len(frame) * 2
	if cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	buf := s.buf[:need]

	for i, v := range frame {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(clampToInt16(v)))
	}

	if _, err := s.stdin.Write(buf); err != nil {
		return fmt.Errorf("writing to ffplay: %w", err)
	}
	return nil
}

func (s *FFplaySink) Close() error {
	_ = s.stdin.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	return s.cmd.Wait()
}

func clampToInt16(v float64) int16 {
	scaled := v * 32767
	if scaled > 32767 {
		return 32767
	}
	if scaled < -32768 {
		return -32768
	}
	return int16(scaled)
}

func layoutForChannels(channels int) string {
	if channels == 1 {
		return "mono"
	}
	return "stereo"
}
