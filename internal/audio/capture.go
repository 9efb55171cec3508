package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os/exec"
	"sync"
)

// Capture is a live input feeding the graph. Pull returns whatever has
// arrived since the last pull, up to len(dst) samples.
type Capture interface {
	Pull(dst []float64) int
	Close() error
}

// CaptureOpener opens a capture for a device id. "default" means the
// system default input.
type CaptureOpener interface {
	Open(deviceID string) (Capture, error)
}

// FFmpegCaptureOpener records from an input device through an ffmpeg
// subprocess emitting raw signed 16-bit PCM on stdout.
type FFmpegCaptureOpener struct {
	FFmpegPath string
	InputFmt   string // capture backend, e.g. "pulse" or "alsa"
	SampleRate int
	Channels   int
}

func (o *FFmpegCaptureOpener) Open(deviceID string) (Capture, error) {
	path := o.FFmpegPath
	if path == "" {
		path = "ffmpeg"
	}
	inputFmt := o.InputFmt
	if inputFmt == "" {
		inputFmt = "pulse"
	}
	if deviceID == "" {
		deviceID = "default"
	}

	cmd := exec.Command(path,
		"-f", inputFmt,
		"-i", deviceID,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", fmt.Sprint(o.SampleRate),
		"-ac", fmt.Sprint(o.Channels),
		"-loglevel", "error",
		"pipe:1",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("capture pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start capture for %q: %w", deviceID, err)
	}

	// Hold about 200ms; past that the reader overwrites the oldest audio
	// so a stalled graph cannot grow latency without bound.
	capSamples := o.SampleRate * o.Channels / 5
	c := &ffmpegCapture{
		cmd:  cmd,
		ring: make([]float64, 0, capSamples),
		max:  capSamples,
	}
	go c.readLoop(stdout)
	return c, nil
}

type ffmpegCapture struct {
	cmd *exec.Cmd

	mu   sync.Mutex
	ring []float64
	max  int
	done bool
}

func (c *ffmpegCapture) readLoop(r io.Reader) {
	buf := make([]byte, 8192)
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			c.push(buf[:n-n%2])
		}
		if err != nil {
			c.mu.Lock()
			c.done = true
			c.mu.Unlock()
			return
		}
	}
}

func (c *ffmpegCapture) push(raw []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := 0; i+1 < len(raw); i += 2 {
		v := int16(binary.LittleEndian.Uint16(raw[i:]))
		c.ring = append(c.ring, float64(v)/32768)
	}
	if over := len(c.ring) - c.max; over > 0 {
		c.ring = c.ring[over:]
	}
}

func (c *ffmpegCapture) Pull(dst []float64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(dst)
	if len(c.ring) < n {
		n = len(c.ring)
	}
	copy(dst[:n], c.ring[:n])
	c.ring = c.ring[n:]
	return n
}

func (c *ffmpegCapture) Close() error {
	c.mu.Lock()
	done := c.done
	c.done = true
	c.ring = nil
	c.mu.Unlock()

	if c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	if !done {
		_ = c.cmd.Wait()
	}
	return nil
}
