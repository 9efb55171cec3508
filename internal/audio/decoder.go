package audio

import (
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/go-audio/wav"
)

// Decoder turns an asset path into a PCM buffer at the session's rate.
type Decoder interface {
	Decode(path string) (*Buffer, error)
}

// FFmpegDecoder shells out to ffmpeg for arbitrary container/codec support,
// resampling to the target rate and channel count. WAV files already at the
// target spec are read directly.
type FFmpegDecoder struct {
	FFmpegPath string
	SampleRate int
	Channels   int
}

func (d *FFmpegDecoder) Decode(path string) (*Buffer, error) {
	if strings.HasSuffix(strings.ToLower(path), ".wav") {
		if buf, err := d.decodeWAV(path); err == nil {
			return buf, nil
		}
		// Fall through to ffmpeg: the file may be an unusual WAV variant.
	}

	out, err := exec.Command(d.ffmpeg(),
		"-i", path,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(d.SampleRate),
		"-ac", strconv.Itoa(d.Channels),
		"-loglevel", "error",
		"pipe:1",
	).Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg decode %s: %w", path, err)
	}

	if len(out)%2 != 0 {
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("ffmpeg decode %s: no audio data", path)
	}

	data := make([]float64, len(out)/2)
	for i := range data {
		data[i] = float64(int16(binary.LittleEndian.Uint16(out[i*2:]))) / 32768
	}

	return &Buffer{Data: data, Channels: d.Channels, SampleRate: d.SampleRate}, nil
}

// decodeWAV is the no-subprocess fast path for WAV assets that already
// match the session spec.
func (d *FFmpegDecoder) decodeWAV(path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wav decode %s: %w", path, err)
	}
	if pcm.Format == nil {
		return nil, fmt.Errorf("wav decode %s: missing format", path)
	}
	if pcm.Format.SampleRate != d.SampleRate || pcm.Format.NumChannels != d.Channels {
		return nil, fmt.Errorf("wav %s: %dHz/%dch, needs resample", path, pcm.Format.SampleRate, pcm.Format.NumChannels)
	}

	scale := 1.0
	if dec.BitDepth > 0 {
		scale = 1 / float64(int(1)<<(dec.BitDepth-1))
	}

	data := make([]float64, len(pcm.Data))
	for i, v := range pcm.Data {
		data[i] = float64(v) * scale
	}

	return &Buffer{Data: data, Channels: d.Channels, SampleRate: d.SampleRate}, nil
}

func (d *FFmpegDecoder) ffmpeg() string {
	if d.FFmpegPath != "" {
		return d.FFmpegPath
	}
	return "ffmpeg"
}

// DecodeWAVMono reads a WAV file and downmixes it to one channel,
// regardless of the session spec. Used for the reverb impulse response.
func DecodeWAVMono(path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wav decode %s: %w", path, err)
	}
	if pcm.Format == nil || pcm.Format.NumChannels == 0 {
		return nil, fmt.Errorf("wav decode %s: missing format", path)
	}

	scale := 1.0
	if dec.BitDepth > 0 {
		scale = 1 / float64(int(1)<<(dec.BitDepth-1))
	}

	ch := pcm.Format.NumChannels
	frames := len(pcm.Data) / ch
	data := make([]float64, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		for c := 0; c < ch; c++ {
			sum += float64(pcm.Data[i*ch+c]) * scale
		}
		data[i] = sum / float64(ch)
	}

	return &Buffer{Data: data, Channels: 1, SampleRate: pcm.Format.SampleRate}, nil
}
