package config

import (
	"os"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"KARAGO_DATA_DIR", "KARAGO_DB_FILE", "KARAGO_SAMPLE_RATE",
		"KARAGO_CHANNELS", "KARAGO_GRAIN_SIZE", "KARAGO_FFMPEG",
		"KARAGO_FFPLAY", "KARAGO_IMPULSE_PATH", "KARAGO_AUDIO_INPUT_1",
		"KARAGO_AUDIO_INPUT_2", "KARAGO_DEFAULT_VOLUME", "KARAGO_MAX_QUEUE_LENGTH",
	}
	for _, k := range keys {
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want 44100", cfg.SampleRate)
	}
	if cfg.Channels != 2 {
		t.Errorf("Channels = %d, want 2", cfg.Channels)
	}
	if cfg.GrainSize != 4096 {
		t.Errorf("GrainSize = %d, want 4096", cfg.GrainSize)
	}
	if cfg.DefaultVolume != 50 {
		t.Errorf("DefaultVolume = %d, want 50", cfg.DefaultVolume)
	}
	if cfg.MaxQueueLength != 30 {
		t.Errorf("MaxQueueLength = %d, want 30", cfg.MaxQueueLength)
	}
	if cfg.AudioInput1ID != "default" || cfg.AudioInput2ID != "default" {
		t.Errorf("device ids = %q/%q, want default/default", cfg.AudioInput1ID, cfg.AudioInput2ID)
	}
	if cfg.FFmpegPath != "ffmpeg" {
		t.Errorf("FFmpegPath = %q, want ffmpeg", cfg.FFmpegPath)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("KARAGO_SAMPLE_RATE", "48000")
	t.Setenv("KARAGO_AUDIO_INPUT_1", "hw:1,0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SampleRate != 48000 {
		t.Errorf("SampleRate = %d, want 48000", cfg.SampleRate)
	}
	if cfg.AudioInput1ID != "hw:1,0" {
		t.Errorf("AudioInput1ID = %q, want hw:1,0", cfg.AudioInput1ID)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"odd grain size", func(c *Config) { c.GrainSize = 1023 }},
		{"tiny grain size", func(c *Config) { c.GrainSize = 64 }},
		{"bad channels", func(c *Config) { c.Channels = 3 }},
		{"volume out of range", func(c *Config) { c.DefaultVolume = 150 }},
		{"zero queue length", func(c *Config) { c.MaxQueueLength = 0 }},
		{"bad sample rate", func(c *Config) { c.SampleRate = 100 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{
				DataDir:        "/tmp/karago",
				SampleRate:     44100,
				Channels:       2,
				GrainSize:      4096,
				DefaultVolume:  50,
				MaxQueueLength: 30,
			}
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Validate() = nil, want error")
			}
		})
	}
}
