package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DataDir string
	DBFile  string

	SampleRate int
	Channels   int
	GrainSize  int

	FFmpegPath  string
	FFplayPath  string
	FFprobePath string

	ImpulsePath string

	AudioInput1ID string
	AudioInput2ID string

	LogLevel       string
	DefaultVolume  int
	MaxQueueLength int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnvWithDefault("KARAGO_DATA_DIR", defaultDataDir())

	cfg := &Config{
		DataDir: dataDir,
		DBFile:  getEnvWithDefault("KARAGO_DB_FILE", filepath.Join(dataDir, "karago.sqlite3")),

		SampleRate: getEnvAsIntWithDefault("KARAGO_SAMPLE_RATE", 44100),
		Channels:   getEnvAsIntWithDefault("KARAGO_CHANNELS", 2),
		GrainSize:  getEnvAsIntWithDefault("KARAGO_GRAIN_SIZE", 4096),

		FFmpegPath:  getEnvWithDefault("KARAGO_FFMPEG", "ffmpeg"),
		FFplayPath:  getEnvWithDefault("KARAGO_FFPLAY", "ffplay"),
		FFprobePath: getEnvWithDefault("KARAGO_FFPROBE", "ffprobe"),

		ImpulsePath: getEnvWithDefault("KARAGO_IMPULSE_PATH", filepath.Join(dataDir, "impulses", "impulse_rev.wav")),

		AudioInput1ID: getEnvWithDefault("KARAGO_AUDIO_INPUT_1", "default"),
		AudioInput2ID: getEnvWithDefault("KARAGO_AUDIO_INPUT_2", "default"),

		LogLevel:       getEnvWithDefault("LOG_LEVEL", "info"),
		DefaultVolume:  getEnvAsIntWithDefault("KARAGO_DEFAULT_VOLUME", 50),
		MaxQueueLength: getEnvAsIntWithDefault("KARAGO_MAX_QUEUE_LENGTH", 30),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("KARAGO_DATA_DIR is required")
	}

	if c.SampleRate < 8000 || c.SampleRate > 192000 {
		return errors.New("KARAGO_SAMPLE_RATE must be between 8000 and 192000")
	}

	if c.Channels != 1 && c.Channels != 2 {
		return errors.New("KARAGO_CHANNELS must be 1 or 2")
	}

	if c.GrainSize < 256 || c.GrainSize%2 != 0 {
		return errors.New("KARAGO_GRAIN_SIZE must be an even number of at least 256")
	}

	if c.DefaultVolume < 0 || c.DefaultVolume > 100 {
		return errors.New("KARAGO_DEFAULT_VOLUME must be between 0 and 100")
	}

	if c.MaxQueueLength < 1 {
		return errors.New("KARAGO_MAX_QUEUE_LENGTH must be at least 1")
	}

	return nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".karago"
	}
	return filepath.Join(home, ".karago")
}

func getEnvAsIntWithDefault(key string, defaultValue int) int {
	if value, ok := os.LookupEnv(key); ok {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvWithDefault(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}
