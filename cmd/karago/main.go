package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/nrks/karago/config"
	"github.com/nrks/karago/internal/app"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Error: Failed to load configuration: %v", err)
		log.Println("")
		log.Println("Optional environment variables:")
		log.Println("  KARAGO_DATA_DIR         - Application data directory")
		log.Println("  KARAGO_DB_FILE          - SQLite database path")
		log.Println("  KARAGO_SAMPLE_RATE      - Engine sample rate (default: 44100)")
		log.Println("  KARAGO_CHANNELS         - Output channels, 1 or 2 (default: 2)")
		log.Println("  KARAGO_GRAIN_SIZE       - Time-stretch grain size (default: 4096)")
		log.Println("  KARAGO_FFMPEG           - ffmpeg binary (default: ffmpeg)")
		log.Println("  KARAGO_FFPLAY           - ffplay binary (default: ffplay)")
		log.Println("  KARAGO_FFPROBE          - ffprobe binary (default: ffprobe)")
		log.Println("  KARAGO_IMPULSE_PATH     - Reverb impulse response WAV")
		log.Println("  KARAGO_AUDIO_INPUT_1    - Microphone 1 device id")
		log.Println("  KARAGO_AUDIO_INPUT_2    - Microphone 2 device id")
		log.Println("  KARAGO_DEFAULT_VOLUME   - Startup volume 0-100 (default: 50)")
		log.Println("  LOG_LEVEL               - Log level (debug, info, warn, error)")
		os.Exit(1)
	}

	// The UI owns the terminal, so logs go to a file.
	logPath := filepath.Join(cfg.DataDir, "karago.log")
	if f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); err == nil {
		log.SetOutput(f)
		defer f.Close()
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Error: Failed to start: %v", err)
	}

	runErr := a.Start()
	if err := a.Stop(); err != nil {
		log.Printf("Error: shutdown: %v", err)
	}
	if runErr != nil {
		log.Fatalf("Error: UI error: %v", runErr)
	}
}
