// Package app assembles the application: storage, the audio session, the
// playback engine, microphone mixing, and the terminal UI.
package app

import (
	"context"
	"fmt"
	"log"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nrks/karago/config"
	"github.com/nrks/karago/internal/alert"
	"github.com/nrks/karago/internal/audio"
	"github.com/nrks/karago/internal/fileio"
	"github.com/nrks/karago/internal/library"
	"github.com/nrks/karago/internal/mic"
	"github.com/nrks/karago/internal/player"
	"github.com/nrks/karago/internal/songqueue"
	"github.com/nrks/karago/internal/store"
	"github.com/nrks/karago/internal/ui"
)

type App struct {
	config  *config.Config
	store   *store.Store
	session *audio.Session
	engine  *player.Engine
	mics    *mic.Manager
	queue   *songqueue.Queue
	library *library.Library
	alerts  *alert.Hub

	cancel  context.CancelFunc
	started bool
}

func New(cfg *config.Config) (*App, error) {
	st, err := store.Open(cfg.DBFile)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	var sink audio.Sink
	sink, err = audio.NewFFplaySink(cfg.FFplayPath, cfg.SampleRate, cfg.Channels)
	if err != nil {
		log.Printf("Warning: audio output unavailable, running silent: %v", err)
		sink = audio.NullSink{}
	}
	session := audio.NewSession(cfg.SampleRate, cfg.Channels, sink)

	q, err := songqueue.New(st, cfg.MaxQueueLength)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("load queue: %w", err)
	}
	lib, err := library.New(st)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("load library: %w", err)
	}

	hub := alert.NewHub()
	decoder := &audio.FFmpegDecoder{
		FFmpegPath: cfg.FFmpegPath,
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
	}

	engine := player.New(player.Options{
		Session:   session,
		Queue:     q,
		Store:     st,
		FS:        fileio.OSFS{},
		Alerts:    hub,
		NewSource: player.NewFFmpegSourceFactory(decoder, cfg.GrainSize),
		Library:   lib,
	})
	engine.SetVolume(cfg.DefaultVolume)

	mics := mic.NewManager(mic.Options{
		Session: session,
		Opener: &audio.FFmpegCaptureOpener{
			FFmpegPath: cfg.FFmpegPath,
			SampleRate: cfg.SampleRate,
			Channels:   cfg.Channels,
		},
		Alerts:      hub,
		Store:       st,
		ImpulsePath: cfg.ImpulsePath,
	})

	return &App{
		config:  cfg,
		store:   st,
		session: session,
		engine:  engine,
		mics:    mics,
		queue:   q,
		library: lib,
		alerts:  hub,
	}, nil
}

// Start restores the persisted audio state, runs the render loop, and
// hands the terminal to the UI. It blocks until the UI exits.
func (a *App) Start() error {
	if a.started {
		return nil
	}
	a.started = true

	a.engine.Restore()
	a.mics.Restore()

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	go a.session.Run(ctx)

	devices := a.deviceList()
	model := ui.New(ui.Options{
		Engine:  a.engine,
		Queue:   a.queue,
		Library: a.library,
		Mics:    a.mics,
		Alerts:  a.alerts,
		FS:      fileio.OSFS{},
		Devices: devices,
		Tags:    &audio.FFprobeTagReader{FFprobePath: a.config.FFprobePath},
	})

	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err := program.Run()
	return err
}

// deviceList seeds the selectable inputs with the platform default plus
// anything named in the configuration.
func (a *App) deviceList() fileio.StaticDeviceLister {
	devices := []fileio.AudioInputDevice{{ID: "default", Label: "System default"}}
	for i, id := range []string{a.config.AudioInput1ID, a.config.AudioInput2ID} {
		if id == "" || id == "default" {
			continue
		}
		devices = append(devices, fileio.AudioInputDevice{
			ID:    id,
			Label: fmt.Sprintf("Configured input %d", i+1),
		})
	}
	return fileio.StaticDeviceLister{Devices: devices}
}

func (a *App) Stop() error {
	a.engine.SaveStatus()
	a.mics.SaveStatus()
	a.mics.Channel(1).Disable()
	a.mics.Channel(2).Disable()
	if a.cancel != nil {
		a.cancel()
	}
	return a.store.Close()
}
