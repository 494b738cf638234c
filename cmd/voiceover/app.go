package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/nadzzz/voiceover/internal/config"
	"github.com/nadzzz/voiceover/internal/jobs"
	"github.com/nadzzz/voiceover/internal/lock"
	"github.com/nadzzz/voiceover/internal/segment"
	"github.com/nadzzz/voiceover/internal/tts"
	"github.com/nadzzz/voiceover/internal/tts/backend"
)

// rootOptions are the flags every command shares.
type rootOptions struct {
	configFile string
}

// app is the wired object graph behind every command.
type app struct {
	cfg     *config.Config
	lock    lock.Lock
	engines *tts.Shared
	coord   *jobs.Coordinator
}

// loadApp reads configuration and builds the coordinator. The synthesis
// engine itself is built lazily on first use.
func loadApp(opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	config.SetupLogging(cfg.Logging)

	l, err := lock.Open(cfg.Lock)
	if err != nil {
		return nil, fmt.Errorf("opening narration lock: %w", err)
	}

	engines := tts.NewShared(backend.Factory(cfg.TTS, segment.Default()))
	slog.Debug("configuration loaded",
		"tts_backend", cfg.TTS.Backend, "model", cfg.TTS.Model, "device", cfg.TTS.Device,
		"lock_backend", cfg.Lock.Backend)

	return &app{
		cfg:     cfg,
		lock:    l,
		engines: engines,
		coord:   jobs.New(cfg, l, engines),
	}, nil
}

// Close releases the engine and the lock handle.
func (a *app) Close() error {
	return errors.Join(a.engines.Close(), a.lock.Close())
}
