package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nadzzz/voiceover/internal/health"
	"github.com/nadzzz/voiceover/internal/transport"
	grpctransport "github.com/nadzzz/voiceover/internal/transport/grpc"
	httptransport "github.com/nadzzz/voiceover/internal/transport/http"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the narration daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, a)
		},
	}
}

// serve runs the enabled transports and the health server until ctx ends.
func serve(ctx context.Context, a *app) error {
	slog.Info("voiceover starting", "version", version)

	var transports []transport.Transport
	if a.cfg.Transports.GRPC.Enabled {
		transports = append(transports, grpctransport.New(a.cfg.Transports.GRPC.Port))
	}
	if a.cfg.Transports.HTTP.Enabled {
		transports = append(transports, httptransport.New(a.cfg.Transports.HTTP.Port, a.cfg.Narration.OutputBase))
	}
	if len(transports) == 0 {
		return errors.New("no transports enabled, enable at least one in config")
	}

	healthServer := health.New(a.cfg.Server.HealthPort, a.coord.LockStatus)
	go func() {
		if err := healthServer.ListenAndServe(ctx); err != nil {
			slog.Error("health server failed", "error", err)
		}
	}()

	var wg sync.WaitGroup
	for _, t := range transports {
		wg.Add(1)
		go func(t transport.Transport) {
			defer wg.Done()
			slog.Info("starting transport", "name", t.Name())
			if err := t.Listen(ctx, a.coord); err != nil {
				slog.Error("transport failed", "name", t.Name(), "error", err)
			}
		}(t)
	}

	healthServer.SetReady(true)
	slog.Info("voiceover ready",
		"transports", len(transports),
		"health_port", a.cfg.Server.HealthPort,
		"tts_backend", a.cfg.TTS.Backend)

	<-ctx.Done()
	slog.Info("shutdown signal received, draining...")

	for _, t := range transports {
		if err := t.Close(); err != nil {
			slog.Error("transport close error", "name", t.Name(), "error", err)
		}
	}

	wg.Wait()
	a.coord.Wait()
	slog.Info("voiceover stopped")
	return nil
}
