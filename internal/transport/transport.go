// Package transport defines the interface for the daemon's network surfaces.
//
// Each transport (HTTP, gRPC) exposes the same narration service. Transports
// never run narration themselves; they translate requests into Service calls
// and map errors onto their protocol's status codes.
package transport

import (
	"context"

	"github.com/nadzzz/voiceover/internal/job"
	"github.com/nadzzz/voiceover/internal/jobs"
	"github.com/nadzzz/voiceover/internal/lock"
	"github.com/nadzzz/voiceover/internal/voices"
)

// Service is the narration API a transport serves. *jobs.Coordinator
// implements it.
type Service interface {
	Narrate(ctx context.Context, req job.Request) (*job.Summary, error)
	Start(ctx context.Context, req job.Request) (string, <-chan jobs.Result, error)
	Sample(ctx context.Context, req jobs.SampleRequest) (*jobs.SampleResult, error)
	Current() job.Progress
	LockStatus(ctx context.Context) (lock.Status, error)
	ListVoices() ([]voices.Voice, error)
	EventsSince(seq int64) []jobs.Event
}

var _ Service = (*jobs.Coordinator)(nil)

// Transport is the interface that every transport adapter must implement.
type Transport interface {
	// Name returns the transport identifier (e.g., "grpc", "http").
	Name() string

	// Listen starts serving svc. It blocks until the context is cancelled.
	Listen(ctx context.Context, svc Service) error

	// Close gracefully shuts down the transport, draining in-flight work.
	Close() error
}
