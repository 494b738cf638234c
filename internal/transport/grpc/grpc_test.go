package grpc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/nadzzz/voiceover/internal/job"
	"github.com/nadzzz/voiceover/internal/jobs"
	"github.com/nadzzz/voiceover/internal/lock"
	"github.com/nadzzz/voiceover/internal/voices"
)

// lockService only answers LockStatus.
type lockService struct {
	status lock.Status
	err    error
}

func (s *lockService) Narrate(context.Context, job.Request) (*job.Summary, error) { return nil, nil }
func (s *lockService) Start(context.Context, job.Request) (string, <-chan jobs.Result, error) {
	return "", nil, nil
}
func (s *lockService) Sample(context.Context, jobs.SampleRequest) (*jobs.SampleResult, error) {
	return nil, nil
}
func (s *lockService) Current() job.Progress { return job.Progress{} }
func (s *lockService) ListVoices() ([]voices.Voice, error) { return nil, nil }
func (s *lockService) EventsSince(int64) []jobs.Event { return nil }
func (s *lockService) LockStatus(context.Context) (lock.Status, error) {
	return s.status, s.err
}

func check(t *testing.T, tr *Transport) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := tr.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestRefreshFollowsLock(t *testing.T) {
	tr := New(0)
	svc := &lockService{}

	tr.refresh(context.Background(), svc)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, tr))

	svc.status = lock.Status{Held: true}
	tr.refresh(context.Background(), svc)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, tr))

	svc.err = errors.New("database is locked")
	tr.refresh(context.Background(), svc)
	assert.Equal(t, healthpb.HealthCheckResponse_UNKNOWN, check(t, tr))
}
