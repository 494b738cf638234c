// Package jobs runs narration jobs end to end.
//
// A Coordinator owns the critical section around a job: it takes the
// exclusion lock before anything touches the disk, prepares the output folder
// and paragraphs, hands the job to the narration pipeline, and releases the
// lock on every exit path. Surfaces (CLI, HTTP) only talk to the Coordinator.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nadzzz/voiceover/internal/config"
	"github.com/nadzzz/voiceover/internal/document"
	"github.com/nadzzz/voiceover/internal/job"
	"github.com/nadzzz/voiceover/internal/layout"
	"github.com/nadzzz/voiceover/internal/lock"
	"github.com/nadzzz/voiceover/internal/narrate"
	"github.com/nadzzz/voiceover/internal/tts"
	"github.com/nadzzz/voiceover/internal/tts/backend"
	"github.com/nadzzz/voiceover/internal/voices"
)

// DefaultSampleText is spoken when a sample request carries no text.
const DefaultSampleText = "This is a narration test."

// Result is the final outcome of an asynchronous job.
type Result struct {
	Summary *job.Summary
	Err     error
}

// SampleRequest asks for a short clip in the selected voice.
type SampleRequest struct {
	Text       string `json:"text"`
	Language   string `json:"language"`
	VoicePath  string `json:"voice_path"`
	OutputPath string `json:"output_path"`
}

// SampleResult describes a written sample clip.
type SampleResult struct {
	OutputPath string `json:"output_path"`
	Diagnostic string `json:"diagnostic,omitempty"`
}

// Coordinator runs one narration job at a time under the exclusion lock.
type Coordinator struct {
	narration config.NarrationConfig
	ttsConfig config.TTSConfig
	lock      lock.Lock
	engines   *tts.Shared
	source    document.Source
	catalog   voices.Catalog
	events    *EventBus
	heartbeat time.Duration

	mu      sync.RWMutex
	current job.Progress

	background sync.WaitGroup
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithSource replaces the document extractor.
func WithSource(src document.Source) Option {
	return func(c *Coordinator) { c.source = src }
}

// WithEventBus replaces the default event buffer.
func WithEventBus(bus *EventBus) Option {
	return func(c *Coordinator) { c.events = bus }
}

// WithHeartbeat sets how often the lock is touched while a job holds it.
func WithHeartbeat(d time.Duration) Option {
	return func(c *Coordinator) { c.heartbeat = d }
}

// New creates a Coordinator. engines supplies the synthesis adapter for each
// job; it is shared across jobs so the engine is built once per configuration.
func New(cfg *config.Config, l lock.Lock, engines *tts.Shared, opts ...Option) *Coordinator {
	staleAfter := cfg.Lock.StaleAfter
	if staleAfter <= 0 {
		staleAfter = lock.DefaultStaleAfter
	}
	c := &Coordinator{
		narration: cfg.Narration,
		ttsConfig: cfg.TTS,
		lock:      l,
		engines:   engines,
		source:    document.Extractor{},
		catalog:   voices.Catalog{Dir: cfg.Narration.VoicesDir},
		events:    NewEventBus(0),
		heartbeat: staleAfter / 4,
		current:   job.Progress{Phase: job.PhaseIdle},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Events returns the coordinator's event buffer.
func (c *Coordinator) Events() *EventBus { return c.events }

// EventsSince returns the recorded events newer than seq.
func (c *Coordinator) EventsSince(seq int64) []Event { return c.events.Since(seq) }

// ListVoices returns the samples in the configured voices directory.
func (c *Coordinator) ListVoices() ([]voices.Voice, error) { return c.catalog.List() }

// Current returns a snapshot of the running job.
func (c *Coordinator) Current() job.Progress {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// LockStatus describes the exclusion lock.
func (c *Coordinator) LockStatus(ctx context.Context) (lock.Status, error) {
	return c.lock.Status(ctx)
}

// Narrate runs a job to completion. It returns ErrLockBusy without side
// effects when another job holds the lock.
func (c *Coordinator) Narrate(ctx context.Context, req job.Request) (*job.Summary, error) {
	if err := c.validate(&req); err != nil {
		return nil, err
	}
	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	return c.run(ctx, uuid.NewString(), req)
}

// Start acquires the lock and runs the job in the background. The job lives
// as long as ctx; callers serving a request should pass a context that
// outlives it. Busy and invalid requests are reported synchronously.
func (c *Coordinator) Start(ctx context.Context, req job.Request) (string, <-chan Result, error) {
	if err := c.validate(&req); err != nil {
		return "", nil, err
	}
	release, err := c.acquire(ctx)
	if err != nil {
		return "", nil, err
	}

	id := uuid.NewString()
	done := make(chan Result, 1)
	c.background.Add(1)
	go func() {
		defer c.background.Done()
		defer close(done)
		defer release()
		summary, err := c.run(ctx, id, req)
		done <- Result{Summary: summary, Err: err}
	}()
	return id, done, nil
}

// Wait blocks until every job launched with Start has released the lock.
func (c *Coordinator) Wait() { c.background.Wait() }

// Sample synthesizes a short text at the sample speed. It takes the lock like
// a job does, since it uses the same engine.
func (c *Coordinator) Sample(ctx context.Context, req SampleRequest) (*SampleResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		req.Text = DefaultSampleText
	}
	if req.Language == "" {
		req.Language = c.narration.Language
	}
	if req.OutputPath == "" {
		return nil, &Error{Stage: StageRequest, Message: "output path is required"}
	}
	voice, err := c.catalog.Resolve(req.VoicePath)
	if err != nil {
		return nil, &Error{Stage: StageRequest, Message: "resolving voice", Err: err}
	}

	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	adapter, err := c.engines.Get(backend.KeyFor(c.ttsConfig, voice))
	if err != nil {
		return nil, &Error{Stage: StageEngine, Message: "loading synthesis engine", Err: err}
	}
	if err := layout.EnsureFolder(filepath.Dir(req.OutputPath)); err != nil {
		return nil, &Error{Stage: StageLayout, Message: "preparing sample folder", Err: err}
	}

	diagnostic, err := adapter.Synthesize(ctx, tts.Request{
		Text:       req.Text,
		OutputPath: req.OutputPath,
		Language:   req.Language,
		VoicePath:  voice,
		Speed:      c.narration.SampleSpeed,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesizing sample: %w", err)
	}
	slog.Info("sample generated", "file", req.OutputPath, "voice", voice)
	return &SampleResult{OutputPath: req.OutputPath, Diagnostic: diagnostic}, nil
}

// validate fills defaults and rejects requests that cannot run.
func (c *Coordinator) validate(req *job.Request) error {
	if req.DocumentPath == "" {
		return &Error{Stage: StageRequest, Message: "document path is required"}
	}
	if req.Language == "" {
		req.Language = c.narration.Language
	}
	if req.OutputBase == "" {
		req.OutputBase = c.narration.OutputBase
	}
	if req.Speed <= 0 {
		req.Speed = c.narration.Speed
	}
	if req.DisplayName == "" {
		req.DisplayName = filepath.Base(req.DocumentPath)
	}
	voice, err := c.catalog.Resolve(req.VoicePath)
	if err != nil {
		return &Error{Stage: StageRequest, Message: "resolving voice", Err: err}
	}
	req.VoicePath = voice
	return nil
}

// acquire takes the lock and keeps it fresh until the returned release
// func runs.
func (c *Coordinator) acquire(ctx context.Context) (func(), error) {
	ok, err := c.lock.TryAcquire(ctx)
	if err != nil {
		return nil, &Error{Stage: StageLock, Message: "acquiring narration lock", Err: err}
	}
	if !ok {
		return nil, ErrLockBusy
	}
	stop := c.keepAlive(context.WithoutCancel(ctx))
	return func() {
		stop()
		c.release(ctx)
	}, nil
}

// keepAlive touches the lock every heartbeat until stop returns. The record
// stays fresh while a single paragraph runs longer than the stale threshold.
func (c *Coordinator) keepAlive(ctx context.Context) (stop func()) {
	if c.heartbeat <= 0 {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(c.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.lock.Touch(ctx); err != nil && ctx.Err() == nil {
					slog.Warn("refreshing narration lock failed", "error", err)
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// release runs on every exit path, including cancellation.
func (c *Coordinator) release(ctx context.Context) {
	if err := c.lock.Release(context.WithoutCancel(ctx)); err != nil {
		slog.Error("releasing narration lock failed", "error", err)
	}
	c.setProgress(job.Progress{Phase: job.PhaseIdle})
}

// run executes a job while the lock is held.
func (c *Coordinator) run(ctx context.Context, id string, req job.Request) (*job.Summary, error) {
	start := time.Now()
	logger := slog.With("job_id", id, "document", req.DisplayName)

	c.setProgress(job.Progress{JobID: id, Document: req.DisplayName, Phase: job.PhasePreparing})
	c.events.Publish(Event{JobID: id, Type: EventTypeStatus, Phase: job.PhasePreparing, Message: "preparing " + req.DisplayName})

	j, err := c.prepare(req, id)
	if err != nil {
		logger.Error("job setup failed", "error", err)
		c.events.Publish(Event{JobID: id, Type: EventTypeError, Message: err.Error()})
		return nil, err
	}

	adapter, err := c.engines.Get(backend.KeyFor(c.ttsConfig, j.VoicePath))
	if err != nil {
		err = &Error{Stage: StageEngine, Message: "loading synthesis engine", Err: err}
		logger.Error("job setup failed", "error", err)
		c.events.Publish(Event{JobID: id, Type: EventTypeError, Message: err.Error()})
		return nil, err
	}

	total := len(j.Paragraphs)
	logger.Info("narration started", "folder", j.Folder, "paragraphs", total, "engine", adapter.Name())
	c.setProgress(job.Progress{JobID: id, Document: j.Document, Phase: job.PhaseNarrating, Total: total})
	c.events.Publish(Event{JobID: id, Type: EventTypeStatus, Phase: job.PhaseNarrating, Total: total})

	pipeline := narrate.New(adapter, narrate.WithParagraphTimeout(c.narration.ParagraphTimeout))
	outcome, runErr := pipeline.Run(ctx, j, func(index, total int) {
		if err := c.lock.Touch(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("refreshing narration lock failed", "error", err)
		}
		c.setProgress(job.Progress{JobID: id, Document: j.Document, Phase: job.PhaseNarrating, Index: index, Total: total})
		c.events.Publish(Event{JobID: id, Type: EventTypeProgress, Index: index, Total: total})
	})

	summary := job.NewSummary(j, outcome, time.Since(start))
	logger.Info("narration finished",
		"ok", summary.OK, "flagged", summary.Flagged, "failed", summary.Failed,
		"report", summary.ReportPath, "duration", summary.Duration.Round(time.Millisecond))

	if runErr != nil {
		c.events.Publish(Event{JobID: id, Type: EventTypeError, Message: runErr.Error(), Summary: summary})
		return summary, runErr
	}
	c.events.Publish(Event{JobID: id, Type: EventTypeResult, Summary: summary})
	return summary, nil
}

// prepare creates the output folder, stores the source document in it and
// extracts the normalized paragraphs.
func (c *Coordinator) prepare(req job.Request, id string) (*job.Job, error) {
	folder := layout.Layout{Base: req.OutputBase}.DeriveFolder(req.Language, req.DisplayName)
	if err := layout.EnsureFolder(folder); err != nil {
		return nil, &Error{Stage: StageLayout, Message: "creating output folder", Err: err}
	}

	name := req.DisplayName
	if filepath.Ext(name) == "" {
		name += filepath.Ext(req.DocumentPath)
	}
	stored, err := layout.CopySource(req.DocumentPath, folder, name)
	if err != nil {
		return nil, &Error{Stage: StageLayout, Message: "storing source document", Err: err}
	}

	paragraphs, err := c.source.Extract(stored)
	if err != nil {
		return nil, &Error{Stage: StageExtract, Message: "reading paragraphs", Err: err}
	}
	paragraphs = NormalizeAll(paragraphs)
	if len(paragraphs) == 0 {
		return nil, &Error{Stage: StageExtract, Message: "no paragraphs in " + stored}
	}

	return &job.Job{
		ID:         id,
		Document:   req.DisplayName,
		Language:   req.Language,
		VoicePath:  req.VoicePath,
		Folder:     folder,
		Speed:      req.Speed,
		Paragraphs: paragraphs,
	}, nil
}

func (c *Coordinator) setProgress(p job.Progress) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = p
}
