// Package narrate implements the per-paragraph narration loop.
//
// The pipeline walks a job's paragraphs in document order, synthesizes each
// one into its own clip, classifies the outcome, and collects paragraphs the
// engine could not fit into an error report. A failed paragraph never stops
// the batch. The caller owns the exclusion lock for the duration of Run.
package narrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/nadzzz/voiceover/internal/document"
	"github.com/nadzzz/voiceover/internal/job"
	"github.com/nadzzz/voiceover/internal/layout"
	"github.com/nadzzz/voiceover/internal/tts"
)

// CapacityMarker is the engine phrase that signals an over-long input.
const CapacityMarker = "exceeds the character limit"

// ProgressFunc receives (index, total) once per paragraph, in order.
type ProgressFunc func(index, total int)

// ReportWriter persists the error report.
type ReportWriter func(path string, paragraphs []string) error

// Pipeline runs narration jobs against one synthesis adapter.
type Pipeline struct {
	adapter     tts.Adapter
	timeout     time.Duration
	writeReport ReportWriter
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithParagraphTimeout bounds each synthesis call. Zero disables the bound.
func WithParagraphTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.timeout = d }
}

// WithReportWriter replaces the .docx report writer.
func WithReportWriter(w ReportWriter) Option {
	return func(p *Pipeline) { p.writeReport = w }
}

// New creates a pipeline that synthesizes with adapter.
func New(adapter tts.Adapter, opts ...Option) *Pipeline {
	p := &Pipeline{adapter: adapter, writeReport: document.WriteDocx}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ExceedsCapacity reports whether text carries the capacity marker.
func ExceedsCapacity(text string) bool {
	return strings.Contains(strings.ToLower(text), CapacityMarker)
}

// Classify maps a synthesis call's diagnostic and error to a status.
func Classify(diagnostic string, err error) (job.Status, job.Reason) {
	if err == nil {
		if ExceedsCapacity(diagnostic) {
			return job.StatusFlagged, job.ReasonCapacity
		}
		return job.StatusOK, job.ReasonNone
	}
	switch {
	case ExceedsCapacity(diagnostic) || ExceedsCapacity(err.Error()):
		return job.StatusFailed, job.ReasonCapacity
	case errors.Is(err, context.DeadlineExceeded):
		return job.StatusFailed, job.ReasonTimeout
	case errors.Is(err, context.Canceled):
		return job.StatusFailed, job.ReasonCancelled
	default:
		return job.StatusFailed, job.ReasonSynthesis
	}
}

// Run narrates every paragraph of j. It always returns one result per
// paragraph. When ctx is cancelled mid-batch the remaining paragraphs are
// recorded as cancelled, the report is still written, and ctx.Err() is
// returned alongside the outcome.
func (p *Pipeline) Run(ctx context.Context, j *job.Job, onProgress ProgressFunc) (*job.Outcome, error) {
	logger := slog.With("job_id", j.ID, "folder", j.Folder)
	total := len(j.Paragraphs)
	if onProgress == nil {
		onProgress = func(int, int) {}
	}

	outcome := &job.Outcome{Results: make([]job.ParagraphResult, 0, total)}
	var capacity, flagged []string

	for i, text := range j.Paragraphs {
		index := i + 1
		var res job.ParagraphResult
		if ctx.Err() != nil {
			res = job.ParagraphResult{
				Index:      index,
				Text:       text,
				OutputPath: layout.AudioPath(j.Folder, index),
				Status:     job.StatusFailed,
				Reason:     job.ReasonCancelled,
				Error:      ctx.Err().Error(),
			}
		} else {
			res = p.narrateOne(ctx, j, index, text)
		}

		switch {
		case res.Reason == job.ReasonCapacity && res.Status == job.StatusFailed:
			capacity = append(capacity, text)
		case res.Status == job.StatusFlagged:
			flagged = append(flagged, text)
		}

		logger.Info("paragraph done",
			"index", index, "total", total, "file", res.OutputPath,
			"status", res.Status, "reason", res.Reason)

		outcome.Results = append(outcome.Results, res)
		onProgress(index, total)
	}

	if reported := append(capacity, flagged...); len(reported) > 0 {
		path := layout.ReportPath(j.Folder)
		outcome.Report = &job.ErrorReport{Paragraphs: reported}
		if err := p.writeReport(path, reported); err != nil {
			logger.Error("writing error report failed", "path", path, "error", err)
		} else {
			outcome.Report.Path = path
			logger.Info("error report written", "path", path, "paragraphs", len(reported))
		}
	}

	return outcome, ctx.Err()
}

// narrateOne synthesizes one paragraph and classifies the result.
func (p *Pipeline) narrateOne(ctx context.Context, j *job.Job, index int, text string) job.ParagraphResult {
	out := layout.AudioPath(j.Folder, index)
	res := job.ParagraphResult{Index: index, Text: text, OutputPath: out}

	callCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	diagnostic, err := p.adapter.Synthesize(callCtx, tts.Request{
		Text:       text,
		OutputPath: out,
		Language:   j.Language,
		VoicePath:  j.VoicePath,
		Speed:      j.Speed,
	})
	res.Diagnostic = diagnostic
	res.Status, res.Reason = Classify(diagnostic, err)

	if err != nil {
		res.Error = err.Error()
		// Engines report a lapsed deadline in their own words.
		if res.Reason == job.ReasonSynthesis {
			switch {
			case ctx.Err() != nil:
				res.Reason = job.ReasonCancelled
			case errors.Is(callCtx.Err(), context.DeadlineExceeded):
				res.Reason = job.ReasonTimeout
			}
		}
		return res
	}

	if res.Status == job.StatusFlagged {
		flaggedPath := layout.FlaggedPath(j.Folder, index)
		if err := os.Rename(out, flaggedPath); err != nil {
			slog.Warn("renaming flagged clip failed", "job_id", j.ID, "index", index, "file", out, "error", err)
		} else {
			res.OutputPath = flaggedPath
		}
	}
	return res
}

// String renders a one-line account of a result for logs and the CLI.
func String(r job.ParagraphResult) string {
	if r.Reason == job.ReasonNone {
		return fmt.Sprintf("#%d %s %s", r.Index, r.Status, r.OutputPath)
	}
	return fmt.Sprintf("#%d %s (%s) %s", r.Index, r.Status, r.Reason, r.OutputPath)
}
