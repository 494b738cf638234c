// Package job defines the core data types flowing through the narration pipeline.
package job

import (
	"time"
)

// Status is the outcome class of one paragraph.
type Status string

const (
	// StatusOK means the clip was written under its default name.
	StatusOK Status = "ok"

	// StatusFlagged means the clip was written but the engine warned that
	// some input exceeded its character limit. The clip is renamed to carry
	// the flag.
	StatusFlagged Status = "flagged"

	// StatusFailed means no usable clip was produced.
	StatusFailed Status = "failed"
)

// Reason refines a flagged or failed Status.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonCapacity  Reason = "capacity"
	ReasonSynthesis Reason = "synthesis"
	ReasonTimeout   Reason = "timeout"
	ReasonCancelled Reason = "cancelled"
)

// Request is what a caller submits to start a narration job.
type Request struct {
	// DocumentPath is the source document (.docx, .txt or .md).
	DocumentPath string `json:"document_path"`

	// DisplayName names the output folder. Defaults to the document's file name.
	DisplayName string `json:"display_name,omitempty"`

	// Language is the ISO-639-1 narration language (e.g., "en", "es", "pt").
	Language string `json:"language"`

	// VoicePath is the reference voice sample (.wav).
	VoicePath string `json:"voice_path"`

	// OutputBase overrides the configured base output directory.
	OutputBase string `json:"output_base,omitempty"`

	// Speed overrides the configured speaking rate.
	Speed float64 `json:"speed,omitempty"`
}

// Job is an accepted narration request with its paragraphs resolved.
// It is not modified once built.
type Job struct {
	ID         string
	Document   string
	Language   string
	VoicePath  string
	Folder     string
	Speed      float64
	Paragraphs []string
}

// ParagraphResult is the outcome of narrating one paragraph.
type ParagraphResult struct {
	// Index is the 1-based position of the paragraph in the document.
	Index int `json:"index"`

	// Text is the paragraph as it was sent to the synthesizer.
	Text string `json:"text"`

	// OutputPath is where the clip lives (flagged name when renamed).
	OutputPath string `json:"output_path"`

	Status Status `json:"status"`
	Reason Reason `json:"reason,omitempty"`

	// Diagnostic is the engine's captured log output for this paragraph.
	Diagnostic string `json:"diagnostic,omitempty"`

	// Error is the synthesis error message for failed paragraphs.
	Error string `json:"error,omitempty"`
}

// ErrorReport lists the paragraphs that failed on capacity or were flagged.
// Capacity failures come first, then flagged paragraphs, each in document order.
type ErrorReport struct {
	Path       string   `json:"path,omitempty"`
	Paragraphs []string `json:"paragraphs"`
}

// Outcome is everything one pipeline run produced.
type Outcome struct {
	Results []ParagraphResult
	Report  *ErrorReport // nil when no paragraph needed reporting
}

// Count returns how many results have the given status.
func (o *Outcome) Count(status Status) int {
	n := 0
	for _, r := range o.Results {
		if r.Status == status {
			n++
		}
	}
	return n
}

// Summary is the final, user-facing account of a narration job.
type Summary struct {
	JobID      string            `json:"job_id"`
	Document   string            `json:"document"`
	Folder     string            `json:"folder"`
	Total      int               `json:"total"`
	OK         int               `json:"ok"`
	Flagged    int               `json:"flagged"`
	Failed     int               `json:"failed"`
	ReportPath string            `json:"report_path,omitempty"`
	Duration   time.Duration     `json:"duration"`
	Results    []ParagraphResult `json:"results"`
}

// NewSummary tallies an outcome.
func NewSummary(j *Job, outcome *Outcome, took time.Duration) *Summary {
	s := &Summary{
		JobID:    j.ID,
		Document: j.Document,
		Folder:   j.Folder,
		Total:    len(outcome.Results),
		OK:       outcome.Count(StatusOK),
		Flagged:  outcome.Count(StatusFlagged),
		Failed:   outcome.Count(StatusFailed),
		Duration: took,
		Results:  outcome.Results,
	}
	if outcome.Report != nil {
		s.ReportPath = outcome.Report.Path
	}
	return s
}

// Phase is the lifecycle stage of the job a process is currently running.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhasePreparing Phase = "preparing"
	PhaseNarrating Phase = "narrating"
)

// Progress is a snapshot of the running job.
type Progress struct {
	JobID    string `json:"job_id,omitempty"`
	Document string `json:"document,omitempty"`
	Phase    Phase  `json:"phase"`
	Index    int    `json:"index"`
	Total    int    `json:"total"`
}
