// Package tts defines the contract between the narration pipeline and a
// speech synthesis engine.
//
// An Adapter writes one playable WAV file per call and returns the engine's
// diagnostic output as plain text whether or not synthesis succeeded. The
// pipeline inspects that text (and the error message) for capacity warnings,
// so adapters must pass the engine's own wording through untouched.
package tts

import (
	"context"
	"fmt"
)

// Request is one synthesis call.
type Request struct {
	// Text is the paragraph to speak.
	Text string

	// OutputPath is where the WAV file must be written.
	OutputPath string

	// Language is the ISO-639-1 code (e.g., "en", "es", "pt").
	Language string

	// VoicePath is the reference voice sample.
	VoicePath string

	// Speed is the speaking rate multiplier (1.0 is the engine default).
	Speed float64
}

// Adapter converts text to an audio file.
type Adapter interface {
	// Name returns the backend identifier (e.g., "command", "piper").
	Name() string

	// Synthesize writes audio for req.Text to req.OutputPath and returns the
	// engine's diagnostic output. The diagnostic is returned on failure too.
	Synthesize(ctx context.Context, req Request) (diagnostic string, err error)

	// Close releases any resources held by the adapter.
	Close() error
}

// SynthesisError is an engine-reported failure.
type SynthesisError struct {
	Backend    string
	Message    string
	Diagnostic string
	Err        error
}

// Error formats synthesis failures for logs and reports.
func (e *SynthesisError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Backend, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Backend, e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *SynthesisError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
