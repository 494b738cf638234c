package jobs

import (
	"errors"
	"fmt"
)

// ErrLockBusy is returned when another job holds the exclusion lock.
var ErrLockBusy = errors.New("another narration is running, try again later")

// Stage names the setup step a job failed in.
type Stage string

const (
	StageRequest Stage = "request"
	StageLock    Stage = "lock"
	StageLayout  Stage = "layout"
	StageExtract Stage = "extract"
	StageEngine  Stage = "engine"
)

// Error is a job failure that happened before or around narration, as
// opposed to a per-paragraph failure which is recorded in the results.
type Error struct {
	Stage   Stage
	Message string
	Err     error
}

// Error formats stage failures for logs and API responses.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsRequestError reports whether err was caused by an invalid request.
func IsRequestError(err error) bool {
	var jobErr *Error
	return errors.As(err, &jobErr) && jobErr.Stage == StageRequest
}
