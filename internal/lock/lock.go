// Package lock provides the durable mutual exclusion that keeps at most one
// narration job running across every process sharing the same lock record.
//
// Acquisition never waits for another holder: TryAcquire answers at once and
// callers surface a busy lock to the user instead of retrying. A holder that
// stops touching its record for longer than the staleness threshold is
// presumed dead and the next TryAcquire reclaims the lock.
//
// Every acquisition mints a fresh token. Release and Touch only act on a
// record that still carries the handle's own token, so a holder whose lock
// was reclaimed cannot disturb the new owner.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nadzzz/voiceover/internal/config"
)

// DefaultStaleAfter is how long an untouched lock is honoured.
const DefaultStaleAfter = 600 * time.Second

// ErrNotHeld is returned by Touch when the handle no longer owns the lock.
var ErrNotHeld = errors.New("lock not held by this handle")

// Lock is a cooperative, durable mutex.
type Lock interface {
	// TryAcquire records this handle as the holder if nobody else holds a
	// fresh lock. It reports false, without error, when the lock is busy.
	TryAcquire(ctx context.Context) (bool, error)

	// Release clears the record if this handle still owns it. It is a no-op
	// when the handle holds nothing.
	Release(ctx context.Context) error

	// IsHeld reports whether anyone holds a fresh lock.
	IsHeld(ctx context.Context) (bool, error)

	// Touch refreshes the staleness clock of this handle's record.
	Touch(ctx context.Context) error

	// Status describes the current record.
	Status(ctx context.Context) (Status, error)

	// Break clears the record regardless of who holds it.
	Break(ctx context.Context) error

	// Close releases resources held by the handle (not the lock itself).
	Close() error
}

// Status is a point-in-time description of the lock record.
type Status struct {
	Held      bool      `json:"held"`
	Stale     bool      `json:"stale"`
	Holder    string    `json:"holder,omitempty"`
	Token     string    `json:"token,omitempty"`
	TouchedAt time.Time `json:"touched_at,omitempty"`
	Mine      bool      `json:"mine"`
}

// Open builds the lock backend selected in cfg.
func Open(cfg config.LockConfig) (Lock, error) {
	stale := cfg.StaleAfter
	if stale <= 0 {
		stale = DefaultStaleAfter
	}
	switch cfg.Backend {
	case "", "file":
		return NewFileLock(cfg.Path, stale), nil
	case "sqlite":
		return OpenSQLite(cfg.SQLitePath, cfg.Name, stale)
	default:
		return nil, fmt.Errorf("unknown lock backend %q", cfg.Backend)
	}
}

// holderName identifies this process in lock records.
func holderName() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s:%d", host, os.Getpid())
}
