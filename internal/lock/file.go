package lock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileLock is a Lock backed by a marker file.
//
// The marker's existence means the lock is held and its modification time is
// the staleness clock. Creation uses O_EXCL, so of any number of concurrent
// creators exactly one succeeds. A stale marker is reclaimed by renaming it
// to a unique tombstone first: rename of a single source succeeds at most
// once, which keeps two reclaimers from both deleting and recreating.
type FileLock struct {
	path       string
	staleAfter time.Duration
	holder     string
	now        func() time.Time

	mu    sync.Mutex
	token string
}

// record is the JSON body of the marker file.
type record struct {
	Token      string    `json:"token"`
	Holder     string    `json:"holder"`
	AcquiredAt time.Time `json:"acquired_at"`
}

var errLostRace = errors.New("stale lock was reclaimed concurrently")

// NewFileLock returns a lock using the marker file at path.
func NewFileLock(path string, staleAfter time.Duration) *FileLock {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &FileLock{
		path:       path,
		staleAfter: staleAfter,
		holder:     holderName(),
		now:        time.Now,
	}
}

// Path returns the marker file location.
func (l *FileLock) Path() string { return l.path }

// TryAcquire implements Lock.
func (l *FileLock) TryAcquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.token != "" {
		if _, rec, err := l.read(l.path); err == nil && rec.Token == l.token {
			return false, nil
		}
		// Our record is gone or was reclaimed; forget it.
		l.token = ""
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("preparing lock directory: %w", err)
	}

	ok, err := l.create()
	if ok || err != nil {
		return ok, err
	}

	info, rec, err := l.read(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		// Released between our create attempt and the read.
		return l.create()
	}
	if err != nil {
		return false, err
	}
	if !l.isStale(info.ModTime()) {
		return false, nil
	}

	slog.Warn("reclaiming stale narration lock",
		"path", l.path,
		"holder", rec.Holder,
		"touched_at", info.ModTime(),
		"stale_after", l.staleAfter)

	if err := l.reclaim(rec.Token); err != nil {
		if errors.Is(err, errLostRace) {
			return false, nil
		}
		return false, err
	}
	return l.create()
}

// create makes the marker with O_EXCL and stores a fresh token in it.
func (l *FileLock) create() (bool, error) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("creating lock file: %w", err)
	}

	rec := record{
		Token:      uuid.NewString(),
		Holder:     l.holder,
		AcquiredAt: l.now().UTC(),
	}
	werr := json.NewEncoder(f).Encode(rec)
	cerr := f.Close()
	if werr != nil || cerr != nil {
		_ = os.Remove(l.path)
		return false, fmt.Errorf("writing lock file: %w", errors.Join(werr, cerr))
	}

	l.token = rec.Token
	return true, nil
}

// reclaim moves a stale marker out of the way. It fails with errLostRace when
// the marker it moved is not the stale one it inspected.
func (l *FileLock) reclaim(staleToken string) error {
	tomb := fmt.Sprintf("%s.stale-%s", l.path, uuid.NewString())
	if err := os.Rename(l.path, tomb); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// Another caller reclaimed or the holder released; just try to create.
			return nil
		}
		return fmt.Errorf("reclaiming lock file: %w", err)
	}
	defer os.Remove(tomb)

	_, moved, err := l.read(tomb)
	if err == nil && moved.Token != staleToken {
		// We moved a fresh record that a faster reclaimer had just written.
		if lerr := os.Link(tomb, l.path); lerr != nil {
			slog.Warn("could not restore concurrently reclaimed lock", "path", l.path, "error", lerr)
		}
		return errLostRace
	}
	return nil
}

// Release implements Lock.
func (l *FileLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.token == "" {
		return nil
	}
	token := l.token
	l.token = ""

	_, rec, err := l.read(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if rec.Token != token {
		slog.Warn("narration lock was reclaimed by another holder, leaving it in place",
			"path", l.path, "holder", rec.Holder)
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing lock file: %w", err)
	}
	return nil
}

// IsHeld implements Lock.
func (l *FileLock) IsHeld(ctx context.Context) (bool, error) {
	info, _, err := l.read(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !l.isStale(info.ModTime()), nil
}

// Touch implements Lock.
func (l *FileLock) Touch(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.token == "" {
		return ErrNotHeld
	}
	_, rec, err := l.read(l.path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && rec.Token != l.token) {
		return ErrNotHeld
	}
	if err != nil {
		return err
	}
	now := l.now()
	if err := os.Chtimes(l.path, now, now); err != nil {
		return fmt.Errorf("touching lock file: %w", err)
	}
	return nil
}

// Status implements Lock.
func (l *FileLock) Status(ctx context.Context) (Status, error) {
	info, rec, err := l.read(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, err
	}

	l.mu.Lock()
	mine := l.token != "" && l.token == rec.Token
	l.mu.Unlock()

	stale := l.isStale(info.ModTime())
	return Status{
		Held:      !stale,
		Stale:     stale,
		Holder:    rec.Holder,
		Token:     rec.Token,
		TouchedAt: info.ModTime(),
		Mine:      mine,
	}, nil
}

// Break implements Lock.
func (l *FileLock) Break(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.token = ""
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing lock file: %w", err)
	}
	return nil
}

// Close implements Lock. The marker is left alone; use Release for that.
func (l *FileLock) Close() error { return nil }

func (l *FileLock) isStale(touched time.Time) bool {
	return l.now().Sub(touched) > l.staleAfter
}

// read returns the marker's file info and decoded record. A marker whose
// body cannot be decoded (e.g. caught mid-write) yields an empty record.
func (l *FileLock) read(path string) (fs.FileInfo, record, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, record{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, record{}, err
	}
	var rec record
	_ = json.Unmarshal(data, &rec)
	return info, rec, nil
}
