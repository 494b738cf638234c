package lock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteLock is a Lock stored as a row in a SQLite database, for setups
// where several hosts share one database file rather than a lock directory.
//
// Acquisition is a single upsert whose conflict branch only fires when the
// existing row is stale, so SQLite's write serialization makes it atomic.
// The upsert runs with no busy wait: a database write-locked by another
// acquirer reads as a busy lock.
type SQLiteLock struct {
	db         *sql.DB
	name       string
	staleAfter time.Duration
	holder     string
	now        func() time.Time

	mu    sync.Mutex
	token string
}

// busyTimeoutMillis bounds how long Release, Touch and Break wait for a
// concurrent writer.
const busyTimeoutMillis = 5000

const schema = `CREATE TABLE IF NOT EXISTS exclusion_locks (
	name        TEXT PRIMARY KEY,
	token       TEXT NOT NULL,
	holder      TEXT NOT NULL,
	acquired_at INTEGER NOT NULL,
	touched_at  INTEGER NOT NULL
)`

// OpenSQLite opens (creating if needed) the lock database at path.
func OpenSQLite(path, name string, staleAfter time.Duration) (*SQLiteLock, error) {
	if name == "" {
		name = "narration"
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("preparing lock database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", path, busyTimeoutMillis)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening lock database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating lock table: %w", err)
	}

	return &SQLiteLock{
		db:         db,
		name:       name,
		staleAfter: staleAfter,
		holder:     holderName(),
		now:        time.Now,
	}, nil
}

// TryAcquire implements Lock.
func (l *SQLiteLock) TryAcquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.token != "" {
		var current string
		err := l.db.QueryRowContext(ctx,
			`SELECT token FROM exclusion_locks WHERE name = ?`, l.name).Scan(&current)
		if err == nil && current == l.token {
			return false, nil
		}
		l.token = ""
	}

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("acquiring lock: %w", err)
	}
	defer conn.Close()
	if _, err := conn.ExecContext(ctx, `PRAGMA busy_timeout = 0`); err != nil {
		return false, fmt.Errorf("acquiring lock: %w", err)
	}
	defer conn.ExecContext(context.WithoutCancel(ctx), fmt.Sprintf(`PRAGMA busy_timeout = %d`, busyTimeoutMillis))

	now := l.now()
	token := uuid.NewString()
	res, err := conn.ExecContext(ctx, `
		INSERT INTO exclusion_locks (name, token, holder, acquired_at, touched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			token = excluded.token,
			holder = excluded.holder,
			acquired_at = excluded.acquired_at,
			touched_at = excluded.touched_at
		WHERE exclusion_locks.touched_at < ?`,
		l.name, token, l.holder, now.UnixNano(), now.UnixNano(), now.Add(-l.staleAfter).UnixNano())
	if isBusy(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("acquiring lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquiring lock: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	l.token = token
	return true, nil
}

// Release implements Lock.
func (l *SQLiteLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.token == "" {
		return nil
	}
	token := l.token
	l.token = ""

	if _, err := l.db.ExecContext(ctx,
		`DELETE FROM exclusion_locks WHERE name = ? AND token = ?`, l.name, token); err != nil {
		return fmt.Errorf("releasing lock: %w", err)
	}
	return nil
}

// IsHeld implements Lock.
func (l *SQLiteLock) IsHeld(ctx context.Context) (bool, error) {
	st, err := l.Status(ctx)
	if err != nil {
		return false, err
	}
	return st.Held, nil
}

// Touch implements Lock.
func (l *SQLiteLock) Touch(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.token == "" {
		return ErrNotHeld
	}
	res, err := l.db.ExecContext(ctx,
		`UPDATE exclusion_locks SET touched_at = ? WHERE name = ? AND token = ?`,
		l.now().UnixNano(), l.name, l.token)
	if err != nil {
		return fmt.Errorf("touching lock: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotHeld
	}
	return nil
}

// Status implements Lock.
func (l *SQLiteLock) Status(ctx context.Context) (Status, error) {
	var (
		token, holder string
		touched       int64
	)
	err := l.db.QueryRowContext(ctx,
		`SELECT token, holder, touched_at FROM exclusion_locks WHERE name = ?`, l.name).
		Scan(&token, &holder, &touched)
	if errors.Is(err, sql.ErrNoRows) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("reading lock: %w", err)
	}

	l.mu.Lock()
	mine := l.token != "" && l.token == token
	l.mu.Unlock()

	touchedAt := time.Unix(0, touched)
	stale := l.now().Sub(touchedAt) > l.staleAfter
	return Status{
		Held:      !stale,
		Stale:     stale,
		Holder:    holder,
		Token:     token,
		TouchedAt: touchedAt,
		Mine:      mine,
	}, nil
}

// Break implements Lock.
func (l *SQLiteLock) Break(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.token = ""
	if _, err := l.db.ExecContext(ctx, `DELETE FROM exclusion_locks WHERE name = ?`, l.name); err != nil {
		return fmt.Errorf("breaking lock: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (l *SQLiteLock) Close() error {
	return l.db.Close()
}

// isBusy reports whether err is SQLite's busy or locked condition.
func isBusy(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}
