package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // driver "sqlite3" (cgo)
	_ "modernc.org/sqlite"          // driver "sqlite" (pure Go)

	"github.com/runnerr0/tabage/internal/registry"
)

// maxUpdateAttempts bounds how often Update retries a lost compare-and-swap.
const maxUpdateAttempts = 5

var (
	// ErrConflict is returned when a registry kept changing underneath
	// Update for maxUpdateAttempts attempts.
	ErrConflict = errors.New("registry modified concurrently")
	// ErrNotFound is returned for a registry name that has never been stored.
	ErrNotFound = errors.New("registry not found")
)

// UpdateFunc derives the next state from the current one. Returning an
// error aborts the update without writing anything.
type UpdateFunc func(prev registry.State) (registry.State, error)

// Store defines the persistence operations for tab registries.
type Store interface {
	Load(ctx context.Context, name string) (registry.State, error)
	Update(ctx context.Context, name string, fn UpdateFunc) (registry.State, error)
	LoadSettings(ctx context.Context, name string, defaults registry.Settings) (registry.Settings, error)
	SaveSettings(ctx context.Context, name string, s registry.Settings) error
	Purge(ctx context.Context, name string) error
	Close() error
}

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	// beforeWrite runs inside the update transaction right before the
	// compare-and-swap. Tests use it to simulate a concurrent writer.
	beforeWrite func(ctx context.Context, tx *sql.Tx) error
}

// Open opens a SQLite database with the named driver ("sqlite3" or
// "sqlite") and applies pending migrations.
func Open(driver, path string) (*sql.DB, error) {
	dsn, err := dataSourceName(driver, path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps in-memory databases coherent and serializes
	// writers within the process.
	db.SetMaxOpenConns(1)

	if err := NewMigrationRunner(db).Run(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func dataSourceName(driver, path string) (string, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	switch driver {
	case "sqlite3":
		return path + sep + "_foreign_keys=on&_busy_timeout=5000", nil
	case "sqlite":
		return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// NewSQLiteStore creates a new SQLiteStore from an already-opened and migrated database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, locks: make(map[string]*sync.Mutex)}
}

// lock returns the in-process mutex for a registry name.
func (s *SQLiteStore) lock(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	return l
}

// Load returns the stored state of a registry, creating an empty one on
// first use.
func (s *SQLiteStore) Load(ctx context.Context, name string) (registry.State, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return registry.State{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := ensureRegistry(ctx, tx, name); err != nil {
		return registry.State{}, err
	}
	state, _, err := loadState(ctx, tx, name)
	if err != nil {
		return registry.State{}, err
	}

	if err := tx.Commit(); err != nil {
		return registry.State{}, fmt.Errorf("commit: %w", err)
	}
	return state, nil
}

// Update atomically replaces a registry's state with fn(current). Updates
// to the same registry are serialized within the process; across processes
// the version column acts as a compare-and-swap token and lost races are
// retried.
func (s *SQLiteStore) Update(ctx context.Context, name string, fn UpdateFunc) (registry.State, error) {
	l := s.lock(name)
	l.Lock()
	defer l.Unlock()

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		next, err := s.tryUpdate(ctx, name, fn)
		if errors.Is(err, ErrConflict) {
			continue
		}
		return next, err
	}
	return registry.State{}, fmt.Errorf("update registry %s: %w", name, ErrConflict)
}

func (s *SQLiteStore) tryUpdate(ctx context.Context, name string, fn UpdateFunc) (registry.State, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return registry.State{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := ensureRegistry(ctx, tx, name); err != nil {
		return registry.State{}, err
	}
	prev, version, err := loadState(ctx, tx, name)
	if err != nil {
		return registry.State{}, err
	}

	next, err := fn(prev.Clone())
	if err != nil {
		return registry.State{}, err
	}
	next.ID, next.Name = prev.ID, prev.Name

	if s.beforeWrite != nil {
		if err := s.beforeWrite(ctx, tx); err != nil {
			return registry.State{}, err
		}
	}

	if err := writeState(ctx, tx, next, version); err != nil {
		return registry.State{}, err
	}

	if err := tx.Commit(); err != nil {
		return registry.State{}, fmt.Errorf("commit: %w", err)
	}
	return next, nil
}

// Purge clears the tabs and history of a registry and resets its counters.
// Settings are kept.
func (s *SQLiteStore) Purge(ctx context.Context, name string) error {
	l := s.lock(name)
	l.Lock()
	defer l.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	id, err := registryID(ctx, tx, name)
	if err != nil {
		return err
	}

	stmts := []string{
		"DELETE FROM tabs WHERE registry_id = ?",
		"DELETE FROM tab_history WHERE registry_id = ?",
		`UPDATE registries
		 SET count = 0, last_updated = NULL, peak_count = 0, installed_at = NULL, version = version + 1
		 WHERE id = ?`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("purge (%s): %w", firstLine(stmt), err)
		}
	}

	return tx.Commit()
}

// Close is a no-op. The underlying *sql.DB is NOT closed; that is the
// caller's responsibility.
func (s *SQLiteStore) Close() error {
	return nil
}

// parseTimestamp tries several common SQLite timestamp formats.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05.999999999-07:00",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp: %s", s)
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
