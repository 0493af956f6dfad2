package cli

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/runnerr0/tabage/internal/age"
	"github.com/runnerr0/tabage/internal/config"
	"github.com/runnerr0/tabage/internal/registry"
	"github.com/runnerr0/tabage/internal/storage"
	"github.com/runnerr0/tabage/internal/tracker"
)

// session is everything a command needs to reach the configured registry.
type session struct {
	cfg     *config.Config
	dbPath  string
	logger  *slog.Logger
	db      *sql.DB
	store   *storage.SQLiteStore
	tracker *tracker.Tracker
	logFile io.Closer
}

// openSession loads the config, sets up logging, and opens the store.
func openSession(globals *GlobalFlags) (*session, error) {
	cfg, err := loadConfig(globals)
	if err != nil {
		return nil, err
	}

	verbose := globals != nil && globals.Verbose
	logger, logFile, err := newLogger(cfg, verbose)
	if err != nil {
		return nil, err
	}

	dbPath, err := cfg.Storage.DBPath()
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("resolve db path: %w", err)
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			logFile.Close()
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := storage.Open(cfg.Storage.Driver, dbPath)
	if err != nil {
		logFile.Close()
		return nil, err
	}
	store := storage.NewSQLiteStore(db)

	tr := tracker.New(store, cfg.Storage.Registry, cfg.Tracking.Settings(), tracker.WithLogger(logger))
	logger.Debug("session opened", "db", dbPath, "driver", cfg.Storage.Driver, "registry", cfg.Storage.Registry)

	return &session{
		cfg:     cfg,
		dbPath:  dbPath,
		logger:  logger,
		db:      db,
		store:   store,
		tracker: tr,
		logFile: logFile,
	}, nil
}

// Close releases the store, the database, and the log file.
func (s *session) Close() error {
	s.store.Close()
	err := s.db.Close()
	s.logFile.Close()
	return err
}

// loadConfig reads --config if given, otherwise the default config,
// creating it on first run.
func loadConfig(globals *GlobalFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if globals != nil && globals.Config != "" {
		cfg, err = config.LoadOrCreateAt(globals.Config)
	} else {
		cfg, err = config.LoadOrCreate()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newLogger builds the slog logger described by the logging section.
// verbose forces debug level.
func newLogger(cfg *config.Config, verbose bool) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
		return nil, nil, fmt.Errorf("logging.level: %w", err)
	}
	if verbose {
		level = slog.LevelDebug
	}

	var (
		w      io.Writer = os.Stderr
		closer io.Closer = nopCloser{}
	)
	path, err := cfg.LogPath()
	if err != nil {
		return nil, nil, fmt.Errorf("resolve log path: %w", err)
	}
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w, closer = f, f
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if cfg.Logging.Format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h), closer, nil
}

// readJSONInput decodes JSON from path, or from stdin when path is "-".
func readJSONInput(path string, stdin io.Reader, v any) error {
	var r io.Reader = stdin
	if path != "-" && path != "" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}
	if r == nil {
		r = os.Stdin
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decode input: %w", err)
	}
	return nil
}

// readLiveTabs reads a JSON array of browser tabs.
func readLiveTabs(path string, stdin io.Reader) ([]registry.LiveTab, error) {
	var tabs []registry.LiveTab
	if err := readJSONInput(path, stdin, &tabs); err != nil {
		return nil, err
	}
	return tabs, nil
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// bucketColor is the terminal color used for a bucket.
func bucketColor(b age.Bucket) *color.Color {
	switch b {
	case age.Today, age.Recent:
		return color.New(color.FgGreen)
	case age.Medium:
		return color.New(color.FgYellow)
	case age.Old:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgHiBlack)
	}
}

// colorAge renders an age label in its bucket's color.
func colorAge(c age.Classification) string {
	return bucketColor(c.Bucket).Sprint(c.Label)
}

// relTime formats t relative to now, e.g. "3 hours ago".
func relTime(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
