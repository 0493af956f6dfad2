// Package tracker applies browser tab lifecycle events to a stored
// registry. It owns the clock and the random source so the registry
// transforms stay pure.
package tracker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/runnerr0/tabage/internal/registry"
	"github.com/runnerr0/tabage/internal/storage"
)

// Tracker serializes lifecycle events for one named registry through
// storage.Store.Update.
type Tracker struct {
	store    storage.Store
	name     string
	defaults registry.Settings
	now      func() time.Time
	logger   *slog.Logger

	rngMu sync.Mutex
	rng   registry.Rand

	// loads coalesces concurrent State reads, e.g. the dashboard refresh
	// racing the extension popup.
	loads singleflight.Group
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithRand sets the random source used by heuristic install capture.
func WithRand(r registry.Rand) Option {
	return func(t *Tracker) { t.rng = r }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// New creates a Tracker for the registry called name. defaults seeds
// settings that were never saved.
func New(store storage.Store, name string, defaults registry.Settings, opts ...Option) *Tracker {
	t := &Tracker{
		store:    store,
		name:     name,
		defaults: defaults,
		now:      time.Now,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.rng == nil {
		t.rng = rand.New(rand.NewSource(t.now().UnixNano()))
	}
	return t
}

// Name returns the registry name.
func (t *Tracker) Name() string { return t.name }

// Now returns the tracker's current time.
func (t *Tracker) Now() time.Time { return t.now() }

// State returns the stored registry. Concurrent callers share one load and
// each receive their own copy.
func (t *Tracker) State(ctx context.Context) (registry.State, error) {
	v, err, shared := t.loads.Do(t.name, func() (interface{}, error) {
		return t.store.Load(ctx, t.name)
	})
	if err != nil {
		return registry.State{}, fmt.Errorf("load registry: %w", err)
	}
	s := v.(registry.State)
	if shared {
		s = s.Clone()
	}
	return s, nil
}

// Settings returns the stored settings over the configured defaults.
func (t *Tracker) Settings(ctx context.Context) (registry.Settings, error) {
	s, err := t.store.LoadSettings(ctx, t.name, t.defaults)
	if err != nil {
		return registry.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return s, nil
}

// UpdateSettings validates and stores s.
func (t *Tracker) UpdateSettings(ctx context.Context, s registry.Settings) (registry.Settings, error) {
	if err := t.store.SaveSettings(ctx, t.name, s); err != nil {
		t.logger.Warn("settings rejected", "registry", t.name, "err", err)
		return registry.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	t.logger.Info("settings updated", "registry", t.name, "settings", s.String())
	return s, nil
}

// Sync reconciles the registry against a full snapshot of live tabs. An
// empty mode uses the stored unseen-tab setting.
func (t *Tracker) Sync(ctx context.Context, live []registry.LiveTab, mode registry.UnseenMode) (registry.State, error) {
	if mode == "" {
		s, err := t.Settings(ctx)
		if err != nil {
			return registry.State{}, err
		}
		mode = s.UnseenTabs
	}

	now := t.now()
	return t.update(ctx, "sync", func(prev registry.State) (registry.State, error) {
		return registry.Reconcile(prev, live, now, mode)
	})
}

// Install runs the one-time capture of tabs that predate tracking. An
// empty strategy uses the stored capture setting. It fails with
// registry.ErrNotEmpty once anything is tracked.
func (t *Tracker) Install(ctx context.Context, live []registry.LiveTab, strategy registry.CaptureStrategy) (registry.State, error) {
	if strategy == "" {
		s, err := t.Settings(ctx)
		if err != nil {
			return registry.State{}, err
		}
		strategy = s.CaptureStrategy
	}

	now := t.now()
	return t.update(ctx, "install", func(prev registry.State) (registry.State, error) {
		t.rngMu.Lock()
		defer t.rngMu.Unlock()
		return registry.CaptureInitial(prev, live, now, strategy, t.rng)
	})
}

// Startup handles the browser's initial snapshot: a registry that was
// never installed gets the install capture, anything else is reconciled.
// The choice is made inside the update so a concurrent event cannot turn
// the capture into ErrNotEmpty.
func (t *Tracker) Startup(ctx context.Context, live []registry.LiveTab) (registry.State, error) {
	settings, err := t.Settings(ctx)
	if err != nil {
		return registry.State{}, err
	}

	now := t.now()
	return t.update(ctx, "startup", func(prev registry.State) (registry.State, error) {
		if prev.Empty() && prev.InstalledAt == nil {
			t.rngMu.Lock()
			defer t.rngMu.Unlock()
			return registry.CaptureInitial(prev, live, now, settings.CaptureStrategy, t.rng)
		}
		return registry.Reconcile(prev, live, now, settings.UnseenTabs)
	})
}

// TabCreated records a tab opened while tracking.
func (t *Tracker) TabCreated(ctx context.Context, tab registry.LiveTab) (registry.State, error) {
	now := t.now()
	return t.update(ctx, "created", func(prev registry.State) (registry.State, error) {
		return registry.ApplyCreated(prev, tab, now)
	})
}

// TabRemoved records a closed tab.
func (t *Tracker) TabRemoved(ctx context.Context, id int) (registry.State, error) {
	now := t.now()
	return t.update(ctx, "removed", func(prev registry.State) (registry.State, error) {
		return registry.ApplyRemoved(prev, id, now)
	})
}

// TabUpdated records a URL, title, or favicon change.
func (t *Tracker) TabUpdated(ctx context.Context, id int, change registry.TabChange) (registry.State, error) {
	now := t.now()
	return t.update(ctx, "updated", func(prev registry.State) (registry.State, error) {
		return registry.ApplyUpdated(prev, id, change, now)
	})
}

// Import replaces the tracked tabs and history with an exported blob.
func (t *Tracker) Import(ctx context.Context, data registry.ExportData) (registry.State, error) {
	now := t.now()
	return t.update(ctx, "import", func(prev registry.State) (registry.State, error) {
		return registry.Import(prev, data, now)
	})
}

// Purge clears every tracked tab and the history. Settings are kept.
func (t *Tracker) Purge(ctx context.Context) error {
	if err := t.store.Purge(ctx, t.name); err != nil {
		t.logger.Warn("purge failed", "registry", t.name, "err", err)
		return fmt.Errorf("purge registry: %w", err)
	}
	t.logger.Info("registry purged", "registry", t.name)
	return nil
}

func (t *Tracker) update(ctx context.Context, op string, fn storage.UpdateFunc) (registry.State, error) {
	start := time.Now()
	s, err := t.store.Update(ctx, t.name, fn)
	if err != nil {
		t.logger.Warn("registry update failed", "registry", t.name, "op", op, "err", err)
		return registry.State{}, fmt.Errorf("%s: %w", op, err)
	}
	t.logger.Debug("registry updated",
		"registry", t.name,
		"op", op,
		"tabs", s.Registry.Count,
		"peak", s.Peak,
		"duration", time.Since(start),
	)
	return s, nil
}
