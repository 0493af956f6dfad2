package tracker

import (
	"bytes"
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/tabage/internal/age"
	"github.com/runnerr0/tabage/internal/registry"
	"github.com/runnerr0/tabage/internal/stats"
	"github.com/runnerr0/tabage/internal/storage"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestTracker(t *testing.T, opts ...Option) (*Tracker, *fakeClock) {
	t.Helper()
	db, err := storage.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clock := &fakeClock{t: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.Now), WithRand(rand.New(rand.NewSource(7)))}, opts...)
	return New(storage.NewSQLiteStore(db), "default", registry.DefaultSettings(), opts...), clock
}

func TestTracker_LifecycleEvents(t *testing.T) {
	tr, clock := newTestTracker(t)
	ctx := context.Background()

	_, err := tr.TabCreated(ctx, registry.LiveTab{ID: 1, URL: "https://go.dev", Title: "Go"})
	require.NoError(t, err)
	clock.Advance(time.Hour)
	_, err = tr.TabCreated(ctx, registry.LiveTab{ID: 2, URL: "https://pkg.go.dev"})
	require.NoError(t, err)

	clock.Advance(time.Hour)
	s, err := tr.TabUpdated(ctx, 1, registry.TabChange{Title: "The Go Programming Language"})
	require.NoError(t, err)
	assert.Equal(t, "The Go Programming Language", s.Registry.Tabs[1].Title)
	assert.True(t, s.Registry.Tabs[1].CreatedAt.Equal(clock.Now().Add(-2*time.Hour)), "update keeps createdAt")

	s, err = tr.TabRemoved(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Registry.Count)
	assert.Equal(t, 2, s.Peak)

	stored, err := tr.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, s.Registry.Count, stored.Registry.Count)
	assert.Equal(t, 2, stored.Peak)
}

func TestTracker_SyncUsesStoredUnseenMode(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	settings := registry.DefaultSettings()
	settings.UnseenTabs = registry.UnseenPreexisting
	_, err := tr.UpdateSettings(ctx, settings)
	require.NoError(t, err)

	s, err := tr.Sync(ctx, []registry.LiveTab{
		{ID: 4, URL: "https://blog.example.com/2024/02/03/post"},
	}, "")
	require.NoError(t, err)

	r := s.Registry.Tabs[4]
	assert.False(t, r.IsVerified, "preexisting tabs are never verified")
	assert.Equal(t, registry.SourceURL, r.DateSource)
	require.NotNil(t, r.CreatedAt)
	assert.Equal(t, time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC), *r.CreatedAt)
}

func TestTracker_SyncExplicitModeWins(t *testing.T) {
	tr, clock := newTestTracker(t)
	ctx := context.Background()

	s, err := tr.Sync(ctx, []registry.LiveTab{{ID: 4, URL: "https://example.com"}}, registry.UnseenNew)
	require.NoError(t, err)
	r := s.Registry.Tabs[4]
	assert.True(t, r.IsVerified)
	assert.True(t, r.CreatedAt.Equal(clock.Now()))
	assert.Len(t, s.History, 1)
}

func TestTracker_SyncRejectsDuplicates(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	_, err := tr.Sync(ctx, []registry.LiveTab{{ID: 1}, {ID: 1}}, registry.UnseenNew)
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrDuplicateTabID)

	s, err := tr.State(ctx)
	require.NoError(t, err)
	assert.True(t, s.Empty(), "rejected snapshot must not be persisted")
}

func TestTracker_InstallOnce(t *testing.T) {
	tr, clock := newTestTracker(t)
	ctx := context.Background()

	live := []registry.LiveTab{
		{ID: 1, URL: "https://news.example.com/2025/06/01/story"},
		{ID: 2, URL: "https://example.com/about"},
	}
	s, err := tr.Install(ctx, live, "")
	require.NoError(t, err)
	require.NotNil(t, s.InstalledAt)
	assert.True(t, s.InstalledAt.Equal(clock.Now()))
	assert.Equal(t, registry.SourceURL, s.Registry.Tabs[1].DateSource)
	assert.Nil(t, s.Registry.Tabs[2].CreatedAt)
	for _, r := range s.Registry.Tabs {
		assert.False(t, r.IsVerified)
	}

	counts := stats.CountBuckets(s.Registry, clock.Now())
	assert.Equal(t, 2, counts.Get(age.Unknown), "install-time dates are never counted as known")

	_, err = tr.Install(ctx, live, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrNotEmpty)
}

func TestTracker_InstallHeuristicIsSeeded(t *testing.T) {
	live := make([]registry.LiveTab, 10)
	for i := range live {
		live[i] = registry.LiveTab{ID: i + 1, URL: "https://example.com"}
	}

	run := func() registry.State {
		tr, _ := newTestTracker(t)
		s, err := tr.Install(context.Background(), live, registry.CaptureHeuristic)
		require.NoError(t, err)
		return s
	}

	a, b := run(), run()
	for id, r := range a.Registry.Tabs {
		require.NotNil(t, r.CreatedAt)
		assert.Equal(t, registry.SourceHeuristic, r.DateSource)
		assert.True(t, r.CreatedAt.Equal(*b.Registry.Tabs[id].CreatedAt), "tab %d", id)
	}
}

func TestTracker_Startup(t *testing.T) {
	tr, clock := newTestTracker(t)
	ctx := context.Background()
	live := []registry.LiveTab{{ID: 1, URL: "https://example.com"}}

	s, err := tr.Startup(ctx, live)
	require.NoError(t, err)
	require.NotNil(t, s.InstalledAt, "first startup installs")
	assert.False(t, s.Registry.Tabs[1].IsVerified)

	clock.Advance(time.Hour)
	live = append(live, registry.LiveTab{ID: 2, URL: "https://example.org"})
	s, err = tr.Startup(ctx, live)
	require.NoError(t, err)
	assert.False(t, s.Registry.Tabs[1].IsVerified, "existing record untouched")
	assert.True(t, s.Registry.Tabs[2].IsVerified, "new tab seen after install is verified")
}

// racingStore lets another writer commit just before the first Update.
type racingStore struct {
	storage.Store
	once   sync.Once
	before func()
}

func (s *racingStore) Update(ctx context.Context, name string, fn storage.UpdateFunc) (registry.State, error) {
	s.once.Do(s.before)
	return s.Store.Update(ctx, name, fn)
}

func TestTracker_StartupReconcilesWhenEventWinsRace(t *testing.T) {
	base, clock := newTestTracker(t)
	ctx := context.Background()

	store := &racingStore{Store: base.store}
	store.before = func() {
		_, err := base.TabCreated(ctx, registry.LiveTab{ID: 9, URL: "https://example.com/nine"})
		require.NoError(t, err)
	}
	tr := New(store, "default", registry.DefaultSettings(), WithClock(clock.Now))

	s, err := tr.Startup(ctx, []registry.LiveTab{
		{ID: 9, URL: "https://example.com/nine"},
		{ID: 10, URL: "https://example.com/ten"},
	})
	require.NoError(t, err)
	assert.Nil(t, s.InstalledAt, "a tracked registry is reconciled, not captured")
	assert.Equal(t, 2, s.Registry.Count)
	assert.True(t, s.Registry.Tabs[9].IsVerified, "event record kept")
	assert.Contains(t, s.Registry.Tabs, 10)
}

func TestTracker_SettingsFallBackToDefaults(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	s, err := tr.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, registry.DefaultSettings(), s)

	bad := s
	bad.BadgeDisplay = "blink"
	_, err = tr.UpdateSettings(ctx, bad)
	require.Error(t, err)
	assert.True(t, registry.IsValidation(err))
}

func TestTracker_Purge(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	_, err := tr.TabCreated(ctx, registry.LiveTab{ID: 1})
	require.NoError(t, err)
	require.NoError(t, tr.Purge(ctx))

	s, err := tr.State(ctx)
	require.NoError(t, err)
	assert.True(t, s.Empty())
	assert.Equal(t, 0, s.Peak)
}

func TestTracker_LogsUpdates(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	tr, _ := newTestTracker(t, WithLogger(logger))
	ctx := context.Background()

	_, err := tr.TabCreated(ctx, registry.LiveTab{ID: 1})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "op=created")
	assert.Contains(t, buf.String(), "tabs=1")

	_, err = tr.TabRemoved(ctx, -3)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "level=WARN")
}

func TestTracker_ImportReplacesState(t *testing.T) {
	tr, clock := newTestTracker(t)
	ctx := context.Background()

	_, err := tr.TabCreated(ctx, registry.LiveTab{ID: 9})
	require.NoError(t, err)

	created := clock.Now().Add(-72 * time.Hour)
	s, err := tr.Import(ctx, registry.ExportData{
		TabData: registry.ExportedTabs{Tabs: []registry.TabRecord{
			{ID: 1, URL: "https://example.com", Title: "Example", CreatedAt: &created, IsVerified: true},
		}},
		TabHistory:   []registry.HistoryEntry{{Date: "2025-06-14", Count: 6}},
		PeakTabCount: 6,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Registry.Count)
	assert.Equal(t, 6, s.Peak)

	stored, err := tr.State(ctx)
	require.NoError(t, err)
	_, stillThere := stored.Registry.Tabs[9]
	assert.False(t, stillThere)
	assert.Equal(t, registry.SourceObserved, stored.Registry.Tabs[1].DateSource)
	assert.Equal(t, []registry.HistoryEntry{{Date: "2025-06-14", Count: 6}}, stored.History)
}

func TestTracker_ConcurrentStateReadsAreIndependent(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()
	_, err := tr.TabCreated(ctx, registry.LiveTab{ID: 1, URL: "https://go.dev"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := tr.State(ctx)
			if err != nil {
				errs <- err
				return
			}
			// Each caller owns its copy.
			s.Registry.Tabs[100+i] = registry.TabRecord{ID: 100 + i}
			if len(s.Registry.Tabs) != 2 {
				errs <- assert.AnError
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	s, err := tr.State(ctx)
	require.NoError(t, err)
	assert.Len(t, s.Registry.Tabs, 1)
}
