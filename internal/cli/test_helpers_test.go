package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/tabage/internal/registry"
	"github.com/runnerr0/tabage/internal/storage"
	"github.com/runnerr0/tabage/internal/tracker"
)

// testNow is the fixed clock used by CLI tests.
var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

// newTestTracker returns a tracker over a migrated in-memory database with
// the clock fixed at testNow.
func newTestTracker(t *testing.T) *tracker.Tracker {
	t.Helper()
	db, err := storage.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return tracker.New(storage.NewSQLiteStore(db), "default", registry.DefaultSettings(),
		tracker.WithClock(func() time.Time { return testNow }),
		tracker.WithRand(rand.New(rand.NewSource(1))),
	)
}

// tabsJSON encodes live tabs the way the browser reports them.
func tabsJSON(t *testing.T, tabs ...registry.LiveTab) *bytes.Reader {
	t.Helper()
	b, err := json.Marshal(tabs)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

// sandbox points HOME at a temp dir and returns a config path inside it,
// so commands run through RunWithArgs never touch the real home.
func sandbox(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return filepath.Join(home, "tabage", "config.yaml")
}

func sampleTabs() []registry.LiveTab {
	return []registry.LiveTab{
		{ID: 1, URL: "https://blog.example.com/2025/05/01/post", Title: "May post"},
		{ID: 2, URL: "https://go.dev/doc", Title: "Go docs"},
		{ID: 3, URL: "https://news.example.com/2025/06/14/story", Title: "Yesterday's story"},
	}
}

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// writeFile writes content to path, creating parent directories.
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}
