package cli

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/tabage/internal/age"
	"github.com/runnerr0/tabage/internal/registry"
)

func TestInstall_FromStdin(t *testing.T) {
	tr := newTestTracker(t)

	cmd := &InstallCommand{File: "-", globals: &GlobalFlags{}, stdin: tabsJSON(t, sampleTabs()...)}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithTracker(context.Background(), tr))
	})

	assert.Contains(t, output, "Captured 3 tabs (peak 3)")
	assert.Regexp(t, `unknown\s+3\n`, output)

	state, err := tr.State(context.Background())
	require.NoError(t, err)
	require.NotNil(t, state.InstalledAt)
	assert.Equal(t, registry.SourceURL, state.Registry.Tabs[1].DateSource, "default strategy is url_inference")
	assert.False(t, state.Registry.Tabs[1].IsVerified)
}

func TestInstall_FromFileWithStrategy(t *testing.T) {
	tr := newTestTracker(t)
	path := filepath.Join(t.TempDir(), "tabs.json")
	b, err := json.Marshal(sampleTabs())
	require.NoError(t, err)
	writeFile(t, path, string(b))

	cmd := &InstallCommand{File: path, Strategy: "unknown", globals: &GlobalFlags{JSON: true}}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithTracker(context.Background(), tr))
	})

	var result syncJSON
	require.NoError(t, json.Unmarshal([]byte(output), &result))
	assert.Equal(t, 3, result.Count)
	assert.Equal(t, 3, result.Buckets.Unknown)

	state, err := tr.State(context.Background())
	require.NoError(t, err)
	for _, r := range state.Registry.Tabs {
		assert.Nil(t, r.CreatedAt)
	}
}

func TestInstall_Errors(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	cmd := &InstallCommand{File: "-", Strategy: "guess", globals: &GlobalFlags{}, stdin: tabsJSON(t)}
	err := cmd.executeWithTracker(ctx, tr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --strategy")

	cmd = &InstallCommand{File: "-", globals: &GlobalFlags{}, stdin: strings.NewReader("{not json")}
	err = cmd.executeWithTracker(ctx, tr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode input")

	cmd = &InstallCommand{File: filepath.Join(t.TempDir(), "missing.json"), globals: &GlobalFlags{}}
	err = cmd.executeWithTracker(ctx, tr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open input")

	_, err = tr.TabCreated(ctx, registry.LiveTab{ID: 9, URL: "https://example.com"})
	require.NoError(t, err)
	cmd = &InstallCommand{File: "-", globals: &GlobalFlags{}, stdin: tabsJSON(t, sampleTabs()...)}
	err = cmd.executeWithTracker(ctx, tr)
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrNotEmpty)
}

func TestSync_Modes(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	cmd := &SyncCommand{File: "-", globals: &GlobalFlags{}, stdin: tabsJSON(t, sampleTabs()...)}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithTracker(ctx, tr))
	})
	assert.Contains(t, output, "Synced 3 tabs (peak 3)")

	state, err := tr.State(ctx)
	require.NoError(t, err)
	assert.True(t, state.Registry.Tabs[1].IsVerified, "unseen tabs are new by default")

	live := append(sampleTabs()[:1], registry.LiveTab{ID: 7, URL: "https://blog.example.com/2024/01/10/x", Title: "Seven"})
	cmd = &SyncCommand{File: "-", Mode: "preexisting", globals: &GlobalFlags{}, stdin: tabsJSON(t, live...)}
	output = captureOutput(t, func() {
		require.NoError(t, cmd.executeWithTracker(ctx, tr))
	})
	assert.Contains(t, output, "Synced 2 tabs (peak 3)")

	state, err = tr.State(ctx)
	require.NoError(t, err)
	seven := state.Registry.Tabs[7]
	assert.False(t, seven.IsVerified)
	assert.Equal(t, registry.SourceURL, seven.DateSource)

	cmd = &SyncCommand{File: "-", Mode: "later", globals: &GlobalFlags{}, stdin: tabsJSON(t)}
	err = cmd.executeWithTracker(ctx, tr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --mode")
}

func TestSync_DuplicateIDsRejected(t *testing.T) {
	tr := newTestTracker(t)

	dup := []registry.LiveTab{{ID: 1, URL: "https://a.example"}, {ID: 1, URL: "https://b.example"}}
	cmd := &SyncCommand{File: "-", globals: &GlobalFlags{}, stdin: tabsJSON(t, dup...)}
	err := cmd.executeWithTracker(context.Background(), tr)
	require.Error(t, err)
	assert.True(t, registry.IsValidation(err))
}

func TestTabs_ListAndFilter(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	_, err := tr.Install(ctx, sampleTabs(), registry.CaptureURL)
	require.NoError(t, err)

	cmd := &TabsCommand{Sort: "id", globals: &GlobalFlags{}}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithTracker(ctx, tr))
	})
	assert.Contains(t, output, "May post")
	assert.Contains(t, output, "Go docs")
	assert.Contains(t, output, "https://go.dev/doc")
	assert.Less(t, strings.Index(output, "May post"), strings.Index(output, "Go docs"))

	cmd = &TabsCommand{Sort: "age", Estimated: true, globals: &GlobalFlags{}}
	output = captureOutput(t, func() {
		require.NoError(t, cmd.executeWithTracker(ctx, tr))
	})
	assert.Contains(t, output, "~1 month")
	assert.Contains(t, output, "~Yesterday")
	assert.Less(t, strings.Index(output, "May post"), strings.Index(output, "Yesterday's story"))
	assert.Less(t, strings.Index(output, "Yesterday's story"), strings.Index(output, "Go docs"))

	cmd = &TabsCommand{Sort: "id", Bucket: "old", Estimated: true, globals: &GlobalFlags{JSON: true}}
	output = captureOutput(t, func() {
		require.NoError(t, cmd.executeWithTracker(ctx, tr))
	})
	var rows []tabJSON
	require.NoError(t, json.Unmarshal([]byte(output), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].ID)
	assert.Equal(t, age.Old, rows[0].Age.Bucket)

	cmd = &TabsCommand{Sort: "id", Bucket: "old", globals: &GlobalFlags{}}
	output = captureOutput(t, func() {
		require.NoError(t, cmd.executeWithTracker(ctx, tr))
	})
	assert.Contains(t, output, "No tabs.", "strict buckets keep unverified tabs unknown")
}

func TestTabs_InvalidFlags(t *testing.T) {
	tr := newTestTracker(t)

	err := (&TabsCommand{Sort: "id", Bucket: "ancient", globals: &GlobalFlags{}}).executeWithTracker(context.Background(), tr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --bucket")

	err = (&TabsCommand{Sort: "title", globals: &GlobalFlags{}}).executeWithTracker(context.Background(), tr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --sort")
}

func TestOldest(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	_, err := tr.Install(ctx, sampleTabs(), registry.CaptureURL)
	require.NoError(t, err)

	cmd := &OldestCommand{globals: &GlobalFlags{}}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithTracker(ctx, tr))
	})
	assert.Contains(t, output, "No verified tabs")

	cmd = &OldestCommand{Inferred: true, globals: &GlobalFlags{}}
	output = captureOutput(t, func() {
		require.NoError(t, cmd.executeWithTracker(ctx, tr))
	})
	assert.Contains(t, output, "Oldest tab:  May post")
	assert.Contains(t, output, "Age:         1 month")
	assert.Contains(t, output, "(inferred from URL)")

	cmd = &OldestCommand{Inferred: true, globals: &GlobalFlags{JSON: true}}
	output = captureOutput(t, func() {
		require.NoError(t, cmd.executeWithTracker(ctx, tr))
	})
	var result oldestJSON
	require.NoError(t, json.Unmarshal([]byte(output), &result))
	assert.True(t, result.Found)
	require.NotNil(t, result.Oldest)
	assert.Equal(t, 1, result.Oldest.Record.ID)
	assert.Equal(t, 45, result.Oldest.Age.Days())
}

func TestHistory(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	cmd := &HistoryCommand{globals: &GlobalFlags{}}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithTracker(ctx, tr))
	})
	assert.Contains(t, output, "No history yet.")

	_, err := tr.Import(ctx, registry.ExportData{
		TabHistory: []registry.HistoryEntry{
			{Date: "2025-06-12", Count: 40},
			{Date: "2025-06-13", Count: 30},
			{Date: "2025-06-14", Count: 20},
		},
		PeakTabCount: 40,
	})
	require.NoError(t, err)

	cmd = &HistoryCommand{Points: 2, globals: &GlobalFlags{}}
	output = captureOutput(t, func() {
		require.NoError(t, cmd.executeWithTracker(ctx, tr))
	})
	assert.NotContains(t, output, "2025-06-12")
	assert.Contains(t, output, "2025-06-13      30")
	assert.Contains(t, output, "Peak:      40")

	cmd = &HistoryCommand{globals: &GlobalFlags{JSON: true}}
	output = captureOutput(t, func() {
		require.NoError(t, cmd.executeWithTracker(ctx, tr))
	})
	var result historyJSON
	require.NoError(t, json.Unmarshal([]byte(output), &result))
	assert.Equal(t, 40, result.Peak)
	assert.Equal(t, 100, result.Progress, "an empty registry is all the way down from its peak")
	require.NotEmpty(t, result.History)
	assert.Equal(t, "2025-06-12", result.History[0].Date)

	err = (&HistoryCommand{Points: -1, globals: &GlobalFlags{}}).executeWithTracker(ctx, tr)
	require.Error(t, err)
}

func TestOldTabs(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	_, err := tr.Install(ctx, sampleTabs(), registry.CaptureURL)
	require.NoError(t, err)

	cmd := &OldTabsCommand{globals: &GlobalFlags{}}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithTracker(ctx, tr))
	})
	assert.Contains(t, output, "1 tabs older than 30 days")
	assert.Contains(t, output, "Oldest: May post")

	cmd = &OldTabsCommand{Days: 60, globals: &GlobalFlags{}}
	output = captureOutput(t, func() {
		require.NoError(t, cmd.executeWithTracker(ctx, tr))
	})
	assert.Contains(t, output, "No tabs older than 60 days.")

	cmd = &OldTabsCommand{Days: 1, globals: &GlobalFlags{JSON: true}}
	output = captureOutput(t, func() {
		require.NoError(t, cmd.executeWithTracker(ctx, tr))
	})
	var result oldTabsJSON
	require.NoError(t, json.Unmarshal([]byte(output), &result))
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, 1, result.ThresholdDays)
	assert.True(t, result.Notify)
}

func TestExport_CSV(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	_, err := tr.Install(ctx, sampleTabs(), registry.CaptureURL)
	require.NoError(t, err)
	_, err = tr.TabCreated(ctx, registry.LiveTab{ID: 4, URL: "https://example.com/a,b", Title: `Quote "me"`})
	require.NoError(t, err)

	cmd := &ExportCommand{Format: "csv", Output: "-", globals: &GlobalFlags{}}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithTracker(ctx, tr))
	})

	rows, err := csv.NewReader(strings.NewReader(output)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{"May post", "https://blog.example.com/2025/05/01/post", "2025-05-01T00:00:00Z", "45", "Unverified", "From URL"}, rows[1])
	assert.Equal(t, []string{"Go docs", "https://go.dev/doc", "Unknown", "Unknown", "Unverified", "Unknown"}, rows[2])
	assert.Equal(t, []string{`Quote "me"`, "https://example.com/a,b", "2025-06-15T12:00:00Z", "0", "Verified", "Creation Time"}, rows[4])
}

func TestExport_JSONToFileAndImport(t *testing.T) {
	src := newTestTracker(t)
	ctx := context.Background()
	_, err := src.Install(ctx, sampleTabs(), registry.CaptureURL)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "export.json")
	export := &ExportCommand{Format: "json", Output: path, globals: &GlobalFlags{}}
	output := captureOutput(t, func() {
		require.NoError(t, export.executeWithTracker(ctx, src))
	})
	assert.Empty(t, output, "file exports print nothing to stdout")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var data registry.ExportData
	require.NoError(t, json.Unmarshal(raw, &data))
	assert.Len(t, data.TabData.Tabs, 3)
	assert.Equal(t, 3, data.PeakTabCount)

	dst := newTestTracker(t)
	imp := &ImportCommand{File: path, globals: &GlobalFlags{}}
	output = captureOutput(t, func() {
		require.NoError(t, imp.executeWithTracker(ctx, dst))
	})
	assert.Contains(t, output, "Imported 3 tabs and 1 days of history (peak 3)")

	want, err := src.State(ctx)
	require.NoError(t, err)
	got, err := dst.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, want.Records(), got.Records())
	assert.Equal(t, want.History, got.History)
}

func TestExport_InvalidFormat(t *testing.T) {
	tr := newTestTracker(t)
	err := (&ExportCommand{Format: "xml", Output: "-", globals: &GlobalFlags{}}).executeWithTracker(context.Background(), tr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --format")
}

func TestImport_RejectsInvalidData(t *testing.T) {
	tr := newTestTracker(t)
	in := strings.NewReader(`{"tabData": {"tabs": [{"id": -3, "url": "https://x.example"}]}}`)

	err := (&ImportCommand{File: "-", globals: &GlobalFlags{}, stdin: in}).executeWithTracker(context.Background(), tr)
	require.Error(t, err)
	assert.True(t, registry.IsValidation(err))
	assert.ErrorIs(t, err, registry.ErrInvalidTabID)
}
