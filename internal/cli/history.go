package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/runnerr0/tabage/internal/registry"
	"github.com/runnerr0/tabage/internal/stats"
	"github.com/runnerr0/tabage/internal/tracker"
	"github.com/runnerr0/tabage/internal/tui"
)

// historyJSON is the JSON output of the history command.
type historyJSON struct {
	History  []registry.HistoryEntry `json:"history"`
	Peak     int                     `json:"peakTabCount"`
	Progress int                     `json:"progress"`
}

// oldTabsJSON is the JSON output of the old-tabs command.
type oldTabsJSON struct {
	stats.OldTabs
	Notify bool `json:"notify"`
}

// Execute implements the go-flags Commander interface for HistoryCommand.
func (c *HistoryCommand) Execute(args []string) error {
	sess, err := openSession(c.globals)
	if err != nil {
		return err
	}
	defer sess.Close()

	return c.executeWithTracker(context.Background(), sess.tracker)
}

// executeWithTracker prints history from a provided tracker (for testing).
func (c *HistoryCommand) executeWithTracker(ctx context.Context, tr *tracker.Tracker) error {
	if c.Points < 0 {
		return fmt.Errorf("invalid --points value %d", c.Points)
	}

	state, err := tr.State(ctx)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}

	series := stats.HistorySeries(state.History, c.Points)
	progress := stats.ProgressToward(state.Peak, state.Registry.Count)

	if c.globals != nil && c.globals.JSON {
		return printJSON(historyJSON{History: series, Peak: state.Peak, Progress: progress})
	}

	if len(series) == 0 {
		fmt.Println("No history yet.")
		return nil
	}

	maxCount := 0
	for _, e := range series {
		maxCount = max(maxCount, e.Count)
	}
	for _, e := range series {
		bar := 0
		if maxCount > 0 {
			bar = e.Count * 40 / maxCount
		}
		fmt.Printf("%s  %6s  %s\n", e.Date, humanize.Comma(int64(e.Count)), strings.Repeat("#", bar))
	}
	fmt.Println()
	fmt.Printf("Trend:     %s\n", tui.Sparkline(series))
	fmt.Printf("Peak:      %s\n", humanize.Comma(int64(state.Peak)))
	fmt.Printf("Progress:  %d%% down from peak\n", progress)
	return nil
}

// Execute implements the go-flags Commander interface for OldTabsCommand.
func (c *OldTabsCommand) Execute(args []string) error {
	sess, err := openSession(c.globals)
	if err != nil {
		return err
	}
	defer sess.Close()

	return c.executeWithTracker(context.Background(), sess.tracker)
}

// executeWithTracker reports old tabs from a provided tracker (for testing).
func (c *OldTabsCommand) executeWithTracker(ctx context.Context, tr *tracker.Tracker) error {
	if c.Days < 0 {
		return fmt.Errorf("invalid --days value %d", c.Days)
	}

	settings, err := tr.Settings(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	state, err := tr.State(ctx)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}

	threshold := settings.OldTabThresholdDays
	if c.Days > 0 {
		threshold = c.Days
	}
	report := stats.OldTabReport(state.Registry, threshold, tr.Now())

	if c.globals != nil && c.globals.JSON {
		return printJSON(oldTabsJSON{OldTabs: report, Notify: settings.NotifyOldTabs && report.Count > 0})
	}

	if report.Count == 0 {
		fmt.Printf("No tabs older than %d days.\n", threshold)
		return nil
	}
	fmt.Printf("%s tabs older than %d days\n", humanize.Comma(int64(report.Count)), threshold)
	if report.Oldest != nil {
		fmt.Printf("Oldest: %s (%s)\n", truncate(report.Oldest.Record.Title, 60), colorAge(report.Oldest.Age))
	}
	return nil
}
