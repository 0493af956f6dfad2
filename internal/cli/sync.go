package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/runnerr0/tabage/internal/age"
	"github.com/runnerr0/tabage/internal/registry"
	"github.com/runnerr0/tabage/internal/stats"
	"github.com/runnerr0/tabage/internal/tracker"
)

// syncJSON is the JSON output of install and sync.
type syncJSON struct {
	Count   int                `json:"count"`
	Peak    int                `json:"peakTabCount"`
	Buckets stats.BucketCounts `json:"buckets"`
}

// Execute implements the go-flags Commander interface for InstallCommand.
func (c *InstallCommand) Execute(args []string) error {
	sess, err := openSession(c.globals)
	if err != nil {
		return err
	}
	defer sess.Close()

	return c.executeWithTracker(context.Background(), sess.tracker)
}

// executeWithTracker runs install capture against a provided tracker (for testing).
func (c *InstallCommand) executeWithTracker(ctx context.Context, tr *tracker.Tracker) error {
	var strategy registry.CaptureStrategy
	if c.Strategy != "" {
		s, err := registry.ParseCaptureStrategy(c.Strategy)
		if err != nil {
			return fmt.Errorf("invalid --strategy value %q: %w", c.Strategy, err)
		}
		strategy = s
	}

	live, err := readLiveTabs(c.File, stdinOr(c.stdin))
	if err != nil {
		return err
	}

	state, err := tr.Install(ctx, live, strategy)
	if err != nil {
		return err
	}

	return printSyncResult(c.globals, "Captured", state, tr)
}

// Execute implements the go-flags Commander interface for SyncCommand.
func (c *SyncCommand) Execute(args []string) error {
	sess, err := openSession(c.globals)
	if err != nil {
		return err
	}
	defer sess.Close()

	return c.executeWithTracker(context.Background(), sess.tracker)
}

// executeWithTracker reconciles against a provided tracker (for testing).
func (c *SyncCommand) executeWithTracker(ctx context.Context, tr *tracker.Tracker) error {
	var mode registry.UnseenMode
	if c.Mode != "" {
		m, err := registry.ParseUnseenMode(c.Mode)
		if err != nil {
			return fmt.Errorf("invalid --mode value %q: %w", c.Mode, err)
		}
		mode = m
	}

	live, err := readLiveTabs(c.File, stdinOr(c.stdin))
	if err != nil {
		return err
	}

	state, err := tr.Sync(ctx, live, mode)
	if err != nil {
		return err
	}

	return printSyncResult(c.globals, "Synced", state, tr)
}

func printSyncResult(globals *GlobalFlags, verb string, state registry.State, tr *tracker.Tracker) error {
	buckets := stats.CountBuckets(state.Registry, tr.Now())

	if globals != nil && globals.JSON {
		return printJSON(syncJSON{Count: state.Registry.Count, Peak: state.Peak, Buckets: buckets})
	}

	fmt.Printf("%s %s tabs (peak %s)\n", verb,
		humanize.Comma(int64(state.Registry.Count)), humanize.Comma(int64(state.Peak)))
	for _, b := range age.Buckets {
		if n := buckets.Get(b); n > 0 {
			fmt.Printf("  %s %d\n", bucketColor(b).Sprintf("%-10s", b), n)
		}
	}
	return nil
}

func stdinOr(r io.Reader) io.Reader {
	if r == nil {
		return os.Stdin
	}
	return r
}
