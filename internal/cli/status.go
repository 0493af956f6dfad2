package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/runnerr0/tabage/internal/age"
	"github.com/runnerr0/tabage/internal/registry"
	"github.com/runnerr0/tabage/internal/stats"
	"github.com/runnerr0/tabage/internal/storage"
	"github.com/runnerr0/tabage/internal/tracker"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version           string            `json:"version"`
	DatabasePath      string            `json:"database_path"`
	DatabaseSizeBytes int64             `json:"database_size_bytes"`
	SchemaVersion     int               `json:"schema_version"`
	Registry          string            `json:"registry"`
	InstalledAt       string            `json:"installed_at,omitempty"`
	Summary           stats.Summary     `json:"summary"`
	Settings          registry.Settings `json:"settings"`
	DaemonRunning     bool              `json:"daemon_running"`
}

// statusTarget is where status looks for the database file and the daemon.
type statusTarget struct {
	DBPath        string
	SchemaVersion int
	DaemonAddr    string
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	sess, err := openSession(c.globals)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx := context.Background()
	schema, err := storage.NewMigrationRunner(sess.db).CurrentVersion(ctx)
	if err != nil {
		return err
	}

	target := statusTarget{DBPath: sess.dbPath, SchemaVersion: schema, DaemonAddr: sess.cfg.Daemon.Addr()}
	return c.executeWithTracker(ctx, sess.tracker, target)
}

// executeWithTracker runs status against a provided tracker (for testing).
func (c *StatusCommand) executeWithTracker(ctx context.Context, tr *tracker.Tracker, target statusTarget) error {
	state, err := tr.State(ctx)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}
	settings, err := tr.Settings(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	now := tr.Now()
	summary := stats.Summarize(state, now)
	dbSize := getDatabaseSize(target.DBPath)
	daemonRunning := checkDaemon(target.DaemonAddr)

	if c.globals != nil && c.globals.JSON {
		out := statusJSON{
			Version:           c.version,
			DatabasePath:      target.DBPath,
			DatabaseSizeBytes: dbSize,
			SchemaVersion:     target.SchemaVersion,
			Registry:          tr.Name(),
			Summary:           summary,
			Settings:          settings,
			DaemonRunning:     daemonRunning,
		}
		if state.InstalledAt != nil {
			out.InstalledAt = state.InstalledAt.UTC().Format(time.RFC3339)
		}
		return printJSON(out)
	}

	fmt.Println("Tabage Status")
	fmt.Println("=============")
	fmt.Printf("Version:       %s\n", c.version)
	fmt.Printf("Database:      %s (%s)\n", target.DBPath, humanize.Bytes(uint64(dbSize)))
	fmt.Printf("Schema:        v%d\n", target.SchemaVersion)
	fmt.Printf("Registry:      %s\n", tr.Name())
	fmt.Printf("Tabs:          %s (peak %s)\n", humanize.Comma(int64(summary.Count)), humanize.Comma(int64(summary.Peak)))
	fmt.Printf("Progress:      %d%% down from peak\n", summary.Progress)
	if !summary.LastUpdated.IsZero() {
		fmt.Printf("Last updated:  %s\n", relTime(summary.LastUpdated, now))
	}
	if state.InstalledAt != nil {
		fmt.Printf("Installed:     %s\n", state.InstalledAt.Local().Format(registry.DateLayout))
	} else {
		fmt.Println("Installed:     not yet")
	}

	fmt.Println()
	fmt.Println("Age Buckets:")
	for _, b := range age.Buckets {
		fmt.Printf("  %s %s\n", bucketColor(b).Sprintf("%-10s", b), humanize.Comma(int64(summary.Buckets.Get(b))))
	}

	if summary.Oldest != nil {
		o := summary.Oldest
		fmt.Println()
		note := ""
		if o.Inferred {
			note = " (from URL)"
		}
		fmt.Printf("Oldest:        %s, %s%s\n", truncate(o.Record.Title, 50), colorAge(o.Age), note)
	}

	fmt.Println()
	fmt.Printf("Settings:      %s\n", settings)
	if daemonRunning {
		fmt.Println("Daemon:        running")
	} else {
		fmt.Println("Daemon:        not running")
	}

	return nil
}

// getDatabaseSize returns the database file size in bytes, or 0 when the
// database has no file.
func getDatabaseSize(dbPath string) int64 {
	if info, err := os.Stat(dbPath); err == nil {
		return info.Size()
	}
	return 0
}

// checkDaemon attempts an HTTP GET to the daemon health endpoint.
// Returns true if the daemon responds within 1 second.
func checkDaemon(addr string) bool {
	if addr == "" {
		return false
	}
	client := &http.Client{Timeout: 1 * time.Second}
	resp, err := client.Get("http://" + addr + "/healthz")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
