package cli

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/runnerr0/tabage/internal/age"
	"github.com/runnerr0/tabage/internal/registry"
	"github.com/runnerr0/tabage/internal/tracker"
)

var csvHeader = []string{"Title", "URL", "Created At", "Age (Days)", "Age Status", "Date Source"}

// Execute implements the go-flags Commander interface for ExportCommand.
func (c *ExportCommand) Execute(args []string) error {
	sess, err := openSession(c.globals)
	if err != nil {
		return err
	}
	defer sess.Close()

	return c.executeWithTracker(context.Background(), sess.tracker)
}

// executeWithTracker exports from a provided tracker (for testing).
func (c *ExportCommand) executeWithTracker(ctx context.Context, tr *tracker.Tracker) error {
	if c.Format != "csv" && c.Format != "json" {
		return fmt.Errorf("invalid --format value %q: want csv or json", c.Format)
	}

	state, err := tr.State(ctx)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}

	var w io.Writer = os.Stdout
	if c.Output != "" && c.Output != "-" {
		f, err := os.Create(c.Output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}

	if c.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(registry.Export(state)); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
	} else if err := writeCSV(w, state, tr.Now()); err != nil {
		return fmt.Errorf("write export: %w", err)
	}

	if w != os.Stdout {
		fmt.Fprintf(os.Stderr, "Exported %s tabs to %s\n", humanize.Comma(int64(state.Registry.Count)), c.Output)
	}
	return nil
}

// writeCSV writes one row per tracked tab, ordered by tab id.
func writeCSV(w io.Writer, state registry.State, now time.Time) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range state.Records() {
		if err := cw.Write(csvRow(r, now)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvRow(r registry.TabRecord, now time.Time) []string {
	createdAt, days := "Unknown", "Unknown"
	if r.CreatedAt != nil {
		createdAt = r.CreatedAt.UTC().Format(time.RFC3339)
		if c := age.Estimate(*r.CreatedAt, now); c.Bucket != age.Unknown {
			days = strconv.Itoa(c.Days())
		}
	}

	status := "Unverified"
	if r.IsVerified {
		status = "Verified"
	}

	return []string{r.Title, r.URL, createdAt, days, status, dateSourceLabel(r.DateSource)}
}

func dateSourceLabel(s registry.DateSource) string {
	switch s {
	case registry.SourceObserved:
		return "Creation Time"
	case registry.SourceURL:
		return "From URL"
	case registry.SourceHeuristic:
		return "Estimated"
	default:
		return "Unknown"
	}
}

// Execute implements the go-flags Commander interface for ImportCommand.
func (c *ImportCommand) Execute(args []string) error {
	sess, err := openSession(c.globals)
	if err != nil {
		return err
	}
	defer sess.Close()

	return c.executeWithTracker(context.Background(), sess.tracker)
}

// executeWithTracker imports into a provided tracker (for testing).
func (c *ImportCommand) executeWithTracker(ctx context.Context, tr *tracker.Tracker) error {
	var data registry.ExportData
	if err := readJSONInput(c.File, stdinOr(c.stdin), &data); err != nil {
		return err
	}

	state, err := tr.Import(ctx, data)
	if err != nil {
		return err
	}

	if c.globals != nil && c.globals.JSON {
		return printJSON(syncJSON{Count: state.Registry.Count, Peak: state.Peak})
	}
	fmt.Printf("Imported %s tabs and %d days of history (peak %s)\n",
		humanize.Comma(int64(state.Registry.Count)), len(state.History), humanize.Comma(int64(state.Peak)))
	return nil
}
