package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/runnerr0/tabage/internal/age"
	"github.com/runnerr0/tabage/internal/registry"
	"github.com/runnerr0/tabage/internal/stats"
	"github.com/runnerr0/tabage/internal/tracker"
)

// tabJSON is one row of the tabs command's JSON output.
type tabJSON struct {
	registry.TabRecord
	Age age.Classification `json:"age"`
}

// oldestJSON is the JSON output of the oldest command.
type oldestJSON struct {
	Found  bool             `json:"found"`
	Oldest *stats.OldestTab `json:"oldest,omitempty"`
}

// Execute implements the go-flags Commander interface for TabsCommand.
func (c *TabsCommand) Execute(args []string) error {
	sess, err := openSession(c.globals)
	if err != nil {
		return err
	}
	defer sess.Close()

	return c.executeWithTracker(context.Background(), sess.tracker)
}

// executeWithTracker lists tabs from a provided tracker (for testing).
func (c *TabsCommand) executeWithTracker(ctx context.Context, tr *tracker.Tracker) error {
	var only age.Bucket
	if c.Bucket != "" {
		b, err := parseBucket(c.Bucket)
		if err != nil {
			return err
		}
		only = b
	}
	if c.Sort != "id" && c.Sort != "age" {
		return fmt.Errorf("invalid --sort value %q: want id or age", c.Sort)
	}

	state, err := tr.State(ctx)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}
	now := tr.Now()

	rows := make([]tabJSON, 0, len(state.Registry.Tabs))
	for _, r := range state.Records() {
		cl := age.Classify(r.CreatedAt, r.IsVerified, now)
		if c.Estimated && r.CreatedAt != nil {
			cl = age.Estimate(*r.CreatedAt, now)
		}
		if only != "" && cl.Bucket != only {
			continue
		}
		rows = append(rows, tabJSON{TabRecord: r, Age: cl})
	}
	if c.Sort == "age" {
		// Oldest first; undated tabs sink to the bottom.
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].Age.Days() > rows[j].Age.Days()
		})
	}

	if c.globals != nil && c.globals.JSON {
		return printJSON(rows)
	}

	if len(rows) == 0 {
		fmt.Println("No tabs.")
		return nil
	}
	for _, row := range rows {
		label := row.Age.Label
		if !row.IsVerified && row.CreatedAt != nil && row.Age.Bucket != age.Unknown {
			label = "~" + label
		}
		fmt.Printf("%6d  %s  %s\n", row.ID, bucketColor(row.Age.Bucket).Sprintf("%-10s", label), truncate(row.Title, 60))
		fmt.Printf("        %s\n", truncate(row.URL, 100))
	}
	return nil
}

func parseBucket(s string) (age.Bucket, error) {
	for _, b := range age.Buckets {
		if string(b) == s {
			return b, nil
		}
	}
	return "", fmt.Errorf("invalid --bucket value %q", s)
}

// Execute implements the go-flags Commander interface for OldestCommand.
func (c *OldestCommand) Execute(args []string) error {
	sess, err := openSession(c.globals)
	if err != nil {
		return err
	}
	defer sess.Close()

	return c.executeWithTracker(context.Background(), sess.tracker)
}

// executeWithTracker finds the oldest tab in a provided tracker (for testing).
func (c *OldestCommand) executeWithTracker(ctx context.Context, tr *tracker.Tracker) error {
	state, err := tr.State(ctx)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}

	o, found := stats.Oldest(state.Registry, tr.Now(), c.Inferred)

	if c.globals != nil && c.globals.JSON {
		out := oldestJSON{Found: found}
		if found {
			out.Oldest = &o
		}
		return printJSON(out)
	}

	if !found {
		if c.Inferred {
			fmt.Println("No dated tabs.")
		} else {
			fmt.Println("No verified tabs. Use --inferred to include dates taken from URLs.")
		}
		return nil
	}

	fmt.Printf("Oldest tab:  %s\n", o.Record.Title)
	fmt.Printf("URL:         %s\n", o.Record.URL)
	fmt.Printf("Age:         %s\n", colorAge(o.Age))
	since := o.Date.Local().Format(time.DateTime)
	if o.Inferred {
		since += " (inferred from URL)"
	}
	fmt.Printf("Open since:  %s\n", since)
	return nil
}
