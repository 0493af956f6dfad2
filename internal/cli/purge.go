package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/runnerr0/tabage/internal/storage"
	"github.com/runnerr0/tabage/internal/tracker"
)

// Execute implements the go-flags Commander interface for PurgeCommand.
func (c *PurgeCommand) Execute(args []string) error {
	if err := c.confirm(); err != nil {
		return err
	}

	sess, err := openSession(c.globals)
	if err != nil {
		return err
	}
	defer sess.Close()

	return c.purge(context.Background(), sess.tracker)
}

// executeWithTracker runs purge against a provided tracker (for testing).
func (c *PurgeCommand) executeWithTracker(ctx context.Context, tr *tracker.Tracker) error {
	if err := c.confirm(); err != nil {
		return err
	}
	return c.purge(ctx, tr)
}

// confirm enforces --all and, unless --force, the typed confirmation.
func (c *PurgeCommand) confirm() error {
	if !c.All {
		return fmt.Errorf("purge requires --all flag for safety")
	}
	if c.Force {
		return nil
	}

	fmt.Println("⚠ WARNING: This will permanently delete ALL tracked tab data.")
	fmt.Println("  - All tracked tabs and their creation dates")
	fmt.Println("  - The daily tab count history")
	fmt.Println("  - The peak tab count")
	fmt.Println()
	fmt.Println("Settings are kept. This action cannot be undone.")
	fmt.Println()
	fmt.Print(`Type "PURGE" to confirm: `)

	scanner := bufio.NewScanner(stdinOr(c.stdin))
	if !scanner.Scan() {
		return fmt.Errorf("aborted: no input received")
	}
	input := strings.TrimSpace(scanner.Text())
	if input != "PURGE" {
		return fmt.Errorf("aborted: confirmation text did not match")
	}
	return nil
}

func (c *PurgeCommand) purge(ctx context.Context, tr *tracker.Tracker) error {
	// A registry that was never stored has nothing to purge.
	if err := tr.Purge(ctx); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("purge failed: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		return printJSON(map[string]interface{}{
			"purged":   true,
			"registry": tr.Name(),
			"message":  "all tab data deleted",
		})
	}

	fmt.Printf("Purged registry %q. No tabs are tracked.\n", tr.Name())
	return nil
}
