package cli

import "github.com/runnerr0/tabage/internal/tui"

// Execute implements the go-flags Commander interface for DashboardCommand.
func (c *DashboardCommand) Execute(args []string) error {
	sess, err := openSession(c.globals)
	if err != nil {
		return err
	}
	defer sess.Close()

	return tui.Run(sess.tracker)
}
