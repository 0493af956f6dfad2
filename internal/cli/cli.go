package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Serve     *ServeCommand
	Status    *StatusCommand
	Install   *InstallCommand
	Sync      *SyncCommand
	Tabs      *TabsCommand
	Oldest    *OldestCommand
	History   *HistoryCommand
	OldTabs   *OldTabsCommand
	Export    *ExportCommand
	Import    *ImportCommand
	Dashboard *DashboardCommand
	Purge     *PurgeCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "tabage"
	parser.LongDescription = "Track how long browser tabs have been open and help bring the count down."

	cmds := &commands{
		Serve:     &ServeCommand{globals: &globals, version: version},
		Status:    &StatusCommand{globals: &globals, version: version},
		Install:   &InstallCommand{globals: &globals, version: version},
		Sync:      &SyncCommand{globals: &globals, version: version},
		Tabs:      &TabsCommand{globals: &globals, version: version},
		Oldest:    &OldestCommand{globals: &globals, version: version},
		History:   &HistoryCommand{globals: &globals, version: version},
		OldTabs:   &OldTabsCommand{globals: &globals, version: version},
		Export:    &ExportCommand{globals: &globals, version: version},
		Import:    &ImportCommand{globals: &globals, version: version},
		Dashboard: &DashboardCommand{globals: &globals, version: version},
		Purge:     &PurgeCommand{globals: &globals, version: version},
	}

	parser.AddCommand("serve", "Start the local HTTP API", "Start the loopback HTTP API that the browser extension reports tab events to.", cmds.Serve)
	parser.AddCommand("status", "Show registry totals and age buckets", "Show tab count, peak, progress, age buckets, and the oldest tab.", cmds.Status)
	parser.AddCommand("install", "Capture open tabs into an empty registry", "Capture the currently open tabs into an empty registry using a capture strategy.", cmds.Install)
	parser.AddCommand("sync", "Reconcile against a snapshot of open tabs", "Reconcile the registry against a full snapshot of the currently open tabs.", cmds.Sync)
	parser.AddCommand("tabs", "List tracked tabs", "List tracked tabs with their age and bucket.", cmds.Tabs)
	parser.AddCommand("oldest", "Show the oldest tab", "Show the tracked tab that has been open the longest.", cmds.Oldest)
	parser.AddCommand("history", "Show daily tab counts", "Show the tab count recorded for each of the last days.", cmds.History)
	parser.AddCommand("old-tabs", "Report tabs past the old-tab threshold", "Report how many tabs are older than the old-tab threshold.", cmds.OldTabs)
	parser.AddCommand("export", "Export the registry", "Export tracked tabs as CSV, or the whole registry as JSON.", cmds.Export)
	parser.AddCommand("import", "Import a JSON export", "Replace the registry with the contents of a JSON export.", cmds.Import)
	parser.AddCommand("dashboard", "Open the terminal dashboard", "Open the interactive terminal dashboard.", cmds.Dashboard)
	parser.AddCommand("purge", "Delete ALL tracked tabs and history", "Delete ALL tracked tabs and history. Destructive operation with safety prompt.", cmds.Purge)

	return parser, &globals, cmds
}

// Run is the main entry point for the tabage CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// Handle --version before parser (go-flags requires a subcommand, but
	// --version is valid without one).
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("tabage %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
