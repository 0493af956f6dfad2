package cli

import "io"

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable debug logging"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// ServeCommand runs the local HTTP API the extension talks to.
type ServeCommand struct {
	Host string `long:"host" description:"Override daemon host"`
	Port int    `long:"port" description:"Override daemon port"`

	globals *GlobalFlags
	version string
}

// StatusCommand shows registry totals, buckets, and the oldest tab.
type StatusCommand struct {
	globals *GlobalFlags
	version string
}

// InstallCommand captures the open tabs into an empty registry.
type InstallCommand struct {
	File     string `long:"file" description:"JSON array of live tabs, - for stdin" default:"-"`
	Strategy string `long:"strategy" description:"Capture strategy: unknown | heuristic_distribution | url_inference (default from settings)"`

	globals *GlobalFlags
	version string
	stdin   io.Reader
}

// SyncCommand reconciles the registry against a snapshot of open tabs.
type SyncCommand struct {
	File string `long:"file" description:"JSON array of live tabs, - for stdin" default:"-"`
	Mode string `long:"mode" description:"Treatment of unseen tabs: new | preexisting (default from settings)"`

	globals *GlobalFlags
	version string
	stdin   io.Reader
}

// TabsCommand lists tracked tabs with their ages.
type TabsCommand struct {
	Bucket    string `long:"bucket" description:"Only tabs in this bucket: today | recent | medium | old | unknown"`
	Sort      string `long:"sort" description:"Sort order: id | age" default:"id"`
	Estimated bool   `long:"estimated" description:"Bucket unverified tabs by their inferred date"`

	globals *GlobalFlags
	version string
}

// OldestCommand shows the oldest tracked tab.
type OldestCommand struct {
	Inferred bool `long:"inferred" description:"Fall back to URL-inferred dates when no tab is verified"`

	globals *GlobalFlags
	version string
}

// HistoryCommand prints the daily tab count history.
type HistoryCommand struct {
	Points int `long:"points" description:"Most recent entries to show, 0 for all" default:"0"`

	globals *GlobalFlags
	version string
}

// OldTabsCommand reports tabs past the old-tab threshold.
type OldTabsCommand struct {
	Days int `long:"days" description:"Override the old-tab threshold in days"`

	globals *GlobalFlags
	version string
}

// ExportCommand writes the registry as CSV or JSON.
type ExportCommand struct {
	Format string `long:"format" description:"Output format: csv | json" default:"csv"`
	Output string `long:"output" description:"Output file, - for stdout" default:"-"`

	globals *GlobalFlags
	version string
}

// ImportCommand replaces the registry with a JSON export.
type ImportCommand struct {
	File string `long:"file" description:"JSON export file, - for stdin" default:"-"`

	globals *GlobalFlags
	version string
	stdin   io.Reader
}

// DashboardCommand opens the terminal dashboard.
type DashboardCommand struct {
	globals *GlobalFlags
	version string
}

// PurgeCommand deletes all tracked tabs and history with safety confirmation.
type PurgeCommand struct {
	All   bool `long:"all" description:"Required flag to confirm purge intent"`
	Force bool `long:"force" description:"Skip safety confirmation prompt"`

	globals *GlobalFlags
	version string
	stdin   io.Reader // nil means os.Stdin
}
