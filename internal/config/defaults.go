package config

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Tracking: TrackingConfig{
			CaptureStrategy:     "url_inference",
			UnseenTabs:          "new",
			OldTabThresholdDays: 30,
			NotifyOldTabs:       true,
			BadgeDisplay:        "count",
			TabGoal:             20,
		},
		Storage: StorageConfig{
			Path:       "~/.config/tabage",
			SQLiteFile: "tabage.db",
			Driver:     "sqlite3",
			Registry:   "default",
		},
		Daemon: DaemonConfig{
			Host: "127.0.0.1",
			Port: 8724,
			AllowedOrigins: []string{
				"chrome-extension://*",
				"moz-extension://*",
			},
			MaxRequestSize: 1048576,
		},
		Logging: LoggingConfig{
			Level:  "info",
			File:   "",
			Format: "text",
		},
	}
}
