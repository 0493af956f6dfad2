package storage

import "database/sql"

// migrateV001 creates the registry schema. Every statement uses IF NOT
// EXISTS for idempotency.
func migrateV001(tx *sql.Tx) error {
	stmts := []string{
		// ── Tables ──────────────────────────────────────────────

		`CREATE TABLE IF NOT EXISTS registries (
			id           TEXT PRIMARY KEY,
			name         TEXT NOT NULL UNIQUE,
			count        INTEGER NOT NULL DEFAULT 0 CHECK (count >= 0),
			last_updated DATETIME,
			peak_count   INTEGER NOT NULL DEFAULT 0 CHECK (peak_count >= 0),
			installed_at DATETIME,
			version      INTEGER NOT NULL DEFAULT 0,
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS tabs (
			registry_id TEXT NOT NULL REFERENCES registries(id) ON DELETE CASCADE,
			tab_id      INTEGER NOT NULL CHECK (tab_id >= 0),
			url         TEXT NOT NULL DEFAULT '',
			title       TEXT NOT NULL DEFAULT '',
			favicon     TEXT NOT NULL DEFAULT '',
			created_at  DATETIME,
			is_verified BOOLEAN NOT NULL DEFAULT 0,
			date_source TEXT NOT NULL DEFAULT '' CHECK (date_source IN ('', 'observed', 'url', 'heuristic')),
			PRIMARY KEY (registry_id, tab_id),
			CHECK (is_verified = 0 OR created_at IS NOT NULL)
		)`,

		`CREATE TABLE IF NOT EXISTS tab_history (
			registry_id TEXT NOT NULL REFERENCES registries(id) ON DELETE CASCADE,
			position    INTEGER NOT NULL,
			date        TEXT NOT NULL,
			count       INTEGER NOT NULL CHECK (count >= 0),
			PRIMARY KEY (registry_id, position),
			UNIQUE (registry_id, date)
		)`,

		`CREATE TABLE IF NOT EXISTS settings (
			registry_id TEXT NOT NULL REFERENCES registries(id) ON DELETE CASCADE,
			key         TEXT NOT NULL,
			value       TEXT NOT NULL,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (registry_id, key)
		)`,

		// ── Indexes ────────────────────────────────────────────

		`CREATE INDEX IF NOT EXISTS idx_tabs_created_at   ON tabs(registry_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_tabs_verified     ON tabs(registry_id, is_verified)`,
		`CREATE INDEX IF NOT EXISTS idx_tab_history_date  ON tab_history(registry_id, date)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
