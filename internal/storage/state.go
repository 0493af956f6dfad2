package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/runnerr0/tabage/internal/registry"
)

// ensureRegistry returns the id of the named registry, inserting an empty
// row on first use.
func ensureRegistry(ctx context.Context, tx *sql.Tx, name string) (string, error) {
	id, err := registryID(ctx, tx, name)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	id = uuid.NewString()
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO registries (id, name) VALUES (?, ?)", id, name,
	); err != nil {
		return "", fmt.Errorf("create registry %s: %w", name, err)
	}
	return id, nil
}

func registryID(ctx context.Context, tx *sql.Tx, name string) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx, "SELECT id FROM registries WHERE name = ?", name).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("registry %s: %w", name, ErrNotFound)
		}
		return "", fmt.Errorf("get registry: %w", err)
	}
	return id, nil
}

// loadState reads a registry with its tabs and history. The returned
// version is the compare-and-swap token for writeState.
func loadState(ctx context.Context, tx *sql.Tx, name string) (registry.State, int64, error) {
	var (
		id, regName string
		count, peak int
		lastUpdated sql.NullString
		installedAt sql.NullString
		version     int64
	)
	err := tx.QueryRowContext(ctx, `
		SELECT id, name, count, last_updated, peak_count, installed_at, version
		FROM registries WHERE name = ?
	`, name).Scan(&id, &regName, &count, &lastUpdated, &peak, &installedAt, &version)
	if err != nil {
		if err == sql.ErrNoRows {
			return registry.State{}, 0, fmt.Errorf("registry %s: %w", name, ErrNotFound)
		}
		return registry.State{}, 0, fmt.Errorf("get registry: %w", err)
	}

	state := registry.NewState(id, regName)
	state.Registry.Count = count
	state.Peak = peak
	if lastUpdated.Valid {
		state.Registry.LastUpdated, _ = parseTimestamp(lastUpdated.String)
	}
	if installedAt.Valid {
		if t, err := parseTimestamp(installedAt.String); err == nil {
			state.InstalledAt = &t
		}
	}

	if err := loadTabs(ctx, tx, &state); err != nil {
		return registry.State{}, 0, err
	}
	if err := loadHistory(ctx, tx, &state); err != nil {
		return registry.State{}, 0, err
	}

	return state, version, nil
}

func loadTabs(ctx context.Context, tx *sql.Tx, state *registry.State) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT tab_id, url, title, favicon, created_at, is_verified, date_source
		FROM tabs WHERE registry_id = ? ORDER BY tab_id
	`, state.ID)
	if err != nil {
		return fmt.Errorf("query tabs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r         registry.TabRecord
			createdAt sql.NullString
			source    string
		)
		if err := rows.Scan(&r.ID, &r.URL, &r.Title, &r.Favicon, &createdAt, &r.IsVerified, &source); err != nil {
			return fmt.Errorf("scan tab: %w", err)
		}
		// An unreadable created_at leaves the tab undated rather than
		// locking the registry.
		if createdAt.Valid {
			if t, err := parseTimestamp(createdAt.String); err == nil {
				r.CreatedAt = &t
			}
		}
		r.DateSource = registry.DateSource(source)
		state.Registry.Tabs[r.ID] = registry.Sanitize(r)
	}

	return rows.Err()
}

func loadHistory(ctx context.Context, tx *sql.Tx, state *registry.State) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT date, count FROM tab_history WHERE registry_id = ? ORDER BY position
	`, state.ID)
	if err != nil {
		return fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var h registry.HistoryEntry
		if err := rows.Scan(&h.Date, &h.Count); err != nil {
			return fmt.Errorf("scan history: %w", err)
		}
		state.History = append(state.History, h)
	}

	return rows.Err()
}

// writeState replaces the stored registry with state, provided the row
// still carries version. Otherwise it returns ErrConflict.
func writeState(ctx context.Context, tx *sql.Tx, state registry.State, version int64) error {
	var lastUpdated, installedAt any
	if !state.Registry.LastUpdated.IsZero() {
		lastUpdated = formatTimestamp(state.Registry.LastUpdated)
	}
	if state.InstalledAt != nil {
		installedAt = formatTimestamp(*state.InstalledAt)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE registries
		SET count = ?, last_updated = ?, peak_count = ?, installed_at = ?, version = version + 1
		WHERE id = ? AND version = ?
	`, state.Registry.Count, lastUpdated, state.Peak, installedAt, state.ID, version)
	if err != nil {
		return fmt.Errorf("update registry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM tabs WHERE registry_id = ?", state.ID); err != nil {
		return fmt.Errorf("clear tabs: %w", err)
	}
	insertTab, err := tx.PrepareContext(ctx, `
		INSERT INTO tabs (registry_id, tab_id, url, title, favicon, created_at, is_verified, date_source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare tab insert: %w", err)
	}
	defer insertTab.Close()

	for _, r := range state.Records() {
		var createdAt any
		if r.CreatedAt != nil {
			createdAt = formatTimestamp(*r.CreatedAt)
		}
		if _, err := insertTab.ExecContext(ctx,
			state.ID, r.ID, r.URL, r.Title, r.Favicon, createdAt, r.IsVerified, string(r.DateSource),
		); err != nil {
			return fmt.Errorf("insert tab %d: %w", r.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM tab_history WHERE registry_id = ?", state.ID); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	for i, h := range state.History {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO tab_history (registry_id, position, date, count) VALUES (?, ?, ?, ?)",
			state.ID, i, h.Date, h.Count,
		); err != nil {
			return fmt.Errorf("insert history %s: %w", h.Date, err)
		}
	}

	return nil
}
