package storage

import (
	"context"
	"fmt"
	"strconv"

	"github.com/runnerr0/tabage/internal/registry"
)

// Setting keys as stored in the settings table.
const (
	keyBadgeDisplay    = "badge_display"
	keyCaptureStrategy = "capture_strategy"
	keyUnseenTabs      = "unseen_tabs"
	keyOldTabThreshold = "old_tab_threshold_days"
	keyNotifyOldTabs   = "notify_old_tabs"
	keyTabGoal         = "tab_goal"
)

// LoadSettings returns the stored settings of a registry, with every key
// that was never saved taken from defaults.
func (s *SQLiteStore) LoadSettings(ctx context.Context, name string, defaults registry.Settings) (registry.Settings, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return defaults, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	id, err := ensureRegistry(ctx, tx, name)
	if err != nil {
		return defaults, err
	}

	rows, err := tx.QueryContext(ctx, "SELECT key, value FROM settings WHERE registry_id = ?", id)
	if err != nil {
		return defaults, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	out := defaults
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return defaults, fmt.Errorf("scan setting: %w", err)
		}
		if err := applySetting(&out, key, value); err != nil {
			return defaults, err
		}
	}
	if err := rows.Err(); err != nil {
		return defaults, err
	}
	rows.Close()

	if err := tx.Commit(); err != nil {
		return defaults, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

// SaveSettings validates and stores every field of st.
func (s *SQLiteStore) SaveSettings(ctx context.Context, name string, st registry.Settings) error {
	if err := st.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	id, err := ensureRegistry(ctx, tx, name)
	if err != nil {
		return err
	}

	for key, value := range settingValues(st) {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO settings (registry_id, key, value, updated_at)
			VALUES (?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(registry_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, id, key, value); err != nil {
			return fmt.Errorf("save setting %s: %w", key, err)
		}
	}

	return tx.Commit()
}

func settingValues(st registry.Settings) map[string]string {
	return map[string]string{
		keyBadgeDisplay:    string(st.BadgeDisplay),
		keyCaptureStrategy: string(st.CaptureStrategy),
		keyUnseenTabs:      string(st.UnseenTabs),
		keyOldTabThreshold: strconv.Itoa(st.OldTabThresholdDays),
		keyNotifyOldTabs:   strconv.FormatBool(st.NotifyOldTabs),
		keyTabGoal:         strconv.Itoa(st.TabGoal),
	}
}

// applySetting decodes one stored key into st. Unknown keys are ignored.
func applySetting(st *registry.Settings, key, value string) error {
	var err error
	switch key {
	case keyBadgeDisplay:
		st.BadgeDisplay, err = registry.ParseBadgeDisplay(value)
	case keyCaptureStrategy:
		st.CaptureStrategy, err = registry.ParseCaptureStrategy(value)
	case keyUnseenTabs:
		st.UnseenTabs, err = registry.ParseUnseenMode(value)
	case keyOldTabThreshold:
		st.OldTabThresholdDays, err = strconv.Atoi(value)
	case keyNotifyOldTabs:
		st.NotifyOldTabs, err = strconv.ParseBool(value)
	case keyTabGoal:
		st.TabGoal, err = strconv.Atoi(value)
	}
	if err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return nil
}
