package store

import (
	"fmt"
	"strconv"
	"time"
)

func (s *Store) GetSetting(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

func (s *Store) GetAllSettings() ([]Setting, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	var settings []Setting
	for rows.Next() {
		var s Setting
		if err := rows.Scan(&s.Key, &s.Value); err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}

// GetSettingOr returns the stored value, or fallback when the key is
// missing or unreadable.
func (s *Store) GetSettingOr(key, fallback string) string {
	v, err := s.GetSetting(key)
	if err != nil {
		return fallback
	}
	return v
}

// RefreshInterval is how often the dashboard re-fetches tasks. Zero or a
// negative value turns polling off.
func (s *Store) RefreshInterval() time.Duration {
	secs, err := strconv.Atoi(s.GetSettingOr("refresh_interval", "30"))
	if err != nil {
		return 30 * time.Second
	}
	return time.Duration(secs) * time.Second
}

func (s *Store) ConfirmDelete() bool {
	return s.GetSettingOr("confirm_delete", "true") == "true"
}
