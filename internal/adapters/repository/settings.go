package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rotisserie/eris"
)

// Setting keys.
const (
	SettingScoringConfig  = "scoring_config"
	SettingEnabledSources = "enabled_sources"
)

// GetSetting decodes the stored JSON value into dest.
func (s *SQLStore) GetSetting(ctx context.Context, key string, dest any) error {
	var raw string
	err := s.queryRow(ctx, s.db, `SELECT value FROM settings WHERE name = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "setting %s", key)
	}
	if err != nil {
		return eris.Wrapf(err, "store: get setting %s", key)
	}
	return fromJSON(raw, dest)
}

// PutSetting stores value as JSON under key.
func (s *SQLStore) PutSetting(ctx context.Context, key string, value any) error {
	raw, err := toJSON(value)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, s.db,
		`INSERT INTO settings (name, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT (name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, raw, millis(s.now()))
	return eris.Wrapf(err, "store: put setting %s", key)
}
