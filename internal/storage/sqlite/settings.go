package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rzayevsahil/Monity/internal/storage"
)

type settingsStore struct {
	store *Store
}

func (s *settingsStore) Get(ctx context.Context, key string) (string, error) {
	var value sql.NullString
	err := s.store.db.QueryRowContext(ctx,
		"SELECT value FROM app_settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value.String, nil
}

func (s *settingsStore) Set(ctx context.Context, key, value string) error {
	_, err := s.store.db.ExecContext(ctx,
		"INSERT INTO app_settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}
