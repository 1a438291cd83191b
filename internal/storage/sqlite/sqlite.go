// Package sqlite implements the storage interfaces on the embedded SQLite
// database. Multi-statement operations run in a single transaction; separate
// calls are independent and hold no cross-call lock.
package sqlite

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"github.com/rzayevsahil/Monity/internal/database"
	"github.com/rzayevsahil/Monity/internal/storage"
)

const appIDCacheSize = 256

// Store implements the storage.Store interface using SQLite.
type Store struct {
	db       *database.DB
	resolver storage.DisplayNameResolver
	appIDs   *lru.Cache[string, int64]
	logger   zerolog.Logger
}

// New creates a store over an opened database. The resolver is used for
// best-effort display-name derivation and may be nil.
func New(db *database.DB, resolver storage.DisplayNameResolver, logger zerolog.Logger) (*Store, error) {
	cache, err := lru.New[string, int64](appIDCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create app id cache: %w", err)
	}

	return &Store{
		db:       db,
		resolver: resolver,
		appIDs:   cache,
		logger:   logger.With().Str("component", "sqlite-store").Logger(),
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Usage() storage.UsageStore {
	return &usageStore{store: s}
}

func (s *Store) Apps() storage.AppStore {
	return &appStore{store: s}
}

func (s *Store) Settings() storage.SettingsStore {
	return &settingsStore{store: s}
}
