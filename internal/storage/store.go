package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// DisplayNameResolver derives a user-facing name from an executable path.
// Implementations must never block for long and return "" when no name can
// be derived.
type DisplayNameResolver func(exePath string) string

// Store represents the root storage interface.
type Store interface {
	Close() error
	Usage() UsageStore
	Apps() AppStore
	Settings() SettingsStore
}

// UsageStore persists usage sessions and answers aggregate queries.
// The daily_summary table is a cache over usage_sessions; it is fully
// recomputed per affected date, never patched incrementally.
type UsageStore interface {
	// InsertSessions inserts all sessions and recomputes the daily summary
	// for every distinct date in the batch, in one transaction. A batch
	// either persists completely or not at all.
	InsertSessions(ctx context.Context, sessions []UsageSession) error

	// RecomputeDailySummary replaces the daily_summary rows for date with
	// aggregates computed from usage_sessions. Idempotent.
	RecomputeDailySummary(ctx context.Context, date string) error

	DailyTotal(ctx context.Context, date string, f Filter) (Total, error)
	DailyUsage(ctx context.Context, date string, f Filter) ([]AppUsage, error)
	RangeUsage(ctx context.Context, startDate, endDate string, f Filter) ([]AppUsage, error)
	HourlyUsage(ctx context.Context, date string, f Filter) ([]HourlyUsage, error)
	RangeTotal(ctx context.Context, startDate, endDate string, f Filter) (Total, error)
	DailyTotalsInRange(ctx context.Context, startDate, endDate string, f Filter) ([]DateTotal, error)

	// FirstSessionStart returns the earliest session start on date matching
	// the filter, or ErrNotFound when nothing matches.
	FirstSessionStart(ctx context.Context, date string, f Filter) (string, error)

	// TodayTotalForApp returns the non-idle seconds recorded for one app on
	// the given date. Used by the daily limit checker.
	TodayTotalForApp(ctx context.Context, appID int64, date string) (int64, error)

	// DeleteDataOlderThan removes sessions and summaries dated strictly
	// before cutoffDate, then prunes app rows left without sessions.
	DeleteDataOlderThan(ctx context.Context, cutoffDate string) (DeleteResult, error)

	// DeleteAllData removes all tracking data while preserving settings.
	DeleteAllData(ctx context.Context) error
}

// AppStore manages the tracked application registry.
type AppStore interface {
	// GetOrCreateID resolves (processName, exePath) to an app id, creating
	// the row on first sight. A missing exact match widens to any row with
	// the same process name whose executable file name matches, so a
	// relocated copy of the same binary does not fragment history.
	GetOrCreateID(ctx context.Context, processName, exePath string) (int64, error)

	Get(ctx context.Context, id int64) (*App, error)
	ProcessNameByID(ctx context.Context, id int64) (string, error)
	List(ctx context.Context) ([]App, error)
	SetCategory(ctx context.Context, id int64, category string) error
	SetIgnored(ctx context.Context, id int64, ignored bool) error

	// BackfillDisplayNames fills display_name for rows where it is missing,
	// using the store's resolver. Best effort; resolver failures skip rows.
	BackfillDisplayNames(ctx context.Context) error
}

// SettingsStore manages string key/value settings.
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}
