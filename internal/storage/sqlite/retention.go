package sqlite

import (
	"context"
	"fmt"

	"github.com/rzayevsahil/Monity/internal/storage"
)

// DeleteDataOlderThan removes sessions and summary rows dated strictly before
// cutoffDate, then prunes app rows left without any sessions. Apps touched on
// or after the cutoff are kept even when session-less: their sessions may
// still sit in the write buffer, and pruning them would break the foreign key
// on the next flush. One transaction.
func (u *usageStore) DeleteDataOlderThan(ctx context.Context, cutoffDate string) (storage.DeleteResult, error) {
	var result storage.DeleteResult

	tx, err := u.store.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("begin retention delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, "DELETE FROM usage_sessions WHERE day_date < ?", cutoffDate)
	if err != nil {
		return result, fmt.Errorf("delete old sessions: %w", err)
	}
	result.Sessions, _ = res.RowsAffected()

	res, err = tx.ExecContext(ctx, "DELETE FROM daily_summary WHERE date < ?", cutoffDate)
	if err != nil {
		return result, fmt.Errorf("delete old summaries: %w", err)
	}
	result.Summaries, _ = res.RowsAffected()

	// RFC 3339 timestamps on the cutoff date sort after the bare date string,
	// so the comparison keeps anything updated on or after the cutoff.
	res, err = tx.ExecContext(ctx, `
		DELETE FROM apps
		WHERE id NOT IN (SELECT DISTINCT app_id FROM usage_sessions)
		  AND updated_at < ?`, cutoffDate)
	if err != nil {
		return result, fmt.Errorf("prune orphaned apps: %w", err)
	}
	result.Apps, _ = res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("commit retention delete: %w", err)
	}

	u.store.appIDs.Purge()
	u.store.logger.Info().
		Str("cutoff", cutoffDate).
		Int64("sessions", result.Sessions).
		Int64("summaries", result.Summaries).
		Int64("apps", result.Apps).
		Msg("Deleted data older than cutoff")
	return result, nil
}

// DeleteAllData removes every tracked session, summary, and app row while
// preserving app_settings.
func (u *usageStore) DeleteAllData(ctx context.Context) error {
	tx, err := u.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete all: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"usage_sessions", "daily_summary", "apps"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete all: %w", err)
	}

	u.store.appIDs.Purge()
	u.store.logger.Info().Msg("Deleted all tracking data")
	return nil
}
