package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rzayevsahil/Monity/internal/storage"
)

type usageStore struct {
	store *Store
}

// InsertSessions writes the batch and refreshes the daily summary for every
// distinct date it touches, in one transaction. Nothing is committed when any
// insert fails.
func (u *usageStore) InsertSessions(ctx context.Context, sessions []storage.UsageSession) error {
	if len(sessions) == 0 {
		return nil
	}

	tx, err := u.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin session batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	dates := make(map[string]struct{}, 1)
	for _, s := range sessions {
		day := s.DayDate
		if day == "" {
			day = s.StartedAt.Format(storage.DateFormat)
		}
		dates[day] = struct{}{}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO usage_sessions (app_id, started_at, ended_at, duration_seconds, is_idle, window_title, day_date)
			VALUES (?, ?, ?, ?, ?, NULLIF(?, ''), ?)`,
			s.AppID,
			s.StartedAt.Format(time.RFC3339),
			s.EndedAt.Format(time.RFC3339),
			s.ComputedDuration(),
			boolToInt(s.Idle),
			s.WindowTitle,
			day,
		); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
	}

	for date := range dates {
		if err := recomputeDailySummaryTx(ctx, tx, date); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session batch: %w", err)
	}

	u.store.logger.Debug().
		Int("sessions", len(sessions)).
		Int("dates", len(dates)).
		Msg("Persisted session batch")
	return nil
}

// RecomputeDailySummary fully replaces the cached rollup rows for date with
// aggregates computed from usage_sessions. Safe to call repeatedly.
func (u *usageStore) RecomputeDailySummary(ctx context.Context, date string) error {
	tx, err := u.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin summary recompute: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := recomputeDailySummaryTx(ctx, tx, date); err != nil {
		return err
	}
	return tx.Commit()
}

func recomputeDailySummaryTx(ctx context.Context, tx *sql.Tx, date string) error {
	// Drop rows for apps that no longer have sessions on this date, then
	// upsert the rest from the source of truth.
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM daily_summary
		WHERE date = ? AND app_id NOT IN (SELECT DISTINCT app_id FROM usage_sessions WHERE day_date = ?)`,
		date, date); err != nil {
		return fmt.Errorf("prune daily summary: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO daily_summary (app_id, date, total_seconds, session_count, idle_seconds)
		SELECT app_id, ?,
		       SUM(CASE WHEN is_idle = 0 THEN duration_seconds ELSE 0 END),
		       COUNT(*),
		       SUM(CASE WHEN is_idle = 1 THEN duration_seconds ELSE 0 END)
		FROM usage_sessions
		WHERE day_date = ?
		GROUP BY app_id
		ON CONFLICT(app_id, date) DO UPDATE SET
			total_seconds = excluded.total_seconds,
			session_count = excluded.session_count,
			idle_seconds = excluded.idle_seconds`,
		date, date); err != nil {
		return fmt.Errorf("recompute daily summary: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
