package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rzayevsahil/Monity/internal/storage"
)

// appFilter renders the app-level parts of a Filter (ignored flag, process
// exclusion, category) against app alias "a". A nil Category means no filter;
// "" means explicitly uncategorized.
func appFilter(f storage.Filter) (string, []any) {
	var conds []string
	var args []any

	if !f.IncludeIgnored {
		conds = append(conds, "a.is_ignored = 0")
	}

	if len(f.ExcludedProcesses) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(f.ExcludedProcesses)), ",")
		conds = append(conds, fmt.Sprintf("a.process_name NOT IN (%s)", placeholders))
		for _, p := range f.ExcludedProcesses {
			args = append(args, p)
		}
	}

	if f.Category != nil {
		if *f.Category == "" {
			conds = append(conds, "COALESCE(a.category, '') = ''")
		} else {
			conds = append(conds, "a.category = ?")
			args = append(args, *f.Category)
		}
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " AND " + strings.Join(conds, " AND "), args
}

// sessionIdle renders the idle-exclusion filter against session alias "s".
func sessionIdle(f storage.Filter) string {
	if f.ExcludeIdle {
		return " AND s.is_idle = 0"
	}
	return ""
}

// summaryTotal is the summary-side total expression honoring idle exclusion.
func summaryTotal(f storage.Filter) string {
	if f.ExcludeIdle {
		return "ds.total_seconds"
	}
	return "ds.total_seconds + ds.idle_seconds"
}

// DailyTotal answers from the daily_summary cache, which InsertSessions keeps
// consistent with the raw rows.
func (u *usageStore) DailyTotal(ctx context.Context, date string, f storage.Filter) (storage.Total, error) {
	where, args := appFilter(f)
	query := fmt.Sprintf(`
		SELECT COALESCE(SUM(%s), 0), COALESCE(SUM(ds.session_count), 0)
		FROM daily_summary ds
		JOIN apps a ON a.id = ds.app_id
		WHERE ds.date = ?%s`, summaryTotal(f), where)

	var total storage.Total
	err := u.store.db.QueryRowContext(ctx, query, prepend(date, args)...).
		Scan(&total.TotalSeconds, &total.SessionCount)
	if err != nil {
		return storage.Total{}, fmt.Errorf("daily total: %w", err)
	}
	return total, nil
}

// DailyUsage returns per-app totals for one date from the summary cache,
// busiest first.
func (u *usageStore) DailyUsage(ctx context.Context, date string, f storage.Filter) ([]storage.AppUsage, error) {
	where, args := appFilter(f)
	query := fmt.Sprintf(`
		SELECT a.id, a.process_name, COALESCE(a.display_name, ''), COALESCE(a.category, ''),
		       %s AS total, ds.session_count
		FROM daily_summary ds
		JOIN apps a ON a.id = ds.app_id
		WHERE ds.date = ?%s AND %s > 0
		ORDER BY total DESC`, summaryTotal(f), where, summaryTotal(f))

	return u.queryAppUsage(ctx, query, prepend(date, args)...)
}

// RangeUsage aggregates per app directly from raw sessions so date ranges
// are always exact regardless of cache state.
func (u *usageStore) RangeUsage(ctx context.Context, startDate, endDate string, f storage.Filter) ([]storage.AppUsage, error) {
	where, args := appFilter(f)
	query := fmt.Sprintf(`
		SELECT a.id, a.process_name, COALESCE(a.display_name, ''), COALESCE(a.category, ''),
		       SUM(s.duration_seconds) AS total, COUNT(*)
		FROM usage_sessions s
		JOIN apps a ON a.id = s.app_id
		WHERE s.day_date >= ? AND s.day_date <= ?%s%s
		GROUP BY a.id, a.process_name, a.display_name, a.category
		ORDER BY total DESC`, sessionIdle(f), where)

	return u.queryAppUsage(ctx, query, prepend(startDate, prepend(endDate, args))...)
}

func (u *usageStore) queryAppUsage(ctx context.Context, query string, args ...any) ([]storage.AppUsage, error) {
	rows, err := u.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("app usage: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var usages []storage.AppUsage
	for rows.Next() {
		var au storage.AppUsage
		if err := rows.Scan(&au.AppID, &au.ProcessName, &au.DisplayName, &au.Category,
			&au.TotalSeconds, &au.SessionCount); err != nil {
			return nil, fmt.Errorf("scan app usage: %w", err)
		}
		usages = append(usages, au)
	}
	return usages, rows.Err()
}

// HourlyUsage buckets one date's sessions by the hour of their start time.
// Timestamps are RFC 3339 local time, so the hour lives at a fixed offset.
func (u *usageStore) HourlyUsage(ctx context.Context, date string, f storage.Filter) ([]storage.HourlyUsage, error) {
	where, args := appFilter(f)
	query := fmt.Sprintf(`
		SELECT CAST(substr(s.started_at, 12, 2) AS INTEGER) AS hour, SUM(s.duration_seconds)
		FROM usage_sessions s
		JOIN apps a ON a.id = s.app_id
		WHERE s.day_date = ?%s%s
		GROUP BY hour
		ORDER BY hour`, sessionIdle(f), where)

	rows, err := u.store.db.QueryContext(ctx, query, prepend(date, args)...)
	if err != nil {
		return nil, fmt.Errorf("hourly usage: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var buckets []storage.HourlyUsage
	for rows.Next() {
		var h storage.HourlyUsage
		if err := rows.Scan(&h.Hour, &h.TotalSeconds); err != nil {
			return nil, fmt.Errorf("scan hourly usage: %w", err)
		}
		buckets = append(buckets, h)
	}
	return buckets, rows.Err()
}

// RangeTotal aggregates directly from raw sessions.
func (u *usageStore) RangeTotal(ctx context.Context, startDate, endDate string, f storage.Filter) (storage.Total, error) {
	where, args := appFilter(f)
	query := fmt.Sprintf(`
		SELECT COALESCE(SUM(s.duration_seconds), 0), COUNT(*)
		FROM usage_sessions s
		JOIN apps a ON a.id = s.app_id
		WHERE s.day_date >= ? AND s.day_date <= ?%s%s`, sessionIdle(f), where)

	var total storage.Total
	err := u.store.db.QueryRowContext(ctx, query, prepend(startDate, prepend(endDate, args))...).
		Scan(&total.TotalSeconds, &total.SessionCount)
	if err != nil {
		return storage.Total{}, fmt.Errorf("range total: %w", err)
	}
	return total, nil
}

// DailyTotalsInRange returns one row per date that has matching sessions.
func (u *usageStore) DailyTotalsInRange(ctx context.Context, startDate, endDate string, f storage.Filter) ([]storage.DateTotal, error) {
	where, args := appFilter(f)
	query := fmt.Sprintf(`
		SELECT s.day_date, SUM(s.duration_seconds)
		FROM usage_sessions s
		JOIN apps a ON a.id = s.app_id
		WHERE s.day_date >= ? AND s.day_date <= ?%s%s
		GROUP BY s.day_date
		ORDER BY s.day_date`, sessionIdle(f), where)

	rows, err := u.store.db.QueryContext(ctx, query, prepend(startDate, prepend(endDate, args))...)
	if err != nil {
		return nil, fmt.Errorf("daily totals in range: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var totals []storage.DateTotal
	for rows.Next() {
		var dt storage.DateTotal
		if err := rows.Scan(&dt.Date, &dt.TotalSeconds); err != nil {
			return nil, fmt.Errorf("scan daily total: %w", err)
		}
		totals = append(totals, dt)
	}
	return totals, rows.Err()
}

func (u *usageStore) FirstSessionStart(ctx context.Context, date string, f storage.Filter) (string, error) {
	where, args := appFilter(f)
	query := fmt.Sprintf(`
		SELECT MIN(s.started_at)
		FROM usage_sessions s
		JOIN apps a ON a.id = s.app_id
		WHERE s.day_date = ?%s%s`, sessionIdle(f), where)

	var start sql.NullString
	err := u.store.db.QueryRowContext(ctx, query, prepend(date, args)...).Scan(&start)
	if err != nil {
		return "", fmt.Errorf("first session start: %w", err)
	}
	if !start.Valid {
		return "", storage.ErrNotFound
	}
	return start.String, nil
}

func (u *usageStore) TodayTotalForApp(ctx context.Context, appID int64, date string) (int64, error) {
	var total int64
	err := u.store.db.QueryRowContext(ctx,
		"SELECT total_seconds FROM daily_summary WHERE app_id = ? AND date = ?",
		appID, date).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("app daily total: %w", err)
	}
	return total, nil
}

// prepend builds an argument slice with v ahead of args.
func prepend(v any, args []any) []any {
	return append([]any{v}, args...)
}
