package storage

import (
	"path/filepath"
	"strings"
	"time"
)

// DateFormat is the calendar-day partition key layout used in day_date and
// daily_summary.date columns.
const DateFormat = "2006-01-02"

// App identifies a trackable program. The (ProcessName, ExePath) pair is
// unique; relocated copies of the same executable file name are folded into
// one row by AppStore.GetOrCreateID.
type App struct {
	ID          int64     `json:"id"`
	ProcessName string    `json:"process_name"`
	ExePath     string    `json:"exe_path"`
	DisplayName string    `json:"display_name,omitempty"`
	Category    string    `json:"category,omitempty"`
	Ignored     bool      `json:"is_ignored"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EffectiveName returns DisplayName when set, otherwise ProcessName.
func (a *App) EffectiveName() string {
	if strings.TrimSpace(a.DisplayName) != "" {
		return a.DisplayName
	}
	return a.ProcessName
}

// UsageSession is one contiguous interval during which a single app (or an
// idle state) held the foreground. Immutable once persisted.
type UsageSession struct {
	ID              int64     `json:"id"`
	AppID           int64     `json:"app_id"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	DurationSeconds int64     `json:"duration_seconds"`
	Idle            bool      `json:"is_idle"`
	WindowTitle     string    `json:"window_title,omitempty"`
	DayDate         string    `json:"day_date"`
}

// ComputedDuration returns the duration derived from the timestamps.
// The stored duration_seconds column is always recomputed from this value,
// never trusted as an independent input.
func (s *UsageSession) ComputedDuration() int64 {
	d := int64(s.EndedAt.Sub(s.StartedAt).Seconds())
	if d < 0 {
		return 0
	}
	return d
}

// Filter narrows read queries. Apps marked ignored are excluded unless
// IncludeIgnored is set. A nil Category means no category filter;
// a pointer to "" selects explicitly uncategorized apps.
type Filter struct {
	ExcludeIdle       bool
	ExcludedProcesses []string
	Category          *string
	IncludeIgnored    bool
}

// Total is an aggregate of seconds and session count over some scope.
type Total struct {
	TotalSeconds int64 `json:"total_seconds"`
	SessionCount int64 `json:"session_count"`
}

// AppUsage is a per-app aggregate row.
type AppUsage struct {
	AppID        int64  `json:"app_id"`
	ProcessName  string `json:"process_name"`
	DisplayName  string `json:"display_name,omitempty"`
	Category     string `json:"category,omitempty"`
	TotalSeconds int64  `json:"total_seconds"`
	SessionCount int64  `json:"session_count"`
}

// HourlyUsage is one bucket of the per-hour histogram for a date.
type HourlyUsage struct {
	Hour         int   `json:"hour"`
	TotalSeconds int64 `json:"total_seconds"`
}

// DateTotal is a per-date aggregate used for trend charts.
type DateTotal struct {
	Date         string `json:"date"`
	TotalSeconds int64  `json:"total_seconds"`
}

// DeleteResult reports what a retention delete removed.
type DeleteResult struct {
	Sessions  int64 `json:"sessions"`
	Summaries int64 `json:"summaries"`
	Apps      int64 `json:"apps"`
}

// BaseName returns the final path component of an executable path in lower
// case, for the fold-in comparison in GetOrCreateID. Both slash styles are
// honored so paths recorded on Windows compare correctly anywhere.
func BaseName(exePath string) string {
	p := strings.ReplaceAll(exePath, `\`, `/`)
	return strings.ToLower(filepath.Base(p))
}
