// Package limits checks per-app daily usage limits after each buffer flush.
package limits

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rzayevsahil/Monity/internal/metrics"
	"github.com/rzayevsahil/Monity/internal/storage"
)

// Settings keys consumed by the checker.
const (
	SettingDailyLimits    = "daily_limits"
	SettingExceededAction = "limit_exceeded_action"
)

// DefaultAction is used when no explicit limit_exceeded_action is set.
const DefaultAction = "notify"

// Notifier delivers a limit-exceeded notification to the user. Failures are
// logged and discarded; they never affect the flush pipeline.
type Notifier interface {
	LimitExceeded(processName string, limitSeconds, usedSeconds int64, action string) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(processName string, limitSeconds, usedSeconds int64, action string) error

func (f NotifierFunc) LimitExceeded(processName string, limitSeconds, usedSeconds int64, action string) error {
	return f(processName, limitSeconds, usedSeconds, action)
}

// Checker compares today's totals against configured daily limits for the
// apps touched by a flush, and notifies once per process per day.
type Checker struct {
	store    storage.Store
	notifier Notifier
	logger   zerolog.Logger

	mu           sync.Mutex
	notifiedDate string
	notified     map[string]struct{}

	now func() time.Time
}

// NewChecker creates a limit checker. notifier may be nil, in which case
// exceeded limits are only logged.
func NewChecker(store storage.Store, notifier Notifier, logger zerolog.Logger) *Checker {
	return &Checker{
		store:    store,
		notifier: notifier,
		logger:   logger.With().Str("component", "limit-checker").Logger(),
		notified: make(map[string]struct{}),
		now:      time.Now,
	}
}

// CheckAndNotify evaluates limits for the given app ids. Intended as the
// buffer's post-flush callback; all failures are contained here.
func (c *Checker) CheckAndNotify(ctx context.Context, appIDs []int64) {
	if len(appIDs) == 0 {
		return
	}

	limits := c.loadLimits(ctx)
	if len(limits) == 0 {
		return
	}
	action := c.loadAction(ctx)

	today := c.now().Format(storage.DateFormat)
	usage := c.store.Usage()
	apps := c.store.Apps()

	for _, appID := range appIDs {
		processName, err := apps.ProcessNameByID(ctx, appID)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				c.logger.Warn().Err(err).Int64("app_id", appID).Msg("Failed to resolve process name")
			}
			continue
		}

		limitSeconds, ok := limits[processName]
		if !ok || limitSeconds <= 0 {
			continue
		}

		total, err := usage.TodayTotalForApp(ctx, appID, today)
		if err != nil {
			c.logger.Warn().Err(err).Str("process", processName).Msg("Failed to read today's total")
			continue
		}
		if total < limitSeconds {
			continue
		}

		if !c.markNotified(today, processName) {
			continue
		}

		metrics.LimitNotifications.WithLabelValues(processName).Inc()
		c.logger.Info().
			Str("process", processName).
			Int64("limit_seconds", limitSeconds).
			Int64("used_seconds", total).
			Str("action", action).
			Msg("Daily limit exceeded")

		if c.notifier != nil {
			if err := c.notifier.LimitExceeded(processName, limitSeconds, total, action); err != nil {
				c.logger.Warn().Err(err).Str("process", processName).Msg("Limit notifier failed")
			}
		}
	}
}

// markNotified records a notification for (date, process) and reports
// whether it is the first for today. The notified set resets on date change.
func (c *Checker) markNotified(date, processName string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.notifiedDate != date {
		c.notifiedDate = date
		c.notified = make(map[string]struct{})
	}
	if _, ok := c.notified[processName]; ok {
		return false
	}
	c.notified[processName] = struct{}{}
	return true
}

// loadLimits parses the daily_limits setting, a JSON map of process name to
// limit seconds. Corrupt JSON means no limits configured.
func (c *Checker) loadLimits(ctx context.Context) map[string]int64 {
	raw, err := c.store.Settings().Get(ctx, SettingDailyLimits)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			c.logger.Warn().Err(err).Msg("Failed to read daily limits setting")
		}
		return nil
	}

	var limits map[string]int64
	if err := json.Unmarshal([]byte(raw), &limits); err != nil {
		c.logger.Warn().Err(err).Msg("Invalid daily limits JSON, treating as no limits")
		return nil
	}
	return limits
}

func (c *Checker) loadAction(ctx context.Context) string {
	raw, err := c.store.Settings().Get(ctx, SettingExceededAction)
	if err != nil || raw == "" {
		return DefaultAction
	}
	return raw
}
