package limits

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rzayevsahil/Monity/internal/storage"
)

type fakeSettings struct {
	storage.SettingsStore
	values map[string]string
}

func (f *fakeSettings) Get(ctx context.Context, key string) (string, error) {
	v, ok := f.values[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

type fakeApps struct {
	storage.AppStore
	names map[int64]string
}

func (f *fakeApps) ProcessNameByID(ctx context.Context, id int64) (string, error) {
	name, ok := f.names[id]
	if !ok {
		return "", storage.ErrNotFound
	}
	return name, nil
}

type fakeUsage struct {
	storage.UsageStore
	totals map[int64]int64
}

func (f *fakeUsage) TodayTotalForApp(ctx context.Context, appID int64, date string) (int64, error) {
	return f.totals[appID], nil
}

type fakeStore struct {
	settings *fakeSettings
	apps     *fakeApps
	usage    *fakeUsage
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) Usage() storage.UsageStore { return f.usage }

func (f *fakeStore) Apps() storage.AppStore { return f.apps }

func (f *fakeStore) Settings() storage.SettingsStore { return f.settings }

type recordedNotification struct {
	process string
	limit   int64
	used    int64
	action  string
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []recordedNotification
}

func (n *recordingNotifier) LimitExceeded(processName string, limitSeconds, usedSeconds int64, action string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, recordedNotification{processName, limitSeconds, usedSeconds, action})
	return nil
}

func newTestChecker(store *fakeStore, notifier Notifier) *Checker {
	return NewChecker(store, notifier, zerolog.Nop())
}

func testStore() *fakeStore {
	return &fakeStore{
		settings: &fakeSettings{values: map[string]string{}},
		apps:     &fakeApps{names: map[int64]string{1: "chrome", 2: "steam"}},
		usage:    &fakeUsage{totals: map[int64]int64{}},
	}
}

func TestCheckerNotifiesWhenLimitExceeded(t *testing.T) {
	store := testStore()
	store.settings.values[SettingDailyLimits] = `{"chrome": 3600}`
	store.usage.totals[1] = 4000

	notifier := &recordingNotifier{}
	c := newTestChecker(store, notifier)

	c.CheckAndNotify(context.Background(), []int64{1})

	if len(notifier.calls) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifier.calls))
	}
	got := notifier.calls[0]
	if got.process != "chrome" || got.limit != 3600 || got.used != 4000 {
		t.Errorf("notification = %+v, want chrome/3600/4000", got)
	}
	if got.action != DefaultAction {
		t.Errorf("action = %q, want %q", got.action, DefaultAction)
	}
}

func TestCheckerUnderLimitStaysQuiet(t *testing.T) {
	store := testStore()
	store.settings.values[SettingDailyLimits] = `{"chrome": 3600}`
	store.usage.totals[1] = 3599

	notifier := &recordingNotifier{}
	c := newTestChecker(store, notifier)

	c.CheckAndNotify(context.Background(), []int64{1})

	if len(notifier.calls) != 0 {
		t.Fatalf("expected no notifications, got %d", len(notifier.calls))
	}
}

func TestCheckerNotifiesOncePerDay(t *testing.T) {
	store := testStore()
	store.settings.values[SettingDailyLimits] = `{"chrome": 3600}`
	store.usage.totals[1] = 4000

	notifier := &recordingNotifier{}
	c := newTestChecker(store, notifier)

	day := time.Date(2026, 8, 30, 12, 0, 0, 0, time.Local)
	c.now = func() time.Time { return day }

	c.CheckAndNotify(context.Background(), []int64{1})
	c.CheckAndNotify(context.Background(), []int64{1})

	if len(notifier.calls) != 1 {
		t.Fatalf("expected 1 notification for repeated checks, got %d", len(notifier.calls))
	}

	// The notified set resets on the next day.
	c.now = func() time.Time { return day.AddDate(0, 0, 1) }
	c.CheckAndNotify(context.Background(), []int64{1})

	if len(notifier.calls) != 2 {
		t.Fatalf("expected a fresh notification the next day, got %d", len(notifier.calls))
	}
}

func TestCheckerNoLimitsConfigured(t *testing.T) {
	store := testStore()
	store.usage.totals[1] = 100000

	notifier := &recordingNotifier{}
	c := newTestChecker(store, notifier)

	c.CheckAndNotify(context.Background(), []int64{1})

	if len(notifier.calls) != 0 {
		t.Fatalf("expected no notifications without limits, got %d", len(notifier.calls))
	}
}

func TestCheckerCorruptLimitsIgnored(t *testing.T) {
	store := testStore()
	store.settings.values[SettingDailyLimits] = `{not json`
	store.usage.totals[1] = 100000

	notifier := &recordingNotifier{}
	c := newTestChecker(store, notifier)

	c.CheckAndNotify(context.Background(), []int64{1})

	if len(notifier.calls) != 0 {
		t.Fatalf("corrupt limits JSON must disable checking, got %d notifications", len(notifier.calls))
	}
}

func TestCheckerCustomAction(t *testing.T) {
	store := testStore()
	store.settings.values[SettingDailyLimits] = `{"steam": 1800}`
	store.settings.values[SettingExceededAction] = "lock"
	store.usage.totals[2] = 1800

	notifier := &recordingNotifier{}
	c := newTestChecker(store, notifier)

	c.CheckAndNotify(context.Background(), []int64{2})

	if len(notifier.calls) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifier.calls))
	}
	if notifier.calls[0].action != "lock" {
		t.Errorf("action = %q, want %q", notifier.calls[0].action, "lock")
	}
}

func TestCheckerUnknownAppSkipped(t *testing.T) {
	store := testStore()
	store.settings.values[SettingDailyLimits] = `{"chrome": 1}`
	store.usage.totals[1] = 100

	notifier := &recordingNotifier{}
	c := newTestChecker(store, notifier)

	// App 99 does not exist; app 1 still gets checked.
	c.CheckAndNotify(context.Background(), []int64{99, 1})

	if len(notifier.calls) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifier.calls))
	}
}
