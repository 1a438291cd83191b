package tracker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rzayevsahil/Monity/internal/storage"
	"github.com/stretchr/testify/require"
)

type fakeAppStore struct {
	storage.AppStore

	mu    sync.Mutex
	ids   map[string]int64
	next  int64
	block chan struct{}
}

func (f *fakeAppStore) GetOrCreateID(ctx context.Context, processName, exePath string) (int64, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ids == nil {
		f.ids = make(map[string]int64)
	}
	if id, ok := f.ids[processName]; ok {
		return id, nil
	}
	f.next++
	f.ids[processName] = f.next
	return f.next, nil
}

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

type fakeStore struct {
	usage    *fakeUsage
	apps     *fakeAppStore
	settings *fakeSettings
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		usage:    &fakeUsage{},
		apps:     &fakeAppStore{},
		settings: &fakeSettings{values: map[string]string{}},
	}
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) Usage() storage.UsageStore { return f.usage }

func (f *fakeStore) Apps() storage.AppStore { return f.apps }

func (f *fakeStore) Settings() storage.SettingsStore { return f.settings }

func newTestService(t *testing.T, store *fakeStore, cfg ServiceConfig) *Service {
	t.Helper()
	if cfg.FlushCount == 0 {
		cfg.FlushCount = 100
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = time.Hour
	}
	s := NewService(&fakeObserver{}, store, cfg, nil, zerolog.Nop())
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
	return s
}

// awaitBatches flushes until the store has seen the wanted number of batches.
func awaitBatches(t *testing.T, s *Service, u *fakeUsage, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		_ = s.Flush(context.Background())
		return u.batchCount() >= want
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServiceSessionEndBuffered(t *testing.T) {
	store := newFakeStore()
	s := newTestService(t, store, ServiceConfig{})

	started := time.Date(2026, 8, 30, 9, 30, 0, 0, time.UTC)
	s.handleSessionEnd(SessionEnd{
		ProcessName: "chrome",
		ExePath:     `C:\Apps\chrome.exe`,
		StartedAt:   started,
		EndedAt:     started.Add(45 * time.Second),
		WindowTitle: "New Tab",
	})

	awaitBatches(t, s, store.usage, 1)

	got := store.usage.batch(0)[0]
	require.Equal(t, int64(1), got.AppID)
	require.False(t, got.Idle)
	require.Equal(t, "New Tab", got.WindowTitle)
	require.Equal(t, started.Local(), got.StartedAt)
	require.Equal(t, started.Local().Format(storage.DateFormat), got.DayDate)
}

func TestServiceMinSessionFilter(t *testing.T) {
	store := newFakeStore()
	s := newTestService(t, store, ServiceConfig{MinSessionSeconds: 10})

	started := time.Now()
	s.handleSessionEnd(SessionEnd{
		ProcessName: "chrome",
		StartedAt:   started,
		EndedAt:     started.Add(5 * time.Second),
	})
	s.handleSessionEnd(SessionEnd{
		ProcessName: "chrome",
		StartedAt:   started,
		EndedAt:     started.Add(12 * time.Second),
	})

	// Events are handled in order, so once the long session is buffered the
	// short one has already been discarded.
	require.Eventually(t, func() bool {
		return s.buffer.Len() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Flush(context.Background()))
	require.Equal(t, 1, store.usage.batchCount())
	require.Len(t, store.usage.batch(0), 1, "sessions under the minimum are discarded")
}

func TestServiceSessionEndDoesNotBlockOnStore(t *testing.T) {
	store := newFakeStore()
	gate := make(chan struct{})
	store.apps.block = gate

	s := newTestService(t, store, ServiceConfig{})

	started := time.Now()
	done := make(chan struct{})
	go func() {
		s.handleSessionEnd(SessionEnd{
			ProcessName: "chrome",
			StartedAt:   started,
			EndedAt:     started.Add(30 * time.Second),
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("session hand-off waited on storage")
	}

	// Lifecycle calls stay responsive while the app-id lookup is stuck.
	s.Suspend()
	s.Resume()

	close(gate)
	awaitBatches(t, s, store.usage, 1)
}

func TestServiceStopPersistsQueuedSessions(t *testing.T) {
	store := newFakeStore()
	s := newTestService(t, store, ServiceConfig{})

	started := time.Now()
	s.handleSessionEnd(SessionEnd{
		ProcessName: "chrome",
		StartedAt:   started,
		EndedAt:     started.Add(45 * time.Second),
	})

	require.NoError(t, s.Stop(context.Background()))
	require.Equal(t, 1, store.usage.batchCount())
	require.Len(t, store.usage.batch(0), 1)
}

func TestServiceApplySettings(t *testing.T) {
	store := newFakeStore()
	store.settings.values[SettingIdleThreshold] = "5"
	store.settings.values[SettingMinSession] = "30"
	store.settings.values[SettingIgnoredProcesses] = "Steam, spotify ,"

	s := newTestService(t, store, ServiceConfig{})
	s.ApplySettings(context.Background())

	// 5s is under the allowed floor and gets clamped.
	require.Equal(t, int64(MinIdleThreshold), s.engine.idleThreshold.Load())
	require.Equal(t, int64(30), s.minSessionSeconds.Load())

	ignored := s.engine.ignored.Load().(map[string]struct{})
	require.Contains(t, ignored, "steam")
	require.Contains(t, ignored, "spotify")
	require.Contains(t, ignored, "explorer")
}

func TestServiceApplySettingsInvalidValuesKeepDefaults(t *testing.T) {
	store := newFakeStore()
	store.settings.values[SettingIdleThreshold] = "soon"
	store.settings.values[SettingMinSession] = "-5"

	s := newTestService(t, store, ServiceConfig{IdleThreshold: 2 * time.Minute, MinSessionSeconds: 3})
	s.ApplySettings(context.Background())

	require.Equal(t, int64(2*time.Minute), s.engine.idleThreshold.Load())
	require.Equal(t, int64(3), s.minSessionSeconds.Load())
}

func TestServiceClampsConfiguredIdleThreshold(t *testing.T) {
	store := newFakeStore()

	s := newTestService(t, store, ServiceConfig{IdleThreshold: time.Second})
	require.Equal(t, int64(MinIdleThreshold), s.engine.idleThreshold.Load())

	s = newTestService(t, store, ServiceConfig{IdleThreshold: time.Hour})
	require.Equal(t, int64(MaxIdleThreshold), s.engine.idleThreshold.Load())
}

func TestServiceConfiguredIgnoredProcesses(t *testing.T) {
	store := newFakeStore()
	s := newTestService(t, store, ServiceConfig{IgnoredProcesses: []string{"Slack"}})

	ignored := s.engine.ignored.Load().(map[string]struct{})
	require.Contains(t, ignored, "slack")
	require.Contains(t, ignored, "monity")
}

func TestServiceStartStopIdempotent(t *testing.T) {
	store := newFakeStore()
	s := newTestService(t, store, ServiceConfig{PollInterval: time.Hour})

	ctx := context.Background()
	s.Start(ctx)
	s.Start(ctx)

	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
}
