package tracker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rzayevsahil/Monity/internal/storage"
)

// Settings keys consumed by the tracking service. Values are opaque strings
// parsed defensively; invalid or missing values fall back to defaults.
const (
	SettingIdleThreshold    = "idle_threshold_seconds"
	SettingMinSession       = "min_session_seconds"
	SettingIgnoredProcesses = "ignored_processes"
)

// Idle threshold bounds enforced on the runtime setting.
const (
	MinIdleThreshold = 10 * time.Second
	MaxIdleThreshold = 10 * time.Minute
)

// sessionQueueSize bounds the hand-off between the polling tick and the
// persistence worker. Sessions end at most once per tick, so the queue only
// fills when the store is stuck for a long time.
const sessionQueueSize = 256

// Service wires Observer -> Engine -> Buffer -> Store and owns the
// tracker lifecycle.
type Service struct {
	store      storage.Store
	engine     *Engine
	buffer     *Buffer
	logger     zerolog.Logger
	cfgIgnored []string

	events     chan SessionEnd
	workerDone chan struct{}
	stopOnce   sync.Once

	minSessionSeconds atomic.Int64
	started           atomic.Bool
}

// ServiceConfig collects tracker tuning; zero values select defaults.
type ServiceConfig struct {
	PollInterval      time.Duration
	IdleThreshold     time.Duration
	MinSessionSeconds int64
	IgnoredProcesses  []string
	FlushCount        int
	FlushInterval     time.Duration
}

// NewService builds the tracking pipeline. onFlush is forwarded to the
// session buffer and receives the distinct app ids touched by each
// successful flush (consumed by the daily limit checker).
func NewService(observer Observer, store storage.Store, cfg ServiceConfig, onFlush FlushCallback, logger zerolog.Logger) *Service {
	s := &Service{
		store:      store,
		logger:     logger.With().Str("component", "usage-tracker").Logger(),
		cfgIgnored: cfg.IgnoredProcesses,
		events:     make(chan SessionEnd, sessionQueueSize),
		workerDone: make(chan struct{}),
	}
	s.minSessionSeconds.Store(cfg.MinSessionSeconds)

	s.buffer = NewBuffer(store.Usage(), BufferConfig{
		FlushCount:    cfg.FlushCount,
		FlushInterval: cfg.FlushInterval,
	}, onFlush, logger)

	idle := cfg.IdleThreshold
	if idle > 0 {
		idle = clampIdleThreshold(idle)
	}
	s.engine = NewEngine(observer, EngineConfig{
		PollInterval:  cfg.PollInterval,
		IdleThreshold: idle,
	}, s.handleSessionEnd, logger)
	s.engine.SetIgnoredProcesses(s.baseIgnored(), nil)

	go s.worker()

	return s
}

// Engine exposes the engine for UI-facing subscriptions.
func (s *Service) Engine() *Engine {
	return s.engine
}

// Start applies persisted settings and begins polling. Idempotent.
func (s *Service) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	s.ApplySettings(ctx)
	s.engine.Start()
	s.logger.Info().Msg("Usage tracking started")
}

// Stop closes the open session, drains queued session events and
// deterministically awaits the final flush, so no session is lost on exit.
// Idempotent; the service cannot be restarted afterwards.
func (s *Service) Stop(ctx context.Context) error {
	s.started.Store(false)
	s.engine.Stop()

	var err error
	s.stopOnce.Do(func() {
		close(s.events)
		<-s.workerDone
		err = s.buffer.Close(ctx)
		s.logger.Info().Msg("Usage tracking stopped")
	})
	return err
}

// Suspend handles the system-sleep notification.
func (s *Service) Suspend() {
	s.engine.Suspend()
}

// Resume handles the system-wake notification.
func (s *Service) Resume() {
	s.engine.Resume()
}

// Flush persists buffered sessions now. Used before dashboard reads.
func (s *Service) Flush(ctx context.Context) error {
	return s.buffer.Flush(ctx)
}

// ApplySettings re-reads runtime settings from the settings store and pushes
// fresh snapshots into the engine. Malformed values keep defaults.
func (s *Service) ApplySettings(ctx context.Context) {
	settings := s.store.Settings()

	if v, ok := s.getSetting(ctx, settings, SettingIdleThreshold); ok {
		if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
			s.engine.SetIdleThreshold(clampIdleThreshold(time.Duration(secs) * time.Second))
		} else {
			s.logger.Warn().Str("value", v).Msg("Invalid idle threshold setting, keeping default")
		}
	}

	if v, ok := s.getSetting(ctx, settings, SettingMinSession); ok {
		if secs, err := strconv.ParseInt(v, 10, 64); err == nil && secs >= 0 {
			s.minSessionSeconds.Store(secs)
		} else {
			s.logger.Warn().Str("value", v).Msg("Invalid min session setting, keeping default")
		}
	}

	var user []string
	if v, ok := s.getSetting(ctx, settings, SettingIgnoredProcesses); ok {
		user = strings.Split(v, ",")
	}
	s.engine.SetIgnoredProcesses(s.baseIgnored(), user)
}

// baseIgnored merges the built-in ignore set with the processes the
// configuration file excludes.
func (s *Service) baseIgnored() []string {
	return append(baseIgnoredProcesses(), s.cfgIgnored...)
}

func (s *Service) getSetting(ctx context.Context, settings storage.SettingsStore, key string) (string, bool) {
	v, err := settings.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return "", false
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Failed to read setting")
		return "", false
	}
	return v, true
}

// handleSessionEnd runs on the tick goroutine and only enqueues, so the
// polling loop never waits on storage. A full queue means the store has been
// stuck for hours; the event is dropped rather than stalling the tick.
func (s *Service) handleSessionEnd(end SessionEnd) {
	select {
	case s.events <- end:
	default:
		s.logger.Warn().Str("process", end.ProcessName).Msg("Session queue full, dropping session")
	}
}

// worker drains session events in order and performs the storage-facing part
// of session end handling off the polling goroutine.
func (s *Service) worker() {
	defer close(s.workerDone)
	for end := range s.events {
		s.persistSessionEnd(end)
	}
}

// persistSessionEnd converts an engine event into a persistable session and
// hands it to the buffer.
func (s *Service) persistSessionEnd(end SessionEnd) {
	if min := s.minSessionSeconds.Load(); min > 0 && end.Duration() < min {
		return
	}

	ctx := context.Background()
	appID, err := s.store.Apps().GetOrCreateID(ctx, end.ProcessName, end.ExePath)
	if err != nil {
		s.logger.Error().Err(err).Str("process", end.ProcessName).Msg("Failed to resolve app id")
		return
	}

	started := end.StartedAt.Local()
	s.buffer.Add(storage.UsageSession{
		AppID:       appID,
		StartedAt:   started,
		EndedAt:     end.EndedAt.Local(),
		Idle:        end.Idle,
		WindowTitle: end.WindowTitle,
		DayDate:     started.Format(storage.DateFormat),
	})
}

func clampIdleThreshold(d time.Duration) time.Duration {
	if d < MinIdleThreshold {
		return MinIdleThreshold
	}
	if d > MaxIdleThreshold {
		return MaxIdleThreshold
	}
	return d
}

// baseIgnoredProcesses always contains the tracker's own process and the
// desktop shell.
func baseIgnoredProcesses() []string {
	base := []string{"monity", "explorer"}
	if exe, err := os.Executable(); err == nil {
		name := strings.TrimSuffix(filepath.Base(exe), filepath.Ext(exe))
		if name != "" {
			base = append(base, name)
		}
	}
	return base
}
