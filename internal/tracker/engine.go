package tracker

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rzayevsahil/Monity/internal/metrics"
)

const (
	// DefaultPollInterval is how often the engine samples the observer.
	DefaultPollInterval = 1 * time.Second

	// DefaultIdleThreshold is the inactivity duration after which the open
	// session is closed as idle.
	DefaultIdleThreshold = 60 * time.Second
)

// SessionEnd is emitted once per completed foreground interval.
type SessionEnd struct {
	ProcessName string
	ExePath     string
	StartedAt   time.Time
	EndedAt     time.Time
	Idle        bool
	WindowTitle string
}

// Duration returns the interval length in whole seconds.
func (e SessionEnd) Duration() int64 {
	return int64(e.EndedAt.Sub(e.StartedAt).Seconds())
}

// ForegroundChange is a UI-facing notification; it is never persisted.
type ForegroundChange struct {
	ProcessName string
	ExePath     string
}

// Engine turns the polled foreground signal into session boundaries. Each
// tick runs under one mutex, so lifecycle calls from other goroutines never
// interleave with an in-progress tick. The tick never touches storage; ended
// sessions are handed to the SessionEnded callback.
type Engine struct {
	observer Observer
	logger   zerolog.Logger

	pollInterval  time.Duration
	idleThreshold atomic.Int64 // nanoseconds

	// ignored holds a copy-on-write snapshot (map[string]struct{} of
	// lower-cased names), so a tick in progress always sees a consistent
	// set while settings edits swap in a new one.
	ignored atomic.Value

	mu        sync.Mutex
	current   *Sample
	startedAt time.Time
	stop      chan struct{}
	stopped   chan struct{}

	onSessionEnd func(SessionEnd)
	fgMu         sync.Mutex
	fgListeners  []func(ForegroundChange)

	now func() time.Time
}

// EngineConfig holds engine tuning knobs; zero values select defaults.
type EngineConfig struct {
	PollInterval  time.Duration
	IdleThreshold time.Duration
}

// NewEngine creates a tracking engine. onSessionEnd receives every completed
// session; it is called synchronously from the tick and must not block on
// I/O (enqueue for a worker instead).
func NewEngine(observer Observer, cfg EngineConfig, onSessionEnd func(SessionEnd), logger zerolog.Logger) *Engine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.IdleThreshold <= 0 {
		cfg.IdleThreshold = DefaultIdleThreshold
	}

	e := &Engine{
		observer:     observer,
		logger:       logger.With().Str("component", "tracking-engine").Logger(),
		pollInterval: cfg.PollInterval,
		onSessionEnd: onSessionEnd,
		now:          time.Now,
	}
	e.idleThreshold.Store(int64(cfg.IdleThreshold))
	e.ignored.Store(map[string]struct{}{})
	return e
}

// SetIdleThreshold replaces the idle threshold at runtime.
func (e *Engine) SetIdleThreshold(d time.Duration) {
	if d > 0 {
		e.idleThreshold.Store(int64(d))
	}
}

// SetIgnoredProcesses replaces the ignore set with the union of the base and
// user lists. Matching is case-insensitive.
func (e *Engine) SetIgnoredProcesses(base, user []string) {
	set := make(map[string]struct{}, len(base)+len(user))
	for _, p := range base {
		set[strings.ToLower(p)] = struct{}{}
	}
	for _, p := range user {
		p = strings.TrimSpace(p)
		if p != "" {
			set[strings.ToLower(p)] = struct{}{}
		}
	}
	e.ignored.Store(set)
}

// OnForegroundChanged registers a UI-facing subscriber. Subscriber panics are
// swallowed so a bad listener cannot stall the polling timer.
func (e *Engine) OnForegroundChanged(fn func(ForegroundChange)) {
	e.fgMu.Lock()
	defer e.fgMu.Unlock()
	e.fgListeners = append(e.fgListeners, fn)
}

// Start begins the polling timer. Idempotent.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stop != nil {
		return
	}
	e.stop = make(chan struct{})
	e.stopped = make(chan struct{})
	go e.run(e.stop, e.stopped)
	e.logger.Info().Dur("poll_interval", e.pollInterval).Msg("Tracking engine started")
}

// Stop halts the polling timer and closes any open session against "now".
// Idempotent; returns once the final session has been handed off.
func (e *Engine) Stop() {
	e.mu.Lock()
	stop, stopped := e.stop, e.stopped
	e.stop = nil
	e.stopped = nil
	e.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-stopped

	e.mu.Lock()
	e.closeCurrent(false)
	e.mu.Unlock()
	e.logger.Info().Msg("Tracking engine stopped")
}

// Suspend closes the open session so a long sleep is not counted as one
// giant active interval. The timer keeps running.
func (e *Engine) Suspend() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closeCurrent(false)
	e.logger.Info().Msg("Power suspend - flushed current session")
}

// Resume clears tracking state without emitting a close; the next tick
// re-samples fresh.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = nil
	e.logger.Info().Msg("Power resume - reset tracking state")
}

func (e *Engine) run(stop, stopped chan struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.tick()
		case <-stop:
			return
		}
	}
}

// tick performs one poll. Exported behavior is described in engine doc; the
// whole transition runs under the engine mutex.
func (e *Engine) tick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.observer.Idle() >= time.Duration(e.idleThreshold.Load()) {
		e.closeCurrent(true)
		return
	}

	sample := e.observer.Sample()
	if sample == nil {
		return
	}

	ignored := e.ignored.Load().(map[string]struct{})
	if _, ok := ignored[strings.ToLower(sample.ProcessName)]; ok {
		return
	}

	if e.current != nil && e.current.Key() == sample.Key() {
		// Same foreground app; update the title snapshot so the close
		// carries the last known one.
		e.current.WindowTitle = sample.WindowTitle
		return
	}

	e.closeCurrent(false)

	e.current = sample
	e.startedAt = e.now()
	e.notifyForegroundChanged(ForegroundChange{
		ProcessName: sample.ProcessName,
		ExePath:     sample.ExePath,
	})
}

// closeCurrent emits a session for the open interval, if any. Zero-duration
// closes are dropped, which also guards against double-close races. Caller
// holds e.mu.
func (e *Engine) closeCurrent(idle bool) {
	if e.current == nil {
		return
	}

	end := SessionEnd{
		ProcessName: e.current.ProcessName,
		ExePath:     e.current.ExePath,
		StartedAt:   e.startedAt,
		EndedAt:     e.now(),
		Idle:        idle,
		WindowTitle: e.current.WindowTitle,
	}
	e.current = nil

	if end.Duration() <= 0 {
		return
	}

	metrics.SessionsRecorded.WithLabelValues(boolLabel(idle)).Inc()

	if e.onSessionEnd != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error().Interface("panic", r).Msg("Session-ended listener panicked")
				}
			}()
			e.onSessionEnd(end)
		}()
	}
}

func (e *Engine) notifyForegroundChanged(change ForegroundChange) {
	metrics.ForegroundChanges.Inc()

	e.fgMu.Lock()
	listeners := make([]func(ForegroundChange), len(e.fgListeners))
	copy(listeners, e.fgListeners)
	e.fgMu.Unlock()

	for _, fn := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error().Interface("panic", r).Msg("Foreground-changed listener panicked")
				}
			}()
			fn(change)
		}()
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
