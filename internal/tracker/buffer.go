package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rzayevsahil/Monity/internal/metrics"
	"github.com/rzayevsahil/Monity/internal/storage"
)

const (
	// DefaultFlushCount triggers a flush once this many sessions are queued.
	DefaultFlushCount = 20

	// DefaultFlushInterval bounds how stale buffered sessions may get.
	DefaultFlushInterval = 5 * time.Minute
)

// FlushCallback receives the distinct app ids touched by a successful flush.
type FlushCallback func(appIDs []int64)

// Buffer coalesces session writes so the polling tick never blocks on
// storage latency. Producers enqueue from any goroutine; a single worker
// performs flushes, and at most one flush is in flight at a time.
type Buffer struct {
	usage   storage.UsageStore
	logger  zerolog.Logger
	onFlush FlushCallback

	flushCount    int
	flushInterval time.Duration

	mu        sync.Mutex
	queue     []storage.UsageSession
	lastFlush time.Time

	// flushMu is the single-flight gate. Opportunistic flushes TryLock and
	// give up; only Close takes it blocking, to await an in-flight flush.
	flushMu sync.Mutex

	wake      chan struct{}
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// BufferConfig holds buffer tuning knobs; zero values select defaults.
type BufferConfig struct {
	FlushCount    int
	FlushInterval time.Duration
}

// NewBuffer creates a session buffer. onFlush may be nil; its failures are
// isolated from the buffer's own retry logic.
func NewBuffer(usage storage.UsageStore, cfg BufferConfig, onFlush FlushCallback, logger zerolog.Logger) *Buffer {
	if cfg.FlushCount <= 0 {
		cfg.FlushCount = DefaultFlushCount
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}

	b := &Buffer{
		usage:         usage,
		logger:        logger.With().Str("component", "session-buffer").Logger(),
		onFlush:       onFlush,
		flushCount:    cfg.FlushCount,
		flushInterval: cfg.FlushInterval,
		lastFlush:     time.Now(),
		wake:          make(chan struct{}, 1),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	go b.worker()
	return b
}

// Add enqueues a session and wakes the flush worker when either the count or
// the staleness threshold is reached. Never blocks on storage.
func (b *Buffer) Add(session storage.UsageSession) {
	b.mu.Lock()
	b.queue = append(b.queue, session)
	pending := len(b.queue)
	stale := time.Since(b.lastFlush) >= b.flushInterval
	b.mu.Unlock()

	metrics.BufferPending.Set(float64(pending))

	if pending >= b.flushCount || stale {
		select {
		case b.wake <- struct{}{}:
		default:
		}
	}
}

// Len reports the number of buffered sessions.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Flush drains the queue and persists the batch. If another flush is already
// in flight it returns immediately; the next qualifying Add or the periodic
// worker will retry. On persistence failure every drained item is re-enqueued
// and the last-flush timestamp is not advanced.
func (b *Buffer) Flush(ctx context.Context) error {
	if !b.flushMu.TryLock() {
		return nil
	}
	defer b.flushMu.Unlock()
	return b.flushLocked(ctx)
}

func (b *Buffer) flushLocked(ctx context.Context) error {
	b.mu.Lock()
	batch := b.queue
	b.queue = nil
	b.mu.Unlock()

	if len(batch) == 0 {
		b.mu.Lock()
		b.lastFlush = time.Now()
		b.mu.Unlock()
		return nil
	}

	if err := b.usage.InsertSessions(ctx, batch); err != nil {
		metrics.FlushFailures.Inc()
		b.logger.Error().Err(err).Int("sessions", len(batch)).Msg("Flush failed, re-enqueueing batch")

		b.mu.Lock()
		b.queue = append(b.queue, batch...)
		pending := len(b.queue)
		b.mu.Unlock()
		metrics.BufferPending.Set(float64(pending))
		return err
	}

	b.mu.Lock()
	b.lastFlush = time.Now()
	pending := len(b.queue)
	b.mu.Unlock()

	metrics.FlushesTotal.Inc()
	metrics.FlushedSessions.Add(float64(len(batch)))
	metrics.BufferPending.Set(float64(pending))
	b.logger.Debug().Int("sessions", len(batch)).Msg("Flushed session batch")

	b.notifyFlushed(batch)
	return nil
}

// notifyFlushed invokes the post-flush callback with the distinct app ids in
// the batch. Callback panics are logged and discarded; they must never block
// the next flush or re-enqueue items.
func (b *Buffer) notifyFlushed(batch []storage.UsageSession) {
	if b.onFlush == nil {
		return
	}

	seen := make(map[int64]struct{}, len(batch))
	appIDs := make([]int64, 0, len(batch))
	for _, s := range batch {
		if _, ok := seen[s.AppID]; !ok {
			seen[s.AppID] = struct{}{}
			appIDs = append(appIDs, s.AppID)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Interface("panic", r).Msg("Post-flush callback panicked")
		}
	}()
	b.onFlush(appIDs)
}

// Close stops the worker and performs one final flush, blocking until any
// in-flight flush has completed first. No session is lost on shutdown.
func (b *Buffer) Close(ctx context.Context) error {
	b.closeOnce.Do(func() {
		close(b.stop)
	})
	<-b.done

	b.flushMu.Lock()
	defer b.flushMu.Unlock()
	return b.flushLocked(ctx)
}

func (b *Buffer) worker() {
	defer close(b.done)

	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.wake:
			_ = b.Flush(context.Background())
		case <-ticker.C:
			_ = b.Flush(context.Background())
		case <-b.stop:
			return
		}
	}
}
