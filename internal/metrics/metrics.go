package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Tracking metrics
	SessionsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monity_sessions_recorded_total",
			Help: "Usage sessions emitted by the tracking engine",
		},
		[]string{"idle"},
	)

	ForegroundChanges = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "monity_foreground_changes_total",
			Help: "Foreground application changes observed",
		},
	)

	// Buffer metrics
	BufferPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "monity_buffer_pending_sessions",
			Help: "Sessions waiting in the write buffer",
		},
	)

	FlushesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "monity_flushes_total",
			Help: "Successful buffer flushes",
		},
	)

	FlushFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "monity_flush_failures_total",
			Help: "Buffer flushes that failed and were re-enqueued",
		},
	)

	FlushedSessions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "monity_flushed_sessions_total",
			Help: "Sessions persisted through the buffer",
		},
	)

	// Limit metrics
	LimitNotifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monity_limit_notifications_total",
			Help: "Daily limit notifications sent",
		},
		[]string{"process"},
	)
)

// Register registers all metrics with the default registry
func Register() {
	prometheus.MustRegister(
		SessionsRecorded,
		ForegroundChanges,
		BufferPending,
		FlushesTotal,
		FlushFailures,
		FlushedSessions,
		LimitNotifications,
	)
}

// Serve starts the metrics HTTP server on the given listener
func Serve(listener net.Listener, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	logger.Info().Str("addr", listener.Addr().String()).Msg("Metrics server started")

	go func() {
		if err := http.Serve(listener, mux); err != nil {
			logger.Error().Err(err).Msg("Metrics server stopped")
		}
	}()
}
