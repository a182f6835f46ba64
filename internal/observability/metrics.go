package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UpdatesApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_tracker", Name: "updates_applied_total", Help: "Ride updates applied to the state machine"},
		[]string{"source"},
	)
	UpdatesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_tracker", Name: "updates_dropped_total", Help: "Ride updates dropped as duplicate, stale or illegal"},
		[]string{"source", "reason"},
	)
	EffectsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_tracker", Name: "effects_emitted_total", Help: "One-time UI effects emitted per transition"},
		[]string{"kind"},
	)

	PollsIssued  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_tracker", Name: "polls_issued_total", Help: "Snapshot fetches issued by the polling fallback"})
	PollsSkipped = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_tracker", Name: "polls_skipped_fresh_total", Help: "Poll ticks skipped because the state was fresh"})
	PollErrors   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_tracker", Name: "poll_errors_total", Help: "Snapshot fetch failures"})

	ChannelReconnects = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_tracker", Name: "channel_reconnects_total", Help: "Realtime channel reconnect attempts"})
	ChannelEvents     = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_tracker", Name: "channel_events_total", Help: "Typed events received on the realtime channel"},
		[]string{"event"},
	)

	CacheSaveErrors = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_tracker", Name: "cache_save_errors_total", Help: "Best-effort cache writes that failed"})
	Online          = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "ride_tracker", Name: "online", Help: "1 when the device is reachable, 0 when offline"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_tracker", Name: "http_requests_total", Help: "Total HTTP requests handled by the ops server"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ride_tracker",
			Name:      "http_request_duration_seconds",
			Help:      "Ops server request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
