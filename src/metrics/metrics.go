// Package metrics holds the Prometheus collectors exported by the sink.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BlocksProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geosink_blocks_processed_total",
		Help: "Block-scoped messages whose handlers completed.",
	})

	BlocksFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geosink_blocks_failed_total",
		Help: "Blocks whose processing failed after retries.",
	})

	CursorBlock = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "geosink_cursor_block_number",
		Help: "Block number of the last persisted cursor.",
	})

	UndoSignals = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geosink_undo_signals_total",
		Help: "Chain reorganization undo signals received.",
	})

	StreamRestarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geosink_stream_restarts_total",
		Help: "Stream runs restarted, by reason.",
	}, []string{"reason"})

	EventsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geosink_events_handled_total",
		Help: "Decoded event elements dispatched to handlers, by kind.",
	}, []string{"kind"})

	EventsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geosink_events_skipped_total",
		Help: "Event elements skipped, by kind and reason.",
	}, []string{"kind", "reason"})

	ContentFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geosink_content_fetches_total",
		Help: "Content resolver lookups, by scheme and result.",
	}, []string{"scheme", "result"})

	ContentFetchSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "geosink_content_fetch_seconds",
		Help:    "Latency of gateway fetches.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	GatewayBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "geosink_gateway_breaker_state",
		Help: "Gateway circuit breaker state (0=closed, 1=half-open, 2=open).",
	})

	StoreRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geosink_store_retries_total",
		Help: "Store operations retried, by table and operation.",
	}, []string{"table", "op"})

	StoreFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geosink_store_failures_total",
		Help: "Store operations that failed after retries.",
	}, []string{"table", "op"})

	ProposalTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geosink_proposal_transitions_total",
		Help: "Proposal status transitions, by target status.",
	}, []string{"status"})
)
