// Package prom implements the observability hooks with Prometheus
// collectors.
//
//	m := prom.New(prometheus.DefaultRegisterer)
//	m.Install()
//	http.Handle("/metrics", promhttp.Handler())
package prom

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mbuck21/BOM-Manager/pkg/errors"
	"github.com/mbuck21/BOM-Manager/pkg/observability"
)

const namespace = "bom"

// Metrics holds every collector. It implements all hook interfaces.
type Metrics struct {
	Mutations        *prometheus.CounterVec
	MutationDuration *prometheus.HistogramVec
	CyclesRejected   prometheus.Counter

	Rollups        *prometheus.CounterVec
	RollupDuration *prometheus.HistogramVec
	RollupEntries  *prometheus.HistogramVec

	Snapshots     *prometheus.CounterVec
	SnapshotParts prometheus.Histogram
	Diffs         *prometheus.CounterVec
	DiffDuration  prometheus.Histogram

	CacheRequests *prometheus.CounterVec
	CacheBytes    *prometheus.CounterVec

	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

var (
	_ observability.GraphHooks    = (*Metrics)(nil)
	_ observability.RollupHooks   = (*Metrics)(nil)
	_ observability.SnapshotHooks = (*Metrics)(nil)
	_ observability.CacheHooks    = (*Metrics)(nil)
	_ observability.HTTPHooks     = (*Metrics)(nil)
)

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Mutations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "mutations_total",
			Help:      "Graph mutations by operation and result code",
		}, []string{"op", "code"}),
		MutationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "mutation_duration_seconds",
			Help:      "Graph mutation latency including persistence",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		CyclesRejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "cycles_rejected_total",
			Help:      "Relationship insertions refused by the cycle check",
		}),

		Rollups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rollup",
			Name:      "runs_total",
			Help:      "Rollups by kind, cache use and result",
		}, []string{"kind", "cached", "status"}),
		RollupDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rollup",
			Name:      "duration_seconds",
			Help:      "Rollup latency",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"kind"}),
		RollupEntries: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rollup",
			Name:      "breakdown_entries",
			Help:      "Breakdown entries per rollup",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"kind"}),

		Snapshots: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "creates_total",
			Help:      "Snapshot creates, split by deduplication",
		}, []string{"deduplicated"}),
		SnapshotParts: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "parts",
			Help:      "Parts captured per snapshot",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		Diffs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "diffs_total",
			Help:      "Snapshot comparisons by outcome",
		}, []string{"equal"}),
		DiffDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "diff_duration_seconds",
			Help:      "Snapshot comparison latency",
			Buckets:   prometheus.DefBuckets,
		}),

		CacheRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "Cache lookups by key type and result",
		}, []string{"key_type", "result"}),
		CacheBytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "written_bytes_total",
			Help:      "Bytes written to the cache",
		}, []string{"key_type"}),

		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "API requests by route and status",
		}, []string{"method", "route", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "API request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Install registers m as every global hook.
func (m *Metrics) Install() {
	observability.SetGraphHooks(m)
	observability.SetRollupHooks(m)
	observability.SetSnapshotHooks(m)
	observability.SetCacheHooks(m)
	observability.SetHTTPHooks(m)
}

func (m *Metrics) OnMutation(_ context.Context, op string, d time.Duration, err error) {
	code := "OK"
	if err != nil {
		code = string(errors.GetCode(err))
		if code == "" {
			code = string(errors.ErrCodeInternal)
		}
	}
	m.Mutations.WithLabelValues(op, code).Inc()
	m.MutationDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) OnCycleRejected(context.Context, string, string) {
	m.CyclesRejected.Inc()
}

func (m *Metrics) OnRollupComplete(_ context.Context, kind string, entries int, cached bool, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.Rollups.WithLabelValues(kind, strconv.FormatBool(cached), status).Inc()
	m.RollupDuration.WithLabelValues(kind).Observe(d.Seconds())
	if err == nil {
		m.RollupEntries.WithLabelValues(kind).Observe(float64(entries))
	}
}

func (m *Metrics) OnSnapshotCreated(_ context.Context, _ string, deduplicated bool, parts, _ int) {
	m.Snapshots.WithLabelValues(strconv.FormatBool(deduplicated)).Inc()
	if !deduplicated {
		m.SnapshotParts.Observe(float64(parts))
	}
}

func (m *Metrics) OnDiff(_ context.Context, equal bool, d time.Duration) {
	m.Diffs.WithLabelValues(strconv.FormatBool(equal)).Inc()
	m.DiffDuration.Observe(d.Seconds())
}

func (m *Metrics) OnCacheHit(_ context.Context, keyType string) {
	m.CacheRequests.WithLabelValues(keyType, "hit").Inc()
}

func (m *Metrics) OnCacheMiss(_ context.Context, keyType string) {
	m.CacheRequests.WithLabelValues(keyType, "miss").Inc()
}

func (m *Metrics) OnCacheSet(_ context.Context, keyType string, size int) {
	m.CacheBytes.WithLabelValues(keyType).Add(float64(size))
}

func (m *Metrics) OnRequest(_ context.Context, method, route string, status int, d time.Duration) {
	m.Requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
