// Package metrics exposes Prometheus instruments for index builds and queries.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geofence_queries_total",
		Help: "Total number of membership queries",
	})
	QueryDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geofence_query_duration_ms",
		Help:    "Query stage duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 2000},
	}, []string{"stage"})
	DecryptRoundsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geofence_decrypt_rounds_total",
		Help: "Decryptions by pipeline stage",
	}, []string{"stage"})
	EmptyBandsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geofence_empty_bands_total",
		Help: "Queries whose latitude matched no band",
	})
	MatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geofence_matches_total",
		Help: "Inside decisions by path",
	}, []string{"path"})
	BufferAcceptsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geofence_buffer_accepts_total",
		Help: "Inside decisions reached through the stability buffer",
	})
	IndexZones = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "geofence_index_zones",
		Help: "Zones in the current spatial index",
	})
	IndexBuildDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "geofence_index_build_duration_ms",
		Help:    "Index build duration in milliseconds",
		Buckets: []float64{100, 500, 1000, 5000, 10000, 30000, 60000},
	})
	JobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geofence_jobs_total",
		Help: "Queued query jobs by final status",
	}, []string{"status"})
)

// Stage labels
const (
	StageLocate  = "locate"
	StagePrimary = "primary"
	StageBuffer  = "buffer"
	StageBatch   = "batch"
	StageBuild   = "build"
)

func init() {
	prometheus.MustRegister(QueriesTotal)
	prometheus.MustRegister(QueryDurationMs)
	prometheus.MustRegister(DecryptRoundsTotal)
	prometheus.MustRegister(EmptyBandsTotal)
	prometheus.MustRegister(MatchesTotal)
	prometheus.MustRegister(BufferAcceptsTotal)
	prometheus.MustRegister(IndexZones)
	prometheus.MustRegister(IndexBuildDurationMs)
	prometheus.MustRegister(JobsTotal)
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
