// Package metrics provides Prometheus metrics for checkpoint storage operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Backend operation metrics
	BackendOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ckptstore_backend_ops_total",
			Help: "Total number of backend storage operations",
		},
		[]string{"backend_type", "operation"},
	)

	BackendOpErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ckptstore_backend_op_errors_total",
			Help: "Total number of failed backend storage operations",
		},
		[]string{"backend_type", "operation"},
	)

	BackendOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ckptstore_backend_op_duration_seconds",
			Help:    "Backend storage operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend_type", "operation"},
	)

	// Transfer volume metrics
	BytesTransferredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ckptstore_bytes_transferred_total",
			Help: "Total bytes transferred to or from the backend",
		},
		[]string{"backend_type", "direction"},
	)

	// Staging area metrics
	StagingCleanupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ckptstore_staging_cleanups_total",
			Help: "Total number of staging subdirectory removals",
		},
		[]string{"backend_type"},
	)
)

// ObserveOp records one backend operation outcome and its duration.
func ObserveOp(backendType, operation string, seconds float64, err error) {
	BackendOpsTotal.WithLabelValues(backendType, operation).Inc()
	BackendOpDuration.WithLabelValues(backendType, operation).Observe(seconds)
	if err != nil {
		BackendOpErrorsTotal.WithLabelValues(backendType, operation).Inc()
	}
}
