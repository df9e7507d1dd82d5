// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the authkeep Prometheus collectors.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	NotificationsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers the authkeep metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authkeep_requests_total",
				Help: "Total number of auth requests by operation and status",
			},
			[]string{"operation", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authkeep_request_duration_seconds",
				Help:    "Auth request latency by operation",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		NotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authkeep_notifications_total",
				Help: "Total number of notification deliveries by result",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(m.RequestsTotal)
	reg.MustRegister(m.RequestDuration)
	reg.MustRegister(m.NotificationsTotal)

	return m
}

// RecordRequest counts a finished request and observes its latency.
func (m *Metrics) RecordRequest(operation, status string, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(operation, status).Inc()
	m.RequestDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// RecordNotification counts a notification delivery outcome.
func (m *Metrics) RecordNotification(result string) {
	m.NotificationsTotal.WithLabelValues(result).Inc()
}
