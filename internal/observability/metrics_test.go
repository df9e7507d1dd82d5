// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package observability

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordRequest(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordRequest("register", "201", 30*time.Millisecond)
	m.RecordRequest("register", "201", 10*time.Millisecond)
	m.RecordRequest("register", "400", time.Millisecond)

	assert.InDelta(t, 2, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("register", "201")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("register", "400")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.RequestDuration))
}

func TestMetrics_RecordNotification(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordNotification("sent")
	m.RecordNotification("failed")
	m.RecordNotification("sent")

	expected := `
# HELP authkeep_notifications_total Total number of notification deliveries by result
# TYPE authkeep_notifications_total counter
authkeep_notifications_total{result="failed"} 1
authkeep_notifications_total{result="sent"} 2
`
	require.NoError(t, testutil.CollectAndCompare(m.NotificationsTotal, strings.NewReader(expected)))
}

func TestNewMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)

	assert.Panics(t, func() { NewMetrics(reg) })
}
