package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	assert.NoError(t, m.Track("leave:notify").End(nil))
	boom := errors.New("boom")
	assert.Same(t, boom, m.Track("leave:notify").End(boom))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("leave:notify", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("leave:notify", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("leave:notify")))
}

func TestAddNotifications(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddNotifications("submitted", 3)
	m.AddNotifications("submitted", 0)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.notifications.WithLabelValues("submitted")))

	var nilMetrics *Metrics
	nilMetrics.AddNotifications("submitted", 1)
	assert.NoError(t, nilMetrics.Track("x").End(nil))
}
