package websocket

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/pscheid92/askpulse/internal/adapter/metrics"
)

func TestConnectionLimits_Global(t *testing.T) {
	limits := NewConnectionLimits(clockwork.NewFakeClock(), nil, 2, 10, 100, 100)

	ok, _ := limits.Acquire("10.0.0.1")
	assert.True(t, ok)
	ok, _ = limits.Acquire("10.0.0.2")
	assert.True(t, ok)

	ok, reason := limits.Acquire("10.0.0.3")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonGlobal, reason)

	limits.Release("10.0.0.1")
	ok, _ = limits.Acquire("10.0.0.3")
	assert.True(t, ok)
	assert.Equal(t, int64(2), limits.Current())
}

func TestConnectionLimits_PerIP(t *testing.T) {
	m := metrics.NewWebSocketMetrics(prometheus.NewRegistry())
	limits := NewConnectionLimits(clockwork.NewFakeClock(), m, 100, 1, 100, 100)

	ok, _ := limits.Acquire("10.0.0.1")
	assert.True(t, ok)

	ok, reason := limits.Acquire("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonPerIP, reason)
	assert.Equal(t, int64(1), limits.Current(), "rejected per-IP attempt must not leak a global slot")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConnectionsRejected.WithLabelValues(string(LimitReasonPerIP))))

	limits.Release("10.0.0.1")
	ok, _ = limits.Acquire("10.0.0.1")
	assert.True(t, ok)
}

func TestConnectionLimits_Rate(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limits := NewConnectionLimits(clock, nil, 100, 100, 1, 2)

	for range 2 {
		ok, _ := limits.Acquire("10.0.0.1")
		assert.True(t, ok)
	}
	ok, reason := limits.Acquire("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonRate, reason)

	clock.Advance(time.Second)
	ok, _ = limits.Acquire("10.0.0.1")
	assert.True(t, ok)
}

func TestConnectionLimits_SweepsIdleRateLimiters(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limits := NewConnectionLimits(clock, nil, 100, 100, 1, 1)

	limits.Acquire("10.0.0.1")
	limits.Release("10.0.0.1")

	clock.Advance(limiterIdleAfter + time.Minute)
	limits.Acquire("10.0.0.2")

	limits.mu.Lock()
	defer limits.mu.Unlock()
	assert.NotContains(t, limits.limiters, "10.0.0.1")
	assert.Contains(t, limits.limiters, "10.0.0.2")
}
