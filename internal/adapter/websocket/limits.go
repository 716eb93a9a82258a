package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/pscheid92/askpulse/internal/adapter/metrics"
)

// LimitReason describes why a connection was rejected.
type LimitReason string

const (
	LimitReasonGlobal LimitReason = "global_limit"
	LimitReasonPerIP  LimitReason = "per_ip_limit"
	LimitReasonRate   LimitReason = "rate_limit"
)

const (
	limiterIdleAfter     = 10 * time.Minute
	limiterSweepInterval = 5 * time.Minute
)

// ConnectionLimits caps concurrent realtime connections per instance and per
// client IP, and the rate at which one IP may open new connections.
// Both WebSocket endpoints share one instance.
type ConnectionLimits struct {
	clock   clockwork.Clock
	metrics *metrics.WebSocketMetrics

	current   atomic.Int64
	globalMax int64

	mu        sync.Mutex
	perIP     map[string]int
	perIPMax  int
	limiters  map[string]*rateLimiterEntry
	rate      rate.Limit
	burst     int
	nextSweep time.Time
}

type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewConnectionLimits(clock clockwork.Clock, m *metrics.WebSocketMetrics, globalMax int64, perIPMax int, connectionsPerSecond float64, burst int) *ConnectionLimits {
	return &ConnectionLimits{
		clock:     clock,
		metrics:   m,
		globalMax: globalMax,
		perIP:     make(map[string]int),
		perIPMax:  perIPMax,
		limiters:  make(map[string]*rateLimiterEntry),
		rate:      rate.Limit(connectionsPerSecond),
		burst:     burst,
		nextSweep: clock.Now().Add(limiterSweepInterval),
	}
}

// Acquire reserves a connection slot for ip. On success the caller must call
// Release once the connection ends.
func (l *ConnectionLimits) Acquire(ip string) (bool, LimitReason) {
	reason := l.acquire(ip)
	if reason != "" {
		if l.metrics != nil {
			l.metrics.ConnectionsRejected.WithLabelValues(string(reason)).Inc()
		}
		return false, reason
	}
	return true, ""
}

func (l *ConnectionLimits) acquire(ip string) LimitReason {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.allowRateLocked(ip) {
		return LimitReasonRate
	}
	if !l.acquireGlobal() {
		return LimitReasonGlobal
	}
	if l.perIP[ip] >= l.perIPMax {
		l.current.Add(-1)
		return LimitReasonPerIP
	}
	l.perIP[ip]++
	return ""
}

// acquireGlobal runs under mu, so increments never race; Release only decrements.
func (l *ConnectionLimits) acquireGlobal() bool {
	if l.current.Load() >= l.globalMax {
		return false
	}
	l.current.Add(1)
	return true
}

func (l *ConnectionLimits) allowRateLocked(ip string) bool {
	now := l.clock.Now()
	if now.After(l.nextSweep) {
		cutoff := now.Add(-limiterIdleAfter)
		for key, entry := range l.limiters {
			if entry.lastSeen.Before(cutoff) {
				delete(l.limiters, key)
			}
		}
		l.nextSweep = now.Add(limiterSweepInterval)
	}

	entry, ok := l.limiters[ip]
	if !ok {
		entry = &rateLimiterEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func (l *ConnectionLimits) Release(ip string) {
	l.mu.Lock()
	if count := l.perIP[ip]; count > 1 {
		l.perIP[ip] = count - 1
	} else {
		delete(l.perIP, ip)
	}
	l.mu.Unlock()
	l.current.Add(-1)
}

// Current returns the number of open connections.
func (l *ConnectionLimits) Current() int64 {
	return l.current.Load()
}
