package oscore

import (
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// peerLimiter applies a token bucket per remote host and periodically evicts
// idle entries.
type peerLimiter struct {
	limit   rate.Limit
	burst   int
	mu      sync.Mutex
	byHost  map[string]*limiterEntry
	hits    uint64
	idleTTL time.Duration
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newPeerLimiter returns nil, which allows everything, when rps or burst is not positive.
func newPeerLimiter(rps float64, burst int, idleTTL time.Duration) *peerLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &peerLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		byHost:  make(map[string]*limiterEntry),
		idleTTL: idleTTL,
	}
}

func (l *peerLimiter) Allow(addr net.Addr, now time.Time) bool {
	if l == nil || addr == nil {
		return true
	}
	host := addr.String()
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byHost[host]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byHost[host] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-l.idleTTL)
		for k, v := range l.byHost {
			if v.lastSeen.Before(cutoff) {
				delete(l.byHost, k)
			}
		}
	}
	return allowed
}
