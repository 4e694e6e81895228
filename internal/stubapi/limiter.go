package stubapi

import (
	"sync"
	"time"
)

// pollLimiter throttles per-user, per-recording status polls so a
// misbehaving client cannot hammer the detail endpoint.
type pollLimiter struct {
	mu      sync.Mutex
	lastHit map[string]time.Time
	now     func() time.Time
	window  time.Duration
}

func newPollLimiter(window time.Duration, now func() time.Time) *pollLimiter {
	if now == nil {
		now = time.Now
	}
	return &pollLimiter{
		lastHit: make(map[string]time.Time),
		now:     now,
		window:  window,
	}
}

// Allow reports whether the caller may poll the recording now and records
// the hit.
func (l *pollLimiter) Allow(userID, recordingKey string) bool {
	key := userID + "|" + recordingKey
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if last, ok := l.lastHit[key]; ok && now.Sub(last) < l.window {
		return false
	}
	l.lastHit[key] = now
	return true
}

// RetryAfterSeconds returns the advisory wait for throttled responses.
func (l *pollLimiter) RetryAfterSeconds() int {
	secs := int(l.window.Seconds())
	if secs < 1 {
		secs = 1
	}
	return secs
}
