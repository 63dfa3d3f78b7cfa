package telegram

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL    = 10 * time.Minute
	limiterPruneAbove = 1024
)

type userLimiter struct {
	bucket *rate.Limiter
	seen   time.Time
}

// limiter keeps one token bucket per telegram user.
type limiter struct {
	mu    sync.Mutex
	every rate.Limit
	burst int
	users map[int64]*userLimiter
}

func newLimiter(every rate.Limit, burst int) *limiter {
	return &limiter{
		every: every,
		burst: burst,
		users: make(map[int64]*userLimiter),
	}
}

func (l *limiter) allow(telegramID int64, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	u, ok := l.users[telegramID]
	if !ok {
		if len(l.users) >= limiterPruneAbove {
			l.prune(now)
		}
		u = &userLimiter{bucket: rate.NewLimiter(l.every, l.burst)}
		l.users[telegramID] = u
	}
	u.seen = now

	return u.bucket.AllowN(now, 1)
}

// prune drops buckets idle long enough to have refilled. Callers hold mu.
func (l *limiter) prune(now time.Time) {
	for id, u := range l.users {
		if now.Sub(u.seen) > limiterIdleTTL {
			delete(l.users, id)
		}
	}
}
