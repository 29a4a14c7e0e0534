package resilience

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	apperrors "agency-assistant/internal/common/errors"
)

// Limiter gates calls to a keyed endpoint.
type Limiter interface {
	// Wait blocks until a call to key is admitted or ctx is done.
	Wait(ctx context.Context, key string) error
}

// SlidingWindow admits at most limit calls per key within any rolling
// window. Callers are suspended until the oldest call leaves the window.
type SlidingWindow struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	logs map[string][]time.Time
}

func NewSlidingWindow(limit int, window time.Duration) *SlidingWindow {
	if window <= 0 {
		window = time.Minute
	}
	return &SlidingWindow{
		limit:  limit,
		window: window,
		now:    time.Now,
		logs:   make(map[string][]time.Time),
	}
}

// reserve admits the call or returns how long to wait.
func (s *SlidingWindow) reserve(key string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	log := s.logs[key]
	cutoff := now.Add(-s.window)
	i := 0
	for i < len(log) && !log[i].After(cutoff) {
		i++
	}
	log = log[i:]

	if len(log) < s.limit {
		s.logs[key] = append(log, now)
		return 0
	}
	s.logs[key] = log
	return log[0].Add(s.window).Sub(now)
}

func (s *SlidingWindow) Wait(ctx context.Context, key string) error {
	if s.limit <= 0 {
		return nil
	}
	for {
		wait := s.reserve(key)
		if wait <= 0 {
			return nil
		}
		if err := sleep(ctx, key, wait); err != nil {
			return err
		}
	}
}

// sleep suspends for d unless ctx ends first. A wait that cannot finish
// before the caller's deadline fails immediately as rate_limited.
func sleep(ctx context.Context, key string, d time.Duration) error {
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < d {
		return apperrors.NewRateLimitedError(key, fmt.Sprintf("window full, next slot in %s", d.Round(time.Millisecond)))
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("rate limiter wait for %s: %w", key, ctx.Err())
	}
}

// slidingWindowScript trims the window, admits the call if there is room
// and otherwise returns the milliseconds until the oldest entry expires.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  redis.call('PEXPIRE', key, window)
  return 0
end
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local wait = tonumber(oldest[2]) + window - now
if wait < 1 then wait = 1 end
return wait
`)

// RedisSlidingWindow shares the window across processes through a sorted set.
type RedisSlidingWindow struct {
	client redis.Scripter
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedisSlidingWindow(client redis.Scripter, prefix string, limit int, window time.Duration) *RedisSlidingWindow {
	if window <= 0 {
		window = time.Minute
	}
	return &RedisSlidingWindow{client: client, prefix: prefix, limit: limit, window: window, now: time.Now}
}

func (r *RedisSlidingWindow) Wait(ctx context.Context, key string) error {
	if r.limit <= 0 {
		return nil
	}
	for {
		now := r.now().UnixMilli()
		waitMS, err := slidingWindowScript.Run(ctx, r.client,
			[]string{r.prefix + "ratelimit:" + key},
			strconv.FormatInt(now, 10), r.window.Milliseconds(), r.limit, uuid.NewString(),
		).Int64()
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("rate limiter wait for %s: %w", key, ctx.Err())
			}
			return apperrors.NewNetworkError("redis rate limiter", err)
		}
		if waitMS <= 0 {
			return nil
		}
		if err := sleep(ctx, key, time.Duration(waitMS)*time.Millisecond); err != nil {
			return err
		}
	}
}
