package middleware

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"golang.org/x/time/rate"

	"mediashelf/internal/utils"
)

// NewRateLimiter creates a fixed-window limiter keyed by client IP
func NewRateLimiter(max int, window time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		LimitReached: func(c *fiber.Ctx) error {
			return utils.SendError(c, fiber.StatusTooManyRequests, utils.CodeRateLimited,
				"Too many requests. Please try again later.")
		},
	})
}

// UserRateLimiter throttles individual users with a token bucket each
type UserRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*entry
	limit    rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewUserRateLimiter allows perMinute events per user, with bursts of the same size
func NewUserRateLimiter(perMinute int) *UserRateLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &UserRateLimiter{
		limiters: make(map[string]*entry),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		idle:     10 * time.Minute,
		now:      time.Now,
	}
}

// Allow consumes one event for key
func (u *UserRateLimiter) Allow(key string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	now := u.now()
	e, ok := u.limiters[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(u.limit, u.burst)}
		u.limiters[key] = e
	}
	e.lastSeen = now
	u.evict(now)
	return e.limiter.AllowN(now, 1)
}

// evict drops limiters idle long enough to have refilled completely
func (u *UserRateLimiter) evict(now time.Time) {
	for key, e := range u.limiters {
		if now.Sub(e.lastSeen) > u.idle {
			delete(u.limiters, key)
		}
	}
}

// Handler limits authenticated users by id and anonymous requests by IP
func (u *UserRateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.IP()
		if user, ok := GetAuthUser(c); ok {
			key = user.ID
		}
		if !u.Allow(key) {
			return utils.SendError(c, fiber.StatusTooManyRequests, utils.CodeRateLimited,
				"Too many uploads. Please try again later.")
		}
		return c.Next()
	}
}
