package llm

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/time/rate"

	"github.com/xaenox/calbot/internal/models"
)

// ErrRateLimited is returned when a user has exhausted their completion
// allowance for the current window.
var ErrRateLimited = errors.New("llm: per-user rate limit exceeded")

type userContextKey struct{}

// WithUser tags the context with the id whose rate allowance the request
// consumes.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userContextKey{}, userID)
}

// UserFromContext returns the tagged user id, or "" when absent.
func UserFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userContextKey{}).(string)
	return userID
}

type userRateLimitedClient struct {
	base  Client
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// WrapWithUserRateLimit enforces a per-user token bucket in front of base.
// A non-positive limit disables limiting and returns base unchanged. Users
// are distinguished by WithUser tags; untagged requests share one bucket.
func WrapWithUserRateLimit(base Client, limit rate.Limit, burst int) Client {
	if limit <= 0 {
		return base
	}
	if burst < 1 {
		burst = 1
	}
	return &userRateLimitedClient{
		base:     base,
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (c *userRateLimitedClient) limiterFor(userID string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	limiter, exists := c.limiters[userID]
	if !exists {
		limiter = rate.NewLimiter(c.limit, c.burst)
		c.limiters[userID] = limiter
	}
	return limiter
}

func (c *userRateLimitedClient) Complete(ctx context.Context, turns []models.Turn) (string, error) {
	if !c.limiterFor(UserFromContext(ctx)).Allow() {
		return "", ErrRateLimited
	}
	return c.base.Complete(ctx, turns)
}
