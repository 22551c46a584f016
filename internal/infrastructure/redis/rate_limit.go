package redis

import (
	"context"
	"fmt"
	"time"
)

const rateLimitKeyPattern = "ratelimit:%s" // client key (usually IP)

// RateLimitKey generates the fixed-window counter key for a client
func RateLimitKey(client string) string {
	return fmt.Sprintf(rateLimitKeyPattern, client)
}

// AllowRequest counts one request for client in a fixed window.
// When the limit is exceeded it reports how long until the window resets.
func (c *Client) AllowRequest(ctx context.Context, client string, window time.Duration, max int) (bool, time.Duration, error) {
	key := RateLimitKey(client)
	count, err := c.Incr(ctx, key)
	if err != nil {
		return false, 0, err
	}
	// Set expiry on first increment
	if count == 1 {
		if err := c.Expire(ctx, key, window); err != nil {
			return false, 0, err
		}
	}
	if count <= int64(max) {
		return true, 0, nil
	}

	ttl, err := c.TTL(ctx, key)
	if err != nil {
		return false, 0, err
	}
	if ttl < 0 {
		// Counter lost its expiry; restore it so the client is not blocked forever.
		_ = c.Expire(ctx, key, window)
		ttl = window
	}
	return false, ttl, nil
}
