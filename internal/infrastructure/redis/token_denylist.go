package redis

import (
	"context"
	"fmt"
	"time"
)

const revokedTokenKeyPattern = "jwt_revoked:%s" // token ID

// RevokedTokenKey generates the key marking a JWT as logged out
func RevokedTokenKey(tokenID string) string {
	return fmt.Sprintf(revokedTokenKeyPattern, tokenID)
}

// RevokeToken denies tokenID until ttl elapses (the token's own expiry).
func (c *Client) RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	_, err := c.SetNX(ctx, RevokedTokenKey(tokenID), "revoked", ttl)
	return err
}

// IsTokenRevoked reports whether tokenID was logged out
func (c *Client) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	return c.Exists(ctx, RevokedTokenKey(tokenID))
}
