package domain

import "time"

// TokenClaims holds the validated claims of an admin access token.
type TokenClaims struct {
	UserID string
	Email  string
	Exp    int64
	Iat    int64
}

// IsExpired checks if the token is expired
func (c *TokenClaims) IsExpired() bool {
	return time.Now().Unix() > c.Exp
}
