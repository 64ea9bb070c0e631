package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the JWT payload shared by access, refresh and reset tokens.
// Reset tokens only carry sub and email. Use records the TokenKind the
// token was issued as and is checked on verification.
type Claims struct {
	jwt.RegisteredClaims
	Use         TokenKind `json:"token_use"`
	Email       string    `json:"email"`
	Roles       []string  `json:"roles,omitempty"`
	Permissions []string  `json:"permissions,omitempty"`
}

// UserID returns the subject, which is the account id
func (c *Claims) UserID() string {
	return c.RegisteredClaims.Subject
}

// HasRole checks if the token grants role
func (c *Claims) HasRole(role string) bool {
	return containsString(c.Roles, role)
}

// HasPermission checks if the token grants permission
func (c *Claims) HasPermission(permission string) bool {
	return containsString(c.Permissions, permission)
}

// Expires returns the expiration time
func (c *Claims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *Claims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// Caller converts the claims into the identity the access engine checks
func (c *Claims) Caller() *Caller {
	if c == nil {
		return nil
	}
	return &Caller{
		ID:          c.UserID(),
		Email:       c.Email,
		Roles:       cloneStrings(c.Roles),
		Permissions: cloneStrings(c.Permissions),
	}
}
