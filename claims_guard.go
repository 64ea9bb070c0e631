package auth

import (
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// claims a decorator must leave alone, in the order they are checked
var lockedClaimNames = [...]string{"sub", "iss", "jti", "iat", "exp", "token_use"}

type lockedClaims [len(lockedClaimNames)]string

func lockClaims(claims *Claims) lockedClaims {
	rc := claims.RegisteredClaims
	return lockedClaims{
		rc.Subject,
		rc.Issuer,
		rc.ID,
		numericDateKey(rc.IssuedAt),
		numericDateKey(rc.ExpiresAt),
		string(claims.Use),
	}
}

// verify returns an ErrImmutableClaimMutation naming the first claim that
// differs from the locked values.
func (l lockedClaims) verify(claims *Claims) error {
	current := lockClaims(claims)
	for i, name := range lockedClaimNames {
		if current[i] != l[i] {
			return immutableClaimViolation(name)
		}
	}
	return nil
}

func numericDateKey(date *jwt.NumericDate) string {
	if date == nil {
		return ""
	}
	return strconv.FormatInt(date.UnixNano(), 10)
}

func immutableClaimViolation(field string) error {
	clone := ErrImmutableClaimMutation.Clone()
	if clone == nil {
		return ErrImmutableClaimMutation
	}
	clone.Message = fmt.Sprintf("immutable claim mutated: %s", field)
	clone.Source = ErrImmutableClaimMutation
	return clone.WithMetadata(map[string]any{"claim": field})
}
