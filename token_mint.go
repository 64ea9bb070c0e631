package auth

import "github.com/golang-jwt/jwt/v5"

// ClaimsFromAccount builds the identity claims of a token pair from the
// account snapshot. Timestamps are filled in when the token is issued.
func ClaimsFromAccount(account *Account) *Claims {
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: account.ID.String(),
		},
		Email:       account.Email,
		Roles:       cloneStrings(account.Roles),
		Permissions: cloneStrings(account.Permissions),
	}
}

func (c *Claims) identityCopy() *Claims {
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: c.RegisteredClaims.Subject,
		},
		Email:       c.Email,
		Roles:       cloneStrings(c.Roles),
		Permissions: cloneStrings(c.Permissions),
	}
}
