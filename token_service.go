package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenKind selects the secret and lifetime used to sign or verify a token
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
	TokenReset   TokenKind = "reset"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
	DefaultResetTTL   = time.Hour
)

// TokenConfig holds the signing material. It is built once at startup,
// rotating a secret invalidates every token signed with the old one.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	Issuer        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	ResetTTL      time.Duration
}

// Validate checks secrets are present and distinct
func (c TokenConfig) Validate() error {
	if c.AccessSecret == "" {
		return errors.New("access token secret is required", errors.CategoryValidation).
			WithTextCode(TextCodeInvalidConfig)
	}
	if c.RefreshSecret == "" {
		return errors.New("refresh token secret is required", errors.CategoryValidation).
			WithTextCode(TextCodeInvalidConfig)
	}
	if c.AccessSecret == c.RefreshSecret {
		return errors.New("access and refresh secrets must differ", errors.CategoryValidation).
			WithTextCode(TextCodeInvalidConfig)
	}
	if c.AccessTTL < 0 || c.RefreshTTL < 0 || c.ResetTTL < 0 {
		return errors.New("token TTL must be non-negative", errors.CategoryValidation).
			WithTextCode(TextCodeInvalidConfig)
	}
	return nil
}

func (c TokenConfig) withDefaults() TokenConfig {
	if c.AccessTTL == 0 {
		c.AccessTTL = DefaultAccessTTL
	}
	if c.RefreshTTL == 0 {
		c.RefreshTTL = DefaultRefreshTTL
	}
	if c.ResetTTL == 0 {
		c.ResetTTL = DefaultResetTTL
	}
	return c
}

// TokenService signs and verifies HS256 tokens for each TokenKind
type TokenService struct {
	cfg       TokenConfig
	logger    Logger
	now       func() time.Time
	decorator ClaimsDecorator
}

// NewTokenService creates a new TokenService instance
func NewTokenService(cfg TokenConfig, logger Logger) (*TokenService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &TokenService{
		cfg:       cfg.withDefaults(),
		logger:    normalizeLogger(logger),
		now:       time.Now,
		decorator: noopClaimsDecorator{},
	}, nil
}

// WithClock replaces the time source used for iat, exp and validation
func (ts *TokenService) WithClock(now func() time.Time) *TokenService {
	if now != nil {
		ts.now = now
	}
	return ts
}

// WithClaimsDecorator installs a hook that runs before access and refresh
// tokens are signed.
func (ts *TokenService) WithClaimsDecorator(decorator ClaimsDecorator) *TokenService {
	ts.decorator = normalizeClaimsDecorator(decorator)
	return ts
}

func (ts *TokenService) WithLogger(logger Logger) *TokenService {
	ts.logger = normalizeLogger(logger)
	return ts
}

// TTL returns the lifetime of tokens of the given kind
func (ts *TokenService) TTL(kind TokenKind) time.Duration {
	switch kind {
	case TokenRefresh:
		return ts.cfg.RefreshTTL
	case TokenReset:
		return ts.cfg.ResetTTL
	default:
		return ts.cfg.AccessTTL
	}
}

func (ts *TokenService) secret(kind TokenKind) ([]byte, error) {
	switch kind {
	case TokenAccess, TokenReset:
		return []byte(ts.cfg.AccessSecret), nil
	case TokenRefresh:
		return []byte(ts.cfg.RefreshSecret), nil
	default:
		return nil, errors.New(fmt.Sprintf("unknown token kind: %q", kind), errors.CategoryInternal)
	}
}

// Issue signs a copy of claims for kind. The registered claims are always
// set by the service: callers only control sub, email, roles and permissions.
func (ts *TokenService) Issue(ctx context.Context, claims *Claims, kind TokenKind) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	key, err := ts.secret(kind)
	if err != nil {
		return "", err
	}

	out := claims.identityCopy()
	if kind == TokenReset {
		out.Roles = nil
		out.Permissions = nil
	}

	now := ts.now()
	out.RegisteredClaims.Issuer = ts.cfg.Issuer
	out.RegisteredClaims.IssuedAt = jwt.NewNumericDate(now)
	out.RegisteredClaims.ExpiresAt = jwt.NewNumericDate(now.Add(ts.TTL(kind)))
	out.RegisteredClaims.ID = uuid.NewString()
	out.Use = kind

	if kind != TokenReset {
		locked := lockClaims(out)
		if err := ts.decorator.Decorate(ctx, out); err != nil {
			return "", errors.Wrap(err, errors.CategoryInternal, "claims decorator failed")
		}
		if err := locked.verify(out); err != nil {
			return "", err
		}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, out).SignedString(key)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}
	return signed, nil
}

// IssuePair mints an access and a refresh token from the same claims
func (ts *TokenService) IssuePair(ctx context.Context, claims *Claims) (TokenPair, error) {
	access, err := ts.Issue(ctx, claims, TokenAccess)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := ts.Issue(ctx, claims, TokenRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// IssueReset mints a password reset token that only carries sub and email
func (ts *TokenService) IssueReset(ctx context.Context, account *Account) (string, error) {
	if account == nil {
		return "", errors.New("account must not be nil", errors.CategoryInternal)
	}
	return ts.Issue(ctx, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: account.ID.String()},
		Email:            account.Email,
	}, TokenReset)
}

// Verify parses tokenString with the secret of kind. It returns
// ErrTokenExpired when the signature is good but exp has passed and
// ErrTokenInvalid for anything else, including a token issued as another
// kind. A token is valid up to and including the second of its exp.
func (ts *TokenService) Verify(tokenString string, kind TokenKind) (*Claims, error) {
	key, err := ts.secret(kind)
	if err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(ts.now),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(time.Second),
	}
	if ts.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(ts.cfg.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	}, opts...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		ts.logger.Debug("TokenService verify rejected token", "kind", kind, "error", err)
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	if claims.Use != kind {
		ts.logger.Debug("TokenService verify rejected token", "kind", kind, "token_use", claims.Use)
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// Validator exposes Verify for kind as a TokenValidator
func (ts *TokenService) Validator(kind TokenKind) TokenValidator {
	return TokenValidatorFunc(func(tokenString string) (*Claims, error) {
		return ts.Verify(tokenString, kind)
	})
}
