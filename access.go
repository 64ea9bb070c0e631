package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-errors"
)

// Strategy selects which guards protect an operation
type Strategy string

const (
	// StrategyStatic checks requirements declared per operation
	StrategyStatic Strategy = "static"
	// StrategyPolicy checks the route policies in the PolicyStore
	StrategyPolicy Strategy = "policy"
	// StrategyCombined installs both, static guards run first
	StrategyCombined Strategy = "combined"
)

// ParseStrategy is case insensitive, an empty value means StrategyStatic
func ParseStrategy(value string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(value))) {
	case "", StrategyStatic:
		return StrategyStatic, nil
	case StrategyPolicy:
		return StrategyPolicy, nil
	case StrategyCombined:
		return StrategyCombined, nil
	}
	return "", errors.New(fmt.Sprintf("unknown access strategy: %q", value), errors.CategoryValidation).
		WithTextCode(TextCodeInvalidConfig)
}

// BuildGuards returns the ordered guard list for strategy. Role guards are
// installed before permission guards.
func BuildGuards(strategy Strategy, table RequirementTable, store PolicyStore, opts PolicyGuardOptions) (Guards, error) {
	var guards Guards

	if strategy == StrategyStatic || strategy == StrategyCombined {
		guards = append(guards, StaticRoleGuard(table), StaticPermissionGuard(table))
	}

	if strategy == StrategyPolicy || strategy == StrategyCombined {
		if store == nil {
			return nil, errors.New("policy strategy requires a policy store", errors.CategoryValidation).
				WithTextCode(TextCodeInvalidConfig)
		}
		guards = append(guards, PolicyRoleGuard(store, opts), PolicyPermissionGuard(store, opts))
	}

	if guards == nil {
		return nil, errors.New(fmt.Sprintf("unknown access strategy: %q", strategy), errors.CategoryValidation).
			WithTextCode(TextCodeInvalidConfig)
	}
	return guards, nil
}

// AccessEngine evaluates guards for inbound requests
type AccessEngine struct {
	guards    Guards
	validator TokenValidator
	logger    Logger
	metrics   *Metrics
}

// NewAccessEngine creates an engine running guards. validator is only
// needed by AuthorizeToken.
func NewAccessEngine(guards Guards, validator TokenValidator) *AccessEngine {
	return &AccessEngine{
		guards:    guards,
		validator: validator,
		logger:    defLogger{},
	}
}

func (e *AccessEngine) WithLogger(logger Logger) *AccessEngine {
	e.logger = normalizeLogger(logger)
	return e
}

func (e *AccessEngine) WithMetrics(metrics *Metrics) *AccessEngine {
	e.metrics = metrics
	return e
}

// Authorize returns nil when every guard allows req. A request without a
// caller takes the one stored in ctx, if any.
func (e *AccessEngine) Authorize(ctx context.Context, req Request) error {
	if c, ok := CallerFromContext(ctx); ok && req.Caller == nil {
		req.Caller = c
	}
	return e.authorize(ctx, req)
}

func (e *AccessEngine) authorize(ctx context.Context, req Request) error {
	err := e.guards.Allow(ctx, req)
	e.metrics.ObserveDecision(err)

	if err != nil {
		e.logger.Debug("AccessEngine denied request",
			"operation", req.Operation,
			"route", req.Route,
			"method", NormalizeMethod(req.Method),
			"authenticated", req.Caller.Authenticated(),
			"reason", errorTextCode(err),
		)
	}
	return err
}

// AuthorizeToken resolves the caller from an access token and authorizes
// req. An empty token is evaluated as an unauthenticated caller, even when
// ctx carries one. Any token failure is reported as ErrTokenInvalid.
func (e *AccessEngine) AuthorizeToken(ctx context.Context, token string, req Request) (*Claims, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		req.Caller = nil
		return nil, e.authorize(ctx, req)
	}

	if e.validator == nil {
		return nil, errors.New("access engine has no token validator", errors.CategoryInternal)
	}

	claims, err := e.validator.Validate(token)
	if err != nil {
		e.logger.Debug("AccessEngine token rejected", "reason", errorTextCode(err))
		e.metrics.ObserveDecision(ErrTokenInvalid)
		return nil, ErrTokenInvalid
	}

	req.Caller = claims.Caller()
	if err := e.authorize(ctx, req); err != nil {
		return nil, err
	}
	return claims, nil
}
