package auth

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultResetURL = "http://localhost:3000/reset-password"

	ResetPasswordSubject   = "Reset your password"
	ForgotPasswordResponse = "If your email exists, a reset link has been sent."
	PasswordChangedMessage = "Password changed successfully"
	PasswordResetMessage   = "Password reset successfully"
)

const tracerName = "github.com/goliatone/go-auth-rbac"

// ServiceConfig carries the business settings of the Service. Zero values
// fall back to the package defaults.
type ServiceConfig struct {
	// DefaultRole is granted to every new account
	DefaultRole string
	// MinimumAge in whole years required to register
	MinimumAge int
	// ResetURL is the page that receives the reset token as ?token=
	ResetURL string
	// UseHashid derives account ids from the email instead of a random UUID
	UseHashid bool
	// RefreshReloadAccount re-reads the account on refresh so role changes
	// show up before the refresh token expires
	RefreshReloadAccount bool
}

func (c ServiceConfig) withDefaults() ServiceConfig {
	if c.DefaultRole == "" {
		c.DefaultRole = DefaultRole
	}
	if c.MinimumAge == 0 {
		c.MinimumAge = DefaultMinimumAge
	}
	if c.ResetURL == "" {
		c.ResetURL = DefaultResetURL
	}
	return c
}

// Service implements the credential lifecycle and role assignment
type Service struct {
	accounts Accounts
	tokens   *TokenService
	hasher   PasswordHasher
	notifier Notifier
	activity ActivitySink
	logger   Logger
	metrics  *Metrics
	tracer   trace.Tracer
	now      func() time.Time
	config   ServiceConfig

	dummyOnce sync.Once
	dummyHash string
}

func NewService(accounts Accounts, tokens *TokenService, config ServiceConfig) *Service {
	return &Service{
		accounts: accounts,
		tokens:   tokens,
		hasher:   NewBcryptHasher(0),
		activity: noopActivitySink{},
		logger:   defLogger{},
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
		config:   config.withDefaults(),
	}
}

func (s *Service) WithLogger(logger Logger) *Service {
	s.logger = normalizeLogger(logger)
	return s
}

func (s *Service) WithHasher(hasher PasswordHasher) *Service {
	if hasher != nil {
		s.hasher = hasher
	}
	return s
}

// WithNotifier sets the channel used for password reset links. Without
// one, ForgotPassword still answers but nothing is sent.
func (s *Service) WithNotifier(notifier Notifier) *Service {
	s.notifier = notifier
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Service) WithActivitySink(sink ActivitySink) *Service {
	s.activity = normalizeActivitySink(sink)
	return s
}

func (s *Service) WithMetrics(metrics *Metrics) *Service {
	s.metrics = metrics
	return s
}

func (s *Service) WithTracer(tracer trace.Tracer) *Service {
	if tracer != nil {
		s.tracer = tracer
	}
	return s
}

// WithClock sets the time source used for age checks and events
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// TokenService returns the TokenService instance used by this Service
func (s *Service) TokenService() *TokenService {
	return s.tokens
}

// Login returns ErrInvalidCredentials for unknown emails and wrong
// passwords alike.
func (s *Service) Login(ctx context.Context, email, password string) (pair TokenPair, err error) {
	ctx, end := s.begin(ctx, "login")
	defer end(&err)

	email = NormalizeEmail(email)

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrAccountNotFound) {
			s.logger.Error("Login find account error", "error", err)
			return TokenPair{}, s.storeError(err, "failed to load account")
		}
		// compare anyway so unknown emails take as long as bad passwords
		_ = s.hasher.ComparePasswordAndHash(password, s.placeholderHash())
		s.loginFailed(ctx, "", email)
		return TokenPair{}, ErrInvalidCredentials
	}

	if err := s.hasher.ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		if errors.Is(err, ErrMismatchedHashAndPassword) {
			s.loginFailed(ctx, account.ID.String(), email)
			return TokenPair{}, ErrInvalidCredentials
		}
		s.logger.Error("Login compare password error", "error", err)
		return TokenPair{}, err
	}

	pair, err = s.tokens.IssuePair(ctx, ClaimsFromAccount(account))
	if err != nil {
		s.logger.Error("Login issue tokens error", "error", err)
		return TokenPair{}, err
	}

	s.emit(ctx, ActivityEventLoginSuccess, account.ID.String(), map[string]any{"email": email})
	return pair, nil
}

// Register creates an account with the default role and logs it in
func (s *Service) Register(ctx context.Context, msg RegisterMessage) (pair TokenPair, err error) {
	ctx, end := s.begin(ctx, "register")
	defer end(&err)

	msg.Email = NormalizeEmail(msg.Email)
	if err := msg.Validate(); err != nil {
		return TokenPair{}, invalidInput(err, "invalid registration request")
	}

	dob, err := ParseDateOfBirth(msg.DateOfBirth)
	if err != nil {
		return TokenPair{}, err
	}

	email := msg.Email

	if _, err := s.accounts.FindByEmail(ctx, email); err == nil {
		s.registerFailed(ctx, email, ErrEmailAlreadyRegistered)
		return TokenPair{}, ErrEmailAlreadyRegistered
	} else if !errors.Is(err, ErrAccountNotFound) {
		s.logger.Error("Register find account error", "error", err)
		return TokenPair{}, s.storeError(err, "failed to check email")
	}

	if AgeOn(dob, s.now()) < s.config.MinimumAge {
		s.registerFailed(ctx, email, ErrUnderageRegistration)
		return TokenPair{}, ErrUnderageRegistration
	}

	hash, err := s.hasher.HashPassword(msg.Password)
	if err != nil {
		s.logger.Error("Register hash password error", "error", err)
		return TokenPair{}, err
	}

	account := &Account{
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(msg.FirstName),
		LastName:     strings.TrimSpace(msg.LastName),
		DateOfBirth:  dob,
		Roles:        []string{s.config.DefaultRole},
		Permissions:  []string{},
	}

	if s.config.UseHashid {
		if account.ID, err = hashid.NewUUID(email); err != nil {
			return TokenPair{}, errors.Wrap(err, errors.CategoryInternal, "failed to derive account id")
		}
	}

	created, err := s.accounts.Create(ctx, account)
	if err != nil {
		if IsUniqueViolation(err) {
			s.registerFailed(ctx, email, ErrEmailAlreadyRegistered)
			return TokenPair{}, ErrEmailAlreadyRegistered
		}
		s.logger.Error("Register create account error", "error", err)
		return TokenPair{}, s.storeError(err, "failed to create account")
	}

	pair, err = s.tokens.IssuePair(ctx, ClaimsFromAccount(created))
	if err != nil {
		s.logger.Error("Register issue tokens error", "error", err)
		return TokenPair{}, err
	}

	s.emit(ctx, ActivityEventRegistered, created.ID.String(), map[string]any{"email": email})
	return pair, nil
}

// ForgotPassword sends a reset link when the email belongs to an account.
// The response is the same whether or not it does.
func (s *Service) ForgotPassword(ctx context.Context, email string) (resp MessageResponse, err error) {
	ctx, end := s.begin(ctx, "forgot_password")
	defer end(&err)

	resp = MessageResponse{Message: ForgotPasswordResponse}
	email = NormalizeEmail(email)

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return resp, nil
		}
		s.logger.Error("ForgotPassword find account error", "error", err)
		return MessageResponse{}, s.storeError(err, "failed to load account")
	}

	token, err := s.tokens.IssueReset(ctx, account)
	if err != nil {
		s.logger.Error("ForgotPassword issue reset token error", "error", err)
		return MessageResponse{}, err
	}

	if s.notifier != nil {
		body := "Click the link to reset your password: " + s.resetLink(token)
		if err := s.notifier.Send(ctx, account.Email, ResetPasswordSubject, body); err != nil {
			s.logger.Warn("ForgotPassword notifier error", "user_id", account.ID.String(), "error", err)
		}
	} else {
		s.logger.Warn("ForgotPassword has no notifier configured")
	}

	s.emit(ctx, ActivityEventPasswordResetRequest, account.ID.String(), nil)
	return resp, nil
}

// RefreshToken mints a new pair from a valid refresh token. Every failure
// is reported as ErrInvalidRefreshToken.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (pair TokenPair, err error) {
	ctx, end := s.begin(ctx, "refresh_token")
	defer end(&err)

	claims, err := s.tokens.Verify(refreshToken, TokenRefresh)
	if err != nil {
		s.logger.Debug("RefreshToken rejected", "reason", errorTextCode(err))
		return TokenPair{}, ErrInvalidRefreshToken
	}

	if s.config.RefreshReloadAccount {
		account, err := s.accounts.FindByID(ctx, claims.UserID())
		if err != nil {
			if errors.Is(err, ErrAccountNotFound) {
				return TokenPair{}, ErrInvalidRefreshToken
			}
			return TokenPair{}, s.storeError(err, "failed to load account")
		}
		claims = ClaimsFromAccount(account)
	}

	pair, err = s.tokens.IssuePair(ctx, claims)
	if err != nil {
		s.logger.Error("RefreshToken issue tokens error", "error", err)
		return TokenPair{}, err
	}

	s.emit(ctx, ActivityEventTokenRefreshed, claims.UserID(), nil)
	return pair, nil
}

// ChangePassword replaces the password of userID after checking the
// current one.
func (s *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) (resp MessageResponse, err error) {
	ctx, end := s.begin(ctx, "change_password")
	defer end(&err)

	account, err := s.findAccount(ctx, userID)
	if err != nil {
		return MessageResponse{}, err
	}

	if err := s.hasher.ComparePasswordAndHash(currentPassword, account.PasswordHash); err != nil {
		if errors.Is(err, ErrMismatchedHashAndPassword) {
			return MessageResponse{}, ErrInvalidCredentials
		}
		return MessageResponse{}, err
	}

	if currentPassword == newPassword {
		return MessageResponse{}, ErrPasswordUnchanged
	}

	if err := s.setPassword(ctx, account, newPassword); err != nil {
		return MessageResponse{}, err
	}

	s.emit(ctx, ActivityEventPasswordChanged, account.ID.String(), nil)
	return MessageResponse{Message: PasswordChangedMessage}, nil
}

// ResetPassword sets a new password using the token sent by ForgotPassword.
// Unknown accounts and emails that changed since the token was issued are
// reported as ErrInvalidResetToken.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) (resp MessageResponse, err error) {
	ctx, end := s.begin(ctx, "reset_password")
	defer end(&err)

	if len(newPassword) < MinPasswordLength {
		return MessageResponse{}, invalidInput(ErrNoEmptyString, "password is too short")
	}

	claims, err := s.tokens.Verify(token, TokenReset)
	if err != nil {
		return MessageResponse{}, ErrInvalidResetToken
	}

	account, err := s.accounts.FindByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return MessageResponse{}, ErrInvalidResetToken
		}
		return MessageResponse{}, s.storeError(err, "failed to load account")
	}

	if account.Email != NormalizeEmail(claims.Email) {
		return MessageResponse{}, ErrInvalidResetToken
	}

	if err := s.setPassword(ctx, account, newPassword); err != nil {
		return MessageResponse{}, err
	}

	s.emit(ctx, ActivityEventPasswordResetSuccess, account.ID.String(), nil)
	return MessageResponse{Message: PasswordResetMessage}, nil
}

// Authenticate verifies an access token. Every failure is reported as
// ErrTokenInvalid.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*Claims, error) {
	claims, err := s.tokens.Verify(accessToken, TokenAccess)
	if err != nil {
		s.logger.Debug("Authenticate rejected token", "reason", errorTextCode(err))
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// AssignRole adds role to the account. Assigning a held role is a no-op.
func (s *Service) AssignRole(ctx context.Context, userID, role string) (*Account, error) {
	return s.mutate(ctx, "assign_role", userID, role, ActivityEventRoleAssigned, (*Account).AddRole)
}

func (s *Service) RemoveRole(ctx context.Context, userID, role string) (*Account, error) {
	return s.mutate(ctx, "remove_role", userID, role, ActivityEventRoleRemoved, (*Account).RemoveRole)
}

func (s *Service) AssignPermission(ctx context.Context, userID, permission string) (*Account, error) {
	return s.mutate(ctx, "assign_permission", userID, permission, ActivityEventPermissionAssigned, (*Account).AddPermission)
}

func (s *Service) RemovePermission(ctx context.Context, userID, permission string) (*Account, error) {
	return s.mutate(ctx, "remove_permission", userID, permission, ActivityEventPermissionRemoved, (*Account).RemovePermission)
}

func (s *Service) mutate(ctx context.Context, op, userID, value string, event ActivityEventType, apply func(*Account, string) bool) (account *Account, err error) {
	ctx, end := s.begin(ctx, op)
	defer end(&err)

	value = strings.TrimSpace(value)
	if value == "" {
		return nil, errors.New("role or permission name is required", errors.CategoryValidation).
			WithTextCode(TextCodeInvalidInput).
			WithCode(errors.CodeBadRequest)
	}

	account, err = s.findAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !apply(account, value) {
		return account, nil
	}

	saved, err := s.accounts.Save(ctx, account)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("account save error", "operation", op, "error", err)
		return nil, s.storeError(err, "failed to save account")
	}

	s.emit(ctx, event, saved.ID.String(), map[string]any{"value": value})
	return saved, nil
}

func (s *Service) findAccount(ctx context.Context, userID string) (*Account, error) {
	account, err := s.accounts.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("find account error", "error", err)
		return nil, s.storeError(err, "failed to load account")
	}
	return account, nil
}

func (s *Service) setPassword(ctx context.Context, account *Account, password string) error {
	hash, err := s.hasher.HashPassword(password)
	if err != nil {
		return err
	}
	account.PasswordHash = hash
	if _, err := s.accounts.Save(ctx, account); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrUserNotFound
		}
		s.logger.Error("password save error", "error", err)
		return s.storeError(err, "failed to save password")
	}
	return nil
}

func (s *Service) resetLink(token string) string {
	u, err := url.Parse(s.config.ResetURL)
	if err != nil {
		return s.config.ResetURL + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// placeholderHash is compared against when the email is unknown
func (s *Service) placeholderHash() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.HashPassword("placeholder-password")
	})
	return s.dummyHash
}

// storeError keeps errors already classified by the store and wraps the
// rest as StoreUnavailable.
func (s *Service) storeError(err error, msg string) error {
	if IsStoreUnavailable(err) {
		return err
	}
	return storeFailure(err, msg)
}

func (s *Service) begin(ctx context.Context, op string) (context.Context, func(*error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "auth."+op, trace.WithAttributes(attribute.String("auth.operation", op)))
	return ctx, func(errp *error) {
		var err error
		if errp != nil {
			err = *errp
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, errorTextCode(err))
		}
		span.End()
		s.metrics.ObserveOperation(op, err, time.Since(start))
	}
}

func (s *Service) emit(ctx context.Context, eventType ActivityEventType, userID string, metadata map[string]any) {
	recordActivity(ctx, s.activity, s.logger, s.now(), ActivityEvent{
		EventType: eventType,
		Actor:     userActor(userID),
		UserID:    userID,
		Metadata:  metadata,
	})
}

func (s *Service) loginFailed(ctx context.Context, userID, email string) {
	s.emit(ctx, ActivityEventLoginFailure, userID, map[string]any{
		"email": email,
		"error": ErrInvalidCredentials.Error(),
	})
}

func (s *Service) registerFailed(ctx context.Context, email string, err error) {
	s.emit(ctx, ActivityEventRegisterFailure, "", map[string]any{
		"email": email,
		"error": errorTextCode(err),
	})
}
