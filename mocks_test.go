package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	auth "github.com/goliatone/go-auth-rbac"
)

const (
	testAccessSecret  = "access-secret-for-tests"
	testRefreshSecret = "refresh-secret-for-tests"
)

// fixedNow is the reference time for clock dependent tests
var fixedNow = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(t time.Time) *testClock {
	return &testClock{now: t}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTokenService(t *testing.T, clock *testClock) *auth.TokenService {
	t.Helper()
	ts, err := auth.NewTokenService(auth.TokenConfig{
		AccessSecret:  testAccessSecret,
		RefreshSecret: testRefreshSecret,
	}, nopLogger{})
	require.NoError(t, err)
	if clock != nil {
		ts.WithClock(clock.Now)
	}
	return ts
}

func fastHasher() *auth.BcryptHasher {
	return auth.NewBcryptHasher(bcrypt.MinCost)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// memoryAccounts is an in-memory auth.Accounts with email uniqueness
type memoryAccounts struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*auth.Account
	creates int
	saves   int
}

func newMemoryAccounts() *memoryAccounts {
	return &memoryAccounts{byID: map[uuid.UUID]*auth.Account{}}
}

func cloneAccount(a *auth.Account) *auth.Account {
	out := *a
	out.Roles = append([]string(nil), a.Roles...)
	out.Permissions = append([]string(nil), a.Permissions...)
	return &out
}

func (m *memoryAccounts) FindByEmail(_ context.Context, email string) (*auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = auth.NormalizeEmail(email)
	for _, a := range m.byID {
		if a.Email == email {
			return cloneAccount(a), nil
		}
	}
	return nil, auth.ErrAccountNotFound
}

func (m *memoryAccounts) FindByID(_ context.Context, id string) (*auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, auth.ErrAccountNotFound
	}
	a, ok := m.byID[parsed]
	if !ok {
		return nil, auth.ErrAccountNotFound
	}
	return cloneAccount(a), nil
}

func (m *memoryAccounts) Create(_ context.Context, account *auth.Account) (*auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if a.Email == account.Email {
			return nil, auth.ErrDuplicateRecord
		}
	}
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	m.byID[account.ID] = cloneAccount(account)
	m.creates++
	return cloneAccount(account), nil
}

func (m *memoryAccounts) Save(_ context.Context, account *auth.Account) (*auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[account.ID]; !ok {
		return nil, auth.ErrAccountNotFound
	}
	m.byID[account.ID] = cloneAccount(account)
	m.saves++
	return cloneAccount(account), nil
}

func (m *memoryAccounts) put(t *testing.T, email, password string, roles ...string) *auth.Account {
	t.Helper()
	hash, err := fastHasher().HashPassword(password)
	require.NoError(t, err)
	a, err := m.Create(context.Background(), &auth.Account{
		Email:        auth.NormalizeEmail(email),
		PasswordHash: hash,
		FirstName:    "Test",
		LastName:     "User",
		DateOfBirth:  time.Date(1990, time.January, 1, 0, 0, 0, 0, time.UTC),
		Roles:        roles,
		Permissions:  []string{},
	})
	require.NoError(t, err)
	return a
}

// MockAccounts implements auth.Accounts for failure scenarios
type MockAccounts struct {
	mock.Mock
}

func (m *MockAccounts) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	args := m.Called(ctx, email)
	if v := args.Get(0); v != nil {
		return v.(*auth.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccounts) FindByID(ctx context.Context, id string) (*auth.Account, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*auth.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccounts) Create(ctx context.Context, account *auth.Account) (*auth.Account, error) {
	args := m.Called(ctx, account)
	if v := args.Get(0); v != nil {
		return v.(*auth.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccounts) Save(ctx context.Context, account *auth.Account) (*auth.Account, error) {
	args := m.Called(ctx, account)
	if v := args.Get(0); v != nil {
		return v.(*auth.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockNotifier implements auth.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

// MockPolicyStore implements auth.PolicyStore
type MockPolicyStore struct {
	mock.Mock
}

func (m *MockPolicyStore) Get(ctx context.Context, route, method string) (*auth.RoutePolicy, error) {
	args := m.Called(ctx, route, method)
	if v := args.Get(0); v != nil {
		return v.(*auth.RoutePolicy), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPolicyStore) Upsert(ctx context.Context, route, method string, roles, permissions []string) (*auth.RoutePolicy, error) {
	args := m.Called(ctx, route, method, roles, permissions)
	if v := args.Get(0); v != nil {
		return v.(*auth.RoutePolicy), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPolicyStore) Delete(ctx context.Context, route, method string) error {
	return m.Called(ctx, route, method).Error(0)
}

func (m *MockPolicyStore) List(ctx context.Context) ([]*auth.RoutePolicy, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]*auth.RoutePolicy), args.Error(1)
	}
	return nil, args.Error(1)
}

type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) types() []auth.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}
