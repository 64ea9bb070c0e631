package auth

import (
	"context"
	"fmt"
	"strings"
)

// Logger is the logging contract used across the package. Arguments are
// key/value pairs, so a glog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Accounts is the credential store the service depends on.
// Implementations must return ErrAccountNotFound for missing records and
// ErrDuplicateRecord (or a driver error IsUniqueViolation recognizes) when
// the email unique index rejects a write.
type Accounts interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	Create(ctx context.Context, account *Account) (*Account, error)
	Save(ctx context.Context, account *Account) (*Account, error)
}

// PolicyStore maps (route, method) pairs to their required capabilities.
// Lookups are exact: the caller resolves the route pattern before asking.
type PolicyStore interface {
	// Get returns ErrRoutePolicyNotFound when no policy is registered
	Get(ctx context.Context, route, method string) (*RoutePolicy, error)
	Upsert(ctx context.Context, route, method string, roles, permissions []string) (*RoutePolicy, error)
	// Delete is a no-op for unknown pairs
	Delete(ctx context.Context, route, method string) error
	List(ctx context.Context) ([]*RoutePolicy, error)
}

// Roles stores role definitions.
type Roles interface {
	Create(ctx context.Context, role *Role) (*Role, error)
	Update(ctx context.Context, role *Role) (*Role, error)
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*Role, error)
	FindByNames(ctx context.Context, names ...string) ([]*Role, error)
	List(ctx context.Context) ([]*Role, error)
}

// Permissions stores permission definitions.
type Permissions interface {
	Create(ctx context.Context, permission *Permission) (*Permission, error)
	Update(ctx context.Context, permission *Permission) (*Permission, error)
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*Permission, error)
	List(ctx context.Context) ([]*Permission, error)
}

// TokenPair is returned by every credential operation
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// MessageResponse is returned by operations that only report an outcome
type MessageResponse struct {
	Message string `json:"message"`
}

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) { d.print("ERR", msg, args...) }
func (d defLogger) Warn(msg string, args ...any)  { d.print("WRN", msg, args...) }
func (d defLogger) Info(msg string, args ...any)  { d.print("INF", msg, args...) }
func (d defLogger) Debug(msg string, args ...any) { d.print("DBG", msg, args...) }

// print renders key/value args the same way glog does in its pretty mode.
func (defLogger) print(level, msg string, args ...any) {
	var b strings.Builder
	b.WriteString("[" + level + "] AUTH " + msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
			continue
		}
		fmt.Fprintf(&b, " %v", args[i])
	}
	fmt.Println(b.String())
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
