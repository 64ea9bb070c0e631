package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"

	auth "github.com/goliatone/go-auth-rbac"
)

func (a *app) dispatch(ctx context.Context, cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "migrate":
		return a.migrate(ctx, out)
	case "register":
		return a.register(ctx, args, out)
	case "login":
		return a.login(ctx, args, out)
	case "refresh":
		return a.refresh(ctx, args, out)
	case "forgot-password":
		return a.forgotPassword(ctx, args, out)
	case "reset-password":
		return a.resetPassword(ctx, args, out)
	case "change-password":
		return a.changePassword(ctx, args, out)
	case "role":
		return a.assignment(ctx, "role", args, out)
	case "permission":
		return a.assignment(ctx, "permission", args, out)
	case "roles":
		return a.roles(ctx, args, out)
	case "permissions":
		return a.permissions(ctx, args, out)
	case "policy":
		return a.policy(ctx, args, out)
	case "check":
		return a.check(ctx, args, out)
	}
	return errors.New(fmt.Sprintf("unknown command %q", cmd), errors.CategoryBadInput)
}

func emit(out io.Writer, v any) error {
	_, err := fmt.Fprintln(out, print.MaybeHighlightJSON(v))
	return err
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return auth.NormalizeSet(strings.Split(value, ","))
}

func subcommand(args []string, name string) (string, []string, error) {
	if len(args) == 0 {
		return "", nil, errors.New(name+" needs a subcommand", errors.CategoryBadInput)
	}
	return args[0], args[1:], nil
}

func (a *app) migrate(ctx context.Context, out io.Writer) error {
	if err := auth.CreateSchema(ctx, a.db); err != nil {
		return err
	}
	if err := a.directory.SeedRoutePolicies(ctx, a.cfg.Access.Policies); err != nil {
		return err
	}
	return emit(out, map[string]any{"migrated": true, "policies": len(a.cfg.Access.Policies)})
}

func (a *app) register(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	msg := auth.RegisterMessage{}
	fs.StringVar(&msg.Email, "email", "", "account email")
	fs.StringVar(&msg.Password, "password", "", "account password")
	fs.StringVar(&msg.FirstName, "first-name", "", "first name")
	fs.StringVar(&msg.LastName, "last-name", "", "last name")
	fs.StringVar(&msg.DateOfBirth, "dob", "", "date of birth (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pair, err := a.service.Register(ctx, msg)
	if err != nil {
		return err
	}
	return emit(out, pair)
}

func (a *app) login(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	msg := auth.LoginMessage{}
	fs.StringVar(&msg.Email, "email", "", "account email")
	fs.StringVar(&msg.Password, "password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	pair, err := a.service.Login(ctx, msg.Email, msg.Password)
	if err != nil {
		return err
	}
	return emit(out, pair)
}

func (a *app) refresh(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("refresh", flag.ContinueOnError)
	msg := auth.RefreshTokenMessage{}
	fs.StringVar(&msg.RefreshToken, "token", "", "refresh token")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	pair, err := a.service.RefreshToken(ctx, msg.RefreshToken)
	if err != nil {
		return err
	}
	return emit(out, pair)
}

func (a *app) forgotPassword(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("forgot-password", flag.ContinueOnError)
	msg := auth.ForgotPasswordMessage{}
	fs.StringVar(&msg.Email, "email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	resp, err := a.service.ForgotPassword(ctx, msg.Email)
	if err != nil {
		return err
	}
	return emit(out, resp)
}

func (a *app) resetPassword(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("reset-password", flag.ContinueOnError)
	msg := auth.ResetPasswordMessage{}
	fs.StringVar(&msg.Token, "token", "", "reset token")
	fs.StringVar(&msg.Password, "password", "", "new password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	msg.ConfirmPassword = msg.Password
	if err := msg.Validate(); err != nil {
		return err
	}

	resp, err := a.service.ResetPassword(ctx, msg.Token, msg.Password)
	if err != nil {
		return err
	}
	return emit(out, resp)
}

func (a *app) changePassword(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("change-password", flag.ContinueOnError)
	msg := auth.ChangePasswordMessage{}
	fs.StringVar(&msg.UserID, "user", "", "account id")
	fs.StringVar(&msg.CurrentPassword, "current", "", "current password")
	fs.StringVar(&msg.NewPassword, "new", "", "new password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	resp, err := a.service.ChangePassword(ctx, msg.UserID, msg.CurrentPassword, msg.NewPassword)
	if err != nil {
		return err
	}
	return emit(out, resp)
}

func (a *app) assignment(ctx context.Context, kind string, args []string, out io.Writer) error {
	action, rest, err := subcommand(args, kind)
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet(kind+" "+action, flag.ContinueOnError)
	userID := fs.String("user", "", "account id")
	value := fs.String("name", "", kind+" name")
	if err := fs.Parse(rest); err != nil {
		return err
	}

	var account *auth.Account
	switch kind + " " + action {
	case "role assign":
		account, err = a.service.AssignRole(ctx, *userID, *value)
	case "role remove":
		account, err = a.service.RemoveRole(ctx, *userID, *value)
	case "permission assign":
		account, err = a.service.AssignPermission(ctx, *userID, *value)
	case "permission remove":
		account, err = a.service.RemovePermission(ctx, *userID, *value)
	default:
		return errors.New(fmt.Sprintf("unknown %s action %q", kind, action), errors.CategoryBadInput)
	}
	if err != nil {
		return err
	}
	return emit(out, account)
}

func (a *app) roles(ctx context.Context, args []string, out io.Writer) error {
	action, rest, err := subcommand(args, "roles")
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("roles "+action, flag.ContinueOnError)
	id := fs.String("id", "", "role id")
	name := fs.String("name", "", "role name")
	permissions := fs.String("permissions", "", "comma separated permissions")
	if err := fs.Parse(rest); err != nil {
		return err
	}

	switch action {
	case "list":
		roles, err := a.directory.ListRoles(ctx)
		if err != nil {
			return err
		}
		return emit(out, roles)
	case "create":
		role, err := a.directory.CreateRole(ctx, *name, splitList(*permissions))
		if err != nil {
			return err
		}
		return emit(out, role)
	case "update":
		role, err := a.directory.UpdateRole(ctx, *id, *name, splitList(*permissions))
		if err != nil {
			return err
		}
		return emit(out, role)
	case "delete":
		if err := a.directory.DeleteRole(ctx, *id); err != nil {
			return err
		}
		return emit(out, map[string]any{"deleted": *id})
	}
	return errors.New(fmt.Sprintf("unknown roles action %q", action), errors.CategoryBadInput)
}

func (a *app) permissions(ctx context.Context, args []string, out io.Writer) error {
	action, rest, err := subcommand(args, "permissions")
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("permissions "+action, flag.ContinueOnError)
	id := fs.String("id", "", "permission id")
	name := fs.String("name", "", "permission name")
	description := fs.String("description", "", "permission description")
	if err := fs.Parse(rest); err != nil {
		return err
	}

	switch action {
	case "list":
		perms, err := a.directory.ListPermissions(ctx)
		if err != nil {
			return err
		}
		return emit(out, perms)
	case "create":
		perm, err := a.directory.CreatePermission(ctx, *name, *description)
		if err != nil {
			return err
		}
		return emit(out, perm)
	case "update":
		perm, err := a.directory.UpdatePermission(ctx, *id, *name, *description)
		if err != nil {
			return err
		}
		return emit(out, perm)
	case "delete":
		if err := a.directory.DeletePermission(ctx, *id); err != nil {
			return err
		}
		return emit(out, map[string]any{"deleted": *id})
	}
	return errors.New(fmt.Sprintf("unknown permissions action %q", action), errors.CategoryBadInput)
}

func (a *app) policy(ctx context.Context, args []string, out io.Writer) error {
	action, rest, err := subcommand(args, "policy")
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("policy "+action, flag.ContinueOnError)
	route := fs.String("route", "", "route pattern, e.g. /users/:id")
	method := fs.String("method", "", "HTTP method")
	roles := fs.String("roles", "", "comma separated required roles")
	permissions := fs.String("permissions", "", "comma separated required permissions")
	if err := fs.Parse(rest); err != nil {
		return err
	}

	switch action {
	case "list":
		policies, err := a.directory.ListRoutePolicies(ctx)
		if err != nil {
			return err
		}
		return emit(out, policies)
	case "get":
		policy, err := a.directory.GetRoutePolicy(ctx, *route, *method)
		if err != nil {
			return err
		}
		return emit(out, policy)
	case "set":
		policy, err := a.directory.SetRoutePolicy(ctx, *route, *method, splitList(*roles), splitList(*permissions))
		if err != nil {
			return err
		}
		return emit(out, policy)
	case "delete":
		if err := a.directory.DeleteRoutePolicy(ctx, *route, *method); err != nil {
			return err
		}
		return emit(out, map[string]any{"deleted": auth.PolicyKey(*route, *method)})
	}
	return errors.New(fmt.Sprintf("unknown policy action %q", action), errors.CategoryBadInput)
}

type decision struct {
	Allowed bool         `json:"allowed"`
	Reason  string       `json:"reason,omitempty"`
	Caller  *auth.Caller `json:"caller,omitempty"`
}

func (a *app) check(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	token := fs.String("token", "", "access token, empty for an anonymous caller")
	req := auth.Request{}
	fs.StringVar(&req.Operation, "operation", "", "operation name for static requirements")
	fs.StringVar(&req.Route, "route", "", "route pattern for policy lookups")
	fs.StringVar(&req.Method, "method", "GET", "HTTP method for policy lookups")
	if err := fs.Parse(args); err != nil {
		return err
	}

	claims, err := a.engine.AuthorizeToken(ctx, *token, req)
	result := decision{Allowed: err == nil, Caller: claims.Caller()}
	if err != nil {
		var richErr *errors.Error
		if errors.As(err, &richErr) {
			result.Reason = richErr.TextCode
		} else {
			return err
		}
	}
	return emit(out, result)
}
