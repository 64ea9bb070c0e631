// Package auth provides the authentication and authorization core of an API:
// HS256 token issuance, the credential lifecycle, and role/permission access
// control.
//
// Credentials:
//   - Service implements login, registration, password reset and change,
//     token refresh, and role/permission assignment on top of an Accounts
//     store. Login failures are indistinguishable to the caller.
//   - TokenService signs access, refresh and reset tokens with their own
//     lifetimes. Access and reset tokens share a secret, refresh tokens use a
//     second one.
//
// Access control:
//   - Guards are evaluated in order and every guard must allow. Static
//     guards read a RequirementTable keyed by operation name, policy guards
//     read a PolicyStore keyed by (route, method). Within a guard any listed
//     role or permission is enough.
//   - A route without a policy is open unless PolicyGuardOptions.DefaultDeny
//     is set.
//
// Stores:
//   - Bun repositories back accounts, roles, permissions and route policies.
//     MemoryPolicyStore and the redisstore package are alternatives for
//     policies, and CachedPolicyStore puts an expiring LRU in front of any of
//     them.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter. Sinks run best-effort
//     (errors are logged) so you can forward to a database or queue without
//     blocking authentication.
//
// Claims decoration:
//   - ClaimsDecorator is invoked before tokens are signed. Decorators may
//     change roles and permissions while protected claims (sub, iss, iat, exp,
//     jti) remain immutable.
package auth
