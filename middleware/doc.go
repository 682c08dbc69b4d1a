// Package middleware adapts engine token validation to net/http.
//
// # Guards
//
//   - [Guard] validates the bearer token with an explicit mode.
//   - [RequireJWTOnly] checks the token alone, without a store read.
//   - [RequireStrict] also re-reads the account, so deletions and role
//     changes apply immediately.
//   - [RequireElevated] rejects principals without the administrative role.
//
// A guard stores the validated principal in the request context with
// loginregister.WithPrincipal, which is where the engine's administrative
// operations look for it.
//
// [ClientIP] attaches the caller's address for the login throttle and audit
// events.
//
// This package never parses tokens itself and makes no decision beyond
// pass or reject.
package middleware
