// Package loginregister is the credential lifecycle engine: it registers
// accounts, proves address ownership with one-time codes, issues
// access/refresh token pairs and resets forgotten passwords.
//
// Build an [Engine] with [New], supplying an account store and a notifier:
//
//	engine, err := loginregister.New().
//		WithConfig(cfg).
//		WithStore(store).
//		WithNotifier(notifier).
//		Build()
//
// Engine methods are safe to call from multiple goroutines.
//
// # State per account
//
// An account is pending verification until [Engine.VerifyCode] succeeds.
// Orthogonally it has zero or one active refresh token (single session) and
// zero or one pending reset code. Every mutation is a read-modify-write
// guarded by the record version, so a consume racing a reissue cannot both
// succeed against the same code.
//
// # Architecture boundaries
//
// This package owns the rules. Persistence is behind [account.Store],
// delivery behind [notify.Notifier], hashing in package password and token
// signing in package jwt. HTTP framing lives in internal/httpapi.
//
// # What this package must NOT do
//
//   - Roll back committed state because delivery failed.
//   - Return secret hashes, codes or refresh digests in any result.
//   - Tell an unknown handle apart from a wrong password on login.
//   - Retry failed operations on the caller's behalf, beyond optimistic
//     version conflicts.
package loginregister
