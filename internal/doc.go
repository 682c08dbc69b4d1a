// Package internal holds private helpers shared by the engine: one-time code
// generation and the digests used to keep codes and refresh tokens out of
// storage in plaintext.
//
// # Sub-packages
//
//   - config: process configuration (.env, YAML, environment)
//   - httpapi: HTTP transport over the engine
//   - logging: slog construction
//   - rate: Redis-backed throttles for login and code issuance
//
// # What this package must NOT do
//
//   - Export types that appear in the public engine API.
//   - Be imported by any package outside this module.
package internal
