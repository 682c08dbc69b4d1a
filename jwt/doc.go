// Package jwt issues and verifies the two signed token classes: short-lived
// access tokens and long-lived refresh tokens.
//
// Each class gets its own [Manager] with its own secret, so a leaked access
// secret cannot mint refresh tokens and the two lifetimes evolve
// independently. Tokens carry the account id, its role and a "typ" claim;
// a Manager rejects tokens of the other class even if the secrets matched.
//
// Verification failures collapse into two errors, [ErrExpiredToken] and
// [ErrInvalidSignature]; the engine reports both outward as one opaque
// "invalid token".
package jwt
