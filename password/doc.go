// Package password implements the one-way secret hasher: Argon2id for new
// hashes, with verification of legacy bcrypt hashes.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.NeedsUpgrade] returns true for bcrypt hashes and for Argon2id hashes
// produced with weaker parameters, so the caller can re-hash on the next
// successful login.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (minimum
// length) is enforced by the engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords.
//   - Import any other package of this module.
//   - Log plaintext passwords or hash parameters.
package password
