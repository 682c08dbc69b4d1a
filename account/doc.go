// Package account defines the persistent Account record, its outward
// projection, and the Store contract every storage backend implements.
//
// # Architecture boundaries
//
// account is a leaf package: it imports nothing from this module. The
// lifecycle engine in the root package owns every mutation; stores only
// persist what they are given and enforce the two structural guarantees the
// engine cannot provide alone:
//
//   - handle and address uniqueness, atomic with the insert or update that
//     claims them
//   - compare-and-set on Version, so concurrent read-modify-write cycles on
//     the same account serialize
//
// # What this package must NOT do
//
//   - Hash passwords, generate codes or sign tokens.
//   - Expose SecretHash or pending code material through [Projection].
package account
