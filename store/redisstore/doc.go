// Package redisstore keeps accounts in Redis.
//
// # Key layout
//
//	<prefix>:rec:<id>         JSON-encoded account
//	<prefix>:handle:<handle>  account id
//	<prefix>:addr:<address>   account id
//	<prefix>:rt:<digest>      account id, for the active refresh token
//	<prefix>:ids              sorted set of ids scored by creation time (ms)
//
// Writes run in WATCH/MULTI/EXEC transactions over every key they read, so
// uniqueness checks and version checks are atomic with the write. A
// transaction aborted by a concurrent writer is retried a bounded number of
// times.
package redisstore
