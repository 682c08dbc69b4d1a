// Package rate provides Redis-backed fixed-window throttles for the
// credential engine.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Keys live
// under a configurable prefix:
//   - <prefix>:login:u:<handle>  failed logins per handle
//   - <prefix>:login:ip:<ip>     failed logins per client IP
//   - <prefix>:code:<purpose>:<address>  code issuances per address
//
// # What this package must NOT do
//
//   - Decide what an account is or whether it exists.
//   - Be imported outside this module.
package rate
