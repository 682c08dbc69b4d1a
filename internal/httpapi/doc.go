// Package httpapi is the JSON-over-HTTP transport for the engine.
//
// Handlers decode the request, call one engine operation and encode the
// result. Status codes come from loginregister.KindOf; no handler inspects
// error strings or applies business rules.
package httpapi
