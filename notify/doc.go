// Package notify delivers one-time codes to an address.
//
// The engine holds a [Notifier] injected at construction and calls it only
// after the state that the code authorizes has been committed. A returned
// error means the attempt failed; the engine surfaces it without rolling
// anything back, because the code can be reissued.
//
// Implementations:
//
//   - [SMTPNotifier] sends a plain-text mail through an SMTP relay.
//   - [StreamNotifier] appends a delivery request to a Redis stream for an
//     out-of-process mail worker.
//   - [LogNotifier] writes the code to a structured log; development only.
package notify
