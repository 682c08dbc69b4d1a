package loginregister

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"time"
	"unicode/utf8"

	"github.com/Anonymus123-11/login-register/account"
	"github.com/Anonymus123-11/login-register/internal"
	"github.com/Anonymus123-11/login-register/internal/rate"
	"github.com/Anonymus123-11/login-register/jwt"
	"github.com/Anonymus123-11/login-register/notify"
	"github.com/Anonymus123-11/login-register/password"
)

// maxUpdateRetries bounds optimistic retries of one account mutation.
const maxUpdateRetries = 4

// Engine runs the credential lifecycle: registration, code verification,
// login, refresh and password reset. It is safe for concurrent use.
type Engine struct {
	config    Config
	store     account.Store
	notifier  notify.Notifier
	limiter   *rate.Limiter
	hasher    *password.Argon2
	access    *jwt.Manager
	refresh   *jwt.Manager
	audit     *auditQueue
	metrics   *Metrics
	logger    *slog.Logger
	now       func() time.Time
	codeGen   func(digits int) (string, error)
	dummyHash string
}

// Close flushes pending audit events. The engine must not be used after.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine's counters and
// latency histograms. It is empty when metrics are disabled.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) observe(id MetricID, start time.Time) {
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		e.metrics.Observe(id, time.Since(start))
	}
}

func (e *Engine) ready() error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	return nil
}

// mutate applies fn to a fresh copy of account id and writes it back with a
// version check, retrying on conflicts. When fn returns commit=false nothing
// is written. A non-nil error from fn is returned after the write when
// commit is true, so failed attempts can still be recorded.
func (e *Engine) mutate(ctx context.Context, id string, fn func(acc *account.Account) (bool, error)) (*account.Account, error) {
	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		current, err := e.store.FindByID(ctx, id)
		if err != nil {
			return nil, storeErr(err)
		}

		next := current.Clone()
		commit, fnErr := fn(next)
		if !commit {
			return current, fnErr
		}

		next.UpdatedAt = e.now().UTC()
		err = e.store.Update(ctx, next, current.Version)
		if errors.Is(err, account.ErrVersionConflict) {
			e.metricInc(MetricStoreConflictRetry)
			continue
		}
		if err != nil {
			return nil, storeErr(err)
		}
		return next, fnErr
	}
	return nil, ErrConcurrentUpdate
}

// mutateByAddress resolves address and mutates that account. If the
// address changes between lookup and write the account is reported as not
// found.
func (e *Engine) mutateByAddress(ctx context.Context, address string, fn func(acc *account.Account) (bool, error)) (*account.Account, error) {
	acc, err := e.store.FindByAddress(ctx, address)
	if err != nil {
		return nil, storeErr(err)
	}
	return e.mutate(ctx, acc.ID, func(a *account.Account) (bool, error) {
		if a.Address != address {
			return false, ErrAccountNotFound
		}
		return fn(a)
	})
}

// newCode draws a code and its stored form.
func (e *Engine) newCode(cfg CodeConfig) (string, *account.PendingCode, error) {
	code, err := e.codeGen(cfg.Digits)
	if err != nil {
		return "", nil, err
	}
	return code, &account.PendingCode{
		Hash:      internal.Digest(code),
		ExpiresAt: e.now().Add(cfg.TTL).UTC(),
	}, nil
}

// consumeCode checks code against *slot. A match clears the slot. A
// mismatch spends one attempt and clears the slot once the budget is gone.
// Expired codes are left in place.
func (e *Engine) consumeCode(slot **account.PendingCode, code string, maxAttempts int) (bool, error) {
	pc := *slot
	if pc == nil {
		return false, ErrNoCodeIssued
	}
	if pc.Expired(e.now()) {
		return false, ErrCodeExpired
	}
	if !internal.DigestMatches(pc.Hash, code) {
		pc.Attempts++
		if pc.Attempts >= maxAttempts {
			*slot = nil
			return true, ErrCodeAttemptsExceeded
		}
		return true, ErrInvalidCode
	}
	*slot = nil
	return true, nil
}

// deliver hands code to the notifier. State has already been committed, so
// a failure is returned as *DeliveryError and never rolls anything back.
func (e *Engine) deliver(ctx context.Context, acc *account.Account, code string, purpose notify.Purpose) error {
	meta := func() map[string]string {
		return map[string]string{"purpose": string(purpose)}
	}

	if err := e.notifier.DeliverCode(ctx, acc.Address, code, purpose); err != nil {
		e.metricInc(MetricCodeDeliveryFailed)
		e.logger.WarnContext(ctx, "code delivery failed",
			slog.String("account_id", acc.ID),
			slog.String("purpose", string(purpose)),
			slog.Any("error", err),
		)
		e.emitAudit(ctx, auditEventCodeDeliveryFailed, false, acc.ID, ErrDeliveryFailed, meta)
		return &DeliveryError{Purpose: string(purpose), Err: err}
	}

	e.metricInc(MetricCodeIssued)
	e.emitAudit(ctx, auditEventCodeIssued, true, acc.ID, nil, meta)
	return nil
}

func (e *Engine) allowCodeIssue(ctx context.Context, purpose notify.Purpose, address string) error {
	if e.limiter == nil {
		return nil
	}
	err := limiterErr(e.limiter.AllowCodeIssue(ctx, string(purpose), address))
	if errors.Is(err, ErrRateLimited) {
		e.emitRateLimit(ctx, "code_"+string(purpose))
	}
	return err
}

func (e *Engine) checkPasswordPolicy(plaintext string) error {
	if utf8.RuneCountInString(plaintext) < e.config.Password.MinLength {
		return ErrPasswordPolicy
	}
	if len(plaintext) > e.config.Password.MaxBytes {
		return ErrPasswordPolicy
	}
	return nil
}

// validateAddress accepts a bare mailbox, without display name.
func validateAddress(address string) error {
	parsed, err := mail.ParseAddress(address)
	if err != nil || parsed.Address != address {
		return ErrInvalidAddress
	}
	return nil
}
