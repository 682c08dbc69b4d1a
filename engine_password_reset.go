package loginregister

import (
	"context"
	"errors"
	"strings"

	"github.com/Anonymus123-11/login-register/account"
	"github.com/Anonymus123-11/login-register/notify"
)

// ForgotPassword issues a reset code for address, replacing any pending
// one, and delivers it. A delivery failure is returned as *DeliveryError
// after the code has been stored.
func (e *Engine) ForgotPassword(ctx context.Context, address string) error {
	if err := e.ready(); err != nil {
		return err
	}

	address = account.NormalizeAddress(address)
	if address == "" {
		return ErrMissingField
	}

	if _, err := e.store.FindByAddress(ctx, address); err != nil {
		return storeErr(err)
	}
	if err := e.allowCodeIssue(ctx, notify.PurposeReset, address); err != nil {
		return err
	}

	code, pending, err := e.newCode(e.config.Reset)
	if err != nil {
		return err
	}

	acc, err := e.mutateByAddress(ctx, address, func(a *account.Account) (bool, error) {
		a.Reset = pending
		return true, nil
	})
	if err != nil {
		return err
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventResetRequest, true, acc.ID, nil, nil)

	return e.deliver(ctx, acc, code, notify.PurposeReset)
}

// ResetPassword replaces the password of address when code matches the
// pending reset code. The new hash and the cleared code are written in one
// update, so a replayed code finds nothing to match. The active refresh
// token is revoked unless Session.RevokeOnPasswordReset is off.
func (e *Engine) ResetPassword(ctx context.Context, address, code, newPlaintext string) error {
	if err := e.ready(); err != nil {
		return err
	}

	address = account.NormalizeAddress(address)
	code = strings.TrimSpace(code)
	if address == "" || code == "" || newPlaintext == "" {
		return ErrMissingField
	}
	if err := e.checkPasswordPolicy(newPlaintext); err != nil {
		return err
	}

	// Reject what can be rejected without hashing; the mutation below
	// re-checks against fresh state.
	current, err := e.store.FindByAddress(ctx, address)
	if err != nil {
		return storeErr(err)
	}
	if current.Reset == nil {
		return e.resetFailed(ctx, current.ID, ErrNoCodeIssued)
	}
	if current.Reset.Expired(e.now()) {
		return e.resetFailed(ctx, current.ID, ErrCodeExpired)
	}

	hash, err := e.hasher.Hash(newPlaintext)
	if err != nil {
		return err
	}

	_, err = e.mutate(ctx, current.ID, func(a *account.Account) (bool, error) {
		if a.Address != address {
			return false, ErrAccountNotFound
		}
		commit, err := e.consumeCode(&a.Reset, code, e.config.Reset.MaxAttempts)
		if err != nil {
			return commit, err
		}
		a.SecretHash = hash
		if e.config.Session.RevokeOnPasswordReset {
			a.RefreshDigest = ""
		}
		return true, nil
	})
	if err != nil {
		return e.resetFailed(ctx, current.ID, err)
	}

	e.metricInc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, auditEventResetConfirm, true, current.ID, nil, nil)
	return nil
}

func (e *Engine) resetFailed(ctx context.Context, accountID string, err error) error {
	e.metricInc(MetricPasswordResetFailure)
	if errors.Is(err, ErrCodeAttemptsExceeded) {
		e.emitAudit(ctx, auditEventResetFailure, false, accountID, err, func() map[string]string {
			return map[string]string{"code_discarded": "true"}
		})
		return err
	}
	e.emitAudit(ctx, auditEventResetFailure, false, accountID, err, nil)
	return err
}
