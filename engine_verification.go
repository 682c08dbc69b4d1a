package loginregister

import (
	"context"
	"errors"
	"strings"

	"github.com/Anonymus123-11/login-register/account"
	"github.com/Anonymus123-11/login-register/notify"
)

// VerifyCode proves ownership of address with the pending verification
// code. Calling it on an already verified account succeeds without side
// effects.
//
// Failures, in check order: ErrAccountNotFound, ErrNoCodeIssued,
// ErrCodeExpired, ErrInvalidCode. Each mismatch spends one attempt; the
// last one discards the code and returns ErrCodeAttemptsExceeded.
func (e *Engine) VerifyCode(ctx context.Context, address, code string) error {
	if err := e.ready(); err != nil {
		return err
	}

	address = account.NormalizeAddress(address)
	code = strings.TrimSpace(code)
	if address == "" || code == "" {
		return ErrMissingField
	}

	var transitioned bool
	acc, err := e.mutateByAddress(ctx, address, func(a *account.Account) (bool, error) {
		transitioned = false
		if a.Verified {
			return false, nil
		}
		commit, err := e.consumeCode(&a.Verification, code, e.config.Verification.MaxAttempts)
		if err != nil {
			return commit, err
		}
		a.Verified = true
		transitioned = true
		return true, nil
	})

	var accountID string
	if acc != nil {
		accountID = acc.ID
	}
	if err != nil {
		e.metricInc(MetricVerificationFailure)
		if errors.Is(err, ErrCodeAttemptsExceeded) {
			e.metricInc(MetricVerificationAttemptsExceeded)
		}
		e.emitAudit(ctx, auditEventVerifyFailure, false, accountID, err, nil)
		return err
	}
	if !transitioned {
		return nil
	}

	e.metricInc(MetricVerificationSuccess)
	e.emitAudit(ctx, auditEventVerifySuccess, true, accountID, nil, nil)
	return nil
}

// ResendCode replaces the pending verification code with a fresh one and
// delivers it. The previous code stops working immediately.
func (e *Engine) ResendCode(ctx context.Context, address string) error {
	if err := e.ready(); err != nil {
		return err
	}

	address = account.NormalizeAddress(address)
	if address == "" {
		return ErrMissingField
	}

	current, err := e.store.FindByAddress(ctx, address)
	if err != nil {
		return storeErr(err)
	}
	if current.Verified {
		return ErrAlreadyVerified
	}
	if err := e.allowCodeIssue(ctx, notify.PurposeVerify, address); err != nil {
		return err
	}

	code, pending, err := e.newCode(e.config.Verification)
	if err != nil {
		return err
	}

	acc, err := e.mutate(ctx, current.ID, func(a *account.Account) (bool, error) {
		if a.Address != address {
			return false, ErrAccountNotFound
		}
		if a.Verified {
			return false, ErrAlreadyVerified
		}
		a.Verification = pending
		return true, nil
	})
	if err != nil {
		return err
	}

	return e.deliver(ctx, acc, code, notify.PurposeVerify)
}
