package loginregister

import (
	"context"
	"errors"

	"github.com/Anonymus123-11/login-register/account"
	"github.com/Anonymus123-11/login-register/notify"
	"github.com/google/uuid"
)

// Register creates an unverified account and sends it a verification code.
//
// The account is persisted before delivery is attempted. If delivery fails
// the result is still returned, together with a *DeliveryError; the caller
// can recover through ResendCode.
func (e *Engine) Register(ctx context.Context, handle, address, plaintext string) (*RegisterResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	handle = account.NormalizeHandle(handle)
	address = account.NormalizeAddress(address)
	if handle == "" || address == "" || plaintext == "" {
		return nil, ErrMissingField
	}
	if err := validateAddress(address); err != nil {
		return nil, err
	}
	if err := e.checkPasswordPolicy(plaintext); err != nil {
		return nil, err
	}

	// Cheap pre-check so obvious duplicates skip the password hash. The
	// store's unique insert is what actually guarantees uniqueness.
	if _, err := e.store.FindByHandleOrAddress(ctx, handle, address); err == nil {
		return nil, e.registerFailed(ctx, ErrDuplicateIdentity)
	} else if !errors.Is(err, account.ErrNotFound) {
		return nil, storeErr(err)
	}

	hash, err := e.hasher.Hash(plaintext)
	if err != nil {
		return nil, err
	}
	code, pending, err := e.newCode(e.config.Verification)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	acc := &account.Account{
		ID:           uuid.NewString(),
		Handle:       handle,
		Address:      address,
		SecretHash:   hash,
		Role:         account.RoleStandard,
		Verification: pending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.store.Insert(ctx, acc); err != nil {
		return nil, e.registerFailed(ctx, storeErr(err))
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegister, true, acc.ID, nil, nil)

	result := &RegisterResult{AccountID: acc.ID}
	if err := e.deliver(ctx, acc, code, notify.PurposeVerify); err != nil {
		return result, err
	}
	return result, nil
}

func (e *Engine) registerFailed(ctx context.Context, err error) error {
	if errors.Is(err, ErrDuplicateIdentity) {
		e.metricInc(MetricRegisterDuplicate)
	}
	e.emitAudit(ctx, auditEventRegister, false, "", err, nil)
	return err
}
