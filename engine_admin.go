package loginregister

import (
	"context"
	"errors"
	"strings"

	"github.com/Anonymus123-11/login-register/account"
	"github.com/Anonymus123-11/login-register/notify"
	"github.com/google/uuid"
)

// selfAlias resolves to the calling principal in GetAccount and
// UpdateAccount.
const selfAlias = "me"

func (e *Engine) principal(ctx context.Context) (*Principal, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}
	return p, nil
}

// elevated reports whether p may act as an administrator. The role is
// re-read from the store, so a deleted or demoted account loses its rights
// before its access token expires. A principal without an account id is an
// in-process caller such as the bootstrap seeder and keeps its claimed role;
// Validate never produces one.
func (e *Engine) elevated(ctx context.Context, p *Principal) (bool, error) {
	if p.AccountID == "" {
		return p.Elevated(), nil
	}
	if !p.Elevated() {
		return false, nil
	}
	acc, err := e.store.FindByID(ctx, p.AccountID)
	if errors.Is(err, account.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storeErr(err)
	}
	return acc.Role.Elevated(), nil
}

func (e *Engine) requireElevated(ctx context.Context) (*Principal, error) {
	p, err := e.principal(ctx)
	if err != nil {
		return nil, err
	}
	ok, err := e.elevated(ctx, p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, e.denied(ctx, p)
	}
	return p, nil
}

func (e *Engine) denied(ctx context.Context, p *Principal) error {
	e.metricInc(MetricAuthorizationDenied)
	e.emitAudit(ctx, auditEventAuthzDenied, false, p.AccountID, ErrForbidden, nil)
	return ErrForbidden
}

// CreateAccount adds an account directly. Verified defaults to true; when
// it is explicitly false a verification code is issued and delivered as on
// registration. Requires an elevated principal.
func (e *Engine) CreateAccount(ctx context.Context, in CreateAccountInput) (*account.Projection, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if _, err := e.requireElevated(ctx); err != nil {
		return nil, err
	}

	handle := account.NormalizeHandle(in.Handle)
	address := account.NormalizeAddress(in.Address)
	if handle == "" || address == "" || in.Password == "" {
		return nil, ErrMissingField
	}
	if err := validateAddress(address); err != nil {
		return nil, err
	}
	if err := e.checkPasswordPolicy(in.Password); err != nil {
		return nil, err
	}
	role, err := account.ParseRole(in.Role)
	if err != nil {
		return nil, ErrInvalidRole
	}
	verified := true
	if in.Verified != nil {
		verified = *in.Verified
	}

	hash, err := e.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	acc := &account.Account{
		ID:         uuid.NewString(),
		Handle:     handle,
		Address:    address,
		SecretHash: hash,
		Role:       role,
		Verified:   verified,
		AvatarRef:  strings.TrimSpace(in.AvatarRef),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	var code string
	if !verified {
		code, acc.Verification, err = e.newCode(e.config.Verification)
		if err != nil {
			return nil, err
		}
	}

	if err := e.store.Insert(ctx, acc); err != nil {
		err = storeErr(err)
		e.emitAudit(ctx, auditEventAdminCreate, false, "", err, nil)
		return nil, err
	}

	e.metricInc(MetricAdminCreate)
	e.emitAudit(ctx, auditEventAdminCreate, true, acc.ID, nil, nil)

	proj := acc.Project()
	if code != "" {
		if err := e.deliver(ctx, acc, code, notify.PurposeVerify); err != nil {
			return &proj, err
		}
	}
	return &proj, nil
}

// ListAccounts returns every account ordered by creation time. Requires an
// elevated principal.
func (e *Engine) ListAccounts(ctx context.Context) ([]account.Projection, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if _, err := e.requireElevated(ctx); err != nil {
		return nil, err
	}

	accounts, err := e.store.List(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	out := make([]account.Projection, 0, len(accounts))
	for _, acc := range accounts {
		out = append(out, acc.Project())
	}
	return out, nil
}

// GetAccount returns one account. A principal may read itself; reading
// others requires the elevated role. The id "me" names the principal.
func (e *Engine) GetAccount(ctx context.Context, id string) (*account.Projection, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	p, err := e.principal(ctx)
	if err != nil {
		return nil, err
	}
	if id == selfAlias {
		id = p.AccountID
	}
	if id == "" {
		return nil, ErrMissingField
	}
	if id != p.AccountID {
		ok, err := e.elevated(ctx, p)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, e.denied(ctx, p)
		}
	}

	acc, err := e.store.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	proj := acc.Project()
	return &proj, nil
}

// UpdateAccount applies patch to account id.
//
// Elevated principals may change every patch field. A principal updating
// itself may always change AvatarRef, and Handle or Address only while
// unverified. Changing the address discards any pending verification code.
// A new password goes through the hasher and revokes the refresh token.
func (e *Engine) UpdateAccount(ctx context.Context, id string, patch AccountPatch) (*account.Projection, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	p, err := e.principal(ctx)
	if err != nil {
		return nil, err
	}
	if id == selfAlias {
		id = p.AccountID
	}
	if id == "" || patch.empty() {
		return nil, ErrMissingField
	}

	elevated, err := e.elevated(ctx, p)
	if err != nil {
		return nil, err
	}
	if id != p.AccountID && !elevated {
		return nil, e.denied(ctx, p)
	}
	if !elevated && (patch.Role != nil || patch.Verified != nil || patch.Password != nil) {
		return nil, e.denied(ctx, p)
	}

	var handle, address, hash string
	var role account.Role
	if patch.Handle != nil {
		if handle = account.NormalizeHandle(*patch.Handle); handle == "" {
			return nil, ErrMissingField
		}
	}
	if patch.Address != nil {
		if address = account.NormalizeAddress(*patch.Address); address == "" {
			return nil, ErrMissingField
		}
		if err := validateAddress(address); err != nil {
			return nil, err
		}
	}
	if patch.Role != nil {
		if role, err = account.ParseRole(*patch.Role); err != nil {
			return nil, ErrInvalidRole
		}
	}
	if patch.Password != nil {
		if err := e.checkPasswordPolicy(*patch.Password); err != nil {
			return nil, err
		}
		if hash, err = e.hasher.Hash(*patch.Password); err != nil {
			return nil, err
		}
	}

	updated, err := e.mutate(ctx, id, func(a *account.Account) (bool, error) {
		if !elevated && a.Verified && (patch.Handle != nil || patch.Address != nil) {
			return false, ErrForbidden
		}
		if patch.Handle != nil {
			a.Handle = handle
		}
		if patch.Address != nil && address != a.Address {
			a.Address = address
			a.Verification = nil
		}
		if patch.Role != nil {
			a.Role = role
		}
		if patch.Verified != nil {
			a.Verified = *patch.Verified
			if a.Verified {
				a.Verification = nil
			}
		}
		if patch.AvatarRef != nil {
			a.AvatarRef = strings.TrimSpace(*patch.AvatarRef)
		}
		if hash != "" {
			a.SecretHash = hash
			a.RefreshDigest = ""
		}
		return true, nil
	})
	if err != nil {
		if errors.Is(err, ErrForbidden) {
			return nil, e.denied(ctx, p)
		}
		e.emitAudit(ctx, auditEventAdminUpdate, false, id, err, nil)
		return nil, err
	}

	e.metricInc(MetricAdminUpdate)
	e.emitAudit(ctx, auditEventAdminUpdate, true, id, nil, func() map[string]string {
		return map[string]string{"fields": patchFields(patch)}
	})

	proj := updated.Project()
	return &proj, nil
}

// DeleteAccount removes account id. Its tokens stop validating in strict
// mode and can no longer be refreshed. Requires an elevated principal.
func (e *Engine) DeleteAccount(ctx context.Context, id string) error {
	if err := e.ready(); err != nil {
		return err
	}
	p, err := e.requireElevated(ctx)
	if err != nil {
		return err
	}
	if id == selfAlias {
		id = p.AccountID
	}
	if id == "" {
		return ErrMissingField
	}

	if err := e.store.Delete(ctx, id); err != nil {
		err = storeErr(err)
		e.emitAudit(ctx, auditEventAdminDelete, false, id, err, nil)
		return err
	}

	e.metricInc(MetricAdminDelete)
	e.emitAudit(ctx, auditEventAdminDelete, true, id, nil, nil)
	return nil
}

func patchFields(p AccountPatch) string {
	var fields []string
	if p.Handle != nil {
		fields = append(fields, "handle")
	}
	if p.Address != nil {
		fields = append(fields, "address")
	}
	if p.Role != nil {
		fields = append(fields, "role")
	}
	if p.Verified != nil {
		fields = append(fields, "verified")
	}
	if p.AvatarRef != nil {
		fields = append(fields, "avatar")
	}
	if p.Password != nil {
		fields = append(fields, "password")
	}
	return strings.Join(fields, ",")
}
