package loginregister

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Anonymus123-11/login-register/account"
	"github.com/Anonymus123-11/login-register/internal"
)

// Login authenticates handle with plaintext and starts the account's single
// session: the new refresh token replaces any previous one.
//
// An unknown handle and a wrong password both return ErrInvalidCredentials
// and cost one password verification. Unverified standard accounts get
// ErrNotVerified; elevated accounts skip that gate.
func (e *Engine) Login(ctx context.Context, handle, plaintext string) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer e.observe(MetricLoginLatency, start)

	handle = account.NormalizeHandle(handle)
	if handle == "" || plaintext == "" {
		return nil, ErrMissingField
	}
	ip := ClientIPFromContext(ctx)

	if e.limiter != nil && e.config.Security.EnableLoginThrottle {
		if err := limiterErr(e.limiter.CheckLogin(ctx, handle, ip)); err != nil {
			if errors.Is(err, ErrRateLimited) {
				e.metricInc(MetricLoginRateLimited)
				e.emitRateLimit(ctx, "login")
			}
			return nil, err
		}
	}

	acc, err := e.store.FindByHandle(ctx, handle)
	if err != nil {
		if !errors.Is(err, account.ErrNotFound) {
			return nil, storeErr(err)
		}
		_, _ = e.hasher.Verify(plaintext, e.dummyHash)
		return nil, e.loginFailed(ctx, handle, ip, "")
	}

	ok, err := e.hasher.Verify(plaintext, acc.SecretHash)
	if err != nil {
		e.logger.WarnContext(ctx, "stored password hash unreadable", slog.String("account_id", acc.ID), slog.Any("error", err))
	}
	if !ok {
		return nil, e.loginFailed(ctx, handle, ip, acc.ID)
	}

	if !acc.Verified && !acc.Role.Elevated() {
		e.metricInc(MetricLoginUnverified)
		e.emitAudit(ctx, auditEventLoginFailure, false, acc.ID, ErrNotVerified, nil)
		return nil, ErrNotVerified
	}

	accessToken, err := e.access.Issue(acc.ID, string(acc.Role))
	if err != nil {
		return nil, err
	}
	refreshToken, family, err := e.refresh.IssueFamily(acc.ID, string(acc.Role), "")
	if err != nil {
		return nil, err
	}
	digest := internal.SessionKey(family, refreshToken)

	rehash := e.rehashIfWeak(ctx, acc, plaintext)

	updated, err := e.mutate(ctx, acc.ID, func(a *account.Account) (bool, error) {
		if a.SecretHash != acc.SecretHash {
			// changed since verification, by a concurrent rehash or a reset
			if ok, _ := e.hasher.Verify(plaintext, a.SecretHash); !ok {
				return false, ErrInvalidCredentials
			}
			rehash = ""
		}
		if a.Role != acc.Role {
			return false, ErrConcurrentUpdate
		}
		a.RefreshDigest = digest
		if rehash != "" {
			a.SecretHash = rehash
		}
		return true, nil
	})
	if err != nil {
		e.emitAudit(ctx, auditEventLoginFailure, false, acc.ID, err, nil)
		return nil, err
	}
	if rehash != "" {
		e.metricInc(MetricPasswordRehash)
	}

	if e.limiter != nil && e.config.Security.EnableLoginThrottle {
		if err := e.limiter.ResetLogin(ctx, handle, ip); err != nil {
			e.logger.WarnContext(ctx, "login throttle reset failed", slog.Any("error", err))
		}
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, acc.ID, nil, nil)

	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    e.access.TTL(),
		Account:      updated.Project(),
	}, nil
}

func (e *Engine) loginFailed(ctx context.Context, handle, ip, accountID string) error {
	e.metricInc(MetricLoginFailure)
	if e.limiter != nil && e.config.Security.EnableLoginThrottle {
		if err := e.limiter.IncrementLogin(ctx, handle, ip); err != nil && !errors.Is(limiterErr(err), ErrRateLimited) {
			e.logger.WarnContext(ctx, "login throttle increment failed", slog.Any("error", err))
		}
	}
	e.emitAudit(ctx, auditEventLoginFailure, false, accountID, ErrInvalidCredentials, nil)
	return ErrInvalidCredentials
}

// rehashIfWeak returns a fresh hash when the stored one is legacy bcrypt or
// uses weaker argon2 parameters, or "" when no upgrade is due.
func (e *Engine) rehashIfWeak(ctx context.Context, acc *account.Account, plaintext string) string {
	if !e.config.Password.UpgradeOnLogin {
		return ""
	}
	upgrade, err := e.hasher.NeedsUpgrade(acc.SecretHash)
	if err != nil || !upgrade {
		return ""
	}
	fresh, err := e.hasher.Hash(plaintext)
	if err != nil {
		e.logger.WarnContext(ctx, "password rehash failed", slog.String("account_id", acc.ID), slog.Any("error", err))
		return ""
	}
	return fresh
}

// Refresh exchanges the account's active refresh token for a new access
// token. The access token carries the role currently stored, not the one
// in the refresh token.
//
// With Session.RotateRefreshTokens set, a new refresh token is returned and
// the presented one stops working. Presenting a correctly signed token that
// was rotated out of the still-active family is then treated as reuse: the
// active token is revoked and ErrRefreshReuse returned. Tokens from an
// earlier login, or from a session ended by logout or a password change,
// only fail with ErrInvalidRefreshToken.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, ErrMissingToken
	}

	claims, err := e.refresh.Parse(refreshToken)
	if err != nil {
		return nil, e.refreshFailed(ctx, "", ErrInvalidRefreshToken)
	}

	if claims.Family == "" {
		return nil, e.refreshFailed(ctx, claims.UID, ErrInvalidRefreshToken)
	}

	digest := internal.SessionKey(claims.Family, refreshToken)
	acc, err := e.store.FindByRefreshToken(ctx, digest)
	if err != nil {
		if !errors.Is(err, account.ErrNotFound) {
			return nil, storeErr(err)
		}
		if e.config.Session.RotateRefreshTokens {
			return nil, e.revokeOnReuse(ctx, claims.UID, claims.Family)
		}
		return nil, e.refreshFailed(ctx, claims.UID, ErrInvalidRefreshToken)
	}
	if acc.ID != claims.UID {
		return nil, e.refreshFailed(ctx, claims.UID, ErrInvalidRefreshToken)
	}

	accessToken, err := e.access.Issue(acc.ID, string(acc.Role))
	if err != nil {
		return nil, err
	}
	result := &RefreshResult{
		AccessToken: accessToken,
		ExpiresIn:   e.access.TTL(),
	}

	if e.config.Session.RotateRefreshTokens {
		next, _, err := e.refresh.IssueFamily(acc.ID, string(acc.Role), claims.Family)
		if err != nil {
			return nil, err
		}
		nextDigest := internal.SessionKey(claims.Family, next)
		_, err = e.mutate(ctx, acc.ID, func(a *account.Account) (bool, error) {
			if a.RefreshDigest != digest {
				// lost a race with another refresh or a logout
				return false, ErrInvalidRefreshToken
			}
			a.RefreshDigest = nextDigest
			return true, nil
		})
		if err != nil {
			return nil, e.refreshFailed(ctx, acc.ID, err)
		}
		result.RefreshToken = next
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, acc.ID, nil, nil)
	return result, nil
}

func (e *Engine) refreshFailed(ctx context.Context, accountID string, err error) error {
	e.metricInc(MetricRefreshFailure)
	e.emitAudit(ctx, auditEventRefreshInvalid, false, accountID, err, nil)
	return err
}

// revokeOnReuse ends the session when family is still the active one. A
// stale token from any other family leaves the current session alone.
func (e *Engine) revokeOnReuse(ctx context.Context, accountID, family string) error {
	var revoked bool
	_, err := e.mutate(ctx, accountID, func(a *account.Account) (bool, error) {
		revoked = false
		if a.RefreshDigest == "" || internal.SessionFamily(a.RefreshDigest) != family {
			return false, nil
		}
		a.RefreshDigest = ""
		revoked = true
		return true, nil
	})
	if errors.Is(err, ErrAccountNotFound) || (err == nil && !revoked) {
		return e.refreshFailed(ctx, accountID, ErrInvalidRefreshToken)
	}
	if err != nil {
		return err
	}

	e.metricInc(MetricRefreshReuseDetected)
	e.emitAudit(ctx, auditEventRefreshReuse, false, accountID, ErrRefreshReuse, nil)
	return ErrRefreshReuse
}

// Logout clears the account's stored refresh token. Access tokens already
// issued stay valid until they expire.
func (e *Engine) Logout(ctx context.Context, accountID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if accountID == "" {
		return ErrMissingField
	}

	_, err := e.mutate(ctx, accountID, func(a *account.Account) (bool, error) {
		if a.RefreshDigest == "" {
			return false, nil
		}
		a.RefreshDigest = ""
		return true, nil
	})
	if err != nil {
		return err
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, accountID, nil, nil)
	return nil
}

// Validate verifies an access token. ModeJWTOnly checks only the token;
// ModeStrict also re-reads the account so deleted accounts fail with
// ErrAccountNotFound and the stored role wins. ModeInherit uses the
// configured mode.
func (e *Engine) Validate(ctx context.Context, accessToken string, mode ValidationMode) (*Principal, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer e.observe(MetricValidateLatency, start)

	if mode == ModeInherit {
		mode = e.config.ValidationMode
	}
	if mode != ModeJWTOnly && mode != ModeStrict {
		return nil, ErrInvalidValidationMode
	}

	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, ErrMissingToken
	}

	claims, err := e.access.Parse(accessToken)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	role, err := account.ParseRole(claims.Role)
	if err != nil || claims.UID == "" {
		return nil, ErrTokenInvalid
	}

	p := &Principal{AccountID: claims.UID, Role: role}
	if mode == ModeStrict {
		acc, err := e.store.FindByID(ctx, claims.UID)
		if err != nil {
			return nil, storeErr(err)
		}
		p.Role = acc.Role
	}
	return p, nil
}

// Me returns the projection of the principal attached to ctx.
func (e *Engine) Me(ctx context.Context) (*account.Projection, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}

	acc, err := e.store.FindByID(ctx, p.AccountID)
	if err != nil {
		return nil, storeErr(err)
	}
	proj := acc.Project()
	return &proj, nil
}
