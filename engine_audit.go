package loginregister

import (
	"context"
	"errors"
)

const (
	auditEventRegister           = "register"
	auditEventVerifySuccess      = "verification_success"
	auditEventVerifyFailure      = "verification_failure"
	auditEventCodeIssued         = "code_issued"
	auditEventCodeDeliveryFailed = "code_delivery_failed"
	auditEventLoginSuccess       = "login_success"
	auditEventLoginFailure       = "login_failure"
	auditEventRefreshSuccess     = "refresh_success"
	auditEventRefreshInvalid     = "refresh_invalid"
	auditEventRefreshReuse       = "refresh_reuse_detected"
	auditEventLogout             = "logout"
	auditEventResetRequest       = "password_reset_request"
	auditEventResetConfirm       = "password_reset_confirm"
	auditEventResetFailure       = "password_reset_failure"
	auditEventAdminCreate        = "admin_account_create"
	auditEventAdminUpdate        = "account_update"
	auditEventAdminDelete        = "admin_account_delete"
	auditEventAuthzDenied        = "authorization_denied"
	auditEventRateLimited        = "rate_limit_triggered"
)

// AuditErrorCode is the coarse error label recorded on failed events.
type AuditErrorCode string

const (
	auditErrMissingField       AuditErrorCode = "missing_field"
	auditErrInvalidInput       AuditErrorCode = "invalid_input"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrNotFound           AuditErrorCode = "not_found"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrNotVerified        AuditErrorCode = "not_verified"
	auditErrInvalidCode        AuditErrorCode = "invalid_code"
	auditErrCodeExpired        AuditErrorCode = "code_expired"
	auditErrAttemptsExceeded   AuditErrorCode = "attempts_exceeded"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrRefreshReuse       AuditErrorCode = "refresh_reuse"
	auditErrForbidden          AuditErrorCode = "forbidden"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrDelivery           AuditErrorCode = "delivery_failed"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		AccountID: accountID,
		IP:        ClientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if p, ok := PrincipalFromContext(ctx); ok {
		event.ActorID = p.AccountID
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, scope string) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimited, false, "", ErrRateLimited, func() map[string]string {
		return map[string]string{"scope": scope}
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrMissingField):
		return auditErrMissingField
	case errors.Is(err, ErrInvalidAddress),
		errors.Is(err, ErrPasswordPolicy),
		errors.Is(err, ErrInvalidRole):
		return auditErrInvalidInput
	case errors.Is(err, ErrDuplicateIdentity):
		return auditErrDuplicate
	case errors.Is(err, ErrAccountNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrNotVerified):
		return auditErrNotVerified
	case errors.Is(err, ErrInvalidCode),
		errors.Is(err, ErrNoCodeIssued):
		return auditErrInvalidCode
	case errors.Is(err, ErrCodeExpired):
		return auditErrCodeExpired
	case errors.Is(err, ErrCodeAttemptsExceeded):
		return auditErrAttemptsExceeded
	case errors.Is(err, ErrRefreshReuse):
		return auditErrRefreshReuse
	case errors.Is(err, ErrInvalidRefreshToken),
		errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrMissingToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrForbidden),
		errors.Is(err, ErrUnauthenticated):
		return auditErrForbidden
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrDeliveryFailed):
		return auditErrDelivery
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrConcurrentUpdate):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}

