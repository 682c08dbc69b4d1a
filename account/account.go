package account

import (
	"errors"
	"strings"
	"time"
)

// Role is the authorization level of an account.
type Role string

const (
	// RoleStandard is the default role assigned at registration.
	RoleStandard Role = "user"
	// RoleElevated may manage other accounts and bypasses the verification gate on login.
	RoleElevated Role = "admin"
)

// ErrInvalidRole is returned by [ParseRole] for unknown role names.
var ErrInvalidRole = errors.New("invalid account role")

// ParseRole maps a role name onto a known [Role]. Empty input yields RoleStandard.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case "", RoleStandard:
		return RoleStandard, nil
	case RoleElevated:
		return RoleElevated, nil
	default:
		return "", ErrInvalidRole
	}
}

// Elevated reports whether r carries administrative privileges.
func (r Role) Elevated() bool {
	return r == RoleElevated
}

// PendingCode is an issued, not yet consumed one-time code.
//
// Hash is the hex SHA-256 digest of the code; the plaintext is never stored.
type PendingCode struct {
	Hash      string    `json:"hash" bson:"hash"`
	ExpiresAt time.Time `json:"expires_at" bson:"expires_at"`
	Attempts  int       `json:"attempts" bson:"attempts"`
}

// Expired reports whether the code can no longer be redeemed at now.
func (c *PendingCode) Expired(now time.Time) bool {
	return c == nil || !now.Before(c.ExpiresAt)
}

// Account is the sole persistent entity of the credential lifecycle.
type Account struct {
	ID         string
	Handle     string
	Address    string
	SecretHash string
	Role       Role
	Verified   bool

	// Verification and Reset have independent lifecycles; nil means no code
	// is outstanding.
	Verification *PendingCode
	Reset        *PendingCode

	// RefreshDigest identifies the single live refresh token as
	// "<family>.<hex SHA-256 digest>", empty when no session is active.
	RefreshDigest string

	AvatarRef string
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy so callers can mutate without aliasing the
// stored snapshot.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	out := *a
	if a.Verification != nil {
		v := *a.Verification
		out.Verification = &v
	}
	if a.Reset != nil {
		r := *a.Reset
		out.Reset = &r
	}
	return &out
}

// Projection is the sanitized view of an account handed to callers.
type Projection struct {
	ID        string    `json:"id"`
	Handle    string    `json:"username"`
	Address   string    `json:"email"`
	Role      Role      `json:"role"`
	Verified  bool      `json:"is_verified"`
	AvatarRef string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Project strips credential and code material.
func (a *Account) Project() Projection {
	return Projection{
		ID:        a.ID,
		Handle:    a.Handle,
		Address:   a.Address,
		Role:      a.Role,
		Verified:  a.Verified,
		AvatarRef: a.AvatarRef,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// NormalizeAddress trims and lowercases an email address.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// NormalizeHandle trims surrounding whitespace; handles stay case sensitive.
func NormalizeHandle(handle string) string {
	return strings.TrimSpace(handle)
}
