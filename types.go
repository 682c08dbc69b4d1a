package loginregister

import (
	"time"

	"github.com/Anonymus123-11/login-register/account"
)

// ValidationMode selects how much work [Engine.Validate] does per call.
type ValidationMode int

const (
	// ModeInherit uses Config.ValidationMode.
	ModeInherit ValidationMode = -1
	// ModeJWTOnly verifies signature, expiry and claims without touching
	// the store.
	ModeJWTOnly ValidationMode = 0
	// ModeStrict additionally re-reads the account, so deleted accounts and
	// role changes take effect before the access token expires.
	ModeStrict ValidationMode = 1
)

// RegisterResult is returned by [Engine.Register].
type RegisterResult struct {
	AccountID string
}

// LoginResult is returned by [Engine.Login]. Account never carries the
// secret hash or pending codes.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
	Account      account.Projection
}

// RefreshResult is returned by [Engine.Refresh]. RefreshToken is only set
// when rotation is enabled.
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// Principal is the authenticated caller derived from an access token.
type Principal struct {
	AccountID string
	Role      account.Role
}

// Elevated reports whether the principal holds the administrative role.
func (p *Principal) Elevated() bool {
	return p != nil && p.Role.Elevated()
}

// CreateAccountInput is the administrative account creation request.
// Verified defaults to true when nil.
type CreateAccountInput struct {
	Handle    string
	Address   string
	Password  string
	Role      string
	Verified  *bool
	AvatarRef string
}

// AccountPatch lists the fields an update may change. Nil fields are left
// untouched. Password is hashed before it is stored.
type AccountPatch struct {
	Handle    *string
	Address   *string
	Role      *string
	Verified  *bool
	AvatarRef *string
	Password  *string
}

func (p AccountPatch) empty() bool {
	return p.Handle == nil && p.Address == nil && p.Role == nil &&
		p.Verified == nil && p.AvatarRef == nil && p.Password == nil
}
