package mongostore

import (
	"time"

	"github.com/Anonymus123-11/login-register/account"
)

type document struct {
	ID            string       `bson:"_id"`
	Handle        string       `bson:"handle"`
	Address       string       `bson:"address"`
	SecretHash    string       `bson:"secret_hash"`
	Role          string       `bson:"role"`
	Verified      bool         `bson:"verified"`
	Verification  *pendingCode `bson:"verification,omitempty"`
	Reset         *pendingCode `bson:"reset,omitempty"`
	RefreshDigest string       `bson:"refresh_digest,omitempty"`
	AvatarRef     string       `bson:"avatar_ref,omitempty"`
	Version       int64        `bson:"version"`
	CreatedAt     time.Time    `bson:"created_at"`
	UpdatedAt     time.Time    `bson:"updated_at"`
}

type pendingCode struct {
	Hash      string    `bson:"hash"`
	ExpiresAt time.Time `bson:"expires_at"`
	Attempts  int       `bson:"attempts"`
}

func toDocument(acc *account.Account) *document {
	return &document{
		ID:            acc.ID,
		Handle:        acc.Handle,
		Address:       acc.Address,
		SecretHash:    acc.SecretHash,
		Role:          string(acc.Role),
		Verified:      acc.Verified,
		Verification:  toPendingCode(acc.Verification),
		Reset:         toPendingCode(acc.Reset),
		RefreshDigest: acc.RefreshDigest,
		AvatarRef:     acc.AvatarRef,
		Version:       acc.Version,
		CreatedAt:     acc.CreatedAt.UTC(),
		UpdatedAt:     acc.UpdatedAt.UTC(),
	}
}

func toPendingCode(c *account.PendingCode) *pendingCode {
	if c == nil {
		return nil
	}
	return &pendingCode{Hash: c.Hash, ExpiresAt: c.ExpiresAt.UTC(), Attempts: c.Attempts}
}

func (d *document) account() *account.Account {
	acc := &account.Account{
		ID:            d.ID,
		Handle:        d.Handle,
		Address:       d.Address,
		SecretHash:    d.SecretHash,
		Role:          account.Role(d.Role),
		Verified:      d.Verified,
		RefreshDigest: d.RefreshDigest,
		AvatarRef:     d.AvatarRef,
		Version:       d.Version,
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}
	if d.Verification != nil {
		acc.Verification = &account.PendingCode{Hash: d.Verification.Hash, ExpiresAt: d.Verification.ExpiresAt.UTC(), Attempts: d.Verification.Attempts}
	}
	if d.Reset != nil {
		acc.Reset = &account.PendingCode{Hash: d.Reset.Hash, ExpiresAt: d.Reset.ExpiresAt.UTC(), Attempts: d.Reset.Attempts}
	}
	return acc
}
