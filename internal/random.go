package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
)

// NewOTP returns a numeric one-time code of the given length. Every digit is
// drawn independently and uniformly from crypto/rand.
func NewOTP(digits int) (string, error) {
	if digits < 6 || digits > 10 {
		return "", errors.New("invalid otp digits")
	}

	var b strings.Builder
	b.Grow(digits)

	ten := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

// Digest returns the hex SHA-256 of secret. Codes and refresh tokens are
// high-entropy or short-lived, so an unsalted digest is sufficient to keep
// them out of storage in plaintext.
func Digest(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// DigestMatches compares secret against a stored digest in constant time.
// An empty digest never matches.
func DigestMatches(digest, secret string) bool {
	if digest == "" {
		return false
	}
	computed := Digest(secret)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1
}

// SessionKey is the stored form of a refresh token: the rotation family it
// belongs to, a dot, then the token digest. Lookups by token stay exact while
// the family survives for reuse checks.
func SessionKey(family, token string) string {
	return family + "." + Digest(token)
}

// SessionFamily returns the family part of a key built by SessionKey, or ""
// for an empty or unqualified key.
func SessionFamily(key string) string {
	family, _, ok := strings.Cut(key, ".")
	if !ok {
		return ""
	}
	return family
}
