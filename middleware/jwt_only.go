package middleware

import (
	"net/http"

	loginregister "github.com/Anonymus123-11/login-register"
)

// RequireJWTOnly validates signature, expiry and claims without reading the
// account store.
func RequireJWTOnly(engine *loginregister.Engine) func(http.Handler) http.Handler {
	return Guard(engine, loginregister.ModeJWTOnly)
}
