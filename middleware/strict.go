package middleware

import (
	"net/http"

	loginregister "github.com/Anonymus123-11/login-register"
)

// RequireStrict validates the token and re-reads the account; the stored
// role replaces the one in the token.
func RequireStrict(engine *loginregister.Engine) func(http.Handler) http.Handler {
	return Guard(engine, loginregister.ModeStrict)
}
