package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	loginregister "github.com/Anonymus123-11/login-register"
)

const maxBodyBytes = 1 << 20

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

// decode reads a JSON body into dst. Unknown fields are ignored.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// statusFor maps an engine error onto an HTTP status.
func statusFor(err error) int {
	if errors.Is(err, loginregister.ErrNotVerified) {
		return http.StatusForbidden
	}
	switch loginregister.KindOf(err) {
	case loginregister.KindValidation:
		return http.StatusBadRequest
	case loginregister.KindConflict:
		return http.StatusConflict
	case loginregister.KindNotFound:
		return http.StatusNotFound
	case loginregister.KindAuth:
		return http.StatusUnauthorized
	case loginregister.KindAuthorization:
		return http.StatusForbidden
	case loginregister.KindDependency:
		return http.StatusServiceUnavailable
	case loginregister.KindThrottled:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		msg = "internal error"
	} else if status == http.StatusServiceUnavailable {
		s.logger.WarnContext(r.Context(), "dependency failure", "path", r.URL.Path, "error", err)
		msg = "service unavailable, try again later"
	}
	writeMessage(w, status, msg)
}
