package httpapi

import (
	"net/http"

	loginregister "github.com/Anonymus123-11/login-register"
	"github.com/Anonymus123-11/login-register/account"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerResponse struct {
	Message  string `json:"message"`
	UserID   string `json:"userId"`
	CodeSent bool   `json:"codeSent"`
}

func (s *server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := s.engine.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil && !loginregister.IsDeliveryError(err) {
		s.fail(w, r, err)
		return
	}

	resp := registerResponse{
		Message:  "User registered. Please check your email to verify your account.",
		UserID:   res.AccountID,
		CodeSent: err == nil,
	}
	if err != nil {
		s.logger.WarnContext(r.Context(), "verification code not delivered", "account_id", res.AccountID, "error", err)
		resp.Message = "User registered, but the verification code could not be sent. Request a new one."
	}
	writeJSON(w, http.StatusCreated, resp)
}

type codeRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

func (s *server) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.engine.VerifyCode(r.Context(), req.Email, req.OTP); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Email verified successfully. You can now login.")
}

func (s *server) resendCode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.engine.ResendCode(r.Context(), req.Email); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "OTP resent to your email")
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken  string             `json:"accessToken"`
	RefreshToken string             `json:"refreshToken"`
	ExpiresIn    int64              `json:"expiresIn"`
	User         account.Projection `json:"user"`
}

func (s *server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := s.engine.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresIn:    int64(res.ExpiresIn.Seconds()),
		User:         res.Account,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int64  `json:"expiresIn"`
}

func (s *server) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := s.engine.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresIn:    int64(res.ExpiresIn.Seconds()),
	})
}

func (s *server) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.engine.ForgotPassword(r.Context(), req.Email); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "OTP has been sent to your email")
}

type resetRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

func (s *server) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.engine.ResetPassword(r.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Password changed successfully")
}

func (s *server) logout(w http.ResponseWriter, r *http.Request) {
	p, _ := loginregister.PrincipalFromContext(r.Context())
	if err := s.engine.Logout(r.Context(), p.AccountID); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) me(w http.ResponseWriter, r *http.Request) {
	proj, err := s.engine.Me(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, proj)
}

type healthResponse struct {
	Status         string `json:"status"`
	Store          bool   `json:"store"`
	Limiter        bool   `json:"limiter"`
	StoreLatencyMS int64  `json:"storeLatencyMs"`
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	h := s.engine.Health(r.Context())
	resp := healthResponse{
		Status:         "ok",
		Store:          h.StoreAvailable,
		Limiter:        h.LimiterAvailable,
		StoreLatencyMS: h.StoreLatency.Milliseconds(),
	}
	status := http.StatusOK
	if !h.Healthy() {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
