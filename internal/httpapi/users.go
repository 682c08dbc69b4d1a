package httpapi

import (
	"net/http"

	loginregister "github.com/Anonymus123-11/login-register"
	"github.com/Anonymus123-11/login-register/account"
)

type createUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Verified *bool  `json:"isVerified"`
	Avatar   string `json:"avatar"`
}

type userResponse struct {
	Message  string              `json:"message"`
	User     *account.Projection `json:"user"`
	CodeSent *bool               `json:"codeSent,omitempty"`
}

func (s *server) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decode(w, r, &req) {
		return
	}

	proj, err := s.engine.CreateAccount(r.Context(), loginregister.CreateAccountInput{
		Handle:    req.Username,
		Address:   req.Email,
		Password:  req.Password,
		Role:      req.Role,
		Verified:  req.Verified,
		AvatarRef: req.Avatar,
	})
	if err != nil && !loginregister.IsDeliveryError(err) {
		s.fail(w, r, err)
		return
	}

	resp := userResponse{Message: "User created successfully", User: proj}
	if req.Verified != nil && !*req.Verified {
		sent := err == nil
		resp.CodeSent = &sent
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *server) listUsers(w http.ResponseWriter, r *http.Request) {
	list, err := s.engine.ListAccounts(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *server) getUser(w http.ResponseWriter, r *http.Request) {
	proj, err := s.engine.GetAccount(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, proj)
}

type updateUserRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Role     *string `json:"role"`
	Verified *bool   `json:"isVerified"`
	Avatar   *string `json:"avatar"`
	Password *string `json:"password"`
}

func (s *server) updateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if !decode(w, r, &req) {
		return
	}

	proj, err := s.engine.UpdateAccount(r.Context(), r.PathValue("id"), loginregister.AccountPatch{
		Handle:    req.Username,
		Address:   req.Email,
		Role:      req.Role,
		Verified:  req.Verified,
		AvatarRef: req.Avatar,
		Password:  req.Password,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{Message: "User updated successfully", User: proj})
}

func (s *server) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteAccount(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "User deleted successfully")
}
