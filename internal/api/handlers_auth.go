package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Veraticus/finscale/internal/auth"
	"github.com/Veraticus/finscale/internal/common"
	"github.com/Veraticus/finscale/internal/model"
)

const msgBadCredentials = "Incorrect email or password"

// register handles POST /api/auth/register.
func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, r, err, "")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		WriteError(w, http.StatusBadRequest, "Name, email and password are required")
		return
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		writeFailure(w, r, err, "")
		return
	}

	ctx := r.Context()
	if _, err := s.deps.Store.FindUserByEmail(ctx, req.Email); err == nil {
		WriteError(w, http.StatusConflict, "This email is already registered")
		return
	} else if !errors.Is(err, common.ErrNotFound) {
		writeFailure(w, r, err, "Failed to register user")
		return
	}

	hash, err := s.deps.Passwords.Hash(req.Password)
	if err != nil {
		writeFailure(w, r, err, "Failed to register user")
		return
	}

	user := &model.User{Name: req.Name, Email: req.Email, PasswordHash: hash}
	if err := s.deps.Store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, common.ErrDuplicateEntry) {
			WriteError(w, http.StatusConflict, "This email is already registered")
			return
		}
		writeFailure(w, r, err, "Failed to register user")
		return
	}

	s.writeSession(w, r, http.StatusCreated, user)
}

// login handles POST /api/auth/login.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, r, err, "")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		WriteError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := s.deps.Store.FindUserByEmail(r.Context(), req.Email)
	if errors.Is(err, common.ErrNotFound) {
		WriteError(w, http.StatusUnauthorized, msgBadCredentials)
		return
	}
	if err != nil {
		writeFailure(w, r, err, "Failed to log in")
		return
	}

	if !s.deps.Passwords.Compare(user.PasswordHash, req.Password) {
		WriteError(w, http.StatusUnauthorized, msgBadCredentials)
		return
	}

	s.writeSession(w, r, http.StatusOK, user)
}

// logout handles POST /api/auth/logout. Tokens are stateless, so clients
// simply discard theirs.
func (s *Server) logout(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, messageResponse{Message: "Logged out"})
}

func (s *Server) writeSession(w http.ResponseWriter, r *http.Request, status int, user *model.User) {
	token, err := s.deps.Tokens.Issue(user)
	if err != nil {
		writeFailure(w, r, err, "Failed to issue token")
		return
	}
	WriteJSON(w, status, authResponse{Token: token, User: toUserDTO(user)})
}
