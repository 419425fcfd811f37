// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ContactDir Contributors

package web

import (
	"net/http"
	"strings"

	"github.com/contactdir/contactdir/internal/auth"
)

type registerRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type resetPasswordRequest struct {
	Username        string `json:"username"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

func (s *Server) recordAuth(operation, result string) {
	if s.metrics != nil {
		s.metrics.AuthAttempts.WithLabelValues(operation, result).Inc()
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Username) == "" {
		s.writeError(w, http.StatusBadRequest, "AUTH_INVALID_USERNAME", "username is required")
		return
	}
	if err := auth.ValidatePasswordConfirmation(req.Password, req.ConfirmPassword); err != nil {
		s.writeError(w, http.StatusBadRequest, "AUTH_PASSWORD_MISMATCH", "passwords do not match")
		return
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		s.writeError(w, http.StatusBadRequest, "AUTH_WEAK_PASSWORD", err.Error())
		return
	}

	created, err := s.auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		s.recordAuth("register", "error")
		s.serverError(w, "registration failed", err)
		return
	}
	if !created {
		s.recordAuth("register", "duplicate")
		s.writeError(w, http.StatusConflict, "USER_DUPLICATE", "username is already taken")
		return
	}

	s.recordAuth("register", "success")
	writeJSON(w, http.StatusCreated, map[string]string{"username": req.Username})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token, principal, err := s.sessions.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.recordAuth("login", "error")
		s.serverError(w, "login failed", err)
		return
	}
	if principal == nil {
		s.recordAuth("login", "failure")
		s.writeError(w, http.StatusUnauthorized, "AUTH_INVALID_CREDENTIALS", "invalid username or password")
		return
	}

	s.recordAuth("login", "success")
	writeJSON(w, http.StatusOK, loginResponse{
		Token: token,
		User:  userResponse{ID: principal.UserID.String(), Username: principal.Username},
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Logout(r.Context(), bearerToken(r)); err != nil {
		s.serverError(w, "logout failed", err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := auth.ValidatePasswordConfirmation(req.NewPassword, req.ConfirmPassword); err != nil {
		s.writeError(w, http.StatusBadRequest, "AUTH_PASSWORD_MISMATCH", "passwords do not match")
		return
	}
	if err := auth.ValidatePassword(req.NewPassword); err != nil {
		s.writeError(w, http.StatusBadRequest, "AUTH_WEAK_PASSWORD", err.Error())
		return
	}

	reset, err := s.auth.ResetPassword(r.Context(), req.Username, req.NewPassword)
	if err != nil {
		s.recordAuth("reset", "error")
		s.serverError(w, "password reset failed", err)
		return
	}
	if !reset {
		s.recordAuth("reset", "unknown_user")
		s.writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "no such user")
		return
	}

	s.recordAuth("reset", "success")
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	principal := currentPrincipal(r)
	writeJSON(w, http.StatusOK, userResponse{
		ID:       principal.UserID.String(),
		Username: principal.Username,
	})
}
