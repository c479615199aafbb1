// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package httpapi

import (
	"net/http"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/portfolioapp/authcore/internal/auth"
)

type createUserRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type updateUserRequest struct {
	FullName *string `json:"fullName"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
}

type countResponse struct {
	Count int64 `json:"count"`
}

// pathID parses the {id} path value. On failure it writes a 400.
func pathID(w http.ResponseWriter, r *http.Request) (ulid.ULID, bool) {
	id, err := ulid.ParseStrict(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: msgInvalidID})
		return ulid.ULID{}, false
	}
	return id, true
}

func (s *Server) auditAdmin(r *http.Request, action string, id ulid.ULID) {
	actor := ""
	if claims, ok := ClaimsFromContext(r.Context()); ok {
		actor = claims.Email
	}
	s.logger.InfoContext(r.Context(), "admin action",
		"action", action,
		"actor", actor,
		"account_id", id.String(),
	)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	var (
		accounts []*auth.Account
		err      error
	)
	if name := r.URL.Query().Get("role"); name != "" {
		role, parseErr := auth.ParseRole(name)
		if parseErr != nil {
			s.writeError(w, r, parseErr, nil)
			return
		}
		accounts, err = s.svc.ListAccountsByRole(r.Context(), role)
	} else {
		accounts, err = s.svc.ListAccounts(r.Context())
	}
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, viewsOf(accounts))
}

func (s *Server) handleCountUsers(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.CountAccounts(r.Context())
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: n})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	acct, err := s.svc.GetAccount(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(acct))
}

// handleCreateUser registers an account with an explicit role. The account
// still has to verify its email like any other registration.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}

	acct, err := s.svc.Register(r.Context(), auth.RegisterRequest{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Role:     role,
	})
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	s.auditAdmin(r, "create", acct.ID)
	writeJSON(w, http.StatusCreated, viewOf(acct))
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	update := auth.UpdateAccountRequest{
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
	}
	if req.Role != nil && strings.TrimSpace(*req.Role) != "" {
		role, err := auth.ParseRole(*req.Role)
		if err != nil {
			s.writeError(w, r, err, nil)
			return
		}
		update.Role = &role
	}

	acct, err := s.svc.UpdateAccount(r.Context(), id, update)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	s.auditAdmin(r, "update", id)
	writeJSON(w, http.StatusOK, viewOf(acct))
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.svc.DeleteAccount(r.Context(), id); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	s.auditAdmin(r, "delete", id)
	writeJSON(w, http.StatusOK, messageBody{Message: "User deleted successfully"})
}
