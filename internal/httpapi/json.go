// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/portfolioapp/authcore/internal/auth"
)

// accountView is the public projection of an account. The password hash and
// single-use token digests never leave the service.
type accountView struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Enabled  bool   `json:"enabled"`
}

func viewOf(a *auth.Account) accountView {
	return accountView{
		ID:       a.ID.String(),
		FullName: a.FullName,
		Email:    a.Email,
		Role:     string(a.Role),
		Enabled:  a.Enabled,
	}
}

func viewsOf(accounts []*auth.Account) []accountView {
	out := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, viewOf(a))
	}
	return out
}

type messageBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson // client may have disconnected
	json.NewEncoder(w).Encode(body)
}

// decodeJSON reads a bounded JSON body into dst. On failure it writes a 400
// and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: msgInvalidBody})
		return false
	}
	return true
}
