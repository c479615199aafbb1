// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/portfolioapp/authcore/internal/auth"
)

// healthServiceName is reported by the public health endpoint.
const healthServiceName = "Portfolio Backend"

type registerRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerResponse struct {
	Message   string      `json:"message"`
	EmailSent bool        `json:"emailSent"`
	User      accountView `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	acct, err := s.svc.Register(r.Context(), auth.RegisterRequest{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}

	writeJSON(w, http.StatusOK, registerResponse{
		Message:   "User registered successfully. Please check your email to verify your account.",
		EmailSent: true,
		User:      viewOf(acct),
	})
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

type loginResponse struct {
	Message   string      `json:"message"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      accountView `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := s.svc.Login(r.Context(), req.Email, req.Password, req.RememberMe)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Message:   "Login successful",
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		User:      viewOf(res.Account),
	})
}

type verifyResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	result, err := s.svc.VerifyEmail(r.Context(), token)
	if err != nil {
		if auth.IsDomainError(err) {
			writeJSON(w, http.StatusBadRequest, verifyResponse{Error: msgInvalidVerification})
			return
		}
		s.writeError(w, r, err, nil)
		return
	}

	msg := "Email verified successfully. You can now login."
	if result == auth.VerifyResultAlreadyVerified {
		msg = "Email already verified. You can login now."
	}
	writeJSON(w, http.StatusOK, verifyResponse{Success: true, Message: msg})
}

type emailRequest struct {
	Email string `json:"email"`
}

type forgotPasswordResponse struct {
	Message string `json:"message"`
	Email   string `json:"email"`
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: msgEmailRequired})
		return
	}

	err := s.svc.InitiatePasswordReset(r.Context(), req.Email)
	if err != nil && !(s.cfg.MaskResetEnumeration && auth.ErrorCode(err) == auth.CodeAccountNotFound) {
		s.writeError(w, r, err, nil)
		return
	}

	writeJSON(w, http.StatusOK, forgotPasswordResponse{
		Message: "Password reset instructions have been sent to your email",
		Email:   auth.NormalizeEmail(req.Email),
	})
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

var resetMessages = map[string]string{
	auth.CodeInvalidOrExpiredToken: msgInvalidReset,
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Token == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: msgResetTokenRequired})
		return
	}

	if err := s.svc.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		s.writeError(w, r, err, resetMessages)
		return
	}

	writeJSON(w, http.StatusOK, messageBody{
		Message: "Password reset successfully. You can now login with your new password.",
	})
}

func (s *Server) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: msgEmailRequired})
		return
	}

	if err := s.svc.ResendVerification(r.Context(), req.Email); err != nil {
		s.writeError(w, r, err, nil)
		return
	}

	writeJSON(w, http.StatusOK, messageBody{
		Message: "Verification email sent successfully. Please check your inbox.",
	})
}

type healthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "UP",
		Service:   healthServiceName,
		Timestamp: s.clock.Now(),
	})
}

type oauthLinkRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	// Login is the provider username, used when the provider withholds email.
	Login string `json:"login"`
}

type oauthLinkResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	User    accountView `json:"user"`
}

// handleOAuthLink is called by a trusted upstream that has completed the
// provider handshake.
func (s *Server) handleOAuthLink(w http.ResponseWriter, r *http.Request) {
	var req oauthLinkRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	email := strings.TrimSpace(req.Email)
	login := strings.TrimSpace(req.Login)
	if email == "" {
		if login == "" {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: msgOAuthNoEmail})
			return
		}
		email = login + "@github.com"
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = login
	}

	acct, err := s.svc.RegisterOrLinkOAuthAccount(r.Context(), email, name)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}

	writeJSON(w, http.StatusOK, oauthLinkResponse{
		Success: true,
		Message: "OAuth login successful",
		User:    viewOf(acct),
	})
}
