// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

//go:build integration

package accounts_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/portfolioapp/authcore/internal/auth"
)

// call sends a JSON request and decodes the JSON response.
func call(method, path, token string, body any) (int, map[string]any) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, env.api.URL+path, reader)
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := env.api.Client().Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer func() { _ = resp.Body.Close() }()

	var decoded map[string]any
	Expect(json.NewDecoder(resp.Body).Decode(&decoded)).To(Succeed())
	return resp.StatusCode, decoded
}

func register(email, password string) {
	status, body := call(http.MethodPost, "/api/auth/register", "", map[string]any{
		"fullName": "Integration User",
		"email":    email,
		"password": password,
	})
	Expect(status).To(Equal(http.StatusOK), "register: %v", body)
}

func verify(email string) {
	token := env.mail.verificationToken(email)
	Expect(token).NotTo(BeEmpty())
	status, body := call(http.MethodGet, "/api/auth/verify?token="+url.QueryEscape(token), "", nil)
	Expect(status).To(Equal(http.StatusOK), "verify: %v", body)
}

func login(email, password string) (int, map[string]any) {
	return call(http.MethodPost, "/api/auth/login", "", map[string]any{
		"email":    email,
		"password": password,
	})
}

var _ = Describe("Account lifecycle", func() {
	BeforeEach(func() {
		cleanupDatabase(env.ctx, env.pool)
	})

	It("registers, verifies and logs in", func() {
		register("Ann@Example.com", "secret1")

		status, body := login("ann@example.com", "secret1")
		Expect(status).To(Equal(http.StatusForbidden))
		Expect(body["error"]).To(ContainSubstring("verify your email"))

		verify("ann@example.com")

		status, body = login("ann@example.com", "secret1")
		Expect(status).To(Equal(http.StatusOK))
		Expect(body["token"]).NotTo(BeEmpty())

		claims, err := env.issuer.Verify(body["token"].(string))
		Expect(err).NotTo(HaveOccurred())
		Expect(claims.Email).To(Equal("ann@example.com"))
		Expect(claims.Role).To(Equal(auth.RoleUser))
	})

	It("rejects a duplicate email regardless of case", func() {
		register("bob@example.com", "secret1")

		status, body := call(http.MethodPost, "/api/auth/register", "", map[string]any{
			"fullName": "Bob Again",
			"email":    "BOB@example.com",
			"password": "secret2",
		})
		Expect(status).To(Equal(http.StatusConflict))
		Expect(body["error"]).To(Equal("User with this email already exists"))
	})

	It("consumes the verification token once", func() {
		register("cara@example.com", "secret1")
		token := env.mail.verificationToken("cara@example.com")
		verify("cara@example.com")

		status, body := call(http.MethodGet, "/api/auth/verify?token="+url.QueryEscape(token), "", nil)
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body["success"]).To(BeFalse())

		var stored *string
		err := env.pool.QueryRow(env.ctx,
			"SELECT verification_token_hash FROM accounts WHERE email = $1", "cara@example.com",
		).Scan(&stored)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored).To(BeNil())
	})

	It("resets a password with a single-use token", func() {
		register("dan@example.com", "secret1")
		verify("dan@example.com")

		status, _ := call(http.MethodPost, "/api/auth/forgot-password", "", map[string]any{"email": "dan@example.com"})
		Expect(status).To(Equal(http.StatusOK))
		token := env.mail.resetToken("dan@example.com")
		Expect(token).NotTo(BeEmpty())

		status, _ = call(http.MethodPost, "/api/auth/reset-password", "", map[string]any{
			"token":       token,
			"newPassword": "better-secret",
		})
		Expect(status).To(Equal(http.StatusOK))

		status, _ = login("dan@example.com", "secret1")
		Expect(status).To(Equal(http.StatusUnauthorized))
		status, _ = login("dan@example.com", "better-secret")
		Expect(status).To(Equal(http.StatusOK))

		status, body := call(http.MethodPost, "/api/auth/reset-password", "", map[string]any{
			"token":       token,
			"newPassword": "another-secret",
		})
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body["error"]).To(Equal("Invalid or expired reset token"))
	})
})

var _ = Describe("Account administration", func() {
	var adminToken string

	BeforeEach(func() {
		cleanupDatabase(env.ctx, env.pool)

		_, err := env.svc.Register(env.ctx, auth.RegisterRequest{
			Email:    "root@example.com",
			Password: "admin-secret",
			FullName: "Root",
			Role:     auth.RoleAdmin,
		})
		Expect(err).NotTo(HaveOccurred())
		issued, err := env.issuer.Issue("root@example.com", auth.RoleAdmin, false)
		Expect(err).NotTo(HaveOccurred())
		adminToken = issued.Token
	})

	It("creates, updates, counts and deletes accounts", func() {
		status, body := call(http.MethodPost, "/api/users", adminToken, map[string]any{
			"fullName": "Eve",
			"email":    "eve@example.com",
			"password": "secret1",
		})
		Expect(status).To(Equal(http.StatusCreated), "create: %v", body)
		id := body["id"].(string)

		status, body = call(http.MethodPut, "/api/users/"+id, adminToken, map[string]any{"role": "ADMIN"})
		Expect(status).To(Equal(http.StatusOK), "update: %v", body)
		Expect(body["role"]).To(Equal("ADMIN"))

		status, body = call(http.MethodGet, "/api/users/count", adminToken, nil)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body["count"]).To(BeNumerically("==", 2))

		status, _ = call(http.MethodDelete, "/api/users/"+id, adminToken, nil)
		Expect(status).To(Equal(http.StatusOK))

		status, _ = call(http.MethodGet, "/api/users/"+id, adminToken, nil)
		Expect(status).To(Equal(http.StatusNotFound))
	})

	It("links an OAuth identity to an existing account", func() {
		register("frank@example.com", "secret1")

		status, body := call(http.MethodPost, "/api/oauth/link", adminToken, map[string]any{
			"email": "frank@example.com",
			"name":  "Frank",
		})
		Expect(status).To(Equal(http.StatusOK), "link: %v", body)
		user := body["user"].(map[string]any)
		Expect(user["fullName"]).To(Equal("Integration User"))

		users, err := env.svc.ListAccountsByRole(env.ctx, auth.RoleUser)
		Expect(err).NotTo(HaveOccurred())
		Expect(users).To(HaveLen(1))
		Expect(users[0].ID.String()).To(Equal(user["id"]))
	})

	It("creates an enabled account for a new OAuth identity", func() {
		status, body := call(http.MethodPost, "/api/oauth/link", adminToken, map[string]any{
			"login": "gina",
		})
		Expect(status).To(Equal(http.StatusOK), "link: %v", body)
		user := body["user"].(map[string]any)
		Expect(user["email"]).To(Equal("gina@github.com"))
		Expect(user["fullName"]).To(Equal("gina"))
		Expect(user["enabled"]).To(BeTrue())
	})

	It("refuses non-admin sessions", func() {
		issued, err := env.issuer.Issue("someone@example.com", auth.RoleUser, false)
		Expect(err).NotTo(HaveOccurred())

		status, _ := call(http.MethodGet, "/api/users", issued.Token, nil)
		Expect(status).To(Equal(http.StatusForbidden))
	})
})
