// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portfolioapp/authcore/internal/auth"
	"github.com/portfolioapp/authcore/internal/auth/memory"
	"github.com/portfolioapp/authcore/internal/httpapi"
	"github.com/portfolioapp/authcore/internal/observability"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

var testNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", auth.ErrEmptyPassword
	}
	return "plain:" + password, nil
}

func (plainHasher) Verify(password, hash string) bool { return hash == "plain:"+password }

func (plainHasher) NeedsUpgrade(string) bool { return false }

type tokenSink struct {
	mu           sync.Mutex
	verification map[string]string
	reset        map[string]string
}

func (n *tokenSink) NotifyVerification(_ context.Context, email, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.verification[email] = token
	return nil
}

func (n *tokenSink) NotifyPasswordReset(_ context.Context, email, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reset[email] = token
	return nil
}

func (n *tokenSink) NotifyWelcome(context.Context, string, string) error { return nil }

func (n *tokenSink) verificationToken(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.verification[email]
}

func (n *tokenSink) resetToken(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.reset[email]
}

type fixture struct {
	handler http.Handler
	svc     *auth.Service
	issuer  *auth.JWTIssuer
	sink    *tokenSink
	logs    *bytes.Buffer
}

func newFixture(t *testing.T, cfg httpapi.Config, opts ...httpapi.Option) *fixture {
	t.Helper()
	clock := auth.ClockFunc(func() time.Time { return testNow })
	issuer, err := auth.NewJWTIssuer(auth.JWTIssuerConfig{
		Secret:      testSecret,
		TTL:         time.Hour,
		ExtendedTTL: 24 * time.Hour,
		Clock:       clock,
	})
	require.NoError(t, err)

	sink := &tokenSink{verification: map[string]string{}, reset: map[string]string{}}
	svc, err := auth.NewService(memory.NewAccountRepository(), plainHasher{}, issuer,
		auth.WithNotifier(sink),
		auth.WithClock(clock),
	)
	require.NoError(t, err)

	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	opts = append([]httpapi.Option{httpapi.WithLogger(logger), httpapi.WithClock(clock)}, opts...)
	srv, err := httpapi.New(svc, issuer, cfg, opts...)
	require.NoError(t, err)

	return &fixture{handler: srv.Handler(), svc: svc, issuer: issuer, sink: sink, logs: logs}
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers ...string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") && rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec, out
}

func (f *fixture) bearer(t *testing.T, email string, role auth.Role) []string {
	t.Helper()
	issued, err := f.issuer.Issue(email, role, false)
	require.NoError(t, err)
	return []string{"Authorization", "Bearer " + issued.Token}
}

// activeAccount registers and verifies an account through the service.
func (f *fixture) activeAccount(t *testing.T, email, password string, role auth.Role) *auth.Account {
	t.Helper()
	ctx := context.Background()
	acct, err := f.svc.Register(ctx, auth.RegisterRequest{Email: email, Password: password, FullName: "Test", Role: role})
	require.NoError(t, err)
	_, err = f.svc.VerifyEmail(ctx, f.sink.verificationToken(email))
	require.NoError(t, err)
	return acct
}

func TestNew_Validation(t *testing.T) {
	f := newFixture(t, httpapi.Config{})

	_, err := httpapi.New(nil, f.issuer, httpapi.Config{})
	require.Error(t, err)

	_, err = httpapi.New(f.svc, nil, httpapi.Config{})
	require.Error(t, err)

	_, err = httpapi.New(f.svc, f.issuer, httpapi.Config{}, httpapi.WithLogger(nil))
	require.Error(t, err)

	_, err = httpapi.New(f.svc, f.issuer, httpapi.Config{AllowedOrigins: []string{"[unclosed"}})
	require.Error(t, err)
}

func TestRegisterVerifyLogin(t *testing.T) {
	f := newFixture(t, httpapi.Config{})

	rec, body := f.do(t, http.MethodPost, "/api/auth/register", map[string]any{
		"fullName": "Ann", "email": "Ann@Example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["emailSent"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "ann@example.com", user["email"])
	assert.Equal(t, "USER", user["role"])
	assert.Equal(t, false, user["enabled"])
	assert.NotContains(t, rec.Body.String(), "plain:secret1")
	assert.NotContains(t, rec.Body.String(), "password")

	rec, body = f.do(t, http.MethodPost, "/api/auth/login", map[string]any{
		"email": "ann@example.com", "password": "secret1",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, body["error"], "verify your email")

	token := f.sink.verificationToken("ann@example.com")
	require.NotEmpty(t, token)
	rec, body = f.do(t, http.MethodGet, "/api/auth/verify?token="+token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Email verified successfully. You can now login.", body["message"])

	rec, body = f.do(t, http.MethodPost, "/api/auth/login", map[string]any{
		"email": "ann@example.com", "password": "secret1", "rememberMe": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Login successful", body["message"])
	claims, err := f.issuer.Verify(body["token"].(string))
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", claims.Email)
	assert.Equal(t, testNow.Add(24*time.Hour), claims.ExpiresAt)
}

func TestRegister_Errors(t *testing.T) {
	f := newFixture(t, httpapi.Config{})
	f.activeAccount(t, "taken@example.com", "secret1", auth.RoleUser)

	tests := []struct {
		name    string
		body    any
		status  int
		message string
	}{
		{"duplicate", map[string]any{"email": "TAKEN@example.com", "password": "secret1"}, http.StatusConflict, "User with this email already exists"},
		{"weak password", map[string]any{"email": "new@example.com", "password": "12345"}, http.StatusBadRequest, "Password must be at least 6 characters long"},
		{"bad email", map[string]any{"email": "nope", "password": "secret1"}, http.StatusBadRequest, "Invalid input"},
		{"malformed body", "not an object", http.StatusBadRequest, "Invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := f.do(t, http.MethodPost, "/api/auth/register", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, body["error"])
		})
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	f := newFixture(t, httpapi.Config{})
	f.activeAccount(t, "bob@example.com", "secret1", auth.RoleUser)

	for _, email := range []string{"bob@example.com", "ghost@example.com"} {
		rec, body := f.do(t, http.MethodPost, "/api/auth/login", map[string]any{"email": email, "password": "wrong-pass"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid email or password", body["error"])
	}
}

func TestVerify_InvalidToken(t *testing.T) {
	f := newFixture(t, httpapi.Config{})

	for _, path := range []string{"/api/auth/verify?token=bogus", "/api/auth/verify"} {
		rec, body := f.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "Invalid or expired verification token", body["error"])
	}
}

func TestForgotPassword(t *testing.T) {
	t.Run("unknown email is reported", func(t *testing.T) {
		f := newFixture(t, httpapi.Config{})
		rec, body := f.do(t, http.MethodPost, "/api/auth/forgot-password", map[string]any{"email": "ghost@example.com"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "User not found", body["error"])
	})

	t.Run("unknown email is masked", func(t *testing.T) {
		f := newFixture(t, httpapi.Config{MaskResetEnumeration: true})
		rec, body := f.do(t, http.MethodPost, "/api/auth/forgot-password", map[string]any{"email": "ghost@example.com"})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Password reset instructions have been sent to your email", body["message"])
	})

	t.Run("email is required", func(t *testing.T) {
		f := newFixture(t, httpapi.Config{})
		rec, body := f.do(t, http.MethodPost, "/api/auth/forgot-password", map[string]any{"email": "  "})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Email is required", body["error"])
	})
}

func TestResetPassword(t *testing.T) {
	f := newFixture(t, httpapi.Config{})
	f.activeAccount(t, "cat@example.com", "secret1", auth.RoleUser)

	rec, body := f.do(t, http.MethodPost, "/api/auth/forgot-password", map[string]any{"email": "Cat@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cat@example.com", body["email"])
	token := f.sink.resetToken("cat@example.com")
	require.NotEmpty(t, token)

	rec, body = f.do(t, http.MethodPost, "/api/auth/reset-password", map[string]any{"newPassword": "newpass1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Reset token is required", body["error"])

	rec, body = f.do(t, http.MethodPost, "/api/auth/reset-password", map[string]any{"token": token, "newPassword": "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Password must be at least 6 characters long", body["error"])

	rec, body = f.do(t, http.MethodPost, "/api/auth/reset-password", map[string]any{"token": "bogus", "newPassword": "newpass1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid or expired reset token", body["error"])

	rec, _ = f.do(t, http.MethodPost, "/api/auth/reset-password", map[string]any{"token": token, "newPassword": "newpass1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/api/auth/login", map[string]any{"email": "cat@example.com", "password": "newpass1"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body = f.do(t, http.MethodPost, "/api/auth/reset-password", map[string]any{"token": token, "newPassword": "another1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid or expired reset token", body["error"])
}

func TestResendVerification(t *testing.T) {
	f := newFixture(t, httpapi.Config{})
	_, err := f.svc.Register(context.Background(), auth.RegisterRequest{Email: "dan@example.com", Password: "secret1"})
	require.NoError(t, err)
	first := f.sink.verificationToken("dan@example.com")

	rec, body := f.do(t, http.MethodPost, "/api/auth/resend-verification", map[string]any{"email": "dan@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Verification email sent successfully. Please check your inbox.", body["message"])
	assert.NotEqual(t, first, f.sink.verificationToken("dan@example.com"))

	rec, body = f.do(t, http.MethodGet, "/api/auth/verify?token="+first, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])

	f.activeAccount(t, "eve@example.com", "secret1", auth.RoleUser)
	rec, body = f.do(t, http.MethodPost, "/api/auth/resend-verification", map[string]any{"email": "eve@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email is already verified", body["error"])
}

func TestHealth(t *testing.T) {
	f := newFixture(t, httpapi.Config{})
	rec, body := f.do(t, http.MethodGet, "/api/auth/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "UP", body["status"])
	assert.Equal(t, "Portfolio Backend", body["service"])
	assert.Equal(t, testNow.Format(time.RFC3339), body["timestamp"])
}

func TestAdminRoutes_RequireAdminBearer(t *testing.T) {
	f := newFixture(t, httpapi.Config{})

	rec, body := f.do(t, http.MethodGet, "/api/users", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Authentication required", body["error"])

	rec, body = f.do(t, http.MethodGet, "/api/users", nil, "Authorization", "Bearer not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid or expired session token", body["error"])

	rec, body = f.do(t, http.MethodGet, "/api/users", nil, f.bearer(t, "u@example.com", auth.RoleUser)...)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Admin access required", body["error"])

	rec, _ = f.do(t, http.MethodPost, "/api/oauth/link", map[string]any{"email": "x@example.com"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminCRUD(t *testing.T) {
	f := newFixture(t, httpapi.Config{})
	admin := f.bearer(t, "root@example.com", auth.RoleAdmin)
	existing := f.activeAccount(t, "user@example.com", "secret1", auth.RoleUser)

	rec, body := f.do(t, http.MethodPost, "/api/users", map[string]any{
		"fullName": "Boss", "email": "boss@example.com", "password": "secret1", "role": "admin",
	}, admin...)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "ADMIN", body["role"])
	createdID := body["id"].(string)

	rec, body = f.do(t, http.MethodGet, "/api/users/count", nil, admin...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 2, body["count"], 0)

	rec, _ = f.do(t, http.MethodGet, "/api/users?role=ADMIN", nil, admin...)
	require.Equal(t, http.StatusOK, rec.Code)
	var admins []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &admins))
	require.Len(t, admins, 1)
	assert.Equal(t, createdID, admins[0]["id"])

	rec, body = f.do(t, http.MethodGet, "/api/users?role=root", nil, admin...)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid input", body["error"])

	rec, body = f.do(t, http.MethodGet, "/api/users/"+existing.ID.String(), nil, admin...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user@example.com", body["email"])
	assert.Equal(t, true, body["enabled"])

	rec, body = f.do(t, http.MethodGet, "/api/users/not-an-id", nil, admin...)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid user id", body["error"])

	rec, body = f.do(t, http.MethodPut, "/api/users/"+existing.ID.String(), map[string]any{
		"fullName": "Renamed", "role": "ADMIN",
	}, admin...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Renamed", body["fullName"])
	assert.Equal(t, "ADMIN", body["role"])

	// Edit forms send blank password and role fields.
	rec, body = f.do(t, http.MethodPut, "/api/users/"+existing.ID.String(), map[string]any{
		"fullName": "Renamed Again", "password": "", "role": "",
	}, admin...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Renamed Again", body["fullName"])
	assert.Equal(t, "ADMIN", body["role"])
	_, err := f.svc.Login(context.Background(), "user@example.com", "secret1", false)
	require.NoError(t, err, "blank password leaves the old one working")

	rec, body = f.do(t, http.MethodPut, "/api/users/"+existing.ID.String(), map[string]any{
		"email": "boss@example.com",
	}, admin...)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "User with this email already exists", body["error"])

	rec, body = f.do(t, http.MethodDelete, "/api/users/"+existing.ID.String(), nil, admin...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "User deleted successfully", body["message"])
	assert.Contains(t, f.logs.String(), `"actor":"root@example.com"`)

	rec, body = f.do(t, http.MethodDelete, "/api/users/"+existing.ID.String(), nil, admin...)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found", body["error"])

	rec, _ = f.do(t, http.MethodGet, "/api/users/"+existing.ID.String(), nil, admin...)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOAuthLink(t *testing.T) {
	f := newFixture(t, httpapi.Config{})
	admin := f.bearer(t, "gateway@example.com", auth.RoleAdmin)

	rec, body := f.do(t, http.MethodPost, "/api/oauth/link", map[string]any{"login": "octo"}, admin...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "octo@github.com", user["email"])
	assert.Equal(t, "octo", user["fullName"])
	assert.Equal(t, true, user["enabled"])
	firstID := user["id"]

	rec, body = f.do(t, http.MethodPost, "/api/oauth/link", map[string]any{"email": "OCTO@github.com", "name": "Other"}, admin...)
	require.Equal(t, http.StatusOK, rec.Code)
	user = body["user"].(map[string]any)
	assert.Equal(t, firstID, user["id"])
	assert.Equal(t, "octo", user["fullName"])

	rec, body = f.do(t, http.MethodPost, "/api/oauth/link", map[string]any{"name": "Nobody"}, admin...)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email not provided by OAuth provider", body["error"])
}

func TestCORS(t *testing.T) {
	f := newFixture(t, httpapi.Config{AllowedOrigins: []string{"http://localhost:*", "https://*.example.com"}})

	rec, _ := f.do(t, http.MethodOptions, "/api/auth/login", nil,
		"Origin", "http://localhost:5173",
		"Access-Control-Request-Method", "POST",
	)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")

	rec, _ = f.do(t, http.MethodOptions, "/api/auth/login", nil,
		"Origin", "https://evil.test",
		"Access-Control-Request-Method", "POST",
	)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec, _ = f.do(t, http.MethodGet, "/api/auth/health", nil, "Origin", "https://app.example.com")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	rec, _ = f.do(t, http.MethodGet, "/api/auth/health", nil)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsUseRoutePattern(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	f := newFixture(t, httpapi.Config{}, httpapi.WithMetrics(metrics))
	admin := f.bearer(t, "root@example.com", auth.RoleAdmin)

	f.do(t, http.MethodGet, "/api/auth/health", nil)
	f.do(t, http.MethodGet, "/api/users/01ARZ3NDEKTSV4RRFFQ69G5FAV", nil, admin...)
	f.do(t, http.MethodGet, "/nowhere", nil)

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("GET /api/auth/health", "200")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("GET /api/users/{id}", "404")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("unmatched", "404")), 0)
}

// failingService fails or panics on CountAccounts; other methods are unused.
type failingService struct {
	httpapi.AccountService
	panics bool
}

func (s failingService) CountAccounts(context.Context) (int64, error) {
	if s.panics {
		panic("boom")
	}
	return 0, errors.New("connection refused")
}

func TestInternalErrorsAreHidden(t *testing.T) {
	for _, panics := range []bool{false, true} {
		f := newFixture(t, httpapi.Config{})
		logs := &bytes.Buffer{}
		logger := slog.New(slog.NewJSONHandler(logs, nil))
		srv, err := httpapi.New(failingService{panics: panics}, f.issuer, httpapi.Config{}, httpapi.WithLogger(logger))
		require.NoError(t, err)
		f.handler = srv.Handler()

		rec, body := f.do(t, http.MethodGet, "/api/users/count", nil, f.bearer(t, "root@example.com", auth.RoleAdmin)...)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Internal server error", body["error"])
		assert.NotContains(t, rec.Body.String(), "connection refused")
		assert.NotContains(t, rec.Body.String(), "boom")
		assert.Contains(t, logs.String(), `"level":"ERROR"`)
	}
}

func TestServer_StartStop(t *testing.T) {
	f := newFixture(t, httpapi.Config{})
	srv, err := httpapi.New(f.svc, f.issuer, httpapi.Config{}, httpapi.WithLogger(slog.New(slog.DiscardHandler)))
	require.NoError(t, err)

	errCh, err := srv.Start("127.0.0.1:0")
	require.NoError(t, err)
	_, err = srv.Start("127.0.0.1:0")
	require.Error(t, err)

	resp, err := http.Get("http://" + srv.Addr() + "/api/auth/health")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
	_, open := <-errCh
	assert.False(t, open)
	require.NoError(t, srv.Stop(ctx))
}
