// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

// Package httpapi exposes the account service over JSON/HTTP.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gobwas/glob"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/portfolioapp/authcore/internal/auth"
	"github.com/portfolioapp/authcore/internal/observability"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// AccountService is the subset of auth.Service the API calls.
type AccountService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.Account, error)
	Login(ctx context.Context, email, password string, extended bool) (*auth.LoginResult, error)
	VerifyEmail(ctx context.Context, token string) (auth.VerifyResult, error)
	InitiatePasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	ResendVerification(ctx context.Context, email string) error
	RegisterOrLinkOAuthAccount(ctx context.Context, email, fullName string) (*auth.Account, error)
	GetAccount(ctx context.Context, id ulid.ULID) (*auth.Account, error)
	ListAccounts(ctx context.Context) ([]*auth.Account, error)
	ListAccountsByRole(ctx context.Context, role auth.Role) ([]*auth.Account, error)
	CountAccounts(ctx context.Context) (int64, error)
	UpdateAccount(ctx context.Context, id ulid.ULID, req auth.UpdateAccountRequest) (*auth.Account, error)
	DeleteAccount(ctx context.Context, id ulid.ULID) error
}

var _ AccountService = (*auth.Service)(nil)

// Config controls API behavior that operators may tune.
type Config struct {
	// AllowedOrigins are glob patterns matched against the CORS Origin header.
	AllowedOrigins []string

	// MaskResetEnumeration answers forgot-password identically whether or
	// not the email is registered.
	MaskResetEnumeration bool

	// TrustProxyHeaders keys rate limiting on X-Forwarded-For instead of
	// the peer address.
	TrustProxyHeaders bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics records per-route request metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithRateLimiter throttles the unauthenticated credential endpoints.
// The caller owns the limiter and closes it after Stop.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(s *Server) { s.limiter = rl }
}

// WithClock overrides the time source used in responses.
func WithClock(c auth.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// Server serves the account API.
type Server struct {
	svc     AccountService
	issuer  auth.TokenIssuer
	cfg     Config
	origins []glob.Glob
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   auth.Clock
	limiter *RateLimiter
	handler http.Handler

	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// New creates a Server. Origin patterns are compiled up front.
func New(svc AccountService, issuer auth.TokenIssuer, cfg Config, opts ...Option) (*Server, error) {
	if svc == nil {
		return nil, oops.Errorf("account service is required")
	}
	if issuer == nil {
		return nil, oops.Errorf("token issuer is required")
	}

	s := &Server{
		svc:    svc,
		issuer: issuer,
		cfg:    cfg,
		logger: slog.Default(),
		clock:  auth.SystemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	if s.clock == nil {
		return nil, oops.Errorf("clock is required")
	}

	for _, pattern := range cfg.AllowedOrigins {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, oops.Code("HTTPAPI_INVALID_ORIGIN").With("pattern", pattern).Wrap(err)
		}
		s.origins = append(s.origins, g)
	}

	s.handler = s.recoverer(s.observe(s.cors(s.routes())))
	return s, nil
}

// Handler returns the fully wrapped API handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/register", s.throttle(s.handleRegister))
	mux.HandleFunc("POST /api/auth/login", s.throttle(s.handleLogin))
	mux.HandleFunc("GET /api/auth/verify", s.throttle(s.handleVerify))
	mux.HandleFunc("POST /api/auth/forgot-password", s.throttle(s.handleForgotPassword))
	mux.HandleFunc("POST /api/auth/reset-password", s.throttle(s.handleResetPassword))
	mux.HandleFunc("POST /api/auth/resend-verification", s.throttle(s.handleResendVerification))
	mux.HandleFunc("GET /api/auth/health", s.handleHealth)

	mux.HandleFunc("POST /api/oauth/link", s.requireAdmin(s.handleOAuthLink))

	mux.HandleFunc("GET /api/users", s.requireAdmin(s.handleListUsers))
	mux.HandleFunc("GET /api/users/count", s.requireAdmin(s.handleCountUsers))
	mux.HandleFunc("POST /api/users", s.requireAdmin(s.handleCreateUser))
	mux.HandleFunc("GET /api/users/{id}", s.requireAdmin(s.handleGetUser))
	mux.HandleFunc("PUT /api/users/{id}", s.requireAdmin(s.handleUpdateUser))
	mux.HandleFunc("DELETE /api/users/{id}", s.requireAdmin(s.handleDeleteUser))

	return mux
}

// Start listens on addr and serves in the background.
// The returned channel receives a serve failure and is closed on shutdown.
func (s *Server) Start(addr string) (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("HTTPAPI_LISTEN_FAILED").With("addr", addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop drains in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_api_server").Wrap(err)
		}
	}
	s.logger.Info("api server stopped")
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
