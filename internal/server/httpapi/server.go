// Package httpapi exposes the auth core over HTTP with gin. The refresh
// token travels in an HttpOnly cookie; access tokens in the Authorization
// header.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/eventcheckin/internal/common"
	"github.com/dmitrijs2005/eventcheckin/internal/logging"
	"github.com/dmitrijs2005/eventcheckin/internal/server/auth"
	"github.com/dmitrijs2005/eventcheckin/internal/server/models"
	"github.com/dmitrijs2005/eventcheckin/internal/server/services"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 5 * time.Second

// AuthService is what the HTTP layer needs from services.AuthService.
type AuthService interface {
	Signup(ctx context.Context, in services.SignupInput) (*auth.TokenPair, error)
	Signin(ctx context.Context, in services.SigninInput) (*auth.TokenPair, error)
	RefreshTokens(ctx context.Context, userID string, tokenVersion int64, presented string) (*services.RefreshResult, error)
	Logout(ctx context.Context, userID string) error
	Me(ctx context.Context, userID string) (*models.Profile, error)
	Authenticate(ctx context.Context, accessToken string) (*auth.Claims, error)
	VerifyRefreshToken(token string) (*auth.Claims, error)
	CreateUser(ctx context.Context, in services.SignupInput) (*models.Profile, error)
	RequireRole(ctx context.Context, userID string, roles ...string) error
}

// CookieConfig controls the attributes of the refresh-token cookie.
type CookieConfig struct {
	// Secure also switches SameSite from Lax to None.
	Secure bool
	// Domain is left empty outside production.
	Domain string
	MaxAge time.Duration
}

type Server struct {
	address string
	svc     AuthService
	cookie  CookieConfig
	logger  logging.Logger
}

func NewServer(address string, svc AuthService, cookie CookieConfig, l logging.Logger) *Server {
	return &Server{
		address: address,
		svc:     svc,
		cookie:  cookie,
		logger:  l.With("module", "http_server"),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", s.health)

	g := r.Group("/auth")
	g.POST("/signup", s.signup)
	g.POST("/signin", s.signin)
	g.POST("/refresh", s.refresh)

	protected := g.Group("")
	protected.Use(s.requireAccessToken())
	protected.POST("/logout", s.logout)
	protected.GET("/me", s.me)

	admin := r.Group("/users")
	admin.Use(s.requireAccessToken(), s.requireRole(common.RoleAdmin))
	admin.POST("", s.createUser)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

func (s *Server) Serve(ctx context.Context, listen net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			s.logger.Error(sctx, "HTTP shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
