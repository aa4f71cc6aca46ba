// Package server собирает HTTP сервер accountd: маршруты, middleware
// цепочку и graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/accountd/internal/config"
	"github.com/iudanet/accountd/internal/server/auth"
	"github.com/iudanet/accountd/internal/server/handlers"
	"github.com/iudanet/accountd/internal/server/media"
	"github.com/iudanet/accountd/internal/server/middleware"
	"github.com/iudanet/accountd/internal/server/storage"
	"github.com/iudanet/accountd/internal/server/token"
)

// shutdownTimeout время на завершение in-flight запросов
const shutdownTimeout = 10 * time.Second

// Server инкапсулирует http.Server с собранным route table
type Server struct {
	logger *slog.Logger
	http   *http.Server
}

// New собирает сервер из конфигурации и коллабораторов
func New(cfg *config.Config, logger *slog.Logger, users storage.UserStorage, uploader media.Uploader, version string) *Server {
	tokens := token.NewService(token.Config{
		AccessSecret:    []byte(cfg.AccessTokenSecret),
		RefreshSecret:   []byte(cfg.RefreshTokenSecret),
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
	})

	authService := auth.NewService(logger, users, tokens, uploader)

	cookies := handlers.CookieConfig{
		MaxAge: cfg.CookieMaxAge,
		Secure: cfg.CookieSecure,
	}

	authHandler := handlers.NewAuthHandler(logger, authService, cookies)
	healthHandler := handlers.NewHealthHandler(logger, version)

	// Request authenticator: жесткий gate перед защищенными routes
	requireAuth := middleware.Auth(logger, tokens, users)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/users/register", authHandler.Register)
	mux.HandleFunc("POST /api/v1/users/login", authHandler.Login)
	mux.HandleFunc("POST /api/v1/users/refresh", authHandler.Refresh)
	mux.Handle("POST /api/v1/users/logout", requireAuth(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("GET /api/v1/users/me", requireAuth(http.HandlerFunc(authHandler.Me)))
	mux.HandleFunc("GET /api/v1/health", healthHandler.Health)

	// Auth endpoints лимитируются жестче остальных
	authLimits := []middleware.PathRateLimit{
		{Path: "/api/v1/users/register", Rate: cfg.RateLimitAuth, Window: cfg.RateLimitWindow},
		{Path: "/api/v1/users/login", Rate: cfg.RateLimitAuth, Window: cfg.RateLimitWindow},
		{Path: "/api/v1/users/refresh", Rate: cfg.RateLimitAuth, Window: cfg.RateLimitWindow},
	}

	var handler http.Handler = mux
	handler = middleware.RateLimitByPath(authLimits, cfg.RateLimitDefault, cfg.RateLimitWindow, logger)(handler)
	handler = middleware.Logging(logger, "/api/v1/health")(handler)
	handler = middleware.Recovery(logger)(handler)

	return &Server{
		logger: logger,
		http: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Run запускает сервер и блокируется до отмены контекста
// По отмене выполняет graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	errC := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errC <- err
		}
	}()

	select {
	case err := <-errC:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	return nil
}
