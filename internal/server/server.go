// Package server hosts the HTTP and WebSocket API over the auction engine.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openslot/openslot/internal/server/handler"
	"github.com/openslot/openslot/internal/server/middleware"
	"github.com/openslot/openslot/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // empty disables authentication
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health     *handler.HealthHandler
	Principals *handler.PrincipalHandler
	Slots      *handler.SlotHandler
	Contracts  *handler.ContractHandler
	Sweeps     *handler.SweepHandler
}

// Server is the HTTP + WebSocket front of the auction service.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all routes and middleware and attaches the hub.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check, no auth required.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.HandleFunc("POST /api/principals", handlers.Principals.Register)
	mux.HandleFunc("POST /api/principals/{id}/verify", handlers.Principals.Verify)
	mux.HandleFunc("GET /api/principals/{id}", handlers.Principals.Get)

	mux.HandleFunc("POST /api/slots", handlers.Slots.Create)
	mux.HandleFunc("GET /api/slots/{id}", handlers.Slots.Get)
	mux.HandleFunc("POST /api/slots/{id}/bids", handlers.Slots.PlaceBid)
	mux.HandleFunc("GET /api/slots/{id}/bids", handlers.Slots.ListBids)
	mux.HandleFunc("POST /api/slots/{id}/close", handlers.Slots.Close)

	mux.HandleFunc("GET /api/contracts/{id}", handlers.Contracts.Get)
	mux.HandleFunc("POST /api/contracts/{id}/complete", handlers.Contracts.Complete)

	mux.HandleFunc("POST /api/sweeps/run", handlers.Sweeps.Run)

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = corsMiddleware(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{httpServer: srv, logger: logger}
}

// Start listens for HTTP requests and blocks until shutdown or error.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// corsMiddleware sets CORS headers for the allowed origins; an empty list
// allows all.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" {
				allowed := len(allowedOrigins) == 0
				for _, o := range allowedOrigins {
					if strings.EqualFold(o, "*") || strings.EqualFold(o, origin) {
						allowed = true
						break
					}
				}
				if allowed {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Principal-ID")
					w.Header().Set("Access-Control-Max-Age", "86400")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
