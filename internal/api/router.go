package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kelotduongvidainhat/ams/internal/auth"
)

// healthCheckTimeout bounds each dependency check in /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeBadRequest, "method not allowed")
	})

	// Event stream (no auth)
	r.Get(s.wsPath(), s.handleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)
		r.Post("/auth/login", s.handleLogin)

		// Ledger reads
		r.Route("/assets/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetAsset)
			r.Get("/history", s.handleAssetHistory)
			r.Get("/provenance", s.handleAssetProvenance)
		})

		r.Route("/protected", func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handleMe)

			r.Route("/transfers", func(r chi.Router) {
				r.Post("/initiate", s.handleInitiate)
				r.Get("/pending", s.handlePending)
				r.Get("/{asset_id}", s.handleGetTransfer)
				r.Post("/{asset_id}/approve", s.handleApprove)
				r.Post("/{asset_id}/reject", s.handleReject)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(s.requireRole(auth.RoleAdmin))

				r.Get("/transfers", s.handleAdminListTransfers)
				r.Get("/audit", s.handleListAuditLogs)
				r.Get("/users", s.handleListUsers)
				r.Post("/users/{id}/lock", s.handleSetUserActive(false))
				r.Post("/users/{id}/unlock", s.handleSetUserActive(true))
				r.Post("/assets/{id}/lock", s.handleSetAssetLocked(true))
				r.Post("/assets/{id}/unlock", s.handleSetAssetLocked(false))
			})
		})
	})

	return r
}

func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return s.wsCfg.Path
}

// handleHealth reports "ok" when every configured dependency answers, and
// "degraded" with 503 otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	deps := map[string]string{}
	status := "ok"

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := s.checks[name].HealthCheck(ctx)
		cancel()
		if err != nil {
			deps[name] = err.Error()
			status = "degraded"
			continue
		}
		deps[name] = "ok"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":       status,
		"version":      s.version,
		"dependencies": deps,
	})
}
