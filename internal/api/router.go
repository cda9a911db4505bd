package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
)

const healthCheckTimeout = 3 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Reads are public. Routes that change directory state or stream
	// events need a bearer token with a matching role.
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/registrations", func(r chi.Router) {
			r.Get("/", s.handleListRegistrations)
			r.Get("/{location}", s.handleGetRegistration)
			r.With(s.requireRole(RoleAdmin)).Delete("/{location}", s.handleDeleteRegistration)
		})
		r.Get("/endpoints/{name}", s.handleGetEndpoint)

		r.Route("/objects", func(r chi.Router) {
			r.Get("/", s.handleListObjects)
			r.Get("/{id}", s.handleGetObject)
			r.Post("/{id}/decode", s.handleDecode)
			r.Post("/{id}/encode", s.handleEncode)
		})

		r.With(s.requireRole(RoleAdmin, RoleViewer)).Get("/ws", s.handleWebSocket)
	})

	// Resource directory interface for gateways that speak HTTP.
	r.Route("/rd", func(r chi.Router) {
		r.Use(s.requireRole(RoleAdmin, RoleGateway))
		r.Post("/", s.handleRDRegister)
		r.Post("/{location}", s.handleRDUpdate)
		r.Delete("/{location}", s.handleRDDeregister)
	})

	return r
}

// handleHealth reports "ok" when every check passes and "degraded"
// otherwise, with the failing components listed.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "ok"
	components := make(map[string]string, len(names))
	for _, name := range names {
		if err := s.checks[name].HealthCheck(ctx); err != nil {
			status = "degraded"
			components[name] = err.Error()
			continue
		}
		components[name] = "ok"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":        status,
		"version":       s.version,
		"components":    components,
		"registrations": s.registry.Count(),
	})
}
