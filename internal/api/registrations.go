package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleListRegistrations returns every live registration ordered by
// endpoint name.
func (s *Server) handleListRegistrations(w http.ResponseWriter, _ *http.Request) {
	entries := s.registry.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"registrations": entries,
		"count":         len(entries),
	})
}

func (s *Server) handleGetRegistration(w http.ResponseWriter, r *http.Request) {
	entry, err := s.registry.Get(r.Context(), chi.URLParam(r, "location"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleDeleteRegistration removes a registration on behalf of an operator
// and returns the removed entry.
func (s *Server) handleDeleteRegistration(w http.ResponseWriter, r *http.Request) {
	entry, err := s.registry.Unregister(r.Context(), chi.URLParam(r, "location"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.logger.Info("registration removed via API",
		"endpoint", entry.Endpoint,
		"location", entry.Location,
		"by", claimsFromContext(r.Context()).Subject,
	)
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleGetEndpoint(w http.ResponseWriter, r *http.Request) {
	entry, err := s.registry.Find(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
