package api

import (
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m/registration"
)

// handleRDRegister registers an endpoint. The query carries ep, lt, lwm2m,
// b and sms, and the body is the link-format object list. The new
// registration's path is returned in the Location header.
func (s *Server) handleRDRegister(w http.ResponseWriter, r *http.Request) {
	p, ok := s.rdParams(w, r)
	if !ok {
		return
	}

	loc, err := s.registry.Register(r.Context(), p)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Location", "/rd/"+loc)
	writeJSON(w, http.StatusCreated, map[string]string{"location": loc})
}

// handleRDUpdate renews a registration and merges any changed attributes.
func (s *Server) handleRDUpdate(w http.ResponseWriter, r *http.Request) {
	p, ok := s.rdParams(w, r)
	if !ok {
		return
	}
	p.Endpoint = ""

	if _, err := s.registry.Update(r.Context(), chi.URLParam(r, "location"), p); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRDDeregister(w http.ResponseWriter, r *http.Request) {
	if _, err := s.registry.Unregister(r.Context(), chi.URLParam(r, "location")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// rdParams builds registration parameters from the request query, body and
// peer address. It writes the error response itself and returns false on
// failure.
func (s *Server) rdParams(w http.ResponseWriter, r *http.Request) (registration.Params, bool) {
	p, err := registration.ParamsFromQuery(r.URL.Query())
	if err != nil {
		writeDomainError(w, err)
		return registration.Params{}, false
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "reading body: "+err.Error())
		return registration.Params{}, false
	}
	p.Links = string(body)

	if host, port, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		p.Address = host
		if n, err := strconv.Atoi(port); err == nil {
			p.Port = n
		}
	}
	return p, true
}
