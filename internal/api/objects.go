package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m/content"
	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m/schema"
)

// ObjectView describes an object definition.
type ObjectView struct {
	ID        uint16         `json:"id"`
	Name      string         `json:"name"`
	Multiple  bool           `json:"multiple"`
	Resources []ResourceView `json:"resources,omitempty"`
}

// ResourceView describes one resource of an object.
type ResourceView struct {
	ID       int            `json:"id"`
	Name     string         `json:"name"`
	Type     string         `json:"type"`
	Required bool           `json:"required,omitempty"`
	Enum     []any          `json:"enum,omitempty"`
	Range    *schema.Range  `json:"range,omitempty"`
	Schema   []ResourceView `json:"schema,omitempty"`
}

// DecodeResponse is returned by the decode endpoint.
type DecodeResponse struct {
	Path   string        `json:"path"`
	Format string        `json:"format"`
	Values schema.Object `json:"values"`
}

func resourceViews(s *schema.Schema) []ResourceView {
	resources := s.Resources()
	out := make([]ResourceView, 0, len(resources))
	for _, res := range resources {
		v := ResourceView{
			ID:       res.ID,
			Name:     res.Name,
			Type:     res.Type.String(),
			Required: res.Required,
			Enum:     res.Enum,
			Range:    res.Range,
		}
		if res.Schema != nil {
			v.Schema = resourceViews(res.Schema)
		}
		out = append(out, v)
	}
	return out
}

// handleListObjects lists the catalog without resource details.
func (s *Server) handleListObjects(w http.ResponseWriter, _ *http.Request) {
	defs := s.catalog.Objects()
	out := make([]ObjectView, 0, len(defs))
	for _, def := range defs {
		out = append(out, ObjectView{ID: def.ID, Name: def.Name, Multiple: def.Multiple})
	}
	writeJSON(w, http.StatusOK, map[string]any{"objects": out, "count": len(out)})
}

func (s *Server) handleGetObject(w http.ResponseWriter, r *http.Request) {
	id, ok := objectID(w, r)
	if !ok {
		return
	}
	def, err := s.catalog.Definition(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ObjectView{
		ID:        def.ID,
		Name:      def.Name,
		Multiple:  def.Multiple,
		Resources: resourceViews(def.Schema),
	})
}

// handleDecode decodes the request body. The format comes from ?format=
// or the Content-Type header; ?instance= (default 0) and ?resource= pick
// the path.
func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	path, ok := requestPath(w, r)
	if !ok {
		return
	}
	format, err := requestFormat(r, r.Header.Get("Content-Type"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "reading body: "+err.Error())
		return
	}

	values, err := s.processor.Decode(path, format, payload)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DecodeResponse{
		Path:   path.String(),
		Format: format.MediaType(),
		Values: values,
	})
}

// handleEncode encodes a JSON object of resource values. The format comes
// from ?format= or the Accept header and defaults to TLV for instances and
// plain text for single resources.
func (s *Server) handleEncode(w http.ResponseWriter, r *http.Request) {
	path, ok := requestPath(w, r)
	if !ok {
		return
	}

	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var raw schema.Object
	if err := dec.Decode(&raw); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	sch, err := s.processor.Schema(path.Object)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	values, err := sch.Normalize(raw)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	hint := r.URL.Query().Get("format")
	if hint == "" {
		if accept := r.Header.Get("Accept"); accept != "" && accept != "*/*" {
			hint = accept
		}
	}
	var format content.Format
	if hint != "" {
		format, err = content.ParseFormat(hint)
	} else {
		format, err = content.Negotiate(path, encodeTarget(path, values), "")
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	data, err := s.processor.Encode(path, format, values)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", format.MediaType())
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write(data)
}

// encodeTarget returns the value Negotiate should inspect: the object for
// instance paths, the single resource value for resource paths.
func encodeTarget(path content.Path, values schema.Object) any {
	if !path.IsResource() {
		return values
	}
	for _, v := range values {
		return v
	}
	return nil
}

func objectID(w http.ResponseWriter, r *http.Request) (uint16, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 16)
	if err != nil {
		writeBadRequest(w, fmt.Sprintf("invalid object id %q", chi.URLParam(r, "id")))
		return 0, false
	}
	return uint16(id), true
}

func requestPath(w http.ResponseWriter, r *http.Request) (content.Path, bool) {
	id, ok := objectID(w, r)
	if !ok {
		return content.Path{}, false
	}
	q := r.URL.Query()
	raw := fmt.Sprintf("/%d/%s", id, valueOr(q.Get("instance"), "0"))
	if res := q.Get("resource"); res != "" {
		raw += "/" + res
	}
	path, err := content.ParsePath(raw)
	if err != nil {
		writeDomainError(w, err)
		return content.Path{}, false
	}
	return path, true
}

func requestFormat(r *http.Request, header string) (content.Format, error) {
	if f := r.URL.Query().Get("format"); f != "" {
		return content.ParseFormat(f)
	}
	if header == "" {
		return 0, fmt.Errorf("%w: no format given", content.ErrUnsupportedFormat)
	}
	return content.ParseFormat(header)
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
