package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m/content"
	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m/objects"
	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m/registration"
)

func testLogger() *logging.Logger {
	return logging.NewWithWriter(config.LoggingConfig{Level: "error", Format: "text"}, "test", io.Discard)
}

const testJWTSecret = "0123456789abcdef0123456789abcdef"

// testToken signs a token for role with the test secret.
func testToken(t *testing.T, role Role) string {
	t.Helper()
	token, err := IssueToken(testJWTSecret, "test-"+string(role), role, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	return token
}

func testWSConfig() config.WebSocketConfig {
	return config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}
}

// testServer creates a Server with the standard object catalog and an
// in-memory registry.
func testServer(t *testing.T, checks map[string]HealthChecker) (*Server, *registration.Registry) {
	t.Helper()

	catalog, err := objects.NewCatalog()
	if err != nil {
		t.Fatalf("objects.NewCatalog() error = %v", err)
	}
	registry := registration.NewRegistry(registration.Options{})

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		WS:       testWSConfig(),
		JWT:      config.JWTConfig{Secret: testJWTSecret, TokenTTL: 60},
		Logger:   testLogger(),
		Registry: registry,
		Catalog:  catalog,
		Checks:   checks,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.hub.Run(ctx)

	return srv, registry
}

// do serves one request as an admin. Headers given in pairs override the
// defaults, so passing "Authorization", "" sends no credentials.
func do(t *testing.T, h http.Handler, method, target string, body []byte, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testToken(t, RoleAdmin))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
}

type checkFunc func(ctx context.Context) error

func (f checkFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func TestNew_RequiresDependencies(t *testing.T) {
	catalog, _ := objects.NewCatalog() //nolint:errcheck // embedded definitions are tested in objects
	registry := registration.NewRegistry(registration.Options{})

	tests := []struct {
		name string
		deps Deps
	}{
		{name: "no logger", deps: Deps{Registry: registry, Catalog: catalog}},
		{name: "no registry", deps: Deps{Logger: testLogger(), Catalog: catalog}},
		{name: "no catalog", deps: Deps{Logger: testLogger(), Registry: registry}},
		{name: "no jwt secret", deps: Deps{Logger: testLogger(), Registry: registry, Catalog: catalog}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.deps); err == nil {
				t.Error("New() expected error")
			}
		})
	}
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t, map[string]HealthChecker{
		"database": checkFunc(func(context.Context) error { return nil }),
	})
	w := do(t, srv.buildRouter(), http.MethodGet, "/api/v1/health", nil)

	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var resp map[string]any
	decodeBody(t, w, &resp)
	if resp["status"] != "ok" || resp["version"] != "test" {
		t.Errorf("health = %v", resp)
	}
}

func TestHealth_Degraded(t *testing.T) {
	srv, _ := testServer(t, map[string]HealthChecker{
		"database": checkFunc(func(context.Context) error { return nil }),
		"mqtt":     checkFunc(func(context.Context) error { return errors.New("not connected") }),
	})
	w := do(t, srv.buildRouter(), http.MethodGet, "/api/v1/health", nil)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	var resp struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}
	decodeBody(t, w, &resp)
	if resp.Status != "degraded" || resp.Components["mqtt"] != "not connected" || resp.Components["database"] != "ok" {
		t.Errorf("health = %+v", resp)
	}
}

func TestRequestID(t *testing.T) {
	srv, _ := testServer(t, nil)
	router := srv.buildRouter()

	if w := do(t, router, http.MethodGet, "/api/v1/health", nil); w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}
	w := do(t, router, http.MethodGet, "/api/v1/health", nil, "X-Request-ID", "client-123")
	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want client-123", got)
	}
}

func TestNotFound(t *testing.T) {
	srv, _ := testServer(t, nil)
	if w := do(t, srv.buildRouter(), http.MethodGet, "/api/v1/nonexistent", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestRegistrations(t *testing.T) {
	srv, registry := testServer(t, nil)
	router := srv.buildRouter()
	ctx := context.Background()

	loc, err := registry.Register(ctx, registration.Params{Endpoint: "sensor-1", Binding: "UQ"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, err := registry.Register(ctx, registration.Params{Endpoint: "lamp-1"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	w := do(t, router, http.MethodGet, "/api/v1/registrations", nil)
	var list struct {
		Registrations []registration.Entry `json:"registrations"`
		Count         int                  `json:"count"`
	}
	decodeBody(t, w, &list)
	if list.Count != 2 || list.Registrations[0].Endpoint != "lamp-1" {
		t.Errorf("list = %+v", list)
	}

	w = do(t, router, http.MethodGet, "/api/v1/registrations/"+loc, nil)
	var entry registration.Entry
	decodeBody(t, w, &entry)
	if w.Code != http.StatusOK || entry.Endpoint != "sensor-1" || entry.Binding != "UQ" {
		t.Errorf("get = %d %+v", w.Code, entry)
	}

	w = do(t, router, http.MethodGet, "/api/v1/endpoints/sensor-1", nil)
	decodeBody(t, w, &entry)
	if w.Code != http.StatusOK || entry.Location != loc {
		t.Errorf("endpoint = %d %+v", w.Code, entry)
	}

	if w = do(t, router, http.MethodDelete, "/api/v1/registrations/"+loc, nil); w.Code != http.StatusOK {
		t.Errorf("delete status = %d", w.Code)
	}

	for _, target := range []string{"/api/v1/registrations/" + loc, "/api/v1/endpoints/sensor-1"} {
		w = do(t, router, http.MethodGet, target, nil)
		var apiErr Error
		decodeBody(t, w, &apiErr)
		if w.Code != http.StatusNotFound || apiErr.Code != ErrCodeNotFound {
			t.Errorf("GET %s after delete = %d %+v", target, w.Code, apiErr)
		}
	}
}

func TestResourceDirectory(t *testing.T) {
	srv, registry := testServer(t, nil)
	router := srv.buildRouter()
	ctx := context.Background()

	w := do(t, router, http.MethodPost, "/rd?ep=sensor-1&lt=60&b=U&lwm2m=1.1", []byte("</3/0>,</3303/0>"))
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d body %s", w.Code, w.Body.String())
	}
	var created map[string]string
	decodeBody(t, w, &created)
	loc := created["location"]
	if w.Header().Get("Location") != "/rd/"+loc {
		t.Errorf("Location header = %q", w.Header().Get("Location"))
	}

	entry, err := registry.Get(ctx, loc)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if entry.Lifetime != 60 || entry.Links != "</3/0>,</3303/0>" || entry.Address != "192.0.2.1" || entry.Port != 1234 {
		t.Errorf("entry = %+v", entry)
	}

	if w = do(t, router, http.MethodPost, "/rd/"+loc+"?lt=120", nil); w.Code != http.StatusNoContent {
		t.Errorf("update status = %d", w.Code)
	}
	entry, err = registry.Get(ctx, loc)
	if err != nil {
		t.Fatalf("Get() after update error = %v", err)
	}
	if entry.Lifetime != 120 || entry.Links != "</3/0>,</3303/0>" {
		t.Errorf("entry after update = %+v", entry)
	}

	if w = do(t, router, http.MethodDelete, "/rd/"+loc, nil); w.Code != http.StatusNoContent {
		t.Errorf("deregister status = %d", w.Code)
	}
	if w = do(t, router, http.MethodDelete, "/rd/"+loc, nil); w.Code != http.StatusNotFound {
		t.Errorf("second deregister status = %d, want 404", w.Code)
	}
}

func TestResourceDirectory_BadRequests(t *testing.T) {
	srv, _ := testServer(t, nil)
	router := srv.buildRouter()

	tests := []struct {
		name   string
		method string
		target string
		want   int
	}{
		{name: "missing endpoint", method: http.MethodPost, target: "/rd?lt=60", want: http.StatusBadRequest},
		{name: "bad lifetime", method: http.MethodPost, target: "/rd?ep=a&lt=-5", want: http.StatusBadRequest},
		{name: "unknown location", method: http.MethodPost, target: "/rd/missing?lt=5", want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(t, router, tt.method, tt.target, nil); w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestObjects(t *testing.T) {
	srv, _ := testServer(t, nil)
	router := srv.buildRouter()

	w := do(t, router, http.MethodGet, "/api/v1/objects", nil)
	var list struct {
		Objects []ObjectView `json:"objects"`
		Count   int          `json:"count"`
	}
	decodeBody(t, w, &list)
	if list.Count != 6 || list.Objects[0].ID != objects.Server {
		t.Errorf("objects = %+v", list)
	}

	w = do(t, router, http.MethodGet, "/api/v1/objects/3303", nil)
	var obj ObjectView
	decodeBody(t, w, &obj)
	if obj.Name != "Temperature" || len(obj.Resources) == 0 {
		t.Fatalf("object = %+v", obj)
	}
	if first := obj.Resources[0]; first.Name != "sensorValue" || first.ID != 5700 || first.Type != "Float" || !first.Required {
		t.Errorf("first resource = %+v", first)
	}

	if w = do(t, router, http.MethodGet, "/api/v1/objects/9999", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown object status = %d, want 404", w.Code)
	}
	if w = do(t, router, http.MethodGet, "/api/v1/objects/abc", nil); w.Code != http.StatusBadRequest {
		t.Errorf("invalid id status = %d, want 400", w.Code)
	}
}

func TestEncodeDecode(t *testing.T) {
	srv, _ := testServer(t, nil)
	router := srv.buildRouter()

	w := do(t, router, http.MethodPost, "/api/v1/objects/3303/encode?format=tlv&instance=1",
		[]byte(`{"sensorValue": 21.5, "units": "Cel"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("encode status = %d body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != content.TLV.MediaType() {
		t.Errorf("encode Content-Type = %q", ct)
	}
	encoded := w.Body.Bytes()

	w = do(t, router, http.MethodPost, "/api/v1/objects/3303/decode?instance=1", encoded,
		"Content-Type", content.TLV.MediaType())
	if w.Code != http.StatusOK {
		t.Fatalf("decode status = %d body %s", w.Code, w.Body.String())
	}
	var decoded DecodeResponse
	decodeBody(t, w, &decoded)
	if decoded.Path != "/3303/1" || decoded.Values["sensorValue"] != 21.5 || decoded.Values["units"] != "Cel" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestEncode_SingleResourceText(t *testing.T) {
	srv, _ := testServer(t, nil)
	w := do(t, srv.buildRouter(), http.MethodPost, "/api/v1/objects/3303/encode?resource=5701", []byte(`{"units": "Cel"}`))

	if w.Code != http.StatusOK || w.Body.String() != "Cel" {
		t.Errorf("encode = %d %q", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/plain" {
		t.Errorf("Content-Type = %q, want text/plain", ct)
	}
}

func TestCodecErrors(t *testing.T) {
	srv, _ := testServer(t, nil)
	router := srv.buildRouter()
	tlvType := content.TLV.MediaType()

	tests := []struct {
		name     string
		target   string
		body     []byte
		headers  []string
		wantCode int
		wantErr  string
	}{
		{
			name:     "malformed tlv",
			target:   "/api/v1/objects/3303/decode",
			body:     []byte{0xC8, 0x05},
			headers:  []string{"Content-Type", tlvType},
			wantCode: http.StatusBadRequest,
			wantErr:  ErrCodeMalformed,
		},
		{
			name:     "no format",
			target:   "/api/v1/objects/3303/decode",
			body:     []byte{0xC1, 0x00, 0x01},
			wantCode: http.StatusUnsupportedMediaType,
			wantErr:  ErrCodeUnsupportedFormat,
		},
		{
			name:     "unknown object",
			target:   "/api/v1/objects/9999/decode?format=tlv",
			wantCode: http.StatusNotFound,
			wantErr:  ErrCodeNotFound,
		},
		{
			name:     "missing required resource",
			target:   "/api/v1/objects/3303/encode?format=tlv",
			body:     []byte(`{"units": "Cel", "applicationType": "room"}`),
			wantCode: http.StatusBadRequest,
			wantErr:  ErrCodeValidation,
		},
		{
			name:     "wrong value type",
			target:   "/api/v1/objects/3303/encode?format=json",
			body:     []byte(`{"sensorValue": "warm"}`),
			wantCode: http.StatusBadRequest,
			wantErr:  ErrCodeValidation,
		},
		{
			name:     "invalid json body",
			target:   "/api/v1/objects/3303/encode",
			body:     []byte(`{`),
			wantCode: http.StatusBadRequest,
			wantErr:  ErrCodeBadRequest,
		},
		{
			name:     "invalid instance",
			target:   "/api/v1/objects/3303/decode?format=tlv&instance=x",
			wantCode: http.StatusBadRequest,
			wantErr:  ErrCodeBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, tt.target, tt.body, tt.headers...)
			var apiErr Error
			decodeBody(t, w, &apiErr)
			if w.Code != tt.wantCode || apiErr.Code != tt.wantErr {
				t.Errorf("response = %d %+v, want %d %s", w.Code, apiErr, tt.wantCode, tt.wantErr)
			}
		})
	}
}

func TestMetrics(t *testing.T) {
	srv, registry := testServer(t, nil)
	if _, err := registry.Register(context.Background(), registration.Params{Endpoint: "a", Binding: "UQ"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	w := do(t, srv.buildRouter(), http.MethodGet, "/api/v1/metrics", nil)
	var m SystemMetrics
	decodeBody(t, w, &m)
	if m.Directory.Registrations != 1 || m.Directory.ByBinding["UQ"] != 1 || m.Objects != 6 || m.Database != nil {
		t.Errorf("metrics = %+v", m)
	}
}

func TestBodySizeLimit(t *testing.T) {
	srv, _ := testServer(t, nil)
	srv.cfg.MaxBodySize = 16
	body := []byte(`{"units": "` + strings.Repeat("x", 64) + `"}`)

	w := do(t, srv.buildRouter(), http.MethodPost, "/api/v1/objects/3303/encode?resource=5701", body)
	if w.Code != http.StatusBadRequest {
		t.Errorf("oversized body status = %d, want 400", w.Code)
	}
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub(testWSConfig(), testLogger())

	tests := []struct {
		name    string
		subs    []string
		channel string
		want    bool
	}{
		{name: "exact", subs: []string{"registration.expired"}, channel: "registration.expired", want: true},
		{name: "prefix wildcard", subs: []string{"registration.*"}, channel: "registration.updated", want: true},
		{name: "everything", subs: []string{"*"}, channel: "registration.registered", want: true},
		{name: "other channel", subs: []string{"registration.expired"}, channel: "registration.updated", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &WSClient{
				hub:           hub,
				send:          make(chan []byte, wsSendBufferSize),
				subscriptions: make(map[string]struct{}),
			}
			for _, s := range tt.subs {
				client.subscriptions[s] = struct{}{}
			}
			hub.Register(client)
			defer hub.Unregister(client)

			hub.Broadcast(tt.channel, map[string]any{"endpoint": "sensor-1"})

			select {
			case msg := <-client.send:
				if !tt.want {
					t.Fatal("unsubscribed client received a message")
				}
				var wsMsg WSMessage
				if err := json.Unmarshal(msg, &wsMsg); err != nil {
					t.Fatalf("unmarshal: %v", err)
				}
				if wsMsg.Type != WSTypeEvent || wsMsg.EventType != tt.channel {
					t.Errorf("message = %+v", wsMsg)
				}
			case <-time.After(50 * time.Millisecond):
				if tt.want {
					t.Error("timed out waiting for broadcast message")
				}
			}
		})
	}

	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d after unregister, want 0", hub.ClientCount())
	}
}

func TestWebSocket_Stream(t *testing.T) {
	srv, _ := testServer(t, nil)
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	header := http.Header{"Authorization": {"Bearer " + testToken(t, RoleViewer)}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	//nolint:errcheck // test deadline
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	sub := WSMessage{Type: WSTypeSubscribe, ID: "1", Payload: WSSubscribePayload{Channels: []string{"registration.*"}}}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	var resp WSMessage
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if resp.Type != WSTypeResponse || resp.ID != "1" {
		t.Fatalf("subscribe response = %+v", resp)
	}

	srv.Hub().Broadcast("registration.registered", map[string]string{"endpoint": "sensor-1"})

	var ev WSMessage
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if ev.Type != WSTypeEvent || ev.EventType != "registration.registered" {
		t.Errorf("event = %+v", ev)
	}

	if err := conn.WriteJSON(WSMessage{Type: "bogus", ID: "2"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if resp.Type != WSTypeError || resp.ID != "2" {
		t.Errorf("error response = %+v", resp)
	}
}

func TestAuth_ProtectedRoutes(t *testing.T) {
	srv, _ := testServer(t, nil)
	router := srv.buildRouter()

	expired := signClaims(t, jwt.SigningMethodHS256, []byte(testJWTSecret), Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "old-admin",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
		Role: RoleAdmin,
	})
	foreign, err := IssueToken("another-secret-another-secret-xx", "admin", RoleAdmin, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	tests := []struct {
		name   string
		method string
		target string
		auth   string
		want   int
	}{
		{name: "delete without token", method: http.MethodDelete, target: "/api/v1/registrations/missing", auth: "", want: http.StatusUnauthorized},
		{name: "delete with basic auth", method: http.MethodDelete, target: "/api/v1/registrations/missing", auth: "Basic YWRtaW46YWRtaW4=", want: http.StatusUnauthorized},
		{name: "delete with garbage token", method: http.MethodDelete, target: "/api/v1/registrations/missing", auth: "Bearer not.a.jwt", want: http.StatusUnauthorized},
		{name: "delete with foreign signature", method: http.MethodDelete, target: "/api/v1/registrations/missing", auth: "Bearer " + foreign, want: http.StatusUnauthorized},
		{name: "delete with expired token", method: http.MethodDelete, target: "/api/v1/registrations/missing", auth: "Bearer " + expired, want: http.StatusUnauthorized},
		{name: "delete as viewer", method: http.MethodDelete, target: "/api/v1/registrations/missing", auth: "Bearer " + testToken(t, RoleViewer), want: http.StatusForbidden},
		{name: "delete as admin", method: http.MethodDelete, target: "/api/v1/registrations/missing", auth: "Bearer " + testToken(t, RoleAdmin), want: http.StatusNotFound},
		{name: "rd register without token", method: http.MethodPost, target: "/rd?ep=gw-1", auth: "", want: http.StatusUnauthorized},
		{name: "rd register as viewer", method: http.MethodPost, target: "/rd?ep=gw-1", auth: "Bearer " + testToken(t, RoleViewer), want: http.StatusForbidden},
		{name: "rd register as gateway", method: http.MethodPost, target: "/rd?ep=gw-1", auth: "Bearer " + testToken(t, RoleGateway), want: http.StatusCreated},
		{name: "rd update without token", method: http.MethodPost, target: "/rd/missing?lt=5", auth: "", want: http.StatusUnauthorized},
		{name: "rd deregister without token", method: http.MethodDelete, target: "/rd/missing", auth: "", want: http.StatusUnauthorized},
		{name: "rd deregister as gateway", method: http.MethodDelete, target: "/rd/missing", auth: "Bearer " + testToken(t, RoleGateway), want: http.StatusNotFound},
		{name: "list is public", method: http.MethodGet, target: "/api/v1/registrations", auth: "", want: http.StatusOK},
		{name: "health is public", method: http.MethodGet, target: "/api/v1/health", auth: "", want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, tt.method, tt.target, nil, "Authorization", tt.auth)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
			if tt.want != http.StatusUnauthorized {
				return
			}
			var apiErr Error
			decodeBody(t, w, &apiErr)
			if apiErr.Code != ErrCodeUnauthorized {
				t.Errorf("error code = %q, want %q", apiErr.Code, ErrCodeUnauthorized)
			}
			if w.Header().Get("WWW-Authenticate") == "" {
				t.Error("expected WWW-Authenticate header on 401")
			}
		})
	}
}

func TestAuth_WebSocket(t *testing.T) {
	srv, _ := testServer(t, nil)
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	base := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"

	tests := []struct {
		name   string
		url    string
		header http.Header
		want   int
	}{
		{name: "no token", url: base, want: http.StatusUnauthorized},
		{name: "gateway role", url: base, header: http.Header{"Authorization": {"Bearer " + testToken(t, RoleGateway)}}, want: http.StatusForbidden},
		{name: "viewer via query", url: base + "?access_token=" + testToken(t, RoleViewer), want: http.StatusSwitchingProtocols},
		{name: "admin via header", url: base, header: http.Header{"Authorization": {"Bearer " + testToken(t, RoleAdmin)}}, want: http.StatusSwitchingProtocols},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, resp, err := websocket.DefaultDialer.Dial(tt.url, tt.header)
			if conn != nil {
				defer conn.Close()
			}
			if resp == nil {
				t.Fatalf("Dial() error = %v with no response", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("handshake status = %d, want %d (err %v)", resp.StatusCode, tt.want, err)
			}
		})
	}
}

func TestAuth_QueryTokenOnlyForWebSocket(t *testing.T) {
	srv, _ := testServer(t, nil)
	target := "/rd?ep=gw-1&access_token=" + testToken(t, RoleGateway)
	if w := do(t, srv.buildRouter(), http.MethodPost, target, nil, "Authorization", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func signClaims(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return signed
}
