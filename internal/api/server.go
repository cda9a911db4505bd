package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m/content"
	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m/registration"
	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m/schema"
)

// gracefulShutdownTimeout bounds the wait for in-flight requests on Close.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker is a component whose health is reported by /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies of the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	JWT       config.JWTConfig
	Logger    *logging.Logger
	Registry  *registration.Registry
	Catalog   *schema.Catalog
	Processor *content.Processor

	// DB is optional; when set its pool statistics appear in /metrics.
	DB *database.DB

	// Checks are reported by /health, keyed by component name.
	Checks map[string]HealthChecker

	// Hub, when set, is used instead of a hub owned by the server. The
	// lifecycle forwarder needs the hub before the server starts.
	Hub *Hub

	Version string
}

// Server is the HTTP admin API.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	registry  *registration.Registry
	catalog   *schema.Catalog
	processor *content.Processor
	db        *database.DB
	checks    map[string]HealthChecker
	jwtSecret string
	version   string
	startTime time.Time

	server      *http.Server
	hub         *Hub
	externalHub bool
	cancel      context.CancelFunc
}

// New creates a server. It is not listening until Start.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("registration registry is required")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("object catalog is required")
	}
	if deps.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	processor := deps.Processor
	if processor == nil {
		processor = content.NewProcessor(deps.Catalog)
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		registry:  deps.Registry,
		catalog:   deps.Catalog,
		processor: processor,
		db:        deps.DB,
		checks:    deps.Checks,
		jwtSecret: deps.JWT.Secret,
		version:   deps.Version,
		startTime: time.Now(),
	}
	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	} else {
		s.hub = NewHub(deps.WS, deps.Logger)
	}
	return s, nil
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start runs the hub (unless injected) and starts listening in the
// background.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

// Close waits up to gracefulShutdownTimeout for in-flight requests, then
// closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
