package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/kelotduongvidainhat/ams/internal/audit"
	"github.com/kelotduongvidainhat/ams/internal/auth"
	"github.com/kelotduongvidainhat/ams/internal/infrastructure/config"
	"github.com/kelotduongvidainhat/ams/internal/infrastructure/logging"
	"github.com/kelotduongvidainhat/ams/internal/ledger"
	"github.com/kelotduongvidainhat/ams/internal/provenance"
	"github.com/kelotduongvidainhat/ams/internal/transfer"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// TransferService is the mutating side of the transfer engine.
type TransferService interface {
	Initiate(ctx context.Context, assetID, newOwner string, initiator transfer.Actor) (*transfer.Transfer, error)
	Approve(ctx context.Context, assetID, signer string) (*transfer.Transfer, error)
	Reject(ctx context.Context, assetID string, actor transfer.Actor, reason string) (*transfer.Transfer, error)
	SetAssetLocked(ctx context.Context, assetID string, actor transfer.Actor, locked bool) (*ledger.Asset, error)
}

// TransferQueries is the read side over the authoritative transfer store.
type TransferQueries interface {
	ListTransfers(ctx context.Context, f transfer.Filter) ([]transfer.Transfer, error)
	GetTransfer(ctx context.Context, assetID string) (*transfer.Transfer, error)
	PendingFor(ctx context.Context, identity string) ([]transfer.PendingView, error)
}

// LineageReader returns an asset's provenance chain.
type LineageReader interface {
	Lineage(ctx context.Context, assetID string) ([]provenance.Hop, error)
}

// AuditRecorder accepts audit entries without blocking.
type AuditRecorder interface {
	Record(entry *audit.AuditLog)
}

// HealthChecker is any dependency that can report its health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EventStats reports event queue counters.
type EventStats interface {
	Stats() (published, dropped uint64)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Security  config.SecurityConfig
	Logger    *logging.Logger
	Transfers TransferService
	Queries   TransferQueries
	Ledger    ledger.Ledger
	Users     auth.UserRepository
	AuditRepo audit.Repository // optional: enables /admin/audit
	Audit     AuditRecorder    // optional: records logins
	Lineage   LineageReader    // optional: enables /assets/{id}/provenance
	Hub       *Hub             // optional: created if nil
	Events    EventStats       // optional: reported by /metrics
	Checks    map[string]HealthChecker
	Version   string
}

// Server is the HTTP API server for the asset transfer service.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	transfers TransferService
	queries   TransferQueries
	ledger    ledger.Ledger
	users     auth.UserRepository
	authn     *auth.Authenticator
	auditRepo audit.Repository
	audit     AuditRecorder
	lineage   LineageReader
	hub       *Hub
	events    EventStats
	checks    map[string]HealthChecker
	version   string
	startTime time.Time
	server    *http.Server
	listener  net.Listener
	cancel    context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, transfer service and queries, ledger, users)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger is required")
	case deps.Transfers == nil:
		return nil, fmt.Errorf("transfer service is required")
	case deps.Queries == nil:
		return nil, fmt.Errorf("transfer queries are required")
	case deps.Ledger == nil:
		return nil, fmt.Errorf("ledger is required")
	case deps.Users == nil:
		return nil, fmt.Errorf("user repository is required")
	}

	hub := deps.Hub
	if hub == nil {
		hub = NewHub(deps.WS, deps.Logger)
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		transfers: deps.Transfers,
		queries:   deps.Queries,
		ledger:    deps.Ledger,
		users:     deps.Users,
		authn:     auth.NewAuthenticator(deps.Users, deps.Security.JWT.Secret, deps.Security.JWT.AccessTokenTTL),
		auditRepo: deps.AuditRepo,
		audit:     deps.Audit,
		lineage:   deps.Lineage,
		hub:       hub,
		events:    deps.Events,
		checks:    deps.Checks,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// Hub returns the WebSocket hub, for registration as an event sink.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listener and serves in a background goroutine.
// The server can be stopped with Close().
//
// Parameters:
//   - ctx: Parent context for the hub; cancelling it disconnects WebSocket clients
//
// Returns:
//   - error: If the listener cannot be bound (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.Timeouts.ReadTimeout(),
		ReadHeaderTimeout: s.cfg.Timeouts.ReadTimeout(),
		WriteTimeout:      s.cfg.Timeouts.WriteTimeout(),
		IdleTimeout:       s.cfg.Timeouts.IdleTimeout(),
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("binding API listener: %w", err)
	}
	s.listener = ln

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", ln.Addr().String(),
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", ln.Addr().String())
			err = s.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
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

// HealthCheck verifies the API server is running.
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
