package server

import (
	"context"
	"errors"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/termctl/termctl/internal/observability"
	"github.com/termctl/termctl/internal/registry"
	"github.com/termctl/termctl/internal/term"
)

var ErrInvalidHeartbeatInterval = errors.New("server: invalid heartbeat interval")

// ServiceConfig configures the standalone termctl runtime.
type ServiceConfig struct {
	Node              string
	ListenAddr        string
	AdminAddr         string
	CorsOrigins       []string
	MaxSessions       int
	HeartbeatInterval time.Duration
	Session           term.Config
}

// DefaultServiceConfig returns standalone runtime defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Node:              "termctl.local",
		ListenAddr:        ":2323",
		AdminAddr:         "",
		MaxSessions:       128,
		HeartbeatInterval: 5 * time.Second,
		Session:           term.DefaultConfig(),
	}
}

// AdminEndpoint abstracts the optional admin HTTP server so the service
// does not depend on its package.
type AdminEndpoint interface {
	Serve(ctx context.Context, addr string) error
}

// Service runs the server lifecycle as a standalone process: accept loop,
// optional admin endpoint, heartbeat, and the shutdown sweep.
type Service struct {
	cfg    ServiceConfig
	reg    *registry.Registry
	server *Server

	// newAdmin builds the admin endpoint once the server exists; set by the
	// binary, nil when no admin endpoint is configured.
	newAdmin func(node string, srv *Server, reg *registry.Registry, corsOrigins []string) AdminEndpoint
}

// NewService constructs the runtime with default config.
func NewService() (*Service, error) {
	return NewServiceWithConfig(DefaultServiceConfig())
}

// NewServiceWithConfig validates config and constructs the runtime.
func NewServiceWithConfig(cfg ServiceConfig) (*Service, error) {
	if cfg.HeartbeatInterval <= 0 {
		return nil, ErrInvalidHeartbeatInterval
	}
	cfg.Session = cfg.Session.WithDefaults()
	reg := registry.New()
	srv, err := New(Config{
		ListenAddr:  cfg.ListenAddr,
		MaxSessions: cfg.MaxSessions,
		Session:     cfg.Session,
	}, reg)
	if err != nil {
		return nil, err
	}
	return &Service{cfg: cfg, reg: reg, server: srv}, nil
}

// SetAdminBuilder installs the admin endpoint constructor. Kept as an
// injection point so internal/server never imports internal/admin.
func (s *Service) SetAdminBuilder(build func(node string, srv *Server, reg *registry.Registry, corsOrigins []string) AdminEndpoint) {
	s.newAdmin = build
}

// Server exposes the acceptor, mainly for the admin endpoint and tests.
func (s *Service) Server() *Server {
	return s.server
}

// Registry exposes the shared resource registry.
func (s *Service) Registry() *registry.Registry {
	return s.reg
}

// Run blocks until a process signal triggers shutdown, then sweeps the
// registry so sessions that never released their handles are force-closed.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.run(ctx)
}

func (s *Service) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.server.Serve(ctx)
	}()

	adminErr := make(chan error, 1)
	if addr := strings.TrimSpace(s.cfg.AdminAddr); addr != "" && s.newAdmin != nil {
		endpoint := s.newAdmin(s.cfg.Node, s.server, s.reg, s.cfg.CorsOrigins)
		go func() {
			adminErr <- endpoint.Serve(ctx, addr)
		}()
	}

	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()
	defer s.sweep()

	for {
		select {
		case <-ctx.Done():
			// Let the accept loop exit first so no session can register a
			// socket after the sweep has run.
			<-serveErr
			log.Info().Str("node", s.cfg.Node).Msg("service shutdown")
			return nil
		case err := <-serveErr:
			if err != nil {
				return err
			}
			return nil
		case err := <-adminErr:
			if err != nil {
				return err
			}
		case <-ticker.C:
			sockets, buffers := s.reg.Counts()
			log.Info().
				Str("node", s.cfg.Node).
				Int("sessions", s.server.SessionCount()).
				Int("registered_sockets", sockets).
				Int("registered_buffers", buffers).
				Msg("service heartbeat")
		}
	}
}

// sweep force-closes every handle still registered and waits for the
// unblocked session tasks to drain.
func (s *Service) sweep() {
	sockets, buffers := s.reg.Cleanup()
	observability.RecordSweep(sockets, buffers)
	if sockets > 0 || buffers > 0 {
		log.Warn().Int("sockets", sockets).Int("buffers", buffers).Msg("registry sweep released leaked handles")
	}
	s.server.Wait()
}
