package server

import (
	"context"
	"errors"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/termctl/termctl/internal/observability"
	"github.com/termctl/termctl/internal/registry"
	"github.com/termctl/termctl/internal/term"
)

var (
	ErrInvalidListenAddr = errors.New("server: listen address required")
	ErrInvalidMaxSession = errors.New("server: max sessions must be positive")
)

// busyReply is sent to a rejected client before its connection is closed.
const busyReply = "server busy, try again later\r\n"

// Config bounds the acceptor.
type Config struct {
	ListenAddr  string
	MaxSessions int
	Session     term.Config
}

// DefaultConfig returns acceptor defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr:  ":2323",
		MaxSessions: 128,
		Session:     term.DefaultConfig(),
	}
}

// SessionInfo is one live session snapshot row for the admin endpoint.
type SessionInfo struct {
	ID         string    `json:"id"`
	RemoteAddr string    `json:"remote_addr"`
	StartedAt  time.Time `json:"started_at"`
}

// Server accepts connections and runs one session task per client, bounded
// by a fixed admission limit. Each accepted socket is registered with the
// shared registry before its session task starts.
type Server struct {
	cfg Config
	reg *registry.Registry

	mu       sync.Mutex
	sessions map[string]SessionInfo
	wg       sync.WaitGroup
	slots    chan struct{}

	lnMu sync.Mutex
	ln   net.Listener
}

// New validates config and constructs an idle server bound to a registry.
func New(cfg Config, reg *registry.Registry) (*Server, error) {
	if cfg.ListenAddr == "" {
		return nil, ErrInvalidListenAddr
	}
	if cfg.MaxSessions < 1 {
		return nil, ErrInvalidMaxSession
	}
	cfg.Session = cfg.Session.WithDefaults()
	if err := cfg.Session.Validate(); err != nil {
		return nil, err
	}
	return &Server{
		cfg:      cfg,
		reg:      reg,
		sessions: make(map[string]SessionInfo),
		slots:    make(chan struct{}, cfg.MaxSessions),
	}, nil
}

// Serve listens and accepts until ctx is cancelled. Each accepted client is
// admitted against the session bound, registered, and handed to its own
// session goroutine.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	s.lnMu.Lock()
	s.ln = ln
	s.lnMu.Unlock()
	defer ln.Close()
	log.Info().Str("addr", ln.Addr().String()).Int("max_sessions", s.cfg.MaxSessions).Msg("server listening")

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		select {
		case s.slots <- struct{}{}:
		default:
			s.rejectBusy(conn)
			continue
		}

		id := uuid.NewString()
		lease := s.reg.RegisterSocket(conn)
		s.track(id, conn.RemoteAddr().String())
		s.wg.Add(1)
		go s.runSession(id, conn, lease)
	}
}

// Addr reports the bound listen address once Serve has started.
func (s *Server) Addr() string {
	s.lnMu.Lock()
	defer s.lnMu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Wait blocks until every session goroutine has returned.
func (s *Server) Wait() {
	s.wg.Wait()
}

// Snapshot returns live session rows sorted by start time.
func (s *Server) Snapshot() []SessionInfo {
	s.mu.Lock()
	out := make([]SessionInfo, 0, len(s.sessions))
	for _, info := range s.sessions {
		out = append(out, info)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// SessionCount reports the number of live sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) runSession(id string, conn net.Conn, lease *registry.SocketLease) {
	remote := conn.RemoteAddr().String()
	started := time.Now()
	observability.RecordSessionOpened()
	log.Info().Str("session", id).Str("remote", remote).Msg("client connected")

	defer func() {
		s.untrack(id)
		<-s.slots
		s.wg.Done()
	}()

	sess, err := term.NewSession(id, conn, lease, s.reg, s.cfg.Session)
	if err != nil {
		// Precondition failure: the session never started and NewSession
		// already released the socket lease.
		observability.RecordSessionClosed(0, 0, time.Since(started))
		log.Warn().Str("session", id).Err(err).Msg("session rejected by precondition")
		return
	}

	err = sess.Run()
	observability.RecordSessionClosed(sess.BytesRead(), sess.Lines(), time.Since(started))
	if err != nil {
		log.Warn().Str("session", id).Str("remote", remote).Err(err).Msg("session aborted")
		return
	}
	log.Info().Str("session", id).Str("remote", remote).Msg("client disconnected")
}

func (s *Server) rejectBusy(conn net.Conn) {
	observability.RecordSessionRejected()
	log.Warn().Str("remote", conn.RemoteAddr().String()).Msg("session rejected: admission bound reached")
	_ = conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	_, _ = conn.Write([]byte(busyReply))
	_ = conn.Close()
}

func (s *Server) track(id, remote string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = SessionInfo{ID: id, RemoteAddr: remote, StartedAt: time.Now()}
}

func (s *Server) untrack(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}
