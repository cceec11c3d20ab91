package term

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/termctl/termctl/internal/registry"
)

// Transport is the raw byte stream a session speaks over. net.Conn
// satisfies it; tests substitute in-memory pairs.
type Transport interface {
	io.Reader
	io.Writer
	io.Closer
}

// Session binds one transport to one protocol engine and drives the
// per-byte read loop. The session exclusively owns its engine, history, and
// leases; the only shared state it touches is the registry.
type Session struct {
	id        string
	transport Transport
	engine    *Engine
	history   *History
	sockLease *registry.SocketLease
	bufLease  *registry.BufferLease
	bytesRead int64
	lines     int64
}

// NewSession validates the config, leases an edit buffer from the registry,
// and wires the engine. On a precondition failure the socket lease is
// released immediately and the session never starts.
func NewSession(id string, transport Transport, sockLease *registry.SocketLease, reg *registry.Registry, cfg Config) (*Session, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		if sockLease != nil {
			sockLease.Release()
		}
		return nil, err
	}
	if transport == nil {
		if sockLease != nil {
			sockLease.Release()
		}
		return nil, ErrNilTransport
	}

	history := NewHistory(cfg.HistoryMax)
	s := &Session{
		id:        id,
		transport: transport,
		history:   history,
		sockLease: sockLease,
	}
	cfg.Evaluator = s.countingEvaluator(cfg.Evaluator)

	bufLease := reg.LeaseBuffer(cfg.MaxLineLen)
	engine, err := NewEngine(transport, bufLease.Bytes(), history, cfg)
	if err != nil {
		bufLease.Release()
		if sockLease != nil {
			sockLease.Release()
		}
		return nil, err
	}
	s.bufLease = bufLease
	s.engine = engine
	return s, nil
}

// ID returns the session identifier assigned by the acceptor.
func (s *Session) ID() string {
	return s.id
}

// BytesRead reports how many input bytes this session has consumed.
func (s *Session) BytesRead() int64 {
	return s.bytesRead
}

// Lines reports how many non-empty lines this session has submitted.
func (s *Session) Lines() int64 {
	return s.lines
}

// Run sends the greeting and processes the transport one byte at a time
// until the peer disconnects, the protocol terminates the session, or a
// transport/protocol error aborts it. Resources are released on every exit
// path; a shutdown sweep that got there first makes that release a no-op.
func (s *Session) Run() error {
	defer s.close()

	if err := s.engine.Greet(); err != nil {
		return err
	}

	var one [1]byte
	for {
		n, err := s.transport.Read(one[:])
		if err != nil {
			// Peer disconnect and sweep-forced close both surface here;
			// neither is a session fault.
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return fmt.Errorf("term: transport read: %w", err)
		}
		if n == 0 {
			continue
		}
		s.bytesRead++
		action, err := s.engine.Process(one[0])
		if err != nil {
			return err
		}
		if action == ActionTerminate {
			return nil
		}
	}
}

func (s *Session) close() {
	s.bufLease.Release()
	if s.sockLease != nil {
		s.sockLease.Release()
	} else {
		_ = s.transport.Close()
	}
}

// countingEvaluator wraps the configured evaluator to track submitted lines
// and to answer "history", which needs this session's recall state.
func (s *Session) countingEvaluator(inner Evaluator) Evaluator {
	return EvaluatorFunc(func(line string) string {
		s.lines++
		if line == "history" {
			return s.renderHistory()
		}
		return inner.Evaluate(line)
	})
}

// renderHistory lists committed lines oldest first, one per row.
func (s *Session) renderHistory() string {
	entries := s.history.Entries()
	if len(entries) == 0 {
		return "history is empty"
	}
	var b strings.Builder
	for i, line := range entries {
		if i > 0 {
			b.WriteString("\r\n")
		}
		fmt.Fprintf(&b, "%3d  %s", i+1, line)
	}
	return b.String()
}
