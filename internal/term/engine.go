package term

import (
	"fmt"
	"io"
)

// ParserState enumerates the input decoder states. Normal is both the
// initial state and the fallback target of the other two.
type ParserState int

const (
	StateNormal ParserState = iota
	StateEscape
	StateCSI
)

// Action is the session-level outcome of processing one input byte.
type Action int

const (
	ActionContinue Action = iota
	ActionTerminate
)

const (
	byteETX = 0x03
	byteEOT = 0x04
	byteESC = 0x1B
	byteDEL = 0x7F
)

// Engine is the per-session input protocol state machine. It owns the edit
// buffer and the parser state, mutates the history on submit and recall,
// and writes every echo/control byte to the transport. Any write shortfall
// or failure is fatal to the session.
type Engine struct {
	w       io.Writer
	cfg     Config
	state   ParserState
	buf     []byte
	history *History
}

// NewEngine wires a validated config to a transport writer, a leased edit
// buffer, and the session history. buf must arrive with zero length; the
// engine never grows it past cfg.MaxLineLen.
func NewEngine(w io.Writer, buf []byte, history *History, cfg Config) (*Engine, error) {
	if w == nil {
		return nil, ErrNilTransport
	}
	if history == nil {
		return nil, ErrNilHistory
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		w:       w,
		cfg:     cfg,
		state:   StateNormal,
		buf:     buf[:0],
		history: history,
	}, nil
}

// Greet sends the optional banner and the first prompt. Called once before
// the read loop starts.
func (e *Engine) Greet() error {
	if e.cfg.Banner != "" {
		if err := e.writeAll([]byte(e.cfg.Banner + "\r\n")); err != nil {
			return err
		}
	}
	return e.writePrompt()
}

// Process consumes exactly one received byte and returns whether the
// session continues or terminates. A non-nil error is always fatal to the
// session, never retried.
func (e *Engine) Process(b byte) (Action, error) {
	switch e.state {
	case StateEscape:
		return e.processEscape(b)
	case StateCSI:
		return e.processCSI(b)
	default:
		return e.processNormal(b)
	}
}

// Line returns the current edit buffer contents.
func (e *Engine) Line() string {
	return string(e.buf)
}

// State returns the current parser state.
func (e *Engine) State() ParserState {
	return e.state
}

func (e *Engine) processNormal(b byte) (Action, error) {
	switch {
	case b == byteETX || b == byteEOT:
		return ActionTerminate, nil
	case b == '\r' || b == '\n':
		return ActionContinue, e.submit()
	case b == byteESC:
		e.state = StateEscape
		return ActionContinue, nil
	case b == '\b' || b == byteDEL:
		return ActionContinue, e.erase()
	case isPrintable(b):
		return ActionContinue, e.insert(b)
	default:
		// Remaining control bytes are ignored without output.
		return ActionContinue, nil
	}
}

func (e *Engine) processEscape(b byte) (Action, error) {
	if b == '[' {
		e.state = StateCSI
		return ActionContinue, nil
	}
	// Not a CSI: fall back and re-dispatch the same byte in Normal state.
	e.state = StateNormal
	return e.processNormal(b)
}

func (e *Engine) processCSI(b byte) (Action, error) {
	e.state = StateNormal
	switch b {
	case 'A':
		return ActionContinue, e.recallUp()
	case 'B':
		return ActionContinue, e.recallDown()
	case 'C', 'D':
		// Right/Left are reserved for in-line cursor movement.
		return ActionContinue, nil
	default:
		return e.processNormal(b)
	}
}

func (e *Engine) submit() error {
	if err := e.writeAll([]byte("\r\n")); err != nil {
		return err
	}
	if len(e.buf) > 0 {
		line := string(e.buf)
		if reply := e.cfg.Evaluator.Evaluate(line); reply != "" {
			if err := e.writeAll([]byte(reply + "\r\n")); err != nil {
				return err
			}
		}
		e.history.Commit(line)
		e.buf = e.buf[:0]
	}
	return e.writePrompt()
}

func (e *Engine) erase() error {
	if len(e.buf) == 0 {
		return nil
	}
	e.buf = e.buf[:len(e.buf)-1]
	return e.writeAll([]byte("\b \b"))
}

func (e *Engine) insert(b byte) error {
	if len(e.buf) >= e.cfg.MaxLineLen {
		if e.cfg.LimitPolicy == LimitDiscard {
			return nil
		}
		return fmt.Errorf("%w: %d bytes", ErrLineTooLong, e.cfg.MaxLineLen)
	}
	e.buf = append(e.buf, b)
	return e.writeAll([]byte{b})
}

func (e *Engine) recallUp() error {
	line, ok := e.history.RecallUp(string(e.buf))
	if !ok {
		return nil
	}
	return e.redraw(line)
}

func (e *Engine) recallDown() error {
	line, ok := e.history.RecallDown()
	if !ok {
		return nil
	}
	return e.redraw(line)
}

// redraw replaces the edit buffer with a recalled line and repaints it:
// carriage return, clear-line, prompt, line.
func (e *Engine) redraw(line string) error {
	e.buf = append(e.buf[:0], line...)
	return e.writeAll([]byte("\r\x1b[K" + e.cfg.Prompt + line))
}

func (e *Engine) writePrompt() error {
	return e.writeAll([]byte(e.cfg.Prompt))
}

func (e *Engine) writeAll(p []byte) error {
	n, err := e.w.Write(p)
	if err != nil {
		return fmt.Errorf("term: transport write: %w", err)
	}
	if n < len(p) {
		return ErrShortWrite
	}
	return nil
}

func isPrintable(b byte) bool {
	return b >= 0x20 && b <= 0x7E
}
