package term

import (
	"bytes"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/termctl/termctl/internal/testutil/testlog"
)

func newTestEngine(t *testing.T, out *bytes.Buffer, cfg Config) *Engine {
	t.Helper()
	cfg = cfg.WithDefaults()
	e, err := NewEngine(out, make([]byte, 0, cfg.MaxLineLen), NewHistory(cfg.HistoryMax), cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func feed(t *testing.T, e *Engine, input string) {
	t.Helper()
	for i := 0; i < len(input); i++ {
		action, err := e.Process(input[i])
		if err != nil {
			t.Fatalf("process byte %d (%#x): %v", i, input[i], err)
		}
		if action != ActionContinue {
			t.Fatalf("byte %d (%#x) terminated the session", i, input[i])
		}
	}
}

func TestPrintableBytesEchoAndAccumulate(t *testing.T) {
	testlog.Start(t)
	var out bytes.Buffer
	e := newTestEngine(t, &out, Config{})

	feed(t, e, "hello world")
	if e.Line() != "hello world" {
		t.Fatalf("unexpected edit buffer: %q", e.Line())
	}
	if out.String() != "hello world" {
		t.Fatalf("unexpected echo: %q", out.String())
	}
}

// For sequences of printable bytes the buffer equals the input and every
// byte is echoed exactly once, regardless of content.
func TestPrintablePropertyRandomized(t *testing.T) {
	testlog.Start(t)
	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 50; trial++ {
		n := 1 + rng.Intn(64)
		input := make([]byte, n)
		for i := range input {
			input[i] = byte(0x20 + rng.Intn(0x5F))
		}

		var out bytes.Buffer
		e := newTestEngine(t, &out, Config{})
		feed(t, e, string(input))

		if e.Line() != string(input) {
			t.Fatalf("trial %d: buffer %q != input %q", trial, e.Line(), input)
		}
		if out.String() != string(input) {
			t.Fatalf("trial %d: echo %q != input %q", trial, out.String(), input)
		}
	}
}

func TestSubmitEvaluatesAndReprompts(t *testing.T) {
	testlog.Start(t)
	var out bytes.Buffer
	e := newTestEngine(t, &out, Config{})

	feed(t, e, "help\r")
	if e.Line() != "" {
		t.Fatalf("buffer not cleared after submit: %q", e.Line())
	}
	want := "help\r\ncommands: help, version, whoami, history\r\n> "
	if out.String() != want {
		t.Fatalf("unexpected output:\n got %q\nwant %q", out.String(), want)
	}
}

func TestSubmitEmptyLineOnlyReprompts(t *testing.T) {
	testlog.Start(t)
	var out bytes.Buffer
	e := newTestEngine(t, &out, Config{})

	feed(t, e, "\r")
	if out.String() != "\r\n> " {
		t.Fatalf("unexpected output: %q", out.String())
	}
	feed(t, e, "\n")
	if out.String() != "\r\n> \r\n> " {
		t.Fatalf("unexpected output after LF: %q", out.String())
	}
}

func TestTerminateBytes(t *testing.T) {
	testlog.Start(t)
	for _, b := range []byte{0x03, 0x04} {
		var out bytes.Buffer
		e := newTestEngine(t, &out, Config{})
		action, err := e.Process(b)
		if err != nil {
			t.Fatalf("byte %#x: %v", b, err)
		}
		if action != ActionTerminate {
			t.Fatalf("byte %#x must terminate the session", b)
		}
		if out.Len() != 0 {
			t.Fatalf("terminate must produce no output, got %q", out.String())
		}
	}
}

func TestBackspaceErasesLastByte(t *testing.T) {
	testlog.Start(t)
	for _, b := range []byte{'\b', 0x7F} {
		var out bytes.Buffer
		e := newTestEngine(t, &out, Config{})
		feed(t, e, "ab")
		out.Reset()

		feed(t, e, string(b))
		if e.Line() != "a" {
			t.Fatalf("byte %#x: unexpected buffer %q", b, e.Line())
		}
		if out.String() != "\b \b" {
			t.Fatalf("byte %#x: unexpected erase sequence %q", b, out.String())
		}
	}
}

func TestBackspaceOnEmptyBufferIsSilent(t *testing.T) {
	testlog.Start(t)
	var out bytes.Buffer
	e := newTestEngine(t, &out, Config{})
	feed(t, e, "\b")
	if out.Len() != 0 {
		t.Fatalf("backspace on empty buffer must write nothing, got %q", out.String())
	}
}

func TestControlBytesIgnored(t *testing.T) {
	testlog.Start(t)
	var out bytes.Buffer
	e := newTestEngine(t, &out, Config{})
	feed(t, e, "\x00\x01\x02\x05\x07\x0b")
	if e.Line() != "" || out.Len() != 0 {
		t.Fatalf("control bytes must be ignored: buf=%q out=%q", e.Line(), out.String())
	}
}

// ESC followed by a non-'[' byte behaves exactly as if the byte had arrived
// in Normal state.
func TestEscapeFallbackRedispatch(t *testing.T) {
	testlog.Start(t)
	for _, tail := range []string{"x", "\r", "\b"} {
		var direct, escaped bytes.Buffer

		e1 := newTestEngine(t, &direct, Config{})
		feed(t, e1, "ab"+tail)

		e2 := newTestEngine(t, &escaped, Config{})
		feed(t, e2, "ab\x1b"+tail)

		if direct.String() != escaped.String() {
			t.Fatalf("tail %q: direct %q != escaped %q", tail, direct.String(), escaped.String())
		}
		if e1.Line() != e2.Line() {
			t.Fatalf("tail %q: buffers diverge %q vs %q", tail, e1.Line(), e2.Line())
		}
	}
}

func TestEscapeFallbackTerminate(t *testing.T) {
	testlog.Start(t)
	var out bytes.Buffer
	e := newTestEngine(t, &out, Config{})
	feed(t, e, "\x1b")
	action, err := e.Process(0x04)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if action != ActionTerminate {
		t.Fatalf("EOT after ESC must terminate via fallback")
	}
}

func TestCSIFallbackRedispatch(t *testing.T) {
	testlog.Start(t)
	var out bytes.Buffer
	e := newTestEngine(t, &out, Config{})
	feed(t, e, "\x1b[Z")
	// 'Z' is no arrow: it falls back to Normal and is inserted as printable.
	if e.Line() != "Z" {
		t.Fatalf("unexpected buffer: %q", e.Line())
	}
	if e.State() != StateNormal {
		t.Fatalf("parser stuck in state %d", e.State())
	}
}

func TestArrowUpRecallsAndRedraws(t *testing.T) {
	testlog.Start(t)
	var out bytes.Buffer
	e := newTestEngine(t, &out, Config{})

	feed(t, e, "help\r")
	out.Reset()

	feed(t, e, "\x1b[A")
	if e.Line() != "help" {
		t.Fatalf("recall did not replace the buffer: %q", e.Line())
	}
	want := "\r\x1b[K> help"
	if out.String() != want {
		t.Fatalf("unexpected redraw: got %q want %q", out.String(), want)
	}
}

func TestArrowUpDownRestoresDraft(t *testing.T) {
	testlog.Start(t)
	var out bytes.Buffer
	e := newTestEngine(t, &out, Config{})

	feed(t, e, "one\rtwo\r")
	feed(t, e, "dra")
	feed(t, e, "\x1b[A\x1b[A\x1b[B\x1b[B")
	if e.Line() != "dra" {
		t.Fatalf("draft not restored: %q", e.Line())
	}
}

func TestArrowUpOnEmptyHistoryWritesNothing(t *testing.T) {
	testlog.Start(t)
	var out bytes.Buffer
	e := newTestEngine(t, &out, Config{})
	feed(t, e, "\x1b[A")
	if out.Len() != 0 {
		t.Fatalf("recall on empty history must write nothing, got %q", out.String())
	}
}

func TestArrowRightLeftNoEffect(t *testing.T) {
	testlog.Start(t)
	var out bytes.Buffer
	e := newTestEngine(t, &out, Config{})
	feed(t, e, "ab")
	out.Reset()
	feed(t, e, "\x1b[C\x1b[D")
	if e.Line() != "ab" || out.Len() != 0 {
		t.Fatalf("right/left must be inert: buf=%q out=%q", e.Line(), out.String())
	}
}

func TestMaxLineRejectPolicy(t *testing.T) {
	testlog.Start(t)
	var out bytes.Buffer
	e := newTestEngine(t, &out, Config{MaxLineLen: 4, LimitPolicy: LimitReject})

	feed(t, e, "abcd")
	_, err := e.Process('e')
	if !errors.Is(err, ErrLineTooLong) {
		t.Fatalf("expected ErrLineTooLong, got %v", err)
	}
}

func TestMaxLineDiscardPolicy(t *testing.T) {
	testlog.Start(t)
	var out bytes.Buffer
	e := newTestEngine(t, &out, Config{MaxLineLen: 4, LimitPolicy: LimitDiscard})

	feed(t, e, "abcde")
	if e.Line() != "abcd" {
		t.Fatalf("unexpected buffer: %q", e.Line())
	}
	if out.String() != "abcd" {
		t.Fatalf("discarded byte must not echo: %q", out.String())
	}
}

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return len(p) - 1, nil
}

func TestShortWriteIsFatal(t *testing.T) {
	testlog.Start(t)
	cfg := Config{}.WithDefaults()
	e, err := NewEngine(shortWriter{}, make([]byte, 0, cfg.MaxLineLen), NewHistory(cfg.HistoryMax), cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if _, err := e.Process('a'); !errors.Is(err, ErrShortWrite) {
		t.Fatalf("expected ErrShortWrite, got %v", err)
	}
}

type failingWriter struct{ err error }

func (w failingWriter) Write(p []byte) (int, error) {
	return 0, w.err
}

func TestWriteErrorIsFatal(t *testing.T) {
	testlog.Start(t)
	boom := errors.New("boom")
	cfg := Config{}.WithDefaults()
	e, err := NewEngine(failingWriter{err: boom}, make([]byte, 0, cfg.MaxLineLen), NewHistory(cfg.HistoryMax), cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if _, err := e.Process('\r'); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
}

func TestGreetWritesBannerAndPrompt(t *testing.T) {
	testlog.Start(t)
	var out bytes.Buffer
	e := newTestEngine(t, &out, Config{Banner: "welcome"})
	if err := e.Greet(); err != nil {
		t.Fatalf("greet: %v", err)
	}
	if out.String() != "welcome\r\n> " {
		t.Fatalf("unexpected greeting: %q", out.String())
	}
}

func TestGreetDefaultIsPromptOnly(t *testing.T) {
	testlog.Start(t)
	var out bytes.Buffer
	e := newTestEngine(t, &out, Config{})
	if err := e.Greet(); err != nil {
		t.Fatalf("greet: %v", err)
	}
	if out.String() != "> " {
		t.Fatalf("unexpected greeting: %q", out.String())
	}
}

func TestCustomEvaluator(t *testing.T) {
	testlog.Start(t)
	var out bytes.Buffer
	e := newTestEngine(t, &out, Config{
		Evaluator: EvaluatorFunc(func(line string) string {
			return strings.ToUpper(line)
		}),
	})
	feed(t, e, "shout\r")
	if !strings.Contains(out.String(), "SHOUT\r\n") {
		t.Fatalf("custom evaluator response missing: %q", out.String())
	}
}

func TestConfigValidate(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name string
		cfg  Config
		want error
	}{
		{"empty prompt", Config{MaxLineLen: 16, HistoryMax: 4, LimitPolicy: LimitReject}, ErrInvalidPrompt},
		{"tiny buffer", Config{Prompt: "> ", MaxLineLen: 1, HistoryMax: 4, LimitPolicy: LimitReject}, ErrInvalidMaxLineLen},
		{"no history", Config{Prompt: "> ", MaxLineLen: 16, HistoryMax: 0, LimitPolicy: LimitReject}, ErrInvalidHistoryMax},
		{"bad policy", Config{Prompt: "> ", MaxLineLen: 16, HistoryMax: 4, LimitPolicy: "explode"}, ErrInvalidLimitPolicy},
	}
	for _, tc := range cases {
		if err := tc.cfg.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}
