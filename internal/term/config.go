package term

import "fmt"

// LimitPolicy controls what happens to a printable byte arriving while the
// edit buffer is already at its configured maximum.
type LimitPolicy string

const (
	// LimitReject terminates the session with an error.
	LimitReject LimitPolicy = "reject"
	// LimitDiscard drops the byte without echoing it.
	LimitDiscard LimitPolicy = "discard"
)

// Config defines per-session line discipline defaults.
type Config struct {
	Prompt      string
	Banner      string
	MaxLineLen  int
	HistoryMax  int
	LimitPolicy LimitPolicy
	Evaluator   Evaluator
}

// DefaultConfig returns the session defaults used by a bare server.
func DefaultConfig() Config {
	return Config{
		Prompt:      "> ",
		MaxLineLen:  256,
		HistoryMax:  64,
		LimitPolicy: LimitReject,
		Evaluator:   BuiltinEvaluator(),
	}
}

// WithDefaults fills zero-valued fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.Prompt == "" {
		c.Prompt = def.Prompt
	}
	if c.MaxLineLen == 0 {
		c.MaxLineLen = def.MaxLineLen
	}
	if c.HistoryMax == 0 {
		c.HistoryMax = def.HistoryMax
	}
	if c.LimitPolicy == "" {
		c.LimitPolicy = def.LimitPolicy
	}
	if c.Evaluator == nil {
		c.Evaluator = def.Evaluator
	}
	return c
}

// Validate rejects configurations a session must never start with.
func (c Config) Validate() error {
	if c.Prompt == "" {
		return ErrInvalidPrompt
	}
	if c.MaxLineLen < 2 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxLineLen, c.MaxLineLen)
	}
	if c.HistoryMax < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidHistoryMax, c.HistoryMax)
	}
	switch c.LimitPolicy {
	case LimitReject, LimitDiscard:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLimitPolicy, c.LimitPolicy)
	}
	return nil
}
