package term

import "errors"

var (
	ErrShortWrite         = errors.New("term: short transport write")
	ErrLineTooLong        = errors.New("term: line exceeds configured maximum")
	ErrNilTransport       = errors.New("term: nil transport")
	ErrNilHistory         = errors.New("term: nil history")
	ErrInvalidPrompt      = errors.New("term: prompt must not be empty")
	ErrInvalidMaxLineLen  = errors.New("term: max line length too small")
	ErrInvalidHistoryMax  = errors.New("term: history capacity too small")
	ErrInvalidLimitPolicy = errors.New("term: invalid limit policy")
)
