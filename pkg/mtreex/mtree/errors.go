package mtree

import (
	"errors"
	"fmt"
)

// Sentinel errors returned (wrapped in a *ParseError) by the parser.
var (
	// ErrMalformedHeader is returned when a "# user:"-style header line
	// appears after the leading comment block has ended.
	ErrMalformedHeader = errors.New("malformed header")

	// ErrUnknownType is returned for a type= value outside the seven known types.
	ErrUnknownType = errors.New("unknown entry type")

	// ErrInvalidKeywordValue is returned when a keyword value cannot be
	// coerced, e.g. mode=rwxr-xr-x or uid=root.
	ErrInvalidKeywordValue = errors.New("invalid keyword value")

	// ErrDuplicatePath is returned in strict mode when two items resolve to
	// the same path.
	ErrDuplicatePath = errors.New("duplicate path")
)

// ParseError records the manifest line a fatal error was found on.
type ParseError struct {
	// Line is the 1-based physical line number.
	Line int

	// Text is the offending logical line.
	Text string

	// Err is one of the sentinel errors, possibly wrapped with detail.
	Err error
}

// Error implements error.
func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// Unwrap returns the underlying error so errors.Is matches the sentinels.
func (e *ParseError) Unwrap() error {
	return e.Err
}
