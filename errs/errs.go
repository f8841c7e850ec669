// Package errs defines the error taxonomy raised by the compiler and
// interpreter: CompileError at compile time; ParsingError, EndOfStream,
// ArithmeticError and UnknownField at parse time; TransportError when the
// underlying byte source fails.
package errs

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Use errors.Is against these to classify a failure without
// caring about the enriching path/cause.
var (
	ErrEndOfStream    = errors.New("end of stream")
	ErrArithmetic     = errors.New("arithmetic error")
	ErrUnknownField   = errors.New("unknown field")
	ErrCompile        = errors.New("compile error")
	ErrTransport      = errors.New("transport error")
	ErrNegativeLength = errors.New("negative array length")
)

// ParsingError enriches a lower-level failure with the dotted field path
// that was being read when it happened. An unnamed site wraps the same
// sentinel but with an empty Path.
type ParsingError struct {
	Path string
	Kind error // one of the Err* sentinels above, or nil for a generic ParsingError
	Err  error // the underlying cause
}

func (e *ParsingError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("parsing error: %v", e.Err)
	}
	return fmt.Sprintf("parsing error at %s: %v", e.Path, e.Err)
}

func (e *ParsingError) Unwrap() error {
	if e.Kind != nil {
		return e.Kind
	}
	return e.Err
}

// Parsing wraps cause as a ParsingError carrying the given field path. An
// empty path means the failing site was unnamed, per spec: unnamed-site
// failures propagate unchanged where possible, but are still classifiable
// via errors.Is.
func Parsing(path string, cause error) error {
	return &ParsingError{Path: path, Err: cause}
}

// ParsingKind is like Parsing but also tags the error with one of the
// sentinel kinds, so callers can errors.Is(err, errs.ErrNegativeLength) etc.
func ParsingKind(path string, kind, cause error) error {
	return &ParsingError{Path: path, Kind: kind, Err: cause}
}

// EndOfStream wraps ErrEndOfStream with a message. Raised directly by
// bitstream.Reader; the interpreter re-wraps it with a field path via
// Parsing when the failing site is named.
func EndOfStream(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrEndOfStream)
}

// Arithmetic wraps ErrArithmetic, raised by eval on division by zero.
func Arithmetic(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrArithmetic)
}

// UnknownField wraps ErrUnknownField, raised by eval when a named-field
// reference cannot be resolved.
func UnknownField(name string) error {
	return fmt.Errorf("unresolved field reference %q: %w", name, ErrUnknownField)
}

// Compile wraps ErrCompile, raised only during Prepare.
func Compile(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrCompile)
}

// Transport wraps ErrTransport, raised when the underlying byte source
// itself fails (as opposed to being merely exhausted).
func Transport(cause error) error {
	return fmt.Errorf("transport failure: %w: %w", ErrTransport, cause)
}

// NegativeArrayLength wraps ErrNegativeLength, raised by the interpreter
// when an expression-evaluated array length is negative.
func NegativeArrayLength(path string, n int64) error {
	return ParsingKind(path, ErrNegativeLength, fmt.Errorf("array length %d is negative", n))
}
