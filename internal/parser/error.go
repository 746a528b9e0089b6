// Package parser implements KAIREI's parser combinators: pure functions
// over a random-access token slice that compose into the DSL grammar
// (spec.md §4.1, grounded on kairei-core/src/analyzer/combinators.rs).
package parser

import (
	"fmt"

	"github.com/kairei/agent-runtime/pkg/errkit"
)

// ErrorKind discriminates ParseError (spec.md §4.1 / §7).
type ErrorKind int

const (
	EOF ErrorKind = iota
	Fail
	NoAlternative
	WithContextKind
)

// Span is the token-index range an error covers, when known.
type Span struct {
	Start int
	End   int
}

// Error is the parser combinator error type. It implements the
// standard error interface and preserves an inner cause for
// WithContext decoration.
type Error struct {
	Kind  ErrorKind
	Msg   string
	Inner *Error
	Span  *Span
}

func (e *Error) Error() string {
	switch e.Kind {
	case EOF:
		return "unexpected end of input"
	case Fail:
		return errkit.Format("ParseError", e.Msg, e.spanString(), "")
	case NoAlternative:
		return "no alternative matched"
	case WithContextKind:
		if e.Inner != nil {
			return errkit.Format("ParseError", fmt.Sprintf("%s: %s", e.Msg, e.Inner.Error()), e.spanString(), "")
		}
		return e.Msg
	default:
		return "parse error"
	}
}

func (e *Error) Unwrap() error {
	if e.Inner == nil {
		return nil
	}
	return e.Inner
}

func (e *Error) spanString() string {
	if e.Span == nil {
		return ""
	}
	return fmt.Sprintf("token %d-%d", e.Span.Start, e.Span.End)
}

// Location implements the shared Location() accessor every component
// error kind exposes (spec.md §7); a parser.Error carries a token-index
// Span rather than a file/line/col, so file holds the same "token N-M"
// text spanString renders.
func (e *Error) Location() (file string, line, col int, ok bool) {
	s := e.spanString()
	return s, 0, 0, s != ""
}

func errEOF() *Error { return &Error{Kind: EOF} }

func errFail(msg string) *Error { return &Error{Kind: Fail, Msg: msg} }

func errNoAlternative() *Error { return &Error{Kind: NoAlternative} }

func errWithContext(msg string, inner *Error, span *Span) *Error {
	return &Error{Kind: WithContextKind, Msg: msg, Inner: inner, Span: span}
}

// AsParseError extracts the *Error from a generic error, if any.
func AsParseError(err error) (*Error, bool) {
	pe, ok := err.(*Error)
	return pe, ok
}
