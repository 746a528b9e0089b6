// Package typecheck implements the static type checker of spec.md §4.3:
// a scope-stack visitor that walks a parsed ast.Root and rejects agent
// definitions whose Think/Request/Return/BinaryOp/StateAccess contracts
// don't type, before they ever reach the registry.
//
// Grounded on internal/parser's ErrorKind+Error shape (error.go):
// typecheck.Error mirrors that pattern one layer up the pipeline, with
// its own taxonomy matching spec.md §7's TypeCheckError variants.
package typecheck

import (
	"fmt"

	"github.com/kairei/agent-runtime/pkg/errkit"
)

// ErrorKind is one of spec.md §7's TypeCheckError variants.
type ErrorKind int

const (
	UndefinedType ErrorKind = iota
	UndefinedVariable
	TypeMismatch
	TypeInferenceError
	InvalidHandlerSignature
	InvalidThinkBlock
	InvalidPluginConfig
	InvalidStateVariable
)

func (k ErrorKind) String() string {
	switch k {
	case UndefinedType:
		return "UndefinedType"
	case UndefinedVariable:
		return "UndefinedVariable"
	case TypeMismatch:
		return "TypeMismatch"
	case TypeInferenceError:
		return "TypeInferenceError"
	case InvalidHandlerSignature:
		return "InvalidHandlerSignature"
	case InvalidThinkBlock:
		return "InvalidThinkBlock"
	case InvalidPluginConfig:
		return "InvalidPluginConfig"
	case InvalidStateVariable:
		return "InvalidStateVariable"
	default:
		return "Unknown"
	}
}

// Error is a single type-checking failure. Expected/Found are only
// populated for TypeMismatch (spec.md §7 "TypeMismatch{expected, found,
// location}"); At is a best-effort human-readable pointer to the
// construct at fault (an agent/handler/statement name), since the AST
// carries no line/column information of its own.
type Error struct {
	Kind     ErrorKind
	Message  string
	Expected string
	Found    string
	At       string
}

func (e *Error) Error() string {
	if e.Expected != "" || e.Found != "" {
		return errkit.Format(e.Kind.String(), fmt.Sprintf("expected %s, found %s", e.Expected, e.Found), e.At, "")
	}
	return errkit.Format(e.Kind.String(), e.Message, e.At, "")
}

// Location implements the shared Location() accessor every component
// error kind exposes (spec.md §7); the AST carries no line/column
// information, only the construct name recorded in e.At.
func (e *Error) Location() (file string, line, col int, ok bool) {
	return e.At, 0, 0, e.At != ""
}

func errf(kind ErrorKind, location, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), At: location}
}

func mismatch(location, expected, found string) *Error {
	return &Error{Kind: TypeMismatch, Expected: expected, Found: found, At: location}
}

// AsError reports whether err is itself a *Error (a wrapped *Error is
// not unwrapped), mirroring parser.AsParseError's pattern.
func AsError(err error) (*Error, bool) {
	te, ok := err.(*Error)
	return te, ok
}
