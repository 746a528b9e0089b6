// Package token defines the Token type consumed by internal/parser and
// internal/grammar. spec.md §3 treats the token stream as opaque to the
// core ("tokenizer/lexer details" are listed as out of scope in §1): the
// combinators and grammar only ever index a random-access slice of
// Token by position. Lex below is a minimal scanner provided so the
// grammar can be exercised against literal DSL source in tests; it is
// not part of the specified core surface.
package token

import "fmt"

// Kind classifies a Token.
type Kind int

const (
	EOF Kind = iota
	Identifier
	Keyword
	IntLiteral
	FloatLiteral
	StringLiteral
	BoolLiteral
	Operator
	Delimiter
)

func (k Kind) String() string {
	switch k {
	case EOF:
		return "EOF"
	case Identifier:
		return "Identifier"
	case Keyword:
		return "Keyword"
	case IntLiteral:
		return "IntLiteral"
	case FloatLiteral:
		return "FloatLiteral"
	case StringLiteral:
		return "StringLiteral"
	case BoolLiteral:
		return "BoolLiteral"
	case Operator:
		return "Operator"
	case Delimiter:
		return "Delimiter"
	default:
		return "Unknown"
	}
}

// Token is one lexical unit. Location fields support the checker's
// error-location surfacing (spec.md §4.3, §7).
type Token struct {
	Kind Kind
	Text string
	Line int
	Col  int
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d:%d", t.Kind, t.Text, t.Line, t.Col)
}

// Location renders the "(at <location>)" suffix used by spec.md §7's
// deterministic error text.
func (t Token) Location() string {
	return fmt.Sprintf("%d:%d", t.Line, t.Col)
}

var keywords = map[string]bool{
	"micro": true, "world": true, "state": true, "lifecycle": true,
	"onInit": true, "onDestroy": true, "observe": true, "answer": true,
	"react": true, "on": true, "request": true, "with": true,
	"return": true, "emit": true, "if": true, "else": true,
	"Ok": true, "Err": true, "await": true, "think": true,
	"true": true, "false": true, "null": true,
	"on_fail": true, "rethrow": true, "as": true, "self": true,
}

// IsKeyword reports whether text is a reserved DSL keyword.
func IsKeyword(text string) bool { return keywords[text] }
