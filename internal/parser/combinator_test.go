package parser

import (
	"testing"

	"github.com/kairei/agent-runtime/internal/token"
)

func ident(text string) token.Token { return token.Token{Kind: token.Identifier, Text: text} }
func delim(text string) token.Token { return token.Token{Kind: token.Delimiter, Text: text} }

func TestEqualConsumesMatchingToken(t *testing.T) {
	input := []token.Token{ident("a")}
	pos, got, err := Equal(ident("a"))(input, 0)
	if err != nil {
		t.Fatalf("Equal() error = %v", err)
	}
	if pos != 1 || got.Text != "a" {
		t.Errorf("got (%d, %v), want (1, a)", pos, got)
	}
}

func TestEqualFailsOnMismatch(t *testing.T) {
	input := []token.Token{ident("b")}
	_, _, err := Equal(ident("a"))(input, 0)
	if err == nil {
		t.Fatal("expected error on mismatch")
	}
}

func TestChoiceFailThenPEquivalentToP(t *testing.T) {
	// Choice([Fail, p]) ≡ p  (spec.md §8 combinator law)
	p := Equal(ident("a"))
	choice := Choice([]Parser[token.Token]{FailP[token.Token]("nope"), p})

	input := []token.Token{ident("a")}
	pos1, v1, err1 := p(input, 0)
	pos2, v2, err2 := choice(input, 0)

	if err1 != nil || err2 != nil {
		t.Fatalf("unexpected errors: %v, %v", err1, err2)
	}
	if pos1 != pos2 || v1 != v2 {
		t.Errorf("Choice([Fail, p]) != p: (%d,%v) vs (%d,%v)", pos1, v1, pos2, v2)
	}
}

func TestSequenceAdvancesBySumOfPositions(t *testing.T) {
	input := []token.Token{ident("a"), ident("b")}
	seq := Sequence([]Parser[token.Token]{Equal(ident("a")), Equal(ident("b"))})
	pos, vs, err := seq(input, 0)
	if err != nil {
		t.Fatalf("Sequence() error = %v", err)
	}
	if pos != 2 || len(vs) != 2 {
		t.Errorf("got (%d, %v), want (2, [a b])", pos, vs)
	}
}

func TestDelimitedFailsIfAnyPartFails(t *testing.T) {
	input := []token.Token{delim("("), ident("x")} // missing closing ")"
	p := Delimited(Equal(delim("(")), Equal(ident("x")), Equal(delim(")")))
	if _, _, err := p(input, 0); err == nil {
		t.Fatal("expected failure when the closing delimiter is missing")
	}
}

func TestManyOnEmptyInputReturnsEmptySequenceAtPosition(t *testing.T) {
	// Many on empty input returns the empty sequence at the input position
	// (spec.md §8 property 1).
	var input []token.Token
	pos, vs, err := Many(Equal(ident("a")))(input, 0)
	if err != nil {
		t.Fatalf("Many() error = %v", err)
	}
	if pos != 0 || len(vs) != 0 {
		t.Errorf("got (%d, %v), want (0, [])", pos, vs)
	}
}

func TestMany1FailsOnNoMatch(t *testing.T) {
	input := []token.Token{ident("b")}
	if _, _, err := Many1(Equal(ident("a")))(input, 0); err == nil {
		t.Fatal("expected Many1 to fail with zero matches")
	}
}

func TestSeparatedListTrailingComma(t *testing.T) {
	// S5 — [a , b ,] with item=Identifier, sep="," yields [a, b], consumes all 3 tokens.
	input := []token.Token{ident("a"), delim(","), ident("b"), delim(",")}
	item := Satisfy(func(tk token.Token) bool { return tk.Kind == token.Identifier }, "identifier")
	sep := Equal(delim(","))

	pos, vs, err := SeparatedList(item, sep)(input, 0)
	if err != nil {
		t.Fatalf("SeparatedList() error = %v", err)
	}
	if len(vs) != 2 || vs[0].Text != "a" || vs[1].Text != "b" {
		t.Errorf("got %v, want [a b]", vs)
	}
	if pos != 4 {
		t.Errorf("pos = %d, want 4 (all tokens consumed)", pos)
	}
}

func TestSeparatedListEmptySucceeds(t *testing.T) {
	var input []token.Token
	item := Satisfy(func(tk token.Token) bool { return tk.Kind == token.Identifier }, "identifier")
	pos, vs, err := SeparatedList(item, Equal(delim(",")))(input, 0)
	if err != nil {
		t.Fatalf("SeparatedList() error = %v", err)
	}
	if pos != 0 || len(vs) != 0 {
		t.Errorf("got (%d, %v), want (0, [])", pos, vs)
	}
}

func TestOptionalDoesNotConsumeOnFailure(t *testing.T) {
	input := []token.Token{ident("b")}
	pos, v, err := Optional(Equal(ident("a")))(input, 0)
	if err != nil {
		t.Fatalf("Optional() error = %v", err)
	}
	if pos != 0 || v != nil {
		t.Errorf("got (%d, %v), want (0, nil)", pos, v)
	}
}

func TestLazySupportsRecursion(t *testing.T) {
	var expr Parser[token.Token]
	expr = Lazy(func() Parser[token.Token] { return Equal(ident("x")) })
	input := []token.Token{ident("x")}
	pos, v, err := expr(input, 0)
	if err != nil || pos != 1 || v.Text != "x" {
		t.Errorf("Lazy() = (%d, %v, %v)", pos, v, err)
	}
}

func TestWithContextPreservesInner(t *testing.T) {
	p := WithContext(FailP[token.Token]("inner failure"), "parsing agent")
	_, _, err := p(nil, 0)
	pe, ok := AsParseError(err)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if pe.Kind != WithContextKind || pe.Inner == nil {
		t.Errorf("got %+v, want WithContext wrapping an inner error", pe)
	}
}
