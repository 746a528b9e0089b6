package parser

import (
	"github.com/kairei/agent-runtime/internal/token"
	"github.com/kairei/agent-runtime/pkg/logger"
)

// Parser is a pure function from a token slice and a position to a new
// position plus a value, or a *Error. Implementations must not mutate
// input and must be cheap to invoke repeatedly (spec.md §4.1 contract:
// "combinators are values with cheap clones and no shared mutable
// state").
type Parser[O any] func(input []token.Token, pos int) (int, O, error)

// Equal succeeds when the current token equals want (by Kind and Text)
// and consumes it.
func Equal(want token.Token) Parser[token.Token] {
	return func(input []token.Token, pos int) (int, token.Token, error) {
		if pos >= len(input) {
			return pos, token.Token{}, errEOF()
		}
		got := input[pos]
		if got.Kind != want.Kind || got.Text != want.Text {
			return pos, token.Token{}, errFail("expected " + want.Text + ", found " + got.Text)
		}
		return pos + 1, got, nil
	}
}

// Satisfy succeeds and consumes the current token when pred holds.
func Satisfy(pred func(token.Token) bool, label string) Parser[token.Token] {
	return func(input []token.Token, pos int) (int, token.Token, error) {
		if pos >= len(input) {
			return pos, token.Token{}, errEOF()
		}
		got := input[pos]
		if !pred(got) {
			return pos, token.Token{}, errFail("expected " + label + ", found " + got.Text)
		}
		return pos + 1, got, nil
	}
}

// Identity unconditionally consumes and returns the current token.
func Identity() Parser[token.Token] {
	return func(input []token.Token, pos int) (int, token.Token, error) {
		if pos >= len(input) {
			return pos, token.Token{}, errEOF()
		}
		return pos + 1, input[pos], nil
	}
}

// Zero succeeds without consuming input, always returning v.
func Zero[O any](v O) Parser[O] {
	return func(_ []token.Token, pos int) (int, O, error) {
		return pos, v, nil
	}
}

// FailP always fails with msg, without consuming input.
func FailP[O any](msg string) Parser[O] {
	return func(_ []token.Token, pos int) (int, O, error) {
		var zero O
		return pos, zero, errFail(msg)
	}
}

// Preceded runs ignore then keep, returning keep's value; fails if
// either fails.
func Preceded[A, B any](ignore Parser[A], keep Parser[B]) Parser[B] {
	return func(input []token.Token, pos int) (int, B, error) {
		var zero B
		p1, _, err := ignore(input, pos)
		if err != nil {
			return pos, zero, err
		}
		p2, v, err := keep(input, p1)
		if err != nil {
			return pos, zero, err
		}
		return p2, v, nil
	}
}

// Delimited parses L, p, R in sequence and returns p's value. Fails iff
// any of its parts fails (spec.md §8 combinator law).
func Delimited[L, O, R any](l Parser[L], p Parser[O], r Parser[R]) Parser[O] {
	return func(input []token.Token, pos int) (int, O, error) {
		var zero O
		p1, _, err := l(input, pos)
		if err != nil {
			return pos, zero, err
		}
		p2, v, err := p(input, p1)
		if err != nil {
			return pos, zero, err
		}
		p3, _, err := r(input, p2)
		if err != nil {
			return pos, zero, err
		}
		return p3, v, nil
	}
}

// Pair, Triple, Quad, Quint, Sext are the result tuples for Tuple2..6.
type Pair[A, B any] struct {
	A A
	B B
}
type Triple[A, B, C any] struct {
	A A
	B B
	C C
}
type Quad[A, B, C, D any] struct {
	A A
	B B
	C C
	D D
}
type Quint[A, B, C, D, E any] struct {
	A A
	B B
	C C
	D D
	E E
}
type Sext[A, B, C, D, E, F any] struct {
	A A
	B B
	C C
	D D
	E E
	F F
}

func Tuple2[A, B any](pa Parser[A], pb Parser[B]) Parser[Pair[A, B]] {
	return func(input []token.Token, pos int) (int, Pair[A, B], error) {
		var zero Pair[A, B]
		p1, a, err := pa(input, pos)
		if err != nil {
			return pos, zero, err
		}
		p2, b, err := pb(input, p1)
		if err != nil {
			return pos, zero, err
		}
		return p2, Pair[A, B]{A: a, B: b}, nil
	}
}

func Tuple3[A, B, C any](pa Parser[A], pb Parser[B], pc Parser[C]) Parser[Triple[A, B, C]] {
	return func(input []token.Token, pos int) (int, Triple[A, B, C], error) {
		var zero Triple[A, B, C]
		p1, a, err := pa(input, pos)
		if err != nil {
			return pos, zero, err
		}
		p2, b, err := pb(input, p1)
		if err != nil {
			return pos, zero, err
		}
		p3, c, err := pc(input, p2)
		if err != nil {
			return pos, zero, err
		}
		return p3, Triple[A, B, C]{A: a, B: b, C: c}, nil
	}
}

func Tuple4[A, B, C, D any](pa Parser[A], pb Parser[B], pc Parser[C], pd Parser[D]) Parser[Quad[A, B, C, D]] {
	return func(input []token.Token, pos int) (int, Quad[A, B, C, D], error) {
		var zero Quad[A, B, C, D]
		p1, a, err := pa(input, pos)
		if err != nil {
			return pos, zero, err
		}
		p2, b, err := pb(input, p1)
		if err != nil {
			return pos, zero, err
		}
		p3, c, err := pc(input, p2)
		if err != nil {
			return pos, zero, err
		}
		p4, d, err := pd(input, p3)
		if err != nil {
			return pos, zero, err
		}
		return p4, Quad[A, B, C, D]{A: a, B: b, C: c, D: d}, nil
	}
}

func Tuple5[A, B, C, D, E any](pa Parser[A], pb Parser[B], pc Parser[C], pd Parser[D], pe Parser[E]) Parser[Quint[A, B, C, D, E]] {
	return func(input []token.Token, pos int) (int, Quint[A, B, C, D, E], error) {
		var zero Quint[A, B, C, D, E]
		p1, a, err := pa(input, pos)
		if err != nil {
			return pos, zero, err
		}
		p2, b, err := pb(input, p1)
		if err != nil {
			return pos, zero, err
		}
		p3, c, err := pc(input, p2)
		if err != nil {
			return pos, zero, err
		}
		p4, d, err := pd(input, p3)
		if err != nil {
			return pos, zero, err
		}
		p5, e, err := pe(input, p4)
		if err != nil {
			return pos, zero, err
		}
		return p5, Quint[A, B, C, D, E]{A: a, B: b, C: c, D: d, E: e}, nil
	}
}

func Tuple6[A, B, C, D, E, F any](pa Parser[A], pb Parser[B], pc Parser[C], pd Parser[D], pe Parser[E], pf Parser[F]) Parser[Sext[A, B, C, D, E, F]] {
	return func(input []token.Token, pos int) (int, Sext[A, B, C, D, E, F], error) {
		var zero Sext[A, B, C, D, E, F]
		p1, a, err := pa(input, pos)
		if err != nil {
			return pos, zero, err
		}
		p2, b, err := pb(input, p1)
		if err != nil {
			return pos, zero, err
		}
		p3, c, err := pc(input, p2)
		if err != nil {
			return pos, zero, err
		}
		p4, d, err := pd(input, p3)
		if err != nil {
			return pos, zero, err
		}
		p5, e, err := pe(input, p4)
		if err != nil {
			return pos, zero, err
		}
		p6, f, err := pf(input, p5)
		if err != nil {
			return pos, zero, err
		}
		return p6, Sext[A, B, C, D, E, F]{A: a, B: b, C: c, D: d, E: e, F: f}, nil
	}
}

// Sequence runs same-typed parsers in order, collecting their values.
// Advances by exactly the sum of positions consumed by each part
// (spec.md §8 combinator law).
func Sequence[O any](ps []Parser[O]) Parser[[]O] {
	return func(input []token.Token, pos int) (int, []O, error) {
		out := make([]O, 0, len(ps))
		cur := pos
		for _, p := range ps {
			next, v, err := p(input, cur)
			if err != nil {
				return pos, nil, err
			}
			out = append(out, v)
			cur = next
		}
		return cur, out, nil
	}
}

// Choice tries each alternative at the same starting position and
// returns the first success; NoAlternative if none succeed.
func Choice[O any](ps []Parser[O]) Parser[O] {
	return func(input []token.Token, pos int) (int, O, error) {
		var zero O
		if len(ps) == 0 {
			return pos, zero, errNoAlternative()
		}
		for _, p := range ps {
			next, v, err := p(input, pos)
			if err == nil {
				return next, v, nil
			}
		}
		return pos, zero, errNoAlternative()
	}
}

// Many matches p zero or more times and always succeeds. It swallows
// only the first failure after a successful prefix and logs it at WARN
// (spec.md §4.1 design contract).
func Many[O any](p Parser[O]) Parser[[]O] {
	return func(input []token.Token, pos int) (int, []O, error) {
		var out []O
		cur := pos
		for {
			next, v, err := p(input, cur)
			if err != nil {
				if pe, ok := AsParseError(err); ok {
					logger.Warn("parser.Many: stopping repetition", logger.FieldError, pe.Error())
				}
				break
			}
			if next == cur {
				// guard against zero-width infinite loops
				break
			}
			out = append(out, v)
			cur = next
		}
		return cur, out, nil
	}
}

// Many1 matches p one or more times; fails on the first failure (i.e.
// when zero matches were found).
func Many1[O any](p Parser[O]) Parser[[]O] {
	return func(input []token.Token, pos int) (int, []O, error) {
		next, v, err := p(input, pos)
		if err != nil {
			return pos, nil, err
		}
		out := []O{v}
		cur := next
		for {
			n2, v2, err := p(input, cur)
			if err != nil || n2 == cur {
				break
			}
			out = append(out, v2)
			cur = n2
		}
		return cur, out, nil
	}
}

// SeparatedList parses item parsers separated by sep, tolerating a
// trailing separator, and succeeds with an empty list on no matches
// (spec.md §8 S5 example).
func SeparatedList[O, S any](item Parser[O], sep Parser[S]) Parser[[]O] {
	return func(input []token.Token, pos int) (int, []O, error) {
		first, v, err := item(input, pos)
		if err != nil {
			return pos, nil, nil
		}
		out := []O{v}
		cur := first
		for {
			afterSep, _, err := sep(input, cur)
			if err != nil {
				break
			}
			next, v2, err := item(input, afterSep)
			if err != nil {
				// trailing separator tolerance: consume the sep and stop
				cur = afterSep
				break
			}
			out = append(out, v2)
			cur = next
		}
		return cur, out, nil
	}
}

// MapParser transforms a successful parse result with f.
func MapParser[A, B any](p Parser[A], f func(A) B) Parser[B] {
	return func(input []token.Token, pos int) (int, B, error) {
		var zero B
		next, v, err := p(input, pos)
		if err != nil {
			return pos, zero, err
		}
		return next, f(v), nil
	}
}

// AsUnit discards p's value on success.
func AsUnit[A any](p Parser[A]) Parser[struct{}] {
	return MapParser(p, func(A) struct{} { return struct{}{} })
}

// WithContext decorates a failure with msg while preserving the inner
// error and an approximate span.
func WithContext[O any](p Parser[O], msg string) Parser[O] {
	return func(input []token.Token, pos int) (int, O, error) {
		var zero O
		next, v, err := p(input, pos)
		if err == nil {
			return next, v, nil
		}
		inner, _ := AsParseError(err)
		span := &Span{Start: pos, End: pos}
		return pos, zero, errWithContext(msg, inner, span)
	}
}

// Lazy defers construction of the inner parser until first invocation,
// enabling recursive grammars.
func Lazy[O any](f func() Parser[O]) Parser[O] {
	return func(input []token.Token, pos int) (int, O, error) {
		return f()(input, pos)
	}
}

// Optional makes p succeed with a zero-value pointer when it fails,
// without consuming input. Not named in spec.md's provided-combinators
// list but required by the grammar's "optional with-block" productions
// (§4.2); built from Choice + Zero per the design contract.
func Optional[O any](p Parser[O]) Parser[*O] {
	some := MapParser(p, func(v O) *O { return &v })
	none := Zero[*O](nil)
	return Choice([]Parser[*O]{some, none})
}
