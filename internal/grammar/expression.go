package grammar

import (
	"fmt"
	"strconv"

	"github.com/kairei/agent-runtime/internal/ast"
	"github.com/kairei/agent-runtime/internal/token"
)

// precedence table for BinaryOp, low to high.
var precedence = [][]struct {
	text string
	op   ast.BinaryOperator
}{
	{{"||", ast.OpOr}},
	{{"&&", ast.OpAnd}},
	{{"==", ast.OpEqual}, {"!=", ast.OpNotEqual}},
	{{"<", ast.OpLessThan}, {"<=", ast.OpLessThanOrEqual}, {">", ast.OpGreaterThan}, {">=", ast.OpGreaterThanOrEqual}},
	{{"+", ast.OpAdd}, {"-", ast.OpSubtract}},
	{{"*", ast.OpMultiply}, {"/", ast.OpDivide}},
}

// ParseExpression parses a full expression using precedence climbing
// over internal/parser-built primaries (spec.md §4.2/§4.7).
func ParseExpression(tokens []token.Token, pos int) (int, ast.Expression, error) {
	return parseLevel(tokens, pos, 0)
}

func parseLevel(tokens []token.Token, pos int, level int) (int, ast.Expression, error) {
	if level >= len(precedence) {
		return parsePrimary(tokens, pos)
	}
	pos, left, err := parseLevel(tokens, pos, level+1)
	if err != nil {
		return pos, ast.Expression{}, err
	}
	for {
		tok, ok := peek(tokens, pos)
		if !ok || tok.Kind != token.Operator {
			break
		}
		matched := false
		for _, cand := range precedence[level] {
			if cand.text == tok.Text {
				matched = true
				pos++
				var right ast.Expression
				pos, right, err = parseLevel(tokens, pos, level+1)
				if err != nil {
					return pos, ast.Expression{}, err
				}
				left = ast.Binary(cand.op, left, right)
				break
			}
		}
		if !matched {
			break
		}
	}
	return pos, left, nil
}

// parsePrimary parses literals, variables, state access, calls,
// Think/Request/Await, Ok/Err, and parenthesized expressions.
func parsePrimary(tokens []token.Token, pos int) (int, ast.Expression, error) {
	tok, ok := peek(tokens, pos)
	if !ok {
		return pos, ast.Expression{}, fmt.Errorf("unexpected end of input parsing expression")
	}

	switch {
	case tok.Kind == token.IntLiteral:
		n, err := strconv.ParseInt(tok.Text, 10, 64)
		if err != nil {
			return pos, ast.Expression{}, err
		}
		return pos + 1, ast.LiteralExpr(ast.LitInt(n)), nil

	case tok.Kind == token.FloatLiteral:
		f, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			return pos, ast.Expression{}, err
		}
		return pos + 1, ast.LiteralExpr(ast.LitFloat(f)), nil

	case tok.Kind == token.StringLiteral:
		return pos + 1, ast.LiteralExpr(ast.LitString(tok.Text)), nil

	case tok.Kind == token.BoolLiteral:
		return pos + 1, ast.LiteralExpr(ast.LitBool(tok.Text == "true")), nil

	case tok.Kind == token.Keyword && tok.Text == "null":
		return pos + 1, ast.LiteralExpr(ast.LitNull()), nil

	case tok.Kind == token.Keyword && tok.Text == "Ok":
		next, inner, err := parseParenExpr(tokens, pos+1)
		if err != nil {
			return pos, ast.Expression{}, err
		}
		return next, ast.OkExpr(inner), nil

	case tok.Kind == token.Keyword && tok.Text == "Err":
		next, inner, err := parseParenExpr(tokens, pos+1)
		if err != nil {
			return pos, ast.Expression{}, err
		}
		return next, ast.ErrExpr(inner), nil

	case tok.Kind == token.Keyword && tok.Text == "await":
		return parseAwait(tokens, pos+1)

	case tok.Kind == token.Keyword && tok.Text == "think":
		return parseThink(tokens, pos+1)

	case tok.Kind == token.Keyword && tok.Text == "request":
		return parseRequest(tokens, pos+1)

	case tok.Kind == token.Delimiter && tok.Text == "(":
		return parseParenExpr(tokens, pos)

	case tok.Kind == token.Keyword && tok.Text == "self":
		return parseDottedFrom(tokens, pos+1, true)

	case tok.Kind == token.Identifier:
		return parseIdentifierLed(tokens, pos)

	default:
		return pos, ast.Expression{}, fmt.Errorf("unexpected token %v while parsing expression", tok)
	}
}

func parseParenExpr(tokens []token.Token, pos int) (int, ast.Expression, error) {
	pos, err := expectDelim(tokens, pos, "(")
	if err != nil {
		return pos, ast.Expression{}, err
	}
	pos, e, err := ParseExpression(tokens, pos)
	if err != nil {
		return pos, ast.Expression{}, err
	}
	pos, err = expectDelim(tokens, pos, ")")
	return pos, e, err
}

// parseIdentifierLed handles FunctionCall(args), dotted StateAccess
// paths, and bare Variable references starting from an identifier.
func parseIdentifierLed(tokens []token.Token, pos int) (int, ast.Expression, error) {
	next, name, err := expectIdentifier(tokens, pos)
	if err != nil {
		return pos, ast.Expression{}, err
	}
	if atDelim(tokens, next, "(") {
		argPos, args, err := parseCallArgs(tokens, next)
		if err != nil {
			return pos, ast.Expression{}, err
		}
		exprs := make([]ast.Expression, len(args))
		for i, a := range args {
			exprs[i] = a.Value
		}
		return argPos, ast.Expression{Kind: ast.ExprFunctionCall, Function: name, Arguments: exprs}, nil
	}
	return parseDottedFrom(tokens, next, false, name)
}

// parseDottedFrom continues a dotted path ("a.b.c") starting after the
// first segment has been consumed. If selfPrefixed is true the path
// began with `self.` and the caller has not yet consumed a first
// segment name, so one is expected next.
func parseDottedFrom(tokens []token.Token, pos int, selfPrefixed bool, firstSegment ...string) (int, ast.Expression, error) {
	var segs []string
	cur := pos
	if selfPrefixed {
		next, seg, err := expectIdentifier(tokens, cur)
		if err != nil {
			return pos, ast.Expression{}, err
		}
		segs = append(segs, seg)
		cur = next
	} else {
		segs = append(segs, firstSegment...)
	}
	for atOperator(tokens, cur, ".") {
		next, seg, err := expectIdentifier(tokens, cur+1)
		if err != nil {
			break
		}
		segs = append(segs, seg)
		cur = next
	}
	if selfPrefixed || len(segs) > 1 {
		return cur, ast.StateAccess(ast.StateAccessPath(segs)), nil
	}
	return cur, ast.Var(segs[0]), nil
}

func parseCallArgs(tokens []token.Token, pos int) (int, []ast.Argument, error) {
	pos, err := expectDelim(tokens, pos, "(")
	if err != nil {
		return pos, nil, err
	}
	var args []ast.Argument
	for !atDelim(tokens, pos, ")") {
		// named argument: identifier ":" expr
		if tok, ok := peek(tokens, pos); ok && tok.Kind == token.Identifier {
			if colonTok, ok := peek(tokens, pos+1); ok && colonTok.Kind == token.Delimiter && colonTok.Text == ":" {
				name := tok.Text
				next, v, err := ParseExpression(tokens, pos+2)
				if err != nil {
					return pos, nil, err
				}
				args = append(args, ast.Argument{Name: name, Value: v})
				pos = next
				if atDelim(tokens, pos, ",") {
					pos++
				}
				continue
			}
		}
		next, v, err := ParseExpression(tokens, pos)
		if err != nil {
			return pos, nil, err
		}
		args = append(args, ast.Argument{Value: v})
		pos = next
		if atDelim(tokens, pos, ",") {
			pos++
		}
	}
	pos, err = expectDelim(tokens, pos, ")")
	return pos, args, err
}

func parseAwait(tokens []token.Token, pos int) (int, ast.Expression, error) {
	pos, err := expectDelim(tokens, pos, "(")
	if err != nil {
		return pos, ast.Expression{}, err
	}
	var items []ast.Expression
	for !atDelim(tokens, pos, ")") {
		next, e, err := ParseExpression(tokens, pos)
		if err != nil {
			return pos, ast.Expression{}, err
		}
		items = append(items, e)
		pos = next
		if atDelim(tokens, pos, ",") {
			pos++
		}
	}
	pos, err = expectDelim(tokens, pos, ")")
	return pos, ast.Expression{Kind: ast.ExprAwait, Awaited: items}, err
}

func parseThink(tokens []token.Token, pos int) (int, ast.Expression, error) {
	pos, args, err := parseCallArgs(tokens, pos)
	if err != nil {
		return pos, ast.Expression{}, err
	}
	var attrs *ast.ThinkAttributes
	if atKeyword(tokens, pos, "with") {
		next, a, err := parseThinkWith(tokens, pos)
		if err != nil {
			return pos, ast.Expression{}, err
		}
		attrs = &a
		pos = next
	}
	return pos, ast.Expression{Kind: ast.ExprThink, ThinkArgs: args, With: attrs}, nil
}

// parseRequest parses `request <agent>.<kind>(args)`.
func parseRequest(tokens []token.Token, pos int) (int, ast.Expression, error) {
	pos, agent, err := expectIdentifier(tokens, pos)
	if err != nil {
		return pos, ast.Expression{}, err
	}
	pos, err = expectOperator(tokens, pos, ".")
	if err != nil {
		return pos, ast.Expression{}, err
	}
	pos, kind, err := expectIdentifier(tokens, pos)
	if err != nil {
		return pos, ast.Expression{}, err
	}
	pos, args, err := parseCallArgs(tokens, pos)
	if err != nil {
		return pos, ast.Expression{}, err
	}
	return pos, ast.Expression{
		Kind:        ast.ExprRequest,
		Agent:       agent,
		RequestType: ast.RequestType{Kind: ast.RequestCustom, Name: kind},
		RequestArgs: args,
	}, nil
}

// parseThinkWith parses `with { provider: "x", model: "y", temperature: 0.5, max_tokens: 100 }`.
func parseThinkWith(tokens []token.Token, pos int) (int, ast.ThinkAttributes, error) {
	var attrs ast.ThinkAttributes
	pos, err := expectKeyword(tokens, pos, "with")
	if err != nil {
		return pos, attrs, err
	}
	pos, err = expectDelim(tokens, pos, "{")
	if err != nil {
		return pos, attrs, err
	}
	for !atDelim(tokens, pos, "}") {
		next, name, err := expectIdentifier(tokens, pos)
		if err != nil {
			return pos, attrs, err
		}
		pos, err = expectDelim(tokens, next, ":")
		if err != nil {
			return pos, attrs, err
		}
		tok, ok := peek(tokens, pos)
		if !ok {
			return pos, attrs, fmt.Errorf("unexpected EOF in with-block")
		}
		switch name {
		case "provider":
			s := tok.Text
			attrs.Provider = &s
			pos++
		case "model":
			s := tok.Text
			attrs.Model = &s
			pos++
		case "temperature":
			f, err := strconv.ParseFloat(tok.Text, 64)
			if err != nil {
				return pos, attrs, err
			}
			attrs.Temperature = &f
			pos++
		case "max_tokens":
			n, err := strconv.ParseUint(tok.Text, 10, 32)
			if err != nil {
				return pos, attrs, err
			}
			v := uint32(n)
			attrs.MaxTokens = &v
			pos++
		default:
			pos++ // skip unknown attribute value
		}
		if atDelim(tokens, pos, ",") {
			pos++
		}
	}
	pos, err = expectDelim(tokens, pos, "}")
	return pos, attrs, err
}
