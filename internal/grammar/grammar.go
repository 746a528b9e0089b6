// Package grammar implements the KAIREI DSL productions on top of
// internal/parser's combinators, yielding the typed internal/ast tree
// (spec.md §4.2, grounded on kairei-core/src/ast.rs and the grammar
// shape implied by kairei-core/src/analyzer/parsers/tests/agent_test.rs).
package grammar

import (
	"fmt"
	"strconv"

	"github.com/kairei/agent-runtime/internal/ast"
	"github.com/kairei/agent-runtime/internal/parser"
	"github.com/kairei/agent-runtime/internal/token"
)

// ParseRoot parses a full source file into a Root. Agents are parsed
// with Many, so a source with no `micro` declaration yields an empty
// Root; `world` declarations are not parsed, and any tokens left after
// the last agent are an error.
func ParseRoot(tokens []token.Token) (ast.Root, error) {
	agents, pos, err := parseAgents(tokens, 0)
	if err != nil {
		return ast.Root{}, err
	}
	if pos != len(tokens) {
		return ast.Root{}, fmt.Errorf("unexpected trailing tokens at %d", pos)
	}
	return ast.Root{Agents: agents}, nil
}

func parseAgents(tokens []token.Token, pos int) ([]ast.MicroAgentDef, int, error) {
	p := parser.Many(Lazy(parseMicroAgent))
	next, agents, err := p(tokens, pos)
	return agents, next, err
}

// Lazy wraps a parse function as a parser.Parser[O] for use inside
// combinators, deferring evaluation (internal/parser.Lazy requires a
// func() Parser[O]; grammar productions are usually written as plain
// funcs of (tokens, pos) so this adapts between the two styles).
func Lazy[O any](f func([]token.Token, int) (int, O, error)) parser.Parser[O] {
	return func(tokens []token.Token, pos int) (int, O, error) { return f(tokens, pos) }
}

func peek(tokens []token.Token, pos int) (token.Token, bool) {
	if pos >= len(tokens) {
		return token.Token{}, false
	}
	return tokens[pos], true
}

func expectKeyword(tokens []token.Token, pos int, kw string) (int, error) {
	tok, ok := peek(tokens, pos)
	if !ok || tok.Kind != token.Keyword || tok.Text != kw {
		return pos, fmt.Errorf("expected keyword %q at %d, found %v", kw, pos, tok)
	}
	return pos + 1, nil
}

func expectDelim(tokens []token.Token, pos int, text string) (int, error) {
	tok, ok := peek(tokens, pos)
	if !ok || tok.Kind != token.Delimiter || tok.Text != text {
		return pos, fmt.Errorf("expected %q at %d, found %v", text, pos, tok)
	}
	return pos + 1, nil
}

func expectOperator(tokens []token.Token, pos int, text string) (int, error) {
	tok, ok := peek(tokens, pos)
	if !ok || tok.Kind != token.Operator || tok.Text != text {
		return pos, fmt.Errorf("expected %q at %d, found %v", text, pos, tok)
	}
	return pos + 1, nil
}

func expectIdentifier(tokens []token.Token, pos int) (int, string, error) {
	tok, ok := peek(tokens, pos)
	if !ok || tok.Kind != token.Identifier {
		return pos, "", fmt.Errorf("expected identifier at %d, found %v", pos, tok)
	}
	return pos + 1, tok.Text, nil
}

func atDelim(tokens []token.Token, pos int, text string) bool {
	tok, ok := peek(tokens, pos)
	return ok && tok.Kind == token.Delimiter && tok.Text == text
}

func atKeyword(tokens []token.Token, pos int, kw string) bool {
	tok, ok := peek(tokens, pos)
	return ok && tok.Kind == token.Keyword && tok.Text == kw
}

// skipSemicolon tolerates an optional trailing `;` (spec.md §4.2: state
// entries tolerate a trailing semicolon).
func skipSemicolon(tokens []token.Token, pos int) int {
	if atDelim(tokens, pos, ";") {
		return pos + 1
	}
	return pos
}

// parseMicroAgent parses `micro Name { ... }`.
func parseMicroAgent(tokens []token.Token, pos int) (int, ast.MicroAgentDef, error) {
	var def ast.MicroAgentDef
	pos, err := expectKeyword(tokens, pos, "micro")
	if err != nil {
		return pos, def, err
	}
	pos, name, err := expectIdentifier(tokens, pos)
	if err != nil {
		return pos, def, err
	}
	def.Name = name

	pos, err = expectDelim(tokens, pos, "{")
	if err != nil {
		return pos, def, err
	}

	for !atDelim(tokens, pos, "}") {
		tok, ok := peek(tokens, pos)
		if !ok {
			return pos, def, errEOFIn("micro "+name, pos)
		}
		switch {
		case tok.Kind == token.Keyword && tok.Text == "state":
			next, sd, err := parseStateDef(tokens, pos)
			if err != nil {
				return pos, def, err
			}
			def.State = &sd
			pos = next
		case tok.Kind == token.Keyword && tok.Text == "observe":
			next, od, err := parseObserveDef(tokens, pos)
			if err != nil {
				return pos, def, err
			}
			def.Observe = &od
			pos = next
		case tok.Kind == token.Keyword && tok.Text == "react":
			next, rd, err := parseReactDef(tokens, pos)
			if err != nil {
				return pos, def, err
			}
			def.React = &rd
			pos = next
		case tok.Kind == token.Keyword && tok.Text == "answer":
			next, ad, err := parseAnswerDef(tokens, pos)
			if err != nil {
				return pos, def, err
			}
			def.Answer = &ad
			pos = next
		case tok.Kind == token.Keyword && tok.Text == "lifecycle":
			next, ld, err := parseLifecycleDef(tokens, pos)
			if err != nil {
				return pos, def, err
			}
			def.Lifecycle = &ld
			pos = next
		default:
			return pos, def, fmt.Errorf("unexpected token %v inside agent %q", tok, name)
		}
	}
	pos, err = expectDelim(tokens, pos, "}")
	if err != nil {
		return pos, def, err
	}
	return pos, def, nil
}

func errEOFIn(ctx string, pos int) error {
	return fmt.Errorf("unexpected end of input while parsing %s (at token %d)", ctx, pos)
}

// parseStateDef parses `state { name: Type = expr ;? ... }`.
func parseStateDef(tokens []token.Token, pos int) (int, ast.StateDef, error) {
	sd := ast.StateDef{Variables: map[string]ast.StateVarDef{}}
	pos, err := expectKeyword(tokens, pos, "state")
	if err != nil {
		return pos, sd, err
	}
	pos, err = expectDelim(tokens, pos, "{")
	if err != nil {
		return pos, sd, err
	}
	for !atDelim(tokens, pos, "}") {
		next, name, err := expectIdentifier(tokens, pos)
		if err != nil {
			return pos, sd, err
		}
		pos, err = expectDelim(tokens, next, ":")
		if err != nil {
			return pos, sd, err
		}
		var ti ast.TypeInfo
		pos, ti, err = parseTypeInfo(tokens, pos)
		if err != nil {
			return pos, sd, err
		}
		var initial ast.Expression
		hasInitial := false
		if tok, ok := peek(tokens, pos); ok && tok.Kind == token.Operator && tok.Text == "=" {
			pos++
			var e ast.Expression
			pos, e, err = ParseExpression(tokens, pos)
			if err != nil {
				return pos, sd, err
			}
			initial = e
			hasInitial = true
		}
		pos = skipSemicolon(tokens, pos)
		v := ast.StateVarDef{Name: name, Type: ti}
		if hasInitial {
			v.InitialValue = initial
		}
		sd.Variables[name] = v
	}
	pos, err = expectDelim(tokens, pos, "}")
	return pos, sd, err
}

// parseTypeInfo parses Simple/Result/Option/Array/Map type annotations.
func parseTypeInfo(tokens []token.Token, pos int) (int, ast.TypeInfo, error) {
	pos, name, err := expectIdentifier(tokens, pos)
	if err != nil {
		return pos, ast.TypeInfo{}, err
	}
	if !atOperator(tokens, pos, "<") {
		return pos, ast.Simple(name), nil
	}
	pos++ // consume "<"
	switch name {
	case "Result":
		pos, ok, err := parseTypeInfo(tokens, pos)
		if err != nil {
			return pos, ast.TypeInfo{}, err
		}
		pos, err = expectDelim(tokens, pos, ",")
		if err != nil {
			return pos, ast.TypeInfo{}, err
		}
		pos, errT, err := parseTypeInfo(tokens, pos)
		if err != nil {
			return pos, ast.TypeInfo{}, err
		}
		pos, err = expectOperator(tokens, pos, ">")
		if err != nil {
			return pos, ast.TypeInfo{}, err
		}
		return pos, ast.Result(ok, errT), nil
	case "Option":
		pos, elem, err := parseTypeInfo(tokens, pos)
		if err != nil {
			return pos, ast.TypeInfo{}, err
		}
		pos, err = expectOperator(tokens, pos, ">")
		if err != nil {
			return pos, ast.TypeInfo{}, err
		}
		return pos, ast.Option(elem), nil
	case "Array":
		pos, elem, err := parseTypeInfo(tokens, pos)
		if err != nil {
			return pos, ast.TypeInfo{}, err
		}
		pos, err = expectOperator(tokens, pos, ">")
		if err != nil {
			return pos, ast.TypeInfo{}, err
		}
		return pos, ast.Array(elem), nil
	case "Map":
		pos, key, err := parseTypeInfo(tokens, pos)
		if err != nil {
			return pos, ast.TypeInfo{}, err
		}
		pos, err = expectDelim(tokens, pos, ",")
		if err != nil {
			return pos, ast.TypeInfo{}, err
		}
		pos, val, err := parseTypeInfo(tokens, pos)
		if err != nil {
			return pos, ast.TypeInfo{}, err
		}
		pos, err = expectOperator(tokens, pos, ">")
		if err != nil {
			return pos, ast.TypeInfo{}, err
		}
		return pos, ast.MapOf(key, val), nil
	default:
		return pos, ast.TypeInfo{}, fmt.Errorf("unknown parameterized type %q at %d", name, pos)
	}
}

func atOperator(tokens []token.Token, pos int, text string) bool {
	tok, ok := peek(tokens, pos)
	return ok && tok.Kind == token.Operator && tok.Text == text
}

func parseLifecycleDef(tokens []token.Token, pos int) (int, ast.LifecycleDef, error) {
	var ld ast.LifecycleDef
	pos, err := expectKeyword(tokens, pos, "lifecycle")
	if err != nil {
		return pos, ld, err
	}
	pos, err = expectDelim(tokens, pos, "{")
	if err != nil {
		return pos, ld, err
	}
	for !atDelim(tokens, pos, "}") {
		switch {
		case atKeyword(tokens, pos, "onInit"):
			pos++
			next, blk, err := parseBlockBraced(tokens, pos)
			if err != nil {
				return pos, ld, err
			}
			ld.OnInit = &blk
			pos = next
		case atKeyword(tokens, pos, "onDestroy"):
			pos++
			next, blk, err := parseBlockBraced(tokens, pos)
			if err != nil {
				return pos, ld, err
			}
			ld.OnDestroy = &blk
			pos = next
		default:
			return pos, ld, fmt.Errorf("expected onInit/onDestroy at %d", pos)
		}
	}
	pos, err = expectDelim(tokens, pos, "}")
	return pos, ld, err
}

func parseObserveDef(tokens []token.Token, pos int) (int, ast.ObserveDef, error) {
	pos, err := expectKeyword(tokens, pos, "observe")
	if err != nil {
		return pos, ast.ObserveDef{}, err
	}
	pos, handlers, err := parseEventHandlers(tokens, pos)
	return pos, ast.ObserveDef{Handlers: handlers}, err
}

func parseReactDef(tokens []token.Token, pos int) (int, ast.ReactDef, error) {
	pos, err := expectKeyword(tokens, pos, "react")
	if err != nil {
		return pos, ast.ReactDef{}, err
	}
	pos, handlers, err := parseEventHandlers(tokens, pos)
	return pos, ast.ReactDef{Handlers: handlers}, err
}

func parseEventHandlers(tokens []token.Token, pos int) (int, []ast.EventHandler, error) {
	pos, err := expectDelim(tokens, pos, "{")
	if err != nil {
		return pos, nil, err
	}
	var handlers []ast.EventHandler
	for !atDelim(tokens, pos, "}") {
		pos, err = expectKeyword(tokens, pos, "on")
		if err != nil {
			return pos, nil, err
		}
		var et ast.EventType
		pos, et, err = parseEventTypeRef(tokens, pos)
		if err != nil {
			return pos, nil, err
		}
		var params []ast.Parameter
		if atDelim(tokens, pos, "(") {
			pos, params, err = parseParameters(tokens, pos)
			if err != nil {
				return pos, nil, err
			}
		}
		var blk ast.HandlerBlock
		pos, blk, err = parseBlockBraced(tokens, pos)
		if err != nil {
			return pos, nil, err
		}
		handlers = append(handlers, ast.EventHandler{EventType: et, Parameters: params, Block: blk})
	}
	pos, err = expectDelim(tokens, pos, "}")
	return pos, handlers, err
}

// parseEventTypeRef parses `Tick`, `StateUpdated.agent.state`, or a
// bare custom identifier.
func parseEventTypeRef(tokens []token.Token, pos int) (int, ast.EventType, error) {
	next, name, err := expectIdentifier(tokens, pos)
	if err != nil {
		return pos, ast.EventType{}, err
	}
	pos = next
	if name == "Tick" {
		return pos, ast.EventType{Kind: ast.EventTick}, nil
	}
	if name == "StateUpdated" && atOperator(tokens, pos, ".") {
		pos++
		pos, agentName, err := expectIdentifier(tokens, pos)
		if err != nil {
			return pos, ast.EventType{}, err
		}
		pos, err = expectOperator(tokens, pos, ".")
		if err != nil {
			return pos, ast.EventType{}, err
		}
		pos, stateName, err := expectIdentifier(tokens, pos)
		if err != nil {
			return pos, ast.EventType{}, err
		}
		return pos, ast.EventType{Kind: ast.EventStateUpdated, AgentName: agentName, StateName: stateName}, nil
	}
	return pos, ast.EventType{Kind: ast.EventCustom, Name: name}, nil
}

func parseParameters(tokens []token.Token, pos int) (int, []ast.Parameter, error) {
	pos, err := expectDelim(tokens, pos, "(")
	if err != nil {
		return pos, nil, err
	}
	var params []ast.Parameter
	for !atDelim(tokens, pos, ")") {
		next, name, err := expectIdentifier(tokens, pos)
		if err != nil {
			return pos, nil, err
		}
		pos, err = expectDelim(tokens, next, ":")
		if err != nil {
			return pos, nil, err
		}
		var ti ast.TypeInfo
		pos, ti, err = parseTypeInfo(tokens, pos)
		if err != nil {
			return pos, nil, err
		}
		params = append(params, ast.Parameter{Name: name, Type: ti})
		if atDelim(tokens, pos, ",") {
			pos++
		}
	}
	pos, err = expectDelim(tokens, pos, ")")
	return pos, params, err
}

// parseAnswerDef parses `answer { on request Name(params) -> Type with{...}? { ... } }`.
func parseAnswerDef(tokens []token.Token, pos int) (int, ast.AnswerDef, error) {
	pos, err := expectKeyword(tokens, pos, "answer")
	if err != nil {
		return pos, ast.AnswerDef{}, err
	}
	pos, err = expectDelim(tokens, pos, "{")
	if err != nil {
		return pos, ast.AnswerDef{}, err
	}
	var handlers []ast.RequestHandler
	for !atDelim(tokens, pos, "}") {
		pos, err = expectKeyword(tokens, pos, "on")
		if err != nil {
			return pos, ast.AnswerDef{}, err
		}
		pos, err = expectKeyword(tokens, pos, "request")
		if err != nil {
			return pos, ast.AnswerDef{}, err
		}
		pos, name, err := expectIdentifier(tokens, pos)
		if err != nil {
			return pos, ast.AnswerDef{}, err
		}
		var params []ast.Parameter
		pos, params, err = parseParameters(tokens, pos)
		if err != nil {
			return pos, ast.AnswerDef{}, err
		}
		pos, err = expectOperator(tokens, pos, "->")
		if err != nil {
			return pos, ast.AnswerDef{}, err
		}
		var rt ast.TypeInfo
		pos, rt, err = parseTypeInfo(tokens, pos)
		if err != nil {
			return pos, ast.AnswerDef{}, err
		}
		var constraints *ast.Constraints
		if atKeyword(tokens, pos, "with") {
			var c ast.Constraints
			pos, c, err = parseConstraints(tokens, pos)
			if err != nil {
				return pos, ast.AnswerDef{}, err
			}
			constraints = &c
		}
		var blk ast.HandlerBlock
		pos, blk, err = parseBlockBraced(tokens, pos)
		if err != nil {
			return pos, ast.AnswerDef{}, err
		}
		handlers = append(handlers, ast.RequestHandler{
			RequestType: ast.RequestType{Kind: ast.RequestCustom, Name: name},
			Parameters:  params,
			ReturnType:  rt,
			Constraints: constraints,
			Block:       blk,
		})
	}
	pos, err = expectDelim(tokens, pos, "}")
	return pos, ast.AnswerDef{Handlers: handlers}, err
}

// parseConstraints parses `with { strictness: 0.9, stability: 0.8 }`.
func parseConstraints(tokens []token.Token, pos int) (int, ast.Constraints, error) {
	var c ast.Constraints
	pos, err := expectKeyword(tokens, pos, "with")
	if err != nil {
		return pos, c, err
	}
	pos, err = expectDelim(tokens, pos, "{")
	if err != nil {
		return pos, c, err
	}
	for !atDelim(tokens, pos, "}") {
		next, name, err := expectIdentifier(tokens, pos)
		if err != nil {
			return pos, c, err
		}
		pos, err = expectDelim(tokens, next, ":")
		if err != nil {
			return pos, c, err
		}
		tok, ok := peek(tokens, pos)
		if !ok || (tok.Kind != token.FloatLiteral && tok.Kind != token.IntLiteral) {
			return pos, c, fmt.Errorf("expected numeric literal at %d", pos)
		}
		f, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			return pos, c, err
		}
		pos++
		switch name {
		case "strictness":
			c.Strictness = &f
		case "stability":
			c.Stability = &f
		case "latency":
			c.Latency = &f
		}
		if atDelim(tokens, pos, ",") {
			pos++
		}
	}
	pos, err = expectDelim(tokens, pos, "}")
	return pos, c, err
}

func parseBlockBraced(tokens []token.Token, pos int) (int, ast.HandlerBlock, error) {
	pos, err := expectDelim(tokens, pos, "{")
	if err != nil {
		return pos, ast.HandlerBlock{}, err
	}
	var stmts []ast.Statement
	for !atDelim(tokens, pos, "}") {
		next, s, err := ParseStatement(tokens, pos)
		if err != nil {
			return pos, ast.HandlerBlock{}, err
		}
		stmts = append(stmts, s)
		pos = next
	}
	pos, err = expectDelim(tokens, pos, "}")
	return pos, ast.HandlerBlock{Statements: stmts}, err
}
