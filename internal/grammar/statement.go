package grammar

import (
	"fmt"

	"github.com/kairei/agent-runtime/internal/ast"
	"github.com/kairei/agent-runtime/internal/token"
)

// ParseStatement parses one DSL statement, then an optional trailing
// `on_fail { ... }` clause that wraps it in a WithError node
// (spec.md §3 Statement.WithError).
func ParseStatement(tokens []token.Token, pos int) (int, ast.Statement, error) {
	pos, stmt, err := parseBaseStatement(tokens, pos)
	if err != nil {
		return pos, stmt, err
	}
	if atKeyword(tokens, pos, "on_fail") {
		next, eh, err := parseErrorHandlerBlock(tokens, pos)
		if err != nil {
			return pos, stmt, err
		}
		wrapped := stmt
		return next, ast.Statement{Kind: ast.StmtWithError, Inner: &wrapped, ErrorHandler: eh}, nil
	}
	return pos, stmt, nil
}

func parseBaseStatement(tokens []token.Token, pos int) (int, ast.Statement, error) {
	tok, ok := peek(tokens, pos)
	if !ok {
		return pos, ast.Statement{}, fmt.Errorf("unexpected end of input parsing statement")
	}

	switch {
	case tok.Kind == token.Keyword && tok.Text == "return":
		pos, e, err := ParseExpression(tokens, pos+1)
		if err != nil {
			return pos, ast.Statement{}, err
		}
		pos = skipSemicolon(tokens, pos)
		return pos, ast.Statement{Kind: ast.StmtReturn, Expr: e}, nil

	case tok.Kind == token.Keyword && tok.Text == "emit":
		return parseEmitStatement(tokens, pos+1)

	case tok.Kind == token.Keyword && tok.Text == "if":
		return parseIfStatement(tokens, pos+1)

	case tok.Kind == token.Delimiter && tok.Text == "{":
		next, blk, err := parseBlockBraced(tokens, pos)
		if err != nil {
			return pos, ast.Statement{}, err
		}
		return next, ast.Statement{Kind: ast.StmtBlock, Block: blk.Statements}, nil

	default:
		return parseAssignmentOrExpr(tokens, pos)
	}
}

func parseAssignmentOrExpr(tokens []token.Token, pos int) (int, ast.Statement, error) {
	start := pos
	target, next, ok := tryParseAssignTarget(tokens, pos)
	if ok {
		if tok, ok2 := peek(tokens, next); ok2 && tok.Kind == token.Operator && tok.Text == "=" {
			valPos, val, err := ParseExpression(tokens, next+1)
			if err != nil {
				return start, ast.Statement{}, err
			}
			valPos = skipSemicolon(tokens, valPos)
			return valPos, ast.Statement{Kind: ast.StmtAssignment, Targets: []ast.Expression{target}, Value: val}, nil
		}
	}
	pos, e, err := ParseExpression(tokens, start)
	if err != nil {
		return start, ast.Statement{}, err
	}
	pos = skipSemicolon(tokens, pos)
	return pos, ast.Statement{Kind: ast.StmtExpression, Expr: e}, nil
}

// tryParseAssignTarget attempts to parse a Variable or (self-prefixed
// or dotted) StateAccess path as an assignment target, without
// consuming input on failure.
func tryParseAssignTarget(tokens []token.Token, pos int) (ast.Expression, int, bool) {
	tok, ok := peek(tokens, pos)
	if !ok {
		return ast.Expression{}, pos, false
	}
	if tok.Kind == token.Keyword && tok.Text == "self" {
		next, e, err := parseDottedFrom(tokens, pos+1, true)
		if err != nil {
			return ast.Expression{}, pos, false
		}
		return e, next, true
	}
	if tok.Kind == token.Identifier {
		next, e, err := parseDottedFrom(tokens, pos+1, false, tok.Text)
		if err != nil {
			return ast.Expression{}, pos, false
		}
		return e, next, true
	}
	return ast.Expression{}, pos, false
}

// parseEmitStatement parses `emit EventName(args) (-> target)? ;?`.
func parseEmitStatement(tokens []token.Token, pos int) (int, ast.Statement, error) {
	pos, et, err := parseEventTypeRef(tokens, pos)
	if err != nil {
		return pos, ast.Statement{}, err
	}
	var args []ast.Argument
	if atDelim(tokens, pos, "(") {
		pos, args, err = parseCallArgs(tokens, pos)
		if err != nil {
			return pos, ast.Statement{}, err
		}
	}
	target := ""
	if atOperator(tokens, pos, "->") {
		pos++
		var name string
		pos, name, err = expectIdentifier(tokens, pos)
		if err != nil {
			return pos, ast.Statement{}, err
		}
		target = name
	}
	pos = skipSemicolon(tokens, pos)
	return pos, ast.Statement{Kind: ast.StmtEmit, EventType: et, Args: args, Target: target}, nil
}

// parseIfStatement parses `if cond { then } (else { else })?`; the
// condition may optionally be wrapped in parentheses.
func parseIfStatement(tokens []token.Token, pos int) (int, ast.Statement, error) {
	var cond ast.Expression
	var err error
	if atDelim(tokens, pos, "(") {
		pos, cond, err = parseParenExpr(tokens, pos)
	} else {
		pos, cond, err = ParseExpression(tokens, pos)
	}
	if err != nil {
		return pos, ast.Statement{}, err
	}
	pos, thenBlk, err := parseBlockBraced(tokens, pos)
	if err != nil {
		return pos, ast.Statement{}, err
	}
	var elseStmts []ast.Statement
	if atKeyword(tokens, pos, "else") {
		pos++
		var elseBlk ast.HandlerBlock
		pos, elseBlk, err = parseBlockBraced(tokens, pos)
		if err != nil {
			return pos, ast.Statement{}, err
		}
		elseStmts = elseBlk.Statements
	}
	return pos, ast.Statement{Kind: ast.StmtIf, Condition: cond, Then: thenBlk.Statements, Else: elseStmts}, nil
}

// parseErrorHandlerBlock parses `on_fail (as name)? { stmts control? }`.
func parseErrorHandlerBlock(tokens []token.Token, pos int) (int, ast.ErrorHandlerBlock, error) {
	var eh ast.ErrorHandlerBlock
	pos, err := expectKeyword(tokens, pos, "on_fail")
	if err != nil {
		return pos, eh, err
	}
	if atKeyword(tokens, pos, "as") {
		pos++
		var name string
		pos, name, err = expectIdentifier(tokens, pos)
		if err != nil {
			return pos, eh, err
		}
		eh.ErrorBinding = name
	}
	pos, err = expectDelim(tokens, pos, "{")
	if err != nil {
		return pos, eh, err
	}
	for !atDelim(tokens, pos, "}") {
		if atKeyword(tokens, pos, "rethrow") {
			pos++
			pos = skipSemicolon(tokens, pos)
			eh.Control = ast.OnFailControl{Kind: ast.OnFailRethrow}
			continue
		}
		if atKeyword(tokens, pos, "return") {
			next := pos + 1
			if atKeyword(tokens, next, "Ok") {
				valPos, inner, err := parseParenExpr(tokens, next+1)
				if err != nil {
					return pos, eh, err
				}
				valPos = skipSemicolon(tokens, valPos)
				eh.Control = ast.OnFailControl{Kind: ast.OnFailReturnOk, Value: inner}
				pos = valPos
				continue
			}
			if atKeyword(tokens, next, "Err") {
				valPos, inner, err := parseParenExpr(tokens, next+1)
				if err != nil {
					return pos, eh, err
				}
				valPos = skipSemicolon(tokens, valPos)
				eh.Control = ast.OnFailControl{Kind: ast.OnFailReturnErr, Value: inner}
				pos = valPos
				continue
			}
		}
		next, s, err := ParseStatement(tokens, pos)
		if err != nil {
			return pos, eh, err
		}
		eh.Statements = append(eh.Statements, s)
		pos = next
	}
	pos, err = expectDelim(tokens, pos, "}")
	return pos, eh, err
}
