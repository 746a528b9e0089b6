package grammar

import (
	"testing"

	"github.com/kairei/agent-runtime/internal/ast"
	"github.com/kairei/agent-runtime/internal/token"
)

// TestParseRootS1Counter parses spec.md §8 S1's literal DSL source.
func TestParseRootS1Counter(t *testing.T) {
	src := `micro C { state { count: Int = 0 } observe { on Tick { count = count + 1 } } }`
	root, err := ParseRoot(token.Lex(src))
	if err != nil {
		t.Fatalf("ParseRoot() error = %v", err)
	}
	if len(root.Agents) != 1 || root.Agents[0].Name != "C" {
		t.Fatalf("got %+v", root.Agents)
	}
	agent := root.Agents[0]
	if agent.State == nil {
		t.Fatal("expected State to be parsed")
	}
	v, ok := agent.State.Variables["count"]
	if !ok {
		t.Fatal("expected state variable \"count\"")
	}
	if v.Type.String() != "Int" {
		t.Errorf("count type = %s, want Int", v.Type.String())
	}
	if v.InitialValue.Kind != ast.ExprLiteral {
		t.Errorf("initial value kind = %v, want ExprLiteral", v.InitialValue.Kind)
	}

	if agent.Observe == nil || len(agent.Observe.Handlers) != 1 {
		t.Fatalf("expected one observe handler, got %+v", agent.Observe)
	}
	h := agent.Observe.Handlers[0]
	if h.EventType.Kind != ast.EventTick {
		t.Errorf("event type = %v, want EventTick", h.EventType.Kind)
	}
	if len(h.Block.Statements) != 1 || h.Block.Statements[0].Kind != ast.StmtAssignment {
		t.Fatalf("expected one assignment statement, got %+v", h.Block.Statements)
	}
	assign := h.Block.Statements[0]
	if assign.Targets[0].Kind != ast.ExprVariable || assign.Targets[0].Name != "count" {
		t.Errorf("assignment target = %+v, want Variable(count)", assign.Targets[0])
	}
	if assign.Value.Kind != ast.ExprBinaryOp || assign.Value.Op != ast.OpAdd {
		t.Errorf("assignment value = %+v, want BinaryOp(Add)", assign.Value)
	}
}

// TestParseRootS2AnswerReadOnly parses spec.md §8 S2's literal DSL source.
func TestParseRootS2AnswerReadOnly(t *testing.T) {
	src := `micro C {
		answer {
			on request GetCount() -> Result<Int,Error> { return Ok(count) }
		}
	}`
	root, err := ParseRoot(token.Lex(src))
	if err != nil {
		t.Fatalf("ParseRoot() error = %v", err)
	}
	agent := root.Agents[0]
	if agent.Answer == nil || len(agent.Answer.Handlers) != 1 {
		t.Fatalf("expected one answer handler, got %+v", agent.Answer)
	}
	h := agent.Answer.Handlers[0]
	if h.RequestType.Name != "GetCount" {
		t.Errorf("request type name = %q, want GetCount", h.RequestType.Name)
	}
	if h.ReturnType.Kind != ast.TypeResult || h.ReturnType.Ok.Name != "Int" || h.ReturnType.Err.Name != "Error" {
		t.Errorf("return type = %s, want Result<Int, Error>", h.ReturnType.String())
	}
	if len(h.Block.Statements) != 1 || h.Block.Statements[0].Kind != ast.StmtReturn {
		t.Fatalf("expected one return statement, got %+v", h.Block.Statements)
	}
	ret := h.Block.Statements[0].Expr
	if ret.Kind != ast.ExprOk || ret.Inner.Kind != ast.ExprVariable || ret.Inner.Name != "count" {
		t.Errorf("return expr = %+v, want Ok(Variable(count))", ret)
	}
}

// TestParseRootS6ReturnTypeMismatch confirms the *parser* accepts a
// body that later fails type checking (spec.md §8 S6) — it is
// internal/typecheck's job, not the grammar's, to reject it.
func TestParseRootS6ReturnTypeMismatch(t *testing.T) {
	src := `micro C {
		answer {
			on request GetCount() -> Result<Int,Error> { return Ok("x") }
		}
	}`
	root, err := ParseRoot(token.Lex(src))
	if err != nil {
		t.Fatalf("ParseRoot() error = %v", err)
	}
	ret := root.Agents[0].Answer.Handlers[0].Block.Statements[0].Expr
	lit, ok := ret.Inner.Literal.Scalar.AsString()
	if !ok || lit != "x" {
		t.Errorf("inner literal = %+v, want string \"x\"", ret.Inner.Literal)
	}
}

func TestParseRootWithAnswerConstraints(t *testing.T) {
	src := `micro C {
		answer {
			on request GetStatus() -> Result<Int,Error> with { strictness: 0.9, stability: 0.8 } {
				return Ok(1)
			}
		}
	}`
	root, err := ParseRoot(token.Lex(src))
	if err != nil {
		t.Fatalf("ParseRoot() error = %v", err)
	}
	h := root.Agents[0].Answer.Handlers[0]
	if h.Constraints == nil || h.Constraints.Strictness == nil || *h.Constraints.Strictness != 0.9 {
		t.Errorf("constraints = %+v, want strictness=0.9", h.Constraints)
	}
}

func TestParseRootReactWithEmit(t *testing.T) {
	src := `micro C {
		react {
			on NewData(data: Int) {
				emit Processed(data) -> Downstream
			}
		}
	}`
	root, err := ParseRoot(token.Lex(src))
	if err != nil {
		t.Fatalf("ParseRoot() error = %v", err)
	}
	h := root.Agents[0].React.Handlers[0]
	if h.EventType.Kind != ast.EventCustom || h.EventType.Name != "NewData" {
		t.Errorf("event type = %+v", h.EventType)
	}
	if len(h.Parameters) != 1 || h.Parameters[0].Name != "data" {
		t.Errorf("parameters = %+v", h.Parameters)
	}
	emit := h.Block.Statements[0]
	if emit.Kind != ast.StmtEmit || emit.Target != "Downstream" {
		t.Errorf("emit = %+v", emit)
	}
}

func TestParseRootWithErrorHandler(t *testing.T) {
	src := `micro C {
		observe {
			on Tick {
				count = count + 1 on_fail as e {
					rethrow
				}
			}
		}
	}`
	root, err := ParseRoot(token.Lex(src))
	if err != nil {
		t.Fatalf("ParseRoot() error = %v", err)
	}
	stmt := root.Agents[0].Observe.Handlers[0].Block.Statements[0]
	if stmt.Kind != ast.StmtWithError {
		t.Fatalf("got %+v, want StmtWithError", stmt)
	}
	if stmt.ErrorHandler.ErrorBinding != "e" || stmt.ErrorHandler.Control.Kind != ast.OnFailRethrow {
		t.Errorf("error handler = %+v", stmt.ErrorHandler)
	}
}

func TestParseRootIfElse(t *testing.T) {
	src := `micro C {
		observe {
			on Tick {
				if count > 10 {
					return Ok(count)
				} else {
					count = count + 1
				}
			}
		}
	}`
	root, err := ParseRoot(token.Lex(src))
	if err != nil {
		t.Fatalf("ParseRoot() error = %v", err)
	}
	stmt := root.Agents[0].Observe.Handlers[0].Block.Statements[0]
	if stmt.Kind != ast.StmtIf {
		t.Fatalf("got %+v, want StmtIf", stmt)
	}
	if len(stmt.Then) != 1 || len(stmt.Else) != 1 {
		t.Errorf("then/else = %+v / %+v", stmt.Then, stmt.Else)
	}
}
