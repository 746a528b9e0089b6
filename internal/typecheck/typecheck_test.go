package typecheck

import (
	"testing"

	"github.com/kairei/agent-runtime/internal/ast"
	"github.com/kairei/agent-runtime/internal/grammar"
	"github.com/kairei/agent-runtime/internal/token"
)

func parseSrc(t *testing.T, src string) ast.Root {
	t.Helper()
	root, err := grammar.ParseRoot(token.Lex(src))
	if err != nil {
		t.Fatalf("ParseRoot() error = %v", err)
	}
	return root
}

// TestCheckRootS6ReturnTypeMismatchFails grounds spec.md §8 scenario S6:
// a handler declared `GetCount() -> Result<Int,Error>` whose body
// `return Ok("x")` must fail with TypeMismatch{expected=Int,
// found=String}.
func TestCheckRootS6ReturnTypeMismatchFails(t *testing.T) {
	root := parseSrc(t, `micro C {
		answer {
			on request GetCount() -> Result<Int,Error> { return Ok("x") }
		}
	}`)

	err := CheckRoot(root, nil)
	if err == nil {
		t.Fatal("expected a type error, got nil")
	}
	te, ok := AsError(err)
	if !ok {
		t.Fatalf("error = %v, want a *typecheck.Error", err)
	}
	if te.Kind != TypeMismatch {
		t.Errorf("Kind = %v, want TypeMismatch", te.Kind)
	}
	if te.Expected != "Int" || te.Found != "String" {
		t.Errorf("Expected/Found = %q/%q, want Int/String", te.Expected, te.Found)
	}
}

func TestCheckRootAcceptsMatchingReturnType(t *testing.T) {
	root := parseSrc(t, `micro C {
		answer {
			on request GetCount() -> Result<Int,Error> { return Ok(1) }
		}
	}`)
	if err := CheckRoot(root, nil); err != nil {
		t.Fatalf("CheckRoot() error = %v", err)
	}
}

func TestCheckRootAcceptsIntWideningToFloatReturn(t *testing.T) {
	root := parseSrc(t, `micro C {
		answer {
			on request GetRatio() -> Result<Float,Error> { return Ok(1) }
		}
	}`)
	if err := CheckRoot(root, nil); err != nil {
		t.Fatalf("CheckRoot() error = %v", err)
	}
}

func TestCheckRootRejectsNonResultAnswerReturnType(t *testing.T) {
	def := ast.MicroAgentDef{
		Name: "C",
		Answer: &ast.AnswerDef{Handlers: []ast.RequestHandler{
			{
				RequestType: ast.RequestType{Kind: ast.RequestQuery, Name: "Bad"},
				ReturnType:  ast.Simple("Int"),
				Block: ast.HandlerBlock{Statements: []ast.Statement{
					{Kind: ast.StmtReturn, Expr: ast.LiteralExpr(ast.LitInt(1))},
				}},
			},
		}},
	}
	err := CheckRoot(ast.Root{Agents: []ast.MicroAgentDef{def}}, nil)
	if err == nil {
		t.Fatal("expected an error for a non-Result answer return type")
	}
	te, ok := AsError(err)
	if !ok || te.Kind != InvalidHandlerSignature {
		t.Errorf("error = %v, want InvalidHandlerSignature", err)
	}
}

func TestCheckRootRejectsUndefinedVariable(t *testing.T) {
	def := ast.MicroAgentDef{
		Name: "C",
		Observe: &ast.ObserveDef{Handlers: []ast.EventHandler{
			{
				EventType: ast.EventType{Kind: ast.EventTick},
				Block: ast.HandlerBlock{Statements: []ast.Statement{
					{Kind: ast.StmtExpression, Expr: ast.Var("missing")},
				}},
			},
		}},
	}
	err := CheckRoot(ast.Root{Agents: []ast.MicroAgentDef{def}}, nil)
	te, ok := AsError(err)
	if !ok || te.Kind != UndefinedVariable {
		t.Errorf("error = %v, want UndefinedVariable", err)
	}
}

func TestCheckRootRejectsStateInitializerMismatch(t *testing.T) {
	def := ast.MicroAgentDef{
		Name: "C",
		State: &ast.StateDef{Variables: map[string]ast.StateVarDef{
			"count": {Name: "count", Type: ast.Simple("Int"), InitialValue: ast.LiteralExpr(ast.LitString("x"))},
		}},
	}
	err := CheckRoot(ast.Root{Agents: []ast.MicroAgentDef{def}}, nil)
	te, ok := AsError(err)
	if !ok || te.Kind != TypeMismatch {
		t.Errorf("error = %v, want TypeMismatch", err)
	}
}

// TestCheckRootAcceptsTypeOnlyStateDeclaration exercises the
// reflect.DeepEqual-against-zero-Expression sentinel: a state variable
// declared with no initializer at all must not be unified against
// anything.
func TestCheckRootAcceptsTypeOnlyStateDeclaration(t *testing.T) {
	def := ast.MicroAgentDef{
		Name: "C",
		State: &ast.StateDef{Variables: map[string]ast.StateVarDef{
			"count": {Name: "count", Type: ast.Simple("Int")},
		}},
	}
	if err := CheckRoot(ast.Root{Agents: []ast.MicroAgentDef{def}}, nil); err != nil {
		t.Fatalf("CheckRoot() error = %v", err)
	}
}

func TestCheckRootRejectsParameterShadowMismatch(t *testing.T) {
	def := ast.MicroAgentDef{
		Name: "C",
		Observe: &ast.ObserveDef{Handlers: []ast.EventHandler{
			{
				EventType:  ast.EventType{Kind: ast.EventCustom, Name: "First"},
				Parameters: []ast.Parameter{{Name: "x", Type: ast.Simple("Int")}},
				Block:      ast.HandlerBlock{Statements: []ast.Statement{{Kind: ast.StmtExpression, Expr: ast.Var("x")}}},
			},
			{
				EventType:  ast.EventType{Kind: ast.EventCustom, Name: "Second"},
				Parameters: []ast.Parameter{{Name: "x", Type: ast.Simple("String")}},
				Block:      ast.HandlerBlock{Statements: []ast.Statement{{Kind: ast.StmtExpression, Expr: ast.Var("x")}}},
			},
		}},
	}
	// Each handler's own parameter scope is independent: a later handler
	// rebinding the same name with a different type is not a shadow
	// conflict (there is no outer binding of "x" at the agent's own
	// scope), so this must type-check cleanly. The genuine shadow case
	// (param name colliding with an enclosing block's binding of a
	// different type) is covered directly via the scope stack in
	// TestScopeLookupOuterExcludesJustEnteredFrame below.
	if err := CheckRoot(ast.Root{Agents: []ast.MicroAgentDef{def}}, nil); err != nil {
		t.Fatalf("CheckRoot() error = %v", err)
	}
}

func TestScopeLookupOuterExcludesJustEnteredFrame(t *testing.T) {
	s := newScopeStack()
	s.bind("x", ast.Simple("Int"))

	cp := s.enterScope()
	s.bind("x", ast.Simple("String"))

	if _, ok := s.lookupOuter(cp, "x"); !ok {
		t.Fatal("lookupOuter should find the outer binding of x")
	}
	if outer, _ := s.lookupOuter(cp, "x"); !outer.Equal(ast.Simple("Int")) {
		t.Errorf("lookupOuter found %v, want Int (the outer binding, not the shadowing one)", outer)
	}
	s.exitScope(cp)

	if got, ok := s.lookup("x"); !ok || !got.Equal(ast.Simple("Int")) {
		t.Errorf("after exitScope, lookup(x) = %v, %v, want Int restored", got, ok)
	}
}

// TestCheckRootScopeStackBalancedAfterSuccess grounds spec.md §8
// property 3: every enterScope during a full successful CheckRoot run
// has a matching exitScope, so no binding ever leaks into an outer
// scope.
func TestCheckRootScopeStackBalancedAfterSuccess(t *testing.T) {
	root := parseSrc(t, `micro Counter {
		state { count: Int = 0 }
		observe {
			on Tick { count = count + 1 }
		}
		answer {
			on request GetCount() -> Result<Int,Error> { return Ok(count) }
		}
	}`)

	c := New(nil)
	if err := c.CheckRoot(root); err != nil {
		t.Fatalf("CheckRoot() error = %v", err)
	}
	if !c.ScopeBalanced() {
		t.Error("scope stack not balanced after a successful CheckRoot run")
	}
	if c.scope.enters == 0 {
		t.Error("expected at least one scope to have been entered")
	}
}

func TestCheckRootRejectsUndeclaredCustomType(t *testing.T) {
	def := ast.MicroAgentDef{
		Name: "C",
		State: &ast.StateDef{Variables: map[string]ast.StateVarDef{
			"profile": {Name: "profile", Type: ast.Custom("Profile", nil)},
		}},
	}
	err := CheckRoot(ast.Root{Agents: []ast.MicroAgentDef{def}}, nil)
	te, ok := AsError(err)
	if !ok || te.Kind != UndefinedType {
		t.Errorf("error = %v, want UndefinedType", err)
	}
}

func TestCheckRootDeclaresCustomTypeOnFirstOccurrenceWithFields(t *testing.T) {
	profileType := ast.Custom("Profile", map[string]ast.FieldInfo{
		"name": {Type: func() *ast.TypeInfo { t := ast.Simple("String"); return &t }()},
	})
	def := ast.MicroAgentDef{
		Name: "C",
		State: &ast.StateDef{Variables: map[string]ast.StateVarDef{
			"profile":  {Name: "profile", Type: profileType},
			"profile2": {Name: "profile2", Type: ast.Custom("Profile", nil)},
		}},
	}
	if err := CheckRoot(ast.Root{Agents: []ast.MicroAgentDef{def}}, nil); err != nil {
		t.Fatalf("CheckRoot() error = %v", err)
	}
}

func TestCheckRootRejectsNonSerialisableRequestArgument(t *testing.T) {
	def := ast.MicroAgentDef{
		Name: "C",
		Observe: &ast.ObserveDef{Handlers: []ast.EventHandler{
			{
				EventType: ast.EventType{Kind: ast.EventTick},
				Block: ast.HandlerBlock{Statements: []ast.Statement{
					{
						Kind: ast.StmtExpression,
						Expr: ast.Expression{
							Kind:        ast.ExprRequest,
							Agent:       "Other",
							RequestType: ast.RequestType{Kind: ast.RequestQuery, Name: "Get"},
							RequestArgs: []ast.Argument{
								{Name: "bad", Value: ast.Expression{
									Kind: ast.ExprOk,
									Inner: func() *ast.Expression { e := ast.LiteralExpr(ast.LitInt(1)); return &e }(),
								}},
							},
						},
					},
				}},
			},
		}},
	}
	err := CheckRoot(ast.Root{Agents: []ast.MicroAgentDef{def}}, nil)
	te, ok := AsError(err)
	if !ok || te.Kind != InvalidHandlerSignature {
		t.Errorf("error = %v, want InvalidHandlerSignature (Result is never serialisable)", err)
	}
}

func TestCheckRootValidatesThinkTemperatureRange(t *testing.T) {
	badTemp := 1.5
	def := ast.MicroAgentDef{
		Name: "C",
		Observe: &ast.ObserveDef{Handlers: []ast.EventHandler{
			{
				EventType: ast.EventType{Kind: ast.EventTick},
				Block: ast.HandlerBlock{Statements: []ast.Statement{
					{
						Kind: ast.StmtExpression,
						Expr: ast.Expression{
							Kind: ast.ExprThink,
							With: &ast.ThinkAttributes{Temperature: &badTemp},
						},
					},
				}},
			},
		}},
	}
	err := CheckRoot(ast.Root{Agents: []ast.MicroAgentDef{def}}, nil)
	te, ok := AsError(err)
	if !ok || te.Kind != InvalidThinkBlock {
		t.Errorf("error = %v, want InvalidThinkBlock for temperature=1.5", err)
	}
}

func TestCheckRootValidatesOnFailReturnOkAgainstReturnType(t *testing.T) {
	root := parseSrc(t, `micro C {
		answer {
			on request GetCount() -> Result<Int,Error> {
				return Ok(0) on_fail {
					return Ok("bad")
				}
			}
		}
	}`)
	err := CheckRoot(root, nil)
	te, ok := AsError(err)
	if !ok || te.Kind != TypeMismatch || te.Expected != "Int" || te.Found != "String" {
		t.Errorf("error = %v, want TypeMismatch{Int,String}", err)
	}
}

func TestCheckOnFailControlUnwrapsBareValueNotOkErrWrapped(t *testing.T) {
	rt := ast.Result(ast.Simple("Int"), ast.Simple("Error"))
	c := New(nil)
	c.returnType = &rt

	err := c.checkOnFailControl(ast.OnFailControl{
		Kind:  ast.OnFailReturnOk,
		Value: ast.LiteralExpr(ast.LitString("bad")),
	}, "test")
	te, ok := AsError(err)
	if !ok || te.Kind != TypeMismatch || te.Expected != "Int" || te.Found != "String" {
		t.Errorf("error = %v, want TypeMismatch{Int,String}", err)
	}
}
