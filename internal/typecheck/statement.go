package typecheck

import "github.com/kairei/agent-runtime/internal/ast"

func (c *Checker) checkBlock(stmts []ast.Statement, location string) error {
	for _, s := range stmts {
		if err := c.checkStatement(s, location); err != nil {
			return err
		}
	}
	return nil
}

func (c *Checker) checkStatement(s ast.Statement, location string) error {
	switch s.Kind {
	case ast.StmtExpression:
		_, err := c.typeOfExpression(s.Expr, location)
		return err
	case ast.StmtAssignment:
		return c.checkAssignment(s, location)
	case ast.StmtReturn:
		return c.checkReturn(s, location)
	case ast.StmtEmit:
		return c.checkEmit(s, location)
	case ast.StmtBlock:
		cp := c.scope.enterScope()
		defer c.scope.exitScope(cp)
		return c.checkBlock(s.Block, location)
	case ast.StmtWithError:
		return c.checkWithError(s, location)
	case ast.StmtIf:
		return c.checkIf(s, location)
	default:
		return errf(TypeInferenceError, location, "unrecognized statement kind %d", s.Kind)
	}
}

// checkAssignment unifies the right-hand side against either an
// existing binding of the same variable name or the declared type of a
// state-access target, binding a fresh variable name on first
// assignment. internal/grammar's parseAssignmentOrExpr only ever
// produces a single-element Targets (confirmed in statement.go); the
// multi-target shape internal/eval's execAssignment defensively
// supports for destructuring is unreachable from the current grammar,
// so it is treated here as a no-op rather than invented type inference.
func (c *Checker) checkAssignment(s ast.Statement, location string) error {
	rhs, err := c.typeOfExpression(s.Value, location)
	if err != nil {
		return err
	}
	if len(s.Targets) != 1 {
		return nil
	}

	target := s.Targets[0]
	switch target.Kind {
	case ast.ExprVariable:
		if existing, ok := c.scope.lookup(target.Name); ok {
			if !unify(existing, rhs) {
				return mismatch(location, existing.String(), rhs.String())
			}
			return nil
		}
		c.scope.bind(target.Name, rhs)
		return nil
	case ast.ExprStateAccess:
		declared, err := c.typeOfStateAccess(target.Path, location)
		if err != nil {
			return err
		}
		if !unify(declared, rhs) {
			return mismatch(location, declared.String(), rhs.String())
		}
		return nil
	default:
		return errf(InvalidStateVariable, location, "assignment target must be a variable or state access")
	}
}

// checkReturn enforces spec.md §4.3's Return contract. Inside an
// observe/react event handler (c.returnType == nil) there is no
// declared contract to check the expression against.
func (c *Checker) checkReturn(s ast.Statement, location string) error {
	if c.returnType == nil {
		_, err := c.typeOfExpression(s.Expr, location)
		return err
	}
	return c.checkResultReturn(s.Expr, *c.returnType, location)
}

// checkResultReturn special-cases a literal `Ok(...)`/`Err(...)` return
// expression by unifying its inner expression directly against rt's Ok
// or Err component, rather than requiring the whole Result type to
// equal rt (spec.md §4.3; this is what makes S6's `return Ok("x")`
// against `Result<Int,Error>` fail with TypeMismatch{expected=Int,
// found=String} instead of a confusing Result-vs-Result mismatch). Any
// other return expression must itself type as a structurally
// compatible Result.
func (c *Checker) checkResultReturn(e ast.Expression, rt ast.TypeInfo, location string) error {
	switch e.Kind {
	case ast.ExprOk:
		inner, err := c.typeOfExpression(*e.Inner, location)
		if err != nil {
			return err
		}
		if !unify(*rt.Ok, inner) {
			return mismatch(location, rt.Ok.String(), inner.String())
		}
		return nil
	case ast.ExprErr:
		inner, err := c.typeOfExpression(*e.Inner, location)
		if err != nil {
			return err
		}
		if !unify(*rt.Err, inner) {
			return mismatch(location, rt.Err.String(), inner.String())
		}
		return nil
	default:
		t, err := c.typeOfExpression(e, location)
		if err != nil {
			return err
		}
		if !unify(rt, t) {
			return mismatch(location, rt.String(), t.String())
		}
		return nil
	}
}

func (c *Checker) checkEmit(s ast.Statement, location string) error {
	for _, a := range s.Args {
		if _, err := c.typeOfExpression(a.Value, location); err != nil {
			return err
		}
	}
	return nil
}

// checkWithError checks the guarded inner statement, then the
// on_fail block in its own scope with the bound error name (if any)
// visible only inside it.
func (c *Checker) checkWithError(s ast.Statement, location string) error {
	if s.Inner != nil {
		if err := c.checkStatement(*s.Inner, location); err != nil {
			return err
		}
	}

	cp := c.scope.enterScope()
	defer c.scope.exitScope(cp)
	if s.ErrorHandler.ErrorBinding != "" {
		c.scope.bind(s.ErrorHandler.ErrorBinding, typeError)
	}
	if err := c.checkBlock(s.ErrorHandler.Statements, location); err != nil {
		return err
	}
	return c.checkOnFailControl(s.ErrorHandler.Control, location)
}

// checkOnFailControl checks an on_fail block's terminating directive.
// Unlike an ordinary `return Ok(...)`/`Err(...)` statement,
// internal/eval's execWithError evaluates OnFailReturnOk/Err's Value as
// a bare expression and uses it directly as the Ok/Err payload (no
// Ok(...)/Err(...) AST wrapper) — so it is unified directly against
// returnType.Ok/Err, not routed through checkResultReturn.
func (c *Checker) checkOnFailControl(ctl ast.OnFailControl, location string) error {
	switch ctl.Kind {
	case ast.OnFailRethrow:
		return nil
	case ast.OnFailReturnOk:
		if c.returnType == nil {
			_, err := c.typeOfExpression(ctl.Value, location)
			return err
		}
		t, err := c.typeOfExpression(ctl.Value, location)
		if err != nil {
			return err
		}
		if !unify(*c.returnType.Ok, t) {
			return mismatch(location, c.returnType.Ok.String(), t.String())
		}
		return nil
	case ast.OnFailReturnErr:
		if c.returnType == nil {
			_, err := c.typeOfExpression(ctl.Value, location)
			return err
		}
		t, err := c.typeOfExpression(ctl.Value, location)
		if err != nil {
			return err
		}
		if !unify(*c.returnType.Err, t) {
			return mismatch(location, c.returnType.Err.String(), t.String())
		}
		return nil
	default:
		return errf(TypeInferenceError, location, "unrecognized on_fail control kind %d", ctl.Kind)
	}
}

func (c *Checker) checkIf(s ast.Statement, location string) error {
	condType, err := c.typeOfExpression(s.Condition, location)
	if err != nil {
		return err
	}
	if !isBoolean(condType) {
		return mismatch(location, "Boolean", condType.String())
	}

	cp := c.scope.enterScope()
	thenErr := c.checkBlock(s.Then, location)
	c.scope.exitScope(cp)
	if thenErr != nil {
		return thenErr
	}

	cp = c.scope.enterScope()
	defer c.scope.exitScope(cp)
	return c.checkBlock(s.Else, location)
}
