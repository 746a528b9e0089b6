package eval

import (
	gocontext "context"
	"fmt"

	"github.com/kairei/agent-runtime/internal/ast"
	"github.com/kairei/agent-runtime/internal/event"
	"github.com/kairei/agent-runtime/internal/runtimectx"
	"github.com/kairei/agent-runtime/internal/value"
	kaireierrors "github.com/kairei/agent-runtime/pkg/errors"
)

// outcome is what running a handler block produces: a returned Value,
// or neither (the block fell off the end without a Return).
type outcome struct {
	value    value.Value
	returned bool
}

// EvalHandlerBlock runs block's statements in order inside a fresh
// scope, stopping at the first Return (spec.md §4.7 handler execution).
func EvalHandlerBlock(ctx gocontext.Context, rctx *runtimectx.Context, block ast.HandlerBlock) (value.Value, error) {
	rctx.PushScope()
	defer rctx.PopScope()
	out, err := execStatements(ctx, rctx, block.Statements)
	if err != nil {
		return value.Value{}, err
	}
	if out.returned {
		return out.value, nil
	}
	return value.Unit(), nil
}

func execStatements(ctx gocontext.Context, rctx *runtimectx.Context, stmts []ast.Statement) (outcome, error) {
	for _, s := range stmts {
		out, err := execStatement(ctx, rctx, s)
		if err != nil {
			return outcome{}, err
		}
		if out.returned {
			return out, nil
		}
	}
	return outcome{}, nil
}

func execStatement(ctx gocontext.Context, rctx *runtimectx.Context, s ast.Statement) (outcome, error) {
	switch s.Kind {
	case ast.StmtExpression:
		if _, err := EvalExpression(ctx, rctx, s.Expr); err != nil {
			return outcome{}, err
		}
		return outcome{}, nil

	case ast.StmtAssignment:
		return outcome{}, execAssignment(ctx, rctx, s)

	case ast.StmtReturn:
		v, err := EvalExpression(ctx, rctx, s.Expr)
		if err != nil {
			return outcome{}, err
		}
		return outcome{value: v, returned: true}, nil

	case ast.StmtEmit:
		return outcome{}, execEmit(ctx, rctx, s)

	case ast.StmtBlock:
		rctx.PushScope()
		defer rctx.PopScope()
		return execStatements(ctx, rctx, s.Block)

	case ast.StmtWithError:
		return execWithError(ctx, rctx, s)

	case ast.StmtIf:
		cond, err := EvalExpression(ctx, rctx, s.Condition)
		if err != nil {
			return outcome{}, err
		}
		b, ok := cond.AsBool()
		if !ok {
			return outcome{}, fmt.Errorf("%w: if condition must be Boolean", kaireierrors.ErrInvalidInput)
		}
		rctx.PushScope()
		defer rctx.PopScope()
		if b {
			return execStatements(ctx, rctx, s.Then)
		}
		return execStatements(ctx, rctx, s.Else)

	default:
		return outcome{}, fmt.Errorf("%w: unknown statement kind %v", kaireierrors.ErrInvalidInput, s.Kind)
	}
}

// execAssignment resolves each target as a Local (scope chain) or a
// State variable (spec.md §4.6 set(Local)/set(State)): a target already
// bound locally is reassigned locally; a target found only in global
// state is written there; an unbound target becomes a new local, the
// same fallback order GetLocal reads in.
func execAssignment(ctx gocontext.Context, rctx *runtimectx.Context, s ast.Statement) error {
	v, err := EvalExpression(ctx, rctx, s.Value)
	if err != nil {
		return err
	}

	values := []value.Value{v}
	if len(s.Targets) > 1 {
		list, ok := v.AsList()
		if !ok || len(list) != len(s.Targets) {
			return fmt.Errorf("%w: assignment arity mismatch", kaireierrors.ErrInvalidInput)
		}
		values = list
	}

	for i, target := range s.Targets {
		tv := values[i]
		switch target.Kind {
		case ast.ExprStateAccess:
			if err := rctx.SetState(ctx, target.Path.String(), tv); err != nil {
				return err
			}
		case ast.ExprVariable:
			if rctx.HasLocal(target.Name) {
				rctx.SetLocal(target.Name, tv)
				continue
			}
			if _, ok, _ := rctx.GetState(target.Name, rctx.AccessTimeout); ok {
				if err := rctx.SetState(ctx, target.Name, tv); err != nil {
					return err
				}
				continue
			}
			rctx.SetLocal(target.Name, tv)
		default:
			return fmt.Errorf("%w: assignment target must be Variable or StateAccess", kaireierrors.ErrInvalidInput)
		}
	}
	return nil
}

func execEmit(ctx gocontext.Context, rctx *runtimectx.Context, s ast.Statement) error {
	params, err := evalArgs(ctx, rctx, s.Args)
	if err != nil {
		return err
	}
	t := s.EventType
	if t.Kind == ast.EventCustom && t.Responder == "" {
		t.Responder = s.Target
	}
	return rctx.Bus.Publish(ctx, event.New(t, params))
}

// execWithError runs Inner, and on failure binds the error to
// ErrorHandler.ErrorBinding (if named) and runs its statements, ending
// in the declared control: return Ok/Err short-circuits the enclosing
// handler, rethrow propagates the original failure upward (spec.md §3
// Statement.WithError).
func execWithError(ctx gocontext.Context, rctx *runtimectx.Context, s ast.Statement) (outcome, error) {
	out, innerErr := execStatement(ctx, rctx, *s.Inner)
	if innerErr == nil {
		return out, nil
	}

	rctx.PushScope()
	defer rctx.PopScope()
	if s.ErrorHandler.ErrorBinding != "" {
		rctx.SetLocal(s.ErrorHandler.ErrorBinding, value.Str(innerErr.Error()))
	}
	if _, err := execStatements(ctx, rctx, s.ErrorHandler.Statements); err != nil {
		return outcome{}, err
	}

	switch s.ErrorHandler.Control.Kind {
	case ast.OnFailRethrow:
		return outcome{}, innerErr
	case ast.OnFailReturnOk, ast.OnFailReturnErr:
		v, err := EvalExpression(ctx, rctx, s.ErrorHandler.Control.Value)
		if err != nil {
			return outcome{}, err
		}
		if s.ErrorHandler.Control.Kind == ast.OnFailReturnErr {
			return outcome{}, &Failure{Value: v, Message: v.String()}
		}
		return outcome{value: v, returned: true}, nil
	default:
		return outcome{}, fmt.Errorf("%w: unknown on_fail control", kaireierrors.ErrInvalidInput)
	}
}

// EvalAnswerHandler runs block as an answer handler: a block that
// completes without error publishes a Response.Success carrying its
// value (v for a Return(Ok(v)); a bare returned value or a block that
// ends without a Return is also reported as Success), and a failing
// evaluation, including a Return(Err(e)), publishes Response.Failure
// (spec.md §4.7 "answer handler wrapper"). requestID correlates the response back to
// the waiting caller via internal/request.
func EvalAnswerHandler(ctx gocontext.Context, rctx *runtimectx.Context, block ast.HandlerBlock, requestID string) error {
	v, err := EvalHandlerBlock(ctx, rctx, block)
	if err != nil {
		var f *Failure
		payload := value.Str(err.Error())
		if assertFailure(err, &f) {
			payload = f.Value
		}
		return rctx.Bus.Publish(ctx, event.NewResponseEvent(requestID, false, map[string]value.Value{"value": payload}))
	}
	return rctx.Bus.Publish(ctx, event.NewResponseEvent(requestID, true, map[string]value.Value{"value": v}))
}

func assertFailure(err error, target **Failure) bool {
	f, ok := err.(*Failure)
	if !ok {
		return false
	}
	*target = f
	return true
}
