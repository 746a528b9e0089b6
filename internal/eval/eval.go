// Package eval implements the recursive expression/statement reducer
// of spec.md §4.7: `(Expression, *runtimectx.Context) -> Value`, plus
// handler-block execution for observe/react/answer/lifecycle bodies.
//
// spec.md §3 lists the runtime Value kinds and does not include a
// "Result" variant; Ok/Err and the Result-returning forms (Think,
// Request, Await) are therefore realized the idiomatic Go way — as a
// (Value, error) return — rather than as a tagged Value. Err(e) folds
// to a *Failure error carrying e's evaluated Value so a caller can
// recover the payload; Ok(e) folds straight through to e's Value.
package eval

import (
	gocontext "context"
	"fmt"
	"strconv"
	"time"

	"github.com/kairei/agent-runtime/internal/ast"
	"github.com/kairei/agent-runtime/internal/event"
	"github.com/kairei/agent-runtime/internal/provider"
	"github.com/kairei/agent-runtime/internal/request"
	"github.com/kairei/agent-runtime/internal/runtimectx"
	"github.com/kairei/agent-runtime/internal/value"
	kaireierrors "github.com/kairei/agent-runtime/pkg/errors"
)

// Failure wraps the Value carried by an evaluated Err(e) or a failed
// Think/Request/Await, so callers can recover the payload with
// errors.As while the Go call chain still uses plain error returns.
type Failure struct {
	Value   value.Value
	Message string
}

func (f *Failure) Error() string { return f.Message }

func failuref(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return &Failure{Value: value.Str(msg), Message: msg}
}

// EvalExpression reduces expr to a Value inside rctx (spec.md §4.7).
func EvalExpression(ctx gocontext.Context, rctx *runtimectx.Context, expr ast.Expression) (value.Value, error) {
	switch expr.Kind {
	case ast.ExprLiteral:
		return evalLiteral(expr.Literal), nil

	case ast.ExprVariable:
		v, ok, err := rctx.GetLocal(ctx, expr.Name, rctx.AccessTimeout)
		if err != nil {
			return value.Value{}, err
		}
		if !ok {
			return value.Value{}, fmt.Errorf("%w: %s", kaireierrors.ErrNotFound, expr.Name)
		}
		return v, nil

	case ast.ExprStateAccess:
		key := expr.Path.String()
		v, ok, err := rctx.GetState(key, rctx.AccessTimeout)
		if err != nil {
			return value.Value{}, err
		}
		if !ok {
			return value.Value{}, fmt.Errorf("%w: %s", kaireierrors.ErrNotFound, key)
		}
		return v, nil

	case ast.ExprBinaryOp:
		return evalBinaryOp(ctx, rctx, expr)

	case ast.ExprFunctionCall:
		return evalFunctionCall(ctx, rctx, expr)

	case ast.ExprThink:
		return evalThink(ctx, rctx, expr)

	case ast.ExprRequest:
		return evalRequest(ctx, rctx, expr)

	case ast.ExprAwait:
		return evalAwait(ctx, rctx, expr)

	case ast.ExprOk:
		return EvalExpression(ctx, rctx, *expr.Inner)

	case ast.ExprErr:
		v, err := EvalExpression(ctx, rctx, *expr.Inner)
		if err != nil {
			return value.Value{}, err
		}
		return value.Value{}, &Failure{Value: v, Message: v.String()}

	default:
		return value.Value{}, fmt.Errorf("%w: unknown expression kind %v", kaireierrors.ErrInvalidInput, expr.Kind)
	}
}

func evalLiteral(l ast.Literal) value.Value {
	if l.IsList {
		items := make([]value.Value, len(l.List))
		for i, item := range l.List {
			items[i] = evalLiteral(item)
		}
		return value.List(items)
	}
	if l.IsMap {
		m := make(map[string]value.Value, len(l.Map))
		for k, item := range l.Map {
			m[k] = evalLiteral(item)
		}
		return value.Map(m)
	}
	return l.Scalar
}

func evalBinaryOp(ctx gocontext.Context, rctx *runtimectx.Context, expr ast.Expression) (value.Value, error) {
	left, err := EvalExpression(ctx, rctx, *expr.Left)
	if err != nil {
		return value.Value{}, err
	}
	right, err := EvalExpression(ctx, rctx, *expr.Right)
	if err != nil {
		return value.Value{}, err
	}

	switch expr.Op {
	case ast.OpAdd:
		if ls, ok := left.AsString(); ok {
			if rs, ok := right.AsString(); ok {
				return value.Str(ls + rs), nil
			}
		}
		return numericOp(left, right, func(a, b float64) float64 { return a + b }, func(a, b int64) int64 { return a + b })
	case ast.OpSubtract:
		return numericOp(left, right, func(a, b float64) float64 { return a - b }, func(a, b int64) int64 { return a - b })
	case ast.OpMultiply:
		return numericOp(left, right, func(a, b float64) float64 { return a * b }, func(a, b int64) int64 { return a * b })
	case ast.OpDivide:
		rf, _ := right.Numeric()
		if rf == 0 {
			return value.Value{}, failuref("DivisionByZero")
		}
		return numericOp(left, right, func(a, b float64) float64 { return a / b }, func(a, b int64) int64 { return a / b })
	case ast.OpEqual:
		return value.Bool(left.Equal(right)), nil
	case ast.OpNotEqual:
		return value.Bool(!left.Equal(right)), nil
	case ast.OpLessThan, ast.OpLessThanOrEqual, ast.OpGreaterThan, ast.OpGreaterThanOrEqual:
		lf, lok := left.Numeric()
		rf, rok := right.Numeric()
		if !lok || !rok {
			return value.Value{}, fmt.Errorf("%w: comparison requires numeric operands", kaireierrors.ErrInvalidInput)
		}
		var b bool
		switch expr.Op {
		case ast.OpLessThan:
			b = lf < rf
		case ast.OpLessThanOrEqual:
			b = lf <= rf
		case ast.OpGreaterThan:
			b = lf > rf
		case ast.OpGreaterThanOrEqual:
			b = lf >= rf
		}
		return value.Bool(b), nil
	case ast.OpAnd, ast.OpOr:
		lb, lok := left.AsBool()
		rb, rok := right.AsBool()
		if !lok || !rok {
			return value.Value{}, fmt.Errorf("%w: logical operator requires boolean operands", kaireierrors.ErrInvalidInput)
		}
		if expr.Op == ast.OpAnd {
			return value.Bool(lb && rb), nil
		}
		return value.Bool(lb || rb), nil
	default:
		return value.Value{}, fmt.Errorf("%w: unknown operator", kaireierrors.ErrInvalidInput)
	}
}

// numericOp promotes Int/Int to Int (via intOp) unless either operand
// is Float, in which case both promote to Float (spec.md §4.7
// "arithmetic promotes Int<->Float").
func numericOp(left, right value.Value, floatOp func(a, b float64) float64, intOp func(a, b int64) int64) (value.Value, error) {
	li, lIsInt := left.AsInt()
	ri, rIsInt := right.AsInt()
	if lIsInt && rIsInt && intOp != nil {
		return value.Int(intOp(li, ri)), nil
	}
	lf, lok := left.Numeric()
	rf, rok := right.Numeric()
	if !lok || !rok {
		return value.Value{}, fmt.Errorf("%w: arithmetic requires numeric operands", kaireierrors.ErrInvalidInput)
	}
	return value.Float(floatOp(lf, rf)), nil
}

func evalFunctionCall(ctx gocontext.Context, rctx *runtimectx.Context, expr ast.Expression) (value.Value, error) {
	args := make([]value.Value, len(expr.Arguments))
	for i, a := range expr.Arguments {
		v, err := EvalExpression(ctx, rctx, a)
		if err != nil {
			return value.Value{}, err
		}
		args[i] = v
	}
	if len(args) != 1 {
		return value.Value{}, fmt.Errorf("%w: %s takes exactly one argument", kaireierrors.ErrInvalidInput, expr.Function)
	}
	switch expr.Function {
	case "len":
		return builtinLen(args[0])
	case "sum":
		return builtinSum(args[0])
	case "avg":
		return builtinAvg(args[0])
	default:
		return value.Value{}, fmt.Errorf("%w: unknown function %q", kaireierrors.ErrInvalidInput, expr.Function)
	}
}

func builtinLen(v value.Value) (value.Value, error) {
	if s, ok := v.AsString(); ok {
		return value.Int(int64(len(s))), nil
	}
	if l, ok := v.AsList(); ok {
		return value.Int(int64(len(l))), nil
	}
	if m, ok := v.AsMap(); ok {
		return value.Int(int64(len(m))), nil
	}
	return value.Value{}, fmt.Errorf("%w: len requires String/List/Map", kaireierrors.ErrInvalidInput)
}

func builtinSum(v value.Value) (value.Value, error) {
	list, ok := v.AsList()
	if !ok {
		return value.Value{}, fmt.Errorf("%w: sum requires a numeric List", kaireierrors.ErrInvalidInput)
	}
	var total float64
	allInt := true
	for _, item := range list {
		f, ok := item.Numeric()
		if !ok {
			return value.Value{}, fmt.Errorf("%w: sum requires a numeric List", kaireierrors.ErrInvalidInput)
		}
		if _, isInt := item.AsInt(); !isInt {
			allInt = false
		}
		total += f
	}
	if allInt {
		return value.Int(int64(total)), nil
	}
	return value.Float(total), nil
}

func builtinAvg(v value.Value) (value.Value, error) {
	list, ok := v.AsList()
	if !ok || len(list) == 0 {
		return value.Value{}, fmt.Errorf("%w: avg requires a non-empty numeric List", kaireierrors.ErrInvalidInput)
	}
	var total float64
	for _, item := range list {
		f, ok := item.Numeric()
		if !ok {
			return value.Value{}, fmt.Errorf("%w: avg requires a numeric List", kaireierrors.ErrInvalidInput)
		}
		total += f
	}
	return value.Float(total / float64(len(list))), nil
}

func evalArgs(ctx gocontext.Context, rctx *runtimectx.Context, args []ast.Argument) (map[string]value.Value, error) {
	out := make(map[string]value.Value, len(args))
	for i, a := range args {
		v, err := EvalExpression(ctx, rctx, a.Value)
		if err != nil {
			return nil, err
		}
		name := a.Name
		if name == "" {
			name = strconv.Itoa(i)
		}
		out[name] = v
	}
	return out, nil
}

// evalThink builds a prompt via the context's PromptGenerator, invokes
// the selected provider, and retries per with.retry (spec.md §4.7).
// State locks are never held across this call: it only touches rctx
// for prompt args already evaluated and read-only provider lookup.
func evalThink(ctx gocontext.Context, rctx *runtimectx.Context, expr ast.Expression) (value.Value, error) {
	argVals, err := evalArgs(ctx, rctx, expr.ThinkArgs)
	if err != nil {
		return value.Value{}, err
	}
	anyArgs := make(map[string]any, len(argVals))
	for k, v := range argVals {
		anyArgs[k] = v.String()
	}

	prompt := rctx.PromptGen(anyArgs, expr.With, rctx.Policies)

	providerName := "default"
	var req provider.Request
	req.Prompt = prompt
	if expr.With != nil {
		if expr.With.Provider != nil {
			providerName = *expr.With.Provider
		}
		if expr.With.Model != nil {
			req.Model = *expr.With.Model
		}
		if expr.With.Temperature != nil {
			req.Temperature = *expr.With.Temperature
		}
		if expr.With.MaxTokens != nil {
			req.MaxTokens = *expr.With.MaxTokens
		}
	}
	p, ok := rctx.Providers[providerName]
	if !ok {
		return value.Value{}, fmt.Errorf("%w: provider %q not configured", kaireierrors.ErrNotFound, providerName)
	}

	maxAttempts := uint64(1)
	var delay func(attempt uint64) time.Duration
	if expr.With != nil && expr.With.Retry != nil {
		maxAttempts = expr.With.Retry.MaxAttempts
		delay = retryDelayFunc(expr.With.Retry.Delay)
	}
	if maxAttempts == 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := uint64(0); attempt < maxAttempts; attempt++ {
		if attempt > 0 && delay != nil {
			select {
			case <-time.After(delay(attempt)):
			case <-ctx.Done():
				return value.Value{}, ctx.Err()
			}
		}
		resp, err := p.Execute(ctx, req)
		if err == nil {
			return value.Str(resp.Text), nil
		}
		lastErr = err
	}
	return value.Value{}, fmt.Errorf("%w: think failed after %d attempt(s): %v", kaireierrors.ErrInternal, maxAttempts, lastErr)
}

func retryDelayFunc(d ast.RetryDelay) func(attempt uint64) time.Duration {
	switch d.Kind {
	case ast.RetryFixed:
		return func(uint64) time.Duration { return time.Duration(d.FixedMS) * time.Millisecond }
	case ast.RetryExponential:
		return func(attempt uint64) time.Duration {
			ms := d.InitialMS << attempt
			if d.MaxMS > 0 && ms > d.MaxMS {
				ms = d.MaxMS
			}
			return time.Duration(ms) * time.Millisecond
		}
	default:
		return func(uint64) time.Duration { return 0 }
	}
}

// evalRequest constructs a Request event and awaits its Response via
// the request manager (spec.md §4.7).
func evalRequest(ctx gocontext.Context, rctx *runtimectx.Context, expr ast.Expression) (value.Value, error) {
	args, err := evalArgs(ctx, rctx, expr.RequestArgs)
	if err != nil {
		return value.Value{}, err
	}
	if expr.Agent == "" {
		return value.Value{}, fmt.Errorf("%w: request agent must be non-empty", kaireierrors.ErrInvalidInput)
	}
	requestID := request.NewRequestID()
	reqEvent := event.NewRequestEvent(expr.RequestType, rctx.AgentName, expr.Agent, requestID, args)

	timeout := rctx.RequestTimeout
	if expr.RequestOpts != nil && expr.RequestOpts.TimeoutMS != nil {
		timeout = time.Duration(*expr.RequestOpts.TimeoutMS) * time.Millisecond
	}
	reqCtx, cancel := gocontext.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := rctx.RequestManager.Request(reqCtx, reqEvent)
	if err != nil {
		return value.Value{}, err
	}
	if !resp.Type.Success {
		return value.Value{}, &Failure{Value: firstParam(resp.Parameters), Message: "request failed"}
	}
	return firstParam(resp.Parameters), nil
}

func firstParam(params map[string]value.Value) value.Value {
	if v, ok := params["value"]; ok {
		return v
	}
	for _, v := range params {
		return v
	}
	return value.Unit()
}

// evalAwait concurrently evaluates each child expression (each itself
// ordinarily a Request or Think), returning the single unwrapped value
// for a one-element Await or a Tuple otherwise (spec.md §4.7).
func evalAwait(ctx gocontext.Context, rctx *runtimectx.Context, expr ast.Expression) (value.Value, error) {
	type outcome struct {
		v   value.Value
		err error
	}
	results := make([]outcome, len(expr.Awaited))
	done := make(chan struct{}, len(expr.Awaited))
	for i, child := range expr.Awaited {
		i, child := i, child
		go func() {
			v, err := EvalExpression(ctx, rctx, child)
			results[i] = outcome{v: v, err: err}
			done <- struct{}{}
		}()
	}
	for range expr.Awaited {
		<-done
	}
	values := make([]value.Value, len(results))
	for i, r := range results {
		if r.err != nil {
			return value.Value{}, r.err
		}
		values[i] = r.v
	}
	if len(values) == 1 {
		return values[0], nil
	}
	return value.Tuple(values), nil
}
