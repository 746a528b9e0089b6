package typecheck

import (
	"github.com/kairei/agent-runtime/internal/ast"
	"github.com/kairei/agent-runtime/internal/provider"
	"github.com/kairei/agent-runtime/internal/value"
)

var (
	typeAny      = ast.Simple("Any")
	typeInt      = ast.Simple("Int")
	typeFloat    = ast.Simple("Float")
	typeString   = ast.Simple("String")
	typeBool     = ast.Simple("Boolean")
	typeError    = ast.Simple("Error")
	typeUnit     = ast.Simple("Unit")
	typeNull     = ast.Simple("Null")
	typeDuration = ast.Simple("Duration")
)

// unify reports whether found may stand in for expected: structural
// equality (ast.TypeInfo.Equal), the Any wildcard matching anything, or
// Int widening to Float (spec.md §4.7's arithmetic promotion, extended
// here to assignment/return checks too).
func unify(expected, found ast.TypeInfo) bool {
	if expected.Equal(found) {
		return true
	}
	if expected.IsAny() || found.IsAny() {
		return true
	}
	if expected.Kind == ast.TypeSimple && expected.Name == "Float" && found.Kind == ast.TypeSimple && found.Name == "Int" {
		return true
	}
	return false
}

// typeOfExpression infers e's static type within c's current scope,
// location naming the construct at fault for any error raised.
func (c *Checker) typeOfExpression(e ast.Expression, location string) (ast.TypeInfo, error) {
	switch e.Kind {
	case ast.ExprLiteral:
		return c.typeOfLiteral(e.Literal, location)
	case ast.ExprVariable:
		t, ok := c.scope.lookup(e.Name)
		if !ok {
			// a bare name falls back to the agent's state variables,
			// as the evaluator's Local lookup falls back to global state
			t, ok = c.stateVars[e.Name]
		}
		if !ok {
			return ast.TypeInfo{}, errf(UndefinedVariable, location, "undefined variable %q", e.Name)
		}
		return t, nil
	case ast.ExprStateAccess:
		return c.typeOfStateAccess(e.Path, location)
	case ast.ExprFunctionCall:
		return c.typeOfFunctionCall(e, location)
	case ast.ExprThink:
		return c.typeOfThink(e, location)
	case ast.ExprRequest:
		return c.typeOfRequest(e, location)
	case ast.ExprAwait:
		return c.typeOfAwait(e, location)
	case ast.ExprBinaryOp:
		return c.typeOfBinaryOp(e, location)
	case ast.ExprOk:
		inner, err := c.typeOfExpression(*e.Inner, location)
		if err != nil {
			return ast.TypeInfo{}, err
		}
		return ast.Result(inner, typeAny), nil
	case ast.ExprErr:
		inner, err := c.typeOfExpression(*e.Inner, location)
		if err != nil {
			return ast.TypeInfo{}, err
		}
		return ast.Result(typeAny, inner), nil
	default:
		return ast.TypeInfo{}, errf(TypeInferenceError, location, "unrecognized expression kind %d", e.Kind)
	}
}

// typeOfLiteral infers a constant's type, declaring any Custom type it
// introduces along the way (spec.md §4.3 "must be pre-declared").
func (c *Checker) typeOfLiteral(l ast.Literal, location string) (ast.TypeInfo, error) {
	switch {
	case l.IsList:
		if len(l.List) == 0 {
			return ast.Array(typeAny), nil
		}
		elem, err := c.typeOfLiteral(l.List[0], location)
		if err != nil {
			return ast.TypeInfo{}, err
		}
		return ast.Array(elem), nil
	case l.IsMap:
		return ast.MapOf(typeString, typeAny), nil
	default:
		return typeOfScalar(l.Scalar), nil
	}
}

func typeOfScalar(v value.Value) ast.TypeInfo {
	switch v.Kind() {
	case value.KindInteger:
		return typeInt
	case value.KindFloat:
		return typeFloat
	case value.KindString:
		return typeString
	case value.KindBoolean:
		return typeBool
	case value.KindDuration:
		return typeDuration
	case value.KindUnit:
		return typeUnit
	case value.KindNull:
		return typeNull
	default:
		return typeAny
	}
}

// typeOfStateAccess resolves a dotted path against the state table of
// the agent currently being checked (spec.md §4.3 StateAccess: "each
// segment of the path must resolve against the declared/Custom field
// tree").
func (c *Checker) typeOfStateAccess(path ast.StateAccessPath, location string) (ast.TypeInfo, error) {
	if len(path) == 0 {
		return ast.TypeInfo{}, errf(InvalidStateVariable, location, "empty state access path")
	}
	cur, ok := c.stateVars[path[0]]
	if !ok {
		return ast.TypeInfo{}, errf(UndefinedVariable, location, "undefined state variable %q", path[0])
	}
	for _, seg := range path[1:] {
		if cur.Kind != ast.TypeCustom {
			return ast.TypeInfo{}, errf(InvalidStateVariable, location, "%q is not a field of a Custom type", seg)
		}
		field, ok := cur.Fields[seg]
		if !ok || field.Type == nil {
			return ast.TypeInfo{}, errf(UndefinedVariable, location, "undefined field %q", seg)
		}
		cur = *field.Type
	}
	return cur, nil
}

// typeOfBinaryOp checks both operands and reports the operator's result
// type (spec.md §4.7): arithmetic promotes Int+Int->Int, any Float
// operand widens to Float, comparisons and And/Or return Boolean.
func (c *Checker) typeOfBinaryOp(e ast.Expression, location string) (ast.TypeInfo, error) {
	left, err := c.typeOfExpression(*e.Left, location)
	if err != nil {
		return ast.TypeInfo{}, err
	}
	right, err := c.typeOfExpression(*e.Right, location)
	if err != nil {
		return ast.TypeInfo{}, err
	}

	switch e.Op {
	case ast.OpAdd:
		if left.Kind == ast.TypeSimple && left.Name == "String" {
			if right.Kind != ast.TypeSimple || right.Name != "String" {
				return ast.TypeInfo{}, mismatch(location, "String", right.String())
			}
			return typeString, nil
		}
		fallthrough
	case ast.OpSubtract, ast.OpMultiply, ast.OpDivide:
		if !isNumeric(left) || !isNumeric(right) {
			return ast.TypeInfo{}, errf(TypeMismatch, location, "arithmetic operands must be numeric, got %s and %s", left, right)
		}
		if left.Name == "Float" || right.Name == "Float" {
			return typeFloat, nil
		}
		return typeInt, nil
	case ast.OpEqual, ast.OpNotEqual, ast.OpLessThan, ast.OpLessThanOrEqual, ast.OpGreaterThan, ast.OpGreaterThanOrEqual:
		return typeBool, nil
	case ast.OpAnd, ast.OpOr:
		if !isBoolean(left) || !isBoolean(right) {
			return ast.TypeInfo{}, errf(TypeMismatch, location, "logical operands must be Boolean, got %s and %s", left, right)
		}
		return typeBool, nil
	default:
		return ast.TypeInfo{}, errf(TypeInferenceError, location, "unrecognized binary operator %d", e.Op)
	}
}

func isNumeric(t ast.TypeInfo) bool {
	return t.IsAny() || (t.Kind == ast.TypeSimple && (t.Name == "Int" || t.Name == "Float"))
}

func isBoolean(t ast.TypeInfo) bool {
	return t.IsAny() || (t.Kind == ast.TypeSimple && t.Name == "Boolean")
}

// typeOfFunctionCall types the builtins internal/eval actually
// implements (len/sum/avg); any other name is an undefined function.
func (c *Checker) typeOfFunctionCall(e ast.Expression, location string) (ast.TypeInfo, error) {
	for _, a := range e.Arguments {
		if _, err := c.typeOfExpression(a, location); err != nil {
			return ast.TypeInfo{}, err
		}
	}
	switch e.Function {
	case "len":
		return typeInt, nil
	case "sum":
		return typeFloat, nil
	case "avg":
		return typeFloat, nil
	default:
		return ast.TypeInfo{}, errf(UndefinedVariable, location, "undefined function %q", e.Function)
	}
}

// typeOfThink checks a Think expression's `with` attributes (spec.md
// §4.3: temperature in [0,1], max_tokens >= 1, plugin configs valid per
// the plugin's registered schema) and reports its fixed result type.
func (c *Checker) typeOfThink(e ast.Expression, location string) (ast.TypeInfo, error) {
	for _, a := range e.ThinkArgs {
		if _, err := c.typeOfExpression(a.Value, location); err != nil {
			return ast.TypeInfo{}, err
		}
	}
	if e.With != nil {
		if err := c.checkThinkAttributes(*e.With, location); err != nil {
			return ast.TypeInfo{}, err
		}
	}
	return ast.Result(typeString, typeError), nil
}

func (c *Checker) checkThinkAttributes(w ast.ThinkAttributes, location string) error {
	cfg := provider.ThinkConfig{Temperature: 0, MaxTokens: 1}
	if w.Temperature != nil {
		cfg.Temperature = *w.Temperature
	}
	if w.MaxTokens != nil {
		cfg.MaxTokens = *w.MaxTokens
	}
	if w.Temperature != nil || w.MaxTokens != nil {
		if err := provider.ValidateThinkConfig(cfg, location); err != nil {
			return errf(InvalidThinkBlock, location, "%v", err)
		}
	}
	for name, fields := range w.Plugins {
		if err := c.checkPluginConfig(name, fields, location); err != nil {
			return err
		}
	}
	return nil
}

// checkPluginConfig validates a `with { plugins { <name> { ... } } }`
// literal block against name's registered JSON Schema, if any (spec.md
// §4.3 "plugin literal values are validated per plugin contract"). With
// no schema registered for name, a lightweight non-empty/numeric-range
// heuristic substitutes, since the AST carries no schema reference of
// its own to dereference.
func (c *Checker) checkPluginConfig(name string, fields map[string]ast.Literal, location string) error {
	cfg := make(map[string]any, len(fields))
	for k, l := range fields {
		cfg[k] = literalToAny(l)
	}
	if schema, ok := c.pluginSchemas[name]; ok {
		if err := provider.ValidatePluginConfig(schema, cfg, location); err != nil {
			return errf(InvalidPluginConfig, location, "%v", err)
		}
		return nil
	}
	for k, v := range cfg {
		if s, ok := v.(string); ok && s == "" {
			return errf(InvalidPluginConfig, location, "plugin %q field %q must not be empty", name, k)
		}
	}
	return nil
}

// literalToAny folds a Literal to a plain Go value for JSON-schema
// validation, duplicating just enough of eval.evalLiteral's logic to
// keep internal/typecheck from depending on internal/eval (parse-time
// vs. run-time are conceptual siblings, not a dependency chain).
func literalToAny(l ast.Literal) any {
	switch {
	case l.IsList:
		out := make([]any, len(l.List))
		for i, item := range l.List {
			out[i] = literalToAny(item)
		}
		return out
	case l.IsMap:
		out := make(map[string]any, len(l.Map))
		for k, item := range l.Map {
			out[k] = literalToAny(item)
		}
		return out
	default:
		switch l.Scalar.Kind() {
		case value.KindInteger:
			i, _ := l.Scalar.AsInt()
			return i
		case value.KindFloat:
			f, _ := l.Scalar.AsFloat()
			return f
		case value.KindString:
			s, _ := l.Scalar.AsString()
			return s
		case value.KindBoolean:
			b, _ := l.Scalar.AsBool()
			return b
		default:
			return nil
		}
	}
}

// serialisable reports whether t may cross a Request boundary (spec.md
// §4.3): built-in simples, and Array/Map/Option recursively of
// serialisable types, plus Custom types already pre-declared. Result
// itself is never serialisable.
func (c *Checker) serialisable(t ast.TypeInfo) bool {
	switch t.Kind {
	case ast.TypeSimple:
		return true
	case ast.TypeArray, ast.TypeOption:
		return c.serialisable(*t.Elem)
	case ast.TypeMap:
		return c.serialisable(*t.Key) && c.serialisable(*t.Value)
	case ast.TypeCustom:
		_, declared := c.customTypes[t.Name]
		return declared
	case ast.TypeResult:
		return false
	default:
		return false
	}
}

// typeOfRequest checks a Request expression's target agent and
// argument serialisability (spec.md §4.3) and reports its fixed result
// type.
func (c *Checker) typeOfRequest(e ast.Expression, location string) (ast.TypeInfo, error) {
	if e.Agent == "" {
		return ast.TypeInfo{}, errf(InvalidHandlerSignature, location, "request expression is missing its target agent")
	}
	for _, a := range e.RequestArgs {
		t, err := c.typeOfExpression(a.Value, location)
		if err != nil {
			return ast.TypeInfo{}, err
		}
		if !c.serialisable(t) {
			return ast.TypeInfo{}, errf(InvalidHandlerSignature, location, "request argument %q has non-serialisable type %s", a.Name, t)
		}
	}
	return ast.Result(typeAny, typeError), nil
}

// typeOfAwait checks every awaited expression types as Result<...>
// (spec.md §4.3), unwrapping a single element to its inner Ok type and
// reporting Array<Any> for multiple (the static type spec.md §4.3
// names; the runtime's internal value.Tuple representation for the
// multi-element case is an evaluator detail, not part of this type).
func (c *Checker) typeOfAwait(e ast.Expression, location string) (ast.TypeInfo, error) {
	if len(e.Awaited) == 0 {
		return ast.TypeInfo{}, errf(TypeInferenceError, location, "await requires at least one expression")
	}
	oks := make([]ast.TypeInfo, 0, len(e.Awaited))
	for _, inner := range e.Awaited {
		t, err := c.typeOfExpression(inner, location)
		if err != nil {
			return ast.TypeInfo{}, err
		}
		if t.Kind != ast.TypeResult {
			return ast.TypeInfo{}, errf(TypeMismatch, location, "await operand must be a Result, got %s", t)
		}
		oks = append(oks, *t.Ok)
	}
	if len(oks) == 1 {
		return oks[0], nil
	}
	return ast.Array(typeAny), nil
}
