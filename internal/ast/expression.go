package ast

import "github.com/kairei/agent-runtime/internal/value"

// Literal is a constant folded directly to a runtime Value by the
// evaluator (spec.md §4.7). List/Map literals nest other Literals so
// the type checker can walk them before any Value exists.
type Literal struct {
	Scalar value.Value // set for everything except List/Map
	IsList bool
	List   []Literal
	IsMap  bool
	Map    map[string]Literal
}

func LitInt(v int64) Literal     { return Literal{Scalar: value.Int(v)} }
func LitFloat(v float64) Literal { return Literal{Scalar: value.Float(v)} }
func LitString(v string) Literal { return Literal{Scalar: value.Str(v)} }
func LitBool(v bool) Literal     { return Literal{Scalar: value.Bool(v)} }
func LitNull() Literal           { return Literal{Scalar: value.Null()} }

func LitList(items []Literal) Literal { return Literal{IsList: true, List: items} }
func LitMap(fields map[string]Literal) Literal { return Literal{IsMap: true, Map: fields} }

// StateAccessPath is a dotted path ("user.profile.name" ->
// ["user","profile","name"]) into either global state or a Custom
// field tree.
type StateAccessPath []string

func (p StateAccessPath) String() string {
	s := ""
	for i, part := range p {
		if i > 0 {
			s += "."
		}
		s += part
	}
	return s
}

// BinaryOperator enumerates the arithmetic/comparison/logical operators
// of spec.md §4.7.
type BinaryOperator int

const (
	OpAdd BinaryOperator = iota
	OpSubtract
	OpMultiply
	OpDivide
	OpEqual
	OpNotEqual
	OpLessThan
	OpLessThanOrEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpAnd
	OpOr
)

// ExpressionKind discriminates the Expression union.
type ExpressionKind int

const (
	ExprLiteral ExpressionKind = iota
	ExprVariable
	ExprStateAccess
	ExprFunctionCall
	ExprThink
	ExprRequest
	ExprAwait
	ExprBinaryOp
	ExprOk
	ExprErr
)

// Argument is a call argument, either positional or named.
type Argument struct {
	Name  string // empty for positional
	Value Expression
}

// RetryDelayKind discriminates RetryDelay.
type RetryDelayKind int

const (
	RetryFixed RetryDelayKind = iota
	RetryExponential
)

// RetryDelay is the backoff schedule for Think/Request retries.
type RetryDelay struct {
	Kind         RetryDelayKind
	FixedMS      uint64
	InitialMS    uint64
	MaxMS        uint64
}

// RetryConfig bounds Think/Request retry attempts (spec.md §3
// ThinkAttributes.retry).
type RetryConfig struct {
	MaxAttempts uint64
	Delay       RetryDelay
}

// ThinkAttributes is the parsed `with { ... }` block attached to a
// Think expression (spec.md §3).
type ThinkAttributes struct {
	Provider    *string
	Model       *string
	Temperature *float64
	MaxTokens   *uint32
	Retry       *RetryConfig
	Plugins     map[string]map[string]Literal
	Policies    []Policy
}

// RequestAttributes is the parsed `with { ... }` block attached to a
// Request expression.
type RequestAttributes struct {
	TimeoutMS *uint64
	Retry     *uint32
}

// Expression is the DSL's runtime-reducible term (spec.md §3).
type Expression struct {
	Kind ExpressionKind

	// ExprLiteral
	Literal Literal

	// ExprVariable
	Name string

	// ExprStateAccess
	Path StateAccessPath

	// ExprFunctionCall
	Function  string
	Arguments []Expression

	// ExprThink
	ThinkArgs []Argument
	With      *ThinkAttributes

	// ExprRequest
	Agent         string
	RequestType   RequestType
	RequestArgs   []Argument
	RequestOpts   *RequestAttributes

	// ExprAwait
	Awaited []Expression

	// ExprBinaryOp
	Op    BinaryOperator
	Left  *Expression
	Right *Expression

	// ExprOk, ExprErr
	Inner *Expression
}

func Var(name string) Expression { return Expression{Kind: ExprVariable, Name: name} }

func StateAccess(path StateAccessPath) Expression {
	return Expression{Kind: ExprStateAccess, Path: path}
}

func LiteralExpr(l Literal) Expression { return Expression{Kind: ExprLiteral, Literal: l} }

func Binary(op BinaryOperator, left, right Expression) Expression {
	return Expression{Kind: ExprBinaryOp, Op: op, Left: &left, Right: &right}
}

func OkExpr(inner Expression) Expression { return Expression{Kind: ExprOk, Inner: &inner} }

func ErrExpr(inner Expression) Expression { return Expression{Kind: ExprErr, Inner: &inner} }
