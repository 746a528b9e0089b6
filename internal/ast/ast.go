// Package ast defines KAIREI's typed abstract syntax tree, as produced by
// internal/grammar and consumed by internal/typecheck and internal/eval.
// The shapes mirror spec.md §3 (grounded on the original Rust AST at
// kairei-core/src/ast.rs, re-expressed with Go sum-type-by-struct-tag
// idioms instead of Rust enums).
package ast

import "time"

// Root is the top-level parse result: an optional World definition plus
// the agents declared in the source.
type Root struct {
	World  *WorldDef
	Agents []MicroAgentDef
}

// MicroAgentDef is a single `micro <name> { ... }` declaration.
type MicroAgentDef struct {
	Name      string
	Policies  []Policy
	Lifecycle *LifecycleDef
	State     *StateDef
	Observe   *ObserveDef
	Answer    *AnswerDef
	React     *ReactDef
}

// LifecycleDef holds the onInit/onDestroy handler blocks.
type LifecycleDef struct {
	OnInit    *HandlerBlock
	OnDestroy *HandlerBlock
}

// StateDef maps a state variable name to its declaration. Insertion
// order is irrelevant per spec.md §3 invariant; names are unique within
// the owning agent (checked by internal/typecheck).
type StateDef struct {
	Variables map[string]StateVarDef
}

// StateVarDef is one `name: type_info = initial_value?` entry.
type StateVarDef struct {
	Name         string
	Type         TypeInfo
	InitialValue Expression // zero Expression when the declaration is type-only
}

// ObserveDef groups the `observe { on ... }` handlers: state read-write,
// triggered by any bus event.
type ObserveDef struct {
	Handlers []EventHandler
}

// AnswerDef groups the `answer { on request ... }` handlers: state
// read-only, must return Result.
type AnswerDef struct {
	Handlers []RequestHandler
}

// ReactDef groups the `react { on ... }` handlers: state read-write,
// proactive behaviour in response to events.
type ReactDef struct {
	Handlers []EventHandler
}

// WorldDef is the optional world-level declaration (spec.md §3 Root).
type WorldDef struct {
	Name     string
	Policies []Policy
	Config   *WorldConfig
}

// WorldConfig holds the world's runtime tunables.
type WorldConfig struct {
	TickInterval    time.Duration
	MaxAgents       int
	EventBufferSize int
}

// EventHandler binds a block of statements to an EventType, used by both
// observe and react.
type EventHandler struct {
	EventType  EventType
	Parameters []Parameter
	Block      HandlerBlock
}

// RequestHandler binds a block of statements to a RequestType inside
// answer, with a declared return type and optional quality constraints.
type RequestHandler struct {
	RequestType RequestType
	Parameters  []Parameter
	ReturnType  TypeInfo
	Constraints *Constraints
	Block       HandlerBlock
}

// Constraints are the float-valued `with { strictness, stability,
// latency }` qualifiers parsed after an answer handler's return arrow
// (spec.md §4.2).
type Constraints struct {
	Strictness *float64
	Stability  *float64
	Latency    *float64
}

// Parameter is a named, typed handler argument.
type Parameter struct {
	Name string
	Type TypeInfo
}

// TypeInfoKind discriminates the TypeInfo union (spec.md §3).
type TypeInfoKind int

const (
	TypeSimple TypeInfoKind = iota
	TypeResult
	TypeOption
	TypeArray
	TypeMap
	TypeCustom
)

// TypeInfo is the DSL's static type-annotation AST node.
type TypeInfo struct {
	Kind TypeInfoKind

	// TypeSimple
	Name string

	// TypeResult
	Ok  *TypeInfo
	Err *TypeInfo

	// TypeOption, TypeArray (Elem is the element type)
	Elem *TypeInfo

	// TypeMap
	Key   *TypeInfo
	Value *TypeInfo

	// TypeCustom
	Fields map[string]FieldInfo
}

func Simple(name string) TypeInfo { return TypeInfo{Kind: TypeSimple, Name: name} }

func Result(ok, err TypeInfo) TypeInfo { return TypeInfo{Kind: TypeResult, Ok: &ok, Err: &err} }

func Option(elem TypeInfo) TypeInfo { return TypeInfo{Kind: TypeOption, Elem: &elem} }

func Array(elem TypeInfo) TypeInfo { return TypeInfo{Kind: TypeArray, Elem: &elem} }

func MapOf(key, value TypeInfo) TypeInfo { return TypeInfo{Kind: TypeMap, Key: &key, Value: &value} }

func Custom(name string, fields map[string]FieldInfo) TypeInfo {
	return TypeInfo{Kind: TypeCustom, Name: name, Fields: fields}
}

// IsAny reports whether t is the `Any` wildcard simple type.
func (t TypeInfo) IsAny() bool { return t.Kind == TypeSimple && t.Name == "Any" }

// Equal performs structural type equality, used by the checker's
// unification (spec.md §4.3).
func (t TypeInfo) Equal(o TypeInfo) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case TypeSimple:
		return t.Name == o.Name
	case TypeResult:
		return t.Ok.Equal(*o.Ok) && t.Err.Equal(*o.Err)
	case TypeOption, TypeArray:
		return t.Elem.Equal(*o.Elem)
	case TypeMap:
		return t.Key.Equal(*o.Key) && t.Value.Equal(*o.Value)
	case TypeCustom:
		if t.Name != o.Name || len(t.Fields) != len(o.Fields) {
			return false
		}
		for name, f := range t.Fields {
			of, ok := o.Fields[name]
			if !ok || f.Type == nil || of.Type == nil || !f.Type.Equal(*of.Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func (t TypeInfo) String() string {
	switch t.Kind {
	case TypeSimple:
		return t.Name
	case TypeResult:
		return "Result<" + t.Ok.String() + ", " + t.Err.String() + ">"
	case TypeOption:
		return "Option<" + t.Elem.String() + ">"
	case TypeArray:
		return "Array<" + t.Elem.String() + ">"
	case TypeMap:
		return "Map<" + t.Key.String() + ", " + t.Value.String() + ">"
	case TypeCustom:
		return t.Name
	default:
		return "?"
	}
}

// FieldInfo describes one field of a Custom type.
type FieldInfo struct {
	Type    *TypeInfo // nil means type-inferred from Default
	Default Expression
}
