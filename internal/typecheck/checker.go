package typecheck

import (
	"reflect"

	"github.com/kairei/agent-runtime/internal/ast"
)

// Checker walks a parsed ast.Root and rejects agent definitions whose
// expressions don't type per spec.md §4.3. One Checker checks one Root;
// create a fresh one per compilation unit.
type Checker struct {
	scope *scopeStack

	stateVars     map[string]ast.TypeInfo
	customTypes   map[string]ast.TypeInfo
	pluginSchemas map[string]string // plugin name -> registered JSON Schema

	// returnType is the Result type declared by the answer handler
	// currently being checked; nil while checking an observe/react
	// event handler, where `return` has no declared contract to meet.
	returnType *ast.TypeInfo
}

// New creates a Checker. pluginSchemas maps a Think `with { plugins {
// <name> { ... } } }` block's plugin name to its registered JSON Schema
// (spec.md §4.3); pass nil if no plugin schemas are registered.
func New(pluginSchemas map[string]string) *Checker {
	return &Checker{
		scope:         newScopeStack(),
		customTypes:   map[string]ast.TypeInfo{},
		pluginSchemas: pluginSchemas,
	}
}

// CheckRoot type-checks every agent definition in root, in order, and
// stops at the first failure: agents after a failing one are not
// checked. To check agents independently, pass each ast.MicroAgentDef
// in its own single-agent ast.Root.
func CheckRoot(root ast.Root, pluginSchemas map[string]string) error {
	return New(pluginSchemas).CheckRoot(root)
}

func (c *Checker) CheckRoot(root ast.Root) error {
	for i := range root.Agents {
		if err := c.checkAgent(&root.Agents[i]); err != nil {
			return err
		}
	}
	return nil
}

// ScopeBalanced reports whether every scope entered while checking has
// also been exited (spec.md §8 property 3).
func (c *Checker) ScopeBalanced() bool { return c.scope.balanced() }

func (c *Checker) checkAgent(def *ast.MicroAgentDef) error {
	cp := c.scope.enterScope()
	defer c.scope.exitScope(cp)

	c.stateVars = map[string]ast.TypeInfo{}

	if def.State != nil {
		if err := c.checkStateDef(def.State, def.Name+".state"); err != nil {
			return err
		}
	}
	if def.Observe != nil {
		for i := range def.Observe.Handlers {
			if err := c.checkEventHandler(def.Observe.Handlers[i], def.Name+".observe"); err != nil {
				return err
			}
		}
	}
	if def.React != nil {
		for i := range def.React.Handlers {
			if err := c.checkEventHandler(def.React.Handlers[i], def.Name+".react"); err != nil {
				return err
			}
		}
	}
	if def.Answer != nil {
		for i := range def.Answer.Handlers {
			if err := c.checkRequestHandler(def.Answer.Handlers[i], def.Name+".answer"); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkStateDef declares each variable's type and, for an explicit
// initializer, unifies it against the declared type. A type-only
// declaration (`name: Type` with no `= expr`) is detected via
// reflect.DeepEqual against the zero Expression: internal/grammar's
// parseStateDef tracks its own local "had an initializer" flag but
// never stores it on ast.StateVarDef, and Expression/Literal embed
// maps that make `==` a compile error, so the zero value is the only
// signal left to test against.
func (c *Checker) checkStateDef(s *ast.StateDef, location string) error {
	for name, v := range s.Variables {
		if err := c.declareType(v.Type, location+"."+name); err != nil {
			return err
		}
		c.stateVars[name] = v.Type

		if reflect.DeepEqual(v.InitialValue, ast.Expression{}) {
			continue
		}
		t, err := c.typeOfExpression(v.InitialValue, location+"."+name)
		if err != nil {
			return err
		}
		if !unify(v.Type, t) {
			return mismatch(location+"."+name, v.Type.String(), t.String())
		}
	}
	return nil
}

// declareType registers any Custom type occurrence carrying inline
// Fields (spec.md §4.3: a Custom type is declared where first seen with
// its field list) and, recursively, every Custom type nested inside
// Result/Option/Array/Map/field types. A bare Custom reference (no
// Fields) must already be registered, or it is UndefinedType.
func (c *Checker) declareType(t ast.TypeInfo, location string) error {
	switch t.Kind {
	case ast.TypeCustom:
		if len(t.Fields) > 0 {
			c.customTypes[t.Name] = t
			for _, f := range t.Fields {
				if f.Type != nil {
					if err := c.declareType(*f.Type, location); err != nil {
						return err
					}
				}
			}
			return nil
		}
		if _, ok := c.customTypes[t.Name]; !ok {
			return errf(UndefinedType, location, "custom type %q is not pre-declared", t.Name)
		}
		return nil
	case ast.TypeResult:
		if err := c.declareType(*t.Ok, location); err != nil {
			return err
		}
		return c.declareType(*t.Err, location)
	case ast.TypeOption, ast.TypeArray:
		return c.declareType(*t.Elem, location)
	case ast.TypeMap:
		if err := c.declareType(*t.Key, location); err != nil {
			return err
		}
		return c.declareType(*t.Value, location)
	default:
		return nil
	}
}

// bindParameters pushes each parameter's type into the current scope,
// enforcing spec.md §4.3's shadowing rule: a name duplicating an outer
// binding must carry the identical TypeInfo.
func (c *Checker) bindParameters(cp checkpoint, params []ast.Parameter, location string) error {
	for _, p := range params {
		if err := c.declareType(p.Type, location); err != nil {
			return err
		}
		if outer, ok := c.scope.lookupOuter(cp, p.Name); ok && !outer.Equal(p.Type) {
			return mismatch(location, outer.String(), p.Type.String())
		}
		c.scope.bind(p.Name, p.Type)
	}
	return nil
}

func (c *Checker) checkEventHandler(h ast.EventHandler, location string) error {
	cp := c.scope.enterScope()
	defer c.scope.exitScope(cp)

	if err := c.bindParameters(cp, h.Parameters, location); err != nil {
		return err
	}

	prevReturn := c.returnType
	c.returnType = nil
	defer func() { c.returnType = prevReturn }()

	return c.checkBlock(h.Block.Statements, location)
}

func (c *Checker) checkRequestHandler(h ast.RequestHandler, location string) error {
	cp := c.scope.enterScope()
	defer c.scope.exitScope(cp)

	if h.ReturnType.Kind != ast.TypeResult {
		return errf(InvalidHandlerSignature, location, "answer handler must declare a Result return type, got %s", h.ReturnType)
	}
	if err := c.declareType(h.ReturnType, location); err != nil {
		return err
	}
	if err := c.bindParameters(cp, h.Parameters, location); err != nil {
		return err
	}

	rt := h.ReturnType
	prevReturn := c.returnType
	c.returnType = &rt
	defer func() { c.returnType = prevReturn }()

	return c.checkBlock(h.Block.Statements, location)
}
