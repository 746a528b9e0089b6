package typecheck

import "github.com/kairei/agent-runtime/internal/ast"

// scopeStack is the checker's binding environment: one frame per
// agent/handler/block entered, restored to a checkpoint on exit so no
// binding ever leaks into an outer scope (spec.md §8 property 3).
type scopeStack struct {
	frames []map[string]ast.TypeInfo
	enters int
	exits  int
}

func newScopeStack() *scopeStack {
	return &scopeStack{frames: []map[string]ast.TypeInfo{{}}}
}

// checkpoint is an opaque token identifying how many frames existed
// before a scope was entered; exitScope restores exactly to it.
type checkpoint int

func (s *scopeStack) enterScope() checkpoint {
	s.enters++
	cp := checkpoint(len(s.frames))
	s.frames = append(s.frames, map[string]ast.TypeInfo{})
	return cp
}

func (s *scopeStack) exitScope(cp checkpoint) {
	s.exits++
	s.frames = s.frames[:cp]
}

func (s *scopeStack) bind(name string, t ast.TypeInfo) {
	s.frames[len(s.frames)-1][name] = t
}

// lookup searches the current scope outward to the root.
func (s *scopeStack) lookup(name string) (ast.TypeInfo, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if t, ok := s.frames[i][name]; ok {
			return t, true
		}
	}
	return ast.TypeInfo{}, false
}

// lookupOuter searches only the frames that existed before cp's scope
// was entered, i.e. it excludes the scope just pushed. Used to find the
// outer binding a newly bound parameter may be shadowing (spec.md §4.3
// "duplicate names against an outer binding must have identical
// TypeInfo or the checker fails with TypeMismatch").
func (s *scopeStack) lookupOuter(cp checkpoint, name string) (ast.TypeInfo, bool) {
	for i := int(cp) - 1; i >= 0; i-- {
		if t, ok := s.frames[i][name]; ok {
			return t, true
		}
	}
	return ast.TypeInfo{}, false
}

// balanced reports whether every enterScope has a matching exitScope,
// the scope-symmetry invariant spec.md §8 property 3 tests.
func (s *scopeStack) balanced() bool { return s.enters == s.exits }
