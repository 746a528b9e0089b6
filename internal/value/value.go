// Package value implements the runtime Value type shared by the
// evaluator, execution context, and event bus: spec.md §3's
// Integer | Float | String | Boolean | Duration | List | Map | Tuple |
// Null | Unit union, plus its wire (JSON) representation per spec.md §6.
package value

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind discriminates the Value union.
type Kind int

const (
	KindNull Kind = iota
	KindUnit
	KindInteger
	KindFloat
	KindString
	KindBoolean
	KindDuration
	KindList
	KindMap
	KindTuple
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindUnit:
		return "Unit"
	case KindInteger:
		return "Integer"
	case KindFloat:
		return "Float"
	case KindString:
		return "String"
	case KindBoolean:
		return "Boolean"
	case KindDuration:
		return "Duration"
	case KindList:
		return "List"
	case KindMap:
		return "Map"
	case KindTuple:
		return "Tuple"
	default:
		return "Unknown"
	}
}

// Value is an immutable tagged union. Zero value is Null.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    bool
	d    time.Duration
	list []Value
	m    map[string]Value
}

func Null() Value              { return Value{kind: KindNull} }
func Unit() Value              { return Value{kind: KindUnit} }
func Int(v int64) Value        { return Value{kind: KindInteger, i: v} }
func Float(v float64) Value    { return Value{kind: KindFloat, f: v} }
func Str(v string) Value       { return Value{kind: KindString, s: v} }
func Bool(v bool) Value        { return Value{kind: KindBoolean, b: v} }
func Dur(v time.Duration) Value { return Value{kind: KindDuration, d: v} }

func List(items []Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindList, list: cp}
}

func Tuple(items []Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindTuple, list: cp}
}

func Map(fields map[string]Value) Value {
	cp := make(map[string]Value, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return Value{kind: KindMap, m: cp}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

// AsInt returns the integer payload and whether v is an Integer.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInteger }

// AsFloat returns the float payload and whether v is a Float. Unlike
// AsInt it does not coerce Integer — callers doing arithmetic promotion
// use Numeric below.
func (v Value) AsFloat() (float64, bool) { return v.f, v.kind == KindFloat }

func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBoolean }

func (v Value) AsDuration() (time.Duration, bool) { return v.d, v.kind == KindDuration }

// AsList returns the element slice for List or Tuple kinds.
func (v Value) AsList() ([]Value, bool) {
	if v.kind != KindList && v.kind != KindTuple {
		return nil, false
	}
	return v.list, true
}

func (v Value) AsMap() (map[string]Value, bool) { return v.m, v.kind == KindMap }

// Numeric returns the value as a float64 for arithmetic promotion
// (Int↔Float per spec.md §4.7 BinaryOp rules) and whether v is numeric.
func (v Value) Numeric() (float64, bool) {
	switch v.kind {
	case KindInteger:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	default:
		return 0, false
	}
}

// Equal implements value equality used by the type checker's literal
// folding and by tests; containers compare element-wise.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull, KindUnit:
		return true
	case KindInteger:
		return v.i == other.i
	case KindFloat:
		return v.f == other.f
	case KindString:
		return v.s == other.s
	case KindBoolean:
		return v.b == other.b
	case KindDuration:
		return v.d == other.d
	case KindList, KindTuple:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(other.m) {
			return false
		}
		for k, mv := range v.m {
			ov, ok := other.m[k]
			if !ok || !mv.Equal(ov) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// String renders a human-readable (not wire) form, used by Think
// interpolation per spec.md §4.3's stringifiable-trait requirement.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindUnit:
		return "()"
	case KindInteger:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindString:
		return v.s
	case KindBoolean:
		return fmt.Sprintf("%t", v.b)
	case KindDuration:
		return v.d.String()
	case KindList, KindTuple:
		return fmt.Sprintf("%v", v.list)
	case KindMap:
		return fmt.Sprintf("%v", v.m)
	default:
		return "<unknown>"
	}
}

// wireDuration mirrors spec.md §6: Duration → {secs, nanos}.
type wireDuration struct {
	Secs  int64 `json:"secs"`
	Nanos int64 `json:"nanos"`
}

// MarshalJSON implements the wire representation of spec.md §6.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindUnit:
		return []byte("{}"), nil
	case KindInteger:
		return json.Marshal(v.i)
	case KindFloat:
		return json.Marshal(v.f)
	case KindString:
		return json.Marshal(v.s)
	case KindBoolean:
		return json.Marshal(v.b)
	case KindDuration:
		return json.Marshal(wireDuration{
			Secs:  int64(v.d / time.Second),
			Nanos: int64(v.d % time.Second),
		})
	case KindList, KindTuple:
		return json.Marshal(v.list)
	case KindMap:
		return json.Marshal(v.m)
	default:
		return nil, fmt.Errorf("value: unknown kind %d", v.kind)
	}
}

// UnmarshalJSON reconstructs a Value from its wire form. Because JSON
// cannot distinguish Integer/Float or List/Tuple or Unit/empty-Map on
// its own, numbers without a fractional part decode as Integer, arrays
// decode as List, and `{}` decodes as Unit; callers needing Tuple or
// Float-from-whole-number semantics must coerce via the type checker's
// declared type instead of relying on round-tripping.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = fromAny(raw)
	return nil
}

func fromAny(raw any) Value {
	switch x := raw.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(x)
	case float64:
		if x == float64(int64(x)) {
			return Int(int64(x))
		}
		return Float(x)
	case string:
		return Str(x)
	case []any:
		items := make([]Value, len(x))
		for i, elem := range x {
			items[i] = fromAny(elem)
		}
		return List(items)
	case map[string]any:
		if len(x) == 0 {
			return Unit()
		}
		fields := make(map[string]Value, len(x))
		for k, elem := range x {
			fields[k] = fromAny(elem)
		}
		return Map(fields)
	default:
		return Null()
	}
}
