package value

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"int_eq", Int(2), Int(2), true},
		{"int_ne", Int(2), Int(3), false},
		{"float_vs_int", Float(2), Int(2), false},
		{"list_eq", List([]Value{Int(1), Str("a")}), List([]Value{Int(1), Str("a")}), true},
		{"map_eq", Map(map[string]Value{"x": Bool(true)}), Map(map[string]Value{"x": Bool(true)}), true},
		{"null_eq_null", Null(), Null(), true},
		{"null_ne_unit", Null(), Unit(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNumericPromotion(t *testing.T) {
	f, ok := Int(3).Numeric()
	if !ok || f != 3.0 {
		t.Errorf("Numeric() on Int = (%v, %v), want (3, true)", f, ok)
	}
	if _, ok := Str("x").Numeric(); ok {
		t.Error("Numeric() on String should be (_, false)")
	}
}

func TestMarshalJSONWireFormat(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"null", Null(), "null"},
		{"unit", Unit(), "{}"},
		{"int", Int(7), "7"},
		{"float", Float(1.5), "1.5"},
		{"string", Str("hi"), `"hi"`},
		{"bool", Bool(true), "true"},
		{"list", List([]Value{Int(1), Int(2)}), "[1,2]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.v)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Marshal() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMarshalJSONDuration(t *testing.T) {
	v := Dur(1500 * time.Millisecond)
	got, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"secs":1,"nanos":500000000}`
	if string(got) != want {
		t.Errorf("Marshal() = %s, want %s", got, want)
	}
}

func TestUnmarshalJSONRoundTrip(t *testing.T) {
	var v Value
	if err := json.Unmarshal([]byte(`{"a":1,"b":[true,"x"]}`), &v); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	m, ok := v.AsMap()
	if !ok {
		t.Fatal("expected Map kind")
	}
	if a, _ := m["a"].AsInt(); a != 1 {
		t.Errorf("m[a] = %v, want 1", a)
	}
	list, ok := m["b"].AsList()
	if !ok || len(list) != 2 {
		t.Fatalf("m[b] = %v, want 2-element list", m["b"])
	}
}
