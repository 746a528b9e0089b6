package ast

import "testing"

func TestTypeInfoEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b TypeInfo
		want bool
	}{
		{"simple_eq", Simple("Int"), Simple("Int"), true},
		{"simple_ne", Simple("Int"), Simple("String"), false},
		{"result_eq", Result(Simple("Int"), Simple("Error")), Result(Simple("Int"), Simple("Error")), true},
		{"result_ne", Result(Simple("Int"), Simple("Error")), Result(Simple("String"), Simple("Error")), false},
		{"option_eq", Option(Simple("Int")), Option(Simple("Int")), true},
		{"array_vs_option", Array(Simple("Int")), Option(Simple("Int")), false},
		{"map_eq", MapOf(Simple("String"), Simple("Int")), MapOf(Simple("String"), Simple("Int")), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTypeInfoString(t *testing.T) {
	r := Result(Simple("Int"), Simple("Error"))
	if got, want := r.String(), "Result<Int, Error>"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestTypeInfoIsAny(t *testing.T) {
	if !Simple("Any").IsAny() {
		t.Error("Simple(\"Any\").IsAny() = false, want true")
	}
	if Simple("Int").IsAny() {
		t.Error("Simple(\"Int\").IsAny() = true, want false")
	}
}

func TestStateAccessPathString(t *testing.T) {
	p := StateAccessPath{"user", "profile", "name"}
	if got, want := p.String(), "user.profile.name"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
