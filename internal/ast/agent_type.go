package ast

// AgentTypeKind discriminates AgentType (spec.md §4.9).
type AgentTypeKind int

const (
	AgentWorld AgentTypeKind = iota
	AgentScaleManager
	AgentMonitor
	AgentUser
	AgentCustom
	AgentUnknown
)

// AgentType classifies a registered agent for broadcast shutdown
// matching and bulk registry queries (spec.md §4.9).
type AgentType struct {
	Kind AgentTypeKind
	Name string // set for AgentCustom
}

func World() AgentType        { return AgentType{Kind: AgentWorld} }
func ScaleManager() AgentType { return AgentType{Kind: AgentScaleManager} }
func Monitor() AgentType      { return AgentType{Kind: AgentMonitor} }
func User() AgentType         { return AgentType{Kind: AgentUser} }
func CustomType(name string) AgentType { return AgentType{Kind: AgentCustom, Name: name} }
func UnknownType() AgentType  { return AgentType{Kind: AgentUnknown} }

// Matches reports whether a broadcast targeting want should apply to an
// agent whose type is got. `Custom("all")` matches any Custom type
// (spec.md §4.9: "Custom(\"all\") matches any custom type for bulk
// queries"); every other combination requires an exact Kind+Name match.
func (want AgentType) Matches(got AgentType) bool {
	if want.Kind == AgentCustom && want.Name == "all" && got.Kind == AgentCustom {
		return true
	}
	return want.Kind == got.Kind && want.Name == got.Name
}

func (t AgentType) String() string {
	switch t.Kind {
	case AgentWorld:
		return "World"
	case AgentScaleManager:
		return "ScaleManager"
	case AgentMonitor:
		return "Monitor"
	case AgentUser:
		return "User"
	case AgentCustom:
		return "Custom(" + t.Name + ")"
	default:
		return "Unknown"
	}
}
