package ast

// EventTypeKind discriminates the EventType union (spec.md §3).
type EventTypeKind int

const (
	EventTick EventTypeKind = iota
	EventStateUpdated
	EventMessage
	EventRequest
	EventResponse
	EventCustom
	EventLifecycle
)

// EventType is the AST node naming which event a handler subscribes to,
// or which event an Emit statement constructs.
type EventType struct {
	Kind EventTypeKind

	// EventStateUpdated
	AgentName string
	StateName string

	// EventMessage
	ContentType string

	// EventRequest
	RequestType RequestType
	Requester   string
	Responder   string
	RequestID   string

	// EventResponse
	Success bool

	// EventCustom, EventLifecycle
	Name string
}

func (e EventType) String() string {
	switch e.Kind {
	case EventTick:
		return "Tick"
	case EventStateUpdated:
		return "StateUpdated." + e.AgentName + "." + e.StateName
	case EventMessage:
		return e.ContentType
	case EventRequest:
		return "Request." + e.RequestType.String()
	case EventResponse:
		if e.Success {
			return "Response.Success"
		}
		return "Response.Failure"
	case EventCustom:
		return e.Name
	case EventLifecycle:
		return "Lifecycle." + e.Name
	default:
		return "?"
	}
}

// RequestTypeKind discriminates the RequestType union.
type RequestTypeKind int

const (
	RequestQuery RequestTypeKind = iota
	RequestAction
	RequestCustom
)

// RequestType names the kind of request an answer handler responds to.
type RequestType struct {
	Kind RequestTypeKind
	Name string // QueryKind / ActionKind / Custom name
}

func (r RequestType) String() string {
	switch r.Kind {
	case RequestQuery:
		return "Query." + r.Name
	case RequestAction:
		return "Action." + r.Name
	case RequestCustom:
		return r.Name
	default:
		return "?"
	}
}

// Policy is a textual directive attached to an agent, world, or Think
// site (spec.md §9 "Prompt generator & policies").
type Policy struct {
	Text string
	ID   string
}
