// Package event defines the runtime publish/subscribe payloads carried
// on internal/bus (spec.md §3: Event, ErrorEvent). These are distinct
// from internal/ast.EventType: the AST node describes what a handler
// is declared to match against source text, while Event is the value
// that actually crosses the bus at runtime, carrying resolved
// parameters instead of unevaluated expressions.
package event

import (
	"fmt"

	"github.com/kairei/agent-runtime/internal/ast"
	"github.com/kairei/agent-runtime/internal/value"
)

// Event is a typed record placed on the bus (spec.md §3).
type Event struct {
	Type       ast.EventType
	Parameters map[string]value.Value
}

// New builds an Event with a copy of the supplied parameters.
func New(t ast.EventType, params map[string]value.Value) Event {
	p := make(map[string]value.Value, len(params))
	for k, v := range params {
		p[k] = v
	}
	return Event{Type: t, Parameters: p}
}

func (e Event) String() string {
	return fmt.Sprintf("Event{%s, %d params}", e.Type.String(), len(e.Parameters))
}

// Severity classifies an ErrorEvent (spec.md §3).
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "Info"
	case SeverityWarning:
		return "Warning"
	case SeverityError:
		return "Error"
	case SeverityCritical:
		return "Critical"
	default:
		return "Unknown"
	}
}

// ErrorEvent is a typed failure record placed on the bus's error
// channel (spec.md §3).
type ErrorEvent struct {
	ErrorType  string
	Message    string
	Severity   Severity
	Parameters map[string]value.Value
}

func (e ErrorEvent) String() string {
	return fmt.Sprintf("ErrorEvent{%s: %s, severity=%s}", e.ErrorType, e.Message, e.Severity)
}

// NewRequestEvent builds a Request event correlating requester and
// responder by a request id (spec.md §4.7 Request expression).
func NewRequestEvent(requestType ast.RequestType, requester, responder, requestID string, args map[string]value.Value) Event {
	t := ast.EventType{
		Kind:        ast.EventRequest,
		RequestType: requestType,
		Requester:   requester,
		Responder:   responder,
		RequestID:   requestID,
	}
	return New(t, args)
}

// NewResponseEvent builds the Response event a request manager waits
// for, success or failure (spec.md §4.5, §4.7 answer-handler wrapper).
func NewResponseEvent(requestID string, success bool, payload map[string]value.Value) Event {
	t := ast.EventType{Kind: ast.EventResponse, RequestID: requestID, Success: success}
	return New(t, payload)
}

// NewStateUpdatedEvent builds the event §4.6 publishes synchronously
// after every state write.
func NewStateUpdatedEvent(agent, stateName string, newValue value.Value) Event {
	t := ast.EventType{Kind: ast.EventStateUpdated, AgentName: agent, StateName: stateName}
	return New(t, map[string]value.Value{"value": newValue})
}

// NewLifecycleEvent builds one of the AgentAdded/AgentStarting/
// AgentStarted/AgentStopping/AgentStopped/AgentRemoved inventory
// events (spec.md §4.8, §4.9).
func NewLifecycleEvent(name string, params map[string]value.Value) Event {
	return New(ast.EventType{Kind: ast.EventLifecycle, Name: name}, params)
}

// NewTickEvent builds the Tick event (spec.md §8 S1).
func NewTickEvent() Event {
	return New(ast.EventType{Kind: ast.EventTick}, nil)
}

// systemShutdownName is the Custom event name the registry broadcasts
// on (spec.md §4.8 "broadcast system-shutdown signal"). It rides the
// ordinary event bus rather than a side channel so every subscribed
// agent's dispatch loop observes the same broadcast, not just one of
// them (a plain Go channel send only ever wakes a single receiver).
const systemShutdownName = "__system_shutdown__"

// NewSystemShutdownEvent builds the broadcast shutdown event, carrying
// the target AgentType as plain parameters.
func NewSystemShutdownEvent(kind int, name string) Event {
	return New(ast.EventType{Kind: ast.EventCustom, Name: systemShutdownName}, map[string]value.Value{
		"kind": value.Int(int64(kind)),
		"name": value.Str(name),
	})
}

// IsSystemShutdown reports whether e is a system-shutdown broadcast,
// returning the encoded AgentType's kind/name.
func (e Event) IsSystemShutdown() (kind int, name string, ok bool) {
	if e.Type.Kind != ast.EventCustom || e.Type.Name != systemShutdownName {
		return 0, "", false
	}
	k, _ := e.Parameters["kind"].AsInt()
	n, _ := e.Parameters["name"].AsString()
	return int(k), n, true
}

// NewCustomEvent builds a Custom(name) event, used by `emit` statements
// whose event type is not one of the built-ins.
func NewCustomEvent(name string, params map[string]value.Value) Event {
	return New(ast.EventType{Kind: ast.EventCustom, Name: name}, params)
}

// IsResponseTo reports whether e is the Response event matching
// requestID.
func (e Event) IsResponseTo(requestID string) bool {
	return e.Type.Kind == ast.EventResponse && e.Type.RequestID == requestID
}

// IsRequestFor reports whether e is a Request event addressed to
// responder.
func (e Event) IsRequestFor(responder string) bool {
	return e.Type.Kind == ast.EventRequest && e.Type.Responder == responder
}
