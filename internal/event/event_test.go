package event

import (
	"testing"

	"github.com/kairei/agent-runtime/internal/ast"
	"github.com/kairei/agent-runtime/internal/value"
)

func TestNewCopiesParameters(t *testing.T) {
	params := map[string]value.Value{"count": value.Int(1)}
	e := New(ast.EventType{Kind: ast.EventTick}, params)
	params["count"] = value.Int(99)
	if got, _ := e.Parameters["count"].AsInt(); got != 1 {
		t.Errorf("Event.Parameters was not copied, got %d", got)
	}
}

func TestIsResponseTo(t *testing.T) {
	e := NewResponseEvent("r1", true, map[string]value.Value{"value": value.Int(2)})
	if !e.IsResponseTo("r1") {
		t.Error("expected IsResponseTo(r1) to be true")
	}
	if e.IsResponseTo("r2") {
		t.Error("expected IsResponseTo(r2) to be false")
	}
}

func TestIsRequestFor(t *testing.T) {
	e := NewRequestEvent(ast.RequestType{Kind: ast.RequestCustom, Name: "GetCount"}, "T", "C", "r1", nil)
	if !e.IsRequestFor("C") {
		t.Error("expected IsRequestFor(C) to be true")
	}
	if e.IsRequestFor("Other") {
		t.Error("expected IsRequestFor(Other) to be false")
	}
}

func TestNewStateUpdatedEvent(t *testing.T) {
	e := NewStateUpdatedEvent("C", "count", value.Int(2))
	if e.Type.Kind != ast.EventStateUpdated || e.Type.AgentName != "C" || e.Type.StateName != "count" {
		t.Errorf("got %+v", e.Type)
	}
}
