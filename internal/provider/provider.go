// Package provider defines the narrow LLM-provider and plugin
// contracts the evaluator depends on (spec.md §4.10, §6, §9). Grounded
// on internal/codex.CodexClient (internal/codex/interface.go): a small
// interface the evaluator calls through, never the concrete wire
// transport — the transport itself stays out of scope (see DESIGN.md).
package provider

import (
	"context"
	"fmt"

	"github.com/kairei/agent-runtime/internal/ast"
)

// Capability is one advertised provider capability (spec.md §6).
type Capability string

const (
	CapabilitySharedMemory   Capability = "SharedMemory"
	CapabilitySistenceMemory Capability = "SistenceMemory"
	CapabilityWillAction     Capability = "WillAction"
	CapabilityWebSearch      Capability = "WebSearch"
)

// Request carries everything the provider needs to answer a Think
// expression (spec.md §6).
type Request struct {
	Prompt      string
	Model       string
	Temperature float64
	MaxTokens   uint32
	Plugins     map[string]map[string]any
}

// Usage is token accounting metadata returned alongside a Response.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Response is what a provider returns for a Think call (spec.md §6).
type Response struct {
	Text  string
	Usage Usage
}

// Provider is the narrow LLM contract consumed by internal/eval.
type Provider interface {
	Execute(ctx context.Context, req Request) (Response, error)
	Capabilities() []Capability
}

// Section is one piece of prompt assembled by a Plugin (spec.md §6).
type Section struct {
	Priority int
	Text     string
}

// Plugin is the narrow contract a think-site plugin config is
// validated and executed against (spec.md §6).
type Plugin interface {
	Priority() int
	Capability() Capability
	GenerateSection(ctx context.Context, args map[string]any) (Section, error)
	ProcessResponse(ctx context.Context, resp Response) error
}

// PromptGenerator renders a Think call's prompt as a pure function of
// its arguments, attributes, and the agent/think-site policies
// (spec.md §9).
type PromptGenerator func(args map[string]any, attrs *ast.ThinkAttributes, policies []ast.Policy) string

// DefaultPromptGenerator concatenates policies then a rendering of the
// positional/named arguments, in the teacher's plain string-building
// style (no templating engine pulled in for something this small).
func DefaultPromptGenerator(args map[string]any, attrs *ast.ThinkAttributes, policies []ast.Policy) string {
	prompt := ""
	for _, p := range policies {
		prompt += p.Text + "\n"
	}
	if attrs != nil {
		for _, p := range attrs.Policies {
			prompt += p.Text + "\n"
		}
	}
	for k, v := range args {
		prompt += fmt.Sprintf("%s: %v\n", k, v)
	}
	return prompt
}

// NullProvider is an in-memory stub satisfying Provider, used by tests
// and as a safe default when no real provider is configured (spec.md
// §6: "only the narrow contract plus an in-memory NullProvider/stub
// used by tests").
type NullProvider struct {
	Reply string
	Err   error
}

func (p NullProvider) Execute(ctx context.Context, req Request) (Response, error) {
	if p.Err != nil {
		return Response{}, p.Err
	}
	reply := p.Reply
	if reply == "" {
		reply = "ok"
	}
	return Response{Text: reply}, nil
}

func (p NullProvider) Capabilities() []Capability { return nil }
