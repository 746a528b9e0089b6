package provider

import (
	"context"
	"strings"
	"testing"

	"github.com/kairei/agent-runtime/internal/ast"
)

func TestNullProviderExecuteDefaultsReply(t *testing.T) {
	p := NullProvider{}
	resp, err := p.Execute(context.Background(), Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.Text != "ok" {
		t.Errorf("Text = %q, want %q", resp.Text, "ok")
	}
}

func TestDefaultPromptGeneratorIncludesPolicies(t *testing.T) {
	policies := []ast.Policy{{Text: "be concise"}}
	prompt := DefaultPromptGenerator(map[string]any{"question": "why"}, nil, policies)
	if !strings.Contains(prompt, "be concise") || !strings.Contains(prompt, "question: why") {
		t.Errorf("prompt = %q, missing expected content", prompt)
	}
}

func TestValidateThinkConfigRejectsOutOfRangeTemperature(t *testing.T) {
	err := ValidateThinkConfig(ThinkConfig{Temperature: 1.5, MaxTokens: 10}, "think@1:1")
	if err == nil {
		t.Fatal("expected an error for temperature > 1")
	}
}

func TestValidateThinkConfigAcceptsInRange(t *testing.T) {
	err := ValidateThinkConfig(ThinkConfig{Temperature: 0.5, MaxTokens: 10}, "think@1:1")
	if err != nil {
		t.Fatalf("ValidateThinkConfig() error = %v", err)
	}
}

func TestValidatePluginConfigRejectsMissingRequiredField(t *testing.T) {
	schema := `{"type":"object","required":["key"],"properties":{"key":{"type":"string"}}}`
	err := ValidatePluginConfig(schema, map[string]any{}, "plugin@1:1")
	if err == nil {
		t.Fatal("expected an error for a config missing the required field")
	}
}
