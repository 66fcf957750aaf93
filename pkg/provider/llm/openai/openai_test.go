package openai

import (
	"testing"

	"github.com/sonara-ai/sonara/pkg/provider/llm"
)

func TestNew_Validation(t *testing.T) {
	if _, err := New("", "gpt-4o-mini"); err == nil {
		t.Error("expected error for empty api key")
	}
	if _, err := New("sk-test", ""); err == nil {
		t.Error("expected error for empty model")
	}
}

func TestBuildParams(t *testing.T) {
	p, err := New("sk-test", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	params := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "You are a support agent.",
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "Hello"},
			{Role: llm.RoleAssistant, Content: "Hi, how can I help?"},
			{Role: llm.RoleUser, Content: "Check my booking"},
		},
		Temperature: 0.5,
		MaxTokens:   200,
	})

	if string(params.Model) != "gpt-4o-mini" {
		t.Errorf("model = %q", params.Model)
	}
	if len(params.Messages) != 4 {
		t.Fatalf("message count = %d, want 4 (system + 3)", len(params.Messages))
	}
	if !params.Temperature.Valid() || params.Temperature.Value != 0.5 {
		t.Error("temperature not set")
	}
	if !params.MaxCompletionTokens.Valid() || params.MaxCompletionTokens.Value != 200 {
		t.Error("max completion tokens not set")
	}
}

func TestBuildParams_NoSystemPrompt(t *testing.T) {
	p, err := New("sk-test", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	params := p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "Hello"}},
	})
	if len(params.Messages) != 1 {
		t.Errorf("message count = %d, want 1", len(params.Messages))
	}
	if params.Temperature.Valid() {
		t.Error("zero temperature should be left unset")
	}
}
