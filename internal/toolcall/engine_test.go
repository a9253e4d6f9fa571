package toolcall

import (
	"context"
	"errors"
	"testing"

	"github.com/earshot-ai/earshot/pkg/provider/llm"
	llmmock "github.com/earshot-ai/earshot/pkg/provider/llm/mock"
	"github.com/earshot-ai/earshot/pkg/types"
)

func calculatorRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	calc := &Func{
		Def: types.ToolDefinition{
			Name:        "calculator",
			Description: "evaluates arithmetic",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"expression": map[string]any{"type": "string"},
				},
				"required": []any{"expression"},
			},
		},
		Fn: func(_ context.Context, params map[string]any) (string, error) {
			if params["expression"] == "15 + 27" {
				return "42", nil
			}
			return "", errors.New("unsupported expression")
		},
	}
	if err := r.Register(calc); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return r
}

func TestEngineRunPlainAnswer(t *testing.T) {
	provider := &llmmock.Provider{
		Responses: []*llm.CompletionResponse{
			{Content: "Paris is the capital of France."},
		},
	}
	e := NewEngine(calculatorRegistry(t), provider)

	result, err := e.Run(context.Background(), llm.CompletionRequest{
		Messages: []types.Message{{Role: "user", Content: "capital of France?"}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Reply != "Paris is the capital of France." {
		t.Errorf("Reply = %q", result.Reply)
	}
	if result.UsedTool {
		t.Error("UsedTool = true, want false")
	}
	if result.Iterations != 1 {
		t.Errorf("Iterations = %d, want 1", result.Iterations)
	}
	if len(result.Steps) != 0 {
		t.Errorf("Steps = %v, want empty", result.Steps)
	}
}

func TestEngineRunCalculatorRoundTrip(t *testing.T) {
	provider := &llmmock.Provider{
		Responses: []*llm.CompletionResponse{
			{Content: "<tool_call>{\"tool_name\": \"calculator\", \"parameters\": {\"expression\": \"15 + 27\"}}</tool_call>"},
			{Content: "15 plus 27 is 42."},
		},
	}
	e := NewEngine(calculatorRegistry(t), provider)

	result, err := e.Run(context.Background(), llm.CompletionRequest{
		Messages: []types.Message{{Role: "user", Content: "what's 15 plus 27?"}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Reply != "15 plus 27 is 42." {
		t.Errorf("Reply = %q", result.Reply)
	}
	if !result.UsedTool {
		t.Error("UsedTool = false, want true")
	}
	if result.Iterations != 2 {
		t.Errorf("Iterations = %d, want 2", result.Iterations)
	}

	// One assistant turn carrying the directive, one tool turn with the result.
	if len(result.Steps) != 2 {
		t.Fatalf("len(Steps) = %d, want 2", len(result.Steps))
	}
	if result.Steps[0].Role != "assistant" {
		t.Errorf("Steps[0].Role = %q, want assistant", result.Steps[0].Role)
	}
	if result.Steps[1].Role != "tool" || result.Steps[1].Name != "calculator" || result.Steps[1].Content != "42" {
		t.Errorf("Steps[1] = %+v, want tool/calculator/42", result.Steps[1])
	}

	// The second completion must have seen both intermediate turns.
	secondReq := provider.CompleteCalls[1]
	if len(secondReq.Messages) != 3 {
		t.Errorf("second request has %d messages, want 3", len(secondReq.Messages))
	}
}

func TestEngineRunToolFailureFedBack(t *testing.T) {
	provider := &llmmock.Provider{
		Responses: []*llm.CompletionResponse{
			{Content: "<tool_call>{\"tool_name\": \"calculator\", \"parameters\": {\"expression\": \"1/0\"}}</tool_call>"},
			{Content: "That calculation failed, sorry."},
		},
	}
	e := NewEngine(calculatorRegistry(t), provider)

	result, err := e.Run(context.Background(), llm.CompletionRequest{
		Messages: []types.Message{{Role: "user", Content: "divide one by zero"}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.UsedTool {
		t.Error("UsedTool = true after failed execution")
	}
	if len(result.Steps) != 2 {
		t.Fatalf("len(Steps) = %d, want 2", len(result.Steps))
	}
	toolTurn := result.Steps[1]
	if toolTurn.Role != "tool" {
		t.Errorf("tool turn role = %q", toolTurn.Role)
	}
	if toolTurn.Content == "" || toolTurn.Content[:6] != "Error:" {
		t.Errorf("tool turn content = %q, want Error: prefix", toolTurn.Content)
	}
}

func TestEngineRunUnknownToolFedBack(t *testing.T) {
	provider := &llmmock.Provider{
		Responses: []*llm.CompletionResponse{
			{Content: "<tool_call>{\"tool_name\": \"time_machine\", \"parameters\": {}}</tool_call>"},
			{Content: "I don't have that ability."},
		},
	}
	e := NewEngine(calculatorRegistry(t), provider)

	result, err := e.Run(context.Background(), llm.CompletionRequest{
		Messages: []types.Message{{Role: "user", Content: "go back in time"}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Reply != "I don't have that ability." {
		t.Errorf("Reply = %q", result.Reply)
	}
}

func TestEngineRunLoopExceeded(t *testing.T) {
	// The model never stops asking for tools; the last response repeats.
	provider := &llmmock.Provider{
		Responses: []*llm.CompletionResponse{
			{Content: "<tool_call>{\"tool_name\": \"calculator\", \"parameters\": {\"expression\": \"15 + 27\"}}</tool_call>"},
		},
	}
	e := NewEngine(calculatorRegistry(t), provider, WithMaxIterations(3))

	_, err := e.Run(context.Background(), llm.CompletionRequest{
		Messages: []types.Message{{Role: "user", Content: "keep calculating"}},
	})
	if !errors.Is(err, ErrLoopExceeded) {
		t.Fatalf("err = %v, want ErrLoopExceeded", err)
	}
	if len(provider.CompleteCalls) != 3 {
		t.Errorf("completions = %d, want 3", len(provider.CompleteCalls))
	}
}

func TestEngineRunProviderError(t *testing.T) {
	providerErr := errors.New("model unavailable")
	provider := &llmmock.Provider{CompleteErr: providerErr}
	e := NewEngine(calculatorRegistry(t), provider)

	_, err := e.Run(context.Background(), llm.CompletionRequest{
		Messages: []types.Message{{Role: "user", Content: "hello"}},
	})
	if !errors.Is(err, providerErr) {
		t.Fatalf("err = %v, want wrapping %v", err, providerErr)
	}
}
