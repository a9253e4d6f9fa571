package calculator

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"testing"
)

func callOp(t *testing.T, params map[string]any) (result, error) {
	t.Helper()
	out, err := New().Call(context.Background(), params)
	if err != nil {
		return result{}, err
	}
	var res result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("output %q is not valid JSON: %v", out, err)
	}
	return res, nil
}

func TestCallOperations(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]any
		want   float64
	}{
		{name: "add", params: map[string]any{"operation": "add", "a": 15.0, "b": 27.0}, want: 42},
		{name: "subtract", params: map[string]any{"operation": "subtract", "a": 10.0, "b": 4.0}, want: 6},
		{name: "multiply", params: map[string]any{"operation": "multiply", "a": 6.0, "b": 7.0}, want: 42},
		{name: "divide", params: map[string]any{"operation": "divide", "a": 10.0, "b": 4.0}, want: 2.5},
		{name: "power", params: map[string]any{"operation": "power", "a": 2.0, "b": 10.0}, want: 1024},
		{name: "sqrt", params: map[string]any{"operation": "sqrt", "a": 16.0}, want: 4},
		{name: "sin zero", params: map[string]any{"operation": "sin", "a": 0.0}, want: 0},
		{name: "cos zero", params: map[string]any{"operation": "cos", "a": 0.0}, want: 1},
		{name: "log", params: map[string]any{"operation": "log", "a": 1000.0}, want: 3},
		{name: "ln e", params: map[string]any{"operation": "ln", "a": math.E}, want: 1},
		{name: "factorial", params: map[string]any{"operation": "factorial", "a": 5.0}, want: 120},
		{name: "evaluate", params: map[string]any{"operation": "evaluate", "expression": "15 + 27"}, want: 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := callOp(t, tt.params)
			if err != nil {
				t.Fatalf("Call: %v", err)
			}
			if math.Abs(res.Result-tt.want) > 1e-9 {
				t.Errorf("result = %v, want %v", res.Result, tt.want)
			}
			if res.Calculation == "" {
				t.Error("calculation string is empty")
			}
		})
	}
}

func TestCallErrors(t *testing.T) {
	tests := []struct {
		name    string
		params  map[string]any
		wantSub string
	}{
		{
			name:    "divide by zero",
			params:  map[string]any{"operation": "divide", "a": 1.0, "b": 0.0},
			wantSub: "Cannot divide by zero",
		},
		{
			name:    "sqrt negative",
			params:  map[string]any{"operation": "sqrt", "a": -4.0},
			wantSub: "negative",
		},
		{
			name:    "log nonpositive",
			params:  map[string]any{"operation": "log", "a": 0.0},
			wantSub: "positive",
		},
		{
			name:    "factorial of fraction",
			params:  map[string]any{"operation": "factorial", "a": 2.5},
			wantSub: "non-negative integer",
		},
		{
			name:    "missing operand",
			params:  map[string]any{"operation": "add", "a": 1.0},
			wantSub: "two numbers",
		},
		{
			name:    "unknown operation",
			params:  map[string]any{"operation": "integrate"},
			wantSub: "unknown operation",
		},
		{
			name:    "evaluate without expression",
			params:  map[string]any{"operation": "evaluate"},
			wantSub: "requires an expression",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := callOp(t, tt.params)
			if err == nil {
				t.Fatal("Call succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not contain %q", err, tt.wantSub)
			}
		})
	}
}
