// Package calculator provides the built-in calculator tool.
//
// The tool supports named operations (add, sqrt, factorial, ...) over the a
// and b parameters, plus an "evaluate" operation that parses a full
// mathematical expression. Expressions preserve spoken units: "sin(59
// degrees)" converts to radians before evaluation.
//
// The handler is safe for concurrent use.
package calculator

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/earshot-ai/earshot/internal/toolcall"
	"github.com/earshot-ai/earshot/pkg/types"
)

// result is the JSON-encoded output fed back to the model.
type result struct {
	// Result is the numeric outcome.
	Result float64 `json:"result"`

	// Calculation is a human-readable rendering, e.g. "3 + 4 = 7".
	Calculation string `json:"calculation"`
}

// Tool is the calculator tool.
type Tool struct{}

var _ toolcall.Tool = (*Tool)(nil)

// New returns the calculator tool.
func New() *Tool { return &Tool{} }

// Definition returns the calculator's LLM-facing schema.
func (t *Tool) Definition() types.ToolDefinition {
	return types.ToolDefinition{
		Name:        "calculator",
		Description: "Perform mathematical calculations including basic arithmetic, trigonometry, and advanced functions",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"operation": map[string]any{
					"type":        "string",
					"description": "The mathematical operation to perform",
					"enum": []any{
						"add", "subtract", "multiply", "divide", "power",
						"sqrt", "sin", "cos", "tan", "log", "ln",
						"factorial", "evaluate",
					},
				},
				"a": map[string]any{
					"type":        "number",
					"description": "First number (required for most operations)",
				},
				"b": map[string]any{
					"type":        "number",
					"description": "Second number (required for binary operations)",
				},
				"expression": map[string]any{
					"type":        "string",
					"description": "Mathematical expression to evaluate (for 'evaluate' operation)",
				},
			},
			"required": []any{"operation"},
		},
	}
}

// Call dispatches on the operation parameter. Domain errors ("Cannot divide
// by zero") are returned as errors so they reach the model as tool failures.
func (t *Tool) Call(_ context.Context, params map[string]any) (string, error) {
	op, _ := params["operation"].(string)
	a, hasA := number(params, "a")
	b, hasB := number(params, "b")

	var (
		value float64
		calc  string
	)

	switch op {
	case "add":
		if !hasA || !hasB {
			return "", fmt.Errorf("addition requires two numbers (a and b)")
		}
		value = a + b
		calc = fmt.Sprintf("%v + %v = %v", a, b, value)

	case "subtract":
		if !hasA || !hasB {
			return "", fmt.Errorf("subtraction requires two numbers (a and b)")
		}
		value = a - b
		calc = fmt.Sprintf("%v - %v = %v", a, b, value)

	case "multiply":
		if !hasA || !hasB {
			return "", fmt.Errorf("multiplication requires two numbers (a and b)")
		}
		value = a * b
		calc = fmt.Sprintf("%v × %v = %v", a, b, value)

	case "divide":
		if !hasA || !hasB {
			return "", fmt.Errorf("division requires two numbers (a and b)")
		}
		if b == 0 {
			return "", fmt.Errorf("Cannot divide by zero")
		}
		value = a / b
		calc = fmt.Sprintf("%v ÷ %v = %v", a, b, value)

	case "power":
		if !hasA || !hasB {
			return "", fmt.Errorf("power operation requires two numbers (a and b)")
		}
		value = math.Pow(a, b)
		calc = fmt.Sprintf("%v^%v = %v", a, b, value)

	case "sqrt":
		if !hasA {
			return "", fmt.Errorf("square root requires one number (a)")
		}
		if a < 0 {
			return "", fmt.Errorf("cannot calculate square root of negative number")
		}
		value = math.Sqrt(a)
		calc = fmt.Sprintf("√%v = %v", a, value)

	case "sin":
		if !hasA {
			return "", fmt.Errorf("sine requires one number (a) in radians")
		}
		value = math.Sin(a)
		calc = fmt.Sprintf("sin(%v) = %v", a, value)

	case "cos":
		if !hasA {
			return "", fmt.Errorf("cosine requires one number (a) in radians")
		}
		value = math.Cos(a)
		calc = fmt.Sprintf("cos(%v) = %v", a, value)

	case "tan":
		if !hasA {
			return "", fmt.Errorf("tangent requires one number (a) in radians")
		}
		value = math.Tan(a)
		calc = fmt.Sprintf("tan(%v) = %v", a, value)

	case "log":
		if !hasA {
			return "", fmt.Errorf("logarithm requires one number (a)")
		}
		if a <= 0 {
			return "", fmt.Errorf("logarithm requires positive number")
		}
		value = math.Log10(a)
		calc = fmt.Sprintf("log10(%v) = %v", a, value)

	case "ln":
		if !hasA {
			return "", fmt.Errorf("natural logarithm requires one number (a)")
		}
		if a <= 0 {
			return "", fmt.Errorf("natural logarithm requires positive number")
		}
		value = math.Log(a)
		calc = fmt.Sprintf("ln(%v) = %v", a, value)

	case "factorial":
		if !hasA {
			return "", fmt.Errorf("factorial requires one number (a)")
		}
		n, err := factorial(a)
		if err != nil {
			return "", err
		}
		value = n
		calc = fmt.Sprintf("%d! = %v", int64(a), value)

	case "evaluate":
		expr, _ := params["expression"].(string)
		if expr == "" {
			return "", fmt.Errorf("evaluate operation requires an expression")
		}
		v, err := Evaluate(expr)
		if err != nil {
			return "", fmt.Errorf("invalid expression: %w", err)
		}
		value = v
		calc = fmt.Sprintf("%s = %v", expr, value)

	default:
		return "", fmt.Errorf("unknown operation: %s", op)
	}

	out, err := json.Marshal(result{Result: value, Calculation: calc})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// number reads a numeric parameter, tolerating the integer types a JSON
// decoder may produce.
func number(params map[string]any, key string) (float64, bool) {
	switch v := params[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

// factorial computes n! for a non-negative integer-valued a.
func factorial(a float64) (float64, error) {
	if a < 0 || a != math.Trunc(a) {
		return 0, fmt.Errorf("factorial requires non-negative integer")
	}
	if a > 170 {
		return 0, fmt.Errorf("factorial of %d overflows", int64(a))
	}
	value := 1.0
	for i := 2.0; i <= a; i++ {
		value *= i
	}
	return value, nil
}
