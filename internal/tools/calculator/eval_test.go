package calculator

import (
	"math"
	"testing"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		expr string
		want float64
	}{
		{expr: "15 + 27", want: 42},
		{expr: "2 * (3 + 4)", want: 14},
		{expr: "10 / 4", want: 2.5},
		{expr: "2^10", want: 1024},
		{expr: "2^3^2", want: 512}, // right associative
		{expr: "-3 + 5", want: 2},
		{expr: "-(2 + 3)", want: -5},
		{expr: "sqrt(16)", want: 4},
		{expr: "sin(0)", want: 0},
		{expr: "sin(90 degrees)", want: 1},
		{expr: "cos(180 degrees)", want: -1},
		{expr: "sin(pi / 2 radians)", want: 1},
		{expr: "pi", want: math.Pi},
		{expr: "2 * pi", want: 2 * math.Pi},
		{expr: "log(100)", want: 2},
		{expr: "ln(e)", want: 1},
		{expr: "abs(-7)", want: 7},
		{expr: "round(2.6)", want: 3},
		{expr: "factorial(5)", want: 120},
		{expr: "3 × 4", want: 12},
		{expr: "10 ÷ 4", want: 2.5},
		{expr: "pi * 5^2", want: math.Pi * 25}, // circle area, radius 5
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Evaluate(tt.expr)
			if err != nil {
				t.Fatalf("Evaluate(%q): %v", tt.expr, err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Evaluate(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{name: "divide by zero", expr: "1 / 0"},
		{name: "mismatched parens", expr: "(1 + 2"},
		{name: "dangling operator", expr: "3 +"},
		{name: "unknown identifier", expr: "foo(3)"},
		{name: "unexpected character", expr: "3 $ 4"},
		{name: "empty", expr: ""},
		{name: "unit without value", expr: "degrees"},
		{name: "sqrt of negative", expr: "sqrt(-1)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Evaluate(tt.expr); err == nil {
				t.Errorf("Evaluate(%q) succeeded, want error", tt.expr)
			}
		})
	}
}
