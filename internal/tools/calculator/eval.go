package calculator

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Evaluate parses and evaluates a mathematical expression.
//
// Supported syntax: the binary operators + - * / ^ (and the spoken glyphs ×
// and ÷), unary minus, parentheses, the constants pi, e and tau, and the
// functions sin, cos, tan, asin, acos, atan, sqrt, log (base 10), ln, abs and
// round. The unit words "degrees" and "radians" may follow a value:
// "sin(59 degrees)" converts 59 to radians before applying sin.
func Evaluate(expr string) (float64, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return 0, err
	}
	rpn, err := toRPN(tokens)
	if err != nil {
		return 0, err
	}
	return evalRPN(rpn)
}

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokIdent
	tokOperator
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	num  float64
}

func tokenize(expr string) ([]token, error) {
	expr = strings.NewReplacer("×", "*", "÷", "/").Replace(expr)

	var tokens []token
	runes := []rune(expr)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++

		case unicode.IsDigit(r) || r == '.':
			j := i
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.') {
				j++
			}
			text := string(runes[i:j])
			n, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, fmt.Errorf("bad number %q", text)
			}
			tokens = append(tokens, token{kind: tokNumber, text: text, num: n})
			i = j

		case unicode.IsLetter(r):
			j := i
			for j < len(runes) && unicode.IsLetter(runes[j]) {
				j++
			}
			tokens = append(tokens, token{kind: tokIdent, text: strings.ToLower(string(runes[i:j]))})
			i = j

		case r == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "("})
			i++

		case r == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")"})
			i++

		case strings.ContainsRune("+-*/^", r):
			tokens = append(tokens, token{kind: tokOperator, text: string(r)})
			i++

		default:
			return nil, fmt.Errorf("unexpected character %q", string(r))
		}
	}
	return tokens, nil
}

var constants = map[string]float64{
	"pi":  math.Pi,
	"e":   math.E,
	"tau": 2 * math.Pi,
}

var functions = map[string]func(float64) (float64, error){
	"sin":  func(x float64) (float64, error) { return math.Sin(x), nil },
	"cos":  func(x float64) (float64, error) { return math.Cos(x), nil },
	"tan":  func(x float64) (float64, error) { return math.Tan(x), nil },
	"asin": func(x float64) (float64, error) { return math.Asin(x), nil },
	"acos": func(x float64) (float64, error) { return math.Acos(x), nil },
	"atan": func(x float64) (float64, error) { return math.Atan(x), nil },
	"abs":  func(x float64) (float64, error) { return math.Abs(x), nil },
	"round": func(x float64) (float64, error) {
		return math.Round(x), nil
	},
	"sqrt": func(x float64) (float64, error) {
		if x < 0 {
			return 0, fmt.Errorf("cannot calculate square root of negative number")
		}
		return math.Sqrt(x), nil
	},
	"log": func(x float64) (float64, error) {
		if x <= 0 {
			return 0, fmt.Errorf("logarithm requires positive number")
		}
		return math.Log10(x), nil
	},
	"ln": func(x float64) (float64, error) {
		if x <= 0 {
			return 0, fmt.Errorf("natural logarithm requires positive number")
		}
		return math.Log(x), nil
	},
	"factorial": func(x float64) (float64, error) {
		return factorial(x)
	},
	// Unit words applied postfix during RPN conversion.
	"deg": func(x float64) (float64, error) { return x * math.Pi / 180, nil },
	"rad": func(x float64) (float64, error) { return x, nil },
}

// precedence and associativity for binary operators. "neg" is the internal
// unary minus.
func precedence(op string) int {
	switch op {
	case "+", "-":
		return 1
	case "*", "/":
		return 2
	case "^":
		return 3
	case "neg":
		return 4
	}
	return 0
}

func rightAssociative(op string) bool {
	return op == "^" || op == "neg"
}

// toRPN converts tokens to reverse Polish notation via the shunting-yard
// algorithm. Unit words ("degrees", "radians") bind tighter than any operator
// and are emitted directly after their value.
func toRPN(tokens []token) ([]token, error) {
	var output, stack []token
	prevValue := false // previous token produced a value (number, rparen, unit word)

	for _, t := range tokens {
		switch t.kind {
		case tokNumber:
			output = append(output, t)
			prevValue = true

		case tokIdent:
			switch {
			case t.text == "degrees" || t.text == "degree":
				if !prevValue {
					return nil, fmt.Errorf("%q must follow a value", t.text)
				}
				output = append(output, token{kind: tokOperator, text: "deg"})
			case t.text == "radians" || t.text == "radian":
				if !prevValue {
					return nil, fmt.Errorf("%q must follow a value", t.text)
				}
				output = append(output, token{kind: tokOperator, text: "rad"})
			default:
				if c, ok := constants[t.text]; ok {
					output = append(output, token{kind: tokNumber, text: t.text, num: c})
					prevValue = true
					continue
				}
				if _, ok := functions[t.text]; !ok {
					return nil, fmt.Errorf("unknown identifier %q", t.text)
				}
				stack = append(stack, t)
				prevValue = false
			}

		case tokOperator:
			op := t.text
			if op == "-" && !prevValue {
				op = "neg"
			}
			for len(stack) > 0 {
				top := stack[len(stack)-1]
				if top.kind == tokLParen {
					break
				}
				topPrec := precedence(top.text)
				if top.kind == tokIdent {
					topPrec = 5 // function application binds tightest
				}
				if topPrec > precedence(op) || (topPrec == precedence(op) && !rightAssociative(op)) {
					output = append(output, top)
					stack = stack[:len(stack)-1]
					continue
				}
				break
			}
			stack = append(stack, token{kind: tokOperator, text: op})
			prevValue = false

		case tokLParen:
			stack = append(stack, t)
			prevValue = false

		case tokRParen:
			for {
				if len(stack) == 0 {
					return nil, fmt.Errorf("mismatched parentheses")
				}
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if top.kind == tokLParen {
					break
				}
				output = append(output, top)
			}
			// A function call wraps the parenthesised group.
			if len(stack) > 0 && stack[len(stack)-1].kind == tokIdent {
				output = append(output, stack[len(stack)-1])
				stack = stack[:len(stack)-1]
			}
			prevValue = true
		}
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if top.kind == tokLParen {
			return nil, fmt.Errorf("mismatched parentheses")
		}
		output = append(output, top)
	}
	return output, nil
}

func evalRPN(rpn []token) (float64, error) {
	var stack []float64

	pop := func() (float64, bool) {
		if len(stack) == 0 {
			return 0, false
		}
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v, true
	}

	for _, t := range rpn {
		switch t.kind {
		case tokNumber:
			stack = append(stack, t.num)

		case tokIdent:
			fn, ok := functions[t.text]
			if !ok {
				return 0, fmt.Errorf("unknown function %q", t.text)
			}
			x, ok := pop()
			if !ok {
				return 0, fmt.Errorf("%s: missing argument", t.text)
			}
			v, err := fn(x)
			if err != nil {
				return 0, err
			}
			stack = append(stack, v)

		case tokOperator:
			if fn, ok := functions[t.text]; ok { // deg / rad
				x, ok := pop()
				if !ok {
					return 0, fmt.Errorf("%s: missing argument", t.text)
				}
				v, err := fn(x)
				if err != nil {
					return 0, err
				}
				stack = append(stack, v)
				continue
			}
			if t.text == "neg" {
				x, ok := pop()
				if !ok {
					return 0, fmt.Errorf("unary minus: missing operand")
				}
				stack = append(stack, -x)
				continue
			}

			b, okB := pop()
			a, okA := pop()
			if !okA || !okB {
				return 0, fmt.Errorf("operator %q: missing operands", t.text)
			}
			switch t.text {
			case "+":
				stack = append(stack, a+b)
			case "-":
				stack = append(stack, a-b)
			case "*":
				stack = append(stack, a*b)
			case "/":
				if b == 0 {
					return 0, fmt.Errorf("Cannot divide by zero")
				}
				stack = append(stack, a/b)
			case "^":
				stack = append(stack, math.Pow(a, b))
			default:
				return 0, fmt.Errorf("unknown operator %q", t.text)
			}
		}
	}

	if len(stack) != 1 {
		return 0, fmt.Errorf("malformed expression")
	}
	return stack[0], nil
}
