package toolcall

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Directive is one parsed tool invocation from an LLM response.
type Directive struct {
	ToolName   string         `json:"tool_name"`
	Parameters map[string]any `json:"parameters"`
}

// Directive extraction patterns, tried in order. Small local models routinely
// forget the closing tag or interleave prose, so matching degrades gracefully
// from well-formed to barely-tagged.
var (
	reComplete   = regexp.MustCompile(`(?s)<tool_call>\s*(.*?)\s*</tool_call>`)
	reUnclosed   = regexp.MustCompile(`(?s)<tool_call>\s*(\{.*?\})\s*(\n|$)`)
	reLoose      = regexp.MustCompile(`(?s)<tool_call>\s*(\{[^<]*?\})`)
	reBareJSON   = regexp.MustCompile(`(?m)^\s*(\{"tool_name":\s*"[^"]+",\s*"parameters":\s*\{[^}]*\}\})\s*$`)
	reAnyTag     = regexp.MustCompile(`</?tool_call[^>]*>`)
	reBlankLines = regexp.MustCompile(`\n\s*\n`)
)

// ParseDirective extracts the first tool-call directive from an LLM response.
//
// It returns (nil, nil) when the response contains no directive at all: a
// plain answer. When a directive block is present but its payload cannot be
// decoded into a valid tool call, the error wraps [ErrMalformedDirective].
//
// Only the first directive is honoured; anything the model emits after it is
// ignored. Tolerated variants:
//   - well-formed <tool_call>...</tool_call> blocks
//   - a missing closing tag
//   - a bare {"tool_name": ..., "parameters": ...} object with no tags
//   - a bare calculator payload ({"expression": ...} without the wrapper)
func ParseDirective(response string) (*Directive, error) {
	var raw string
	for _, re := range []*regexp.Regexp{reComplete, reUnclosed, reLoose} {
		if m := re.FindStringSubmatch(response); m != nil {
			raw = strings.TrimSpace(m[1])
			break
		}
	}
	if raw == "" {
		if m := reBareJSON.FindStringSubmatch(strings.TrimSpace(response)); m != nil {
			raw = strings.TrimSpace(m[1])
		}
	}
	if raw == "" {
		return nil, nil
	}

	// Models occasionally concatenate several calls; keep the first candidate
	// that decodes.
	candidates := []string{
		raw,
		strings.SplitN(raw, " and ", 2)[0],
		strings.SplitN(raw, "\n", 2)[0],
	}
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if !strings.HasPrefix(c, "{") || !strings.HasSuffix(c, "}") {
			continue
		}
		if d := decodeDirective(c); d != nil {
			return d, nil
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrMalformedDirective, truncate(raw, 120))
}

// decodeDirective decodes one JSON candidate, repairing the common failure
// mode where the model emits a calculator payload without the tool_name
// wrapper.
func decodeDirective(candidate string) *Directive {
	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return nil
	}

	if _, hasName := obj["tool_name"]; !hasName {
		if _, hasExpr := obj["expression"]; hasExpr {
			return &Directive{ToolName: "calculator", Parameters: obj}
		}
		return nil
	}

	name, _ := obj["tool_name"].(string)
	params, ok := obj["parameters"].(map[string]any)
	if name == "" || !ok {
		return nil
	}
	return &Directive{ToolName: name, Parameters: params}
}

// StripDirectives removes every tool-call block and stray tag from response,
// leaving only the speech-ready prose.
func StripDirectives(response string) string {
	s := reComplete.ReplaceAllString(response, "")
	s = reUnclosed.ReplaceAllString(s, "")
	s = reAnyTag.ReplaceAllString(s, "")
	s = reBlankLines.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
