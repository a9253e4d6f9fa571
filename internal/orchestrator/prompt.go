package orchestrator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/earshot-ai/earshot/internal/session"
	"github.com/earshot-ai/earshot/pkg/types"
)

// BuildPrompt assembles the user message for one actionable sentence:
// recalled context snippets, the recent conversation window, and the question
// itself.
func BuildPrompt(contexts []string, history []session.Turn, sentence string) string {
	var b strings.Builder

	if len(contexts) > 0 {
		b.WriteString("Context:\n")
		for _, ctx := range contexts {
			b.WriteString("- ")
			b.WriteString(ctx)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}

	if len(history) > 0 {
		b.WriteString("Conversation History:\n")
		for _, turn := range history {
			fmt.Fprintf(&b, "User: %s\nAssistant: %s\n", turn.User, turn.Assistant)
		}
		b.WriteByte('\n')
	}

	b.WriteString("Question:\n")
	b.WriteString(sentence)
	return b.String()
}

// ToolsPrompt renders the tool-calling instructions appended to the system
// prompt. Empty if no tools are registered.
func ToolsPrompt(defs []types.ToolDefinition) string {
	if len(defs) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(`

AVAILABLE TOOLS:
When a request requires a tool, respond with exactly one directive in this format:

<tool_call>
{"tool_name": "name_here", "parameters": {"param": "value"}}
</tool_call>

Rules:
1. Always wrap the JSON in <tool_call> and </tool_call> tags.
2. Include both "tool_name" and "parameters".
3. Issue at most one tool call per response.
4. Answer directly, without a tool call, when no tool is needed.
5. Preserve units the user spoke, e.g. "sin(59 degrees)" not "sin(59)".

Available tools:

`)

	for _, def := range defs {
		fmt.Fprintf(&b, "**%s**: %s\n", def.Name, def.Description)
		writeParameters(&b, def.Parameters)
		b.WriteByte('\n')
	}

	return strings.TrimRight(b.String(), "\n")
}

// writeParameters renders a JSON Schema's properties as an indented list.
func writeParameters(b *strings.Builder, schema map[string]any) {
	props, ok := schema["properties"].(map[string]any)
	if !ok || len(props) == 0 {
		return
	}
	required := map[string]bool{}
	if reqs, ok := schema["required"].([]string); ok {
		for _, r := range reqs {
			required[r] = true
		}
	} else if reqs, ok := schema["required"].([]any); ok {
		for _, r := range reqs {
			if name, ok := r.(string); ok {
				required[name] = true
			}
		}
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	b.WriteString("Parameters:\n")
	for _, name := range names {
		info, _ := props[name].(map[string]any)
		typ, _ := info["type"].(string)
		if typ == "" {
			typ = "string"
		}
		desc, _ := info["description"].(string)
		mark := ""
		if required[name] {
			mark = " (required)"
		}
		fmt.Fprintf(b, "  - %s (%s)%s: %s\n", name, typ, mark, desc)
		if opts := enumOptions(info["enum"]); len(opts) > 0 {
			fmt.Fprintf(b, "    Options: %s\n", strings.Join(opts, ", "))
		}
	}
}

func enumOptions(v any) []string {
	var out []string
	switch vals := v.(type) {
	case []string:
		out = vals
	case []any:
		for _, e := range vals {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}
