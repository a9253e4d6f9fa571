// Package mcpbridge exposes tools from Model Context Protocol servers as
// [toolcall.Tool] values.
//
// A [Bridge] connects to one or more MCP servers via stdio or streamable-HTTP
// transports using the official MCP Go SDK
// (github.com/modelcontextprotocol/go-sdk) and wraps each discovered tool so
// it can be registered in a [toolcall.Registry] alongside the builtin tools.
//
// All methods are safe for concurrent use.
package mcpbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/earshot-ai/earshot/internal/toolcall"
	"github.com/earshot-ai/earshot/pkg/types"
)

// Transport selects the connection mechanism for an MCP server.
type Transport string

const (
	// TransportStdio spawns a subprocess and communicates over stdin/stdout.
	TransportStdio Transport = "stdio"

	// TransportStreamableHTTP communicates via the MCP Streamable HTTP protocol.
	TransportStreamableHTTP Transport = "streamable-http"
)

// IsValid reports whether t is a recognised transport.
func (t Transport) IsValid() bool {
	return t == TransportStdio || t == TransportStreamableHTTP
}

// ServerConfig describes how to connect to a single MCP server.
type ServerConfig struct {
	// Name identifies this server. Must be unique within a Bridge.
	Name string

	// Transport specifies the connection mechanism.
	Transport Transport

	// Command is the executable path and arguments used for stdio transport,
	// e.g. "/usr/local/bin/mcp-weather --config /etc/weather.json".
	Command string

	// URL is the endpoint address used for streamable-http transport.
	URL string

	// Env holds additional environment variables for the stdio subprocess.
	Env map[string]string
}

// Bridge manages connections to MCP servers and wraps their tools.
//
// The zero value is not usable; create instances with [New].
type Bridge struct {
	client *mcpsdk.Client

	mu       sync.Mutex
	sessions map[string]*mcpsdk.ClientSession
}

// New creates a ready-to-use Bridge.
func New() *Bridge {
	return &Bridge{
		client: mcpsdk.NewClient(
			&mcpsdk.Implementation{Name: "earshot-mcpbridge", Version: "1.0.0"},
			nil,
		),
		sessions: make(map[string]*mcpsdk.ClientSession),
	}
}

// Connect establishes a session with the server described by cfg and returns
// its tools, ready for [toolcall.Registry.Register]. Reconnecting a server
// with the same Name closes the old session first.
func (b *Bridge) Connect(ctx context.Context, cfg ServerConfig) ([]toolcall.Tool, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("mcp bridge: server config must have a non-empty name")
	}
	if !cfg.Transport.IsValid() {
		return nil, fmt.Errorf("mcp bridge: unknown transport %q for server %q", cfg.Transport, cfg.Name)
	}

	var transport mcpsdk.Transport
	switch cfg.Transport {
	case TransportStdio:
		executable, args := splitCommand(cfg.Command)
		if executable == "" {
			return nil, fmt.Errorf("mcp bridge: stdio server %q requires a non-empty Command", cfg.Name)
		}
		cmd := exec.CommandContext(ctx, executable, args...)
		for k, v := range cfg.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
		transport = &mcpsdk.CommandTransport{Command: cmd}

	case TransportStreamableHTTP:
		if cfg.URL == "" {
			return nil, fmt.Errorf("mcp bridge: streamable-http server %q requires a non-empty URL", cfg.Name)
		}
		transport = &mcpsdk.StreamableClientTransport{Endpoint: cfg.URL}
	}

	session, err := b.client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcp bridge: failed to connect to server %q: %w", cfg.Name, err)
	}

	var tools []toolcall.Tool
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			_ = session.Close()
			return nil, fmt.Errorf("mcp bridge: failed to list tools for server %q: %w", cfg.Name, err)
		}
		tools = append(tools, &remoteTool{
			session: session,
			def: types.ToolDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  schemaToMap(tool.InputSchema),
			},
		})
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if old, ok := b.sessions[cfg.Name]; ok {
		_ = old.Close()
	}
	b.sessions[cfg.Name] = session

	return tools, nil
}

// Close shuts down all server sessions. After Close returns the Bridge must
// not be used again.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var firstErr error
	for name, session := range b.sessions {
		if err := session.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("mcp bridge: error closing server %q: %w", name, err)
		}
		delete(b.sessions, name)
	}
	return firstErr
}

// remoteTool adapts one MCP server tool to [toolcall.Tool].
type remoteTool struct {
	session *mcpsdk.ClientSession
	def     types.ToolDefinition
}

var _ toolcall.Tool = (*remoteTool)(nil)

func (t *remoteTool) Definition() types.ToolDefinition { return t.def }

// Call routes the invocation to the server session and concatenates the text
// content of the result. An application-level error result becomes a Go
// error so the registry reports it as an execution failure.
func (t *remoteTool) Call(ctx context.Context, params map[string]any) (string, error) {
	result, err := t.session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      t.def.Name,
		Arguments: params,
	})
	if err != nil {
		return "", fmt.Errorf("call to tool %q failed: %w", t.def.Name, err)
	}

	var sb strings.Builder
	for _, c := range result.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	if result.IsError {
		return "", errors.New(sb.String())
	}
	return sb.String(), nil
}

// schemaToMap converts any schema value to a map[string]any.
func schemaToMap(schema any) map[string]any {
	if schema == nil {
		return map[string]any{"type": "object"}
	}
	if m, ok := schema.(map[string]any); ok {
		return m
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{"type": "object"}
	}
	return m
}

// splitCommand splits a command string into executable and arguments.
func splitCommand(command string) (executable string, args []string) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return "", nil
	}
	return parts[0], parts[1:]
}
