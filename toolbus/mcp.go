package toolbus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// MCPBus proxies tool calls to a remote MCP server. It implements the
// same Bus contract as LocalBus, so the engine cannot tell local and
// remote tools apart. The tool list is cached at construction and can
// be refreshed with [MCPBus.Refresh].
type MCPBus struct {
	client  *client.Client
	mu      sync.RWMutex
	tools   map[string]string // name -> description
	allow   map[string]bool
	workdir string
}

// NewMCPBus connects to an MCP server via stdio and caches its tool
// list. If allow is empty every advertised tool is allowed.
func NewMCPBus(ctx context.Context, command string, env []string, allow []string, args ...string) (*MCPBus, error) {
	c, err := client.NewStdioMCPClient(command, env, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client: %w", err)
	}
	return newMCPBusFromClient(ctx, c, allow)
}

// NewMCPBusSSE connects to an MCP server via SSE.
func NewMCPBusSSE(ctx context.Context, baseURL string, allow []string) (*MCPBus, error) {
	c, err := client.NewSSEMCPClient(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create SSE MCP client: %w", err)
	}
	return newMCPBusFromClient(ctx, c, allow)
}

func newMCPBusFromClient(ctx context.Context, c *client.Client, allow []string) (*MCPBus, error) {
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start MCP client: %w", err)
	}

	_, err := c.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			Capabilities:    mcp.ClientCapabilities{},
			ClientInfo: mcp.Implementation{
				Name:    "reagent-mcp-client",
				Version: "1.0.0",
			},
		},
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize MCP session: %w", err)
	}

	b := &MCPBus{
		client: c,
		tools:  make(map[string]string),
	}
	if len(allow) > 0 {
		b.allow = make(map[string]bool, len(allow))
		for _, n := range allow {
			b.allow[n] = true
		}
	}

	if err := b.Refresh(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	return b, nil
}

// Close closes the connection to the MCP server.
func (b *MCPBus) Close() error {
	return b.client.Close()
}

// Refresh re-fetches the tool list from the MCP server.
func (b *MCPBus) Refresh(ctx context.Context) error {
	result, err := b.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.tools = make(map[string]string, len(result.Tools))
	for _, t := range result.Tools {
		b.tools[t.Name] = t.Description
	}
	return nil
}

// SetWorkdir records the run-scoped working directory. Remote tools run
// in the server's own filesystem, so the value is only forwarded as a
// call argument hint, never applied locally.
func (b *MCPBus) SetWorkdir(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.workdir = path
}

// ListTools returns name to description for every allowed remote tool.
func (b *MCPBus) ListTools() map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string]string, len(b.tools))
	for name, desc := range b.tools {
		if b.allowed(name) {
			out[name] = desc
		}
	}
	return out
}

// allowed must be called with the lock held.
func (b *MCPBus) allowed(name string) bool {
	if b.allow == nil {
		return true
	}
	return b.allow[name]
}

// Call dispatches the named tool on the remote server. Failures are
// encoded in the Result, matching LocalBus behavior.
func (b *MCPBus) Call(ctx context.Context, name, arg string) Result {
	b.mu.RLock()
	allowed := b.allowed(name)
	_, known := b.tools[name]
	b.mu.RUnlock()

	if !known {
		return Result{OK: false, Error: fmt.Sprintf("tool not found: %s", name)}
	}
	if !allowed {
		return Result{OK: false, Error: fmt.Sprintf("tool not allowed: %s", name)}
	}

	var args any
	if arg != "" {
		if err := json.Unmarshal([]byte(arg), &args); err != nil {
			// Plain-text argument; forward it under a conventional key.
			args = map[string]any{"input": arg}
		}
	}

	start := time.Now()
	result, err := b.client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
	latency := time.Since(start)

	if err != nil {
		return Result{OK: false, Error: err.Error(), Latency: latency}
	}

	text := flattenContent(result)
	if result != nil && result.IsError {
		return Result{OK: false, Error: text, Latency: latency}
	}
	return Result{OK: true, Output: text, Latency: latency}
}

// flattenContent extracts and concatenates the text content of an MCP
// tool result.
func flattenContent(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}

	var parts []string
	for _, c := range result.Content {
		switch content := c.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		default:
			if data, err := json.Marshal(content); err == nil {
				parts = append(parts, string(data))
			}
		}
	}
	if result.StructuredContent != nil {
		if data, err := json.Marshal(result.StructuredContent); err == nil {
			parts = append(parts, string(data))
		}
	}
	return strings.Join(parts, "\n")
}
