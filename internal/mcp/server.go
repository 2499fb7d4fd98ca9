// Package mcp wraps connections to external Model Context Protocol tool
// servers behind the gateway's tool-provider capability: list the (filtered)
// tool catalog and invoke a single tool.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/llmgate/gateway/internal/apierr"
	"github.com/llmgate/gateway/internal/chat"
)

const (
	clientName    = "llmgate"
	clientVersion = "0.1.0"
)

// Server is one connected MCP tool server with its tool filter. Instances
// are built once at startup and shared read-only across requests.
type Server struct {
	name    string
	session *mcpsdk.ClientSession
	filter  Filter
	log     *slog.Logger
}

// Connect establishes a session over the given transport. Failing to reach a
// configured tool server is fatal at startup.
func Connect(ctx context.Context, name string, transport mcpsdk.Transport, filter Filter) (*Server, error) {
	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: clientName, Version: clientVersion}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connect mcp server %q: %w", name, err)
	}
	return &Server{name: name, session: session, filter: filter, log: slog.Default()}, nil
}

// CommandTransport builds a stdio transport for a local tool-server process.
// Configured variables are added on top of the inherited environment; setting
// exec.Cmd.Env from scratch would strip PATH and friends from the child.
func CommandTransport(ctx context.Context, command string, args []string, env map[string]string) mcpsdk.Transport {
	cmd := exec.CommandContext(ctx, command, args...)
	if len(env) > 0 {
		cmd.Env = os.Environ()
		for key, value := range env {
			cmd.Env = append(cmd.Env, key+"="+value)
		}
	}
	return &mcpsdk.CommandTransport{Command: cmd}
}

// HTTPTransport builds a transport for a remote tool server: SSE framing when
// sse is set, streamable HTTP otherwise.
func HTTPTransport(endpoint string, sse bool) mcpsdk.Transport {
	if sse {
		return &mcpsdk.SSEClientTransport{Endpoint: endpoint}
	}
	return &mcpsdk.StreamableClientTransport{Endpoint: endpoint}
}

// Name returns the configured server name.
func (s *Server) Name() string {
	return s.name
}

// Close shuts down the session.
func (s *Server) Close() error {
	return s.session.Close()
}

// ListTools returns the server's tool catalog with the filter applied.
func (s *Server) ListTools(ctx context.Context) ([]chat.ToolSpec, error) {
	var specs []chat.ToolSpec
	for tool, err := range s.session.Tools(ctx, nil) {
		if err != nil {
			return nil, apierr.Internal("list tools on %q: %s", s.name, err)
		}
		if !s.filter.Allows(tool.Name) {
			continue
		}
		schema, err := schemaObject(tool.InputSchema)
		if err != nil {
			return nil, apierr.Internal("tool %q schema: %s", tool.Name, err)
		}
		specs = append(specs, chat.ToolSpec{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schema,
		})
	}
	return specs, nil
}

// CallTool invokes one tool and returns its single text payload. Multi-part
// or non-text results are an unsupported-response failure, never
// approximated.
func (s *Server) CallTool(ctx context.Context, name string, arguments map[string]any) (string, error) {
	result, err := s.session.CallTool(ctx, &mcpsdk.CallToolParams{Name: name, Arguments: arguments})
	if err != nil {
		return "", apierr.Internal("call tool %q on %q: %s", name, s.name, err)
	}
	if result.IsError {
		s.log.Error("tool reported an error", "tool", name, "server", s.name)
	}
	if len(result.Content) != 1 {
		return "", apierr.Internal("tool %q returned %d content items, want exactly 1", name, len(result.Content))
	}
	text, ok := result.Content[0].(*mcpsdk.TextContent)
	if !ok {
		return "", apierr.Internal("tool %q returned non-text content", name)
	}
	return text.Text, nil
}

// schemaObject renders whatever schema representation the SDK hands back
// into a plain JSON object.
func schemaObject(schema any) (map[string]any, error) {
	if schema == nil {
		return nil, nil
	}
	if object, ok := schema.(map[string]any); ok {
		return object, nil
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var object map[string]any
	if err := json.Unmarshal(raw, &object); err != nil {
		return nil, err
	}
	return object, nil
}
