package config

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/llmgate/gateway/internal/auth"
	"github.com/llmgate/gateway/internal/mcp"
	"github.com/llmgate/gateway/internal/provider"
	"github.com/llmgate/gateway/internal/service"
)

const (
	DefaultPort    = 7000
	DefaultAddress = "127.0.0.1"
)

// Registry is the built runtime configuration: one routing table per
// listener address, plus the MCP sessions to close on shutdown.
type Registry struct {
	Listeners map[string]*service.PathTable
	servers   []*mcp.Server
}

// Close shuts down every MCP session.
func (r *Registry) Close() {
	for _, srv := range r.servers {
		if err := srv.Close(); err != nil {
			slog.Warn("close mcp server", "server", srv.Name(), "error", err)
		}
	}
}

// Build constructs adapters, connects tool servers and assembles workspaces.
// Every validation failure here is fatal: a gateway with a broken config
// must not start.
func Build(ctx context.Context, file *File) (*Registry, error) {
	models := make(map[string]provider.Adapter, len(file.Models))
	for name, mc := range file.Models {
		slog.Debug("building model", "model", name, "type", mc.Type)
		adapter, err := buildModel(mc)
		if err != nil {
			return nil, fmt.Errorf("model %q: %w", name, err)
		}
		models[name] = adapter
	}

	registry := &Registry{Listeners: make(map[string]*service.PathTable)}

	mcps := make(map[string]*mcp.Server, len(file.MCPs))
	for name, sc := range file.MCPs {
		slog.Debug("connecting mcp server", "mcp", name)
		server, err := buildMCP(ctx, name, sc)
		if err != nil {
			registry.Close()
			return nil, fmt.Errorf("mcp %q: %w", name, err)
		}
		mcps[name] = server
		registry.servers = append(registry.servers, server)
	}

	for name, wc := range file.Workspaces {
		slog.Debug("building workspace", "workspace", name)
		model, ok := models[wc.Model]
		if !ok {
			registry.Close()
			return nil, fmt.Errorf("workspace %q: undefined model %q", name, wc.Model)
		}

		ws := &service.Workspace{Name: name, Model: model}
		for _, ref := range wc.MCPs {
			server, ok := mcps[ref]
			if !ok {
				registry.Close()
				return nil, fmt.Errorf("workspace %q: undefined mcp server %q", name, ref)
			}
			ws.Tools = append(ws.Tools, server)
		}

		path := wc.Config.Path
		if !strings.HasPrefix(path, "/") {
			registry.Close()
			return nil, fmt.Errorf("workspace %q: invalid path %q, paths start with \"/\"", name, path)
		}

		address := wc.Config.Address
		if address == "" {
			address = DefaultAddress
		}
		port := wc.Config.Port
		if port == 0 {
			port = DefaultPort
		}
		listener := fmt.Sprintf("%s:%d", address, port)

		table, ok := registry.Listeners[listener]
		if !ok {
			table = service.NewPathTable()
			registry.Listeners[listener] = table
		}
		table.Register(path, ws)
	}

	return registry, nil
}

func buildModel(mc ModelConfig) (provider.Adapter, error) {
	a, err := buildAuth(mc.Auth)
	if err != nil {
		return nil, err
	}
	switch mc.Type {
	case "openai":
		return provider.NewOpenAI(mc.URL, a, mc.Model)
	case "azure":
		return provider.NewAzure(mc.URL, a, mc.APIVersion)
	case "anthropic":
		return provider.NewAnthropic(mc.URL, a, mc.Model, mc.AnthropicVersion)
	case "gemini":
		return provider.NewGemini(mc.URL, a)
	default:
		return nil, fmt.Errorf("unknown model type %q", mc.Type)
	}
}

func buildAuth(ac *AuthConfig) (auth.Auth, error) {
	if ac == nil {
		return auth.None{}, nil
	}
	switch ac.Type {
	case "apikey":
		value := ac.Config.Value
		if ac.Config.Prefix != "" {
			value = ac.Config.Prefix + " " + value
		}
		switch ac.Config.Location {
		case "header":
			return auth.APIKey{In: auth.InHeader, Name: ac.Config.Name, Value: value}, nil
		case "parameter":
			return auth.APIKey{In: auth.InParams, Name: ac.Config.Name, Value: value}, nil
		default:
			return nil, fmt.Errorf("unknown api key location %q", ac.Config.Location)
		}
	case "oauth2":
		return auth.OAuth2{
			TokenURL:     ac.Config.URL,
			ClientID:     ac.Config.ClientID,
			ClientSecret: ac.Config.ClientSecret,
			Scope:        ac.Config.Scope,
		}, nil
	default:
		return nil, fmt.Errorf("unknown auth type %q", ac.Type)
	}
}

func buildMCP(ctx context.Context, name string, sc MCPConfig) (*mcp.Server, error) {
	filter, err := buildFilter(sc.Filter)
	if err != nil {
		return nil, err
	}

	switch {
	case sc.Command != "" && sc.URL != "":
		return nil, fmt.Errorf("both command and url set")
	case sc.Command != "":
		transport := mcp.CommandTransport(ctx, sc.Command, sc.Args, sc.Env)
		return mcp.Connect(ctx, name, transport, filter)
	case sc.URL != "":
		parsed, err := url.Parse(sc.URL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("invalid url %q", sc.URL)
		}
		return mcp.Connect(ctx, name, mcp.HTTPTransport(sc.URL, sc.SSE), filter)
	default:
		return nil, fmt.Errorf("neither command nor url set")
	}
}

func buildFilter(fc *FilterConfig) (mcp.Filter, error) {
	if fc == nil {
		return mcp.Filter{}, nil
	}
	if len(fc.Include) > 0 && len(fc.Exclude) > 0 {
		return mcp.Filter{}, fmt.Errorf("filter sets both include and exclude")
	}
	if len(fc.Include) > 0 {
		return mcp.Include(fc.Include...), nil
	}
	return mcp.Exclude(fc.Exclude...), nil
}
