// Package service holds the workspace registry and the per-request
// orchestration loop between one model adapter and the workspace's tool
// providers.
package service

import (
	"context"
	"sort"
	"sync"

	"github.com/llmgate/gateway/internal/chat"
	"github.com/llmgate/gateway/internal/provider"
)

// ToolProvider is the abstract tool-serving capability the loop consumes.
// The MCP wire protocol lives behind it.
type ToolProvider interface {
	Name() string
	ListTools(ctx context.Context) ([]chat.ToolSpec, error)
	CallTool(ctx context.Context, name string, arguments map[string]any) (string, error)
}

// Workspace binds one model adapter and a set of tool providers to an HTTP
// path. Model and tool-provider instances are shared across workspaces.
type Workspace struct {
	Name  string
	Model provider.Adapter
	Tools []ToolProvider
}

// PathTable is one listener's routing table from HTTP path to workspace.
// Registration happens at startup; requests only read, so a reader-writer
// lock fits.
type PathTable struct {
	mu    sync.RWMutex
	paths map[string]*Workspace
}

func NewPathTable() *PathTable {
	return &PathTable{paths: make(map[string]*Workspace)}
}

// Register binds a path to a workspace, replacing any previous binding.
func (t *PathTable) Register(path string, ws *Workspace) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paths[path] = ws
}

// Lookup resolves a request path to its workspace.
func (t *PathTable) Lookup(path string) (*Workspace, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ws, ok := t.paths[path]
	return ws, ok
}

// Paths returns the registered paths in stable order.
func (t *PathTable) Paths() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	paths := make([]string, 0, len(t.paths))
	for path := range t.paths {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
