package service

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/llmgate/gateway/internal/apierr"
	"github.com/llmgate/gateway/internal/chat"
)

const (
	// DefaultTimeout bounds one request's whole agent loop.
	DefaultTimeout = 5 * time.Minute
	// DefaultMaxTurns bounds model invocations per request so a model that
	// keeps asking for tools cannot loop forever.
	DefaultMaxTurns = 25

	unknownToolOutput = "Function doesn't exist"
)

// Orchestrator drives the agent loop: model call, tool dispatch, repeat
// until a turn yields only text.
type Orchestrator struct {
	timeout  time.Duration
	maxTurns int
	log      *slog.Logger
}

func NewOrchestrator(timeout time.Duration, maxTurns int) *Orchestrator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Orchestrator{timeout: timeout, maxTurns: maxTurns, log: slog.Default()}
}

// Run mutates conv by appending the assistant's messages and tool outputs,
// and returns it with the accumulated token usage of every turn. The loop is
// strictly sequential within a request: each turn's tool calls complete, in
// call order, before the next model call. When the workspace has no tool
// providers the gateway never dispatches: the first turn's result, tool calls
// included, is returned for the caller to act on.
func (o *Orchestrator) Run(ctx context.Context, ws *Workspace, conv *chat.Conversation) (*chat.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	catalog, routes, err := o.buildCatalog(ctx, ws)
	if err != nil {
		return nil, err
	}
	callerExecutes := len(ws.Tools) == 0
	if callerExecutes {
		// A workspace without tool providers still forwards tools the caller
		// supplied in the request body. The caller also executes them: a
		// tool-calls turn goes back in the response instead of looping.
		catalog = conv.CallerSpecs()
	}

	var usage chat.UsageTokens
	for turn := 0; turn < o.maxTurns; turn++ {
		decisions, turnUsage, err := ws.Model.Call(ctx, conv, catalog)
		if err != nil {
			return nil, err
		}
		usage.Add(turnUsage)

		hadCalls := false
		for _, decision := range decisions {
			switch decision.Kind {
			case chat.DecisionText:
				conv.Append(chat.NewText(chat.RoleAssistant, decision.Text))
			case chat.DecisionToolCalls:
				hadCalls = true
				conv.Append(chat.NewToolCalls(decision.Calls))
				if callerExecutes {
					continue
				}
				if err := o.dispatch(ctx, ws, routes, decision.Calls, conv); err != nil {
					return nil, err
				}
			}
		}
		if !hadCalls || callerExecutes {
			conv.Usage = &usage
			return conv, nil
		}
	}
	return nil, apierr.Internal("tool loop did not settle within %d turns", o.maxTurns)
}

// dispatch invokes the batch's calls strictly in the order the model
// returned them and appends one output per call id, in that same order. An
// unknown tool name feeds an error string back to the model instead of
// aborting; a failing invocation of a resolved tool aborts the request.
func (o *Orchestrator) dispatch(ctx context.Context, ws *Workspace, routes map[string]ToolProvider, calls []chat.ToolCall, conv *chat.Conversation) error {
	for _, call := range calls {
		tool, ok := routes[call.Name]
		if !ok {
			o.log.Warn("model called an unknown tool", "workspace", ws.Name, "tool", call.Name)
			conv.Append(chat.NewToolOutput(call.ID, unknownToolOutput))
			continue
		}
		output, err := tool.CallTool(ctx, call.Name, call.Arguments)
		if err != nil {
			return err
		}
		conv.Append(chat.NewToolOutput(call.ID, output))
	}
	return nil
}

// buildCatalog lists every provider's tools concurrently, flattens them in
// provider order, and builds the dispatch map. A name registered by more
// than one provider resolves to the last registration.
func (o *Orchestrator) buildCatalog(ctx context.Context, ws *Workspace) ([]chat.ToolSpec, map[string]ToolProvider, error) {
	lists := make([][]chat.ToolSpec, len(ws.Tools))
	group, listCtx := errgroup.WithContext(ctx)
	for i, tool := range ws.Tools {
		group.Go(func() error {
			specs, err := tool.ListTools(listCtx)
			lists[i] = specs
			return err
		})
	}
	if err := group.Wait(); err != nil {
		return nil, nil, err
	}

	var catalog []chat.ToolSpec
	routes := make(map[string]ToolProvider)
	for i, specs := range lists {
		for _, spec := range specs {
			if shadowed, ok := routes[spec.Name]; ok {
				o.log.Warn("tool name registered twice, last registration wins",
					"workspace", ws.Name, "tool", spec.Name,
					"shadowed", shadowed.Name(), "winner", ws.Tools[i].Name())
			}
			routes[spec.Name] = ws.Tools[i]
			catalog = append(catalog, spec)
		}
	}
	return catalog, routes, nil
}
