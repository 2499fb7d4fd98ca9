package service

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/llmgate/gateway/internal/apierr"
	"github.com/llmgate/gateway/internal/chat"
)

// scriptedModel replays a fixed sequence of turns. Each call consumes the
// next entry.
type scriptedModel struct {
	turns []scriptedTurn
	calls int
}

type scriptedTurn struct {
	decisions []chat.Decision
	usage     chat.UsageTokens
	err       error
}

func (m *scriptedModel) Call(ctx context.Context, conv *chat.Conversation, tools []chat.ToolSpec) ([]chat.Decision, chat.UsageTokens, error) {
	if m.calls >= len(m.turns) {
		return nil, chat.UsageTokens{}, fmt.Errorf("model called %d times, scripted for %d", m.calls+1, len(m.turns))
	}
	turn := m.turns[m.calls]
	m.calls++
	return turn.decisions, turn.usage, turn.err
}

// stubTools serves a static catalog and records invocations.
type stubTools struct {
	name    string
	specs   []chat.ToolSpec
	outputs map[string]string
	callErr error
	called  []string
}

func (s *stubTools) Name() string { return s.name }

func (s *stubTools) ListTools(ctx context.Context) ([]chat.ToolSpec, error) {
	return s.specs, nil
}

func (s *stubTools) CallTool(ctx context.Context, name string, arguments map[string]any) (string, error) {
	s.called = append(s.called, name)
	if s.callErr != nil {
		return "", s.callErr
	}
	return s.outputs[name], nil
}

func startConversation() *chat.Conversation {
	return &chat.Conversation{Messages: []chat.Message{chat.NewText(chat.RoleUser, "hi")}}
}

func TestRunTextOnlyTerminatesImmediately(t *testing.T) {
	model := &scriptedModel{turns: []scriptedTurn{{
		decisions: []chat.Decision{chat.TextDecision("hello")},
		usage:     chat.UsageTokens{CompletionTokens: 1, PromptTokens: 2, TotalTokens: 3},
	}}}
	ws := &Workspace{Name: "w", Model: model}

	conv, err := NewOrchestrator(0, 0).Run(context.Background(), ws, startConversation())
	require.NoError(t, err)
	require.Equal(t, 1, model.calls)

	last := conv.Messages[len(conv.Messages)-1]
	require.Equal(t, chat.RoleAssistant, last.Role)
	require.Equal(t, "hello", last.Content)
	require.NotNil(t, conv.Usage)
	require.Equal(t, 3, conv.Usage.TotalTokens)
}

func TestRunDispatchesToolCallsInOrder(t *testing.T) {
	tools := &stubTools{
		name: "files",
		specs: []chat.ToolSpec{
			{Name: "read_file", Description: "reads"},
			{Name: "list_dir", Description: "lists"},
		},
		outputs: map[string]string{"read_file": "contents", "list_dir": "a b c"},
	}
	model := &scriptedModel{turns: []scriptedTurn{
		{
			decisions: []chat.Decision{chat.ToolCallsDecision([]chat.ToolCall{
				{Name: "read_file", ID: "call-1"},
				{Name: "list_dir", ID: "call-2"},
			})},
			usage: chat.UsageTokens{TotalTokens: 5},
		},
		{
			decisions: []chat.Decision{chat.TextDecision("done")},
			usage:     chat.UsageTokens{TotalTokens: 2},
		},
	}}
	ws := &Workspace{Name: "w", Model: model, Tools: []ToolProvider{tools}}

	conv, err := NewOrchestrator(0, 0).Run(context.Background(), ws, startConversation())
	require.NoError(t, err)
	require.Equal(t, 2, model.calls)
	require.Equal(t, []string{"read_file", "list_dir"}, tools.called)

	// user, tool calls, two outputs in call order, final text.
	require.Len(t, conv.Messages, 5)
	require.Equal(t, chat.KindToolCalls, conv.Messages[1].Kind)
	require.Equal(t, "call-1", conv.Messages[2].CallID)
	require.Equal(t, "contents", conv.Messages[2].Output)
	require.Equal(t, "call-2", conv.Messages[3].CallID)
	require.Equal(t, "a b c", conv.Messages[3].Output)
	require.Equal(t, "done", conv.Messages[4].Content)

	// Usage sums across both turns.
	require.Equal(t, 7, conv.Usage.TotalTokens)
}

func TestRunUnknownToolFeedsErrorBack(t *testing.T) {
	tools := &stubTools{name: "files", specs: []chat.ToolSpec{{Name: "read_file"}}}
	model := &scriptedModel{turns: []scriptedTurn{
		{decisions: []chat.Decision{chat.ToolCallsDecision([]chat.ToolCall{
			{Name: "made_up_tool", ID: "call-1"},
		})}},
		{decisions: []chat.Decision{chat.TextDecision("recovered")}},
	}}
	ws := &Workspace{Name: "w", Model: model, Tools: []ToolProvider{tools}}

	conv, err := NewOrchestrator(0, 0).Run(context.Background(), ws, startConversation())
	require.NoError(t, err)
	require.Empty(t, tools.called)

	output := conv.Messages[2]
	require.Equal(t, chat.KindToolOutput, output.Kind)
	require.Equal(t, "call-1", output.CallID)
	require.Equal(t, "Function doesn't exist", output.Output)
	require.Equal(t, "recovered", conv.Messages[3].Content)
}

func TestRunToolFailureAborts(t *testing.T) {
	tools := &stubTools{
		name:    "files",
		specs:   []chat.ToolSpec{{Name: "read_file"}},
		callErr: apierr.Internal("transport broke"),
	}
	model := &scriptedModel{turns: []scriptedTurn{
		{decisions: []chat.Decision{chat.ToolCallsDecision([]chat.ToolCall{
			{Name: "read_file", ID: "call-1"},
		})}},
	}}
	ws := &Workspace{Name: "w", Model: model, Tools: []ToolProvider{tools}}

	_, err := NewOrchestrator(0, 0).Run(context.Background(), ws, startConversation())
	require.Error(t, err)
	require.Equal(t, http.StatusInternalServerError, apierr.From(err).Status)
	require.Equal(t, 1, model.calls)
}

func TestRunModelErrorPropagates(t *testing.T) {
	model := &scriptedModel{turns: []scriptedTurn{
		{err: apierr.New(http.StatusTooManyRequests, "upstream returned 429")},
	}}
	ws := &Workspace{Name: "w", Model: model}

	_, err := NewOrchestrator(0, 0).Run(context.Background(), ws, startConversation())
	require.Error(t, err)
	require.Equal(t, http.StatusTooManyRequests, apierr.From(err).Status)
}

func TestRunMaxTurnsExceeded(t *testing.T) {
	tools := &stubTools{
		name:    "files",
		specs:   []chat.ToolSpec{{Name: "read_file"}},
		outputs: map[string]string{"read_file": "contents"},
	}
	loop := scriptedTurn{decisions: []chat.Decision{chat.ToolCallsDecision([]chat.ToolCall{
		{Name: "read_file", ID: "call-1"},
	})}}
	model := &scriptedModel{turns: []scriptedTurn{loop, loop, loop, loop}}
	ws := &Workspace{Name: "w", Model: model, Tools: []ToolProvider{tools}}

	_, err := NewOrchestrator(time.Minute, 3).Run(context.Background(), ws, startConversation())
	require.Error(t, err)
	require.Contains(t, err.Error(), "3 turns")
	require.Equal(t, 3, model.calls)
}

func TestRunCallerToolsForwardedWithoutProviders(t *testing.T) {
	var seen []chat.ToolSpec
	model := &recordingModel{decisions: []chat.Decision{chat.TextDecision("ok")}, seen: &seen}
	ws := &Workspace{Name: "w", Model: model}

	conv := startConversation()
	conv.Tools = []chat.ConversationTool{{
		Type: "function",
		Function: chat.ConversationFunc{
			Name:        "client_side",
			Description: "runs on the caller",
		},
	}}

	_, err := NewOrchestrator(0, 0).Run(context.Background(), ws, conv)
	require.NoError(t, err)
	require.Len(t, seen, 1)
	require.Equal(t, "client_side", seen[0].Name)
}

func TestRunCallerToolCallsReturnedUnexecuted(t *testing.T) {
	model := &scriptedModel{turns: []scriptedTurn{{
		decisions: []chat.Decision{chat.ToolCallsDecision([]chat.ToolCall{
			{Name: "client_side", ID: "call-1", Arguments: map[string]any{"q": "go"}},
		})},
		usage: chat.UsageTokens{TotalTokens: 4},
	}}}
	ws := &Workspace{Name: "w", Model: model}

	conv := startConversation()
	conv.Tools = []chat.ConversationTool{{
		Type:     "function",
		Function: chat.ConversationFunc{Name: "client_side"},
	}}

	result, err := NewOrchestrator(0, 0).Run(context.Background(), ws, conv)
	require.NoError(t, err)
	require.Equal(t, 1, model.calls)

	// The call batch comes back for the caller to execute; no synthesized
	// output, no further model turns.
	require.Len(t, result.Messages, 2)
	last := result.Messages[1]
	require.Equal(t, chat.KindToolCalls, last.Kind)
	require.Equal(t, "call-1", last.ToolCalls[0].ID)
	require.NotNil(t, result.Usage)
	require.Equal(t, 4, result.Usage.TotalTokens)
}

func TestRunProvidersShadowCallerTools(t *testing.T) {
	tools := &stubTools{name: "files", specs: []chat.ToolSpec{{Name: "read_file"}}}
	var seen []chat.ToolSpec
	model := &recordingModel{decisions: []chat.Decision{chat.TextDecision("ok")}, seen: &seen}
	ws := &Workspace{Name: "w", Model: model, Tools: []ToolProvider{tools}}

	conv := startConversation()
	conv.Tools = []chat.ConversationTool{{
		Type:     "function",
		Function: chat.ConversationFunc{Name: "client_side"},
	}}

	_, err := NewOrchestrator(0, 0).Run(context.Background(), ws, conv)
	require.NoError(t, err)
	require.Len(t, seen, 1)
	require.Equal(t, "read_file", seen[0].Name)
}

func TestRunDuplicateToolNameLastRegistrationWins(t *testing.T) {
	first := &stubTools{
		name:    "first",
		specs:   []chat.ToolSpec{{Name: "search"}},
		outputs: map[string]string{"search": "from first"},
	}
	second := &stubTools{
		name:    "second",
		specs:   []chat.ToolSpec{{Name: "search"}},
		outputs: map[string]string{"search": "from second"},
	}
	model := &scriptedModel{turns: []scriptedTurn{
		{decisions: []chat.Decision{chat.ToolCallsDecision([]chat.ToolCall{
			{Name: "search", ID: "call-1"},
		})}},
		{decisions: []chat.Decision{chat.TextDecision("done")}},
	}}
	ws := &Workspace{Name: "w", Model: model, Tools: []ToolProvider{first, second}}

	conv, err := NewOrchestrator(0, 0).Run(context.Background(), ws, startConversation())
	require.NoError(t, err)
	require.Empty(t, first.called)
	require.Equal(t, []string{"search"}, second.called)
	require.Equal(t, "from second", conv.Messages[2].Output)
}

// recordingModel captures the catalog it was offered.
type recordingModel struct {
	decisions []chat.Decision
	seen      *[]chat.ToolSpec
}

func (m *recordingModel) Call(ctx context.Context, conv *chat.Conversation, tools []chat.ToolSpec) ([]chat.Decision, chat.UsageTokens, error) {
	*m.seen = append([]chat.ToolSpec(nil), tools...)
	return m.decisions, chat.UsageTokens{}, nil
}
