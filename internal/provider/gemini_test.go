package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/llmgate/gateway/internal/auth"
	"github.com/llmgate/gateway/internal/chat"
)

func TestGeminiRoleMapping(t *testing.T) {
	conv := &chat.Conversation{
		Messages: []chat.Message{
			chat.NewText(chat.RoleSystem, "be brief"),
			chat.NewText(chat.RoleUser, "hi"),
			chat.NewText(chat.RoleAssistant, "hello"),
		},
	}
	req, err := encodeGeminiRequest(conv, nil, testLogger())
	require.NoError(t, err)
	require.Len(t, req.Contents, 3)
	require.Equal(t, "user", req.Contents[0].Role)
	require.Equal(t, "user", req.Contents[1].Role)
	require.Equal(t, "model", req.Contents[2].Role)
}

func TestGeminiToolRoleTextRejected(t *testing.T) {
	conv := &chat.Conversation{
		Messages: []chat.Message{chat.NewText(chat.RoleTool, "out of place")},
	}
	_, err := encodeGeminiRequest(conv, nil, testLogger())
	require.Error(t, err)
}

func TestGeminiToolOutputMergesIntoPriorCalls(t *testing.T) {
	conv := &chat.Conversation{
		Messages: []chat.Message{
			chat.NewText(chat.RoleUser, "hi"),
			chat.NewToolCalls([]chat.ToolCall{
				{Name: "lookup", ID: "call-1", Arguments: map[string]any{"q": "go"}},
				{Name: "fetch", ID: "call-2"},
			}),
			chat.NewToolOutput("call-1", "first"),
			chat.NewToolOutput("call-2", "second"),
		},
	}
	req, err := encodeGeminiRequest(conv, nil, testLogger())
	require.NoError(t, err)
	require.Len(t, req.Contents, 2)

	merged := req.Contents[1]
	require.Equal(t, "model", merged.Role)
	require.Len(t, merged.Parts, 4)
	require.Equal(t, "lookup", merged.Parts[0].FunctionCall.Name)
	require.Equal(t, "fetch", merged.Parts[1].FunctionCall.Name)
	require.Equal(t, "call-1", merged.Parts[2].FunctionResponse.Name)
	require.Equal(t, "first", merged.Parts[2].FunctionResponse.Response.Content)
	require.Equal(t, "call-2", merged.Parts[3].FunctionResponse.Name)
}

func TestGeminiOrphanToolOutputOpensFunctionEntry(t *testing.T) {
	conv := &chat.Conversation{
		Messages: []chat.Message{
			chat.NewText(chat.RoleUser, "hi"),
			chat.NewToolOutput("call-1", "first"),
			chat.NewToolOutput("call-2", "second"),
		},
	}
	req, err := encodeGeminiRequest(conv, nil, testLogger())
	require.NoError(t, err)
	require.Len(t, req.Contents, 2)

	entry := req.Contents[1]
	require.Equal(t, "function", entry.Role)
	require.Len(t, entry.Parts, 2)
	require.Equal(t, "call-1", entry.Parts[0].FunctionResponse.Name)
	require.Equal(t, "call-2", entry.Parts[1].FunctionResponse.Name)
}

func TestGeminiInterveningTextBreaksMerge(t *testing.T) {
	conv := &chat.Conversation{
		Messages: []chat.Message{
			chat.NewToolCalls([]chat.ToolCall{{Name: "lookup", ID: "call-1"}}),
			chat.NewText(chat.RoleAssistant, "working on it"),
			chat.NewToolOutput("call-1", "first"),
		},
	}
	req, err := encodeGeminiRequest(conv, nil, testLogger())
	require.NoError(t, err)
	require.Len(t, req.Contents, 3)
	require.Equal(t, "function", req.Contents[2].Role)
}

func TestGeminiSchemaScrub(t *testing.T) {
	tools := []chat.ToolSpec{{
		Name:        "lookup",
		Description: "searches things",
		InputSchema: map[string]any{
			"$schema":              "https://json-schema.org/draft/2020-12/schema",
			"type":                 "object",
			"additionalProperties": false,
			"properties": map[string]any{
				"q": map[string]any{
					"type":                 "string",
					"additionalProperties": false,
				},
			},
		},
	}}
	req, err := encodeGeminiRequest(userConversation("hi"), tools, testLogger())
	require.NoError(t, err)

	params := req.Tools[0].FunctionDeclarations[0].Parameters
	require.NotContains(t, params, "$schema")
	require.NotContains(t, params, "additionalProperties")
	nested := params["properties"].(map[string]any)["q"].(map[string]any)
	require.NotContains(t, nested, "additionalProperties")
	require.Equal(t, "string", nested["type"])

	// The caller's schema stays untouched.
	require.Contains(t, tools[0].InputSchema, "$schema")
}

func TestGeminiDecodeInterleavedParts(t *testing.T) {
	decisions, usage, err := decodeGeminiResponse(`{
		"candidates": [{"finishReason": "STOP", "content": {"role": "model", "parts": [
			{"text": "let me check"},
			{"functionCall": {"name": "lookup", "args": {"q": "go"}}},
			{"functionCall": {"name": "fetch"}},
			{"text": "and also"},
			{"functionCall": {"name": "lookup", "args": {"q": "chi"}}}
		]}}],
		"usageMetadata": {"promptTokenCount": 10, "candidatesTokenCount": 4, "totalTokenCount": 14}
	}`, testLogger())
	require.NoError(t, err)
	require.Len(t, decisions, 4)

	require.Equal(t, chat.DecisionText, decisions[0].Kind)
	require.Equal(t, "let me check", decisions[0].Text)

	// Consecutive calls collapse into one batch; a text part ends the batch.
	require.Equal(t, chat.DecisionToolCalls, decisions[1].Kind)
	require.Len(t, decisions[1].Calls, 2)
	require.Equal(t, "lookup", decisions[1].Calls[0].Name)
	require.Equal(t, map[string]any{"q": "go"}, decisions[1].Calls[0].Arguments)
	require.Equal(t, "fetch", decisions[1].Calls[1].Name)

	require.Equal(t, chat.DecisionText, decisions[2].Kind)
	require.Equal(t, chat.DecisionToolCalls, decisions[3].Kind)
	require.Len(t, decisions[3].Calls, 1)

	require.Equal(t, chat.UsageTokens{CompletionTokens: 4, PromptTokens: 10, TotalTokens: 14}, usage)
}

func TestGeminiGeneratesCallIDs(t *testing.T) {
	decisions, _, err := decodeGeminiResponse(`{
		"candidates": [{"finishReason": "STOP", "content": {"role": "model", "parts": [
			{"functionCall": {"name": "lookup"}},
			{"functionCall": {"name": "fetch"}}
		]}}],
		"usageMetadata": {}
	}`, testLogger())
	require.NoError(t, err)
	require.Len(t, decisions[0].Calls, 2)
	first, second := decisions[0].Calls[0].ID, decisions[0].Calls[1].ID
	require.Len(t, first, 26)
	require.Len(t, second, 26)
	require.NotEqual(t, first, second)
}

func TestGeminiNonStopFinishReasonFailsHard(t *testing.T) {
	_, _, err := decodeGeminiResponse(`{
		"candidates": [{"finishReason": "MAX_TOKENS", "content": {"role": "model", "parts": [{"text": "trunc"}]}}],
		"usageMetadata": {}
	}`, testLogger())
	require.Error(t, err)
	require.Contains(t, err.Error(), "MAX_TOKENS")
}

func TestGeminiEndToEnd(t *testing.T) {
	upstream := newFakeUpstream(t, `{
		"candidates": [{"finishReason": "STOP", "content": {"role": "model", "parts": [{"text": "hello"}]}}],
		"usageMetadata": {"promptTokenCount": 3, "candidatesTokenCount": 1, "totalTokenCount": 4}
	}`)

	adapter, err := NewGemini(upstream.URL, auth.APIKey{In: auth.InParams, Name: "key", Value: "secret"})
	require.NoError(t, err)

	decisions, usage, err := adapter.Call(context.Background(), userConversation("hi"), nil)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	require.Equal(t, "hello", decisions[0].Text)
	require.Equal(t, 4, usage.TotalTokens)

	body := upstream.decodeRequest(t)
	require.Contains(t, body, "contents")
	require.NotContains(t, body, "model")
}
