package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/llmgate/gateway/internal/apierr"
	"github.com/llmgate/gateway/internal/auth"
	"github.com/llmgate/gateway/internal/chat"
)

// OpenAI-compatible chat-completions wire format. Azure and Anthropic reuse
// this codec; only construction differs.

type openAIRequest struct {
	Model       string          `json:"model,omitempty"`
	Messages    []openAIMessage `json:"messages"`
	Temperature *float64        `json:"temperature,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
	TopP        *float64        `json:"top_p,omitempty"`
	Tools       []openAITool    `json:"tools,omitempty"`
	ToolChoice  string          `json:"tool_choice,omitempty"`
}

type openAIMessage struct {
	Role       chat.Role        `json:"role"`
	Content    string           `json:"content,omitempty"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAIToolCall struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Function openAIFuncCall `json:"function"`
}

// openAIFuncCall transports arguments as a JSON-encoded string, not an
// object. Decoding parses it back; a parse failure is a hard error.
type openAIFuncCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openAITool struct {
	Type     string         `json:"type"`
	Function openAIFunction `json:"function"`
}

type openAIFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type openAIResponse struct {
	Choices []openAIChoice   `json:"choices"`
	Usage   chat.UsageTokens `json:"usage"`
}

type openAIChoice struct {
	FinishReason string        `json:"finish_reason"`
	Message      openAIMessage `json:"message"`
}

const toolTypeFunction = "function"

// OpenAI talks to any OpenAI-compatible chat-completions endpoint.
type OpenAI struct {
	client *auth.Client
	model  string
	log    *slog.Logger
}

func NewOpenAI(baseURL string, a auth.Auth, model string) (*OpenAI, error) {
	client, err := auth.New(baseURL, a, nil, nil)
	if err != nil {
		return nil, err
	}
	return &OpenAI{client: client, model: model, log: slog.Default()}, nil
}

func (o *OpenAI) Call(ctx context.Context, conv *chat.Conversation, tools []chat.ToolSpec) ([]chat.Decision, chat.UsageTokens, error) {
	body, err := encodeOpenAIRequest(conv, tools, o.model, o.log)
	if err != nil {
		return nil, chat.UsageTokens{}, err
	}
	text, err := o.client.Call(ctx, body)
	if err != nil {
		return nil, chat.UsageTokens{}, err
	}
	return decodeOpenAIResponse(text, o.log)
}

func encodeOpenAIRequest(conv *chat.Conversation, tools []chat.ToolSpec, model string, log *slog.Logger) (*openAIRequest, error) {
	messages := make([]openAIMessage, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		switch m.Kind {
		case chat.KindText:
			messages = append(messages, openAIMessage{Role: m.Role, Content: m.Content})
		case chat.KindToolCalls:
			calls := make([]openAIToolCall, 0, len(m.ToolCalls))
			for _, call := range m.ToolCalls {
				args, err := json.Marshal(call.Arguments)
				if err != nil {
					return nil, apierr.Internal("encode tool call arguments: %s", err)
				}
				calls = append(calls, openAIToolCall{
					ID:   call.ID,
					Type: toolTypeFunction,
					Function: openAIFuncCall{
						Name:      call.Name,
						Arguments: string(args),
					},
				})
			}
			messages = append(messages, openAIMessage{Role: m.Role, ToolCalls: calls})
		case chat.KindToolOutput:
			messages = append(messages, openAIMessage{
				Role:       chat.RoleTool,
				ToolCallID: m.CallID,
				Content:    m.Output,
			})
		}
	}

	req := &openAIRequest{
		Model:       model,
		Messages:    messages,
		Temperature: conv.Temperature,
		MaxTokens:   conv.MaxTokens,
		TopP:        conv.TopP,
	}
	if len(tools) > 0 {
		req.Tools = encodeOpenAITools(tools, log)
		req.ToolChoice = "auto"
	}
	return req, nil
}

func encodeOpenAITools(tools []chat.ToolSpec, log *slog.Logger) []openAITool {
	encoded := make([]openAITool, 0, len(tools))
	for _, tool := range tools {
		if tool.Description == "" {
			log.Warn("tool has no description", "tool", tool.Name)
		}
		encoded = append(encoded, openAITool{
			Type: toolTypeFunction,
			Function: openAIFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.InputSchema,
			},
		})
	}
	return encoded
}

func decodeOpenAIResponse(text string, log *slog.Logger) ([]chat.Decision, chat.UsageTokens, error) {
	var resp openAIResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return nil, chat.UsageTokens{}, apierr.Internal("couldn't decode provider response: %s", err)
	}
	if len(resp.Choices) == 0 {
		return nil, chat.UsageTokens{}, apierr.Internal("provider response has no choices")
	}
	if len(resp.Choices) > 1 {
		log.Warn("provider returned multiple choices, using the first", "choices", len(resp.Choices))
	}
	choice := resp.Choices[0]

	switch choice.FinishReason {
	case "stop":
		if choice.Message.ToolCalls != nil {
			return nil, chat.UsageTokens{}, apierr.Internal("provider sent tool calls with finish reason %q", choice.FinishReason)
		}
		return []chat.Decision{chat.TextDecision(choice.Message.Content)}, resp.Usage, nil
	case "tool_calls":
		if len(choice.Message.ToolCalls) == 0 {
			return nil, chat.UsageTokens{}, apierr.Internal("provider sent finish reason %q without tool calls", choice.FinishReason)
		}
		calls := make([]chat.ToolCall, 0, len(choice.Message.ToolCalls))
		for _, call := range choice.Message.ToolCalls {
			args, err := decodeArguments(call.Function.Arguments)
			if err != nil {
				return nil, chat.UsageTokens{}, apierr.Internal("couldn't parse tool call arguments: %s", err)
			}
			calls = append(calls, chat.ToolCall{
				Name:      call.Function.Name,
				ID:        call.ID,
				Arguments: args,
			})
		}
		return []chat.Decision{chat.ToolCallsDecision(calls)}, resp.Usage, nil
	default:
		return nil, chat.UsageTokens{}, apierr.Internal("unsupported finish reason %q", choice.FinishReason)
	}
}

func decodeArguments(encoded string) (map[string]any, error) {
	if encoded == "" {
		return nil, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(encoded), &args); err != nil {
		return nil, fmt.Errorf("arguments %q: %w", encoded, err)
	}
	return args, nil
}
