package provider

import (
	"context"
	"log/slog"

	"github.com/llmgate/gateway/internal/auth"
	"github.com/llmgate/gateway/internal/chat"
)

// Anthropic talks to Anthropic's OpenAI-compatible surface: the baseline
// chat-completions shape plus an explicit model id and a version header.
type Anthropic struct {
	client *auth.Client
	model  string
	log    *slog.Logger
}

func NewAnthropic(baseURL string, a auth.Auth, model, version string) (*Anthropic, error) {
	client, err := auth.New(baseURL, a, map[string]string{"anthropic-version": version}, nil)
	if err != nil {
		return nil, err
	}
	return &Anthropic{client: client, model: model, log: slog.Default()}, nil
}

func (an *Anthropic) Call(ctx context.Context, conv *chat.Conversation, tools []chat.ToolSpec) ([]chat.Decision, chat.UsageTokens, error) {
	body, err := encodeOpenAIRequest(conv, tools, an.model, an.log)
	if err != nil {
		return nil, chat.UsageTokens{}, err
	}
	text, err := an.client.Call(ctx, body)
	if err != nil {
		return nil, chat.UsageTokens{}, err
	}
	return decodeOpenAIResponse(text, an.log)
}
