package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/llmgate/gateway/internal/auth"
	"github.com/llmgate/gateway/internal/chat"
)

// Azure talks to an Azure-hosted OpenAI deployment. The deployment is part
// of the URL, so the request body carries no model id; the api-version query
// parameter is baked into the resolved URL.
type Azure struct {
	client *auth.Client
	log    *slog.Logger
}

// NewAzure accepts only header-placed API keys; Azure token auth goes
// through its own endpoints and is not supported here.
func NewAzure(baseURL string, a auth.Auth, apiVersion string) (*Azure, error) {
	key, ok := a.(auth.APIKey)
	if !ok || key.In != auth.InHeader {
		return nil, fmt.Errorf("azure supports only header api-key auth, got %T", a)
	}
	client, err := auth.New(baseURL, a, nil, map[string]string{"api-version": apiVersion})
	if err != nil {
		return nil, err
	}
	return &Azure{client: client, log: slog.Default()}, nil
}

func (az *Azure) Call(ctx context.Context, conv *chat.Conversation, tools []chat.ToolSpec) ([]chat.Decision, chat.UsageTokens, error) {
	body, err := encodeOpenAIRequest(conv, tools, "", az.log)
	if err != nil {
		return nil, chat.UsageTokens{}, err
	}
	text, err := az.client.Call(ctx, body)
	if err != nil {
		return nil, chat.UsageTokens{}, err
	}
	return decodeOpenAIResponse(text, az.log)
}
