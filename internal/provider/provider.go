// Package provider translates the canonical conversation model to and from
// each upstream vendor's wire protocol.
package provider

import (
	"context"

	"github.com/llmgate/gateway/internal/chat"
)

// Adapter is one upstream model endpoint. Call sends the conversation and
// tool catalog, translated to the provider's wire format, and returns the
// provider's decisions plus its token usage for the turn.
//
// Malformed or unsupported response shapes fail hard; they are never
// silently coerced.
type Adapter interface {
	Call(ctx context.Context, conv *chat.Conversation, tools []chat.ToolSpec) ([]chat.Decision, chat.UsageTokens, error)
}
