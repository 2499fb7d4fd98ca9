package chat

// ToolSpec is the provider-agnostic description of a callable tool. Tool
// providers produce it and every model adapter translates it into its own
// wire shape.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// ConversationTool is the OpenAI-shaped tool entry callers may include in a
// request body. It is round-tripped verbatim; when the workspace has tool
// providers their catalog supersedes it.
type ConversationTool struct {
	Type     string           `json:"type"`
	Function ConversationFunc `json:"function"`
}

type ConversationFunc struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Conversation is the request and response body of a workspace endpoint: the
// full, ordered message history plus generation parameters. It lives for a
// single request; the orchestration loop appends to it and returns it.
type Conversation struct {
	Messages    []Message          `json:"messages"`
	Temperature *float64           `json:"temperature,omitempty"`
	MaxTokens   *int               `json:"max_tokens,omitempty"`
	TopP        *float64           `json:"top_p,omitempty"`
	Tools       []ConversationTool `json:"tools,omitempty"`
	Usage       *UsageTokens       `json:"usage,omitempty"`
}

// Append adds a message to the end of the history.
func (c *Conversation) Append(m Message) {
	c.Messages = append(c.Messages, m)
}

// CallerSpecs converts caller-supplied tools into ToolSpecs.
func (c *Conversation) CallerSpecs() []ToolSpec {
	if len(c.Tools) == 0 {
		return nil
	}
	specs := make([]ToolSpec, 0, len(c.Tools))
	for _, t := range c.Tools {
		specs = append(specs, ToolSpec{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			InputSchema: t.Function.Parameters,
		})
	}
	return specs
}
