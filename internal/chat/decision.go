package chat

// DecisionKind discriminates what a model decided to do in one step.
type DecisionKind int

const (
	DecisionText DecisionKind = iota
	DecisionToolCalls
)

// Decision is one element of a model response. A single provider turn may
// yield several decisions in order, interleaving text and tool-call batches.
type Decision struct {
	Kind  DecisionKind
	Text  string
	Calls []ToolCall
}

// TextDecision wraps plain assistant text.
func TextDecision(text string) Decision {
	return Decision{Kind: DecisionText, Text: text}
}

// ToolCallsDecision wraps an ordered batch of tool calls.
func ToolCallsDecision(calls []ToolCall) Decision {
	return Decision{Kind: DecisionToolCalls, Calls: calls}
}

// UsageTokens are the canonical token counters, accumulated additively across
// the turns of one request.
type UsageTokens struct {
	CompletionTokens int `json:"completion_tokens"`
	PromptTokens     int `json:"prompt_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates another turn's counters.
func (u *UsageTokens) Add(other UsageTokens) {
	u.CompletionTokens += other.CompletionTokens
	u.PromptTokens += other.PromptTokens
	u.TotalTokens += other.TotalTokens
}
