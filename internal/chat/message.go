package chat

import (
	"encoding/json"
	"fmt"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// MessageKind discriminates the three message variants.
type MessageKind int

const (
	KindText MessageKind = iota
	KindToolCalls
	KindToolOutput
)

// toolOutputType is the fixed discriminator emitted on tool-output messages.
const toolOutputType = "function_call_output"

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	Name      string         `json:"name"`
	ID        string         `json:"id"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Message is one turn of a conversation. It is a tagged variant: exactly one
// of the three shapes below, identified by Kind.
//
//   - KindText:       Role + Content
//   - KindToolCalls:  Role + ToolCalls
//   - KindToolOutput: CallID + Output
//
// The wire encoding has no explicit tag; variants are discriminated by field
// presence, in a fixed order (tool_calls, then call_id, then role/content).
type Message struct {
	Kind      MessageKind
	Role      Role
	Content   string
	ToolCalls []ToolCall
	CallID    string
	Output    string
}

// NewText builds a plain text message.
func NewText(role Role, content string) Message {
	return Message{Kind: KindText, Role: role, Content: content}
}

// NewToolCalls builds an assistant message carrying a batch of tool calls.
func NewToolCalls(calls []ToolCall) Message {
	return Message{Kind: KindToolCalls, Role: RoleAssistant, ToolCalls: calls}
}

// NewToolOutput builds a tool-output message correlated to a call id.
func NewToolOutput(callID, output string) Message {
	return Message{Kind: KindToolOutput, CallID: callID, Output: output}
}

type textWire struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type toolCallsWire struct {
	Role      Role       `json:"role"`
	ToolCalls []ToolCall `json:"tool_calls"`
}

type toolOutputWire struct {
	Type   string `json:"type"`
	CallID string `json:"call_id"`
	Output string `json:"output"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	switch m.Kind {
	case KindText:
		return json.Marshal(textWire{Role: m.Role, Content: m.Content})
	case KindToolCalls:
		return json.Marshal(toolCallsWire{Role: m.Role, ToolCalls: m.ToolCalls})
	case KindToolOutput:
		return json.Marshal(toolOutputWire{Type: toolOutputType, CallID: m.CallID, Output: m.Output})
	default:
		return nil, fmt.Errorf("unknown message kind %d", m.Kind)
	}
}

// UnmarshalJSON discriminates by field presence. The probe order is fixed:
// tool_calls first, then call_id, then role/content. The variants can
// structurally overlap, so the order must not change.
func (m *Message) UnmarshalJSON(data []byte) error {
	var probe struct {
		Role      *Role           `json:"role"`
		Content   *string         `json:"content"`
		ToolCalls []ToolCall      `json:"tool_calls"`
		CallID    *string         `json:"call_id"`
		Output    *string         `json:"output"`
		Type      json.RawMessage `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	switch {
	case probe.ToolCalls != nil:
		role := RoleAssistant
		if probe.Role != nil {
			role = *probe.Role
		}
		*m = Message{Kind: KindToolCalls, Role: role, ToolCalls: probe.ToolCalls}
	case probe.CallID != nil:
		var output string
		if probe.Output != nil {
			output = *probe.Output
		}
		*m = Message{Kind: KindToolOutput, CallID: *probe.CallID, Output: output}
	case probe.Role != nil && probe.Content != nil:
		*m = Message{Kind: KindText, Role: *probe.Role, Content: *probe.Content}
	default:
		return fmt.Errorf("message matches no known shape: %s", string(data))
	}
	return nil
}
