package provider

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/oklog/ulid/v2"

	"github.com/llmgate/gateway/internal/apierr"
	"github.com/llmgate/gateway/internal/auth"
	"github.com/llmgate/gateway/internal/chat"
)

// Gemini wire format. Roles are {model, user, function} and there is no
// standalone tool-output message: outputs ride as extra parts on an existing
// content entry where possible. Gemini also supplies no tool-call ids, so the
// adapter generates them.

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
	Tools    []geminiTool    `json:"tools,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

// geminiPart is shape-discriminated: exactly one field set.
type geminiPart struct {
	Text             *string             `json:"text,omitempty"`
	FunctionCall     *geminiFunctionCall `json:"functionCall,omitempty"`
	FunctionResponse *geminiFuncResponse `json:"function_response,omitempty"`
}

type geminiFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type geminiFuncResponse struct {
	Name     string            `json:"name"`
	Response geminiFuncContent `json:"response"`
}

type geminiFuncContent struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type geminiTool struct {
	FunctionDeclarations []geminiFunctionDecl `json:"function_declarations"`
}

type geminiFunctionDecl struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate `json:"candidates"`
	UsageMetadata geminiUsage       `json:"usageMetadata"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

const (
	geminiRoleModel    = "model"
	geminiRoleUser     = "user"
	geminiRoleFunction = "function"
)

// Gemini talks to Google's generateContent endpoint.
type Gemini struct {
	client *auth.Client
	log    *slog.Logger
}

func NewGemini(baseURL string, a auth.Auth) (*Gemini, error) {
	client, err := auth.New(baseURL, a, nil, nil)
	if err != nil {
		return nil, err
	}
	return &Gemini{client: client, log: slog.Default()}, nil
}

func (g *Gemini) Call(ctx context.Context, conv *chat.Conversation, tools []chat.ToolSpec) ([]chat.Decision, chat.UsageTokens, error) {
	body, err := encodeGeminiRequest(conv, tools, g.log)
	if err != nil {
		return nil, chat.UsageTokens{}, err
	}
	text, err := g.client.Call(ctx, body)
	if err != nil {
		return nil, chat.UsageTokens{}, err
	}
	return decodeGeminiResponse(text, g.log)
}

// encodeGeminiRequest builds the contents list with the look-back merge: a
// tool output directly following the entry produced by a ToolCalls message
// (or by an earlier output) becomes an extra part on that entry; any other
// tool output opens a new function-role entry.
func encodeGeminiRequest(conv *chat.Conversation, tools []chat.ToolSpec, log *slog.Logger) (*geminiRequest, error) {
	contents := make([]geminiContent, 0, len(conv.Messages))
	lastMergeable := -1

	for _, m := range conv.Messages {
		switch m.Kind {
		case chat.KindText:
			role, err := geminiTextRole(m.Role)
			if err != nil {
				return nil, err
			}
			text := m.Content
			contents = append(contents, geminiContent{
				Role:  role,
				Parts: []geminiPart{{Text: &text}},
			})
			lastMergeable = -1

		case chat.KindToolCalls:
			if m.Role != chat.RoleAssistant {
				return nil, apierr.Internal("role %q not supported for a tool call message", m.Role)
			}
			parts := make([]geminiPart, 0, len(m.ToolCalls))
			for _, call := range m.ToolCalls {
				parts = append(parts, geminiPart{
					FunctionCall: &geminiFunctionCall{Name: call.Name, Args: call.Arguments},
				})
			}
			contents = append(contents, geminiContent{Role: geminiRoleModel, Parts: parts})
			lastMergeable = len(contents) - 1

		case chat.KindToolOutput:
			part := geminiPart{
				FunctionResponse: &geminiFuncResponse{
					Name: m.CallID,
					Response: geminiFuncContent{
						Name:    m.CallID,
						Content: m.Output,
					},
				},
			}
			if lastMergeable >= 0 {
				contents[lastMergeable].Parts = append(contents[lastMergeable].Parts, part)
			} else {
				contents = append(contents, geminiContent{
					Role:  geminiRoleFunction,
					Parts: []geminiPart{part},
				})
				lastMergeable = len(contents) - 1
			}
		}
	}

	req := &geminiRequest{Contents: contents}
	if len(tools) > 0 {
		declarations := make([]geminiFunctionDecl, 0, len(tools))
		for _, tool := range tools {
			if tool.Description == "" {
				log.Warn("tool has no description", "tool", tool.Name)
			}
			declarations = append(declarations, geminiFunctionDecl{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  scrubSchema(tool.InputSchema),
			})
		}
		req.Tools = []geminiTool{{FunctionDeclarations: declarations}}
	}
	return req, nil
}

func geminiTextRole(role chat.Role) (string, error) {
	switch role {
	case chat.RoleAssistant:
		return geminiRoleModel, nil
	case chat.RoleUser, chat.RoleSystem:
		return geminiRoleUser, nil
	default:
		return "", apierr.Internal("role %q not supported for a gemini text message", role)
	}
}

func decodeGeminiResponse(text string, log *slog.Logger) ([]chat.Decision, chat.UsageTokens, error) {
	var resp geminiResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return nil, chat.UsageTokens{}, apierr.Internal("couldn't decode provider response: %s", err)
	}
	if len(resp.Candidates) == 0 {
		return nil, chat.UsageTokens{}, apierr.Internal("provider response has no candidates")
	}
	if len(resp.Candidates) > 1 {
		log.Warn("provider returned multiple candidates, using the first", "candidates", len(resp.Candidates))
	}
	candidate := resp.Candidates[0]
	if candidate.FinishReason != "STOP" {
		return nil, chat.UsageTokens{}, apierr.Internal("unsupported finish reason %q", candidate.FinishReason)
	}

	// Consecutive function-call parts collapse into one ToolCalls decision so
	// the batch dispatches together, in order.
	decisions := make([]chat.Decision, 0, len(candidate.Content.Parts))
	lastCalls := -1
	for _, part := range candidate.Content.Parts {
		switch {
		case part.Text != nil:
			decisions = append(decisions, chat.TextDecision(*part.Text))
			lastCalls = -1
		case part.FunctionCall != nil:
			call := chat.ToolCall{
				Name:      part.FunctionCall.Name,
				ID:        ulid.Make().String(),
				Arguments: part.FunctionCall.Args,
			}
			if lastCalls >= 0 {
				decisions[lastCalls].Calls = append(decisions[lastCalls].Calls, call)
			} else {
				decisions = append(decisions, chat.ToolCallsDecision([]chat.ToolCall{call}))
				lastCalls = len(decisions) - 1
			}
		default:
			return nil, chat.UsageTokens{}, apierr.Internal("unsupported response part shape")
		}
	}

	usage := chat.UsageTokens{
		CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
		PromptTokens:     resp.UsageMetadata.PromptTokenCount,
		TotalTokens:      resp.UsageMetadata.TotalTokenCount,
	}
	return decisions, usage, nil
}

// scrubSchema deep-copies a JSON schema, dropping the $schema and
// additionalProperties keys at every object level; Gemini rejects both.
func scrubSchema(schema map[string]any) map[string]any {
	if schema == nil {
		return nil
	}
	scrubbed := make(map[string]any, len(schema))
	for key, value := range schema {
		if key == "$schema" || key == "additionalProperties" {
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			scrubbed[key] = scrubSchema(nested)
			continue
		}
		scrubbed[key] = value
	}
	return scrubbed
}
