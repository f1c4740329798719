package genai

import "encoding/json"

// ToolCallResponse is a model reply that may request tool invocations.
type ToolCallResponse struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall represents an LLM tool function call.
type ToolCall struct {
	ID       string       `json:"id"`       // Tool call ID from OpenAI
	Type     string       `json:"type"`     // Always "function" for OpenAI
	Function FunctionCall `json:"function"` // Function details
}

// FunctionCall represents the function details within a tool call.
type FunctionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// HasToolCalls reports whether the reply requested any tool.
func (r *ToolCallResponse) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}
