// Package models defines tool structures for LLM function calling.
package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BTreeMap/ReviewPipe/internal/review"
)

// DocumentToolParams are the arguments of a documentation tool call. Which
// fields are required depends on the tool.
type DocumentToolParams struct {
	Description  string   `json:"description,omitempty"`   // advancement, challenge, achievement
	TrainingType string   `json:"training_type,omitempty"` // training need
	Reason       string   `json:"reason,omitempty"`        // training need
	Goal         string   `json:"goal,omitempty"`          // action plan
	Deadline     string   `json:"deadline,omitempty"`      // action plan
	NextSteps    string   `json:"next_steps,omitempty"`    // action plan
	KeyPoints    []string `json:"key_points,omitempty"`    // optional bullet points for any tool
}

// Validate ensures the fields required by tool are present.
func (p *DocumentToolParams) Validate(tool review.DocumentTool) error {
	required := map[string]string{}
	switch tool {
	case review.ToolDocumentAdvancement, review.ToolDocumentChallenge, review.ToolDocumentAchievement:
		required["description"] = p.Description
	case review.ToolDocumentTrainingNeed:
		required["training_type"] = p.TrainingType
		required["reason"] = p.Reason
	case review.ToolDocumentActionPlan:
		required["goal"] = p.Goal
		required["deadline"] = p.Deadline
		required["next_steps"] = p.NextSteps
	default:
		return fmt.Errorf("%w: %q", review.ErrUnknownTool, tool)
	}
	for _, name := range []string{"description", "training_type", "reason", "goal", "deadline", "next_steps"} {
		if v, ok := required[name]; ok && strings.TrimSpace(v) == "" {
			return fmt.Errorf("%s is required for %s", name, tool)
		}
	}
	return nil
}

// SummaryText renders the stored summary for tool.
func (p *DocumentToolParams) SummaryText(tool review.DocumentTool) string {
	switch tool {
	case review.ToolDocumentTrainingNeed:
		return fmt.Sprintf("Training Type: %s, Reason: %s", p.TrainingType, p.Reason)
	case review.ToolDocumentActionPlan:
		return fmt.Sprintf("Goal: %s, Deadline: %s, Next Steps: %s", p.Goal, p.Deadline, p.NextSteps)
	default:
		return p.Description
	}
}

// ParseDocumentToolParams decodes and validates the JSON arguments of a
// documentation tool call.
func ParseDocumentToolParams(tool review.DocumentTool, arguments string) (*DocumentToolParams, error) {
	var params DocumentToolParams
	if strings.TrimSpace(arguments) == "" {
		arguments = "{}"
	}
	if err := json.Unmarshal([]byte(arguments), &params); err != nil {
		return nil, fmt.Errorf("failed to parse %s parameters: %w", tool, err)
	}
	if err := params.Validate(tool); err != nil {
		return nil, fmt.Errorf("invalid %s parameters: %w", tool, err)
	}
	return &params, nil
}

// ToolResult represents the result of executing a tool.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`    // ID of the tool call this responds to
	Success    bool   `json:"success"`         // Whether the tool execution succeeded
	Message    string `json:"message"`         // Human-readable result message
	Error      string `json:"error,omitempty"` // Error message if success is false
}

// JSON renders the result as the content of a tool message.
func (r ToolResult) JSON() string {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":%q}`, err.Error())
	}
	return string(data)
}
