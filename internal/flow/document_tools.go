package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/ReviewPipe/internal/models"
	"github.com/BTreeMap/ReviewPipe/internal/review"
	"github.com/BTreeMap/ReviewPipe/internal/store"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
)

// StageSnapshot is the engine's view of the stage a tool call documents.
type StageSnapshot struct {
	CompletionScore  float64
	InteractionCount int
}

// DocumentTools exposes the documentation tools to the LLM and records
// their results as stage summaries.
type DocumentTools struct {
	records store.Store
	cfg     *review.Config
}

// NewDocumentTools creates the tool set. records may be nil, in which case
// every call reports that nothing could be persisted.
func NewDocumentTools(records store.Store, cfg *review.Config) *DocumentTools {
	slog.Debug("DocumentTools.NewDocumentTools: creating document tools", "hasStore", records != nil)
	return &DocumentTools{records: records, cfg: cfg}
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

func keyPointsProp() map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"items":       map[string]interface{}{"type": "string"},
		"description": "Optional short bullet points worth keeping in the review record",
	}
}

func toolDefinition(name review.DocumentTool, description string, props map[string]interface{}, required ...string) openai.ChatCompletionToolParam {
	props["key_points"] = keyPointsProp()
	return openai.ChatCompletionToolParam{
		Type: "function",
		Function: shared.FunctionDefinitionParam{
			Name:        string(name),
			Description: openai.String(description),
			Parameters: shared.FunctionParameters{
				"type":       "object",
				"properties": props,
				"required":   required,
			},
		},
	}
}

// Definitions returns the OpenAI tool definitions for every documentation tool.
func (dt *DocumentTools) Definitions() []openai.ChatCompletionToolParam {
	return []openai.ChatCompletionToolParam{
		toolDefinition(review.ToolDocumentAdvancement,
			"Documents a significant professional advancement or milestone. Call this once the employee has described their progress since the last review in enough detail.",
			map[string]interface{}{"description": stringProp("A detailed description of the advancement.")},
			"description"),
		toolDefinition(review.ToolDocumentChallenge,
			"Documents a challenge or obstacle the employee has faced and how it was handled.",
			map[string]interface{}{"description": stringProp("A detailed description of the challenge.")},
			"description"),
		toolDefinition(review.ToolDocumentAchievement,
			"Documents a key achievement or success, ideally with measurable results.",
			map[string]interface{}{"description": stringProp("A detailed description of the achievement.")},
			"description"),
		toolDefinition(review.ToolDocumentTrainingNeed,
			"Documents a specific training or professional development need.",
			map[string]interface{}{
				"training_type": stringProp("The type of training needed."),
				"reason":        stringProp("The reason for the training need."),
			},
			"training_type", "reason"),
		toolDefinition(review.ToolDocumentActionPlan,
			"Documents a concrete, time-bound action plan for the employee.",
			map[string]interface{}{
				"goal":       stringProp("The goal of the action plan."),
				"deadline":   stringProp("The deadline for the goal."),
				"next_steps": stringProp("The next steps to achieve the goal."),
			},
			"goal", "deadline", "next_steps"),
	}
}

// successMessages are returned to the LLM after a tool call is recorded.
var successMessages = map[review.DocumentTool]string{
	review.ToolDocumentAdvancement:  "Advancement successfully documented.",
	review.ToolDocumentChallenge:    "Challenge successfully documented.",
	review.ToolDocumentAchievement:  "Achievement successfully documented.",
	review.ToolDocumentTrainingNeed: "Training need documented.",
	review.ToolDocumentActionPlan:   "Action plan documented.",
}

// Execute validates a documentation tool call and upserts the summary of the
// stage it documents for interviewID. Failures are reported in the result so
// the LLM can tell the employee; Execute itself never fails the turn.
func (dt *DocumentTools) Execute(ctx context.Context, interviewID int64, call review.ToolCall, snap StageSnapshot) models.ToolResult {
	result := models.ToolResult{ToolCallID: call.ID}

	tool, err := review.ParseDocumentTool(call.Name)
	if err != nil {
		slog.Warn("DocumentTools.Execute: unknown tool", "toolName", call.Name, "toolCallID", call.ID)
		result.Error = err.Error()
		result.Message = fmt.Sprintf("Unknown tool %q.", call.Name)
		return result
	}

	params, err := models.ParseDocumentToolParams(tool, call.Arguments)
	if err != nil {
		slog.Warn("DocumentTools.Execute: invalid arguments", "toolName", call.Name, "error", err,
			"arguments", formatToolArgumentsForLog(call.Arguments))
		result.Error = err.Error()
		result.Message = "The documentation request was incomplete: " + err.Error()
		return result
	}

	if interviewID == 0 || dt.records == nil {
		slog.Debug("DocumentTools.Execute: no interview linked, not persisting", "toolName", call.Name)
		result.Error = models.ErrInvalidInterviewRef.Error()
		result.Message = "Noted, but this session is not linked to an interview record."
		return result
	}

	stage := tool.SourceStage()
	summary := models.StageSummary{
		InterviewID:      interviewID,
		StageName:        stage,
		StageOrder:       dt.cfg.StageIndex(stage),
		SummaryText:      params.SummaryText(tool),
		KeyPoints:        params.KeyPoints,
		CompletionScore:  snap.CompletionScore,
		InteractionCount: snap.InteractionCount,
		StartedAt:        time.Now().UTC(),
	}
	if _, err := dt.records.UpsertStageSummary(ctx, summary); err != nil {
		slog.Error("DocumentTools.Execute: failed to save stage summary", "error", err, "interviewID", interviewID, "stage", stage)
		result.Error = err.Error()
		if errors.Is(err, store.ErrInterviewNotFound) {
			result.Message = "The linked interview record no longer exists."
		} else {
			result.Message = "Failed to document " + string(stage) + "."
		}
		return result
	}

	slog.Info("DocumentTools.Execute: stage documented", "interviewID", interviewID, "stage", stage, "toolCallID", call.ID)
	result.Success = true
	result.Message = successMessages[tool]
	return result
}
