package review

import (
	"errors"
	"fmt"
)

// intentAdvanceScore is the completeness a stage needs before an explicit
// mention of the next stage's topic is allowed to advance the interview.
const intentAdvanceScore = 0.5

// ErrUnknownTool is returned for tool names outside the documentation set.
var ErrUnknownTool = errors.New("unknown documentation tool")

// DocumentTool is the closed set of documentation actions the LLM may take.
type DocumentTool string

// Documentation tools, one per non-terminal stage.
const (
	ToolDocumentAdvancement  DocumentTool = "document_advancement"
	ToolDocumentChallenge    DocumentTool = "document_challenge"
	ToolDocumentAchievement  DocumentTool = "document_achievement"
	ToolDocumentTrainingNeed DocumentTool = "document_training_need"
	ToolDocumentActionPlan   DocumentTool = "document_action_plan"
)

type toolStages struct {
	source StageID
	target StageID
}

var documentToolStages = map[DocumentTool]toolStages{
	ToolDocumentAdvancement:  {StageAdvancements, StageChallenges},
	ToolDocumentChallenge:    {StageChallenges, StageAchievements},
	ToolDocumentAchievement:  {StageAchievements, StageTrainingNeeds},
	ToolDocumentTrainingNeed: {StageTrainingNeeds, StageActionPlan},
	ToolDocumentActionPlan:   {StageActionPlan, StageSummary},
}

// DocumentTools lists every documentation tool in stage order.
func DocumentTools() []DocumentTool {
	return []DocumentTool{
		ToolDocumentAdvancement,
		ToolDocumentChallenge,
		ToolDocumentAchievement,
		ToolDocumentTrainingNeed,
		ToolDocumentActionPlan,
	}
}

// ParseDocumentTool validates a tool name coming from the LLM.
func ParseDocumentTool(name string) (DocumentTool, error) {
	t := DocumentTool(name)
	if _, ok := documentToolStages[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	return t, nil
}

// SourceStage is the stage whose content the tool documents.
func (t DocumentTool) SourceStage() StageID {
	return documentToolStages[t].source
}

// TargetStage is the stage the interview moves to once the tool has fired.
func (t DocumentTool) TargetStage() StageID {
	return documentToolStages[t].target
}

// ToolCall is a structured action requested by the LLM.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// LLMResponse is the part of a model reply the engine inspects.
type LLMResponse struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// FirstToolCall returns the first tool call, if any.
func (r LLMResponse) FirstToolCall() (ToolCall, bool) {
	if len(r.ToolCalls) == 0 || r.ToolCalls[0].Name == "" {
		return ToolCall{}, false
	}
	return r.ToolCalls[0], true
}

// DecisionReason records which rule produced a Decision.
type DecisionReason string

// Decision reasons.
const (
	ReasonNone   DecisionReason = "none"
	ReasonTool   DecisionReason = "tool"
	ReasonIntent DecisionReason = "intent"
	ReasonForced DecisionReason = "forced"
)

// Decision is the authoritative next-stage resolution for a turn.
type Decision struct {
	Stage  StageID        `json:"stage"`
	Reason DecisionReason `json:"reason"`
	// ToolErr is set when the LLM called a tool that is not a documentation
	// tool. Resolution then falls through to the text-based rules.
	ToolErr error `json:"-"`
}

// ShouldTransition decides from the user's message and the stage metrics
// whether the conversation should move to the next stage before the LLM is
// asked to respond.
func ShouldTransition(state ConversationState, message string, cfg *Config) (bool, StageID) {
	current := state.CurrentStage
	next, ok := cfg.NextStage(current)
	if !ok {
		return false, current
	}

	metrics := Evaluate(state, cfg)

	if message != "" {
		switch DetectIntent(message, current, cfg) {
		case IntentContinue:
			if metrics.ReadyForNext {
				return true, next
			}
		case next:
			if metrics.CompletenessScore >= intentAdvanceScore && metrics.InteractionCount >= 1 {
				return true, next
			}
		}
	}

	if metrics.ReadyForNext {
		return true, next
	}
	return false, current
}

// DetermineNextStage reconciles the LLM's action with the text and score
// evidence after the LLM has responded.
func DetermineNextStage(resp LLMResponse, current StageID, metrics CompletionMetrics, message string, cfg *Config) Decision {
	next, ok := cfg.NextStage(current)
	if !ok {
		return Decision{Stage: current, Reason: ReasonNone}
	}

	var toolErr error
	if call, has := resp.FirstToolCall(); has {
		tool, err := ParseDocumentTool(call.Name)
		switch {
		case err != nil:
			toolErr = err
		case metrics.ReadyForNext && tool.TargetStage() == next:
			return Decision{Stage: next, Reason: ReasonTool}
		}
	}

	if message != "" && DetectIntent(message, current, cfg) == next && metrics.CompletenessScore >= intentAdvanceScore {
		return Decision{Stage: next, Reason: ReasonIntent, ToolErr: toolErr}
	}

	sd := cfg.Stage(current)
	if metrics.InteractionCount >= sd.ForceTransitionInteractions &&
		metrics.CompletenessScore >= cfg.Transition.EmergencyCompletenessScore {
		return Decision{Stage: next, Reason: ReasonForced, ToolErr: toolErr}
	}

	return Decision{Stage: current, Reason: ReasonNone, ToolErr: toolErr}
}
