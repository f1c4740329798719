package review

import (
	"errors"
	"testing"
)

const partialAdvancements = "I learned a new skill on a project, took on more responsibility and showed growth, for example I led the migration."

const challengeTalk = "The hardest challenge was a difficult obstacle and one problem I had to overcome"

func TestShouldTransition_TerminalStage(t *testing.T) {
	cfg := DefaultConfig()
	state := stateWith(StageSummary, 10, "anything at all")

	ok, stage := ShouldTransition(state, "let's move on", cfg)
	if ok || stage != StageSummary {
		t.Errorf("expected no transition from terminal stage, got %v %s", ok, stage)
	}
}

func TestShouldTransition_ContinueRequiresReadiness(t *testing.T) {
	cfg := DefaultConfig()
	state := stateWith(StageAdvancements, 1,
		"I led a project that improved conversion by 15%, mentoring two juniors.")

	ok, stage := ShouldTransition(state, "ok, let's move on", cfg)
	if ok || stage != StageAdvancements {
		t.Errorf("expected to stay in advancements, got %v %s", ok, stage)
	}
}

func TestShouldTransition_IntentTowardsNextStage(t *testing.T) {
	cfg := DefaultConfig()
	state := stateWith(StageAdvancements, 1, partialAdvancements)

	m := Evaluate(state, cfg)
	if m.ReadyForNext {
		t.Fatal("precondition: stage should not be ready on its own")
	}
	if m.CompletenessScore < 0.5 {
		t.Fatalf("precondition: expected score >= 0.5, got %v", m.CompletenessScore)
	}

	ok, stage := ShouldTransition(state, challengeTalk, cfg)
	if !ok || stage != StageChallenges {
		t.Errorf("expected intent to advance to challenges, got %v %s", ok, stage)
	}

	ok, stage = ShouldTransition(state, "thanks for asking", cfg)
	if ok || stage != StageAdvancements {
		t.Errorf("expected no transition without intent, got %v %s", ok, stage)
	}
}

func TestShouldTransition_ReadyWithoutMessage(t *testing.T) {
	cfg := boundaryConfig()
	state := stateWith(StageAdvancements, 2, wordsText(100))

	ok, stage := ShouldTransition(state, "", cfg)
	if !ok || stage != StageChallenges {
		t.Errorf("expected ready stage to transition, got %v %s", ok, stage)
	}
}

func TestDetermineNextStage(t *testing.T) {
	cfg := DefaultConfig()
	toolResp := func(name string) LLMResponse {
		return LLMResponse{ToolCalls: []ToolCall{{ID: "call_1", Name: name, Arguments: "{}"}}}
	}

	tests := []struct {
		name       string
		resp       LLMResponse
		current    StageID
		metrics    CompletionMetrics
		message    string
		wantStage  StageID
		wantReason DecisionReason
	}{
		{
			name:       "matching tool on ready stage",
			resp:       toolResp("document_advancement"),
			current:    StageAdvancements,
			metrics:    CompletionMetrics{ReadyForNext: true, CompletenessScore: 0.8, InteractionCount: 2},
			wantStage:  StageChallenges,
			wantReason: ReasonTool,
		},
		{
			name:       "tool for a different stage is ignored",
			resp:       toolResp("document_challenge"),
			current:    StageAdvancements,
			metrics:    CompletionMetrics{ReadyForNext: true, CompletenessScore: 0.3, InteractionCount: 1},
			wantStage:  StageAdvancements,
			wantReason: ReasonNone,
		},
		{
			name:       "tool on an unready stage is ignored",
			resp:       toolResp("document_advancement"),
			current:    StageAdvancements,
			metrics:    CompletionMetrics{CompletenessScore: 0.3, InteractionCount: 1},
			wantStage:  StageAdvancements,
			wantReason: ReasonNone,
		},
		{
			name:       "intent with enough coverage",
			current:    StageAdvancements,
			metrics:    CompletionMetrics{CompletenessScore: 0.55, InteractionCount: 1},
			message:    challengeTalk,
			wantStage:  StageChallenges,
			wantReason: ReasonIntent,
		},
		{
			name:       "intent without enough coverage",
			current:    StageAdvancements,
			metrics:    CompletionMetrics{CompletenessScore: 0.45, InteractionCount: 1},
			message:    challengeTalk,
			wantStage:  StageAdvancements,
			wantReason: ReasonNone,
		},
		{
			name:       "forced at ceiling",
			current:    StageAdvancements,
			metrics:    CompletionMetrics{CompletenessScore: 0.5, InteractionCount: 5},
			wantStage:  StageChallenges,
			wantReason: ReasonForced,
		},
		{
			name:       "ceiling reached with weak score",
			current:    StageAdvancements,
			metrics:    CompletionMetrics{CompletenessScore: 0.49, InteractionCount: 5},
			wantStage:  StageAdvancements,
			wantReason: ReasonNone,
		},
		{
			name:       "terminal stage",
			resp:       toolResp("document_action_plan"),
			current:    StageSummary,
			metrics:    CompletionMetrics{ReadyForNext: true, CompletenessScore: 1},
			wantStage:  StageSummary,
			wantReason: ReasonNone,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetermineNextStage(tt.resp, tt.current, tt.metrics, tt.message, cfg)
			if got.Stage != tt.wantStage || got.Reason != tt.wantReason {
				t.Errorf("got %s/%s, want %s/%s", got.Stage, got.Reason, tt.wantStage, tt.wantReason)
			}
			if got.ToolErr != nil {
				t.Errorf("unexpected tool error: %v", got.ToolErr)
			}
		})
	}
}

func TestDetermineNextStage_UnknownTool(t *testing.T) {
	cfg := DefaultConfig()
	resp := LLMResponse{ToolCalls: []ToolCall{{ID: "x", Name: "delete_everything"}}}

	got := DetermineNextStage(resp, StageChallenges, CompletionMetrics{ReadyForNext: true, CompletenessScore: 0.9, InteractionCount: 2}, "", cfg)
	if got.Stage != StageChallenges {
		t.Errorf("expected to stay in challenges, got %s", got.Stage)
	}
	if !errors.Is(got.ToolErr, ErrUnknownTool) {
		t.Errorf("expected ErrUnknownTool, got %v", got.ToolErr)
	}
}

func TestDocumentToolStages(t *testing.T) {
	cfg := DefaultConfig()
	for _, tool := range DocumentTools() {
		next, ok := cfg.NextStage(tool.SourceStage())
		if !ok {
			t.Fatalf("tool %s documents terminal stage %s", tool, tool.SourceStage())
		}
		if next != tool.TargetStage() {
			t.Errorf("tool %s targets %s, but %s follows %s", tool, tool.TargetStage(), next, tool.SourceStage())
		}
	}

	if _, err := ParseDocumentTool("document_summary"); !errors.Is(err, ErrUnknownTool) {
		t.Errorf("expected ErrUnknownTool, got %v", err)
	}
}

func TestApply_Idempotent(t *testing.T) {
	state := stateWith(StageAdvancements, 3, "text")
	state.NextStage = StageChallenges

	applied, moved := Apply(state)
	if !moved {
		t.Fatal("expected a transition")
	}
	if applied.CurrentStage != StageChallenges || applied.InteractionCount != 0 {
		t.Fatalf("unexpected state after apply: %s/%d", applied.CurrentStage, applied.InteractionCount)
	}

	applied.InteractionCount = 2
	again, moved := Apply(applied)
	if moved {
		t.Error("expected second apply to be a no-op")
	}
	if again.CurrentStage != StageChallenges || again.InteractionCount != 2 {
		t.Errorf("second apply changed state: %s/%d", again.CurrentStage, again.InteractionCount)
	}
}
