package models

import (
	"strings"
	"testing"

	"github.com/BTreeMap/ReviewPipe/internal/review"
)

func TestParseDocumentToolParams(t *testing.T) {
	tests := []struct {
		name    string
		tool    review.DocumentTool
		args    string
		wantErr string
		summary string
	}{
		{
			name:    "advancement",
			tool:    review.ToolDocumentAdvancement,
			args:    `{"description":"Promoted to tech lead"}`,
			summary: "Promoted to tech lead",
		},
		{
			name:    "advancement without description",
			tool:    review.ToolDocumentAdvancement,
			args:    `{}`,
			wantErr: "description is required",
		},
		{
			name:    "training need",
			tool:    review.ToolDocumentTrainingNeed,
			args:    `{"training_type":"Kubernetes","reason":"new platform"}`,
			summary: "Training Type: Kubernetes, Reason: new platform",
		},
		{
			name:    "action plan missing deadline",
			tool:    review.ToolDocumentActionPlan,
			args:    `{"goal":"Ship v2","next_steps":"write RFC"}`,
			wantErr: "deadline is required",
		},
		{
			name:    "action plan",
			tool:    review.ToolDocumentActionPlan,
			args:    `{"goal":"Ship v2","deadline":"Q3","next_steps":"write RFC"}`,
			summary: "Goal: Ship v2, Deadline: Q3, Next Steps: write RFC",
		},
		{
			name:    "malformed json",
			tool:    review.ToolDocumentChallenge,
			args:    `{"description":`,
			wantErr: "failed to parse",
		},
		{
			name:    "empty arguments",
			tool:    review.ToolDocumentAchievement,
			args:    "",
			wantErr: "description is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParseDocumentToolParams(tt.tool, tt.args)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := p.SummaryText(tt.tool); got != tt.summary {
				t.Errorf("summary = %q, want %q", got, tt.summary)
			}
		})
	}
}

func TestToolResultJSON(t *testing.T) {
	out := ToolResult{ToolCallID: "call_1", Success: true, Message: "Advancement successfully documented."}.JSON()
	if !strings.Contains(out, `"success":true`) || !strings.Contains(out, `"tool_call_id":"call_1"`) {
		t.Errorf("unexpected tool result JSON: %s", out)
	}
}
