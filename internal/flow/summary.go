package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/ReviewPipe/internal/genai"
	"github.com/BTreeMap/ReviewPipe/internal/models"
	"github.com/BTreeMap/ReviewPipe/internal/review"
)

const summarySystemPrompt = `You write the final summary of an employee performance review.
Use the documented stage notes and the conversation excerpts you are given.
Produce a structured summary with one short section per review area (advancements, challenges, achievements, training needs, action plan) followed by an overall assessment.
Be factual. Do not invent details that were not discussed.`

// SummaryBuilder produces the final review summary.
type SummaryBuilder struct {
	llm genai.ClientInterface
	cfg *review.Config
}

// NewSummaryBuilder creates a builder. With a nil llm only the
// deterministic summary is produced.
func NewSummaryBuilder(llm genai.ClientInterface, cfg *review.Config) *SummaryBuilder {
	if cfg == nil {
		cfg = review.DefaultConfig()
	}
	return &SummaryBuilder{llm: llm, cfg: cfg}
}

// Build returns a summary of sess. It asks the LLM when one is configured
// and falls back to the deterministic rendering on any failure.
func (b *SummaryBuilder) Build(ctx context.Context, sess models.Session, summaries []models.StageSummary) string {
	if b.llm != nil {
		out, err := b.llm.GeneratePrompt(ctx, summarySystemPrompt, b.digest(sess, summaries))
		if err == nil && strings.TrimSpace(out) != "" {
			return strings.TrimSpace(out)
		}
		slog.Warn("SummaryBuilder.Build: LLM summary failed, using fallback", "error", err, "sessionID", sess.ID)
	}
	return b.Fallback(sess, summaries)
}

// digest renders the material handed to the LLM.
func (b *SummaryBuilder) digest(sess models.Session, summaries []models.StageSummary) string {
	var sb strings.Builder
	if sess.EmployeeName != "" {
		fmt.Fprintf(&sb, "Employee: %s", sess.EmployeeName)
		if sess.EmployeePosition != "" {
			fmt.Fprintf(&sb, " (%s)", sess.EmployeePosition)
		}
		sb.WriteString("\n\n")
	}
	if len(summaries) > 0 {
		sb.WriteString("Documented notes:\n")
		for _, s := range summaries {
			fmt.Fprintf(&sb, "- %s: %s\n", b.cfg.Stage(s.StageName).Label, s.SummaryText)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("What the employee said, by area:\n")
	for _, stage := range b.cfg.StageOrder {
		responses := sess.State.StageResponses(stage)
		if len(responses) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "[%s]\n", b.cfg.Stage(stage).Label)
		for _, r := range responses {
			fmt.Fprintf(&sb, "- %s\n", r)
		}
	}
	return sb.String()
}

// Fallback renders a summary from the stored stage notes, or from the
// employee's own words for stages that were never documented.
func (b *SummaryBuilder) Fallback(sess models.Session, summaries []models.StageSummary) string {
	byStage := make(map[review.StageID]models.StageSummary, len(summaries))
	for _, s := range summaries {
		byStage[s.StageName] = s
	}

	var sb strings.Builder
	sb.WriteString("Performance Review Summary")
	if sess.EmployeeName != "" {
		sb.WriteString(" for " + sess.EmployeeName)
	}
	sb.WriteString("\n")

	for _, stage := range b.cfg.StageOrder {
		if b.cfg.IsTerminal(stage) {
			continue
		}
		fmt.Fprintf(&sb, "\n%s:\n", b.cfg.Stage(stage).Label)
		if s, ok := byStage[stage]; ok && s.SummaryText != "" {
			fmt.Fprintf(&sb, "- %s\n", s.SummaryText)
			for _, kp := range s.KeyPoints {
				fmt.Fprintf(&sb, "  - %s\n", kp)
			}
			continue
		}
		responses := sess.State.StageResponses(stage)
		if len(responses) == 0 {
			sb.WriteString("- Not discussed.\n")
			continue
		}
		for _, r := range responses {
			fmt.Fprintf(&sb, "- %s\n", strings.TrimSpace(r))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// OverallScore averages the recorded completeness scores of every
// non-terminal stage. It returns nil when no stage has been scored.
func OverallScore(state review.ConversationState, cfg *review.Config) *float64 {
	var total float64
	n := 0
	for _, stage := range cfg.StageOrder {
		if cfg.IsTerminal(stage) {
			continue
		}
		if m, ok := state.StageMetrics[stage]; ok {
			total += m.CompletenessScore
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := total / float64(n)
	return &avg
}
