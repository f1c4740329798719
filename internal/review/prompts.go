package review

import (
	"math"
	"strings"
)

// FollowUpPrompt asks for whatever the metrics show is still missing from
// the stage. It returns "" when nothing is missing or the stage is unknown.
func FollowUpPrompt(stage StageID, metrics CompletionMetrics, cfg *Config) string {
	sd, ok := cfg.Stages[stage]
	if !ok {
		return ""
	}

	var missing []string
	if metrics.WordCount < sd.MinWordCount {
		missing = append(missing, "more detailed explanation")
	}
	if metrics.KeywordCoverage < 0.5 && len(sd.RequiredKeywords) > 0 {
		kw := sd.RequiredKeywords
		if len(kw) > 3 {
			kw = kw[:3]
		}
		missing = append(missing, "discussion of: "+strings.Join(kw, ", "))
	}
	if !metrics.HasSpecificExamples {
		missing = append(missing, "specific examples or metrics")
	}
	if len(missing) == 0 {
		return ""
	}

	tmpl := sd.FollowUpTemplate
	if tmpl == "" {
		tmpl = DefaultFollowUpTemplate
	}
	return strings.ReplaceAll(tmpl, "{missing}", strings.Join(missing, ", "))
}

// StageContext returns the introductory text of a stage.
func StageContext(stage StageID, cfg *Config) string {
	if sd, ok := cfg.Stages[stage]; ok {
		return sd.Context
	}
	return ""
}

// TransitionMessage returns the announcement used when entering stage.
func TransitionMessage(stage StageID, cfg *Config) string {
	return cfg.Transition.TransitionMessages[stage]
}

// ProgressInfo summarises where a session is in the stage order.
type ProgressInfo struct {
	CurrentStage       StageID   `json:"current_stage"`
	CompletedStages    []StageID `json:"completed_stages"`
	ProgressPercentage float64   `json:"progress_percentage"`
}

// Progress reports the stages already completed before stage and the
// percentage of the interview reached, counting stage itself.
func Progress(stage StageID, cfg *Config) ProgressInfo {
	info := ProgressInfo{CurrentStage: stage, CompletedStages: []StageID{}}
	idx := cfg.StageIndex(stage)
	if idx < 0 || len(cfg.StageOrder) == 0 {
		return info
	}
	info.CompletedStages = append(info.CompletedStages, cfg.StageOrder[:idx]...)
	pct := float64(idx+1) / float64(len(cfg.StageOrder)) * 100
	info.ProgressPercentage = math.Round(pct*100) / 100
	return info
}

// Warnings lists tuning combinations under which the readiness tiers can
// disagree with each other. They are not fatal but should be surfaced to
// whoever maintains the stage file.
func (c *Config) Warnings() []string {
	var out []string
	tc := c.Transition
	if tc.EmergencyCompletenessScore > tc.ExtendedReadinessScore {
		out = append(out, "emergency_completeness_score exceeds extended_readiness_score: readiness can drop when a stage reaches its forced-transition ceiling")
	}
	for _, id := range c.StageOrder {
		sd, ok := c.Stages[id]
		if !ok {
			continue
		}
		if sd.ForceTransitionInteractions < sd.MinInteractions {
			out = append(out, "stage "+string(id)+": forced-transition ceiling is below min_interactions")
		}
	}
	return out
}
