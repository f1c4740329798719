// Package review implements the stage-completion scoring and transition
// engine that drives a structured performance-review conversation.
//
// Every function in this package is a pure computation over a
// ConversationState snapshot and an immutable Config. Nothing here performs
// I/O or mutates shared data, so a single Config may be shared by any number
// of concurrent sessions.
package review

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// StageID identifies one topical phase of the interview.
type StageID string

// Stage identifiers in their default order.
const (
	StageAdvancements  StageID = "advancements"
	StageChallenges    StageID = "challenges"
	StageAchievements  StageID = "achievements"
	StageTrainingNeeds StageID = "training_needs"
	StageActionPlan    StageID = "action_plan"
	StageSummary       StageID = "summary"
)

// DefaultFollowUpTemplate is used when a stage does not declare its own.
const DefaultFollowUpTemplate = "To ensure we capture everything important, could you elaborate on: {missing}?"

// StageDefinition declares the completion requirements of a single stage.
type StageDefinition struct {
	ID                          StageID  `yaml:"-" json:"id"`
	Label                       string   `yaml:"label" json:"label"`
	Context                     string   `yaml:"context" json:"context"`
	MinInteractions             int      `yaml:"min_interactions" json:"min_interactions"`
	MinWordCount                int      `yaml:"min_word_count" json:"min_word_count"`
	RequiredKeywords            []string `yaml:"required_keywords" json:"required_keywords"`
	DepthIndicators             []string `yaml:"depth_indicators" json:"depth_indicators"`
	FollowUpTemplate            string   `yaml:"follow_up_template" json:"follow_up_template"`
	CompletionThreshold         float64  `yaml:"completion_threshold" json:"completion_threshold"`
	ForceTransitionInteractions int      `yaml:"force_transition_interactions" json:"force_transition_interactions"`
}

// Validate checks that thresholds and ceilings are non-negative.
func (sd StageDefinition) Validate() error {
	if sd.MinInteractions < 0 {
		return fmt.Errorf("stage %s: min_interactions must be non-negative", sd.ID)
	}
	if sd.MinWordCount < 0 {
		return fmt.Errorf("stage %s: min_word_count must be non-negative", sd.ID)
	}
	if sd.CompletionThreshold < 0 || sd.CompletionThreshold > 1 {
		return fmt.Errorf("stage %s: completion_threshold must be within [0, 1]", sd.ID)
	}
	if sd.ForceTransitionInteractions < 0 {
		return fmt.Errorf("stage %s: force_transition_interactions must be non-negative", sd.ID)
	}
	return nil
}

// permissiveStage is returned for stage ids that have no definition.
// Every requirement is empty, so any input scores as complete enough.
func permissiveStage(id StageID) StageDefinition {
	return StageDefinition{
		ID:               id,
		Label:            string(id),
		FollowUpTemplate: DefaultFollowUpTemplate,
	}
}

// TransitionConfig holds the global thresholds used by the readiness tiers
// and by the intent detector. MinCompletenessScore and
// MaxInteractionsBeforeForce are the fallbacks for stages loaded from a file
// without their own completion_threshold or force_transition_interactions.
type TransitionConfig struct {
	MinCompletenessScore        float64            `yaml:"min_completeness_score" json:"min_completeness_score"`
	EmergencyCompletenessScore  float64            `yaml:"emergency_completeness_score" json:"emergency_completeness_score"`
	MaxInteractionsBeforeForce  int                `yaml:"max_interactions_before_force" json:"max_interactions_before_force"`
	MinInteractionsForEmergency int                `yaml:"min_interactions_for_emergency" json:"min_interactions_for_emergency"`
	ExtendedReadinessScore      float64            `yaml:"extended_readiness_score" json:"extended_readiness_score"`
	IntentThreshold             float64            `yaml:"intent_threshold" json:"intent_threshold"`
	ContinueSignals             []string           `yaml:"continue_signals" json:"continue_signals"`
	TransitionMessages          map[StageID]string `yaml:"transition_messages" json:"transition_messages"`
}

// Validate checks that scores lie within [0, 1] and that the interaction
// counts are usable. A zero emergency minimum would make the extended
// readiness tier match on every turn.
func (tc TransitionConfig) Validate() error {
	for name, v := range map[string]float64{
		"min_completeness_score":       tc.MinCompletenessScore,
		"emergency_completeness_score": tc.EmergencyCompletenessScore,
		"extended_readiness_score":     tc.ExtendedReadinessScore,
		"intent_threshold":             tc.IntentThreshold,
	} {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return fmt.Errorf("transition %s must be within [0, 1]", name)
		}
	}
	if tc.MinInteractionsForEmergency < 1 {
		return errors.New("transition min_interactions_for_emergency must be at least 1")
	}
	if tc.MaxInteractionsBeforeForce < 0 {
		return errors.New("transition max_interactions_before_force must be non-negative")
	}
	return nil
}

// CompletionWeights are the factors of the composite completeness score.
// They must sum to 1.0.
type CompletionWeights struct {
	KeywordCoverage float64 `yaml:"keyword_coverage" json:"keyword_coverage"`
	DepthScore      float64 `yaml:"depth_score" json:"depth_score"`
	Interactions    float64 `yaml:"interactions" json:"interactions"`
	Words           float64 `yaml:"words" json:"words"`
	Examples        float64 `yaml:"examples" json:"examples"`
}

// Sum returns the total of all weights.
func (w CompletionWeights) Sum() float64 {
	return w.KeywordCoverage + w.DepthScore + w.Interactions + w.Words + w.Examples
}

// Validate rejects negative weights and weights that do not sum to 1.0.
func (w CompletionWeights) Validate() error {
	for name, v := range map[string]float64{
		"keyword_coverage": w.KeywordCoverage,
		"depth_score":      w.DepthScore,
		"interactions":     w.Interactions,
		"words":            w.Words,
		"examples":         w.Examples,
	} {
		if v < 0 {
			return fmt.Errorf("completion weight %s must be non-negative", name)
		}
	}
	if math.Abs(w.Sum()-1.0) > 1e-6 {
		return fmt.Errorf("completion weights must sum to 1.0, got %.4f", w.Sum())
	}
	return nil
}

// Config is the canonical interview configuration. It is built once at
// startup and never mutated afterwards.
type Config struct {
	StageOrder   []StageID                   `yaml:"stage_order" json:"stage_order"`
	Stages       map[StageID]StageDefinition `yaml:"stages" json:"stages"`
	Transition   TransitionConfig            `yaml:"transition" json:"transition"`
	Weights      CompletionWeights           `yaml:"weights" json:"weights"`
	InitialStage StageID                     `yaml:"initial_stage" json:"initial_stage"`
}

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid interview configuration")

// Validate enforces the configuration invariants.
func (c *Config) Validate() error {
	if len(c.StageOrder) == 0 {
		return fmt.Errorf("%w: stage_order is empty", ErrInvalidConfig)
	}
	seen := make(map[StageID]bool, len(c.StageOrder))
	for _, id := range c.StageOrder {
		if seen[id] {
			return fmt.Errorf("%w: duplicate stage %q in stage_order", ErrInvalidConfig, id)
		}
		seen[id] = true
	}
	for id, sd := range c.Stages {
		if err := sd.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if !seen[id] {
			return fmt.Errorf("%w: stage %q is defined but missing from stage_order", ErrInvalidConfig, id)
		}
	}
	if err := c.Weights.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.Transition.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.InitialStage != "" && !seen[c.InitialStage] {
		return fmt.Errorf("%w: initial_stage %q not in stage_order", ErrInvalidConfig, c.InitialStage)
	}
	return nil
}

// Stage returns the definition for id, or a permissive default when the
// stage is not configured.
func (c *Config) Stage(id StageID) StageDefinition {
	if sd, ok := c.Stages[id]; ok {
		sd.ID = id
		if sd.FollowUpTemplate == "" {
			sd.FollowUpTemplate = DefaultFollowUpTemplate
		}
		return sd
	}
	return permissiveStage(id)
}

// StageIndex returns the position of id in the stage order, or -1.
func (c *Config) StageIndex(id StageID) int {
	for i, s := range c.StageOrder {
		if s == id {
			return i
		}
	}
	return -1
}

// NextStage returns the stage immediately following id. The boolean is
// false when id is terminal or not part of the stage order.
func (c *Config) NextStage(id StageID) (StageID, bool) {
	idx := c.StageIndex(id)
	if idx < 0 || idx+1 >= len(c.StageOrder) {
		return id, false
	}
	return c.StageOrder[idx+1], true
}

// IsTerminal reports whether id is the last stage of the interview.
func (c *Config) IsTerminal(id StageID) bool {
	return len(c.StageOrder) > 0 && c.StageOrder[len(c.StageOrder)-1] == id
}

// DefaultWeights returns the standard completion weights.
func DefaultWeights() CompletionWeights {
	return CompletionWeights{
		KeywordCoverage: 0.25,
		DepthScore:      0.25,
		Interactions:    0.20,
		Words:           0.15,
		Examples:        0.15,
	}
}

// DefaultTransitionConfig returns the standard transition thresholds.
func DefaultTransitionConfig() TransitionConfig {
	return TransitionConfig{
		MinCompletenessScore:        0.7,
		EmergencyCompletenessScore:  0.5,
		MaxInteractionsBeforeForce:  6,
		MinInteractionsForEmergency: 3,
		ExtendedReadinessScore:      0.6,
		IntentThreshold:             0.3,
		ContinueSignals: []string{
			"next", "continue", "move on", "done", "finished",
			"that's it", "let's proceed", "ready",
		},
		TransitionMessages: map[StageID]string{
			StageChallenges:    "Great! Now let's discuss any challenges or obstacles you've faced. What specific difficulties have you encountered in your role?",
			StageAchievements:  "Excellent! Now let's talk about your key achievements and accomplishments. What are you most proud of accomplishing?",
			StageTrainingNeeds: "Perfect! Now let's identify areas for your professional development. What skills or knowledge areas would you like to improve?",
			StageActionPlan:    "Great! Finally, let's create an action plan for your continued growth. What specific goals would you like to set?",
			StageSummary:       "Thank you! Let me now provide a comprehensive summary of our discussion.",
		},
	}
}

// DefaultConfig builds the standard six-stage review configuration.
func DefaultConfig() *Config {
	stages := map[StageID]StageDefinition{
		StageAdvancements: {
			Label:                       "Professional Advancements & Milestones",
			Context:                     "Focus on documenting professional advancements and milestones since the last review. Please share specific examples of your growth and development.",
			MinInteractions:             2,
			MinWordCount:                100,
			RequiredKeywords:            []string{"skill", "project", "responsibility", "improvement", "achievement", "learn", "develop", "growth"},
			DepthIndicators:             []string{"specific", "example", "result", "impact", "implemented", "created", "led", "managed"},
			CompletionThreshold:         0.7,
			ForceTransitionInteractions: 5,
		},
		StageChallenges: {
			Label:                       "Challenges & Obstacles",
			Context:                     "Now let's discuss the challenges and obstacles you've faced. Understanding these helps identify areas for support and improvement.",
			MinInteractions:             2,
			MinWordCount:                80,
			RequiredKeywords:            []string{"challenge", "difficult", "obstacle", "problem", "barrier", "issue", "struggle"},
			DepthIndicators:             []string{"approach", "solution", "overcome", "learned", "adapted", "resolved", "handled"},
			CompletionThreshold:         0.6,
			ForceTransitionInteractions: 4,
		},
		StageAchievements: {
			Label:                       "Key Achievements & Accomplishments",
			Context:                     "Let's talk about your key achievements and accomplishments. Focus on measurable results and positive impacts.",
			MinInteractions:             2,
			MinWordCount:                120,
			RequiredKeywords:            []string{"accomplished", "delivered", "exceeded", "successful", "completed", "achieved", "won"},
			DepthIndicators:             []string{"metric", "percentage", "number", "result", "impact", "recognition", "outcome", "improved"},
			CompletionThreshold:         0.75,
			ForceTransitionInteractions: 6,
		},
		StageTrainingNeeds: {
			Label:                       "Training & Development Needs",
			Context:                     "What training or development areas would be most beneficial for your growth? Consider both technical and soft skills.",
			MinInteractions:             1,
			MinWordCount:                60,
			RequiredKeywords:            []string{"skill", "training", "development", "learn", "improve", "certification", "course"},
			DepthIndicators:             []string{"specific", "goal", "timeline", "program", "mentor", "practice"},
			CompletionThreshold:         0.6,
			ForceTransitionInteractions: 4,
		},
		StageActionPlan: {
			Label:                       "Action Plan & Goals",
			Context:                     "Let's create a concrete action plan for your professional development. Focus on specific, measurable goals with timelines.",
			MinInteractions:             2,
			MinWordCount:                100,
			RequiredKeywords:            []string{"goal", "plan", "objective", "timeline", "action", "target", "milestone"},
			DepthIndicators:             []string{"specific", "measurable", "deadline", "resource", "steps", "review"},
			CompletionThreshold:         0.75,
			ForceTransitionInteractions: 5,
		},
		StageSummary: {
			Label:                       "Performance Review Summary",
			Context:                     "Generating comprehensive summary of our discussion.",
			CompletionThreshold:         0.0,
			ForceTransitionInteractions: 1,
		},
	}
	for id, sd := range stages {
		sd.ID = id
		sd.FollowUpTemplate = DefaultFollowUpTemplate
		stages[id] = sd
	}

	return &Config{
		StageOrder: []StageID{
			StageAdvancements, StageChallenges, StageAchievements,
			StageTrainingNeeds, StageActionPlan, StageSummary,
		},
		Stages:       stages,
		Transition:   DefaultTransitionConfig(),
		Weights:      DefaultWeights(),
		InitialStage: StageAdvancements,
	}
}

// LoadConfig reads a YAML stage configuration from path and overlays it on
// the defaults. Sections and transition settings omitted from the file keep
// their default values. A stage listed under "stages" replaces the default
// definition; when it omits completion_threshold or
// force_transition_interactions those come from the transition section's
// min_completeness_score and max_interactions_before_force.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stage config %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML bytes into a validated Config.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	// Transition is decoded into a copy of the defaults so that yaml.v3
	// leaves omitted fields untouched.
	overlay := struct {
		StageOrder   []StageID             `yaml:"stage_order"`
		Stages       map[StageID]yaml.Node `yaml:"stages"`
		Transition   TransitionConfig      `yaml:"transition"`
		Weights      *CompletionWeights    `yaml:"weights"`
		InitialStage StageID               `yaml:"initial_stage"`
	}{Transition: cfg.Transition}
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("parse stage config: %w", err)
	}
	cfg.Transition = overlay.Transition
	if len(cfg.Transition.ContinueSignals) == 0 {
		cfg.Transition.ContinueSignals = DefaultTransitionConfig().ContinueSignals
	}

	if len(overlay.StageOrder) > 0 {
		cfg.StageOrder = overlay.StageOrder
		// Drop defaults for stages that are no longer part of the order.
		for id := range cfg.Stages {
			if cfg.StageIndex(id) < 0 {
				delete(cfg.Stages, id)
			}
		}
		if cfg.StageIndex(cfg.InitialStage) < 0 {
			cfg.InitialStage = cfg.StageOrder[0]
		}
	}
	for id, node := range overlay.Stages {
		sd := StageDefinition{
			CompletionThreshold:         cfg.Transition.MinCompletenessScore,
			ForceTransitionInteractions: cfg.Transition.MaxInteractionsBeforeForce,
		}
		if err := node.Decode(&sd); err != nil {
			return nil, fmt.Errorf("parse stage config: stage %s: %w", id, err)
		}
		sd.ID = id
		if sd.FollowUpTemplate == "" {
			sd.FollowUpTemplate = DefaultFollowUpTemplate
		}
		cfg.Stages[id] = sd
	}
	if overlay.Weights != nil {
		cfg.Weights = *overlay.Weights
	}
	if overlay.InitialStage != "" {
		cfg.InitialStage = overlay.InitialStage
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
