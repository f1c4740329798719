package review

import (
	"regexp"
	"strings"
)

// detailedWordCount is the length beyond which a response counts as
// containing specific examples regardless of its wording.
const detailedWordCount = 80

var numericToken = regexp.MustCompile(`\d+(?:[.,]\d+)?\s*%?`)

var exampleIndicators = []string{
	"for example", "such as", "specifically", "in particular", "including",
	"like", "instance", "case", "project", "when", "during", "resulted in",
}

// Evaluate scores how completely the current stage of state has been
// covered. It never fails: an unknown stage is scored against a permissive
// default definition.
func Evaluate(state ConversationState, cfg *Config) CompletionMetrics {
	stage := state.CurrentStage
	if stage == "" {
		stage = cfg.InitialStage
	}
	sd := cfg.Stage(stage)

	text := strings.Join(state.StageResponses(stage), " ")
	count := state.InteractionCount

	m := CompletionMetrics{
		InteractionCount:    count,
		WordCount:           len(strings.Fields(text)),
		KeywordCoverage:     termFraction(text, sd.RequiredKeywords),
		DepthScore:          min(termFraction(text, sd.DepthIndicators), 1.0),
		HasSpecificExamples: HasSpecificExamples(text),
	}
	m.MinInteractionsMet = count >= sd.MinInteractions
	m.MinWordsMet = m.WordCount >= sd.MinWordCount
	m.CompletenessScore = compositeScore(m, cfg.Weights)
	m.ReadyForNext = Readiness(m.CompletenessScore, count, sd, cfg.Transition)
	return m
}

// compositeScore folds the individual signals into a weighted 0-1 score.
func compositeScore(m CompletionMetrics, w CompletionWeights) float64 {
	interactions, words, examples := 0.5, 0.3, 0.4
	if m.MinInteractionsMet {
		interactions = 1.0
	}
	if m.MinWordsMet {
		words = 1.0
	}
	if m.HasSpecificExamples {
		examples = 1.0
	}
	return m.KeywordCoverage*w.KeywordCoverage +
		m.DepthScore*w.DepthScore +
		interactions*w.Interactions +
		words*w.Words +
		examples*w.Examples
}

// Readiness applies the tiered readiness policy. Tiers are evaluated in
// order and the first one whose precondition holds decides the outcome:
//
//  1. primary:  score >= stage threshold and enough interactions
//  2. forced:   interactions >= stage ceiling, ready iff score >= emergency score
//  3. extended: interactions >= 2x the emergency minimum, ready iff score >= extended score
func Readiness(score float64, interactions int, sd StageDefinition, tc TransitionConfig) bool {
	if score >= sd.CompletionThreshold && interactions >= sd.MinInteractions {
		return true
	}
	if interactions >= sd.ForceTransitionInteractions {
		return score >= tc.EmergencyCompletenessScore
	}
	if interactions >= tc.MinInteractionsForEmergency*2 {
		return score >= tc.ExtendedReadinessScore
	}
	return false
}

// HasSpecificExamples reports whether text contains a number, an
// example-introducing phrase, or is long enough to count as detailed.
func HasSpecificExamples(text string) bool {
	if text == "" {
		return false
	}
	if numericToken.MatchString(text) {
		return true
	}
	lowered := strings.ToLower(text)
	for _, ind := range exampleIndicators {
		if strings.Contains(lowered, ind) {
			return true
		}
	}
	return len(strings.Fields(text)) > detailedWordCount
}

// termFraction returns the share of terms found in text as case-insensitive
// substrings. An empty term list is fully satisfied.
func termFraction(text string, terms []string) float64 {
	if len(terms) == 0 {
		return 1.0
	}
	lowered := strings.ToLower(text)
	found := 0
	for _, t := range terms {
		if strings.Contains(lowered, strings.ToLower(t)) {
			found++
		}
	}
	return float64(found) / float64(len(terms))
}
