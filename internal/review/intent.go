package review

import "strings"

// IntentContinue is returned by DetectIntent when the message asks to move
// on. It is never a valid stage id.
const IntentContinue StageID = "continue"

// DetectIntent classifies a user message. It returns IntentContinue for an
// explicit continuation phrase, the id of another stage whose vocabulary the
// message clearly uses, or current when no signal is found.
//
// Stages are scanned in StageOrder and only a strictly higher fraction
// replaces the best candidate, so ties resolve to the earliest stage.
func DetectIntent(message string, current StageID, cfg *Config) StageID {
	text := strings.ToLower(strings.TrimSpace(message))
	if text == "" {
		return current
	}

	for _, sig := range cfg.Transition.ContinueSignals {
		if sig != "" && strings.Contains(text, strings.ToLower(sig)) {
			return IntentContinue
		}
	}

	best, bestScore := current, -1.0
	for _, id := range cfg.StageOrder {
		if id == current {
			continue
		}
		sd, ok := cfg.Stages[id]
		if !ok {
			continue
		}
		terms := make([]string, 0, len(sd.RequiredKeywords)+len(sd.DepthIndicators))
		terms = append(terms, sd.RequiredKeywords...)
		terms = append(terms, sd.DepthIndicators...)
		if len(terms) == 0 {
			continue
		}
		if score := termFraction(text, terms); score > bestScore {
			best, bestScore = id, score
		}
	}

	if bestScore >= cfg.Transition.IntentThreshold && bestScore > 0 {
		return best
	}
	return current
}
