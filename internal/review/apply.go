package review

// Apply commits a pending transition. When NextStage differs from
// CurrentStage the stage advances and the interaction counter resets;
// otherwise the state is returned unchanged. The boolean reports whether a
// transition happened, so applying twice never resets the counter twice.
func Apply(state ConversationState) (ConversationState, bool) {
	if state.NextStage == "" || state.NextStage == state.CurrentStage {
		return state, false
	}
	state.CurrentStage = state.NextStage
	state.InteractionCount = 0
	return state, true
}
