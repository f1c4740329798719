package review

import (
	"strings"
	"time"
)

// Message roles stored in the transcript.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// systemContextPrefix marks injected orchestration text that must never be
// scored as something the employee said.
const systemContextPrefix = "[SYSTEM CONTEXT:"

// Message is one entry of the conversation transcript.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Stage     StageID   `json:"stage,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// CompletionMetrics is the per-turn evaluation of the current stage.
type CompletionMetrics struct {
	InteractionCount    int     `json:"interaction_count"`
	WordCount           int     `json:"word_count"`
	KeywordCoverage     float64 `json:"keyword_coverage"`
	DepthScore          float64 `json:"depth_score"`
	MinInteractionsMet  bool    `json:"min_interactions_met"`
	MinWordsMet         bool    `json:"min_words_met"`
	HasSpecificExamples bool    `json:"has_specific_examples"`
	CompletenessScore   float64 `json:"completeness_score"`
	ReadyForNext        bool    `json:"ready_for_next"`
}

// ConversationState is the per-session record owned by the orchestrator.
// The engine only ever reads it or returns modified copies.
type ConversationState struct {
	CurrentStage     StageID                       `json:"current_stage"`
	NextStage        StageID                       `json:"next_stage"`
	StageMessages    map[StageID][]string          `json:"stage_messages"`
	InteractionCount int                           `json:"interaction_count"`
	StageMetrics     map[StageID]CompletionMetrics `json:"stage_completion_metrics"`
	Messages         []Message                     `json:"messages"`
	InterviewID      int64                         `json:"interview_id,omitempty"`
}

// NewState returns the initial state of a session. When greeting is empty
// the initial stage's context text is used as the opening assistant message.
func NewState(cfg *Config, greeting string) ConversationState {
	initial := cfg.InitialStage
	if initial == "" && len(cfg.StageOrder) > 0 {
		initial = cfg.StageOrder[0]
	}
	if greeting == "" {
		greeting = cfg.Stage(initial).Context
	}
	if greeting == "" {
		greeting = "Hello! Let's begin your performance review."
	}
	return ConversationState{
		CurrentStage:  initial,
		NextStage:     initial,
		StageMessages: make(map[StageID][]string),
		StageMetrics:  make(map[StageID]CompletionMetrics),
		Messages: []Message{{
			Role:      RoleAssistant,
			Content:   greeting,
			Stage:     initial,
			Timestamp: time.Now(),
		}},
	}
}

// StageResponses returns the accumulated user utterances for stage.
func (s ConversationState) StageResponses(stage StageID) []string {
	return s.StageMessages[stage]
}

// RecordUserMessage appends msg to the transcript and to the current
// stage's utterance list. Blank messages and injected system context are
// kept out of the stage bucket.
func (s *ConversationState) RecordUserMessage(msg string) {
	trimmed := strings.TrimSpace(msg)
	if trimmed == "" {
		return
	}
	s.Messages = append(s.Messages, Message{
		Role:      RoleUser,
		Content:   msg,
		Stage:     s.CurrentStage,
		Timestamp: time.Now(),
	})
	if strings.HasPrefix(trimmed, systemContextPrefix) {
		return
	}
	if s.StageMessages == nil {
		s.StageMessages = make(map[StageID][]string)
	}
	s.StageMessages[s.CurrentStage] = append(s.StageMessages[s.CurrentStage], msg)
}

// RecordAssistantMessage appends an assistant reply to the transcript.
func (s *ConversationState) RecordAssistantMessage(msg string) {
	s.Messages = append(s.Messages, Message{
		Role:      RoleAssistant,
		Content:   msg,
		Stage:     s.CurrentStage,
		Timestamp: time.Now(),
	})
}

// LastUserMessage returns the most recent non-empty user message.
func (s ConversationState) LastUserMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser && s.Messages[i].Content != "" {
			return s.Messages[i].Content
		}
	}
	return ""
}

// Clone returns a deep copy of the state.
func (s ConversationState) Clone() ConversationState {
	out := s
	out.StageMessages = make(map[StageID][]string, len(s.StageMessages))
	for k, v := range s.StageMessages {
		out.StageMessages[k] = append([]string(nil), v...)
	}
	out.StageMetrics = make(map[StageID]CompletionMetrics, len(s.StageMetrics))
	for k, v := range s.StageMetrics {
		out.StageMetrics[k] = v
	}
	out.Messages = append([]Message(nil), s.Messages...)
	return out
}
