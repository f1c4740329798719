// Package flow drives the review conversation: it runs one user turn
// through the stage engine and the LLM, executes documentation tools and
// records stage summaries.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/BTreeMap/ReviewPipe/internal/genai"
	"github.com/BTreeMap/ReviewPipe/internal/models"
	"github.com/BTreeMap/ReviewPipe/internal/review"
	"github.com/BTreeMap/ReviewPipe/internal/store"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/param"
)

// TurnResult is the outcome of one processed user message.
type TurnResult struct {
	Reply         string                   `json:"reply"`
	State         review.ConversationState `json:"-"`
	Metrics       review.CompletionMetrics `json:"metrics"`
	PreviousStage review.StageID           `json:"previous_stage"`
	CurrentStage  review.StageID           `json:"current_stage"`
	Transitioned  bool                     `json:"transitioned"`
	Decision      review.Decision          `json:"decision"`
	ToolResults   []models.ToolResult      `json:"tool_results,omitempty"`
}

// InterviewFlow runs review turns. It holds no per-session state and is
// safe for concurrent use; callers serialise turns of the same session.
type InterviewFlow struct {
	llm          genai.ClientInterface
	records      store.Store
	cfg          *review.Config
	tools        *DocumentTools
	systemPrompt string
	historyLimit int
}

// NewInterviewFlow creates a flow. records may be nil when nothing should be
// persisted (for example in the terminal chat).
func NewInterviewFlow(llm genai.ClientInterface, records store.Store, cfg *review.Config) *InterviewFlow {
	if cfg == nil {
		cfg = review.DefaultConfig()
	}
	slog.Debug("InterviewFlow.NewInterviewFlow: creating flow", "hasLLM", llm != nil, "hasStore", records != nil, "stages", len(cfg.StageOrder))
	return &InterviewFlow{
		llm:          llm,
		records:      records,
		cfg:          cfg,
		tools:        NewDocumentTools(records, cfg),
		systemPrompt: DefaultSystemPrompt,
	}
}

// Config returns the stage configuration the flow runs with.
func (f *InterviewFlow) Config() *review.Config {
	return f.cfg
}

// SetSystemPrompt replaces the base system prompt.
func (f *InterviewFlow) SetSystemPrompt(prompt string) {
	f.systemPrompt = strings.TrimSpace(prompt)
}

// LoadSystemPrompt reads the base system prompt from file.
func (f *InterviewFlow) LoadSystemPrompt(file string) error {
	content, err := os.ReadFile(file)
	if err != nil {
		slog.Error("InterviewFlow.LoadSystemPrompt: failed to read system prompt file", "file", file, "error", err)
		return fmt.Errorf("failed to read system prompt file: %w", err)
	}
	prompt := strings.TrimSpace(string(content))
	if prompt == "" {
		return fmt.Errorf("system prompt file is empty: %s", file)
	}
	f.systemPrompt = prompt
	slog.Info("InterviewFlow.LoadSystemPrompt: system prompt loaded", "file", file, "length", len(prompt))
	return nil
}

// SetHistoryLimit caps how many transcript messages are sent to the LLM.
// Zero or negative sends the whole transcript.
func (f *InterviewFlow) SetHistoryLimit(limit int) {
	f.historyLimit = limit
}

// NewSession opens a session in the initial stage. When emp names an
// employee the greeting is personalised.
func (f *InterviewFlow) NewSession(id string, emp EmployeeContext) models.Session {
	now := time.Now().UTC()
	initial := f.cfg.InitialStage
	if initial == "" && len(f.cfg.StageOrder) > 0 {
		initial = f.cfg.StageOrder[0]
	}
	greeting := Greeting(emp, review.StageContext(initial, f.cfg))
	return models.Session{
		ID:                 id,
		EmployeeName:       emp.Name,
		EmployeePosition:   emp.Position,
		EmployeeExperience: emp.Experience,
		State:              review.NewState(f.cfg, greeting),
		CreatedAt:          now,
		LastActivity:       now,
	}
}

// ProcessSessionMessage runs one turn for sess using its employee context.
func (f *InterviewFlow) ProcessSessionMessage(ctx context.Context, sess models.Session, message string) (*TurnResult, error) {
	return f.process(ctx, sess.State, message, EmployeeContextFromSession(sess))
}

// ProcessMessage runs one turn on state. state is never modified; the new
// state is returned in the result. On error the caller keeps its state.
func (f *InterviewFlow) ProcessMessage(ctx context.Context, state review.ConversationState, message string) (*TurnResult, error) {
	return f.process(ctx, state, message, EmployeeContext{})
}

func (f *InterviewFlow) process(ctx context.Context, state review.ConversationState, message string, emp EmployeeContext) (*TurnResult, error) {
	if f.llm == nil {
		return nil, fmt.Errorf("no LLM client configured")
	}

	working := state.Clone()
	original := working.CurrentStage
	interactions := working.InteractionCount
	working.RecordUserMessage(message)

	slog.Debug("InterviewFlow.process: processing turn", "stage", original, "interaction", interactions+1, "interviewID", working.InterviewID)

	signalled := false
	if ok, target := review.ShouldTransition(working, message, f.cfg); ok && target != "" && target != original {
		slog.Info("InterviewFlow.process: natural stage transition signalled", "from", original, "to", target)
		working.NextStage = target
		signalled = true
	}

	metrics := review.Evaluate(working, f.cfg)
	slog.Debug("InterviewFlow.process: stage evaluated", "stage", original,
		"score", metrics.CompletenessScore, "ready", metrics.ReadyForNext)

	messages := f.buildMessages(working, emp, f.stageContext(original, metrics, interactions, signalled, working.NextStage))
	tools := f.tools.Definitions()

	resp, err := f.llm.GenerateWithTools(ctx, messages, tools)
	if err != nil {
		slog.Error("InterviewFlow.process: LLM call failed", "error", err, "stage", original)
		return nil, fmt.Errorf("failed to generate reply: %w", err)
	}

	llmResp := toLLMResponse(resp)
	decision := review.DetermineNextStage(llmResp, original, metrics, message, f.cfg)
	if decision.ToolErr != nil {
		slog.Warn("InterviewFlow.process: ignoring non-documentation tool for stage decision", "error", decision.ToolErr)
	}
	if decision.Reason == review.ReasonForced {
		slog.Warn("InterviewFlow.process: forcing stage transition", "from", original, "to", decision.Stage, "score", metrics.CompletenessScore)
	}

	reply := resp.Content
	var toolResults []models.ToolResult
	if resp.HasToolCalls() {
		snap := StageSnapshot{CompletionScore: metrics.CompletenessScore, InteractionCount: interactions + 1}
		reply, toolResults = f.handleToolCalls(ctx, working.InterviewID, resp, messages, snap)
	}
	if strings.TrimSpace(reply) == "" {
		reply = fallbackReply(original, metrics, f.cfg)
	}

	working.RecordAssistantMessage(reply)
	working.InteractionCount = interactions + 1
	if !signalled {
		working.NextStage = decision.Stage
	}
	if working.StageMetrics == nil {
		working.StageMetrics = make(map[review.StageID]review.CompletionMetrics)
	}
	working.StageMetrics[original] = metrics

	next, transitioned := review.Apply(working)
	if transitioned {
		slog.Info("InterviewFlow.process: stage changed", "from", original, "to", next.CurrentStage, "reason", decision.Reason, "signalled", signalled)
		f.completeStage(ctx, next.InterviewID, original, metrics, interactions+1)
	}

	return &TurnResult{
		Reply:         reply,
		State:         next,
		Metrics:       metrics,
		PreviousStage: original,
		CurrentStage:  next.CurrentStage,
		Transitioned:  transitioned,
		Decision:      decision,
		ToolResults:   toolResults,
	}, nil
}

// stageContext builds the per-turn system message: the stage intro, a
// follow-up request when the stage is not yet covered, or the transition
// announcement when a move was just signalled.
func (f *InterviewFlow) stageContext(stage review.StageID, metrics review.CompletionMetrics, interactions int, signalled bool, target review.StageID) string {
	text := review.StageContext(stage, f.cfg)
	if text == "" {
		return ""
	}
	if signalled {
		if msg := review.TransitionMessage(target, f.cfg); msg != "" {
			return msg
		}
		return text
	}
	if !metrics.ReadyForNext && interactions >= 1 {
		if followUp := review.FollowUpPrompt(stage, metrics, f.cfg); followUp != "" {
			text += "\n\n" + followUp
		}
	}
	return text
}

// buildMessages converts the transcript into OpenAI messages framed by the
// system prompt and the stage context.
func (f *InterviewFlow) buildMessages(state review.ConversationState, emp EmployeeContext, stageContext string) []openai.ChatCompletionMessageParamUnion {
	history := state.Messages
	if f.historyLimit > 0 && len(history) > f.historyLimit {
		history = history[len(history)-f.historyLimit:]
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	messages = append(messages, openai.SystemMessage(buildSystemPrompt(f.systemPrompt, emp)))
	if state.InterviewID != 0 {
		messages = append(messages, openai.SystemMessage(fmt.Sprintf("This conversation is recorded as interview #%d.", state.InterviewID)))
	}
	for _, m := range history {
		switch m.Role {
		case review.RoleUser:
			messages = append(messages, openai.UserMessage(m.Content))
		case review.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		case review.RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		}
	}
	if stageContext != "" {
		messages = append(messages, openai.SystemMessage(stageContext))
	}
	return messages
}

// handleToolCalls executes every tool call, feeds the results back to the
// LLM and returns its user-facing reply.
func (f *InterviewFlow) handleToolCalls(ctx context.Context, interviewID int64, resp *genai.ToolCallResponse, messages []openai.ChatCompletionMessageParamUnion, snap StageSnapshot) (string, []models.ToolResult) {
	var names []string
	toolCalls := make([]openai.ChatCompletionMessageToolCallParam, 0, len(resp.ToolCalls))
	for _, tc := range resp.ToolCalls {
		names = append(names, tc.Function.Name)
		toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
			ID:   tc.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      tc.Function.Name,
				Arguments: string(tc.Function.Arguments),
			},
		})
	}
	slog.Info("InterviewFlow.handleToolCalls: executing tools", "interviewID", interviewID, "tools", names)

	// The assistant message carrying tool_calls must precede the tool results
	// that reference its call ids.
	assistant := openai.ChatCompletionAssistantMessageParam{
		Content: openai.ChatCompletionAssistantMessageParamContentUnion{
			OfString: param.NewOpt(resp.Content),
		},
		ToolCalls: toolCalls,
	}
	messages = append(messages, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})

	results := make([]models.ToolResult, 0, len(resp.ToolCalls))
	for _, tc := range resp.ToolCalls {
		result := f.tools.Execute(ctx, interviewID, toReviewToolCall(tc), snap)
		results = append(results, result)
		messages = append(messages, openai.ToolMessage(result.JSON(), tc.ID))
	}

	reply, err := f.llm.GenerateWithMessages(ctx, messages)
	if err != nil {
		slog.Error("InterviewFlow.handleToolCalls: failed to generate reply after tool execution", "error", err, "interviewID", interviewID)
		// Keep the turn alive with whatever the model said alongside the call.
		return resp.Content, results
	}
	return reply, results
}

// completeStage stamps the completion time of the stage just left. A stage
// that was never documented through a tool gets a placeholder summary.
func (f *InterviewFlow) completeStage(ctx context.Context, interviewID int64, stage review.StageID, metrics review.CompletionMetrics, interactions int) {
	if f.records == nil || interviewID == 0 || f.cfg.IsTerminal(stage) {
		return
	}
	now := time.Now().UTC()
	summary := models.StageSummary{
		InterviewID:      interviewID,
		StageName:        stage,
		StageOrder:       f.cfg.StageIndex(stage),
		SummaryText:      fmt.Sprintf("Stage '%s' completed.", stage),
		KeyPoints:        []string{fmt.Sprintf("Stage completed with %d interactions", interactions)},
		CompletionScore:  metrics.CompletenessScore,
		InteractionCount: interactions,
		CompletedAt:      &now,
	}

	existing, err := f.records.ListStageSummaries(ctx, interviewID)
	if err != nil {
		slog.Error("InterviewFlow.completeStage: failed to list stage summaries", "error", err, "interviewID", interviewID)
		return
	}
	for _, s := range existing {
		if s.StageName == stage {
			summary.SummaryText = s.SummaryText
			if len(s.KeyPoints) > 0 {
				summary.KeyPoints = s.KeyPoints
			}
			break
		}
	}
	if _, err := f.records.UpsertStageSummary(ctx, summary); err != nil {
		slog.Error("InterviewFlow.completeStage: failed to save stage summary", "error", err, "interviewID", interviewID, "stage", stage)
	}
}

func toReviewToolCall(tc genai.ToolCall) review.ToolCall {
	return review.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: string(tc.Function.Arguments)}
}

func toLLMResponse(resp *genai.ToolCallResponse) review.LLMResponse {
	out := review.LLMResponse{Content: resp.Content}
	for _, tc := range resp.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, toReviewToolCall(tc))
	}
	return out
}

// fallbackReply is used when the model returns no text at all.
func fallbackReply(stage review.StageID, metrics review.CompletionMetrics, cfg *review.Config) string {
	if followUp := review.FollowUpPrompt(stage, metrics, cfg); followUp != "" {
		return followUp
	}
	return "Thank you. Could you tell me a bit more?"
}
