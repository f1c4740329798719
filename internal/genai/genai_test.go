package genai

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp       openai.ChatCompletion
	err        error
	lastParams openai.ChatCompletionNewParams
}

func (m *mockChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	m.lastParams = params
	return m.resp, m.err
}

func textCompletion(content string) openai.ChatCompletion {
	return openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func newTestClient(chat chatService) *Client {
	return &Client{chat: chat, model: "test-model", temperature: DefaultTemperature}
}

func TestGeneratePrompt_Success(t *testing.T) {
	mock := &mockChatService{resp: textCompletion("Hello World")}
	client := newTestClient(mock)

	out, err := client.GeneratePrompt(context.Background(), "system prompt", "user prompt")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "Hello World" {
		t.Errorf("expected 'Hello World', got '%s'", out)
	}
	if len(mock.lastParams.Messages) != 2 {
		t.Errorf("expected system and user messages, got %d", len(mock.lastParams.Messages))
	}
	if string(mock.lastParams.Model) != "test-model" {
		t.Errorf("expected model test-model, got %s", mock.lastParams.Model)
	}
}

func TestGeneratePrompt_ServiceError(t *testing.T) {
	client := newTestClient(&mockChatService{err: errors.New("service failure")})
	_, err := client.GeneratePrompt(context.Background(), "sys", "usr")
	if err == nil || !strings.Contains(err.Error(), "service failure") {
		t.Errorf("expected service failure error, got %v", err)
	}
}

func TestGeneratePrompt_NoChoices(t *testing.T) {
	client := newTestClient(&mockChatService{resp: openai.ChatCompletion{}})
	_, err := client.GeneratePrompt(context.Background(), "sys", "usr")
	if !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected no choices returned error, got %v", err)
	}
}

func TestGenerateWithTools_ParsesToolCalls(t *testing.T) {
	resp := openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Content: "Documenting that now.",
				ToolCalls: []openai.ChatCompletionMessageToolCall{{
					ID: "call_1",
					Function: openai.ChatCompletionMessageToolCallFunction{
						Name:      "document_advancement",
						Arguments: `{"description":"Led the migration"}`,
					},
				}},
			},
		}},
	}
	mock := &mockChatService{resp: resp}
	client := newTestClient(mock)

	tools := []openai.ChatCompletionToolParam{{
		Function: shared.FunctionDefinitionParam{Name: "document_advancement"},
	}}
	out, err := client.GenerateWithTools(context.Background(), []openai.ChatCompletionMessageParamUnion{openai.UserMessage("hi")}, tools)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.HasToolCalls() || len(out.ToolCalls) != 1 {
		t.Fatalf("expected one tool call, got %+v", out)
	}
	call := out.ToolCalls[0]
	if call.ID != "call_1" || call.Function.Name != "document_advancement" {
		t.Errorf("unexpected tool call %+v", call)
	}
	var args map[string]string
	if err := json.Unmarshal(call.Function.Arguments, &args); err != nil || args["description"] != "Led the migration" {
		t.Errorf("unexpected arguments %s (%v)", call.Function.Arguments, err)
	}
	if len(mock.lastParams.Tools) != 1 {
		t.Errorf("expected tools to be forwarded, got %d", len(mock.lastParams.Tools))
	}
}

func TestGenerateWithTools_PlainReply(t *testing.T) {
	client := newTestClient(&mockChatService{resp: textCompletion("Tell me more.")})
	out, err := client.GenerateWithTools(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.HasToolCalls() || out.Content != "Tell me more." {
		t.Errorf("unexpected response %+v", out)
	}
}

func TestNewClient_NoKey(t *testing.T) {
	_, err := NewClient()
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestNewClient_WithKey(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"), WithModel("gpt-4o-mini"), WithTemperature(0.5))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if cli.Model() != "gpt-4o-mini" || cli.temperature != 0.5 {
		t.Errorf("options not applied: model=%s temperature=%v", cli.Model(), cli.temperature)
	}
}

func TestDebugLogging(t *testing.T) {
	tempDir := t.TempDir()
	client := newTestClient(&mockChatService{resp: textCompletion("Test response")})
	client.debugMode = true
	client.stateDir = tempDir

	if _, err := client.GeneratePrompt(context.Background(), "System prompt", "User prompt"); err != nil {
		t.Fatalf("GeneratePrompt failed: %v", err)
	}

	files, err := os.ReadDir(filepath.Join(tempDir, "debug"))
	if err != nil {
		t.Fatalf("Failed to read debug directory: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected one debug file, got %d", len(files))
	}
	content, err := os.ReadFile(filepath.Join(tempDir, "debug", files[0].Name()))
	if err != nil {
		t.Fatalf("Failed to read debug file: %v", err)
	}
	var entry map[string]interface{}
	if err := json.Unmarshal(content, &entry); err != nil {
		t.Fatalf("Failed to unmarshal debug log: %v", err)
	}
	for _, field := range []string{"timestamp", "method", "model", "params", "response"} {
		if _, ok := entry[field]; !ok {
			t.Errorf("Required field '%s' missing from debug log", field)
		}
	}
	if entry["method"] != "GeneratePrompt" {
		t.Errorf("Expected method 'GeneratePrompt', got %v", entry["method"])
	}
}

func TestDebugLoggingDisabled(t *testing.T) {
	tempDir := t.TempDir()
	client := newTestClient(&mockChatService{resp: textCompletion("Test response")})
	client.stateDir = tempDir

	if _, err := client.GeneratePrompt(context.Background(), "System prompt", "User prompt"); err != nil {
		t.Fatalf("GeneratePrompt failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "debug")); !os.IsNotExist(err) {
		t.Errorf("Debug directory should not be created when debug mode is disabled")
	}
}
