package genai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openai/openai-go"

	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/intent"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp   openai.ChatCompletion
	err    error
	params openai.ChatCompletionNewParams
	calls  int
}

func (m *mockChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	m.calls++
	m.params = params
	return m.resp, m.err
}

func replyWith(content string) openai.ChatCompletion {
	return openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func userPrompt(text string) []openai.ChatCompletionMessageParamUnion {
	return []openai.ChatCompletionMessageParamUnion{openai.UserMessage(text)}
}

func TestGenerate_Success(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: replyWith("casual")}, model: DefaultModel}
	out, err := client.generate(context.Background(), "test", userPrompt("hello"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "casual" {
		t.Errorf("got %q, want casual", out)
	}
}

func TestGenerate_ServiceError(t *testing.T) {
	client := &Client{chat: &mockChatService{err: errors.New("service failure")}}
	_, err := client.generate(context.Background(), "test", userPrompt("hello"))
	if err == nil || !strings.Contains(err.Error(), "service failure") {
		t.Errorf("expected service failure error, got %v", err)
	}
}

func TestGenerate_NoChoices(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: openai.ChatCompletion{}}}
	_, err := client.ClassifyIntent(context.Background(), "hello", intent.AIContext{})
	if !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected ErrNoChoicesReturned, got %v", err)
	}
}

func TestGenerate_TokenLimits(t *testing.T) {
	mock := &mockChatService{resp: replyWith("ok")}
	client := &Client{chat: mock, model: "test-model", maxTokens: 50, maxCompletionTokens: 80}
	if _, err := client.generate(context.Background(), "test", userPrompt("u")); err != nil {
		t.Fatal(err)
	}
	if got := mock.params.MaxCompletionTokens.Value; got != 80 {
		t.Errorf("max completion tokens = %d, want 80", got)
	}
	if mock.params.MaxTokens.Valid() {
		t.Error("max tokens set alongside max completion tokens")
	}
	if string(mock.params.Model) != "test-model" {
		t.Errorf("model = %s", mock.params.Model)
	}
}

func TestNewClient_NoKey(t *testing.T) {
	_, err := NewClient()
	if !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestNewClient_WithKey(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"), WithModel("gpt-4o"), WithTemperature(0.3))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if cli == nil {
		t.Fatal("expected client instance, got nil")
	}
	if cli.model != "gpt-4o" || cli.temperature != 0.3 {
		t.Errorf("options not applied: model=%s temperature=%v", cli.model, cli.temperature)
	}
}
