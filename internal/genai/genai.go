// Package genai talks to the OpenAI chat API. The bot uses it as an optional
// intent classifier.
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/util"
)

// Defaults for completion requests.
const (
	DefaultModel       = string(openai.ChatModelGPT4oMini)
	DefaultTemperature = 0.1
	DefaultMaxTokens   = 200
)

var (
	// ErrNoAPIKey is returned by NewClient when no API key was configured.
	ErrNoAPIKey = errors.New("OpenAI API key not set")
	// ErrNoChoicesReturned is returned when the completion has no choices.
	ErrNoChoicesReturned = errors.New("no choices returned")
)

// chatService defines the minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// completionsService adapts the SDK's completion service to chatService.
type completionsService struct {
	svc openai.ChatCompletionService
}

func (s completionsService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := s.svc.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	chat                chatService
	model               string
	temperature         float64
	maxTokens           int
	maxCompletionTokens int
	debugMode           bool
	stateDir            string
}

// Opts holds client configuration.
type Opts struct {
	APIKey              string
	Model               string
	Temperature         float64
	MaxTokens           int
	MaxCompletionTokens int
	DebugMode           bool
	StateDir            string
}

// Option configures a Client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel sets the chat model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Opts) { o.Temperature = t }
}

// WithMaxTokens caps the response length.
func WithMaxTokens(n int) Option {
	return func(o *Opts) { o.MaxTokens = n }
}

// WithMaxCompletionTokens caps the response length for reasoning models,
// which reject max_tokens. It takes precedence over WithMaxTokens.
func WithMaxCompletionTokens(n int) Option {
	return func(o *Opts) { o.MaxCompletionTokens = n }
}

// WithDebugMode writes every request and response under stateDir/debug.
func WithDebugMode(enabled bool) Option {
	return func(o *Opts) { o.DebugMode = enabled }
}

// WithStateDir sets the directory debug logs are written to.
func WithStateDir(dir string) Option {
	return func(o *Opts) { o.StateDir = dir }
}

// NewClient creates a Client. An API key is required.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		Model:       DefaultModel,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	slog.Debug("genai.NewClient: created", "model", cfg.Model, "debug", cfg.DebugMode)
	return &Client{
		chat:                completionsService{svc: cli.Chat.Completions},
		model:               cfg.Model,
		temperature:         cfg.Temperature,
		maxTokens:           cfg.MaxTokens,
		maxCompletionTokens: cfg.MaxCompletionTokens,
		debugMode:           cfg.DebugMode,
		stateDir:            cfg.StateDir,
	}, nil
}

// generate runs one chat completion and returns the first choice's text.
// method labels the call in logs and debug files.
func (c *Client) generate(ctx context.Context, method string, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(c.temperature),
	}
	switch {
	case c.maxCompletionTokens > 0:
		params.MaxCompletionTokens = openai.Int(int64(c.maxCompletionTokens))
	case c.maxTokens > 0:
		params.MaxTokens = openai.Int(int64(c.maxTokens))
	}

	start := time.Now()
	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		slog.Warn("genai.generate: completion failed", "method", method, "model", c.model, "error", err)
		return "", fmt.Errorf("chat completion: %w", err)
	}
	c.writeDebugLog(method, params, resp)
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	slog.Debug("genai.generate: completed", "method", method, "model", c.model, "duration", time.Since(start))
	return resp.Choices[0].Message.Content, nil
}

// writeDebugLog stores one request/response pair as JSON. Failures are logged only.
func (c *Client) writeDebugLog(method string, params openai.ChatCompletionNewParams, resp openai.ChatCompletion) {
	if !c.debugMode || c.stateDir == "" {
		return
	}
	dir := filepath.Join(c.stateDir, "debug")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Warn("genai.writeDebugLog: mkdir failed", "dir", dir, "error", err)
		return
	}
	entry := map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"method":    method,
		"model":     c.model,
		"params":    params,
		"response":  resp,
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		slog.Warn("genai.writeDebugLog: marshal failed", "error", err)
		return
	}
	name := fmt.Sprintf("%s_%s_%s.json", time.Now().UTC().Format("20060102T150405"), method, util.GenerateRandomHex(6))
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		slog.Warn("genai.writeDebugLog: write failed", "error", err)
	}
}
