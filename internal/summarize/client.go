package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fmueller/semisizer/internal/config"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

var (
	ErrEmptyTranscript = errors.New("transcript is empty; nothing to summarize")
	ErrEmptySummary    = errors.New("model returned an empty summary")
)

// Client talks to an OpenAI-compatible chat endpoint, by default the one
// Ollama serves under /v1.
type Client struct {
	api     *openai.Client
	model   string
	prefix  string
	greet   string
	timeout time.Duration
	logger  *zap.Logger
}

func NewClient(cfg config.LLMConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		apiCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	prefix := cfg.PromptPrefix
	if prefix == "" {
		prefix = config.DefaultPromptPrefix
	}
	greet := cfg.Greeting
	if greet == "" {
		greet = config.DefaultGreeting
	}
	model := cfg.Model
	if model == "" {
		model = config.DefaultLLMModel
	}

	return &Client{
		api:     openai.NewClientWithConfig(apiCfg),
		model:   model,
		prefix:  prefix,
		greet:   greet,
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

func (c *Client) Model() string {
	return c.model
}

// Greet sends a short message and succeeds only if the model answers. It is
// used as the readiness check before a model is handed out.
func (c *Client) Greet(ctx context.Context) error {
	started := time.Now()
	reply, err := c.complete(ctx, c.greet)
	if err != nil {
		return fmt.Errorf("initialize model %q: %w", c.model, err)
	}
	c.logger.Debug("model answered greeting", zap.String("model", c.model), zap.Int("reply_chars", len(reply)), zap.Duration("elapsed", time.Since(started)))
	return nil
}

func (c *Client) Summarize(ctx context.Context, transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", ErrEmptyTranscript
	}

	summary, err := c.complete(ctx, c.prefix+transcript)
	if err != nil {
		return "", fmt.Errorf("summarize with %q: %w", c.model, err)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", ErrEmptySummary
	}
	return summary, nil
}

func (c *Client) complete(ctx context.Context, content string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: content},
		},
	})
	if err != nil {
		return "", err
	}
	// No choices counts as empty content.
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
