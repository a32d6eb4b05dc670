package analyze

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// chatClient runs analysis through the OpenAI chat completions API, which
// Azure OpenAI deployments share.
type chatClient struct {
	client      openai.Client
	model       string
	temperature float64
	maxChars    int
	// ready reports ErrNotConfigured before any request is sent.
	ready  func() error
	logger *slog.Logger
}

func (c *chatClient) Analyze(ctx context.Context, text string) (Result, error) {
	if err := c.ready(); err != nil {
		return Result{}, err
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemPrompt),
			openai.UserMessage(BuildPrompt(text, c.maxChars)),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
		Temperature: openai.Float(c.temperature),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			msg := apiErr.Message
			if msg == "" {
				msg = strings.TrimSpace(apiErr.RawJSON())
			}
			return Result{}, fmt.Errorf("chat api error: status %d: %s", apiErr.StatusCode, truncate(msg, 300))
		}
		return Result{}, fmt.Errorf("chat request failed: %w", err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return Result{}, ErrEmptyResponse
	}

	result, err := Normalize(resp.Choices[0].Message.Content)
	if err != nil {
		return Result{}, err
	}
	result.RawOutput = resp.RawJSON()

	c.logger.Debug("analysis completed", "model", c.model, "topics", len(result.Topics))
	return result, nil
}

// truncate caps s at n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

func newOpenAI(cfg *Config, logger *slog.Logger) *chatClient {
	key := cfg.OpenAI.APIKey
	return &chatClient{
		client: openai.NewClient(
			option.WithBaseURL(cfg.OpenAI.BaseURL),
			option.WithAPIKey(key),
		),
		model:       cfg.Model,
		temperature: cfg.TemperatureValue(),
		maxChars:    cfg.MaxTextChars,
		logger:      logger,
		ready: func() error {
			if key == "" {
				return fmt.Errorf("openai: %w", ErrNotConfigured)
			}
			return nil
		},
	}
}
