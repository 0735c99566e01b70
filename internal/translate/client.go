// Package translate talks to an OpenAI-compatible chat completions API.
package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"translate-tg-bot/internal/config"
	apperrors "translate-tg-bot/internal/errors"
)

// Client handles communication with the completion provider
type Client struct {
	api    *openai.Client
	model  string
	prompt *PromptTemplate
	logger *slog.Logger
}

// NewClient creates a new translation client
func NewClient(cfg config.TranslatorConfig, logger *slog.Logger) (*Client, error) {
	prompt, err := NewPromptTemplate(cfg.PromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("load prompt: %w", err)
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	apiCfg.HTTPClient = &http.Client{
		Timeout: cfg.Timeout,
	}

	return &Client{
		api:    openai.NewClientWithConfig(apiCfg),
		model:  cfg.Model,
		prompt: prompt,
		logger: logger,
	}, nil
}

// Translate sends the text through the prompt template and returns the
// first completion. Every failure wraps errors.ErrTranslationFailed.
func (c *Client) Translate(ctx context.Context, text string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: c.prompt.Render(text)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperrors.ErrTranslationFailed, describeAPIError(err))
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", apperrors.ErrTranslationFailed)
	}

	c.logger.Debug("completion received",
		"completion_id", resp.ID,
		"total_tokens", resp.Usage.TotalTokens,
	)

	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", fmt.Errorf("%w: empty completion", apperrors.ErrTranslationFailed)
	}
	return out, nil
}

// CheckHealth verifies the provider is reachable with the configured key
func (c *Client) CheckHealth(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := c.api.ListModels(ctx); err != nil {
		if code := statusCode(err); code != 0 {
			return fmt.Errorf("unhealthy: status %d", code)
		}
		return err
	}
	return nil
}

// describeAPIError flattens the SDK's error types into "server returned" form
func describeAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("server returned %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("server returned %d: %w", reqErr.HTTPStatusCode, err)
	}
	return fmt.Errorf("create chat completion: %w", err)
}

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
