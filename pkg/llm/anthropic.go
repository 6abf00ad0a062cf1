package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"
)

// AnthropicClient provides access to the Anthropic Messages API for vision.
type AnthropicClient struct {
	client    *anthropic.Client
	model     string
	maxTokens int
	logger    *zap.Logger
}

// NewAnthropicClient creates a vision client backed by the Anthropic API.
func NewAnthropicClient(apiKey, model string, logger *zap.Logger) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}
	return &AnthropicClient{
		client:    anthropic.NewClient(apiKey),
		model:     model,
		maxTokens: 4096,
		logger:    logger.Named("llm-anthropic"),
	}, nil
}

// InterpretImage sends the drawing page inline as base64 with the prompt.
func (c *AnthropicClient) InterpretImage(ctx context.Context, prompt string, systemMessage string, imagePNG []byte) (string, error) {
	c.logger.Debug("vision request",
		zap.String("model", c.model),
		zap.Int("prompt_len", len(prompt)),
		zap.Int("image_bytes", len(imagePNG)))

	start := time.Now()
	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(c.model),
		System:    systemMessage,
		MaxTokens: c.maxTokens,
		Messages: []anthropic.Message{
			{
				Role: anthropic.RoleUser,
				Content: []anthropic.MessageContent{
					anthropic.NewImageMessageContent(
						anthropic.NewMessageContentSource(anthropic.MessagesContentSourceTypeBase64, "image/png", imagePNG)),
					anthropic.NewTextMessageContent(prompt),
				},
			},
		},
	})
	if err != nil {
		return "", ClassifyError(err)
	}
	if len(resp.Content) == 0 {
		return "", NewError(ErrorTypeResponse, "empty message content", false, nil)
	}

	text := resp.Content[0].GetText()
	c.logger.Debug("vision response",
		zap.Duration("duration", time.Since(start)),
		zap.Int("response_len", len(text)))
	return text, nil
}

// GetModel returns the configured model name.
func (c *AnthropicClient) GetModel() string { return c.model }
