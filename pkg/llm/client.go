package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Client provides access to OpenAI-compatible vision endpoints.
type Client struct {
	client   *openai.Client
	endpoint string
	model    string
	logger   *zap.Logger
}

// Config holds configuration for creating a vision client.
type Config struct {
	Endpoint string // Base URL, e.g. "https://api.openai.com/v1"
	Model    string // Model name, e.g. "gpt-4o"
	APIKey   string // Optional for local endpoints
}

// NewClient creates a new OpenAI-compatible vision client.
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")

	return &Client{
		client:   openai.NewClientWithConfig(clientConfig),
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		logger:   logger.Named("llm"),
	}, nil
}

// InterpretImage sends the drawing page as an inline data URL alongside the
// instruction prompt and returns the model's text response.
func (c *Client) InterpretImage(ctx context.Context, prompt string, systemMessage string, imagePNG []byte) (string, error) {
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(imagePNG)

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemMessage},
		{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{
					Type:     openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{URL: dataURL, Detail: openai.ImageURLDetailHigh},
				},
				{Type: openai.ChatMessagePartTypeText, Text: prompt},
			},
		},
	}

	c.logger.Debug("vision request",
		zap.String("model", c.model),
		zap.Int("prompt_len", len(prompt)),
		zap.Int("image_bytes", len(imagePNG)))

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
		// Extraction task: pin decoding as close to deterministic as the
		// endpoint allows.
		Temperature: 0,
	})
	if err != nil {
		return "", ClassifyError(err)
	}
	if len(resp.Choices) == 0 {
		return "", NewError(ErrorTypeResponse, "empty completion", false, nil)
	}

	c.logger.Debug("vision response",
		zap.Duration("duration", time.Since(start)),
		zap.Int("response_len", len(resp.Choices[0].Message.Content)))

	return resp.Choices[0].Message.Content, nil
}

// GetModel returns the configured model name.
func (c *Client) GetModel() string { return c.model }
