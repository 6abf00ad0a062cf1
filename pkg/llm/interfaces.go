// Package llm provides vision-capable LLM client functionality for drawing
// interpretation.
package llm

import (
	"context"
)

// VisionClient is the interface for vision/LLM operations. Use it for
// dependency injection so drawing interpretation can be mocked in tests.
type VisionClient interface {
	// InterpretImage sends a rendered drawing page with an instruction
	// prompt and returns the raw model response text.
	InterpretImage(ctx context.Context, prompt string, systemMessage string, imagePNG []byte) (string, error)

	// GetModel returns the configured model name.
	GetModel() string
}

// Ensure the concrete clients implement VisionClient at compile time.
var (
	_ VisionClient = (*Client)(nil)
	_ VisionClient = (*AnthropicClient)(nil)
)
