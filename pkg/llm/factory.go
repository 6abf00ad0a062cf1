package llm

import (
	"fmt"

	"go.uber.org/zap"
)

// ProviderConfig selects and configures a vision provider.
type ProviderConfig struct {
	// Provider is "openai" (any OpenAI-compatible endpoint) or "anthropic".
	Provider string
	Endpoint string
	Model    string
	APIKey   string
}

// NewVisionClient creates the configured vision client. Returns VisionClient
// so callers can inject mocks.
func NewVisionClient(cfg *ProviderConfig, logger *zap.Logger) (VisionClient, error) {
	switch cfg.Provider {
	case "", "openai":
		return NewClient(&Config{
			Endpoint: cfg.Endpoint,
			Model:    cfg.Model,
			APIKey:   cfg.APIKey,
		}, logger)
	case "anthropic":
		return NewAnthropicClient(cfg.APIKey, cfg.Model, logger)
	default:
		return nil, fmt.Errorf("unknown vision provider %q", cfg.Provider)
	}
}
