package llm

import (
	"context"
)

// MockVisionClient is a configurable mock for testing drawing
// interpretation. Set the function field to control behavior in tests.
type MockVisionClient struct {
	// InterpretImageFunc is called when InterpretImage is invoked.
	// If nil, returns an empty string and nil error.
	InterpretImageFunc func(ctx context.Context, prompt string, systemMessage string, imagePNG []byte) (string, error)

	// Model is returned by GetModel. Defaults to "mock-model".
	Model string

	// InterpretImageCalls counts invocations for verification.
	InterpretImageCalls int
}

// NewMockVisionClient creates a new mock with sensible defaults.
func NewMockVisionClient() *MockVisionClient {
	return &MockVisionClient{Model: "mock-model"}
}

// InterpretImage implements VisionClient.
func (m *MockVisionClient) InterpretImage(ctx context.Context, prompt string, systemMessage string, imagePNG []byte) (string, error) {
	m.InterpretImageCalls++
	if m.InterpretImageFunc != nil {
		return m.InterpretImageFunc(ctx, prompt, systemMessage, imagePNG)
	}
	return "", nil
}

// GetModel implements VisionClient.
func (m *MockVisionClient) GetModel() string { return m.Model }

var _ VisionClient = (*MockVisionClient)(nil)
