package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
		wantErr  bool
	}{
		{
			name:     "bare array",
			response: `[{"label": "OD"}]`,
			want:     `[{"label": "OD"}]`,
		},
		{
			name:     "markdown fenced",
			response: "```json\n[{\"label\": \"OD\"}]\n```",
			want:     `[{"label": "OD"}]`,
		},
		{
			name:     "surrounding prose",
			response: `Here is what I found: [{"label": "OD"}] hope that helps`,
			want:     `[{"label": "OD"}]`,
		},
		{
			name:     "think tags stripped",
			response: "<think>the drawing shows a shaft</think>\n[{\"label\": \"OD\"}]",
			want:     `[{"label": "OD"}]`,
		},
		{
			name:     "object response",
			response: `{"annotations": []}`,
			want:     `{"annotations": []}`,
		},
		{
			name:     "brackets inside strings",
			response: `[{"label": "slot [4x]"}]`,
			want:     `[{"label": "slot [4x]"}]`,
		},
		{
			name:     "no json at all",
			response: "I could not read the drawing.",
			wantErr:  true,
		},
		{
			name:     "unbalanced",
			response: `[{"label": "OD"`,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.response)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
