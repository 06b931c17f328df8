package expander

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	got := Expand("quantum computing")
	require.Len(t, got, 6)
	assert.Equal(t, []string{
		"What is the definition and core concept of 'quantum computing'?",
		"Why is 'quantum computing' important or relevant?",
		"How does 'quantum computing' work or what is its mechanism?",
		"When did 'quantum computing' become significant or what is its history?",
		"What are the main components or types of 'quantum computing'?",
		"What are the primary criticisms or challenges related to 'quantum computing'?",
	}, got)
}

func TestExpand_Deterministic(t *testing.T) {
	assert.Equal(t, Expand("What is OpenAI?"), Expand("What is OpenAI?"))
}

func TestExpand_Total(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"quotes", `it's "quoted"`},
		{"percent verbs", "100% %s %d"},
		{"unicode", "日本語の質問"},
		{"long", strings.Repeat("word ", 500)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Expand(tt.prompt)
			require.Len(t, got, len(Angles()))
			for _, q := range got {
				assert.Contains(t, q, tt.prompt)
			}
		})
	}
}

func TestExpandDetailed(t *testing.T) {
	got := ExpandDetailed("Go")
	plain := Expand("Go")
	require.Len(t, got, len(plain))
	for i, sq := range got {
		assert.Equal(t, Angles()[i], sq.Angle)
		assert.Equal(t, plain[i], sq.Text)
	}
	assert.Equal(t, AngleDefinition, got[0].Angle)
	assert.Equal(t, AngleCritique, got[len(got)-1].Angle)
}
