package detector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palisade-sh/palisade/internal/core/domain"
)

func TestKeywordToxicityScore(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected float64
	}{
		{"clean", "what a lovely morning", 0.0},
		{"one hit", "I hate mondays", 0.3},
		{"two hits", "you stupid idiot", 0.6},
		{"three hits", "kill the attack with violence", 0.7},
		{"capped", "hate kill violence attack harm stupid idiot", 0.9},
		{"case insensitive", "You IDIOT", 0.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, keywordToxicityScore(tt.text), 1e-9)
		})
	}
}

func TestONNXToxicityDetector(t *testing.T) {
	d := &onnxToxicityDetector{}
	score, err := d.Score(context.Background(), "you stupid idiot", domain.RequestContext{})
	require.NoError(t, err)
	assert.Equal(t, 0.6, score)
}

func TestToxicityHFModel(t *testing.T) {
	assert.Equal(t, "unitary/toxic-bert", toxicityHFModel(ModelDetoxify))
	assert.Equal(t, "unitary/unbiased-toxic-roberta", toxicityHFModel(ModelUnbiased))
	assert.Equal(t, "unitary/multilingual-toxic-xlm-roberta", toxicityHFModel(ModelMultilingual))
}
