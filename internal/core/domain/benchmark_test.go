package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyResult(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		blocked  bool
		want     string
	}{
		{"jailbreak blocked", LabelJailbreak, true, ResultTruePositive},
		{"jailbreak allowed", LabelJailbreak, false, ResultFalseNegative},
		{"benign blocked", LabelBenign, true, ResultFalsePositive},
		{"benign allowed", LabelBenign, false, ResultTrueNegative},
		{"unknown label treated as benign", "weird", true, ResultFalsePositive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyResult(tt.expected, tt.blocked))
		})
	}
}
