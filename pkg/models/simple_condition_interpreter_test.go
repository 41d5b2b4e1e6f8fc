package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleConditionInterpreter_Evaluate(t *testing.T) {
	interp := SimpleConditionInterpreter{}

	context := map[string]any{
		"approved": true,
		"amount":   150,
		"rate":     0.5,
		"owner":    "alice",
		"review": map[string]any{
			"score": int64(8),
		},
	}

	tests := []struct {
		expression string
		want       bool
	}{
		{"", true},
		{"  ", true},
		{"true", true},
		{"false", false},
		{"exists approved", true},
		{"exists missing", false},
		{"exists review.score", true},
		{"exists review.missing", false},
		{"approved == true", true},
		{"approved == false", false},
		{"approved != false", true},
		{"amount == 150", true},
		{"amount == 151", false},
		{"amount != 151", true},
		{"rate == 0.5", true},
		{"owner == alice", true},
		{`owner == "alice"`, true},
		{"owner != bob", true},
		{"review.score == 8", true},
		{"review.score == 9", false},
	}

	for _, tt := range tests {
		t.Run(tt.expression, func(t *testing.T) {
			got, err := interp.Evaluate(tt.expression, context)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSimpleConditionInterpreter_MissingKeyNeverMatches(t *testing.T) {
	interp := SimpleConditionInterpreter{}

	got, err := interp.Evaluate("missing == 1", map[string]any{})
	require.NoError(t, err)
	assert.False(t, got)

	// A missing key compares unequal to any literal.
	got, err = interp.Evaluate("missing != 1", map[string]any{})
	require.NoError(t, err)
	assert.True(t, got)
}

func TestSimpleConditionInterpreter_UnsupportedExpression(t *testing.T) {
	interp := SimpleConditionInterpreter{}

	_, err := interp.Evaluate("amount > 100", map[string]any{"amount": 150})
	require.Error(t, err)
}
