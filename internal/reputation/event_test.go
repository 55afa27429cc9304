package reputation_test

import (
	"testing"

	"github.com/robalyx/shopledger/internal/reputation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOptionalID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  *int64
	}{
		{"", nil},
		{"   ", nil},
		{"42", ptr(int64(42))},
		{" 7 ", ptr(int64(7))},
		{"-3", ptr(int64(-3))},
		{"12.0", ptr(int64(12))},
		{"12.5", nil},
		{"abc", nil},
		{"1e3", ptr(int64(1000))},
	}

	for _, tt := range tests {
		got := reputation.ParseOptionalID(tt.input)
		if tt.want == nil {
			assert.Nil(t, got, "input %q", tt.input)
			continue
		}
		require.NotNil(t, got, "input %q", tt.input)
		assert.Equal(t, *tt.want, *got, "input %q", tt.input)
	}
}

func TestTransitionChanged(t *testing.T) {
	t.Parallel()

	assert.False(t, (&reputation.Transition{Before: 50, After: 50}).Changed())
	assert.True(t, (&reputation.Transition{Before: 50, After: 49.5}).Changed())
}
