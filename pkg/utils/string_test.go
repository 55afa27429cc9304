package utils_test

import (
	"testing"

	"github.com/robalyx/shopledger/pkg/utils"
	"github.com/stretchr/testify/assert"
)

func TestCompressAllWhitespace(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "single space", input: "Corner Books", want: "Corner Books"},
		{name: "multiple spaces", input: "Corner    Books", want: "Corner Books"},
		{name: "newlines and spaces", input: "\n Corner\n\n  Books  \n", want: "Corner Books"},
		{name: "tabs", input: "Corner\t\tBooks", want: "Corner Books"},
		{name: "empty string", input: "", want: ""},
		{name: "only whitespace", input: "   \n\t   ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, utils.CompressAllWhitespace(tt.input))
		})
	}
}

func TestCompressWhitespacePreserveNewlines(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "single line", input: "parcel    arrived  late", want: "parcel arrived late"},
		{name: "multiple lines", input: "late   parcel\n  refund  issued ", want: "late parcel\nrefund issued"},
		{name: "blank line kept", input: "\nfirst\n\nsecond\n", want: "first\n\nsecond"},
		{name: "mixed line endings", input: "a  b\r\nc  d\re", want: "a b\nc d\ne"},
		{name: "only whitespace", input: "   \n\t   \n   ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, utils.CompressWhitespacePreserveNewlines(tt.input))
		})
	}
}

func TestTruncateRunes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc", utils.TruncateRunes("abcdef", 3))
	assert.Equal(t, "abc", utils.TruncateRunes("abc", 10))
	assert.Equal(t, "héł", utils.TruncateRunes("héłło", 3))
	assert.Equal(t, "abc", utils.TruncateRunes("abc", 0))
}
