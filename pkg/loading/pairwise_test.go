package loading

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{"plain", "a b", []string{"a", "b"}},
		{"extra whitespace", "  a\t\tb   ", []string{"a", "b"}},
		{"weight", "a b 0.5", []string{"a", "b", "0.5"}},
		{"quoted", `"node one" "node two"`, []string{"node one", "node two"}},
		{"quoted between bare", `a "b c" d`, []string{"a", "b c", "d"}},
		{"comment", "a b // trailing", []string{"a", "b"}},
		{"comment glued to token", "a b//c", []string{"a", "b"}},
		{"whole line comment", "// nothing here", nil},
		{"slashes inside quotes", `"http://x" y`, []string{"http://x", "y"}},
		{"unterminated quote", `a "b c`, []string{"a", "b c"}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tokenize(tt.line))
		})
	}
}

func TestParsePairwise(t *testing.T) {
	input := strings.Join([]string{
		"// header",
		"a b",
		"b c 2.5",
		"lonely",
		`"x y" a not-a-number`,
		"",
	}, "\n")

	t.Run("pairs", func(t *testing.T) {
		pairs, err := ParsePairwise(context.Background(), strings.NewReader(input), 0, nil)
		require.NoError(t, err)
		assert.Equal(t, []Pair{
			{Source: "a", Target: "b"},
			{Source: "b", Target: "c", Weight: 2.5, HasWeight: true},
			{Source: "x y", Target: "a"},
		}, pairs)
	})

	t.Run("progress increases to 100", func(t *testing.T) {
		var reported []int
		_, err := ParsePairwise(context.Background(), strings.NewReader(input), int64(len(input)),
			func(p int) { reported = append(reported, p) })
		require.NoError(t, err)

		require.NotEmpty(t, reported)
		assert.IsIncreasing(t, reported)
		assert.Equal(t, 100, reported[len(reported)-1])
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := ParsePairwise(ctx, strings.NewReader(input), 0, nil)
		assert.ErrorIs(t, err, ErrCancelled)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestParsePairwiseWeightsAndQuotedSlashes(t *testing.T) {
	input := strings.Join([]string{
		`"http://a" b 0`,
		`c "d // e" oops`,
		`f g // 3`,
	}, "\n")

	pairs, err := ParsePairwise(context.Background(), strings.NewReader(input), 0, nil)
	require.NoError(t, err)
	assert.Equal(t, []Pair{
		{Source: "http://a", Target: "b", Weight: 0, HasWeight: true},
		{Source: "c", Target: "d // e"},
		{Source: "f", Target: "g"},
	}, pairs)
}
