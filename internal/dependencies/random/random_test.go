package random

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermIsPermutation(t *testing.T) {
	r := New()
	for n := 0; n < 20; n++ {
		p := Perm(r, n)
		require.Len(t, p, n)
		sorted := append([]int(nil), p...)
		sort.Ints(sorted)
		for i := range sorted {
			assert.Equal(t, i, sorted[i])
		}
	}
}

func TestStringUsesAlphabet(t *testing.T) {
	s := New().String(64, "AB")
	assert.Len(t, s, 64)
	assert.Empty(t, strings.Trim(s, "AB"))
}

func TestTokenIsUnique(t *testing.T) {
	a, b := Token("s_"), Token("s_")
	assert.True(t, strings.HasPrefix(a, "s_"))
	assert.NotEqual(t, a, b)
}
