package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Unique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for range 1000 {
		v, err := Generate(PrefixBook)
		require.NoError(t, err)
		_, dup := seen[v]
		require.False(t, dup, "duplicate id %s", v)
		seen[v] = struct{}{}
	}
}

func TestGenerate_CatalogPrefixes(t *testing.T) {
	for _, prefix := range []string{PrefixAuthor, PrefixCategory, PrefixBook, PrefixReview, PrefixUser} {
		t.Run(prefix, func(t *testing.T) {
			v, err := Generate(prefix)
			require.NoError(t, err)

			rest, ok := strings.CutPrefix(v, prefix+"-")
			require.True(t, ok, "id %q lacks prefix %q", v, prefix)
			assert.Len(t, rest, 21)
		})
	}
}

func TestMustGenerate(t *testing.T) {
	assert.NotPanics(t, func() {
		assert.True(t, strings.HasPrefix(MustGenerate(PrefixReview), "review-"))
	})
}
