package converter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryCoverage(t *testing.T) {
	require.Len(t, categoryMapping, 13)
	used := map[int]bool{}
	for c := range categoryMapping {
		id, ok := ClassID(c)
		require.True(t, ok, c)
		assert.GreaterOrEqual(t, id, 0)
		assert.Less(t, id, len(Classes))
		used[id] = true
	}
	assert.False(t, used[2], "shoes has no source category")
	assert.False(t, used[5], "accessory has no source category")

	for _, unknown := range []string{"bag", "", "Short Sleeve Top", "shoes"} {
		_, ok := ClassID(unknown)
		assert.False(t, ok, unknown)
	}
}

func TestClassesOrder(t *testing.T) {
	assert.Equal(t, []string{"top", "bottom", "shoes", "dress", "outerwear", "accessory"}, Classes)
}
