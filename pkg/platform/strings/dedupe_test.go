package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	t.Run("removes duplicates and empties preserving order", func(t *testing.T) {
		got := DedupeAndTrim([]string{"  foo ", "bar", "foo", "", "  "})
		assert.Equal(t, []string{"foo", "bar"}, got)
	})

	t.Run("empty input passes through", func(t *testing.T) {
		assert.Empty(t, DedupeAndTrim(nil))
	})
}

func TestSortedUnion(t *testing.T) {
	t.Run("merges and sorts across slices", func(t *testing.T) {
		got := SortedUnion([]string{"EMAIL", "US_SSN"}, []string{"PHONE", "EMAIL"})
		assert.Equal(t, []string{"EMAIL", "PHONE", "US_SSN"}, got)
	})

	t.Run("drops blank elements", func(t *testing.T) {
		got := SortedUnion([]string{" ", "EMAIL"}, nil)
		assert.Equal(t, []string{"EMAIL"}, got)
	})
}
