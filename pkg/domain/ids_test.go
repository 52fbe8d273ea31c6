package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "resolute/pkg/errors"
)

// Parsing enforces the invariant that identifiers crossing a trust boundary
// are valid, non-empty, non-nil UUIDs.
func TestParseSubjectID(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseSubjectID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseSubjectID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseSubjectID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		want := uuid.New()
		id, err := ParseSubjectID(want.String())
		require.NoError(t, err)
		assert.Equal(t, SubjectID(want), id)
	})
}

func TestNewPairKey(t *testing.T) {
	t.Run("is order independent", func(t *testing.T) {
		assert.Equal(t, NewPairKey("rec-a", "rec-b"), NewPairKey("rec-b", "rec-a"))
	})

	t.Run("distinct pairs get distinct keys", func(t *testing.T) {
		assert.NotEqual(t, NewPairKey("rec-a", "rec-b"), NewPairKey("rec-a", "rec-c"))
	})
}
