package service

import (
	"testing"

	"clinedit-collab/internal/repository/memory"

	"github.com/stretchr/testify/assert"
)

func TestCheckAccess(t *testing.T) {
	s := NewAccessService(memory.NewShareTokenRepository())

	assert.NoError(t, s.CheckAccess("doc-1", "a-long-share-token"))
	// Cached on the second hit.
	assert.NoError(t, s.CheckAccess("doc-1", "a-long-share-token"))

	assert.ErrorIs(t, s.CheckAccess("doc-1", "short"), ErrInvalidShareToken)
}
