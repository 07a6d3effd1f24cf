package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvariantError(t *testing.T) {
	err := NewInvariantError("MutationQueue", "batch id went backwards")

	assert.True(t, errors.Is(err, ErrInvariant))
	assert.Contains(t, err.Error(), "MutationQueue")
	assert.Contains(t, err.Error(), "batch id went backwards")
}
