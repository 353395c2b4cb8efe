package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionError_UnwrapsToInvalidTransition(t *testing.T) {
	var err error = &TransitionError{QueueLength: 950, RequiredThreshold: 800}
	wrapped := fmt.Errorf("return to take: %w", err)

	require.ErrorIs(t, wrapped, ErrInvalidTransition)

	var te *TransitionError
	require.True(t, errors.As(wrapped, &te))
	require.Equal(t, 950, te.QueueLength)
	require.Equal(t, 800, te.RequiredThreshold)
	require.Equal(t, 150, te.Remaining())
	require.Contains(t, te.Error(), "150 remaining")
}

func TestTransitionError_RemainingNeverNegative(t *testing.T) {
	te := &TransitionError{QueueLength: 10, RequiredThreshold: 800}
	require.Equal(t, 0, te.Remaining())
}
