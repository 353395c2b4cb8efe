package mode

import (
	"captioncast/internal/errs"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_StartsRealtime(t *testing.T) {
	c := NewController()
	assert.Equal(t, State{Mode: Realtime, Emergency: false}, c.State())
}

func TestParse(t *testing.T) {
	m, err := Parse("take")
	require.NoError(t, err)
	assert.Equal(t, Take, m)

	_, err = Parse("TAKE!")
	require.ErrorIs(t, err, errs.ErrInvalidMode)
}

func TestController_ManualToggle(t *testing.T) {
	c := NewController()
	require.NoError(t, c.EnterTake(0, 800, ReasonManual))
	assert.Equal(t, Take, c.Mode())

	assert.True(t, c.SetRealtime())
	assert.False(t, c.SetRealtime())
	assert.Equal(t, Realtime, c.Mode())
	assert.False(t, c.Emergency())

	// Without an emergency a manual toggle ignores the backlog length.
	require.NoError(t, c.EnterTake(5000, 800, ReasonManual))
}

func TestController_ForceEmergencyOnlyFromTake(t *testing.T) {
	c := NewController()
	assert.False(t, c.ForceEmergency(), "realtime cannot be forced")
	assert.False(t, c.Emergency())

	require.NoError(t, c.EnterTake(0, 800, ReasonManual))
	assert.True(t, c.ForceEmergency())
	assert.Equal(t, State{Mode: Realtime, Emergency: true}, c.State())

	assert.False(t, c.ForceEmergency(), "second overflow must not re-force")
}

func TestController_RecoveryBand(t *testing.T) {
	c := NewController()
	require.NoError(t, c.EnterTake(0, 800, ReasonManual))
	require.True(t, c.ForceEmergency())

	for _, reason := range []Reason{ReasonManual, ReasonManualReturn} {
		err := c.EnterTake(801, 800, reason)
		var te *errs.TransitionError
		require.True(t, errors.As(err, &te), reason)
		assert.Equal(t, 801, te.QueueLength)
		assert.Equal(t, 800, te.RequiredThreshold)
		assert.Equal(t, State{Mode: Realtime, Emergency: true}, c.State())
	}

	require.NoError(t, c.EnterTake(800, 800, ReasonManual))
	assert.Equal(t, State{Mode: Take, Emergency: false}, c.State())
}

func TestController_SetRealtimeKeepsEmergency(t *testing.T) {
	c := NewController()
	require.NoError(t, c.EnterTake(0, 800, ReasonManual))
	c.ForceEmergency()
	c.SetRealtime()
	assert.True(t, c.Emergency())
}

func TestController_ExplicitReturnChecksBandWithoutEmergency(t *testing.T) {
	c := NewController()
	err := c.EnterTake(900, 800, ReasonManualReturn)
	require.ErrorIs(t, err, errs.ErrInvalidTransition)
	require.NoError(t, c.EnterTake(100, 800, ReasonManualReturn))
}
