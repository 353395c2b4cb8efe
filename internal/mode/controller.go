// Package mode holds the per-room dispatch state machine: realtime or take,
// plus the emergency flag set when an overflowing backlog forces realtime.
package mode

import (
	"captioncast/internal/errs"
	"fmt"
)

type Mode string

const (
	Realtime Mode = "realtime"
	Take     Mode = "take"
)

func Parse(s string) (Mode, error) {
	switch Mode(s) {
	case Realtime, Take:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w: %q", errs.ErrInvalidMode, s)
}

// Reason explains a mode change to observers.
type Reason string

const (
	ReasonManual        Reason = "manual"
	ReasonEmergencyAuto Reason = "emergency-auto"
	ReasonManualReturn  Reason = "manual-return"
)

type State struct {
	Mode      Mode `json:"mode"`
	Emergency bool `json:"emergency"`
}

// Controller is not safe for concurrent use; the owning room serialises it.
// Emergency is only ever true while the mode is Realtime.
type Controller struct {
	mode      Mode
	emergency bool
}

func NewController() *Controller {
	return &Controller{mode: Realtime}
}

func (c *Controller) Mode() Mode      { return c.mode }
func (c *Controller) Emergency() bool { return c.emergency }
func (c *Controller) State() State    { return State{Mode: c.mode, Emergency: c.emergency} }

// SetRealtime is always allowed and leaves the emergency flag alone; only a
// successful return to take clears it.
func (c *Controller) SetRealtime() (changed bool) {
	changed = c.mode != Realtime
	c.mode = Realtime
	return changed
}

// EnterTake switches to take mode. While an emergency is active, or when the
// caller asks for an explicit return, the backlog must have drained into the
// recovery band (queueLen <= returnLimit).
func (c *Controller) EnterTake(queueLen, returnLimit int, reason Reason) error {
	if (c.emergency || reason == ReasonManualReturn) && queueLen > returnLimit {
		return &errs.TransitionError{QueueLength: queueLen, RequiredThreshold: returnLimit}
	}
	c.mode = Take
	c.emergency = false
	return nil
}

// ForceEmergency flips take mode to realtime with the emergency flag raised.
// It reports false when the room is not in take mode, so repeated overflow
// signals while already forced are no-ops.
func (c *Controller) ForceEmergency() bool {
	if c.mode != Take {
		return false
	}
	c.mode = Realtime
	c.emergency = true
	return true
}
