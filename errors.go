package litesim

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAddress is returned by Connect for empty or placeholder addresses.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrDriverUnavailable is returned by Connect when no hardware driver is installed.
	ErrDriverUnavailable = errors.New("driver unavailable")
	// ErrHandshake means the link opened but the arm did not answer as expected.
	ErrHandshake = errors.New("handshake failed")
	// ErrAlreadyConnected is returned by Connect while a link is active.
	ErrAlreadyConnected = errors.New("already connected")
	// ErrConnectInProgress is returned when another connect or disconnect is running.
	ErrConnectInProgress = errors.New("connect already in progress")
	// ErrMotionInProgress is returned by Connect and Disconnect while a move is running.
	ErrMotionInProgress = errors.New("motion in progress")
	// ErrModeChanged ends a simulated move once the controller has switched to hardware.
	ErrModeChanged = errors.New("controller mode changed during motion")

	// ErrUnreachable means IK produced no usable solution.
	ErrUnreachable = errors.New("target unreachable")
	// ErrJointLimit means IK produced a solution outside the joint limits.
	ErrJointLimit = errors.New("solution violates joint limit")
	// ErrNoKinematics is returned by pose queries when no solver is configured.
	ErrNoKinematics = errors.New("no kinematics configured")

	// ErrCancelled matches every CancelledError.
	ErrCancelled = errors.New("motion cancelled")
)

// ConnectionError describes a failed attempt to reach an arm.
type ConnectionError struct {
	Address string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Address, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// CancelledError is returned from a motion command once the stop flag or
// the caller's context has been observed. It unwinds a script cleanly.
type CancelledError struct {
	Reason string
}

func (e *CancelledError) Error() string {
	return e.Reason
}

// Is makes errors.Is(err, ErrCancelled) hold.
func (e *CancelledError) Is(target error) bool {
	return target == ErrCancelled
}

// IsCancelled reports whether err is a user-requested stop.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
