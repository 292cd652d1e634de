package litesim

import (
	"context"
)

// FaultCode is the controller error and warning pair reported by the arm.
type FaultCode struct {
	Error int `json:"error"`
	Warn  int `json:"warn"`
}

// HardwareLink is the narrow surface the controller needs from a vendor
// driver. Angles are degrees, positions millimetres. Motion commands return
// the device's result code.
type HardwareLink interface {
	Connected() bool

	MotionEnable(enable bool) error
	SetMode(mode int) error
	SetState(state int) error
	CleanWarn() error
	CleanError() error

	SetServoAngle(angles JointState, speed float64, wait bool) (int, error)
	SetPosition(pose Pose, speed float64, wait bool) (int, error)

	ServoAngle() (JointState, error)
	Position() (Pose, error)
	ErrWarnCode() (FaultCode, error)

	Disconnect() error
}

// Driver opens hardware links. It is chosen once at startup.
type Driver interface {
	// Available reports whether this driver can reach real hardware at all.
	Available() bool
	Dial(ctx context.Context, address string) (HardwareLink, error)
}

// NullDriver is installed when no hardware driver is present. The
// controller then only ever runs in simulation.
type NullDriver struct{}

// Available always reports false.
func (NullDriver) Available() bool { return false }

// Dial always fails with ErrDriverUnavailable.
func (NullDriver) Dial(context.Context, string) (HardwareLink, error) {
	return nil, ErrDriverUnavailable
}
