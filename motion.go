package litesim

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.viam.com/utils"
)

type moveOptions struct {
	speed   float64
	radians bool
	wait    bool
	silent  bool
}

// MoveOption adjusts a single motion command.
type MoveOption func(*moveOptions)

// WithSpeed sets the command speed: deg/s for joint moves, mm/s for
// Cartesian moves. Values of zero or less select the configured default.
func WithSpeed(speed float64) MoveOption {
	return func(o *moveOptions) { o.speed = speed }
}

// Radians marks joint targets as radians.
func Radians() MoveOption {
	return func(o *moveOptions) { o.radians = true }
}

// NoWait returns as soon as the target is applied or sent.
func NoWait() MoveOption {
	return func(o *moveOptions) { o.wait = false }
}

// Silent suppresses per-waypoint IK rejection messages.
func Silent() MoveOption {
	return func(o *moveOptions) { o.silent = true }
}

func collectOptions(opts []MoveOption) moveOptions {
	o := moveOptions{wait: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// MoveSettings is the resolved form of a set of MoveOptions, for Commander
// implementations other than Controller. A zero Speed means the default.
type MoveSettings struct {
	Speed   float64
	Radians bool
	Wait    bool
	Silent  bool
}

// ResolveOptions applies opts over the defaults.
func ResolveOptions(opts ...MoveOption) MoveSettings {
	o := collectOptions(opts)
	return MoveSettings{Speed: o.speed, Radians: o.radians, Wait: o.wait, Silent: o.silent}
}

// SetJointAngles moves every axis to target. Out-of-range axes are clamped
// with a warning per axis; the command itself is never rejected.
func (c *Controller) SetJointAngles(ctx context.Context, target JointState, opts ...MoveOption) (int, error) {
	o := collectOptions(opts)
	if err := c.checkControls(ctx); err != nil {
		return CodeOK, err
	}

	if o.radians {
		target = JointsFromRadians(target)
	}
	speed := o.speed
	if speed <= 0 {
		speed = c.cfg.JointSpeed
	}
	clamped := c.clampJoints(target)

	c.moving.Store(true)
	defer c.moving.Store(false)

	if link := c.hardware(); link != nil {
		code, err := link.SetServoAngle(clamped, speed, false)
		if err != nil {
			return code, fmt.Errorf("failed to send joint move: %w", err)
		}
		if code != CodeOK {
			c.cc.Logf("[REAL] Joint move returned code %d", code)
			return code, nil
		}
		if !o.wait {
			return CodeOK, nil
		}
		return CodeOK, c.waitFor(ctx, func() bool {
			return c.Joints().MaxDelta(clamped) < c.cfg.JointTolerance
		})
	}

	if !o.wait {
		if !c.setSimJoints(clamped) {
			return CodeOK, ErrModeChanged
		}
		return CodeOK, nil
	}

	start := c.Joints()
	duration := c.scaledDuration(start.MaxDelta(clamped) / speed)
	return CodeOK, c.interpolate(ctx, start, clamped, duration)
}

// Jog applies target at once for manual control: no interpolation, no wait,
// and the stop and pause flags are ignored. Out-of-range axes are clamped.
// A connected arm is sent the target at the default joint speed.
func (c *Controller) Jog(ctx context.Context, target JointState) (int, error) {
	if !c.moving.CompareAndSwap(false, true) {
		return CodeOK, ErrMotionInProgress
	}
	defer c.moving.Store(false)

	clamped := c.clampJoints(target)
	if link := c.hardware(); link != nil {
		code, err := link.SetServoAngle(clamped, c.cfg.JointSpeed, false)
		if err != nil {
			return code, fmt.Errorf("failed to send jog: %w", err)
		}
		if code != CodeOK {
			c.cc.Logf("[REAL] Jog returned code %d", code)
		}
		return code, nil
	}
	if !c.setSimJoints(clamped) {
		return CodeOK, ErrModeChanged
	}
	return CodeOK, nil
}

func (c *Controller) clampJoints(target JointState) JointState {
	clamped, events := c.limits.Clamp(target, c.cfg.JointClampEpsilon)
	for _, ev := range events {
		c.logger.Warnf("Joint %d angle %.2f deg outside limit, clamping to %.2f deg", ev.Joint+1, ev.Requested, ev.Applied)
		c.cc.Logf("[SAFETY] %s", ev)
	}
	return clamped
}

// scaledDuration applies the speed multiplier and simulation factor to a
// nominal duration in seconds and floors the result at 100ms.
func (c *Controller) scaledDuration(seconds float64) time.Duration {
	seconds /= math.Max(0.01, c.SpeedMultiplier())
	seconds /= c.cfg.SimSpeedFactor
	if seconds < 0.1 || math.IsNaN(seconds) {
		seconds = 0.1
	}
	return time.Duration(seconds * float64(time.Second))
}

// interpolationSteps is ceil(duration / step interval), at least one.
func (c *Controller) interpolationSteps(duration time.Duration) int {
	steps := int(math.Ceil(float64(duration) / float64(c.cfg.StepInterval)))
	if steps < 1 {
		steps = 1
	}
	return steps
}

// interpolate steps linearly from start to target. The final state is set
// to target exactly. On cancellation the last completed step is kept.
func (c *Controller) interpolate(ctx context.Context, start, target JointState, duration time.Duration) error {
	steps := c.interpolationSteps(duration)
	for i := 1; i <= steps; i++ {
		if err := c.checkControls(ctx); err != nil {
			return err
		}
		if !c.setSimJoints(start.Lerp(target, float64(i)/float64(steps))) {
			return ErrModeChanged
		}
		if !utils.SelectContextOrWait(ctx, c.cfg.StepInterval) {
			return c.abort("Script stopped by user.")
		}
	}
	if !c.setSimJoints(target) {
		return ErrModeChanged
	}
	return nil
}

// checkControls is the cancellation point for every motion loop. It blocks
// while paused and returns a CancelledError once stop is requested.
func (c *Controller) checkControls(ctx context.Context) error {
	if c.cc.Stopped() || ctx.Err() != nil {
		return c.abort("Script stopped by user.")
	}
	for c.cc.Paused() {
		if !utils.SelectContextOrWait(ctx, c.cfg.PausePoll) || c.cc.Stopped() {
			return c.abort("Script stopped during pause.")
		}
	}
	return nil
}

// abort stops a connected arm and builds the cancellation error.
func (c *Controller) abort(reason string) error {
	if link := c.hardware(); link != nil {
		if err := link.SetState(StateStop); err != nil {
			c.logger.Warnf("Failed to stop arm: %v", err)
		}
	}
	return &CancelledError{Reason: reason}
}

// waitFor polls done every HardwarePoll until it holds or WaitTimeout
// passes. A timeout is not an error.
func (c *Controller) waitFor(ctx context.Context, done func() bool) error {
	deadline := time.Now().Add(c.cfg.WaitTimeout)
	for time.Now().Before(deadline) {
		if err := c.checkControls(ctx); err != nil {
			return err
		}
		if c.Mode() != ModeHardware || done() {
			return nil
		}
		if !utils.SelectContextOrWait(ctx, c.cfg.HardwarePoll) {
			return c.abort("Script stopped by user.")
		}
	}
	c.logger.Debugf("Timed out after %s waiting for the arm, continuing", c.cfg.WaitTimeout)
	return nil
}
