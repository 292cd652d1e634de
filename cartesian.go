package litesim

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.viam.com/utils"
)

// SetPosition moves the tool to target in a straight line. Unset position
// components keep the current position; unset orientation components keep
// the last orientation, and the resolved orientation becomes the new last.
//
// In simulation each waypoint is solved from the previous solution.
// Unreachable waypoints are skipped and the path continues from the last
// valid state; the call still returns CodeOK. A connected arm reporting a
// kinematic failure yields CodeIKError.
func (c *Controller) SetPosition(ctx context.Context, target PoseTarget, opts ...MoveOption) (int, error) {
	o := collectOptions(opts)
	if err := c.checkControls(ctx); err != nil {
		return CodeOK, err
	}

	link := c.hardware()
	if link == nil && c.kin == nil {
		return CodeNoKinematics, nil
	}

	c.moving.Store(true)
	defer c.moving.Store(false)

	current, err := c.CurrentPose()
	if err != nil {
		return CodeOK, err
	}
	goal := target.Resolve(current.Position(), c.lastOrientation())
	c.setOrientation(goal.Orientation())

	speed := o.speed
	if speed <= 0 {
		speed = c.cfg.CartesianSpeed
	}
	c.cc.Logf("[MOVE] x=%.0f y=%.0f z=%.0f", goal.X, goal.Y, goal.Z)

	if link != nil {
		code, err := link.SetPosition(goal, speed, false)
		if err != nil {
			return code, fmt.Errorf("failed to send Cartesian move: %w", err)
		}
		switch code {
		case CodeOK:
		case HardwareCodeKinematic:
			c.cc.Logf("[REAL] Kinematic error (code %d) moving to %s", code, goal)
			return CodeIKError, nil
		default:
			c.cc.Logf("[REAL] Cartesian move returned code %d", code)
			return code, nil
		}
		if !o.wait {
			return CodeOK, nil
		}
		return CodeOK, c.waitFor(ctx, func() bool {
			return c.observedPose().Position().Distance(goal.Position()) < c.cfg.PositionTolerance
		})
	}

	if !o.wait {
		if q, ok := c.solveWaypoint(goal, c.Joints(), 1, 1, o.silent); ok && !c.setSimJoints(q) {
			return CodeOK, ErrModeChanged
		}
		return CodeOK, nil
	}
	return CodeOK, c.followLine(ctx, current, goal, speed, o.silent)
}

// followLine walks from start to goal in steps of about CartesianStepMM.
func (c *Controller) followLine(ctx context.Context, start, goal Pose, speed float64, silent bool) error {
	from, to := start.Position(), goal.Position()
	dist := to.Sub(from).Norm()

	steps := int(math.Ceil(dist / c.cfg.CartesianStepMM))
	if steps < c.cfg.MinPathSteps {
		steps = c.cfg.MinPathSteps
	}
	delay := c.scaledDuration(dist/speed) / time.Duration(steps)

	seed := c.Joints()
	rejected := 0
	for i := 1; i <= steps; i++ {
		if err := c.checkControls(ctx); err != nil {
			return err
		}
		t := float64(i) / float64(steps)
		wp := NewPose(from.Add(to.Sub(from).Mul(t)), goal.Orientation())
		if q, ok := c.solveWaypoint(wp, seed, i, steps, silent); ok {
			seed = q
			if !c.setSimJoints(q) {
				return ErrModeChanged
			}
		} else {
			rejected++
		}
		if !utils.SelectContextOrWait(ctx, delay) {
			return c.abort("Script stopped by user.")
		}
	}
	if rejected > 0 {
		c.logger.Debugf("Cartesian path to %s skipped %d of %d waypoints", goal, rejected, steps)
	}
	return nil
}

func (c *Controller) solveWaypoint(wp Pose, seed JointState, i, n int, silent bool) (JointState, bool) {
	q, err := c.kin.InverseKinematics(wp, seed)
	if err != nil {
		if !silent {
			c.cc.Logf("[IK REJECT] waypoint %d/%d (x=%.1f y=%.1f z=%.1f): %v", i, n, wp.X, wp.Y, wp.Z, err)
		}
		return JointState{}, false
	}
	return q, true
}

func (c *Controller) observedPose() Pose {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pose
}

// CurrentPose returns the tool pose: the last telemetry reading when
// connected, forward kinematics of the joint state otherwise.
func (c *Controller) CurrentPose() (Pose, error) {
	if c.hardware() != nil {
		return c.observedPose(), nil
	}
	if c.kin == nil {
		return Pose{}, ErrNoKinematics
	}
	return c.kin.ForwardKinematics(c.Joints())
}

// ResolveTarget fills the unset components of target the way SetPosition
// does, without changing the last orientation.
func (c *Controller) ResolveTarget(target PoseTarget) (Pose, error) {
	current, err := c.CurrentPose()
	if err != nil {
		return Pose{}, err
	}
	return target.Resolve(current.Position(), c.lastOrientation()), nil
}

// CheckReachable solves target from the current joints without moving.
func (c *Controller) CheckReachable(target Pose) (JointState, error) {
	if c.kin == nil {
		return JointState{}, ErrNoKinematics
	}
	return c.kin.InverseKinematics(target, c.Joints())
}
