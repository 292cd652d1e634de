package litesim

import (
	"fmt"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/spatialmath"
	rutils "go.viam.com/rdk/utils"
)

// Kinematics converts between joint space and tool poses.
type Kinematics interface {
	ForwardKinematics(joints JointState) (Pose, error)
	InverseKinematics(target Pose, seed JointState) (JointState, error)
}

// Engine is the numerical back end a Solver drives. Joint values are
// radians and poses are in the engine's base frame, millimetres.
type Engine interface {
	Transform(joints []float64) (spatialmath.Pose, error)
	Solve(target spatialmath.Pose, seed []float64) ([]float64, error)
}

// Solver wraps an Engine with the unit conversions, the vertical mount
// offset and the joint limit checks the controller relies on.
type Solver struct {
	engine    Engine
	limits    SafetyLimits
	zOffset   float64
	tolerance float64
}

// NewSolver builds a Solver using the limits, Z offset and IK tolerance from cfg.
func NewSolver(engine Engine, cfg *Config) *Solver {
	return &Solver{
		engine:    engine,
		limits:    cfg.Limits(),
		zOffset:   cfg.ZOffsetMM,
		tolerance: cfg.IKLimitTolerance,
	}
}

// ForwardKinematics returns the tool pose for joints, with the Z offset applied.
func (s *Solver) ForwardKinematics(joints JointState) (Pose, error) {
	p, err := s.engine.Transform(joints.Radians())
	if err != nil {
		return Pose{}, fmt.Errorf("forward kinematics: %w", err)
	}
	pose := poseFromSpatial(p)
	pose.Z += s.zOffset
	return pose, nil
}

// InverseKinematics solves for target starting from seed. Solutions that
// contain NaN, or that leave any joint more than the IK tolerance outside
// its range, are rejected. Accepted solutions are returned on the full-turn
// branch nearest the seed and clamped into range.
func (s *Solver) InverseKinematics(target Pose, seed JointState) (JointState, error) {
	goal := target
	goal.Z -= s.zOffset

	sol, err := s.engine.Solve(poseToSpatial(goal), seed.Radians())
	if err != nil {
		return JointState{}, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if len(sol) < NumJoints {
		return JointState{}, fmt.Errorf("%w: engine returned %d joints", ErrUnreachable, len(sol))
	}

	var deg JointState
	for i := range deg {
		deg[i] = rutils.RadToDeg(sol[i])
	}
	if deg.HasNaN() {
		return JointState{}, fmt.Errorf("%w: solution contains NaN", ErrUnreachable)
	}

	deg = canonicalize(deg, seed, s.limits, s.tolerance)
	if i := s.limits.Violation(deg, s.tolerance); i >= 0 {
		jl := s.limits.Joint(i)
		return JointState{}, fmt.Errorf("%w: joint %d at %.2f deg outside [%.1f, %.1f]",
			ErrJointLimit, i+1, deg[i], jl.Min, jl.Max)
	}
	return s.limits.Within(deg), nil
}

func poseToSpatial(p Pose) spatialmath.Pose {
	return spatialmath.NewPose(
		r3.Vector{X: p.X, Y: p.Y, Z: p.Z},
		&spatialmath.EulerAngles{
			Roll:  rutils.DegToRad(p.Roll),
			Pitch: rutils.DegToRad(p.Pitch),
			Yaw:   rutils.DegToRad(p.Yaw),
		},
	)
}

func poseFromSpatial(p spatialmath.Pose) Pose {
	pt := p.Point()
	ea := p.Orientation().EulerAngles()
	return Pose{
		X:     pt.X,
		Y:     pt.Y,
		Z:     pt.Z,
		Roll:  rutils.RadToDeg(ea.Roll),
		Pitch: rutils.RadToDeg(ea.Pitch),
		Yaw:   rutils.RadToDeg(ea.Yaw),
	}
}
