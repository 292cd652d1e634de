package litesim

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	rutils "go.viam.com/rdk/utils"
)

// NumJoints is the number of actuated axes on a Lite 6.
const NumJoints = 6

// JointState holds one angle per axis, in degrees.
type JointState [NumJoints]float64

// JointsFromRadians converts radian angles into a JointState.
func JointsFromRadians(rad [NumJoints]float64) JointState {
	var s JointState
	for i, v := range rad {
		s[i] = rutils.RadToDeg(v)
	}
	return s
}

// Radians returns the state as radians, in the order the kinematic model expects.
func (s JointState) Radians() []float64 {
	out := make([]float64, NumJoints)
	for i, v := range s {
		out[i] = rutils.DegToRad(v)
	}
	return out
}

// MaxDelta returns the largest per-axis distance between s and other.
func (s JointState) MaxDelta(other JointState) float64 {
	var m float64
	for i := range s {
		if d := math.Abs(s[i] - other[i]); d > m {
			m = d
		}
	}
	return m
}

// Lerp returns the state a fraction t of the way from s to target.
func (s JointState) Lerp(target JointState, t float64) JointState {
	var out JointState
	for i := range s {
		out[i] = s[i] + (target[i]-s[i])*t
	}
	return out
}

// HasNaN reports whether any axis is not a number.
func (s JointState) HasNaN() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

func (s JointState) String() string {
	return fmt.Sprintf("[%.1f %.1f %.1f %.1f %.1f %.1f]", s[0], s[1], s[2], s[3], s[4], s[5])
}

// Orientation is a roll/pitch/yaw triple in degrees.
type Orientation struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// DefaultOrientation points the tool straight down.
var DefaultOrientation = Orientation{Roll: 180}

// Pose is a tool position in millimetres plus orientation in degrees.
type Pose struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// NewPose builds a Pose from a position and an orientation.
func NewPose(p r3.Vector, o Orientation) Pose {
	return Pose{X: p.X, Y: p.Y, Z: p.Z, Roll: o.Roll, Pitch: o.Pitch, Yaw: o.Yaw}
}

// Position returns the point part of the pose.
func (p Pose) Position() r3.Vector {
	return r3.Vector{X: p.X, Y: p.Y, Z: p.Z}
}

// Orientation returns the rotation part of the pose.
func (p Pose) Orientation() Orientation {
	return Orientation{Roll: p.Roll, Pitch: p.Pitch, Yaw: p.Yaw}
}

func (p Pose) String() string {
	return fmt.Sprintf("x=%.1f y=%.1f z=%.1f roll=%.1f pitch=%.1f yaw=%.1f", p.X, p.Y, p.Z, p.Roll, p.Pitch, p.Yaw)
}

// PoseTarget is a Cartesian command where any component may be left unset.
// Unset position components keep the current value, unset orientation
// components keep the last commanded or observed orientation.
type PoseTarget struct {
	X     *float64 `json:"x,omitempty"`
	Y     *float64 `json:"y,omitempty"`
	Z     *float64 `json:"z,omitempty"`
	Roll  *float64 `json:"roll,omitempty"`
	Pitch *float64 `json:"pitch,omitempty"`
	Yaw   *float64 `json:"yaw,omitempty"`
}

// Float returns a pointer to v, for filling PoseTarget literals.
func Float(v float64) *float64 {
	return &v
}

// Target converts a fully specified pose into a PoseTarget.
func (p Pose) Target() PoseTarget {
	return PoseTarget{
		X: Float(p.X), Y: Float(p.Y), Z: Float(p.Z),
		Roll: Float(p.Roll), Pitch: Float(p.Pitch), Yaw: Float(p.Yaw),
	}
}

// Resolve fills the unset components from current and last.
func (t PoseTarget) Resolve(current r3.Vector, last Orientation) Pose {
	pick := func(v *float64, def float64) float64 {
		if v == nil {
			return def
		}
		return *v
	}
	return Pose{
		X:     pick(t.X, current.X),
		Y:     pick(t.Y, current.Y),
		Z:     pick(t.Z, current.Z),
		Roll:  pick(t.Roll, last.Roll),
		Pitch: pick(t.Pitch, last.Pitch),
		Yaw:   pick(t.Yaw, last.Yaw),
	}
}

// Mode says where joint state comes from.
type Mode int

const (
	// ModeSimulated interpolates joint state locally.
	ModeSimulated Mode = iota
	// ModeHardware mirrors a connected arm.
	ModeHardware
)

func (m Mode) String() string {
	switch m {
	case ModeSimulated:
		return "simulated"
	case ModeHardware:
		return "hardware"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Return codes shared by the motion commands. Nonzero device codes are
// passed through unchanged.
const (
	CodeOK           = 0
	CodeNoKinematics = -1
	CodeIKError      = -2
)

// Device codes and states understood by the controller.
const (
	HardwareCodeKinematic = 9

	StateReady = 0
	StateStop  = 4

	ModePosition = 0
)
