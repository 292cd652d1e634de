package litesim

import (
	"fmt"
	"math"
)

// JointLimit is an inclusive range in degrees.
type JointLimit struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Lite 6 joint ranges in degrees
var lite6JointLimits = [NumJoints]JointLimit{
	{-360, 360}, // J1 base
	{-150, 150}, // J2 shoulder
	{-3.5, 300}, // J3 elbow
	{-360, 360}, // J4 forearm roll
	{-124, 124}, // J5 wrist pitch
	{-360, 360}, // J6 flange roll
}

// SafetyLimits is the immutable per-joint range table.
type SafetyLimits struct {
	joints [NumJoints]JointLimit
}

// DefaultSafetyLimits returns the Lite 6 ranges.
func DefaultSafetyLimits() SafetyLimits {
	return SafetyLimits{joints: lite6JointLimits}
}

// NewSafetyLimits validates and copies the given ranges.
func NewSafetyLimits(limits []JointLimit) (SafetyLimits, error) {
	if len(limits) != NumJoints {
		return SafetyLimits{}, fmt.Errorf("expected %d joint limits, got %d", NumJoints, len(limits))
	}
	var l SafetyLimits
	for i, jl := range limits {
		if math.IsNaN(jl.Min) || math.IsNaN(jl.Max) || math.IsInf(jl.Min, 0) || math.IsInf(jl.Max, 0) {
			return SafetyLimits{}, fmt.Errorf("joint %d limit must be finite", i+1)
		}
		if jl.Min > jl.Max {
			return SafetyLimits{}, fmt.Errorf("joint %d min %.2f above max %.2f", i+1, jl.Min, jl.Max)
		}
		l.joints[i] = jl
	}
	return l, nil
}

// Joint returns the range of joint i (zero based).
func (l SafetyLimits) Joint(i int) JointLimit {
	return l.joints[i]
}

// Slice returns a copy of the table.
func (l SafetyLimits) Slice() []JointLimit {
	out := make([]JointLimit, NumJoints)
	copy(out, l.joints[:])
	return out
}

// Clamp limits v to [min, max].
func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// ClampEvent records one axis that was moved back into range.
type ClampEvent struct {
	Joint     int
	Requested float64
	Applied   float64
}

func (e ClampEvent) String() string {
	return fmt.Sprintf("Joint %d angle %.2f deg outside limit, clamped to %.2f deg", e.Joint+1, e.Requested, e.Applied)
}

// Clamp moves every axis of s into range. Values that overshoot a bound by
// no more than epsilon are kept as given.
func (l SafetyLimits) Clamp(s JointState, epsilon float64) (JointState, []ClampEvent) {
	var events []ClampEvent
	out := s
	for i, v := range s {
		jl := l.joints[i]
		if v >= jl.Min-epsilon && v <= jl.Max+epsilon {
			continue
		}
		out[i] = Clamp(v, jl.Min, jl.Max)
		events = append(events, ClampEvent{Joint: i, Requested: v, Applied: out[i]})
	}
	return out, events
}

// Violation returns the first joint that lies further than tolerance outside
// its range, or -1.
func (l SafetyLimits) Violation(s JointState, tolerance float64) int {
	for i, v := range s {
		jl := l.joints[i]
		if v < jl.Min-tolerance || v > jl.Max+tolerance {
			return i
		}
	}
	return -1
}

// Within clamps s exactly into range without reporting.
func (l SafetyLimits) Within(s JointState) JointState {
	for i := range s {
		s[i] = Clamp(s[i], l.joints[i].Min, l.joints[i].Max)
	}
	return s
}
