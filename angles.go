package litesim

import "math"

// NormalizeAngle wraps deg into (-180, 180].
func NormalizeAngle(deg float64) float64 {
	a := math.Mod(deg, 360)
	if a > 180 {
		a -= 360
	} else if a <= -180 {
		a += 360
	}
	return a
}

// canonicalize picks, per joint, the full-turn equivalent of each angle that
// lies within limits and closest to the seed. Joints with no in-range
// equivalent are wrapped into (-180, 180] and left for the limit check.
func canonicalize(s, seed JointState, limits SafetyLimits, tolerance float64) JointState {
	var out JointState
	for i, v := range s {
		jl := limits.Joint(i)
		base := NormalizeAngle(v)
		best, bestDist, found := base, math.Inf(1), false
		for k := -2; k <= 2; k++ {
			cand := base + float64(k)*360
			if cand < jl.Min-tolerance || cand > jl.Max+tolerance {
				continue
			}
			if d := math.Abs(cand - seed[i]); d < bestDist {
				best, bestDist, found = cand, d, true
			}
		}
		if !found {
			best = base
		}
		out[i] = best
	}
	return out
}
