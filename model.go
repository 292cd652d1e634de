package litesim

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/referenceframe"
	"go.viam.com/rdk/spatialmath"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

//go:embed lite6.json
var lite6ModelJSON []byte

const (
	jacobianStep   = 1e-6
	rotationWeight = 100.0 // mm per radian of orientation error
)

var errNoConvergence = errors.New("solver did not converge")

// Lite6Model parses the embedded Lite 6 kinematic chain.
func Lite6Model() (referenceframe.Model, error) {
	m := &referenceframe.ModelConfigJSON{
		OriginalFile: &referenceframe.ModelFile{
			Bytes:     lite6ModelJSON,
			Extension: "json",
		},
	}
	if err := json.Unmarshal(lite6ModelJSON, m); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal json file")
	}
	return m.ParseConfig("lite6")
}

// ModelEngine computes FK through an rdk model and solves IK with damped
// least squares over a finite-difference Jacobian of that FK.
type ModelEngine struct {
	model referenceframe.Model
	tool  spatialmath.Pose

	MaxIterations     int
	PositionTolerance float64 // mm
	RotationTolerance float64 // rad
}

// NewLite6Engine returns a ModelEngine for the embedded Lite 6 chain with the
// tool frame pointing away from the flange.
func NewLite6Engine() (*ModelEngine, error) {
	model, err := Lite6Model()
	if err != nil {
		return nil, fmt.Errorf("failed to create kinematic model: %w", err)
	}
	return NewModelEngine(model, spatialmath.NewPoseFromOrientation(&spatialmath.EulerAngles{Roll: math.Pi}))
}

// NewModelEngine wraps model. tool is composed onto the flange pose and may be nil.
func NewModelEngine(model referenceframe.Model, tool spatialmath.Pose) (*ModelEngine, error) {
	if dof := len(model.DoF()); dof != NumJoints {
		return nil, fmt.Errorf("expected a %d joint model, got %d", NumJoints, dof)
	}
	if tool == nil {
		tool = spatialmath.NewZeroPose()
	}
	return &ModelEngine{
		model:             model,
		tool:              tool,
		MaxIterations:     200,
		PositionTolerance: 0.01,
		RotationTolerance: 1e-4,
	}, nil
}

// Transform returns the tool pose for joint values in radians. Values past
// the model's limits are still computed.
func (e *ModelEngine) Transform(joints []float64) (spatialmath.Pose, error) {
	p, err := referenceframe.ComputeOOBPosition(e.model, joints)
	if err != nil {
		return nil, err
	}
	return spatialmath.Compose(p, e.tool), nil
}

// Solve searches from seed first and from the zero configuration second.
func (e *ModelEngine) Solve(target spatialmath.Pose, seed []float64) ([]float64, error) {
	if len(seed) != NumJoints {
		return nil, fmt.Errorf("expected %d seed values, got %d", NumJoints, len(seed))
	}
	var lastErr error
	for _, start := range [][]float64{seed, make([]float64, NumJoints)} {
		q, err := e.solveFrom(target, start)
		if err == nil {
			return q, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (e *ModelEngine) solveFrom(target spatialmath.Pose, seed []float64) ([]float64, error) {
	q := append([]float64(nil), seed...)
	r, err := e.residual(target, q)
	if err != nil {
		return nil, err
	}
	cost := sumSquares(r)
	lambda := 1.0
	jac := mat.NewDense(6, NumJoints, nil)

	for iter := 0; iter < e.MaxIterations; iter++ {
		if e.converged(r) {
			return q, nil
		}

		probe := make([]float64, NumJoints)
		for j := 0; j < NumJoints; j++ {
			copy(probe, q)
			probe[j] += jacobianStep
			rp, err := e.residual(target, probe)
			if err != nil {
				return nil, err
			}
			for i := 0; i < 6; i++ {
				jac.Set(i, j, (rp[i]-r[i])/jacobianStep)
			}
		}

		var jtj mat.Dense
		jtj.Mul(jac.T(), jac)
		var jtr mat.VecDense
		jtr.MulVec(jac.T(), mat.NewVecDense(6, r))

		improved := false
		for attempt := 0; attempt < 12; attempt++ {
			var a mat.Dense
			a.CloneFrom(&jtj)
			for k := 0; k < NumJoints; k++ {
				a.Set(k, k, a.At(k, k)+lambda)
			}
			var dq mat.VecDense
			if err := dq.SolveVec(&a, &jtr); err != nil {
				lambda *= 10
				continue
			}
			cand := make([]float64, NumJoints)
			for k := range cand {
				cand[k] = q[k] - dq.AtVec(k)
			}
			rc, err := e.residual(target, cand)
			if err != nil {
				return nil, err
			}
			if c := sumSquares(rc); c < cost {
				q, r, cost = cand, rc, c
				lambda = math.Max(lambda/3, 1e-9)
				improved = true
				break
			}
			lambda *= 4
		}
		if !improved {
			break
		}
	}

	if e.converged(r) {
		return q, nil
	}
	return nil, errNoConvergence
}

// residual stacks the position error in mm with the weighted rotation
// vector from target to current orientation.
func (e *ModelEngine) residual(target spatialmath.Pose, q []float64) ([]float64, error) {
	cur, err := e.Transform(q)
	if err != nil {
		return nil, err
	}
	d := cur.Point().Sub(target.Point())
	rv := rotationVector(spatialmath.OrientationBetween(target.Orientation(), cur.Orientation()))
	return []float64{
		d.X, d.Y, d.Z,
		rotationWeight * rv.X, rotationWeight * rv.Y, rotationWeight * rv.Z,
	}, nil
}

func (e *ModelEngine) converged(r []float64) bool {
	pos := math.Sqrt(r[0]*r[0] + r[1]*r[1] + r[2]*r[2])
	rot := math.Sqrt(r[3]*r[3]+r[4]*r[4]+r[5]*r[5]) / rotationWeight
	return pos < e.PositionTolerance && rot < e.RotationTolerance
}

func rotationVector(o spatialmath.Orientation) r3.Vector {
	q := o.Quaternion()
	if q.Real < 0 {
		q = quat.Scale(-1, q)
	}
	v := r3.Vector{X: q.Imag, Y: q.Jmag, Z: q.Kmag}
	s := v.Norm()
	if s < 1e-12 {
		return v.Mul(2)
	}
	return v.Mul(2 * math.Atan2(s, q.Real) / s)
}

func sumSquares(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x * x
	}
	return s
}
