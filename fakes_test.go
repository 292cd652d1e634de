package litesim

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/spatialmath"
	rutils "go.viam.com/rdk/utils"
)

var errFakeRead = errors.New("read timeout")

// fakeLink is an in-memory arm.
type fakeLink struct {
	mu sync.Mutex

	connected    bool
	disconnected bool

	joints JointState
	pose   Pose

	faults   []int
	faultIdx int

	servoCode    int
	positionCode int
	instant      bool
	readErrs     int
	closeErr     error

	calls      []string
	states     []int
	servoCmds  []JointState
	poseCmds   []Pose
	motionEnab []bool
}

func newFakeLink() *fakeLink {
	return &fakeLink{connected: true, instant: true, pose: Pose{X: 227.6, Z: 381.8, Roll: 180}}
}

func (f *fakeLink) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeLink) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeLink) MotionEnable(enable bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("motion_enable")
	f.motionEnab = append(f.motionEnab, enable)
	return nil
}

func (f *fakeLink) SetMode(mode int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("set_mode")
	return nil
}

func (f *fakeLink) SetState(state int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("set_state")
	f.states = append(f.states, state)
	return nil
}

func (f *fakeLink) CleanWarn() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("clean_warn")
	return nil
}

func (f *fakeLink) CleanError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("clean_error")
	return nil
}

func (f *fakeLink) SetServoAngle(angles JointState, speed float64, wait bool) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("set_servo_angle")
	f.servoCmds = append(f.servoCmds, angles)
	if f.instant && f.servoCode == 0 {
		f.joints = angles
	}
	return f.servoCode, nil
}

func (f *fakeLink) SetPosition(pose Pose, speed float64, wait bool) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("set_position")
	f.poseCmds = append(f.poseCmds, pose)
	if f.instant && f.positionCode == 0 {
		f.pose = pose
	}
	return f.positionCode, nil
}

func (f *fakeLink) ServoAngle() (JointState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErrs > 0 {
		f.readErrs--
		return JointState{}, errFakeRead
	}
	return f.joints, nil
}

func (f *fakeLink) Position() (Pose, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pose, nil
}

func (f *fakeLink) ErrWarnCode() (FaultCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.faults) == 0 {
		return FaultCode{}, nil
	}
	code := f.faults[f.faultIdx]
	if f.faultIdx < len(f.faults)-1 {
		f.faultIdx++
	}
	return FaultCode{Error: code}, nil
}

func (f *fakeLink) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("disconnect")
	f.connected = false
	f.disconnected = true
	return f.closeErr
}

func (f *fakeLink) setJoints(s JointState) {
	f.mu.Lock()
	f.joints = s
	f.mu.Unlock()
}

func (f *fakeLink) snapshot() (calls []string, states []int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...), append([]int(nil), f.states...)
}

type fakeDriver struct {
	link    *fakeLink
	dialErr error
	dialed  []string
}

func (d *fakeDriver) Available() bool { return true }

func (d *fakeDriver) Dial(_ context.Context, address string) (HardwareLink, error) {
	d.dialed = append(d.dialed, address)
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	return d.link, nil
}

// axisEngine maps joints 1..3 in degrees straight onto x, y, z in mm so
// that path and limit logic can be checked without numerical IK. Solve
// returns NaN from the nanFrom-th call onwards when nanFrom > 0, or the
// fixed result when one is set.
type axisEngine struct {
	mu      sync.Mutex
	calls   int
	nanFrom int
	result  []float64
}

func (e *axisEngine) Transform(q []float64) (spatialmath.Pose, error) {
	return spatialmath.NewPoseFromPoint(r3.Vector{
		X: rutils.RadToDeg(q[0]),
		Y: rutils.RadToDeg(q[1]),
		Z: rutils.RadToDeg(q[2]),
	}), nil
}

func (e *axisEngine) Solve(target spatialmath.Pose, seed []float64) ([]float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.nanFrom > 0 && e.calls >= e.nanFrom {
		nan := math.NaN()
		return []float64{nan, nan, nan, nan, nan, nan}, nil
	}
	if e.result != nil {
		return append([]float64(nil), e.result...), nil
	}
	pt := target.Point()
	return []float64{rutils.DegToRad(pt.X), rutils.DegToRad(pt.Y), rutils.DegToRad(pt.Z), 0, 0, 0}, nil
}

func fastConfig() *Config {
	return &Config{
		SimSpeedFactor: 100,
		StepInterval:   time.Millisecond,
		PausePoll:      5 * time.Millisecond,
		HardwarePoll:   2 * time.Millisecond,
		WaitTimeout:    300 * time.Millisecond,
		TelemetryRate:  200,
	}
}

func newTestController(t *testing.T, cfg *Config, kin Kinematics, driver Driver) *Controller {
	t.Helper()
	if cfg == nil {
		cfg = fastConfig()
	}
	c, err := NewController(cfg, kin, driver, NewControlContext(), logging.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func countPrefix(lines []string, prefix string) int {
	n := 0
	for _, l := range lines {
		if len(l) >= len(prefix) && l[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}
