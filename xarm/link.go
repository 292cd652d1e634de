package xarm

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/rdk/logging"
	rutils "go.viam.com/rdk/utils"

	"litesim"
)

// Controller states reported by GET_STATE
const (
	StateMoving  = 1
	StateStandby = 2
	StatePaused  = 3
	StateStopped = 4
)

// Default accelerations sent with motion commands
const (
	defaultJointAcc = 500.0  // deg/s^2
	defaultLineAcc  = 2000.0 // mm/s^2
)

// defaultIdleTimeout bounds how long a waiting move polls for the arm to settle.
const defaultIdleTimeout = 15 * time.Second

// ErrIdleTimeout is returned by waiting moves when the arm never leaves the
// moving state.
var ErrIdleTimeout = errors.New("timed out waiting for arm to finish moving")

// Controller error codes that mean a move could not be planned.
var plannerErrors = map[int]bool{
	23: true, // joint angle limit
	24: true, // speed limit
	25: true, // planning error
}

// Link is a connection to one arm. It implements litesim.HardwareLink.
type Link struct {
	logger  logging.Logger
	conn    net.Conn
	timeout time.Duration
	poll    time.Duration
	idle    time.Duration
	debug   bool

	mu        sync.Mutex
	txn       uint16
	connected atomic.Bool
}

var _ litesim.HardwareLink = (*Link)(nil)

func newLink(conn net.Conn, timeout time.Duration, logger logging.Logger) *Link {
	l := &Link{
		logger:  logger,
		conn:    conn,
		timeout: timeout,
		poll:    50 * time.Millisecond,
		idle:    defaultIdleTimeout,
	}
	l.connected.Store(true)
	return l
}

// call sends one request and waits for the matching reply.
func (l *Link) call(register byte, params []byte) (Response, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.connected.Load() {
		return Response{}, errors.New("not connected to arm")
	}

	l.txn++
	req := Request{Txn: l.txn, Register: register, Params: params}
	packet := req.Encode()
	if l.debug {
		l.logger.Debugf("Sending register %d: %x", register, packet)
	}

	if err := l.conn.SetDeadline(time.Now().Add(l.timeout)); err != nil {
		return Response{}, errors.Wrap(err, "failed to set deadline")
	}
	if _, err := l.conn.Write(packet); err != nil {
		l.connected.Store(false)
		return Response{}, errors.Wrap(err, "failed to write to arm")
	}

	resp, err := ReadResponse(l.conn)
	if err != nil {
		l.connected.Store(false)
		return Response{}, errors.Wrapf(err, "failed to read reply to register %d", register)
	}
	if resp.Txn != req.Txn || resp.Register != register {
		return Response{}, errors.Errorf("mismatched reply: txn %d register %d, want txn %d register %d",
			resp.Txn, resp.Register, req.Txn, register)
	}
	if l.debug {
		l.logger.Debugf("Received reply: state 0x%02x params %x", resp.State, resp.Params)
	}
	return resp, nil
}

func (l *Link) command(register byte, params ...byte) error {
	_, err := l.call(register, params)
	return err
}

// Connected reports whether the socket is still usable.
func (l *Link) Connected() bool { return l.connected.Load() }

// MotionEnable powers every servo on or off.
func (l *Link) MotionEnable(enable bool) error {
	var b byte
	if enable {
		b = 1
	}
	return errors.Wrap(l.command(RegMotionEnable, allJoints, b), "motion enable")
}

// SetMode selects the controller motion mode.
func (l *Link) SetMode(mode int) error {
	return errors.Wrap(l.command(RegSetMode, byte(mode)), "set mode")
}

// SetState changes the controller state; 4 stops motion.
func (l *Link) SetState(state int) error {
	return errors.Wrap(l.command(RegSetState, byte(state)), "set state")
}

// CleanWarn clears the controller warning.
func (l *Link) CleanWarn() error {
	return errors.Wrap(l.command(RegCleanWarn), "clean warn")
}

// CleanError clears the controller error.
func (l *Link) CleanError() error {
	return errors.Wrap(l.command(RegCleanError), "clean error")
}

// State returns the controller state.
func (l *Link) State() (int, error) {
	resp, err := l.call(RegGetState, nil)
	if err != nil {
		return 0, err
	}
	if len(resp.Params) < 1 {
		return 0, errors.New("empty state reply")
	}
	return int(resp.Params[0]), nil
}

// SetServoAngle moves to joint angles in degrees at speed deg/s.
func (l *Link) SetServoAngle(angles litesim.JointState, speed float64, wait bool) (int, error) {
	vals := make([]float64, 0, 10)
	for _, a := range angles {
		vals = append(vals, rutils.DegToRad(a))
	}
	// the protocol always carries seven joints
	vals = append(vals, 0, rutils.DegToRad(speed), rutils.DegToRad(defaultJointAcc), 0)
	return l.move(RegMoveJoint, PutFloats(vals...), wait)
}

// SetPosition moves the tool in a line to pose (mm, degrees) at speed mm/s.
func (l *Link) SetPosition(pose litesim.Pose, speed float64, wait bool) (int, error) {
	params := PutFloats(
		pose.X, pose.Y, pose.Z,
		rutils.DegToRad(pose.Roll), rutils.DegToRad(pose.Pitch), rutils.DegToRad(pose.Yaw),
		speed, defaultLineAcc, 0,
	)
	return l.move(RegMoveLine, params, wait)
}

func (l *Link) move(register byte, params []byte, wait bool) (int, error) {
	resp, err := l.call(register, params)
	if err != nil {
		return 0, err
	}
	code := resp.Code()
	if code == 1 {
		fault, ferr := l.ErrWarnCode()
		if ferr == nil && plannerErrors[fault.Error] {
			return litesim.HardwareCodeKinematic, nil
		}
		return code, nil
	}
	if code != 0 || !wait {
		return code, nil
	}
	return 0, l.waitIdle()
}

// waitIdle polls the controller state until it leaves the moving state or
// the idle timeout passes.
func (l *Link) waitIdle() error {
	deadline := time.Now().Add(l.idle)
	// give the controller a moment to start the move
	time.Sleep(l.poll)
	for {
		state, err := l.State()
		if err != nil {
			return err
		}
		if state != StateMoving {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.Wrapf(ErrIdleTimeout, "still moving after %s", l.idle)
		}
		time.Sleep(l.poll)
	}
}

// ServoAngle reads the joint angles in degrees.
func (l *Link) ServoAngle() (litesim.JointState, error) {
	resp, err := l.call(RegGetJointPos, nil)
	if err != nil {
		return litesim.JointState{}, err
	}
	vals, err := Floats(resp.Params, 7)
	if err != nil {
		return litesim.JointState{}, errors.Wrap(err, "joint reply")
	}
	var s litesim.JointState
	for i := range s {
		s[i] = rutils.RadToDeg(vals[i])
	}
	return s, nil
}

// Position reads the tool pose in mm and degrees.
func (l *Link) Position() (litesim.Pose, error) {
	resp, err := l.call(RegGetTCPPose, nil)
	if err != nil {
		return litesim.Pose{}, err
	}
	v, err := Floats(resp.Params, 6)
	if err != nil {
		return litesim.Pose{}, errors.Wrap(err, "pose reply")
	}
	return litesim.Pose{
		X: v[0], Y: v[1], Z: v[2],
		Roll:  rutils.RadToDeg(v[3]),
		Pitch: rutils.RadToDeg(v[4]),
		Yaw:   rutils.RadToDeg(v[5]),
	}, nil
}

// ErrWarnCode reads the controller error and warning codes.
func (l *Link) ErrWarnCode() (litesim.FaultCode, error) {
	resp, err := l.call(RegGetError, nil)
	if err != nil {
		return litesim.FaultCode{}, err
	}
	if len(resp.Params) < 2 {
		return litesim.FaultCode{}, errors.New("short error reply")
	}
	return litesim.FaultCode{Error: int(resp.Params[0]), Warn: int(resp.Params[1])}, nil
}

// Disconnect closes the socket. It is safe to call more than once.
func (l *Link) Disconnect() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connected.Store(false)
	conn := l.conn
	l.conn = nil
	if conn == nil {
		return nil
	}
	return multierr.Combine(
		errors.Wrap(conn.SetDeadline(time.Time{}), "failed to clear deadline"),
		errors.Wrap(conn.Close(), "failed to close socket"),
	)
}
