package litesim

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.viam.com/rdk/logging"
)

// Version is reported to scripts that query the arm firmware.
const Version = "sim-lite6-v12.0-scanner"

const homeSpeed = 30.0

// Controller owns the arm's joint state and runs every motion command,
// either by interpolating locally or by driving a hardware link.
type Controller struct {
	logger logging.Logger
	cfg    *Config
	limits SafetyLimits
	kin    Kinematics
	driver Driver
	cc     *ControlContext

	// connMu serialises Connect and Disconnect without queueing callers
	connMu sync.Mutex

	mu              sync.RWMutex
	joints          JointState
	pose            Pose
	orientation     Orientation
	mode            Mode
	link            HardwareLink
	monitor         *TelemetryMonitor
	speedMultiplier float64
	onFault         func(FaultAlert)

	moving atomic.Bool
}

// NewController builds a controller in simulated mode with all joints at zero.
// kin may be nil, in which case Cartesian commands return CodeNoKinematics.
// A nil driver is replaced with NullDriver.
func NewController(cfg *Config, kin Kinematics, driver Driver, cc *ControlContext, logger logging.Logger) (*Controller, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	} else if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if driver == nil {
		driver = NullDriver{}
	}
	if cc == nil {
		cc = NewControlContext()
	}

	c := &Controller{
		logger:          logger,
		cfg:             cfg,
		limits:          cfg.Limits(),
		kin:             kin,
		driver:          driver,
		cc:              cc,
		orientation:     DefaultOrientation,
		mode:            ModeSimulated,
		speedMultiplier: cfg.SpeedMultiplier,
	}
	if kin == nil {
		logger.Warn("No kinematics configured, Cartesian commands are disabled")
	}
	logger.Infof("Controller initialised in %s mode (driver available: %v)", c.mode, driver.Available())
	return c, nil
}

// Context returns the shared control context.
func (c *Controller) Context() *ControlContext { return c.cc }

// Config returns the validated configuration.
func (c *Controller) Config() *Config { return c.cfg }

// Mode reports whether the controller is simulating or mirroring hardware.
func (c *Controller) Mode() Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// Joints returns a copy of the current joint state.
func (c *Controller) Joints() JointState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.joints
}

// IsMoving reports whether a motion command is running.
func (c *Controller) IsMoving() bool { return c.moving.Load() }

// Version is the firmware string reported to scripts.
func (c *Controller) Version() string { return Version }

// SetSpeedMultiplier scales simulated motion durations. Values below 0.01
// are treated as 0.01.
func (c *Controller) SetSpeedMultiplier(m float64) {
	c.mu.Lock()
	c.speedMultiplier = m
	c.mu.Unlock()
}

// SpeedMultiplier returns the current simulated speed scale.
func (c *Controller) SpeedMultiplier() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.speedMultiplier
}

// SetFaultHandler registers fn to be called for every fault alert.
func (c *Controller) SetFaultHandler(fn func(FaultAlert)) {
	c.mu.Lock()
	c.onFault = fn
	c.mu.Unlock()
}

// Log appends msg to the user-facing log.
func (c *Controller) Log(msg string) { c.cc.Log(msg) }

func (c *Controller) hardware() HardwareLink {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.mode != ModeHardware {
		return nil
	}
	return c.link
}

func (c *Controller) setJoints(s JointState) {
	c.mu.Lock()
	c.joints = s
	c.mu.Unlock()
	c.cc.PublishSnapshot(s)
}

// setSimJoints is setJoints for simulated motion. It reports false, and
// leaves the state alone, once the controller has left simulated mode.
func (c *Controller) setSimJoints(s JointState) bool {
	c.mu.Lock()
	if c.mode != ModeSimulated {
		c.mu.Unlock()
		return false
	}
	c.joints = s
	c.mu.Unlock()
	c.cc.PublishSnapshot(s)
	return true
}

func (c *Controller) lastOrientation() Orientation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.orientation
}

func (c *Controller) setOrientation(o Orientation) {
	c.mu.Lock()
	c.orientation = o
	c.mu.Unlock()
}

func validAddress(address string) bool {
	if address == "" || strings.Contains(address, "xxx") {
		return false
	}
	return !strings.ContainsAny(address, " \t\r\n")
}

// Connect opens a hardware link and switches to hardware mode. Failures
// leave the controller simulating and are returned as errors: the bare
// ErrInvalidAddress and ErrDriverUnavailable sentinels, or a
// *ConnectionError for anything that went wrong talking to the arm.
// Connecting while a motion command runs returns ErrMotionInProgress.
func (c *Controller) Connect(ctx context.Context, address string) error {
	if !c.connMu.TryLock() {
		return ErrConnectInProgress
	}
	defer c.connMu.Unlock()
	if c.moving.Load() {
		return ErrMotionInProgress
	}

	address = strings.TrimSpace(address)
	if !validAddress(address) {
		c.cc.Log("[REAL] Invalid address.")
		return ErrInvalidAddress
	}
	if c.Mode() == ModeHardware {
		return ErrAlreadyConnected
	}
	if !c.driver.Available() {
		c.cc.Log("[WARN] No hardware driver available.")
		return ErrDriverUnavailable
	}

	c.cc.Logf("[REAL] Connecting to %s...", address)
	link, err := c.driver.Dial(ctx, address)
	if err != nil {
		return c.connectFailed(address, link, err)
	}
	if !link.Connected() {
		return c.connectFailed(address, link, ErrHandshake)
	}

	for _, step := range []struct {
		name string
		fn   func() error
	}{
		{"clean warn", link.CleanWarn},
		{"clean error", link.CleanError},
		{"motion enable", func() error { return link.MotionEnable(true) }},
		{"set mode", func() error { return link.SetMode(ModePosition) }},
		{"set state", func() error { return link.SetState(StateReady) }},
	} {
		if err := step.fn(); err != nil {
			return c.connectFailed(address, link, fmt.Errorf("%s: %w", step.name, err))
		}
	}

	joints, err := link.ServoAngle()
	if err != nil {
		return c.connectFailed(address, link, fmt.Errorf("read joints: %w", err))
	}
	pose, err := link.Position()
	if err != nil {
		return c.connectFailed(address, link, fmt.Errorf("read pose: %w", err))
	}

	monitor := newTelemetryMonitor(c, link, c.cfg.TelemetryInterval(), c.logger)

	c.mu.Lock()
	if c.moving.Load() {
		c.mu.Unlock()
		c.releaseLink(address, link)
		return ErrMotionInProgress
	}
	c.joints = joints
	c.pose = pose
	c.orientation = pose.Orientation()
	c.link = link
	c.monitor = monitor
	c.mode = ModeHardware
	c.mu.Unlock()

	monitor.Start()
	c.cc.PublishSnapshot(joints)
	c.cc.Log("[REAL] Connected successfully!")
	c.logger.Infof("Connected to arm at %s, joints %s", address, joints)
	return nil
}

func (c *Controller) connectFailed(address string, link HardwareLink, cause error) error {
	if link != nil {
		c.releaseLink(address, link)
	}
	c.cc.Logf("[REAL ERROR] %v", cause)
	c.logger.Warnf("Connection to %s failed: %v", address, cause)
	return &ConnectionError{Address: address, Err: cause}
}

func (c *Controller) releaseLink(address string, link HardwareLink) {
	if err := link.Disconnect(); err != nil {
		c.logger.Debugf("Failed to release partial link to %s: %v", address, err)
	}
}

// Disconnect stops telemetry, pulls one final reading from the arm and
// releases the link. The controller keeps simulating from that reading.
// Disconnecting while a motion command runs returns ErrMotionInProgress.
func (c *Controller) Disconnect(ctx context.Context) error {
	if c.moving.Load() {
		return ErrMotionInProgress
	}
	return c.disconnect()
}

func (c *Controller) disconnect() error {
	if !c.connMu.TryLock() {
		return ErrConnectInProgress
	}
	defer c.connMu.Unlock()

	c.mu.RLock()
	mode, link, monitor := c.mode, c.link, c.monitor
	c.mu.RUnlock()
	if mode != ModeHardware || link == nil {
		return nil
	}

	if monitor != nil {
		monitor.Stop()
	}

	joints, jerr := link.ServoAngle()
	pose, perr := link.Position()
	if jerr != nil || perr != nil {
		c.logger.Debugf("Final telemetry pull incomplete: joints=%v pose=%v", jerr, perr)
	}

	closeErr := link.Disconnect()

	c.mu.Lock()
	if jerr == nil {
		c.joints = joints
	}
	if perr == nil {
		c.pose = pose
		c.orientation = pose.Orientation()
	}
	c.link = nil
	c.monitor = nil
	c.mode = ModeSimulated
	joints = c.joints
	c.mu.Unlock()

	c.cc.PublishSnapshot(joints)
	c.cc.Log("[REAL] Disconnected.")
	if closeErr != nil {
		c.logger.Warnf("Error closing hardware link: %v", closeErr)
		return fmt.Errorf("failed to close hardware link: %w", closeErr)
	}
	return nil
}

// applyTelemetry is called by the monitor with fresh readings. The last
// orientation follows the arm except while a motion command owns it.
func (c *Controller) applyTelemetry(joints JointState, pose Pose) {
	c.mu.Lock()
	if c.mode != ModeHardware {
		c.mu.Unlock()
		return
	}
	c.joints = joints
	c.pose = pose
	if !c.moving.Load() {
		c.orientation = pose.Orientation()
	}
	c.mu.Unlock()
	c.cc.PublishSnapshot(joints)
}

func (c *Controller) reportFault(alert FaultAlert) {
	c.cc.Logf("[ALERT] %s", alert)
	c.logger.Errorf("Arm fault: %s", alert)
	c.mu.RLock()
	fn := c.onFault
	c.mu.RUnlock()
	if fn != nil {
		fn(alert)
	}
}

// MotionEnable enables or disables the servos on a connected arm.
func (c *Controller) MotionEnable(ctx context.Context, enable bool) error {
	if err := c.checkControls(ctx); err != nil {
		return err
	}
	c.cc.Logf("[SIM] Motion Enable: %v", enable)
	if link := c.hardware(); link != nil {
		return link.MotionEnable(enable)
	}
	return nil
}

// SetMode forwards a controller mode change to a connected arm.
func (c *Controller) SetMode(ctx context.Context, mode int) error {
	if link := c.hardware(); link != nil {
		return link.SetMode(mode)
	}
	return nil
}

// SetState forwards a controller state change to a connected arm.
func (c *Controller) SetState(ctx context.Context, state int) error {
	if link := c.hardware(); link != nil {
		return link.SetState(state)
	}
	return nil
}

// CleanWarn clears warnings on a connected arm.
func (c *Controller) CleanWarn(ctx context.Context) error {
	if link := c.hardware(); link != nil {
		return link.CleanWarn()
	}
	return nil
}

// CleanError clears errors on a connected arm.
func (c *Controller) CleanError(ctx context.Context) error {
	if link := c.hardware(); link != nil {
		return link.CleanError()
	}
	return nil
}

// Home puts every joint at zero at once. A connected arm is sent home
// without waiting.
func (c *Controller) Home(ctx context.Context) error {
	c.cc.Log("[HOME] Going home...")
	c.setJoints(JointState{})
	if link := c.hardware(); link != nil {
		code, err := link.SetServoAngle(JointState{}, homeSpeed, false)
		if err != nil {
			return fmt.Errorf("failed to send arm home: %w", err)
		}
		if code != CodeOK {
			c.logger.Warnf("Home command returned code %d", code)
		}
	}
	return nil
}

// Close releases any hardware link, even while a motion command runs.
func (c *Controller) Close(ctx context.Context) error {
	c.logger.Info("Closing controller")
	return c.disconnect()
}
