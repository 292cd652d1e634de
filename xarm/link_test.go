package xarm

import (
	"context"
	"errors"
	"math"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/logging"

	"litesim"
)

func dialFake(t *testing.T, f *fakeArm) *Link {
	t.Helper()
	d := NewDriver(time.Second, false, logging.NewTestLogger(t))
	hl, err := d.Dial(context.Background(), f.addr())
	require.NoError(t, err)
	link, ok := hl.(*Link)
	require.True(t, ok)
	t.Cleanup(func() { _ = link.Disconnect() })
	return link
}

func TestDialHandshake(t *testing.T) {
	f := newFakeArm(t)
	link := dialFake(t, f)

	assert.True(t, link.Connected())
	f.mu.Lock()
	assert.Equal(t, []byte{RegGetState}, f.registers)
	f.mu.Unlock()
}

func TestDialFailures(t *testing.T) {
	d := NewDriver(200*time.Millisecond, false, logging.NewTestLogger(t))

	t.Run("nothing listening", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := ln.Addr().String()
		require.NoError(t, ln.Close())

		_, err = d.Dial(context.Background(), addr)
		assert.Error(t, err)
	})

	t.Run("no reply", func(t *testing.T) {
		f := newFakeArm(t)
		f.mu.Lock()
		f.silent = true
		f.mu.Unlock()

		_, err := d.Dial(context.Background(), f.addr())
		assert.True(t, errors.Is(err, litesim.ErrHandshake), "got %v", err)
	})
}

func TestWithDefaultPort(t *testing.T) {
	assert.Equal(t, "192.168.1.155:502", withDefaultPort("192.168.1.155", CommandPort))
	assert.Equal(t, "192.168.1.155:8502", withDefaultPort("192.168.1.155:8502", CommandPort))
	assert.Equal(t, "[fe80::1]:502", withDefaultPort("fe80::1", CommandPort))
}

func TestLinkCommands(t *testing.T) {
	f := newFakeArm(t)
	link := dialFake(t, f)

	require.NoError(t, link.CleanWarn())
	require.NoError(t, link.CleanError())
	require.NoError(t, link.MotionEnable(true))
	require.NoError(t, link.SetMode(litesim.ModePosition))
	require.NoError(t, link.SetState(litesim.StateReady))

	f.mu.Lock()
	assert.Equal(t, []byte{RegGetState, RegCleanWarn, RegCleanError, RegMotionEnable, RegSetMode, RegSetState}, f.registers)
	assert.Equal(t, []byte{allJoints, 1}, f.requests[3].Params)
	f.mu.Unlock()

	state, err := link.State()
	require.NoError(t, err)
	assert.Equal(t, litesim.StateReady, state)
}

func TestLinkJointMove(t *testing.T) {
	f := newFakeArm(t)
	link := dialFake(t, f)

	target := litesim.JointState{10, -20, 90, 0, 45, 180}
	code, err := link.SetServoAngle(target, 30, false)
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	req, ok := f.lastRequest(RegMoveJoint)
	require.True(t, ok)
	vals, err := Floats(req.Params, 10)
	require.NoError(t, err)
	assert.InDelta(t, 30*math.Pi/180, vals[7], 1e-6)

	got, err := link.ServoAngle()
	require.NoError(t, err)
	for i := range target {
		assert.InDelta(t, target[i], got[i], 1e-4)
	}
}

func TestLinkLineMove(t *testing.T) {
	f := newFakeArm(t)
	link := dialFake(t, f)

	pose, err := link.Position()
	require.NoError(t, err)
	assert.InDelta(t, 227.6, pose.X, 1e-3)
	assert.InDelta(t, 180, pose.Roll, 1e-3)

	goal := litesim.Pose{X: 250, Y: 50, Z: 150, Roll: 180}
	code, err := link.SetPosition(goal, 50, false)
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	pose, err = link.Position()
	require.NoError(t, err)
	assert.InDelta(t, 50, pose.Y, 1e-3)
	assert.InDelta(t, 150, pose.Z, 1e-3)
}

func TestLinkMoveCodes(t *testing.T) {
	f := newFakeArm(t)
	link := dialFake(t, f)

	f.mu.Lock()
	f.moveFlags = stateHasError
	f.errCode = 25
	f.mu.Unlock()
	code, err := link.SetPosition(litesim.Pose{X: 900}, 50, false)
	require.NoError(t, err)
	assert.Equal(t, litesim.HardwareCodeKinematic, code)

	f.mu.Lock()
	f.errCode = 1
	f.mu.Unlock()
	code, err = link.SetPosition(litesim.Pose{X: 900}, 50, false)
	require.NoError(t, err)
	assert.Equal(t, 1, code)

	f.mu.Lock()
	f.moveFlags = stateHasWarn
	f.mu.Unlock()
	code, err = link.SetServoAngle(litesim.JointState{}, 30, false)
	require.NoError(t, err)
	assert.Equal(t, 2, code)
}

func TestLinkErrWarnCode(t *testing.T) {
	f := newFakeArm(t)
	link := dialFake(t, f)

	f.mu.Lock()
	f.errCode, f.warnCode = 31, 4
	f.mu.Unlock()
	fault, err := link.ErrWarnCode()
	require.NoError(t, err)
	assert.Equal(t, litesim.FaultCode{Error: 31, Warn: 4}, fault)
}

func TestLinkWaitIdle(t *testing.T) {
	f := newFakeArm(t)
	link := dialFake(t, f)
	link.poll = time.Millisecond

	f.mu.Lock()
	f.state = StateMoving
	f.mu.Unlock()
	go func() {
		time.Sleep(20 * time.Millisecond)
		f.mu.Lock()
		f.state = StateStandby
		f.mu.Unlock()
	}()

	start := time.Now()
	code, err := link.SetServoAngle(litesim.JointState{1}, 30, true)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestLinkWaitIdleTimeout(t *testing.T) {
	f := newFakeArm(t)
	link := dialFake(t, f)
	link.poll = time.Millisecond
	link.idle = 20 * time.Millisecond

	f.mu.Lock()
	f.state = StateMoving
	f.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := link.SetServoAngle(litesim.JointState{1}, 30, true)
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrIdleTimeout)
		assert.ErrorContains(t, err, "still moving after 20ms")
	case <-time.After(2 * time.Second):
		t.Fatal("wait did not time out")
	}

	// the link stays usable
	_, err := link.ServoAngle()
	require.NoError(t, err)
}

func TestLinkDisconnect(t *testing.T) {
	f := newFakeArm(t)
	link := dialFake(t, f)

	require.NoError(t, link.Disconnect())
	assert.False(t, link.Connected())
	require.NoError(t, link.Disconnect())

	_, err := link.ServoAngle()
	assert.Error(t, err)
}
