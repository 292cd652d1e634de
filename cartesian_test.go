package litesim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAxisController(t *testing.T, engine *axisEngine) *Controller {
	t.Helper()
	cfg := fastConfig()
	require.NoError(t, cfg.Validate())
	return newTestController(t, cfg, NewSolver(engine, cfg), nil)
}

func assertJoints(t *testing.T, expected, actual JointState) {
	t.Helper()
	for i := range expected {
		assert.InDelta(t, expected[i], actual[i], 1e-9, "joint %d", i+1)
	}
}

func TestSetPositionWithoutKinematics(t *testing.T) {
	c := newTestController(t, nil, nil, nil)

	code, err := c.SetPosition(context.Background(), PoseTarget{X: Float(250)})
	require.NoError(t, err)
	assert.Equal(t, CodeNoKinematics, code)
	assert.Equal(t, JointState{}, c.Joints())

	_, err = c.CurrentPose()
	assert.ErrorIs(t, err, ErrNoKinematics)
}

func TestSetPositionFollowsLine(t *testing.T) {
	c := newAxisController(t, &axisEngine{})

	code, err := c.SetPosition(context.Background(), PoseTarget{X: Float(30), Y: Float(-20)})
	require.NoError(t, err)
	assert.Equal(t, CodeOK, code)
	assert.InDelta(t, 30, c.Joints()[0], 1e-9)
	assert.InDelta(t, -20, c.Joints()[1], 1e-9)

	logs := c.Context().DrainLogs()
	require.NotEmpty(t, logs)
	assert.Equal(t, "[MOVE] x=30 y=-20 z=0", logs[0])
	assert.Zero(t, countPrefix(logs, "[IK REJECT]"))
}

func TestSetPositionSkipsUnreachableWaypoints(t *testing.T) {
	c := newAxisController(t, &axisEngine{nanFrom: 3})

	code, err := c.SetPosition(context.Background(), PoseTarget{X: Float(10)})
	require.NoError(t, err)
	assert.Equal(t, CodeOK, code)

	// waypoints at x=2,4,6,8,10; the last three fail to solve
	assertJoints(t, JointState{4, 0, 0, 0, 0, 0}, c.Joints())
	logs := c.Context().DrainLogs()
	assert.Equal(t, 3, countPrefix(logs, "[IK REJECT]"))
}

func TestSetPositionSilent(t *testing.T) {
	c := newAxisController(t, &axisEngine{nanFrom: 1})

	code, err := c.SetPosition(context.Background(), PoseTarget{X: Float(10)}, Silent())
	require.NoError(t, err)
	assert.Equal(t, CodeOK, code)
	assert.Equal(t, JointState{}, c.Joints())
	assert.Zero(t, countPrefix(c.Context().DrainLogs(), "[IK REJECT]"))
}

func TestSetPositionNoWaitSolvesGoalOnly(t *testing.T) {
	engine := &axisEngine{}
	c := newAxisController(t, engine)

	_, err := c.SetPosition(context.Background(), PoseTarget{Z: Float(120)}, NoWait())
	require.NoError(t, err)
	assertJoints(t, JointState{2: 120}, c.Joints())
	assert.Equal(t, 1, engine.calls)
}

func TestSetPositionKeepsOrientation(t *testing.T) {
	c := newAxisController(t, &axisEngine{})
	assert.Equal(t, DefaultOrientation, c.lastOrientation())

	_, err := c.SetPosition(context.Background(), PoseTarget{X: Float(5), Yaw: Float(30)}, NoWait())
	require.NoError(t, err)
	assert.Equal(t, Orientation{Roll: 180, Yaw: 30}, c.lastOrientation())

	_, err = c.SetPosition(context.Background(), PoseTarget{Y: Float(5)}, NoWait())
	require.NoError(t, err)
	assert.Equal(t, Orientation{Roll: 180, Yaw: 30}, c.lastOrientation())
}

func TestCheckReachable(t *testing.T) {
	c := newAxisController(t, &axisEngine{})

	q, err := c.CheckReachable(Pose{X: 10, Y: 20, Z: 30})
	require.NoError(t, err)
	assertJoints(t, JointState{10, 20, 30}, q)
	assert.Equal(t, JointState{}, c.Joints())

	// joint 2 has no full-turn alias inside its range
	_, err = c.CheckReachable(Pose{Y: 200})
	assert.ErrorIs(t, err, ErrJointLimit)
}
