package scripts

import (
	"context"
	"fmt"
	"time"

	"go.viam.com/utils"

	"litesim"
)

// SettleDelay is the pause after preparing the arm and after the first move.
var SettleDelay = time.Second

func init() {
	for _, s := range []Script{
		New("basic", runBasic),
		New("square", runSquare),
		New("wave", runWave),
		New("snake", runSnake),
	} {
		if err := Register(s); err != nil {
			panic(err)
		}
	}
}

// prepare clears faults and puts the arm in position mode, ready state.
func prepare(ctx context.Context, arm litesim.Commander) error {
	steps := []func(context.Context) error{
		arm.CleanWarn,
		arm.CleanError,
		func(ctx context.Context) error { return arm.MotionEnable(ctx, true) },
		func(ctx context.Context) error { return arm.SetMode(ctx, litesim.ModePosition) },
		func(ctx context.Context) error { return arm.SetState(ctx, litesim.StateReady) },
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return err
		}
	}
	return settle(ctx)
}

// finish parks the controller in the stop state whatever happened.
func finish(arm litesim.Commander, msg string) {
	_ = arm.SetState(context.Background(), litesim.StateStop)
	arm.Log(msg)
}

func settle(ctx context.Context) error {
	if !utils.SelectContextOrWait(ctx, SettleDelay) {
		return &litesim.CancelledError{Reason: "Script stopped by user."}
	}
	return nil
}

var flange = litesim.DefaultOrientation

func poseAt(x, y, z float64) litesim.PoseTarget {
	return litesim.Pose{X: x, Y: y, Z: z, Roll: flange.Roll, Pitch: flange.Pitch, Yaw: flange.Yaw}.Target()
}

func runBasic(ctx context.Context, arm litesim.Commander) error {
	defer finish(arm, "Done, connection released")
	if err := prepare(ctx, arm); err != nil {
		return err
	}

	code, err := arm.SetPosition(ctx, poseAt(250, 0, 150), litesim.WithSpeed(50))
	if err != nil {
		return err
	}
	arm.Log(fmt.Sprintf("To start pose, code: %d", code))
	if err := settle(ctx); err != nil {
		return err
	}

	waypoints := []litesim.PoseTarget{
		poseAt(250, 50, 150),
		poseAt(250, -50, 150),
		poseAt(250, 0, 180),
	}
	for i, wp := range waypoints {
		code, err := arm.SetPosition(ctx, wp, litesim.WithSpeed(50))
		if err != nil {
			return err
		}
		arm.Log(fmt.Sprintf("Waypoint %d, code: %d", i, code))
		if code != litesim.CodeOK {
			arm.Log(fmt.Sprintf("Motion aborted by error, code: %d", code))
			break
		}
	}
	return nil
}

func runSquare(ctx context.Context, arm litesim.Commander) error {
	defer finish(arm, "Square complete")
	if err := prepare(ctx, arm); err != nil {
		return err
	}

	const (
		startX = 250.0
		startZ = 200.0
		size   = 200.0
	)
	if _, err := arm.SetPosition(ctx, poseAt(startX, size/2, startZ), litesim.WithSpeed(60)); err != nil {
		return err
	}
	arm.Log("Ready for the square...")

	for lap := 0; lap < 2; lap++ {
		arm.Log(fmt.Sprintf("Lap %d", lap+1))
		for _, edge := range []litesim.PoseTarget{
			{Y: litesim.Float(-size / 2)},
			{Z: litesim.Float(startZ + size)},
			{Y: litesim.Float(size / 2)},
			{Z: litesim.Float(startZ)},
		} {
			if _, err := arm.SetPosition(ctx, edge, litesim.WithSpeed(100)); err != nil {
				return err
			}
		}
	}
	return nil
}

func runWave(ctx context.Context, arm litesim.Commander) error {
	defer finish(arm, "Done waving")
	if err := prepare(ctx, arm); err != nil {
		return err
	}

	arm.Log("To wave position...")
	if _, err := arm.SetPosition(ctx, poseAt(200, 0, 300), litesim.WithSpeed(80)); err != nil {
		return err
	}
	arm.Log("Start waving...")
	for i := 0; i < 3; i++ {
		for _, y := range []float64{100, -100} {
			if _, err := arm.SetPosition(ctx, litesim.PoseTarget{Y: litesim.Float(y)}, litesim.WithSpeed(150)); err != nil {
				return err
			}
		}
	}
	_, err := arm.SetPosition(ctx, litesim.PoseTarget{Y: litesim.Float(0)}, litesim.WithSpeed(100))
	return err
}

func runSnake(ctx context.Context, arm litesim.Commander) error {
	defer finish(arm, "Dance complete")
	if err := prepare(ctx, arm); err != nil {
		return err
	}

	rest := litesim.JointState{0, 0, 90, 0, 90, 0}
	arm.Log("To start position (joints)...")
	if _, err := arm.SetJointAngles(ctx, rest, litesim.WithSpeed(40)); err != nil {
		return err
	}
	arm.Log("Start snake dance...")
	for i := 0; i < 3; i++ {
		for _, q := range []litesim.JointState{
			{45, 0, 90, 0, 60, 0},
			{-45, 0, 90, 0, 120, 0},
		} {
			if _, err := arm.SetJointAngles(ctx, q, litesim.WithSpeed(60)); err != nil {
				return err
			}
		}
	}
	_, err := arm.SetJointAngles(ctx, rest, litesim.WithSpeed(40))
	return err
}
