package litesim

import "context"

// Commander is the command surface scripts program against. *Controller
// implements it; tests may substitute their own.
type Commander interface {
	SetJointAngles(ctx context.Context, target JointState, opts ...MoveOption) (int, error)
	SetPosition(ctx context.Context, target PoseTarget, opts ...MoveOption) (int, error)

	MotionEnable(ctx context.Context, enable bool) error
	SetMode(ctx context.Context, mode int) error
	SetState(ctx context.Context, state int) error
	CleanWarn(ctx context.Context) error
	CleanError(ctx context.Context) error

	Joints() JointState
	CurrentPose() (Pose, error)
	Version() string
	Log(msg string)
}

var _ Commander = (*Controller)(nil)
