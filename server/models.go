package server

import "litesim"

// Response is the envelope for every API reply.
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// StatusData is returned by GET /api/status.
type StatusData struct {
	Version         string             `json:"version"`
	Mode            string             `json:"mode"`
	Joints          litesim.JointState `json:"joints"`
	Pose            *litesim.Pose      `json:"pose,omitempty"`
	Moving          bool               `json:"moving"`
	Paused          bool               `json:"paused"`
	SpeedMultiplier float64            `json:"speed_multiplier"`
	Script          interface{}        `json:"script"`
	Viewers         int                `json:"viewers"`
}

// ConnectRequest is the body of POST /api/connect. An empty address falls
// back to the configured one.
type ConnectRequest struct {
	Address string `json:"address"`
}

// RunRequest is the optional body of POST /api/scripts/:name/run.
type RunRequest struct {
	Loop               bool `json:"loop"`
	DisconnectOnFinish bool `json:"disconnect_on_finish"`
}

// JogRequest is the body of POST /api/joints. Joints are degrees unless
// Radians is set.
type JogRequest struct {
	Joints  *litesim.JointState `json:"joints" binding:"required"`
	Radians bool                `json:"radians"`
}

// SpeedRequest is the body of POST /api/speed.
type SpeedRequest struct {
	Multiplier float64 `json:"multiplier" binding:"required,gt=0"`
}

// ReachData is returned by POST /api/reach.
type ReachData struct {
	Reachable bool                `json:"reachable"`
	Target    litesim.Pose        `json:"target"`
	Joints    *litesim.JointState `json:"joints,omitempty"`
	Reason    string              `json:"reason,omitempty"`
}

// Websocket frames.
type jointsFrame struct {
	Type   string             `json:"type"`
	Joints litesim.JointState `json:"joints"`
}

type logFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
