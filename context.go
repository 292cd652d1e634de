package litesim

import (
	"fmt"
	"sync"
	"sync/atomic"
)

const snapshotBuffer = 2

// ControlContext is shared between the script goroutine, the operator and
// the renderer. It carries the stop and pause flags, a snapshot channel that
// only ever holds the freshest joint states, and an unbounded FIFO log.
type ControlContext struct {
	stopped atomic.Bool
	paused  atomic.Bool

	snapshots chan JointState

	logMu sync.Mutex
	logs  []string
}

// NewControlContext returns a context with both flags cleared.
func NewControlContext() *ControlContext {
	return &ControlContext{
		snapshots: make(chan JointState, snapshotBuffer),
	}
}

// Stop requests cancellation of the running motion.
func (cc *ControlContext) Stop() { cc.stopped.Store(true) }

// Stopped reports whether Stop has been called since the last Reset.
func (cc *ControlContext) Stopped() bool { return cc.stopped.Load() }

// Pause holds motion at the next step boundary.
func (cc *ControlContext) Pause() { cc.paused.Store(true) }

// Resume releases a pause.
func (cc *ControlContext) Resume() { cc.paused.Store(false) }

// Paused reports the pause flag.
func (cc *ControlContext) Paused() bool { return cc.paused.Load() }

// Reset clears both flags before a new run.
func (cc *ControlContext) Reset() {
	cc.stopped.Store(false)
	cc.paused.Store(false)
}

// PublishSnapshot offers s to the renderer. It never blocks: when the
// channel is full the oldest pending snapshot is discarded.
func (cc *ControlContext) PublishSnapshot(s JointState) {
	for {
		select {
		case cc.snapshots <- s:
			return
		default:
		}
		select {
		case <-cc.snapshots:
		default:
		}
	}
}

// Snapshots is the renderer side of the snapshot channel.
func (cc *ControlContext) Snapshots() <-chan JointState {
	return cc.snapshots
}

// LatestSnapshot drains the channel and returns the newest pending state.
func (cc *ControlContext) LatestSnapshot() (JointState, bool) {
	var (
		latest JointState
		ok     bool
	)
	for {
		select {
		case s := <-cc.snapshots:
			latest, ok = s, true
		default:
			return latest, ok
		}
	}
}

// Log appends a user-facing message.
func (cc *ControlContext) Log(msg string) {
	cc.logMu.Lock()
	cc.logs = append(cc.logs, msg)
	cc.logMu.Unlock()
}

// Logf is Log with formatting.
func (cc *ControlContext) Logf(format string, args ...interface{}) {
	cc.Log(fmt.Sprintf(format, args...))
}

// DrainLogs returns all queued messages in order and empties the queue.
func (cc *ControlContext) DrainLogs() []string {
	cc.logMu.Lock()
	defer cc.logMu.Unlock()
	out := cc.logs
	cc.logs = nil
	return out
}
