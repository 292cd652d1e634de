package scripts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.viam.com/rdk/logging"
	"go.viam.com/utils"

	"litesim"
)

var (
	// ErrUnknownScript is returned when no script has the requested name.
	ErrUnknownScript = errors.New("unknown script")
	// ErrBusy is returned when a run is already active.
	ErrBusy = errors.New("a script is already running")
	// ErrNothingToRestart is returned by Restart before any script has run.
	ErrNothingToRestart = errors.New("no script to restart")
)

// stopWait bounds how long Stop waits for the running script to unwind.
const stopWait = 2 * time.Second

// Arm is what the runner needs beyond the script command surface.
type Arm interface {
	litesim.Commander
	Context() *litesim.ControlContext
	Mode() litesim.Mode
	Home(ctx context.Context) error
	Disconnect(ctx context.Context) error
}

// RunOptions controls what happens when a script finishes.
type RunOptions struct {
	// Loop restarts the script until it is stopped.
	Loop bool `json:"loop"`
	// DisconnectOnFinish releases the hardware link after the last run.
	DisconnectOnFinish bool `json:"disconnect_on_finish"`
}

// Status describes the active run, if any.
type Status struct {
	Running bool   `json:"running"`
	RunID   string `json:"run_id,omitempty"`
	Script  string `json:"script,omitempty"`
	Loop    bool   `json:"loop,omitempty"`
}

// Runner executes one script at a time against an arm.
type Runner struct {
	logger   logging.Logger
	arm      Arm
	registry *Registry

	mu       sync.Mutex
	status   Status
	cancel   context.CancelFunc
	done     chan struct{}
	lastName string
	lastOpts RunOptions
}

// NewRunner returns a runner over registry, or the default registry when nil.
func NewRunner(arm Arm, registry *Registry, logger logging.Logger) *Runner {
	if registry == nil {
		registry = Default
	}
	return &Runner{logger: logger, arm: arm, registry: registry}
}

// Scripts lists the names the runner can start.
func (r *Runner) Scripts() []string {
	return r.registry.Names()
}

// Status reports the active run.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Start launches name in the background and returns its run id.
func (r *Runner) Start(name string, opts RunOptions) (string, error) {
	script, ok := r.registry.Lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownScript, name)
	}

	r.mu.Lock()
	if r.status.Running {
		r.mu.Unlock()
		return "", ErrBusy
	}
	ctx, cancel := context.WithCancel(context.Background())
	id := r.begin(script, opts, cancel)
	done := r.done
	r.mu.Unlock()

	utils.PanicCapturingGo(func() {
		defer close(done)
		defer r.end()
		if err := r.loop(ctx, script, opts); err != nil {
			r.logger.Warnf("Script %s (run %s) finished with error: %v", name, id, err)
		}
	})
	return id, nil
}

// Run executes name in the calling goroutine and returns once it has
// finished, been stopped, or ctx is done.
func (r *Runner) Run(ctx context.Context, name string, opts RunOptions) error {
	script, ok := r.registry.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownScript, name)
	}

	r.mu.Lock()
	if r.status.Running {
		r.mu.Unlock()
		return ErrBusy
	}
	ctx, cancel := context.WithCancel(ctx)
	r.begin(script, opts, cancel)
	done := r.done
	r.mu.Unlock()

	defer close(done)
	defer r.end()
	return r.loop(ctx, script, opts)
}

// begin must be called with mu held.
func (r *Runner) begin(script Script, opts RunOptions, cancel context.CancelFunc) string {
	id := uuid.NewString()
	r.status = Status{Running: true, RunID: id, Script: script.Name(), Loop: opts.Loop}
	r.cancel = cancel
	r.done = make(chan struct{})
	r.lastName, r.lastOpts = script.Name(), opts
	r.logger.Infof("Starting script %s (run %s, loop %v)", script.Name(), id, opts.Loop)
	return id
}

func (r *Runner) end() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
	r.status = Status{}
	r.cancel = nil
}

func (r *Runner) loop(ctx context.Context, script Script, opts RunOptions) error {
	cc := r.arm.Context()
	for {
		cc.Reset()
		err := r.once(ctx, script)

		if cc.Stopped() || ctx.Err() != nil {
			cc.Log("[LOOP] Stopped by user.")
			r.disconnect()
			return nil
		}
		if opts.Loop {
			cc.Log("[LOOP] Looping...")
			continue
		}
		if opts.DisconnectOnFinish {
			r.disconnect()
		}
		return err
	}
}

// once runs the script a single time between the start and done markers.
func (r *Runner) once(ctx context.Context, script Script) (err error) {
	cc := r.arm.Context()
	cc.Logf("--- Start: %s ---", script.Name())
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("script panicked: %v", p)
			cc.Logf("Error: %v", err)
		}
		cc.Log("--- Done ---")
	}()

	err = script.Run(ctx, r.arm)
	var cancelled *litesim.CancelledError
	switch {
	case errors.As(err, &cancelled):
		cc.Logf("--- %s ---", cancelled.Reason)
		return nil
	case err != nil:
		cc.Logf("Error: %v", err)
	}
	return err
}

func (r *Runner) disconnect() {
	if err := r.arm.Disconnect(context.Background()); err != nil {
		r.logger.Warnf("Failed to disconnect after script: %v", err)
	}
}

// Pause holds the running script at its next step.
func (r *Runner) Pause() {
	r.arm.Context().Pause()
	r.arm.Context().Log("[UI] Paused")
}

// Resume releases a pause.
func (r *Runner) Resume() {
	r.arm.Context().Resume()
	r.arm.Context().Log("[UI] Resumed")
}

// Stop cancels the running script, clears any pause and sends the arm home.
// A connected arm is homed at once; the simulation is homed after the
// script has unwound so that no late step overwrites it.
func (r *Runner) Stop(ctx context.Context) error {
	cc := r.arm.Context()
	cc.Stop()
	cc.Resume()

	var homeErr error
	hardware := r.arm.Mode() == litesim.ModeHardware
	if hardware {
		homeErr = r.arm.Home(ctx)
	}

	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(stopWait):
			r.logger.Warn("Script did not stop in time")
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if !hardware {
		homeErr = r.arm.Home(ctx)
	}
	cc.Log("[UI] Stop signal...")
	return homeErr
}

// Restart stops the active run, if any, and starts the most recently run
// script again with the same options.
func (r *Runner) Restart(ctx context.Context) (string, error) {
	r.mu.Lock()
	name, opts := r.lastName, r.lastOpts
	r.mu.Unlock()
	if name == "" {
		return "", ErrNothingToRestart
	}

	if err := r.Stop(ctx); err != nil {
		return "", err
	}
	r.arm.Context().Logf("[UI] Restarting %s", name)
	return r.Start(name, opts)
}

// Wait blocks until the active run, if any, has finished.
func (r *Runner) Wait() {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
		<-done
	}
}
