package litesim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.viam.com/rdk/logging"
	"go.viam.com/utils"
)

// FaultAlert is raised when the arm's error code moves to a new nonzero value.
type FaultAlert struct {
	Code int `json:"code"`
}

// Kind classifies the alert: code 1 is an emergency stop, anything else is
// reported as an opaque crash code.
func (a FaultAlert) Kind() string {
	if a.Code == 1 {
		return "ESTOP"
	}
	return "CRASH"
}

func (a FaultAlert) String() string {
	if a.Code == 1 {
		return "ESTOP"
	}
	return fmt.Sprintf("CRASH:%d", a.Code)
}

// FaultEdge turns a stream of error codes into edge-triggered alerts.
type FaultEdge struct {
	last int
}

// Observe records code and returns an alert if it is nonzero and differs
// from the previous code.
func (e *FaultEdge) Observe(code int) (FaultAlert, bool) {
	prev := e.last
	e.last = code
	if code == 0 || code == prev {
		return FaultAlert{}, false
	}
	return FaultAlert{Code: code}, true
}

type telemetrySink interface {
	applyTelemetry(joints JointState, pose Pose)
	reportFault(alert FaultAlert)
}

// TelemetryMonitor polls a hardware link while connected and feeds the
// readings back into the controller.
type TelemetryMonitor struct {
	logger   logging.Logger
	link     HardwareLink
	sink     telemetrySink
	interval time.Duration
	edge     FaultEdge

	mu      sync.Mutex
	cancel  context.CancelFunc
	workers sync.WaitGroup
}

func newTelemetryMonitor(sink telemetrySink, link HardwareLink, interval time.Duration, logger logging.Logger) *TelemetryMonitor {
	return &TelemetryMonitor{
		logger:   logger,
		link:     link,
		sink:     sink,
		interval: interval,
	}
}

// Start launches the polling goroutine. Calling Start twice is a no-op.
func (m *TelemetryMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.workers.Add(1)
	utils.PanicCapturingGo(func() {
		defer m.workers.Done()
		m.run(ctx)
	})
}

// Stop signals the goroutine and waits for it to exit.
func (m *TelemetryMonitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.workers.Wait()
}

func (m *TelemetryMonitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = time.Second
	bo.MaxElapsedTime = 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := m.poll(); err != nil {
			wait := bo.NextBackOff()
			m.logger.Debugf("Telemetry read failed, retrying in %s: %v", wait, err)
			if !utils.SelectContextOrWait(ctx, wait) {
				return
			}
			continue
		}
		bo.Reset()
	}
}

// poll performs one read cycle: fault code, joints, pose.
func (m *TelemetryMonitor) poll() error {
	code, err := m.link.ErrWarnCode()
	if err != nil {
		return fmt.Errorf("read fault code: %w", err)
	}
	if alert, ok := m.edge.Observe(code.Error); ok {
		m.sink.reportFault(alert)
	}

	joints, err := m.link.ServoAngle()
	if err != nil {
		return fmt.Errorf("read joints: %w", err)
	}
	pose, err := m.link.Position()
	if err != nil {
		return fmt.Errorf("read pose: %w", err)
	}
	m.sink.applyTelemetry(joints, pose)
	return nil
}
