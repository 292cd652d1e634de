package litesim

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/logging"
)

func TestFaultEdge(t *testing.T) {
	var edge FaultEdge
	var alerts []FaultAlert
	for _, code := range []int{0, 0, 5, 5, 5, 0, 5} {
		if a, ok := edge.Observe(code); ok {
			alerts = append(alerts, a)
		}
	}
	assert.Equal(t, []FaultAlert{{Code: 5}, {Code: 5}}, alerts)

	edge = FaultEdge{}
	a, ok := edge.Observe(1)
	require.True(t, ok)
	b, ok := edge.Observe(2)
	require.True(t, ok)
	assert.Equal(t, "ESTOP", a.String())
	assert.Equal(t, "CRASH:2", b.String())
	assert.Equal(t, "CRASH", b.Kind())
}

type recordingSink struct {
	mu     sync.Mutex
	joints []JointState
	alerts []FaultAlert
}

func (s *recordingSink) applyTelemetry(joints JointState, _ Pose) {
	s.mu.Lock()
	s.joints = append(s.joints, joints)
	s.mu.Unlock()
}

func (s *recordingSink) reportFault(alert FaultAlert) {
	s.mu.Lock()
	s.alerts = append(s.alerts, alert)
	s.mu.Unlock()
}

func (s *recordingSink) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.joints), len(s.alerts)
}

func TestTelemetryMonitorStartStop(t *testing.T) {
	link := newFakeLink()
	sink := &recordingSink{}
	m := newTelemetryMonitor(sink, link, 2*time.Millisecond, logging.NewTestLogger(t))

	m.Start()
	m.Start()
	require.Eventually(t, func() bool { n, _ := sink.counts(); return n >= 3 }, time.Second, time.Millisecond)
	m.Stop()

	n, _ := sink.counts()
	time.Sleep(10 * time.Millisecond)
	after, _ := sink.counts()
	assert.Equal(t, n, after)

	// stopping twice is harmless
	m.Stop()
}

func TestTelemetryMonitorRecoversFromReadErrors(t *testing.T) {
	link := newFakeLink()
	link.readErrs = 3
	link.joints = JointState{9}
	sink := &recordingSink{}
	m := newTelemetryMonitor(sink, link, 2*time.Millisecond, logging.NewTestLogger(t))
	m.Start()
	defer m.Stop()

	require.Eventually(t, func() bool { n, _ := sink.counts(); return n > 0 }, 3*time.Second, 5*time.Millisecond)
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, JointState{9}, sink.joints[0])
}

func TestControllerFaultAlerts(t *testing.T) {
	link := newFakeLink()
	link.faults = []int{0, 0, 5, 5, 5, 0, 5}
	c := newTestController(t, nil, nil, &fakeDriver{link: link})

	var mu sync.Mutex
	var got []FaultAlert
	c.SetFaultHandler(func(a FaultAlert) {
		mu.Lock()
		got = append(got, a)
		mu.Unlock()
	})
	require.NoError(t, c.Connect(context.Background(), "10.0.0.2"))

	// the sequence ends on a repeating 5, so two alerts is the final count
	require.Eventually(t, func() bool {
		link.mu.Lock()
		defer link.mu.Unlock()
		return link.faultIdx == len(link.faults)-1
	}, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	assert.Equal(t, []FaultAlert{{Code: 5}, {Code: 5}}, got)
	mu.Unlock()
	assert.Equal(t, 2, countPrefix(c.Context().DrainLogs(), "[ALERT] CRASH:5"))
}
