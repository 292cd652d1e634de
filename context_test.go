package litesim

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSnapshotNeverBlocks(t *testing.T) {
	cc := NewControlContext()

	done := make(chan struct{})
	go func() {
		for i := 1; i <= 100; i++ {
			cc.PublishSnapshot(JointState{float64(i)})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on a full channel")
	}

	latest, ok := cc.LatestSnapshot()
	require.True(t, ok)
	assert.Equal(t, JointState{100}, latest)

	_, ok = cc.LatestSnapshot()
	assert.False(t, ok)
}

func TestLogsDrainInOrder(t *testing.T) {
	cc := NewControlContext()
	for i := 0; i < 5; i++ {
		cc.Logf("line %d", i)
	}

	logs := cc.DrainLogs()
	require.Len(t, logs, 5)
	for i, l := range logs {
		assert.Equal(t, fmt.Sprintf("line %d", i), l)
	}
	assert.Empty(t, cc.DrainLogs())
}

func TestControlFlags(t *testing.T) {
	cc := NewControlContext()
	cc.Pause()
	cc.Stop()
	assert.True(t, cc.Paused())
	assert.True(t, cc.Stopped())

	cc.Reset()
	assert.False(t, cc.Paused())
	assert.False(t, cc.Stopped())
}
