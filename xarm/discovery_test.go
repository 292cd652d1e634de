package xarm

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/logging"
)

func TestCandidateHosts(t *testing.T) {
	tests := []struct {
		name   string
		subnet string
		first  string
		last   string
		count  int
	}{
		{name: "bare prefix", subnet: "192.168.1", first: "192.168.1.1", last: "192.168.1.254", count: 254},
		{name: "trailing dot", subnet: "10.0.0.", first: "10.0.0.1", last: "10.0.0.254", count: 254},
		{name: "cidr", subnet: "172.16.5.0/24", first: "172.16.5.1", last: "172.16.5.254", count: 254},
		{name: "host address", subnet: "192.168.7.155", first: "192.168.7.1", last: "192.168.7.254", count: 254},
		{name: "empty", subnet: "", count: 0},
		{name: "too short", subnet: "192.168", count: 0},
		{name: "out of range", subnet: "192.300.1", count: 0},
		{name: "not numeric", subnet: "192.168.x", count: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hosts := CandidateHosts(tt.subnet)
			assert.Len(t, hosts, tt.count)
			if tt.count > 0 {
				assert.Equal(t, tt.first, hosts[0])
				assert.Equal(t, tt.last, hosts[len(hosts)-1])
			}
		})
	}
}

func TestLocalSubnet(t *testing.T) {
	assert.Len(t, CandidateHosts(LocalSubnet()), 254)
}

func TestScanFindsListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	port := ln.Addr().(*net.TCPAddr).Port

	found, err := Scan(context.Background(), "127.0.0", port, logging.NewTestLogger(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"127.0.0.1"}, found)
}

func TestScanHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := Scan(ctx, "127.0.0", 1, logging.NewTestLogger(t))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestScanRejectsBadSubnet(t *testing.T) {
	_, err := Scan(context.Background(), "nope", ReportPort, logging.NewTestLogger(t))
	assert.Error(t, err)
}
