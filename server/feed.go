package server

import (
	"context"
	"time"
)

// feed pushes pending snapshots and log lines to the hub until ctx is done.
func (s *Server) feed(ctx context.Context) {
	ticker := time.NewTicker(s.feedInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.flush()
			return
		case <-ticker.C:
			s.flush()
		}
	}
}

// flush sends the newest joint snapshot, if any, then every queued log line.
func (s *Server) flush() {
	cc := s.arm.Context()
	if joints, ok := cc.LatestSnapshot(); ok {
		s.send(jointsFrame{Type: "joints", Joints: joints})
	}
	for _, msg := range cc.DrainLogs() {
		s.send(logFrame{Type: "log", Message: msg})
	}
}

func (s *Server) send(v interface{}) {
	if err := s.hub.BroadcastJSON(v); err != nil {
		s.logger.Errorf("Failed to encode frame: %v", err)
	}
}
