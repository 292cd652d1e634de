package xarm

import (
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeArm answers the command protocol on a loopback listener.
type fakeArm struct {
	ln net.Listener

	mu        sync.Mutex
	registers []byte
	requests  []Request
	joints    []float64 // radians, 7 values
	pose      []float64 // mm and radians
	state     byte
	errCode   byte
	warnCode  byte
	moveFlags byte
	silent    bool
}

func newFakeArm(t *testing.T) *fakeArm {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	f := &fakeArm{
		ln:     ln,
		joints: make([]float64, 7),
		pose:   []float64{227.6, 0, 381.8, 3.14159265, 0, 0},
		state:  StateStandby,
	}
	go f.serve()
	t.Cleanup(func() { _ = ln.Close() })
	return f
}

func (f *fakeArm) addr() string { return f.ln.Addr().String() }

func (f *fakeArm) serve() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		go f.handle(conn)
	}
}

func (f *fakeArm) handle(conn net.Conn) {
	defer conn.Close()
	for {
		req, err := ReadRequest(conn)
		if err != nil {
			return
		}
		f.mu.Lock()
		if f.silent {
			f.mu.Unlock()
			return
		}
		resp := f.reply(req)
		f.mu.Unlock()
		if _, err := conn.Write(resp.Encode()); err != nil {
			return
		}
	}
}

func (f *fakeArm) reply(req Request) Response {
	f.registers = append(f.registers, req.Register)
	f.requests = append(f.requests, req)
	resp := Response{Txn: req.Txn, Register: req.Register}
	switch req.Register {
	case RegGetState:
		resp.Params = []byte{f.state}
	case RegSetState:
		f.state = req.Params[0]
	case RegGetError:
		resp.Params = []byte{f.errCode, f.warnCode}
	case RegCleanError:
		f.errCode = 0
	case RegCleanWarn:
		f.warnCode = 0
	case RegGetJointPos:
		resp.Params = PutFloats(f.joints...)
	case RegGetTCPPose:
		resp.Params = PutFloats(f.pose...)
	case RegMoveJoint:
		resp.State = f.moveFlags
		if f.moveFlags == 0 {
			vals, _ := Floats(req.Params, 7)
			f.joints = vals
		}
	case RegMoveLine:
		resp.State = f.moveFlags
		if f.moveFlags == 0 {
			vals, _ := Floats(req.Params, 6)
			f.pose = vals
		}
	}
	return resp
}

func (f *fakeArm) lastRequest(register byte) (Request, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		if f.requests[i].Register == register {
			return f.requests[i], true
		}
	}
	return Request{}, false
}
