// Package xarm drives UFACTORY Lite 6 controllers over their private TCP
// command protocol.
package xarm

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
)

// Protocol constants
const (
	CommandPort = 502
	ReportPort  = 30002

	protocolID = 0x0002
	headerLen  = 6
	maxBody    = 1024
)

// Register numbers of the command protocol.
const (
	RegMotionEnable byte = 11
	RegSetState     byte = 12
	RegGetState     byte = 13
	RegGetError     byte = 15
	RegCleanError   byte = 16
	RegCleanWarn    byte = 17
	RegSetMode      byte = 19
	RegMoveLine     byte = 21
	RegMoveJoint    byte = 23
	RegGetTCPPose   byte = 41
	RegGetJointPos  byte = 42
)

// Response state bits
const (
	stateHasError = 0x40
	stateHasWarn  = 0x20
)

// allJoints addresses every servo in a motion enable request.
const allJoints = 8

// Request is one command frame sent to the controller.
type Request struct {
	Txn      uint16
	Register byte
	Params   []byte
}

// Response is a decoded reply. State carries the controller's error and
// warning flags.
type Response struct {
	Txn      uint16
	Register byte
	State    byte
	Params   []byte
}

// Code maps the state flags onto the SDK result convention: 1 when the
// controller has an error, 2 for a warning, 0 otherwise.
func (r Response) Code() int {
	switch {
	case r.State&stateHasError != 0:
		return 1
	case r.State&stateHasWarn != 0:
		return 2
	default:
		return 0
	}
}

// Encode builds the frame: [txn, protocol, length, register, ...params].
func (r Request) Encode() []byte {
	packet := make([]byte, headerLen, headerLen+1+len(r.Params))
	binary.BigEndian.PutUint16(packet[0:], r.Txn)
	binary.BigEndian.PutUint16(packet[2:], protocolID)
	binary.BigEndian.PutUint16(packet[4:], uint16(1+len(r.Params)))
	packet = append(packet, r.Register)
	return append(packet, r.Params...)
}

// ReadRequest decodes one request frame from rd.
func ReadRequest(rd io.Reader) (Request, error) {
	txn, body, err := readFrame(rd, 1)
	if err != nil {
		return Request{}, err
	}
	return Request{Txn: txn, Register: body[0], Params: body[1:]}, nil
}

// Encode builds a response frame: [txn, protocol, length, register, state, ...params].
func (r Response) Encode() []byte {
	packet := make([]byte, headerLen, headerLen+2+len(r.Params))
	binary.BigEndian.PutUint16(packet[0:], r.Txn)
	binary.BigEndian.PutUint16(packet[2:], protocolID)
	binary.BigEndian.PutUint16(packet[4:], uint16(2+len(r.Params)))
	packet = append(packet, r.Register, r.State)
	return append(packet, r.Params...)
}

// ReadResponse decodes one response frame from rd.
func ReadResponse(rd io.Reader) (Response, error) {
	txn, body, err := readFrame(rd, 2)
	if err != nil {
		return Response{}, err
	}
	return Response{Txn: txn, Register: body[0], State: body[1], Params: body[2:]}, nil
}

func readFrame(rd io.Reader, minBody int) (uint16, []byte, error) {
	header := make([]byte, headerLen)
	if _, err := io.ReadFull(rd, header); err != nil {
		return 0, nil, errors.Wrap(err, "failed to read frame header")
	}
	if proto := binary.BigEndian.Uint16(header[2:]); proto != protocolID {
		return 0, nil, errors.Errorf("unexpected protocol id 0x%04x", proto)
	}
	length := int(binary.BigEndian.Uint16(header[4:]))
	if length < minBody || length > maxBody {
		return 0, nil, errors.Errorf("invalid frame length %d", length)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(rd, body); err != nil {
		return 0, nil, errors.Wrap(err, "failed to read frame body")
	}
	return binary.BigEndian.Uint16(header[0:]), body, nil
}

// PutFloats encodes vals as little-endian float32.
func PutFloats(vals ...float64) []byte {
	out := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(float32(v)))
	}
	return out
}

// Floats decodes n little-endian float32 values from data.
func Floats(data []byte, n int) ([]float64, error) {
	if len(data) < 4*n {
		return nil, errors.Errorf("insufficient data: want %d floats, got %d bytes", n, len(data))
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:])))
	}
	return out, nil
}
