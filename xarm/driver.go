package xarm

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/rdk/logging"

	"litesim"
)

// Driver dials Lite 6 controllers. It implements litesim.Driver.
type Driver struct {
	logger      logging.Logger
	dialTimeout time.Duration
	callTimeout time.Duration
	debug       bool
}

var _ litesim.Driver = (*Driver)(nil)

// NewDriver returns a driver using dialTimeout both for opening the socket
// and for each request after that.
func NewDriver(dialTimeout time.Duration, debug bool, logger logging.Logger) *Driver {
	if dialTimeout <= 0 {
		dialTimeout = 3 * time.Second
	}
	return &Driver{
		logger:      logger,
		dialTimeout: dialTimeout,
		callTimeout: dialTimeout,
		debug:       debug,
	}
}

// Available is always true: the driver only needs a TCP route to the arm.
func (d *Driver) Available() bool { return true }

// Dial connects to address, adding the command port when none is given,
// and checks that the controller answers a state query.
func (d *Driver) Dial(ctx context.Context, address string) (litesim.HardwareLink, error) {
	addr := withDefaultPort(address, CommandPort)

	dialer := net.Dialer{Timeout: d.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial %s", addr)
	}

	link := newLink(conn, d.callTimeout, d.logger)
	link.debug = d.debug

	state, err := link.State()
	if err != nil {
		return nil, multierr.Append(
			errors.Wrapf(litesim.ErrHandshake, "no state reply from %s: %v", addr, err),
			link.Disconnect(),
		)
	}
	d.logger.Debugf("Arm at %s answered with state %d", addr, state)
	return link, nil
}

func withDefaultPort(address string, port int) string {
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address
	}
	return net.JoinHostPort(address, strconv.Itoa(port))
}
