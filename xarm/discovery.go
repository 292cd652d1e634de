package xarm

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.viam.com/rdk/logging"
	"golang.org/x/sync/errgroup"
)

// Scan parameters
const (
	DefaultSubnet = "192.168.1"
	ProbeTimeout  = 50 * time.Millisecond
	scanWorkers   = 32
)

// Scan probes every host of a /24 subnet on port and returns the addresses
// that accepted a TCP connection, in ascending order. A cancelled ctx stops
// the scan and returns what was found so far with ctx.Err().
func Scan(ctx context.Context, subnet string, port int, logger logging.Logger) ([]string, error) {
	hosts := CandidateHosts(subnet)
	if len(hosts) == 0 {
		return nil, fmt.Errorf("invalid subnet %q", subnet)
	}
	logger.Infof("Scanning %s.1-254 on port %d", normalizeSubnet(subnet), port)

	var (
		mu    sync.Mutex
		found []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scanWorkers)
	for _, host := range hosts {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if probe(gctx, host, port) {
				logger.Debugf("Found listener at %s:%d", host, port)
				mu.Lock()
				found = append(found, host)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	sortHosts(found)
	if err := ctx.Err(); err != nil {
		logger.Info("Scan cancelled")
		return found, err
	}
	if len(found) == 0 {
		logger.Info("No arms found")
	} else {
		logger.Infof("Found %d candidate arms", len(found))
	}
	return found, nil
}

func probe(ctx context.Context, host string, port int) bool {
	dialer := net.Dialer{Timeout: ProbeTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// CandidateHosts expands a /24 prefix such as "192.168.1" or "192.168.1.0/24"
// into its 254 host addresses. Anything else yields nil.
func CandidateHosts(subnet string) []string {
	prefix := normalizeSubnet(subnet)
	parts := strings.Split(prefix, ".")
	if len(parts) != 3 {
		return nil
	}
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 || p != strconv.Itoa(n) {
			return nil
		}
	}
	hosts := make([]string, 0, 254)
	for i := 1; i <= 254; i++ {
		hosts = append(hosts, prefix+"."+strconv.Itoa(i))
	}
	return hosts
}

func normalizeSubnet(subnet string) string {
	s := strings.TrimSpace(subnet)
	s = strings.TrimSuffix(s, "/24")
	s = strings.TrimSuffix(s, ".")
	if parts := strings.Split(s, "."); len(parts) == 4 {
		s = strings.Join(parts[:3], ".")
	}
	return s
}

// LocalSubnet guesses the /24 of the interface that routes to the internet.
// No packets are sent. It falls back to DefaultSubnet.
func LocalSubnet() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return DefaultSubnet
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return DefaultSubnet
	}
	ip4 := addr.IP.To4()
	if ip4 == nil {
		return DefaultSubnet
	}
	return fmt.Sprintf("%d.%d.%d", ip4[0], ip4[1], ip4[2])
}

func sortHosts(hosts []string) {
	sort.Slice(hosts, func(i, j int) bool {
		return lastOctet(hosts[i]) < lastOctet(hosts[j])
	})
}

func lastOctet(host string) int {
	n, _ := strconv.Atoi(host[strings.LastIndex(host, ".")+1:])
	return n
}
