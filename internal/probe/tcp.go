package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"netpulse/internal/domain"
)

// DefaultPorts are tried when a target has no port of its own
var DefaultPorts = []int{22, 80, 443, 53}

// errHostUp stops the remaining dials once one port has answered
var errHostUp = errors.New("host up")

// Dialer opens TCP connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// TCPProber checks reachability with TCP connects
type TCPProber struct {
	ports  []int
	dialer Dialer
}

// NewTCPProber creates a TCP prober. Zero ports falls back to DefaultPorts.
func NewTCPProber(ports []int, dialTimeout time.Duration) *TCPProber {
	if len(ports) == 0 {
		ports = DefaultPorts
	}
	return &TCPProber{ports: ports, dialer: &net.Dialer{Timeout: dialTimeout}}
}

// Probe dials every candidate port at once and stops at the first answer.
// An accepted or refused connection means the host is up. Name resolution
// failures are reported as transport errors.
func (p *TCPProber) Probe(ctx context.Context, target domain.Target) (bool, error) {
	ports := p.ports
	if target.Port > 0 {
		ports = []int{target.Port}
	}

	var (
		mu         sync.Mutex
		resolveErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, port := range ports {
		addr := net.JoinHostPort(target.Address, strconv.Itoa(port))
		g.Go(func() error {
			conn, err := p.dialer.DialContext(gctx, "tcp", addr)
			if err == nil {
				conn.Close()
				return errHostUp
			}

			// refused: host is up, port closed
			if errors.Is(err, syscall.ECONNREFUSED) {
				return errHostUp
			}
			var dnsErr *net.DNSError
			if errors.As(err, &dnsErr) {
				mu.Lock()
				if resolveErr == nil {
					resolveErr = err
				}
				mu.Unlock()
			}
			return nil
		})
	}

	if errors.Is(g.Wait(), errHostUp) {
		return true, nil
	}
	if resolveErr != nil {
		return false, fmt.Errorf("resolve %s: %w: %w", target.Address, domain.ErrProbeTransport, resolveErr)
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return false, nil
}
