package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/Ullaakut/nmap/v3"
	"go.uber.org/zap"

	"netpulse/internal/domain"
)

// NmapProber checks reachability with an nmap ping scan (-sn)
type NmapProber struct {
	logger *zap.Logger
}

// NewNmapProber creates an nmap-backed prober
func NewNmapProber(logger *zap.Logger) *NmapProber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NmapProber{logger: logger.Named("nmap")}
}

// Available reports whether the nmap binary can be run
func (p *NmapProber) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	scanner, err := nmap.NewScanner(
		ctx,
		nmap.WithTargets("localhost"),
		nmap.WithListScan(),
	)
	if err != nil {
		return false
	}
	_, _, err = scanner.Run()
	return err == nil
}

// Probe reports whether nmap saw the host as up
func (p *NmapProber) Probe(ctx context.Context, target domain.Target) (bool, error) {
	scanner, err := nmap.NewScanner(
		ctx,
		nmap.WithTargets(target.Address),
		nmap.WithPingScan(),
	)
	if err != nil {
		return false, fmt.Errorf("nmap %s: %w: %w", target.Address, domain.ErrProbeTransport, err)
	}

	result, warnings, err := scanner.Run()
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, fmt.Errorf("nmap %s: %w: %w", target.Address, domain.ErrProbeTransport, err)
	}
	if warnings != nil && len(*warnings) > 0 {
		p.logger.Debug("scan warnings", zap.String("address", target.Address), zap.Strings("warnings", *warnings))
	}

	return hostUp(result), nil
}

func hostUp(result *nmap.Run) bool {
	if result == nil {
		return false
	}
	for _, host := range result.Hosts {
		if host.Status.State == "up" {
			return true
		}
	}
	return false
}
