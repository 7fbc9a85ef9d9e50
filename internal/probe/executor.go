package probe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"netpulse/internal/domain"
	"netpulse/internal/metrics"
)

const (
	DefaultTimeout     = 2 * time.Second
	DefaultMaxParallel = 32
)

// Executor probes many targets with bounded concurrency
type Executor struct {
	prober      Prober
	timeout     time.Duration
	maxParallel int
	logger      *zap.Logger
}

// NewExecutor creates an executor. Non-positive timeout or parallelism
// fall back to the defaults.
func NewExecutor(prober Prober, timeout time.Duration, maxParallel int, logger *zap.Logger) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxParallel <= 0 {
		maxParallel = DefaultMaxParallel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		prober:      prober,
		timeout:     timeout,
		maxParallel: maxParallel,
		logger:      logger.Named("probe"),
	}
}

// Probe checks every target and returns one result per node id.
// It returns once every probe has finished or hit its timeout.
func (e *Executor) Probe(ctx context.Context, targets []domain.Target) map[string]Result {
	results := make(map[string]Result, len(targets))
	if len(targets) == 0 {
		return results
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(min(e.maxParallel, len(targets)))

	for _, target := range targets {
		g.Go(func() error {
			res := e.probeOne(ctx, target)
			mu.Lock()
			results[target.NodeID] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// probeOne runs a single probe under its own deadline. A prober that ignores
// its context is abandoned when the deadline passes.
func (e *Executor) probeOne(ctx context.Context, target domain.Target) Result {
	metrics.ProbesInFlight.Inc()
	defer metrics.ProbesInFlight.Dec()

	probeCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		alive, err := e.prober.Probe(probeCtx, target)
		done <- Result{Alive: alive && err == nil, Err: err}
	}()

	var res Result
	select {
	case res = <-done:
	case <-probeCtx.Done():
		res = Result{Err: probeCtx.Err()}
	}

	if res.Err != nil {
		res.Err = classify(target, res.Err)
	}
	e.record(target, res)
	return res
}

// classify maps a probe error onto ErrProbeTimeout or ErrProbeTransport
func classify(target domain.Target, err error) error {
	switch {
	case errors.Is(err, domain.ErrProbeTimeout), errors.Is(err, domain.ErrProbeTransport):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("probe %s: %w", target.Address, domain.ErrProbeTimeout)
	default:
		return fmt.Errorf("probe %s: %w: %w", target.Address, domain.ErrProbeTransport, err)
	}
}

func (e *Executor) record(target domain.Target, res Result) {
	result := "dead"
	switch {
	case errors.Is(res.Err, domain.ErrProbeTimeout):
		result = "timeout"
	case res.Err != nil:
		result = "error"
	case res.Alive:
		result = "alive"
	}
	metrics.ProbesTotal.WithLabelValues(result).Inc()

	if res.Err != nil {
		e.logger.Debug("probe failed",
			zap.String("node_id", target.NodeID),
			zap.String("address", target.Address),
			zap.Error(res.Err))
	}
}
