package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"netpulse/internal/domain"
	"netpulse/internal/metrics"
	"netpulse/internal/probe"
)

// DefaultInterval is the time between sweeps
const DefaultInterval = 5 * time.Second

var (
	// ErrSweepInProgress is returned when a sweep is requested while one is running
	ErrSweepInProgress = errors.New("sweep already in progress")
	// ErrStopped is returned when a sweep is requested after Stop
	ErrStopped = errors.New("monitor stopped")
)

// Topology is the part of the topology store the scheduler reads and writes
type Topology interface {
	Flatten() []domain.Target
	SetStatus(ctx context.Context, id string, status domain.Status) (bool, error)
}

// Prober probes a batch of targets
type Prober interface {
	Probe(ctx context.Context, targets []domain.Target) map[string]probe.Result
}

// StatusPublisher announces status changes
type StatusPublisher interface {
	PublishStatus(nodeID, address string, status domain.Status)
}

// Report summarizes one sweep
type Report struct {
	Targets     int           `json:"targets"`
	Alive       int           `json:"alive"`
	Changed     int           `json:"changed"`
	ProbeErrors int           `json:"probe_errors"`
	Missing     int           `json:"missing"`
	StoreErrors int           `json:"store_errors"`
	Duration    time.Duration `json:"duration"`
}

// Scheduler drives periodic sweeps
type Scheduler struct {
	topology Topology
	prober   Prober
	events   StatusPublisher
	interval time.Duration
	logger   *zap.Logger

	sweeping atomic.Bool

	mu        sync.Mutex
	lastKnown map[string]domain.Status

	// lifecycle guards runCtx, stopped and wg.Add
	lifecycle sync.Mutex
	runCtx    context.Context
	stopped   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New creates a scheduler. A non-positive interval uses DefaultInterval.
func New(topology Topology, prober Prober, events StatusPublisher, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		topology:  topology,
		prober:    prober,
		events:    events,
		interval:  interval,
		logger:    logger.Named("monitor"),
		lastKnown: make(map[string]domain.Status),
	}
}

// Start runs an initial sweep and then one per interval until Stop is
// called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.lifecycle.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.runCtx = ctx
	s.wg.Add(1)
	s.lifecycle.Unlock()

	go func() {
		defer s.wg.Done()

		s.tick(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("monitor stopped")
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()

	s.logger.Info("monitor started", zap.Duration("interval", s.interval))
}

// Stop cancels the loop and waits for any running sweep to finish,
// including one started with Sweep
func (s *Scheduler) Stop() {
	s.lifecycle.Lock()
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
	s.lifecycle.Unlock()
	s.wg.Wait()
}

// tick starts a sweep in the background unless one is already running
func (s *Scheduler) tick(ctx context.Context) {
	if !s.sweeping.CompareAndSwap(false, true) {
		metrics.SweepsTotal.WithLabelValues("skipped").Inc()
		s.logger.Debug("sweep still running, tick skipped")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runSweep(ctx)
	}()
}

// Sweep runs one sweep now and waits for it. It returns ErrSweepInProgress
// if another sweep is running. The sweep runs under the scheduler's own
// context: if ctx ends first Sweep returns ctx.Err() and the sweep still
// completes and publishes.
func (s *Scheduler) Sweep(ctx context.Context) (Report, error) {
	s.lifecycle.Lock()
	if s.stopped {
		s.lifecycle.Unlock()
		return Report{}, ErrStopped
	}
	if !s.sweeping.CompareAndSwap(false, true) {
		s.lifecycle.Unlock()
		metrics.SweepsTotal.WithLabelValues("skipped").Inc()
		return Report{}, ErrSweepInProgress
	}
	runCtx := s.runCtx
	if runCtx == nil {
		runCtx = context.WithoutCancel(ctx)
	}
	s.wg.Add(1)
	s.lifecycle.Unlock()

	done := make(chan Report, 1)
	go func() {
		defer s.wg.Done()
		done <- s.runSweep(runCtx)
	}()

	select {
	case report := <-done:
		return report, nil
	case <-ctx.Done():
		return Report{}, ctx.Err()
	}
}

// runSweep performs one sweep and clears the sweeping flag. Caller has set
// the flag. A panicking sweep is logged and yields an empty report.
func (s *Scheduler) runSweep(ctx context.Context) (report Report) {
	defer s.sweeping.Store(false)
	defer func() {
		if r := recover(); r != nil {
			metrics.SweepsTotal.WithLabelValues("panic").Inc()
			s.logger.Error("sweep panicked", zap.Any("panic", r))
			report = Report{}
		}
	}()
	return s.sweep(ctx)
}

// Sweeping reports whether a sweep is in progress
func (s *Scheduler) Sweeping() bool {
	return s.sweeping.Load()
}

// LastKnown returns the last broadcast status of a node
func (s *Scheduler) LastKnown(id string) (domain.Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.lastKnown[id]
	return st, ok
}

// sweep performs flatten, probe, diff and publish. Caller holds the sweeping flag.
func (s *Scheduler) sweep(ctx context.Context) Report {
	start := time.Now()
	targets := s.topology.Flatten()
	report := Report{Targets: len(targets)}

	if len(targets) == 0 {
		s.prune(nil)
		metrics.SweepsTotal.WithLabelValues("empty").Inc()
		return report
	}

	results := s.prober.Probe(ctx, targets)
	if ctx.Err() != nil {
		// probes were cut short; their verdicts are not trustworthy
		metrics.SweepsTotal.WithLabelValues("cancelled").Inc()
		return report
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, target := range targets {
		res, ok := results[target.NodeID]
		if !ok {
			// no verdict; the last known status stands
			report.Missing++
			continue
		}
		if res.Err != nil {
			report.ProbeErrors++
		}
		status := res.Status()
		if status == domain.StatusActive {
			report.Alive++
		}

		if prev, seen := s.lastKnown[target.NodeID]; seen && prev == status {
			continue
		}

		if _, err := s.topology.SetStatus(ctx, target.NodeID, status); err != nil {
			if errors.Is(err, domain.ErrNodeNotFound) {
				// removed while we were probing
				delete(s.lastKnown, target.NodeID)
				continue
			}
			report.StoreErrors++
			s.logger.Warn("failed to persist status",
				zap.String("node_id", target.NodeID),
				zap.String("status", string(status)),
				zap.Error(err))
			continue
		}

		s.lastKnown[target.NodeID] = status
		report.Changed++
		metrics.StatusChanges.WithLabelValues(string(status)).Inc()
		if s.events != nil {
			s.events.PublishStatus(target.NodeID, target.Address, status)
		}
		s.logger.Info("status changed",
			zap.String("node_id", target.NodeID),
			zap.String("address", target.Address),
			zap.String("status", string(status)),
			zap.NamedError("probe_error", res.Err))
	}

	s.pruneLocked(targets)

	report.Duration = time.Since(start)
	metrics.SweepDuration.Observe(report.Duration.Seconds())
	outcome := "completed"
	if report.StoreErrors > 0 {
		outcome = "store_error"
	}
	metrics.SweepsTotal.WithLabelValues(outcome).Inc()

	s.logger.Debug("sweep complete",
		zap.Int("targets", report.Targets),
		zap.Int("alive", report.Alive),
		zap.Int("changed", report.Changed),
		zap.Int("probe_errors", report.ProbeErrors),
		zap.Int("missing", report.Missing),
		zap.Int("store_errors", report.StoreErrors),
		zap.Duration("duration", report.Duration))
	return report
}

func (s *Scheduler) prune(targets []domain.Target) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(targets)
}

// pruneLocked forgets nodes that are no longer monitored
func (s *Scheduler) pruneLocked(targets []domain.Target) {
	live := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		live[t.NodeID] = struct{}{}
	}
	for id := range s.lastKnown {
		if _, ok := live[id]; !ok {
			delete(s.lastKnown, id)
		}
	}
}
