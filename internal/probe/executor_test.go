package probe

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netpulse/internal/domain"
)

func targets(n int) []domain.Target {
	out := make([]domain.Target, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.Target{
			NodeID:  fmt.Sprintf("n%d", i),
			Address: fmt.Sprintf("10.0.0.%d", i+1),
			Kind:    domain.KindEndDevice,
		})
	}
	return out
}

func TestExecutorReturnsResultPerTarget(t *testing.T) {
	prober := ProberFunc(func(ctx context.Context, target domain.Target) (bool, error) {
		return target.NodeID != "n1", nil
	})
	exec := NewExecutor(prober, time.Second, 4, nil)

	results := exec.Probe(context.Background(), targets(3))
	require.Len(t, results, 3)
	assert.True(t, results["n0"].Alive)
	assert.False(t, results["n1"].Alive)
	assert.NoError(t, results["n1"].Err)
	assert.Equal(t, domain.StatusInactive, results["n1"].Status())
	assert.Equal(t, domain.StatusActive, results["n2"].Status())
}

func TestExecutorEmptyTargets(t *testing.T) {
	exec := NewExecutor(ProberFunc(func(context.Context, domain.Target) (bool, error) {
		t.Fatal("prober must not be called")
		return false, nil
	}), 0, 0, nil)

	results := exec.Probe(context.Background(), nil)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestExecutorIsolatesFailures(t *testing.T) {
	boom := errors.New("no route to host")
	prober := ProberFunc(func(ctx context.Context, target domain.Target) (bool, error) {
		if target.NodeID == "n2" {
			return false, boom
		}
		return true, nil
	})
	exec := NewExecutor(prober, time.Second, 2, nil)

	results := exec.Probe(context.Background(), targets(5))
	require.Len(t, results, 5)
	for id, res := range results {
		if id == "n2" {
			assert.False(t, res.Alive)
			assert.ErrorIs(t, res.Err, domain.ErrProbeTransport)
			assert.ErrorIs(t, res.Err, boom)
			assert.Equal(t, domain.StatusInactive, res.Status())
			continue
		}
		assert.True(t, res.Alive, id)
		assert.NoError(t, res.Err, id)
	}
}

func TestExecutorTimesOutStuckProbe(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	prober := ProberFunc(func(ctx context.Context, target domain.Target) (bool, error) {
		if target.NodeID == "n0" {
			// ignores ctx entirely
			<-release
			return true, nil
		}
		return true, nil
	})
	exec := NewExecutor(prober, 50*time.Millisecond, 4, nil)

	start := time.Now()
	results := exec.Probe(context.Background(), targets(3))
	assert.Less(t, time.Since(start), time.Second)

	assert.False(t, results["n0"].Alive)
	assert.ErrorIs(t, results["n0"].Err, domain.ErrProbeTimeout)
	assert.True(t, results["n1"].Alive)
	assert.True(t, results["n2"].Alive)
}

func TestExecutorHonoursContextAwareTimeout(t *testing.T) {
	prober := ProberFunc(func(ctx context.Context, target domain.Target) (bool, error) {
		<-ctx.Done()
		return false, ctx.Err()
	})
	exec := NewExecutor(prober, 20*time.Millisecond, 1, nil)

	results := exec.Probe(context.Background(), targets(2))
	for _, res := range results {
		assert.ErrorIs(t, res.Err, domain.ErrProbeTimeout)
	}
}

func TestExecutorBoundsParallelism(t *testing.T) {
	var inFlight, peak atomic.Int32
	prober := ProberFunc(func(ctx context.Context, target domain.Target) (bool, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return true, nil
	})
	exec := NewExecutor(prober, time.Second, 3, nil)

	results := exec.Probe(context.Background(), targets(20))
	assert.Len(t, results, 20)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Greater(t, peak.Load(), int32(0))
}

func TestClassify(t *testing.T) {
	target := domain.Target{Address: "10.0.0.1"}

	assert.ErrorIs(t, classify(target, context.DeadlineExceeded), domain.ErrProbeTimeout)
	assert.ErrorIs(t, classify(target, errors.New("reset")), domain.ErrProbeTransport)

	already := fmt.Errorf("x: %w", domain.ErrProbeTransport)
	assert.Same(t, already, classify(target, already))
}
