package probe

import (
	"context"

	"netpulse/internal/domain"
)

// Prober reports whether a single target answered
type Prober interface {
	Probe(ctx context.Context, target domain.Target) (bool, error)
}

// ProberFunc adapts a function to the Prober interface
type ProberFunc func(ctx context.Context, target domain.Target) (bool, error)

// Probe calls f
func (f ProberFunc) Probe(ctx context.Context, target domain.Target) (bool, error) {
	return f(ctx, target)
}

// Result is the outcome of probing one node. Err is set when the probe
// timed out or the transport failed; Alive is then false.
type Result struct {
	Alive bool
	Err   error
}

// Status maps the result onto the stored status domain
func (r Result) Status() domain.Status {
	return domain.StatusFromAlive(r.Alive && r.Err == nil)
}
