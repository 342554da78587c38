package selection

import (
	"context"
	"time"
)

// SeasonalGate decides whether a run includes the seasonal experience slot.
type SeasonalGate interface {
	IncludeSeasonal(ctx context.Context, now time.Time) (bool, error)
}

// GateFunc adapts a function to SeasonalGate.
type GateFunc func(ctx context.Context, now time.Time) (bool, error)

// IncludeSeasonal calls f.
func (f GateFunc) IncludeSeasonal(ctx context.Context, now time.Time) (bool, error) {
	return f(ctx, now)
}

// Always includes the seasonal slot on every run.
var Always SeasonalGate = GateFunc(func(context.Context, time.Time) (bool, error) { return true, nil })

// Never excludes the seasonal slot.
var Never SeasonalGate = GateFunc(func(context.Context, time.Time) (bool, error) { return false, nil })

// RunCounter reports how many runs of a cadence have been published.
type RunCounter interface {
	CountPublished(ctx context.Context, cadence string) (int64, error)
}

// EveryNthRun opens the gate on every Nth published run of a cadence,
// counting the run about to happen. N <= 1 opens it every time.
type EveryNthRun struct {
	Counter RunCounter
	Cadence string
	N       int
}

// IncludeSeasonal implements SeasonalGate.
func (g EveryNthRun) IncludeSeasonal(ctx context.Context, _ time.Time) (bool, error) {
	if g.N <= 1 {
		return true, nil
	}
	published, err := g.Counter.CountPublished(ctx, g.Cadence)
	if err != nil {
		return false, err
	}
	return (published+1)%int64(g.N) == 0, nil
}
