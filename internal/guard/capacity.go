package guard

import (
	"context"
	"log/slog"
)

type TeamCounter interface {
	CountTeams(ctx context.Context, flow string) (int, error)
}

// CapacityGuard closes the form once the registered-team count reaches the
// flow's quota. It is consulted once per mount, not re-checked while the user
// fills the form; a race that fills capacity mid-fill is caught at insert
// time by the backend constraint.
type CapacityGuard struct {
	flow    string
	counter TeamCounter
	limit   int
	log     *slog.Logger
}

func NewCapacityGuard(flow string, counter TeamCounter, limit int, log *slog.Logger) *CapacityGuard {
	return &CapacityGuard{
		flow:    flow,
		counter: counter,
		limit:   limit,
		log:     log,
	}
}

func (g *CapacityGuard) Limit() int { return g.limit }

func (g *CapacityGuard) Count(ctx context.Context) (int, error) {
	return g.counter.CountTeams(ctx, g.flow)
}

// Closed reports whether the quota is reached. A count fetch error is logged
// and treated as "not closed" so a backend hiccup does not wrongly lock out
// registrants.
func (g *CapacityGuard) Closed(ctx context.Context) bool {
	if g.limit <= 0 {
		return false
	}

	count, err := g.counter.CountTeams(ctx, g.flow)

	if err != nil {
		g.log.Warn("capacity check failed, failing open", "err", err)
		return false
	}

	return count >= g.limit
}
