package live

import (
	"context"

	"smart-fleet/internal/domain/fleet"
	"smart-fleet/internal/general/logger"
)

// Stats counts what a Listener did with the updates it received.
type Stats struct {
	Received int
	Applied  int
	Dropped  int
}

// Listener drains a subscription into an apply function (usually
// VehicleStore.ApplyUpdate) until the subscription ends or ctx is done.
type Listener struct {
	log *logger.Logger
	// OnUpdate, when set, observes every update after apply.
	OnUpdate func(v fleet.Vehicle, applied bool)
}

func NewListener(log *logger.Logger) *Listener {
	if log == nil {
		log = logger.Discard()
	}
	return &Listener{log: log}
}

// Run returns the subscription's error, if it ended on one. Cancelling ctx
// closes the subscription and returns nil.
func (l *Listener) Run(ctx context.Context, sub Subscription, apply func(fleet.Vehicle) bool) (Stats, error) {
	var stats Stats
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return stats, nil
		case v, ok := <-sub.Updates():
			if !ok {
				if ctx.Err() != nil {
					return stats, nil
				}
				return stats, sub.Err()
			}
			stats.Received++
			applied := apply(v)
			if applied {
				stats.Applied++
			} else {
				stats.Dropped++
				l.log.Debug(ctx, "live_update_dropped", "update for unknown vehicle", map[string]any{"vehicle_id": v.ID})
			}
			if l.OnUpdate != nil {
				l.OnUpdate(v, applied)
			}
		}
	}
}
