package bridge

import (
	"context"
	"fmt"
	"time"

	"smart-fleet/internal/domain/fleet"
	"smart-fleet/internal/fleetstore"
	"smart-fleet/internal/general/contracts"
	"smart-fleet/internal/general/logger"
	"smart-fleet/internal/general/metrics"
	"smart-fleet/internal/live"
	"smart-fleet/internal/ports"

	"github.com/google/uuid"
)

const producer = "fleet-bridge"

// Bridge relays the live vehicle feed into infrastructure: every update is
// reconciled into a VehicleStore, republished on the fanout exchange and
// archived as a position row.
type Bridge struct {
	vehicles  *fleetstore.VehicleStore
	source    live.Source
	pub       ports.Publisher
	uow       ports.UnitOfWork
	positions ports.PositionRepository
	logger    *logger.Logger
	now       func() time.Time
}

func New(
	vehicles *fleetstore.VehicleStore,
	source live.Source,
	pub ports.Publisher,
	uow ports.UnitOfWork,
	positions ports.PositionRepository,
	log *logger.Logger,
) *Bridge {
	if log == nil {
		log = logger.Discard()
	}
	return &Bridge{
		vehicles:  vehicles,
		source:    source,
		pub:       pub,
		uow:       uow,
		positions: positions,
		logger:    log,
		now:       time.Now,
	}
}

// Run seeds the store, subscribes to topic and relays updates until ctx is
// cancelled or the subscription fails.
func (b *Bridge) Run(ctx context.Context, topic string) (live.Stats, error) {
	if err := b.positions.EnsureSchema(ctx); err != nil {
		b.logger.Error(ctx, "bridge_schema_failed", "Failed to prepare vehicle_positions", err, nil)
		return live.Stats{}, fmt.Errorf("ensure schema: %w", err)
	}

	if err := b.vehicles.FetchVehicles(ctx); err != nil {
		return live.Stats{}, fmt.Errorf("initial fetch: %w", err)
	}
	b.logger.Info(ctx, "bridge_seeded", "Vehicle cache seeded", map[string]any{"count": b.vehicles.Count()})

	sub, err := b.source.Subscribe(ctx, topic)
	if err != nil {
		return live.Stats{}, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	l := live.NewListener(b.logger)
	stats, err := l.Run(ctx, sub, func(v fleet.Vehicle) bool {
		applied := b.vehicles.ApplyUpdate(v)
		b.Relay(ctx, v)
		return applied
	})
	b.logger.Info(ctx, "bridge_stopped", "Bridge stopped", map[string]any{
		"received": stats.Received, "applied": stats.Applied, "dropped": stats.Dropped,
	})
	return stats, err
}

// Relay publishes and archives one update. Failures are logged and counted;
// they never stop the feed.
func (b *Bridge) Relay(ctx context.Context, v fleet.Vehicle) {
	ctx = b.logger.WithVehicleID(ctx, v.ID)
	now := b.now().UTC()

	msg := contracts.VehicleUpdateMessage{
		Vehicle: v,
		Envelope: contracts.Envelope{
			CorrelationID: uuid.NewString(),
			Producer:      producer,
			SentAt:        now,
		},
	}
	if err := b.pub.PublishJSON(ctx, msg); err != nil {
		metrics.BridgeErrors.WithLabelValues("publish").Inc()
		b.logger.Error(ctx, "bridge_publish_failed", "Failed to republish vehicle update", err, nil)
	} else {
		metrics.BridgePublished.Inc()
	}

	p, err := fleet.NewPosition(v, now)
	if err != nil {
		metrics.BridgeErrors.WithLabelValues("validate").Inc()
		b.logger.Error(ctx, "bridge_position_invalid", "Skipping archive of invalid position", err, nil)
		return
	}
	err = b.uow.WithinTx(ctx, func(txCtx context.Context) error {
		return b.positions.Archive(txCtx, p)
	})
	if err != nil {
		metrics.BridgeErrors.WithLabelValues("archive").Inc()
		b.logger.Error(ctx, "bridge_archive_failed", "Failed to archive vehicle position", err, nil)
		return
	}
	metrics.BridgeArchived.Inc()
	b.logger.Debug(ctx, "bridge_relayed", "Vehicle update relayed", map[string]any{"position_id": p.ID})
}
