package ports

import (
	"context"

	"smart-fleet/internal/domain/fleet"
)

// UnitOfWork interface is used to manage transactions across multiple repository operations.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PositionRepository archives vehicle positions observed on the live feed.
type PositionRepository interface {
	EnsureSchema(ctx context.Context) error
	Archive(ctx context.Context, p *fleet.Position) error
	LatestForVehicle(ctx context.Context, vehicleID int64) (*fleet.Position, error)
}
