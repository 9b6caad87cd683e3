package postgres

import (
	"context"
	"errors"

	"smart-fleet/internal/domain/fleet"
	"smart-fleet/internal/ports"

	"github.com/jackc/pgx/v5"
)

var ErrNoPosition = errors.New("no archived position for vehicle")

const positionsDDL = `
CREATE TABLE IF NOT EXISTS vehicle_positions (
	id           BIGSERIAL PRIMARY KEY,
	vehicle_id   BIGINT           NOT NULL,
	plate        TEXT             NOT NULL DEFAULT '',
	status       TEXT             NOT NULL DEFAULT '',
	latitude     DOUBLE PRECISION NOT NULL,
	longitude    DOUBLE PRECISION NOT NULL,
	total_km     DOUBLE PRECISION NOT NULL DEFAULT 0,
	recorded_at  TIMESTAMPTZ      NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS vehicle_positions_vehicle_recorded_idx
	ON vehicle_positions (vehicle_id, recorded_at DESC);
`

// PositionRepo persists vehicle positions using pgx and plain SQL.
// Writes must run inside UnitOfWork.WithinTx.
type PositionRepo struct {
	uow ports.UnitOfWork
}

func NewPositionRepo(uow ports.UnitOfWork) ports.PositionRepository {
	return &PositionRepo{uow: uow}
}

// EnsureSchema creates the vehicle_positions table when missing.
func (repo *PositionRepo) EnsureSchema(ctx context.Context) error {
	return repo.uow.WithinTx(ctx, func(ctx context.Context) error {
		tx, err := MustTxFromContext(ctx)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, positionsDDL)
		return err
	})
}

// Archive inserts a single vehicle_positions record and sets p.ID.
func (repo *PositionRepo) Archive(ctx context.Context, p *fleet.Position) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO vehicle_positions (
			vehicle_id, plate, status, latitude, longitude, total_km, recorded_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`,
		p.VehicleID,
		p.Plate,
		p.Status.String(),
		p.Latitude,
		p.Longitude,
		p.TotalKm,
		p.RecordedAt,
	).Scan(&p.ID)
	return err
}

// LatestForVehicle returns the most recent archived position of a vehicle.
func (repo *PositionRepo) LatestForVehicle(ctx context.Context, vehicleID int64) (*fleet.Position, error) {
	var out fleet.Position
	err := repo.uow.WithinTx(ctx, func(ctx context.Context) error {
		tx, err := MustTxFromContext(ctx)
		if err != nil {
			return err
		}
		var status string
		err = tx.QueryRow(ctx, `
			SELECT id, vehicle_id, plate, status, latitude, longitude, total_km, recorded_at
			FROM vehicle_positions
			WHERE vehicle_id = $1
			ORDER BY recorded_at DESC
			LIMIT 1
		`, vehicleID).Scan(
			&out.ID, &out.VehicleID, &out.Plate, &status,
			&out.Latitude, &out.Longitude, &out.TotalKm, &out.RecordedAt,
		)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNoPosition
		}
		out.Status = fleet.VehicleStatus(status)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
