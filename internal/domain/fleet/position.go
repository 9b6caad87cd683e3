package fleet

import (
	"errors"
	"time"
)

// Position is one archived vehicle fix, as written to the `vehicle_positions` table.
type Position struct {
	ID         int64 // assigned by the archive
	VehicleID  int64
	Plate      string
	Status     VehicleStatus
	Latitude   float64
	Longitude  float64
	TotalKm    float64
	RecordedAt time.Time
}

var ErrRecordedAtZeroTime = errors.New("recorded_at must be a valid timestamp")

// NewPosition builds a Position from a vehicle snapshot observed at recordedAt.
func NewPosition(vehicle Vehicle, recordedAt time.Time) (*Position, error) {
	if vehicle.ID <= 0 {
		return nil, ErrInvalidVehicleID
	}
	if err := ValidateCoordinates(vehicle.Lat, vehicle.Lng); err != nil {
		return nil, err
	}
	if recordedAt.IsZero() {
		return nil, ErrRecordedAtZeroTime
	}
	return &Position{
		VehicleID:  vehicle.ID,
		Plate:      vehicle.Plate,
		Status:     vehicle.Status,
		Latitude:   vehicle.Lat,
		Longitude:  vehicle.Lng,
		TotalKm:    vehicle.TotalKm,
		RecordedAt: recordedAt.UTC(),
	}, nil
}
