package fleetstore

import (
	"context"

	"smart-fleet/internal/domain/fleet"
)

// DriverAPI is the slice of the REST accessor the driver store needs.
type DriverAPI interface {
	ListDrivers(ctx context.Context) ([]fleet.Driver, error)
	GetDriver(ctx context.Context, id int64) (*fleet.Driver, error)
	UpdateDriverStatus(ctx context.Context, id int64, status fleet.DriverStatus) (*fleet.Driver, error)
	AssignVehicle(ctx context.Context, driverID int64, vehicleID *int64) (*fleet.Driver, error)
	DriverTrips(ctx context.Context, driverID int64) ([]fleet.Trip, error)
}

type DriverStore struct {
	*Collection[int64, fleet.Driver]
	api DriverAPI
}

func NewDriverStore(api DriverAPI, opts ...Option) *DriverStore {
	return &DriverStore{
		Collection: NewCollection[int64, fleet.Driver]("drivers", fleet.DriverID, opts...),
		api:        api,
	}
}

func (s *DriverStore) FetchDrivers(ctx context.Context) error {
	return s.FetchAll(ctx, s.api.ListDrivers)
}

// GetDriver reads one driver from the backend without touching the cache.
func (s *DriverStore) GetDriver(ctx context.Context, id int64) (*fleet.Driver, error) {
	d, err := s.api.GetDriver(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, "driver_get_failed", err)
	}
	return d, nil
}

func (s *DriverStore) UpdateDriverStatus(ctx context.Context, id int64, status fleet.DriverStatus) (*fleet.Driver, error) {
	if !status.Valid() {
		return nil, s.fail(ctx, "driver_status_invalid", fleet.ErrInvalidDriverStatus)
	}
	d, err := s.api.UpdateDriverStatus(ctx, id, status)
	if err != nil {
		return nil, s.fail(ctx, "driver_status_failed", err)
	}
	s.replace(*d)
	return d, nil
}

// AssignVehicle sets (or with nil clears) the driver's vehicle.
func (s *DriverStore) AssignVehicle(ctx context.Context, driverID int64, vehicleID *int64) (*fleet.Driver, error) {
	if vehicleID != nil && *vehicleID <= 0 {
		return nil, s.fail(ctx, "driver_assign_invalid", fleet.ErrInvalidVehicleID)
	}
	d, err := s.api.AssignVehicle(ctx, driverID, vehicleID)
	if err != nil {
		return nil, s.fail(ctx, "driver_assign_failed", err)
	}
	s.replace(*d)
	return d, nil
}

func (s *DriverStore) Trips(ctx context.Context, driverID int64) ([]fleet.Trip, error) {
	trips, err := s.api.DriverTrips(ctx, driverID)
	if err != nil {
		return nil, s.fail(ctx, "driver_trips_failed", err)
	}
	return trips, nil
}

func (s *DriverStore) Drivers() []fleet.Driver { return s.Snapshot() }
