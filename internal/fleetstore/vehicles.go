package fleetstore

import (
	"context"

	"smart-fleet/internal/domain/fleet"
	"smart-fleet/internal/general/logger"
)

// VehicleAPI is the slice of the REST accessor the vehicle store needs.
type VehicleAPI interface {
	ListVehicles(ctx context.Context) ([]fleet.Vehicle, error)
	AvailableVehicles(ctx context.Context) ([]fleet.Vehicle, error)
	CreateVehicle(ctx context.Context, in fleet.VehicleInput) (*fleet.Vehicle, error)
	UpdateVehicle(ctx context.Context, id int64, in fleet.VehicleInput) (*fleet.Vehicle, error)
	DeleteVehicle(ctx context.Context, id int64) error
	UpdateVehicleLocation(ctx context.Context, id int64, lat, lng float64) error
}

// VehicleStore keeps the vehicle collection in sync with the backend.
type VehicleStore struct {
	*Collection[int64, fleet.Vehicle]
	api VehicleAPI
	log *logger.Logger
}

func NewVehicleStore(api VehicleAPI, opts ...Option) *VehicleStore {
	c := NewCollection[int64, fleet.Vehicle]("vehicles", fleet.VehicleID, opts...)
	return &VehicleStore{Collection: c, api: api, log: c.log}
}

// FetchVehicles overwrites the cache with GET /api/vehicles.
func (s *VehicleStore) FetchVehicles(ctx context.Context) error {
	return s.FetchAll(ctx, s.api.ListVehicles)
}

// CreateVehicle appends the created vehicle once the backend accepts it.
func (s *VehicleStore) CreateVehicle(ctx context.Context, in fleet.VehicleInput) (*fleet.Vehicle, error) {
	if err := in.ValidateForCreate(); err != nil {
		return nil, s.fail(ctx, "vehicle_create_invalid", err)
	}
	v, err := s.api.CreateVehicle(ctx, in)
	if err != nil {
		return nil, s.fail(ctx, "vehicle_create_failed", err)
	}
	s.insert(*v)
	s.log.Info(s.log.WithVehicleID(ctx, v.ID), "vehicle_created", "vehicle created", map[string]any{"plate": v.Plate})
	return v, nil
}

// UpdateVehicle replaces the cached entry in place once the backend accepts it.
func (s *VehicleStore) UpdateVehicle(ctx context.Context, id int64, in fleet.VehicleInput) (*fleet.Vehicle, error) {
	if err := in.Validate(); err != nil {
		return nil, s.fail(ctx, "vehicle_update_invalid", err)
	}
	v, err := s.api.UpdateVehicle(ctx, id, in)
	if err != nil {
		return nil, s.fail(ctx, "vehicle_update_failed", err)
	}
	s.replace(*v)
	return v, nil
}

// DeleteVehicle removes the cached entry once the backend confirms.
func (s *VehicleStore) DeleteVehicle(ctx context.Context, id int64) error {
	if err := s.api.DeleteVehicle(ctx, id); err != nil {
		return s.fail(ctx, "vehicle_delete_failed", err)
	}
	s.remove(id)
	s.log.Info(s.log.WithVehicleID(ctx, id), "vehicle_deleted", "vehicle deleted", nil)
	return nil
}

// UpdateVehicleLocation is best effort: on success the cached coordinates
// are patched, on failure the error is logged and nothing is recorded.
// It reports whether the backend accepted the position.
func (s *VehicleStore) UpdateVehicleLocation(ctx context.Context, id int64, lat, lng float64) bool {
	ctx = s.log.WithVehicleID(ctx, id)
	if err := fleet.ValidateCoordinates(lat, lng); err != nil {
		s.log.Error(ctx, "vehicle_location_invalid", "position not sent", err, map[string]any{"lat": lat, "lng": lng})
		return false
	}
	if err := s.api.UpdateVehicleLocation(ctx, id, lat, lng); err != nil {
		s.log.Error(ctx, "vehicle_location_failed", "failed to update vehicle location", err, nil)
		return false
	}
	s.patch(id, func(v *fleet.Vehicle) {
		v.Lat = lat
		v.Lng = lng
	})
	return true
}

// Available fetches the vehicles a driver may pick. Not cached.
func (s *VehicleStore) Available(ctx context.Context) ([]fleet.Vehicle, error) {
	vs, err := s.api.AvailableVehicles(ctx)
	if err != nil {
		return nil, s.fail(ctx, "vehicles_available_failed", err)
	}
	return vs, nil
}

func (s *VehicleStore) Vehicles() []fleet.Vehicle { return s.Snapshot() }

func (s *VehicleStore) Count() int { return s.Len() }

// ActiveCount counts vehicles with status ACTIVE.
func (s *VehicleStore) ActiveCount() int {
	return s.Collection.Count(fleet.Vehicle.IsActive)
}
