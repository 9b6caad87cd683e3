package fleetstore

import (
	"context"
	"errors"
	"testing"

	"smart-fleet/internal/domain/fleet"
)

type fakeDrivers struct {
	rows []fleet.Driver
	fail error
}

func (f *fakeDrivers) ListDrivers(context.Context) ([]fleet.Driver, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	return append([]fleet.Driver(nil), f.rows...), nil
}

func (f *fakeDrivers) find(id int64) (*fleet.Driver, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	for i := range f.rows {
		if f.rows[i].ID == id {
			return &f.rows[i], nil
		}
	}
	return nil, errBackend
}

func (f *fakeDrivers) GetDriver(_ context.Context, id int64) (*fleet.Driver, error) {
	d, err := f.find(id)
	if err != nil {
		return nil, err
	}
	out := *d
	return &out, nil
}

func (f *fakeDrivers) UpdateDriverStatus(_ context.Context, id int64, status fleet.DriverStatus) (*fleet.Driver, error) {
	d, err := f.find(id)
	if err != nil {
		return nil, err
	}
	d.Status = status
	out := *d
	return &out, nil
}

func (f *fakeDrivers) AssignVehicle(_ context.Context, driverID int64, vehicleID *int64) (*fleet.Driver, error) {
	d, err := f.find(driverID)
	if err != nil {
		return nil, err
	}
	d.VehicleID = vehicleID
	out := *d
	return &out, nil
}

func (f *fakeDrivers) DriverTrips(_ context.Context, driverID int64) ([]fleet.Trip, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	return []fleet.Trip{{ID: 1, DriverID: driverID}}, nil
}

func TestDriverStore(t *testing.T) {
	ctx := context.Background()
	api := &fakeDrivers{rows: []fleet.Driver{
		{ID: 1, Name: "Ion", Status: fleet.DriverAvailable},
		{ID: 2, Name: "Ana", Status: fleet.DriverOffDuty},
	}}
	s := NewDriverStore(api)
	if err := s.FetchDrivers(ctx); err != nil {
		t.Fatalf("FetchDrivers: %v", err)
	}

	if _, err := s.UpdateDriverStatus(ctx, 2, fleet.DriverOnTrip); err != nil {
		t.Fatalf("UpdateDriverStatus: %v", err)
	}
	if got := s.Drivers(); got[1].Status != fleet.DriverOnTrip || got[0].Name != "Ion" {
		t.Fatalf("status not replaced in place: %+v", got)
	}

	vid := int64(7)
	if _, err := s.AssignVehicle(ctx, 1, &vid); err != nil {
		t.Fatalf("AssignVehicle: %v", err)
	}
	if d, _ := s.Get(1); !d.HasVehicle() {
		t.Fatalf("assignment not cached")
	}

	if _, err := s.UpdateDriverStatus(ctx, 1, "SLEEPING"); !errors.Is(err, fleet.ErrInvalidDriverStatus) {
		t.Fatalf("want invalid status, got %v", err)
	}

	api.fail = errBackend
	before := s.Drivers()
	if _, err := s.GetDriver(ctx, 1); !errors.Is(err, errBackend) {
		t.Fatalf("GetDriver: %v", err)
	}
	if _, err := s.Trips(ctx, 1); !errors.Is(err, errBackend) {
		t.Fatalf("Trips: %v", err)
	}
	if s.LastError() != errBackend.Error() {
		t.Fatalf("LastError = %q", s.LastError())
	}
	if got := s.Drivers(); len(got) != len(before) || got[1] != before[1] {
		t.Fatalf("cache changed on failures")
	}
}
