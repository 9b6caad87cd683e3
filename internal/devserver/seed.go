package devserver

import (
	"fmt"

	"smart-fleet/internal/domain/fleet"
)

// Seed accounts. Passwords equal usernames.
const (
	SeedAdmin         = "admin"
	SeedDriver        = "driver1" // has a vehicle and an assigned trip
	SeedDriverNoTruck = "driver2" // must pick a vehicle first
)

func ptr(f float64) *float64 { return &f }

// Seed fills an empty store with a small fleet around Cluj-Napoca.
func Seed(s *Store) error {
	if _, err := s.AddUser(SeedAdmin, SeedAdmin, "admin@smartfleet.local", fleet.RoleAdmin, "", ""); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	vehicles := []fleet.VehicleInput{
		{Plate: "CJ-01-SFT", Brand: "Volvo", Type: "TRUCK", Status: fleet.VehicleOnTrip, Lat: ptr(46.7712), Lng: ptr(23.5889)},
		{Plate: "CJ-02-SFT", Brand: "Scania", Type: "TRUCK", Status: fleet.VehicleAvailable, Lat: ptr(46.7580), Lng: ptr(23.6120)},
		{Plate: "CJ-03-SFT", Brand: "MAN", Type: "VAN", Status: fleet.VehicleAvailable, Lat: ptr(46.7840), Lng: ptr(23.5620)},
		{Plate: "CJ-04-SFT", Brand: "Iveco", Type: "VAN", Status: fleet.VehicleMaintenance, Lat: ptr(46.7650), Lng: ptr(23.5990)},
	}
	var ids []int64
	for _, in := range vehicles {
		v, err := s.CreateVehicle(in)
		if err != nil {
			return fmt.Errorf("seed vehicle %s: %w", in.Plate, err)
		}
		ids = append(ids, v.ID)
	}

	u, err := s.AddUser(SeedDriver, SeedDriver, "driver1@smartfleet.local", fleet.RoleDriver, "Ion Popescu", "B-123456")
	if err != nil {
		return fmt.Errorf("seed driver: %w", err)
	}
	d, err := s.DriverByUserID(u.ID)
	if err != nil {
		return err
	}
	if _, err := s.AssignVehicle(d.ID, &ids[0]); err != nil {
		return err
	}
	if _, err := s.AddTrip(d.ID, "Cluj-Napoca", "Turda", 32.5); err != nil {
		return err
	}

	if _, err := s.AddUser(SeedDriverNoTruck, SeedDriverNoTruck, "driver2@smartfleet.local", fleet.RoleDriver, "Maria Ionescu", "B-654321"); err != nil {
		return fmt.Errorf("seed driver: %w", err)
	}
	return nil
}
