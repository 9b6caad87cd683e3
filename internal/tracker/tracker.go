package tracker

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"smart-fleet/internal/domain/fleet"
	"smart-fleet/internal/general/logger"
)

// Waypoint is a named stop on a route.
type Waypoint struct {
	Name string
	Lat  float64
	Lng  float64
}

// DefaultRoute is the long-haul run the truck simulator drives.
func DefaultRoute() []Waypoint {
	return []Waypoint{
		{Name: "Cluj-Napoca, RO", Lat: 46.7712, Lng: 23.5889},
		{Name: "Budapest, HU", Lat: 47.4979, Lng: 19.0402},
		{Name: "Vienna, AT", Lat: 48.2082, Lng: 16.3738},
		{Name: "Milan, IT", Lat: 45.4642, Lng: 9.1900},
		{Name: "Barcelona, ES", Lat: 41.3851, Lng: 2.1734},
		{Name: "Madrid, ES", Lat: 40.4168, Lng: -3.7038},
	}
}

// Fix is one interpolated position along a leg.
type Fix struct {
	Leg string
	Lat float64
	Lng float64
}

// Plan interpolates steps fixes per leg. The final waypoint is appended so
// the truck arrives at the destination.
func Plan(route []Waypoint, steps int) []Fix {
	if len(route) == 0 {
		return nil
	}
	if steps < 1 {
		steps = 1
	}
	var fixes []Fix
	for i := 0; i+1 < len(route); i++ {
		from, to := route[i], route[i+1]
		leg := from.Name + " -> " + to.Name
		dLat := (to.Lat - from.Lat) / float64(steps)
		dLng := (to.Lng - from.Lng) / float64(steps)
		for s := 0; s < steps; s++ {
			fixes = append(fixes, Fix{Leg: leg, Lat: from.Lat + dLat*float64(s), Lng: from.Lng + dLng*float64(s)})
		}
	}
	last := route[len(route)-1]
	return append(fixes, Fix{Leg: "arrived at " + last.Name, Lat: last.Lat, Lng: last.Lng})
}

// Fleet is the slice of fleetstore.VehicleStore the truck reports through.
type Fleet interface {
	UpdateVehicleLocation(ctx context.Context, id int64, lat, lng float64) bool
	UpdateVehicle(ctx context.Context, id int64, in fleet.VehicleInput) (*fleet.Vehicle, error)
}

// Reefer thresholds, in degrees Celsius.
const (
	cargoSetpoint = -22.0
	cargoCritical = -18.0
	cruiseSpeed   = 90.0
)

// Truck simulates a refrigerated truck driving a planned route and reporting
// its position and status.
type Truck struct {
	fleet     Fleet
	vehicleID int64
	log       *logger.Logger
	rng       *rand.Rand

	CargoTemp float64
	Speed     float64
	Fuel      float64
	Status    fleet.VehicleStatus

	Pushed int
	Failed int
}

func NewTruck(f Fleet, vehicleID int64, log *logger.Logger, seed uint64) *Truck {
	if log == nil {
		log = logger.Discard()
	}
	return &Truck{
		fleet:     f,
		vehicleID: vehicleID,
		log:       log,
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		CargoTemp: cargoSetpoint,
		Fuel:      100,
		Status:    fleet.VehicleIdle,
	}
}

// Tick advances the truck's sensors, pushes the fix and, when the status
// changed, the new status. It returns an alert message, if any.
func (t *Truck) Tick(ctx context.Context, fix Fix) string {
	ctx = t.log.WithVehicleID(ctx, t.vehicleID)

	// occasional door openings warm the cargo; the unit pulls it back down
	if t.rng.IntN(101) > 95 {
		t.CargoTemp += 0.5
	} else if t.CargoTemp > cargoSetpoint {
		t.CargoTemp -= 0.1
	}

	status, alert := fleet.VehicleOnTrip, ""
	if t.CargoTemp > cargoCritical {
		status = fleet.VehicleMaintenance
		alert = fmt.Sprintf("CRITICAL: cargo temperature %.1fC", t.CargoTemp)
	}

	if t.Speed < cruiseSpeed {
		t.Speed += 5
	}
	t.Fuel -= 0.05

	// best effort: a rejected push is logged by the store and the drive goes on
	if t.fleet.UpdateVehicleLocation(ctx, t.vehicleID, fix.Lat, fix.Lng) {
		t.Pushed++
	} else {
		t.Failed++
	}

	if status != t.Status {
		if _, err := t.fleet.UpdateVehicle(ctx, t.vehicleID, fleet.VehicleInput{Status: status}); err != nil {
			t.log.Error(ctx, "truck_status_failed", "failed to report truck status", err, map[string]any{"status": status})
		} else {
			t.log.Info(ctx, "truck_status_changed", "truck status reported", map[string]any{"from": t.Status, "to": status})
			t.Status = status
		}
	}
	return alert
}

// Drive ticks once per fix, waiting every between fixes, until the plan is
// done or ctx is cancelled. onTick, when set, observes each step.
func (t *Truck) Drive(ctx context.Context, plan []Fix, every time.Duration, onTick func(Fix, string)) error {
	t.log.Info(ctx, "truck_departed", "truck started its route", map[string]any{"vehicle_id": t.vehicleID, "fixes": len(plan)})

	var ticker *time.Ticker
	if every > 0 {
		ticker = time.NewTicker(every)
		defer ticker.Stop()
	}

	for i, fix := range plan {
		if i > 0 && ticker != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		alert := t.Tick(ctx, fix)
		if onTick != nil {
			onTick(fix, alert)
		}
	}

	t.log.Info(ctx, "truck_arrived", "truck finished its route", map[string]any{"pushed": t.Pushed, "failed": t.Failed})
	return nil
}
