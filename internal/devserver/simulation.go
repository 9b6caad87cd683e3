package devserver

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"smart-fleet/internal/domain/fleet"
)

const (
	stepDegrees       = 0.002 // about ±100 m per tick
	stepKm            = 0.5
	serviceIntervalKm = 10000
	geofenceRadiusDeg = 0.5
	geofenceCenterLat = defaultLat
	geofenceCenterLng = defaultLng
)

// Simulate random-walks every ON_TRIP vehicle each interval and pushes the
// new positions to live subscribers, until ctx is cancelled.
func (srv *Server) Simulate(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	srv.logger.Info(ctx, "simulation_started", "Vehicle movement simulation started", map[string]any{"interval": interval.String()})
	for {
		select {
		case <-ctx.Done():
			srv.logger.Info(ctx, "simulation_stopped", "Vehicle movement simulation stopped", nil)
			return
		case <-ticker.C:
			srv.Step(ctx)
		}
	}
}

// Step advances the simulation by one tick and returns the moved vehicles.
func (srv *Server) Step(ctx context.Context) []fleet.Vehicle {
	moved := srv.store.Mutate(
		func(v fleet.Vehicle) bool { return v.Status == fleet.VehicleOnTrip },
		func(v *fleet.Vehicle) {
			v.Lat = clamp(v.Lat+(rand.Float64()-0.5)*stepDegrees, -90, 90)
			v.Lng = clamp(v.Lng+(rand.Float64()-0.5)*stepDegrees, -180, 180)
			v.TotalKm += stepKm
			if v.TotalKm-v.LastServiceKm > serviceIntervalKm {
				v.Status = fleet.VehicleMaintenance
			}
		},
	)

	for _, v := range moved {
		vctx := srv.logger.WithVehicleID(ctx, v.ID)
		if math.Hypot(v.Lat-geofenceCenterLat, v.Lng-geofenceCenterLng) > geofenceRadiusDeg {
			srv.logger.Info(vctx, "geofence_alert", "Vehicle is out of bounds", map[string]any{"plate": v.Plate})
		}
		if v.Status == fleet.VehicleMaintenance {
			srv.logger.Info(vctx, "maintenance_alert", "Vehicle needs service", map[string]any{"plate": v.Plate, "total_km": v.TotalKm})
		}
		srv.broadcast(vctx, v)
	}
	return moved
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
