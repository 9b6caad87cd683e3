package trackerapp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"smart-fleet/internal/cli"
	"smart-fleet/internal/domain/fleet"
	"smart-fleet/internal/fleetstore"
	"smart-fleet/internal/tracker"
)

// Run drives the signed-in driver's truck along the default route, pushing a
// position every step, until the route is done or ctx is cancelled. Non-empty
// creds sign in first; otherwise the stored session is used.
func Run(ctx context.Context, creds fleet.Credentials, step time.Duration, stepsPerLeg int, seed uint64) error {
	app, err := cli.Bootstrap(ctx, "fleet-tracker")
	if err != nil {
		return err
	}
	defer app.Close()
	logger := app.Logger

	if creds.Username != "" {
		if _, err := app.Session.Login(ctx, creds); err != nil {
			return err
		}
	}
	if err := app.RequireLogin(); err != nil {
		return err
	}
	if !app.Session.Role().IsDriver() {
		return fmt.Errorf("tracker needs a driver session, signed in as %s", app.Session.Role())
	}

	me, err := app.API.Me(ctx)
	if err != nil {
		logger.Error(ctx, "driver_lookup_failed", "Failed to load the driver profile", err, nil)
		return err
	}
	if !me.HasVehicle() {
		return fmt.Errorf("%w: pick a truck first", fleet.ErrVehicleNotAssigned)
	}
	vehicleID := *me.VehicleID

	vehicles := fleetstore.NewVehicleStore(app.API, fleetstore.WithLogger(logger))
	truck := tracker.NewTruck(vehicles, vehicleID, logger, seed)
	plan := tracker.Plan(tracker.DefaultRoute(), stepsPerLeg)

	fmt.Fprintf(os.Stdout, "Truck %s (#%d) driven by %s, %d fixes every %s\n",
		me.VehiclePlate, vehicleID, me.Username, len(plan), step)

	err = truck.Drive(ctx, plan, step, func(fix tracker.Fix, alert string) {
		fmt.Fprintf(os.Stdout, "%s  %-32s %.4f,%.4f  %3.0fkm/h  fuel %5.1f%%  cargo %5.1fC  %s\n",
			time.Now().Format("15:04:05"), fix.Leg, fix.Lat, fix.Lng,
			truck.Speed, truck.Fuel, truck.CargoTemp, alert)
	})
	if errors.Is(err, context.Canceled) {
		logger.Info(ctx, "truck_stopped", "Simulation stopped",
			map[string]any{"pushed": truck.Pushed, "failed": truck.Failed})
		return nil
	}
	return err
}
