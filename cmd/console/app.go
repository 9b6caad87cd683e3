package consoleapp

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"smart-fleet/internal/cli"
	"smart-fleet/internal/domain/fleet"
	"smart-fleet/internal/fleetstore"
	"smart-fleet/internal/general/metrics"
	"smart-fleet/internal/live"
)

// Run fetches the fleet, prints it and then follows the live feed until ctx
// is cancelled. A positive refresh re-fetches the snapshot periodically.
func Run(ctx context.Context, refresh time.Duration, once bool) error {
	app, err := cli.Bootstrap(ctx, "fleet-console")
	if err != nil {
		return err
	}
	defer app.Close()
	logger := app.Logger

	if err := app.RequireLogin(); err != nil {
		return err
	}

	vehicles := fleetstore.NewVehicleStore(app.API, fleetstore.WithLogger(logger))
	if err := vehicles.FetchVehicles(ctx); err != nil {
		return fmt.Errorf("fetch vehicles: %w", err)
	}
	printFleet(os.Stdout, vehicles.Vehicles(), vehicles.ActiveCount())
	if once {
		return nil
	}

	go func() {
		if err := metrics.StartMetricsServer(ctx, app.Config.Metrics.Port); err != nil {
			logger.Error(ctx, "metrics_server_failed", "Metrics listener stopped", err, nil)
		}
	}()
	if refresh > 0 {
		go refreshLoop(ctx, vehicles, refresh)
	}

	source, release, err := app.LiveSource(ctx)
	if err != nil {
		return err
	}
	defer release()

	sub, err := source.Subscribe(ctx, app.Config.Live.Topic)
	if err != nil {
		logger.Error(ctx, "live_subscribe_failed", "Failed to subscribe to the live feed", err,
			map[string]any{"source": app.Config.Live.Source, "topic": app.Config.Live.Topic})
		return err
	}
	logger.Info(ctx, "live_subscribed", "Following live vehicle updates",
		map[string]any{"source": app.Config.Live.Source, "topic": app.Config.Live.Topic})

	listener := live.NewListener(logger)
	listener.OnUpdate = func(v fleet.Vehicle, applied bool) {
		if applied {
			printUpdate(os.Stdout, v)
		}
	}
	stats, err := listener.Run(ctx, sub, vehicles.ApplyUpdate)
	logger.Info(ctx, "live_finished", "Live feed closed",
		map[string]any{"received": stats.Received, "applied": stats.Applied, "dropped": stats.Dropped})
	return err
}

func refreshLoop(ctx context.Context, vehicles *fleetstore.VehicleStore, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// failures are recorded on the store and logged there
			_ = vehicles.FetchVehicles(ctx)
		}
	}
}

func printFleet(w io.Writer, vs []fleet.Vehicle, active int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPLATE\tBRAND\tTYPE\tSTATUS\tLAT\tLNG\tKM")
	for _, v := range vs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%.5f\t%.5f\t%.1f\n",
			v.ID, v.Plate, v.Brand, v.Type, v.Status, v.Lat, v.Lng, v.TotalKm)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "%d vehicles, %d active\n", len(vs), active)
}

func printUpdate(w io.Writer, v fleet.Vehicle) {
	fmt.Fprintf(w, "%s  #%d %-10s %-12s %.5f,%.5f\n",
		time.Now().Format("15:04:05"), v.ID, v.Plate, v.Status, v.Lat, v.Lng)
}
