package bridgeapp

import (
	"context"

	"smart-fleet/internal/bridge"
	"smart-fleet/internal/cli"
	"smart-fleet/internal/fleetstore"
	"smart-fleet/internal/general/metrics"
	"smart-fleet/internal/general/postgres"
	"smart-fleet/internal/general/rabbitmq"
	"smart-fleet/internal/live"
)

// Run relays the backend's STOMP feed to RabbitMQ and PostgreSQL until ctx is cancelled.
func Run(ctx context.Context) error {
	app, err := cli.Bootstrap(ctx, "fleet-bridge")
	if err != nil {
		return err
	}
	defer app.Close()
	logger := app.Logger
	cfg := app.Config
	ctx = logger.WithRequestID(ctx, "startup-001")

	if err := cfg.ValidateBridge(); err != nil {
		logger.Error(ctx, "config_invalid", "Bridge configuration incomplete", err, nil)
		return err
	}
	if err := app.RequireLogin(); err != nil {
		return err
	}

	pool, err := postgres.NewPool(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "db_connection_failed", "Failed to initialize Postgres pool", err, nil)
		return err
	}
	defer pool.Close()

	uow := postgres.NewUnitOfWork(pool)
	positions := postgres.NewPositionRepo(uow)

	// the console queue is declared here too so consumers started later
	// do not miss what the bridge already published
	rmq, err := rabbitmq.ConnectRabbitMQ(ctx, cfg, logger, cfg.Live.AMQPQueue)
	if err != nil {
		logger.Error(ctx, "rabbitmq_connect_failed", "Failed to connect to RabbitMQ", err, nil)
		return err
	}
	defer rmq.Close()
	publisher := rabbitmq.NewMQPublisher(rmq)

	go func() {
		if err := metrics.StartMetricsServer(ctx, cfg.Metrics.Port); err != nil {
			logger.Error(ctx, "metrics_server_failed", "Metrics listener stopped", err, nil)
		}
	}()

	// always the backend's STOMP feed: reading our own exchange would loop
	source := live.NewStompSource(cfg.Live.URL, live.WithToken(app.Session), live.WithStompLogger(logger))
	vehicles := fleetstore.NewVehicleStore(app.API, fleetstore.WithLogger(logger))

	b := bridge.New(vehicles, source, publisher, uow, positions, logger)
	logger.Info(ctx, "service_started", "Bridge started", map[string]any{
		"live_url": cfg.Live.URL, "topic": cfg.Live.Topic, "exchange": rmq.Exchange(),
	})
	_, err = b.Run(ctx, cfg.Live.Topic)
	return err
}
