package cli

import (
	"context"
	"fmt"
	"io"

	"smart-fleet/internal/api"
	"smart-fleet/internal/general/config"
	"smart-fleet/internal/general/logger"
	"smart-fleet/internal/general/rabbitmq"
	"smart-fleet/internal/live"
	"smart-fleet/internal/session"
)

// Client bundles the pieces every client-side mode starts from: config,
// logger, REST accessor and the restored session.
type Client struct {
	Config  *config.Config
	Logger  *logger.Logger
	API     *api.Client
	Session *session.Manager

	store session.Store
}

// Bootstrap loads config, opens the session store and restores the session.
// The accessor authenticates with the session's token.
func Bootstrap(ctx context.Context, service string) (*Client, error) {
	log := logger.New(service)

	cfg, err := config.Load(config.DefaultPath)
	if err != nil {
		log.Error(ctx, "config_load_failed", "Failed to load configuration", err, nil)
		return nil, err
	}

	store, err := session.OpenStore(ctx, cfg)
	if err != nil {
		log.Error(ctx, "session_store_failed", "Failed to open session store", err, map[string]any{"store": cfg.Session.Store})
		return nil, err
	}

	client, err := api.New(cfg.API.BaseURL, api.WithTimeout(cfg.API.Timeout), api.WithLogger(log))
	if err != nil {
		closeStore(store)
		return nil, err
	}

	sess, err := session.NewManager(ctx, store, client, log)
	if err != nil {
		closeStore(store)
		log.Error(ctx, "session_restore_failed", "Failed to restore session", err, nil)
		return nil, err
	}
	client.SetTokenSource(sess)

	return &Client{Config: cfg, Logger: log, API: client, Session: sess, store: store}, nil
}

// RequireLogin fails with a hint when no session is stored.
func (c *Client) RequireLogin() error {
	if !c.Session.IsAuthenticated() {
		return fmt.Errorf("not signed in: run `smart-fleet auth login` first")
	}
	return nil
}

// LiveSource builds the source selected by live.source. The returned func
// releases whatever connection the source holds.
func (c *Client) LiveSource(ctx context.Context) (live.Source, func(), error) {
	switch c.Config.Live.Source {
	case config.SourceAMQP:
		rmq, err := rabbitmq.ConnectRabbitMQ(ctx, c.Config, c.Logger, c.Config.Live.AMQPQueue)
		if err != nil {
			c.Logger.Error(ctx, "rabbitmq_connect_failed", "Failed to connect to RabbitMQ", err, nil)
			return nil, nil, err
		}
		return live.NewAMQPSource(rmq, c.Config.Live.AMQPQueue, c.Logger), rmq.Close, nil
	default:
		src := live.NewStompSource(c.Config.Live.URL,
			live.WithToken(c.Session),
			live.WithStompLogger(c.Logger),
		)
		return src, func() {}, nil
	}
}

// Close releases the session store.
func (c *Client) Close() {
	closeStore(c.store)
}

func closeStore(s session.Store) {
	if closer, ok := s.(io.Closer); ok {
		_ = closer.Close()
	}
}
