package config

import (
	"fmt"
	"strconv"
	"strings"
)

// lookupFunc matches os.LookupEnv so tests can inject an environment.
type lookupFunc func(key string) (string, bool)

// applyEnv overrides file values with SMARTFLEET_* variables when set.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var problems []string
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				problems = append(problems, key+" must be int")
				return
			}
			*dst = n
		}
	}

	str("SMARTFLEET_API_BASE_URL", &cfg.API.BaseURL)
	if v, ok := lookup("SMARTFLEET_API_TIMEOUT"); ok && strings.TrimSpace(v) != "" {
		d, err := parseDuration(strings.TrimSpace(v))
		if err != nil {
			problems = append(problems, "SMARTFLEET_API_TIMEOUT must be a duration")
		} else {
			cfg.API.Timeout = d
		}
	}
	str("SMARTFLEET_LIVE_URL", &cfg.Live.URL)
	str("SMARTFLEET_LIVE_SOURCE", &cfg.Live.Source)
	str("SMARTFLEET_SESSION_STORE", &cfg.Session.Store)
	str("SMARTFLEET_SESSION_PATH", &cfg.Session.Path)
	str("SMARTFLEET_GUARD_LOOKUP_FAILURE", &cfg.Guard.LookupFailure)
	str("SMARTFLEET_REDIS_ADDR", &cfg.Redis.Addr)
	str("SMARTFLEET_REDIS_PASSWORD", &cfg.Redis.Password)
	str("SMARTFLEET_RABBITMQ_HOST", &cfg.RabbitMQ.Host)
	str("SMARTFLEET_RABBITMQ_USER", &cfg.RabbitMQ.User)
	str("SMARTFLEET_RABBITMQ_PASSWORD", &cfg.RabbitMQ.Password)
	str("SMARTFLEET_DATABASE_HOST", &cfg.Database.Host)
	str("SMARTFLEET_DATABASE_USER", &cfg.Database.User)
	str("SMARTFLEET_DATABASE_PASSWORD", &cfg.Database.Password)
	str("SMARTFLEET_DATABASE_NAME", &cfg.Database.Name)
	str("SMARTFLEET_JWT_SECRET", &cfg.DevServer.SecretKey)
	num("SMARTFLEET_METRICS_PORT", &cfg.Metrics.Port)
	num("SMARTFLEET_DEVSERVER_PORT", &cfg.DevServer.Port)

	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}
