package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Live feed sources.
const (
	SourceSTOMP = "stomp"
	SourceAMQP  = "amqp"
)

// Session stores.
const (
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Guard lookup-failure policies.
const (
	LookupFailOpen   = "open"
	LookupFailClosed = "closed"
)

type Config struct {
	API struct {
		BaseURL string
		Timeout time.Duration // 0 disables the per-call timeout
	}
	Live struct {
		URL       string // ws(s)://host/ws/websocket; derived from API.BaseURL when empty
		Topic     string
		Source    string // stomp | amqp
		AMQPQueue string
	}
	Session struct {
		Store       string // file | redis | memory
		Path        string
		RedisPrefix string
	}
	Guard struct {
		LookupFailure string // open | closed
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	RabbitMQ struct {
		Host     string
		Port     int
		User     string
		Password string
		Exchange string
	}
	Database struct {
		Host     string
		Port     int
		User     string
		Password string
		Name     string // YAML key: "database"
	}
	Metrics struct {
		Port int // 0 disables the metrics listener
	}
	DevServer struct {
		Port             int
		SecretKey        string `yaml:"jwt_secret"`
		SimulateInterval time.Duration // 0 disables the movement simulation
	}
}

// DefaultPath is where the binary looks for its config file.
const DefaultPath = "config/config.yaml"

// LoadFromFile loads config from a YAML file to a Config struct, applies env overrides and defaults, and validates.
func LoadFromFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := parseYAML(file, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return finish(&cfg)
}

// Load is LoadFromFile that falls back to defaults + env when the file does not exist.
func Load(path string) (*Config, error) {
	cfg, err := LoadFromFile(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return finish(&Config{})
	}
	return nil, err
}

func finish(cfg *Config) (*Config, error) {
	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("invalid environment override: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyDefaults sets safe defaults for some fields.
func applyDefaults(cfg *Config) {
	// API
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = "http://localhost:8080"
	}
	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")

	// Live feed
	if cfg.Live.Topic == "" {
		cfg.Live.Topic = "/topic/vehicles"
	}
	if cfg.Live.Source == "" {
		cfg.Live.Source = SourceSTOMP
	}
	if cfg.Live.URL == "" {
		cfg.Live.URL = deriveLiveURL(cfg.API.BaseURL)
	}
	if cfg.Live.AMQPQueue == "" {
		cfg.Live.AMQPQueue = "fleet_vehicles_console"
	}

	// Session
	if cfg.Session.Store == "" {
		cfg.Session.Store = StoreFile
	}
	if cfg.Session.Path == "" {
		cfg.Session.Path = defaultSessionPath()
	}
	if cfg.Session.RedisPrefix == "" {
		cfg.Session.RedisPrefix = "smartfleet:session:"
	}

	// Guard
	if cfg.Guard.LookupFailure == "" {
		cfg.Guard.LookupFailure = LookupFailOpen
	}

	// Redis
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}

	// RabbitMQ
	if cfg.RabbitMQ.Host == "" {
		cfg.RabbitMQ.Host = "localhost"
	}
	if cfg.RabbitMQ.Port == 0 {
		cfg.RabbitMQ.Port = 5672
	}
	if cfg.RabbitMQ.Exchange == "" {
		cfg.RabbitMQ.Exchange = "fleet_vehicles"
	}

	// Database
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}

	// Dev server
	if cfg.DevServer.Port == 0 {
		cfg.DevServer.Port = 8080
	}
	if cfg.DevServer.SecretKey == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			// fallback: time-based bytes
			key = []byte(fmt.Sprintf("%d", time.Now().UnixNano()))
		}
		cfg.DevServer.SecretKey = base64.StdEncoding.EncodeToString(key)
	}
}

// validate checks fields and basic ranges every mode depends on.
func (c *Config) validate() error {
	var problems []string

	if u, err := url.Parse(c.API.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		problems = append(problems, "api.base_url must be an absolute http(s) URL")
	}
	if c.API.Timeout < 0 {
		problems = append(problems, "api.timeout cannot be negative")
	}

	if u, err := url.Parse(c.Live.URL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		problems = append(problems, "live.url must be an absolute ws(s) URL")
	}
	if !strings.HasPrefix(c.Live.Topic, "/") {
		problems = append(problems, "live.topic must start with '/'")
	}
	switch c.Live.Source {
	case SourceSTOMP, SourceAMQP:
	default:
		problems = append(problems, "live.source must be stomp or amqp")
	}

	switch c.Session.Store {
	case StoreFile, StoreRedis, StoreMemory:
	default:
		problems = append(problems, "session.store must be file, redis or memory")
	}

	switch c.Guard.LookupFailure {
	case LookupFailOpen, LookupFailClosed:
	default:
		problems = append(problems, "guard.lookup_failure must be open or closed")
	}

	if c.Redis.DB < 0 {
		problems = append(problems, "redis.db cannot be negative")
	}
	if c.RabbitMQ.Port <= 0 || c.RabbitMQ.Port > 65535 {
		problems = append(problems, "rabbitmq.port must be in 1..65535")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		problems = append(problems, "database.port must be in 1..65535")
	}
	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		problems = append(problems, "metrics.port must be in 0..65535")
	}
	if c.DevServer.Port <= 0 || c.DevServer.Port > 65535 {
		problems = append(problems, "devserver.port must be in 1..65535")
	}
	if c.DevServer.SimulateInterval < 0 {
		problems = append(problems, "devserver.simulate_interval cannot be negative")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// ValidateBridge checks the credentials the bridge needs for RabbitMQ and PostgreSQL.
func (c *Config) ValidateBridge() error {
	var problems []string
	if c.RabbitMQ.User == "" {
		problems = append(problems, "rabbitmq.user is required")
	}
	if c.RabbitMQ.Password == "" {
		problems = append(problems, "rabbitmq.password is required")
	}
	if c.Database.User == "" {
		problems = append(problems, "database.user is required")
	}
	if c.Database.Password == "" {
		problems = append(problems, "database.password is required")
	}
	if c.Database.Name == "" {
		problems = append(problems, "database.database is required")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// deriveLiveURL maps http://host/ to ws://host/ws/websocket (the raw websocket
// transport of the backend's SockJS endpoint).
func deriveLiveURL(base string) string {
	u, err := url.Parse(base)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/websocket"
	return u.String()
}

func defaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(os.TempDir(), "smartfleet", "session.json")
	}
	return filepath.Join(home, ".smartfleet", "session.json")
}
