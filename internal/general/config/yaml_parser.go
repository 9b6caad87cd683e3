package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

type section int

const (
	none section = iota
	apiSec
	liveSec
	sessionSec
	guardSec
	redisSec
	rabbitSec
	dbSec
	metricsSec
	devSec
)

var sectionNames = map[string]section{
	"api":       apiSec,
	"live":      liveSec,
	"session":   sessionSec,
	"guard":     guardSec,
	"redis":     redisSec,
	"rabbitmq":  rabbitSec,
	"database":  dbSec,
	"metrics":   metricsSec,
	"devserver": devSec,
}

// parseYAML parses the specific two-level mapping used by config.yaml
func parseYAML(r io.Reader, cfg *Config) error {
	scanner := bufio.NewScanner(r)
	var cur section
	var curName string

	lineNo := 0
	seenTop := map[section]bool{}

	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()

		// strip comments (a '#' inside quotes is kept)
		raw = stripComment(raw)

		line := strings.TrimRight(raw, " \t\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}

		// top-level section? (no leading spaces)
		if line[0] != ' ' && line[0] != '\t' {
			name := strings.TrimSpace(line)
			if !strings.HasSuffix(name, ":") {
				return fmt.Errorf("line %d: expected a section header, got %q", lineNo, name)
			}
			name = strings.TrimSuffix(name, ":")
			sec, ok := sectionNames[name]
			if !ok {
				return fmt.Errorf("line %d: unknown top-level key %q", lineNo, name)
			}
			if seenTop[sec] {
				return fmt.Errorf("line %d: duplicate '%s' section", lineNo, name)
			}
			seenTop[sec] = true
			cur, curName = sec, name
			continue
		}

		// expect indented "key: value"
		if cur == none {
			return fmt.Errorf("line %d: key without a section", lineNo)
		}
		trim := strings.TrimSpace(line)
		colon := strings.IndexByte(trim, ':')
		if colon <= 0 {
			return fmt.Errorf("line %d: expected 'key: value'", lineNo)
		}
		key := strings.TrimSpace(trim[:colon])
		val := resolveScalar(trim[colon+1:])

		var err error
		switch cur {
		case apiSec:
			switch key {
			case "base_url":
				cfg.API.BaseURL = val
			case "timeout":
				cfg.API.Timeout, err = parseDuration(val)
			default:
				err = errUnknownKey
			}
		case liveSec:
			switch key {
			case "url":
				cfg.Live.URL = val
			case "topic":
				cfg.Live.Topic = val
			case "source":
				cfg.Live.Source = strings.ToLower(val)
			case "amqp_queue":
				cfg.Live.AMQPQueue = val
			default:
				err = errUnknownKey
			}
		case sessionSec:
			switch key {
			case "store":
				cfg.Session.Store = strings.ToLower(val)
			case "path":
				cfg.Session.Path = val
			case "redis_prefix":
				cfg.Session.RedisPrefix = val
			default:
				err = errUnknownKey
			}
		case guardSec:
			switch key {
			case "lookup_failure":
				cfg.Guard.LookupFailure = strings.ToLower(val)
			default:
				err = errUnknownKey
			}
		case redisSec:
			switch key {
			case "addr":
				cfg.Redis.Addr = val
			case "password":
				cfg.Redis.Password = val
			case "db":
				cfg.Redis.DB, err = strconv.Atoi(val)
			default:
				err = errUnknownKey
			}
		case rabbitSec:
			switch key {
			case "host":
				cfg.RabbitMQ.Host = val
			case "port":
				cfg.RabbitMQ.Port, err = strconv.Atoi(val)
			case "user":
				cfg.RabbitMQ.User = val
			case "password":
				cfg.RabbitMQ.Password = val
			case "exchange":
				cfg.RabbitMQ.Exchange = val
			default:
				err = errUnknownKey
			}
		case dbSec:
			switch key {
			case "host":
				cfg.Database.Host = val
			case "port":
				cfg.Database.Port, err = strconv.Atoi(val)
			case "user":
				cfg.Database.User = val
			case "password":
				cfg.Database.Password = val
			case "database":
				cfg.Database.Name = val
			default:
				err = errUnknownKey
			}
		case metricsSec:
			switch key {
			case "port":
				cfg.Metrics.Port, err = strconv.Atoi(val)
			default:
				err = errUnknownKey
			}
		case devSec:
			switch key {
			case "port":
				cfg.DevServer.Port, err = strconv.Atoi(val)
			case "jwt_secret":
				cfg.DevServer.SecretKey = val
			case "simulate_interval":
				cfg.DevServer.SimulateInterval, err = parseDuration(val)
			default:
				err = errUnknownKey
			}
		}

		if err == errUnknownKey {
			return fmt.Errorf("line %d: unknown key in %s: %q", lineNo, curName, key)
		}
		if err != nil {
			return fmt.Errorf("line %d: %s.%s: %v", lineNo, curName, key, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}

	return nil
}

var errUnknownKey = fmt.Errorf("unknown key")

// parseDuration accepts Go durations ("15s") and bare integers as seconds.
func parseDuration(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}

// stripComment drops a trailing '#' comment that is not inside quotes.
func stripComment(s string) string {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '#':
			return s[:i]
		}
	}
	return s
}

// resolveScalar trims whitespace and removes surrounding quotes from YAML-like scalars.
// For example:
//
//	"localhost"  -> localhost
//	'password123' -> password123
//	localhost     -> localhost
func resolveScalar(s string) string {
	s = strings.TrimSpace(s)

	// if value is quoted with "..." or '...', remove quotes safely
	n := len(s)
	if n >= 2 {
		if (s[0] == '"' && s[n-1] == '"') || (s[0] == '\'' && s[n-1] == '\'') {
			if unq, err := strconv.Unquote(s); err == nil {
				return unq
			}
			// fallback if strconv.Unquote fails (e.g., single quotes)
			return s[1 : n-1]
		}
	}

	return s
}
