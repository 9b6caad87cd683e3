package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
)

const (
	ModeConsole   = "console"
	ModeTracker   = "tracker"
	ModeBridge    = "bridge"
	ModeAuth      = "auth"
	ModeGuard     = "guard"
	ModeDevServer = "devserver"
)

// isKnownMode checks if the provided mode name is known.
func isKnownMode(s string) (string, bool) {
	switch s {
	case ModeConsole, "dashboard", "c":
		return ModeConsole, true
	case ModeTracker, "truck", "t":
		return ModeTracker, true
	case ModeBridge, "b":
		return ModeBridge, true
	case ModeAuth, "session", "a":
		return ModeAuth, true
	case ModeGuard, "nav", "g":
		return ModeGuard, true
	case ModeDevServer, "dev-server", "server", "d":
		return ModeDevServer, true
	default:
		return "", false
	}
}

// ParseMode supports:
//
//	--mode=<value>
//	<value> (subcommand shorthand), e.g., `console --watch=false`
func ParseMode(args []string) (string, []string, error) {
	var mode string
	var out []string

	for i := range args {
		arg := args[i]
		if after, ok := strings.CutPrefix(arg, "--mode="); ok {
			mode = after
			continue
		}

		if mode == "" {
			if m, ok := isKnownMode(arg); ok {
				mode = m
				continue
			}
		}
		out = append(out, arg)
	}

	if mode == "" {
		return "", out, errors.New("no mode specified: use --mode=<mode>")
	}

	m, ok := isKnownMode(mode)
	if !ok {
		return "", out, fmt.Errorf("unknown mode %q", mode)
	}

	return m, out, nil
}

// PrintUsage prints the usage information with examples.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, "\033[36m") // cyan

	fmt.Fprintln(w, `Usage:
  ./smart-fleet --mode=<mode> [flags]

Modes:
  console      Fetch the fleet and keep it in sync with the live feed
  tracker      Driver truck simulator pushing positions along a route
  bridge       Relay the live feed to RabbitMQ and archive positions in PostgreSQL
  auth         Session commands: login, register, logout, status
  guard        Resolve a navigation target against the route guard
  devserver    In-process backend (REST + STOMP) with seeded data

Examples:
  ./smart-fleet --mode=devserver --simulate=2s
  ./smart-fleet auth login --username=admin --password=admin
  ./smart-fleet --mode=console --refresh=30s
  ./smart-fleet --mode=tracker --step=5s
  ./smart-fleet guard /vehicles
  ./smart-fleet --mode=bridge`)

	fmt.Fprint(w, "\033[0m") // reset
}

// AttachUsage wires a concise per-mode usage to a FlagSet.
func AttachUsage(fs *flag.FlagSet, mode string) {
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: ./smart-fleet --mode=%s [flags]\n", mode)
		fs.PrintDefaults()
	}
}
