package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	authapp "smart-fleet/cmd/auth"
	bridgeapp "smart-fleet/cmd/bridge"
	consoleapp "smart-fleet/cmd/console"
	devserverapp "smart-fleet/cmd/devserver"
	guardapp "smart-fleet/cmd/guard"
	trackerapp "smart-fleet/cmd/tracker"
	"smart-fleet/internal/cli"
	"smart-fleet/internal/domain/fleet"
	"syscall"
	"time"
)

func main() {
	// quick path for global help
	if len(os.Args) == 2 && (os.Args[1] == "--help" || os.Args[1] == "-h") {
		cli.PrintUsage(os.Stdout)
		os.Exit(0)
	}

	// parse mode and collect the remaining args for that mode
	mode, modeArgs, err := cli.ParseMode(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cli.PrintUsage(os.Stderr)
		os.Exit(2)
	}

	// context cancelled on SIGINT/SIGTERM for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch mode {

	case cli.ModeConsole:
		fs := flag.NewFlagSet(cli.ModeConsole, flag.ContinueOnError)
		refresh := fs.Duration("refresh", 0, "Re-fetch the full fleet this often (0 disables)")
		once := fs.Bool("once", false, "Print the fleet once and exit without following the live feed")
		cli.AttachUsage(fs, cli.ModeConsole)
		parseOrExit(fs, modeArgs)

		if *refresh < 0 {
			usageError(fs, "--refresh cannot be negative")
		}
		exitOn(consoleapp.Run(ctx, *refresh, *once))

	case cli.ModeTracker:
		fs := flag.NewFlagSet(cli.ModeTracker, flag.ContinueOnError)
		step := fs.Duration("step", 500*time.Millisecond, "Delay between position pushes")
		steps := fs.Int("steps", 50, "Interpolated fixes per route leg")
		seed := fs.Uint64("seed", uint64(time.Now().UnixNano()), "Seed for the cargo temperature simulation")
		username := fs.String("username", "", "Sign in as this driver first (default: stored session)")
		password := fs.String("password", os.Getenv("SMARTFLEET_PASSWORD"), "Driver password (default $SMARTFLEET_PASSWORD)")
		cli.AttachUsage(fs, cli.ModeTracker)
		parseOrExit(fs, modeArgs)

		if *steps < 1 {
			usageError(fs, "--steps must be >= 1")
		}
		creds := fleet.Credentials{Username: *username, Password: *password}
		exitOn(trackerapp.Run(ctx, creds, *step, *steps, *seed))

	case cli.ModeBridge:
		fs := flag.NewFlagSet(cli.ModeBridge, flag.ContinueOnError)
		cli.AttachUsage(fs, cli.ModeBridge)
		parseOrExit(fs, modeArgs)

		exitOn(bridgeapp.Run(ctx))

	case cli.ModeAuth:
		err := authapp.Run(ctx, modeArgs)
		switch {
		case errors.Is(err, flag.ErrHelp):
			os.Exit(0)
		case errors.Is(err, authapp.ErrUsage):
			fmt.Fprintln(os.Stderr, "Error:", err)
			fmt.Fprintln(os.Stderr, "Usage: ./smart-fleet --mode=auth <login|register|logout|status> [flags]")
			os.Exit(2)
		}
		exitOn(err)

	case cli.ModeGuard:
		fs := flag.NewFlagSet(cli.ModeGuard, flag.ContinueOnError)
		policy := fs.String("policy", "", "Driver lookup failure policy: open | closed (default from config)")
		cli.AttachUsage(fs, cli.ModeGuard)
		parseOrExit(fs, modeArgs)

		if *policy != "" && *policy != "open" && *policy != "closed" {
			usageError(fs, "--policy must be open or closed")
		}
		exitOn(guardapp.Run(ctx, fs.Args(), *policy))

	case cli.ModeDevServer:
		fs := flag.NewFlagSet(cli.ModeDevServer, flag.ContinueOnError)
		simulate := fs.Duration("simulate", -1, "Movement simulation interval (0 disables, default from config)")
		maxConc := fs.Int("max-concurrent", 100, "Maximum number of concurrent HTTP requests and websocket sessions")
		cli.AttachUsage(fs, cli.ModeDevServer)
		parseOrExit(fs, modeArgs)

		if *maxConc < 1 {
			usageError(fs, "--max-concurrent must be >= 1")
		}
		exitOn(devserverapp.Run(ctx, *simulate, *maxConc))

	default:
		// should not happen because ParseMode validates known modes
		fmt.Fprintln(os.Stderr, "Error: unknown mode")
		os.Exit(2)
	}

	// tiny delay to let deferred logs flush on very fast exits
	select {
	case <-ctx.Done():
	case <-time.After(10 * time.Millisecond):
	}
}

func parseOrExit(fs *flag.FlagSet, args []string) {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(2)
	}
}

func usageError(fs *flag.FlagSet, msg string) {
	fmt.Fprintln(os.Stderr, "Error:", msg)
	fs.Usage()
	os.Exit(2)
}

func exitOn(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
