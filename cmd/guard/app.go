package guardapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"smart-fleet/internal/cli"
	"smart-fleet/internal/guard"
)

// Run resolves each target for the stored session and prints where
// navigation ends. policy overrides guard.lookup_failure when not empty.
func Run(ctx context.Context, targets []string, policy string) error {
	if len(targets) == 0 {
		targets = []string{guard.PathHome}
	}

	app, err := cli.Bootstrap(ctx, "fleet-guard")
	if err != nil {
		return err
	}
	defer app.Close()

	if policy == "" {
		policy = app.Config.Guard.LookupFailure
	}
	g := guard.New(app.Session, app.API,
		guard.WithPolicy(guard.Policy(policy)),
		guard.WithLogger(app.Logger),
	)

	var failed error
	for _, target := range targets {
		d, chain, err := g.Resolve(ctx, target)
		printResolution(os.Stdout, d, chain, err)
		if err != nil && !errors.Is(err, context.Canceled) {
			failed = errors.Join(failed, fmt.Errorf("%s: %w", target, err))
		}
	}
	return failed
}

func printResolution(w io.Writer, d guard.Decision, chain []string, err error) {
	path := strings.Join(chain, " -> ")
	switch {
	case err != nil:
		fmt.Fprintf(w, "%s  ABORTED (%v)\n", path, err)
	case d.Route.Name != "":
		fmt.Fprintf(w, "%s  [%s]\n", path, d.Route.Name)
	default:
		fmt.Fprintf(w, "%s\n", path)
	}
}
