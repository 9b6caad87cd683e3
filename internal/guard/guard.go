package guard

import (
	"context"
	"errors"
	"fmt"

	"smart-fleet/internal/domain/fleet"
	"smart-fleet/internal/general/config"
	"smart-fleet/internal/general/logger"
)

// Policy decides what a failed driver lookup does to navigation.
type Policy string

const (
	FailOpen   Policy = config.LookupFailOpen
	FailClosed Policy = config.LookupFailClosed
)

const maxHops = 5

var ErrTooManyRedirects = errors.New("guard: too many redirects")

// ErrNoDriverProfile is a lookup that answered without a driver.
var ErrNoDriverProfile = errors.New("guard: lookup returned no driver profile")

// Session is the authentication state the guard reads.
type Session interface {
	IsAuthenticated() bool
	Role() fleet.Role
}

// DriverLookup fetches the signed-in driver's own record.
type DriverLookup interface {
	Me(ctx context.Context) (*fleet.Driver, error)
}

// Decision is the outcome of one navigation check. Exactly one of Proceed,
// Redirect or Err is meaningful.
type Decision struct {
	Target   string
	Route    Match
	Proceed  bool
	Redirect string
	Reason   string
	Err      error
}

type Option func(*Guard)

func WithPolicy(p Policy) Option {
	return func(g *Guard) {
		if p == FailOpen || p == FailClosed {
			g.policy = p
		}
	}
}

func WithRoutes(routes []Route) Option {
	return func(g *Guard) { g.table = NewTable(routes) }
}

func WithLogger(l *logger.Logger) Option {
	return func(g *Guard) {
		if l != nil {
			g.log = l
		}
	}
}

// Guard gates navigation by authentication, role and vehicle assignment.
type Guard struct {
	table   *Table
	session Session
	drivers DriverLookup
	policy  Policy
	log     *logger.Logger
}

func New(session Session, drivers DriverLookup, opts ...Option) *Guard {
	g := &Guard{
		table:   NewTable(DefaultRoutes()),
		session: session,
		drivers: drivers,
		policy:  FailOpen,
		log:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check evaluates a single navigation to target.
func (g *Guard) Check(ctx context.Context, target string) Decision {
	route, _ := g.table.Lookup(target)
	d := Decision{Target: route.Path, Route: route}
	authed := g.session.IsAuthenticated()

	if route.Meta.RequiresAuth && !authed {
		return d.redirect(PathLogin, "authentication required")
	}
	if route.Path == PathLogin && authed {
		return d.redirect(PathHome, "already authenticated")
	}

	role := g.session.Role()
	if role.IsDriver() {
		if route.Path == PathHome && route.Name == "Map" {
			return d.redirect(PathDriverDashboard, "drivers start on their dashboard")
		}
		if route.Path != PathSelectVehicle {
			assigned, err := g.vehicleAssigned(ctx)
			switch {
			case err != nil && g.policy == FailClosed:
				d.Err = err
				d.Reason = "driver lookup failed"
				return d
			case err == nil && !assigned:
				return d.redirect(PathSelectVehicle, "no vehicle assigned")
			}
		}
	}

	if route.Meta.RequiresAdmin && !role.IsAdmin() {
		return d.redirect(PathHome, "admin role required")
	}

	d.Proceed = true
	return d
}

func (g *Guard) vehicleAssigned(ctx context.Context) (bool, error) {
	if g.drivers == nil {
		return false, errors.New("guard: no driver lookup configured")
	}
	me, err := g.drivers.Me(ctx)
	if err != nil {
		g.log.Error(ctx, "guard_lookup_failed", "driver vehicle lookup failed", err, map[string]any{"policy": string(g.policy)})
		return false, fmt.Errorf("driver lookup: %w", err)
	}
	if me == nil {
		g.log.Error(ctx, "guard_lookup_failed", "driver lookup returned nothing", ErrNoDriverProfile, map[string]any{"policy": string(g.policy)})
		return false, ErrNoDriverProfile
	}
	return me.HasVehicle(), nil
}

func (d Decision) redirect(to, reason string) Decision {
	d.Redirect = to
	d.Reason = reason
	return d
}

// Resolve follows redirects from target until navigation proceeds or is
// aborted. It returns the final decision and the visited path chain.
func (g *Guard) Resolve(ctx context.Context, target string) (Decision, []string, error) {
	chain := []string{Normalize(target)}
	cur := target
	for hop := 0; hop <= maxHops; hop++ {
		d := g.Check(ctx, cur)
		if d.Err != nil {
			return d, chain, d.Err
		}
		if d.Proceed {
			return d, chain, nil
		}
		g.log.Debug(ctx, "guard_redirect", d.Reason, map[string]any{"from": d.Target, "to": d.Redirect})
		cur = d.Redirect
		chain = append(chain, Normalize(cur))
	}
	return Decision{Target: Normalize(cur)}, chain, ErrTooManyRedirects
}
