package devserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"smart-fleet/internal/api"
	"smart-fleet/internal/domain/fleet"
	"smart-fleet/internal/general/jwt"
	"smart-fleet/internal/general/websocket"

	"golang.org/x/crypto/bcrypt"
)

type harness struct {
	srv    *Server
	store  *Store
	url    string
	broker *websocket.Broker
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := NewStore(bcrypt.MinCost)
	if err := Seed(store); err != nil {
		t.Fatalf("seed: %v", err)
	}
	mgr := jwt.NewManager("dev-secret", time.Hour)
	broker := websocket.NewBroker(nil)
	srv := NewServer(store, mgr, broker, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &harness{srv: srv, store: store, url: ts.URL, broker: broker}
}

func (h *harness) client(t *testing.T, username string) *api.Client {
	t.Helper()
	c, err := api.New(h.url)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if username == "" {
		return c
	}
	resp, err := c.Login(context.Background(), fleet.Credentials{Username: username, Password: username})
	if err != nil {
		t.Fatalf("login %s: %v", username, err)
	}
	c.SetTokenSource(api.StaticToken(resp.Token))
	return c
}

func TestAuthEndpoints(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.client(t, "")

	if _, err := c.Login(ctx, fleet.Credentials{Username: SeedAdmin, Password: "wrong"}); !errors.Is(err, api.ErrUnauthorized) {
		t.Fatalf("bad password: want ErrUnauthorized, got %v", err)
	}
	resp, err := c.Login(ctx, fleet.Credentials{Username: SeedAdmin, Password: SeedAdmin})
	if err != nil || resp.Role != fleet.RoleAdmin || resp.Token == "" {
		t.Fatalf("admin login: %+v %v", resp, err)
	}

	reg, err := c.Register(ctx, fleet.Registration{Username: "newbie", Password: "pw", Email: "n@x", FullName: "New Driver", License: "L1"})
	if err != nil || reg.Role != fleet.RoleDriver {
		t.Fatalf("register: %+v %v", reg, err)
	}
	if _, err := c.Register(ctx, fleet.Registration{Username: "newbie", Password: "pw"}); !errors.Is(err, api.ErrRejected) {
		t.Fatalf("duplicate register: want ErrRejected, got %v", err)
	}

	text, err := c.Health(ctx)
	if err != nil || text != HealthText {
		t.Fatalf("health = %q, %v", text, err)
	}
}

func TestRoleEnforcement(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.client(t, "").ListVehicles(ctx); !errors.Is(err, api.ErrUnauthorized) {
		t.Fatalf("anonymous list: want ErrUnauthorized, got %v", err)
	}
	drv := h.client(t, SeedDriver)
	if _, err := drv.ListDrivers(ctx); !errors.Is(err, api.ErrRejected) || api.StatusOf(err) != http.StatusForbidden {
		t.Fatalf("driver listing drivers: want 403, got %v", err)
	}
	if _, err := drv.CreateVehicle(ctx, fleet.VehicleInput{Plate: "X"}); api.StatusOf(err) != http.StatusForbidden {
		t.Fatalf("driver creating vehicle: want 403, got %v", err)
	}
	if _, err := h.client(t, SeedAdmin).Me(ctx); api.StatusOf(err) != http.StatusForbidden {
		t.Fatalf("admin /me: want 403, got %v", err)
	}
}

func TestDriverFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	drv := h.client(t, SeedDriverNoTruck)
	me, err := drv.Me(ctx)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if me.HasVehicle() {
		t.Fatalf("seeded driver2 must have no vehicle")
	}

	avail, err := drv.AvailableVehicles(ctx)
	if err != nil || len(avail) == 0 {
		t.Fatalf("available: %v %v", avail, err)
	}
	vid := avail[0].ID
	updated, err := drv.AssignVehicle(ctx, me.ID, &vid)
	if err != nil || !updated.HasVehicle() || *updated.VehicleID != vid {
		t.Fatalf("assign: %+v %v", updated, err)
	}

	// another driver cannot touch this record
	other := h.client(t, SeedDriver)
	if _, err := other.AssignVehicle(ctx, me.ID, nil); api.StatusOf(err) != http.StatusForbidden {
		t.Fatalf("foreign assign: want 403, got %v", err)
	}
	// nor take the vehicle
	otherMe, _ := other.Me(ctx)
	if _, err := other.AssignVehicle(ctx, otherMe.ID, &vid); api.StatusOf(err) != http.StatusConflict {
		t.Fatalf("taken vehicle: want 409, got %v", err)
	}

	if _, err := drv.UpdateDriverStatus(ctx, me.ID, fleet.DriverOffDuty); err != nil {
		t.Fatalf("status: %v", err)
	}
	if err := drv.UpdateVehicleLocation(ctx, vid, 46.77, 23.6); err != nil {
		t.Fatalf("location: %v", err)
	}
	v, err := drv.GetVehicle(ctx, vid)
	if err != nil || v.Lat != 46.77 || v.Status != fleet.VehicleOnTrip {
		t.Fatalf("vehicle after location: %+v %v", v, err)
	}
}

func TestTripLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	drv := h.client(t, SeedDriver)

	me, err := drv.Me(ctx)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	trips, err := drv.DriverTrips(ctx, me.ID)
	if err != nil || len(trips) != 1 {
		t.Fatalf("trips: %v %v", trips, err)
	}
	started, err := drv.StartTrip(ctx, trips[0].ID)
	if err != nil || started.Status != fleet.TripOnTrip {
		t.Fatalf("start: %+v %v", started, err)
	}
	if _, ok := started.Started(); !ok {
		t.Fatalf("start time not parseable: %q", started.StartTime)
	}
	if _, err := drv.StartTrip(ctx, trips[0].ID); api.StatusOf(err) != http.StatusConflict {
		t.Fatalf("restart: want 409, got %v", err)
	}
	done, err := drv.CompleteTrip(ctx, trips[0].ID)
	if err != nil || done.Status != fleet.TripCompleted {
		t.Fatalf("complete: %+v %v", done, err)
	}
	me, _ = drv.Me(ctx)
	if me.Status != fleet.DriverAvailable || me.TripCount != 1 {
		t.Fatalf("driver after trip: %+v", me)
	}
}

func TestVehicleCRUD(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	adm := h.client(t, SeedAdmin)

	if _, err := adm.CreateVehicle(ctx, fleet.VehicleInput{Brand: "NoPlate"}); !errors.Is(err, api.ErrRejected) {
		t.Fatalf("create without plate: want ErrRejected, got %v", err)
	}
	v, err := adm.CreateVehicle(ctx, fleet.VehicleInput{Plate: "CJ-99-NEW", Brand: "DAF"})
	if err != nil || v.Lat != defaultLat || v.Status != fleet.VehicleAvailable {
		t.Fatalf("create: %+v %v", v, err)
	}
	v, err = adm.UpdateVehicle(ctx, v.ID, fleet.VehicleInput{Plate: "CJ-99-NEW", Brand: "DAF", Status: fleet.VehicleIdle})
	if err != nil || v.Status != fleet.VehicleIdle {
		t.Fatalf("update: %+v %v", v, err)
	}

	// deleting the seeded driver's vehicle unassigns the driver
	if err := adm.DeleteVehicle(ctx, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := adm.GetVehicle(ctx, 1); !errors.Is(err, api.ErrRejected) || api.StatusOf(err) != http.StatusNotFound {
		t.Fatalf("deleted vehicle: want 404, got %v", err)
	}
	drivers, err := adm.ListDrivers(ctx)
	if err != nil {
		t.Fatalf("drivers: %v", err)
	}
	for _, d := range drivers {
		if d.HasVehicle() && *d.VehicleID == 1 {
			t.Fatalf("driver %d still holds deleted vehicle", d.ID)
		}
	}
}

func TestSimulationStepMovesOnlyOnTripVehicles(t *testing.T) {
	h := newHarness(t)
	before, _ := h.store.Vehicle(1)

	moved := h.srv.Step(context.Background())
	if len(moved) != 1 || moved[0].ID != 1 {
		t.Fatalf("moved = %+v, want only vehicle 1", moved)
	}
	after, _ := h.store.Vehicle(1)
	if after.TotalKm != before.TotalKm+stepKm {
		t.Fatalf("total km %v -> %v", before.TotalKm, after.TotalKm)
	}
	if d := after.Lat - before.Lat; d > stepDegrees || d < -stepDegrees {
		t.Fatalf("lat moved too far: %v", d)
	}
	idle, _ := h.store.Vehicle(2)
	if idle.TotalKm != 0 {
		t.Fatalf("non-moving vehicle changed: %+v", idle)
	}
}

func TestSimulationFlagsMaintenance(t *testing.T) {
	h := newHarness(t)
	h.store.Mutate(func(v fleet.Vehicle) bool { return v.ID == 1 }, func(v *fleet.Vehicle) { v.TotalKm = serviceIntervalKm })
	moved := h.srv.Step(context.Background())
	if len(moved) != 1 || moved[0].Status != fleet.VehicleMaintenance {
		t.Fatalf("want vehicle in maintenance, got %+v", moved)
	}
}
