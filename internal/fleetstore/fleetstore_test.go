package fleetstore

import (
	"context"
	"errors"
	"reflect"
	"runtime"
	"sync"
	"testing"

	"smart-fleet/internal/domain/fleet"
)

var errBackend = errors.New("backend said no")

// fakeVehicles is an in-memory VehicleAPI.
type fakeVehicles struct {
	mu     sync.Mutex
	rows   []fleet.Vehicle
	nextID int64
	fail   error
	locErr error
}

func (f *fakeVehicles) ListVehicles(context.Context) ([]fleet.Vehicle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	out := make([]fleet.Vehicle, len(f.rows))
	copy(out, f.rows)
	return out, nil
}

func (f *fakeVehicles) AvailableVehicles(ctx context.Context) ([]fleet.Vehicle, error) {
	all, err := f.ListVehicles(ctx)
	if err != nil {
		return nil, err
	}
	var out []fleet.Vehicle
	for _, v := range all {
		if v.Status.Assignable() {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeVehicles) CreateVehicle(_ context.Context, in fleet.VehicleInput) (*fleet.Vehicle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	f.nextID++
	v := fleet.Vehicle{ID: f.nextID, Plate: in.Plate, Brand: in.Brand, Status: fleet.VehicleIdle}
	f.rows = append(f.rows, v)
	return &v, nil
}

func (f *fakeVehicles) UpdateVehicle(_ context.Context, id int64, in fleet.VehicleInput) (*fleet.Vehicle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	for i := range f.rows {
		if f.rows[i].ID == id {
			if in.Brand != "" {
				f.rows[i].Brand = in.Brand
			}
			if in.Status != "" {
				f.rows[i].Status = in.Status
			}
			v := f.rows[i]
			return &v, nil
		}
	}
	return nil, errBackend
}

func (f *fakeVehicles) DeleteVehicle(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	for i := range f.rows {
		if f.rows[i].ID == id {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return errBackend
}

func (f *fakeVehicles) UpdateVehicleLocation(_ context.Context, id int64, lat, lng float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locErr != nil {
		return f.locErr
	}
	for i := range f.rows {
		if f.rows[i].ID == id {
			f.rows[i].Lat, f.rows[i].Lng = lat, lng
		}
	}
	return nil
}

func seeded() *fakeVehicles {
	return &fakeVehicles{
		nextID: 3,
		rows: []fleet.Vehicle{
			{ID: 1, Plate: "B-01-AAA", Status: fleet.VehicleActive},
			{ID: 2, Plate: "B-02-BBB", Status: fleet.VehicleIdle},
			{ID: 3, Plate: "B-03-CCC", Status: fleet.VehicleActive},
		},
	}
}

func mustFetch(t *testing.T, s *VehicleStore) {
	t.Helper()
	if err := s.FetchVehicles(context.Background()); err != nil {
		t.Fatalf("FetchVehicles: %v", err)
	}
}

func TestFetchOverwritesRegardlessOfPriorContents(t *testing.T) {
	api := seeded()
	s := NewVehicleStore(api)
	s.insert(fleet.Vehicle{ID: 99, Plate: "STALE"})

	mustFetch(t, s)
	if got := s.Vehicles(); !reflect.DeepEqual(got, api.rows) {
		t.Fatalf("cache = %+v, want %+v", got, api.rows)
	}
	if s.Count() != 3 || s.ActiveCount() != 2 {
		t.Fatalf("Count/ActiveCount = %d/%d", s.Count(), s.ActiveCount())
	}
}

func TestFetchFailureKeepsContentsAndRecordsError(t *testing.T) {
	api := seeded()
	s := NewVehicleStore(api)
	mustFetch(t, s)
	before := s.Vehicles()

	api.fail = errBackend
	if err := s.FetchVehicles(context.Background()); !errors.Is(err, errBackend) {
		t.Fatalf("want backend error, got %v", err)
	}
	if !reflect.DeepEqual(s.Vehicles(), before) {
		t.Fatalf("contents changed on failed fetch")
	}
	if s.LastError() != errBackend.Error() {
		t.Fatalf("LastError = %q", s.LastError())
	}
	if s.Busy() {
		t.Fatalf("busy flag left set")
	}

	api.fail = nil
	mustFetch(t, s)
	if s.LastError() != "" {
		t.Fatalf("a new fetch must clear the error slot, got %q", s.LastError())
	}
}

func TestApplyUpdate(t *testing.T) {
	s := NewVehicleStore(seeded())
	mustFetch(t, s)
	before := s.Vehicles()

	moved := fleet.Vehicle{ID: 2, Plate: "B-02-BBB", Status: fleet.VehicleOnTrip, Lat: 44.4, Lng: 26.1}
	if !s.ApplyUpdate(moved) {
		t.Fatalf("update for a known id must apply")
	}
	after := s.Vehicles()
	if len(after) != len(before) {
		t.Fatalf("length changed")
	}
	for i := range after {
		want := before[i]
		if i == 1 {
			want = moved
		}
		if after[i] != want {
			t.Fatalf("index %d = %+v, want %+v", i, after[i], want)
		}
	}

	if s.ApplyUpdate(fleet.Vehicle{ID: 42, Plate: "NEW"}) {
		t.Fatalf("update for an unknown id must be dropped")
	}
	if !reflect.DeepEqual(s.Vehicles(), after) {
		t.Fatalf("dropped update changed the cache")
	}
}

func TestMutationsMatchSubsequentFetch(t *testing.T) {
	ctx := context.Background()
	api := seeded()
	s := NewVehicleStore(api)
	mustFetch(t, s)

	created, err := s.CreateVehicle(ctx, fleet.VehicleInput{Plate: "CJ-10-XYZ", Brand: "Volvo"})
	if err != nil {
		t.Fatalf("CreateVehicle: %v", err)
	}
	if _, err := s.UpdateVehicle(ctx, 1, fleet.VehicleInput{Status: fleet.VehicleMaintenance}); err != nil {
		t.Fatalf("UpdateVehicle: %v", err)
	}
	if err := s.DeleteVehicle(ctx, 2); err != nil {
		t.Fatalf("DeleteVehicle: %v", err)
	}
	local := s.Vehicles()

	fresh := NewVehicleStore(api)
	mustFetch(t, fresh)
	if !reflect.DeepEqual(local, fresh.Vehicles()) {
		t.Fatalf("local %+v diverges from backend %+v", local, fresh.Vehicles())
	}
	if v, ok := s.Get(created.ID); !ok || v.Plate != "CJ-10-XYZ" {
		t.Fatalf("created vehicle missing")
	}
}

func TestMutationFailureLeavesCacheUntouched(t *testing.T) {
	ctx := context.Background()
	api := seeded()
	s := NewVehicleStore(api)
	mustFetch(t, s)
	before := s.Vehicles()

	api.fail = errBackend
	if _, err := s.CreateVehicle(ctx, fleet.VehicleInput{Plate: "X"}); !errors.Is(err, errBackend) {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.UpdateVehicle(ctx, 1, fleet.VehicleInput{Brand: "Y"}); !errors.Is(err, errBackend) {
		t.Fatalf("update: %v", err)
	}
	if err := s.DeleteVehicle(ctx, 1); !errors.Is(err, errBackend) {
		t.Fatalf("delete: %v", err)
	}
	if !reflect.DeepEqual(s.Vehicles(), before) {
		t.Fatalf("cache changed after failed mutations")
	}
	if s.LastError() != errBackend.Error() {
		t.Fatalf("LastError = %q", s.LastError())
	}

	api.fail = nil
	if _, err := s.CreateVehicle(ctx, fleet.VehicleInput{Brand: "no plate"}); !errors.Is(err, fleet.ErrPlateRequired) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestLocationUpdateIsBestEffort(t *testing.T) {
	ctx := context.Background()
	api := seeded()
	s := NewVehicleStore(api)
	mustFetch(t, s)

	if !s.UpdateVehicleLocation(ctx, 1, 45.75, 21.22) {
		t.Fatalf("location update should succeed")
	}
	if v, _ := s.Get(1); v.Lat != 45.75 || v.Lng != 21.22 {
		t.Fatalf("coordinates not patched: %+v", v)
	}

	api.locErr = errBackend
	before := s.Vehicles()
	if s.UpdateVehicleLocation(ctx, 1, 46, 22) {
		t.Fatalf("failed update reported as applied")
	}
	if s.LastError() != "" {
		t.Fatalf("location failures must not be recorded, got %q", s.LastError())
	}
	if !reflect.DeepEqual(s.Vehicles(), before) {
		t.Fatalf("cache changed after failed location update")
	}
	if s.UpdateVehicleLocation(ctx, 1, 91, 0) {
		t.Fatalf("out-of-range latitude accepted")
	}
}

// gatedLoader returns loads that block until released, so tests control
// the order in which overlapping fetches resolve.
type gatedLoader struct {
	started chan struct{}
	release chan []fleet.Vehicle
}

func newGated() *gatedLoader {
	return &gatedLoader{started: make(chan struct{}), release: make(chan []fleet.Vehicle)}
}

func (g *gatedLoader) load(ctx context.Context) ([]fleet.Vehicle, error) {
	g.started <- struct{}{}
	return <-g.release, nil
}

func overlappingFetches(t *testing.T, guard bool) []fleet.Vehicle {
	t.Helper()
	c := NewCollection[int64, fleet.Vehicle]("vehicles", fleet.VehicleID, WithStaleFetchGuard(guard))
	older, newer := newGated(), newGated()
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = c.FetchAll(ctx, older.load) }()
	<-older.started
	go func() { defer wg.Done(); _ = c.FetchAll(ctx, newer.load) }()
	<-newer.started

	if !c.Busy() {
		t.Fatalf("collection must be busy while fetches are in flight")
	}

	// the newer request resolves first, the older one last
	newer.release <- []fleet.Vehicle{{ID: 1, Plate: "fresh"}}
	for c.Len() == 0 {
		runtime.Gosched()
	}
	older.release <- []fleet.Vehicle{{ID: 1, Plate: "stale"}, {ID: 2, Plate: "stale"}}
	wg.Wait()

	if c.Busy() {
		t.Fatalf("busy after all fetches resolved")
	}
	if c.Generation() != 2 {
		t.Fatalf("Generation = %d", c.Generation())
	}
	return c.Snapshot()
}

func TestOverlappingFetchesDiscardStaleResponse(t *testing.T) {
	got := overlappingFetches(t, true)
	if len(got) != 1 || got[0].Plate != "fresh" {
		t.Fatalf("stale response overwrote newer snapshot: %+v", got)
	}
}

func TestOverlappingFetchesLastResolvedWinsWithoutGuard(t *testing.T) {
	got := overlappingFetches(t, false)
	if len(got) != 2 || got[0].Plate != "stale" {
		t.Fatalf("want last resolved response, got %+v", got)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := NewVehicleStore(seeded())
	mustFetch(t, s)
	snap := s.Vehicles()
	snap[0].Plate = "mutated"
	if v, _ := s.Get(1); v.Plate == "mutated" {
		t.Fatalf("snapshot aliases the cache")
	}
}

func TestCreateNeverDuplicatesAnID(t *testing.T) {
	s := NewVehicleStore(seeded())
	mustFetch(t, s)
	s.insert(fleet.Vehicle{ID: 1, Plate: "again"})
	if s.Count() != 3 {
		t.Fatalf("insert of an existing id must replace, count=%d", s.Count())
	}
}

func TestConcurrentUpdatesAndReads(t *testing.T) {
	s := NewVehicleStore(seeded())
	mustFetch(t, s)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.ApplyUpdate(fleet.Vehicle{ID: int64(j%3 + 1), Lat: float64(i)})
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = s.Vehicles()
				_ = s.ActiveCount()
			}
		}()
	}
	wg.Wait()
	if s.Count() != 3 {
		t.Fatalf("count changed under concurrent updates: %d", s.Count())
	}
}
