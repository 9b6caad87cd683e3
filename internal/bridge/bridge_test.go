package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"

	"smart-fleet/internal/domain/fleet"
	"smart-fleet/internal/fleetstore"
	"smart-fleet/internal/general/contracts"
	"smart-fleet/internal/live"
)

type fakeVehicleAPI struct {
	list []fleet.Vehicle
	err  error
}

func (f *fakeVehicleAPI) ListVehicles(context.Context) ([]fleet.Vehicle, error) { return f.list, f.err }
func (f *fakeVehicleAPI) AvailableVehicles(context.Context) ([]fleet.Vehicle, error) {
	return nil, nil
}
func (f *fakeVehicleAPI) CreateVehicle(context.Context, fleet.VehicleInput) (*fleet.Vehicle, error) {
	return nil, errors.New("unused")
}
func (f *fakeVehicleAPI) UpdateVehicle(context.Context, int64, fleet.VehicleInput) (*fleet.Vehicle, error) {
	return nil, errors.New("unused")
}
func (f *fakeVehicleAPI) DeleteVehicle(context.Context, int64) error { return errors.New("unused") }
func (f *fakeVehicleAPI) UpdateVehicleLocation(context.Context, int64, float64, float64) error {
	return nil
}

type fakeSub struct {
	ch   chan fleet.Vehicle
	once sync.Once
}

func (s *fakeSub) Updates() <-chan fleet.Vehicle { return s.ch }
func (s *fakeSub) Err() error                    { return nil }
func (s *fakeSub) Close() error {
	s.once.Do(func() { close(s.ch) })
	return nil
}

type fakeSource struct {
	sub *fakeSub
	err error
}

func (f *fakeSource) Subscribe(context.Context, string) (live.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.sub, nil
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []contracts.VehicleUpdateMessage
	err  error
}

func (p *fakePublisher) PublishJSON(_ context.Context, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, v.(contracts.VehicleUpdateMessage))
	return nil
}

type txKey struct{}

type fakeUoW struct{ commits int }

func (u *fakeUoW) WithinTx(ctx context.Context, fn func(context.Context) error) error {
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		return err
	}
	u.commits++
	return nil
}

type fakePositions struct {
	rows    []fleet.Position
	noTx    bool
	failing bool
}

func (r *fakePositions) EnsureSchema(context.Context) error { return nil }
func (r *fakePositions) Archive(ctx context.Context, p *fleet.Position) error {
	if ctx.Value(txKey{}) == nil {
		r.noTx = true
	}
	if r.failing {
		return errors.New("db down")
	}
	p.ID = int64(len(r.rows) + 1)
	r.rows = append(r.rows, *p)
	return nil
}
func (r *fakePositions) LatestForVehicle(context.Context, int64) (*fleet.Position, error) {
	if len(r.rows) == 0 {
		return nil, errors.New("none")
	}
	p := r.rows[len(r.rows)-1]
	return &p, nil
}

func TestBridgeRelaysFeed(t *testing.T) {
	store := fleetstore.NewVehicleStore(&fakeVehicleAPI{list: []fleet.Vehicle{{ID: 1, Plate: "A", Lat: 1, Lng: 1}}})
	sub := &fakeSub{ch: make(chan fleet.Vehicle, 4)}
	pub := &fakePublisher{}
	uow := &fakeUoW{}
	repo := &fakePositions{}

	sub.ch <- fleet.Vehicle{ID: 1, Plate: "A", Lat: 46.7, Lng: 23.5}
	sub.ch <- fleet.Vehicle{ID: 2, Plate: "B", Lat: 46.8, Lng: 23.6}
	sub.ch <- fleet.Vehicle{ID: 1, Plate: "A", Lat: 95, Lng: 23.5} // invalid latitude
	sub.Close()

	b := New(store, &fakeSource{sub: sub}, pub, uow, repo, nil)
	stats, err := b.Run(context.Background(), contracts.TopicVehicles)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Received != 3 || stats.Applied != 2 || stats.Dropped != 1 {
		t.Fatalf("stats %+v", stats)
	}
	if len(pub.msgs) != 3 || pub.msgs[0].Producer != producer || pub.msgs[0].CorrelationID == "" {
		t.Fatalf("published %+v", pub.msgs)
	}
	if len(repo.rows) != 2 || uow.commits != 2 || repo.noTx {
		t.Fatalf("archived %d rows, %d commits, noTx=%v", len(repo.rows), uow.commits, repo.noTx)
	}
	if v, _ := store.Get(1); v.Lat != 95 {
		t.Fatalf("store not reconciled: %+v", v)
	}
	if store.Count() != 1 {
		t.Fatalf("unknown vehicle must not be inserted, count=%d", store.Count())
	}
}

func TestBridgeContinuesOnFailures(t *testing.T) {
	store := fleetstore.NewVehicleStore(&fakeVehicleAPI{list: []fleet.Vehicle{{ID: 1}}})
	pub := &fakePublisher{err: errors.New("broker down")}
	repo := &fakePositions{failing: true}
	b := New(store, &fakeSource{}, pub, &fakeUoW{}, repo, nil)

	b.Relay(context.Background(), fleet.Vehicle{ID: 1, Lat: 1, Lng: 1})
	b.Relay(context.Background(), fleet.Vehicle{ID: 1, Lat: 2, Lng: 2})
	if len(repo.rows) != 0 {
		t.Fatalf("rows written despite failures")
	}
}

func TestBridgeStopsOnSeedFailure(t *testing.T) {
	store := fleetstore.NewVehicleStore(&fakeVehicleAPI{err: errors.New("503")})
	src := &fakeSource{err: errors.New("must not subscribe")}
	b := New(store, src, &fakePublisher{}, &fakeUoW{}, &fakePositions{}, nil)
	if _, err := b.Run(context.Background(), contracts.TopicVehicles); err == nil {
		t.Fatalf("expected seed error")
	}
}

func TestBridgeSubscribeFailure(t *testing.T) {
	store := fleetstore.NewVehicleStore(&fakeVehicleAPI{})
	b := New(store, &fakeSource{err: errors.New("refused")}, &fakePublisher{}, &fakeUoW{}, &fakePositions{}, nil)
	if _, err := b.Run(context.Background(), contracts.TopicVehicles); err == nil {
		t.Fatalf("expected subscribe error")
	}
}
