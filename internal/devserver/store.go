package devserver

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"smart-fleet/internal/domain/fleet"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrEmailTaken         = errors.New("email already exists")
	ErrTripState          = errors.New("trip cannot change to the requested state")
	ErrVehicleTaken       = errors.New("vehicle is assigned to another driver")
)

// default position of new vehicles (Cluj-Napoca city centre)
const (
	defaultLat = 46.7712
	defaultLng = 23.5889
)

// zone-less local timestamp format of the trip payload
const tripTimeLayout = "2006-01-02T15:04:05"

type userRecord struct {
	ID       int64
	Username string
	Email    string
	Role     fleet.Role
	Hash     []byte
}

type driverRecord struct {
	ID        int64
	UserID    int64
	Name      string
	License   string
	Status    fleet.DriverStatus
	VehicleID *int64
}

// Store is the devserver's in-memory database. It is safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	bcryptCost int
	now        func() time.Time

	users    map[int64]*userRecord
	drivers  map[int64]*driverRecord
	vehicles map[int64]*fleet.Vehicle
	trips    map[int64]*fleet.Trip

	nextUser, nextDriver, nextVehicle, nextTrip int64
}

func NewStore(bcryptCost int) *Store {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Store{
		bcryptCost: bcryptCost,
		now:        time.Now,
		users:      make(map[int64]*userRecord),
		drivers:    make(map[int64]*driverRecord),
		vehicles:   make(map[int64]*fleet.Vehicle),
		trips:      make(map[int64]*fleet.Trip),
	}
}

// ----- users -----

// AddUser creates a user with a bcrypt-hashed password. Drivers get a driver
// profile without a vehicle.
func (s *Store) AddUser(username, password, email string, role fleet.Role, fullName, license string) (*userRecord, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			return nil, ErrUsernameTaken
		}
		if email != "" && strings.EqualFold(u.Email, email) {
			return nil, ErrEmailTaken
		}
	}

	s.nextUser++
	u := &userRecord{ID: s.nextUser, Username: username, Email: email, Role: role, Hash: hash}
	s.users[u.ID] = u

	if role == fleet.RoleDriver {
		s.nextDriver++
		s.drivers[s.nextDriver] = &driverRecord{
			ID:      s.nextDriver,
			UserID:  u.ID,
			Name:    fullName,
			License: license,
			Status:  fleet.DriverAvailable,
		}
	}
	return u, nil
}

// Authenticate checks a username/password pair.
func (s *Store) Authenticate(username, password string) (*userRecord, error) {
	s.mu.RLock()
	var found *userRecord
	for _, u := range s.users {
		if u.Username == username {
			found = u
			break
		}
	}
	s.mu.RUnlock()

	if found == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(found.Hash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return found, nil
}

// ----- vehicles -----

func (s *Store) Vehicles() []fleet.Vehicle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]fleet.Vehicle, 0, len(s.vehicles))
	for _, v := range s.vehicles {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AvailableVehicles lists AVAILABLE vehicles no driver holds.
func (s *Store) AvailableVehicles() []fleet.Vehicle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []fleet.Vehicle
	for _, v := range s.vehicles {
		if v.Status == fleet.VehicleAvailable && s.holderLocked(v.ID) == nil {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Vehicle(id int64) (fleet.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vehicles[id]
	if !ok {
		return fleet.Vehicle{}, ErrNotFound
	}
	return *v, nil
}

func (s *Store) CreateVehicle(in fleet.VehicleInput) (fleet.Vehicle, error) {
	if err := in.ValidateForCreate(); err != nil {
		return fleet.Vehicle{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextVehicle++
	v := &fleet.Vehicle{
		ID:     s.nextVehicle,
		Plate:  in.Plate,
		Brand:  in.Brand,
		Type:   in.Type,
		Status: in.Status,
		Lat:    defaultLat,
		Lng:    defaultLng,
	}
	if v.Status == "" {
		v.Status = fleet.VehicleAvailable
	}
	if in.Lat != nil {
		v.Lat = *in.Lat
	}
	if in.Lng != nil {
		v.Lng = *in.Lng
	}
	s.vehicles[v.ID] = v
	return *v, nil
}

// UpdateVehicle overwrites the descriptive fields; coordinates change only
// when given.
func (s *Store) UpdateVehicle(id int64, in fleet.VehicleInput) (fleet.Vehicle, error) {
	if err := in.Validate(); err != nil {
		return fleet.Vehicle{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vehicles[id]
	if !ok {
		return fleet.Vehicle{}, ErrNotFound
	}
	v.Plate, v.Brand, v.Type = in.Plate, in.Brand, in.Type
	if in.Status != "" {
		v.Status = in.Status
	}
	if in.Lat != nil {
		v.Lat = *in.Lat
	}
	if in.Lng != nil {
		v.Lng = *in.Lng
	}
	return *v, nil
}

// DeleteVehicle removes the vehicle and unassigns its driver.
func (s *Store) DeleteVehicle(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vehicles[id]; !ok {
		return ErrNotFound
	}
	if d := s.holderLocked(id); d != nil {
		d.VehicleID = nil
	}
	delete(s.vehicles, id)
	return nil
}

// SetLocation moves a vehicle. An AVAILABLE or IDLE vehicle that reports a
// position is considered on a trip.
func (s *Store) SetLocation(id int64, lat, lng float64) (fleet.Vehicle, error) {
	if err := fleet.ValidateCoordinates(lat, lng); err != nil {
		return fleet.Vehicle{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vehicles[id]
	if !ok {
		return fleet.Vehicle{}, ErrNotFound
	}
	v.Lat, v.Lng = lat, lng
	if v.Status == fleet.VehicleAvailable || v.Status == fleet.VehicleIdle {
		v.Status = fleet.VehicleOnTrip
	}
	return *v, nil
}

// Mutate applies fn to every vehicle matching pred under the write lock and
// returns copies of the changed vehicles.
func (s *Store) Mutate(pred func(fleet.Vehicle) bool, fn func(*fleet.Vehicle)) []fleet.Vehicle {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []fleet.Vehicle
	for _, v := range s.vehicles {
		if pred(*v) {
			fn(v)
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) holderLocked(vehicleID int64) *driverRecord {
	for _, d := range s.drivers {
		if d.VehicleID != nil && *d.VehicleID == vehicleID {
			return d
		}
	}
	return nil
}

// ----- drivers -----

func (s *Store) Drivers() []fleet.Driver {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]fleet.Driver, 0, len(s.drivers))
	for _, d := range s.drivers {
		out = append(out, s.driverViewLocked(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Driver(id int64) (fleet.Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drivers[id]
	if !ok {
		return fleet.Driver{}, ErrNotFound
	}
	return s.driverViewLocked(d), nil
}

// DriverByUserID returns the driver profile of a user.
func (s *Store) DriverByUserID(userID int64) (fleet.Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.drivers {
		if d.UserID == userID {
			return s.driverViewLocked(d), nil
		}
	}
	return fleet.Driver{}, ErrNotFound
}

func (s *Store) SetDriverStatus(id int64, status fleet.DriverStatus) (fleet.Driver, error) {
	if !status.Valid() {
		return fleet.Driver{}, fleet.ErrInvalidDriverStatus
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drivers[id]
	if !ok {
		return fleet.Driver{}, ErrNotFound
	}
	d.Status = status
	return s.driverViewLocked(d), nil
}

// AssignVehicle sets or clears (nil) the driver's vehicle.
func (s *Store) AssignVehicle(driverID int64, vehicleID *int64) (fleet.Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drivers[driverID]
	if !ok {
		return fleet.Driver{}, ErrNotFound
	}
	if vehicleID == nil {
		d.VehicleID = nil
		return s.driverViewLocked(d), nil
	}
	if _, ok := s.vehicles[*vehicleID]; !ok {
		return fleet.Driver{}, fmt.Errorf("vehicle %d: %w", *vehicleID, ErrNotFound)
	}
	if h := s.holderLocked(*vehicleID); h != nil && h.ID != driverID {
		return fleet.Driver{}, ErrVehicleTaken
	}
	id := *vehicleID
	d.VehicleID = &id
	return s.driverViewLocked(d), nil
}

func (s *Store) driverViewLocked(d *driverRecord) fleet.Driver {
	out := fleet.Driver{
		ID:      d.ID,
		Name:    d.Name,
		License: d.License,
		Status:  d.Status,
		UserID:  d.UserID,
	}
	if u, ok := s.users[d.UserID]; ok {
		out.Username, out.Email = u.Username, u.Email
	}
	if d.VehicleID != nil {
		id := *d.VehicleID
		out.VehicleID = &id
		if v, ok := s.vehicles[id]; ok {
			out.VehiclePlate, out.VehicleBrand = v.Plate, v.Brand
		}
	}
	for _, t := range s.trips {
		if t.DriverID == d.ID {
			out.TripCount++
		}
	}
	return out
}

// ----- trips -----

// AddTrip assigns a trip to a driver on the driver's current vehicle.
func (s *Store) AddTrip(driverID int64, from, to string, distance float64) (fleet.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drivers[driverID]
	if !ok {
		return fleet.Trip{}, ErrNotFound
	}
	if d.VehicleID == nil {
		return fleet.Trip{}, fleet.ErrVehicleNotAssigned
	}
	s.nextTrip++
	t := &fleet.Trip{
		ID:            s.nextTrip,
		DriverID:      d.ID,
		DriverName:    d.Name,
		VehicleID:     *d.VehicleID,
		StartLocation: from,
		EndLocation:   to,
		Status:        fleet.TripAssigned,
		Distance:      distance,
	}
	if v, ok := s.vehicles[*d.VehicleID]; ok {
		t.VehiclePlate = v.Plate
	}
	s.trips[t.ID] = t
	return *t, nil
}

func (s *Store) TripsForDriver(driverID int64) []fleet.Trip {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []fleet.Trip{}
	for _, t := range s.trips {
		if t.DriverID == driverID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// StartTrip moves an ASSIGNED trip (and its driver) to ON_TRIP.
func (s *Store) StartTrip(id int64) (fleet.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trips[id]
	if !ok {
		return fleet.Trip{}, ErrNotFound
	}
	if t.Status != fleet.TripAssigned {
		return fleet.Trip{}, fmt.Errorf("%w: current status %s", ErrTripState, t.Status)
	}
	t.Status = fleet.TripOnTrip
	t.StartTime = s.now().Format(tripTimeLayout)
	if d, ok := s.drivers[t.DriverID]; ok {
		d.Status = fleet.DriverOnTrip
	}
	if v, ok := s.vehicles[t.VehicleID]; ok {
		v.Status = fleet.VehicleOnTrip
	}
	return *t, nil
}

// CompleteTrip closes a trip and frees its driver.
func (s *Store) CompleteTrip(id int64) (fleet.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trips[id]
	if !ok {
		return fleet.Trip{}, ErrNotFound
	}
	t.Status = fleet.TripCompleted
	t.EndTime = s.now().Format(tripTimeLayout)
	if d, ok := s.drivers[t.DriverID]; ok {
		d.Status = fleet.DriverAvailable
	}
	if v, ok := s.vehicles[t.VehicleID]; ok && v.Status == fleet.VehicleOnTrip {
		v.Status = fleet.VehicleAvailable
	}
	return *t, nil
}
