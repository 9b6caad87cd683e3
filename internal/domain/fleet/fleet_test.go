package fleet

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseRole(t *testing.T) {
	cases := []struct {
		in   string
		want Role
		err  error
	}{
		{"ROLE_ADMIN", RoleAdmin, nil},
		{"admin", RoleAdmin, nil},
		{" Driver ", RoleDriver, nil},
		{"role_driver", RoleDriver, nil},
		{"PASSENGER", "", ErrInvalidRole},
		{"", "", ErrInvalidRole},
	}
	for _, tc := range cases {
		got, err := ParseRole(tc.in)
		if !errors.Is(err, tc.err) {
			t.Fatalf("ParseRole(%q) error = %v, want %v", tc.in, err, tc.err)
		}
		if got != tc.want {
			t.Fatalf("ParseRole(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDriverHasVehicle(t *testing.T) {
	var d Driver
	if err := json.Unmarshal([]byte(`{"id":3,"name":"Ana","vehicleId":null}`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.HasVehicle() {
		t.Fatalf("null vehicleId must not count as assigned")
	}
	if err := json.Unmarshal([]byte(`{"id":3,"vehicleId":12}`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !d.HasVehicle() || *d.VehicleID != 12 {
		t.Fatalf("expected vehicle 12 assigned, got %+v", d.VehicleID)
	}
}

func TestVehicleInputValidate(t *testing.T) {
	lat := 91.0
	if err := (VehicleInput{Plate: "CJ-01-ABC", Lat: &lat}).ValidateForCreate(); !errors.Is(err, ErrInvalidLatitude) {
		t.Fatalf("want ErrInvalidLatitude, got %v", err)
	}
	if err := (VehicleInput{Brand: "Volvo"}).ValidateForCreate(); !errors.Is(err, ErrPlateRequired) {
		t.Fatalf("want ErrPlateRequired, got %v", err)
	}
	if err := (VehicleInput{Status: "FLYING"}).Validate(); !errors.Is(err, ErrInvalidVehicleStatus) {
		t.Fatalf("want ErrInvalidVehicleStatus, got %v", err)
	}
	if err := (VehicleInput{Plate: "CJ-01-ABC", Status: VehicleIdle}).ValidateForCreate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTripTimes(t *testing.T) {
	trip := Trip{StartTime: "2024-05-01T08:30:00.123456", EndTime: "garbage"}
	start, ok := trip.Started()
	if !ok || start.Hour() != 8 || start.Minute() != 30 {
		t.Fatalf("Started() = %v, %v", start, ok)
	}
	if _, ok := trip.Ended(); ok {
		t.Fatalf("Ended() must reject malformed time")
	}
}

func TestNewPosition(t *testing.T) {
	now := time.Now()
	if _, err := NewPosition(Vehicle{ID: 0, Lat: 1, Lng: 1}, now); !errors.Is(err, ErrInvalidVehicleID) {
		t.Fatalf("want ErrInvalidVehicleID, got %v", err)
	}
	if _, err := NewPosition(Vehicle{ID: 1, Lat: 1, Lng: 200}, now); !errors.Is(err, ErrInvalidLongitude) {
		t.Fatalf("want ErrInvalidLongitude, got %v", err)
	}
	p, err := NewPosition(Vehicle{ID: 7, Plate: "B-77", Lat: 46.77, Lng: 23.58}, now)
	if err != nil {
		t.Fatalf("NewPosition: %v", err)
	}
	if p.VehicleID != 7 || p.RecordedAt.Location() != time.UTC {
		t.Fatalf("unexpected position %+v", p)
	}
}
