package fleet

import (
	"errors"
	"strings"
)

// Vehicle mirrors the vehicle payload of the REST API and of the /topic/vehicles feed.
type Vehicle struct {
	ID            int64         `json:"id"`
	Plate         string        `json:"plate"`
	Brand         string        `json:"brand"`
	Type          string        `json:"type"`
	Status        VehicleStatus `json:"status"`
	Lat           float64       `json:"lat"`
	Lng           float64       `json:"lng"`
	TotalKm       float64       `json:"totalKm"`
	LastServiceKm float64       `json:"lastServiceKm"`
}

// VehicleInput is the body of vehicle create/update calls.
type VehicleInput struct {
	Plate  string        `json:"plate,omitempty"`
	Brand  string        `json:"brand,omitempty"`
	Type   string        `json:"type,omitempty"`
	Status VehicleStatus `json:"status,omitempty"`
	Lat    *float64      `json:"lat,omitempty"`
	Lng    *float64      `json:"lng,omitempty"`
}

var (
	ErrPlateRequired      = errors.New("plate is required")
	ErrInvalidLatitude    = errors.New("latitude must be between -90 and 90")
	ErrInvalidLongitude   = errors.New("longitude must be between -180 and 180")
	ErrInvalidVehicleID   = errors.New("vehicle id must be positive")
	ErrVehicleNotAssigned = errors.New("driver has no vehicle assigned")
)

// VehicleID extracts the identifier used by the collection cache.
func VehicleID(v Vehicle) int64 { return v.ID }

// IsActive reports whether the vehicle counts towards the active fleet.
func (vehicle Vehicle) IsActive() bool {
	return vehicle.Status == VehicleActive
}

// HasPosition reports whether the vehicle carries a non-zero position.
func (vehicle Vehicle) HasPosition() bool {
	return vehicle.Lat != 0 || vehicle.Lng != 0
}

// ValidateForCreate checks the fields the backend requires on creation.
func (input VehicleInput) ValidateForCreate() error {
	if strings.TrimSpace(input.Plate) == "" {
		return ErrPlateRequired
	}
	return input.Validate()
}

// Validate checks optional fields that are present.
func (input VehicleInput) Validate() error {
	if input.Status != "" && !input.Status.Valid() {
		return ErrInvalidVehicleStatus
	}
	if input.Lat != nil {
		if err := ValidateLatitude(*input.Lat); err != nil {
			return err
		}
	}
	if input.Lng != nil {
		if err := ValidateLongitude(*input.Lng); err != nil {
			return err
		}
	}
	return nil
}

// ValidateCoordinates checks a lat/lng pair.
func ValidateCoordinates(lat, lng float64) error {
	if err := ValidateLatitude(lat); err != nil {
		return err
	}
	return ValidateLongitude(lng)
}

func ValidateLatitude(lat float64) error {
	if lat < -90 || lat > 90 {
		return ErrInvalidLatitude
	}
	return nil
}

func ValidateLongitude(lng float64) error {
	if lng < -180 || lng > 180 {
		return ErrInvalidLongitude
	}
	return nil
}
