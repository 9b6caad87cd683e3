package fleet

import (
	"errors"
	"strings"
)

// DriverStatus is the duty state of a driver.
type DriverStatus string

const (
	DriverAvailable DriverStatus = "AVAILABLE"
	DriverOnTrip    DriverStatus = "ON_TRIP"
	DriverOffDuty   DriverStatus = "OFF_DUTY"
	DriverActive    DriverStatus = "ACTIVE"
	DriverInactive  DriverStatus = "INACTIVE"
	DriverSuspended DriverStatus = "SUSPENDED"
	DriverOnLeave   DriverStatus = "ON_LEAVE"
)

var ErrInvalidDriverStatus = errors.New("invalid driver status")

// ParseDriverStatus normalizes (uppercases+trims) and validates a driver status string.
func ParseDriverStatus(in string) (DriverStatus, error) {
	status := DriverStatus(strings.ToUpper(strings.TrimSpace(in)))
	if status.Valid() {
		return status, nil
	}
	return "", ErrInvalidDriverStatus
}

// Valid reports whether the driver status is one of the allowed constants.
func (status DriverStatus) Valid() bool {
	switch status {
	case DriverAvailable, DriverOnTrip, DriverOffDuty, DriverActive,
		DriverInactive, DriverSuspended, DriverOnLeave:
		return true
	default:
		return false
	}
}

// String returns the string representation of the DriverStatus.
func (status DriverStatus) String() string {
	return string(status)
}

// Driver mirrors the driver payload of the REST API.
type Driver struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	License      string       `json:"license"`
	Status       DriverStatus `json:"status"`
	UserID       int64        `json:"userId,omitempty"`
	Username     string       `json:"username"`
	Email        string       `json:"email"`
	VehicleID    *int64       `json:"vehicleId"`
	VehiclePlate string       `json:"vehiclePlate,omitempty"`
	VehicleBrand string       `json:"vehicleBrand,omitempty"`
	TripCount    int          `json:"tripCount"`
}

// DriverID extracts the identifier used by the collection cache.
func DriverID(d Driver) int64 { return d.ID }

// HasVehicle reports whether a vehicle is assigned to the driver.
func (driver Driver) HasVehicle() bool {
	return driver.VehicleID != nil && *driver.VehicleID != 0
}
