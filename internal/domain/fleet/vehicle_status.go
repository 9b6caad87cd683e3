package fleet

import (
	"errors"
	"strings"
)

// VehicleStatus is the operational state of a vehicle.
type VehicleStatus string

const (
	VehicleActive      VehicleStatus = "ACTIVE"
	VehicleIdle        VehicleStatus = "IDLE"
	VehicleMaintenance VehicleStatus = "MAINTENANCE"
	VehicleOnTrip      VehicleStatus = "ON_TRIP"
	VehicleAvailable   VehicleStatus = "AVAILABLE"
)

var ErrInvalidVehicleStatus = errors.New("invalid vehicle status")

// ParseVehicleStatus normalizes (uppercases+trims) and validates a vehicle status string.
func ParseVehicleStatus(in string) (VehicleStatus, error) {
	status := VehicleStatus(strings.ToUpper(strings.TrimSpace(in)))
	if status.Valid() {
		return status, nil
	}
	return "", ErrInvalidVehicleStatus
}

// Valid reports whether the status is one of the allowed vehicle status constants.
func (status VehicleStatus) Valid() bool {
	switch status {
	case VehicleActive, VehicleIdle, VehicleMaintenance, VehicleOnTrip, VehicleAvailable:
		return true
	default:
		return false
	}
}

// Assignable reports whether a driver may pick a vehicle in this state.
func (status VehicleStatus) Assignable() bool {
	return status == VehicleIdle || status == VehicleAvailable
}

// String returns the string representation of the VehicleStatus.
func (status VehicleStatus) String() string {
	return string(status)
}
