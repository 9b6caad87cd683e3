package fleet

import "time"

// Trip statuses used by the trip endpoints.
const (
	TripAssigned   = "ASSIGNED"
	TripOnTrip     = "ON_TRIP"
	TripInProgress = "IN_PROGRESS"
	TripCompleted  = "COMPLETED"
)

// Trip mirrors the trip payload of the REST API. Times are the backend's
// zone-less local timestamps, kept as strings.
type Trip struct {
	ID            int64   `json:"id"`
	DriverID      int64   `json:"driverId,omitempty"`
	DriverName    string  `json:"driverName"`
	VehicleID     int64   `json:"vehicleId,omitempty"`
	VehiclePlate  string  `json:"vehiclePlate"`
	StartLocation string  `json:"startLocation"`
	EndLocation   string  `json:"endLocation"`
	StartTime     string  `json:"startTime,omitempty"`
	EndTime       string  `json:"endTime,omitempty"`
	Status        string  `json:"status,omitempty"`
	Distance      float64 `json:"distance,omitempty"`
}

// backendTimeLayout is the ISO local date-time format without zone.
const backendTimeLayout = "2006-01-02T15:04:05"

// Started parses StartTime, reporting false when absent or malformed.
func (trip Trip) Started() (time.Time, bool) {
	return parseBackendTime(trip.StartTime)
}

// Ended parses EndTime, reporting false when absent or malformed.
func (trip Trip) Ended() (time.Time, bool) {
	return parseBackendTime(trip.EndTime)
}

func parseBackendTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	// fractional seconds are optional
	if len(s) > len(backendTimeLayout) {
		s = s[:len(backendTimeLayout)]
	}
	t, err := time.Parse(backendTimeLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
