package contracts

import (
	"time"

	"smart-fleet/internal/domain/fleet"
)

// Envelope adds cross-cutting headers all messages may carry.
type Envelope struct {
	CorrelationID string    `json:"correlation_id,omitempty"` // Correlation for tracing across services
	Producer      string    `json:"producer,omitempty"`       // Producer service name, e.g. "fleet-bridge"
	SentAt        time.Time `json:"sent_at,omitempty"`        // ISO-8601 send time (UTC)
}

// VehicleUpdateMessage is broadcast by the bridge for every applied push update.
// Exchange: ExchangeVehicleFanout (fanout, no routing key).
type VehicleUpdateMessage struct {
	Vehicle fleet.Vehicle `json:"vehicle"`
	Envelope
}

// ErrorResponse is the JSON error body the backend returns.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
