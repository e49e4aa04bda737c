package messages

import "time"

// StatusChanged is published on every accepted transition and on terminal
// freight flips. Keyed by freight_id on the wire.
type StatusChanged struct {
	FreightID uint64    `json:"freight_id"`
	DriverID  uint64    `json:"driver_id,omitempty"`
	Status    string    `json:"status"`
	Previous  string    `json:"previous,omitempty"`
	At        time.Time `json:"at"`

	Lat *float64 `json:"lat,omitempty"`
	Lng *float64 `json:"lng,omitempty"`
}

// SettlementUpdated arrives from the payment subsystem whenever an
// external_payments row changes state.
type SettlementUpdated struct {
	FreightID  uint64    `json:"freight_id"`
	DriverID   uint64    `json:"driver_id"`
	ProducerID uint64    `json:"producer_id"`
	Status     string    `json:"status"`
	At         time.Time `json:"at"`
}

// ConfirmationReminder is published by the worker when a pending delivery
// crosses an urgency tier without producer action.
type ConfirmationReminder struct {
	FreightID      uint64    `json:"freight_id"`
	DriverID       uint64    `json:"driver_id"`
	ProducerID     uint64    `json:"producer_id"`
	Deadline       time.Time `json:"deadline"`
	HoursRemaining int       `json:"hours_remaining"`
	Tier           string    `json:"tier"` // "pending" | "urgent" | "critical" | "expired"
	At             time.Time `json:"at"`
}
