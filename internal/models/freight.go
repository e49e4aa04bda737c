package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wire-level statuses shared by freights, assignments and trip progress.
const (
	StatusOpen                  = "OPEN"
	StatusInNegotiation         = "IN_NEGOTIATION"
	StatusAccepted              = "ACCEPTED"
	StatusLoading               = "LOADING"
	StatusLoaded                = "LOADED"
	StatusInTransit             = "IN_TRANSIT"
	StatusDeliveredPendingConf  = "DELIVERED_PENDING_CONFIRMATION"
	StatusDelivered             = "DELIVERED"
	StatusCompleted             = "COMPLETED"
	StatusCancelled             = "CANCELLED"
	StatusRejected              = "REJECTED"
	StatusPending               = "PENDING"
)

// Service types that select the reduced flow (no LOADED phase).
const (
	ServiceTypeDefault = "FRETE_PADRAO"
	ServiceTypeUrban   = "SERVICO_URBANO"
)

// statusRanks orders statuses for "most advanced truck" aggregation.
// Anything absent (PENDING, CANCELLED, REJECTED, garbage) ranks 0.
var statusRanks = map[string]int{
	StatusOpen:                 1,
	StatusInNegotiation:        2,
	StatusAccepted:             3,
	StatusLoading:              4,
	StatusLoaded:               5,
	StatusInTransit:            6,
	StatusDeliveredPendingConf: 7,
	StatusDelivered:            8,
	StatusCompleted:            9,
}

func StatusRank(status string) int {
	return statusRanks[status]
}

// MaxStatus returns whichever of a, b ranks higher; ties keep a.
func MaxStatus(a, b string) string {
	if StatusRank(b) > StatusRank(a) {
		return b
	}
	return a
}

var terminalStatuses = map[string]struct{}{
	StatusDelivered: {},
	StatusCompleted: {},
	StatusCancelled: {},
	StatusRejected:  {},
}

func IsTerminalStatus(status string) bool {
	_, ok := terminalStatuses[status]
	return ok
}

// defaultFlow is the 5-phase delivery progression a driver walks through
// after being matched. urbanFlow skips the LOADED phase.
var defaultFlow = []string{
	StatusAccepted,
	StatusLoading,
	StatusLoaded,
	StatusInTransit,
	StatusDeliveredPendingConf,
}

var urbanFlow = []string{
	StatusAccepted,
	StatusLoading,
	StatusInTransit,
	StatusDeliveredPendingConf,
}

// FlowFor returns the phase sequence active for a service type.
func FlowFor(serviceType string) []string {
	if serviceType == ServiceTypeUrban {
		return urbanFlow
	}
	return defaultFlow
}

// NextInFlow returns the immediate successor of current in the flow, or ""
// when current is the last phase or not part of the flow at all. An empty
// current means the driver has not started yet, so the first phase is next.
func NextInFlow(flow []string, current string) string {
	if current == "" {
		return flow[0]
	}
	for i, s := range flow {
		if s == current && i+1 < len(flow) {
			return flow[i+1]
		}
	}
	return ""
}

type Freight struct {
	ID             uint64
	ProducerID     uint64
	ServiceType    string
	Status         string
	RequiredTrucks int32
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type FreightAssignment struct {
	ID          uint64
	FreightID   uint64
	DriverID    uint64
	CompanyID   *uint64
	Status      string
	AgreedPrice decimal.Decimal
	AcceptedAt  *time.Time
	DeliveredAt *time.Time
	UpdatedAt   time.Time
}

// DriverTripProgress is the system of record for one driver's load: the
// current phase plus the timestamp each phase was entered at.
type DriverTripProgress struct {
	ID            uint64
	FreightID     uint64
	DriverID      uint64
	AssignmentID  *uint64
	CurrentStatus string
	AcceptedAt    *time.Time
	LoadingAt     *time.Time
	LoadedAt      *time.Time
	InTransitAt   *time.Time
	DeliveredAt   *time.Time
	LastLat       *float64
	LastLng       *float64
	DriverNotes   *string
	UpdatedAt     time.Time
}

// PhaseTimestamp reads the timestamp recorded for a given phase, nil when the
// phase has not been reached.
func (p *DriverTripProgress) PhaseTimestamp(status string) *time.Time {
	switch status {
	case StatusAccepted:
		return p.AcceptedAt
	case StatusLoading:
		return p.LoadingAt
	case StatusLoaded:
		return p.LoadedAt
	case StatusInTransit:
		return p.InTransitAt
	case StatusDeliveredPendingConf:
		return p.DeliveredAt
	}
	return nil
}

type StatusHistoryEntry struct {
	ID        uint64
	FreightID uint64
	Status    string
	ChangedBy uint64
	Notes     *string
	Lat       *float64
	Lng       *float64
	CreatedAt time.Time
}

// Settlement statuses from the external payments table. Only the three
// "producer has acted" values suppress a pending confirmation.
const (
	SettlementProposed       = "proposed"
	SettlementPaidByProducer = "paid_by_producer"
	SettlementConfirmed      = "confirmed"
	SettlementAccepted       = "accepted"
	SettlementRejected       = "rejected"
)

func SettlementActedOn(status string) bool {
	switch status {
	case SettlementPaidByProducer, SettlementConfirmed, SettlementAccepted:
		return true
	}
	return false
}

type SettlementRecord struct {
	FreightID uint64
	DriverID  uint64
	Status    string
}

// Viewer identifies who is asking for an effective status.
type ViewerKind int

const (
	ViewerProducer ViewerKind = iota
	ViewerDriver
)

type Viewer struct {
	Kind     ViewerKind
	DriverID uint64 // set when Kind == ViewerDriver
}

func ProducerViewer() Viewer          { return Viewer{Kind: ViewerProducer} }
func DriverViewer(id uint64) Viewer   { return Viewer{Kind: ViewerDriver, DriverID: id} }

type GeoPoint struct {
	Lat float64
	Lng float64
}

// PendingItem is one delivered load awaiting the producer's confirmation.
type PendingItem struct {
	FreightID      uint64
	DriverID       uint64
	DriverName     string
	CompanyName    *string
	FreightStatus  string
	ReportedAt     time.Time
	Deadline       time.Time
	HoursRemaining int
	IsUrgent       bool
	IsCritical     bool
	DeadlineLabel  string
}
