package freights_api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/cargaviva/freightcore/internal/models"
)

type createFreightRequest struct {
	ProducerID     uint64 `json:"producerId"`
	ServiceType    string `json:"serviceType"`
	RequiredTrucks int32  `json:"requiredTrucks"`
}

type freightResponse struct {
	ID             uint64    `json:"id"`
	ProducerID     uint64    `json:"producerId"`
	ServiceType    string    `json:"serviceType"`
	Status         string    `json:"status"`
	RequiredTrucks int32     `json:"requiredTrucks"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func toFreightResponse(f *models.Freight) freightResponse {
	return freightResponse{
		ID:             f.ID,
		ProducerID:     f.ProducerID,
		ServiceType:    f.ServiceType,
		Status:         f.Status,
		RequiredTrucks: f.RequiredTrucks,
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}
}

type createAssignmentRequest struct {
	DriverID    uint64          `json:"driverId"`
	CompanyID   *uint64         `json:"companyId,omitempty"`
	AgreedPrice decimal.Decimal `json:"agreedPrice"`
}

type assignmentResponse struct {
	ID          uint64          `json:"id"`
	FreightID   uint64          `json:"freightId"`
	DriverID    uint64          `json:"driverId"`
	CompanyID   *uint64         `json:"companyId,omitempty"`
	Status      string          `json:"status"`
	AgreedPrice decimal.Decimal `json:"agreedPrice"`
	AcceptedAt  *time.Time      `json:"acceptedAt,omitempty"`
	DeliveredAt *time.Time      `json:"deliveredAt,omitempty"`
}

func toAssignmentResponse(a *models.FreightAssignment) assignmentResponse {
	return assignmentResponse{
		ID:          a.ID,
		FreightID:   a.FreightID,
		DriverID:    a.DriverID,
		CompanyID:   a.CompanyID,
		Status:      a.Status,
		AgreedPrice: a.AgreedPrice,
		AcceptedAt:  a.AcceptedAt,
		DeliveredAt: a.DeliveredAt,
	}
}

type transitionRequest struct {
	DriverID     uint64   `json:"driverId"`
	TargetStatus string   `json:"targetStatus"`
	Note         *string  `json:"note,omitempty"`
	Lat          *float64 `json:"lat,omitempty"`
	Lng          *float64 `json:"lng,omitempty"`
	AssignmentID *uint64  `json:"assignmentId,omitempty"`
}

type confirmReceiptRequest struct {
	ProducerID uint64 `json:"producerId"`
	DriverID   uint64 `json:"driverId"`
}

type statusResponse struct {
	FreightID uint64 `json:"freightId"`
	Status    string `json:"status"`
}

type historyEntryResponse struct {
	ID        uint64    `json:"id"`
	Status    string    `json:"status"`
	ChangedBy uint64    `json:"changedBy"`
	Notes     *string   `json:"notes,omitempty"`
	Lat       *float64  `json:"lat,omitempty"`
	Lng       *float64  `json:"lng,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type pendingItemResponse struct {
	FreightID      uint64    `json:"freightId"`
	DriverID       uint64    `json:"driverId"`
	DriverName     string    `json:"driverName"`
	CompanyName    *string   `json:"companyName,omitempty"`
	FreightStatus  string    `json:"freightStatus"`
	ReportedAt     time.Time `json:"reportedAt"`
	Deadline       time.Time `json:"deadline"`
	HoursRemaining int       `json:"hoursRemaining"`
	IsUrgent       bool      `json:"isUrgent"`
	IsCritical     bool      `json:"isCritical"`
	DeadlineLabel  string    `json:"deadlineLabel"`
}

func toPendingItemResponse(it models.PendingItem) pendingItemResponse {
	return pendingItemResponse{
		FreightID:      it.FreightID,
		DriverID:       it.DriverID,
		DriverName:     it.DriverName,
		CompanyName:    it.CompanyName,
		FreightStatus:  it.FreightStatus,
		ReportedAt:     it.ReportedAt,
		Deadline:       it.Deadline,
		HoursRemaining: it.HoursRemaining,
		IsUrgent:       it.IsUrgent,
		IsCritical:     it.IsCritical,
		DeadlineLabel:  it.DeadlineLabel,
	}
}

type profileResponse struct {
	DriverID    uint64  `json:"driverId"`
	Name        string  `json:"name"`
	Phone       *string `json:"phone,omitempty"`
	CompanyName *string `json:"companyName,omitempty"`
}
