package freights_api

import (
	"encoding/json"
	"net/http"

	"github.com/cargaviva/freightcore/internal/models"
	"github.com/cargaviva/freightcore/internal/services/transitions"
)

func (a *API) requestTransition(w http.ResponseWriter, r *http.Request) {
	freightID, ok := pathID(r, "freightID")
	if !ok {
		badRequest(w, "invalid freight id")
		return
	}
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	if req.DriverID == 0 {
		badRequest(w, "driverId is required")
		return
	}
	if req.TargetStatus == "" {
		badRequest(w, "targetStatus is required")
		return
	}

	treq := transitions.TransitionRequest{
		FreightID:    freightID,
		DriverID:     req.DriverID,
		Target:       req.TargetStatus,
		Note:         req.Note,
		AssignmentID: req.AssignmentID,
	}
	if req.Lat != nil && req.Lng != nil {
		treq.Location = &models.GeoPoint{Lat: *req.Lat, Lng: *req.Lng}
	}

	if err := a.transitions.RequestTransition(r.Context(), treq); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{FreightID: freightID, Status: req.TargetStatus})
}

func (a *API) confirmReceipt(w http.ResponseWriter, r *http.Request) {
	freightID, ok := pathID(r, "freightID")
	if !ok {
		badRequest(w, "invalid freight id")
		return
	}
	var req confirmReceiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	if req.ProducerID == 0 || req.DriverID == 0 {
		badRequest(w, "producerId and driverId are required")
		return
	}

	if err := a.transitions.ConfirmReceipt(r.Context(), freightID, req.DriverID, req.ProducerID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{FreightID: freightID, Status: models.StatusDelivered})
}

// getStatus returns the effective status for the requesting viewer: drivers
// see only their own lane, producers the most advanced one.
func (a *API) getStatus(w http.ResponseWriter, r *http.Request) {
	freightID, ok := pathID(r, "freightID")
	if !ok {
		badRequest(w, "invalid freight id")
		return
	}

	viewer := models.ProducerViewer()
	if driverID, ok := queryID(r, "driverId"); ok {
		viewer = models.DriverViewer(driverID)
	}

	status, err := a.resolver.Resolve(r.Context(), freightID, viewer)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{FreightID: freightID, Status: status})
}

func (a *API) listHistory(w http.ResponseWriter, r *http.Request) {
	freightID, ok := pathID(r, "freightID")
	if !ok {
		badRequest(w, "invalid freight id")
		return
	}
	var driverFilter *uint64
	if driverID, ok := queryID(r, "driverId"); ok {
		driverFilter = &driverID
	}

	entries, err := a.store.ListHistory(r.Context(), freightID, driverFilter)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]historyEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyEntryResponse{
			ID:        e.ID,
			Status:    e.Status,
			ChangedBy: e.ChangedBy,
			Notes:     e.Notes,
			Lat:       e.Lat,
			Lng:       e.Lng,
			CreatedAt: e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": out})
}
