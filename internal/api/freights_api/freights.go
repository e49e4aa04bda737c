package freights_api

import (
	"encoding/json"
	"net/http"

	"github.com/cargaviva/freightcore/internal/storage/pgfreight"
)

func (a *API) createFreight(w http.ResponseWriter, r *http.Request) {
	var req createFreightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	if req.ProducerID == 0 {
		badRequest(w, "producerId is required")
		return
	}

	f, err := a.store.CreateFreight(r.Context(), pgfreight.FreightCreateInput{
		ProducerID:     req.ProducerID,
		ServiceType:    req.ServiceType,
		RequiredTrucks: req.RequiredTrucks,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFreightResponse(f))
}

func (a *API) getFreight(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "freightID")
	if !ok {
		badRequest(w, "invalid freight id")
		return
	}
	f, err := a.store.GetFreight(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFreightResponse(f))
}

func (a *API) listFreights(w http.ResponseWriter, r *http.Request) {
	producerID, ok := pathID(r, "producerID")
	if !ok {
		badRequest(w, "invalid producer id")
		return
	}
	fs, err := a.store.ListFreightsByProducer(r.Context(), producerID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]freightResponse, 0, len(fs))
	for _, f := range fs {
		out = append(out, toFreightResponse(f))
	}
	writeJSON(w, http.StatusOK, map[string]any{"freights": out})
}

func (a *API) createAssignment(w http.ResponseWriter, r *http.Request) {
	freightID, ok := pathID(r, "freightID")
	if !ok {
		badRequest(w, "invalid freight id")
		return
	}
	var req createAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	if req.DriverID == 0 {
		badRequest(w, "driverId is required")
		return
	}

	aRow, err := a.store.CreateAssignment(r.Context(), pgfreight.AssignmentCreateInput{
		FreightID:   freightID,
		DriverID:    req.DriverID,
		CompanyID:   req.CompanyID,
		AgreedPrice: req.AgreedPrice,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAssignmentResponse(aRow))
}

func (a *API) listAssignments(w http.ResponseWriter, r *http.Request) {
	freightID, ok := pathID(r, "freightID")
	if !ok {
		badRequest(w, "invalid freight id")
		return
	}
	as, err := a.store.ListAssignmentsByFreight(r.Context(), freightID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]assignmentResponse, 0, len(as))
	for _, row := range as {
		out = append(out, toAssignmentResponse(row))
	}
	writeJSON(w, http.StatusOK, map[string]any{"assignments": out})
}
