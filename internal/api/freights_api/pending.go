package freights_api

import (
	"net/http"

	"github.com/pkg/errors"

	"github.com/cargaviva/freightcore/internal/integrations/directory"
	"github.com/cargaviva/freightcore/internal/models"
)

func (a *API) listPendingConfirmations(w http.ResponseWriter, r *http.Request) {
	producerID, ok := pathID(r, "producerID")
	if !ok {
		badRequest(w, "invalid producer id")
		return
	}

	items, err := a.pending.ListPending(r.Context(), producerID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]pendingItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, toPendingItemResponse(it))
	}
	writeJSON(w, http.StatusOK, map[string]any{"pendingConfirmations": out})
}

// getParticipantProfile resolves a driver profile for someone involved in the
// freight. Hidden profiles are retried through the freight-scoped path, but
// only after the caller's own participation is checked here.
func (a *API) getParticipantProfile(w http.ResponseWriter, r *http.Request) {
	freightID, ok := pathID(r, "freightID")
	if !ok {
		badRequest(w, "invalid freight id")
		return
	}
	driverID, ok := pathID(r, "driverID")
	if !ok {
		badRequest(w, "invalid driver id")
		return
	}
	callerID, ok := queryID(r, "callerId")
	if !ok {
		badRequest(w, "callerId is required")
		return
	}

	if err := a.checkParticipant(r, freightID, callerID); err != nil {
		writeError(w, err)
		return
	}

	p, err := a.dir.GetProfile(r.Context(), driverID)
	if errors.Is(err, directory.ErrHidden) {
		p, err = a.dir.GetFreightScopedProfile(r.Context(), freightID, callerID, driverID)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{
		DriverID:    p.DriverID,
		Name:        p.Name,
		Phone:       p.Phone,
		CompanyName: p.CompanyName,
	})
}

func (a *API) checkParticipant(r *http.Request, freightID, callerID uint64) error {
	f, err := a.store.GetFreight(r.Context(), freightID)
	if err != nil {
		return err
	}
	if f.ProducerID == callerID {
		return nil
	}
	as, err := a.store.ListAssignmentsByFreight(r.Context(), freightID)
	if err != nil {
		return err
	}
	for _, row := range as {
		if row.DriverID == callerID {
			return nil
		}
	}
	return models.ErrNotParticipant
}
