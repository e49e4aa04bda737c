package freights_api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/pkg/errors"

	"github.com/cargaviva/freightcore/internal/models"
)

type errorBody struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			slog.Error("encode response", "error", err.Error())
		}
	}
}

// writeError maps the stable error kinds onto HTTP statuses so the UI can
// branch without parsing messages: validation conflicts are 409, policy
// denials 403 (prompt re-auth, not retry), unknown outcomes 408.
func writeError(w http.ResponseWriter, err error) {
	kind, status := classify(err)

	var body errorBody
	body.Error.Kind = kind
	body.Error.Message = err.Error()
	writeJSON(w, status, body)
}

func classify(err error) (string, int) {
	switch {
	case errors.Is(err, models.ErrFinalStateLocked):
		return "FinalStateLocked", http.StatusConflict
	case errors.Is(err, models.ErrDuplicateSuppressed):
		return "DuplicateSuppressed", http.StatusConflict
	case errors.Is(err, models.ErrOutOfOrderTransition):
		return "OutOfOrderTransition", http.StatusConflict
	case errors.Is(err, models.ErrNotParticipant):
		return "NotParticipant", http.StatusForbidden
	case errors.Is(err, models.ErrOperationTimedOut):
		return "OperationTimedOut", http.StatusRequestTimeout
	case errors.Is(err, models.ErrNotFound):
		return "NotFound", http.StatusNotFound
	default:
		return "Internal", http.StatusInternalServerError
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	var body errorBody
	body.Error.Kind = "BadRequest"
	body.Error.Message = msg
	writeJSON(w, http.StatusBadRequest, body)
}
