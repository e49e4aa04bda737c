package transitions

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/cargaviva/freightcore/internal/models"
)

// duplicateWindow suppresses identical (driver, status) history entries;
// client retries and double-taps collapse into one transition.
const duplicateWindow = 5 * time.Minute

// Validator guards every attempted transition. Rules run in a fixed order:
// final-state lock, duplicate suppression, flow-order enforcement. A request
// rejected here has zero observable side effects.
type Validator struct {
	repo Repository
}

func NewValidator(repo Repository) *Validator {
	return &Validator{repo: repo}
}

// Validate checks a transition request against the freight's current state.
// The returned error carries one of the stable validation kinds.
//
// The final-state lock keys off the freight row itself, never an aggregated
// view: one lane confirming delivery ranks terminal in the producer view but
// must not freeze the other lanes. The row only turns terminal through
// explicit finalization, after every live lane has delivered.
func (v *Validator) Validate(ctx context.Context, f *models.Freight, driverID uint64, target string) error {
	if models.IsTerminalStatus(f.Status) {
		return models.ErrFinalStateLocked
	}

	dup, err := v.repo.HasRecentHistory(ctx, f.ID, driverID, target, duplicateWindow)
	if err != nil {
		return errors.Wrap(err, "check duplicate window")
	}
	if dup {
		return models.ErrDuplicateSuppressed
	}

	current := ""
	p, err := v.repo.GetProgress(ctx, f.ID, driverID)
	if err == nil {
		current = p.CurrentStatus
	} else if !errors.Is(err, models.ErrNotFound) {
		return errors.Wrap(err, "get trip progress")
	}

	flow := models.FlowFor(f.ServiceType)
	if models.NextInFlow(flow, current) != target {
		return models.ErrOutOfOrderTransition
	}
	return nil
}
