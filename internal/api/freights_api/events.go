package freights_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cargaviva/freightcore/internal/models"
	"github.com/cargaviva/freightcore/internal/notify"
)

type statusEvent struct {
	FreightID uint64    `json:"freightId"`
	DriverID  uint64    `json:"driverId"`
	Status    string    `json:"status"`
	Previous  string    `json:"previous"`
	At        time.Time `json:"at"`
}

// streamEvents pushes status-change signals for one freight over SSE. A
// dropped signal is fine: the client re-reads the effective status on every
// event anyway.
func (a *API) streamEvents(w http.ResponseWriter, r *http.Request) {
	freightID, ok := pathID(r, "freightID")
	if !ok {
		badRequest(w, "invalid freight id")
		return
	}

	ch, release := a.notifier.SubscribeFreight(freightID)
	defer release()

	a.serveEventStream(w, r, ch, nil)
}

// streamProducerEvents is the dashboard feed for one producer: it forwards
// only events that cross the delivered-awaiting-confirmation boundary, i.e.
// the moments the pending-confirmation list must be refetched.
func (a *API) streamProducerEvents(w http.ResponseWriter, r *http.Request) {
	producerID, ok := pathID(r, "producerID")
	if !ok {
		badRequest(w, "invalid producer id")
		return
	}

	ch, release := a.notifier.SubscribeProducer(producerID)
	defer release()

	a.serveEventStream(w, r, ch, func(ev notify.Event) bool {
		return ev.PendingChanged(models.StatusDeliveredPendingConf)
	})
}

func (a *API) serveEventStream(w http.ResponseWriter, r *http.Request, ch <-chan notify.Event, keep func(notify.Event) bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		badRequest(w, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			if keep != nil && !keep(ev) {
				continue
			}
			b, err := json.Marshal(statusEvent{
				FreightID: ev.FreightID,
				DriverID:  ev.DriverID,
				Status:    ev.Status,
				Previous:  ev.Previous,
				At:        ev.At,
			})
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", b)
			flusher.Flush()
		}
	}
}
