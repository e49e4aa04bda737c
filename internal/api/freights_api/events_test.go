package freights_api

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cargaviva/freightcore/internal/integrations/directory/fake"
	"github.com/cargaviva/freightcore/internal/models"
	"github.com/cargaviva/freightcore/internal/notify"
)

func openStream(t *testing.T, url string) (<-chan string, func()) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()
	return lines, func() { resp.Body.Close() }
}

func nextEvent(t *testing.T, lines <-chan string) statusEvent {
	t.Helper()
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatal("stream closed before an event arrived")
			}
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var ev statusEvent
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
			return ev
		case <-time.After(2 * time.Second):
			t.Fatal("no event on the stream")
		}
	}
}

func waitForObservers(t *testing.T, count func() int, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for count() != want {
		if time.Now().After(deadline) {
			t.Fatalf("observer count never reached %d", want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStreamFreightEvents_DeliversStatusChanges(t *testing.T) {
	notifier := notify.New()
	api := New(newFakeStore(), &fakeTransitions{}, &fakeResolver{}, &fakePending{}, fake.New(), notifier)
	srv := httptest.NewServer(api.Routes())
	defer srv.Close()

	lines, closeStream := openStream(t, srv.URL+"/v1/freights/1/events")
	defer closeStream()
	waitForObservers(t, func() int { return notifier.FreightObservers(1) }, 1)

	notifier.Publish(notify.Event{
		FreightID:  1,
		ProducerID: 10,
		DriverID:   5,
		Status:     models.StatusInTransit,
		Previous:   models.StatusLoaded,
		At:         time.Now().UTC(),
	})

	ev := nextEvent(t, lines)
	require.Equal(t, uint64(1), ev.FreightID)
	require.Equal(t, uint64(5), ev.DriverID)
	require.Equal(t, models.StatusInTransit, ev.Status)
	require.Equal(t, models.StatusLoaded, ev.Previous)
}

func TestStreamProducerEvents_OnlyPendingBoundary(t *testing.T) {
	// The dashboard feed exists so producers learn when the pending list must
	// be refetched: a mid-route change stays off the wire, the move into
	// delivered-awaiting-confirmation comes through.
	notifier := notify.New()
	api := New(newFakeStore(), &fakeTransitions{}, &fakeResolver{}, &fakePending{}, fake.New(), notifier)
	srv := httptest.NewServer(api.Routes())
	defer srv.Close()

	lines, closeStream := openStream(t, srv.URL+"/v1/producers/10/events")
	defer closeStream()
	waitForObservers(t, func() int { return notifier.ProducerObservers(10) }, 1)

	notifier.Publish(notify.Event{
		FreightID:  1,
		ProducerID: 10,
		DriverID:   5,
		Status:     models.StatusInTransit,
		Previous:   models.StatusLoaded,
		At:         time.Now().UTC(),
	})
	// give the handler time to drain and discard the mid-route signal, so the
	// boundary event below is not coalesced away with it
	time.Sleep(50 * time.Millisecond)
	notifier.Publish(notify.Event{
		FreightID:  1,
		ProducerID: 10,
		DriverID:   5,
		Status:     models.StatusDeliveredPendingConf,
		Previous:   models.StatusInTransit,
		At:         time.Now().UTC(),
	})

	ev := nextEvent(t, lines)
	require.Equal(t, uint64(1), ev.FreightID)
	require.Equal(t, models.StatusDeliveredPendingConf, ev.Status)
}

func TestStreamProducerEvents_RejectsBadID(t *testing.T) {
	api := New(newFakeStore(), &fakeTransitions{}, &fakeResolver{}, &fakePending{}, fake.New(), notify.New())
	rec := doJSON(t, api.Routes(), http.MethodGet, "/v1/producers/0/events", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
