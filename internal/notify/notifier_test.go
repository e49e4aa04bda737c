package notify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cargaviva/freightcore/internal/models"
)

func TestNotifier_FreightScopedDelivery(t *testing.T) {
	n := New()

	ch, release := n.SubscribeFreight(1)
	defer release()

	n.Publish(Event{FreightID: 1, ProducerID: 10, Status: models.StatusLoading})
	n.Publish(Event{FreightID: 2, ProducerID: 10, Status: models.StatusLoading})

	select {
	case ev := <-ch:
		require.Equal(t, uint64(1), ev.FreightID)
	default:
		t.Fatal("expected a signal for freight 1")
	}

	// freight 2's event did not leak into freight 1's stream
	select {
	case <-ch:
		t.Fatal("unexpected second signal")
	default:
	}
}

func TestNotifier_ProducerScopedDelivery(t *testing.T) {
	n := New()

	ch, release := n.SubscribeProducer(10)
	defer release()

	n.Publish(Event{FreightID: 5, ProducerID: 10, Status: models.StatusDeliveredPendingConf})

	select {
	case ev := <-ch:
		require.Equal(t, uint64(5), ev.FreightID)
	default:
		t.Fatal("expected a producer signal")
	}
}

func TestNotifier_EveryObserverIsSignalled(t *testing.T) {
	n := New()

	ch1, rel1 := n.SubscribeFreight(1)
	defer rel1()
	ch2, rel2 := n.SubscribeFreight(1)
	defer rel2()
	pch, prel := n.SubscribeProducer(10)
	defer prel()

	n.Publish(Event{FreightID: 1, ProducerID: 10, Status: models.StatusInTransit})

	for i, ch := range []<-chan Event{ch1, ch2, pch} {
		select {
		case ev := <-ch:
			require.Equal(t, uint64(1), ev.FreightID)
		default:
			t.Fatalf("observer %d missed the signal", i)
		}
	}
}

func TestNotifier_CoalescesWhenObserverIsSlow(t *testing.T) {
	n := New()

	ch, release := n.SubscribeFreight(1)
	defer release()

	for i := 0; i < 5; i++ {
		n.Publish(Event{FreightID: 1})
	}

	// exactly one pending signal
	<-ch
	select {
	case <-ch:
		t.Fatal("signals should coalesce")
	default:
	}
}

func TestNotifier_RefCounting(t *testing.T) {
	n := New()

	_, rel1 := n.SubscribeFreight(3)
	ch2, rel2 := n.SubscribeFreight(3)
	require.Equal(t, 2, n.FreightObservers(3))

	rel1()
	rel1() // double release is a no-op
	require.Equal(t, 1, n.FreightObservers(3))

	// stream stays alive for the second observer
	n.Publish(Event{FreightID: 3})
	select {
	case <-ch2:
	default:
		t.Fatal("surviving observer should still be signalled")
	}

	rel2()
	require.Equal(t, 0, n.FreightObservers(3))

	// publishing into a released scope is a no-op
	n.Publish(Event{FreightID: 3})
}

func TestEvent_PendingChanged(t *testing.T) {
	into := Event{Status: models.StatusDeliveredPendingConf, Previous: models.StatusInTransit}
	outOf := Event{Status: models.StatusDelivered, Previous: models.StatusDeliveredPendingConf}
	unrelated := Event{Status: models.StatusLoading, Previous: models.StatusAccepted}

	require.True(t, into.PendingChanged(models.StatusDeliveredPendingConf))
	require.True(t, outOf.PendingChanged(models.StatusDeliveredPendingConf))
	require.False(t, unrelated.PendingChanged(models.StatusDeliveredPendingConf))
}
