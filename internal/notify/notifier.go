// Package notify fans status-change events out to in-process observers.
// Subscriptions are freight- or producer-scoped; every observer holds its own
// coalescing signal channel, so each of ten dashboard views of one freight is
// told about a change exactly once.
package notify

import (
	"sync"
	"time"
)

// Event describes one mutation of freight state.
type Event struct {
	FreightID  uint64
	ProducerID uint64
	DriverID   uint64
	Status     string
	Previous   string
	At         time.Time
}

// PendingChanged reports whether the event moved a load into or out of the
// delivered-awaiting-confirmation state, i.e. whether the producer's pending
// list needs recomputing.
func (e Event) PendingChanged(pendingStatus string) bool {
	return e.Status == pendingStatus || e.Previous == pendingStatus
}

type Notifier struct {
	mu        sync.Mutex
	freights  map[uint64]map[chan Event]struct{}
	producers map[uint64]map[chan Event]struct{}
}

func New() *Notifier {
	return &Notifier{
		freights:  make(map[uint64]map[chan Event]struct{}),
		producers: make(map[uint64]map[chan Event]struct{}),
	}
}

// SubscribeFreight returns a signal channel for one freight. The release func
// must be called when the observer goes away; the last release drops the
// scope entry. Leaked subscriptions leak recomputation forever.
func (n *Notifier) SubscribeFreight(freightID uint64) (<-chan Event, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.subscribe(n.freights, freightID)
}

// SubscribeProducer is the producer-dashboard variant: signalled only when a
// freight owned by the producer changes.
func (n *Notifier) SubscribeProducer(producerID uint64) (<-chan Event, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.subscribe(n.producers, producerID)
}

func (n *Notifier) subscribe(scope map[uint64]map[chan Event]struct{}, id uint64) (<-chan Event, func()) {
	subs, ok := scope[id]
	if !ok {
		subs = make(map[chan Event]struct{})
		scope[id] = subs
	}
	// buffer of 1: delivery is a coalescing signal per observer, not a queue
	ch := make(chan Event, 1)
	subs[ch] = struct{}{}

	var once sync.Once
	release := func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(subs, ch)
			if len(subs) == 0 && len(scope[id]) == 0 {
				delete(scope, id)
			}
		})
	}
	return ch, release
}

// Publish signals every observer of the freight and every observer of the
// owning producer. Non-blocking: a slow observer coalesces, it never stalls
// the write path.
func (n *Notifier) Publish(ev Event) {
	n.mu.Lock()
	targets := make([]chan Event, 0, len(n.freights[ev.FreightID])+len(n.producers[ev.ProducerID]))
	for ch := range n.freights[ev.FreightID] {
		targets = append(targets, ch)
	}
	for ch := range n.producers[ev.ProducerID] {
		targets = append(targets, ch)
	}
	n.mu.Unlock()

	for _, ch := range targets {
		signal(ch, ev)
	}
}

func signal(ch chan Event, ev Event) {
	select {
	case ch <- ev:
	default:
		// an undelivered signal is already pending; the observer will refetch
	}
}

// FreightObservers reports the live subscription count for a freight.
func (n *Notifier) FreightObservers(freightID uint64) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.freights[freightID])
}

// ProducerObservers reports the live subscription count for a producer scope.
func (n *Notifier) ProducerObservers(producerID uint64) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.producers[producerID])
}
