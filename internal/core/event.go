package core

import (
	"sync"
	"time"
)

// EventCode is a single-bit event kind, composable with | and filtered
// with & exactly as spec.md §4.2 describes.
type EventCode uint32

const (
	EventSchedulerStarted EventCode = 1 << iota
	EventSchedulerShutdown
	EventJobstoreAdded
	EventJobstoreRemoved
	EventJobstoreCleared // open question resolution, see SPEC_FULL.md §9
	EventJobAdded
	EventJobModified
	EventJobRemoved
	EventJobExecuted
	EventJobError
	EventJobMissed
)

// EventAll matches every event code.
const EventAll = EventSchedulerStarted | EventSchedulerShutdown |
	EventJobstoreAdded | EventJobstoreRemoved | EventJobstoreCleared |
	EventJobAdded | EventJobModified | EventJobRemoved |
	EventJobExecuted | EventJobError | EventJobMissed

// Event is a discriminated record describing something that happened in
// the scheduler. Not every field applies to every Code.
type Event struct {
	Code        EventCode
	StoreAlias  string
	JobID       JobID
	RunTime     time.Time
	ReturnValue any
	Err         error
	Removed     int // for EventJobstoreCleared
}

// Listener receives events whose mask matches the event's Code.
type Listener func(Event)

// SubscriptionID identifies a registered Listener so it can be removed
// later. Go func values aren't comparable, so Subscribe hands back a
// token instead of spec.md's "remove by callback identity".
type SubscriptionID uint64

type subscription struct {
	id       SubscriptionID
	callback Listener
	mask     EventCode
}

// EventBus fans events out to subscribers, synchronously, swallowing
// subscriber panics/errors so a misbehaving listener can't take down the
// firing loop (spec.md §4.2, §7).
type EventBus struct {
	mu     sync.Mutex
	subs   []subscription
	nextID SubscriptionID

	onPanic func(recovered any)
}

// NewEventBus returns an EventBus. onPanic, if non-nil, is called with
// whatever a listener panicked with; it is expected to log, not rethrow.
func NewEventBus(onPanic func(recovered any)) *EventBus {
	return &EventBus{onPanic: onPanic}
}

// Subscribe registers callback for events matching mask and returns a
// token that Unsubscribe can later use to remove it.
func (b *EventBus) Subscribe(callback Listener, mask EventCode) SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, callback: callback, mask: mask})
	return id
}

// Unsubscribe removes the registration with the given id, if still present.
func (b *EventBus) Unsubscribe(id SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Notify takes a snapshot of subscribers under a short lock, releases it,
// then invokes every matching callback in turn. A callback's panic is
// recovered and swallowed so later listeners still get delivered.
func (b *EventBus) Notify(event Event) {
	b.mu.Lock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		if s.mask&event.Code == 0 {
			continue
		}
		b.dispatch(s.callback, event)
	}
}

func (b *EventBus) dispatch(cb Listener, event Event) {
	defer func() {
		if r := recover(); r != nil && b.onPanic != nil {
			b.onPanic(r)
		}
	}()
	cb(event)
}
