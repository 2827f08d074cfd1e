// Package statemachine owns the authoritative current state of a run:
// legal-transition enforcement, history push/pop, guards, persist-after-
// commit, and a synchronous stateChange event bus.
package statemachine

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/DaniyalFaraz2003/OSC-Agent/workflow"
)

// ChangeEvent is the payload of a stateChange notification.
type ChangeEvent struct {
	RunID     string
	From      workflow.State
	To        workflow.State
	Trigger   workflow.Trigger
	Timestamp int64
}

// Subscriber receives committed transitions. Implementations must not
// block for long or panic — the bus isolates panics but a slow subscriber
// still delays every other subscriber on the same event, since delivery is
// synchronous at commit.
type Subscriber func(ctx context.Context, evt ChangeEvent)

// Subscription is a handle for unregistering from the Bus.
type Subscription struct {
	bus *Bus
	id  uint64
}

// Close unregisters the subscriber. Safe to call more than once.
func (s Subscription) Close() {
	if s.bus == nil {
		return
	}
	s.bus.unregister(s.id)
}

// Bus fans a committed transition out to every registered Subscriber,
// synchronously, in registration order. A panic in one subscriber is
// recovered and does not prevent the remaining subscribers from running,
// and never affects machine state.
type Bus struct {
	mu      sync.Mutex
	nextID  uint64
	subs    map[uint64]Subscriber
	onPanic func(recovered any)
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]Subscriber)}
}

// OnPanic installs fn to be called (outside the bus's lock) whenever a
// subscriber panics. Replaces any previously installed handler. A nil fn
// restores the default of discarding the recovered value.
func (b *Bus) OnPanic(fn func(recovered any)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onPanic = fn
}

// Register adds sub to the fan-out list and returns a Subscription used to
// remove it later. Returns an error if sub is nil.
func (b *Bus) Register(sub Subscriber) (Subscription, error) {
	if sub == nil {
		return Subscription{}, errors.New("statemachine: nil subscriber")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	return Subscription{bus: b, id: id}, nil
}

func (b *Bus) unregister(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// Publish fans evt out to every currently registered subscriber.
func (b *Bus) Publish(ctx context.Context, evt ChangeEvent) {
	b.mu.Lock()
	ids := make([]uint64, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	subs := make([]Subscriber, 0, len(ids))
	for _, id := range ids {
		subs = append(subs, b.subs[id])
	}
	onPanic := b.onPanic
	b.mu.Unlock()

	for _, sub := range subs {
		invokeSubscriber(ctx, sub, evt, onPanic)
	}
}

func invokeSubscriber(ctx context.Context, sub Subscriber, evt ChangeEvent, onPanic func(any)) {
	defer func() {
		if r := recover(); r != nil && onPanic != nil {
			onPanic(r)
		}
	}()
	sub(ctx, evt)
}
