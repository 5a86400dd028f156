package sched

import (
	"fmt"
	"sync"

	akitasim "github.com/sarchlab/akita/v4/sim"
	"github.com/rs/xid"
)

// unboundedCapacity approximates an "unbounded" channel: large enough that
// no realistic simulation run fills it, while still reusing the same
// bounded-buffer machinery (and therefore the same backpressure code path)
// as a capacity-limited channel.
const unboundedCapacity = 1 << 30

// ChannelElement pairs a payload with the virtual time at which it becomes
// available to a consumer.
type ChannelElement[T any] struct {
	Time    Time
	Payload T
	id      string
}

// NewElement builds a ChannelElement, stamping it with a unique diagnostic
// ID from akita's ID generator (the same generator zeonica's
// cgra.MoveMsgBuilder uses to stamp message IDs).
func NewElement[T any](t Time, payload T) ChannelElement[T] {
	return ChannelElement[T]{
		Time:    t,
		Payload: payload,
		id:      fmt.Sprintf("%v", akitasim.GetIDGenerator().Generate()),
	}
}

// ID returns the element's diagnostic identifier.
func (e ChannelElement[T]) ID() string { return e.id }

// PeekKind discriminates a Peek result's variant.
type PeekKind int

const (
	PeekSomething PeekKind = iota
	PeekNothing
	PeekClosed
)

// Peek is the result of a non-destructive channel read: either an element
// is present (Something), or it isn't and NextPossible names the earliest
// time a peer might still produce one (Nothing), or the channel is
// permanently empty (Closed).
type Peek[T any] struct {
	Kind         PeekKind
	Element      ChannelElement[T]
	NextPossible Time
}

func somePeek[T any](e ChannelElement[T]) Peek[T] {
	return Peek[T]{Kind: PeekSomething, Element: e}
}

func nothingPeek[T any](t Time) Peek[T] {
	return Peek[T]{Kind: PeekNothing, NextPossible: t}
}

func closedPeek[T any]() Peek[T] {
	return Peek[T]{Kind: PeekClosed}
}

// endpoint is the shared state behind a Sender/Receiver pair: a bounded
// FIFO of boxed ChannelElement[T] backed by akita's sim.Buffer (the same
// CanPush/Push/Pop/Peek/Size/Capacity surface zeonica's defaultPort drives
// its incoming/outgoing buffers through). A plain mutex guards buf/closed;
// blocking enqueue/dequeue semantics come from Clock.ParkUntil, not from a
// condition variable — the sender and receiver attached to one endpoint are
// different Contexts, and the engine's baton already guarantees only one
// of them ever touches buf at a time, so there is nothing to wait on here
// beyond "is my condition true yet".
//
// senderClock is a weak back-reference to the attached sender's clock, used
// only to answer Peek's "earliest possible time" question when the buffer
// is empty; it is never used to mutate the sender's state, keeping
// ownership one-directional (component -> endpoint).
type endpoint[T any] struct {
	mu          sync.Mutex
	buf         akitasim.Buffer
	closed      bool
	name        string
	senderClock *Clock

	receiverAttached bool
	senderAttached   bool
}

func newEndpoint[T any](capacity int, name string) *endpoint[T] {
	if name == "" {
		name = "chan-" + xid.New().String()
	}
	return &endpoint[T]{
		buf:  akitasim.NewBuffer(name, capacity),
		name: name,
	}
}

// Receiver is the consuming half of a channel, owned exclusively by the
// component it is attached to.
type Receiver[T any] struct{ ep *endpoint[T] }

// Sender is the producing half of a channel, owned exclusively by the
// component it is attached to.
type Sender[T any] struct{ ep *endpoint[T] }

// Bounded creates a capacity-limited channel's sender/receiver pair.
func Bounded[T any](capacity int, name string) (Sender[T], Receiver[T]) {
	ep := newEndpoint[T](capacity, name)
	return Sender[T]{ep: ep}, Receiver[T]{ep: ep}
}

// Unbounded creates a channel whose capacity is large enough to never
// exert backpressure in practice.
func Unbounded[T any](name string) (Sender[T], Receiver[T]) {
	return Bounded[T](unboundedCapacity, name)
}

// Name returns the channel's diagnostic name.
func (r Receiver[T]) Name() string { return r.ep.name }

// Name returns the channel's diagnostic name.
func (s Sender[T]) Name() string { return s.ep.name }

// AttachReceiver marks this receiver as owned by a component. The clock
// argument is not stored: Dequeue takes the consumer's clock on each call.
// Each receiver may be attached exactly once; a second attach is a wiring
// bug and panics.
func (r Receiver[T]) AttachReceiver(clock *Clock) {
	r.ep.mu.Lock()
	defer r.ep.mu.Unlock()
	if r.ep.receiverAttached {
		panic(fmt.Sprintf("sched: receiver %q already attached", r.ep.name))
	}
	r.ep.receiverAttached = true
}

// AttachSender binds this sender to an owning component's clock, which
// Peek consults to answer "earliest possible time" when the buffer is
// empty.
func (s Sender[T]) AttachSender(clock *Clock) {
	s.ep.mu.Lock()
	defer s.ep.mu.Unlock()
	if s.ep.senderAttached {
		panic(fmt.Sprintf("sched: sender %q already attached", s.ep.name))
	}
	s.ep.senderAttached = true
	s.ep.senderClock = clock
}

// Peek returns the channel's head element without removing it, or reports
// why none is available.
func (r Receiver[T]) Peek() Peek[T] {
	r.ep.mu.Lock()
	defer r.ep.mu.Unlock()

	if r.ep.buf.Size() > 0 {
		item := r.ep.buf.Peek()
		return somePeek(item.(ChannelElement[T]))
	}
	if r.ep.closed {
		return closedPeek[T]()
	}
	guard := Zero()
	if r.ep.senderClock != nil {
		guard = r.ep.senderClock.Tick()
	}
	return nothingPeek[T](guard)
}

// Dequeue blocks until an element is available or the channel is closed and
// drained. On success it advances clock to max(clock, element.Time), the
// causal-consistency rule every component's clock update follows. ok is
// false iff the channel closed with nothing left to deliver.
func (r Receiver[T]) Dequeue(clock *Clock) (ChannelElement[T], bool) {
	ready := func() bool {
		r.ep.mu.Lock()
		defer r.ep.mu.Unlock()
		return r.ep.buf.Size() > 0 || r.ep.closed
	}
	if clock != nil {
		clock.ParkUntil(ready)
	} else if !ready() {
		panic(fmt.Sprintf("sched: Dequeue on %q blocked with a nil clock and no engine to park against", r.ep.name))
	}

	r.ep.mu.Lock()
	if r.ep.buf.Size() == 0 {
		r.ep.mu.Unlock()
		return ChannelElement[T]{}, false
	}
	item := r.ep.buf.Pop()
	r.ep.mu.Unlock()

	elem := item.(ChannelElement[T])
	if clock != nil {
		clock.AdvanceTo(elem.Time)
	}
	return elem, true
}

// Closed reports whether the channel has been closed by its sender (it may
// still have buffered elements left to drain).
func (r Receiver[T]) Closed() bool {
	r.ep.mu.Lock()
	defer r.ep.mu.Unlock()
	return r.ep.closed
}

// Enqueue blocks until there is room in the channel's buffer, then pushes
// elem. This is the sole source of backpressure: a full downstream buffer
// stalls the producing component until the consumer makes room.
func (s Sender[T]) Enqueue(clock *Clock, elem ChannelElement[T]) {
	ready := func() bool {
		s.ep.mu.Lock()
		defer s.ep.mu.Unlock()
		return s.ep.buf.CanPush()
	}
	if clock != nil {
		clock.ParkUntil(ready)
	} else if !ready() {
		panic(fmt.Sprintf("sched: Enqueue on %q blocked with a nil clock and no engine to park against", s.ep.name))
	}

	s.ep.mu.Lock()
	s.ep.buf.Push(elem)
	s.ep.mu.Unlock()
}

// Close marks the channel closed: once drained, Receiver.Dequeue/Peek will
// report closure. Components close every sender they own when Run returns.
func (s Sender[T]) Close() {
	s.ep.mu.Lock()
	s.ep.closed = true
	s.ep.mu.Unlock()
}
