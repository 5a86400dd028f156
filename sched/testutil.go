package sched

import (
	"fmt"

	"github.com/go-logr/logr"
)

// Generator is a minimal producer context, the Go analogue of the "dam"
// framework's GeneratorContext used throughout the original's test suite:
// it emits a fixed sequence of payloads, one per cycle, then closes its
// sender.
type Generator[T any] struct {
	Base
	out    Sender[T]
	values []T
}

// NewGenerator creates a Generator emitting values in order, one per cycle,
// starting at cycle 0.
func NewGenerator[T any](name string, out Sender[T], values []T) *Generator[T] {
	g := &Generator[T]{Base: NewBase(name, logr.Discard()), out: out, values: values}
	out.AttachSender(g.Clock())
	return g
}

// Init is a no-op: generators have no side-effecting setup.
func (g *Generator[T]) Init() error { return nil }

// Run emits every value, then closes the output channel.
func (g *Generator[T]) Run() error {
	for _, v := range g.values {
		elem := NewElement(g.Clock().Tick(), v)
		g.out.Enqueue(g.Clock(), elem)
		g.Clock().IncrCycles(1)
	}
	g.out.Close()
	return nil
}

// Checker is a minimal consumer context, the Go analogue of "dam"'s
// CheckerContext: it dequeues an expected sequence and fails (returns an
// error, recorded by Program.Run as a failure) on any mismatch or early
// closure. If the input isn't empty-and-closed once the expected sequence
// is consumed, that's also a failure: extra data is as wrong as missing
// data.
type Checker[T any] struct {
	Base
	in    Receiver[T]
	want  []T
	equal func(a, b T) bool
}

// NewChecker creates a Checker expecting exactly the given sequence.
func NewChecker[T any](name string, in Receiver[T], want []T, equal func(a, b T) bool) *Checker[T] {
	c := &Checker[T]{Base: NewBase(name, logr.Discard()), in: in, want: want, equal: equal}
	in.AttachReceiver(c.Clock())
	return c
}

// Init is a no-op: checkers have no side-effecting setup.
func (c *Checker[T]) Init() error { return nil }

// Run consumes and verifies the expected sequence, charging one cycle per
// consumed element — the consumer-side mirror of Generator's one cycle per
// emitted element, so a chain's elapsed-cycle count reflects both ends
// doing one unit of work per cycle rather than only the producer.
func (c *Checker[T]) Run() error {
	for i, want := range c.want {
		elem, ok := c.in.Dequeue(c.Clock())
		if !ok {
			return fmt.Errorf("%s: channel closed early at index %d, expected %v", c.Name(), i, want)
		}
		if !c.equal(elem.Payload, want) {
			return fmt.Errorf("%s: at index %d got %v, want %v", c.Name(), i, elem.Payload, want)
		}
		c.Clock().IncrCycles(1)
	}
	if elem, ok := c.in.Dequeue(c.Clock()); ok {
		return fmt.Errorf("%s: unexpected extra element %v after expected sequence", c.Name(), elem.Payload)
	}
	return nil
}
