package sched

import (
	"sync"

	"github.com/go-logr/logr"
)

// Clock is a component's own monotonic virtual clock. Each Context owns
// exactly one; channel operations on its endpoints advance it, never a
// peer's.
//
// Once a Program starts running its owning Context, the clock is bound to
// that Program's engine: ParkUntil routes through it so the Context gives
// up its turn at a channel suspension point instead of spinning.
type Clock struct {
	mu  sync.Mutex
	t   Time
	eng *engine
	idx int
}

// NewClock creates a clock initialized to time zero.
func NewClock() *Clock { return &Clock{} }

// Tick returns the clock's current virtual time.
func (c *Clock) Tick() Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// IncrCycles advances the clock by n cycles.
func (c *Clock) IncrCycles(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(n)
}

// AdvanceTo moves the clock forward to max(current, t). Moving it backward
// is never valid: virtual time is non-decreasing per component.
func (c *Clock) AdvanceTo(t Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Max(t)
}

// bind attaches the clock to the engine driving its owning Context, at the
// given index in the engine's child list. Called once by Program.Run
// before any Context's Run method executes.
func (c *Clock) bind(eng *engine, idx int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eng = eng
	c.idx = idx
}

// ParkUntil cooperatively gives up this Context's turn until ready reports
// true, letting the Program's engine run other Contexts in the meantime.
// Channel operations (Dequeue, Enqueue) and the switch's empty-peek retry
// use this instead of spinning, so a suspended Context never burns virtual
// or wall-clock cycles waiting on something only another Context's turn
// can change.
//
// A clock that was never bound to a running engine (a Context driven
// directly, outside Program.Run) requires ready to already hold: there is
// no engine to hand the turn to.
func (c *Clock) ParkUntil(ready func() bool) {
	c.mu.Lock()
	eng, idx := c.eng, c.idx
	c.mu.Unlock()

	if eng == nil {
		if !ready() {
			panic("sched: blocking channel operation with no engine bound to this clock (Context driven outside Program.Run)")
		}
		return
	}
	eng.park(idx, ready)
}

// Context is one component scheduled by a Program. It owns channel
// endpoints and terminates by returning from Run (closing its senders
// first). Each Context runs on its own goroutine, but the owning Program's
// engine grants exactly one of them the turn to run at a time: no two
// Contexts' code ever executes concurrently, matching the single-threaded
// cooperative scheduler the runtime contract promises.
type Context interface {
	Name() string
	Clock() *Clock
	Init() error
	Run() error
}

// Base is embedded by concrete Contexts (PCU, Switch, the test utility
// contexts) to supply the Name/Clock half of the interface, following the
// same "concrete component embeds a shared base" shape as zeonica's
// TickingComponent-embedding core/Core and cgra-new/FuncUnit.
type Base struct {
	name  string
	clock *Clock
	Log   logr.Logger
}

// NewBase creates a Base with a fresh clock. A zero logr.Logger (Discard)
// is fine if the caller doesn't want log output.
func NewBase(name string, log logr.Logger) Base {
	return Base{name: name, clock: NewClock(), Log: log}
}

// Name returns the component's name.
func (b *Base) Name() string { return b.name }

// Clock returns the component's virtual clock.
func (b *Base) Clock() *Clock { return b.clock }
