package sched

import "fmt"

// engine is the cooperative run-loop shared by every Context in one
// Program.Run call: exactly one Context's goroutine is ever unblocked at a
// time. Each Context still runs on its own goroutine — a blocking Dequeue
// or Enqueue buried deep in a call stack can't otherwise be suspended and
// resumed in Go — but the engine enforces a strict baton, handed to
// exactly one Context's goroutine at a time via its resume channel, and
// taken back at every channel suspension point through Clock.ParkUntil.
// This is the same shape as zeonica's akita dependency single-stepping a
// sim.Engine's event queue, just expressed as baton-passing goroutines
// instead of a callback invoked from one event loop: one driver decides
// who runs next, and it never has two Contexts "in flight" at once.
type engine struct {
	entries []*ctxEntry
	yield   chan struct{}
}

// ctxEntry is one Context's scheduling state. Every field is touched only
// by whichever goroutine currently holds the baton (the dispatcher between
// grants, or the running Context while it holds one), so no field needs
// its own lock: the baton handoff itself, over the resume/yield channels,
// is what establishes the happens-before relationship.
type ctxEntry struct {
	ctx    Context
	resume chan struct{}
	done   bool
	err    error
	ready  func() bool
}

// newEngine binds each child's clock to a fresh engine, at its index in
// children.
func newEngine(children []Context) *engine {
	eng := &engine{yield: make(chan struct{})}
	eng.entries = make([]*ctxEntry, len(children))
	for i, c := range children {
		eng.entries[i] = &ctxEntry{ctx: c, resume: make(chan struct{})}
		c.Clock().bind(eng, i)
	}
	return eng
}

// start launches one goroutine per Context, each parked on its resume
// channel until the dispatcher grants it the baton.
func (e *engine) start() {
	for _, entry := range e.entries {
		entry := entry
		go func() {
			<-entry.resume
			entry.err = e.runGuarded(entry.ctx)
			entry.done = true
			e.yield <- struct{}{}
		}()
	}
}

// runGuarded runs one Context to completion, converting a panic into an
// error the same way Program.Run's caller reports any other failure.
func (e *engine) runGuarded(ctx Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return ctx.Run()
}

// park is called by the Context currently holding the baton (via
// Clock.ParkUntil) to give it up until ready reports true. Each pass
// through the loop body hands the baton back to the dispatcher and blocks
// until re-granted; the loop re-checks ready itself rather than trusting a
// single wake, so the invariant "never runs while blocked" holds even if
// ready briefly disagrees with the condition that made the dispatcher
// think this entry was runnable.
func (e *engine) park(idx int, ready func() bool) {
	entry := e.entries[idx]
	for !ready() {
		entry.ready = ready
		e.yield <- struct{}{}
		<-entry.resume
	}
}

// runToCompletion drives every Context to termination, granting the baton
// to exactly one runnable Context at a time. failures collects per-Context
// run errors; deadlock reports whether the engine stopped because no
// remaining Context was runnable even though at least one hadn't
// terminated — a genuine scheduling deadlock, not a normal finish.
func (e *engine) runToCompletion() (failures []string, deadlock bool) {
	e.start()
	for {
		idx, ok := e.pickNext()
		if !ok {
			for _, entry := range e.entries {
				if !entry.done {
					deadlock = true
				}
			}
			return failures, deadlock
		}

		entry := e.entries[idx]
		entry.ready = nil
		entry.resume <- struct{}{}
		<-e.yield

		if entry.done && entry.err != nil {
			failures = append(failures, fmt.Sprintf("%s: run error: %v", entry.ctx.Name(), entry.err))
		}
	}
}

// pickNext returns the lowest-index not-done entry that is either still
// unstarted (ready == nil) or whose parked condition now holds. Always
// scanning from index 0 in registration order is what makes scheduling
// among several simultaneously-runnable Contexts deterministic, the same
// ascending-index tie-break xbar.Switch itself uses for input selection.
func (e *engine) pickNext() (int, bool) {
	for i, entry := range e.entries {
		if entry.done {
			continue
		}
		if entry.ready == nil || entry.ready() {
			return i, true
		}
	}
	return 0, false
}
