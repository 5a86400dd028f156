// Package xbar implements the crossbar switch: a cycle-accurate router
// with backpressure, a static routing table, and three dequeue/enqueue
// fan-in/fan-out modes.
package xbar

import (
	"fmt"

	"github.com/go-logr/logr"
	akitasim "github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/plasticine/pcu"
	"github.com/sarchlab/plasticine/sched"
)

// HookPosSwitchDequeue marks a switch dequeuing one element from a
// selected input.
var HookPosSwitchDequeue = &akitasim.HookPos{Name: "Switch Dequeue"}

// HookPosSwitchEnqueue marks a switch enqueuing one element to one routed
// output.
var HookPosSwitchEnqueue = &akitasim.HookPos{Name: "Switch Enqueue"}

// HookPosSwitchClosed marks a switch's clean shutdown once every input has
// closed and drained.
var HookPosSwitchClosed = &akitasim.HookPos{Name: "Switch Closed"}

// Mode selects how a switch fans its inputs in and its outputs out each
// iteration.
type Mode int

const (
	// SingleEnqueueSingleDequeue dequeues one input per cycle and enqueues
	// it to every target listed for it (a single target for 1-to-1
	// routing), advancing the clock once for the whole iteration.
	SingleEnqueueSingleDequeue Mode = iota
	// MultiEnqueueSingleDequeue dequeues one input and broadcasts the same
	// element to every listed target, one enqueue per cycle.
	MultiEnqueueSingleDequeue
	// MultiEnqueueMultiDequeue dequeues from every input whose routed
	// targets don't conflict with another input's this cycle.
	MultiEnqueueMultiDequeue
)

func (m Mode) String() string {
	switch m {
	case SingleEnqueueSingleDequeue:
		return "SingleEnqueueSingleDequeue"
	case MultiEnqueueSingleDequeue:
		return "MultiEnqueueSingleDequeue"
	case MultiEnqueueMultiDequeue:
		return "MultiEnqueueMultiDequeue"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// DelayFunc computes the routing delay in cycles for one (input, output)
// pair.
type DelayFunc func(inIdx, outIdx int) int

// HwConfig describes a switch's physical shape.
type HwConfig struct {
	SIMDWidth     int
	DatatypeWidth int
	NumInputs     int
	NumOutputs    int
	Mode          Mode
	Delay         DelayFunc
}

// RtConfig is the static routing table: input index to an ordered sequence
// of output indices.
type RtConfig struct {
	RoutingTable map[int][]int
}

// Switch is a cycle-accurate crossbar with backpressure.
type Switch struct {
	akitasim.HookableBase

	sched.Base

	hw      HwConfig
	rt      RtConfig
	inputs  []sched.Receiver[pcu.Data]
	outputs []sched.Sender[pcu.Data]
}

// Option configures optional Switch behavior at construction.
type Option func(*Switch)

// WithLogger stores a logger in the Switch's Base.Log. Run does not write
// to it.
func WithLogger(log logr.Logger) Option {
	return func(s *Switch) { s.Log = log }
}

// New builds a Switch. Port counts must match hw exactly; every routing
// table index, input and output, must be in range. A malformed routing
// table is a fatal configuration error, detected here rather than at run
// time.
func New(name string, hw HwConfig, rt RtConfig, inputs []sched.Receiver[pcu.Data], outputs []sched.Sender[pcu.Data], opts ...Option) (*Switch, error) {
	if len(inputs) != hw.NumInputs {
		return nil, fmt.Errorf("xbar %q: got %d input receivers, want %d", name, len(inputs), hw.NumInputs)
	}
	if len(outputs) != hw.NumOutputs {
		return nil, fmt.Errorf("xbar %q: got %d output senders, want %d", name, len(outputs), hw.NumOutputs)
	}
	for in, outs := range rt.RoutingTable {
		if in < 0 || in >= hw.NumInputs {
			return nil, fmt.Errorf("xbar %q: routing table references out-of-range input %d", name, in)
		}
		for _, out := range outs {
			if out < 0 || out >= hw.NumOutputs {
				return nil, fmt.Errorf("xbar %q: routing table routes input %d to out-of-range output %d", name, in, out)
			}
		}
	}
	if hw.Delay == nil {
		hw.Delay = func(int, int) int { return 0 }
	}

	s := &Switch{
		Base:    sched.NewBase(name, logr.Discard()),
		hw:      hw,
		rt:      rt,
		inputs:  inputs,
		outputs: outputs,
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, in := range s.inputs {
		in.AttachReceiver(s.Clock())
	}
	for _, out := range s.outputs {
		out.AttachSender(s.Clock())
	}

	return s, nil
}

// Init is a no-op: a Switch has no side-effecting setup beyond
// construction.
func (s *Switch) Init() error { return nil }

// Run drives the switch's mode-specific loop until every input has closed
// and drained.
func (s *Switch) Run() error {
	defer func() {
		for _, out := range s.outputs {
			out.Close()
		}
	}()

	for {
		var ok bool
		switch s.hw.Mode {
		case SingleEnqueueSingleDequeue:
			ok = s.singleDequeue(false)
		case MultiEnqueueSingleDequeue:
			ok = s.singleDequeue(true)
		case MultiEnqueueMultiDequeue:
			ok = s.multiDequeueMultiEnqueue()
		default:
			panic(fmt.Sprintf("xbar %q: unknown mode %v", s.Name(), s.hw.Mode))
		}
		if !ok {
			s.InvokeHook(akitasim.HookCtx{Domain: s, Pos: HookPosSwitchClosed})
			return nil
		}
	}
}

// peekTime extracts the relevant comparison time from a Peek result:
// the element's own time if present, the guard time otherwise.
func peekTime(p sched.Peek[pcu.Data]) sched.Time {
	if p.Kind == sched.PeekSomething {
		return p.Element.Time
	}
	return p.NextPossible
}

// firstAvailable implements the "first-available" input-selection policy:
// it peeks every non-closed input, finds those tied at the minimum peek
// time, and returns the subset of those that actually hold an element. If
// every minimal peek is Nothing, it advances its own clock straight to
// that minimum — the earliest time any tied input could possibly produce —
// and cooperatively parks until the situation actually changes, rather
// than spinning one cycle at a time: the guard is already the earliest
// possible wake time, so stepping through the cycles in between can never
// find something ready sooner. ok is false iff every input has closed.
func (s *Switch) firstAvailable() (avail []int, ok bool) {
	for {
		var nonClosed []int
		var peeks []sched.Peek[pcu.Data]
		for i, in := range s.inputs {
			p := in.Peek()
			if p.Kind == sched.PeekClosed {
				continue
			}
			nonClosed = append(nonClosed, i)
			peeks = append(peeks, p)
		}
		if len(nonClosed) == 0 {
			return nil, false
		}

		min := sched.Infinite()
		for _, p := range peeks {
			t := peekTime(p)
			if t.Less(min) {
				min = t
			}
		}

		var tiedIdx []int
		var tiedPeeks []sched.Peek[pcu.Data]
		for i, idx := range nonClosed {
			if peekTime(peeks[i]).Equal(min) {
				tiedIdx = append(tiedIdx, idx)
				tiedPeeks = append(tiedPeeks, peeks[i])
			}
		}

		var somethingIdx []int
		for i, idx := range tiedIdx {
			if tiedPeeks[i].Kind == sched.PeekSomething {
				somethingIdx = append(somethingIdx, idx)
			}
		}
		if len(somethingIdx) > 0 {
			return somethingIdx, true
		}

		s.Clock().AdvanceTo(min)
		s.blockUntilChanged(nonClosed)
	}
}

// blockUntilChanged cooperatively yields the switch's turn until at least
// one of the given input indices no longer peeks the same way it did at
// the moment of the call: a peer produced an element, or closed. Peek
// results reflect live channel state, so re-peeking after being resumed is
// enough — no cycle needs to be spent just to invalidate a cached guard.
func (s *Switch) blockUntilChanged(candidates []int) {
	snapshot := make([]sched.Peek[pcu.Data], len(candidates))
	for i, idx := range candidates {
		snapshot[i] = s.inputs[idx].Peek()
	}
	changed := func() bool {
		for i, idx := range candidates {
			p := s.inputs[idx].Peek()
			if p.Kind != snapshot[i].Kind {
				return true
			}
			if p.Kind == sched.PeekNothing && !p.NextPossible.Equal(snapshot[i].NextPossible) {
				return true
			}
		}
		return false
	}
	s.Clock().ParkUntil(changed)
}

// targetsFor looks up the routing table entry for idx, panicking if the
// input is unrouted: receiving data on an unrouted input is a programmer
// error.
func (s *Switch) targetsFor(idx int) []int {
	targets, ok := s.rt.RoutingTable[idx]
	if !ok {
		panic(fmt.Sprintf("xbar %q: received data on unrouted input %d", s.Name(), idx))
	}
	return targets
}

// singleDequeue implements both 1-to-1 and 1-to-many modes: dequeue
// exactly one selected input (lowest index among the available set,
// breaking ties deterministically) and enqueue to every routed target.
// multiEnqueue controls whether the local clock advances once per
// enqueued target (broadcast mode) or once for the whole iteration
// (passthrough mode). Returns false once every input has closed.
func (s *Switch) singleDequeue(multiEnqueue bool) bool {
	avail, ok := s.firstAvailable()
	if !ok {
		return false
	}
	idx := avail[0]

	elem, ok := s.inputs[idx].Dequeue(s.Clock())
	if !ok {
		return true
	}
	s.InvokeHook(akitasim.HookCtx{Domain: s, Pos: HookPosSwitchDequeue, Item: idx})

	for _, out := range s.targetsFor(idx) {
		t := s.Clock().Tick().Add(s.hw.Delay(idx, out))
		s.outputs[out].Enqueue(s.Clock(), sched.NewElement(t, elem.Payload))
		s.InvokeHook(akitasim.HookCtx{Domain: s, Pos: HookPosSwitchEnqueue, Item: out})
		if multiEnqueue {
			s.Clock().IncrCycles(1)
		}
	}
	if !multiEnqueue {
		s.Clock().IncrCycles(1)
	}
	return true
}

// multiDequeueMultiEnqueue implements the many-to-many mode: among the
// inputs tied for earliest availability, it greedily claims inputs in
// ascending index order whose routed target sets are disjoint from
// whatever's already claimed this cycle; an input that conflicts is
// deferred, left undequeued, so it's reconsidered next iteration. This
// resolves the open "what if two inputs route to the same output"
// question by priority-by-index with deferral, rather than serialized
// blocking within the cycle.
func (s *Switch) multiDequeueMultiEnqueue() bool {
	avail, ok := s.firstAvailable()
	if !ok {
		return false
	}

	claimed := make(map[int]struct{})
	var selected []int
	for _, idx := range avail {
		targets := s.targetsFor(idx)
		conflict := false
		for _, out := range targets {
			if _, taken := claimed[out]; taken {
				conflict = true
				break
			}
		}
		if conflict {
			continue
		}
		for _, out := range targets {
			claimed[out] = struct{}{}
		}
		selected = append(selected, idx)
	}

	for _, idx := range selected {
		elem, ok := s.inputs[idx].Dequeue(s.Clock())
		if !ok {
			continue
		}
		s.InvokeHook(akitasim.HookCtx{Domain: s, Pos: HookPosSwitchDequeue, Item: idx})
		for _, out := range s.targetsFor(idx) {
			t := s.Clock().Tick().Add(s.hw.Delay(idx, out))
			s.outputs[out].Enqueue(s.Clock(), sched.NewElement(t, elem.Payload))
			s.InvokeHook(akitasim.HookCtx{Domain: s, Pos: HookPosSwitchEnqueue, Item: out})
		}
	}

	s.Clock().IncrCycles(1)
	return true
}
