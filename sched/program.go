// Package sched is the simulation runtime contract: typed bounded channels
// with timestamps, a per-component virtual clock, peek/dequeue/enqueue with
// backpressure, a program builder, and termination on closed upstreams.
// Every other package in this module (stage, pcu, xbar) consumes and
// produces through it; it has no knowledge of PCUs, switches, or scalars.
package sched

import (
	"fmt"
	"os"
	"sync"

	"github.com/go-logr/logr"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/tebeka/atexit"
)

// Program assembles Contexts into a simulation and runs them to
// termination. It is the Go analogue of the "dam" Rust framework's
// ProgramBuilder this spec's runtime contract describes.
type Program struct {
	mu       sync.Mutex
	children []Context
	log      logr.Logger

	atexitOnce   sync.Once
	lastFailures []string
}

// Option configures a Program at construction.
type Option func(*Program)

// WithLogger sets the Program's logger. It is not passed on to children
// (PCU and Switch take their own through their WithLogger options), and the
// Program itself does not write to it.
func WithLogger(log logr.Logger) Option {
	return func(p *Program) { p.log = log }
}

// NewProgram creates an empty Program.
func NewProgram(opts ...Option) *Program {
	p := &Program{log: logr.Discard()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AddChild registers a component to be run. Returns the Program for
// chaining.
func (p *Program) AddChild(ctx Context) *Program {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.children = append(p.children, ctx)
	return p
}

// Initialize prepares the program to run. Attaching a receiver or sender a
// second time already panics at attach time in the component constructors;
// an endpoint that was never attached is not detected, here or elsewhere.
// Initialize's only job is to register the flush-on-exit diagnostic hook,
// so a host process that calls atexit.Exit mid-simulation still gets the
// failure dump.
func (p *Program) Initialize() (*Program, error) {
	p.atexitOnce.Do(func() {
		atexit.Register(func() {
			p.mu.Lock()
			failures := p.lastFailures
			p.mu.Unlock()
			if len(failures) > 0 {
				fmt.Fprintln(os.Stderr, renderFailures(failures))
			}
		})
	})
	return p, nil
}

// Run executes every child to termination and returns the outcome. An
// engine grants exactly one child's goroutine the turn to run at a time
// (see engine.go); no two children's code ever executes concurrently, so
// the single-threaded cooperative schedule the runtime contract promises
// is physically enforced, not merely an emergent property of how channels
// happen to be used.
func (p *Program) Run() (*Executed, error) {
	p.mu.Lock()
	children := append([]Context(nil), p.children...)
	p.mu.Unlock()

	var failures []string
	for _, c := range children {
		if err := c.Init(); err != nil {
			failures = append(failures, fmt.Sprintf("%s: init error: %v", c.Name(), err))
		}
	}

	eng := newEngine(children)
	runFailures, deadlock := eng.runToCompletion()
	failures = append(failures, runFailures...)
	if deadlock {
		failures = append(failures, "scheduler deadlock: no child could make progress before every child terminated")
	}

	elapsed := Zero()
	for _, c := range children {
		elapsed = elapsed.Max(c.Clock().Tick())
	}

	p.mu.Lock()
	p.lastFailures = failures
	p.mu.Unlock()

	return &Executed{passed: len(failures) == 0, failures: failures, elapsed: elapsed}, nil
}

// Executed is the outcome of a Program.Run.
type Executed struct {
	passed   bool
	failures []string
	elapsed  Time
}

// Passed reports whether every child ran to completion without error.
func (e *Executed) Passed() bool { return e.passed }

// ElapsedCycles reports the maximum virtual time any child reached.
func (e *Executed) ElapsedCycles() Time { return e.elapsed }

// DumpFailures renders recorded failures as a table. Empty if the run
// passed.
func (e *Executed) DumpFailures() string { return renderFailures(e.failures) }

func renderFailures(failures []string) string {
	if len(failures) == 0 {
		return ""
	}
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Failure"})
	for i, f := range failures {
		t.AppendRow(table.Row{i + 1, f})
	}
	return t.Render()
}
