// Package topology provides a fluent builder for assembling a simulation's
// components (generators, PCUs, switches, checkers) into a runnable
// sched.Program, in the same value-receiver "With*" style zeonica's
// config.DeviceBuilder uses to assemble a CGRA device.
package topology

import "github.com/sarchlab/plasticine/sched"

// Builder accumulates child components for a Program. Each With* method
// returns a new Builder value so calls chain; the underlying Program is
// shared, since a Program's identity (and its registered components) is
// what the caller ultimately wants to keep.
type Builder struct {
	program *sched.Program
}

// NewBuilder creates an empty Builder wrapping a fresh Program.
func NewBuilder(opts ...sched.Option) Builder {
	return Builder{program: sched.NewProgram(opts...)}
}

// WithChild registers one component.
func (b Builder) WithChild(ctx sched.Context) Builder {
	b.program.AddChild(ctx)
	return b
}

// WithChildren registers several components at once.
func (b Builder) WithChildren(ctxs ...sched.Context) Builder {
	for _, ctx := range ctxs {
		b.program.AddChild(ctx)
	}
	return b
}

// Build initializes the underlying Program (sched.Program.Initialize) and
// returns it. It performs no wiring checks of its own.
func (b Builder) Build() (*sched.Program, error) {
	return b.program.Initialize()
}
