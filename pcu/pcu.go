// Package pcu implements the Pattern Compute Unit: a strictly in-order
// chain of pipeline stages, wired to typed channel endpoints and driven by
// the sched runtime contract.
package pcu

import (
	"fmt"

	"github.com/go-logr/logr"
	akitasim "github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/plasticine/alu"
	"github.com/sarchlab/plasticine/scalar"
	"github.com/sarchlab/plasticine/sched"
	"github.com/sarchlab/plasticine/stage"
)

// HookPosPCUIterate marks the completion of one PCU pipeline iteration,
// the PCU analogue of zeonica's HookPosPortMsgSend instrumentation point.
var HookPosPCUIterate = &akitasim.HookPos{Name: "PCU Iterate"}

// HookPosPCUTerminate marks a PCU's clean shutdown on required-input
// closure.
var HookPosPCUTerminate = &akitasim.HookPos{Name: "PCU Terminate"}

// Data is the payload carried on a PCU's input and output channels: one
// SIMD-width vector of Scalars per port, per cycle.
type Data struct {
	Values []scalar.Scalar
}

// HwConfig lists the ALU hardware slots a PCU physically has, one per
// pipeline stage, in order.
type HwConfig struct {
	ALUConfigs          []alu.HwConfig
	SIMDWidth           int
	NumVectorInputPorts int
}

// RtConfig wires one runtime ALU config per stage, in order. Its length
// must match HwConfig.ALUConfigs.
type RtConfig struct {
	ALUConfigs []alu.RtConfig
}

// PCU is a strictly in-order chain of pipeline stages, each owning one ALU,
// reading a per-port input bundle and producing a per-port output bundle
// every iteration.
type PCU struct {
	akitasim.HookableBase

	sched.Base

	stages  []*stage.Stage
	inputs  []sched.Receiver[Data]
	outputs []sched.Sender[Data]

	simdWidth           int
	numVectorInputPorts int
}

// New builds a PCU. It verifies hw.ALUConfigs and rt.ALUConfigs agree in
// length and that every runtime op is supported by its corresponding
// hardware slot. A shape mismatch or unsupported op is a fatal
// configuration error, detected here rather than at run time.
func New(name string, hw HwConfig, rt RtConfig, inputs []sched.Receiver[Data], outputs []sched.Sender[Data], opts ...Option) (*PCU, error) {
	if len(hw.ALUConfigs) != len(rt.ALUConfigs) {
		return nil, fmt.Errorf("pcu %q: hw has %d ALU configs, rt has %d", name, len(hw.ALUConfigs), len(rt.ALUConfigs))
	}
	if len(hw.ALUConfigs) == 0 {
		return nil, fmt.Errorf("pcu %q: must have at least one stage", name)
	}
	if hw.SIMDWidth <= 0 {
		return nil, fmt.Errorf("pcu %q: SIMDWidth must be positive, got %d", name, hw.SIMDWidth)
	}
	if hw.NumVectorInputPorts <= 0 {
		return nil, fmt.Errorf("pcu %q: NumVectorInputPorts must be positive, got %d", name, hw.NumVectorInputPorts)
	}
	if len(inputs) != hw.NumVectorInputPorts {
		return nil, fmt.Errorf("pcu %q: got %d input receivers, want %d", name, len(inputs), hw.NumVectorInputPorts)
	}

	for i, rtCfg := range rt.ALUConfigs {
		if !hw.ALUConfigs[i].Supports(rtCfg.Op) {
			return nil, fmt.Errorf("pcu %q: stage %d op %v not supported by hardware slot", name, i, rtCfg.Op)
		}
		if rtCfg.Target < 0 || rtCfg.Target >= hw.NumVectorInputPorts {
			return nil, fmt.Errorf("pcu %q: stage %d target register %d out of range [0,%d)", name, i, rtCfg.Target, hw.NumVectorInputPorts)
		}
	}
	if len(rt.ALUConfigs[0].InputRegs()) == 0 {
		return nil, fmt.Errorf("pcu %q: stage 0 reads no PREV/PREV_BELOW port; Run would never observe upstream closure", name)
	}

	p := &PCU{
		Base:                sched.NewBase(name, logr.Discard()),
		inputs:              inputs,
		outputs:             outputs,
		simdWidth:           hw.SIMDWidth,
		numVectorInputPorts: hw.NumVectorInputPorts,
	}
	for _, opt := range opts {
		opt(p)
	}

	for _, rtCfg := range rt.ALUConfigs {
		p.stages = append(p.stages, stage.New(rtCfg, hw.SIMDWidth, hw.NumVectorInputPorts))
	}

	for _, in := range p.inputs {
		in.AttachReceiver(p.Clock())
	}
	for _, out := range p.outputs {
		out.AttachSender(p.Clock())
	}

	return p, nil
}

// Option configures optional PCU behavior at construction.
type Option func(*PCU)

// WithLogger stores a logger in the PCU's Base.Log. Run does not write to
// it.
func WithLogger(log logr.Logger) Option {
	return func(p *PCU) { p.Log = log }
}

// Init is a no-op: a PCU has no side-effecting setup beyond construction.
func (p *PCU) Init() error { return nil }

// Run dequeues one bundle per required input port, folds it through every
// stage in order, and enqueues the result to each output port, until a
// required input closes; it then closes every output sender and returns.
func (p *PCU) Run() error {
	defer func() {
		for _, out := range p.outputs {
			out.Close()
		}
	}()

	requiredPorts := p.stages[0].Cfg().InputRegs()

	for {
		tOld := p.Clock().Tick()

		bundle := make([][]scalar.Scalar, p.numVectorInputPorts)
		for port := range bundle {
			bundle[port] = make([]scalar.Scalar, p.simdWidth)
			for lane := range bundle[port] {
				bundle[port][lane] = scalar.I32(0)
			}
		}

		tTick := tOld
		closed := false
		for _, port := range requiredPorts {
			elem, ok := p.inputs[port].Dequeue(p.Clock())
			if !ok {
				closed = true
				break
			}
			if len(elem.Payload.Values) != p.simdWidth {
				panic(fmt.Sprintf("pcu %q: input port %d delivered %d lanes, want %d", p.Name(), port, len(elem.Payload.Values), p.simdWidth))
			}
			bundle[port] = elem.Payload.Values
			tTick = tTick.Max(elem.Time)
		}
		if closed {
			p.InvokeHook(akitasim.HookCtx{Domain: p, Pos: HookPosPCUTerminate})
			return nil
		}

		current := bundle
		tCurrent := stage.Time(tTick.Cycles())
		for _, st := range p.stages {
			next, tNext := st.Iterate(current, tCurrent)
			current, tCurrent = next, tNext
		}
		tFinal := sched.At(int64(tCurrent))

		for i, out := range p.outputs {
			if i >= len(current) || len(current[i]) == 0 {
				continue
			}
			lanes := make([]scalar.Scalar, len(current[i]))
			copy(lanes, current[i])
			out.Enqueue(p.Clock(), sched.NewElement(tFinal, Data{Values: lanes}))
		}

		p.InvokeHook(akitasim.HookCtx{Domain: p, Pos: HookPosPCUIterate, Item: tFinal})

		// Spec step 8 advances the PCU's own clock by exactly one cycle
		// here, not to tFinal: the stage chain is fully pipelined, so a
		// new bundle is accepted every cycle regardless of how long this
		// one took to drain through every stage. tFinal still reaches
		// downstream consumers via the enqueued element's own timestamp;
		// letting it also drive this PCU's own clock would serialize
		// iterations that should overlap.
		p.Clock().IncrCycles(1)
	}
}
