// Package stage implements one ALU layer of a PCU pipeline: a SIMD-wide
// register file, per-lane operand resolution from the previous stage's
// output (or this stage's own feedback), and one cycle's worth of
// pipelining-with-latency bookkeeping.
package stage

import (
	"fmt"

	"github.com/sarchlab/plasticine/alu"
	"github.com/sarchlab/plasticine/scalar"
)

// Time is a non-negative cycle count. Stage arithmetic only ever adds a
// non-negative delay, so plain int64 cycle counts suffice here; the
// infinite sentinel lives in package sched, where it is actually needed for
// switch peek semantics.
type Time int64

// Stage owns one ALURtConfig, replicated across SIMD lanes, plus the
// register file it writes into. data is indexed [register][lane]: register
// index matches the indices ALUInput selectors address, lane is the SIMD
// lane. See DESIGN.md for why this orientation was chosen over a
// lane-major register file.
type Stage struct {
	cfg           alu.RtConfig
	simdWidth     int
	registerDepth int
	data          [][]scalar.Scalar
}

// New creates a pipeline stage with a zero-initialized register file.
func New(cfg alu.RtConfig, simdWidth, registerDepth int) *Stage {
	if cfg.Target < 0 || cfg.Target >= registerDepth {
		panic(fmt.Sprintf("stage: target register %d out of range [0,%d)", cfg.Target, registerDepth))
	}
	data := make([][]scalar.Scalar, registerDepth)
	for r := range data {
		data[r] = make([]scalar.Scalar, simdWidth)
		for lane := range data[r] {
			data[r][lane] = scalar.I32(0)
		}
	}
	return &Stage{
		cfg:           cfg,
		simdWidth:     simdWidth,
		registerDepth: registerDepth,
		data:          data,
	}
}

// Cfg returns the stage's ALU runtime config.
func (s *Stage) Cfg() alu.RtConfig { return s.cfg }

// Delay returns the cycle latency this stage's ALU op imposes.
func (s *Stage) Delay() int { return s.cfg.Op.Delay() }

// SIMDWidth returns the number of parallel lanes this stage operates on.
func (s *Stage) SIMDWidth() int { return s.simdWidth }

// RegisterDepth returns the number of registers held per lane.
func (s *Stage) RegisterDepth() int { return s.registerDepth }

// Data returns the stage's current register file, indexed [register][lane].
// Callers must not mutate the returned slices.
func (s *Stage) Data() [][]scalar.Scalar { return s.data }

// Iterate runs one pipeline step. prev is the previous stage's output (or,
// for the first stage in a PCU, the PCU's per-port input bundle), indexed
// [register/port][lane]. tIn is the virtual time at which prev became
// available. It returns the new register file and the output time
// tIn + op.Delay().
func (s *Stage) Iterate(prev [][]scalar.Scalar, tIn Time) ([][]scalar.Scalar, Time) {
	if len(prev) != s.registerDepth {
		panic(fmt.Sprintf("stage: prev has %d rows, want %d", len(prev), s.registerDepth))
	}

	next := make([][]scalar.Scalar, s.registerDepth)
	for r := range next {
		next[r] = make([]scalar.Scalar, s.simdWidth)
		for lane := range next[r] {
			next[r][lane] = scalar.I32(0)
		}
	}

	for lane := 0; lane < s.simdWidth; lane++ {
		lhs := s.getInput(s.cfg.InA, prev, lane)
		rhs := s.getInput(s.cfg.InB, prev, lane)
		result := s.cfg.Op.Apply(lhs, rhs)
		next[s.cfg.Target][lane] = result
	}

	s.data = next
	return s.data, tIn + Time(s.cfg.Op.Delay())
}

// getInput resolves one ALU operand for the given lane.
func (s *Stage) getInput(in alu.Input, prev [][]scalar.Scalar, lane int) scalar.Scalar {
	switch in.Kind() {
	case alu.Prev:
		i := in.Index()
		if i < 0 || i >= len(prev) {
			panic(fmt.Sprintf("stage: PREV(%d) out of range [0,%d)", i, len(prev)))
		}
		return prev[i][lane]
	case alu.PrevBelow:
		i := in.Index()
		if i < 0 || i >= len(prev) {
			panic(fmt.Sprintf("stage: PREV_BELOW(%d) out of range [0,%d)", i, len(prev)))
		}
		if lane+1 >= s.simdWidth {
			panic(fmt.Sprintf("stage: PREV_BELOW(%d) at lane %d has no lane below (simd width %d)", i, lane, s.simdWidth))
		}
		return prev[i][lane+1]
	case alu.Next:
		i := in.Index()
		if i < 0 || i >= s.registerDepth {
			panic(fmt.Sprintf("stage: NEXT(%d) out of range [0,%d)", i, s.registerDepth))
		}
		return s.data[i][lane]
	case alu.Constant:
		return in.Constant()
	default:
		panic(fmt.Sprintf("stage: unknown ALU input selector %v", in.Kind()))
	}
}
