// Package alu defines the ALU operation set, its per-op latency, pure
// evaluation over two scalars, and the selectors/configs a pipeline stage
// uses to wire an ALU's operands to register-file locations.
package alu

import (
	"fmt"

	"github.com/sarchlab/plasticine/scalar"
)

// Op is one of the eight supported arithmetic operations.
type Op int

const (
	AddI32 Op = iota
	SubI32
	MulI32
	DivI32
	AddFP32
	SubFP32
	MulFP32
	DivFP32
)

func (op Op) String() string {
	switch op {
	case AddI32:
		return "ADD_I32"
	case SubI32:
		return "SUB_I32"
	case MulI32:
		return "MUL_I32"
	case DivI32:
		return "DIV_I32"
	case AddFP32:
		return "ADD_FP32"
	case SubFP32:
		return "SUB_FP32"
	case MulFP32:
		return "MUL_FP32"
	case DivFP32:
		return "DIV_FP32"
	default:
		return fmt.Sprintf("Op(%d)", int(op))
	}
}

// delayTable holds the static per-op latency in cycles. These are design
// constants, not measured values.
var delayTable = map[Op]int{
	AddI32:  1,
	SubI32:  1,
	MulI32:  2,
	DivI32:  4,
	AddFP32: 2,
	SubFP32: 2,
	MulFP32: 3,
	DivFP32: 5,
}

// Delay returns the op's fixed latency in cycles.
func (op Op) Delay() int {
	d, ok := delayTable[op]
	if !ok {
		panic(fmt.Sprintf("alu: unknown op %v", op))
	}
	return d
}

// behavior implements one op's pure evaluation, already matched against its
// expected scalar Kind pair by Apply.
type behavior func(lhs, rhs scalar.Scalar) scalar.Scalar

// applyTable dispatches by op, the same "name maps to behavior" idiom the
// ISA registry uses, just keyed by the Op enum instead of an instruction
// name string.
var applyTable = map[Op]behavior{
	AddI32: func(lhs, rhs scalar.Scalar) scalar.Scalar {
		x, y := mustI32(lhs), mustI32(rhs)
		return scalar.I32(x + y)
	},
	SubI32: func(lhs, rhs scalar.Scalar) scalar.Scalar {
		x, y := mustI32(lhs), mustI32(rhs)
		return scalar.I32(x - y)
	},
	MulI32: func(lhs, rhs scalar.Scalar) scalar.Scalar {
		x, y := mustI32(lhs), mustI32(rhs)
		return scalar.I32(x * y)
	},
	DivI32: func(lhs, rhs scalar.Scalar) scalar.Scalar {
		x, y := mustI32(lhs), mustI32(rhs)
		return scalar.I32(x / y)
	},
	AddFP32: func(lhs, rhs scalar.Scalar) scalar.Scalar {
		x, y := mustFP32(lhs), mustFP32(rhs)
		return scalar.FP32(x + y)
	},
	SubFP32: func(lhs, rhs scalar.Scalar) scalar.Scalar {
		x, y := mustFP32(lhs), mustFP32(rhs)
		return scalar.FP32(x - y)
	},
	MulFP32: func(lhs, rhs scalar.Scalar) scalar.Scalar {
		x, y := mustFP32(lhs), mustFP32(rhs)
		return scalar.FP32(x * y)
	},
	DivFP32: func(lhs, rhs scalar.Scalar) scalar.Scalar {
		x, y := mustFP32(lhs), mustFP32(rhs)
		return scalar.FP32(x / y)
	},
}

func mustI32(s scalar.Scalar) int32 {
	v, ok := s.AsI32()
	if !ok {
		panic(fmt.Sprintf("alu: expected I32 operand, got %v", s))
	}
	return v
}

func mustFP32(s scalar.Scalar) float32 {
	v, ok := s.AsFP32()
	if !ok {
		panic(fmt.Sprintf("alu: expected FP32 operand, got %v", s))
	}
	return v
}

// Apply evaluates the op over two scalars. Mismatched operand variants for
// the op (e.g. feeding I32 operands to an FP32 op) are a programmer error
// and panic rather than propagate corrupt state.
func (op Op) Apply(lhs, rhs scalar.Scalar) scalar.Scalar {
	fn, ok := applyTable[op]
	if !ok {
		panic(fmt.Sprintf("alu: unsupported op %v", op))
	}
	return fn(lhs, rhs)
}

// HwConfig lists the ops a physical ALU slot supports.
type HwConfig struct {
	SupportedOps map[Op]struct{}
}

// NewHwConfig builds a HwConfig from a list of supported ops.
func NewHwConfig(ops ...Op) HwConfig {
	set := make(map[Op]struct{}, len(ops))
	for _, op := range ops {
		set[op] = struct{}{}
	}
	return HwConfig{SupportedOps: set}
}

// Supports reports whether op is in the hardware slot's supported set.
func (h HwConfig) Supports(op Op) bool {
	_, ok := h.SupportedOps[op]
	return ok
}
