package alu

import "github.com/sarchlab/plasticine/scalar"

// InputKind discriminates an Input selector's variant.
type InputKind int

const (
	Prev InputKind = iota
	PrevBelow
	Next
	Constant
)

// Input selects where one ALU operand comes from.
type Input struct {
	kind     InputKind
	index    int
	constant scalar.Scalar
}

// PrevInput selects register i of the previous stage's output (or, for the
// first stage, input port i of the PCU's port bundle).
func PrevInput(i int) Input { return Input{kind: Prev, index: i} }

// PrevBelowInput selects register i of the previous stage's output, but
// read from the SIMD lane below the current one (lane+1).
func PrevBelowInput(i int) Input { return Input{kind: PrevBelow, index: i} }

// NextInput selects this stage's own register i from *before* this
// iteration's update: feedback from the previous iteration.
func NextInput(i int) Input { return Input{kind: Next, index: i} }

// ConstInput selects a compile-time literal.
func ConstInput(v scalar.Scalar) Input { return Input{kind: Constant, constant: v} }

// Kind reports the selector's variant.
func (in Input) Kind() InputKind { return in.kind }

// Index reports the register/port index for Prev/PrevBelow/Next selectors.
// Meaningless for Constant.
func (in Input) Index() int { return in.index }

// Constant reports the literal value for a Constant selector. Meaningless
// for the other variants.
func (in Input) Constant() scalar.Scalar { return in.constant }

// RtConfig wires one ALU's operands and destination register.
type RtConfig struct {
	Op     Op
	InA    Input
	InB    Input
	Target int
}

// InputRegs returns the set of previous-stage register/port indices this
// config reads from: the indices appearing in PREV/PREV_BELOW
// selectors. NEXT is stage-local feedback and CONSTANT is a literal, so
// neither contributes: a PCU uses this set to decide which input ports it
// must actually dequeue from.
func (c RtConfig) InputRegs() []int {
	var regs []int
	seen := make(map[int]struct{})
	add := func(in Input) {
		switch in.kind {
		case Prev, PrevBelow:
			if _, ok := seen[in.index]; !ok {
				seen[in.index] = struct{}{}
				regs = append(regs, in.index)
			}
		}
	}
	add(c.InA)
	add(c.InB)
	return regs
}
