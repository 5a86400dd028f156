// Package scalar defines the tagged numeric value that flows through a PCU
// pipeline: a 32-bit integer, a 32-bit float, a single bit, a wildcard
// (DontCare) used by test checkers, or Empty (no value produced).
package scalar

import "fmt"

// Kind discriminates the variant held by a Scalar.
type Kind int

const (
	KindI32 Kind = iota
	KindFP32
	KindBit
	KindDontCare
	KindEmpty
)

// String names a Kind for diagnostics.
func (k Kind) String() string {
	switch k {
	case KindI32:
		return "I32"
	case KindFP32:
		return "FP32"
	case KindBit:
		return "Bit"
	case KindDontCare:
		return "DontCare"
	case KindEmpty:
		return "Empty"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Scalar is a tagged value. The zero value is I32(0), which doubles as the
// neutral pad written into unselected registers and input ports.
type Scalar struct {
	kind Kind
	i32  int32
	f32  float32
	bit  bool
}

// I32 wraps a 32-bit integer.
func I32(v int32) Scalar { return Scalar{kind: KindI32, i32: v} }

// FP32 wraps a 32-bit float.
func FP32(v float32) Scalar { return Scalar{kind: KindFP32, f32: v} }

// Bit wraps a single boolean bit.
func Bit(v bool) Scalar { return Scalar{kind: KindBit, bit: v} }

// DontCare returns the wildcard value: compares equal to any defined value.
func DontCare() Scalar { return Scalar{kind: KindDontCare} }

// Empty returns the absent-value marker.
func Empty() Scalar { return Scalar{kind: KindEmpty} }

// Kind reports which variant this Scalar holds.
func (s Scalar) Kind() Kind { return s.kind }

// Width returns the bit width of the value (1 for Bit, 32 for I32/FP32).
// ok is false for DontCare and Empty, for which width is undefined.
func (s Scalar) Width() (width int, ok bool) {
	switch s.kind {
	case KindBit:
		return 1, true
	case KindI32, KindFP32:
		return 32, true
	default:
		return 0, false
	}
}

// AsI32 extracts the int32 payload; ok is false if the Kind is not I32.
func (s Scalar) AsI32() (int32, bool) {
	if s.kind != KindI32 {
		return 0, false
	}
	return s.i32, true
}

// AsFP32 extracts the float32 payload; ok is false if the Kind is not FP32.
func (s Scalar) AsFP32() (float32, bool) {
	if s.kind != KindFP32 {
		return 0, false
	}
	return s.f32, true
}

// AsBit extracts the bool payload; ok is false if the Kind is not Bit.
func (s Scalar) AsBit() (bool, bool) {
	if s.kind != KindBit {
		return false, false
	}
	return s.bit, true
}

// Equal reports value equality. DontCare compares equal to anything (the
// wildcard used by test checkers); otherwise equality requires the same
// Kind and, for defined payload kinds, the same payload. Two distinct
// defined kinds (e.g. I32 vs FP32) are never equal.
func (s Scalar) Equal(other Scalar) bool {
	if s.kind == KindDontCare || other.kind == KindDontCare {
		return true
	}
	if s.kind != other.kind {
		return false
	}
	switch s.kind {
	case KindI32:
		return s.i32 == other.i32
	case KindFP32:
		return s.f32 == other.f32
	case KindBit:
		return s.bit == other.bit
	default: // Empty == Empty
		return true
	}
}

// String renders the Scalar for diagnostics and log lines.
func (s Scalar) String() string {
	switch s.kind {
	case KindI32:
		return fmt.Sprintf("I32(%d)", s.i32)
	case KindFP32:
		return fmt.Sprintf("FP32(%g)", s.f32)
	case KindBit:
		return fmt.Sprintf("Bit(%t)", s.bit)
	case KindDontCare:
		return "DontCare"
	default:
		return "Empty"
	}
}
