package scenarios_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/go-logr/logr"

	"github.com/sarchlab/plasticine/alu"
	"github.com/sarchlab/plasticine/pcu"
	"github.com/sarchlab/plasticine/scalar"
	"github.com/sarchlab/plasticine/sched"
	"github.com/sarchlab/plasticine/topology"
	"github.com/sarchlab/plasticine/xbar"
)

func lane1(v int32) pcu.Data { return pcu.Data{Values: []scalar.Scalar{scalar.I32(v)}} }

func sameData(a, b pcu.Data) bool {
	if len(a.Values) != len(b.Values) {
		return false
	}
	for i := range a.Values {
		if !a.Values[i].Equal(b.Values[i]) {
			return false
		}
	}
	return true
}

var _ = Describe("S1 Simple PCU MUL", func() {
	It("computes i*(2i) over a single MUL_I32 stage", func() {
		hw := pcu.HwConfig{
			ALUConfigs:          []alu.HwConfig{alu.NewHwConfig(alu.MulI32)},
			SIMDWidth:           1,
			NumVectorInputPorts: 2,
		}
		rt := pcu.RtConfig{
			ALUConfigs: []alu.RtConfig{
				{Op: alu.MulI32, InA: alu.PrevInput(0), InB: alu.PrevInput(1), Target: 0},
			},
		}

		snd0, i0 := sched.Bounded[pcu.Data](1, "port0")
		snd1, i1 := sched.Bounded[pcu.Data](1, "port1")
		out, rcv := sched.Bounded[pcu.Data](1, "out")

		unit, err := pcu.New("mul", hw, rt, []sched.Receiver[pcu.Data]{i0, i1}, []sched.Sender[pcu.Data]{out})
		Expect(err).NotTo(HaveOccurred())

		var port0, port1, want []pcu.Data
		for x := int32(0); x < 10; x++ {
			port0 = append(port0, lane1(x))
			port1 = append(port1, lane1(2*x))
			want = append(want, lane1(x*2*x))
		}

		prog, err := topology.NewBuilder().
			WithChild(sched.NewGenerator("gen0", snd0, port0)).
			WithChild(sched.NewGenerator("gen1", snd1, port1)).
			WithChild(sched.NewChecker("chk", rcv, want, sameData)).
			WithChild(unit).
			Build()
		Expect(err).NotTo(HaveOccurred())

		executed, err := prog.Run()
		Expect(err).NotTo(HaveOccurred())
		Expect(executed.Passed()).To(BeTrue(), executed.DumpFailures())
	})
})

var _ = Describe("S2 Dot-product network", func() {
	It("computes i*(10+i) + (20+i)*(30+i) across two multiplier PCUs, a switch, and a summing PCU", func() {
		const numElements = 10
		const switchDelay = 4

		hw := pcu.HwConfig{
			ALUConfigs:          []alu.HwConfig{alu.NewHwConfig(alu.AddI32, alu.MulI32)},
			SIMDWidth:           1,
			NumVectorInputPorts: 2,
		}
		mulRt := pcu.RtConfig{
			ALUConfigs: []alu.RtConfig{
				{Op: alu.MulI32, InA: alu.PrevInput(0), InB: alu.PrevInput(1), Target: 0},
			},
		}
		addRt := pcu.RtConfig{
			ALUConfigs: []alu.RtConfig{
				{Op: alu.AddI32, InA: alu.PrevInput(0), InB: alu.PrevInput(1), Target: 0},
			},
		}

		snd0, i0 := sched.Bounded[pcu.Data](8, "g0")
		snd1, i1 := sched.Bounded[pcu.Data](8, "g1")
		snd2, i2 := sched.Bounded[pcu.Data](8, "g2")
		snd3, i3 := sched.Bounded[pcu.Data](8, "g3")

		mul1Out, swIn0 := sched.Bounded[pcu.Data](8, "mul1-out")
		mul2Out, swIn1 := sched.Bounded[pcu.Data](8, "mul2-out")
		swOut0, sumIn0 := sched.Bounded[pcu.Data](8, "sw-out0")
		swOut1, sumIn1 := sched.Bounded[pcu.Data](8, "sw-out1")
		sumOut, rcv := sched.Bounded[pcu.Data](8, "sum-out")

		mul1, err := pcu.New("mul1", hw, mulRt, []sched.Receiver[pcu.Data]{i0, i1}, []sched.Sender[pcu.Data]{mul1Out})
		Expect(err).NotTo(HaveOccurred())
		mul2, err := pcu.New("mul2", hw, mulRt, []sched.Receiver[pcu.Data]{i2, i3}, []sched.Sender[pcu.Data]{mul2Out})
		Expect(err).NotTo(HaveOccurred())
		sum, err := pcu.New("sum", hw, addRt, []sched.Receiver[pcu.Data]{sumIn0, sumIn1}, []sched.Sender[pcu.Data]{sumOut})
		Expect(err).NotTo(HaveOccurred())

		sw, err := xbar.New("sw", xbar.HwConfig{
			SIMDWidth:  1,
			NumInputs:  2,
			NumOutputs: 2,
			Mode:       xbar.SingleEnqueueSingleDequeue,
			Delay:      func(int, int) int { return switchDelay },
		}, xbar.RtConfig{RoutingTable: map[int][]int{0: {0}, 1: {1}}},
			[]sched.Receiver[pcu.Data]{swIn0, swIn1}, []sched.Sender[pcu.Data]{swOut0, swOut1})
		Expect(err).NotTo(HaveOccurred())

		var g0, g1, g2, g3, want []pcu.Data
		for x := int32(0); x < numElements; x++ {
			g0 = append(g0, lane1(x))
			g1 = append(g1, lane1(10+x))
			g2 = append(g2, lane1(20+x))
			g3 = append(g3, lane1(30+x))
			want = append(want, lane1(x*(10+x)+(20+x)*(30+x)))
		}

		prog, err := topology.NewBuilder().
			WithChildren(
				sched.NewGenerator("gen0", snd0, g0),
				sched.NewGenerator("gen1", snd1, g1),
				sched.NewGenerator("gen2", snd2, g2),
				sched.NewGenerator("gen3", snd3, g3),
				sched.NewChecker("chk", rcv, want, sameData),
				mul1, mul2, sum, sw,
			).Build()
		Expect(err).NotTo(HaveOccurred())

		executed, err := prog.Run()
		Expect(err).NotTo(HaveOccurred())
		Expect(executed.Passed()).To(BeTrue(), executed.DumpFailures())

		// Exact count per spec.md §9 property 9 / §8 S2 and
		// original_source/src/main.rs's switch_and_pcu_test: the switch
		// forwards the 2*numElements products one per cycle, starting
		// once the first MUL_I32 result is available; the last one then
		// pays the switch-hop delay, the ADD_I32 delay, and one checker
		// cycle: MUL + (2N-1) + switch + ADD + 1 == 2N + ADD + MUL + switch.
		wantElapsed := int64(numElements)*2 + int64(alu.AddI32.Delay()) + int64(alu.MulI32.Delay()) + int64(switchDelay)
		Expect(executed.ElapsedCycles().Cycles()).To(Equal(wantElapsed))
	})
})

var _ = Describe("S3 Broadcast switch", func() {
	It("delivers the same input sequence to every broadcast target, in order", func() {
		snd, in := sched.Bounded[pcu.Data](8, "in")
		out0, rcv0 := sched.Bounded[pcu.Data](8, "out0")
		out1, rcv1 := sched.Bounded[pcu.Data](8, "out1")

		sw, err := xbar.New("broadcast", xbar.HwConfig{
			SIMDWidth: 1, NumInputs: 1, NumOutputs: 2, Mode: xbar.SingleEnqueueSingleDequeue,
		}, xbar.RtConfig{RoutingTable: map[int][]int{0: {0, 1}}},
			[]sched.Receiver[pcu.Data]{in}, []sched.Sender[pcu.Data]{out0, out1})
		Expect(err).NotTo(HaveOccurred())

		var want []pcu.Data
		for x := int32(0); x < 10; x++ {
			want = append(want, lane1(x))
		}

		prog, err := topology.NewBuilder().
			WithChildren(
				sched.NewGenerator("gen", snd, want),
				sched.NewChecker("chk0", rcv0, want, sameData),
				sched.NewChecker("chk1", rcv1, want, sameData),
				sw,
			).Build()
		Expect(err).NotTo(HaveOccurred())

		executed, err := prog.Run()
		Expect(err).NotTo(HaveOccurred())
		Expect(executed.Passed()).To(BeTrue(), executed.DumpFailures())
	})
})

// slowChecker adds one artificial cycle of consumption latency per
// dequeued element, exercising genuine backpressure against a bounded
// upstream buffer rather than relying on incidental goroutine scheduling.
type slowChecker struct {
	sched.Base
	in   sched.Receiver[int]
	want []int
}

func newSlowChecker(name string, in sched.Receiver[int], want []int) *slowChecker {
	c := &slowChecker{Base: sched.NewBase(name, logr.Discard()), in: in, want: want}
	in.AttachReceiver(c.Clock())
	return c
}

func (c *slowChecker) Init() error { return nil }

func (c *slowChecker) Run() error {
	for _, want := range c.want {
		elem, ok := c.in.Dequeue(c.Clock())
		if !ok {
			return errClosedEarly
		}
		if elem.Payload != want {
			return errMismatch
		}
		c.Clock().IncrCycles(1)
	}
	return nil
}

var (
	errClosedEarly = fmtError("slowChecker: channel closed early")
	errMismatch    = fmtError("slowChecker: value mismatch")
)

type fmtError string

func (e fmtError) Error() string { return string(e) }

var _ = Describe("S4 Backpressured pipeline", func() {
	It("delivers every value in order through a small bounded buffer against a slow consumer", func() {
		const n = 1000
		snd, rcv := sched.Bounded[int](8, "backpressure")

		values := make([]int, n)
		for i := range values {
			values[i] = i
		}

		prog, err := topology.NewBuilder().
			WithChildren(
				sched.NewGenerator("gen", snd, values),
				newSlowChecker("slow-chk", rcv, values),
			).Build()
		Expect(err).NotTo(HaveOccurred())

		executed, err := prog.Run()
		Expect(err).NotTo(HaveOccurred())
		Expect(executed.Passed()).To(BeTrue(), executed.DumpFailures())
	})
})

var _ = Describe("S5 Early closure", func() {
	It("terminates the PCU cleanly once a required input closes, after emitting every valid output", func() {
		hw := pcu.HwConfig{
			ALUConfigs:          []alu.HwConfig{alu.NewHwConfig(alu.AddI32)},
			SIMDWidth:           1,
			NumVectorInputPorts: 2,
		}
		rt := pcu.RtConfig{
			ALUConfigs: []alu.RtConfig{
				{Op: alu.AddI32, InA: alu.PrevInput(0), InB: alu.PrevInput(1), Target: 0},
			},
		}

		snd0, i0 := sched.Bounded[pcu.Data](1, "in0")
		snd1, i1 := sched.Bounded[pcu.Data](1, "in1")
		out, rcv := sched.Bounded[pcu.Data](1, "out")

		unit, err := pcu.New("early-close", hw, rt, []sched.Receiver[pcu.Data]{i0, i1}, []sched.Sender[pcu.Data]{out})
		Expect(err).NotTo(HaveOccurred())

		var port0, port1, want []pcu.Data
		for x := int32(0); x < 5; x++ {
			port0 = append(port0, lane1(x))
			port1 = append(port1, lane1(x))
			want = append(want, lane1(2*x))
		}

		prog, err := topology.NewBuilder().
			WithChildren(
				sched.NewGenerator("gen0", snd0, port0),
				sched.NewGenerator("gen1", snd1, port1),
				sched.NewChecker("chk", rcv, want, sameData),
				unit,
			).Build()
		Expect(err).NotTo(HaveOccurred())

		executed, err := prog.Run()
		Expect(err).NotTo(HaveOccurred())
		Expect(executed.Passed()).To(BeTrue(), executed.DumpFailures())
	})
})
