/*
Copyright (C) 2018-2019 ETH Zurich, University of Bologna

Copyright and related rights are licensed under the Solderpad Hardware
License, Version 0.51 (the "License"); you may not use this file except in
compliance with the License. You may obtain a copy of the License at
http://solderpad.org/licenses/SHL-0.51. Unless required by applicable law
or agreed to in writing, software, hardware and materials distributed under
this License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR
CONDITIONS OF ANY KIND, either express or implied. See the License for the
specific language governing permissions and limitations under the License.
*/
package mac

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pulp-platform/hwpe-mac-engine/stream"
)

// bench drives an Engine's links by hand. The testbench plays consumer
// of d and producer of a/b/c: it sets offers and readiness before each
// step, like the neighbouring components would in their evaluate phase.
type bench struct {
	a, b, c, d *stream.Link
	e          *Engine
}

func newBench(cfg Config) *bench {
	tb := &bench{
		a: stream.NewLink("a"),
		b: stream.NewLink("b"),
		c: stream.NewLink("c"),
		d: stream.NewLink("d"),
	}
	tb.e = NewEngine("mac", tb.a, tb.b, tb.c, tb.d)
	tb.e.Ctrl = cfg
	return tb
}

// step runs one full cycle. Link state after the call reflects the
// settled evaluate phase, so Fire() tells what happened on this cycle.
func (tb *bench) step() {
	tb.e.Evaluate()
	tb.e.PositiveEdge()
}

// offerPair drives a and b jointly and returns whether they fired.
func (tb *bench) offerPair(a, b int32) {
	tb.a.Offer(a)
	tb.b.Offer(b)
}

func (tb *bench) idlePair() {
	tb.a.Idle()
	tb.b.Idle()
}

func TestSimpleMulOneTickLatency(t *testing.T) {
	tb := newBench(Config{Enable: true, SimpleMul: true, Shift: 0})
	tb.d.Ready = true

	tb.offerPair(3, 4)
	tb.step()
	require.True(t, tb.a.Fire(), "pair must be admitted")
	require.True(t, tb.b.Fire())
	tb.idlePair()

	// Exactly one tick after admission the product is valid on d.
	tb.step()
	require.True(t, tb.d.Fire())
	require.Equal(t, int32(12), tb.d.Data)
	require.Equal(t, stream.FullStrb, tb.d.Strb)

	// Drained and nothing new admitted: d goes quiet.
	tb.step()
	require.False(t, tb.d.Valid)
}

func TestSimpleMulShift(t *testing.T) {
	tb := newBench(Config{Enable: true, SimpleMul: true, Shift: 2})
	tb.d.Ready = true

	tb.offerPair(8, 8)
	tb.step()
	tb.idlePair()
	tb.step()
	require.True(t, tb.d.Fire())
	require.Equal(t, int32(16), tb.d.Data) // 64 >> 2, truncating
}

func TestJointAdmissionOnly(t *testing.T) {
	tb := newBench(Config{Enable: true, SimpleMul: true})
	tb.d.Ready = true

	// Only a offers: neither port may be ready.
	tb.a.Offer(7)
	tb.b.Idle()
	tb.e.Evaluate()
	require.False(t, tb.a.Ready)
	require.False(t, tb.b.Ready)

	// Neither offering: idle-ready so upstream logic is not stalled.
	tb.a.Idle()
	tb.e.Evaluate()
	require.True(t, tb.a.Ready)
	require.True(t, tb.b.Ready)
	require.True(t, tb.c.Ready)
}

func TestScalarProduct(t *testing.T) {
	tb := newBench(Config{Enable: true, Len: 2, Shift: 0, Start: true})
	tb.d.Ready = true

	// Tick 0: seed and first pair admitted together, counter armed.
	tb.c.Offer(5)
	tb.offerPair(2, 3)
	tb.step()
	require.True(t, tb.c.Fire())
	require.True(t, tb.a.Fire())
	tb.c.Idle()
	tb.e.Ctrl.Start = false
	require.Equal(t, Flags{Count: 1, AccValid: false}, tb.e.Flags())

	// Tick 1: second pair; first product accumulates.
	tb.offerPair(4, 1)
	tb.step()
	tb.idlePair()
	require.Equal(t, Flags{Count: 2, AccValid: false}, tb.e.Flags())

	// Tick 2: second product lands with the counter at len.
	tb.step()
	require.Equal(t, Flags{Count: 2, AccValid: true}, tb.e.Flags())

	// Tick 3: 5 + 2*3 + 4*1 drains.
	tb.step()
	require.True(t, tb.d.Fire())
	require.Equal(t, int32(15), tb.d.Data)
}

func TestScalarProductSeedShift(t *testing.T) {
	// The seed is left-shifted into the accumulator's format and the
	// drain is right-shifted back, so the seed survives unscaled.
	tb := newBench(Config{Enable: true, Len: 1, Shift: 8, Start: true})
	tb.d.Ready = true

	tb.c.Offer(-7)
	tb.offerPair(16, 16) // product 256, shifted out entirely
	tb.step()
	tb.c.Idle()
	tb.idlePair()
	tb.e.Ctrl.Start = false

	tb.step() // accumulate: (-7 << 8) + 256
	tb.step() // drain
	require.True(t, tb.d.Fire())
	require.Equal(t, int32(-6), tb.d.Data) // (-1792 + 256) >> 8
}

func TestBackpressureHoldsOneElement(t *testing.T) {
	tb := newBench(Config{Enable: true, SimpleMul: true})
	tb.d.Ready = false

	// First pair fills the single pipeline slot even with d stalled.
	tb.offerPair(3, 4)
	tb.step()
	require.True(t, tb.a.Fire())

	// Second pair must wait; the held value must not move.
	tb.offerPair(5, 6)
	for i := 0; i < 4; i++ {
		tb.step()
		require.False(t, tb.a.Fire(), "no admission while the slot is full")
		require.True(t, tb.d.Valid)
		require.Equal(t, int32(12), tb.d.Data, "held value must be stable")
	}

	// Releasing ready drains exactly the held value and admits the
	// waiting pair in the same cycle.
	tb.d.Ready = true
	tb.step()
	require.True(t, tb.d.Fire())
	require.Equal(t, int32(12), tb.d.Data)
	require.True(t, tb.a.Fire())
	tb.idlePair()

	tb.step()
	require.True(t, tb.d.Fire())
	require.Equal(t, int32(30), tb.d.Data)
}

func TestClearMidAccumulation(t *testing.T) {
	tb := newBench(Config{Enable: true, Len: 4, Start: true})
	tb.d.Ready = true

	tb.c.Offer(9)
	tb.offerPair(2, 2)
	tb.step()
	tb.c.Idle()
	tb.e.Ctrl.Start = false
	tb.offerPair(3, 3)
	tb.step()
	tb.idlePair()
	require.NotEqual(t, uint32(0), tb.e.Flags().Count)

	// Clear cancels everything in flight, handshakes or not.
	tb.e.Ctrl.Clear = true
	tb.step()
	require.False(t, tb.d.Valid, "clearing engine must not offer discarded data")
	tb.e.Ctrl.Clear = false

	require.Equal(t, Flags{Count: 0, AccValid: false}, tb.e.Flags())
	tb.e.Evaluate()
	require.False(t, tb.d.Valid)
}

func TestEnableFreezesAllState(t *testing.T) {
	tb := newBench(Config{Enable: true, SimpleMul: true})
	tb.d.Ready = true

	tb.offerPair(2, 5)
	tb.step()
	tb.idlePair()
	before := tb.e.Flags()

	// Frozen: no commits, no transfers, offers just wait.
	tb.e.Ctrl.Enable = false
	tb.offerPair(7, 9)
	for i := 0; i < 3; i++ {
		tb.step()
		require.False(t, tb.a.Fire())
		require.False(t, tb.d.Valid)
		require.Equal(t, before, tb.e.Flags())
	}

	// Thawed: the held product drains and the waiting pair enters.
	tb.e.Ctrl.Enable = true
	tb.step()
	require.True(t, tb.d.Fire())
	require.Equal(t, int32(10), tb.d.Data)
	require.True(t, tb.a.Fire())
}

// The length counter advances on every start cycle regardless of any
// handshake. Odd, but the controller's re-arm sequence relies on it.
func TestStartAdvancesCounterWithoutHandshake(t *testing.T) {
	tb := newBench(Config{Enable: true, Len: 8, Start: true})
	for i := 1; i <= 3; i++ {
		tb.step()
		require.Equal(t, uint32(i), tb.e.Flags().Count)
	}
}

func TestLenZeroFirstProductIsValid(t *testing.T) {
	// With len=0 the counter already equals len at reset, so the very
	// first product marks the accumulator valid. Not special-cased.
	tb := newBench(Config{Enable: true, Len: 0})
	tb.d.Ready = true

	tb.offerPair(6, 7)
	tb.step()
	tb.idlePair()
	tb.step()
	require.Equal(t, Flags{Count: 0, AccValid: true}, tb.e.Flags())
	tb.step()
	require.True(t, tb.d.Fire())
	require.Equal(t, int32(42), tb.d.Data)
}

// Every offered pair must be admitted exactly once and in order, for an
// arbitrary pattern of stalls on d. Sources, sink and monitors run
// together with the engine under the two-phase scheduler.
func TestExactlyOnceUnderStalls(t *testing.T) {
	const n = 48
	rng := rand.New(rand.NewSource(7))
	av := make([]int32, n)
	bv := make([]int32, n)
	want := make([]int32, n)
	const shift = 3
	for i := range av {
		av[i] = int32(rng.Uint32())
		bv[i] = int32(rng.Uint32())
		want[i] = int32((int64(av[i]) * int64(bv[i])) >> shift)
	}

	la := stream.NewLink("a")
	lb := stream.NewLink("b")
	lc := stream.NewLink("c")
	ld := stream.NewLink("d")
	srcA := stream.NewSource("src_a", la, av)
	srcB := stream.NewSource("src_b", lb, bv)
	sink := stream.NewSink("snk_d", ld)
	sink.SetStall(func(cycle uint64) bool { return rng.Intn(3) == 0 })
	srcA.SetStall(func(cycle uint64) bool { return rng.Intn(4) == 0 })

	eng := NewEngine("mac", la, lb, lc, ld)
	eng.Ctrl = Config{Enable: true, SimpleMul: true, Shift: shift}

	var sys System
	sys.Add(sink)
	sys.Add(srcA)
	sys.Add(srcB)
	sys.Add(stream.NewMonitor("mon_a", la))
	sys.Add(stream.NewMonitor("mon_b", lb))
	sys.Add(stream.NewMonitor("mon_d", ld))
	sys.Add(eng) // reads upstream valids and downstream ready
	require.NoError(t, sys.Check())
	sys.Reset()

	for cycle := 0; len(sink.Drained()) < n; cycle++ {
		require.Less(t, cycle, 10000, "pipeline wedged")
		sys.Step()
	}
	require.Equal(t, want, sink.Drained())
	require.Equal(t, 0, srcA.Remaining())
	require.Equal(t, 0, srcB.Remaining())
}
