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

// Package top wires the whole accelerator model together: memory-fed
// stream sources through FIFOs into the MAC engine, the drained results
// back out through a FIFO into a store sink, with the controller FSM and
// the uloop address sequencer orchestrating one job.
package top

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/pulp-platform/hwpe-mac-engine/ctrl"
	"github.com/pulp-platform/hwpe-mac-engine/golden"
	"github.com/pulp-platform/hwpe-mac-engine/mac"
	"github.com/pulp-platform/hwpe-mac-engine/stream"
	"github.com/pulp-platform/hwpe-mac-engine/uloop"
)

// DefaultFifoDepth matches the shallow stream FIFOs of the original
// design.
const DefaultFifoDepth = 4

// Params describes one job run.
type Params struct {
	Job ctrl.JobConfig
	Mem []int32 // word-addressed backing memory, read and written

	// Program and Ranges configure the address sequencer. Zero values
	// select the default single-loop microcode over NbIter iterations.
	Program *uloop.Program
	Ranges  []uint32

	FifoDepth int

	// Optional stall patterns for the memory side, used to exercise
	// backpressure.
	SourceStall stream.StallFn
	SinkStall   stream.StallFn
}

// System is a fully wired accelerator model.
type System struct {
	clk mac.System

	Eng *mac.Engine
	Ctl *ctrl.Controller

	sink  *stream.Sink
	mem   []int32
	job   ctrl.JobConfig
	aVals []int32
	bVals []int32
	cVals []int32
	dAddr []uint32
}

// Build gathers the element streams for the job through the uloop
// sequencer, then constructs and wires all components. A component whose
// evaluation reads another's evaluated outputs registers after it, so
// one pass settles every valid and ready in the system; the FIFOs'
// registered pop faces additionally require their consumers to clock
// first (see the registration block below).
func Build(p Params) (*System, error) {
	if err := p.Job.Validate(); err != nil {
		return nil, err
	}
	depth := p.FifoDepth
	if depth == 0 {
		depth = DefaultFifoDepth
	}

	s := &System{mem: p.Mem, job: p.Job}
	if err := s.gather(p); err != nil {
		return nil, err
	}

	linkAIn := stream.NewLink("a_mem")
	linkBIn := stream.NewLink("b_mem")
	linkCIn := stream.NewLink("c_mem")
	linkA := stream.NewLink("a")
	linkB := stream.NewLink("b")
	linkC := stream.NewLink("c")
	linkD := stream.NewLink("d")
	linkDOut := stream.NewLink("d_mem")

	// The seed stream is paced per pass by the controller, never by the
	// user stall pattern: a seed arriving after its pass's first product
	// would reseed the accumulator and discard the partial sum.
	srcA := stream.NewSource("src_a", linkAIn, s.aVals)
	srcB := stream.NewSource("src_b", linkBIn, s.bVals)
	srcC := stream.NewSource("src_c", linkCIn, s.cVals)
	if p.SourceStall != nil {
		srcA.SetStall(p.SourceStall)
		srcB.SetStall(p.SourceStall)
	}

	fifoA, err := stream.NewFifo("fifo_a", depth, linkAIn, linkA)
	if err != nil {
		return nil, err
	}
	fifoB, err := stream.NewFifo("fifo_b", depth, linkBIn, linkB)
	if err != nil {
		return nil, err
	}
	fifoC, err := stream.NewFifo("fifo_c", depth, linkCIn, linkC)
	if err != nil {
		return nil, err
	}
	fifoD, err := stream.NewFifo("fifo_d", depth, linkD, linkDOut)
	if err != nil {
		return nil, err
	}

	s.Eng = mac.NewEngine("mac", linkA, linkB, linkC, linkD)
	s.sink = stream.NewSink("snk_d", linkDOut)
	if p.SinkStall != nil {
		s.sink.SetStall(p.SinkStall)
	}

	rf := ctrl.NewRegfile()
	rf.SetJob(p.Job)
	s.Ctl = ctrl.NewController("ctrl", rf, s.Eng, linkD)

	// The streamer issues loads and stores per uloop iteration, so each
	// side gets a per-pass quota in scalar-product mode: elements of
	// pass k+1 must stay out of the pipeline until pass k has drained
	// and the engine has been cleared, or they would merge into the
	// stale accumulator.
	if p.Job.SimpleMul {
		s.sink.SetQuota(int(p.Job.NbIter))
	} else {
		n := int(p.Job.LenIter)
		srcA.SetQuota(n)
		srcB.SetQuota(n)
		srcC.SetQuota(1)
		s.sink.SetQuota(1)
		s.Ctl.AddPassHook(func() {
			srcA.RaiseQuota(n)
			srcB.RaiseQuota(n)
			srcC.RaiseQuota(1)
			s.sink.RaiseQuota(1)
		})
	}

	monitors := []*stream.Monitor{
		stream.NewMonitor("mon_a", linkA),
		stream.NewMonitor("mon_b", linkB),
		stream.NewMonitor("mon_c", linkC),
		stream.NewMonitor("mon_d", linkD),
	}
	for _, m := range monitors {
		m := m
		s.Ctl.AddClearHook(m.Flush)
	}

	// Registration order is dependency order for the evaluate phase, and
	// each FIFO follows its pop-face consumer: the sink settles d_mem's
	// ready before fifo_d computes its push ready, fifo_d settles d's
	// ready before the engine, and the engine settles a/b/c readies
	// before the input FIFOs. Pop-face valids are registered, so they
	// impose no ordering. The same order serves the edge phase: every
	// consumer of a pop face clocks before that FIFO republishes it.
	s.clk.Add(s.Ctl)
	s.clk.Add(s.sink)
	s.clk.Add(srcA)
	s.clk.Add(srcB)
	s.clk.Add(srcC)
	s.clk.Add(fifoD)
	s.clk.Add(s.Eng)
	for _, m := range monitors {
		s.clk.Add(m)
	}
	s.clk.Add(fifoA)
	s.clk.Add(fifoB)
	s.clk.Add(fifoC)

	if err := s.clk.Check(); err != nil {
		return nil, err
	}
	return s, nil
}

// gather runs the uloop sequencer to produce the flat, in-order element
// streams for a, b and c, and the destination addresses for d. The
// sequencer runs ahead of the engine here; the hardware interleaves the
// two, but the generated order is identical.
func (s *System) gather(p Params) error {
	prog := uloop.DefaultProgram()
	if p.Program != nil {
		prog = *p.Program
	}
	ranges := p.Ranges
	if ranges == nil {
		ranges = []uint32{p.Job.NbIter}
	}
	seq, err := uloop.NewSequencer(prog, ranges, uloop.Binding{
		NbIter:     p.Job.NbIter,
		IterStride: p.Job.VectStride,
		OneStride:  1,
	})
	if err != nil {
		return err
	}

	elems := uint32(1)
	if !s.job.SimpleMul {
		elems = s.job.LenIter
	}
	for !seq.Done() {
		aOff, bOff, cOff, dOff := seq.Offsets()
		for j := uint32(0); j < elems; j++ {
			av, err := s.load(s.job.AAddr + aOff + j)
			if err != nil {
				return errors.WithMessage(err, "stream a")
			}
			bv, err := s.load(s.job.BAddr + bOff + j)
			if err != nil {
				return errors.WithMessage(err, "stream b")
			}
			s.aVals = append(s.aVals, av)
			s.bVals = append(s.bVals, bv)
		}
		if !s.job.SimpleMul {
			cv, err := s.load(s.job.CAddr + cOff)
			if err != nil {
				return errors.WithMessage(err, "stream c")
			}
			s.cVals = append(s.cVals, cv)
		}
		s.dAddr = append(s.dAddr, s.job.DAddr+dOff)

		seq.Tick()
		for seq.Busy() {
			seq.Tick()
		}
	}
	if uint32(len(s.dAddr)) != s.job.NbIter {
		return errors.Errorf("sequencer produced %d iterations for nb_iter=%d", len(s.dAddr), s.job.NbIter)
	}
	return nil
}

func (s *System) load(addr uint32) (int32, error) {
	if int(addr) >= len(s.mem) {
		return 0, errors.Errorf("address %d outside memory of %d words", addr, len(s.mem))
	}
	return s.mem[addr], nil
}

// Run resets the system, triggers the job and steps the clock until the
// controller goes idle and the sink holds every result, then writes the
// drained results back to memory. The controller counts results on the
// engine's drain link, one FIFO upstream of the sink, so it goes idle
// with the tail of the job still in flight; the output FIFO and sink
// keep clocking while idle, and a few more steps flush them. onDrain,
// if non-nil, is called with the running result count after each
// drained value.
func (s *System) Run(maxCycles uint64, onDrain func(n int)) error {
	s.clk.Reset()
	if err := s.Ctl.Trigger(); err != nil {
		return err
	}
	prev := 0
	for s.Ctl.Busy() || uint32(len(s.sink.Drained())) < s.job.NbIter {
		if s.clk.Cycle() >= maxCycles {
			return errors.Errorf("job not done after %d cycles", maxCycles)
		}
		s.clk.Step()
		if n := len(s.sink.Drained()); n > prev {
			if onDrain != nil {
				onDrain(n)
			}
			prev = n
		}
	}
	for i, v := range s.sink.Drained() {
		addr := s.dAddr[i]
		if int(addr) >= len(s.mem) {
			return errors.Errorf("stream d: address %d outside memory of %d words", addr, len(s.mem))
		}
		s.mem[addr] = v
	}
	klog.V(1).Infof("run complete: %d result(s) in %d cycles", len(s.sink.Drained()), s.clk.Cycle())
	return nil
}

// Results returns the drained values in order.
func (s *System) Results() []int32 {
	return s.sink.Drained()
}

// Expected computes, with the functional model, what the job must drain.
func (s *System) Expected() []int32 {
	if s.job.SimpleMul {
		out := make([]int32, 0, len(s.aVals))
		for i := range s.aVals {
			out = append(out, golden.MulShift(s.aVals[i], s.bVals[i], s.job.Shift))
		}
		return out
	}
	return golden.DotPasses(s.cVals, s.aVals, s.bVals, int(s.job.LenIter), s.job.Shift)
}

// Cycles reports the ticks consumed by the last Run.
func (s *System) Cycles() uint64 {
	return s.clk.Cycle()
}
