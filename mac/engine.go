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

// Package mac models the multiply-accumulate streaming engine, cycle by
// cycle. The engine consumes two operand streams a and b (always admitted
// as a pair), optionally a seed stream c, and drains one result stream d.
// It runs in one of two modes:
//
//   - simple multiply: every admitted a/b pair produces one product,
//     arithmetic-right-shifted onto d one cycle later;
//   - scalar product: Len successive products are summed into a wide
//     accumulator, seeded from c shifted into the accumulator's
//     fixed-point format, and the completed sum drains on d.
//
// Every stage holds at most one element; backpressure propagates upstream
// through the ready network, which is computed purely from state committed
// at the previous edge.
package mac

import (
	"github.com/pkg/errors"

	"github.com/pulp-platform/hwpe-mac-engine/stream"
)

// Config is the engine's control word, sampled every cycle. Clear is a
// soft reset that bypasses handshakes; Enable low freezes every register
// (the clock-gating equivalent); Start is a one-cycle pulse that (re)arms
// the length counter.
type Config struct {
	Clear     bool
	Enable    bool
	Start     bool
	SimpleMul bool
	Shift     uint32 // 0..31
	Len       uint32
}

// Flags is the engine's read-only status, exposed to the controller.
type Flags struct {
	Count    uint32
	AccValid bool
}

// Engine is the pipeline: a multiply stage, an accumulate stage with its
// length counter, and the output drain selection. Registers are owned
// exclusively by the engine and committed once per positive edge.
type Engine struct {
	name string

	A *stream.Link // operand stream, admitted jointly with B
	B *stream.Link // operand stream, admitted jointly with A
	C *stream.Link // seed stream, admitted independently
	D *stream.Link // result stream

	// Ctrl is driven by the controller before each evaluate phase.
	Ctrl Config

	multReg   int64
	multValid bool
	accReg    Acc128
	accValid  bool
	cnt       uint32
}

func NewEngine(name string, a, b, c, d *stream.Link) *Engine {
	return &Engine{name: name, A: a, B: b, C: c, D: d}
}

func (e *Engine) Name() string {
	return e.name
}

func (e *Engine) Check() error {
	for _, l := range []*stream.Link{e.A, e.B, e.C, e.D} {
		if l == nil {
			return errors.Errorf("engine %s: unconnected stream", e.name)
		}
	}
	return nil
}

func (e *Engine) Reset() {
	e.multReg = 0
	e.multValid = false
	e.accReg = Acc128{}
	e.accValid = false
	e.cnt = 0
}

// accReady: the accumulate stage accepts whenever its consumer drains it
// or there is nothing valid to protect.
func (e *Engine) accReady() bool {
	return e.D.Ready || !e.accValid
}

// multReady: same shape, but the multiply stage's consumer depends on the
// configured drain source.
func (e *Engine) multReady() bool {
	if e.Ctrl.SimpleMul {
		return e.D.Ready || !e.multValid
	}
	return e.accReady() || !e.multValid
}

// Evaluate drives d and the backward ready network. Everything here is a
// pure function of registered state and this cycle's link inputs; the
// value being computed this cycle never feeds a readiness, which is what
// keeps the backward/forward signal pair acyclic.
func (e *Engine) Evaluate() {
	// A frozen engine can accept nothing, and a clearing engine is
	// discarding its in-flight work: offering or admitting data on
	// those cycles would drop elements at the boundary.
	if !e.Ctrl.Enable || e.Ctrl.Clear {
		e.D.Valid = false
		e.A.Ready = false
		e.B.Ready = false
		e.C.Ready = false
		return
	}

	if e.Ctrl.SimpleMul {
		e.D.Valid = e.Ctrl.Enable && e.multValid
		e.D.Data = int32(e.multReg >> e.Ctrl.Shift)
	} else {
		e.D.Valid = e.Ctrl.Enable && e.accValid
		e.D.Data = int32(e.accReg.Asr(e.Ctrl.Shift))
	}
	e.D.Strb = stream.FullStrb

	// The a/b pair is admitted jointly or not at all. With neither
	// offering, the ports still report ready (idle-ready) so unrelated
	// upstream logic is not stalled.
	abReady := (e.multReady() && e.A.Valid && e.B.Valid) || (!e.A.Valid && !e.B.Valid)
	e.A.Ready = abReady
	e.B.Ready = abReady
	e.C.Ready = e.accReady() || !e.C.Valid
}

// PositiveEdge commits the cycle: all next-state is derived from current
// registers and this cycle's settled handshakes, then written at once.
func (e *Engine) PositiveEdge() {
	if !e.Ctrl.Enable {
		return // global freeze, nothing commits
	}
	if e.Ctrl.Clear {
		e.Reset()
		return
	}

	product := int64(e.A.Data) * int64(e.B.Data)
	shiftedSeed := int64(e.C.Data) << e.Ctrl.Shift

	abFire := e.A.Fire() && e.B.Fire()
	cFire := e.C.Fire()
	multFire := e.multValid && e.multReady()
	accFire := e.accValid && e.accReady()

	// Multiply stage: load on a joint input handshake, re-arm validity
	// when the stage's own handshake just occurred.
	nextMultReg := e.multReg
	nextMultValid := e.multValid
	if abFire {
		nextMultReg = product
	}
	if (e.A.Valid && e.B.Valid) || multFire {
		nextMultValid = e.A.Valid && e.B.Valid
	}

	// Accumulate register: seed, accumulate, or both in one cycle.
	nextAccReg := e.accReg
	switch {
	case multFire && cFire:
		nextAccReg = Acc128From(shiftedSeed).Add(e.multReg)
	case cFire:
		nextAccReg = Acc128From(shiftedSeed)
	case multFire:
		nextAccReg = e.accReg.Add(e.multReg)
	}

	// The accumulate result is valid once the counter has reached Len
	// and the triggering multiply handshake lands in the same cycle.
	nextAccValid := e.accValid
	if (e.cnt == e.Ctrl.Len && multFire) || accFire {
		nextAccValid = e.cnt == e.Ctrl.Len
	}

	// Length counter. Start advances it regardless of handshake state;
	// this is how the controller re-arms a scalar-product pass.
	nextCnt := e.cnt
	if e.Ctrl.Start || (e.cnt > 0 && e.cnt < e.Ctrl.Len && multFire) {
		nextCnt = e.cnt + 1
	}

	e.multReg = nextMultReg
	e.multValid = nextMultValid
	e.accReg = nextAccReg
	e.accValid = nextAccValid
	e.cnt = nextCnt
}

// Flags snapshots the engine status for the controller.
func (e *Engine) Flags() Flags {
	return Flags{Count: e.cnt, AccValid: e.accValid}
}
