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

// Package uloop is the microcoded loop sequencer that generates the
// per-iteration address offsets for the four streams. A program is a set
// of nested loops (up to six); each level carries a short list of
// micro-ops that run, one per cycle, when that level's iteration wraps.
// The register file holds four writable pointer registers (the a/b/c/d
// offsets) and read-only operand registers bound at job start.
package uloop

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// MaxLoops is the deepest supported loop nest.
const MaxLoops = 6

// Reg names a register in the sequencer's register file. The first four
// are the writable stream-offset registers; the rest are read-only
// operands bound from the job configuration.
type Reg int

const (
	RegA Reg = iota
	RegB
	RegC
	RegD
	RegNbIter
	RegIterStride
	RegOneStride
	NumRegs
)

// NumPtrRegs is the count of writable pointer registers.
const NumPtrRegs = 4

var regNames = [NumRegs]string{
	"a", "b", "c", "d", "nb_iter", "iter_stride", "one_stride",
}

func (r Reg) String() string {
	if r < 0 || r >= NumRegs {
		return fmt.Sprintf("reg(%d)", int(r))
	}
	return regNames[r]
}

func regByName(name string) (Reg, error) {
	for i, n := range regNames {
		if n == name {
			return Reg(i), nil
		}
	}
	return 0, errors.Errorf("unknown register %q", name)
}

// OpKind selects the micro-op operation.
type OpKind int

const (
	OpAdd OpKind = iota // dest <- dest + src
	OpMov               // dest <- src
)

// Op is one micro-op. Exactly one executes per busy cycle.
type Op struct {
	Dest Reg
	Kind OpKind
	Src  Reg
}

func (o Op) String() string {
	if o.Kind == OpAdd {
		return fmt.Sprintf("%s += %s", o.Dest, o.Src)
	}
	return fmt.Sprintf("%s = %s", o.Dest, o.Src)
}

// Loop is one nest level. Level 0 is the innermost.
type Loop struct {
	Ops []Op
}

// Program is the microcode for a whole loop nest.
type Program struct {
	Loops []Loop
}

func (p Program) Validate() error {
	if len(p.Loops) == 0 {
		return errors.New("program has no loops")
	}
	if len(p.Loops) > MaxLoops {
		return errors.Errorf("program has %d loops, maximum is %d", len(p.Loops), MaxLoops)
	}
	for li, loop := range p.Loops {
		for oi, op := range loop.Ops {
			if op.Dest < 0 || op.Dest >= NumPtrRegs {
				return errors.Errorf("loop %d op %d: destination %s is not writable", li, oi, op.Dest)
			}
			if op.Src < 0 || op.Src >= NumRegs {
				return errors.Errorf("loop %d op %d: bad source register %d", li, oi, int(op.Src))
			}
		}
	}
	return nil
}

// Disassemble renders the program back to its mnemonic form.
func (p Program) Disassemble() string {
	var b strings.Builder
	for li, loop := range p.Loops {
		fmt.Fprintf(&b, "loop %d:\n", li)
		for _, op := range loop.Ops {
			fmt.Fprintf(&b, "\t%s\n", op)
		}
	}
	return b.String()
}

// DefaultProgram is the single-loop microcode the MAC job flow uses: per
// iteration the operand pointers advance by the vector stride and the
// seed/result pointers advance by one element.
func DefaultProgram() Program {
	return Program{Loops: []Loop{{Ops: []Op{
		{Dest: RegA, Kind: OpAdd, Src: RegIterStride},
		{Dest: RegB, Kind: OpAdd, Src: RegIterStride},
		{Dest: RegC, Kind: OpAdd, Src: RegOneStride},
		{Dest: RegD, Kind: OpAdd, Src: RegOneStride},
	}}}}
}

// Binding supplies the read-only operand registers for one job.
type Binding struct {
	NbIter     uint32
	IterStride uint32
	OneStride  uint32
}

// Sequencer executes a Program over a set of loop ranges, one micro-op
// per cycle. Offsets are meaningful whenever the sequencer is not busy
// flushing a wrap's op list.
type Sequencer struct {
	prog    Program
	ranges  []uint32
	bind    Binding
	regs    [NumRegs]uint32
	idx     []uint32
	pending []Op
	done    bool
}

func NewSequencer(prog Program, ranges []uint32, bind Binding) (*Sequencer, error) {
	if err := prog.Validate(); err != nil {
		return nil, err
	}
	if len(ranges) != len(prog.Loops) {
		return nil, errors.Errorf("%d loop ranges for %d loops", len(ranges), len(prog.Loops))
	}
	for i, r := range ranges {
		if r == 0 {
			return nil, errors.Errorf("loop %d has zero range", i)
		}
	}
	u := &Sequencer{prog: prog, ranges: ranges, bind: bind, idx: make([]uint32, len(ranges))}
	u.Reset()
	return u, nil
}

func (u *Sequencer) Reset() {
	u.regs = [NumRegs]uint32{}
	u.regs[RegNbIter] = u.bind.NbIter
	u.regs[RegIterStride] = u.bind.IterStride
	u.regs[RegOneStride] = u.bind.OneStride
	for i := range u.idx {
		u.idx[i] = 0
	}
	u.pending = nil
	u.done = false
}

// Offsets returns the current a/b/c/d stream offsets, in elements.
func (u *Sequencer) Offsets() (a, b, c, d uint32) {
	return u.regs[RegA], u.regs[RegB], u.regs[RegC], u.regs[RegD]
}

// Busy reports whether a wrap's op list is still flushing; offsets are
// not settled while busy.
func (u *Sequencer) Busy() bool {
	return len(u.pending) > 0
}

// Done reports that the outermost loop has wrapped.
func (u *Sequencer) Done() bool {
	return u.done
}

// Tick advances one cycle. With ops pending, exactly one executes.
// Otherwise the current iteration closes: the innermost index advances,
// carries propagate outward, and the op list of the level that absorbed
// the carry is queued. Wrapping past the outermost level finishes the
// sequence.
func (u *Sequencer) Tick() {
	if u.done {
		return
	}
	if len(u.pending) > 0 {
		u.exec(u.pending[0])
		u.pending = u.pending[1:]
		return
	}
	level := 0
	for {
		u.idx[level]++
		if u.idx[level] < u.ranges[level] {
			break
		}
		u.idx[level] = 0
		level++
		if level == len(u.idx) {
			u.done = true
			return
		}
	}
	u.pending = append(u.pending[:0], u.prog.Loops[level].Ops...)
}

func (u *Sequencer) exec(op Op) {
	switch op.Kind {
	case OpAdd:
		u.regs[op.Dest] += u.regs[op.Src]
	case OpMov:
		u.regs[op.Dest] = u.regs[op.Src]
	}
}
