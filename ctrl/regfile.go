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

// Package ctrl is the register-mapped peripheral interface of the
// accelerator: a small job register file programmed over a 32-bit port,
// and the controller FSM that turns a triggered job into the per-cycle
// engine control word.
package ctrl

import (
	"github.com/pkg/errors"
)

// Register offsets on the peripheral port. The mandatory block mirrors
// the usual accelerator front door: trigger, acquire, status and soft
// clear. Job registers start at RegAAddr.
const (
	RegTrigger   uint32 = 0x00
	RegAcquire   uint32 = 0x04
	RegStatus    uint32 = 0x08
	RegSoftClear uint32 = 0x0C
	RegFlags     uint32 = 0x10

	RegAAddr          uint32 = 0x40
	RegBAddr          uint32 = 0x44
	RegCAddr          uint32 = 0x48
	RegDAddr          uint32 = 0x4C
	RegNbIter         uint32 = 0x50
	RegLenIter        uint32 = 0x54
	RegShiftSimpleMul uint32 = 0x58
	RegVectStride     uint32 = 0x5C
)

// MaxShift bounds the configurable fixed-point shift.
const MaxShift = 31

// JobConfig is the decoded content of the job registers.
type JobConfig struct {
	AAddr      uint32
	BAddr      uint32
	CAddr      uint32
	DAddr      uint32
	NbIter     uint32
	LenIter    uint32
	Shift      uint32
	SimpleMul  bool
	VectStride uint32
}

func (j JobConfig) Validate() error {
	if j.Shift > MaxShift {
		return errors.Errorf("shift %d out of range 0..%d", j.Shift, MaxShift)
	}
	if j.NbIter == 0 {
		return errors.New("nb_iter must be at least 1")
	}
	if !j.SimpleMul && j.LenIter == 0 {
		return errors.New("len_iter must be at least 1 in scalar-product mode")
	}
	return nil
}

// Regfile stores the raw job registers. Command registers (trigger, soft
// clear) are not stored here; the Controller owns those.
type Regfile struct {
	raw map[uint32]uint32
}

func NewRegfile() *Regfile {
	return &Regfile{raw: make(map[uint32]uint32)}
}

func (r *Regfile) Write(off, val uint32) error {
	switch off {
	case RegAAddr, RegBAddr, RegCAddr, RegDAddr,
		RegNbIter, RegLenIter, RegShiftSimpleMul, RegVectStride:
		r.raw[off] = val
		return nil
	}
	return errors.Errorf("write to unknown register offset 0x%02X", off)
}

func (r *Regfile) Read(off uint32) (uint32, error) {
	switch off {
	case RegAAddr, RegBAddr, RegCAddr, RegDAddr,
		RegNbIter, RegLenIter, RegShiftSimpleMul, RegVectStride:
		return r.raw[off], nil
	}
	return 0, errors.Errorf("read from unknown register offset 0x%02X", off)
}

// Job decodes the current register contents. ShiftSimpleMul packs the
// shift amount in bits 20:16 and the simple-multiply flag in bit 0.
func (r *Regfile) Job() JobConfig {
	sm := r.raw[RegShiftSimpleMul]
	return JobConfig{
		AAddr:      r.raw[RegAAddr],
		BAddr:      r.raw[RegBAddr],
		CAddr:      r.raw[RegCAddr],
		DAddr:      r.raw[RegDAddr],
		NbIter:     r.raw[RegNbIter],
		LenIter:    r.raw[RegLenIter],
		Shift:      (sm >> 16) & 0x1F,
		SimpleMul:  sm&1 != 0,
		VectStride: r.raw[RegVectStride],
	}
}

// SetJob encodes a JobConfig back into the raw registers. Convenience for
// hosts that build jobs programmatically rather than register by register.
func (r *Regfile) SetJob(j JobConfig) {
	r.raw[RegAAddr] = j.AAddr
	r.raw[RegBAddr] = j.BAddr
	r.raw[RegCAddr] = j.CAddr
	r.raw[RegDAddr] = j.DAddr
	r.raw[RegNbIter] = j.NbIter
	r.raw[RegLenIter] = j.LenIter
	sm := (j.Shift & 0x1F) << 16
	if j.SimpleMul {
		sm |= 1
	}
	r.raw[RegShiftSimpleMul] = sm
	r.raw[RegVectStride] = j.VectStride
}
