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
package ctrl

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/pulp-platform/hwpe-mac-engine/mac"
	"github.com/pulp-platform/hwpe-mac-engine/stream"
)

// State of the controller FSM.
type State int

const (
	StateIdle State = iota
	StateRunning
)

// Controller turns a triggered job into the engine's per-cycle control
// word. While a job runs it counts drained results on d; in scalar-
// product mode it inserts a clear/start sequence between passes so each
// pass accumulates from a fresh register. When idle it gates the engine
// clock (Enable low).
//
// A job produces NbIter results: one shifted product per admitted pair
// in simple-multiply mode, one completed scalar product per pass
// otherwise.
type Controller struct {
	name string
	rf   *Regfile
	eng  *mac.Engine
	d    *stream.Link

	state State
	job   JobConfig
	jobID uint32
	outs  uint32

	startPulse bool
	clearPulse bool
	rearm      int
	softClear  bool

	clearHooks []func()
	passHooks  []func()
}

func NewController(name string, rf *Regfile, eng *mac.Engine, d *stream.Link) *Controller {
	return &Controller{name: name, rf: rf, eng: eng, d: d}
}

func (c *Controller) Name() string {
	return c.name
}

func (c *Controller) Check() error {
	if c.rf == nil || c.eng == nil || c.d == nil {
		return errors.Errorf("controller %s: not fully connected", c.name)
	}
	return nil
}

func (c *Controller) Reset() {
	c.state = StateIdle
	c.outs = 0
	c.startPulse = false
	c.clearPulse = false
	c.rearm = 0
	c.softClear = false
}

// AddClearHook registers fn to run during the evaluate phase of any
// cycle where the engine receives Clear. Monitors use this to forget
// in-flight offers that the cancellation edge discards.
func (c *Controller) AddClearHook(fn func()) {
	c.clearHooks = append(c.clearHooks, fn)
}

// AddPassHook registers fn to run when a scalar-product pass completes
// and another follows. The store streamer uses this to extend its quota.
func (c *Controller) AddPassHook(fn func()) {
	c.passHooks = append(c.passHooks, fn)
}

// Trigger validates the programmed job registers and launches the job.
func (c *Controller) Trigger() error {
	if c.state != StateIdle {
		return errors.New("trigger while busy")
	}
	job := c.rf.Job()
	if err := job.Validate(); err != nil {
		return errors.WithMessage(err, "job rejected")
	}
	c.job = job
	c.jobID++
	c.outs = 0
	c.state = StateRunning
	c.startPulse = true
	klog.V(1).Infof("%s: job %d: simple_mul=%t len=%d nb_iter=%d shift=%d",
		c.name, c.jobID, job.SimpleMul, job.LenIter, job.NbIter, job.Shift)
	return nil
}

// SoftClear schedules a one-cycle engine clear and aborts any running
// job. Honored on the next cycle regardless of FSM state.
func (c *Controller) SoftClear() {
	c.softClear = true
}

func (c *Controller) Busy() bool {
	return c.state == StateRunning || c.softClear
}

// Drained reports how many results the current or last job produced.
func (c *Controller) Drained() uint32 {
	return c.outs
}

func (c *Controller) Evaluate() {
	cfg := mac.Config{}
	switch {
	case c.softClear:
		cfg = mac.Config{Enable: true, Clear: true}
	case c.state == StateRunning:
		cfg = mac.Config{
			Enable:    true,
			Start:     c.startPulse,
			Clear:     c.clearPulse,
			SimpleMul: c.job.SimpleMul,
			Shift:     c.job.Shift,
			Len:       c.job.LenIter,
		}
	}
	if cfg.Clear {
		for _, fn := range c.clearHooks {
			fn()
		}
	}
	c.eng.Ctrl = cfg
}

func (c *Controller) PositiveEdge() {
	if c.softClear {
		c.softClear = false
		c.state = StateIdle
		c.startPulse = false
		c.clearPulse = false
		c.rearm = 0
		return
	}
	if c.state != StateRunning {
		return
	}

	c.startPulse = false
	justCleared := c.clearPulse
	c.clearPulse = false
	if c.rearm == 1 && justCleared {
		// the cleared engine re-arms its counter next cycle
		c.startPulse = true
		c.rearm = 0
	}

	if c.d.Fire() {
		c.outs++
		if c.outs >= c.job.NbIter {
			c.state = StateIdle
			klog.V(1).Infof("%s: job %d done, %d result(s)", c.name, c.jobID, c.outs)
		} else if !c.job.SimpleMul {
			c.clearPulse = true
			c.rearm = 1
			for _, fn := range c.passHooks {
				fn()
			}
		}
	}
}

// Write is the peripheral port's write side: commands are routed to the
// FSM, job registers to the register file.
func (c *Controller) Write(off, val uint32) error {
	switch off {
	case RegTrigger:
		return c.Trigger()
	case RegSoftClear:
		c.SoftClear()
		return nil
	}
	return c.rf.Write(off, val)
}

// Read is the peripheral port's read side. Status reports the busy bit;
// acquire returns the job id, or all-ones while busy; flags packs the
// engine's length counter in bits 15:0 and accumulator validity in
// bit 31.
func (c *Controller) Read(off uint32) (uint32, error) {
	switch off {
	case RegStatus:
		if c.Busy() {
			return 1, nil
		}
		return 0, nil
	case RegAcquire:
		if c.Busy() {
			return ^uint32(0), nil
		}
		return c.jobID, nil
	case RegFlags:
		f := c.eng.Flags()
		v := f.Count & 0xFFFF
		if f.AccValid {
			v |= 1 << 31
		}
		return v, nil
	}
	return c.rf.Read(off)
}
