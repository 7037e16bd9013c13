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
package stream

import (
	"github.com/pkg/errors"
)

// Fifo is a single-clock stream FIFO with valid/ready handshakes on both
// faces. It decouples the memory-side buffering from the engine.
//
// The pop face is registered: the head element is published at the
// positive edge, so an element pushed into an empty FIFO appears on the
// pop face one cycle later, and the FIFO's consumer may evaluate before
// the FIFO does. Push-face ready is not-full, or full with the pop face
// draining the same cycle; a full FIFO therefore sustains one transfer
// per cycle instead of stalling every other push. That term reads the
// consumer's Ready, so the consumer must evaluate before the FIFO.
type Fifo struct {
	name  string
	in    *Link
	out   *Link
	data  []int32
	head  int
	tail  int
	count int
}

func NewFifo(name string, depth int, in, out *Link) (*Fifo, error) {
	if depth < 1 {
		return nil, errors.Errorf("fifo %s: depth %d, must be at least 1", name, depth)
	}
	return &Fifo{name: name, in: in, out: out, data: make([]int32, depth)}, nil
}

func (f *Fifo) Name() string {
	return f.name
}

func (f *Fifo) Check() error {
	if f.in == nil || f.out == nil {
		return errors.Errorf("fifo %s: unconnected face", f.name)
	}
	return nil
}

func (f *Fifo) Reset() {
	f.head = 0
	f.tail = 0
	f.count = 0
	f.out.Idle()
}

// Evaluate drives only the push-face ready; the pop face was published
// at the previous edge. With the FIFO full, a push is still accepted
// when the pop face drains this cycle (out.Valid is implied by count>0).
func (f *Fifo) Evaluate() {
	f.in.Ready = f.count < len(f.data) || (f.count > 0 && f.out.Ready)
}

// PositiveEdge commits the cycle's handshakes, pop before push so a full
// FIFO can do both, then publishes the new head for the next cycle.
// Consumers of the pop face must have clocked already: publishing moves
// the link to next-cycle state.
func (f *Fifo) PositiveEdge() {
	if f.out.Fire() {
		f.head = (f.head + 1) % len(f.data)
		f.count--
	}
	if f.in.Fire() {
		f.data[f.tail] = f.in.Data
		f.tail = (f.tail + 1) % len(f.data)
		f.count++
	}
	if f.count > 0 {
		f.out.Offer(f.data[f.head])
	} else {
		f.out.Idle()
	}
}

// Len returns the current occupancy.
func (f *Fifo) Len() int {
	return f.count
}
