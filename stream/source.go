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

// A StallFn decides, per cycle, whether a Source delays its next offer or
// a Sink withholds readiness. Used to model memory-side stalls in tests
// and in the top-level system. nil means "never stall".
type StallFn func(cycle uint64) bool

// Source drives a Link from a slice of values, standing in for the load
// side of the memory streamer. Each value is held stable on the link until
// its handshake. A stall function may delay the first offer of each
// element; once an element is offered it stays offered, as the protocol
// requires.
type Source struct {
	name     string
	link     *Link
	vals     []int32
	idx      int
	quota    int // <0 means unlimited
	offering bool
	cycle    uint64
	stall    StallFn
}

func NewSource(name string, link *Link, vals []int32) *Source {
	return &Source{name: name, link: link, vals: vals, quota: -1}
}

// SetQuota limits how many elements the source will offer in total. The
// load streamer issues elements per iteration, not all at once; the
// quota models that pacing.
func (s *Source) SetQuota(n int) {
	s.quota = n
}

// RaiseQuota extends the current quota by n elements.
func (s *Source) RaiseQuota(n int) {
	if s.quota >= 0 {
		s.quota += n
	}
}

// SetStall installs a stall pattern. Must be called before the first cycle.
func (s *Source) SetStall(fn StallFn) {
	s.stall = fn
}

func (s *Source) Name() string {
	return s.name
}

func (s *Source) Check() error {
	return nil
}

func (s *Source) Reset() {
	s.idx = 0
	s.offering = false
	s.cycle = 0
}

func (s *Source) Evaluate() {
	if s.idx >= len(s.vals) || (s.quota >= 0 && s.idx >= s.quota) {
		s.link.Idle()
		return
	}
	if !s.offering && s.stall != nil && s.stall(s.cycle) {
		s.link.Idle()
		return
	}
	s.offering = true
	s.link.Offer(s.vals[s.idx])
}

func (s *Source) PositiveEdge() {
	if s.offering && s.link.Fire() {
		s.idx++
		s.offering = false
	}
	s.cycle++
}

// Remaining reports how many elements have not yet been consumed.
func (s *Source) Remaining() int {
	return len(s.vals) - s.idx
}

// Sink consumes a Link into a slice, standing in for the store side of the
// streamer. Readiness follows the stall pattern and an optional quota: the
// sink stops accepting once it holds quota elements, until the quota is
// raised again. The quota models a store streamer that knows exactly how
// many words the current job may produce.
type Sink struct {
	name  string
	link  *Link
	got   []int32
	quota int // <0 means unlimited
	cycle uint64
	stall StallFn
}

func NewSink(name string, link *Link) *Sink {
	return &Sink{name: name, link: link, quota: -1}
}

func (k *Sink) SetStall(fn StallFn) {
	k.stall = fn
}

// SetQuota limits how many elements the sink will accept in total.
func (k *Sink) SetQuota(n int) {
	k.quota = n
}

// RaiseQuota extends the current quota by n elements.
func (k *Sink) RaiseQuota(n int) {
	if k.quota >= 0 {
		k.quota += n
	}
}

func (k *Sink) Name() string {
	return k.name
}

func (k *Sink) Check() error {
	return nil
}

func (k *Sink) Reset() {
	k.got = k.got[:0]
	k.cycle = 0
}

func (k *Sink) Evaluate() {
	ready := true
	if k.stall != nil && k.stall(k.cycle) {
		ready = false
	}
	if k.quota >= 0 && len(k.got) >= k.quota {
		ready = false
	}
	k.link.Ready = ready
}

func (k *Sink) PositiveEdge() {
	if k.link.Fire() {
		k.got = append(k.got, k.link.Data)
	}
	k.cycle++
}

// Drained returns the values consumed so far, in arrival order.
func (k *Sink) Drained() []int32 {
	return k.got
}
