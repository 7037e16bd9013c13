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

// Package stream models single-clock valid/ready streams. A Link is one
// named channel: the producer drives Data, Strb and Valid during the
// evaluate phase of a cycle (a registered producer, like the Fifo's pop
// face, publishes them at the preceding edge instead), the consumer
// drives Ready, and a transfer (a "fire") happens on any cycle where
// both Valid and Ready are set. Everything that latches state does so on
// the positive edge, after all evaluation for the cycle is complete.
package stream

import "fmt"

// FullStrb is the all-ones byte strobe. The engine boundary does not
// support partial-word masking, so every transfer carries it.
const FullStrb uint8 = 0xF

// A Link carries a signed 32-bit fixed-point value with a valid/ready
// handshake. The struct is shared between exactly one producer and one
// consumer; both touch it only during the evaluate phase.
type Link struct {
	name string

	Data  int32
	Strb  uint8
	Valid bool
	Ready bool
}

func NewLink(name string) *Link {
	return &Link{name: name, Strb: FullStrb}
}

func (l *Link) Name() string {
	return l.name
}

// Fire reports whether a transfer happens this cycle. Meaningful only
// after the evaluate phase has settled.
func (l *Link) Fire() bool {
	return l.Valid && l.Ready
}

// Offer drives a value onto the link. The producer must keep offering
// the same value on every cycle until Fire, per the stability rule.
func (l *Link) Offer(v int32) {
	l.Data = v
	l.Strb = FullStrb
	l.Valid = true
}

// Idle deasserts Valid. Only legal when no unconsumed offer is pending.
func (l *Link) Idle() {
	l.Valid = false
}

func (l *Link) String() string {
	return fmt.Sprintf("%s{data=%d valid=%t ready=%t}", l.name, l.Data, l.Valid, l.Ready)
}
