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

import "fmt"

// Monitor is a pure observer of a Link that enforces the handshake
// protocol every cycle:
//
//   - data stability: an offered value must not change until it fires;
//   - no lost handshake: Valid may only deassert after a fired cycle.
//
// A violation is a defect in the model, not a runtime condition, so the
// monitor panics. Flush must be called when a soft clear cancels in-flight
// data, since that cancellation edge is not part of the protocol.
type Monitor struct {
	name      string
	link      *Link
	armed     bool // saw a cycle since reset/flush
	prevValid bool
	prevFired bool
	prevData  int32
	transfers uint64
}

func NewMonitor(name string, link *Link) *Monitor {
	return &Monitor{name: name, link: link}
}

func (m *Monitor) Name() string {
	return m.name
}

func (m *Monitor) Check() error {
	return nil
}

func (m *Monitor) Reset() {
	m.armed = false
	m.transfers = 0
}

func (m *Monitor) Evaluate() {}

func (m *Monitor) PositiveEdge() {
	if m.armed && m.prevValid && !m.prevFired {
		if !m.link.Valid {
			panic(fmt.Sprintf("%s: valid deasserted with no handshake on %s", m.name, m.link.Name()))
		}
		if m.link.Data != m.prevData {
			panic(fmt.Sprintf("%s: data changed %d -> %d while unconsumed on %s",
				m.name, m.prevData, m.link.Data, m.link.Name()))
		}
	}
	if m.link.Fire() {
		m.transfers++
	}
	m.armed = true
	m.prevValid = m.link.Valid
	m.prevFired = m.link.Fire()
	m.prevData = m.link.Data
}

// Flush forgets any pending offer. Call on the cycle a soft clear commits.
func (m *Monitor) Flush() {
	m.armed = false
}

// Transfers returns the number of handshakes observed since reset.
func (m *Monitor) Transfers() uint64 {
	return m.transfers
}
