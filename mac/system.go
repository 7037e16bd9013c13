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
	"fmt"

	"k8s.io/klog/v2"
)

// A Component owns some combinational behavior. Evaluate drives its
// outputs (link valid/data downstream, link ready upstream) using only
// state committed at the previous edge plus this cycle's link inputs.
type Component interface {
	Name() string
	Check() error
	Evaluate()
}

// A Clockable additionally owns registered state, committed once per
// cycle on the positive edge, after every Evaluate for the cycle ran.
type Clockable interface {
	Component
	Reset()
	PositiveEdge()
}

// System sequences a set of Clockables through the two-phase cycle:
// evaluate everything, then clock everything, both in registration
// order. A component whose evaluation reads another's evaluated outputs
// registers after it; readiness is computed from registered validity
// only, so there is no combinational cycle to resolve and one pass
// settles the system.
type System struct {
	state []Clockable
	cycle uint64
}

func (s *System) Add(c Clockable) {
	s.state = append(s.state, c)
}

// Check is called once after the system is wired, before the first cycle.
// Components can't check themselves while being built because they can't
// know whether another connection is still coming.
func (s *System) Check() error {
	nError := 0
	for _, c := range s.state {
		klog.V(2).Infof("clockable: %s", c.Name())
		if err := c.Check(); err != nil {
			nError++
			klog.Error(err)
		}
	}
	if nError > 0 {
		return fmt.Errorf("%d error(s) found in system", nError)
	}
	return nil
}

func (s *System) Reset() {
	for _, c := range s.state {
		c.Reset()
	}
	s.cycle = 0
}

// Step advances the global clock by one tick.
func (s *System) Step() {
	for _, c := range s.state {
		c.Evaluate()
	}
	for _, c := range s.state {
		c.PositiveEdge()
	}
	s.cycle++
}

// Cycle returns the number of ticks since reset.
func (s *System) Cycle() uint64 {
	return s.cycle
}
