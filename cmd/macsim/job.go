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
package main

import (
	"math/rand"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/pulp-platform/hwpe-mac-engine/ctrl"
	"github.com/pulp-platform/hwpe-mac-engine/top"
	"github.com/pulp-platform/hwpe-mac-engine/uloop"
)

// Job description file, e.g.:
//
//	mode: dot        # "dot" or "simple"
//	shift: 4
//	len: 16          # products per pass (dot mode)
//	nb_iter: 8       # passes, or products in simple mode
//	seed: 42         # PRNG seed when vectors are generated
//	a: [1, 2, 3]     # optional explicit vectors
//	b: [4, 5, 6]
//	c: [7]
type jobFile struct {
	Mode   string  `yaml:"mode"`
	Shift  uint32  `yaml:"shift"`
	Len    uint32  `yaml:"len"`
	NbIter uint32  `yaml:"nb_iter"`
	Seed   int64   `yaml:"seed"`
	A      []int32 `yaml:"a"`
	B      []int32 `yaml:"b"`
	C      []int32 `yaml:"c"`
}

func loadJob(path string) (*jobFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var j jobFile
	if err := yaml.Unmarshal(data, &j); err != nil {
		return nil, errors.WithMessage(err, "bad job yaml")
	}
	return &j, nil
}

// params lays the job's vectors out in a flat word memory (a, b, c, then
// the d result region) and builds the job registers for it.
func (j *jobFile) params(prog uloop.Program) (top.Params, error) {
	var simple bool
	switch j.Mode {
	case "simple":
		simple = true
	case "dot", "":
		simple = false
	default:
		return top.Params{}, errors.Errorf("unknown mode %q, want \"simple\" or \"dot\"", j.Mode)
	}
	if j.NbIter == 0 {
		return top.Params{}, errors.New("nb_iter must be at least 1")
	}
	if !simple && j.Len == 0 {
		return top.Params{}, errors.New("len must be at least 1 in dot mode")
	}

	na := int(j.NbIter)
	stride := uint32(1)
	nc := 0
	if !simple {
		na = int(j.NbIter * j.Len)
		nc = int(j.NbIter)
		stride = j.Len
	}

	rng := rand.New(rand.NewSource(j.Seed))
	a := makeVector(j.A, na, rng)
	b := makeVector(j.B, na, rng)
	c := makeVector(j.C, nc, rng)
	if len(a) != na || len(b) != na || len(c) != nc {
		return top.Params{}, errors.Errorf(
			"vector sizes: a=%d b=%d c=%d, want a=b=%d c=%d", len(a), len(b), len(c), na, nc)
	}

	mem := make([]int32, 0, 2*na+nc+int(j.NbIter))
	mem = append(mem, a...)
	mem = append(mem, b...)
	mem = append(mem, c...)
	mem = append(mem, make([]int32, j.NbIter)...)

	job := ctrl.JobConfig{
		AAddr:      0,
		BAddr:      uint32(na),
		CAddr:      uint32(2 * na),
		DAddr:      uint32(2*na + nc),
		NbIter:     j.NbIter,
		LenIter:    j.Len,
		Shift:      j.Shift,
		SimpleMul:  simple,
		VectStride: stride,
	}
	return top.Params{Job: job, Mem: mem, Program: &prog}, nil
}
