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
package uloop

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Microcode file format, e.g.:
//
//	loops:
//	  - ops:
//	      - a += iter_stride
//	      - b += iter_stride
//	      - c += one_stride
//	      - d += one_stride
//
// One document describes the whole nest, innermost loop first.
type yamlProgram struct {
	Loops []struct {
		Ops []string `yaml:"ops"`
	} `yaml:"loops"`
}

// ParseProgram assembles a YAML microcode document into a Program.
func ParseProgram(data []byte) (Program, error) {
	var doc yamlProgram
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Program{}, errors.WithMessage(err, "bad microcode yaml")
	}
	var p Program
	for li, loop := range doc.Loops {
		var ops []Op
		for _, mnem := range loop.Ops {
			op, err := ParseOp(mnem)
			if err != nil {
				return Program{}, errors.WithMessagef(err, "loop %d", li)
			}
			ops = append(ops, op)
		}
		p.Loops = append(p.Loops, Loop{Ops: ops})
	}
	if err := p.Validate(); err != nil {
		return Program{}, err
	}
	return p, nil
}

// LoadProgram reads and assembles a microcode file.
func LoadProgram(path string) (Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Program{}, errors.WithMessage(err, "reading microcode")
	}
	p, err := ParseProgram(data)
	if err != nil {
		return Program{}, errors.WithMessage(err, path)
	}
	return p, nil
}

// ParseOp assembles one mnemonic of the form "dest += src" or
// "dest = src".
func ParseOp(s string) (Op, error) {
	fields := strings.Fields(s)
	if len(fields) != 3 {
		return Op{}, errors.Errorf("bad micro-op %q, want \"dest += src\" or \"dest = src\"", s)
	}
	dest, err := regByName(fields[0])
	if err != nil {
		return Op{}, errors.WithMessagef(err, "micro-op %q", s)
	}
	var kind OpKind
	switch fields[1] {
	case "+=":
		kind = OpAdd
	case "=":
		kind = OpMov
	default:
		return Op{}, errors.Errorf("micro-op %q: unknown operation %q", s, fields[1])
	}
	src, err := regByName(fields[2])
	if err != nil {
		return Op{}, errors.WithMessagef(err, "micro-op %q", s)
	}
	return Op{Dest: dest, Kind: kind, Src: src}, nil
}
