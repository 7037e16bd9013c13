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

// macsim runs one MAC job on the cycle-accurate model and checks every
// drained value against the functional reference.
//
// Usage: macsim [options] job.yml
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"

	"github.com/pulp-platform/hwpe-mac-engine/top"
	"github.com/pulp-platform/hwpe-mac-engine/uloop"
)

var (
	codePath = flag.String("code", "", "microcode yaml (default: built-in single loop)")
	cycles   = flag.Uint64("cycles", 1_000_000, "cycle budget")
	dumpCode = flag.Bool("dumpcode", false, "print the assembled microcode and exit")
	quiet    = flag.Bool("q", false, "no progress bar")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	args := flag.Args()
	if len(args) != 1 {
		usage()
	}

	prog := uloop.DefaultProgram()
	if *codePath != "" {
		var err error
		prog, err = uloop.LoadProgram(*codePath)
		if err != nil {
			fatal(3, err.Error())
		}
	}
	if *dumpCode {
		fmt.Print(prog.Disassemble())
		os.Exit(0)
	}

	job, err := loadJob(args[0])
	if err != nil {
		fatal(3, fmt.Sprintf("loading %s: %s", args[0], err.Error()))
	}

	params, err := job.params(prog)
	if err != nil {
		fatal(3, err.Error())
	}
	sys, err := top.Build(params)
	if err != nil {
		fatal(3, err.Error())
	}

	var bar *progressbar.ProgressBar
	onDrain := func(int) {}
	if !*quiet {
		bar = progressbar.Default(int64(job.NbIter), "draining")
		onDrain = func(int) { _ = bar.Add(1) }
	}
	if err := sys.Run(*cycles, onDrain); err != nil {
		fatal(3, err.Error())
	}

	got := sys.Results()
	want := sys.Expected()
	nerr := 0
	for i := range want {
		if got[i] != want[i] {
			klog.Errorf("result %d: got %d, want %d", i, got[i], want[i])
			nerr++
		}
	}
	if nerr > 0 {
		fatal(4, fmt.Sprintf("%d mismatch(es) in %d results", nerr, len(want)))
	}

	c := sys.Cycles()
	fmt.Printf("ok: %s result(s) in %s cycles (%.2f cycles/result)\n",
		humanize.Comma(int64(len(got))), humanize.Comma(int64(c)),
		float64(c)/float64(len(got)))
}

// makeVector returns v unchanged when supplied, or n pseudo-random
// fixed-point values otherwise.
func makeVector(v []int32, n int, rng *rand.Rand) []int32 {
	if v != nil {
		return v
	}
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(rng.Uint32()) >> 8 // keep headroom for shifted seeds
	}
	return out
}

func fatal(code int, s string) {
	fmt.Fprintf(os.Stderr, "macsim: %s\n", s)
	os.Exit(code)
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: macsim [options] job.yml\nOptions:")
	flag.PrintDefaults()
	os.Exit(2)
}
