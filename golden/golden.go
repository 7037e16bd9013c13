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

// Package golden is the functional reference model: it computes what the
// cycle-accurate engine must drain, with the same widths and the same
// truncating shifts, but with no notion of time. Tests and the checker
// CLI compare the pipeline's output against it.
package golden

import "github.com/pulp-platform/hwpe-mac-engine/mac"

// MulShift is the simple-multiply mode result for one a/b pair: the full
// signed 64-bit product, arithmetic-right-shifted and truncated to the
// 32-bit stream width.
func MulShift(a, b int32, shift uint32) int32 {
	return int32((int64(a) * int64(b)) >> shift)
}

// Dot is the scalar-product mode result for one pass: the seed shifted
// into the accumulator's fixed-point format plus the products of the
// operand pairs, accumulated at 128 bits, then shifted back down and
// truncated to the stream width. len(as) must equal len(bs).
func Dot(seed int32, as, bs []int32, shift uint32) int32 {
	acc := mac.Acc128From(int64(seed) << shift)
	for i := range as {
		acc = acc.Add(int64(as[i]) * int64(bs[i]))
	}
	return int32(acc.Asr(shift))
}

// DotPasses splits flat operand vectors into nbIter passes of length n
// and returns the per-pass results. Pass k is seeded from seeds[k].
func DotPasses(seeds, as, bs []int32, n int, shift uint32) []int32 {
	out := make([]int32, 0, len(seeds))
	for k := range seeds {
		lo := k * n
		hi := lo + n
		out = append(out, Dot(seeds[k], as[lo:hi], bs[lo:hi], shift))
	}
	return out
}
