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

import "math/bits"

// Acc128 is a signed 128-bit two's complement value, wide enough that the
// running sum of 64-bit products cannot wrap across any supported
// iteration length. Stored as two 64-bit words, all arithmetic via
// math/bits carries.
type Acc128 struct {
	hi uint64
	lo uint64
}

// Acc128From sign-extends a 64-bit value.
func Acc128From(x int64) Acc128 {
	return Acc128{hi: uint64(x >> 63), lo: uint64(x)}
}

// Add returns a + x with x sign-extended to 128 bits.
func (a Acc128) Add(x int64) Acc128 {
	lo, carry := bits.Add64(a.lo, uint64(x), 0)
	hi, _ := bits.Add64(a.hi, uint64(x>>63), carry)
	return Acc128{hi: hi, lo: lo}
}

// Asr arithmetic-right-shifts by n (0..63) and truncates to 64 bits.
// No rounding, no saturation: the drain path is deliberately lossy.
func (a Acc128) Asr(n uint32) int64 {
	if n == 0 {
		return int64(a.lo)
	}
	return int64(a.lo>>n | a.hi<<(64-n))
}

// Int64 truncates to the low 64 bits.
func (a Acc128) Int64() int64 {
	return int64(a.lo)
}

func (a Acc128) IsZero() bool {
	return a.hi == 0 && a.lo == 0
}
