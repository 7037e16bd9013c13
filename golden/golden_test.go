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
package golden

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMulShift(t *testing.T) {
	require.Equal(t, int32(12), MulShift(3, 4, 0))
	require.Equal(t, int32(16), MulShift(8, 8, 2))
	require.Equal(t, int32(-16), MulShift(-255, 1, 4), "arithmetic shift truncates")

	// The product is formed at 64 bits before the shift, so the largest
	// operands survive a full-width shift; only the final 32-bit
	// truncation wraps, and 2^31 lands on MinInt32.
	require.Equal(t, int32(math.MinInt32), MulShift(math.MinInt32, math.MinInt32, 31))
}

func TestDot(t *testing.T) {
	require.Equal(t, int32(15), Dot(5, []int32{2, 4}, []int32{3, 1}, 0))
	// The seed rides through the shift unscaled.
	require.Equal(t, int32(-6), Dot(-7, []int32{16}, []int32{16}, 8))
	require.Equal(t, int32(9), Dot(9, nil, nil, 3))
}

func TestDotMatchesPlainSum(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 50; trial++ {
		n := 1 + rng.Intn(32)
		as := make([]int32, n)
		bs := make([]int32, n)
		sum := int64(0)
		for i := range as {
			as[i] = int32(rng.Intn(1<<16)) - 1<<15
			bs[i] = int32(rng.Intn(1<<16)) - 1<<15
			sum += int64(as[i]) * int64(bs[i])
		}
		seed := int32(rng.Intn(1<<16)) - 1<<15
		require.Equal(t, int32((int64(seed)<<4+sum)>>4), Dot(seed, as, bs, 4))
	}
}

func TestDotPasses(t *testing.T) {
	seeds := []int32{100, -100}
	as := []int32{1, 2, 3, 4}
	bs := []int32{5, 6, 7, 8}
	got := DotPasses(seeds, as, bs, 2, 0)
	require.Equal(t, []int32{100 + 5 + 12, -100 + 21 + 32}, got)
}
