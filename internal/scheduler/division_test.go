package scheduler

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestWorkerSlice_SuccessiveInterleaves(t *testing.T) {
	for n := 0; n <= 17; n++ {
		for k := 1; k <= 6; k++ {
			items := seq(n)
			slices := make([][]int, k)
			for i := 0; i < k; i++ {
				slices[i] = WorkerSlice(i, k, items, Successive, 0)
			}

			// reassemble by interleaving
			var got []int
			for round := 0; len(got) < n; round++ {
				for i := 0; i < k; i++ {
					if round < len(slices[i]) {
						got = append(got, slices[i][round])
					}
				}
			}
			if n == 0 {
				got = []int{}
			}
			assert.Equal(t, items, got, "n=%d k=%d", n, k)
		}
	}
}

func TestWorkerSlice_PercentileSizes(t *testing.T) {
	for n := 0; n <= 17; n++ {
		for k := 1; k <= 6; k++ {
			items := seq(n)
			next := 0
			for i := 0; i < k; i++ {
				s := WorkerSlice(i, k, items, Percentile, 0)
				want := n / k
				if i == k-1 {
					want = n - (k-1)*(n/k)
				}
				require.Len(t, s, want, "n=%d k=%d worker=%d", n, k, i)
				for _, v := range s {
					assert.Equal(t, next, v, "contiguous n=%d k=%d", n, k)
					next++
				}
			}
			assert.Equal(t, n, next)
		}
	}
}

func TestWorkerSlice_RandomIsSeededPartition(t *testing.T) {
	items := seq(23)
	k := 4

	var all []int
	for i := 0; i < k; i++ {
		a := WorkerSlice(i, k, items, Random, 42)
		b := WorkerSlice(i, k, items, Random, 42)
		assert.Equal(t, a, b, "same seed, same slice")
		all = append(all, a...)
	}
	sort.Ints(all)
	assert.Equal(t, items, all, "disjoint and covering")

	var first, other []int
	for i := 0; i < k; i++ {
		first = append(first, WorkerSlice(i, k, items, Random, 1)...)
		other = append(other, WorkerSlice(i, k, items, Random, 2)...)
	}
	assert.NotEqual(t, first, other, "different seeds shuffle differently")
}

func TestWorkerSlice_OutOfRange(t *testing.T) {
	items := seq(4)
	assert.Nil(t, WorkerSlice(4, 4, items, Successive, 0))
	assert.Nil(t, WorkerSlice(-1, 4, items, Percentile, 0))
	assert.Nil(t, WorkerSlice(0, 0, items, Percentile, 0))
	assert.Nil(t, WorkerSlice(0, 2, items, Strategy("zigzag"), 0))
}

func TestWorkerQuota_SumsToEntries(t *testing.T) {
	for entries := 0; entries <= 40; entries++ {
		for k := 1; k <= 7; k++ {
			sum := 0
			for i := 0; i < k; i++ {
				q := WorkerQuota(i, k, entries)
				if i < k-1 {
					assert.Equal(t, entries/k, q)
				}
				sum += q
			}
			assert.Equal(t, entries, sum, "entries=%d k=%d", entries, k)
		}
	}
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("PERCENTILE")
	require.NoError(t, err)
	assert.Equal(t, Percentile, s)

	_, err = ParseStrategy("roundrobin")
	assert.Error(t, err)
}
