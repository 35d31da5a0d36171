package scheduler

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// Strategy decides which repositories each worker receives.
type Strategy string

const (
	// Successive deals repositories round-robin: worker i gets i, i+k, i+2k...
	Successive Strategy = "successive"
	// Percentile gives worker i the block [i*s, (i+1)*s) with s = n/k; the
	// last worker also takes the remainder.
	Percentile Strategy = "percentile"
	// Random shuffles the list with a seeded PCG permutation, then splits it
	// like Percentile. The same seed always yields the same assignment.
	Random Strategy = "random"
)

func (s Strategy) Valid() bool {
	switch s {
	case Successive, Percentile, Random:
		return true
	}
	return false
}

// ParseStrategy accepts a strategy name in any case.
func ParseStrategy(s string) (Strategy, error) {
	st := Strategy(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown division strategy %q (want successive, percentile or random)", s)
	}
	return st, nil
}

// WorkerSlice returns worker's share of items. Across all workers in
// [0, workers) the shares are pairwise disjoint and cover items exactly.
// An out-of-range worker or unknown strategy gets nothing.
func WorkerSlice[T any](worker, workers int, items []T, s Strategy, seed uint64) []T {
	if workers < 1 || worker < 0 || worker >= workers {
		return nil
	}
	switch s {
	case Successive:
		var out []T
		for i := worker; i < len(items); i += workers {
			out = append(out, items[i])
		}
		return out
	case Percentile:
		lo, hi := percentileBounds(worker, workers, len(items))
		return append([]T(nil), items[lo:hi]...)
	case Random:
		perm := permutation(len(items), seed)
		lo, hi := percentileBounds(worker, workers, len(items))
		out := make([]T, 0, hi-lo)
		for _, idx := range perm[lo:hi] {
			out = append(out, items[idx])
		}
		return out
	default:
		return nil
	}
}

func percentileBounds(worker, workers, n int) (int, int) {
	size := n / workers
	lo := worker * size
	hi := lo + size
	if worker == workers-1 {
		hi = n
	}
	return lo, hi
}

func permutation(n int, seed uint64) []int {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return r.Perm(n)
}

// WorkerQuota is entries/workers for every worker but the last, which also
// takes the remainder. The quotas always sum to entries.
func WorkerQuota(worker, workers, entries int) int {
	if workers < 1 || worker < 0 || worker >= workers || entries < 0 {
		return 0
	}
	base := entries / workers
	if worker == workers-1 {
		return entries - base*(workers-1)
	}
	return base
}
