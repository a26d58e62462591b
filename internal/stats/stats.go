// Package stats provides the numeric kernels behind featuremill's builtin
// aggregation primitives.
package stats

import (
	"math"
	"sort"
)

// Mean returns the arithmetic mean. The caller guarantees len(xs) > 0.
func Mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// SampleStd returns the sample standard deviation. It reports false when
// fewer than two values are available.
func SampleStd(xs []float64) (float64, bool) {
	if len(xs) < 2 {
		return 0, false
	}
	m := Mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1)), true
}

// Slope returns the least-squares slope of ys over xs. It reports false for
// fewer than two points or zero variance in xs.
func Slope(xs, ys []float64) (float64, bool) {
	n := len(xs)
	if n < 2 || n != len(ys) {
		return 0, false
	}
	mx := Mean(xs)
	my := Mean(ys)
	var sxx, sxy float64
	for i := 0; i < n; i++ {
		dx := xs[i] - mx
		sxx += dx * dx
		sxy += dx * (ys[i] - my)
	}
	if sxx == 0 {
		return 0, false
	}
	return sxy / sxx, true
}

// Mode returns the most frequent key. Ties break toward the
// lexicographically smallest key so results do not depend on input order.
// It reports false for empty input.
func Mode(keys []string) (string, bool) {
	if len(keys) == 0 {
		return "", false
	}
	counts := make(map[string]int, len(keys))
	for _, k := range keys {
		counts[k]++
	}
	distinct := make([]string, 0, len(counts))
	for k := range counts {
		distinct = append(distinct, k)
	}
	sort.Strings(distinct)
	best := distinct[0]
	for _, k := range distinct[1:] {
		if counts[k] > counts[best] {
			best = k
		}
	}
	return best, true
}

// NumUnique returns the number of distinct keys.
func NumUnique(keys []string) int {
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		seen[k] = struct{}{}
	}
	return len(seen)
}
