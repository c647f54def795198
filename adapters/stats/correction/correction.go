// Package correction adjusts a batch of p-values for multiple testing.
package correction

import (
	"fmt"
	"math"
	"sort"

	"goea/domain/enrichment"
)

// Func adjusts pvals and returns the corrected values in input order.
type Func func(pvals []float64) []float64

var methods = map[string]Func{
	enrichment.MethodBonferroni: Bonferroni,
	enrichment.MethodFDRBH:      BenjaminiHochberg,
}

// Methods lists the supported method names.
func Methods() []string {
	names := make([]string, 0, len(methods))
	for n := range methods {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the correction registered under method.
func Lookup(method string) (Func, error) {
	fn, ok := methods[method]
	if !ok {
		return nil, fmt.Errorf("unknown correction method %q (available: %v)", method, Methods())
	}
	return fn, nil
}

// Apply runs method over the whole batch.
func Apply(method string, pvals []float64) ([]float64, error) {
	fn, err := Lookup(method)
	if err != nil {
		return nil, err
	}
	return fn(pvals), nil
}

// Bonferroni multiplies every p-value by the number of tests, capped at 1.
func Bonferroni(pvals []float64) []float64 {
	m := float64(len(pvals))
	out := make([]float64, len(pvals))
	for i, p := range pvals {
		out[i] = math.Min(1, p*m)
	}
	return out
}

// BenjaminiHochberg applies the step-up FDR adjustment: q_(i) = p_(i)·m/i,
// made monotone by a running minimum from the largest rank down, capped at 1.
func BenjaminiHochberg(pvals []float64) []float64 {
	m := len(pvals)
	out := make([]float64, m)
	if m == 0 {
		return out
	}

	order := make([]int, m)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return pvals[order[a]] < pvals[order[b]] })

	running := 1.0
	for rank := m; rank >= 1; rank-- {
		idx := order[rank-1]
		// The factor is exactly 1 at rank m, so q never drops below p.
		q := math.Max(pvals[idx]*(float64(m)/float64(rank)), pvals[idx])
		if q < running {
			running = q
		}
		out[idx] = running
	}
	return out
}
