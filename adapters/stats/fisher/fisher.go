// Package fisher implements the two-sided Fisher exact test used to score
// ontology terms, with an exact rational engine and a gonum log-space engine.
package fisher

import (
	"fmt"
	"math"
	"sort"

	"goea/domain/core"
	"goea/ports"
)

// Engine names accepted by New.
const (
	Exact = "fisher_exact"
	Gonum = "fisher_gonum"
)

// DefaultTolerance bounds the disagreement allowed between two engines.
const DefaultTolerance = 1e-9

var engines = map[string]func() ports.PValueCalculator{
	Exact: func() ports.PValueCalculator { return ExactEngine{} },
	Gonum: func() ports.PValueCalculator { return GonumEngine{} },
}

// New returns the engine registered under name.
func New(name string) (ports.PValueCalculator, error) {
	ctor, ok := engines[name]
	if !ok {
		return nil, fmt.Errorf("unknown p-value engine %q (available: %v)", name, Names())
	}
	return ctor(), nil
}

// Names lists the registered engines.
func Names() []string {
	names := make([]string, 0, len(engines))
	for n := range engines {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// table is a 2x2 contingency table in hypergeometric form: n items drawn from
// a background of N, of which K carry the term and k of the drawn ones do.
type table struct {
	k, n, K, N int
}

func newTable(studyCount, studyTotal, popCount, popTotal int) (table, error) {
	t := table{k: studyCount, n: studyTotal, K: popCount, N: popTotal}
	switch {
	case t.k < 0 || t.n < 0 || t.K < 0 || t.N < 0:
		return t, core.NewInputError(t.String(), "counts must be non-negative")
	case t.k > t.n:
		return t, core.NewInputError(t.String(), "study count exceeds study total")
	case t.K > t.N:
		return t, core.NewInputError(t.String(), "population count exceeds population total")
	case t.k > t.K:
		return t, core.NewInputError(t.String(), "study count exceeds population count")
	case t.n-t.k > t.N-t.K:
		return t, core.NewInputError(t.String(), "study set is larger than the background")
	}
	return t, nil
}

// support returns the range of feasible values for the drawn count.
func (t table) support() (lo, hi int) {
	lo = t.n - (t.N - t.K)
	if lo < 0 {
		lo = 0
	}
	hi = t.n
	if t.K < hi {
		hi = t.K
	}
	return lo, hi
}

func (t table) String() string {
	return fmt.Sprintf("%d/%d vs %d/%d", t.k, t.n, t.K, t.N)
}

// CrossChecked evaluates every table with two engines and fails when they
// disagree beyond the tolerance.
type CrossChecked struct {
	primary   ports.PValueCalculator
	reference ports.PValueCalculator
	tolerance float64
}

// NewCrossChecked wraps primary with a reference engine. A non-positive
// tolerance selects DefaultTolerance.
func NewCrossChecked(primary, reference ports.PValueCalculator, tolerance float64) *CrossChecked {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &CrossChecked{primary: primary, reference: reference, tolerance: tolerance}
}

// Name reports the primary engine.
func (c *CrossChecked) Name() string { return c.primary.Name() }

// PValue returns the primary engine's value once the reference agrees with it.
func (c *CrossChecked) PValue(studyCount, studyTotal, popCount, popTotal int) (float64, error) {
	p, err := c.primary.PValue(studyCount, studyTotal, popCount, popTotal)
	if err != nil {
		return 0, err
	}
	ref, err := c.reference.PValue(studyCount, studyTotal, popCount, popTotal)
	if err != nil {
		return 0, err
	}
	if math.Abs(p-ref) > c.tolerance*(1+math.Max(math.Abs(p), math.Abs(ref))) {
		return 0, &core.NumericDisagreementError{
			TermID:    table{k: studyCount, n: studyTotal, K: popCount, N: popTotal}.String(),
			Engines:   [2]string{c.primary.Name(), c.reference.Name()},
			Values:    [2]float64{p, ref},
			Tolerance: c.tolerance,
		}
	}
	return p, nil
}
