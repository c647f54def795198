package fisher

import (
	"math/big"
)

// ExactEngine sums hypergeometric weights as integers, so ties between equally
// probable tables are decided without rounding.
type ExactEngine struct{}

func (ExactEngine) Name() string { return Exact }

func (ExactEngine) PValue(studyCount, studyTotal, popCount, popTotal int) (float64, error) {
	t, err := newTable(studyCount, studyTotal, popCount, popTotal)
	if err != nil {
		return 0, err
	}
	lo, hi := t.support()
	if lo == hi {
		return 1, nil
	}

	observed := t.weight(t.k)
	sum := new(big.Int)
	for x := lo; x <= hi; x++ {
		if w := t.weight(x); w.Cmp(observed) <= 0 {
			sum.Add(sum, w)
		}
	}

	total := new(big.Int).Binomial(int64(t.N), int64(t.n))
	p, _ := new(big.Rat).SetFrac(sum, total).Float64()
	if p > 1 {
		p = 1
	}
	return p, nil
}

// weight is C(K, x)·C(N-K, n-x), proportional to the probability of drawing x.
func (t table) weight(x int) *big.Int {
	a := new(big.Int).Binomial(int64(t.K), int64(x))
	b := new(big.Int).Binomial(int64(t.N-t.K), int64(t.n-x))
	return a.Mul(a, b)
}
