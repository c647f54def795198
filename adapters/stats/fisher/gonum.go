package fisher

import (
	"math"

	"gonum.org/v1/gonum/stat/combin"
)

// relErr is the relative tolerance under which two table probabilities are
// treated as equal.
const relErr = 1 + 1e-7

// GonumEngine evaluates hypergeometric probabilities in log space with
// gonum's generalized binomial.
type GonumEngine struct{}

func (GonumEngine) Name() string { return Gonum }

func (GonumEngine) PValue(studyCount, studyTotal, popCount, popTotal int) (float64, error) {
	t, err := newTable(studyCount, studyTotal, popCount, popTotal)
	if err != nil {
		return 0, err
	}
	lo, hi := t.support()
	if lo == hi {
		return 1, nil
	}

	norm := combin.LogGeneralizedBinomial(float64(t.N), float64(t.n))
	logPMF := func(x int) float64 {
		return combin.LogGeneralizedBinomial(float64(t.K), float64(x)) +
			combin.LogGeneralizedBinomial(float64(t.N-t.K), float64(t.n-x)) - norm
	}

	cutoff := logPMF(t.k) + math.Log(relErr)
	var p float64
	for x := lo; x <= hi; x++ {
		if lp := logPMF(x); lp <= cutoff {
			p += math.Exp(lp)
		}
	}
	return math.Min(p, 1), nil
}
