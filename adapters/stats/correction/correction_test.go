package correction

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goea/domain/enrichment"
)

func TestBonferroni(t *testing.T) {
	got := Bonferroni([]float64{0.01, 0.2, 0.5, 0.001})
	assert.InDeltaSlice(t, []float64{0.04, 0.8, 1, 0.004}, got, 1e-12)
	assert.Empty(t, Bonferroni(nil))
}

func TestBenjaminiHochbergKnownValues(t *testing.T) {
	// Values agree with statsmodels multipletests(method="fdr_bh").
	pvals := []float64{0.01, 0.04, 0.03, 0.005, 0.5}
	got := BenjaminiHochberg(pvals)
	assert.InDeltaSlice(t, []float64{0.025, 0.05, 0.05, 0.025, 0.5}, got, 1e-12)
}

func TestBenjaminiHochbergEnforcesMonotonicity(t *testing.T) {
	// Unadjusted p·m/rank is 0.045 for rank 1 and 0.0375 for rank 2.
	got := BenjaminiHochberg([]float64{0.015, 0.025, 0.9})
	assert.InDeltaSlice(t, []float64{0.0375, 0.0375, 0.9}, got, 1e-12)
}

func TestBenjaminiHochbergTies(t *testing.T) {
	got := BenjaminiHochberg([]float64{0.02, 0.02, 0.02, 0.02})
	assert.InDeltaSlice(t, []float64{0.02, 0.02, 0.02, 0.02}, got, 1e-12)
	assert.Empty(t, BenjaminiHochberg(nil))
}

func TestBenjaminiHochbergNeverBelowRawP(t *testing.T) {
	// p*5/5 rounds one ulp below p for this value.
	pvals := []float64{0.1, 0.2, 0.3, 0.4, 0.83437321766171069}
	got := BenjaminiHochberg(pvals)
	for i, p := range pvals {
		assert.GreaterOrEqual(t, got[i], p, "index %d", i)
	}
	assert.Equal(t, pvals[4], got[4])

	for m := 1; m <= 64; m++ {
		largest := 1 - 1/float64(m+3)
		pvals := make([]float64, m)
		for i := range pvals {
			pvals[i] = largest * float64(i+1) / float64(m)
		}
		pvals[m-1] = largest
		assert.Equal(t, largest, BenjaminiHochberg(pvals)[m-1], "m=%d", m)
	}
}

func TestCorrectionProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		pvals := make([]float64, 1+rng.Intn(200))
		for i := range pvals {
			pvals[i] = rng.Float64()
			if rng.Intn(10) == 0 {
				pvals[i] = pvals[0]
			}
		}

		bonf := Bonferroni(pvals)
		bh := BenjaminiHochberg(pvals)
		for i, p := range pvals {
			assert.GreaterOrEqual(t, bonf[i], p)
			assert.LessOrEqual(t, bonf[i], 1.0)
			assert.GreaterOrEqual(t, bh[i], p)
			assert.LessOrEqual(t, bh[i], 1.0)
			assert.LessOrEqual(t, bh[i], bonf[i])
		}

		order := make([]int, len(pvals))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool { return pvals[order[a]] < pvals[order[b]] })
		for i := 1; i < len(order); i++ {
			require.LessOrEqual(t, bh[order[i-1]], bh[order[i]], "trial %d rank %d", trial, i)
		}
	}
}

func TestApply(t *testing.T) {
	got, err := Apply(enrichment.MethodBonferroni, []float64{0.1, 0.2})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.2, 0.4}, got, 1e-12)

	_, err = Apply("holm", []float64{0.1})
	assert.Error(t, err)
	assert.Equal(t, []string{enrichment.MethodBonferroni, enrichment.MethodFDRBH}, Methods())
}
