package fisher

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goea/domain/core"
)

// Reference values are the two-sided Fisher exact p-values of each table.
var knownTables = []struct {
	name       string
	k, n, K, N int
	want       float64
}{
	{"all study items annotated", 2, 2, 3, 10, 1.0 / 15},
	{"tea tasting", 3, 4, 4, 8, 0.4857142857142857},
	{"strong association", 8, 10, 9, 16, 0.03496503496503497},
	{"no deviation", 1, 2, 3, 10, 1},
	{"depleted", 0, 20, 30, 100, 0.0006092249029492867},
	{"rare term", 5, 20, 10, 1000, 4.445238131152312e-07},
	{"absent from study", 0, 2, 3, 10, 1},
	{"single feasible table", 0, 3, 0, 10, 1},
	{"empty study", 0, 0, 4, 10, 1},
}

func TestEnginesMatchReferenceValues(t *testing.T) {
	for _, name := range Names() {
		engine, err := New(name)
		require.NoError(t, err)
		for _, tt := range knownTables {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				p, err := engine.PValue(tt.k, tt.n, tt.K, tt.N)
				require.NoError(t, err)
				assert.InDelta(t, tt.want, p, 1e-12*(1+tt.want))
				assert.LessOrEqual(t, p, 1.0)
				assert.Greater(t, p, 0.0)
			})
		}
	}
}

func TestEnginesAgreeOnGrid(t *testing.T) {
	exact, gonum := ExactEngine{}, GonumEngine{}
	checked := NewCrossChecked(exact, gonum, 0)

	N := 40
	for K := 0; K <= N; K += 7 {
		for n := 0; n <= N; n += 9 {
			lo, hi := table{n: n, K: K, N: N}.support()
			for k := lo; k <= hi; k++ {
				_, err := checked.PValue(k, n, K, N)
				require.NoError(t, err, "table %d/%d vs %d/%d", k, n, K, N)
			}
		}
	}
}

func TestInvalidTables(t *testing.T) {
	tests := []struct {
		name       string
		k, n, K, N int
	}{
		{"negative", -1, 2, 3, 10},
		{"study count over total", 3, 2, 3, 10},
		{"population count over total", 1, 2, 11, 10},
		{"study count over population count", 3, 3, 2, 10},
		{"study larger than background", 0, 9, 3, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, engine := range []interface {
				PValue(int, int, int, int) (float64, error)
			}{ExactEngine{}, GonumEngine{}} {
				_, err := engine.PValue(tt.k, tt.n, tt.K, tt.N)
				assert.ErrorIs(t, err, core.ErrInput)
			}
		})
	}
}

type constant struct {
	name string
	p    float64
}

func (c constant) Name() string { return c.name }

func (c constant) PValue(int, int, int, int) (float64, error) { return c.p, nil }

func TestCrossCheckedReportsDisagreement(t *testing.T) {
	checked := NewCrossChecked(constant{"a", 0.01}, constant{"b", 0.02}, 1e-6)
	assert.Equal(t, "a", checked.Name())

	_, err := checked.PValue(1, 2, 3, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNumericDisagreement)

	var nd *core.NumericDisagreementError
	require.True(t, errors.As(err, &nd))
	assert.Equal(t, [2]string{"a", "b"}, nd.Engines)
	assert.Equal(t, [2]float64{0.01, 0.02}, nd.Values)

	p, err := NewCrossChecked(constant{"a", 0.5}, constant{"b", 0.5 + 1e-12}, 1e-9).PValue(1, 2, 3, 10)
	require.NoError(t, err)
	assert.Equal(t, 0.5, p)
}

func TestNewRejectsUnknownEngine(t *testing.T) {
	_, err := New("fisher_scipy_stats")
	assert.Error(t, err)
	assert.Equal(t, []string{Exact, Gonum}, Names())
}
