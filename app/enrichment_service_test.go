package app

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"goea/adapters/stats/fisher"
	"goea/domain/core"
	"goea/domain/enrichment"
	"goea/domain/ontology"
	"goea/internal/subdag"
	"goea/ports"
)

type MockRunRepository struct {
	mock.Mock
}

func (m *MockRunRepository) SaveRun(ctx context.Context, run *enrichment.Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunRepository) GetRun(ctx context.Context, id core.RunID) (*enrichment.Run, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(*enrichment.Run), args.Error(1)
}

func (m *MockRunRepository) ListRuns(ctx context.Context, limit int) ([]ports.RunHeader, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]ports.RunHeader), args.Error(1)
}

type fixedCalculator float64

func (fixedCalculator) Name() string { return "fixed" }

func (f fixedCalculator) PValue(int, int, int, int) (float64, error) { return float64(f), nil }

type fisherTable struct{ k, n, K, N int }

// recordingCalculator delegates to the exact engine and keeps every table.
type recordingCalculator struct {
	mu     sync.Mutex
	tables []fisherTable
}

func (*recordingCalculator) Name() string { return "recording" }

func (r *recordingCalculator) PValue(k, n, K, N int) (float64, error) {
	r.mu.Lock()
	r.tables = append(r.tables, fisherTable{k, n, K, N})
	r.mu.Unlock()
	return fisher.ExactEngine{}.PValue(k, n, K, N)
}

func testGraph(t *testing.T) *ontology.Graph {
	t.Helper()
	g := ontology.NewGraph(5)
	for _, term := range []*ontology.Term{
		{ID: "GO:ROOT", Name: "biological_process", Namespace: "biological_process"},
		{ID: "GO:X", Name: "x process", Namespace: "biological_process", AltIDs: []ontology.TermID{"GO:XALT"}},
		{ID: "GO:Y", Name: "y process", Namespace: "biological_process"},
		{ID: "GO:OBS", Name: "obsolete process", Namespace: "biological_process", Obsolete: true},
		{ID: "GO:M", Name: "m function", Namespace: "molecular_function"},
	} {
		require.NoError(t, g.AddTerm(term))
	}
	require.NoError(t, g.Link("GO:X", ontology.IsA, "GO:ROOT"))
	require.NoError(t, g.Link("GO:Y", ontology.IsA, "GO:ROOT"))
	require.NoError(t, g.Link("GO:OBS", ontology.IsA, "GO:ROOT"))
	return g
}

// Population p1..p10: p1-p3 carry X, p4-p10 carry Y, p1 also carries M and
// p5 an id the ontology lacks. q1 sits outside both sets and carries the
// obsolete term. The study is {p1, p2}.
func testData() (study, population enrichment.ItemSet, assoc enrichment.Associations) {
	assoc = make(enrichment.Associations)
	population = make(enrichment.ItemSet)
	for i, item := range []enrichment.ItemID{"p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8", "p9", "p10"} {
		population.Add(item)
		if i < 3 {
			assoc.Add(item, "GO:X")
		} else {
			assoc.Add(item, "GO:Y")
		}
	}
	assoc.Add("p3", "GO:XALT")
	assoc.Add("p1", "GO:M")
	assoc.Add("p5", "GO:NOPE")
	assoc.Add("q1", "GO:OBS")
	return enrichment.NewItemSet("p1", "p2"), population, assoc
}

func newService(t *testing.T, opts ...EnrichmentOption) *EnrichmentService {
	t.Helper()
	svc, err := NewEnrichmentService(fisher.ExactEngine{},
		[]string{enrichment.MethodBonferroni, enrichment.MethodFDRBH}, opts...)
	require.NoError(t, err)
	return svc
}

func TestRunScoresDataDerivedUniverse(t *testing.T) {
	study, population, assoc := testData()
	run, err := newService(t).Run(context.Background(), study, population, assoc, testGraph(t))
	require.NoError(t, err)

	assert.Equal(t, fisher.Exact, run.TestMethod)
	assert.Equal(t, []string{enrichment.MethodBonferroni, enrichment.MethodFDRBH}, run.Methods)
	assert.Equal(t, 2, run.StudyTotal)
	assert.Equal(t, 10, run.PopTotal)

	ids := make([]ontology.TermID, len(run.Results))
	for i, r := range run.Results {
		ids[i] = r.TermID
	}
	assert.Equal(t, []ontology.TermID{"GO:X", "GO:Y", "GO:M", "GO:NOPE"}, ids)

	x, ok := run.Result("GO:X")
	require.True(t, ok)
	assert.Equal(t, 2, x.StudyCount)
	assert.Equal(t, 2, x.StudyTotal)
	assert.Equal(t, 3, x.PopCount)
	assert.Equal(t, 10, x.PopTotal)
	assert.Equal(t, enrichment.Enriched, x.Direction)
	assert.Equal(t, "x process", x.Name)
	assert.Equal(t, "biological_process", x.Namespace)
	assert.InDelta(t, 1.0/15, x.PUncorrected, 1e-12)
	assert.InDelta(t, 4.0/15, x.Corrected[enrichment.MethodBonferroni], 1e-12)

	y, _ := run.Result("GO:Y")
	assert.Equal(t, enrichment.Purified, y.Direction)
	assert.Equal(t, 0, y.StudyCount)
	assert.Equal(t, 7, y.PopCount)

	m, _ := run.Result("GO:M")
	assert.InDelta(t, 0.2, m.PUncorrected, 1e-12)
	assert.Equal(t, enrichment.Enriched, m.Direction)

	nope, _ := run.Result("GO:NOPE")
	assert.Empty(t, nope.Name)
	assert.Empty(t, nope.Namespace)
	assert.Equal(t, 1.0, nope.PUncorrected)

	_, ok = run.Result("GO:OBS")
	assert.False(t, ok, "obsolete term outside the population must not be tested")

	require.Len(t, run.Warnings, 1)
	assert.Equal(t, core.WarningUnknownTerm, run.Warnings[0].Code)
	assert.Equal(t, "GO:NOPE", run.Warnings[0].Entity)

	assert.Equal(t, 4, run.Summary.Tests)
	assert.InDelta(t, 1.0/15, run.Summary.MinP, 1e-12)
	assert.Equal(t, 0, run.Summary.Significant[enrichment.MethodBonferroni])
	assert.Equal(t, 2, run.Summary.EnrichedN)
	assert.Equal(t, 2, run.Summary.PurifiedN)
}

func TestRunCorrectionsAreBounded(t *testing.T) {
	study, population, assoc := testData()
	run, err := newService(t).Run(context.Background(), study, population, assoc, testGraph(t))
	require.NoError(t, err)

	prev := 0.0
	for _, r := range run.Results {
		bonf := r.Corrected[enrichment.MethodBonferroni]
		bh := r.Corrected[enrichment.MethodFDRBH]
		assert.GreaterOrEqual(t, bonf, r.PUncorrected)
		assert.LessOrEqual(t, bonf, 1.0)
		assert.GreaterOrEqual(t, bh, prev)
		prev = bh
	}
}

func TestRunRejectsEmptyInput(t *testing.T) {
	_, population, assoc := testData()
	svc := newService(t)
	g := testGraph(t)

	run, err := svc.Run(context.Background(), enrichment.NewItemSet(), population, assoc, g)
	assert.Nil(t, run)
	assert.ErrorIs(t, err, core.ErrInput)

	var inputErr *core.InputError
	require.True(t, errors.As(err, &inputErr))
	assert.Equal(t, "study", inputErr.Entity)

	_, err = svc.Run(context.Background(), enrichment.NewItemSet("p1"), enrichment.NewItemSet(), assoc, g)
	assert.ErrorIs(t, err, core.ErrInput)

	_, err = svc.Run(context.Background(), enrichment.NewItemSet("zz"), population, assoc, g)
	assert.ErrorIs(t, err, core.ErrInput)

	_, err = svc.Run(context.Background(), enrichment.NewItemSet("p1"), enrichment.NewItemSet("zz"), assoc, g)
	assert.ErrorIs(t, err, core.ErrInput)
}

func TestRunWarnsOnObsoleteTestedTerm(t *testing.T) {
	study, population, assoc := testData()
	assoc.Add("p4", "GO:OBS")

	run, err := newService(t).Run(context.Background(), study, population, assoc, testGraph(t))
	require.NoError(t, err)

	obs, ok := run.Result("GO:OBS")
	require.True(t, ok)
	assert.True(t, obs.Obsolete)
	assert.Equal(t, 0, obs.StudyCount)
	assert.Equal(t, 1.0, obs.PUncorrected)

	codes := map[core.WarningCode]string{}
	for _, w := range run.Warnings {
		codes[w.Code] = w.Entity
	}
	assert.Equal(t, "GO:OBS", codes[core.WarningObsoleteTerm])
}

func TestRunPropagatesToAncestors(t *testing.T) {
	study, population, assoc := testData()
	g := testGraph(t)
	b := subdag.NewBuilder(g)

	run, err := newService(t, WithPropagation(ontology.NewRelationshipFilter()), WithBuilder(b)).
		Run(context.Background(), study, population, assoc, g)
	require.NoError(t, err)

	root, ok := run.Result("GO:ROOT")
	require.True(t, ok)
	assert.Equal(t, 2, root.StudyCount)
	assert.Equal(t, 10, root.PopCount)
	assert.Equal(t, 1.0, root.PUncorrected)
	assert.Equal(t, enrichment.Enriched, root.Direction)

	_, ok = run.Result("GO:OBS")
	assert.False(t, ok)
}

func TestRunRestrictsNamespaces(t *testing.T) {
	study, population, assoc := testData()
	run, err := newService(t, WithNamespaces("molecular_function")).
		Run(context.Background(), study, population, assoc, testGraph(t))
	require.NoError(t, err)

	require.Len(t, run.Results, 1)
	assert.Equal(t, ontology.TermID("GO:M"), run.Results[0].TermID)
	assert.Empty(t, run.Warnings)
}

func TestRunSurfacesEngineDisagreement(t *testing.T) {
	study, population, assoc := testData()
	svc, err := NewEnrichmentService(
		fisher.NewCrossChecked(fixedCalculator(0.5), fisher.ExactEngine{}, 1e-9),
		[]string{enrichment.MethodFDRBH}, WithWorkers(1))
	require.NoError(t, err)

	_, err = svc.Run(context.Background(), study, population, assoc, testGraph(t))
	require.Error(t, err)

	var nd *core.NumericDisagreementError
	require.True(t, errors.As(err, &nd))
	assert.Contains(t, []string{"GO:M", "GO:NOPE", "GO:X", "GO:Y"}, nd.TermID)
	assert.Equal(t, [2]string{"fixed", fisher.Exact}, nd.Engines)
}

func TestRunArchivesToRepository(t *testing.T) {
	study, population, assoc := testData()
	repo := new(MockRunRepository)
	repo.On("SaveRun", mock.Anything, mock.AnythingOfType("*enrichment.Run")).Return(nil)

	run, err := newService(t, WithRepository(repo)).Run(context.Background(), study, population, assoc, testGraph(t))
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	repo.AssertExpectations(t)
}

func TestNewEnrichmentServiceValidatesMethods(t *testing.T) {
	_, err := NewEnrichmentService(fisher.ExactEngine{}, []string{"holm"})
	assert.Error(t, err)

	_, err = NewEnrichmentService(nil, nil)
	assert.Error(t, err)

	svc, err := NewEnrichmentService(fisher.GonumEngine{}, []string{"fdr_bh", "fdr_bh", "bonferroni"})
	require.NoError(t, err)
	assert.Equal(t, []string{"fdr_bh", "bonferroni"}, svc.Methods())
}

func TestRunZeroStudyCountIsNeverEnriched(t *testing.T) {
	study, population, assoc := testData()
	run, err := newService(t).Run(context.Background(), study, population, assoc, testGraph(t))
	require.NoError(t, err)

	for _, r := range run.Results {
		if r.StudyCount == 0 {
			assert.Equal(t, enrichment.Purified, r.Direction, r.TermID)
		}
	}
}

func TestRunDrawsDisjointStudyFromUnion(t *testing.T) {
	_, population, assoc := testData()
	assoc.Add("s1", "GO:X")
	assoc.Add("s2", "GO:X")
	study := enrichment.NewItemSet("s1", "s2")

	calc := &recordingCalculator{}
	svc, err := NewEnrichmentService(calc, []string{enrichment.MethodBonferroni})
	require.NoError(t, err)
	run, err := svc.Run(context.Background(), study, population, assoc, testGraph(t))
	require.NoError(t, err)

	assert.Contains(t, calc.tables, fisherTable{2, 2, 5, 12})
	assert.Len(t, calc.tables, len(run.Results))

	x, ok := run.Result("GO:X")
	require.True(t, ok)
	assert.Equal(t, 2, x.StudyCount)
	assert.Equal(t, 2, x.StudyTotal)
	assert.Equal(t, 3, x.PopCount)
	assert.Equal(t, 10, x.PopTotal)
	assert.Equal(t, 10, run.PopTotal)
	assert.Equal(t, enrichment.Enriched, x.Direction)

	p, err := fisher.ExactEngine{}.PValue(2, 2, 5, 12)
	require.NoError(t, err)
	assert.Equal(t, p, x.PUncorrected)
}
