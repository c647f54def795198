package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"

	"goea/adapters/stats/correction"
	"goea/domain/core"
	"goea/domain/enrichment"
	"goea/domain/ontology"
	"goea/internal/subdag"
	"goea/ports"
)

// DefaultAlpha is the significance level used for run summaries.
const DefaultAlpha = 0.05

// EnrichmentService tests every data-derived term for over- or
// under-representation in a study set.
type EnrichmentService struct {
	calc        ports.PValueCalculator
	methods     []string
	corrections []correction.Func

	propagate  bool
	filter     ontology.RelationshipFilter
	builder    *subdag.Builder
	namespaces map[string]struct{}

	alpha   float64
	workers int
	repo    ports.RunRepository
	logger  *slog.Logger
}

// EnrichmentOption configures an EnrichmentService.
type EnrichmentOption func(*EnrichmentService)

// WithPropagation annotates each item with every ancestor of its terms under
// filter before counting.
func WithPropagation(filter ontology.RelationshipFilter) EnrichmentOption {
	return func(s *EnrichmentService) {
		s.propagate = true
		s.filter = filter
	}
}

// WithBuilder reuses an indexed graph for propagation. It is ignored when Run
// receives a different graph.
func WithBuilder(b *subdag.Builder) EnrichmentOption {
	return func(s *EnrichmentService) { s.builder = b }
}

// WithNamespaces restricts the tested terms to the given namespaces.
func WithNamespaces(namespaces ...string) EnrichmentOption {
	return func(s *EnrichmentService) {
		for _, ns := range namespaces {
			if ns == "" {
				continue
			}
			if s.namespaces == nil {
				s.namespaces = make(map[string]struct{})
			}
			s.namespaces[ns] = struct{}{}
		}
	}
}

// WithAlpha sets the significance level reported in the run summary.
func WithAlpha(alpha float64) EnrichmentOption {
	return func(s *EnrichmentService) {
		if alpha > 0 && alpha < 1 {
			s.alpha = alpha
		}
	}
}

// WithWorkers bounds concurrent term scoring.
func WithWorkers(n int) EnrichmentOption {
	return func(s *EnrichmentService) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithRepository archives every completed run.
func WithRepository(repo ports.RunRepository) EnrichmentOption {
	return func(s *EnrichmentService) { s.repo = repo }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) EnrichmentOption {
	return func(s *EnrichmentService) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewEnrichmentService validates the correction methods and returns a service
// scoring terms with calc.
func NewEnrichmentService(calc ports.PValueCalculator, methods []string, opts ...EnrichmentOption) (*EnrichmentService, error) {
	if calc == nil {
		return nil, errors.New("enrichment service requires a p-value calculator")
	}
	s := &EnrichmentService{
		calc:    calc,
		alpha:   DefaultAlpha,
		workers: runtime.NumCPU(),
		logger:  slog.Default(),
	}
	seen := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		fn, err := correction.Lookup(m)
		if err != nil {
			return nil, err
		}
		s.methods = append(s.methods, m)
		s.corrections = append(s.corrections, fn)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Methods lists the correction methods applied by Run, in request order.
func (s *EnrichmentService) Methods() []string { return append([]string(nil), s.methods...) }

// table holds the per-term counts gathered before scoring.
type table struct {
	study, pop, background map[ontology.TermID]int
	studyN, popN, bgN      int
}

// Run scores every term annotating at least one population item. Study and
// population may overlap or be disjoint: the test draws the study items from
// their union, while the reported population columns describe the population
// set alone.
func (s *EnrichmentService) Run(ctx context.Context, study, population enrichment.ItemSet, assoc enrichment.Associations, g *ontology.Graph) (*enrichment.Run, error) {
	start := time.Now()
	if study.Len() == 0 {
		return nil, core.NewInputError("study", "study set is empty")
	}
	if population.Len() == 0 {
		return nil, core.NewInputError("population", "population set is empty")
	}

	annotated := s.annotations(assoc, g)
	studyIn := annotated.Restrict(study)
	popIn := annotated.Restrict(population)
	if studyIn.Len() == 0 {
		return nil, core.NewInputError("study", "none of %d study items has an annotation", study.Len())
	}
	if popIn.Len() == 0 {
		return nil, core.NewInputError("population", "none of %d population items has an annotation", population.Len())
	}

	counts := countTerms(annotated, studyIn, popIn)
	universe, warnings := s.universe(counts, g)

	results := make([]enrichment.Result, len(universe))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.workers)
	for i, id := range universe {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			res, err := s.score(id, counts, g)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("score terms: %w", err)
	}

	s.correct(results)
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].PUncorrected != results[j].PUncorrected {
			return results[i].PUncorrected < results[j].PUncorrected
		}
		return results[i].TermID < results[j].TermID
	})

	run := &enrichment.Run{
		ID:         core.NewRunID(),
		CreatedAt:  core.Now(),
		TestMethod: s.calc.Name(),
		Methods:    s.Methods(),
		StudyTotal: counts.studyN,
		PopTotal:   counts.popN,
		Results:    results,
		Warnings:   warnings,
	}
	run.Summary = s.summarize(run)

	core.LogWarnings(s.logger, warnings)
	s.logger.Info("enrichment run complete",
		"run_id", run.ID.String(),
		"tests", run.Summary.Tests,
		"study_n", run.StudyTotal,
		"pop_n", run.PopTotal,
		"min_p", run.Summary.MinP,
		"duration_ms", time.Since(start).Milliseconds())

	if s.repo != nil {
		if err := s.repo.SaveRun(ctx, run); err != nil {
			return run, fmt.Errorf("archive run %s: %w", run.ID, err)
		}
	}
	return run, nil
}

// annotations maps alternate ids to their primary term and, when propagation
// is enabled, adds every ancestor of each annotation.
func (s *EnrichmentService) annotations(assoc enrichment.Associations, g *ontology.Graph) enrichment.Associations {
	var b *subdag.Builder
	if s.propagate {
		b = s.builder
		if b == nil || b.Graph() != g {
			b = subdag.NewBuilder(g, subdag.WithLogger(s.logger))
		}
	}

	out := make(enrichment.Associations, len(assoc))
	for item, terms := range assoc {
		set := make(ontology.TermSet, terms.Len())
		for t := range terms {
			id := g.Canonical(t)
			set.Add(id)
			if b != nil {
				b.AddAncestors(set, id, s.filter)
			}
		}
		out[item] = set
	}
	return out
}

func countTerms(assoc enrichment.Associations, study, pop enrichment.ItemSet) table {
	background := make(enrichment.ItemSet, pop.Len()+study.Len())
	for id := range pop {
		background.Add(id)
	}
	for id := range study {
		background.Add(id)
	}

	tally := func(items enrichment.ItemSet) map[ontology.TermID]int {
		counts := make(map[ontology.TermID]int)
		for item := range items {
			for t := range assoc[item] {
				counts[t]++
			}
		}
		return counts
	}

	return table{
		study:      tally(study),
		pop:        tally(pop),
		background: tally(background),
		studyN:     study.Len(),
		popN:       pop.Len(),
		bgN:        background.Len(),
	}
}

// universe lists the terms to test in id order, with warnings for terms the
// graph does not know or marks obsolete.
func (s *EnrichmentService) universe(counts table, g *ontology.Graph) ([]ontology.TermID, []core.Warning) {
	ids := make([]ontology.TermID, 0, len(counts.pop))
	for id := range counts.pop {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var kept []ontology.TermID
	var warnings []core.Warning
	for _, id := range ids {
		term, known := g.Term(id)
		if s.namespaces != nil {
			if !known {
				continue
			}
			if _, ok := s.namespaces[term.Namespace]; !ok {
				continue
			}
		}
		switch {
		case !known:
			warnings = append(warnings, core.Warning{
				Code:    core.WarningUnknownTerm,
				Entity:  string(id),
				Message: "annotated term is not in the ontology",
			})
		case term.Obsolete:
			warnings = append(warnings, core.Warning{
				Code:    core.WarningObsoleteTerm,
				Entity:  string(id),
				Message: "annotated term is obsolete",
			})
		}
		kept = append(kept, id)
	}
	return kept, warnings
}

func (s *EnrichmentService) score(id ontology.TermID, counts table, g *ontology.Graph) (enrichment.Result, error) {
	res := enrichment.Result{
		TermID:     id,
		StudyCount: counts.study[id],
		StudyTotal: counts.studyN,
		PopCount:   counts.pop[id],
		PopTotal:   counts.popN,
		Corrected:  make(map[string]float64, len(s.methods)),
	}
	if term, ok := g.Term(id); ok {
		res.Name = term.Name
		res.Namespace = term.Namespace
		res.Obsolete = term.Obsolete
	}

	p, err := s.calc.PValue(res.StudyCount, counts.studyN, counts.background[id], counts.bgN)
	if err != nil {
		var nd *core.NumericDisagreementError
		if errors.As(err, &nd) {
			nd.TermID = string(id)
			return res, nd
		}
		return res, fmt.Errorf("term %s: %w", id, err)
	}
	res.PUncorrected = p

	if res.StudyCount*res.PopTotal >= res.PopCount*res.StudyTotal {
		res.Direction = enrichment.Enriched
	} else {
		res.Direction = enrichment.Purified
	}
	return res, nil
}

// correct applies every method over the whole batch of p-values.
func (s *EnrichmentService) correct(results []enrichment.Result) {
	pvals := make([]float64, len(results))
	for i := range results {
		pvals[i] = results[i].PUncorrected
	}
	for m, fn := range s.corrections {
		adjusted := fn(pvals)
		for i := range results {
			results[i].Corrected[s.methods[m]] = adjusted[i]
		}
	}
}

func (s *EnrichmentService) summarize(run *enrichment.Run) enrichment.Summary {
	sum := enrichment.Summary{
		Tests:        len(run.Results),
		Alpha:        s.alpha,
		Significant:  make(map[string]int, len(s.methods)+1),
		WarningCount: len(run.Warnings),
	}

	pvals := make(stats.Float64Data, len(run.Results))
	for i, r := range run.Results {
		pvals[i] = r.PUncorrected
		if r.Direction == enrichment.Enriched {
			sum.EnrichedN++
		} else {
			sum.PurifiedN++
		}
	}
	if len(pvals) > 0 {
		sum.MinP, _ = stats.Min(pvals)
		sum.MedianP, _ = stats.Median(pvals)
	}

	for _, m := range append([]string{"uncorrected"}, s.methods...) {
		sum.Significant[m] = len(run.Significant(m, s.alpha))
	}
	return sum
}
