// Package subdag builds seed-term induced sub-DAGs and their ancestor and
// descendant closures.
package subdag

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"goea/domain/core"
	"goea/domain/ontology"
)

// Closure is the ancestor and descendant set of one term under one filter.
type Closure struct {
	Ancestors   ontology.TermSet
	Descendants ontology.TermSet
}

type closureKey struct {
	term   ontology.TermID
	filter string
}

// DefaultSubDagCacheSize bounds the number of sub-DAGs a Builder keeps.
const DefaultSubDagCacheSize = 1024

// Builder indexes a graph once and serves closures for any number of sub-DAGs.
// Closures are pure functions of the immutable graph, so cached entries live as
// long as the Builder. Filters are restricted to the relationship types present
// in the graph before they key the caches, so the closure cache holds at most
// one entry per term and distinct effective filter.
type Builder struct {
	graph     *ontology.Graph
	rels      []ontology.RelationshipType
	index     *index
	workers   int
	logger    *slog.Logger
	maxSubDag int

	mu       sync.Mutex
	closures map[closureKey]*Closure
	subdags  map[string]*SubDag
	cycles   []core.Warning
}

// Option configures a Builder.
type Option func(*Builder)

// WithWorkers bounds the number of seeds processed concurrently.
func WithWorkers(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithLogger sets the logger used for warnings.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithSubDagCache bounds the sub-DAG cache to n entries; n <= 0 disables it.
func WithSubDagCache(n int) Option {
	return func(b *Builder) { b.maxSubDag = n }
}

// NewBuilder indexes g for traversal.
func NewBuilder(g *ontology.Graph, opts ...Option) *Builder {
	b := &Builder{
		graph:     g,
		rels:      g.Relationships(),
		index:     newIndex(g),
		workers:   runtime.NumCPU(),
		logger:    slog.Default(),
		maxSubDag: DefaultSubDagCacheSize,
		closures:  make(map[closureKey]*Closure),
		subdags:   make(map[string]*SubDag),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.cycles = b.index.cycles()
	core.LogWarnings(b.logger, b.cycles)
	return b
}

// Graph returns the indexed graph.
func (b *Builder) Graph() *ontology.Graph { return b.graph }

// CycleWarnings lists cycles found when the graph was indexed.
func (b *Builder) CycleWarnings() []core.Warning {
	return append([]core.Warning(nil), b.cycles...)
}

// Effective returns filter restricted to the relationship types present in
// the graph. Types without edges traverse exactly like is_a alone.
func (b *Builder) Effective(filter ontology.RelationshipFilter) ontology.RelationshipFilter {
	return filter.Restrict(b.rels)
}

// Closure returns the closure of id, computing and caching it on first use.
// The returned sets are copies. Unknown ids yield empty sets.
func (b *Builder) Closure(id ontology.TermID, filter ontology.RelationshipFilter) Closure {
	c := b.closure(id, b.Effective(filter))
	return Closure{
		Ancestors:   copySet(c.Ancestors),
		Descendants: copySet(c.Descendants),
	}
}

// closure returns the shared cached entry; callers must not modify it.
// filter must already be effective.
func (b *Builder) closure(id ontology.TermID, filter ontology.RelationshipFilter) *Closure {
	id = b.graph.Canonical(id)
	key := closureKey{term: id, filter: filter.Key()}

	b.mu.Lock()
	c, ok := b.closures[key]
	b.mu.Unlock()
	if ok {
		return c
	}

	c = &Closure{
		Ancestors:   b.index.ancestors(id, filter),
		Descendants: b.index.descendants(id, filter),
	}

	b.mu.Lock()
	if cached, ok := b.closures[key]; ok {
		c = cached
	} else {
		b.closures[key] = c
	}
	b.mu.Unlock()
	return c
}

// Ancestors returns a copy of the ancestor set of id.
func (b *Builder) Ancestors(id ontology.TermID, filter ontology.RelationshipFilter) ontology.TermSet {
	return copySet(b.closure(id, b.Effective(filter)).Ancestors)
}

// Descendants returns a copy of the descendant set of id.
func (b *Builder) Descendants(id ontology.TermID, filter ontology.RelationshipFilter) ontology.TermSet {
	return copySet(b.closure(id, b.Effective(filter)).Descendants)
}

// AddAncestors adds the ancestors of id to dst without copying the cached set.
func (b *Builder) AddAncestors(dst ontology.TermSet, id ontology.TermID, filter ontology.RelationshipFilter) {
	dst.Union(b.closure(id, b.Effective(filter)).Ancestors)
}

func copySet(s ontology.TermSet) ontology.TermSet {
	out := make(ontology.TermSet, len(s))
	out.Union(s)
	return out
}

func subDagKey(seeds []ontology.TermID, filter ontology.RelationshipFilter) string {
	keys := make([]string, len(seeds))
	for i, s := range seeds {
		keys[i] = string(s)
	}
	return core.ComputeListHash(keys).String() + "|" + filter.Key()
}

func (b *Builder) cachedSubDag(key string) (*SubDag, bool) {
	if b.maxSubDag <= 0 {
		return nil, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	sd, ok := b.subdags[key]
	return sd, ok
}

func (b *Builder) storeSubDag(key string, sd *SubDag) {
	if b.maxSubDag <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subdags[key]; !ok && len(b.subdags) >= b.maxSubDag {
		for k := range b.subdags {
			delete(b.subdags, k)
			break
		}
	}
	b.subdags[key] = sd
}

// Build creates the sub-DAG induced by seeds: the seeds plus all of their
// ancestors under filter. Seed closures are computed concurrently. Sub-DAGs
// are cached by the ordered seed list and the effective filter.
func (b *Builder) Build(ctx context.Context, seeds []ontology.TermID, filter ontology.RelationshipFilter) (*SubDag, error) {
	filter = b.Effective(filter)
	cacheKey := subDagKey(seeds, filter)
	if sd, ok := b.cachedSubDag(cacheKey); ok {
		return sd, nil
	}

	sd := &SubDag{
		builder: b,
		filter:  filter,
		terms:   make(ontology.TermSet),
	}

	known := make([]ontology.TermID, 0, len(seeds))
	seen := make(ontology.TermSet, len(seeds))
	for _, s := range seeds {
		t, ok := b.graph.Term(s)
		if !ok {
			sd.warnings = append(sd.warnings, core.Warning{
				Code:    core.WarningUnknownTerm,
				Entity:  string(s),
				Message: "seed term is not in the ontology",
			})
			continue
		}
		if seen.Has(t.ID) {
			continue
		}
		seen.Add(t.ID)
		known = append(known, t.ID)
	}

	closures := make([]*Closure, len(known))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(b.workers)
	for i, id := range known {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			closures[i] = b.closure(id, filter)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("build sub-DAG: %w", err)
	}

	for i, id := range known {
		sd.seeds = append(sd.seeds, id)
		sd.terms.Add(id)
		sd.terms.Union(closures[i].Ancestors)

		t, _ := b.graph.Term(id)
		if t.Obsolete && closures[i].Ancestors.Len() == 0 && closures[i].Descendants.Len() == 0 {
			sd.warnings = append(sd.warnings, core.Warning{
				Code:    core.WarningUnresolvedClosure,
				Entity:  string(id),
				Message: "obsolete term has no relatives under " + filter.Key(),
			})
		}
	}
	core.LogWarnings(b.logger, sd.warnings)

	b.storeSubDag(cacheKey, sd)
	return sd, nil
}

// Build is the one-shot form of NewBuilder(g).Build.
func Build(ctx context.Context, g *ontology.Graph, seeds []ontology.TermID, filter ontology.RelationshipFilter) (*SubDag, error) {
	return NewBuilder(g).Build(ctx, seeds, filter)
}

// SubDag is a read-only view over the terms induced by a set of seeds.
type SubDag struct {
	builder  *Builder
	filter   ontology.RelationshipFilter
	seeds    []ontology.TermID
	terms    ontology.TermSet
	warnings []core.Warning
}

// Seeds returns the resolved seed ids in input order.
func (sd *SubDag) Seeds() []ontology.TermID { return append([]ontology.TermID(nil), sd.seeds...) }

// Filter returns the relationship filter the sub-DAG was built with.
func (sd *SubDag) Filter() ontology.RelationshipFilter { return sd.filter }

// Terms returns the seeds and their ancestors.
func (sd *SubDag) Terms() ontology.TermSet {
	out := make(ontology.TermSet, len(sd.terms))
	out.Union(sd.terms)
	return out
}

// Contains reports whether id belongs to the sub-DAG.
func (sd *SubDag) Contains(id ontology.TermID) bool {
	return sd.terms.Has(sd.builder.graph.Canonical(id))
}

// Warnings lists unknown seeds and unresolved obsolete closures.
func (sd *SubDag) Warnings() []core.Warning { return append([]core.Warning(nil), sd.warnings...) }

// Ancestors returns a copy of the ancestors of id. ok is false when id is not in the sub-DAG.
func (sd *SubDag) Ancestors(id ontology.TermID) (ontology.TermSet, bool) {
	if !sd.Contains(id) {
		return ontology.TermSet{}, false
	}
	return sd.builder.Ancestors(id, sd.filter), true
}

// Descendants returns a copy of the descendants of id across the whole graph. ok is false
// when id is not in the sub-DAG.
func (sd *SubDag) Descendants(id ontology.TermID) (ontology.TermSet, bool) {
	if !sd.Contains(id) {
		return ontology.TermSet{}, false
	}
	return sd.builder.Descendants(id, sd.filter), true
}
