package testkit

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"strings"

	"goea/domain/enrichment"
	"goea/domain/ontology"
)

// OntologyGeneratorConfig configures the synthetic ontology and annotation generator
type OntologyGeneratorConfig struct {
	Terms        int      `json:"terms"`
	MaxParents   int      `json:"max_parents"`
	PartOfRate   float64  `json:"part_of_rate"`
	ObsoleteRate float64  `json:"obsolete_rate"`
	Namespaces   []string `json:"namespaces"`
	Items        int      `json:"items"`
	StudyItems   int      `json:"study_items"`
	TermsPerItem int      `json:"terms_per_item"`
	Seed         int64    `json:"seed"`
}

// DefaultOntologyConfig returns a small GO-shaped configuration
func DefaultOntologyConfig() OntologyGeneratorConfig {
	return OntologyGeneratorConfig{
		Terms:        200,
		MaxParents:   3,
		PartOfRate:   0.15,
		ObsoleteRate: 0.05,
		Namespaces:   []string{"biological_process", "molecular_function", "cellular_component"},
		Items:        500,
		StudyItems:   25,
		TermsPerItem: 4,
		Seed:         42,
	}
}

// Fixture is one generated ontology with annotations and a study/population split.
type Fixture struct {
	Terms        []*ontology.Term
	Associations enrichment.Associations
	Population   enrichment.ItemSet
	Study        enrichment.ItemSet
	// Planted annotates every study item, so it is the most enriched term.
	Planted ontology.TermID
}

// OntologyGenerator produces deterministic synthetic ontologies
type OntologyGenerator struct {
	config OntologyGeneratorConfig
	rng    *rand.Rand
}

// NewOntologyGenerator creates a generator seeded from config
func NewOntologyGenerator(config OntologyGeneratorConfig) *OntologyGenerator {
	return &OntologyGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// TermID formats the i-th generated identifier.
func TermID(i int) ontology.TermID {
	return ontology.TermID(fmt.Sprintf("GO:%07d", i))
}

// Generate builds the ontology and annotations. Edges only point at terms with
// smaller ids, so the result is acyclic.
func (g *OntologyGenerator) Generate() (*Fixture, error) {
	cfg := g.config
	if len(cfg.Namespaces) == 0 {
		return nil, fmt.Errorf("at least one namespace is required")
	}
	if cfg.Terms <= len(cfg.Namespaces) {
		return nil, fmt.Errorf("terms must exceed the %d namespace roots", len(cfg.Namespaces))
	}
	if cfg.Items <= 0 || cfg.StudyItems <= 0 || cfg.StudyItems > cfg.Items {
		return nil, fmt.Errorf("study items must be in [1, %d]", cfg.Items)
	}
	if cfg.MaxParents <= 0 {
		cfg.MaxParents = 1
	}
	if cfg.TermsPerItem <= 0 {
		cfg.TermsPerItem = 1
	}

	fx := &Fixture{
		Associations: make(enrichment.Associations, cfg.Items),
		Population:   make(enrichment.ItemSet, cfg.Items),
		Study:        make(enrichment.ItemSet, cfg.StudyItems),
	}
	byNamespace := make(map[string][]ontology.TermID)
	var live []ontology.TermID

	for i := 0; i < cfg.Terms; i++ {
		ns := cfg.Namespaces[i%len(cfg.Namespaces)]
		t := &ontology.Term{
			ID:        TermID(i + 1),
			Name:      fmt.Sprintf("%s term %d", strings.ReplaceAll(ns, "_", " "), i+1),
			Namespace: ns,
			Edges:     make(map[ontology.RelationshipType]ontology.TermSet),
		}
		earlier := byNamespace[ns]
		switch {
		case len(earlier) == 0:
		case g.rng.Float64() < cfg.ObsoleteRate:
			t.Obsolete = true
			t.Name = "obsolete " + t.Name
		default:
			parents := make(ontology.TermSet)
			for n := 1 + g.rng.Intn(cfg.MaxParents); n > 0; n-- {
				parents.Add(earlier[g.rng.Intn(len(earlier))])
			}
			t.Edges[ontology.IsA] = parents
			if g.rng.Float64() < cfg.PartOfRate {
				t.Edges[ontology.PartOf] = ontology.NewTermSet(earlier[g.rng.Intn(len(earlier))])
			}
			live = append(live, t.ID)
		}
		if !t.Obsolete {
			byNamespace[ns] = append(byNamespace[ns], t.ID)
		}
		fx.Terms = append(fx.Terms, t)
	}
	if len(live) == 0 {
		return nil, fmt.Errorf("no annotatable terms generated")
	}

	fx.Planted = live[g.rng.Intn(len(live))]
	for i := 0; i < cfg.Items; i++ {
		item := enrichment.ItemID(fmt.Sprintf("gene%04d", i+1))
		fx.Population.Add(item)
		for n := 0; n < cfg.TermsPerItem; n++ {
			fx.Associations.Add(item, live[g.rng.Intn(len(live))])
		}
		if i < cfg.StudyItems {
			fx.Study.Add(item)
			fx.Associations.Add(item, fx.Planted)
		}
	}
	return fx, nil
}

// WriteOBO renders the fixture's terms as an OBO 1.2 document.
func (fx *Fixture) WriteOBO(w io.Writer) error {
	bw := bufio.NewWriter(w)
	names := make(map[ontology.TermID]string, len(fx.Terms))
	for _, t := range fx.Terms {
		names[t.ID] = t.Name
	}

	fmt.Fprintln(bw, "format-version: 1.2")
	fmt.Fprintln(bw, "data-version: synthetic")
	fmt.Fprintln(bw, "ontology: go")
	for _, t := range fx.Terms {
		fmt.Fprintln(bw)
		fmt.Fprintln(bw, "[Term]")
		fmt.Fprintf(bw, "id: %s\n", t.ID)
		fmt.Fprintf(bw, "name: %s\n", t.Name)
		fmt.Fprintf(bw, "namespace: %s\n", t.Namespace)
		for _, p := range t.Parents(ontology.IsA) {
			fmt.Fprintf(bw, "is_a: %s ! %s\n", p, names[p])
		}
		for _, p := range t.Parents(ontology.PartOf) {
			fmt.Fprintf(bw, "relationship: part_of %s ! %s\n", p, names[p])
		}
		if t.Obsolete {
			fmt.Fprintln(bw, "is_obsolete: true")
		}
	}
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, "[Typedef]")
	fmt.Fprintln(bw, "id: part_of")
	fmt.Fprintln(bw, "name: part of")
	fmt.Fprintln(bw, "is_transitive: true")
	return bw.Flush()
}

// WriteAssociations renders item<TAB>term;term rows sorted by item.
func (fx *Fixture) WriteAssociations(w io.Writer) error {
	bw := bufio.NewWriter(w)
	items := make(enrichment.ItemSet, len(fx.Associations))
	for item := range fx.Associations {
		items.Add(item)
	}
	for _, item := range items.Sorted() {
		fmt.Fprintf(bw, "%s\t%s\n", item, strings.Join(fx.Associations[item].Strings(), ";"))
	}
	return bw.Flush()
}

// WriteItemSet renders one item per line.
func WriteItemSet(w io.Writer, set enrichment.ItemSet) error {
	bw := bufio.NewWriter(w)
	for _, item := range set.Sorted() {
		fmt.Fprintln(bw, item)
	}
	return bw.Flush()
}

// LiveTerms lists the non-obsolete term ids in lexical order.
func (fx *Fixture) LiveTerms() []ontology.TermID {
	var out []ontology.TermID
	for _, t := range fx.Terms {
		if !t.Obsolete {
			out = append(out, t.ID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
