// Package enrichment holds the records produced by a term-enrichment run.
package enrichment

import (
	"fmt"
	"sort"

	"goea/domain/core"
	"goea/domain/ontology"
)

// ItemID identifies an annotated item, typically a gene or protein.
type ItemID string

// ItemSet is an unordered set of items (a study or population set).
type ItemSet map[ItemID]struct{}

// NewItemSet builds a set from ids.
func NewItemSet(ids ...ItemID) ItemSet {
	s := make(ItemSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s ItemSet) Add(id ItemID) { s[id] = struct{}{} }

func (s ItemSet) Has(id ItemID) bool {
	_, ok := s[id]
	return ok
}

func (s ItemSet) Len() int { return len(s) }

// Sorted returns the members in lexical order.
func (s ItemSet) Sorted() []ItemID {
	out := make([]ItemID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Associations maps each item to the terms annotating it.
type Associations map[ItemID]ontology.TermSet

// Add annotates item with terms, unioning with any existing annotation.
func (a Associations) Add(item ItemID, terms ...ontology.TermID) {
	set, ok := a[item]
	if !ok {
		set = make(ontology.TermSet, len(terms))
		a[item] = set
	}
	for _, t := range terms {
		set.Add(t)
	}
}

// Restrict returns the members of items that carry at least one annotation.
func (a Associations) Restrict(items ItemSet) ItemSet {
	out := make(ItemSet, len(items))
	for id := range items {
		if terms, ok := a[id]; ok && terms.Len() > 0 {
			out.Add(id)
		}
	}
	return out
}

// Terms returns every term used by any item.
func (a Associations) Terms() ontology.TermSet {
	out := make(ontology.TermSet)
	for _, terms := range a {
		out.Union(terms)
	}
	return out
}

// Direction tells whether a term is over- or under-represented in the study set.
type Direction string

const (
	Enriched Direction = "e"
	Purified Direction = "p"
)

func (d Direction) String() string {
	switch d {
	case Enriched:
		return "enriched"
	case Purified:
		return "purified"
	default:
		return string(d)
	}
}

// Correction method names.
const (
	MethodBonferroni = "bonferroni"
	MethodFDRBH      = "fdr_bh"
)

// Result is the outcome of testing one term.
type Result struct {
	TermID       ontology.TermID    `json:"term_id"`
	Name         string             `json:"name"`
	Namespace    string             `json:"namespace"`
	Obsolete     bool               `json:"is_obsolete,omitempty"`
	StudyCount   int                `json:"study_count"`
	StudyTotal   int                `json:"study_n"`
	PopCount     int                `json:"pop_count"`
	PopTotal     int                `json:"pop_n"`
	PUncorrected float64            `json:"p_uncorrected"`
	Corrected    map[string]float64 `json:"corrected"`
	Direction    Direction          `json:"enrichment"`
}

// StudyRatio renders the study proportion as "k/n".
func (r *Result) StudyRatio() string { return fmt.Sprintf("%d/%d", r.StudyCount, r.StudyTotal) }

// PopRatio renders the population proportion as "K/N".
func (r *Result) PopRatio() string { return fmt.Sprintf("%d/%d", r.PopCount, r.PopTotal) }

// P returns the corrected p-value for method, or the uncorrected value when
// method is empty or "uncorrected".
func (r *Result) P(method string) (float64, bool) {
	if method == "" || method == "uncorrected" {
		return r.PUncorrected, true
	}
	p, ok := r.Corrected[method]
	return p, ok
}

// Summary describes the p-value distribution of a run.
type Summary struct {
	Tests        int            `json:"tests"`
	MinP         float64        `json:"min_p"`
	MedianP      float64        `json:"median_p"`
	Alpha        float64        `json:"alpha"`
	Significant  map[string]int `json:"significant"`
	EnrichedN    int            `json:"enriched"`
	PurifiedN    int            `json:"purified"`
	WarningCount int            `json:"warnings"`
}

// Run is one complete enrichment analysis.
type Run struct {
	ID         core.RunID     `json:"id"`
	CreatedAt  core.Timestamp `json:"created_at"`
	TestMethod string         `json:"test_method"`
	Methods    []string       `json:"methods"`
	StudyTotal int            `json:"study_n"`
	PopTotal   int            `json:"pop_n"`
	Results    []Result       `json:"results"`
	Warnings   []core.Warning `json:"warnings,omitempty"`
	Summary    Summary        `json:"summary"`
}

// Result returns the record for id.
func (r *Run) Result(id ontology.TermID) (*Result, bool) {
	for i := range r.Results {
		if r.Results[i].TermID == id {
			return &r.Results[i], true
		}
	}
	return nil, false
}

// Significant returns the results whose p-value under method is below alpha,
// in run order.
func (r *Run) Significant(method string, alpha float64) []Result {
	var out []Result
	for _, res := range r.Results {
		if p, ok := res.P(method); ok && p < alpha {
			out = append(out, res)
		}
	}
	return out
}
