// Package ontology holds the in-memory term graph built from an OBO source.
package ontology

import (
	"sort"
	"strings"
)

// TermID is a globally unique term identifier such as GO:0008150.
type TermID string

func (id TermID) String() string { return string(id) }

// RelationshipType labels a typed edge between two terms.
type RelationshipType string

const (
	IsA                 RelationshipType = "is_a"
	PartOf              RelationshipType = "part_of"
	Regulates           RelationshipType = "regulates"
	NegativelyRegulates RelationshipType = "negatively_regulates"
	PositivelyRegulates RelationshipType = "positively_regulates"
)

// TermSet is an unordered set of term identifiers.
type TermSet map[TermID]struct{}

// NewTermSet builds a set from ids.
func NewTermSet(ids ...TermID) TermSet {
	s := make(TermSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s TermSet) Add(id TermID) { s[id] = struct{}{} }

func (s TermSet) Has(id TermID) bool {
	_, ok := s[id]
	return ok
}

func (s TermSet) Len() int { return len(s) }

// Union adds every member of other to s.
func (s TermSet) Union(other TermSet) {
	for id := range other {
		s[id] = struct{}{}
	}
}

// Sorted returns the members in lexical order.
func (s TermSet) Sorted() []TermID {
	out := make([]TermID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings returns the sorted members as plain strings.
func (s TermSet) Strings() []string {
	sorted := s.Sorted()
	out := make([]string, len(sorted))
	for i, id := range sorted {
		out[i] = string(id)
	}
	return out
}

// Term is one vocabulary entry.
type Term struct {
	ID         TermID                       `json:"id"`
	Name       string                       `json:"name"`
	Namespace  string                       `json:"namespace,omitempty"`
	Definition string                       `json:"definition,omitempty"`
	Obsolete   bool                         `json:"is_obsolete,omitempty"`
	AltIDs     []TermID                     `json:"alt_ids,omitempty"`
	ReplacedBy []TermID                     `json:"replaced_by,omitempty"`
	Consider   []TermID                     `json:"consider,omitempty"`
	Edges      map[RelationshipType]TermSet `json:"-"`
}

// Parents returns the direct targets of rel edges, sorted.
func (t *Term) Parents(rel RelationshipType) []TermID {
	return t.Edges[rel].Sorted()
}

// Related returns the direct targets of every edge allowed by filter.
func (t *Term) Related(filter RelationshipFilter) TermSet {
	out := make(TermSet)
	for rel, targets := range t.Edges {
		if filter.Allows(rel) {
			out.Union(targets)
		}
	}
	return out
}

func (t *Term) addEdge(rel RelationshipType, target TermID) {
	if t.Edges == nil {
		t.Edges = make(map[RelationshipType]TermSet, 2)
	}
	set, ok := t.Edges[rel]
	if !ok {
		set = make(TermSet, 2)
		t.Edges[rel] = set
	}
	set.Add(target)
}

// RelationshipFilter selects which edge types a traversal may follow.
// is_a is always allowed.
type RelationshipFilter struct {
	rels map[RelationshipType]struct{}
	all  bool
}

// NewRelationshipFilter allows is_a plus the given types.
func NewRelationshipFilter(rels ...RelationshipType) RelationshipFilter {
	f := RelationshipFilter{rels: map[RelationshipType]struct{}{IsA: {}}}
	for _, r := range rels {
		if r == "" {
			continue
		}
		f.rels[r] = struct{}{}
	}
	return f
}

// AllRelationships allows every edge type.
func AllRelationships() RelationshipFilter {
	return RelationshipFilter{all: true}
}

// ParseRelationshipFilter reads a comma separated list; "all" or "*" allows every type.
func ParseRelationshipFilter(s string) RelationshipFilter {
	var rels []RelationshipType
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		switch part {
		case "":
			continue
		case "all", "*":
			return AllRelationships()
		}
		rels = append(rels, RelationshipType(part))
	}
	return NewRelationshipFilter(rels...)
}

// Types lists the explicitly allowed types other than is_a, sorted. It is
// empty for a filter allowing every type.
func (f RelationshipFilter) Types() []RelationshipType {
	out := make([]RelationshipType, 0, len(f.rels))
	for r := range f.rels {
		if r != IsA {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Restrict keeps only the types in rels. A filter allowing every type is
// returned unchanged.
func (f RelationshipFilter) Restrict(rels []RelationshipType) RelationshipFilter {
	if f.all {
		return f
	}
	keep := make([]RelationshipType, 0, len(rels))
	for _, r := range rels {
		if _, ok := f.rels[r]; ok {
			keep = append(keep, r)
		}
	}
	return NewRelationshipFilter(keep...)
}

// Allows reports whether rel edges may be traversed.
func (f RelationshipFilter) Allows(rel RelationshipType) bool {
	if f.all || rel == IsA {
		return true
	}
	_, ok := f.rels[rel]
	return ok
}

// Key is a stable string form used for cache keys.
func (f RelationshipFilter) Key() string {
	if f.all {
		return "*"
	}
	names := make([]string, 0, len(f.rels)+1)
	names = append(names, string(IsA))
	for r := range f.rels {
		if r != IsA {
			names = append(names, string(r))
		}
	}
	sort.Strings(names[1:])
	return strings.Join(names, ",")
}

func (f RelationshipFilter) String() string { return f.Key() }
