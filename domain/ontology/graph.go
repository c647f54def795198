package ontology

import (
	"fmt"
	"sort"
)

// Header carries the OBO document header tags.
type Header struct {
	FormatVersion string `json:"format_version,omitempty"`
	DataVersion   string `json:"data_version,omitempty"`
	Ontology      string `json:"ontology,omitempty"`
}

// Typedef is an OBO [Typedef] stanza (a relationship type declaration).
type Typedef struct {
	ID           RelationshipType `json:"id"`
	Name         string           `json:"name,omitempty"`
	IsTransitive bool             `json:"is_transitive,omitempty"`
}

// Graph owns every parsed term keyed by id. It is immutable once the parser returns it.
type Graph struct {
	Header   Header
	Typedefs []Typedef

	terms    map[TermID]*Term
	alt      map[TermID]TermID
	order    []TermID
	children map[TermID]map[RelationshipType]TermSet
	retained map[RelationshipType]struct{}
}

// NewGraph returns an empty graph with capacity for n terms.
func NewGraph(n int) *Graph {
	return &Graph{
		terms:    make(map[TermID]*Term, n),
		alt:      make(map[TermID]TermID),
		order:    make([]TermID, 0, n),
		children: make(map[TermID]map[RelationshipType]TermSet, n),
		retained: map[RelationshipType]struct{}{IsA: {}},
	}
}

// AddTerm registers t. Registering the same id twice is an error.
func (g *Graph) AddTerm(t *Term) error {
	if _, exists := g.terms[t.ID]; exists {
		return fmt.Errorf("duplicate term id %s", t.ID)
	}
	g.terms[t.ID] = t
	g.order = append(g.order, t.ID)
	for _, alt := range t.AltIDs {
		if _, taken := g.terms[alt]; !taken {
			g.alt[alt] = t.ID
		}
	}
	return nil
}

// Link adds a child→parent edge of type rel. Both ends must already be registered.
func (g *Graph) Link(child TermID, rel RelationshipType, parent TermID) error {
	c, ok := g.terms[child]
	if !ok {
		return fmt.Errorf("unknown term %s", child)
	}
	p, ok := g.Term(parent)
	if !ok {
		return fmt.Errorf("unknown term %s", parent)
	}
	if p.ID == c.ID {
		return fmt.Errorf("term %s cannot relate to itself", child)
	}
	c.addEdge(rel, p.ID)

	byRel, ok := g.children[p.ID]
	if !ok {
		byRel = make(map[RelationshipType]TermSet, 1)
		g.children[p.ID] = byRel
	}
	set, ok := byRel[rel]
	if !ok {
		set = make(TermSet, 2)
		byRel[rel] = set
	}
	set.Add(c.ID)
	g.retained[rel] = struct{}{}
	return nil
}

// Term returns the term for id, resolving alternate ids to their primary term.
func (g *Graph) Term(id TermID) (*Term, bool) {
	if t, ok := g.terms[id]; ok {
		return t, true
	}
	if primary, ok := g.alt[id]; ok {
		return g.terms[primary], true
	}
	return nil, false
}

// Has reports whether id (or an alternate id) is known.
func (g *Graph) Has(id TermID) bool {
	_, ok := g.Term(id)
	return ok
}

// Canonical maps an alternate id to its primary id; unknown ids are returned unchanged.
func (g *Graph) Canonical(id TermID) TermID {
	if t, ok := g.Term(id); ok {
		return t.ID
	}
	return id
}

// Len is the number of primary terms.
func (g *Graph) Len() int { return len(g.terms) }

// IDs returns primary term ids in source order.
func (g *Graph) IDs() []TermID {
	return append([]TermID(nil), g.order...)
}

// Children returns the direct sources of rel edges pointing at id, sorted.
func (g *Graph) Children(id TermID, rel RelationshipType) []TermID {
	return g.children[id][rel].Sorted()
}

// ChildrenFiltered returns every direct child reachable by an edge allowed by filter.
func (g *Graph) ChildrenFiltered(id TermID, filter RelationshipFilter) TermSet {
	out := make(TermSet)
	for rel, set := range g.children[id] {
		if filter.Allows(rel) {
			out.Union(set)
		}
	}
	return out
}

// Relationships lists the edge types present in the graph, sorted.
func (g *Graph) Relationships() []RelationshipType {
	out := make([]RelationshipType, 0, len(g.retained))
	for r := range g.retained {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Namespaces lists the distinct namespaces, sorted.
func (g *Graph) Namespaces() []string {
	seen := make(map[string]struct{})
	for _, t := range g.terms {
		if t.Namespace != "" {
			seen[t.Namespace] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for ns := range seen {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// Roots returns the terms without outgoing edges of any allowed type.
func (g *Graph) Roots(filter RelationshipFilter) []TermID {
	var out []TermID
	for _, id := range g.order {
		if len(g.terms[id].Related(filter)) == 0 && !g.terms[id].Obsolete {
			out = append(out, id)
		}
	}
	return out
}
