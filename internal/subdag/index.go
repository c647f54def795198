package subdag

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/graph/traverse"

	"goea/domain/core"
	"goea/domain/ontology"
)

// relEdge is a directed edge carrying every relationship type that links its ends.
type relEdge struct {
	from, to graph.Node
	rels     map[ontology.RelationshipType]struct{}
}

func (e *relEdge) From() graph.Node { return e.from }
func (e *relEdge) To() graph.Node   { return e.to }

func (e *relEdge) ReversedEdge() graph.Edge {
	return &relEdge{from: e.to, to: e.from, rels: e.rels}
}

func (e *relEdge) allowedBy(f ontology.RelationshipFilter) bool {
	for r := range e.rels {
		if f.Allows(r) {
			return true
		}
	}
	return false
}

// index maps term ids to integer node ids and holds the graph in both directions:
// up runs child→parent, down runs parent→child.
type index struct {
	ids   map[ontology.TermID]int64
	terms []ontology.TermID
	up    *simple.DirectedGraph
	down  *simple.DirectedGraph
}

func newIndex(g *ontology.Graph) *index {
	ids := g.IDs()
	idx := &index{
		ids:   make(map[ontology.TermID]int64, len(ids)),
		terms: ids,
		up:    simple.NewDirectedGraph(),
		down:  simple.NewDirectedGraph(),
	}
	for i, id := range ids {
		idx.ids[id] = int64(i)
		idx.up.AddNode(simple.Node(i))
		idx.down.AddNode(simple.Node(i))
	}

	for _, id := range ids {
		t, _ := g.Term(id)
		child := simple.Node(idx.ids[id])
		for rel, parents := range t.Edges {
			for p := range parents {
				pid, ok := idx.ids[p]
				if !ok {
					continue
				}
				parent := simple.Node(pid)
				idx.setEdge(idx.up, child, parent, rel)
				idx.setEdge(idx.down, parent, child, rel)
			}
		}
	}
	return idx
}

func (idx *index) setEdge(g *simple.DirectedGraph, from, to graph.Node, rel ontology.RelationshipType) {
	if e, ok := g.Edge(from.ID(), to.ID()).(*relEdge); ok {
		e.rels[rel] = struct{}{}
		return
	}
	g.SetEdge(&relEdge{from: from, to: to, rels: map[ontology.RelationshipType]struct{}{rel: {}}})
}

func (idx *index) node(id ontology.TermID) (graph.Node, bool) {
	n, ok := idx.ids[id]
	if !ok {
		return nil, false
	}
	return simple.Node(n), true
}

// reach collects every node reachable from id over edges allowed by filter.
// Each call owns its own BreadthFirst, so visited sets are never shared.
func (idx *index) reach(g *simple.DirectedGraph, id ontology.TermID, filter ontology.RelationshipFilter) ontology.TermSet {
	out := make(ontology.TermSet)
	from, ok := idx.node(id)
	if !ok {
		return out
	}
	bf := traverse.BreadthFirst{
		Visit: func(n graph.Node) {
			if n.ID() != from.ID() {
				out.Add(idx.terms[n.ID()])
			}
		},
		Traverse: func(e graph.Edge) bool {
			re, ok := e.(*relEdge)
			return ok && re.allowedBy(filter)
		},
	}
	bf.Walk(g, from, nil)
	return out
}

func (idx *index) ancestors(id ontology.TermID, filter ontology.RelationshipFilter) ontology.TermSet {
	return idx.reach(idx.up, id, filter)
}

func (idx *index) descendants(id ontology.TermID, filter ontology.RelationshipFilter) ontology.TermSet {
	return idx.reach(idx.down, id, filter)
}

// cycles reports strongly connected components that break the DAG invariant.
func (idx *index) cycles() []core.Warning {
	_, err := topo.Sort(idx.up)
	if err == nil {
		return nil
	}
	unorderable, ok := err.(topo.Unorderable)
	if !ok {
		return []core.Warning{{Code: core.WarningCycle, Message: err.Error()}}
	}

	var warnings []core.Warning
	for _, component := range unorderable {
		names := make([]string, len(component))
		for i, n := range component {
			names[i] = string(idx.terms[n.ID()])
		}
		sort.Strings(names)
		warnings = append(warnings, core.Warning{
			Code:    core.WarningCycle,
			Entity:  names[0],
			Message: fmt.Sprintf("terms form a cycle: %s", strings.Join(names, ", ")),
		})
	}
	return warnings
}
