package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"goea/domain/core"
	"goea/domain/ontology"
	apperrors "goea/internal/errors"
	"goea/internal/subdag"
)

// TermHandler serves term metadata and closures.
type TermHandler struct {
	builder *subdag.Builder
}

// NewTermHandler creates a handler over an indexed graph.
func NewTermHandler(builder *subdag.Builder) *TermHandler {
	return &TermHandler{builder: builder}
}

// TermResponse is the JSON view of a term.
type TermResponse struct {
	ID         ontology.TermID                                 `json:"id"`
	Name       string                                          `json:"name"`
	Namespace  string                                          `json:"namespace"`
	Definition string                                          `json:"definition,omitempty"`
	Obsolete   bool                                            `json:"is_obsolete"`
	AltIDs     []ontology.TermID                               `json:"alt_ids,omitempty"`
	ReplacedBy []ontology.TermID                               `json:"replaced_by,omitempty"`
	Consider   []ontology.TermID                               `json:"consider,omitempty"`
	Parents    map[ontology.RelationshipType][]ontology.TermID `json:"parents"`
	Children   []ontology.TermID                               `json:"children"`
}

// ClosureResponse lists the ancestors or descendants of a term.
type ClosureResponse struct {
	Term          ontology.TermID   `json:"term"`
	Relationships string            `json:"relationships"`
	Terms         []ontology.TermID `json:"terms"`
	Count         int               `json:"count"`
	Warnings      []core.Warning    `json:"warnings,omitempty"`
}

func (h *TermHandler) term(c *gin.Context) (*ontology.Term, bool) {
	id := ontology.TermID(c.Param("id"))
	t, ok := h.builder.Graph().Term(id)
	if !ok {
		respondError(c, core.NewUnknownTermError(string(id)))
		return nil, false
	}
	return t, true
}

// GetTerm returns one term with its direct relatives.
func (h *TermHandler) GetTerm(c *gin.Context) {
	t, ok := h.term(c)
	if !ok {
		return
	}
	g := h.builder.Graph()

	parents := make(map[ontology.RelationshipType][]ontology.TermID, len(t.Edges))
	for rel := range t.Edges {
		parents[rel] = t.Parents(rel)
	}
	c.JSON(http.StatusOK, TermResponse{
		ID:         t.ID,
		Name:       t.Name,
		Namespace:  t.Namespace,
		Definition: t.Definition,
		Obsolete:   t.Obsolete,
		AltIDs:     t.AltIDs,
		ReplacedBy: t.ReplacedBy,
		Consider:   t.Consider,
		Parents:    parents,
		Children:   g.ChildrenFiltered(t.ID, ontology.AllRelationships()).Sorted(),
	})
}

// GetAncestors returns the ancestors of a term. The relationships query
// parameter adds edge types to is_a, e.g. ?relationships=part_of,regulates.
func (h *TermHandler) GetAncestors(c *gin.Context) {
	h.closure(c, true)
}

// GetDescendants returns the descendants of a term.
func (h *TermHandler) GetDescendants(c *gin.Context) {
	h.closure(c, false)
}

func (h *TermHandler) closure(c *gin.Context, up bool) {
	t, ok := h.term(c)
	if !ok {
		return
	}
	filter, err := h.filter(c.Query("relationships"))
	if err != nil {
		respondError(c, err)
		return
	}

	sd, err := h.builder.Build(c.Request.Context(), []ontology.TermID{t.ID}, filter)
	if err != nil {
		respondError(c, err)
		return
	}

	var set ontology.TermSet
	if up {
		set, _ = sd.Ancestors(t.ID)
	} else {
		set, _ = sd.Descendants(t.ID)
	}
	c.JSON(http.StatusOK, ClosureResponse{
		Term:          t.ID,
		Relationships: sd.Filter().Key(),
		Terms:         set.Sorted(),
		Count:         set.Len(),
		Warnings:      sd.Warnings(),
	})
}

// filter parses a relationships query, rejecting types the ontology neither
// declares nor uses.
func (h *TermHandler) filter(query string) (ontology.RelationshipFilter, error) {
	filter := ontology.ParseRelationshipFilter(query)
	g := h.builder.Graph()

	known := make(map[ontology.RelationshipType]struct{})
	for _, r := range g.Relationships() {
		known[r] = struct{}{}
	}
	for _, td := range g.Typedefs {
		known[td.ID] = struct{}{}
	}
	for _, r := range filter.Types() {
		if _, ok := known[r]; !ok {
			return filter, apperrors.InvalidInput(fmt.Sprintf("unknown relationship type %q", r))
		}
	}
	return filter, nil
}
