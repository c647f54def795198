// Package obo parses OBO-format ontologies into an ontology.Graph.
package obo

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"goea/domain/core"
	"goea/domain/ontology"
)

const (
	initialTermCapacity = 50000   // GO has ~47k terms
	scannerBufferSize   = 1 << 20 // 1 MB
)

// Options controls which optional attributes are retained.
type Options struct {
	// Relationships lists the relationship: types to keep in addition to is_a.
	Relationships []ontology.RelationshipType
	// AllRelationships keeps every relationship: line regardless of type.
	AllRelationships bool
	Logger           *slog.Logger
}

func (o Options) keeps(rel ontology.RelationshipType) bool {
	if o.AllRelationships || rel == ontology.IsA {
		return true
	}
	for _, r := range o.Relationships {
		if r == rel {
			return true
		}
	}
	return false
}

// internPool avoids duplicate string allocations for repeated values.
type internPool struct {
	m map[string]string
}

func newInternPool() *internPool {
	return &internPool{m: make(map[string]string, 64)}
}

func (p *internPool) get(s string) string {
	if v, ok := p.m[s]; ok {
		return v
	}
	p.m[s] = s
	return s
}

type pendingEdge struct {
	rel    ontology.RelationshipType
	target ontology.TermID
	line   int
}

type stanza struct {
	kind    string
	ordinal int
	line    int
	term    *ontology.Term
	typedef *ontology.Typedef
	edges   []pendingEdge
	hasName bool
}

type parser struct {
	opts     Options
	pool     *internPool
	header   ontology.Header
	typedefs []ontology.Typedef
	terms    []*stanza
	current  *stanza
	ordinal  int
	skipped  int
}

// ParseFile opens path (optionally gzip compressed) and parses it.
func ParseFile(path string, opts Options) (*ontology.Graph, []core.Warning, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open ontology %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, nil, fmt.Errorf("open ontology %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	g, warnings, err := Parse(r, opts)
	if err != nil {
		return nil, warnings, fmt.Errorf("parse ontology %s: %w", path, err)
	}
	return g, warnings, nil
}

// Parse reads an OBO document. Identifiers are registered before any edge is
// linked, so a term may reference one defined later in the source. Edges to
// unknown terms are dropped and reported as warnings; a [Term] stanza without
// an id or name aborts the parse with a *core.ParseError.
func Parse(r io.Reader, opts Options) (*ontology.Graph, []core.Warning, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, scannerBufferSize), scannerBufferSize)

	p := &parser{
		opts:  opts,
		pool:  newInternPool(),
		terms: make([]*stanza, 0, 1024),
	}

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '!' {
			continue
		}
		if line[0] == '[' && line[len(line)-1] == ']' {
			if err := p.closeStanza(); err != nil {
				return nil, nil, err
			}
			p.openStanza(line[1:len(line)-1], lineNo)
			continue
		}

		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = stripComment(strings.TrimSpace(val))

		if p.current == nil {
			p.headerLine(key, val)
			continue
		}
		if err := p.tagLine(key, val, lineNo); err != nil {
			return nil, nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("read ontology at line %d: %w", lineNo, err)
	}
	if err := p.closeStanza(); err != nil {
		return nil, nil, err
	}

	g, warnings, err := p.link()
	if err != nil {
		return nil, nil, err
	}

	logger.Debug("parsed ontology",
		"terms", g.Len(),
		"typedefs", len(g.Typedefs),
		"warnings", len(warnings),
		"skipped_relationships", p.skipped)
	return g, warnings, nil
}

func (p *parser) openStanza(kind string, line int) {
	p.ordinal++
	st := &stanza{kind: kind, ordinal: p.ordinal, line: line}
	switch kind {
	case "Term":
		st.term = &ontology.Term{}
	case "Typedef":
		st.typedef = &ontology.Typedef{}
	}
	p.current = st
}

func (p *parser) closeStanza() error {
	st := p.current
	p.current = nil
	if st == nil {
		return nil
	}

	switch {
	case st.term != nil:
		if st.term.ID == "" {
			return &core.ParseError{Stanza: st.ordinal, Line: st.line, Tag: "id", Reason: "missing required tag"}
		}
		if !st.hasName {
			return &core.ParseError{Stanza: st.ordinal, Line: st.line, TermID: string(st.term.ID), Tag: "name", Reason: "missing required tag"}
		}
		p.terms = append(p.terms, st)
	case st.typedef != nil:
		if st.typedef.ID != "" {
			p.typedefs = append(p.typedefs, *st.typedef)
		}
	}
	return nil
}

func (p *parser) headerLine(key, val string) {
	switch key {
	case "format-version":
		p.header.FormatVersion = val
	case "data-version":
		p.header.DataVersion = val
	case "ontology":
		p.header.Ontology = val
	}
}

func (p *parser) tagLine(key, val string, line int) error {
	st := p.current
	if st.typedef != nil {
		switch key {
		case "id":
			st.typedef.ID = ontology.RelationshipType(p.pool.get(val))
		case "name":
			st.typedef.Name = val
		case "is_transitive":
			st.typedef.IsTransitive = val == "true"
		}
		return nil
	}
	if st.term == nil {
		return nil
	}

	t := st.term
	switch key {
	case "id":
		t.ID = ontology.TermID(val)
	case "name":
		t.Name = val
		st.hasName = true
	case "namespace":
		t.Namespace = p.pool.get(val)
	case "def":
		t.Definition = parseQuoted(val)
	case "is_obsolete":
		t.Obsolete = val == "true"
	case "alt_id":
		t.AltIDs = append(t.AltIDs, ontology.TermID(val))
	case "replaced_by":
		t.ReplacedBy = append(t.ReplacedBy, ontology.TermID(val))
	case "consider":
		t.Consider = append(t.Consider, ontology.TermID(val))
	case "is_a":
		target, _, _ := strings.Cut(val, " ")
		if target == "" {
			return st.malformed(key, line, "is_a without a target")
		}
		st.edges = append(st.edges, pendingEdge{rel: ontology.IsA, target: ontology.TermID(target), line: line})
	case "relationship":
		fields := strings.Fields(val)
		if len(fields) < 2 {
			return st.malformed(key, line, "relationship needs a type and a target")
		}
		rel := ontology.RelationshipType(p.pool.get(fields[0]))
		if !p.opts.keeps(rel) {
			p.skipped++
			return nil
		}
		st.edges = append(st.edges, pendingEdge{rel: rel, target: ontology.TermID(fields[1]), line: line})
	}
	return nil
}

func (st *stanza) malformed(tag string, line int, reason string) error {
	return &core.ParseError{
		Stanza: st.ordinal,
		Line:   line,
		TermID: string(st.term.ID),
		Tag:    tag,
		Reason: reason,
	}
}

// link is the second pass: every id is known before the first edge is added.
func (p *parser) link() (*ontology.Graph, []core.Warning, error) {
	capacity := len(p.terms)
	if capacity > initialTermCapacity {
		capacity = initialTermCapacity
	}
	g := ontology.NewGraph(capacity)
	g.Header = p.header
	g.Typedefs = p.typedefs

	for _, st := range p.terms {
		if err := g.AddTerm(st.term); err != nil {
			return nil, nil, &core.ParseError{
				Stanza: st.ordinal,
				Line:   st.line,
				TermID: string(st.term.ID),
				Tag:    "id",
				Reason: err.Error(),
			}
		}
	}

	var warnings []core.Warning
	for _, st := range p.terms {
		for _, e := range st.edges {
			if !g.Has(e.target) {
				warnings = append(warnings, core.Warning{
					Code:    core.WarningUnknownReference,
					Entity:  string(st.term.ID),
					Line:    e.line,
					Message: fmt.Sprintf("%s target %s is not defined; edge dropped", e.rel, e.target),
				})
				continue
			}
			if g.Canonical(e.target) == st.term.ID {
				warnings = append(warnings, core.Warning{
					Code:    core.WarningSelfReference,
					Entity:  string(st.term.ID),
					Line:    e.line,
					Message: fmt.Sprintf("%s edge to itself dropped", e.rel),
				})
				continue
			}
			if err := g.Link(st.term.ID, e.rel, e.target); err != nil {
				return nil, nil, &core.ParseError{
					Stanza: st.ordinal,
					Line:   e.line,
					TermID: string(st.term.ID),
					Tag:    string(e.rel),
					Reason: err.Error(),
				}
			}
		}
	}
	return g, warnings, nil
}

// stripComment removes a trailing "! comment" and a trailing {qualifier} block.
// Escaped characters and quoted text are left alone.
func stripComment(s string) string {
	inQuote := false
	escaped := false
	brace := -1
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			inQuote = !inQuote
		case inQuote:
		case c == '{':
			brace = i
		case c == '!':
			s = s[:i]
			return trimQualifier(strings.TrimSpace(s), brace)
		}
	}
	return trimQualifier(strings.TrimSpace(s), brace)
}

func trimQualifier(s string, brace int) string {
	if brace >= 0 && brace < len(s) && strings.HasSuffix(s, "}") {
		return strings.TrimSpace(s[:brace])
	}
	return s
}

// parseQuoted extracts text between the first pair of double quotes.
func parseQuoted(s string) string {
	start := strings.IndexByte(s, '"')
	if start < 0 {
		return s
	}
	start++
	end := strings.IndexByte(s[start:], '"')
	if end < 0 {
		return s[start:]
	}
	return s[start : start+end]
}
