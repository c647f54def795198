// Package report writes closure listings and enrichment results as TSV, JSON
// and xlsx.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"goea/domain/enrichment"
	"goea/domain/ontology"
)

// Closure listing headers.
const (
	AncestorsHeader   = "Parents"
	DescendantsHeader = "Descendent"
	termHeader        = "Goterm"
	listSeparator     = ";"
)

// ClosureRow is one term and its ancestor or descendant set.
type ClosureRow struct {
	Term    ontology.TermID
	Related ontology.TermSet
}

// WriteClosures writes a two-column TSV listing: the term, then its related
// terms joined by ";" in lexical order.
func WriteClosures(w io.Writer, header string, rows []ClosureRow) error {
	tw := newTSV(w)
	if err := tw.Write([]string{termHeader, header}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := tw.Write([]string{string(r.Term), strings.Join(r.Related.Strings(), listSeparator)}); err != nil {
			return err
		}
	}
	tw.Flush()
	return tw.Error()
}

func newTSV(w io.Writer) *csv.Writer {
	tw := csv.NewWriter(w)
	tw.Comma = '\t'
	return tw
}

// Columns returns the result table header for methods.
func Columns(methods []string) []string {
	cols := []string{"GO", "NS", "enrichment", "name", "ratio_in_study", "ratio_in_pop", "p_uncorrected"}
	for _, m := range methods {
		cols = append(cols, "p_"+m)
	}
	return append(cols, "study_count", "pop_count")
}

// Row renders one result in Columns order.
func Row(r enrichment.Result, methods []string) []string {
	row := []string{
		string(r.TermID),
		r.Namespace,
		string(r.Direction),
		r.Name,
		r.StudyRatio(),
		r.PopRatio(),
		formatP(r.PUncorrected),
	}
	for _, m := range methods {
		p, ok := r.Corrected[m]
		if !ok {
			row = append(row, "")
			continue
		}
		row = append(row, formatP(p))
	}
	return append(row, strconv.Itoa(r.StudyCount), strconv.Itoa(r.PopCount))
}

func formatP(p float64) string {
	return strconv.FormatFloat(p, 'g', 6, 64)
}

// WriteResultsTSV writes the run's results, one row per tested term.
func WriteResultsTSV(w io.Writer, run *enrichment.Run) error {
	tw := newTSV(w)
	if err := tw.Write(Columns(run.Methods)); err != nil {
		return err
	}
	for _, r := range run.Results {
		if err := tw.Write(Row(r, run.Methods)); err != nil {
			return fmt.Errorf("write %s: %w", r.TermID, err)
		}
	}
	tw.Flush()
	return tw.Error()
}

// WriteJSON writes the run as indented JSON.
func WriteJSON(w io.Writer, run *enrichment.Run) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}
