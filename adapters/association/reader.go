// Package association reads item→term annotation files and item-set lists.
package association

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"goea/domain/core"
	"goea/domain/enrichment"
	"goea/domain/ontology"
)

// DefaultDelimiter separates term ids inside the term column.
const DefaultDelimiter = ";"

// Options configures association parsing.
type Options struct {
	// Delimiter separates term ids within a row. Empty selects DefaultDelimiter.
	Delimiter string
	// Sheet names the xlsx sheet to read. Empty selects the first sheet.
	Sheet  string
	Logger *slog.Logger
}

func (o Options) delimiter() string {
	if o.Delimiter == "" {
		return DefaultDelimiter
	}
	return o.Delimiter
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// ReadFile reads an association file. Files ending in .xlsx are read with
// column A as the item id and the remaining columns as term lists; .gz files
// are decompressed; anything else is read as delimited text.
func ReadFile(path string, opts Options) (enrichment.Associations, []core.Warning, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return readWorkbook(path, opts)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open associations %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, nil, fmt.Errorf("open associations %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	assoc, warnings, err := Read(r, opts)
	if err != nil {
		return nil, warnings, fmt.Errorf("read associations %s: %w", path, err)
	}
	return assoc, warnings, nil
}

// Read parses rows of an item id followed by a delimiter-joined term list,
// separated by a tab or by whitespace. Blank lines and lines starting with #
// are skipped. Repeated item rows are unioned. A row that cannot be parsed is
// reported as a MALFORMED_ROW warning; the read fails only when no row parses.
func Read(r io.Reader, opts Options) (enrichment.Associations, []core.Warning, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var rows []row
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var cells []string
		if strings.Contains(line, "\t") {
			cells = strings.Split(line, "\t")
		} else {
			cells = strings.Fields(line)
		}
		rows = append(rows, row{line: lineNo, cells: cells})
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("scan associations at line %d: %w", lineNo+1, err)
	}
	return collect(rows, opts)
}

type row struct {
	line  int
	cells []string
}

// collect turns raw rows into the association mapping.
func collect(rows []row, opts Options) (enrichment.Associations, []core.Warning, error) {
	delim := opts.delimiter()
	assoc := make(enrichment.Associations)
	var warnings []core.Warning
	parsed := 0

	for _, rw := range rows {
		item, terms, reason := parseRow(rw.cells, delim)
		if reason != "" {
			warnings = append(warnings, core.Warning{
				Code:    core.WarningMalformedRow,
				Entity:  item,
				Line:    rw.line,
				Message: reason,
			})
			continue
		}
		assoc.Add(enrichment.ItemID(item), terms...)
		parsed++
	}

	core.LogWarnings(opts.logger(), warnings)

	if parsed == 0 {
		if len(warnings) > 0 {
			first := warnings[0]
			return nil, warnings, core.NewInputError(fmt.Sprintf("line %d", first.Line),
				"no association row could be parsed: %s", first.Message)
		}
		return nil, nil, core.NewInputError("associations", "no association rows")
	}
	return assoc, warnings, nil
}

func parseRow(cells []string, delim string) (string, []ontology.TermID, string) {
	item := ""
	if len(cells) > 0 {
		item = strings.TrimSpace(cells[0])
	}
	if item == "" {
		return "", nil, "missing item id"
	}
	if len(cells) < 2 {
		return item, nil, "missing term column"
	}

	var terms []ontology.TermID
	for _, cell := range cells[1:] {
		for _, tok := range strings.Split(cell, delim) {
			tok = strings.TrimSpace(tok)
			if tok == "" {
				continue
			}
			if strings.ContainsAny(tok, " \t") {
				return item, nil, fmt.Sprintf("term %q contains whitespace", tok)
			}
			terms = append(terms, ontology.TermID(tok))
		}
	}
	if len(terms) == 0 {
		return item, nil, "empty term list"
	}
	return item, terms, ""
}

func readWorkbook(path string, opts Options) (enrichment.Associations, []core.Warning, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open associations %s: %w", path, err)
	}
	defer f.Close()

	assoc, warnings, err := readSheet(f, opts)
	if err != nil {
		return nil, warnings, fmt.Errorf("read associations %s: %w", path, err)
	}
	return assoc, warnings, nil
}

// ReadWorkbook reads associations from an xlsx stream.
func ReadWorkbook(r io.Reader, opts Options) (enrichment.Associations, []core.Warning, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("open association workbook: %w", err)
	}
	defer f.Close()
	return readSheet(f, opts)
}

func readSheet(f *excelize.File, opts Options) (enrichment.Associations, []core.Warning, error) {
	sheet := opts.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, nil, core.NewInputError("workbook", "no sheets")
		}
		sheet = sheets[0]
	}

	cells, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}

	rows := make([]row, 0, len(cells))
	for i, c := range cells {
		if len(c) == 0 || strings.TrimSpace(strings.Join(c, "")) == "" {
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(c[0]), "#") {
			continue
		}
		rows = append(rows, row{line: i + 1, cells: c})
	}
	return collect(rows, opts)
}

// ReadItemSetFile reads an item list from path.
func ReadItemSetFile(path string) (enrichment.ItemSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open item set %s: %w", path, err)
	}
	defer f.Close()

	set, err := ReadItemSet(f)
	if err != nil {
		return nil, fmt.Errorf("read item set %s: %w", path, err)
	}
	return set, nil
}

// ReadItemSet reads one item id per line, taking the first whitespace-separated
// field. Blank lines and # comments are skipped.
func ReadItemSet(r io.Reader) (enrichment.ItemSet, error) {
	set := make(enrichment.ItemSet)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		set.Add(enrichment.ItemID(fields[0]))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return set, nil
}

// TermColumn is the header naming the term column of a term list.
const TermColumn = "Goterm"

// ReadTermList reads term ids, one per row. When the first row contains a
// TermColumn header, ids are taken from that tab-separated column; otherwise
// the first field of every row is used.
func ReadTermList(r io.Reader) ([]ontology.TermID, error) {
	scanner := bufio.NewScanner(r)
	col := 0
	first := true
	seen := make(ontology.TermSet)
	var ids []ontology.TermID
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cells := strings.Split(line, "\t")
		if first {
			first = false
			if idx := indexOf(cells, TermColumn); idx >= 0 {
				col = idx
				continue
			}
		}
		if col >= len(cells) {
			continue
		}
		id := ontology.TermID(strings.TrimSpace(cells[col]))
		if id == "" || seen.Has(id) {
			continue
		}
		seen.Add(id)
		ids = append(ids, id)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func indexOf(cells []string, name string) int {
	for i, c := range cells {
		if strings.EqualFold(strings.TrimSpace(c), name) {
			return i
		}
	}
	return -1
}
