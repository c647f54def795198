package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"goea/domain/enrichment"
)

// Sheet names used by WriteXLSX.
const (
	ResultsSheet  = "results"
	WarningsSheet = "warnings"
)

// WriteXLSX writes the results to a workbook with a results sheet and, when the
// run produced any, a warnings sheet. p-values are stored as numbers.
func WriteXLSX(w io.Writer, run *enrichment.Run) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ResultsSheet); err != nil {
		return err
	}

	header := Columns(run.Methods)
	if err := setRow(f, ResultsSheet, 1, toCells(header)); err != nil {
		return err
	}
	for i, r := range run.Results {
		cells := []interface{}{
			string(r.TermID), r.Namespace, string(r.Direction), r.Name,
			r.StudyRatio(), r.PopRatio(), r.PUncorrected,
		}
		for _, m := range run.Methods {
			cells = append(cells, r.Corrected[m])
		}
		cells = append(cells, r.StudyCount, r.PopCount)
		if err := setRow(f, ResultsSheet, i+2, cells); err != nil {
			return fmt.Errorf("write %s: %w", r.TermID, err)
		}
	}

	if len(run.Warnings) > 0 {
		if _, err := f.NewSheet(WarningsSheet); err != nil {
			return err
		}
		if err := setRow(f, WarningsSheet, 1, []interface{}{"code", "entity", "line", "message"}); err != nil {
			return err
		}
		for i, warn := range run.Warnings {
			if err := setRow(f, WarningsSheet, i+2, []interface{}{string(warn.Code), warn.Entity, warn.Line, warn.Message}); err != nil {
				return err
			}
		}
	}

	return f.Write(w)
}

func setRow(f *excelize.File, sheet string, row int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &cells)
}

func toCells(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
