package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"goea/domain/core"
	"goea/domain/enrichment"
	"goea/domain/ontology"
)

func sampleRun() *enrichment.Run {
	return &enrichment.Run{
		ID:         "0190c8a0-0000-7000-8000-000000000001",
		TestMethod: "fisher_exact",
		Methods:    []string{enrichment.MethodBonferroni, enrichment.MethodFDRBH},
		StudyTotal: 2,
		PopTotal:   10,
		Results: []enrichment.Result{
			{TermID: "GO:X", Name: "x process", Namespace: "biological_process",
				StudyCount: 2, StudyTotal: 2, PopCount: 3, PopTotal: 10, PUncorrected: 1.0 / 15,
				Corrected: map[string]float64{enrichment.MethodBonferroni: 0.2, enrichment.MethodFDRBH: 0.1},
				Direction: enrichment.Enriched},
			{TermID: "GO:NOPE", StudyCount: 0, StudyTotal: 2, PopCount: 1, PopTotal: 10, PUncorrected: 1,
				Corrected: map[string]float64{enrichment.MethodBonferroni: 1},
				Direction: enrichment.Purified},
		},
		Warnings: []core.Warning{{Code: core.WarningUnknownTerm, Entity: "GO:NOPE", Message: "annotated term is not in the ontology"}},
	}
}

func TestWriteClosures(t *testing.T) {
	var buf bytes.Buffer
	err := WriteClosures(&buf, AncestorsHeader, []ClosureRow{
		{Term: "GO:3", Related: ontology.NewTermSet("GO:2", "GO:1")},
		{Term: "GO:1", Related: ontology.NewTermSet()},
	})
	require.NoError(t, err)
	assert.Equal(t, "Goterm\tParents\nGO:3\tGO:1;GO:2\nGO:1\t\n", buf.String())
}

func TestWriteResultsTSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteResultsTSV(&buf, sampleRun()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "GO\tNS\tenrichment\tname\tratio_in_study\tratio_in_pop\tp_uncorrected\tp_bonferroni\tp_fdr_bh\tstudy_count\tpop_count", lines[0])
	assert.Equal(t, "GO:X\tbiological_process\te\tx process\t2/2\t3/10\t0.0666667\t0.2\t0.1\t2\t3", lines[1])
	assert.Equal(t, "GO:NOPE\t\tp\t\t0/2\t1/10\t1\t1\t\t0\t1", lines[2])
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleRun()))

	var decoded enrichment.Run
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded.Results, 2)
	assert.Equal(t, ontology.TermID("GO:X"), decoded.Results[0].TermID)
	assert.Equal(t, enrichment.Enriched, decoded.Results[0].Direction)
	assert.InDelta(t, 0.1, decoded.Results[0].Corrected[enrichment.MethodFDRBH], 1e-12)
	assert.Contains(t, buf.String(), `"enrichment": "e"`)
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleRun()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{ResultsSheet, WarningsSheet}, f.GetSheetList())

	rows, err := f.GetRows(ResultsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Columns(sampleRun().Methods), rows[0])
	assert.Equal(t, "GO:X", rows[1][0])
	assert.Equal(t, "2/2", rows[1][4])

	warnings, err := f.GetRows(WarningsSheet)
	require.NoError(t, err)
	require.Len(t, warnings, 2)
	assert.Equal(t, "UNKNOWN_TERM", warnings[1][0])
}
