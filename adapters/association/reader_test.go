package association

import (
	"bytes"
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"goea/domain/core"
	"goea/domain/enrichment"
	"goea/domain/ontology"
)

func terms(ids ...ontology.TermID) []ontology.TermID { return ids }

func TestReadUnionsDuplicateRows(t *testing.T) {
	src := "# id2gos\n" +
		"g1\tGO:0000001;GO:0000002\n" +
		"\n" +
		"g2\tGO:0000003\n" +
		"g1\tGO:0000002;GO:0000004\n" +
		"g3 GO:0000005; GO:0000001\n"

	assoc, warnings, err := Read(strings.NewReader(src), Options{})
	require.NoError(t, err)
	assert.Empty(t, warnings)

	require.Len(t, assoc, 3)
	assert.Equal(t, terms("GO:0000001", "GO:0000002", "GO:0000004"), assoc["g1"].Sorted())
	assert.Equal(t, terms("GO:0000003"), assoc["g2"].Sorted())
	assert.Equal(t, terms("GO:0000001", "GO:0000005"), assoc["g3"].Sorted())
}

func TestReadReportsMalformedRows(t *testing.T) {
	src := "g1\tGO:1\n" +
		"g2\n" +
		"g3\t ; \n" +
		"\tGO:2\n" +
		"g4\tGO:3 GO:4\n" +
		"g5\tGO:5\n"

	assoc, warnings, err := Read(strings.NewReader(src), Options{})
	require.NoError(t, err)
	assert.Equal(t, []enrichment.ItemID{"g1", "g5"}, enrichment.NewItemSet(keys(assoc)...).Sorted())

	require.Len(t, warnings, 4)
	wantLines := []int{2, 3, 4, 5}
	for i, w := range warnings {
		assert.Equal(t, core.WarningMalformedRow, w.Code)
		assert.Equal(t, wantLines[i], w.Line)
	}
	assert.Equal(t, "g2", warnings[0].Entity)
	assert.Equal(t, "missing term column", warnings[0].Message)
}

func TestReadFailsWhenEveryRowFails(t *testing.T) {
	_, warnings, err := Read(strings.NewReader("# header\ng1\ng2\n"), Options{})
	require.Error(t, err)
	assert.Len(t, warnings, 2)

	var inputErr *core.InputError
	require.True(t, errors.As(err, &inputErr))
	assert.Equal(t, "line 2", inputErr.Entity)
	assert.ErrorIs(t, err, core.ErrInput)

	_, _, err = Read(strings.NewReader("\n# nothing\n"), Options{})
	assert.ErrorIs(t, err, core.ErrInput)
}

func TestReadCustomDelimiter(t *testing.T) {
	assoc, _, err := Read(strings.NewReader("g1\tGO:1,GO:2\n"), Options{Delimiter: ","})
	require.NoError(t, err)
	assert.Equal(t, terms("GO:1", "GO:2"), assoc["g1"].Sorted())
}

func TestReadFileDispatchesOnExtension(t *testing.T) {
	dir := t.TempDir()

	plain := filepath.Join(dir, "assoc.txt")
	require.NoError(t, os.WriteFile(plain, []byte("g1\tGO:1\n"), 0o644))
	assoc, _, err := ReadFile(plain, Options{})
	require.NoError(t, err)
	assert.True(t, assoc["g1"].Has("GO:1"))

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err = gz.Write([]byte("g2\tGO:2;GO:3\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	zipped := filepath.Join(dir, "assoc.txt.gz")
	require.NoError(t, os.WriteFile(zipped, buf.Bytes(), 0o644))
	assoc, _, err = ReadFile(zipped, Options{})
	require.NoError(t, err)
	assert.Equal(t, terms("GO:2", "GO:3"), assoc["g2"].Sorted())

	book := filepath.Join(dir, "assoc.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"g1", "GO:1;GO:2"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"g2"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]interface{}{"g1", "GO:3"}))
	require.NoError(t, f.SaveAs(book))
	require.NoError(t, f.Close())

	assoc, warnings, err := ReadFile(book, Options{})
	require.NoError(t, err)
	assert.Equal(t, terms("GO:1", "GO:2", "GO:3"), assoc["g1"].Sorted())
	require.Len(t, warnings, 1)
	assert.Equal(t, 2, warnings[0].Line)

	_, _, err = ReadFile(filepath.Join(dir, "missing.txt"), Options{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadWorkbookStream(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "id2gos"))
	require.NoError(t, f.SetSheetRow("id2gos", "A1", &[]interface{}{"#item", "terms"}))
	require.NoError(t, f.SetSheetRow("id2gos", "A2", &[]interface{}{"g9", "GO:9", "GO:10"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	assoc, warnings, err := ReadWorkbook(buf, Options{})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, terms("GO:10", "GO:9"), assoc["g9"].Sorted())
}

func TestReadItemSet(t *testing.T) {
	set, err := ReadItemSet(strings.NewReader("# study\ng1\n g2  extra\n\ng1\n"))
	require.NoError(t, err)
	assert.Equal(t, []enrichment.ItemID{"g1", "g2"}, set.Sorted())

	path := filepath.Join(t.TempDir(), "study.txt")
	require.NoError(t, os.WriteFile(path, []byte("a\nb\n"), 0o644))
	set, err = ReadItemSetFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
}

func keys(a enrichment.Associations) []enrichment.ItemID {
	out := make([]enrichment.ItemID, 0, len(a))
	for k := range a {
		out = append(out, k)
	}
	return out
}

func TestReadTermList(t *testing.T) {
	ids, err := ReadTermList(strings.NewReader("Name\tGoterm\nfirst\tGO:1\nsecond\tGO:2\nagain\tGO:1\nshort\n"))
	require.NoError(t, err)
	assert.Equal(t, terms("GO:1", "GO:2"), ids)

	ids, err = ReadTermList(strings.NewReader("GO:3\textra\n\nGO:4\n"))
	require.NoError(t, err)
	assert.Equal(t, terms("GO:3", "GO:4"), ids)
}
