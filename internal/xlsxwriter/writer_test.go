package xlsxwriter

import (
	"path/filepath"
	"testing"

	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/report"
	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleReport() *report.Report {
	docs := []*types.FinancialDocument{
		{UUID: "X", Currency: "MXN", Folio: "10", Total: 100},
		{UUID: "Y", Currency: "MXN", Folio: "5", Total: 50},
		{UUID: "Z", Currency: "USD", Folio: "1", Total: 20},
	}
	return report.Build(docs, report.DefaultColumns(), report.DefaultOptions())
}

func raw(t *testing.T, f *excelize.File, cell string) string {
	t.Helper()
	v, err := f.GetCellValue(DefaultSheetName, cell, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	return v
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.xlsx")
	require.NoError(t, New(zerolog.Nop(), "").Write(sampleReport(), path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{DefaultSheetName}, f.GetSheetList())

	t.Run("header and data", func(t *testing.T) {
		assert.Equal(t, "Folio", raw(t, f, "A1"))
		assert.Equal(t, "Total", raw(t, f, "E1"))
		assert.Equal(t, "5", raw(t, f, "A2"))
		assert.Equal(t, "Y", raw(t, f, "B2"))
		assert.Equal(t, "MXN", raw(t, f, "C2"))
		assert.Equal(t, "100", raw(t, f, "E3"))
		assert.Equal(t, "USD", raw(t, f, "C4"))
	})

	t.Run("totals block", func(t *testing.T) {
		assert.Empty(t, raw(t, f, "C5"), "gap row")
		assert.Empty(t, raw(t, f, "C6"), "EUR has no documents")
		assert.Equal(t, "Total MXN", raw(t, f, "C7"))
		assert.Equal(t, "150", raw(t, f, "E7"))
		assert.Equal(t, "Total USD", raw(t, f, "C8"))
		assert.Equal(t, "20", raw(t, f, "E8"))
		assert.Empty(t, raw(t, f, "C9"), "COP has no documents")
	})

	t.Run("layout", func(t *testing.T) {
		width, err := f.GetColWidth(DefaultSheetName, "A")
		require.NoError(t, err)
		assert.Equal(t, Widths[report.WidthSmall], width)

		width, err = f.GetColWidth(DefaultSheetName, "B")
		require.NoError(t, err)
		assert.Equal(t, Widths[report.WidthLarge], width)

		panes, err := f.GetPanes(DefaultSheetName)
		require.NoError(t, err)
		assert.True(t, panes.Freeze)
		assert.Equal(t, 1, panes.YSplit)
	})

	t.Run("banding", func(t *testing.T) {
		header, err := f.GetCellStyle(DefaultSheetName, "B1")
		require.NoError(t, err)
		even, err := f.GetCellStyle(DefaultSheetName, "B2")
		require.NoError(t, err)
		odd, err := f.GetCellStyle(DefaultSheetName, "B3")
		require.NoError(t, err)
		third, err := f.GetCellStyle(DefaultSheetName, "B4")
		require.NoError(t, err)

		assert.NotEqual(t, header, even)
		assert.NotEqual(t, even, odd)
		assert.Equal(t, even, third)
	})

	t.Run("font size on every styled cell", func(t *testing.T) {
		for _, cell := range []string{"A1", "A2", "B3", "E4", "C7", "E7"} {
			id, err := f.GetCellStyle(DefaultSheetName, cell)
			require.NoError(t, err)
			st, err := f.GetStyle(id)
			require.NoError(t, err)
			require.NotNil(t, st.Font, cell)
			assert.Equal(t, float64(FontSize), st.Font.Size, cell)
		}

		id, err := f.GetCellStyle(DefaultSheetName, "E7")
		require.NoError(t, err)
		st, err := f.GetStyle(id)
		require.NoError(t, err)
		assert.True(t, st.Font.Bold, "totals are bold")
	})
}

func TestRenderCustomSheetName(t *testing.T) {
	f, err := New(zerolog.Nop(), "Facturas").Render(sampleReport())
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Facturas"}, f.GetSheetList())
}

func TestRenderEmptyReport(t *testing.T) {
	rep := report.Build(nil, report.DefaultColumns(), report.DefaultOptions())

	path := filepath.Join(t.TempDir(), "empty.xlsx")
	require.NoError(t, New(zerolog.Nop(), "").Write(rep, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(DefaultSheetName)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
