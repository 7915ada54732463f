package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/converter"
	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/report"
	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/store"
	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/types"
	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/xlsxwriter"
	"github.com/German-GM/cfdi-xmls-to-xlsx/pkg/utils"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const (
	uuidX = "10000000-0000-0000-0000-000000000001"
	uuidY = "10000000-0000-0000-0000-000000000002"
	uuidZ = "10000000-0000-0000-0000-000000000003"
	uuidD = "10000000-0000-0000-0000-000000000004"
)

func cfdi(uuid, folio, currency string, total float64, replaces string) string {
	rel := ""
	if replaces != "" {
		rel = fmt.Sprintf(`<cfdi:CfdiRelacionados TipoRelacion="04"><cfdi:CfdiRelacionado UUID="%s"/></cfdi:CfdiRelacionados>`, replaces)
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<cfdi:Comprobante xmlns:cfdi="http://www.sat.gob.mx/cfd/4" xmlns:tfd="http://www.sat.gob.mx/TimbreFiscalDigital"
  Version="4.0" Serie="A" Folio="%s" Fecha="2024-01-15T10:00:00" Moneda="%s" SubTotal="%.2f" Total="%.2f"
  TipoDeComprobante="I" LugarExpedicion="06600" MetodoPago="PUE">
  %s
  <cfdi:Emisor Rfc="AAA010101AAA" Nombre="EMISOR"/>
  <cfdi:Receptor Rfc="XAXX010101000" Nombre="PUBLICO EN GENERAL"/>
  <cfdi:Complemento><tfd:TimbreFiscalDigital UUID="%s"/></cfdi:Complemento>
</cfdi:Comprobante>`, folio, currency, total, total, rel, uuid)
}

func writeInput(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, body := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	return root
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "cfdis.db"), false, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func ingest(t *testing.T, st IngestStore, root string, opts IngestOptions) *IngestResult {
	t.Helper()
	in := NewIngester(zerolog.Nop(), converter.New(zerolog.Nop()), utils.NewFileManager(root), st, opts)
	res, err := in.Run(context.Background())
	require.NoError(t, err)
	return res
}

func exportTo(t *testing.T, st ExportStore, opts ExportOptions) *ExportResult {
	t.Helper()
	if opts.OutputFile == "" {
		opts.OutputFile = filepath.Join(t.TempDir(), "out.xlsx")
	}
	if opts.Report.Currencies == nil {
		opts.Report = report.DefaultOptions()
	}
	ex := NewExporter(zerolog.Nop(), st, xlsxwriter.New(zerolog.Nop(), ""), opts)
	res, err := ex.Run(context.Background())
	require.NoError(t, err)
	return res
}

func cellAt(t *testing.T, f *excelize.File, value string) (string, int) {
	t.Helper()
	cells, err := f.SearchSheet(xlsxwriter.DefaultSheetName, value)
	require.NoError(t, err)
	require.Len(t, cells, 1, "cells holding %q", value)
	col, row, err := excelize.SplitCellName(cells[0])
	require.NoError(t, err)
	return col, row
}

func TestIngestAndExport(t *testing.T) {
	root := writeInput(t, map[string]string{
		"x.xml":           cfdi(uuidX, "10", "MXN", 100, ""),
		"y.XML":           cfdi(uuidY, "5", "MXN", 50, ""),
		"usd/z.xml":       cfdi(uuidZ, "1", "USD", 20, ""),
		"copies/x.xml":    cfdi(uuidX, "10", "MXN", 100, ""),
		"retencion.xml":   `<retenciones:Retenciones xmlns:retenciones="http://www.sat.gob.mx/esquemas/retencionpago/2" Version="2.0"/>`,
		"otro.xml":        `<Factura Total="1"/>`,
		"bad.xml":         `<cfdi:Comprobante`,
		"ignored.txt":     "not xml",
		"usd/readme.json": "{}",
	})
	st := openStore(t)

	res := ingest(t, st, root, IngestOptions{BlockSize: 2, Workers: 3})

	t.Run("counters", func(t *testing.T) {
		assert.Equal(t, 7, res.Files)
		assert.Equal(t, 4, res.Blocks)
		assert.Equal(t, Counters{
			Documents:    4,
			Retentions:   1,
			Unrecognized: 1,
			Failed:       1,
			Inserted:     3,
			Duplicates:   1,
		}, res.Counters)
		require.Len(t, res.Failures, 1)
		assert.Equal(t, "bad.xml", res.Failures[0].FileName)
		assert.Equal(t, converter.OutcomeUnparseable.String(), res.Failures[0].Outcome)
	})

	t.Run("process log", func(t *testing.T) {
		run, err := st.LastRun(context.Background())
		require.NoError(t, err)
		require.NotNil(t, run)
		assert.Equal(t, res.RunID, run.RunID)
		assert.Equal(t, store.RunCompleted, run.Status)
		assert.Equal(t, 7, run.TotalFiles)
		assert.Equal(t, 7, run.Processed)
		assert.Equal(t, 1, run.Failed)
		assert.Equal(t, 4, run.Block)
	})

	t.Run("export", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "report.xlsx")
		exp := exportTo(t, st, ExportOptions{OutputFile: out})
		assert.Equal(t, 3, exp.Documents)
		assert.Equal(t, out, exp.OutputFile)
		assert.Zero(t, exp.Links)

		f, err := excelize.OpenFile(out)
		require.NoError(t, err)
		defer f.Close()

		totalCol, headerRow := cellAt(t, f, "Total")
		assert.Equal(t, 1, headerRow)

		_, mxnRow := cellAt(t, f, "Total MXN")
		assert.Equal(t, 3+3+1, mxnRow)
		v, err := f.GetCellValue(xlsxwriter.DefaultSheetName, fmt.Sprintf("%s%d", totalCol, mxnRow), excelize.Options{RawCellValue: true})
		require.NoError(t, err)
		assert.Equal(t, "150", v)

		_, usdRow := cellAt(t, f, "Total USD")
		assert.Equal(t, mxnRow+1, usdRow)

		// Data rows in currency/folio order: Y (5), X (10), Z.
		uuidCol, _ := cellAt(t, f, "Folio fiscal")
		for i, want := range []string{uuidY, uuidX, uuidZ} {
			got, err := f.GetCellValue(xlsxwriter.DefaultSheetName, fmt.Sprintf("%s%d", uuidCol, i+2))
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	})
}

func TestExportResolvesSubstitutesOutsideSelection(t *testing.T) {
	root := writeInput(t, map[string]string{
		"original.xml":  cfdi(uuidX, "10", "MXN", 100, ""),
		"sustituto.xml": cfdi(uuidD, "11", "USD", 100, uuidX),
		"huerfano.xml":  cfdi(uuidY, "12", "USD", 1, "20000000-0000-0000-0000-000000000009"),
	})
	st := openStore(t)
	ingest(t, st, root, IngestOptions{})

	t.Run("original side", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "mxn.xlsx")
		exp := exportTo(t, st, ExportOptions{OutputFile: out, Filter: store.Filter{Currency: "mxn"}})
		assert.Equal(t, 1, exp.Documents)
		assert.Equal(t, 1, exp.Links)
		assert.Equal(t, 1, exp.Unresolved)

		f, err := excelize.OpenFile(out)
		require.NoError(t, err)
		defer f.Close()

		col, _ := cellAt(t, f, "Sustituido por")
		v, err := f.GetCellValue(xlsxwriter.DefaultSheetName, col+"2")
		require.NoError(t, err)
		assert.Equal(t, "A 11", v)
	})

	t.Run("substitute side", func(t *testing.T) {
		exp := exportTo(t, st, ExportOptions{Filter: store.Filter{Currency: "USD"}})
		assert.Equal(t, 2, exp.Documents)
		assert.Equal(t, 1, exp.Links)
		assert.Empty(t, exp.Ambiguous)
	})
}

func TestExportChunked(t *testing.T) {
	root := writeInput(t, map[string]string{
		"x.xml": cfdi(uuidX, "10", "MXN", 100, ""),
		"y.xml": cfdi(uuidY, "5", "MXN", 50, ""),
		"z.xml": cfdi(uuidZ, "1", "USD", 20, ""),
	})
	st := openStore(t)
	ingest(t, st, root, IngestOptions{BlockSize: 1, Workers: 1})

	exp := exportTo(t, st, ExportOptions{DirectLimit: 1, ChunkSize: 2})
	assert.Equal(t, 3, exp.Documents)
	assert.Empty(t, exp.Unaggregated)
}

func TestExportEmptyStore(t *testing.T) {
	out := filepath.Join(t.TempDir(), "none.xlsx")
	exp := exportTo(t, openStore(t), ExportOptions{OutputFile: out})

	assert.Zero(t, exp.Documents)
	assert.Empty(t, exp.OutputFile)
	assert.NoFileExists(t, out)
}

// fakeIngestStore records process log calls and fails inserts on demand.
type fakeIngestStore struct {
	insertErr error
	finished  []store.RunStatus
	inserted  int
}

func (f *fakeIngestStore) InsertBatch(_ context.Context, docs []*types.FinancialDocument) (int, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.inserted += len(docs)
	return len(docs), nil
}

func (f *fakeIngestStore) StartRun(context.Context, string, int) (int64, error) { return 1, nil }

func (f *fakeIngestStore) UpdateRun(context.Context, int64, int, int, int) error { return nil }

func (f *fakeIngestStore) FinishRun(_ context.Context, _ int64, status store.RunStatus) error {
	f.finished = append(f.finished, status)
	return nil
}

func TestIngestBatchFailureIsFatal(t *testing.T) {
	root := writeInput(t, map[string]string{
		"x.xml": cfdi(uuidX, "10", "MXN", 100, ""),
		"y.xml": cfdi(uuidY, "5", "MXN", 50, ""),
	})
	st := &fakeIngestStore{insertErr: errors.New("disk full")}

	in := NewIngester(zerolog.Nop(), converter.New(zerolog.Nop()), utils.NewFileManager(root), st, IngestOptions{BlockSize: 1})
	res, err := in.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to persist block 1/2")
	assert.ErrorIs(t, err, st.insertErr)
	assert.Equal(t, []store.RunStatus{store.RunFailed}, st.finished)
	assert.Zero(t, res.Blocks)
}

func TestIngestCancelled(t *testing.T) {
	root := writeInput(t, map[string]string{"x.xml": cfdi(uuidX, "10", "MXN", 100, "")})
	st := &fakeIngestStore{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := NewIngester(zerolog.Nop(), converter.New(zerolog.Nop()), utils.NewFileManager(root), st, IngestOptions{})
	_, err := in.Run(ctx)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []store.RunStatus{store.RunFailed}, st.finished)
	assert.Zero(t, st.inserted)
}

func TestIngestMissingInput(t *testing.T) {
	in := NewIngester(zerolog.Nop(), converter.New(zerolog.Nop()), utils.NewFileManager(filepath.Join(t.TempDir(), "nope")), &fakeIngestStore{}, IngestOptions{})
	_, err := in.Run(context.Background())
	assert.Error(t, err)
}
