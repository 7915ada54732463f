// =============================================================================
// CFDI XML to XLSX - Export Pipeline
// =============================================================================
//
// The exporter loads the selected documents from the store, resolves
// substitution links, lays out the currency-grouped report and writes it.
//
// PIPELINE:
//   1. Load    : filtered query, or the whole store in one query below
//                DirectLimit records, or in ChunkSize pages above it
//   2. Resolve : resolver.ResolveFromStore (a barrier: the whole selection
//                is loaded before any link is computed)
//   3. Build   : report.Build
//   4. Write   : xlsxwriter
//
// =============================================================================

package pipeline

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/report"
	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/resolver"
	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/store"
	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/types"
	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/xlsxwriter"
	"github.com/rs/zerolog"
)

// ExportStore is the part of the store the exporter reads from.
type ExportStore interface {
	resolver.Source
	Count(ctx context.Context) (int, error)
	QueryAll(ctx context.Context, order store.OrderBy) ([]*types.FinancialDocument, error)
	QueryChunk(ctx context.Context, limit, offset int, order store.OrderBy) ([]*types.FinancialDocument, error)
	QueryWithFilters(ctx context.Context, f store.Filter) ([]*types.FinancialDocument, error)
}

// ExportOptions configures an export.
type ExportOptions struct {
	OutputFile  string
	ChunkSize   int
	DirectLimit int
	Filter      store.Filter
	Report      report.Options

	// Columns defaults to report.DefaultColumns().
	Columns []report.Column
}

// ExportResult summarizes an export.
type ExportResult struct {
	Documents    int
	Links        int
	Unresolved   int
	Ambiguous    []string
	Unaggregated map[string]int

	// OutputFile is empty when nothing was written.
	OutputFile string
	Elapsed    time.Duration
}

// Exporter runs the export pipeline.
type Exporter struct {
	log    zerolog.Logger
	store  ExportStore
	writer *xlsxwriter.Writer
	opts   ExportOptions
}

// NewExporter wires an Exporter. Non-positive sizes fall back to 10000 per
// chunk and a 50000 direct limit.
func NewExporter(log zerolog.Logger, st ExportStore, writer *xlsxwriter.Writer, opts ExportOptions) *Exporter {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 10000
	}
	if opts.DirectLimit <= 0 {
		opts.DirectLimit = 50000
	}
	if opts.Columns == nil {
		opts.Columns = report.DefaultColumns()
	}
	return &Exporter{log: log, store: st, writer: writer, opts: opts}
}

// Run exports the selection. An empty selection writes no file.
func (e *Exporter) Run(ctx context.Context) (*ExportResult, error) {
	start := time.Now()
	res := &ExportResult{}

	// =========================================================================
	// STEP 1: LOAD
	// =========================================================================

	docs, err := e.load(ctx)
	if err != nil {
		return res, err
	}
	res.Documents = len(docs)
	if len(docs) == 0 {
		e.log.Warn().Msg("No documents to export")
		res.Elapsed = time.Since(start)
		return res, nil
	}

	// =========================================================================
	// STEP 2: RESOLVE SUBSTITUTIONS
	// =========================================================================

	resolved, err := resolver.ResolveFromStore(ctx, e.store, docs)
	if err != nil {
		return res, fmt.Errorf("failed to resolve substitutions: %w", err)
	}
	res.Links = len(resolved.Links)
	res.Unresolved = resolved.Unresolved
	res.Ambiguous = resolved.Ambiguous

	e.log.Info().
		Int("links", res.Links).
		Int("unresolved", res.Unresolved).
		Msg("Substitutions resolved")
	for _, u := range resolved.Ambiguous {
		e.log.Warn().Str("uuid", u).Msg("document substitutes several originals; report shows the last one")
	}

	// =========================================================================
	// STEP 3-4: BUILD AND WRITE
	// =========================================================================

	rep := report.Build(resolved.Documents, e.opts.Columns, e.opts.Report)
	res.Unaggregated = rep.Unaggregated
	for _, cur := range slices.Sorted(maps.Keys(rep.Unaggregated)) {
		e.log.Warn().Str("currency", cur).Int("rows", rep.Unaggregated[cur]).Msg("currency has no total row")
	}

	if err := e.writer.Write(rep, e.opts.OutputFile); err != nil {
		return res, fmt.Errorf("failed to write report: %w", err)
	}
	res.OutputFile = e.opts.OutputFile
	res.Elapsed = time.Since(start)

	e.log.Info().
		Str("output", res.OutputFile).
		Int("documents", res.Documents).
		Dur("elapsed", res.Elapsed).
		Msg("Export finished")
	return res, nil
}

func (e *Exporter) load(ctx context.Context) ([]*types.FinancialDocument, error) {
	if !e.opts.Filter.IsEmpty() {
		docs, err := e.store.QueryWithFilters(ctx, e.opts.Filter)
		if err != nil {
			return nil, fmt.Errorf("failed to load filtered documents: %w", err)
		}
		e.log.Info().Int("documents", len(docs)).Msg("Loaded filtered selection")
		return docs, nil
	}

	total, err := e.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	if total < e.opts.DirectLimit {
		docs, err := e.store.QueryAll(ctx, store.OrderCurrencyFolio)
		if err != nil {
			return nil, fmt.Errorf("failed to load documents: %w", err)
		}
		return docs, nil
	}

	chunks := (total + e.opts.ChunkSize - 1) / e.opts.ChunkSize
	docs := make([]*types.FinancialDocument, 0, total)
	for offset, n := 0, 1; ; offset, n = offset+e.opts.ChunkSize, n+1 {
		chunk, err := e.store.QueryChunk(ctx, e.opts.ChunkSize, offset, store.OrderInsertion)
		if err != nil {
			return nil, fmt.Errorf("failed to load chunk %d: %w", n, err)
		}
		docs = append(docs, chunk...)
		e.log.Info().Int("chunk", n).Int("chunks", chunks).Int("loaded", len(docs)).Msg("Loading documents")
		if len(chunk) < e.opts.ChunkSize {
			break
		}
	}
	return docs, nil
}
