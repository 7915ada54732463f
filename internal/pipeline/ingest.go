// =============================================================================
// CFDI XML to XLSX - Ingestion Pipeline
// =============================================================================
//
// The ingester discovers XML files under the input root, normalizes them in
// parallel and persists the documents block by block.
//
// PIPELINE (per block of BlockSize files):
//   1. Read + Convert : bounded worker pool, one converter.Result per file
//   2. Classify       : documents, retentions, unrecognized, failed
//   3. Persist        : store.InsertBatch, all-or-nothing per block
//   4. Progress       : proceso_log row updated, progress logged
//
// ERROR POLICY:
//   - A file that cannot be read or normalized is counted and logged; the
//     run continues.
//   - A block that cannot be persisted stops the run; proceso_log is marked
//     FALLIDO and the error is returned.
//
// =============================================================================

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/converter"
	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/store"
	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/types"
	"github.com/German-GM/cfdi-xmls-to-xlsx/pkg/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// IngestStore is the part of the store the ingester writes to.
type IngestStore interface {
	InsertBatch(ctx context.Context, docs []*types.FinancialDocument) (int, error)
	StartRun(ctx context.Context, runID string, totalFiles int) (int64, error)
	UpdateRun(ctx context.Context, id int64, block, processed, failed int) error
	FinishRun(ctx context.Context, id int64, status store.RunStatus) error
}

// IngestOptions sizes the ingestion.
type IngestOptions struct {
	BlockSize int
	Workers   int
}

// Counters classifies the files of a run.
type Counters struct {
	Documents    int
	Retentions   int
	Unrecognized int
	Failed       int

	// Inserted counts new rows; Duplicates counts documents already stored.
	Inserted   int
	Duplicates int
}

func (c *Counters) add(o Counters) {
	c.Documents += o.Documents
	c.Retentions += o.Retentions
	c.Unrecognized += o.Unrecognized
	c.Failed += o.Failed
	c.Inserted += o.Inserted
	c.Duplicates += o.Duplicates
}

// IngestResult summarizes a run.
type IngestResult struct {
	RunID    string
	Files    int
	Blocks   int
	Counters Counters
	Failures []utils.FailureEntry
	Elapsed  time.Duration
}

// Ingester runs the ingestion pipeline.
type Ingester struct {
	log   zerolog.Logger
	conv  *converter.Converter
	files *utils.FileManager
	store IngestStore
	opts  IngestOptions
}

// NewIngester wires an Ingester. Non-positive sizes fall back to 2000 files
// per block and 4 workers.
func NewIngester(log zerolog.Logger, conv *converter.Converter, files *utils.FileManager, st IngestStore, opts IngestOptions) *Ingester {
	if opts.BlockSize <= 0 {
		opts.BlockSize = 2000
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Ingester{log: log, conv: conv, files: files, store: st, opts: opts}
}

// Run ingests every XML file under the input root.
//
// RETURNS:
//   - The run summary, also when the run fails part way.
//   - An error when discovery, the process log or a block insert fails, or
//     ctx is cancelled.
func (in *Ingester) Run(ctx context.Context) (*IngestResult, error) {
	start := time.Now()
	res := &IngestResult{RunID: uuid.NewString()}

	paths, err := in.files.DiscoverXMLFiles()
	if err != nil {
		return res, err
	}
	res.Files = len(paths)
	totalBlocks := (len(paths) + in.opts.BlockSize - 1) / in.opts.BlockSize

	in.log.Info().
		Str("run_id", res.RunID).
		Int("files", len(paths)).
		Int("blocks", totalBlocks).
		Int("workers", in.opts.Workers).
		Msg("Starting ingestion")

	runRow, err := in.store.StartRun(ctx, res.RunID, len(paths))
	if err != nil {
		return res, err
	}

	fail := func(cause error) (*IngestResult, error) {
		if err := in.store.FinishRun(context.WithoutCancel(ctx), runRow, store.RunFailed); err != nil {
			in.log.Error().Err(err).Msg("failed to mark run as failed")
		}
		res.Elapsed = time.Since(start)
		return res, cause
	}

	processed := 0
	for b := 0; b < totalBlocks; b++ {
		lo := b * in.opts.BlockSize
		hi := min(lo+in.opts.BlockSize, len(paths))
		blockStart := time.Now()

		results, err := in.convertBlock(ctx, paths[lo:hi])
		if err != nil {
			return fail(err)
		}

		counts, docs, failures := in.classify(results)

		inserted, err := in.store.InsertBatch(ctx, docs)
		if err != nil {
			return fail(fmt.Errorf("failed to persist block %d/%d: %w", b+1, totalBlocks, err))
		}
		counts.Inserted = inserted
		counts.Duplicates = len(docs) - inserted

		res.Counters.add(counts)
		res.Failures = append(res.Failures, failures...)
		res.Blocks++
		processed += hi - lo

		if err := in.store.UpdateRun(ctx, runRow, b+1, processed, res.Counters.Failed); err != nil {
			return fail(err)
		}

		in.log.Info().
			Int("block", b+1).
			Int("blocks", totalBlocks).
			Int("documents", counts.Documents).
			Int("inserted", counts.Inserted).
			Int("retentions", counts.Retentions).
			Int("unrecognized", counts.Unrecognized).
			Int("failed", counts.Failed).
			Dur("elapsed", time.Since(blockStart)).
			Msgf("Block %d/%d done", b+1, totalBlocks)
	}

	if err := in.store.FinishRun(ctx, runRow, store.RunCompleted); err != nil {
		return res, err
	}

	res.Elapsed = time.Since(start)
	in.log.Info().
		Str("run_id", res.RunID).
		Int("files", res.Files).
		Int("documents", res.Counters.Documents).
		Int("inserted", res.Counters.Inserted).
		Int("duplicates", res.Counters.Duplicates).
		Int("retentions", res.Counters.Retentions).
		Int("unrecognized", res.Counters.Unrecognized).
		Int("failed", res.Counters.Failed).
		Dur("elapsed", res.Elapsed).
		Msg("Ingestion finished")

	return res, nil
}

// convertBlock normalizes paths with the worker pool. Results keep the order
// of paths.
func (in *Ingester) convertBlock(ctx context.Context, paths []string) ([]converter.Result, error) {
	results := make([]converter.Result, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.opts.Workers)

	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := in.files.ReadFile(path)
			if err != nil {
				results[i] = converter.Result{Path: path, Outcome: converter.OutcomeUnparseable, Err: err}
				return nil
			}
			results[i] = in.conv.Convert(data, path)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ingestion cancelled: %w", err)
	}
	return results, nil
}

func (in *Ingester) classify(results []converter.Result) (Counters, []*types.FinancialDocument, []utils.FailureEntry) {
	var (
		c        Counters
		docs     []*types.FinancialDocument
		failures []utils.FailureEntry
	)

	for _, r := range results {
		switch r.Outcome {
		case converter.OutcomeDocument:
			c.Documents++
			docs = append(docs, r.Document)
		case converter.OutcomeRetention:
			c.Retentions++
		case converter.OutcomeUnrecognized:
			c.Unrecognized++
			in.log.Debug().Str("file", r.Path).Err(r.Err).Msg("unrecognized document")
		default:
			c.Failed++
			msg := ""
			if r.Err != nil {
				msg = r.Err.Error()
			}
			failures = append(failures, utils.FailureEntry{FileName: r.Path, Outcome: r.Outcome.String(), Message: msg})
			in.log.Warn().Str("file", r.Path).Err(r.Err).Msg("failed to normalize")
		}
	}
	return c, docs, failures
}
