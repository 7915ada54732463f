// =============================================================================
// CFDI XML to XLSX - Process Command
// =============================================================================
//
// This file defines the 'process' command, which ingests the input directory
// into the database.
//
// COMMAND USAGE:
//   cfdi2xlsx process [flags]
//
// FLAGS:
//   --input       : Directory scanned recursively for .xml files
//   --reset       : Delete the database before processing
//   --workers     : Files normalized concurrently
//   --block-size  : Files persisted per transaction
//
// PROCESSING PIPELINE:
//   1. Open (or reset) the database
//   2. Discover .xml files under the input directory
//   3. For each block: normalize concurrently, insert in one transaction
//   4. Write a failure log next to the database when files failed
//   5. Print the run summary and database statistics
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/converter"
	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/logger"
	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/pipeline"
	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/store"
	"github.com/German-GM/cfdi-xmls-to-xlsx/pkg/utils"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	inputDir  string
	resetDB   bool
	workers   int
	blockSize int
)

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Normalize CFDI XML files into the database",
	Long: `The process command scans the input directory recursively for .xml files,
normalizes every CFDI and stores it in the SQLite database.

Files are processed in blocks; each block is normalized concurrently and
persisted in a single transaction. Documents already in the database (same
UUID) are skipped, so the command can be re-run over a growing directory.

Files that cannot be normalized are counted, listed in a failure log next to
the database and skipped. A block that cannot be persisted stops the run.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		applyProcessFlags(cmd)
		st, err := openStore(cmd.Context(), appConfig.ResetDatabase)
		if err != nil {
			return err
		}
		defer st.Close()

		if _, err := runProcess(cmd.Context(), st); err != nil {
			return err
		}
		return printStats(cmd.Context(), st)
	},
}

func init() {
	rootCmd.AddCommand(processCmd)
	addProcessFlags(processCmd)
}

// addProcessFlags registers the ingestion flags on c ('process' and 'run').
func addProcessFlags(c *cobra.Command) {
	c.Flags().StringVar(&inputDir, "input", "", "Input directory (overrides input_dir)")
	c.Flags().BoolVar(&resetDB, "reset", false, "Delete the database before processing")
	c.Flags().IntVar(&workers, "workers", 0, "Files normalized concurrently (overrides workers)")
	c.Flags().IntVar(&blockSize, "block-size", 0, "Files per block (overrides block_size)")
}

func applyProcessFlags(cmd *cobra.Command) {
	if cmd.Flags().Changed("input") {
		appConfig.InputDir = inputDir
	}
	if cmd.Flags().Changed("reset") {
		appConfig.ResetDatabase = resetDB
	}
	if cmd.Flags().Changed("workers") && workers > 0 {
		appConfig.Workers = workers
	}
	if cmd.Flags().Changed("block-size") && blockSize > 0 {
		appConfig.BlockSize = blockSize
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func openStore(ctx context.Context, reset bool) (*store.Store, error) {
	return store.Open(ctx, appConfig.DatabasePath, reset, logger.WithComponent("store"))
}

// runProcess ingests the input directory and prints the run summary.
func runProcess(ctx context.Context, st *store.Store) (*pipeline.IngestResult, error) {
	ingester := pipeline.NewIngester(
		logger.WithComponent("ingest"),
		converter.New(logger.WithComponent("converter")),
		utils.NewFileManager(appConfig.InputDir),
		st,
		pipeline.IngestOptions{BlockSize: appConfig.BlockSize, Workers: appConfig.Workers},
	)

	res, err := ingester.Run(ctx)
	if err != nil {
		return res, err
	}

	c := res.Counters
	fmt.Println("Processing Summary")
	fmt.Printf("  Files:          %d\n", res.Files)
	fmt.Printf("  Comprobantes:   %d (%d new, %d already stored)\n", c.Documents, c.Inserted, c.Duplicates)
	fmt.Printf("  Retenciones:    %d\n", c.Retentions)
	fmt.Printf("  Unrecognized:   %d\n", c.Unrecognized)
	fmt.Printf("  Failed:         %d\n", c.Failed)
	fmt.Printf("  Elapsed:        %s\n", res.Elapsed.Round(time.Millisecond))

	logDir := filepath.Dir(appConfig.DatabasePath)
	path, err := utils.WriteFailureLog(res.Failures, logDir, time.Now())
	if err != nil {
		return res, err
	}
	if path != "" {
		fmt.Printf("  Failure log:    %s\n", path)
	}

	return res, nil
}
