// =============================================================================
// CFDI XML to XLSX - Stats Command
// =============================================================================
//
// This file defines the 'stats' command, which prints database statistics
// and the last ingestion run, and the 'clear' command, which empties the
// database in place.
//
// COMMAND USAGE:
//   cfdi2xlsx stats
//   cfdi2xlsx clear
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"

	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/store"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print database statistics",
	Long:  `Print document counts, issue date range, MXN/USD totals and the last ingestion run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer st.Close()
		return printStats(cmd.Context(), st)
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every document and run record from the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("Cleared %s\n", st.Path())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(clearCmd)
}

const statsDateLayout = "2006-01-02"

func printStats(ctx context.Context, st *store.Store) error {
	s, err := st.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Println("Database Statistics")
	fmt.Printf("  Database:       %s\n", st.Path())
	fmt.Printf("  Comprobantes:   %d\n", s.Total)
	fmt.Printf("  Issuers:        %d\n", s.Issuers)
	fmt.Printf("  Receivers:      %d\n", s.Receivers)
	if s.FirstIssued != nil && s.LastIssued != nil {
		fmt.Printf("  Issued:         %s .. %s\n",
			s.FirstIssued.Format(statsDateLayout), s.LastIssued.Format(statsDateLayout))
	}
	fmt.Printf("  Total MXN:      %.2f\n", s.TotalMXN)
	fmt.Printf("  Total USD:      %.2f\n", s.TotalUSD)
	fmt.Printf("  By type:        I=%d E=%d P=%d N=%d\n", s.Income, s.Expense, s.Payments, s.Payroll)

	run, err := st.LastRun(ctx)
	if err != nil {
		return err
	}
	if run == nil {
		return nil
	}
	fmt.Println("Last Run")
	fmt.Printf("  Run ID:         %s\n", run.RunID)
	fmt.Printf("  Status:         %s\n", run.Status)
	fmt.Printf("  Files:          %d processed, %d failed of %d\n", run.Processed, run.Failed, run.TotalFiles)
	fmt.Printf("  Started:        %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
	if run.FinishedAt != nil {
		fmt.Printf("  Finished:       %s\n", run.FinishedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
