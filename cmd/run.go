// =============================================================================
// CFDI XML to XLSX - Run Command
// =============================================================================
//
// This file defines the 'run' command: 'process' followed by 'export' over
// the same database connection.
//
// COMMAND USAGE:
//   cfdi2xlsx run [flags]
//
// Accepts the flags of both 'process' and 'export'.
//
// =============================================================================

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process the input directory and export the report",
	Long: `The run command ingests the input directory into the database and then
writes the XLSX report. This is the usual end-to-end invocation.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		applyProcessFlags(cmd)
		applyExportFlags(cmd)
		filter, err := buildFilter(dateFrom, dateTo, docType, receiverTaxID, currencyFilter, time.Local)
		if err != nil {
			return err
		}

		st, err := openStore(cmd.Context(), appConfig.ResetDatabase)
		if err != nil {
			return err
		}
		defer st.Close()

		if _, err := runProcess(cmd.Context(), st); err != nil {
			return err
		}
		fmt.Println()
		_, err = runExport(cmd.Context(), st, filter)
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	addProcessFlags(runCmd)
	addExportFlags(runCmd)
}
