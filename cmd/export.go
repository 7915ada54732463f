// =============================================================================
// CFDI XML to XLSX - Export Command
// =============================================================================
//
// This file defines the 'export' command, which writes the XLSX report from
// the database.
//
// COMMAND USAGE:
//   cfdi2xlsx export [flags]
//
// FLAGS:
//   --output    : Report path
//   --from      : First issue date, YYYY-MM-DD (inclusive)
//   --to        : Last issue date, YYYY-MM-DD (inclusive)
//   --type      : TipoDeComprobante (I, E, P, N, T)
//   --receiver  : Receiver RFC
//   --currency  : Currency code
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/logger"
	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/pipeline"
	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/report"
	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/store"
	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/xlsxwriter"
	"github.com/spf13/cobra"
)

// dayLayout is the layout of the --from / --to flags.
const dayLayout = "2006-01-02"

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	outputFile     string
	dateFrom       string
	dateTo         string
	docType        string
	receiverTaxID  string
	currencyFilter string
)

// =============================================================================
// EXPORT COMMAND DEFINITION
// =============================================================================

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the currency-grouped XLSX report from the database",
	Long: `The export command loads the selected documents from the database, links
substitutions (TipoRelacion 04) in both directions and writes the report.

Rows are grouped by currency and ordered by folio. After the data block one
total row is written per configured currency (EUR, MXN, USD, COP by default).

Without filters the whole database is exported; large databases are loaded in
chunks.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		applyExportFlags(cmd)
		filter, err := buildFilter(dateFrom, dateTo, docType, receiverTaxID, currencyFilter, time.Local)
		if err != nil {
			return err
		}

		st, err := openStore(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer st.Close()

		_, err = runExport(cmd.Context(), st, filter)
		return err
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	addExportFlags(exportCmd)
}

func addExportFlags(c *cobra.Command) {
	c.Flags().StringVar(&outputFile, "output", "", "Report path (overrides output_file)")
	c.Flags().StringVar(&dateFrom, "from", "", "First issue date, YYYY-MM-DD")
	c.Flags().StringVar(&dateTo, "to", "", "Last issue date, YYYY-MM-DD")
	c.Flags().StringVar(&docType, "type", "", "Document type code (I, E, P, N, T)")
	c.Flags().StringVar(&receiverTaxID, "receiver", "", "Receiver RFC")
	c.Flags().StringVar(&currencyFilter, "currency", "", "Currency code")
}

func applyExportFlags(cmd *cobra.Command) {
	if cmd.Flags().Changed("output") {
		appConfig.OutputFile = outputFile
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// buildFilter turns the flag values into a store.Filter. The --to day is
// included entirely.
func buildFilter(from, to, typeCode, receiver, currency string, loc *time.Location) (store.Filter, error) {
	var f store.Filter

	if from != "" {
		t, err := time.ParseInLocation(dayLayout, from, loc)
		if err != nil {
			return f, fmt.Errorf("invalid --from %q, expected YYYY-MM-DD: %w", from, err)
		}
		f.DateFrom = &t
	}
	if to != "" {
		t, err := time.ParseInLocation(dayLayout, to, loc)
		if err != nil {
			return f, fmt.Errorf("invalid --to %q, expected YYYY-MM-DD: %w", to, err)
		}
		end := t.AddDate(0, 0, 1).Add(-time.Millisecond)
		f.DateTo = &end
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateTo.Before(*f.DateFrom) {
		return f, fmt.Errorf("--to %s is before --from %s", to, from)
	}

	if typeCode != "" {
		code := strings.ToUpper(strings.TrimSpace(typeCode))
		switch code {
		case "I", "E", "P", "N", "T":
		default:
			return f, fmt.Errorf("invalid --type %q, expected one of I, E, P, N, T", typeCode)
		}
		f.DocumentType = code
	}
	f.ReceiverTaxID = strings.TrimSpace(receiver)
	f.Currency = strings.TrimSpace(currency)

	return f, nil
}

func runExport(ctx context.Context, st *store.Store, filter store.Filter) (*pipeline.ExportResult, error) {
	rc := appConfig.Report
	exporter := pipeline.NewExporter(
		logger.WithComponent("export"),
		st,
		xlsxwriter.New(logger.WithComponent("xlsx"), rc.SheetName),
		pipeline.ExportOptions{
			OutputFile:  appConfig.OutputFile,
			ChunkSize:   appConfig.ExportChunkSize,
			DirectLimit: appConfig.DirectExportLimit,
			Filter:      filter,
			Report: report.Options{
				Currencies:         rc.TotalCurrencies,
				DiscoverCurrencies: rc.DiscoverCurrencies,
			},
		},
	)

	res, err := exporter.Run(ctx)
	if err != nil {
		return res, err
	}

	fmt.Println("Export Summary")
	fmt.Printf("  Documents:      %d\n", res.Documents)
	fmt.Printf("  Substitutions:  %d linked, %d unresolved\n", res.Links, res.Unresolved)
	if res.OutputFile != "" {
		fmt.Printf("  Output:         %s\n", res.OutputFile)
	} else {
		fmt.Println("  Output:         (nothing to export)")
	}
	fmt.Printf("  Elapsed:        %s\n", res.Elapsed.Round(time.Millisecond))

	return res, nil
}
