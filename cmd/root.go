// =============================================================================
// CFDI XML to XLSX - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. All other commands
// are attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (cfdi2xlsx)
//   ├── processCmd (cfdi2xlsx process)
//   ├── exportCmd  (cfdi2xlsx export)
//   ├── runCmd     (cfdi2xlsx run)
//   ├── statsCmd   (cfdi2xlsx stats)
//   ├── clearCmd   (cfdi2xlsx clear)
//   └── versionCmd (cfdi2xlsx version)
//
// CONFIGURATION:
//   PersistentPreRunE loads the configuration once (file, environment) and
//   sets up logging before any subcommand runs. Subcommand flags are applied
//   on top of the loaded configuration.
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/config"
	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/logger"
	"github.com/spf13/cobra"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose forces debug logging.
var verbose bool

// appConfig is the configuration loaded by PersistentPreRunE.
var appConfig *config.MainConfig

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "cfdi2xlsx",
	Short: "CFDI XML to XLSX - Normalize SAT electronic invoices into a currency-grouped report",
	Long: `cfdi2xlsx reads a directory tree of Mexican CFDI XML files (versions 3.3 and
4.0), normalizes every document into a canonical record, stores the records in
a local SQLite database and exports them as an XLSX report grouped by
currency, with per-currency totals and substitution links (TipoRelacion 04).

Example Usage:
  cfdi2xlsx run                              # Process the input directory and export
  cfdi2xlsx process --input ./xml --reset    # Rebuild the database from ./xml
  cfdi2xlsx export --currency USD            # Export only USD documents
  cfdi2xlsx stats                            # Database statistics`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadMainConfig(cfgFile)
		if err != nil {
			return err
		}
		if verbose {
			cfg.LogLevel = "debug"
		}
		if err := logger.Setup(cfg.LoggerConfig()); err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		appConfig = cfg
		return nil
	},

	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Close()
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the CLI. It is called by main.main(). SIGINT and SIGTERM
// cancel the running command's context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file; a missing file means defaults",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}
