// =============================================================================
// CFDI XML to XLSX - Main Entry Point
// =============================================================================
//
// This is the main entry point for the cfdi2xlsx CLI application. It loads an
// optional .env file and delegates command execution to the cmd package.
//
// USAGE:
//   cfdi2xlsx process   - Normalize the input directory into the database
//   cfdi2xlsx export    - Write the XLSX report from the database
//   cfdi2xlsx run       - process followed by export
//   cfdi2xlsx stats     - Print database statistics
//   cfdi2xlsx version   - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Normalization, storage, resolution and report logic
//   - pkg/           : Shared file utilities
//
// =============================================================================

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/German-GM/cfdi-xmls-to-xlsx/cmd"
	"github.com/joho/godotenv"
)

func main() {
	// CFDI_* variables in .env feed the configuration overrides.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}
	cmd.Execute()
}
