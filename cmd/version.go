// =============================================================================
// CFDI XML to XLSX - Version Command
// =============================================================================
//
// This file defines the 'version' command, which displays the application
// version and build information.
//
// COMMAND USAGE:
//   cfdi2xlsx version
//
// OUTPUT:
//   CFDI XML to XLSX
//   Version:    v1.2.0
//   Commit:     3f2c9e1a7b4d (modified)
//   Build Date: 2026-10-01T12:00:00Z
//   Go Version: go1.24.11
//
// Values set with ldflags win; otherwise they come from the module and VCS
// metadata the Go toolchain embeds in the binary.
//
// =============================================================================

package cmd

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// =============================================================================
// VERSION INFORMATION
// =============================================================================
// Example build command:
//   go build -ldflags "-X 'github.com/German-GM/cfdi-xmls-to-xlsx/cmd.Version=v1.2.0'"

// Version is the application version.
var Version = ""

// BuildDate is the date the application was built.
var BuildDate = ""

// buildInfo is the resolved version information.
type buildInfo struct {
	Version   string
	Commit    string
	Modified  bool
	BuildDate string
	GoVersion string
}

// resolveBuildInfo merges the ldflags values with the embedded build info.
// info may be nil when the binary carries none.
func resolveBuildInfo(version, buildDate string, info *debug.BuildInfo) buildInfo {
	bi := buildInfo{Version: version, BuildDate: buildDate, GoVersion: runtime.Version()}

	if info != nil {
		if bi.Version == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			bi.Version = info.Main.Version
		}
		if info.GoVersion != "" {
			bi.GoVersion = info.GoVersion
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				bi.Commit = s.Value
			case "vcs.time":
				if bi.BuildDate == "" {
					bi.BuildDate = s.Value
				}
			case "vcs.modified":
				bi.Modified = s.Value == "true"
			}
		}
	}

	if bi.Version == "" {
		bi.Version = "dev"
	}
	if bi.BuildDate == "" {
		bi.BuildDate = "unknown"
	}
	if len(bi.Commit) > 12 {
		bi.Commit = bi.Commit[:12]
	}
	return bi
}

// =============================================================================
// VERSION COMMAND DEFINITION
// =============================================================================

// versionCmd represents the 'version' command.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the application version",
	Long:  `Display the application version, commit, build date, and Go runtime version.`,
	Run: func(cmd *cobra.Command, args []string) {
		info, _ := debug.ReadBuildInfo()
		bi := resolveBuildInfo(Version, BuildDate, info)

		fmt.Println("CFDI XML to XLSX")
		fmt.Printf("Version:    %s\n", bi.Version)
		if bi.Commit != "" {
			commit := bi.Commit
			if bi.Modified {
				commit += " (modified)"
			}
			fmt.Printf("Commit:     %s\n", commit)
		}
		fmt.Printf("Build Date: %s\n", bi.BuildDate)
		fmt.Printf("Go Version: %s\n", bi.GoVersion)
	},
}

// =============================================================================
// INITIALIZATION
// =============================================================================

// init registers the version command with the root command.
func init() {
	rootCmd.AddCommand(versionCmd)
}
