// =============================================================================
// CFDI XML to XLSX - File Manager Utility
// =============================================================================
//
// This module provides the file system utilities of the pipeline:
//   - XML discovery (recursive, case-insensitive extension match)
//   - Reading input files by their path relative to the input root
//   - Failure log generation for files that could not be normalized
//
// Discovered paths are relative to the input root and use forward slashes,
// so they are stable across machines and make sensible SourcePath values.
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// XMLExtension is matched case-insensitively.
const XMLExtension = ".xml"

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager reads CFDI files below an input root.
type FileManager struct {
	// InputDir is the root scanned for XML files.
	InputDir string
}

// NewFileManager creates a FileManager rooted at inputDir.
func NewFileManager(inputDir string) *FileManager {
	return &FileManager{InputDir: inputDir}
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// DiscoverXMLFiles walks the input directory recursively.
//
// RETURNS:
//   - Sorted paths of every regular file ending in .xml (any case), relative
//     to InputDir and slash-separated.
//   - An error if the input directory is missing or cannot be walked.
func (fm *FileManager) DiscoverXMLFiles() ([]string, error) {
	info, err := os.Stat(fm.InputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open input directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input path %s is not a directory", fm.InputDir)
	}

	var files []string
	err = filepath.WalkDir(fm.InputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), XMLExtension) {
			return nil
		}

		rel, err := filepath.Rel(fm.InputDir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk input directory: %w", err)
	}

	sort.Strings(files)
	return files, nil
}

// ReadFile reads a file by its discovered relative path.
func (fm *FileManager) ReadFile(rel string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(fm.InputDir, filepath.FromSlash(rel)))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rel, err)
	}
	return data, nil
}

// =============================================================================
// FAILURE LOG GENERATION
// =============================================================================

// FailureEntry is one file that could not be normalized.
type FailureEntry struct {
	FileName string
	Outcome  string
	Message  string
}

// WriteFailureLog writes the failed files to failures_<timestamp>.txt in dir.
//
// PARAMETERS:
//   - entries: the failures; nothing is written when empty.
//   - dir: the directory to write to, created if missing.
//   - now: the timestamp of the run.
//
// RETURNS:
//   - The path of the log file, or "" when there was nothing to write.
//   - An error if writing fails.
func WriteFailureLog(entries []FailureEntry, dir string, now time.Time) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create failure log directory: %w", err)
	}

	logPath := filepath.Join(dir, fmt.Sprintf("failures_%s.txt", now.Format("20060102_150405")))
	file, err := os.Create(logPath)
	if err != nil {
		return "", fmt.Errorf("failed to create failure log: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	fmt.Fprintf(writer, "CFDI XML to XLSX - Failed Files\n"+
		"Generated: %s\n"+
		"Total Failures: %d\n"+
		"================================================================================\n\n",
		now.Format("2006-01-02 15:04:05"),
		len(entries))

	for i, entry := range entries {
		fmt.Fprintf(writer, "Failure #%d\n"+
			"  File:    %s\n"+
			"  Outcome: %s\n"+
			"  Message: %s\n\n",
			i+1, entry.FileName, entry.Outcome, entry.Message)
	}

	writer.WriteString("================================================================================\n" +
		"End of Failure Log\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush failure log: %w", err)
	}

	return logPath, nil
}
