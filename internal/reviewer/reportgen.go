package reviewer

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ldr123/VetMediatorMCP/internal/config"
	"github.com/ldr123/VetMediatorMCP/internal/textenc"
)

// WriteErrorReport synthesizes a report in the standard format so the
// parser and the callers see a uniform document regardless of how the
// run ended. It returns the content even when the write fails; an empty
// reportPath skips the write.
func WriteErrorReport(logger *slog.Logger, reportPath, status, errorMessage, summary string) string {
	content := fmt.Sprintf(`# Review Report

## Status
%s

## Error Message
%s

## Summary
%s
`, status, errorMessage, summary)

	if reportPath != "" {
		if err := os.WriteFile(reportPath, []byte(content), 0o644); err != nil {
			logger.Error("reviewer: cannot write error report", "path", reportPath, "error", err)
		}
	}
	return content
}

func (r *Reviewer) writeErrorReport(reportPath, status, errorMessage, summary string) string {
	return WriteErrorReport(r.logger, reportPath, status, errorMessage, summary)
}

// notFoundReport is written when the tool remains unavailable after the
// prompt loop gives up.
func (r *Reviewer) notFoundReport(reportPath, displayName, detail, installCmd string) string {
	summary := fmt.Sprintf(`%[1]s CLI is not available. The review was cancelled by the user or failed after multiple retry attempts.

Please ensure %[1]s is installed and properly configured:
`, displayName)

	if installCmd != "" {
		summary += fmt.Sprintf(`
Installation command:
  %s
`, installCmd)
	}

	summary += fmt.Sprintf(`
Configuration check:
  - Verify %s is installed
  - Check PATH environment variable
  - Verify %s configuration
`, displayName, config.ProjectFileName)

	return r.writeErrorReport(reportPath, "error",
		fmt.Sprintf("%s CLI tool not found: %s", displayName, detail), summary)
}

// configMissingReport is written on first run, after a default project
// configuration file has been created for the user to edit.
func (r *Reviewer) configMissingReport(reportPath, createdConfigPath string) string {
	summary := fmt.Sprintf(`No configuration file was found (%[2]s). A default configuration has been created at:

%[1]s

Please edit this file to configure your CLI tool (iflow, codex, or claude) and restart the review.

Configuration locations (in priority order):
1. Project: %[1]s
2. Global: %[3]s

Required fields in each tool profile:
- executable: CLI tool executable name
- args: Command line arguments
- log_file_name: Log file name (relative path)
- extended_prompt: (Optional) Additional prompt for the tool
`, createdConfigPath, config.ProjectFileName, r.Resolver.UserConfigPath())

	return r.writeErrorReport(reportPath, "error", "Configuration file missing", summary)
}

// readReport reads report.md with lenient encoding handling; a report
// that defeats every decoder is reported in-band rather than as an
// error, so the result always carries text.
func readReport(reportPath string) string {
	if _, err := os.Stat(reportPath); err != nil {
		return ""
	}
	content, err := textenc.ReadFile(reportPath, true)
	if err != nil {
		return fmt.Sprintf("[ENCODING ERROR] Cannot read %s: %v", filepath.Base(reportPath), err)
	}
	return content
}
