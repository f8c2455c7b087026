package workflow

import (
	"fmt"
	"strings"

	"github.com/ldr123/VetMediatorMCP/internal/report"
	"github.com/ldr123/VetMediatorMCP/internal/reviewer"
)

var verdictLabels = map[report.Verdict]string{
	report.VerdictApproved:    "[APPROVED]",
	report.VerdictMajorIssues: "[MAJOR_ISSUES]",
	report.VerdictMinorIssues: "[MINOR_ISSUES]",
	report.VerdictIncomplete:  "[INCOMPLETE]",
}

var statusLabels = map[reviewer.Status]string{
	reviewer.StatusCompleted:  "[SUCCESS]",
	reviewer.StatusTimeout:    "[TIMEOUT]",
	reviewer.StatusFailed:     "[FAILED]",
	reviewer.StatusIncomplete: "[INCOMPLETE]",
}

// Text renders the result for display to the MCP client: a status
// headline, run metadata, the full report, and the log tail. When a
// report was parsed its verdict leads; otherwise the run status does.
func (r ReviewResult) Text() string {
	var headline, label string
	if strings.TrimSpace(r.ReportContent) != "" && r.Parsed.Verdict != report.VerdictUnknown {
		headline = string(r.Parsed.Verdict)
		label = verdictLabels[r.Parsed.Verdict]
	} else {
		headline = string(r.Status)
		label = statusLabels[r.Status]
	}
	if label == "" {
		label = "[UNKNOWN]"
	}

	sessionDir := r.SessionDir
	if sessionDir == "" {
		sessionDir = "N/A"
	}

	return fmt.Sprintf(`%s Review %s

**Execution Time**: %d seconds
**Session Directory**: %s

**Review Report**:
%s

**Review Log (last 10 lines)**:
%s
`, label, headline, r.ElapsedSeconds, sessionDir, r.ReportContent, r.LogTail)
}
