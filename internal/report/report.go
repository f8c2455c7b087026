// Package report parses the markdown artifact produced by a reviewer tool
// into a structured verdict, issue list, and suggestion list.
package report

// Verdict is the coarse outcome extracted from a review report.
type Verdict string

const (
	VerdictApproved    Verdict = "approved"
	VerdictMajorIssues Verdict = "major_issues"
	VerdictMinorIssues Verdict = "minor_issues"
	VerdictIncomplete  Verdict = "incomplete"
	VerdictUnknown     Verdict = "unknown"
)

func (v Verdict) Valid() bool {
	switch v {
	case VerdictApproved, VerdictMajorIssues, VerdictMinorIssues, VerdictIncomplete, VerdictUnknown:
		return true
	}
	return false
}

// Priority is the severity tag attached to an issue line.
type Priority string

const (
	PriorityP0 Priority = "P0"
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityP0, PriorityP1, PriorityP2:
		return true
	}
	return false
}

// Issue is a single problem extracted from the Issue List section.
type Issue struct {
	Priority    Priority `json:"priority"`
	Description string   `json:"description"`
}

// ParsedReport is the structured form of one report artifact. It is derived
// once from the raw text and never mutated afterwards.
type ParsedReport struct {
	Verdict     Verdict  `json:"verdict"`
	Issues      []Issue  `json:"issues"`
	Suggestions []string `json:"suggestions"`
	Raw         string   `json:"raw_content"`
}
