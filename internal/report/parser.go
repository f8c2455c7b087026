package report

import (
	"regexp"
	"strings"
)

// Completion markers written by the reviewer tool at the end of a finished
// report. Their absence means the file was caught mid-stream.
const (
	MarkerComment = "<!-- REVIEW_COMPLETE -->"
	MarkerLegacy  = "---END_OF_REVIEW---"
)

// legacyCompleteMinLen is the minimum trimmed length for the marker-less
// backward-compatibility acceptance path. A long report with a conclusion
// section predates the marker contract; this can misclassify a genuinely
// truncated long report and is kept only for compatibility.
const legacyCompleteMinLen = 1000

// fallbackApprovedMinLen guards the last-resort approved heuristic.
const fallbackApprovedMinLen = 500

var (
	reConclusion  = regexp.MustCompile(`(?i)##\s+(Summary|Conclusion)`)
	reStatus      = regexp.MustCompile(`(?i)##\s+Status\s*\n\s*(\w+)`)
	reAssessment  = regexp.MustCompile(`(?i)##\s+Overall\s+Assessment\s*\n\s*([A-Z_]+)`)
	reQualityHead = regexp.MustCompile(`(?i)###\s+Quality\s+Assessment`)
	reCritical    = regexp.MustCompile(`(?is)\|\s*Critical\s*\||Issues\s+Found.*?\[P0\]`)
	reMajor       = regexp.MustCompile(`(?is)\|\s*Major\s*\||Issues\s+Found.*?\[P1\]`)
	reHasAssess   = regexp.MustCompile(`(?i)##\s+Overall\s+Assessment`)
	reHasConcl    = regexp.MustCompile(`(?i)##\s+Conclusion`)
	reErrorMarker = regexp.MustCompile(`(?i)\[ERROR\]|\bFAILED\b|\bCRITICAL\b`)
	reIssueList   = regexp.MustCompile(`(?is)##\s*Issue\s*List\s*\n(.*?)(\n##|\z)`)
	reIssueLine   = regexp.MustCompile(`-\s*\[(P[0-2])\]\s*(.+)`)
	reSuggestions = regexp.MustCompile(`(?is)##\s*Improvement\s*Suggestions\s*\n(.*?)(\n##|\z)`)
	reSuggestLine = regexp.MustCompile(`-\s*(.+)`)
)

// Parse extracts a structured report from raw markdown. It is a pure
// function: identical input yields identical output, and it never fails.
// Malformed input degrades to VerdictUnknown or VerdictIncomplete.
func Parse(text string) ParsedReport {
	if strings.TrimSpace(text) == "" {
		return ParsedReport{Verdict: VerdictUnknown, Issues: []Issue{}, Suggestions: []string{}, Raw: text}
	}

	if !HasCompletionMarker(text) {
		// Backward compatibility: pre-marker reports are accepted when they
		// carry a conclusion section and enough body to be plausible.
		if !(reConclusion.MatchString(text) && len(strings.TrimSpace(text)) > legacyCompleteMinLen) {
			return ParsedReport{Verdict: VerdictIncomplete, Issues: []Issue{}, Suggestions: []string{}, Raw: text}
		}
	}

	return ParsedReport{
		Verdict:     extractVerdict(text),
		Issues:      extractIssues(text),
		Suggestions: extractSuggestions(text),
		Raw:         text,
	}
}

// HasCompletionMarker reports whether the text carries either completion
// marker.
func HasCompletionMarker(text string) bool {
	return strings.Contains(text, MarkerComment) || strings.Contains(text, MarkerLegacy)
}

// extractVerdict tries the detection strategies in fixed priority order;
// the first strategy that produces a verdict wins.
func extractVerdict(content string) Verdict {
	content = strings.TrimPrefix(content, "\ufeff")

	// 1. Direct form: "## Status" followed by a canonical token.
	if m := reStatus.FindStringSubmatch(content); m != nil {
		switch v := Verdict(strings.ToLower(strings.TrimSpace(m[1]))); v {
		case VerdictApproved, VerdictMajorIssues, VerdictMinorIssues:
			return v
		}
	}

	// 2. Legacy form: "## Overall Assessment" with an upper-case token.
	if m := reAssessment.FindStringSubmatch(content); m != nil {
		switch strings.ToUpper(strings.TrimSpace(m[1])) {
		case "APPROVED":
			return VerdictApproved
		case "MAJOR_ISSUES":
			return VerdictMajorIssues
		case "MINOR_ISSUES":
			return VerdictMinorIssues
		}
	}

	// 3. Tabular form: infer from Quality Assessment severities.
	if reQualityHead.MatchString(content) {
		if reCritical.MatchString(content) {
			return VerdictMajorIssues
		}
		if reMajor.MatchString(content) {
			return VerdictMinorIssues
		}
		return VerdictApproved
	}

	// 4. Last resort: a concluded report with no error markers and enough
	// body defaults to approved.
	hasSection := reHasAssess.MatchString(content) || reHasConcl.MatchString(content)
	if hasSection && !reErrorMarker.MatchString(content) && len(strings.TrimSpace(content)) > fallbackApprovedMinLen {
		return VerdictApproved
	}

	return VerdictUnknown
}

func extractIssues(content string) []Issue {
	issues := []Issue{}

	m := reIssueList.FindStringSubmatch(content)
	if m == nil {
		return issues
	}

	for _, line := range reIssueLine.FindAllStringSubmatch(m[1], -1) {
		desc := strings.TrimSpace(line[2])
		if isPlaceholder(desc) {
			continue
		}
		issues = append(issues, Issue{Priority: Priority(line[1]), Description: desc})
	}
	return issues
}

func extractSuggestions(content string) []string {
	suggestions := []string{}

	m := reSuggestions.FindStringSubmatch(content)
	if m == nil {
		return suggestions
	}

	for _, line := range reSuggestLine.FindAllStringSubmatch(m[1], -1) {
		s := strings.TrimSpace(line[1])
		if isPlaceholder(s) {
			continue
		}
		suggestions = append(suggestions, s)
	}
	return suggestions
}

func isPlaceholder(s string) bool {
	switch strings.ToLower(s) {
	case "", "none", "n/a":
		return true
	}
	return false
}
