package workflow

import "strings"

// Review rule templates injected into ReviewIndex.md before it reaches
// the reviewer tool. Clients send a lightweight index containing the
// placeholders below; the full rules live here so every client gets the
// same review contract without carrying it themselves.
//
// Placeholders:
//
//	{{INJECT:REVIEWER_INSTRUCTIONS}}  full workflow and quality rubric
//	{{INJECT:REPORT_FORMAT}}          report.md format specification
//	{{INITIATOR}} / {{REVIEWER}}      metadata inside the report format

const reportFormatTemplate = `### Report Format
Save review results to "report.md" using this exact format:

# Review Report

## Status
approved | major_issues | minor_issues

## Issue List
- [P0] [Critical issue with file:line, must fix]
- [P1] [Major issue with file:line, recommend fix]
- [P2] [Minor issue with file:line, optional fix]

## Improvement Suggestions
- [Improvement suggestion]

## Quality Rubric
Note: Provide brief explanation for any non-Pass scores.

| Dimension | Score | Notes |
|-----------|-------|-------|
| Completeness | Pass/Minor/Major/Critical | |
| Correctness | Pass/Minor/Major/Critical | |
| Best Practices | Pass/Minor/Major/Critical | |
| Performance | Pass/Minor/Major/Critical | |
| Maintainability | Pass/Minor/Major/Critical | |
| Security | Pass/Minor/Major/Critical | |
| Backward Compatibility | Pass/Minor/Major/Critical | |

## Summary
[1-3 paragraphs with file:line citations, risks, and next steps]

## Implementation Guide
Please analyze the suggestions in this review report. You may ignore recommendations that are clearly inapplicable or unnecessary. For other suggestions, carefully evaluate and implement them according to their priority.

---

**Review Metadata**
- **Initiator**: {{INITIATOR}}
- **Reviewer**: {{REVIEWER}}

<!-- REVIEW_COMPLETE -->

**IMPORTANT**: You MUST include the "<!-- REVIEW_COMPLETE -->" marker at the end of report.md to indicate the review is fully completed. This marker is used by the framework to verify report integrity.
`

const reviewerInstructionsTemplate = `
**REVIEW CONTEXT**:
You will receive the following files (some optional):
1. OriginalRequirement.md (if provided) - User's original requirements in their own words
2. TaskPlanning.md (if provided) - AI agent's task decomposition and planning rationale
3. ReviewIndex.md - Task list index and overview
4. Task1_XXX.md, Task2_XXX.md, ... - Specific task implementations with code

**IMPORTANT**: When OriginalRequirement.md and TaskPlanning.md are provided, you MUST first validate the task decomposition before reviewing code implementation.

**FILE ACCESS INSTRUCTIONS (CRITICAL)**:
- Your working directory is the project root (this is where the CLI tool is executed)
- All review files are located in the session directory (relative to project root)
- Use file reading tools with relative paths from project root
- DO NOT use shell commands (ls, dir, cat, type, Get-Content, etc.) to access files
- DO NOT change working directory
- DO NOT use absolute paths or shell path manipulation
- All paths should be relative to the project root and use forward slashes (/)

**OUTPUT REQUIREMENTS**:
- report.md MUST use UTF-8 encoding (without BOM)
- Write report.md into the session directory using file writing tools
- DO NOT use shell commands to write files

**CORE CONSTRAINTS**:
- You are a READ-ONLY reviewer: Do NOT modify project code or resources
- You MAY read any files to understand the codebase
- You MUST create report.md in the session directory before exiting

### Workflow
Execute all steps sequentially without stopping or waiting for user input.

**Step 0: Check for Planning Documents**
- Check if OriginalRequirement.md and TaskPlanning.md exist in the session directory
- If BOTH exist, proceed with planning validation in Step 1
- If NEITHER exist, skip planning validation and go directly to Step 2

**Step 1: Planning Validation (if planning documents exist)**
- Read OriginalRequirement.md and TaskPlanning.md
- Validate task decomposition:
  - Does TaskPlanning fully address all requirements in OriginalRequirement?
  - Are there any misunderstood or overlooked requirements?
  - Is the task breakdown reasonable (not too coarse, not too fine)?
  - Are task dependencies and execution order clear?
  - Is the technical approach appropriate?
  - Are risks properly identified?
- Early exit: if you find critical issues in planning (P0/P1), note them prominently and skip to Step 6 to generate a report with a rejection recommendation

**Step 1 (Alternative): Intake and Reality Check (if no planning documents)**
- Restate the review request in technical terms
- Identify potential risks (breaking changes, performance regression, technical debt)
- Make assumptions and continue

**Step 2: Context Gathering**
- Read ReviewIndex.md; the task list table shows all task files
- Read each task file according to the index
- Obtain sufficient context to evaluate each task
- Start broad then narrow, batch searches, deduplicate paths
- Stop early when signals converge to a clear problem
- Budget: 5-8 tool calls per task

**Step 3: Planning**
- Generate a multi-step review plan (at least 2 steps)
- Make reasonable assumptions

**Step 4: Execution**
- Execute the review per plan
- Tag actions with plan step numbers
- Continue with available information on failures

**Step 5: Verification**
- Apply the quality rubric (below) to assess the draft
- Record an assessment for each dimension

**Step 6: Handoff (CRITICAL)**
- Create report.md in the session directory using the specified format
- When referencing code issues, use format: TaskN_FileName.md:line
- Include file:line citations, risks, and next steps
- Do NOT repeat the full task requirements in the report; reference task names only
- The review is NOT complete until report.md exists with the completion marker

### Quality Rubric
Assess the draft on 7 dimensions (Pass/Minor/Major/Critical):

**1. Completeness**
- Pass: All requirements covered
- Minor: Missing optional features
- Major: Missing critical modules (e.g., error handling)
- Critical: Core problem unsolved

**2. Correctness**
- Pass: No obvious bugs
- Minor: Incomplete edge cases
- Major: Core logic errors
- Critical: System crashes or data corruption

**3. Best Practices**
- Pass: Follows standards
- Minor: Inconsistent naming/comments
- Major: Violates architecture patterns
- Critical: Security violations (e.g., hardcoded keys)

**4. Performance**
- Pass: No bottlenecks
- Minor: Optimizable (e.g., quadratic scans over large inputs)
- Major: Severe issues (e.g., blocking)
- Critical: Unusable performance

**5. Maintainability**
- Pass: Clear structure, shallow nesting
- Minor: Long functions
- Major: High coupling, deep nesting
- Critical: Spaghetti code

**6. Security**
- Pass: No vulnerabilities
- Minor: Missing input validation
- Major: OWASP Top 10 risks
- Critical: Data leak/compromise risk

**7. Backward Compatibility**
- Pass: No breaking changes
- Minor: Deprecations with transition
- Major: Breaks internal APIs
- Critical: Breaks userspace/core APIs

Priority mapping: Critical is P0, Major is P1, Minor is P2, Pass is no issue.
`

// expandPlaceholders injects the full review rules and metadata into
// client-supplied index text. Empty initiator or reviewer names render
// as "unspecified".
func expandPlaceholders(text, initiator, reviewerName string) string {
	if initiator == "" {
		initiator = "unspecified"
	}
	if reviewerName == "" {
		reviewerName = "unspecified"
	}

	format := strings.ReplaceAll(reportFormatTemplate, "{{INITIATOR}}", initiator)
	format = strings.ReplaceAll(format, "{{REVIEWER}}", reviewerName)

	text = strings.ReplaceAll(text, "{{INJECT:REVIEWER_INSTRUCTIONS}}", reviewerInstructionsTemplate)
	return strings.ReplaceAll(text, "{{INJECT:REPORT_FORMAT}}", format)
}
