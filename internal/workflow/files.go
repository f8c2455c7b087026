package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ldr123/VetMediatorMCP/internal/textenc"
)

var taskFileNamePattern = regexp.MustCompile(`^Task\d+_[A-Za-z0-9_]+\.md$`)

// stagedFiles is the outcome of copying client temp files into a
// session directory.
type stagedFiles struct {
	ReviewIndex string
	TaskFiles   []string
}

// stageSession copies the client's temporary files into the session
// directory, re-encoding everything as UTF-8 without BOM and expanding
// the rule placeholders in the index. The temporary files are deleted
// afterwards whether or not staging succeeds.
func (m *Manager) stageSession(sessionDir string, req Request, reviewerName string) (stagedFiles, error) {
	tempFiles := []string{req.ReviewIndexPath}
	tempFiles = append(tempFiles, req.DraftPaths...)
	if req.OriginalRequirementPath != "" {
		tempFiles = append(tempFiles, req.OriginalRequirementPath)
	}
	if req.TaskPlanningPath != "" {
		tempFiles = append(tempFiles, req.TaskPlanningPath)
	}
	defer func() {
		for _, f := range tempFiles {
			if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
				m.logger.Warn("workflow: cannot remove temp file", "path", f, "error", err)
			}
		}
	}()

	indexText, err := textenc.ReadFile(req.ReviewIndexPath, true)
	if err != nil {
		return stagedFiles{}, fmt.Errorf("workflow.stageSession: read review index: %w", err)
	}
	indexText = expandPlaceholders(indexText, req.Initiator, reviewerName)

	indexFile := filepath.Join(sessionDir, "ReviewIndex.md")
	if err := os.WriteFile(indexFile, []byte(indexText), 0o644); err != nil {
		return stagedFiles{}, fmt.Errorf("workflow.stageSession: %w", err)
	}

	// Planning documents enable two-stage review only as a pair; a lone
	// document falls back to single-stage.
	if req.OriginalRequirementPath != "" && req.TaskPlanningPath != "" {
		if err := m.stagePlanningDoc(sessionDir, req.OriginalRequirementPath, "OriginalRequirement.md"); err != nil {
			return stagedFiles{}, err
		}
		if err := m.stagePlanningDoc(sessionDir, req.TaskPlanningPath, "TaskPlanning.md"); err != nil {
			return stagedFiles{}, err
		}
	} else if req.OriginalRequirementPath != "" || req.TaskPlanningPath != "" {
		m.logger.Warn("workflow: only one planning document provided, skipping two-stage review")
	}

	staged := stagedFiles{ReviewIndex: indexFile}
	for _, draft := range req.DraftPaths {
		target, err := targetTaskFileName(filepath.Base(draft))
		if err != nil {
			return stagedFiles{}, fmt.Errorf("workflow.stageSession: %w", err)
		}

		taskText, err := textenc.ReadFile(draft, true)
		if err != nil {
			return stagedFiles{}, fmt.Errorf("workflow.stageSession: read task file: %w", err)
		}

		taskFile := filepath.Join(sessionDir, target)
		if err := os.WriteFile(taskFile, []byte(taskText), 0o644); err != nil {
			return stagedFiles{}, fmt.Errorf("workflow.stageSession: %w", err)
		}
		staged.TaskFiles = append(staged.TaskFiles, taskFile)
	}

	return staged, nil
}

func (m *Manager) stagePlanningDoc(sessionDir, tempPath, targetName string) error {
	text, err := textenc.ReadFile(tempPath, true)
	if err != nil {
		return fmt.Errorf("workflow.stageSession: read %s: %w", targetName, err)
	}
	if err := os.WriteFile(filepath.Join(sessionDir, targetName), []byte(text), 0o644); err != nil {
		return fmt.Errorf("workflow.stageSession: %w", err)
	}
	return nil
}

// targetTaskFileName strips the client's collision-avoidance suffix
// ("Task1_Login-a1b2c3.md" becomes "Task1_Login.md") and validates the
// result against the task file naming contract.
func targetTaskFileName(tempName string) (string, error) {
	if !strings.HasSuffix(tempName, ".md") {
		return "", fmt.Errorf("invalid file extension: %s", tempName)
	}

	base := strings.TrimSuffix(tempName, ".md")
	i := strings.LastIndex(base, "-")
	if i < 0 {
		return "", fmt.Errorf("invalid temp filename format: %s, expected {TargetName}-{Random}.md", tempName)
	}
	target := base[:i] + ".md"

	if err := validateTaskFileName(target); err != nil {
		return "", err
	}
	return target, nil
}

// validateTaskFileName enforces the Task{N}_{Description}.md contract.
// The description allows letters, digits, and underscores only, which
// also rules out separators and traversal sequences.
func validateTaskFileName(name string) error {
	if len(name) > 255 {
		return fmt.Errorf("filename too long: %s", name)
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid characters in filename: %s", name)
	}
	if !taskFileNamePattern.MatchString(name) {
		return fmt.Errorf("invalid task filename: %s, expected Task{N}_{Description}.md (letters, numbers, and underscores only)", name)
	}
	return nil
}
