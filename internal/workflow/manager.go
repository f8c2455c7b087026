// Package workflow orchestrates a complete review: session directory
// lifecycle, staging of client files, reviewer supervision, and report
// parsing into a structured result.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ldr123/VetMediatorMCP/internal/command"
	"github.com/ldr123/VetMediatorMCP/internal/config"
	"github.com/ldr123/VetMediatorMCP/internal/report"
	"github.com/ldr123/VetMediatorMCP/internal/reviewer"
)

// DefaultBaseDir is the per-project directory holding review sessions.
const DefaultBaseDir = "VetMediatorSessions"

// DefaultKeepSessions is how many recent session directories survive
// the retention sweep.
const DefaultKeepSessions = 10

// Request describes one review to run. ReviewIndexPath and DraftPaths
// are absolute paths to temporary files created by the MCP client; the
// workflow consumes and deletes them. The planning document paths are
// optional and enable two-stage review when both are present.
type Request struct {
	ReviewIndexPath         string
	DraftPaths              []string
	Initiator               string
	MaxIterations           int
	OriginalRequirementPath string
	TaskPlanningPath        string
}

// ReviewResult is the workflow's outcome. Status reflects how the run
// ended; Parsed reflects what the report says. The two are deliberately
// independent: a run can complete while the report's verdict is
// major_issues, and a timed-out run can still carry a parsable report.
type ReviewResult struct {
	Status         reviewer.Status
	ReportContent  string
	LogTail        string
	ElapsedSeconds int
	Parsed         report.ParsedReport
	SessionDir     string
}

// Manager runs review workflows for one project.
type Manager struct {
	ProjectRoot  string
	BaseDir      string
	KeepSessions int

	Resolver *config.Resolver
	Reviewer *reviewer.Reviewer

	logger *slog.Logger
}

// NewManager returns a Manager rooted at projectRoot. A nil logger
// discards all output.
func NewManager(projectRoot string, resolver *config.Resolver, rev *reviewer.Reviewer, logger *slog.Logger) (*Manager, error) {
	if projectRoot == "" {
		return nil, fmt.Errorf("workflow.NewManager: project root is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		ProjectRoot:  projectRoot,
		BaseDir:      DefaultBaseDir,
		KeepSessions: DefaultKeepSessions,
		Resolver:     resolver,
		Reviewer:     rev,
		logger:       logger,
	}, nil
}

func (m *Manager) baseDir() string {
	base := m.BaseDir
	if base == "" {
		base = DefaultBaseDir
	}
	return filepath.Join(m.ProjectRoot, base)
}

// StartReview runs the full workflow: create a session, stage the
// client files, supervise the reviewer tool, and parse its report.
//
// Configuration validation failures return as errors; every other
// failure, staging included, is reported in-band through the Result,
// whose report content is always populated.
func (m *Manager) StartReview(ctx context.Context, req Request) (res ReviewResult, err error) {
	var sessionDir string

	// The workflow must never crash the caller.
	defer func() {
		if p := recover(); p != nil {
			m.logger.Error("workflow: panic during review", "panic", p)
			res = m.failedResult(sessionDir, fmt.Sprintf("internal error: %v", p),
				"The review failed due to an unexpected internal error.")
			err = nil
		}
	}()

	sessionDir, err = m.createSessionDir()
	if err != nil {
		return m.failedResult("", fmt.Sprintf("cannot create session directory: %v", err),
			"The review could not start because the session directory could not be created. Check permissions on the project root."), nil
	}

	// The reviewer name lands in the report metadata, so resolve it
	// before staging. A missing configuration is fine here; the
	// supervisor handles first-run itself.
	reviewerName := ""
	if profile, _, err := m.Resolver.Current(m.ProjectRoot); err == nil {
		b := command.NewBuilder(command.Profile{Executable: profile.Executable}, m.logger)
		reviewerName = b.DisplayName()
	}

	if _, err := m.stageSession(sessionDir, req, reviewerName); err != nil {
		m.logger.Error("workflow: staging failed", "session", sessionDir, "error", err)
		return m.failedResult(sessionDir, fmt.Sprintf("failed to prepare review session: %v", err),
			"The review files could not be staged into the session directory. Check that the temporary files exist and that task files follow the Task{N}_{Description}-{random}.md naming convention."), nil
	}

	m.logger.Info("workflow: starting review",
		"session", sessionDir, "initiator", req.Initiator, "tasks", len(req.DraftPaths))

	run, err := m.Reviewer.StartReview(ctx, sessionDir, m.ProjectRoot)
	if err != nil {
		return ReviewResult{SessionDir: sessionDir}, fmt.Errorf("workflow.StartReview: %w", err)
	}

	result := ReviewResult{
		Status:         run.Status,
		ReportContent:  run.ReportContent,
		LogTail:        run.LogTail,
		ElapsedSeconds: run.ElapsedSeconds,
		SessionDir:     run.SessionDir,
	}

	// Parse whatever report exists, regardless of how the run ended.
	if strings.TrimSpace(run.ReportContent) != "" {
		result.Parsed = report.Parse(run.ReportContent)
	} else {
		result.Parsed = report.Parse("")
	}

	m.logger.Info("workflow: review finished",
		"session", sessionDir, "status", result.Status, "verdict", result.Parsed.Verdict,
		"elapsed", result.ElapsedSeconds)
	return result, nil
}

// failedResult synthesizes a failed outcome in the standard report
// format. With a session directory the report also lands on disk.
func (m *Manager) failedResult(sessionDir, errorMessage, summary string) ReviewResult {
	reportPath := ""
	if sessionDir != "" {
		reportPath = filepath.Join(sessionDir, "report.md")
	}
	content := reviewer.WriteErrorReport(m.logger, reportPath, "error", errorMessage, summary)
	return ReviewResult{
		Status:        reviewer.StatusFailed,
		ReportContent: content,
		SessionDir:    sessionDir,
		Parsed:        report.Parse(content),
	}
}

// createSessionDir sweeps old sessions, then creates a fresh
// session-<timestamp>-<suffix> directory. The random suffix keeps two
// reviews started within the same second apart.
func (m *Manager) createSessionDir() (string, error) {
	m.sweepSessions()

	name := fmt.Sprintf("session-%s-%s",
		time.Now().Format("20060102-150405"), uuid.NewString()[:8])
	dir := filepath.Join(m.baseDir(), name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// sweepSessions removes session directories beyond the retention count,
// keeping the most recently modified ones. Deletion failures are
// ignored; a stuck directory gets retried on the next sweep.
func (m *Manager) sweepSessions() {
	keep := m.KeepSessions
	if keep <= 0 {
		keep = DefaultKeepSessions
	}

	entries, err := os.ReadDir(m.baseDir())
	if err != nil {
		return
	}

	type session struct {
		path  string
		mtime time.Time
	}
	var sessions []session
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "session-") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		sessions = append(sessions, session{
			path:  filepath.Join(m.baseDir(), e.Name()),
			mtime: info.ModTime(),
		})
	}

	sort.Slice(sessions, func(i, j int) bool { return sessions[i].mtime.After(sessions[j].mtime) })

	for _, old := range sessions[min(keep, len(sessions)):] {
		if err := os.RemoveAll(old.path); err != nil {
			m.logger.Warn("workflow: cannot remove old session", "path", old.path, "error", err)
		} else {
			m.logger.Debug("workflow: removed old session", "path", old.path)
		}
	}
}

// CleanupSession deletes a session directory.
func (m *Manager) CleanupSession(sessionDir string) error {
	if err := os.RemoveAll(sessionDir); err != nil {
		return fmt.Errorf("workflow.CleanupSession: %w", err)
	}
	return nil
}
