package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ldr123/VetMediatorMCP/internal/config"
	"github.com/ldr123/VetMediatorMCP/internal/reviewer"
	"github.com/ldr123/VetMediatorMCP/internal/workflow"
)

type reviewFlags struct {
	projectRoot             string
	initiator               string
	originalRequirementPath string
	taskPlanningPath        string
	logLevel                string
}

func newReviewCmd() *cobra.Command {
	f := &reviewFlags{}

	cmd := &cobra.Command{
		Use:   "review <review-index.md> [task-file.md...]",
		Short: "Run a review workflow directly from the terminal",
		Long: `Run a review workflow without an MCP client: stage the given index and
task files into a session directory, run the configured reviewer tool,
and print the parsed result.

Task files must be named Task{N}_{Description}-{random}.md; the random
suffix is stripped during staging. Note that the given files are
consumed: they are deleted after being copied into the session.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReview(cmd.Context(), args[0], args[1:], f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.projectRoot, "project-root", "", "Project root directory (default: current directory)")
	flags.StringVar(&f.initiator, "initiator", "terminal", "Name of the review initiator")
	flags.StringVar(&f.originalRequirementPath, "original-requirement", "", "OriginalRequirement.md temp path (enables two-stage review with --task-planning)")
	flags.StringVar(&f.taskPlanningPath, "task-planning", "", "TaskPlanning.md temp path (enables two-stage review with --original-requirement)")
	flags.StringVar(&f.logLevel, "log-level", "info", "Log level: debug, info, warn, or error")

	return cmd
}

func runReview(ctx context.Context, indexPath string, draftPaths []string, f *reviewFlags) error {
	logger := newLogger(os.Stderr, f.logLevel)

	projectRoot := f.projectRoot
	if projectRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return exitError(2, "cannot determine working directory: %v", err)
		}
		projectRoot = wd
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	resolver := config.NewResolver(logger)
	rev := reviewer.New(resolver, logger)
	rev.Prompter = &terminalPrompter{}

	manager, err := workflow.NewManager(projectRoot, resolver, rev, logger)
	if err != nil {
		return exitError(2, "%v", err)
	}

	result, err := manager.StartReview(ctx, workflow.Request{
		ReviewIndexPath:         indexPath,
		DraftPaths:              draftPaths,
		Initiator:               f.initiator,
		OriginalRequirementPath: f.originalRequirementPath,
		TaskPlanningPath:        f.taskPlanningPath,
	})
	if err != nil {
		return exitError(3, "review workflow failed: %v", err)
	}

	fmt.Println(result.Text())

	if result.Status != reviewer.StatusCompleted {
		return exitError(4, "review ended with status %s", result.Status)
	}
	return nil
}

// terminalPrompter asks on stderr whether to retry after the reviewer
// tool was not found, so the user can install it or edit the
// configuration between attempts.
type terminalPrompter struct{}

func (p *terminalPrompter) ToolMissing(ctx context.Context, info reviewer.ToolMissingInfo) (reviewer.Decision, error) {
	fmt.Fprintf(os.Stderr, "\n[ERROR] Reviewer tool %q is not available:\n  %s\n", info.Tool, info.Detail)
	if info.InstallCommand != "" {
		fmt.Fprintf(os.Stderr, "\nInstall it with:\n  %s\n", info.InstallCommand)
	}
	fmt.Fprintf(os.Stderr, "\nInstall the tool or edit %s, then retry.\n", config.ProjectFileName)
	fmt.Fprint(os.Stderr, "Retry? [y/N]: ")

	answerCh := make(chan string, 1)
	go func() {
		reader := bufio.NewReader(os.Stdin)
		line, _ := reader.ReadString('\n')
		answerCh <- strings.ToLower(strings.TrimSpace(line))
	}()

	select {
	case <-ctx.Done():
		return reviewer.DecisionCancel, ctx.Err()
	case answer := <-answerCh:
		if answer == "y" || answer == "yes" {
			return reviewer.DecisionRetry, nil
		}
		return reviewer.DecisionCancel, nil
	}
}
