// Package mcpserver exposes the review workflow over the Model Context
// Protocol: a stdio server with tools to start a review, inspect the
// tool configuration, and switch the active reviewer tool.
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ldr123/VetMediatorMCP/internal/config"
	"github.com/ldr123/VetMediatorMCP/internal/reviewer"
	"github.com/ldr123/VetMediatorMCP/internal/workflow"
)

// Name and Version identify this server to MCP clients.
const (
	Name    = "vet-mediator-mcp"
	Version = "1.0.0"
)

// Server wraps the MCP server around the review workflow. Workflow
// managers are created per request because every call carries its own
// project root.
type Server struct {
	mcpServer *mcpserver.MCPServer
	resolver  *config.Resolver
	logger    *slog.Logger

	// newReviewer is swappable for tests.
	newReviewer func() *reviewer.Reviewer
}

// New creates the MCP server with all tools registered. A nil logger
// discards all output.
func New(resolver *config.Resolver, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		resolver: resolver,
		logger:   logger,
	}
	s.newReviewer = func() *reviewer.Reviewer {
		return reviewer.New(resolver, logger)
	}

	s.mcpServer = mcpserver.NewMCPServer(
		Name,
		Version,
		mcpserver.WithToolCapabilities(true),
	)
	s.registerTools()
	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// ServeStdio blocks serving MCP over stdin/stdout.
func (s *Server) ServeStdio() error {
	return mcpserver.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcplib.NewTool("start_review",
			mcplib.WithDescription("Start a CLI review workflow: create a session directory, stage the review files, run the configured reviewer tool, monitor progress, and parse the report"),
			mcplib.WithString("review_index_path", mcplib.Description("Absolute path to the temporary ReviewIndex.md generated by the client"), mcplib.Required()),
			mcplib.WithArray("draft_paths", mcplib.Description("Temporary task file paths in task order, named Task{N}_{Description}-{random}.md"), mcplib.Required()),
			mcplib.WithString("project_root", mcplib.Description("Absolute path to the project root"), mcplib.Required()),
			mcplib.WithNumber("max_iterations", mcplib.Description("Maximum review iterations, reserved for future use"), mcplib.DefaultNumber(3)),
			mcplib.WithString("initiator", mcplib.Description("Name of the client starting the review, e.g. ClaudeCode")),
			mcplib.WithString("original_requirement_path", mcplib.Description("Temporary OriginalRequirement.md path; enables two-stage review together with task_planning_path")),
			mcplib.WithString("task_planning_path", mcplib.Description("Temporary TaskPlanning.md path; enables two-stage review together with original_requirement_path")),
		),
		s.handleStartReview,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("show_config",
			mcplib.WithDescription("Show the resolved reviewer tool configuration: active tool, available profiles, and configuration file locations"),
			mcplib.WithString("project_root", mcplib.Description("Absolute path to the project root"), mcplib.Required()),
		),
		s.handleShowConfig,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("select_tool",
			mcplib.WithDescription("Switch the active reviewer tool, persisting the choice into the project configuration file"),
			mcplib.WithString("project_root", mcplib.Description("Absolute path to the project root"), mcplib.Required()),
			mcplib.WithString("tool", mcplib.Description("Profile name to activate, e.g. iflow, codex, claude"), mcplib.Required()),
		),
		s.handleSelectTool,
	)
}

func (s *Server) handleStartReview(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	projectRoot := request.GetString("project_root", "")
	indexPath := request.GetString("review_index_path", "")
	draftPaths := request.GetStringSlice("draft_paths", nil)

	if projectRoot == "" || indexPath == "" {
		return errorResult("project_root and review_index_path are required"), nil
	}

	manager, err := workflow.NewManager(projectRoot, s.resolver, s.newReviewer(), s.logger)
	if err != nil {
		return errorResult(fmt.Sprintf("[ERROR] Review workflow failed: %v", err)), nil
	}

	result, err := manager.StartReview(ctx, workflow.Request{
		ReviewIndexPath:         indexPath,
		DraftPaths:              draftPaths,
		Initiator:               request.GetString("initiator", ""),
		MaxIterations:           request.GetInt("max_iterations", 3),
		OriginalRequirementPath: request.GetString("original_requirement_path", ""),
		TaskPlanningPath:        request.GetString("task_planning_path", ""),
	})
	if err != nil {
		return errorResult(fmt.Sprintf("[ERROR] Review workflow failed: %v", err)), nil
	}

	return textResult(result.Text()), nil
}

func (s *Server) handleShowConfig(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	projectRoot := request.GetString("project_root", "")
	if projectRoot == "" {
		return errorResult("project_root is required"), nil
	}

	merged := s.resolver.Load(projectRoot)
	current, _ := merged["current_tool"].(string)
	if current == "" {
		current = config.DefaultTool
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[INFO] Reviewer Tool Configuration\n\n")
	fmt.Fprintf(&b, "Current Active Tool: %s\n", current)
	fmt.Fprintf(&b, "Project Root: %s\n\n", projectRoot)

	fmt.Fprintf(&b, "Configuration files (in priority order):\n")
	fmt.Fprintf(&b, "  1. Project: %s (%s)\n",
		s.resolver.ProjectConfigPath(projectRoot), presence(fileReadable(s.resolver.ProjectConfigPath(projectRoot))))
	fmt.Fprintf(&b, "  2. Global:  %s (%s)\n\n",
		s.resolver.UserConfigPath(), presence(fileReadable(s.resolver.UserConfigPath())))

	fmt.Fprintf(&b, "Available tool profiles:\n")
	profiles, _ := merged["tool_profiles"].(map[string]any)
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		marker := "  "
		if name == current {
			marker = "* "
		}
		exe := ""
		if p, ok := profiles[name].(map[string]any); ok {
			exe, _ = p["executable"].(string)
		}
		fmt.Fprintf(&b, "%s%s (executable: %s)\n", marker, name, exe)
	}

	return textResult(b.String()), nil
}

func (s *Server) handleSelectTool(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	projectRoot := request.GetString("project_root", "")
	tool := request.GetString("tool", "")
	if projectRoot == "" || tool == "" {
		return errorResult("project_root and tool are required"), nil
	}

	merged := s.resolver.Load(projectRoot)
	profiles, _ := merged["tool_profiles"].(map[string]any)
	if _, ok := profiles[tool]; !ok {
		names := make([]string, 0, len(profiles))
		for name := range profiles {
			names = append(names, name)
		}
		sort.Strings(names)
		return errorResult(fmt.Sprintf("unknown tool %q; available: %s", tool, strings.Join(names, ", "))), nil
	}

	if err := s.resolver.SetCurrentTool(projectRoot, tool); err != nil {
		return errorResult(fmt.Sprintf("failed to switch tool: %v", err)), nil
	}

	return textResult(fmt.Sprintf("Active reviewer tool switched to %q.\nThe change takes effect on the next review.", tool)), nil
}

func textResult(text string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: text},
		},
	}
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

func presence(ok bool) string {
	if ok {
		return "present"
	}
	return "missing"
}

func fileReadable(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
