//go:build !windows

package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ldr123/VetMediatorMCP/internal/config"
	"github.com/ldr123/VetMediatorMCP/internal/reviewer"
)

func toolRequest(name string, args map[string]any) mcplib.CallToolRequest {
	return mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func toolText(t *testing.T, result *mcplib.CallToolResult) string {
	t.Helper()
	for _, c := range result.Content {
		if tc, ok := c.(mcplib.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatal("no TextContent in tool result")
	return ""
}

func testServer(t *testing.T) (*Server, string) {
	t.Helper()
	resolver := config.NewResolver(nil)
	resolver.HomeDir = t.TempDir()
	s := New(resolver, nil)
	return s, t.TempDir()
}

func TestShowConfig(t *testing.T) {
	s, projectRoot := testServer(t)

	result, err := s.handleShowConfig(context.Background(),
		toolRequest("show_config", map[string]any{"project_root": projectRoot}))
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", toolText(t, result))
	}

	text := toolText(t, result)
	if !strings.Contains(text, "Current Active Tool: iflow") {
		t.Errorf("missing active tool: %q", text)
	}
	for _, name := range []string{"iflow", "codex", "claude"} {
		if !strings.Contains(text, name) {
			t.Errorf("profile %q not listed", name)
		}
	}
	if !strings.Contains(text, "missing") {
		t.Error("config file presence not reported")
	}
}

func TestShowConfigMissingRoot(t *testing.T) {
	s, _ := testServer(t)
	result, err := s.handleShowConfig(context.Background(),
		toolRequest("show_config", map[string]any{}))
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Fatal("missing project_root accepted")
	}
}

func TestSelectTool(t *testing.T) {
	s, projectRoot := testServer(t)

	result, err := s.handleSelectTool(context.Background(),
		toolRequest("select_tool", map[string]any{
			"project_root": projectRoot,
			"tool":         "claude",
		}))
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", toolText(t, result))
	}

	data, err := os.ReadFile(filepath.Join(projectRoot, config.ProjectFileName))
	if err != nil {
		t.Fatal(err)
	}
	var cfg map[string]any
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg["current_tool"] != "claude" {
		t.Errorf("current_tool = %v", cfg["current_tool"])
	}
}

func TestSelectToolUnknown(t *testing.T) {
	s, projectRoot := testServer(t)

	result, err := s.handleSelectTool(context.Background(),
		toolRequest("select_tool", map[string]any{
			"project_root": projectRoot,
			"tool":         "nonexistent",
		}))
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Fatal("unknown tool accepted")
	}
	if !strings.Contains(toolText(t, result), "available: claude, codex, iflow") {
		t.Errorf("error should list available tools: %s", toolText(t, result))
	}
}

func TestStartReviewMissingArgs(t *testing.T) {
	s, projectRoot := testServer(t)

	result, err := s.handleStartReview(context.Background(),
		toolRequest("start_review", map[string]any{"project_root": projectRoot}))
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Fatal("missing review_index_path accepted")
	}
}

func TestStartReviewEndToEnd(t *testing.T) {
	s, projectRoot := testServer(t)

	// Fake reviewer tool that writes a complete report.
	toolDir := t.TempDir()
	script := filepath.Join(toolDir, "tool.sh")
	body := fmt.Sprintf(`#!/bin/sh
if [ "$1" = "--version" ]; then echo "tool 1.0"; exit 0; fi
DIR=$(ls -d %s/VetMediatorSessions/session-*)
cat > "$DIR/report.md" <<'EOF'
# Review Report

## Status
approved

## Summary
Looks good. Reviewed every staged task file and found no blocking issues anywhere.

<!-- REVIEW_COMPLETE -->
EOF
exit 0
`, projectRoot)
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := map[string]any{
		"current_tool": "testtool",
		"tool_profiles": map[string]any{
			"testtool": map[string]any{
				"executable":    script,
				"args":          []string{},
				"log_file_name": "tool.log",
			},
		},
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(projectRoot, config.ProjectFileName), data, 0o600); err != nil {
		t.Fatal(err)
	}

	s.newReviewer = func() *reviewer.Reviewer {
		r := reviewer.New(s.resolver, nil)
		r.PollInterval = 50 * time.Millisecond
		return r
	}

	tempDir := t.TempDir()
	index := filepath.Join(tempDir, "ReviewIndex-x.md")
	if err := os.WriteFile(index, []byte("# Index\n{{INJECT:REPORT_FORMAT}}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	draft := filepath.Join(tempDir, "Task1_Demo-abc.md")
	if err := os.WriteFile(draft, []byte("# Task\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := s.handleStartReview(context.Background(),
		toolRequest("start_review", map[string]any{
			"review_index_path": index,
			"draft_paths":       []any{draft},
			"project_root":      projectRoot,
			"initiator":         "TestClient",
		}))
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Fatalf("review failed: %s", toolText(t, result))
	}

	text := toolText(t, result)
	if !strings.HasPrefix(text, "[APPROVED] Review approved") {
		t.Errorf("headline wrong: %q", strings.SplitN(text, "\n", 2)[0])
	}
	if !strings.Contains(text, "<!-- REVIEW_COMPLETE -->") {
		t.Error("response missing report content")
	}
}
