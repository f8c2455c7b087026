package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ldr123/VetMediatorMCP/internal/command"
	"github.com/ldr123/VetMediatorMCP/internal/config"
	"github.com/ldr123/VetMediatorMCP/internal/reviewer"
)

func newToolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tool",
		Short: "Inspect and switch reviewer tool profiles",
	}
	cmd.AddCommand(newToolListCmd())
	cmd.AddCommand(newToolUseCmd())
	return cmd
}

func newToolListCmd() *cobra.Command {
	var projectRoot string
	var check bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured reviewer tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToolList(cmd.Context(), projectRoot, check)
		},
	}
	cmd.Flags().StringVar(&projectRoot, "project-root", ".", "Project root directory")
	cmd.Flags().BoolVar(&check, "check", false, "Probe each tool's availability (runs <executable> --version)")
	return cmd
}

func runToolList(ctx context.Context, projectRoot string, check bool) error {
	logger := newLogger(os.Stderr, "warn")
	resolver := config.NewResolver(logger)

	merged := resolver.Load(projectRoot)
	current, _ := merged["current_tool"].(string)
	profiles, _ := merged["tool_profiles"].(map[string]any)

	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	rev := reviewer.New(resolver, logger)

	for _, name := range names {
		marker := " "
		if name == current {
			marker = "*"
		}
		raw, _ := profiles[name].(map[string]any)
		exe, _ := raw["executable"].(string)

		line := fmt.Sprintf("%s %-10s %s", marker, name, exe)
		if check {
			avail := rev.Probe(ctx, command.NewBuilder(command.Profile{Executable: exe}, logger))
			if avail.Available {
				line += fmt.Sprintf("  [ok] %s", firstLine(avail.Info))
			} else {
				line += "  [unavailable]"
			}
		}
		fmt.Println(line)
	}
	return nil
}

func newToolUseCmd() *cobra.Command {
	var projectRoot string

	cmd := &cobra.Command{
		Use:   "use <name>",
		Short: "Set the active reviewer tool for this project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToolUse(projectRoot, args[0])
		},
	}
	cmd.Flags().StringVar(&projectRoot, "project-root", ".", "Project root directory")
	return cmd
}

func runToolUse(projectRoot, name string) error {
	logger := newLogger(os.Stderr, "warn")
	resolver := config.NewResolver(logger)

	merged := resolver.Load(projectRoot)
	profiles, _ := merged["tool_profiles"].(map[string]any)
	if _, ok := profiles[name]; !ok {
		names := make([]string, 0, len(profiles))
		for n := range profiles {
			names = append(names, n)
		}
		sort.Strings(names)
		return exitError(2, "unknown tool %q; available: %v", name, names)
	}

	if err := resolver.SetCurrentTool(projectRoot, name); err != nil {
		return exitError(2, "%v", err)
	}
	fmt.Printf("Active reviewer tool set to %q.\n", name)
	return nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
