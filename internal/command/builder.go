// Package command turns a resolved tool profile into the concrete
// invocation of an external reviewer CLI: argument vector, environment
// overlay, display name, and the review prompt itself.
package command

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

// DefaultMaxPromptLength is the advisory prompt-size threshold applied
// when a profile does not set its own.
const DefaultMaxPromptLength = 800

// reviewPrompt is the instruction shared by every reviewer tool. The
// UTF-8-without-BOM demand matters: several CLIs otherwise emit BOMed
// or UTF-16 reports that downstream parsing has to repair.
const reviewPrompt = "Please read %[1]s/ReviewIndex.md for the review index. " +
	"It contains a task list table showing all task files in the same directory. " +
	"Review each task file according to the index and generate a comprehensive report. " +
	"Write report.md to %[1]s/    " +
	"CRITICAL REQUIREMENT: You MUST use UTF-8 encoding WITHOUT BOM (Byte Order Mark) " +
	"for ALL file operations (reading ReviewIndex.md, reading task files, writing report.md, " +
	"and any other file I/O). Do NOT use UTF-8 with BOM, UTF-16, or any other encoding. " +
	"This is mandatory to ensure cross-platform compatibility."

// Profile is the subset of the tool configuration the builder needs.
// internal/config.ToolProfile satisfies it structurally.
type Profile struct {
	Executable      string
	Args            []string
	LogFileName     string
	ExtendedPrompt  string
	EnvVars         map[string]string
	MaxPromptLength int
}

// Builder assembles reviewer invocations for one tool profile.
type Builder struct {
	profile Profile
	logger  *slog.Logger
}

// NewBuilder returns a builder for the given profile. A nil logger
// discards all output.
func NewBuilder(profile Profile, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Builder{profile: profile, logger: logger}
}

// Prompt renders the review prompt for a session directory given by its
// path relative to the project root. A non-empty extended prompt from
// the profile is appended under an IMPORTANT marker.
func (b *Builder) Prompt(sessionRelPath string) string {
	prompt := fmt.Sprintf(reviewPrompt, filepath.ToSlash(sessionRelPath))

	if extended := strings.TrimSpace(b.profile.ExtendedPrompt); extended != "" {
		prompt = prompt + "\n\nIMPORTANT: " + extended
	}
	return prompt
}

// ReviewArgs builds the full argument vector for a review run:
// executable, profile args, then the rendered prompt as the final
// positional argument.
func (b *Builder) ReviewArgs(sessionRelPath string) []string {
	args := make([]string, 0, len(b.profile.Args)+2)
	args = append(args, b.profile.Executable)
	args = append(args, b.profile.Args...)
	args = append(args, b.Prompt(sessionRelPath))
	return args
}

// ReviewCommandString renders the invocation for log display only; it
// performs no shell quoting and must never be executed.
func (b *Builder) ReviewCommandString(sessionRelPath string) string {
	return strings.Join(b.ReviewArgs(sessionRelPath), " ")
}

// VersionArgs builds the availability-probe invocation.
func (b *Builder) VersionArgs() []string {
	return []string{b.profile.Executable, "--version"}
}

// Env returns the environment overlay to merge over the parent
// environment when spawning the reviewer.
func (b *Builder) Env() map[string]string {
	return b.profile.EnvVars
}

// DisplayName extracts a human-readable tool name from the executable:
// base name without extension, so "/usr/bin/iflow" and
// `C:\Tools\iflow.exe` both yield "iflow".
func (b *Builder) DisplayName() string {
	exe := b.profile.Executable
	if exe == "" {
		return "unknown"
	}
	base := exe
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// LogFileName returns the session-relative log file name for this tool.
func (b *Builder) LogFileName() string {
	if b.profile.LogFileName == "" {
		return "cli.log"
	}
	return b.profile.LogFileName
}

// PromptTooLong reports whether prompt exceeds the advisory length
// limit. Oversized prompts still run; some CLIs silently truncate their
// positional argument, so the caller surfaces a warning.
func (b *Builder) PromptTooLong(prompt string) bool {
	max := b.profile.MaxPromptLength
	if max <= 0 {
		max = DefaultMaxPromptLength
	}
	if len(prompt) > max {
		b.logger.Warn("command: prompt exceeds recommended length",
			"length", len(prompt), "limit", max)
		return true
	}
	return false
}
