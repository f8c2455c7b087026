// Package config resolves the layered reviewer-tool configuration.
//
// Three layers merge in ascending priority: compiled-in defaults, the
// user-global file (~/.vetmediator/config.json), and the project-local
// file (<root>/.VetMediatorSetting.json). Later layers deep-merge over
// earlier ones, mapping by mapping; scalar and list values replace.
//
// Two failure kinds are kept strictly apart: a missing or unparsable
// file falls back to the next layer (ultimately the built-in defaults),
// while a structurally invalid profile raises a ValidationError that
// must propagate to the caller without any fallback.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ProjectFileName is the project-local configuration file name.
const ProjectFileName = ".VetMediatorSetting.json"

// DefaultTool is used when the merged configuration names no current tool.
const DefaultTool = "codex"

// ErrNoConfigFile reports that neither the user-global nor the
// project-local configuration file exists on disk. First-run setup is
// handled by the caller; the resolver only detects the condition.
var ErrNoConfigFile = errors.New("config: no configuration file found")

// ToolProfile is the resolved configuration for one reviewer tool.
type ToolProfile struct {
	Executable      string            `json:"executable"`
	Args            []string          `json:"args"`
	LogFileName     string            `json:"log_file_name"`
	ExtendedPrompt  string            `json:"extended_prompt,omitempty"`
	EnvVars         map[string]string `json:"env_vars,omitempty"`
	InstallCommand  string            `json:"install_command,omitempty"`
	MaxPromptLength int               `json:"max_prompt_length,omitempty"`
}

// ValidationError reports a structurally invalid profile value. It names
// the offending tool and field and is never recovered by fallback.
type ValidationError struct {
	Tool   string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %q in %q config: %s", e.Field, e.Tool, e.Reason)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Validate checks the structural invariants of a profile: non-empty
// executable, a present argument list, and a relative log file name with
// no traversal. toolName is used for error messages only.
func Validate(p *ToolProfile, toolName string) error {
	if strings.TrimSpace(p.Executable) == "" {
		return &ValidationError{Tool: toolName, Field: "executable", Reason: "must be non-empty string"}
	}
	if p.Args == nil {
		return &ValidationError{Tool: toolName, Field: "args", Reason: "must be a list"}
	}
	if p.LogFileName == "" {
		return &ValidationError{Tool: toolName, Field: "log_file_name", Reason: "missing"}
	}
	if filepath.IsAbs(p.LogFileName) || strings.HasPrefix(p.LogFileName, "/") || strings.HasPrefix(p.LogFileName, `\`) {
		return &ValidationError{Tool: toolName, Field: "log_file_name", Reason: fmt.Sprintf("must be relative path, got %q", p.LogFileName)}
	}
	for _, part := range strings.FieldsFunc(p.LogFileName, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return &ValidationError{Tool: toolName, Field: "log_file_name", Reason: "must not traverse outside the session directory"}
		}
	}
	return nil
}
