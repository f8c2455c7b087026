package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// Resolver loads and merges the configuration layers. HomeDir defaults to
// the current user's home directory and is overridable for tests.
type Resolver struct {
	HomeDir string
	logger  *slog.Logger
}

// NewResolver returns a resolver logging through logger. A nil logger
// discards all output.
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return &Resolver{HomeDir: home, logger: logger}
}

// UserConfigPath returns the user-global configuration file path.
func (r *Resolver) UserConfigPath() string {
	return filepath.Join(r.HomeDir, ".vetmediator", "config.json")
}

// legacyConfigPath is the pre-migration global configuration location.
func (r *Resolver) legacyConfigPath() string {
	return filepath.Join(r.HomeDir, ProjectFileName)
}

// ProjectConfigPath returns the project-local configuration file path.
func (r *Resolver) ProjectConfigPath(projectRoot string) string {
	return filepath.Join(projectRoot, ProjectFileName)
}

// HasConfigFile reports whether at least one on-disk configuration layer
// exists. When it returns false the caller is in the first-run state
// described by ErrNoConfigFile.
func (r *Resolver) HasConfigFile(projectRoot string) bool {
	return fileExists(r.UserConfigPath()) || fileExists(r.ProjectConfigPath(projectRoot))
}

// MigrateLegacy moves the legacy global configuration file to the new
// path. It is a no-op when the new path already exists or the legacy file
// is absent. Failure is reported but never fatal.
func (r *Resolver) MigrateLegacy() bool {
	legacy := r.legacyConfigPath()
	current := r.UserConfigPath()

	if fileExists(current) || !fileExists(legacy) {
		return true
	}

	if err := os.MkdirAll(filepath.Dir(current), 0o755); err != nil {
		r.logger.Error("config: legacy migration failed", "error", err)
		return false
	}
	data, err := os.ReadFile(legacy)
	if err != nil {
		r.logger.Error("config: legacy migration failed", "error", err)
		return false
	}
	if err := os.WriteFile(current, data, 0o600); err != nil {
		r.logger.Error("config: legacy migration failed", "error", err)
		return false
	}
	if err := os.Remove(legacy); err != nil {
		r.logger.Warn("config: could not remove legacy file", "path", legacy, "error", err)
	}

	r.logger.Info("config: migrated legacy config", "from", legacy, "to", current)
	return true
}

// Load merges the three layers and returns the raw configuration tree.
// Missing or unparsable external files are logged and skipped; the result
// always contains at least the compiled-in defaults.
func (r *Resolver) Load(projectRoot string) map[string]any {
	r.MigrateLegacy()

	merged := Defaults()

	for _, layer := range []struct {
		name string
		path string
	}{
		{"user", r.UserConfigPath()},
		{"project", r.ProjectConfigPath(projectRoot)},
	} {
		if !fileExists(layer.path) {
			continue
		}
		overlay, err := readJSONMap(layer.path)
		if err != nil {
			r.logger.Warn("config: skipping unreadable layer", "layer", layer.name, "path", layer.path, "error", err)
			continue
		}
		merged = DeepMerge(merged, overlay)
		r.logger.Debug("config: loaded layer", "layer", layer.name, "path", layer.path)
	}

	return merged
}

// Current resolves and validates the active tool profile. Validation
// failures propagate as ValidationError and are never recovered by
// falling back to another profile.
func (r *Resolver) Current(projectRoot string) (*ToolProfile, string, error) {
	merged := r.Load(projectRoot)

	tool, _ := merged["current_tool"].(string)
	if tool == "" {
		r.logger.Warn("config: current_tool not specified, using default", "default", DefaultTool)
		tool = DefaultTool
	}

	profiles, _ := merged["tool_profiles"].(map[string]any)
	raw, ok := profiles[tool].(map[string]any)
	if !ok {
		return nil, tool, &ValidationError{
			Tool:   tool,
			Field:  "current_tool",
			Reason: fmt.Sprintf("unknown tool; available: %v", profileNames(profiles)),
		}
	}

	profile, err := profileFromRaw(raw, tool)
	if err != nil {
		return nil, tool, err
	}

	// Profiles without their own overlay inherit the top-level one.
	if profile.EnvVars == nil {
		if top, ok := merged["env_vars"].(map[string]any); ok {
			profile.EnvVars = stringMap(top)
		}
	}

	if err := Validate(profile, tool); err != nil {
		r.logger.Error("config: validation failed", "tool", tool, "error", err)
		return nil, tool, err
	}
	return profile, tool, nil
}

// SetCurrentTool persists the selection into the project-local file,
// preserving every other key and creating the file when absent.
func (r *Resolver) SetCurrentTool(projectRoot, tool string) error {
	path := r.ProjectConfigPath(projectRoot)

	existing := map[string]any{}
	if fileExists(path) {
		loaded, err := readJSONMap(path)
		if err != nil {
			r.logger.Warn("config: project file unreadable, rewriting", "path", path, "error", err)
		} else {
			existing = loaded
		}
	}

	existing["current_tool"] = tool

	data, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return fmt.Errorf("config.SetCurrentTool: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("config.SetCurrentTool: %w", err)
	}

	r.logger.Info("config: updated current_tool", "tool", tool, "path", path)
	return nil
}

// WriteDefault writes the compiled-in defaults as a configuration file,
// creating parent directories as needed.
func (r *Resolver) WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config.WriteDefault: %w", err)
	}
	data, err := json.MarshalIndent(Defaults(), "", "  ")
	if err != nil {
		return fmt.Errorf("config.WriteDefault: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("config.WriteDefault: %w", err)
	}
	r.logger.Info("config: created config file", "path", path)
	return nil
}

// DefaultProfile returns the built-in profile used when external
// configuration files are missing or corrupt.
func DefaultProfile() (*ToolProfile, string) {
	defaults := Defaults()
	tool, _ := defaults["current_tool"].(string)
	profiles, _ := defaults["tool_profiles"].(map[string]any)
	raw, _ := profiles[tool].(map[string]any)
	profile, err := profileFromRaw(raw, tool)
	if err != nil {
		panic(fmt.Sprintf("config: built-in default profile invalid: %v", err))
	}
	if top, ok := defaults["env_vars"].(map[string]any); ok {
		profile.EnvVars = stringMap(top)
	}
	return profile, tool
}

// profileFromRaw converts an untyped profile mapping into a ToolProfile,
// reporting type mismatches as validation errors rather than decode
// failures so they propagate instead of triggering layer fallback.
func profileFromRaw(raw map[string]any, tool string) (*ToolProfile, error) {
	p := &ToolProfile{}

	if v, ok := raw["executable"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, &ValidationError{Tool: tool, Field: "executable", Reason: "must be non-empty string"}
		}
		p.Executable = s
	}

	if v, ok := raw["args"]; ok {
		list, ok := v.([]any)
		if !ok {
			return nil, &ValidationError{Tool: tool, Field: "args", Reason: "must be a list"}
		}
		p.Args = make([]string, len(list))
		for i, e := range list {
			s, ok := e.(string)
			if !ok {
				return nil, &ValidationError{Tool: tool, Field: "args", Reason: fmt.Sprintf("element %d must be a string", i)}
			}
			p.Args[i] = s
		}
	}

	if v, ok := raw["log_file_name"].(string); ok {
		p.LogFileName = v
	}
	if v, ok := raw["extended_prompt"].(string); ok {
		p.ExtendedPrompt = v
	}
	if v, ok := raw["install_command"].(string); ok {
		p.InstallCommand = v
	}
	if v, ok := raw["env_vars"].(map[string]any); ok {
		p.EnvVars = stringMap(v)
	}

	switch v := raw["max_prompt_length"].(type) {
	case int:
		p.MaxPromptLength = v
	case float64:
		p.MaxPromptLength = int(v)
	}

	return p, nil
}

func profileNames(profiles map[string]any) []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func stringMap(m map[string]any) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = fmt.Sprint(v)
	}
	return out
}

func readJSONMap(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
