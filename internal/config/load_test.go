package config

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func newTestResolver(t *testing.T) (*Resolver, string) {
	t.Helper()
	home := t.TempDir()
	return &Resolver{HomeDir: home, logger: slog.New(slog.DiscardHandler)}, home
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestBuiltinDefaults(t *testing.T) {
	defaults := Defaults()

	if got, _ := defaults["current_tool"].(string); got != "iflow" {
		t.Errorf("current_tool = %q, want iflow", got)
	}

	profiles, ok := defaults["tool_profiles"].(map[string]any)
	if !ok {
		t.Fatal("tool_profiles missing or wrong type")
	}
	for _, name := range []string{"iflow", "codex", "claude"} {
		raw, ok := profiles[name].(map[string]any)
		if !ok {
			t.Fatalf("profile %q missing", name)
		}
		p, err := profileFromRaw(raw, name)
		if err != nil {
			t.Fatalf("profile %q: %v", name, err)
		}
		if err := Validate(p, name); err != nil {
			t.Errorf("profile %q invalid: %v", name, err)
		}
	}

	// Defaults must return an independent copy each call.
	defaults["current_tool"] = "mutated"
	if got, _ := Defaults()["current_tool"].(string); got != "iflow" {
		t.Error("Defaults returned a shared map")
	}
}

func TestDeepMerge(t *testing.T) {
	base := map[string]any{
		"current_tool": "iflow",
		"env_vars":     map[string]any{"A": "1", "B": "2"},
		"tool_profiles": map[string]any{
			"iflow": map[string]any{"executable": "iflow", "args": []any{"-y"}},
		},
	}
	override := map[string]any{
		"current_tool": "claude",
		"env_vars":     map[string]any{"B": "3", "C": "4"},
		"tool_profiles": map[string]any{
			"iflow": map[string]any{"args": []any{"-p"}},
		},
	}

	merged := DeepMerge(base, override)

	if merged["current_tool"] != "claude" {
		t.Errorf("current_tool = %v, want claude", merged["current_tool"])
	}
	env := merged["env_vars"].(map[string]any)
	if env["A"] != "1" || env["B"] != "3" || env["C"] != "4" {
		t.Errorf("env_vars merged wrong: %v", env)
	}
	profile := merged["tool_profiles"].(map[string]any)["iflow"].(map[string]any)
	if profile["executable"] != "iflow" {
		t.Error("nested merge dropped sibling key")
	}
	args := profile["args"].([]any)
	if len(args) != 1 || args[0] != "-p" {
		t.Errorf("lists must replace, not concatenate: %v", args)
	}

	// Inputs stay untouched.
	if base["current_tool"] != "iflow" {
		t.Error("DeepMerge mutated base")
	}
	if base["env_vars"].(map[string]any)["B"] != "2" {
		t.Error("DeepMerge mutated nested base map")
	}
}

func TestDeepMergeIdempotent(t *testing.T) {
	base := map[string]any{
		"current_tool": "iflow",
		"env_vars":     map[string]any{"A": "1"},
		"tool_profiles": map[string]any{
			"iflow": map[string]any{"args": []any{"-y"}},
		},
	}
	merged := DeepMerge(base, base)
	if !reflect.DeepEqual(merged, base) {
		t.Errorf("DeepMerge(base, base) = %v, want %v", merged, base)
	}
}

func TestLoadLayering(t *testing.T) {
	r, home := newTestResolver(t)
	project := t.TempDir()

	writeJSON(t, filepath.Join(home, ".vetmediator", "config.json"), map[string]any{
		"current_tool": "codex",
		"env_vars":     map[string]any{"USER_KEY": "user"},
	})
	writeJSON(t, filepath.Join(project, ProjectFileName), map[string]any{
		"current_tool": "claude",
	})

	merged := r.Load(project)

	if merged["current_tool"] != "claude" {
		t.Errorf("project layer should win: got %v", merged["current_tool"])
	}
	env := merged["env_vars"].(map[string]any)
	if env["USER_KEY"] != "user" {
		t.Error("user layer value lost")
	}
	if env["PYTHONIOENCODING"] != "utf-8" {
		t.Error("builtin default value lost")
	}
}

func TestLoadSkipsCorruptLayer(t *testing.T) {
	r, home := newTestResolver(t)
	project := t.TempDir()

	path := filepath.Join(home, ".vetmediator", "config.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	merged := r.Load(project)
	if merged["current_tool"] != "iflow" {
		t.Errorf("corrupt layer must fall back to defaults: got %v", merged["current_tool"])
	}
}

func TestMigrateLegacy(t *testing.T) {
	r, home := newTestResolver(t)

	legacy := filepath.Join(home, ProjectFileName)
	writeJSON(t, legacy, map[string]any{"current_tool": "claude"})

	if !r.MigrateLegacy() {
		t.Fatal("migration reported failure")
	}
	if fileExists(legacy) {
		t.Error("legacy file not removed")
	}
	moved, err := readJSONMap(r.UserConfigPath())
	if err != nil {
		t.Fatal(err)
	}
	if moved["current_tool"] != "claude" {
		t.Errorf("migrated content wrong: %v", moved)
	}

	// Second run is a no-op.
	if !r.MigrateLegacy() {
		t.Error("repeat migration should succeed as no-op")
	}
}

func TestMigrateLegacySkipsWhenNewExists(t *testing.T) {
	r, home := newTestResolver(t)

	writeJSON(t, r.UserConfigPath(), map[string]any{"current_tool": "codex"})
	legacy := filepath.Join(home, ProjectFileName)
	writeJSON(t, legacy, map[string]any{"current_tool": "claude"})

	r.MigrateLegacy()

	current, err := readJSONMap(r.UserConfigPath())
	if err != nil {
		t.Fatal(err)
	}
	if current["current_tool"] != "codex" {
		t.Error("migration overwrote existing config")
	}
	if !fileExists(legacy) {
		t.Error("legacy file should be left alone when new config exists")
	}
}

func TestCurrent(t *testing.T) {
	r, _ := newTestResolver(t)
	project := t.TempDir()

	profile, tool, err := r.Current(project)
	if err != nil {
		t.Fatal(err)
	}
	if tool != "iflow" {
		t.Errorf("tool = %q, want iflow", tool)
	}
	if profile.Executable != "iflow" {
		t.Errorf("executable = %q", profile.Executable)
	}
	if profile.EnvVars["PYTHONIOENCODING"] != "utf-8" {
		t.Error("profile did not inherit top-level env_vars")
	}
}

func TestCurrentUnknownTool(t *testing.T) {
	r, _ := newTestResolver(t)
	project := t.TempDir()
	writeJSON(t, filepath.Join(project, ProjectFileName), map[string]any{
		"current_tool": "nonexistent",
	})

	_, tool, err := r.Current(project)
	if tool != "nonexistent" {
		t.Errorf("tool = %q", tool)
	}
	if !IsValidation(err) {
		t.Fatalf("want ValidationError, got %v", err)
	}
}

func TestCurrentValidationPropagates(t *testing.T) {
	r, _ := newTestResolver(t)
	project := t.TempDir()
	writeJSON(t, filepath.Join(project, ProjectFileName), map[string]any{
		"current_tool": "iflow",
		"tool_profiles": map[string]any{
			"iflow": map[string]any{"executable": ""},
		},
	})

	_, _, err := r.Current(project)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("want ValidationError, got %v", err)
	}
	if ve.Field != "executable" {
		t.Errorf("field = %q, want executable", ve.Field)
	}
}

func TestCurrentMissingToolDefaults(t *testing.T) {
	r, _ := newTestResolver(t)
	project := t.TempDir()
	writeJSON(t, filepath.Join(project, ProjectFileName), map[string]any{
		"current_tool": "",
	})

	_, tool, err := r.Current(project)
	if err != nil {
		t.Fatal(err)
	}
	if tool != DefaultTool {
		t.Errorf("tool = %q, want %q", tool, DefaultTool)
	}
}

func TestSetCurrentTool(t *testing.T) {
	r, _ := newTestResolver(t)
	project := t.TempDir()
	path := filepath.Join(project, ProjectFileName)
	writeJSON(t, path, map[string]any{
		"current_tool": "iflow",
		"custom_key":   "keep-me",
	})

	if err := r.SetCurrentTool(project, "claude"); err != nil {
		t.Fatal(err)
	}

	after, err := readJSONMap(path)
	if err != nil {
		t.Fatal(err)
	}
	if after["current_tool"] != "claude" {
		t.Errorf("current_tool = %v", after["current_tool"])
	}
	if after["custom_key"] != "keep-me" {
		t.Error("unrelated key was dropped")
	}
}

func TestSetCurrentToolCreatesFile(t *testing.T) {
	r, _ := newTestResolver(t)
	project := t.TempDir()

	if err := r.SetCurrentTool(project, "codex"); err != nil {
		t.Fatal(err)
	}
	after, err := readJSONMap(filepath.Join(project, ProjectFileName))
	if err != nil {
		t.Fatal(err)
	}
	if after["current_tool"] != "codex" {
		t.Errorf("current_tool = %v", after["current_tool"])
	}
}

func TestHasConfigFile(t *testing.T) {
	r, _ := newTestResolver(t)
	project := t.TempDir()

	if r.HasConfigFile(project) {
		t.Error("no files written yet")
	}
	writeJSON(t, filepath.Join(project, ProjectFileName), map[string]any{})
	if !r.HasConfigFile(project) {
		t.Error("project file should count")
	}
}

func TestWriteDefault(t *testing.T) {
	r, _ := newTestResolver(t)
	path := filepath.Join(t.TempDir(), "sub", ProjectFileName)

	if err := r.WriteDefault(path); err != nil {
		t.Fatal(err)
	}
	written, err := readJSONMap(path)
	if err != nil {
		t.Fatal(err)
	}
	if written["current_tool"] != "iflow" {
		t.Errorf("written defaults wrong: %v", written["current_tool"])
	}
}

func TestValidate(t *testing.T) {
	valid := func() *ToolProfile {
		return &ToolProfile{Executable: "tool", Args: []string{}, LogFileName: "tool.log"}
	}

	tests := []struct {
		name    string
		mutate  func(*ToolProfile)
		wantErr bool
		field   string
	}{
		{"valid", func(p *ToolProfile) {}, false, ""},
		{"empty executable", func(p *ToolProfile) { p.Executable = "  " }, true, "executable"},
		{"nil args", func(p *ToolProfile) { p.Args = nil }, true, "args"},
		{"missing log name", func(p *ToolProfile) { p.LogFileName = "" }, true, "log_file_name"},
		{"absolute log path", func(p *ToolProfile) { p.LogFileName = "/var/log/x.log" }, true, "log_file_name"},
		{"traversal log path", func(p *ToolProfile) { p.LogFileName = "../escape.log" }, true, "log_file_name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid()
			tt.mutate(p)
			err := Validate(p, "test")
			if tt.wantErr {
				var ve *ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("want ValidationError, got %v", err)
				}
				if ve.Field != tt.field {
					t.Errorf("field = %q, want %q", ve.Field, tt.field)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestProfileFromRawTypeMismatch(t *testing.T) {
	_, err := profileFromRaw(map[string]any{"args": "not-a-list"}, "x")
	if !IsValidation(err) {
		t.Fatalf("want ValidationError, got %v", err)
	}
	_, err = profileFromRaw(map[string]any{"args": []any{"ok", 42}}, "x")
	if !IsValidation(err) {
		t.Fatalf("want ValidationError, got %v", err)
	}
}

func TestDefaultProfile(t *testing.T) {
	profile, tool := DefaultProfile()
	if tool != "iflow" {
		t.Errorf("tool = %q", tool)
	}
	if err := Validate(profile, tool); err != nil {
		t.Fatal(err)
	}
}
