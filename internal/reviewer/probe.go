package reviewer

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ldr123/VetMediatorMCP/internal/command"
	"github.com/ldr123/VetMediatorMCP/internal/config"
)

// Availability is the outcome of a tool probe. A probe that times out
// still counts as available: the binary exists and started, it just did
// not finish printing a version within the probe window.
type Availability struct {
	Available bool
	Info      string
}

// Probe runs the tool's version check and classifies the outcome.
func (r *Reviewer) Probe(ctx context.Context, builder *command.Builder) Availability {
	args := platformArgs(builder.VersionArgs())
	display := builder.DisplayName()

	probeCtx, cancel := context.WithTimeout(ctx, r.probeTimeout())
	defer cancel()

	cmd := exec.CommandContext(probeCtx, args[0], args[1:]...)
	out, err := cmd.CombinedOutput()

	switch {
	case err == nil:
		version := strings.TrimSpace(string(out))
		r.logger.Info("reviewer: tool available", "tool", display, "version", version)
		return Availability{Available: true, Info: version}

	case probeCtx.Err() == context.DeadlineExceeded:
		// The binary exists but is slow or interactive. Let the review
		// proceed without a verified version.
		r.logger.Warn("reviewer: version check timed out, continuing", "tool", display)
		return Availability{Available: true, Info: "[WARNING] Version check timed out, continuing without version verification"}

	case isNotFound(err):
		r.logger.Error("reviewer: tool not found in PATH", "tool", display)
		return Availability{Available: false, Info: fmt.Sprintf("%s CLI not found. Please install it first.", display)}

	default:
		detail := strings.TrimSpace(string(out))
		if detail == "" {
			detail = err.Error()
		}
		r.logger.Warn("reviewer: version check failed", "tool", display, "error", detail)
		return Availability{Available: false, Info: fmt.Sprintf("%s command failed: %s", display, detail)}
	}
}

func isNotFound(err error) bool {
	if errors.Is(err, exec.ErrNotFound) {
		return true
	}
	var execErr *exec.Error
	return errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound)
}

// ensureAvailable probes the tool and, when it is missing, loops through
// the Prompter: each retry reloads the configuration so the user can
// install the tool or switch profiles between attempts. It returns the
// final availability together with the profile and tool name in effect.
func (r *Reviewer) ensureAvailable(ctx context.Context, projectRoot string, profile *config.ToolProfile, tool string) (Availability, *config.ToolProfile, string, error) {
	builder := newBuilder(profile, r.logger)
	avail := r.Probe(ctx, builder)

	for !avail.Available {
		if r.Prompter == nil {
			break
		}

		decision, err := r.Prompter.ToolMissing(ctx, ToolMissingInfo{
			Tool:           tool,
			Executable:     profile.Executable,
			InstallCommand: profile.InstallCommand,
			Detail:         avail.Info,
		})
		if err != nil || (decision != DecisionRetry && decision != DecisionSwitch) {
			r.logger.Info("reviewer: user cancelled tool check", "tool", tool)
			break
		}

		r.logger.Info("reviewer: retrying tool check", "tool", tool)
		reloaded, reloadedTool, err := r.Resolver.Current(projectRoot)
		if err != nil {
			return avail, profile, tool, err
		}
		profile, tool = reloaded, reloadedTool
		builder = newBuilder(profile, r.logger)
		avail = r.Probe(ctx, builder)
	}

	return avail, profile, tool, nil
}
