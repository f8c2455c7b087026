// Package reviewer supervises an external reviewer CLI process for one
// review session: availability probe, spawn with stdin closed and merged
// output, real-time log capture, an activity-based watchdog loop, and
// unconditional process cleanup.
package reviewer

import (
	"context"
	"log/slog"
	"time"

	"github.com/ldr123/VetMediatorMCP/internal/config"
)

// Supervision tunables. The defaults mirror the behavior the bundled
// reviewer tools were calibrated against; tests shrink them.
const (
	DefaultPollInterval     = 1 * time.Second
	DefaultIdleTimeout      = 5 * time.Minute
	DefaultReportGrace      = 10 * time.Second
	DefaultReportMinSize    = 100
	DefaultTerminateTimeout = 3 * time.Second
	DefaultKillTimeout      = 2 * time.Second
	DefaultLogTaskTimeout   = 5 * time.Second
	DefaultProbeTimeout     = 5 * time.Second
)

// Status is the terminal outcome of a supervised review run. It reflects
// how the run ended, not what the report says; report semantics are the
// parser's concern.
type Status string

const (
	StatusCompleted  Status = "completed"
	StatusIncomplete Status = "incomplete"
	StatusFailed     Status = "failed"
	StatusTimeout    Status = "timeout"
)

// Result is what a supervised run produces. ReportContent is always
// populated: when the tool wrote no usable report a synthesized error
// report takes its place, on disk and here.
type Result struct {
	Status         Status
	ReportContent  string
	LogTail        string
	ElapsedSeconds int
	SessionDir     string
}

// Decision is a Prompter's answer when the reviewer tool is unavailable.
// Retry and Switch both reload the configuration and probe again; Switch
// is for prompters that changed the active tool before answering.
type Decision int

const (
	DecisionCancel Decision = iota
	DecisionRetry
	DecisionSwitch
)

// ToolMissingInfo describes an unavailable tool to a Prompter.
type ToolMissingInfo struct {
	Tool           string
	Executable     string
	InstallCommand string
	Detail         string
}

// Prompter is consulted when the configured tool cannot be probed. On
// DecisionRetry the configuration is reloaded and the probe repeats, so
// the user can install the tool or switch profiles between attempts.
// A nil Prompter cancels immediately.
type Prompter interface {
	ToolMissing(ctx context.Context, info ToolMissingInfo) (Decision, error)
}

// Signal is an out-of-band instruction from an attached Monitor.
type Signal int

const (
	SignalIgnore Signal = iota
	SignalRetry
	SignalAbort
)

// SignalFromExitCode maps a monitor process exit code onto a Signal:
// 100 requests a retry, 99 an abort, anything else is ignored.
func SignalFromExitCode(code int) Signal {
	switch code {
	case 100:
		return SignalRetry
	case 99:
		return SignalAbort
	default:
		return SignalIgnore
	}
}

// MonitorInfo describes a running review to an attached Monitor.
type MonitorInfo struct {
	ToolName    string
	LogPath     string
	SessionDir  string
	ReviewFiles []string
}

// Monitor observes a running review and may signal an abort. A Monitor
// that fails to start, or whose channel closes early, never fails the
// review; supervision simply continues unobserved.
type Monitor interface {
	Start(ctx context.Context, info MonitorInfo) (<-chan Signal, error)
	Stop()
}

// Reviewer runs external reviewer CLI processes. Zero-valued duration
// fields fall back to the package defaults.
type Reviewer struct {
	Resolver *config.Resolver
	Prompter Prompter
	Monitor  Monitor

	PollInterval     time.Duration
	IdleTimeout      time.Duration
	ReportGrace      time.Duration
	ReportMinSize    int64
	TerminateTimeout time.Duration
	KillTimeout      time.Duration
	LogTaskTimeout   time.Duration
	ProbeTimeout     time.Duration

	logger *slog.Logger
}

// New returns a Reviewer with default tunables. A nil logger discards
// all output.
func New(resolver *config.Resolver, logger *slog.Logger) *Reviewer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reviewer{
		Resolver:         resolver,
		PollInterval:     DefaultPollInterval,
		IdleTimeout:      DefaultIdleTimeout,
		ReportGrace:      DefaultReportGrace,
		ReportMinSize:    DefaultReportMinSize,
		TerminateTimeout: DefaultTerminateTimeout,
		KillTimeout:      DefaultKillTimeout,
		LogTaskTimeout:   DefaultLogTaskTimeout,
		ProbeTimeout:     DefaultProbeTimeout,
		logger:           logger,
	}
}

func (r *Reviewer) pollInterval() time.Duration     { return orDefault(r.PollInterval, DefaultPollInterval) }
func (r *Reviewer) idleTimeout() time.Duration      { return orDefault(r.IdleTimeout, DefaultIdleTimeout) }
func (r *Reviewer) reportGrace() time.Duration      { return orDefault(r.ReportGrace, DefaultReportGrace) }
func (r *Reviewer) terminateTimeout() time.Duration {
	return orDefault(r.TerminateTimeout, DefaultTerminateTimeout)
}
func (r *Reviewer) killTimeout() time.Duration    { return orDefault(r.KillTimeout, DefaultKillTimeout) }
func (r *Reviewer) logTaskTimeout() time.Duration {
	return orDefault(r.LogTaskTimeout, DefaultLogTaskTimeout)
}
func (r *Reviewer) probeTimeout() time.Duration { return orDefault(r.ProbeTimeout, DefaultProbeTimeout) }

func (r *Reviewer) reportMinSize() int64 {
	if r.ReportMinSize > 0 {
		return r.ReportMinSize
	}
	return DefaultReportMinSize
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
