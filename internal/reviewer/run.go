package reviewer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ldr123/VetMediatorMCP/internal/command"
	"github.com/ldr123/VetMediatorMCP/internal/config"
	"github.com/ldr123/VetMediatorMCP/internal/report"
)

func newBuilder(profile *config.ToolProfile, logger *slog.Logger) *command.Builder {
	return command.NewBuilder(command.Profile{
		Executable:      profile.Executable,
		Args:            profile.Args,
		LogFileName:     profile.LogFileName,
		ExtendedPrompt:  profile.ExtendedPrompt,
		EnvVars:         profile.EnvVars,
		MaxPromptLength: profile.MaxPromptLength,
	}, logger)
}

// StartReview spawns the configured reviewer tool against a prepared
// session directory and supervises it to a terminal Result.
//
// The returned error is non-nil only for configuration validation
// failures, which must surface to the caller unchanged; every runtime
// failure instead yields a failed Result carrying a synthesized report.
func (r *Reviewer) StartReview(ctx context.Context, sessionDir, projectRoot string) (res Result, err error) {
	reportPath := filepath.Join(sessionDir, "report.md")

	// Supervision must never crash the caller.
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("reviewer: panic during supervision", "panic", p)
			content := r.writeErrorReport(reportPath, "error",
				fmt.Sprintf("internal error: %v", p),
				"The review failed due to an unexpected internal error.")
			res = Result{Status: StatusFailed, ReportContent: content, SessionDir: sessionDir}
			err = nil
		}
	}()

	// First run: no configuration file anywhere. Create a default
	// project file and fail with instructions rather than silently
	// reviewing with built-in defaults.
	if !r.Resolver.HasConfigFile(projectRoot) {
		r.logger.Warn("reviewer: no configuration file found, creating default")
		projectConfig := r.Resolver.ProjectConfigPath(projectRoot)
		if err := r.Resolver.WriteDefault(projectConfig); err != nil {
			r.logger.Error("reviewer: cannot create default config", "error", err)
		}
		content := r.configMissingReport(reportPath, projectConfig)
		return Result{
			Status:        StatusFailed,
			ReportContent: content,
			LogTail:       "Configuration file created, please edit and restart",
			SessionDir:    sessionDir,
		}, nil
	}

	profile, tool, err := r.Resolver.Current(projectRoot)
	if err != nil {
		// Validation errors fast-fail; Load already falls back for
		// missing or corrupt files, so nothing else reaches here.
		return Result{}, fmt.Errorf("reviewer.StartReview: %w", err)
	}

	builder := newBuilder(profile, r.logger)
	logPath := filepath.Join(sessionDir, builder.LogFileName())

	start := time.Now()

	avail, profile, tool, err := r.ensureAvailable(ctx, projectRoot, profile, tool)
	if err != nil {
		return Result{}, fmt.Errorf("reviewer.StartReview: %w", err)
	}
	if !avail.Available {
		content := r.notFoundReport(reportPath, builder.DisplayName(), avail.Info, profile.InstallCommand)
		return Result{
			Status:        StatusFailed,
			ReportContent: content,
			LogTail:       avail.Info,
			SessionDir:    sessionDir,
		}, nil
	}

	// The prompt loop may have switched profiles; rebuild.
	builder = newBuilder(profile, r.logger)
	logPath = filepath.Join(sessionDir, builder.LogFileName())

	sessionRel, err := filepath.Rel(projectRoot, sessionDir)
	if err != nil {
		content := r.writeErrorReport(reportPath, "error",
			fmt.Sprintf("session directory is outside the project root: %v", err),
			"The review could not start because the session directory could not be resolved relative to the project root.")
		return Result{Status: StatusFailed, ReportContent: content, SessionDir: sessionDir}, nil
	}

	args := builder.ReviewArgs(filepath.ToSlash(sessionRel))
	builder.PromptTooLong(args[len(args)-1])
	r.logger.Info("reviewer: executing tool",
		"tool", tool, "command", builder.ReviewCommandString(filepath.ToSlash(sessionRel)))

	args = platformArgs(args)
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = projectRoot
	cmd.Env = mergedEnv(builder.Env())
	configureProcess(cmd)

	// Not StdoutPipe: Wait closes that pipe the moment the child exits,
	// dropping whatever output is still buffered. With our own pipe the
	// capture goroutine owns the read end and drains to EOF regardless
	// of when Wait returns.
	logRead, logWrite, err := os.Pipe()
	if err != nil {
		content := r.writeErrorReport(reportPath, "error",
			fmt.Sprintf("cannot create output pipe: %v", err),
			"The review process could not be started.")
		return Result{Status: StatusFailed, ReportContent: content, SessionDir: sessionDir}, nil
	}
	cmd.Stdout = logWrite
	cmd.Stderr = logWrite

	if err := cmd.Start(); err != nil {
		logRead.Close()
		logWrite.Close()
		content := r.writeErrorReport(reportPath, "error",
			fmt.Sprintf("failed to start %s: %v", builder.DisplayName(), err),
			"The review process could not be started. Check the tool configuration.")
		return Result{Status: StatusFailed, ReportContent: content, SessionDir: sessionDir}, nil
	}
	// The child holds its own copy of the write end; drop ours so the
	// capture goroutine sees EOF once the child side closes.
	logWrite.Close()
	r.logger.Info("reviewer: process started", "tool", tool, "pid", cmd.Process.Pid)

	logDone := make(chan struct{})
	go func() {
		defer close(logDone)
		defer logRead.Close()
		r.captureLog(logRead, logPath)
	}()

	waitDone := make(chan struct{})
	go func() {
		defer close(waitDone)
		_ = cmd.Wait()
	}()

	signals := r.startMonitor(ctx, MonitorInfo{
		ToolName:    builder.DisplayName(),
		LogPath:     logPath,
		SessionDir:  sessionDir,
		ReviewFiles: collectReviewFiles(sessionDir),
	})

	var shutdownOnce sync.Once
	shutdown := func() {
		shutdownOnce.Do(func() {
			r.cleanupProcess(cmd, waitDone)
			if r.Monitor != nil {
				r.Monitor.Stop()
			}
			select {
			case <-logDone:
			case <-time.After(r.logTaskTimeout()):
				r.logger.Warn("reviewer: log capture did not finish in time")
			}
		})
	}
	defer shutdown()

	elapsed := func() int { return int(time.Since(start).Seconds()) }
	display := builder.DisplayName()

	var (
		lastLogMtime   time.Time
		lastActivity   = time.Now()
		reportDetected time.Time
	)

	ticker := time.NewTicker(r.pollInterval())
	defer ticker.Stop()

supervise:
	for {
		select {
		case <-ctx.Done():
			shutdown()
			content := r.writeErrorReport(reportPath, "error",
				"Review cancelled",
				"The review was cancelled before the reviewer tool finished.")
			return Result{
				Status:         StatusFailed,
				ReportContent:  content,
				LogTail:        r.readLogTail(logPath, 10),
				ElapsedSeconds: elapsed(),
				SessionDir:     sessionDir,
			}, nil

		case <-ticker.C:
			// Conditions are evaluated in fixed priority order once per
			// tick: abort signal, idle timeout, report grace, natural
			// exit. An abort pending in the same tick as an exit wins.
		drain:
			for signals != nil {
				select {
				case sig, ok := <-signals:
					if !ok {
						// Monitor went away; keep supervising without it.
						signals = nil
					} else if sig == SignalAbort {
						shutdown()
						content := r.writeErrorReport(reportPath, "error",
							"User aborted the review",
							"The review was manually cancelled by the user through the monitor.")
						return Result{
							Status:         StatusFailed,
							ReportContent:  content,
							LogTail:        r.readLogTail(logPath, 10),
							ElapsedSeconds: elapsed(),
							SessionDir:     sessionDir,
						}, nil
					}
				default:
					break drain
				}
			}

			// Activity watchdog: any growth of the log file resets the
			// idle clock.
			if info, err := os.Stat(logPath); err == nil {
				if mt := info.ModTime(); mt.After(lastLogMtime) {
					lastLogMtime = mt
					lastActivity = time.Now()
				}
			}
			if idle := time.Since(lastActivity); idle > r.idleTimeout() {
				shutdown()
				content := r.writeErrorReport(reportPath, "timeout",
					fmt.Sprintf("CLI tool has no response for %d seconds (idle timeout: %ds)",
						int(idle.Seconds()), int(r.idleTimeout().Seconds())),
					fmt.Sprintf("The %s review was terminated due to no output for %d seconds. The CLI tool may be stuck or waiting for input.",
						display, int(idle.Seconds())))
				return Result{
					Status:         StatusTimeout,
					ReportContent:  content,
					LogTail:        r.readLogTail(logPath, 10),
					ElapsedSeconds: elapsed(),
					SessionDir:     sessionDir,
				}, nil
			}

			// Report fallback: some tools write report.md but never
			// exit. Give them a grace period, then force termination
			// and read what they wrote.
			if info, err := os.Stat(reportPath); err == nil && info.Size() > r.reportMinSize() {
				if reportDetected.IsZero() {
					reportDetected = time.Now()
					r.logger.Info("reviewer: report detected, starting grace countdown",
						"size", info.Size(), "grace", r.reportGrace())
				} else if time.Since(reportDetected) > r.reportGrace() {
					r.logger.Info("reviewer: grace period elapsed, terminating tool")
					break supervise
				}
			}

			select {
			case <-waitDone:
				break supervise
			default:
			}
		}
	}

	shutdown()

	// ProcessState is only safe to read once Wait has returned; with an
	// unkillable child the Wait goroutine may still be running.
	exitCode := -1
	select {
	case <-waitDone:
		if cmd.ProcessState != nil {
			exitCode = cmd.ProcessState.ExitCode()
		}
	default:
	}

	// No usable report: the tool exited without writing one.
	if info, err := os.Stat(reportPath); err != nil || info.Size() == 0 {
		content := r.writeErrorReport(reportPath, "error",
			fmt.Sprintf("%s process exited without generating report (exit code %d)", display, exitCode),
			fmt.Sprintf("The %s review process terminated unexpectedly. Check %s for details.", display, builder.LogFileName()))
		return Result{
			Status:         StatusFailed,
			ReportContent:  content,
			LogTail:        r.readLogTail(logPath, 10),
			ElapsedSeconds: elapsed(),
			SessionDir:     sessionDir,
		}, nil
	}

	content := readReport(reportPath)
	status := StatusCompleted
	if !report.HasCompletionMarker(content) {
		r.logger.Warn("reviewer: report missing completion marker")
		status = StatusIncomplete
	}
	return Result{
		Status:         status,
		ReportContent:  content,
		LogTail:        r.readLogTail(logPath, 10),
		ElapsedSeconds: elapsed(),
		SessionDir:     sessionDir,
	}, nil
}

// cleanupProcess terminates the child unconditionally: even an
// apparently-exited child may have left grandchildren in its process
// group. Graceful termination first, then a bounded kill.
func (r *Reviewer) cleanupProcess(cmd *exec.Cmd, waitDone <-chan struct{}) {
	if cmd.Process == nil {
		return
	}
	terminateProcess(cmd)
	select {
	case <-waitDone:
		r.logger.Info("reviewer: process terminated", "pid", cmd.Process.Pid)
		return
	case <-time.After(r.terminateTimeout()):
	}

	r.logger.Warn("reviewer: process did not terminate, killing", "pid", cmd.Process.Pid)
	killProcess(cmd)
	select {
	case <-waitDone:
		r.logger.Info("reviewer: process killed", "pid", cmd.Process.Pid)
	case <-time.After(r.killTimeout()):
		r.logger.Error("reviewer: failed to kill process", "pid", cmd.Process.Pid)
	}
}

// startMonitor attaches the optional Monitor. Failure to start is
// logged and ignored; the returned channel is nil in that case, which
// blocks forever in the supervision select.
func (r *Reviewer) startMonitor(ctx context.Context, info MonitorInfo) <-chan Signal {
	if r.Monitor == nil {
		return nil
	}
	signals, err := r.Monitor.Start(ctx, info)
	if err != nil {
		r.logger.Error("reviewer: monitor failed to start", "error", err)
		return nil
	}
	return signals
}

// collectReviewFiles lists the session's review inputs for display by a
// Monitor: the index first, then task files in name order.
func collectReviewFiles(sessionDir string) []string {
	var files []string
	if index := filepath.Join(sessionDir, "ReviewIndex.md"); fileExists(index) {
		files = append(files, index)
	}
	tasks, _ := filepath.Glob(filepath.Join(sessionDir, "Task*.md"))
	sort.Strings(tasks)
	return append(files, tasks...)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// mergedEnv overlays the profile's environment variables onto the
// parent environment.
func mergedEnv(overlay map[string]string) []string {
	env := os.Environ()
	for k, v := range overlay {
		env = append(env, k+"="+v)
	}
	return env
}
