//go:build !windows

package reviewer

import (
	"os/exec"
	"syscall"
)

// platformArgs returns the argument vector unchanged; no interpreter
// wrapper is needed outside Windows.
func platformArgs(args []string) []string {
	return args
}

// configureProcess puts the child in its own process group so that
// termination signals reach any grandchildren the CLI tool spawns.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func signalProcess(cmd *exec.Cmd, sig syscall.Signal) {
	if cmd.Process == nil {
		return
	}
	// Negative pid targets the whole group. Fall back to the single
	// process if the group is already gone.
	if err := syscall.Kill(-cmd.Process.Pid, sig); err != nil {
		_ = cmd.Process.Signal(sig)
	}
}

func terminateProcess(cmd *exec.Cmd) {
	signalProcess(cmd, syscall.SIGTERM)
}

func killProcess(cmd *exec.Cmd) {
	signalProcess(cmd, syscall.SIGKILL)
}
