//go:build windows

package reviewer

import "os/exec"

// platformArgs wraps the invocation in cmd.exe. npm-installed CLI tools
// are .cmd batch files on Windows and cannot be spawned directly.
func platformArgs(args []string) []string {
	return append([]string{"cmd.exe", "/c"}, args...)
}

func configureProcess(cmd *exec.Cmd) {}

// Windows has no graceful termination signal for console children
// spawned this way, so both stages kill outright.
func terminateProcess(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

func killProcess(cmd *exec.Cmd) {
	terminateProcess(cmd)
}
