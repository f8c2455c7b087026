package reviewer

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/ldr123/VetMediatorMCP/internal/textenc"
)

// captureLog streams the child's merged stdout/stderr into a UTF-8 log
// file, decoding each line leniently so a tool emitting GBK or broken
// bytes cannot corrupt the log. Capture failures never fail the review.
func (r *Reviewer) captureLog(src io.Reader, logPath string) {
	f, err := os.Create(logPath)
	if err != nil {
		r.logger.Error("reviewer: cannot create log file", "path", logPath, "error", err)
		_, _ = io.Copy(io.Discard, src)
		return
	}
	defer f.Close()

	reader := bufio.NewReader(src)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			text := textenc.DecodeBytes(line, false)
			if _, werr := f.WriteString(text); werr != nil {
				r.logger.Error("reviewer: log write failed", "path", logPath, "error", werr)
			}
			// Flush per line so the watchdog sees activity promptly.
			_ = f.Sync()
		}
		if err != nil {
			if err != io.EOF {
				r.logger.Error("reviewer: log capture error", "error", err)
			}
			return
		}
	}
}

// readLogTail returns the last n lines of the log, or "" when the log
// is missing or unreadable.
func (r *Reviewer) readLogTail(logPath string, n int) string {
	content, err := textenc.ReadFile(logPath, true)
	if err != nil {
		return ""
	}
	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
