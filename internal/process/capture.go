package process

import (
	"fmt"
	"strings"
	"sync"
)

// defaultCaptureLines bounds how much combined output a handle retains for diagnostics.
const defaultCaptureLines = 500

// logCapture keeps the most recent lines of a process's combined output.
type logCapture struct {
	mu    sync.RWMutex
	lines []string
	max   int
	total int
}

func newLogCapture(max int) *logCapture {
	if max <= 0 {
		max = defaultCaptureLines
	}
	return &logCapture{max: max}
}

func (lc *logCapture) add(line string) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	lc.total++
	if len(lc.lines) == lc.max {
		copy(lc.lines, lc.lines[1:])
		lc.lines[len(lc.lines)-1] = line
		return
	}
	lc.lines = append(lc.lines, line)
}

// text returns the retained lines joined by newlines, noting how many were dropped.
func (lc *logCapture) text() string {
	lc.mu.RLock()
	defer lc.mu.RUnlock()

	var b strings.Builder
	if dropped := lc.total - len(lc.lines); dropped > 0 {
		fmt.Fprintf(&b, "... (%d earlier lines omitted)\n", dropped)
	}
	for _, line := range lc.lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
