package observability

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rahul/deskpilot/internal/plan"
	"golang.org/x/term"
)

var startTime = time.Now()

const (
	colorReset    = "\033[0m"
	colorBold     = "\033[1m"
	colorPurple   = "\033[35m"
	colorGreen    = "\033[32m"
	colorRed      = "\033[31m"
	colorNeonCyan = "\033[96m"
	colorNeonMag  = "\033[95m"
)

var radarFrames = []string{"◜", "◝", "◞", "◟"}
var radarIdx = 0

// termMu serialises all terminal output so the status line's cursor
// save/restore can never be interleaved with a log write.
var termMu sync.Mutex

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	return w
}

// IsTerminal reports whether f is attached to an interactive terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

type termWriter struct{}

func (tw termWriter) Write(p []byte) (n int, err error) {
	termMu.Lock()
	defer termMu.Unlock()
	return os.Stderr.Write(p)
}

func (tw termWriter) Sync() error { return nil }

// NewTermWriter returns a writer for log output that shares termMu with the
// status line.
func NewTermWriter() *termWriter {
	return &termWriter{}
}

const banner = `
    ____            __         _ __      __
   / __ \___  _____/ /______  (_) /___  / /_
  / / / / _ \/ ___/ //_/ __ \/ / / __ \/ __/
 / /_/ /  __(__  ) ,< / /_/ / / / /_/ / /_
/_____/\___/____/_/|_/ .___/_/_/\____/\__/
                    /_/
        >> PLAN . VALIDATE . EXECUTE . SEE <<
`

func PrintBanner(w io.Writer) {
	width := termWidth()
	for _, l := range strings.Split(banner, "\n") {
		padding := (width - len(l)) / 2
		if padding < 0 {
			padding = 0
		}
		fmt.Fprintf(w, "%s%s%s\n", strings.Repeat(" ", padding), colorNeonCyan+l, colorReset)
	}
}

// InitializeTerminal reserves the top rows for the banner and status line and
// scrolls logs below them.
func InitializeTerminal() {
	fmt.Print("\033[2J\033[H")
	PrintBanner(os.Stdout)
	fmt.Print("\033[12;r")
	fmt.Print("\033[12;1H")
}

func CleanupTerminal() {
	fmt.Print("\033[r\033[2J\033[H")
}

// FormatPlan renders a numbered plan for confirmation prompts.
func FormatPlan(p plan.Plan) string {
	var b strings.Builder
	for i, a := range p.Actions {
		fmt.Fprintf(&b, "%2d. %s\n", i+1, a.Describe())
	}
	return b.String()
}

// FormatStep renders one progress event as a single colored line.
func FormatStep(s plan.Step) string {
	icon, color := "▶", colorNeonCyan
	switch s.Status {
	case plan.StepCompleted:
		icon, color = "✔", colorGreen
	case plan.StepFailed:
		icon, color = "✘", colorRed
	}
	line := fmt.Sprintf("%s%s [%d] %s%s", color, icon, s.Index+1, s.Action, colorReset)
	if s.Message != "" {
		line += " " + s.Message
	}
	return line
}

// PrintLiveStatus redraws the status line at row 10.
func PrintLiveStatus() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(startTime).Round(time.Second)
	memMB := float64(m.Alloc) / 1024 / 1024

	role, task, runs, lastHB := GetStatus()

	pulseIcon, pulseText, pulseColor := "🔴", "OFFLINE", colorNeonMag
	delta := time.Since(lastHB)
	if delta < 40*time.Second {
		pulseIcon, pulseText, pulseColor = "🟢", "HEALTHY", colorNeonCyan
	} else if delta < 90*time.Second {
		pulseIcon, pulseText, pulseColor = "🟡", "LAGGING", colorPurple
	}

	roleColor := colorReset
	switch role {
	case RolePlanning, RoleWaiting:
		roleColor = colorNeonCyan
	case RoleExecuting:
		roleColor = colorNeonMag
	}

	radar := " "
	if role != RoleIdle {
		radar = radarFrames[radarIdx]
		radarIdx = (radarIdx + 1) % len(radarFrames)
	}

	displayTask := task
	if displayTask == "" {
		displayTask = "Waiting..."
	}
	if len(displayTask) > 25 {
		displayTask = displayTask[:22] + "..."
	}

	totalMB := float64(m.Sys) / 1024 / 1024
	barWidth := 20
	filled := clamp(int(memMB/totalMB*float64(barWidth)), 0, barWidth)
	bar := strings.Repeat("█", filled) + strings.Repeat("▒", barWidth-filled)

	statusStr := fmt.Sprintf(
		"\033[s\033[10;1H\033[K%s[%s] %s%s %-8s%s | %s%s%-9s%s runs:%d [%s] %s%s%s [%v] [%s %.1fMB]\033[u",
		colorReset,
		lastHB.Format("15:04:05"),
		pulseColor, pulseIcon, pulseText, colorReset,
		roleColor, colorBold, role, colorReset,
		runs,
		displayTask,
		colorPurple, radar, colorReset,
		uptime,
		bar, memMB,
	)

	termMu.Lock()
	fmt.Print(statusStr)
	termMu.Unlock()
}
