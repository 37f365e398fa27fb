package vision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/rahul/deskpilot/internal/desktop"
)

// Screenshot is a captured PNG file. Left and Top are the screen coordinates
// of its top-left pixel; they are negative when a monitor sits left of or
// above the primary one.
type Screenshot struct {
	Path      string
	Left, Top int
}

// Capturer takes a screenshot. The caller owns the file.
type Capturer interface {
	Capture(ctx context.Context) (Screenshot, error)
}

// ScreenCapturer shells out to the platform screenshot tool.
type ScreenCapturer struct {
	run     desktop.Runner
	dir     string
	display string
	goos    string
}

func NewScreenCapturer(run desktop.Runner, dir, display string) *ScreenCapturer {
	if run == nil {
		run = desktop.ExecRunner{}
	}
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "deskpilot")
	}
	if display == "" {
		display = ":0.0"
	}
	return &ScreenCapturer{run: run, dir: dir, display: display, goos: runtime.GOOS}
}

func (c *ScreenCapturer) Capture(ctx context.Context) (Screenshot, error) {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return Screenshot{}, fmt.Errorf("failed to create capture directory: %w", err)
	}
	path := filepath.Join(c.dir, fmt.Sprintf("screen_%d.png", time.Now().UnixNano()))

	var lastErr error
	for _, argv := range captureCommands(c.goos, c.display, path) {
		out, err := c.run.Run(ctx, argv[0], argv[1:]...)
		if err != nil {
			lastErr = err
			continue
		}
		shot := Screenshot{Path: path}
		if c.goos == "windows" {
			// the virtual screen origin is printed after the save
			if shot.Left, shot.Top, err = parseOrigin(out); err != nil {
				os.Remove(path)
				return Screenshot{}, err
			}
		}
		return shot, nil
	}
	return Screenshot{}, fmt.Errorf("failed to capture screen: %w", lastErr)
}

// parseOrigin reads the "left,top" line the Windows capture script prints.
func parseOrigin(out []byte) (int, int, error) {
	lines := strings.Fields(strings.TrimSpace(string(out)))
	if len(lines) == 0 {
		return 0, 0, fmt.Errorf("capture did not report the screen origin")
	}
	left, top, ok := strings.Cut(lines[len(lines)-1], ",")
	if !ok {
		return 0, 0, fmt.Errorf("malformed screen origin %q", lines[len(lines)-1])
	}
	x, errX := strconv.Atoi(left)
	y, errY := strconv.Atoi(top)
	if errX != nil || errY != nil {
		return 0, 0, fmt.Errorf("malformed screen origin %q", lines[len(lines)-1])
	}
	return x, y, nil
}

// captureCommands lists the screenshot commands to try in order.
func captureCommands(goos, display, path string) [][]string {
	switch goos {
	case "windows":
		return [][]string{{"powershell", "-NoProfile", "-NonInteractive", "-Command", powershellCapture(path)}}
	case "darwin":
		return [][]string{{"screencapture", "-x", path}}
	default:
		return [][]string{
			{"ffmpeg", "-f", "x11grab", "-i", display, "-frames:v", "1", path, "-y"},
			{"scrot", "--overwrite", path},
		}
	}
}

func powershellCapture(path string) string {
	quoted := "'" + strings.ReplaceAll(path, "'", "''") + "'"
	return strings.Join([]string{
		"Add-Type -AssemblyName System.Windows.Forms,System.Drawing",
		"$b = [System.Windows.Forms.SystemInformation]::VirtualScreen",
		"$bmp = New-Object System.Drawing.Bitmap $b.Width, $b.Height",
		"$g = [System.Drawing.Graphics]::FromImage($bmp)",
		"$g.CopyFromScreen($b.Left, $b.Top, 0, 0, $bmp.Size)",
		"$bmp.Save(" + quoted + ", [System.Drawing.Imaging.ImageFormat]::Png)",
		"$g.Dispose()",
		"$bmp.Dispose()",
		"Write-Output ('{0},{1}' -f $b.Left, $b.Top)",
	}, "; ")
}
