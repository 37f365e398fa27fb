package desktop

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	deskerrors "github.com/rahul/deskpilot/internal/errors"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// DefaultApps maps friendly application names to launch commands for the
// current platform. Config entries take precedence.
func DefaultApps() map[string]string {
	switch runtime.GOOS {
	case "windows":
		return map[string]string{
			"notepad":    "notepad.exe",
			"calculator": "calc.exe",
			"paint":      "mspaint.exe",
			"explorer":   "explorer.exe",
			"terminal":   "cmd.exe",
			"browser":    "msedge.exe",
			"edge":       "msedge.exe",
			"chrome":     "chrome.exe",
		}
	case "darwin":
		return map[string]string{
			"notepad":    "open -a TextEdit",
			"textedit":   "open -a TextEdit",
			"calculator": "open -a Calculator",
			"terminal":   "open -a Terminal",
			"browser":    "open -a Safari",
			"finder":     "open -a Finder",
		}
	default:
		return map[string]string{
			"notepad":    "gedit",
			"editor":     "gedit",
			"calculator": "gnome-calculator",
			"terminal":   "x-terminal-emulator",
			"browser":    "firefox",
			"files":      "nautilus",
		}
	}
}

// RunningProcess is the subset of a process the manager needs.
type RunningProcess struct {
	PID       int32
	Name      string
	Terminate func(ctx context.Context) error
}

// ProcessManager launches applications by friendly name and terminates them
// by executable name.
type ProcessManager struct {
	apps     map[string]string
	lookPath func(string) (string, error)
	start    func(path string, args []string) (int, error)
	list     func(ctx context.Context) ([]RunningProcess, error)
	logger   *zap.Logger
}

func NewProcessManager(apps map[string]string, logger *zap.Logger) *ProcessManager {
	merged := DefaultApps()
	for k, v := range apps {
		merged[strings.ToLower(k)] = v
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcessManager{
		apps:     merged,
		lookPath: exec.LookPath,
		start:    startDetached,
		list:     listProcesses,
		logger:   logger,
	}
}

// command resolves name to an argv through the alias table. Unknown names
// launch themselves.
func (m *ProcessManager) command(name string) []string {
	key := strings.ToLower(strings.TrimSpace(name))
	if cmd, ok := m.apps[key]; ok {
		return strings.Fields(cmd)
	}
	return []string{strings.TrimSpace(name)}
}

// Launch starts the application and returns its pid without waiting for it.
func (m *ProcessManager) Launch(ctx context.Context, name string) (int, error) {
	argv := m.command(name)
	if len(argv) == 0 || argv[0] == "" {
		return 0, deskerrors.New(deskerrors.CodeAppNotFound, "application name is empty")
	}
	path, err := m.lookPath(argv[0])
	if err != nil {
		if lower := strings.ToLower(argv[0]); lower != argv[0] {
			path, err = m.lookPath(lower)
		}
	}
	if err != nil {
		return 0, deskerrors.Wrap(deskerrors.CodeAppNotFound, err, fmt.Sprintf("application '%s' not found", name))
	}
	pid, err := m.start(path, argv[1:])
	if err != nil {
		return 0, fmt.Errorf("failed to launch %s: %w", name, err)
	}
	m.logger.Info("application launched", zap.String("app", name), zap.String("path", path), zap.Int("pid", pid))
	return pid, nil
}

// Close terminates every process whose executable matches name and returns
// how many were signalled.
func (m *ProcessManager) Close(ctx context.Context, name string) (int, error) {
	targets := m.processNames(name)
	procs, err := m.list(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list processes: %w", err)
	}

	closed := 0
	var lastErr error
	for _, p := range procs {
		if _, ok := targets[normalizeProcessName(p.Name)]; !ok {
			continue
		}
		if err := p.Terminate(ctx); err != nil {
			lastErr = err
			m.logger.Warn("failed to terminate process", zap.Int32("pid", p.PID), zap.String("name", p.Name), zap.Error(err))
			continue
		}
		closed++
	}
	if closed == 0 {
		if lastErr != nil {
			return 0, fmt.Errorf("failed to close %s: %w", name, lastErr)
		}
		return 0, deskerrors.New(deskerrors.CodeAppNotFound, fmt.Sprintf("application '%s' is not running", name))
	}
	m.logger.Info("application closed", zap.String("app", name), zap.Int("processes", closed))
	return closed, nil
}

// processNames lists the executable names that count as name: the name
// itself and the target of its alias.
func (m *ProcessManager) processNames(name string) map[string]struct{} {
	names := map[string]struct{}{normalizeProcessName(name): {}}
	argv := m.command(name)
	if len(argv) == 0 {
		return names
	}
	if filepath.Base(argv[0]) == "open" && len(argv) >= 3 && argv[1] == "-a" {
		names[normalizeProcessName(strings.Join(argv[2:], " "))] = struct{}{}
		return names
	}
	names[normalizeProcessName(argv[0])] = struct{}{}
	return names
}

func normalizeProcessName(name string) string {
	base := strings.ToLower(filepath.Base(strings.TrimSpace(name)))
	return strings.TrimSuffix(base, ".exe")
}

func startDetached(path string, args []string) (int, error) {
	cmd := exec.Command(path, args...)
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	// reap the child when it exits
	go cmd.Wait()
	return pid, nil
}

func listProcesses(ctx context.Context) ([]RunningProcess, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RunningProcess, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}
		out = append(out, RunningProcess{
			PID:       p.Pid,
			Name:      name,
			Terminate: p.TerminateWithContext,
		})
	}
	return out, nil
}
