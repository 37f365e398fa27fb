package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rahul/deskpilot/internal/agent"
	"github.com/rahul/deskpilot/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := map[string]any{
		"memory":  map[string]any{"path": filepath.Join(dir, "learned_plans.json")},
		"history": map[string]any{"enabled": false},
		"logger":  map[string]any{"level": "error"},
	}
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	cfg := writeConfig(t)
	dir := filepath.Dir(cfg)

	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"actions":[{"action":"open_app","params":{"name":"notepad"}}]}`), 0644))
	out, err := execute(t, "-c", cfg, "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "open_app")
	assert.Contains(t, out, "allow")

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"actions":[{"action":"run_shell","params":{"cmd":"ls"}}]}`), 0644))
	out, err = execute(t, "-c", cfg, "validate", bad)
	assert.Error(t, err)
	assert.Contains(t, out, "deny")
}

func TestMemoryCommands(t *testing.T) {
	cfg := writeConfig(t)

	out, err := execute(t, "-c", cfg, "memory", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "no remembered plans")

	_, err = execute(t, "-c", cfg, "memory", "forget", "open", "notepad")
	assert.ErrorContains(t, err, `no plan remembered for "open notepad"`)
}

func TestHistoryDisabled(t *testing.T) {
	cfg := writeConfig(t)
	_, err := execute(t, "-c", cfg, "history")
	assert.ErrorContains(t, err, "history is disabled")
}

func TestReportError(t *testing.T) {
	assert.NoError(t, reportError(agent.Report{Status: agent.ReportCompleted}))
	assert.NoError(t, reportError(agent.Report{Status: agent.ReportNoop}))
	assert.NoError(t, reportError(agent.Report{Status: agent.ReportDeclined, Reason: "plan was not approved"}))

	err := reportError(agent.Report{Status: agent.ReportDeclined, ConfirmErr: gateway.ErrNotInteractive})
	assert.ErrorIs(t, err, gateway.ErrNotInteractive)

	assert.Error(t, reportError(agent.Report{Status: agent.ReportRejected, Reason: "blocked"}))
	assert.Error(t, reportError(agent.Report{Status: agent.ReportFailed, Reason: "step 1 failed"}))
}
