package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rahul/deskpilot/internal/plan"
	"github.com/rahul/deskpilot/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestInitializeJSONLogger(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf bytes.Buffer
	Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "deskpilot"}, zapcore.AddSync(&buf))

	GetLogger().Named("executor").Info("step completed", Event(EventTypeStep), zap.Int("step_index", 2))
	Sync()

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "deskpilot.executor", entry["logger"])
	assert.Equal(t, "step completed", entry["msg"])
	assert.Equal(t, "step", entry["event"])
	assert.EqualValues(t, 2, entry["step_index"])
}

func TestInitializeRespectsLevel(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf bytes.Buffer
	Initialize(config.LoggerConfig{Level: "warn", Format: "json"}, zapcore.AddSync(&buf))
	GetLogger().Info("hidden")
	GetLogger().Warn("shown")
	Sync()

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestInitializeWritesLogFile(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	path := filepath.Join(t.TempDir(), "deskpilot.log")
	var console bytes.Buffer
	Initialize(config.LoggerConfig{Level: "debug", Format: "console", LogFile: path, MaxSize: 1}, zapcore.AddSync(&console))
	GetLogger().Debug("to file", Event(EventTypeMemory))
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"event":"memory"`)
	assert.Contains(t, console.String(), "to file")
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	ResetForTest()
	assert.NotNil(t, GetLogger())
}

func TestFormatting(t *testing.T) {
	p := plan.New(
		plan.NewAction(plan.KindOpenApp, map[string]any{"name": "notepad"}),
		plan.NewAction(plan.KindReadScreen, nil),
	)
	out := FormatPlan(p)
	assert.Equal(t, 2, strings.Count(out, "\n"))
	assert.Contains(t, out, ` 1. open_app {"name":"notepad"}`)
	assert.Contains(t, out, " 2. read_screen")

	line := FormatStep(plan.Step{Index: 0, Action: plan.KindType, Status: plan.StepFailed, Message: "boom"})
	assert.Contains(t, line, "[1] type")
	assert.Contains(t, line, "boom")
}

func TestRunCounters(t *testing.T) {
	SetStatus(RoleExecuting, "open notepad")
	BeginRun()
	_, task, runs, _ := GetStatus()
	assert.Equal(t, "open notepad", task)
	assert.Equal(t, 1, runs)

	EndRun()
	role, task, runs, _ := GetStatus()
	assert.Equal(t, RoleIdle, role)
	assert.Empty(t, task)
	assert.Zero(t, runs)
}
