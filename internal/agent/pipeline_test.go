package agent

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/rahul/deskpilot/internal/executor"
	"github.com/rahul/deskpilot/internal/memory"
	"github.com/rahul/deskpilot/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type nopAdapter struct{ calls int }

func (a *nopAdapter) OpenApp(context.Context, string) error { a.calls++; return nil }
func (a *nopAdapter) CloseApp(context.Context, string) error { a.calls++; return nil }
func (a *nopAdapter) Type(context.Context, string) error { a.calls++; return nil }
func (a *nopAdapter) Press(context.Context, string) error { a.calls++; return nil }
func (a *nopAdapter) Wait(context.Context, time.Duration) error { a.calls++; return nil }
func (a *nopAdapter) Click(context.Context, int, int) error { a.calls++; return nil }

func TestPipeline_SuccessfulPlanIsReplayedFromMemory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "learned_plans.json")
	mem, err := memory.Open(path, zap.NewNop())
	require.NoError(t, err)

	c := &scriptedCompletion{reply: `{"actions":[{"action":"open_app","params":{"name":"notepad"}},{"action":"wait","params":{"seconds":2}},{"action":"type","params":{"text":"hello"}}]}`}
	g := newTestGenerator(c, mem)
	adapter := &nopAdapter{}
	exec := executor.New(adapter, config.ExecutorConfig{RetryDelay: time.Millisecond}, zap.NewNop(), executor.WithMemory(mem))

	const request = "  Open Notepad and type hello "
	first := g.Generate(context.Background(), request, DesktopContext{})
	require.Equal(t, 3, first.Len())
	out := exec.Run(context.Background(), request, first, nil)
	require.True(t, out.Succeeded(), out.Message)
	assert.Equal(t, 3, adapter.calls)

	entries := mem.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "open notepad and type hello", entries[0].Request)

	second := g.Generate(context.Background(), "open notepad and type hello", DesktopContext{})
	assert.Equal(t, 1, c.calls, "a remembered request skips the completion")

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, firstJSON, secondJSON)

	reopened, err := memory.Open(path, zap.NewNop())
	require.NoError(t, err)
	third := newTestGenerator(c, reopened).Generate(context.Background(), "OPEN NOTEPAD AND TYPE HELLO", DesktopContext{})
	thirdJSON, err := json.Marshal(third)
	require.NoError(t, err)
	assert.Equal(t, firstJSON, thirdJSON)
	assert.Equal(t, 1, c.calls)
}

func TestPipeline_FailedPlanIsNotRemembered(t *testing.T) {
	mem, err := memory.Open(filepath.Join(t.TempDir(), "learned_plans.json"), zap.NewNop())
	require.NoError(t, err)

	c := &scriptedCompletion{reply: `{"actions":[{"action":"focus_window","params":{"title":"Notepad"}}]}`}
	g := newTestGenerator(c, mem)
	exec := executor.New(&nopAdapter{}, config.ExecutorConfig{}, zap.NewNop(), executor.WithMemory(mem))

	p := g.Generate(context.Background(), "focus notepad", DesktopContext{})
	out := exec.Run(context.Background(), "focus notepad", p, nil)
	assert.False(t, out.Succeeded())
	assert.Zero(t, mem.Len())

	g.Generate(context.Background(), "focus notepad", DesktopContext{})
	assert.Equal(t, 2, c.calls)
}
