package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rahul/deskpilot/internal/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *RunStore {
	t.Helper()
	s, err := NewRunStore(filepath.Join(t.TempDir(), "history", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunStore_Lifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := plan.New(
		plan.NewAction(plan.KindOpenApp, map[string]any{"name": "notepad"}),
		plan.NewAction(plan.KindType, map[string]any{"text": "hello"}),
	)

	id, err := s.StartRun(ctx, "Open Notepad and type hello", p)
	require.NoError(t, err)
	require.Len(t, id, 36)

	for i, a := range p.Actions {
		require.NoError(t, s.RecordStep(ctx, id, plan.Step{Index: i, Action: a.Name, Status: plan.StepRunning}))
		require.NoError(t, s.RecordStep(ctx, id, plan.Step{Index: i, Action: a.Name, Status: plan.StepCompleted, Message: "ok"}))
	}
	require.NoError(t, s.FinishRun(ctx, id, "completed", "completed 2 action(s)"))

	runs, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "completed", runs[0].Status)
	assert.Equal(t, 2, runs[0].Plan.Len())
	require.NotNil(t, runs[0].FinishedAt)
	assert.False(t, runs[0].FinishedAt.Before(runs[0].StartedAt))

	steps, err := s.Steps(ctx, id)
	require.NoError(t, err)
	require.Len(t, steps, 4)
	assert.Equal(t, "open_app", steps[0].Action)
	assert.Equal(t, "running", steps[0].Status)
	assert.Equal(t, "completed", steps[3].Status)
	assert.Equal(t, 1, steps[3].Index)
}

func TestRunStore_RecentOrderAndLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for _, req := range []string{"first", "second", "third"} {
		_, err := s.StartRun(ctx, req, plan.Empty(""))
		require.NoError(t, err)
	}

	runs, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "third", runs[0].Request)
	assert.Equal(t, "second", runs[1].Request)
	assert.Equal(t, "running", runs[0].Status)
	assert.Nil(t, runs[0].FinishedAt)
}

func TestRunStore_FinishUnknownRun(t *testing.T) {
	s := openTestStore(t)
	assert.Error(t, s.FinishRun(context.Background(), "missing", "completed", ""))
}
