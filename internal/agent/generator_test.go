package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/rahul/deskpilot/internal/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms/fake"
	"go.uber.org/zap"
)

type scriptedCompletion struct {
	reply   string
	err     error
	calls   int
	prompts []string
}

func (c *scriptedCompletion) Complete(_ context.Context, _ string, prompt string) (string, error) {
	c.calls++
	c.prompts = append(c.prompts, prompt)
	return c.reply, c.err
}

type mapLookup map[string]plan.Plan

func (m mapLookup) Lookup(request string) (plan.Plan, bool) {
	p, ok := m[request]
	return p, ok
}

func newTestGenerator(c Completion, memory PlanLookup) *Generator {
	return NewGenerator(c, NewPromptManager(""), memory, zap.NewNop())
}

func TestGenerator_ParsesFencedReply(t *testing.T) {
	c := &scriptedCompletion{reply: "```json\n" + `{"actions":[{"action":"open_app","params":{"name":"notepad"}},{"action":"wait","params":{"seconds":2}},{"action":"type","params":{"text":"hello"}}]}` + "\n```"}
	g := newTestGenerator(c, nil)

	p := g.Generate(context.Background(), "Open Notepad and type hello", DesktopContext{ActiveWindow: "Desktop"})
	require.Equal(t, 3, p.Len())
	assert.Empty(t, p.Error)
	assert.Equal(t, plan.KindOpenApp, p.Actions[0].Name)
	text, _ := p.Actions[2].StringParam("text")
	assert.Equal(t, "hello", text)
	require.Len(t, c.prompts, 1)
	assert.Contains(t, c.prompts[0], "Open Notepad and type hello")
	assert.Contains(t, c.prompts[0], "Desktop")
}

func TestGenerator_MemoryHitSkipsCompletion(t *testing.T) {
	remembered := plan.New(plan.NewAction(plan.KindOpenApp, map[string]any{"name": "calc"}))
	c := &scriptedCompletion{}
	g := newTestGenerator(c, mapLookup{"open calculator": remembered})

	p := g.Generate(context.Background(), "open calculator", DesktopContext{})
	assert.Equal(t, remembered, p)
	assert.Zero(t, c.calls)
}

func TestGenerator_DegradesToEmptyPlan(t *testing.T) {
	tests := []struct {
		name    string
		c       *scriptedCompletion
		snippet string
	}{
		{"collaborator error", &scriptedCompletion{err: errors.New("rate limited")}, "rate limited"},
		{"prose", &scriptedCompletion{reply: "Sure! I will open notepad for you."}, "could not parse"},
		{"missing actions", &scriptedCompletion{reply: `{"steps":[]}`}, "no actions"},
		{"actions not a list", &scriptedCompletion{reply: `{"actions":"open notepad"}`}, "could not parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestGenerator(tt.c, nil).Generate(context.Background(), "do it", DesktopContext{})
			assert.True(t, p.IsEmpty())
			assert.NotNil(t, p.Actions)
			assert.Contains(t, p.Error, tt.snippet)
		})
	}
}

func TestGenerator_ModelRefusalKeepsDiagnostic(t *testing.T) {
	c := &scriptedCompletion{reply: `{"actions": [], "error": "cannot print documents"}`}
	p := newTestGenerator(c, nil).Generate(context.Background(), "print my file", DesktopContext{})
	assert.True(t, p.IsEmpty())
	assert.Equal(t, "cannot print documents", p.Error)
}

func TestGenerator_NoCompletion(t *testing.T) {
	p := newTestGenerator(nil, nil).Generate(context.Background(), "anything", DesktopContext{})
	assert.True(t, p.IsEmpty())
	assert.Contains(t, p.Error, "no completion")
}

func TestExtractJSON(t *testing.T) {
	tests := map[string]string{
		`{"actions":[]}`:                             `{"actions":[]}`,
		"```\n{\"actions\":[]}\n```":                 `{"actions":[]}`,
		"```json\n{\"actions\":[]}```":               `{"actions":[]}`,
		"Here is the plan: {\"actions\":[]} Enjoy!": `{"actions":[]}`,
		"no json here":                               "no json here",
	}
	for in, want := range tests {
		assert.Equal(t, want, extractJSON(in), in)
	}
}

func TestLLMCompletion_UsesModel(t *testing.T) {
	model := fake.NewFakeLLM([]string{`{"actions":[]}`})
	c := NewLLMCompletion(model, zap.NewNop())

	out, err := c.Complete(context.Background(), "You are a planner.", "open notepad")
	require.NoError(t, err)
	assert.Equal(t, `{"actions":[]}`, out)
}
