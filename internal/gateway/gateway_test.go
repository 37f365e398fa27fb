package gateway

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rahul/deskpilot/internal/agent"
	"github.com/rahul/deskpilot/internal/executor"
	"github.com/rahul/deskpilot/internal/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func notepad() plan.Plan {
	return plan.New(
		plan.NewAction(plan.KindOpenApp, map[string]any{"name": "notepad"}),
		plan.NewAction(plan.KindType, map[string]any{"text": "hello"}),
	)
}

func TestTerminalGateway_Confirm(t *testing.T) {
	var out bytes.Buffer
	tg := NewTerminalGatewayWith(strings.NewReader("yes\n"), &out, false, true)
	ok, err := tg.Confirm(context.Background(), "open notepad", notepad())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, out.String(), " 1. open_app")
	assert.Contains(t, out.String(), "[y/N]")

	tg = NewTerminalGatewayWith(strings.NewReader("\n"), &out, false, true)
	ok, err = tg.Confirm(context.Background(), "open notepad", notepad())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTerminalGateway_NonInteractive(t *testing.T) {
	var out bytes.Buffer
	tg := NewTerminalGatewayWith(strings.NewReader(""), &out, false, false)
	_, err := tg.Confirm(context.Background(), "r", notepad())
	assert.ErrorIs(t, err, ErrNotInteractive)

	tg = NewTerminalGatewayWith(strings.NewReader(""), &out, true, false)
	ok, err := tg.Confirm(context.Background(), "r", notepad())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFormatReport(t *testing.T) {
	r := agent.Report{Status: agent.ReportCompleted, Reason: "completed 2 action(s)",
		Outcome: plan.Outcome{Results: []string{"opened notepad", "typed 5 character(s)"}}}
	assert.Equal(t, "✔ Done: completed 2 action(s)\n 1. opened notepad\n 2. typed 5 character(s)", FormatReport(r))

	assert.Equal(t, "⛔ Rejected: Action 0 'run_shell' is blocked by safety policy",
		FormatReport(agent.Report{Status: agent.ReportRejected, Reason: "Action 0 'run_shell' is blocked by safety policy"}))
	assert.Equal(t, "Nothing to do: no actions were planned", FormatReport(agent.Report{Status: agent.ReportNoop}))
}

type fakeBot struct {
	updates chan tgbotapi.Update
	sent    chan tgbotapi.MessageConfig
	stopped bool
}

func newFakeBot() *fakeBot {
	return &fakeBot{updates: make(chan tgbotapi.Update), sent: make(chan tgbotapi.MessageConfig, 32)}
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.sent <- c.(tgbotapi.MessageConfig)
	return tgbotapi.Message{}, nil
}

func (b *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return b.updates
}

func (b *fakeBot) StopReceivingUpdates() { b.stopped = true }

func message(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}, Text: text}}
}

// confirmingHandler asks for confirmation and reports one completed step.
type confirmingHandler struct {
	mu       sync.Mutex
	requests []string
}

func (h *confirmingHandler) Handle(ctx context.Context, request string, confirm agent.Confirmer, observe executor.Observer) agent.Report {
	h.mu.Lock()
	h.requests = append(h.requests, request)
	h.mu.Unlock()

	ok, err := confirm.Confirm(ctx, request, notepad())
	if err != nil || !ok {
		return agent.Report{Request: request, Status: agent.ReportDeclined, Reason: "plan was not approved"}
	}
	_ = observe(ctx, plan.Step{Index: 0, Action: plan.KindOpenApp, Status: plan.StepRunning})
	_ = observe(ctx, plan.Step{Index: 0, Action: plan.KindOpenApp, Status: plan.StepCompleted, Message: "opened notepad"})
	return agent.Report{Request: request, Status: agent.ReportCompleted, Reason: "completed 1 action(s)"}
}

func nextSent(t *testing.T, b *fakeBot) tgbotapi.MessageConfig {
	t.Helper()
	select {
	case m := <-b.sent:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a bot message")
		return tgbotapi.MessageConfig{}
	}
}

func startGateway(t *testing.T, h Handler, allowed ...int64) (*fakeBot, *TelegramGateway, func()) {
	t.Helper()
	bot := newFakeBot()
	gw := newTelegramGateway(bot, h, allowed, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = gw.Start(ctx)
	}()
	return bot, gw, func() {
		cancel()
		<-done
	}
}

func TestTelegramGateway_ConfirmThenRun(t *testing.T) {
	h := &confirmingHandler{}
	bot, _, stop := startGateway(t, h, 42)
	defer stop()

	bot.updates <- message(42, "open notepad")
	prompt := nextSent(t, bot)
	assert.Equal(t, int64(42), prompt.ChatID)
	assert.Contains(t, prompt.Text, "Reply yes to run")
	assert.Contains(t, prompt.Text, "open_app")

	bot.updates <- message(42, "Yes")
	step := nextSent(t, bot)
	assert.Equal(t, "✔ [1] open_app: opened notepad", step.Text)
	final := nextSent(t, bot)
	assert.Equal(t, "✔ Done: completed 1 action(s)", final.Text)

	assert.Equal(t, []string{"open notepad"}, h.requests, "the confirmation reply is not a new request")
}

func TestTelegramGateway_DeclineAndIgnoreStrangers(t *testing.T) {
	h := &confirmingHandler{}
	bot, _, stop := startGateway(t, h, 42)
	defer stop()

	bot.updates <- message(7, "open notepad")
	bot.updates <- message(42, "open notepad")
	prompt := nextSent(t, bot)
	assert.Equal(t, int64(42), prompt.ChatID)

	bot.updates <- message(42, "no")
	final := nextSent(t, bot)
	assert.True(t, strings.HasPrefix(final.Text, "Cancelled"))

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Equal(t, []string{"open notepad"}, h.requests)
}

func TestTelegramGateway_ConfirmTimeout(t *testing.T) {
	h := &confirmingHandler{}
	bot := newFakeBot()
	gw := newTelegramGateway(bot, h, []int64{42}, zap.NewNop())
	gw.ConfirmTimeout = 20 * time.Millisecond

	ok, err := gw.confirmer(42).Confirm(context.Background(), "r", notepad())
	assert.False(t, ok)
	assert.Error(t, err)
	nextSent(t, bot)

	gw.mu.Lock()
	assert.Empty(t, gw.pending)
	gw.mu.Unlock()
}

func TestTelegramGateway_Send(t *testing.T) {
	bot := newFakeBot()
	gw := newTelegramGateway(bot, nil, nil, zap.NewNop())
	assert.Error(t, gw.Send("not-a-number", "x"))
	require.NoError(t, gw.Send("42", "hello"))
	assert.Equal(t, "hello", nextSent(t, bot).Text)

	require.NoError(t, gw.Stop())
	assert.True(t, bot.stopped)
}
