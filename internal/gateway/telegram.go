package gateway

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rahul/deskpilot/internal/agent"
	"github.com/rahul/deskpilot/internal/observability"
	"github.com/rahul/deskpilot/internal/plan"
	"go.uber.org/zap"
)

// DefaultConfirmTimeout bounds how long a plan waits for a yes/no reply.
const DefaultConfirmTimeout = 2 * time.Minute

type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// TelegramGateway accepts requests from Telegram chats. Each plan is shown
// to the chat and runs only after the same chat answers yes.
type TelegramGateway struct {
	Bot            botAPI
	Handler        Handler
	ConfirmTimeout time.Duration

	allowed map[int64]struct{}
	logger  *zap.Logger

	mu      sync.Mutex
	pending map[int64]chan string
	busy    map[int64]bool
	wg      sync.WaitGroup
}

func NewTelegramGateway(token string, handler Handler, allowedChats []int64, logger *zap.Logger) (*TelegramGateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	gw := newTelegramGateway(bot, handler, allowedChats, logger)
	gw.logger.Info("telegram authorized", zap.String("account", bot.Self.UserName))
	return gw, nil
}

func newTelegramGateway(bot botAPI, handler Handler, allowedChats []int64, logger *zap.Logger) *TelegramGateway {
	if logger == nil {
		logger = observability.GetLogger()
	}
	allowed := make(map[int64]struct{}, len(allowedChats))
	for _, id := range allowedChats {
		allowed[id] = struct{}{}
	}
	return &TelegramGateway{
		Bot:            bot,
		Handler:        handler,
		ConfirmTimeout: DefaultConfirmTimeout,
		allowed:        allowed,
		logger:         logger.Named("telegram"),
		pending:        make(map[int64]chan string),
		busy:           make(map[int64]bool),
	}
}

// Start runs the update loop until ctx is done or the update channel closes,
// then waits for in-flight requests.
func (tg *TelegramGateway) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := tg.Bot.GetUpdatesChan(u)
	defer tg.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			tg.dispatch(ctx, update)
		}
	}
}

func (tg *TelegramGateway) dispatch(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || update.Message.Chat == nil {
		return
	}
	chatID := update.Message.Chat.ID
	text := strings.TrimSpace(update.Message.Text)
	if text == "" {
		return
	}
	if !tg.isAllowed(chatID) {
		tg.logger.Warn("ignoring message from unlisted chat", zap.Int64("chat_id", chatID))
		return
	}

	tg.mu.Lock()
	if reply, ok := tg.pending[chatID]; ok {
		delete(tg.pending, chatID)
		tg.mu.Unlock()
		reply <- text
		return
	}
	if tg.busy[chatID] {
		tg.mu.Unlock()
		tg.send(chatID, "Still working on the previous request.")
		return
	}
	tg.busy[chatID] = true
	tg.mu.Unlock()

	user := ""
	if update.Message.From != nil {
		user = update.Message.From.UserName
	}
	tg.logger.Info("request received", zap.Int64("chat_id", chatID), zap.String("user", user), zap.String("text", text))

	tg.wg.Add(1)
	go func() {
		defer tg.wg.Done()
		defer func() {
			tg.mu.Lock()
			delete(tg.busy, chatID)
			tg.mu.Unlock()
		}()
		report := tg.Handler.Handle(ctx, text, tg.confirmer(chatID), tg.observer(chatID))
		tg.send(chatID, FormatReport(report))
	}()
}

// confirmer asks the chat to approve a plan and waits for its next message.
func (tg *TelegramGateway) confirmer(chatID int64) agent.Confirmer {
	return agent.ConfirmFunc(func(ctx context.Context, request string, p plan.Plan) (bool, error) {
		reply := make(chan string, 1)
		tg.mu.Lock()
		tg.pending[chatID] = reply
		tg.mu.Unlock()
		defer func() {
			tg.mu.Lock()
			if tg.pending[chatID] == reply {
				delete(tg.pending, chatID)
			}
			tg.mu.Unlock()
		}()

		tg.send(chatID, FormatConfirmation(request, p)+"\nReply yes to run or no to cancel.")

		timer := time.NewTimer(tg.ConfirmTimeout)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
			return false, fmt.Errorf("no reply within %s", tg.ConfirmTimeout)
		case answer := <-reply:
			return isYes(answer), nil
		}
	})
}

// observer streams finished steps back to the chat.
func (tg *TelegramGateway) observer(chatID int64) func(context.Context, plan.Step) error {
	return func(_ context.Context, step plan.Step) error {
		if step.Status == plan.StepRunning {
			return nil
		}
		return tg.Send(strconv.FormatInt(chatID, 10), plainStep(step))
	}
}

func (tg *TelegramGateway) Send(chatID string, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid chat ID: %s", chatID)
	}
	msg := tgbotapi.NewMessage(id, text)
	_, err = tg.Bot.Send(msg)
	return err
}

func (tg *TelegramGateway) Stop() error {
	tg.Bot.StopReceivingUpdates()
	return nil
}

func (tg *TelegramGateway) send(chatID int64, text string) {
	if err := tg.Send(strconv.FormatInt(chatID, 10), text); err != nil {
		tg.logger.Warn("failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// isAllowed denies every chat when no allow list is configured.
func (tg *TelegramGateway) isAllowed(chatID int64) bool {
	_, ok := tg.allowed[chatID]
	return ok
}

func plainStep(s plan.Step) string {
	icon := "✔"
	if s.Status == plan.StepFailed {
		icon = "✘"
	}
	line := fmt.Sprintf("%s [%d] %s", icon, s.Index+1, s.Action)
	if s.Message != "" {
		line += ": " + s.Message
	}
	return line
}
