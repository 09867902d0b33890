package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/ivanoskov/custody_admin/internal/charts"
	"github.com/ivanoskov/custody_admin/internal/ledger"
	"github.com/ivanoskov/custody_admin/internal/model"
	"github.com/ivanoskov/custody_admin/internal/query"
	"github.com/ivanoskov/custody_admin/internal/session"
	"github.com/ivanoskov/custody_admin/internal/workflow"
)

// Sender часть tgbotapi.BotAPI, которой пользуется консоль.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Sessions часть менеджера сессии, нужная консоли.
type Sessions interface {
	Login(ctx context.Context, identifier, secret string) (session.Session, error)
	Logout(ctx context.Context) error
	IsAuthenticated() bool
	Identity() (model.Operator, bool)
}

// Flows операции одного чата. У каждого оператора свои формы и отправки.
type Flows struct {
	Credit   *workflow.Workflow[workflow.CreditWalletForm, ledger.Result]
	Transfer *workflow.Workflow[workflow.TransferForm, ledger.Result]
	Evacuate *workflow.Workflow[workflow.EvacuateForm, model.EvacuationReport]
	Push     *workflow.Workflow[workflow.PushForm, ledger.Result]
}

func (f *Flows) close() {
	f.Credit.Close()
	f.Transfer.Close()
	f.Evacuate.Close()
	f.Push.Close()
}

type Deps struct {
	Sender    Sender
	Sessions  Sessions
	Resources *query.Resources
	// NewFlows создаёт операции чата при первом обращении к ним.
	NewFlows  func(chatID int64) *Flows
	Charts    *charts.ChartGenerator
	// Operators чаты, которым разрешено управлять консолью.
	Operators []int64
	Logger    *zap.Logger
	// Async запускает отправку операции; по умолчанию в отдельной горутине.
	Async     func(func())
}

type Bot struct {
	api       Sender
	sessions  Sessions
	resources *query.Resources
	newFlows  func(chatID int64) *Flows
	charts    *charts.ChartGenerator
	operators map[int64]bool
	log       *zap.Logger
	async     func(func())
	html      *bluemonday.Policy

	mu         sync.Mutex
	flows      map[int64]*Flows
	states     map[int64]*model.ChatState
	candidates map[int64][]model.User
	reports    map[int64]*model.EvacuationReport
}

func New(d Deps) (*Bot, error) {
	if d.Sender == nil || d.Sessions == nil || d.Resources == nil {
		return nil, errors.New("bot: sender, sessions and resources are required")
	}
	if d.NewFlows == nil {
		return nil, errors.New("bot: workflow factory is required")
	}
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	async := d.Async
	if async == nil {
		async = func(f func()) { go f() }
	}
	gen := d.Charts
	if gen == nil {
		gen = charts.NewChartGenerator()
	}
	ops := make(map[int64]bool, len(d.Operators))
	for _, id := range d.Operators {
		ops[id] = true
	}
	return &Bot{
		api:        d.Sender,
		sessions:   d.Sessions,
		resources:  d.Resources,
		newFlows:   d.NewFlows,
		charts:     gen,
		operators:  ops,
		log:        log,
		async:      async,
		html:       markupPolicy(),
		flows:      make(map[int64]*Flows),
		states:     make(map[int64]*model.ChatState),
		candidates: make(map[int64][]model.User),
		reports:    make(map[int64]*model.EvacuationReport),
	}, nil
}

// Start обрабатывает обновления long polling до отмены ctx.
func (b *Bot) Start(ctx context.Context, updates tgbotapi.UpdatesChannel) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// HandleWebhook точка входа для webhook-обновлений.
func (b *Bot) HandleWebhook(ctx context.Context, body []byte) error {
	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		return fmt.Errorf("failed to decode update: %w", err)
	}
	b.HandleUpdate(ctx, update)
	return nil
}

func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	var chatID int64
	switch {
	case update.Message != nil && update.Message.Chat != nil:
		chatID = update.Message.Chat.ID
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		chatID = update.CallbackQuery.Message.Chat.ID
	default:
		return
	}

	if !b.operators[chatID] {
		b.log.Warn("update from unknown chat ignored", zap.Int64("chat_id", chatID))
		if update.Message != nil {
			b.reply(chatID, "⛔ Доступ запрещён")
		}
		return
	}

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	default:
		b.handleMessage(ctx, update.Message)
	}
}

// markupPolicy пропускает только теги, которые понимает Telegram.
func markupPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("b", "strong", "i", "em", "u", "s", "code", "pre")
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("https", "tg")
	return p
}

// flowsFor возвращает операции чата, создавая их при первом обращении.
func (b *Bot) flowsFor(chatID int64) *Flows {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, ok := b.flows[chatID]
	if !ok {
		f = b.newFlows(chatID)
		b.flows[chatID] = f
	}
	return f
}

// SessionLost вызывается при инвалидации сессии: закрывает формы всех чатов и
// сообщает операторам.
func (b *Bot) SessionLost(reason error) {
	b.mu.Lock()
	open := make([]*Flows, 0, len(b.flows))
	for _, f := range b.flows {
		open = append(open, f)
	}
	b.states = make(map[int64]*model.ChatState)
	b.candidates = make(map[int64][]model.User)
	b.reports = make(map[int64]*model.EvacuationReport)
	b.mu.Unlock()

	for _, f := range open {
		f.close()
	}

	if errors.Is(reason, session.ErrLoggedOut) {
		return
	}
	for id := range b.operators {
		b.reply(id, "🔒 Сессия завершена сервером. Войдите снова: /login")
	}
}

func (b *Bot) state(chatID int64) *model.ChatState {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.states[chatID]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

func (b *Bot) setState(chatID int64, dialog, step, scratch string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.states[chatID] = &model.ChatState{
		ChatID:    chatID,
		Dialog:    dialog,
		Step:      step,
		Scratch:   scratch,
		UpdatedAt: time.Now(),
	}
}

func (b *Bot) clearState(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.states, chatID)
	delete(b.candidates, chatID)
}

// esc экранирует текст от сервера или оператора для HTML-разметки.
func (b *Bot) esc(s string) string {
	return html.EscapeString(s)
}

func (b *Bot) reply(chatID int64, text string) {
	b.send(chatID, text, nil)
}

func (b *Bot) send(chatID int64, text string, markup interface{}) {
	msg := tgbotapi.NewMessage(chatID, b.html.Sanitize(text))
	msg.ParseMode = tgbotapi.ModeHTML
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	b.reply(chatID, "❌ "+text)
}
