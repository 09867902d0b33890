package bot

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ivanoskov/custody_admin/internal/model"
	"github.com/ivanoskov/custody_admin/internal/query"
	"github.com/ivanoskov/custody_admin/internal/session"
)

const listLimit = 20

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	cmd := message.Command()
	args := strings.TrimSpace(message.CommandArguments())

	switch cmd {
	case "start", "help":
		b.handleStart(chatID)
		return
	case "login":
		b.handleLogin(chatID)
		return
	case "cancel":
		b.handleCancel(chatID)
		return
	}

	if !b.sessions.IsAuthenticated() {
		b.reply(chatID, "🔑 Сначала войдите: /login")
		return
	}

	switch cmd {
	case "logout":
		b.handleLogout(ctx, chatID)
	case "whoami":
		b.handleWhoAmI(chatID)
	case "users":
		b.handleUsers(ctx, chatID, args)
	case "user":
		b.handleUser(ctx, chatID, args)
	case "wallets":
		b.handleWallets(ctx, chatID, args)
	case "credit":
		b.startCredit(ctx, chatID)
	case "transfer":
		b.startTransfer(ctx, chatID)
	case "evacuate":
		b.startEvacuate(ctx, chatID)
	case "push":
		b.startPush(ctx, chatID)
	default:
		b.reply(chatID, "Неизвестная команда. Список команд: /help")
	}
}

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID,
		"Консоль администратора кошельков 🏦\n\n"+
			"/login - войти\n"+
			"/logout - выйти\n"+
			"/users [поиск] [status=active|inactive|blocked] - пользователи\n"+
			"/user &lt;id&gt; - карточка пользователя\n"+
			"/wallets [поиск] [status=active|frozen] [min=..] [max=..] [page=..] - кошельки\n"+
			"/credit - пополнить кошелёк с банковского счёта\n"+
			"/transfer - перевести средства пользователю\n"+
			"/evacuate - вывести средства со шлюза\n"+
			"/push - отправить уведомление\n"+
			"/cancel - отменить текущее действие")
}

func (b *Bot) handleLogin(chatID int64) {
	if op, ok := b.sessions.Identity(); ok {
		b.reply(chatID, "Вы уже вошли как <b>"+b.esc(op.DisplayName())+"</b>. Для смены учётной записи сначала /logout")
		return
	}
	b.setState(chatID, model.DialogLogin, "identifier", "")
	b.reply(chatID, "Введите email или телефон:")
}

func (b *Bot) handleLogout(ctx context.Context, chatID int64) {
	if err := b.sessions.Logout(ctx); err != nil {
		b.log.Error("logout failed to clear storage", zap.Error(err))
	}
	b.SessionLost(session.ErrLoggedOut)
	b.reply(chatID, "👋 Сессия завершена")
}

func (b *Bot) handleWhoAmI(chatID int64) {
	op, ok := b.sessions.Identity()
	if !ok {
		b.reply(chatID, "Вы не вошли")
		return
	}
	b.reply(chatID, "👤 <b>"+b.esc(op.DisplayName())+"</b>\n"+b.esc(op.Email)+"\nРоль: "+b.esc(op.Role))
}

func (b *Bot) handleCancel(chatID int64) {
	st := b.state(chatID)
	if !st.Active() {
		b.reply(chatID, "Нечего отменять")
		return
	}
	if b.cancelInFlight(chatID, st.Dialog) {
		// итог прерванной отправки сообщит submitAsync
		return
	}
	b.closeDialog(chatID, st.Dialog)
	b.clearState(chatID)
	b.reply(chatID, "Отменено")
}

func (b *Bot) cancelInFlight(chatID int64, dialog string) bool {
	f := b.flowsFor(chatID)
	switch dialog {
	case model.DialogCredit:
		return f.Credit.Cancel()
	case model.DialogTransfer:
		return f.Transfer.Cancel()
	case model.DialogEvacuate:
		return f.Evacuate.Cancel()
	case model.DialogPush:
		return f.Push.Cancel()
	}
	return false
}

func (b *Bot) closeDialog(chatID int64, dialog string) {
	f := b.flowsFor(chatID)
	switch dialog {
	case model.DialogCredit:
		f.Credit.Close()
	case model.DialogTransfer:
		f.Transfer.Close()
	case model.DialogEvacuate:
		f.Evacuate.Close()
	case model.DialogPush:
		f.Push.Close()
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	st := b.state(chatID)
	if !st.Active() {
		b.reply(chatID, "Выберите команду: /help")
		return
	}

	text := strings.TrimSpace(message.Text)
	switch st.Dialog {
	case model.DialogLogin:
		b.loginStep(ctx, message, st, text)
	case model.DialogCredit:
		b.creditStep(ctx, message, st, text)
	case model.DialogTransfer:
		b.transferStep(ctx, chatID, st, text)
	case model.DialogPush:
		b.pushStep(ctx, chatID, st, text)
	default:
		b.reply(chatID, "Используйте кнопки выше или /cancel")
	}
}

func (b *Bot) loginStep(ctx context.Context, message *tgbotapi.Message, st *model.ChatState, text string) {
	chatID := message.Chat.ID
	switch st.Step {
	case "identifier":
		if text == "" {
			b.reply(chatID, "Введите email или телефон:")
			return
		}
		b.setState(chatID, model.DialogLogin, "password", text)
		b.reply(chatID, "Введите пароль (сообщение будет удалено):")
	case "password":
		b.deleteMessage(chatID, message.MessageID)
		b.clearState(chatID)
		s, err := b.sessions.Login(ctx, st.Scratch, text)
		if err != nil {
			b.reportLoginError(chatID, err)
			return
		}
		b.reply(chatID, "✅ Вы вошли как <b>"+b.esc(s.Operator.DisplayName())+"</b>")
	}
}

func (b *Bot) reportLoginError(chatID int64, err error) {
	var ae *session.AuthError
	detail := ""
	if errors.As(err, &ae) && ae.Message != "" {
		detail = ": " + b.esc(ae.Message)
	}
	switch {
	case errors.Is(err, session.ErrInvalidCredentials):
		b.sendErrorMessage(chatID, "Неверный логин или пароль"+detail+"\nПопробуйте снова: /login")
	case errors.Is(err, session.ErrNetworkFailure):
		b.sendErrorMessage(chatID, "Сервер недоступен"+detail+"\nПопробуйте позже: /login")
	default:
		b.log.Error("login failed", zap.Error(err))
		b.sendErrorMessage(chatID, "Не удалось сохранить сессию")
	}
}

func (b *Bot) deleteMessage(chatID int64, messageID int) {
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		b.log.Warn("failed to delete sensitive message", zap.Error(err))
	}
}

func (b *Bot) handleUsers(ctx context.Context, chatID int64, args string) {
	opts, search := parseArgs(args)
	state := b.resources.Users(ctx, model.UserFilter{Search: search, Status: opts["status"]})
	if state.Err != nil {
		b.reportQueryError(chatID, state.Message())
		return
	}
	b.reply(chatID, b.formatUsers(state.Items))
}

func (b *Bot) handleUser(ctx context.Context, chatID int64, args string) {
	if args == "" {
		b.reply(chatID, "Укажите id: /user &lt;id&gt;")
		return
	}
	detail, err := b.resources.UserDetail(ctx, args)
	if err != nil {
		b.reportQueryError(chatID, query.ErrorMessage(err))
		return
	}
	b.reply(chatID, b.formatUserDetail(detail))
}

func (b *Bot) handleWallets(ctx context.Context, chatID int64, args string) {
	opts, search := parseArgs(args)
	filter := model.WalletFilter{Search: search, Status: opts["status"]}
	var err error
	if filter.MinBalance, err = parseBound(opts["min"]); err != nil {
		b.sendErrorMessage(chatID, "min должно быть числом")
		return
	}
	if filter.MaxBalance, err = parseBound(opts["max"]); err != nil {
		b.sendErrorMessage(chatID, "max должно быть числом")
		return
	}

	state := b.resources.Wallets(ctx, filter)
	if state.Err != nil {
		b.reportQueryError(chatID, state.Message())
		return
	}
	summary := query.SummarizeWallets(b.resources.AllWallets(ctx).Items)
	pageNum := atoiDefault(opts["page"], 1)
	page, pages := query.Paginate(state.Items, pageNum, query.WalletsPerPage)
	if pageNum > pages {
		pageNum = pages
	}
	b.reply(chatID, b.formatWallets(summary, page, pageNum, pages, len(state.Items)))
}

func (b *Bot) reportQueryError(chatID int64, message string) {
	if message == query.ErrUnauthenticated.Error() {
		b.reply(chatID, "🔑 Сессия недействительна. Войдите снова: /login")
		return
	}
	b.sendErrorMessage(chatID, "Не удалось загрузить данные: "+b.esc(message))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	chatID := cb.Message.Chat.ID
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.Debug("callback ack failed", zap.Error(err))
	}

	if cb.Data == "report" {
		b.sendReportSnapshot(chatID)
		return
	}
	if !b.sessions.IsAuthenticated() {
		b.reply(chatID, "🔑 Сначала войдите: /login")
		return
	}

	st := b.state(chatID)
	if !st.Active() {
		b.reply(chatID, "Диалог уже закрыт")
		return
	}
	if cb.Data == "abort" {
		b.handleCancel(chatID)
		return
	}

	switch st.Dialog {
	case model.DialogCredit:
		b.creditCallback(ctx, chatID, st, cb.Data)
	case model.DialogTransfer:
		b.transferCallback(ctx, chatID, st, cb.Data)
	case model.DialogEvacuate:
		b.evacuateCallback(ctx, chatID, st, cb.Data)
	case model.DialogPush:
		b.pushCallback(ctx, chatID, st, cb.Data)
	}
}
