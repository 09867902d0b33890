package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ivanoskov/custody_admin/internal/ledger"
	"github.com/ivanoskov/custody_admin/internal/model"
	"github.com/ivanoskov/custody_admin/internal/workflow"
)

// stepEdit в Scratch означает правку одного поля из подтверждения:
// после ввода диалог сразу возвращается к подтверждению.
const stepEdit = "edit"

// Пополнение кошелька: банк -> счёт -> сумма -> пароль -> подтверждение.

func (b *Bot) startCredit(ctx context.Context, chatID int64) {
	if !b.open(chatID, model.DialogCredit) {
		return
	}
	b.flowsFor(chatID).Credit.Open(ctx)
	b.setState(chatID, model.DialogCredit, "bank", "")
	b.send(chatID, "💳 Пополнение кошелька\nВыберите банк:", b.getBanksKeyboard())
}

func (b *Bot) creditCallback(ctx context.Context, chatID int64, st *model.ChatState, data string) {
	wf := b.flowsFor(chatID).Credit
	switch {
	case strings.HasPrefix(data, "bank:") && st.Step == "bank":
		code := strings.TrimPrefix(data, "bank:")
		bank, ok := model.BankByCode(code)
		if !ok {
			b.sendErrorMessage(chatID, "Неизвестный банк")
			return
		}
		if !b.edit(chatID, wf.Edit(func(f *workflow.CreditWalletForm) { f.BankCode = code })) {
			return
		}
		b.setState(chatID, model.DialogCredit, "account", "")
		text := "Банк: <b>" + b.esc(bank.Name) + "</b>\nВведите номер счёта:"
		if prev := wf.Form().AccountNumber; prev != "" {
			b.send(chatID, text, b.getKeepKeyboard("account:keep", "Использовать "+prev))
			return
		}
		b.reply(chatID, text)
	case data == "account:keep" && st.Step == "account":
		b.setState(chatID, model.DialogCredit, "amount", "")
		b.reply(chatID, "Введите сумму:")
	case strings.HasPrefix(data, "edit:") && st.Step == "confirm":
		switch strings.TrimPrefix(data, "edit:") {
		case "account":
			b.setState(chatID, model.DialogCredit, "account", stepEdit)
			b.reply(chatID, "Введите номер счёта:")
		case "amount":
			b.setState(chatID, model.DialogCredit, "amount", stepEdit)
			b.reply(chatID, "Введите сумму:")
		case "password":
			b.setState(chatID, model.DialogCredit, "password", stepEdit)
			b.reply(chatID, "Введите пароль подтверждения (сообщение будет удалено):")
		}
	case data == "confirm" && st.Step == "confirm":
		submitAsync(ctx, b, chatID, wf, b.renderCredit, b.getRetryKeyboard(creditEdits...))
	}
}

func (b *Bot) confirmCredit(chatID int64) {
	b.setState(chatID, model.DialogCredit, "confirm", "")
	b.send(chatID, b.formatCreditConfirm(b.flowsFor(chatID).Credit.Form()), b.getConfirmKeyboard())
}

func (b *Bot) creditStep(ctx context.Context, message *tgbotapi.Message, st *model.ChatState, text string) {
	chatID := message.Chat.ID
	wf := b.flowsFor(chatID).Credit
	switch st.Step {
	case "account":
		account := workflow.SanitizeDigits(text)
		if account == "" {
			b.reply(chatID, "Номер счёта должен состоять из цифр:")
			return
		}
		if !b.edit(chatID, wf.Edit(func(f *workflow.CreditWalletForm) { f.AccountNumber = account })) {
			return
		}
		if st.Scratch == stepEdit {
			b.confirmCredit(chatID)
			return
		}
		b.setState(chatID, model.DialogCredit, "amount", "")
		b.reply(chatID, "Введите сумму:")
	case "amount":
		prev := wf.Form().Amount
		amount := workflow.SanitizeDecimal(prev, text)
		if !workflow.IsPositiveDecimal(amount) {
			b.reply(chatID, "Сумма должна быть положительным числом, например 1500.50:")
			return
		}
		if !b.edit(chatID, wf.Edit(func(f *workflow.CreditWalletForm) { f.Amount = amount })) {
			return
		}
		if st.Scratch == stepEdit {
			b.confirmCredit(chatID)
			return
		}
		b.setState(chatID, model.DialogCredit, "password", "")
		b.reply(chatID, "Введите пароль подтверждения (сообщение будет удалено):")
	case "password":
		b.deleteMessage(chatID, message.MessageID)
		if text == "" {
			b.reply(chatID, "Пароль не может быть пустым:")
			return
		}
		if !b.edit(chatID, wf.Edit(func(f *workflow.CreditWalletForm) { f.Password = text })) {
			return
		}
		b.confirmCredit(chatID)
	default:
		b.reply(chatID, "Используйте кнопки выше или /cancel")
	}
}

func (b *Bot) renderCredit(_ int64, out workflow.Outcome[ledger.Result]) (string, interface{}) {
	msg := out.Result.Message
	if msg == "" {
		msg = "Wallet credited successfully"
	}
	return "✅ " + b.esc(msg), nil
}

// Перевод пользователю: поиск -> выбор -> сумма -> описание -> подтверждение.

func (b *Bot) startTransfer(ctx context.Context, chatID int64) {
	if !b.open(chatID, model.DialogTransfer) {
		return
	}
	b.flowsFor(chatID).Transfer.Open(ctx)
	b.setState(chatID, model.DialogTransfer, "search", "")
	b.reply(chatID, "💸 Перевод средств\nВведите имя или email получателя:")
}

func (b *Bot) transferStep(ctx context.Context, chatID int64, st *model.ChatState, text string) {
	wf := b.flowsFor(chatID).Transfer
	switch st.Step {
	case "search", "recipient":
		found := b.resources.SearchUsers(ctx, text, 5)
		if found.Err != nil {
			b.reportQueryError(chatID, found.Message())
			return
		}
		if len(found.Items) == 0 {
			b.reply(chatID, "Никого не нашлось, попробуйте другой запрос:")
			return
		}
		b.mu.Lock()
		b.candidates[chatID] = found.Items
		b.mu.Unlock()
		b.setState(chatID, model.DialogTransfer, "recipient", "")
		b.send(chatID, "Выберите получателя:", b.getRecipientsKeyboard(found.Items))
	case "amount":
		amount := workflow.SanitizeDigits(text)
		if _, ok := workflow.ParsePositiveInt(amount); !ok {
			b.reply(chatID, "Сумма должна быть целым положительным числом:")
			return
		}
		if !b.edit(chatID, wf.Edit(func(f *workflow.TransferForm) { f.Amount = amount })) {
			return
		}
		if st.Scratch == stepEdit {
			b.confirmTransfer(chatID)
			return
		}
		b.setState(chatID, model.DialogTransfer, "description", "")
		b.send(chatID, "Введите описание перевода:", b.getKeepKeyboard("desc:keep", "Оставить «"+workflow.DefaultTransferDescription+"»"))
	case "description":
		if text == "" {
			b.reply(chatID, "Описание не может быть пустым:")
			return
		}
		if !b.edit(chatID, wf.Edit(func(f *workflow.TransferForm) { f.Description = text })) {
			return
		}
		b.confirmTransfer(chatID)
	default:
		b.reply(chatID, "Используйте кнопки выше или /cancel")
	}
}

func (b *Bot) transferCallback(ctx context.Context, chatID int64, st *model.ChatState, data string) {
	wf := b.flowsFor(chatID).Transfer
	switch {
	case strings.HasPrefix(data, "recipient:") && st.Step == "recipient":
		idx, err := strconv.Atoi(strings.TrimPrefix(data, "recipient:"))
		b.mu.Lock()
		candidates := b.candidates[chatID]
		b.mu.Unlock()
		if err != nil || idx < 0 || idx >= len(candidates) {
			b.sendErrorMessage(chatID, "Список устарел, повторите поиск")
			return
		}
		user := candidates[idx]
		if !b.edit(chatID, wf.Edit(func(f *workflow.TransferForm) { f.Recipient = &user })) {
			return
		}
		b.setState(chatID, model.DialogTransfer, "amount", "")
		b.reply(chatID, "Получатель: <b>"+b.esc(user.FullName())+"</b> ("+b.esc(user.Email)+")\nВведите сумму (целое число):")
	case data == "desc:keep" && st.Step == "description":
		b.confirmTransfer(chatID)
	case strings.HasPrefix(data, "edit:") && st.Step == "confirm":
		switch strings.TrimPrefix(data, "edit:") {
		case "amount":
			b.setState(chatID, model.DialogTransfer, "amount", stepEdit)
			b.reply(chatID, "Введите сумму (целое число):")
		case "description":
			b.setState(chatID, model.DialogTransfer, "description", stepEdit)
			b.reply(chatID, "Введите описание перевода:")
		}
	case data == "confirm" && st.Step == "confirm":
		submitAsync(ctx, b, chatID, wf, b.renderTransfer, b.getRetryKeyboard(transferEdits...))
	}
}

func (b *Bot) confirmTransfer(chatID int64) {
	b.setState(chatID, model.DialogTransfer, "confirm", "")
	b.send(chatID, b.formatTransferConfirm(b.flowsFor(chatID).Transfer.Form()), b.getConfirmKeyboard())
}

func (b *Bot) renderTransfer(_ int64, _ workflow.Outcome[ledger.Result]) (string, interface{}) {
	return "✅ Funds transferred successfully", nil
}

// Вывод средств со шлюза.

func (b *Bot) startEvacuate(ctx context.Context, chatID int64) {
	if !b.open(chatID, model.DialogEvacuate) {
		return
	}
	b.flowsFor(chatID).Evacuate.Open(ctx)
	b.setState(chatID, model.DialogEvacuate, "rail", "")
	b.send(chatID, "🚨 Вывод всех средств со шлюза\nВыберите шлюз:", b.getRailsKeyboard())
}

func (b *Bot) evacuateCallback(ctx context.Context, chatID int64, st *model.ChatState, data string) {
	wf := b.flowsFor(chatID).Evacuate
	switch {
	case strings.HasPrefix(data, "rail:") && st.Step == "rail":
		rail := model.Rail(strings.TrimPrefix(data, "rail:"))
		if !b.edit(chatID, wf.Edit(func(f *workflow.EvacuateForm) { f.Rail = rail })) {
			return
		}
		b.setState(chatID, model.DialogEvacuate, "confirm", "")
		b.send(chatID, "Вывести все средства со шлюза <b>"+b.esc(rail.Title())+"</b>?", b.getConfirmKeyboard())
	case data == "edit:rail" && st.Step == "confirm":
		b.setState(chatID, model.DialogEvacuate, "rail", "")
		b.send(chatID, "Выберите шлюз:", b.getRailsKeyboard())
	case data == "confirm" && st.Step == "confirm":
		submitAsync(ctx, b, chatID, wf, b.renderEvacuation, b.getRetryKeyboard(evacuateEdits...))
	}
}

func (b *Bot) renderEvacuation(chatID int64, out workflow.Outcome[model.EvacuationReport]) (string, interface{}) {
	report := out.Result
	b.mu.Lock()
	b.reports[chatID] = &report
	b.mu.Unlock()
	return b.formatEvacuation(report), b.getReportKeyboard()
}

func (b *Bot) sendReportSnapshot(chatID int64) {
	b.mu.Lock()
	report := b.reports[chatID]
	b.mu.Unlock()
	if report == nil {
		b.reply(chatID, "Отчёт недоступен")
		return
	}
	data, err := b.charts.EvacuationReport(*report)
	if err != nil {
		b.log.Error("failed to render report", zap.Error(err))
		b.sendErrorMessage(chatID, "Не удалось сформировать отчёт")
		return
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{
		Name:  "evacuation-report-" + report.CompletedAt.UTC().Format("20060102-150405") + ".png",
		Bytes: data,
	})
	photo.Caption = "Evacuation report"
	if _, err := b.api.Send(photo); err != nil {
		b.log.Error("failed to send report", zap.Error(err))
	}
}

// Push-уведомление.

func (b *Bot) startPush(ctx context.Context, chatID int64) {
	if !b.open(chatID, model.DialogPush) {
		return
	}
	b.flowsFor(chatID).Push.Open(ctx)
	b.setState(chatID, model.DialogPush, "audience", "")
	b.send(chatID, "📣 Уведомление\nКому отправить?", b.getAudienceKeyboard())
}

func (b *Bot) pushCallback(ctx context.Context, chatID int64, st *model.ChatState, data string) {
	wf := b.flowsFor(chatID).Push
	switch {
	case strings.HasPrefix(data, "aud:") && st.Step == "audience":
		audience := strings.TrimPrefix(data, "aud:")
		if !b.edit(chatID, wf.Edit(func(f *workflow.PushForm) {
			f.Audience = audience
			if audience == workflow.AudienceAll {
				f.Email = ""
			}
		})) {
			return
		}
		if audience == workflow.AudienceSingle {
			b.setState(chatID, model.DialogPush, "email", "")
			b.reply(chatID, "Введите email пользователя:")
			return
		}
		b.setState(chatID, model.DialogPush, "title", "")
		b.reply(chatID, "Введите заголовок:")
	case strings.HasPrefix(data, "edit:") && st.Step == "confirm":
		switch strings.TrimPrefix(data, "edit:") {
		case "title":
			b.setState(chatID, model.DialogPush, "title", stepEdit)
			b.reply(chatID, "Введите заголовок:")
		case "body":
			b.setState(chatID, model.DialogPush, "body", stepEdit)
			b.reply(chatID, "Введите текст уведомления:")
		}
	case data == "confirm" && st.Step == "confirm":
		submitAsync(ctx, b, chatID, wf, b.renderPush, b.getRetryKeyboard(pushEdits...))
	}
}

func (b *Bot) confirmPush(chatID int64) {
	b.setState(chatID, model.DialogPush, "confirm", "")
	b.send(chatID, b.formatPushConfirm(b.flowsFor(chatID).Push.Form()), b.getConfirmKeyboard())
}

func (b *Bot) pushStep(ctx context.Context, chatID int64, st *model.ChatState, text string) {
	if text == "" {
		b.reply(chatID, "Пустое значение, введите ещё раз:")
		return
	}
	wf := b.flowsFor(chatID).Push
	switch st.Step {
	case "email":
		if !b.edit(chatID, wf.Edit(func(f *workflow.PushForm) { f.Email = text })) {
			return
		}
		b.setState(chatID, model.DialogPush, "title", "")
		b.reply(chatID, "Введите заголовок:")
	case "title":
		if !b.edit(chatID, wf.Edit(func(f *workflow.PushForm) { f.Title = text })) {
			return
		}
		if st.Scratch == stepEdit {
			b.confirmPush(chatID)
			return
		}
		b.setState(chatID, model.DialogPush, "body", "")
		b.reply(chatID, "Введите текст уведомления:")
	case "body":
		if !b.edit(chatID, wf.Edit(func(f *workflow.PushForm) { f.Body = text })) {
			return
		}
		b.confirmPush(chatID)
	default:
		b.reply(chatID, "Используйте кнопки выше или /cancel")
	}
}

func (b *Bot) renderPush(_ int64, out workflow.Outcome[ledger.Result]) (string, interface{}) {
	msg := out.Result.Message
	if msg == "" {
		msg = "Notification sent"
	}
	return "✅ " + b.esc(msg), nil
}

// open не даёт начать новый диалог, пока в чате идёт другой или
// отправка этого же ещё не завершилась.
func (b *Bot) open(chatID int64, dialog string) bool {
	st := b.state(chatID)
	if st.Active() && st.Dialog != dialog {
		b.reply(chatID, "Сначала завершите текущее действие или /cancel")
		return false
	}
	if st.Active() && b.submitting(chatID, dialog) {
		b.reply(chatID, "⏳ Операция выполняется, дождитесь результата или /cancel")
		return false
	}
	return true
}

func (b *Bot) submitting(chatID int64, dialog string) bool {
	f := b.flowsFor(chatID)
	switch dialog {
	case model.DialogCredit:
		return f.Credit.Phase() == workflow.Submitting
	case model.DialogTransfer:
		return f.Transfer.Phase() == workflow.Submitting
	case model.DialogEvacuate:
		return f.Evacuate.Phase() == workflow.Submitting
	case model.DialogPush:
		return f.Push.Phase() == workflow.Submitting
	}
	return false
}

func (b *Bot) edit(chatID int64, err error) bool {
	if errors.Is(err, workflow.ErrSubmitInFlight) {
		b.reply(chatID, "⏳ Операция выполняется, форма заблокирована")
		return false
	}
	return true
}

// submitAsync отправляет форму и сообщает итог. Повторное нажатие во время
// отправки запрос не дублирует. После отказа сервера retry предлагает
// повторить или поправить поля формы.
func submitAsync[F, R any](ctx context.Context, b *Bot, chatID int64, wf *workflow.Workflow[F, R],
	render func(int64, workflow.Outcome[R]) (string, interface{}), retry tgbotapi.InlineKeyboardMarkup) {
	if wf.Phase() == workflow.Submitting {
		b.reply(chatID, "⏳ Операция уже выполняется")
		return
	}
	b.reply(chatID, "⏳ Отправляю...")
	ctx = context.WithoutCancel(ctx)

	b.async(func() {
		out, err := wf.Submit(ctx)
		var (
			verr *workflow.ValidationError
			terr *ledger.TimeoutError
		)
		switch {
		case errors.Is(err, workflow.ErrSubmitInFlight):
			b.reply(chatID, "⏳ Операция уже выполняется")
		case errors.As(err, &verr):
			b.sendErrorMessage(chatID, b.formatValidation(verr))
		case errors.Is(err, workflow.ErrUnauthenticated):
			b.reply(chatID, "🔑 Сессия недействительна. Войдите снова: /login")
		case errors.As(err, &terr):
			b.send(chatID, "⌛ Сервер не ответил вовремя, результат неизвестен.\n"+
				"Повторная отправка тех же данных использует тот же ключ идемпотентности.", b.getConfirmKeyboard())
		case errors.Is(err, workflow.ErrCanceled):
			b.log.Info("submission abandoned", zap.Int64("chat_id", chatID), zap.String("operation", wf.Name()))
			b.reply(chatID, "⏹ Отправка прервана, результат неизвестен. "+
				"Повторная отправка тех же данных использует тот же ключ идемпотентности.")
		case err != nil:
			b.log.Error("submission failed", zap.String("operation", wf.Name()), zap.Error(err))
			b.sendErrorMessage(chatID, "Внутренняя ошибка")
		case out.Success:
			b.clearState(chatID)
			text, markup := render(chatID, out)
			b.send(chatID, text, markup)
		default:
			b.send(chatID, "❌ "+b.esc(out.Message), retry)
		}
	})
}
