package bot

import (
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ivanoskov/custody_admin/internal/model"
	"github.com/ivanoskov/custody_admin/internal/workflow"
)

func (b *Bot) getBanksKeyboard() tgbotapi.InlineKeyboardMarkup {
	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, bank := range model.Banks {
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(bank.Name, "bank:"+bank.Code),
		))
	}
	buttons = append(buttons, b.abortRow())
	return tgbotapi.NewInlineKeyboardMarkup(buttons...)
}

func (b *Bot) getRecipientsKeyboard(users []model.User) tgbotapi.InlineKeyboardMarkup {
	var buttons [][]tgbotapi.InlineKeyboardButton
	for i, u := range users {
		label := u.FullName()
		if u.Email != "" {
			label += " · " + u.Email
		}
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, "recipient:"+strconv.Itoa(i)),
		))
	}
	buttons = append(buttons, b.abortRow())
	return tgbotapi.NewInlineKeyboardMarkup(buttons...)
}

func (b *Bot) getRailsKeyboard() tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(model.Rails))
	for _, r := range model.Rails {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(r.Title(), "rail:"+string(r)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row, b.abortRow())
}

func (b *Bot) getAudienceKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👥 Всем", "aud:"+workflow.AudienceAll),
			tgbotapi.NewInlineKeyboardButtonData("👤 Одному", "aud:"+workflow.AudienceSingle),
		),
		b.abortRow(),
	)
}

// getKeepKeyboard предлагает оставить текущее значение поля.
func (b *Bot) getKeepKeyboard(data, label string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(label, data)),
	)
}

func (b *Bot) getConfirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Отправить", "confirm"),
			tgbotapi.NewInlineKeyboardButtonData("✖️ Отмена", "abort"),
		),
	)
}

func (b *Bot) getReportKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📊 Сохранить отчёт", "report"),
		),
	)
}

func (b *Bot) abortRow() []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✖️ Отмена", "abort"))
}

type editButton struct {
	field string
	label string
}

var (
	creditEdits   = []editButton{{"account", "Счёт"}, {"amount", "Сумма"}, {"password", "Пароль"}}
	transferEdits = []editButton{{"amount", "Сумма"}, {"description", "Описание"}}
	evacuateEdits = []editButton{{"rail", "Шлюз"}}
	pushEdits     = []editButton{{"title", "Заголовок"}, {"body", "Текст"}}
)

// getRetryKeyboard показывается после отказа сервера: повтор, правка
// отдельных полей с сохранением остальных, отмена.
func (b *Bot) getRetryKeyboard(edits ...editButton) tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(edits))
	for _, e := range edits {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("✏️ "+e.label, "edit:"+e.field))
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔁 Повторить", "confirm")),
		row,
		b.abortRow(),
	)
}
