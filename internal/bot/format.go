package bot

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ivanoskov/custody_admin/internal/model"
	"github.com/ivanoskov/custody_admin/internal/query"
	"github.com/ivanoskov/custody_admin/internal/workflow"
)

const recentTransactions = 5

func naira(d decimal.Decimal) string {
	return "₦" + d.StringFixed(2)
}

func (b *Bot) formatUsers(users []model.User) string {
	if len(users) == 0 {
		return "Пользователи не найдены"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "👥 <b>Пользователи</b> (%d)\n\n", len(users))
	for i, u := range users {
		if i == listLimit {
			fmt.Fprintf(&sb, "\n...и ещё %d. Уточните поиск.", len(users)-listLimit)
			break
		}
		fmt.Fprintf(&sb, "• <b>%s</b> %s [%s]\n  <code>%s</code>\n",
			b.esc(u.FullName()), b.esc(u.Email), b.esc(u.ActiveStatus), b.esc(u.UserID))
	}
	return sb.String()
}

func (b *Bot) formatUserDetail(d query.UserDetail) string {
	var sb strings.Builder
	u := d.User
	fmt.Fprintf(&sb, "👤 <b>%s</b>\n", b.esc(u.FullName()))
	fmt.Fprintf(&sb, "Email: %s\n", b.esc(u.Email))
	if u.PhoneNumber != "" {
		fmt.Fprintf(&sb, "Телефон: %s\n", b.esc(u.PhoneNumber))
	}
	fmt.Fprintf(&sb, "Статус: %s\n", b.esc(u.ActiveStatus))
	fmt.Fprintf(&sb, "Баланс: <b>%s</b>\n", naira(d.Balance))
	fmt.Fprintf(&sb, "Операций: %d (пополнений %d, списаний %d)\n",
		len(d.Transactions), d.CreditCount, d.DebitCount)

	if len(d.Transactions) == 0 {
		return sb.String()
	}
	sb.WriteString("\n<b>Последние операции:</b>\n")
	for i, t := range d.Transactions {
		if i == recentTransactions {
			break
		}
		sign := "−"
		if t.IsCredit() {
			sign = "+"
		}
		fmt.Fprintf(&sb, "%s %s%s %s", t.CreatedAt.Format("02.01.2006 15:04"), sign, naira(t.Amount), b.esc(t.Description))
		if ben := t.Meta.Data.Beneficiary; ben != nil {
			fmt.Fprintf(&sb, " → %s (%s)", b.esc(ben.AccountName), b.esc(ben.AccountNumber))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (b *Bot) formatWallets(summary model.WalletSummary, page []model.Wallet, pageNum, pages, total int) string {
	var sb strings.Builder
	sb.WriteString("💼 <b>Кошельки</b>\n")
	fmt.Fprintf(&sb, "Всего: %d, баланс %s\n", summary.Count, naira(summary.TotalBalance))
	fmt.Fprintf(&sb, "Пополнения: %s (%d кошельков)\n", naira(summary.TotalCredit), summary.WalletsWithCredit)
	fmt.Fprintf(&sb, "Списания: %s (%d кошельков)\n", naira(summary.TotalDebit), summary.WalletsWithDebit)
	arrow := "📉"
	if summary.BalanceChangePositive {
		arrow = "📈"
	}
	fmt.Fprintf(&sb, "Изменение: %s %s%%\n\n", arrow, summary.BalanceChange.StringFixed(1))

	if total == 0 {
		sb.WriteString("По фильтру ничего не найдено")
		return sb.String()
	}
	fmt.Fprintf(&sb, "Найдено %d, страница %d из %d\n", total, pageNum, pages)
	for _, w := range page {
		frozen := ""
		if w.Frozen {
			frozen = " ❄️"
		}
		fmt.Fprintf(&sb, "• %s %s%s\n  %s\n", b.esc(w.Owner.FullName()), naira(w.Balance), frozen, b.esc(w.Owner.Email))
	}
	return sb.String()
}

func (b *Bot) formatCreditConfirm(f workflow.CreditWalletForm) string {
	bank, _ := model.BankByCode(f.BankCode)
	amount, _ := decimal.NewFromString(f.Amount)
	return fmt.Sprintf("Проверьте данные:\nБанк: <b>%s</b>\nСчёт: <code>%s</code>\nСумма: <b>%s</b>\nПароль: %s",
		b.esc(bank.Name), b.esc(f.AccountNumber), naira(amount), strings.Repeat("•", len([]rune(f.Password))))
}

func (b *Bot) formatTransferConfirm(f workflow.TransferForm) string {
	name := ""
	if f.Recipient != nil {
		name = f.Recipient.FullName() + " (" + f.Recipient.Email + ")"
	}
	return fmt.Sprintf("Проверьте данные:\nПолучатель: <b>%s</b>\nСумма: <b>₦%s</b>\nОписание: %s",
		b.esc(name), b.esc(f.Amount), b.esc(f.Description))
}

func (b *Bot) formatPushConfirm(f workflow.PushForm) string {
	to := "всем пользователям"
	if f.Audience == workflow.AudienceSingle {
		to = b.esc(f.Email)
	}
	return fmt.Sprintf("Отправить уведомление %s?\n\n<b>%s</b>\n%s", to, b.esc(f.Title), b.esc(f.Body))
}

// formatEvacuation выводит счётчики отчёта так, как их прислал сервер.
func (b *Bot) formatEvacuation(r model.EvacuationReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ Вывод со шлюза <b>%s</b> завершён\n\n", b.esc(r.Rail.Title()))
	for _, line := range r.Lines() {
		fmt.Fprintf(&sb, "%s: <b>%s</b>\n", line.Label, b.esc(line.Value.String()))
	}
	return sb.String()
}

func (b *Bot) formatValidation(err *workflow.ValidationError) string {
	names := make([]string, 0, len(err.Fields))
	for name := range err.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	var sb strings.Builder
	sb.WriteString("Проверьте поля формы:")
	for _, name := range names {
		fmt.Fprintf(&sb, "\n• %s %s", name, err.Fields[name])
	}
	return sb.String()
}

// parseArgs разбирает "key=value" пары; остальные слова считаются поиском.
func parseArgs(args string) (map[string]string, string) {
	opts := make(map[string]string)
	var words []string
	for _, field := range strings.Fields(args) {
		if k, v, ok := strings.Cut(field, "="); ok && k != "" {
			opts[strings.ToLower(k)] = v
			continue
		}
		words = append(words, field)
	}
	return opts, strings.Join(words, " ")
}

func parseBound(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}
