package model

import (
	"bytes"
	"strconv"
	"time"
)

// Counter числовое значение отчёта в том виде, в каком его прислал сервер.
type Counter string

func (c *Counter) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*c = "0"
		return nil
	}
	if len(b) > 1 && b[0] == '"' {
		s, err := strconv.Unquote(string(b))
		if err != nil {
			return err
		}
		*c = Counter(s)
		return nil
	}
	*c = Counter(b)
	return nil
}

func (c Counter) String() string {
	if c == "" {
		return "0"
	}
	return string(c)
}

// Float используется только для отрисовки графика.
func (c Counter) Float() float64 {
	f, err := strconv.ParseFloat(string(c), 64)
	if err != nil {
		return 0
	}
	return f
}

// EvacuationReport итог вывода средств со шлюза.
type EvacuationReport struct {
	Rail                   Rail      `json:"-"`
	TotalAccountsProcessed Counter   `json:"total_accounts_processed"`
	TotalFailures          Counter   `json:"total_failures"`
	TotalAmountMoved       Counter   `json:"total_amount_moved"`
	TotalChargesIncurred   Counter   `json:"total_charges_incured"`
	Skipped                Counter   `json:"skipped"`
	AmountSkipped          Counter   `json:"amount_skipped"`
	CompletedAt            time.Time `json:"-"`
}

type ReportLine struct {
	Label string
	Value Counter
}

// Lines возвращает шесть счётчиков в порядке отображения.
func (r EvacuationReport) Lines() []ReportLine {
	return []ReportLine{
		{Label: "Accounts processed", Value: r.TotalAccountsProcessed},
		{Label: "Failures", Value: r.TotalFailures},
		{Label: "Amount moved", Value: r.TotalAmountMoved},
		{Label: "Charges incurred", Value: r.TotalChargesIncurred},
		{Label: "Skipped", Value: r.Skipped},
		{Label: "Amount skipped", Value: r.AmountSkipped},
	}
}
