package model

// Bank банк-отправитель для пополнения кошелька.
type Bank struct {
	Code string
	Name string
}

// Banks список банков, поддерживаемых шлюзом пополнения.
var Banks = []Bank{
	{Code: "090286", Name: "SAFE HAVEN MICROFINANCE BANK"},
	{Code: "120001", Name: "9 PAYMICROFINANCENS BANK"},
	{Code: "000014", Name: "ACCESS BANK"},
	{Code: "090267", Name: "KUDA MICROFINANCE BANK"},
}

func BankByCode(code string) (Bank, bool) {
	for _, b := range Banks {
		if b.Code == code {
			return b, true
		}
	}
	return Bank{}, false
}

// Rail расчётный шлюз, с которого выводятся средства.
type Rail string

const (
	Rail9PSB      Rail = "9psb"
	RailSafeHaven Rail = "safe_haven"
)

var Rails = []Rail{Rail9PSB, RailSafeHaven}

func (r Rail) Valid() bool {
	return r == Rail9PSB || r == RailSafeHaven
}

func (r Rail) Title() string {
	switch r {
	case Rail9PSB:
		return "9PSB"
	case RailSafeHaven:
		return "Safe Haven"
	}
	return string(r)
}
