package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransactionCredit = "CREDIT"
	TransactionDebit  = "DEBIT"
)

// Transaction операция по кошельку пользователя.
type Transaction struct {
	TransactionID     string          `json:"transaction_id"`
	CreatedAt         time.Time       `json:"created_at"`
	Amount            decimal.Decimal `json:"amount"`
	Status            string          `json:"transaction_status"`
	Type              string          `json:"transaction_type"`
	Category          string          `json:"transaction_category"`
	Description       string          `json:"description"`
	PaymentProvider   string          `json:"payment_provider"`
	BalanceBefore     decimal.Decimal `json:"balance_before"`
	BalanceAfter      decimal.Decimal `json:"balance_after"`
	Reference         string          `json:"transaction_reference"`
	ProviderReference string          `json:"transaction_reference_provider"`
	Charge            decimal.Decimal `json:"charge"`
	ProviderCharge    decimal.Decimal `json:"provider_charge"`
	Meta              TransactionMeta `json:"meta"`
}

type TransactionMeta struct {
	Data struct {
		Beneficiary *Beneficiary `json:"beneficiary,omitempty"`
	} `json:"data"`
}

type Beneficiary struct {
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
}

func (t Transaction) IsCredit() bool { return t.Type == TransactionCredit }
func (t Transaction) IsDebit() bool  { return t.Type == TransactionDebit }
