package models

import "github.com/shopspring/decimal"

// CreditKind вид события, продлевающего подписку.
type CreditKind string

const (
	// CreditPayment оплата через платёжного провайдера.
	CreditPayment CreditKind = "payment"
	// CreditPromo активация промокода.
	CreditPromo CreditKind = "promo"
	// CreditReferral реферальный бонус пригласившему.
	CreditReferral CreditKind = "referral"
	// CreditTrial однократный пробный период.
	CreditTrial CreditKind = "trial"
)

// CreditEvent единица начисления для учётного сервиса.
// Для платежа заполняются Months, Amount и PaymentID,
// для промокода и реферального бонуса — BonusDays.
type CreditEvent struct {
	Kind      CreditKind
	Months    int
	BonusDays int
	PromoCode string
	PaymentID int64
	Amount    decimal.Decimal
	Currency  string
}
