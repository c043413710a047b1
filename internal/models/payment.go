package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus статус обработки платёжного события в леджере.
type PaymentStatus string

const (
	// PaymentReceived событие принято от провайдера, подпись проверена.
	PaymentReceived PaymentStatus = "received"
	// PaymentVerified событие атомарно допущено леджером, начисление ещё не выполнено.
	PaymentVerified PaymentStatus = "verified"
	// PaymentCredited время подписки успешно начислено.
	PaymentCredited PaymentStatus = "credited"
	// PaymentRejected начисление отклонено, повтор только вручную оператором.
	PaymentRejected PaymentStatus = "rejected"
	// PaymentDuplicate повторная доставка уже известного события.
	PaymentDuplicate PaymentStatus = "duplicate"
)

// PaymentEvent каноническое, неизменяемое платёжное событие одного
// уведомления провайдера. Пара (Provider, ProviderPaymentID) уникальна.
type PaymentEvent struct {
	ID                int64
	Provider          string          // Идентификатор провайдера: tribute, freekassa, yookassa, cryptopay, telegram_stars
	ProviderPaymentID string          // Нативный идентификатор транзакции провайдера
	UserID            int64           // Пользователь, которому адресован платёж
	Amount            decimal.Decimal // Сумма в основных единицах валюты
	Currency          string          // Код валюты, верхний регистр
	Months            int             // Оплаченный период в месяцах
	PayloadHash       string          // SHA-256 исходного тела уведомления
	Status            PaymentStatus
	Reason            string // Причина отклонения для статуса rejected
	CreatedAt         time.Time
}

// FinancialStats строка финансовой сводки: выручка по засчитанным платежам
// одного провайдера в одной валюте за запрошенный период.
type FinancialStats struct {
	Provider      string          `json:"provider"`
	Currency      string          `json:"currency"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaymentsCount int             `json:"payments_count"`
}
