package models

import "time"

// SubscriptionStatus статус подписки, вычисляемый из даты окончания и флагов.
type SubscriptionStatus string

const (
	// StatusNone подписка отсутствует.
	StatusNone SubscriptionStatus = "none"
	// StatusTrial активный пробный период.
	StatusTrial SubscriptionStatus = "trial"
	// StatusActive оплаченная активная подписка.
	StatusActive SubscriptionStatus = "active"
	// StatusExpired истёкшая подписка.
	StatusExpired SubscriptionStatus = "expired"
)

// Subscription представляет единственную запись подписки пользователя.
// Владельцем записи является учётный сервис, остальные компоненты только читают.
type Subscription struct {
	UserID        int64     // Владелец подписки
	EndDate       time.Time // Дата окончания доступа
	TrafficLimit  int64     // Лимит трафика в байтах, 0 — без ограничения
	PanelUserUUID string    // Идентификатор учётной записи на панели
	Squads        []string  // Набор squad-групп панели
	IsTrial       bool      // Подписка выдана как пробный период
	Revoked       bool      // Явный отзыв администратором
	UpdatedAt     time.Time
}

// StatusAt возвращает статус подписки на момент времени now.
// Статус — чистая функция от даты окончания, флага отзыва и признака триала.
func (s *Subscription) StatusAt(now time.Time) SubscriptionStatus {
	if s == nil || s.EndDate.IsZero() {
		return StatusNone
	}
	if s.Revoked || !s.EndDate.After(now) {
		return StatusExpired
	}
	if s.IsTrial {
		return StatusTrial
	}
	return StatusActive
}

// SubscriptionSnapshot результат начисления: состояние подписки,
// передаваемое на синхронизацию с панелью.
type SubscriptionSnapshot struct {
	UserID       int64              `json:"user_id"`
	EndDate      time.Time          `json:"end_date"`
	TrafficLimit int64              `json:"traffic_limit"`
	Squads       []string           `json:"squads"`
	Status       SubscriptionStatus `json:"status"`
	Disabled     bool               `json:"disabled"` // Пользователь заблокирован, доступ на панели выключен
}
