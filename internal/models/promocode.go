package models

import "time"

// PromoCode промокод, создаваемый администратором.
// Каждый пользователь может активировать код не более одного раза.
type PromoCode struct {
	ID         int64     `json:"id"`
	Code       string    `json:"code"`
	BonusDays  int       `json:"bonus_days"`
	UsageLimit int       `json:"usage_limit"`
	UsageCount int       `json:"usage_count"`
	ValidFrom  time.Time `json:"valid_from"`
	ValidUntil time.Time `json:"valid_until"`
	CreatedAt  time.Time `json:"created_at"`
}

// ReferralBonus производное событие начисления: бонус пригласившему
// после первого засчитанного платежа или триала приглашённого.
// На пару (ReferrerID, ReferredID) допускается не более одного бонуса.
type ReferralBonus struct {
	ReferrerID int64
	ReferredID int64
	BonusDays  int
	AppliedAt  time.Time
}
