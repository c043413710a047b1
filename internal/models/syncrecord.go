package models

import "time"

// PanelSyncRecord запись о последней синхронизации подписки с панелью.
// Хэши позволяют пропускать избыточные вызовы панели и обнаруживать дрейф.
type PanelSyncRecord struct {
	UserID        int64      `json:"user_id"`
	LocalHash     string     `json:"local_hash"`      // Хэш последнего отправленного желаемого состояния
	RemoteHash    string     `json:"remote_hash"`     // Хэш последнего известного состояния панели
	LastAttemptAt *time.Time `json:"last_attempt_at"` // Время последней попытки синхронизации
	LastError     string     `json:"last_error"`      // Текст последней ошибки, пусто при успехе
	NeedsReview   bool       `json:"needs_review"`    // Требует внимания оператора (например, промокод начислен, панель недоступна)
}
