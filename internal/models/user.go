// Package models содержит доменные структуры системы: пользователей,
// подписки, платёжные события, промокоды и записи синхронизации с панелью.
// Структуры используются в бизнес-логике и при работе с хранилищем.
package models

import "time"

// User представляет пользователя мессенджера, обратившегося к боту.
// Запись создаётся при первом контакте и никогда не удаляется,
// блокировка выражается флагом IsBanned.
type User struct {
	ID           int64      // Идентификатор пользователя во внешнем мессенджере
	Username     string     // Имя пользователя (может быть пустым)
	LanguageCode string     // Предпочитаемый язык
	IsBanned     bool       // Флаг блокировки
	ReferralCode string     // Собственный реферальный код пользователя
	ReferredByID *int64     // Кто пригласил пользователя (слабая ссылка)
	TrialUsed    bool       // Использован ли пробный период
	CreatedAt    time.Time  // Дата первого контакта
}
