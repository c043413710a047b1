package panel

import "time"

// Статусы учётной записи на панели.
const (
	StatusActive   = "ACTIVE"
	StatusDisabled = "DISABLED"
)

// UserRequest тело запроса создания или обновления учётной записи панели.
type UserRequest struct {
	Username          string    `json:"username,omitempty"`
	TelegramID        int64     `json:"telegramId,omitempty"`
	ExpireAt          time.Time `json:"expireAt"`
	TrafficLimitBytes int64     `json:"trafficLimitBytes"`
	Squads            []string  `json:"activeInternalSquads"`
	Status            string    `json:"status"`
}

// User учётная запись на панели.
type User struct {
	UUID              string    `json:"uuid"`
	Username          string    `json:"username"`
	TelegramID        int64     `json:"telegramId"`
	ExpireAt          time.Time `json:"expireAt"`
	TrafficLimitBytes int64     `json:"trafficLimitBytes"`
	Squads            []string  `json:"activeInternalSquads"`
	Status            string    `json:"status"`
	SubscriptionURL   string    `json:"subscriptionUrl"`
}

type userResponse struct {
	Response User `json:"response"`
}
