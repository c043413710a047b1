// Package providers содержит верификаторы уведомлений платёжных провайдеров.
// Каждый провайдер имеет собственную схему подлинности (HMAC тела запроса,
// статический второй секрет, внутренний секрет бот-поверхности) и собственный
// формат сообщения. Верификатор проверяет подпись и приводит уведомление
// к каноническому платёжному событию; новый провайдер добавляется новым
// вариантом, существующие не меняются.
package providers

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"

	"github.com/artembakhtin/subscription-ledger/internal/models"
)

var (
	// ErrBadSignature подпись уведомления не прошла проверку.
	ErrBadSignature = errors.New("bad signature")
	// ErrMalformed тело уведомления не удалось разобрать.
	ErrMalformed = errors.New("malformed payload")
	// ErrUnknownProvider провайдер не зарегистрирован.
	ErrUnknownProvider = errors.New("unknown provider")
)

// Kind вид распознанного уведомления.
type Kind string

const (
	// KindPayment уведомление об успешном платеже.
	KindPayment Kind = "payment"
	// KindCancellation отмена подписки на стороне провайдера.
	KindCancellation Kind = "cancellation"
	// KindIgnored событие, не требующее действий (квитируется без мутаций).
	KindIgnored Kind = "ignored"
)

// Notification результат успешной верификации уведомления.
type Notification struct {
	Kind   Kind
	Event  *models.PaymentEvent // Заполнено для KindPayment
	UserID int64                // Заполнено для KindCancellation
	Reason string               // Причина для KindIgnored
}

// Verifier верификатор уведомлений одного провайдера.
// Verify не имеет побочных эффектов: при любой ошибке состояние не меняется.
type Verifier interface {
	Provider() string
	Verify(body []byte, headers http.Header) (*Notification, error)
}

// Registry закрытый набор зарегистрированных верификаторов.
type Registry struct {
	verifiers map[string]Verifier
}

// NewRegistry создаёт реестр из переданных верификаторов.
func NewRegistry(vs ...Verifier) *Registry {
	m := make(map[string]Verifier, len(vs))
	for _, v := range vs {
		m[v.Provider()] = v
	}
	return &Registry{verifiers: m}
}

// Get возвращает верификатор провайдера или ErrUnknownProvider.
func (r *Registry) Get(provider string) (Verifier, error) {
	v, ok := r.verifiers[provider]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return v, nil
}

func payloadHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
