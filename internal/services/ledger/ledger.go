// Package ledger реализует платёжный леджер — единственные ворота
// идемпотентности. Допуск события, начисление подписки и запуск
// синхронизации для одного пользователя сериализуются ключевым мьютексом;
// разные пользователи обрабатываются параллельно.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/artembakhtin/subscription-ledger/internal/lib/sl"
	"github.com/artembakhtin/subscription-ledger/internal/metrics"
	"github.com/artembakhtin/subscription-ledger/internal/models"
	"github.com/artembakhtin/subscription-ledger/internal/rabbitmq"
	"github.com/artembakhtin/subscription-ledger/internal/userlock"
)

// Result итог допуска платёжного события.
type Result string

const (
	// Credited событие допущено, подписка начислена.
	Credited Result = "credited"
	// Duplicate повторная доставка, начисления не было.
	Duplicate Result = "duplicate"
	// Rejected событие допущено, но начисление отклонено; повтор только вручную.
	Rejected Result = "rejected"
)

// Repository определяет методы хранилища, нужные леджеру.
type Repository interface {
	EnsureUser(ctx context.Context, user models.User) error
	InsertPaymentEvent(ctx context.Context, event models.PaymentEvent) (int64, bool, error)
	MarkPaymentStatus(ctx context.Context, paymentID int64, status models.PaymentStatus, reason string) error
}

// Accountant учётный сервис подписок.
type Accountant interface {
	Credit(ctx context.Context, userID int64, event models.CreditEvent) (*models.SubscriptionSnapshot, error)
	EvaluateReferral(ctx context.Context, referredID int64) (int64, int, error)
	CancelWithGrace(ctx context.Context, userID int64, grace time.Duration) (*models.SubscriptionSnapshot, error)
}

// SyncTrigger запускает синхронизацию пользователя с панелью.
type SyncTrigger interface {
	Trigger(userID int64)
}

// Publisher публикует события для бот-поверхности.
type Publisher interface {
	Publish(routingKey string, message any) error
}

// Service платёжный леджер.
type Service struct {
	repo       Repository
	accountant Accountant
	sync       SyncTrigger
	publisher  Publisher
	locks      *userlock.Keyed
	log        *slog.Logger
}

// New создает новый леджер.
func New(repo Repository, accountant Accountant, sync SyncTrigger, publisher Publisher, log *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		accountant: accountant,
		sync:       sync,
		publisher:  publisher,
		locks:      userlock.New(),
		log:        log,
	}
}

// CreditedEvent сообщение о начислении для бот-поверхности.
type CreditedEvent struct {
	UserID   int64     `json:"user_id"`
	Provider string    `json:"provider"`
	Amount   string    `json:"amount"`
	Currency string    `json:"currency"`
	Months   int       `json:"months"`
	EndDate  time.Time `json:"end_date"`
}

// Admit атомарно допускает платёжное событие и начисляет подписку.
// Существование пары (провайдер, идентификатор транзакции) проверяется
// одной вставкой с обнаружением конфликта: при штормах повторных доставок
// происходит ровно одно начисление. Отказ учётного сервиса помечает запись
// rejected — она не будет засчитана при повторной доставке без участия
// оператора.
func (s *Service) Admit(ctx context.Context, event *models.PaymentEvent) (Result, error) {
	const op = "ledger.Admit"
	log := s.log.With(
		slog.String("op", op),
		slog.String("provider", event.Provider),
		slog.String("provider_payment_id", event.ProviderPaymentID),
		slog.Int64("user_id", event.UserID),
	)

	if err := s.ensureUser(ctx, event.UserID, nil); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.locks.Lock(event.UserID)
	result, err := s.admitLocked(ctx, log, event)
	s.locks.Unlock(event.UserID)
	if err != nil || result != Credited {
		return result, err
	}

	// Реферальный бонус начисляется под мьютексом пригласившего,
	// уже после освобождения мьютекса приглашённого.
	s.grantReferral(ctx, log, event.UserID)
	s.sync.Trigger(event.UserID)
	return Credited, nil
}

func (s *Service) admitLocked(ctx context.Context, log *slog.Logger, event *models.PaymentEvent) (Result, error) {
	const op = "ledger.admitLocked"

	paymentID, inserted, err := s.repo.InsertPaymentEvent(ctx, *event)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if !inserted {
		log.Info("duplicate payment delivery ignored")
		metrics.PaymentsDuplicate.WithLabelValues(event.Provider).Inc()
		return Duplicate, nil
	}

	snapshot, err := s.accountant.Credit(ctx, event.UserID, models.CreditEvent{
		Kind:      models.CreditPayment,
		Months:    event.Months,
		PaymentID: paymentID,
		Amount:    event.Amount,
		Currency:  event.Currency,
	})
	if err != nil {
		log.Error("credit failed, payment rejected", sl.Err(err))
		metrics.PaymentsRejected.WithLabelValues(event.Provider).Inc()
		if markErr := s.repo.MarkPaymentStatus(ctx, paymentID, models.PaymentRejected, err.Error()); markErr != nil {
			log.Error("failed to mark payment rejected", sl.Err(markErr))
		}
		return Rejected, err
	}

	if err := s.repo.MarkPaymentStatus(ctx, paymentID, models.PaymentCredited, ""); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	metrics.PaymentsAdmitted.WithLabelValues(event.Provider).Inc()
	log.Info("payment credited", slog.Time("end_date", snapshot.EndDate))

	if err := s.publisher.Publish(rabbitmq.RouteCredited, CreditedEvent{
		UserID:   event.UserID,
		Provider: event.Provider,
		Amount:   event.Amount.StringFixed(2),
		Currency: event.Currency,
		Months:   event.Months,
		EndDate:  snapshot.EndDate,
	}); err != nil {
		log.Warn("failed to publish credited event", sl.Err(err))
	}

	return Credited, nil
}

// GrantTrial начисляет однократный пробный период. Триал — типичный первый
// контакт пользователя, поэтому запись в users создаётся здесь же; вместе
// с ней фиксируется пригласивший, если бот его передал.
func (s *Service) GrantTrial(ctx context.Context, userID int64, referredBy *int64) (*models.SubscriptionSnapshot, error) {
	const op = "ledger.GrantTrial"

	if err := s.ensureUser(ctx, userID, referredBy); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.locks.Lock(userID)
	snapshot, err := s.accountant.Credit(ctx, userID, models.CreditEvent{Kind: models.CreditTrial})
	s.locks.Unlock(userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.grantReferral(ctx, s.log.With(slog.String("op", op)), userID)
	s.sync.Trigger(userID)
	return snapshot, nil
}

// RedeemPromo активирует промокод для пользователя. Как и триал, промокод
// может быть первым контактом, поэтому пользователь регистрируется до начисления.
func (s *Service) RedeemPromo(ctx context.Context, userID int64, code string, referredBy *int64) (*models.SubscriptionSnapshot, error) {
	const op = "ledger.RedeemPromo"

	if err := s.ensureUser(ctx, userID, referredBy); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.locks.Lock(userID)
	snapshot, err := s.accountant.Credit(ctx, userID, models.CreditEvent{
		Kind:      models.CreditPromo,
		PromoCode: code,
	})
	s.locks.Unlock(userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.sync.Trigger(userID)
	return snapshot, nil
}

// Cancel обрабатывает отмену подписки на стороне провайдера:
// доступ сокращается до 24-часового льготного периода.
func (s *Service) Cancel(ctx context.Context, userID int64) error {
	const op = "ledger.Cancel"

	s.locks.Lock(userID)
	_, err := s.accountant.CancelWithGrace(ctx, userID, 24*time.Hour)
	s.locks.Unlock(userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.sync.Trigger(userID)
	return nil
}

// ensureUser регистрирует пользователя при первом контакте. Пригласивший
// записывается только если ещё не известен; ссылка на самого себя отбрасывается.
func (s *Service) ensureUser(ctx context.Context, userID int64, referredBy *int64) error {
	if referredBy != nil && *referredBy == userID {
		referredBy = nil
	}
	return s.repo.EnsureUser(ctx, models.User{
		ID:           userID,
		ReferralCode: uuid.NewString(),
		ReferredByID: referredBy,
	})
}

func (s *Service) grantReferral(ctx context.Context, log *slog.Logger, referredID int64) {
	referrerID, bonusDays, err := s.accountant.EvaluateReferral(ctx, referredID)
	if err != nil {
		log.Error("failed to evaluate referral bonus", sl.Err(err))
		return
	}
	if referrerID == 0 {
		return
	}

	s.locks.Lock(referrerID)
	_, err = s.accountant.Credit(ctx, referrerID, models.CreditEvent{
		Kind:      models.CreditReferral,
		BonusDays: bonusDays,
	})
	s.locks.Unlock(referrerID)
	if err != nil {
		log.Error("failed to credit referral bonus", sl.Err(err), slog.Int64("referrer_id", referrerID))
		return
	}

	log.Info("referral bonus credited",
		slog.Int64("referrer_id", referrerID), slog.Int("bonus_days", bonusDays))
	s.sync.Trigger(referrerID)
}
