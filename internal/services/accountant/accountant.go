// Package accountant реализует учёт подписочного времени: превращение
// события начисления (платёж, промокод, реферальный бонус, триал)
// в новое состояние подписки пользователя.
package accountant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/artembakhtin/subscription-ledger/internal/models"
	"github.com/artembakhtin/subscription-ledger/internal/storage/repository"
)

var (
	// ErrTrialAlreadyGranted пробный период уже был использован.
	ErrTrialAlreadyGranted = errors.New("trial already granted")
	// ErrPromoNotActive промокод вне окна действия.
	ErrPromoNotActive = errors.New("promo code is not active")
	// ErrUnknownCreditKind неизвестный вид события начисления.
	ErrUnknownCreditKind = errors.New("unknown credit kind")
)

// Repository определяет методы хранилища, нужные учётному сервису.
type Repository interface {
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	ConsumeTrial(ctx context.Context, userID int64) (bool, error)
	GetSubscription(ctx context.Context, userID int64) (*models.Subscription, error)
	UpsertSubscription(ctx context.Context, sub models.Subscription) error
	GetPromoCodeByCode(ctx context.Context, code string) (*models.PromoCode, error)
	RedeemPromoCode(ctx context.Context, codeID, userID int64) error
	InsertReferralBonus(ctx context.Context, referrerID, referredID int64, bonusDays int) (bool, error)
	SetUserBanned(ctx context.Context, userID int64, banned bool) error
}

// Config параметры начисления: squad-группы и лимиты по умолчанию и для триала.
type Config struct {
	DefaultSquads     []string
	TrialSquads       []string
	TrafficLimitBytes int64
	TrialTrafficBytes int64
	TrialDays         int
	ReferralBonusDays int
}

// Service учётный сервис. Владеет записью подписки; все мутации одного
// пользователя должны выполняться под его ключевым мьютексом.
type Service struct {
	repo Repository
	cfg  Config
	log  *slog.Logger
	now  func() time.Time
}

// New создает новый учётный сервис.
func New(repo Repository, cfg Config, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		cfg:  cfg,
		log:  log,
		now:  time.Now,
	}
}

// Credit применяет событие начисления к подписке пользователя и возвращает
// снимок нового состояния. Новая дата окончания считается как
// max(now, текущая дата окончания) + длительность события: просроченная
// подписка продлевается от момента покупки, досрочное продление сохраняет
// неиспользованный остаток.
func (s *Service) Credit(ctx context.Context, userID int64, event models.CreditEvent) (*models.SubscriptionSnapshot, error) {
	const op = "accountant.Credit"

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sub, err := s.repo.GetSubscription(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	base := now
	if sub != nil && !sub.Revoked && sub.EndDate.After(now) {
		base = sub.EndDate
	}

	next := models.Subscription{
		UserID:       userID,
		TrafficLimit: s.cfg.TrafficLimitBytes,
		Squads:       s.cfg.DefaultSquads,
	}
	if sub != nil {
		next.PanelUserUUID = sub.PanelUserUUID
	}

	switch event.Kind {
	case models.CreditTrial:
		consumed, err := s.repo.ConsumeTrial(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if !consumed {
			return nil, fmt.Errorf("%s: %w", op, ErrTrialAlreadyGranted)
		}
		next.EndDate = base.AddDate(0, 0, s.cfg.TrialDays)
		next.IsTrial = true

	case models.CreditPayment:
		if event.Months <= 0 {
			return nil, fmt.Errorf("%s: payment without period", op)
		}
		next.EndDate = base.AddDate(0, event.Months, 0)

	case models.CreditPromo:
		promo, err := s.repo.GetPromoCodeByCode(ctx, event.PromoCode)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if now.Before(promo.ValidFrom) || now.After(promo.ValidUntil) {
			return nil, fmt.Errorf("%s: %w", op, ErrPromoNotActive)
		}
		if err := s.repo.RedeemPromoCode(ctx, promo.ID, userID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		next.EndDate = base.AddDate(0, 0, promo.BonusDays)
		next.IsTrial = s.keepTrial(sub, now)

	case models.CreditReferral:
		if event.BonusDays <= 0 {
			return nil, fmt.Errorf("%s: referral bonus without days", op)
		}
		next.EndDate = base.AddDate(0, 0, event.BonusDays)
		next.IsTrial = s.keepTrial(sub, now)

	default:
		return nil, fmt.Errorf("%s: %w: %s", op, ErrUnknownCreditKind, event.Kind)
	}

	if next.IsTrial {
		next.TrafficLimit = s.cfg.TrialTrafficBytes
		next.Squads = s.cfg.TrialSquads
	}

	if err := s.repo.UpsertSubscription(ctx, next); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("subscription credited",
		slog.Int64("user_id", userID),
		slog.String("kind", string(event.Kind)),
		slog.Time("end_date", next.EndDate))

	snapshot := s.snapshot(&next, user, now)
	return snapshot, nil
}

// EvaluateReferral проверяет, положен ли пригласившему бонус за первое
// засчитанное начисление приглашённого. Уникальный индекс на пару
// (пригласивший, приглашённый) гарантирует не более одного бонуса,
// сколько бы платежей ни совершил приглашённый.
func (s *Service) EvaluateReferral(ctx context.Context, referredID int64) (int64, int, error) {
	const op = "accountant.EvaluateReferral"

	user, err := s.repo.GetUser(ctx, referredID)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", op, err)
	}
	if user.ReferredByID == nil {
		return 0, 0, nil
	}

	granted, err := s.repo.InsertReferralBonus(ctx, *user.ReferredByID, referredID, s.cfg.ReferralBonusDays)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", op, err)
	}
	if !granted {
		return 0, 0, nil
	}
	return *user.ReferredByID, s.cfg.ReferralBonusDays, nil
}

// CancelWithGrace сокращает подписку до короткого льготного периода после
// отмены на стороне провайдера. Дата окончания только уменьшается:
// отмена не может продлить доступ.
func (s *Service) CancelWithGrace(ctx context.Context, userID int64, grace time.Duration) (*models.SubscriptionSnapshot, error) {
	const op = "accountant.CancelWithGrace"

	sub, err := s.repo.GetSubscription(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if sub == nil {
		return nil, nil
	}

	now := s.now()
	graceEnd := now.Add(grace)
	if graceEnd.Before(sub.EndDate) {
		sub.EndDate = graceEnd
	}
	if err := s.repo.UpsertSubscription(ctx, *sub); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("subscription cancelled with grace period",
		slog.Int64("user_id", userID), slog.Time("end_date", sub.EndDate))

	return s.snapshot(sub, user, now), nil
}

// Revoke явный отзыв подписки администратором — единственное разрешённое
// нарушение монотонности даты окончания.
func (s *Service) Revoke(ctx context.Context, userID int64) (*models.SubscriptionSnapshot, error) {
	const op = "accountant.Revoke"

	sub, err := s.repo.GetSubscription(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if sub == nil {
		return nil, nil
	}

	sub.Revoked = true
	if err := s.repo.UpsertSubscription(ctx, *sub); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.snapshot(sub, user, s.now()), nil
}

// SetBanned выставляет блокировку пользователя; заблокированный пользователь
// остаётся в леджере, но его учётная запись на панели выключается.
func (s *Service) SetBanned(ctx context.Context, userID int64, banned bool) error {
	const op = "accountant.SetBanned"
	if err := s.repo.SetUserBanned(ctx, userID, banned); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Snapshot возвращает текущий снимок подписки без мутаций.
func (s *Service) Snapshot(ctx context.Context, userID int64) (*models.SubscriptionSnapshot, error) {
	const op = "accountant.Snapshot"

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sub, err := s.repo.GetSubscription(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if sub == nil {
		return &models.SubscriptionSnapshot{UserID: userID, Status: models.StatusNone, Disabled: user.IsBanned}, nil
	}
	return s.snapshot(sub, user, s.now()), nil
}

func (s *Service) keepTrial(sub *models.Subscription, now time.Time) bool {
	return sub != nil && sub.IsTrial && sub.StatusAt(now) == models.StatusTrial
}

func (s *Service) snapshot(sub *models.Subscription, user *models.User, now time.Time) *models.SubscriptionSnapshot {
	return &models.SubscriptionSnapshot{
		UserID:       sub.UserID,
		EndDate:      sub.EndDate,
		TrafficLimit: sub.TrafficLimit,
		Squads:       sub.Squads,
		Status:       sub.StatusAt(now),
		Disabled:     user.IsBanned,
	}
}

// IsBusinessRuleViolation сообщает, является ли ошибка нарушением бизнес-правила:
// такие ошибки возвращаются инициатору и не приводят ни к каким мутациям.
func IsBusinessRuleViolation(err error) bool {
	return errors.Is(err, ErrTrialAlreadyGranted) ||
		errors.Is(err, ErrPromoNotActive) ||
		errors.Is(err, repository.ErrPromoNotFound) ||
		errors.Is(err, repository.ErrPromoAlreadyRedeemed) ||
		errors.Is(err, repository.ErrPromoExhausted)
}
