// Package reconciler синхронизирует локальное состояние подписки
// с панелью управления доступом и обнаруживает дрейф между ними.
// Панель — система записи фактического доступа; леджер и подписка
// при этом остаются локально корректными даже при недоступной панели.
package reconciler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/artembakhtin/subscription-ledger/internal/lib/sl"
	"github.com/artembakhtin/subscription-ledger/internal/metrics"
	"github.com/artembakhtin/subscription-ledger/internal/models"
	"github.com/artembakhtin/subscription-ledger/internal/panel"
	"github.com/artembakhtin/subscription-ledger/internal/rabbitmq"
)

// Status итог синхронизации.
type Status string

const (
	// StatusSynced состояние панели соответствует локальному.
	StatusSynced Status = "synced"
	// StatusDrifted обнаружен дрейф панели, состояние восстановлено.
	StatusDrifted Status = "drifted"
	// StatusFailed синхронизация не удалась после всех повторов.
	StatusFailed Status = "failed"
)

// Result результат одной синхронизации.
type Result struct {
	Status Status
	Detail string
}

// Repository определяет методы хранилища, нужные синхронизатору.
type Repository interface {
	GetSyncRecord(ctx context.Context, userID int64) (*models.PanelSyncRecord, error)
	UpsertSyncRecord(ctx context.Context, record models.PanelSyncRecord) error
	SetPanelUserUUID(ctx context.Context, userID int64, panelUUID string) error
}

// SnapshotSource источник снимков подписки (учётный сервис).
type SnapshotSource interface {
	Snapshot(ctx context.Context, userID int64) (*models.SubscriptionSnapshot, error)
}

// PanelClient клиент панели управления доступом.
type PanelClient interface {
	CreateUser(ctx context.Context, req panel.UserRequest) (*panel.User, error)
	UpdateUser(ctx context.Context, uuid string, req panel.UserRequest) (*panel.User, error)
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*panel.User, error)
}

// Publisher публикует результаты синхронизации для бот-поверхности.
type Publisher interface {
	Publish(routingKey string, message any) error
}

// Service синхронизатор панели.
type Service struct {
	repo      Repository
	source    SnapshotSource
	client    PanelClient
	publisher Publisher
	log       *slog.Logger

	maxAttempts  int
	retryBackoff time.Duration
}

// New создает новый синхронизатор.
func New(repo Repository, source SnapshotSource, client PanelClient, publisher Publisher, log *slog.Logger) *Service {
	return &Service{
		repo:         repo,
		source:       source,
		client:       client,
		publisher:    publisher,
		log:          log,
		maxAttempts:  3,
		retryBackoff: 500 * time.Millisecond,
	}
}

// SyncEvent сообщение о результате синхронизации.
type SyncEvent struct {
	UserID int64  `json:"user_id"`
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Reconcile приводит учётную запись панели к желаемому состоянию подписки
// после локального изменения. Если хэш желаемого состояния совпадает с
// последним синхронизированным, вызов панели не выполняется — повторные
// локальные триггеры не создают нагрузку на панель.
func (s *Service) Reconcile(ctx context.Context, userID int64) (Result, error) {
	return s.reconcile(ctx, userID, false)
}

// VerifyRemote сверяет фактическое состояние панели с желаемым независимо
// от локального хэша: так обнаруживается дрейф после правок панели в обход
// бота. Используется полным обходом, вебхуком панели и ручной синхронизацией.
func (s *Service) VerifyRemote(ctx context.Context, userID int64) (Result, error) {
	return s.reconcile(ctx, userID, true)
}

// reconcile общая часть синхронизации. Временные ошибки панели повторяются
// с экспоненциальной задержкой; после исчерпания попыток ошибка фиксируется
// в записи синхронизации, начисленная подписка не откатывается.
func (s *Service) reconcile(ctx context.Context, userID int64, verifyRemote bool) (Result, error) {
	const op = "reconciler.reconcile"
	log := s.log.With(slog.String("op", op), slog.Int64("user_id", userID))

	snapshot, err := s.source.Snapshot(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	if snapshot.Status == models.StatusNone {
		return Result{Status: StatusSynced, Detail: "no subscription"}, nil
	}

	desiredHash := snapshotHash(snapshot)

	record, err := s.repo.GetSyncRecord(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	if !verifyRemote && record != nil && record.LocalHash == desiredHash && record.LastError == "" {
		metrics.PanelSyncs.WithLabelValues("noop").Inc()
		return Result{Status: StatusSynced, Detail: "unchanged"}, nil
	}

	result, err := s.push(ctx, log, userID, snapshot, record, desiredHash)
	if err != nil {
		detail := err.Error()
		metrics.PanelSyncs.WithLabelValues("failed").Inc()
		failed := models.PanelSyncRecord{UserID: userID, LastError: detail, NeedsReview: true}
		if record != nil {
			failed.LocalHash = record.LocalHash
			failed.RemoteHash = record.RemoteHash
		}
		if recErr := s.repo.UpsertSyncRecord(ctx, failed); recErr != nil {
			log.Error("failed to record sync failure", sl.Err(recErr))
		}
		s.publish(log, SyncEvent{UserID: userID, Status: StatusFailed, Detail: detail})
		return Result{Status: StatusFailed, Detail: detail}, nil
	}

	if result.status == StatusSynced && result.detail == "verified" {
		// Сверка подтвердила состояние панели, запись и события не нужны.
		metrics.PanelSyncs.WithLabelValues("noop").Inc()
		return Result{Status: StatusSynced, Detail: result.detail}, nil
	}

	if err := s.repo.UpsertSyncRecord(ctx, models.PanelSyncRecord{
		UserID:     userID,
		LocalHash:  desiredHash,
		RemoteHash: result.remoteHash,
	}); err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	metrics.PanelSyncs.WithLabelValues(string(result.status)).Inc()
	s.publish(log, SyncEvent{UserID: userID, Status: result.status, Detail: result.detail})
	return Result{Status: result.status, Detail: result.detail}, nil
}

type pushResult struct {
	status     Status
	detail     string
	remoteHash string
}

func (s *Service) push(ctx context.Context, log *slog.Logger, userID int64, snapshot *models.SubscriptionSnapshot, record *models.PanelSyncRecord, desiredHash string) (pushResult, error) {
	desired := panel.UserRequest{
		TelegramID:        userID,
		ExpireAt:          snapshot.EndDate.UTC(),
		TrafficLimitBytes: snapshot.TrafficLimit,
		Squads:            snapshot.Squads,
		Status:            panel.StatusActive,
	}
	if snapshot.Disabled {
		desired.Status = panel.StatusDisabled
	}

	remote, err := s.withRetry(ctx, func(ctx context.Context) (*panel.User, error) {
		return s.client.GetUserByTelegramID(ctx, userID)
	})
	if err != nil && err != panel.ErrUserNotFound {
		return pushResult{}, err
	}

	status := StatusSynced
	detail := ""
	if remote == nil {
		desired.Username = fmt.Sprintf("tg_%d", userID)
		created, err := s.withRetry(ctx, func(ctx context.Context) (*panel.User, error) {
			return s.client.CreateUser(ctx, desired)
		})
		if err != nil {
			return pushResult{}, err
		}
		if err := s.repo.SetPanelUserUUID(ctx, userID, created.UUID); err != nil {
			return pushResult{}, err
		}
		detail = "created"
		remote = created
	} else {
		remoteHash := remoteStateHash(remote)
		if record != nil && record.RemoteHash != "" && record.RemoteHash != remoteHash {
			// Панель изменили в обход бота: фиксируем дрейф и восстанавливаем.
			status = StatusDrifted
			detail = "panel state changed externally"
			log.Warn("panel drift detected", slog.String("remote_hash", remoteHash))
		} else if record != nil && record.LocalHash == desiredHash &&
			record.RemoteHash == remoteHash && record.LastError == "" {
			// Панель совпадает с последней успешной записью: сверка без обновления.
			return pushResult{status: StatusSynced, detail: "verified", remoteHash: remoteHash}, nil
		}
		updated, err := s.withRetry(ctx, func(ctx context.Context) (*panel.User, error) {
			return s.client.UpdateUser(ctx, remote.UUID, desired)
		})
		if err != nil {
			return pushResult{}, err
		}
		remote = updated
	}

	return pushResult{
		status:     status,
		detail:     detail,
		remoteHash: remoteStateHash(remote),
	}, nil
}

// withRetry повторяет временные ошибки панели с экспоненциальной задержкой.
func (s *Service) withRetry(ctx context.Context, call func(ctx context.Context) (*panel.User, error)) (*panel.User, error) {
	backoff := s.retryBackoff
	var lastErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		user, err := call(ctx)
		if err == nil || err == panel.ErrUserNotFound {
			return user, err
		}
		if !panel.IsTransient(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (s *Service) publish(log *slog.Logger, event SyncEvent) {
	route := rabbitmq.RouteSynced
	if event.Status == StatusFailed {
		route = rabbitmq.RouteSyncFailed
	}
	if err := s.publisher.Publish(route, event); err != nil {
		log.Warn("failed to publish sync event", sl.Err(err))
	}
}

// snapshotHash детерминированный хэш желаемого состояния панели.
func snapshotHash(snapshot *models.SubscriptionSnapshot) string {
	squads := append([]string(nil), snapshot.Squads...)
	sort.Strings(squads)
	parts := []string{
		strconv.FormatInt(snapshot.EndDate.UTC().Unix(), 10),
		strconv.FormatInt(snapshot.TrafficLimit, 10),
		strings.Join(squads, "|"),
		strconv.FormatBool(snapshot.Disabled),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, ";")))
	return hex.EncodeToString(sum[:])
}

// remoteStateHash детерминированный хэш наблюдаемого состояния панели.
func remoteStateHash(user *panel.User) string {
	squads := append([]string(nil), user.Squads...)
	sort.Strings(squads)
	parts := []string{
		strconv.FormatInt(user.ExpireAt.UTC().Unix(), 10),
		strconv.FormatInt(user.TrafficLimitBytes, 10),
		strings.Join(squads, "|"),
		user.Status,
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, ";")))
	return hex.EncodeToString(sum[:])
}
