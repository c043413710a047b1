package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artembakhtin/subscription-ledger/internal/models"
)

func testPaymentEvent(userID int64) models.PaymentEvent {
	return models.PaymentEvent{
		Provider:          "tribute",
		ProviderPaymentID: "pay-1",
		UserID:            userID,
		Amount:            decimal.RequireFromString("500.00"),
		Currency:          "RUB",
		Months:            1,
		PayloadHash:       "hash-1",
	}
}

func TestStorage_InsertPaymentEvent(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	factory.CreateUser(t, 42, "alice", "ref-42", nil)

	ctx := context.Background()
	event := testPaymentEvent(42)

	id, inserted, err := storage.InsertPaymentEvent(ctx, event)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Positive(t, id)

	// Повторная доставка того же события: без новой записи, счётчик растёт.
	_, inserted, err = storage.InsertPaymentEvent(ctx, event)
	require.NoError(t, err)
	assert.False(t, inserted)

	var count, duplicates int
	err = storage.DB.QueryRow(`SELECT COUNT(*), MAX(duplicate_count) FROM payments
		WHERE provider = $1 AND provider_payment_id = $2`,
		event.Provider, event.ProviderPaymentID).Scan(&count, &duplicates)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, duplicates)

	// То же событие у другого провайдера — отдельная запись.
	other := event
	other.Provider = "freekassa"
	_, inserted, err = storage.InsertPaymentEvent(ctx, other)
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestStorage_MarkPaymentStatus(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	factory.CreateUser(t, 42, "alice", "ref-42", nil)

	ctx := context.Background()
	id, _, err := storage.InsertPaymentEvent(ctx, testPaymentEvent(42))
	require.NoError(t, err)

	err = storage.MarkPaymentStatus(ctx, id, models.PaymentRejected, "credit failed")
	require.NoError(t, err)

	var status, reason string
	err = storage.DB.QueryRow(`SELECT status, reason FROM payments WHERE id = $1`, id).
		Scan(&status, &reason)
	require.NoError(t, err)
	assert.Equal(t, string(models.PaymentRejected), status)
	assert.Equal(t, "credit failed", reason)
}

func TestStorage_ListRecentPayments(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	factory.CreateUser(t, 42, "alice", "ref-42", nil)
	for _, paymentID := range []string{"pay-1", "pay-2", "pay-3"} {
		factory.CreatePayment(t, "tribute", paymentID, 42,
			decimal.RequireFromString("100.00"), "RUB", models.PaymentCredited)
	}

	payments, err := storage.ListRecentPayments(context.Background(), 2, 0)
	require.NoError(t, err)
	assert.Len(t, payments, 2)

	payments, err = storage.ListRecentPayments(context.Background(), 10, 2)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestStorage_GetFinancialStats(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	factory.CreateUser(t, 42, "alice", "ref-42", nil)
	factory.CreatePayment(t, "tribute", "pay-1", 42, decimal.RequireFromString("500.00"), "RUB", models.PaymentCredited)
	factory.CreatePayment(t, "tribute", "pay-2", 42, decimal.RequireFromString("300.00"), "RUB", models.PaymentCredited)
	factory.CreatePayment(t, "cryptopay", "inv-1", 42, decimal.RequireFromString("5.50"), "USDT", models.PaymentCredited)
	// Отклонённые платежи в сводку не входят.
	factory.CreatePayment(t, "tribute", "pay-3", 42, decimal.RequireFromString("999.00"), "RUB", models.PaymentRejected)

	now := time.Now()
	stats, err := storage.GetFinancialStats(context.Background(), now.AddDate(0, 0, -1), now.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, "cryptopay", stats[0].Provider)
	assert.Equal(t, "USDT", stats[0].Currency)
	assert.True(t, stats[0].TotalAmount.Equal(decimal.RequireFromString("5.50")))
	assert.Equal(t, 1, stats[0].PaymentsCount)

	assert.Equal(t, "tribute", stats[1].Provider)
	assert.Equal(t, "RUB", stats[1].Currency)
	assert.True(t, stats[1].TotalAmount.Equal(decimal.RequireFromString("800.00")))
	assert.Equal(t, 2, stats[1].PaymentsCount)
}

func TestStorage_SubscriptionRoundtrip(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	factory.CreateUser(t, 42, "alice", "ref-42", nil)

	ctx := context.Background()

	got, err := storage.GetSubscription(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, got)

	endDate := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	err = storage.UpsertSubscription(ctx, models.Subscription{
		UserID:       42,
		EndDate:      endDate,
		TrafficLimit: 500 << 30,
		Squads:       []string{"main", "premium"},
		IsTrial:      false,
	})
	require.NoError(t, err)

	got, err = storage.GetSubscription(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.EndDate.Equal(endDate))
	assert.Equal(t, []string{"main", "premium"}, got.Squads)

	// Повторный Upsert обновляет ту же запись.
	err = storage.UpsertSubscription(ctx, models.Subscription{
		UserID:       42,
		EndDate:      endDate.AddDate(0, 1, 0),
		TrafficLimit: 500 << 30,
		Squads:       []string{"main"},
		Revoked:      true,
	})
	require.NoError(t, err)

	got, err = storage.GetSubscription(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.EndDate.Equal(endDate.AddDate(0, 1, 0)))
	assert.Equal(t, []string{"main"}, got.Squads)
	assert.True(t, got.Revoked)

	err = storage.SetPanelUserUUID(ctx, 42, "panel-uuid-1")
	require.NoError(t, err)

	got, err = storage.GetSubscription(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "panel-uuid-1", got.PanelUserUUID)
}

func TestStorage_ListSubscriptionUserIDs(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	endDate := time.Now().AddDate(0, 1, 0)
	for _, userID := range []int64{1, 2, 5, 9} {
		factory.CreateUser(t, userID, "user", "ref-"+string(rune('0'+userID)), nil)
		factory.CreateSubscription(t, userID, endDate, []string{"main"})
	}

	ctx := context.Background()

	page, err := storage.ListSubscriptionUserIDs(ctx, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 5}, page)

	page, err = storage.ListSubscriptionUserIDs(ctx, 5, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{9}, page)

	page, err = storage.ListSubscriptionUserIDs(ctx, 9, 3)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestStorage_RedeemPromoCode(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	factory.CreateUser(t, 42, "alice", "ref-42", nil)
	factory.CreateUser(t, 43, "bob", "ref-43", nil)

	now := time.Now()
	codeID := factory.CreatePromoCode(t, "WELCOME", 7, 1, now.AddDate(0, 0, -1), now.AddDate(0, 0, 1))

	ctx := context.Background()

	err := storage.RedeemPromoCode(ctx, codeID, 42)
	require.NoError(t, err)

	// Повторная активация тем же пользователем.
	err = storage.RedeemPromoCode(ctx, codeID, 42)
	assert.ErrorIs(t, err, ErrPromoAlreadyRedeemed)

	// Лимит активаций исчерпан первым пользователем.
	err = storage.RedeemPromoCode(ctx, codeID, 43)
	assert.ErrorIs(t, err, ErrPromoExhausted)

	// Откат транзакции не оставляет активацию за пользователем 43.
	promo, err := storage.GetPromoCodeByCode(ctx, "WELCOME")
	require.NoError(t, err)
	assert.Equal(t, 1, promo.UsageCount)

	var redemptions int
	err = storage.DB.QueryRow(`SELECT COUNT(*) FROM promo_redemptions WHERE code_id = $1`, codeID).
		Scan(&redemptions)
	require.NoError(t, err)
	assert.Equal(t, 1, redemptions)
}

func TestStorage_GetPromoCodeByCode_NotFound(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	_, err := storage.GetPromoCodeByCode(context.Background(), "MISSING")
	assert.ErrorIs(t, err, ErrPromoNotFound)
}

func TestStorage_InsertReferralBonus(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	factory.CreateUser(t, 1, "referrer", "ref-1", nil)
	referrerID := int64(1)
	factory.CreateUser(t, 2, "referred", "ref-2", &referrerID)

	ctx := context.Background()

	inserted, err := storage.InsertReferralBonus(ctx, 1, 2, 7)
	require.NoError(t, err)
	assert.True(t, inserted)

	// Бонус на пару выдаётся не более одного раза.
	inserted, err = storage.InsertReferralBonus(ctx, 1, 2, 7)
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestStorage_Users(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	ctx := context.Background()

	err := storage.EnsureUser(ctx, models.User{ID: 42, Username: "alice", LanguageCode: "ru", ReferralCode: "ref-42"})
	require.NoError(t, err)

	// Повторный контакт обновляет имя, не трогая остальное.
	err = storage.EnsureUser(ctx, models.User{ID: 42, Username: "alice_new", LanguageCode: "en", ReferralCode: "other"})
	require.NoError(t, err)

	user, err := storage.GetUser(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "alice_new", user.Username)
	assert.Equal(t, "en", user.LanguageCode)
	assert.Equal(t, "ref-42", user.ReferralCode)
	assert.False(t, user.IsBanned)

	err = storage.SetUserBanned(ctx, 42, true)
	require.NoError(t, err)

	user, err = storage.GetUser(ctx, 42)
	require.NoError(t, err)
	assert.True(t, user.IsBanned)

	err = storage.SetUserBanned(ctx, 404, true)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = storage.GetUser(ctx, 404)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestStorage_EnsureUser_ReferrerBackfill(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	factory.CreateUser(t, 1, "referrer", "ref-1", nil)

	ctx := context.Background()

	// Первый контакт без реферера.
	err := storage.EnsureUser(ctx, models.User{ID: 42, Username: "bob", ReferralCode: "ref-42"})
	require.NoError(t, err)

	user, err := storage.GetUser(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, user.ReferredByID)

	// Позже пришёл реферер, пустое поле заполняется.
	referrerID := int64(1)
	err = storage.EnsureUser(ctx, models.User{ID: 42, Username: "bob", ReferralCode: "other", ReferredByID: &referrerID})
	require.NoError(t, err)

	user, err = storage.GetUser(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, user.ReferredByID)
	assert.Equal(t, int64(1), *user.ReferredByID)

	// Уже записанный реферер не перезаписывается.
	factory.CreateUser(t, 3, "another", "ref-3", nil)
	anotherID := int64(3)
	err = storage.EnsureUser(ctx, models.User{ID: 42, Username: "bob", ReferralCode: "other", ReferredByID: &anotherID})
	require.NoError(t, err)

	user, err = storage.GetUser(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, user.ReferredByID)
	assert.Equal(t, int64(1), *user.ReferredByID)
}

func TestStorage_ConsumeTrial(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	factory.CreateUser(t, 42, "alice", "ref-42", nil)

	ctx := context.Background()

	consumed, err := storage.ConsumeTrial(ctx, 42)
	require.NoError(t, err)
	assert.True(t, consumed)

	// Триал одноразовый.
	consumed, err = storage.ConsumeTrial(ctx, 42)
	require.NoError(t, err)
	assert.False(t, consumed)
}

func TestStorage_SyncRecords(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	factory.CreateUser(t, 42, "alice", "ref-42", nil)

	ctx := context.Background()

	record, err := storage.GetSyncRecord(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, record)

	err = storage.UpsertSyncRecord(ctx, models.PanelSyncRecord{
		UserID:     42,
		LocalHash:  "local-1",
		RemoteHash: "remote-1",
	})
	require.NoError(t, err)

	record, err = storage.GetSyncRecord(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "local-1", record.LocalHash)
	assert.Equal(t, "remote-1", record.RemoteHash)
	assert.NotNil(t, record.LastAttemptAt)
	assert.False(t, record.NeedsReview)

	err = storage.MarkSyncNeedsReview(ctx, 42, "panel unavailable")
	require.NoError(t, err)

	record, err = storage.GetSyncRecord(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, record)
	// Хэши сохраняются, поднимается только флаг.
	assert.Equal(t, "local-1", record.LocalHash)
	assert.True(t, record.NeedsReview)
	assert.Equal(t, "panel unavailable", record.LastError)
}
