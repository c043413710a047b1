package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/artembakhtin/subscription-ledger/internal/services/reconciler"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) ListSubscriptionUserIDs(ctx context.Context, afterUserID int64, limit int) ([]int64, error) {
	args := m.Called(ctx, afterUserID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

type MockReconciler struct {
	mock.Mock

	mu   sync.Mutex
	seen []int64
}

func (m *MockReconciler) Reconcile(ctx context.Context, userID int64) (reconciler.Result, error) {
	m.mu.Lock()
	m.seen = append(m.seen, userID)
	m.mu.Unlock()
	args := m.Called(ctx, userID)
	return args.Get(0).(reconciler.Result), args.Error(1)
}

func (m *MockReconciler) VerifyRemote(ctx context.Context, userID int64) (reconciler.Result, error) {
	m.mu.Lock()
	m.seen = append(m.seen, userID)
	m.mu.Unlock()
	args := m.Called(ctx, userID)
	return args.Get(0).(reconciler.Result), args.Error(1)
}

func (m *MockReconciler) seenUsers() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.seen...)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	return Config{
		ResyncInterval:    time.Hour,
		ResyncConcurrency: 4,
		ResyncBatchSize:   2,
	}
}

func TestRunFull_PagesThroughAllSubscriptions(t *testing.T) {
	repo := new(MockRepository)
	rec := new(MockReconciler)

	repo.On("ListSubscriptionUserIDs", mock.Anything, int64(0), 2).Return([]int64{1, 2}, nil)
	repo.On("ListSubscriptionUserIDs", mock.Anything, int64(2), 2).Return([]int64{5}, nil)
	repo.On("ListSubscriptionUserIDs", mock.Anything, int64(5), 2).Return([]int64{}, nil)
	// Полный обход сверяется с панелью, а не короткозамыкается по локальному хэшу.
	rec.On("VerifyRemote", mock.Anything, mock.Anything).Return(reconciler.Result{Status: reconciler.StatusSynced}, nil)

	service := New(repo, rec, testConfig(), newNoopLogger())
	err := service.RunFull(context.Background())

	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2, 5}, rec.seenUsers())
	repo.AssertExpectations(t)
}

func TestRunFull_SingleUserErrorDoesNotStopWalk(t *testing.T) {
	repo := new(MockRepository)
	rec := new(MockReconciler)

	repo.On("ListSubscriptionUserIDs", mock.Anything, int64(0), 2).Return([]int64{1, 2}, nil)
	repo.On("ListSubscriptionUserIDs", mock.Anything, int64(2), 2).Return([]int64{}, nil)
	rec.On("VerifyRemote", mock.Anything, int64(1)).Return(reconciler.Result{}, errors.New("panel down"))
	rec.On("VerifyRemote", mock.Anything, int64(2)).Return(reconciler.Result{Status: reconciler.StatusSynced}, nil)

	service := New(repo, rec, testConfig(), newNoopLogger())
	err := service.RunFull(context.Background())

	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2}, rec.seenUsers())
}

func TestRunFull_RepositoryError(t *testing.T) {
	repo := new(MockRepository)
	rec := new(MockReconciler)

	repo.On("ListSubscriptionUserIDs", mock.Anything, int64(0), 2).Return(nil, errors.New("db error"))

	service := New(repo, rec, testConfig(), newNoopLogger())
	err := service.RunFull(context.Background())

	assert.Error(t, err)
	rec.AssertNotCalled(t, "VerifyRemote", mock.Anything, mock.Anything)
}

func TestRun_ProcessesTriggers(t *testing.T) {
	repo := new(MockRepository)
	rec := new(MockReconciler)

	done := make(chan struct{})
	rec.On("Reconcile", mock.Anything, int64(42)).
		Return(reconciler.Result{Status: reconciler.StatusSynced}, nil).
		Run(func(mock.Arguments) { close(done) })

	service := New(repo, rec, testConfig(), newNoopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go service.Run(ctx)

	service.Trigger(42)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("trigger was not processed")
	}
	rec.AssertExpectations(t)
}

func TestRun_VerifyTriggerChecksPanelState(t *testing.T) {
	repo := new(MockRepository)
	rec := new(MockReconciler)

	done := make(chan struct{})
	rec.On("VerifyRemote", mock.Anything, int64(42)).
		Return(reconciler.Result{Status: reconciler.StatusSynced}, nil).
		Run(func(mock.Arguments) { close(done) })

	service := New(repo, rec, testConfig(), newNoopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go service.Run(ctx)

	service.TriggerVerify(42)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("verify trigger was not processed")
	}
	rec.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything)
}

func TestTrigger_DropsWhenQueueFull(t *testing.T) {
	repo := new(MockRepository)
	rec := new(MockReconciler)

	service := New(repo, rec, testConfig(), newNoopLogger())

	// Рабочий цикл не запущен, канал заполняется до отказа.
	for i := 0; i < 2000; i++ {
		service.Trigger(int64(i))
	}
	assert.Equal(t, 1024, len(service.triggers))
}
