package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/finflow/backend/internal/log"
	"github.com/finflow/backend/internal/model"
	"github.com/finflow/backend/internal/store"
)

var testNow = time.Date(2026, time.June, 10, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*FinanceService, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	svc := NewFinanceService(mem, log.New(slog.LevelError), Config{LowBalanceThreshold: 100})
	svc.now = func() time.Time { return testNow }
	return svc, mem
}

func newMockService(t *testing.T) (*FinanceService, *store.MockStore) {
	t.Helper()
	ctrl := gomock.NewController(t)
	mock := store.NewMockStore(ctrl)
	svc := NewFinanceService(mock, log.New(slog.LevelError), Config{LowBalanceThreshold: 100})
	svc.now = func() time.Time { return testNow }
	return svc, mock
}

func seedGoal(t *testing.T, mem *store.MemoryStore, id string, target, current float64, deadline time.Time) {
	t.Helper()
	err := mem.CreateGoal(context.Background(), &model.Goal{
		Id:            id,
		UserId:        "user-1",
		Name:          id,
		TargetAmount:  target,
		CurrentAmount: current,
		Deadline:      deadline,
	})
	require.NoError(t, err)
}

func getGoal(t *testing.T, mem *store.MemoryStore, id string) *model.Goal {
	t.Helper()
	goal, err := mem.GetGoal(context.Background(), id)
	require.NoError(t, err)
	return goal
}

func TestCreateTransactionValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		tx    *model.Transaction
		field string
	}{
		{
			name:  "unknown type",
			tx:    &model.Transaction{Type: "transfer", Amount: 10, Category: "misc"},
			field: "type",
		},
		{
			name:  "zero amount",
			tx:    &model.Transaction{Type: model.TransactionTypeIncome, Amount: 0, Category: "salary"},
			field: "amount",
		},
		{
			name:  "negative amount",
			tx:    &model.Transaction{Type: model.TransactionTypeExpense, Amount: -5, Category: "food"},
			field: "amount",
		},
		{
			name:  "missing category",
			tx:    &model.Transaction{Type: model.TransactionTypeIncome, Amount: 10},
			field: "category",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateTransaction(ctx, "user-1", tt.tx)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestCreateTransactionFundsGoals(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	seedGoal(t, mem, "g1", 100, 0, testNow.AddDate(0, 2, 0))

	tx, err := svc.CreateTransaction(ctx, "user-1", &model.Transaction{
		Type: model.TransactionTypeIncome, Amount: 60, Category: "salary",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, tx.Id)
	assert.Equal(t, "user-1", tx.UserId)
	assert.Equal(t, testNow, tx.Date)

	assert.Equal(t, 60.0, getGoal(t, mem, "g1").CurrentAmount)
}

func TestCreateTransactionRollsBackOnAllocationFailure(t *testing.T) {
	svc, mock := newMockService(t)
	ctx := context.Background()

	var createdID string
	mock.EXPECT().CreateTransaction(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, tx *model.Transaction) error {
			createdID = tx.Id
			return nil
		})
	mock.EXPECT().ListActiveGoals(gomock.Any(), "user-1", store.DeadlineAsc).
		Return(nil, errors.New("backend unavailable"))
	mock.EXPECT().DeleteTransaction(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, id string) error {
			assert.Equal(t, createdID, id)
			return nil
		})

	_, err := svc.CreateTransaction(ctx, "user-1", &model.Transaction{
		Type: model.TransactionTypeIncome, Amount: 50, Category: "salary",
	})
	require.Error(t, err)
}

func TestUpdateTransactionReappliesOnStoreFailure(t *testing.T) {
	svc, mock := newMockService(t)
	ctx := context.Background()

	existing := &model.Transaction{
		Id: "tx-1", UserId: "user-1",
		Type: model.TransactionTypeIncome, Amount: 100, Category: "salary",
		Date: testNow.AddDate(0, 0, -1), CreatedAt: testNow.AddDate(0, 0, -1),
	}
	mock.EXPECT().GetTransaction(gomock.Any(), "tx-1").Return(existing, nil)
	// Revert of the old impact, then the re-apply after the failed write.
	mock.EXPECT().ListActiveGoals(gomock.Any(), "user-1", store.DeadlineDesc).Return(nil, nil)
	mock.EXPECT().UpdateTransaction(gomock.Any(), gomock.Any()).Return(errors.New("write failed"))
	mock.EXPECT().ListActiveGoals(gomock.Any(), "user-1", store.DeadlineAsc).Return(nil, nil)

	_, err := svc.UpdateTransaction(ctx, "user-1", "tx-1", &model.Transaction{
		Type: model.TransactionTypeIncome, Amount: 200, Category: "salary",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "update transaction")
}

func TestUpdateTransactionRestoresOldOnAllocationFailure(t *testing.T) {
	svc, mock := newMockService(t)
	ctx := context.Background()

	existing := &model.Transaction{
		Id: "tx-1", UserId: "user-1",
		Type: model.TransactionTypeIncome, Amount: 100, Category: "salary",
		Date: testNow.AddDate(0, 0, -1), CreatedAt: testNow.AddDate(0, 0, -1),
	}
	mock.EXPECT().GetTransaction(gomock.Any(), "tx-1").Return(existing, nil)
	// Revert of the old impact succeeds.
	mock.EXPECT().ListActiveGoals(gomock.Any(), "user-1", store.DeadlineDesc).Return(nil, nil)
	// The new version is written, then the old one is written back.
	var written []float64
	mock.EXPECT().UpdateTransaction(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, tx *model.Transaction) error {
			written = append(written, tx.Amount)
			return nil
		}).Times(2)
	// Applying the new impact fails; re-applying the old one succeeds.
	mock.EXPECT().ListActiveGoals(gomock.Any(), "user-1", store.DeadlineAsc).
		Return(nil, errors.New("backend unavailable"))
	mock.EXPECT().ListActiveGoals(gomock.Any(), "user-1", store.DeadlineAsc).Return(nil, nil)

	_, err := svc.UpdateTransaction(ctx, "user-1", "tx-1", &model.Transaction{
		Type: model.TransactionTypeIncome, Amount: 200, Category: "salary",
	})
	require.Error(t, err)
	require.Equal(t, []float64{200, 100}, written)
}

func TestUpdateTransactionMovesFunding(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	seedGoal(t, mem, "g1", 200, 0, testNow.AddDate(0, 2, 0))

	tx, err := svc.CreateTransaction(ctx, "user-1", &model.Transaction{
		Type: model.TransactionTypeIncome, Amount: 50, Category: "salary",
	})
	require.NoError(t, err)
	require.Equal(t, 50.0, getGoal(t, mem, "g1").CurrentAmount)

	updated, err := svc.UpdateTransaction(ctx, "user-1", tx.Id, &model.Transaction{
		Type: model.TransactionTypeIncome, Amount: 80, Category: "salary",
	})
	require.NoError(t, err)
	assert.Equal(t, tx.Id, updated.Id)
	assert.Equal(t, tx.CreatedAt, updated.CreatedAt)

	assert.Equal(t, 80.0, getGoal(t, mem, "g1").CurrentAmount)
}

func TestDeleteTransactionRevertsImpact(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	seedGoal(t, mem, "g1", 200, 0, testNow.AddDate(0, 2, 0))

	tx, err := svc.CreateTransaction(ctx, "user-1", &model.Transaction{
		Type: model.TransactionTypeIncome, Amount: 50, Category: "salary",
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteTransaction(ctx, "user-1", tx.Id))

	assert.Equal(t, 0.0, getGoal(t, mem, "g1").CurrentAmount)
	_, err = mem.GetTransaction(ctx, tx.Id)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTransactionOwnershipHidesOtherUsers(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	require.NoError(t, mem.CreateTransaction(ctx, &model.Transaction{
		Id: "tx-other", UserId: "user-2",
		Type: model.TransactionTypeIncome, Amount: 10, Category: "salary", Date: testNow,
	}))

	err := svc.DeleteTransaction(ctx, "user-1", "tx-other")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.UpdateTransaction(ctx, "user-1", "tx-other", &model.Transaction{
		Type: model.TransactionTypeIncome, Amount: 20, Category: "salary",
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateGoalStartsFromZero(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	completion := testNow
	goal, err := svc.CreateGoal(ctx, "user-1", &model.Goal{
		Name:         "Holiday",
		TargetAmount: 500,
		Deadline:     testNow.AddDate(0, 6, 0),
		// Client-supplied progress is ignored.
		CurrentAmount:  400,
		Completed:      true,
		CompletionDate: &completion,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, goal.Id)
	assert.Equal(t, 0.0, goal.CurrentAmount)
	assert.False(t, goal.Completed)
	assert.Nil(t, goal.CompletionDate)
}

func TestUpdateGoalPreservesProgress(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	seedGoal(t, mem, "g1", 500, 120, testNow.AddDate(0, 6, 0))

	updated, err := svc.UpdateGoal(ctx, "user-1", "g1", &model.Goal{
		Name:         "Bigger holiday",
		TargetAmount: 800,
		Deadline:     testNow.AddDate(0, 9, 0),
	})
	require.NoError(t, err)

	assert.Equal(t, "Bigger holiday", updated.Name)
	assert.Equal(t, 800.0, updated.TargetAmount)
	assert.Equal(t, 120.0, updated.CurrentAmount)
	assert.False(t, updated.Completed)
}

func TestCreateGoalRetriesTransientStoreErrors(t *testing.T) {
	svc, mock := newMockService(t)
	svc.retry = store.RetryConfig{
		MaxRetries:    2,
		InitialDelay:  time.Millisecond,
		MaxDelay:      2 * time.Millisecond,
		BackoffFactor: 2.0,
	}
	ctx := context.Background()

	gomock.InOrder(
		mock.EXPECT().CreateGoal(gomock.Any(), gomock.Any()).
			Return(status.Error(codes.Unavailable, "backend down")),
		mock.EXPECT().CreateGoal(gomock.Any(), gomock.Any()).Return(nil),
	)

	goal, err := svc.CreateGoal(ctx, "user-1", &model.Goal{
		Name: "Holiday", TargetAmount: 500, Deadline: testNow.AddDate(0, 6, 0),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, goal.Id)
}

func TestGoalValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateGoal(ctx, "user-1", &model.Goal{TargetAmount: 100, Deadline: testNow})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)

	_, err = svc.CreateGoal(ctx, "user-1", &model.Goal{Name: "x", Deadline: testNow})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "target_amount", verr.Field)

	_, err = svc.CreateGoal(ctx, "user-1", &model.Goal{Name: "x", TargetAmount: 100})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "deadline", verr.Field)
}

func TestDashboardTotals(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateTransaction(ctx, "user-1", &model.Transaction{
		Type: model.TransactionTypeIncome, Amount: 300, Category: "salary",
	})
	require.NoError(t, err)
	_, err = svc.CreateTransaction(ctx, "user-1", &model.Transaction{
		Type: model.TransactionTypeExpense, Amount: 80, Category: "food",
	})
	require.NoError(t, err)

	summary, err := svc.Dashboard(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 300.0, summary.Income)
	assert.Equal(t, 80.0, summary.Expense)
	assert.Equal(t, 220.0, summary.Balance)
	assert.Nil(t, summary.Notification)
}

func TestDashboardLowBalanceAlertOncePerDay(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateTransaction(ctx, "user-1", &model.Transaction{
		Type: model.TransactionTypeIncome, Amount: 50, Category: "salary",
	})
	require.NoError(t, err)

	// Balance 50 is below the 100 threshold.
	summary, err := svc.Dashboard(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, summary.Notification)
	assert.Equal(t, model.NotificationTypeBalanceAlert, summary.Notification.Type)

	// Same day: no duplicate alert.
	summary, err = svc.Dashboard(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, summary.Notification)

	notifications, err := mem.ListNotifications(ctx, "user-1", false)
	require.NoError(t, err)
	assert.Len(t, notifications, 1)

	// Next day the alert fires again.
	svc.now = func() time.Time { return testNow.AddDate(0, 0, 1) }
	summary, err = svc.Dashboard(ctx, "user-1")
	require.NoError(t, err)
	assert.NotNil(t, summary.Notification)
}

func TestUnusualExpenseAlert(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.CreateTransaction(ctx, "user-1", &model.Transaction{
			Type: model.TransactionTypeExpense, Amount: 10, Category: "food",
		})
		require.NoError(t, err)
	}

	_, err := svc.CreateTransaction(ctx, "user-1", &model.Transaction{
		Type: model.TransactionTypeExpense, Amount: 100, Category: "electronics",
	})
	require.NoError(t, err)

	notifications, err := mem.ListNotifications(ctx, "user-1", false)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, model.NotificationTypeExpenseAlert, notifications[0].Type)
	assert.Contains(t, notifications[0].Message, "electronics")
}

func TestUnusualExpenseNeedsEnoughSamples(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.CreateTransaction(ctx, "user-1", &model.Transaction{
			Type: model.TransactionTypeExpense, Amount: 10, Category: "food",
		})
		require.NoError(t, err)
	}

	_, err := svc.CreateTransaction(ctx, "user-1", &model.Transaction{
		Type: model.TransactionTypeExpense, Amount: 500, Category: "electronics",
	})
	require.NoError(t, err)

	notifications, err := mem.ListNotifications(ctx, "user-1", false)
	require.NoError(t, err)
	assert.Empty(t, notifications)
}

func TestForecastReportIncludesInsights(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	require.NoError(t, mem.CreateTransaction(ctx, &model.Transaction{
		UserId: "user-1", Type: model.TransactionTypeIncome,
		Amount: 2500, Category: "salary",
		Date: time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC),
	}))

	report, err := svc.Forecast(ctx, "user-1", 3)
	require.NoError(t, err)
	require.NotNil(t, report.Forecast)
	require.NotNil(t, report.Insights)
	assert.Len(t, report.Forecast.IncomeForecast, 3)
	assert.Equal(t, 2500.0, report.Insights.Metrics.AverageIncome)
}

func TestRecomputeGoalsRebuildsFromBalance(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	seedGoal(t, mem, "g1", 100, 70, testNow.AddDate(0, 1, 0))

	require.NoError(t, mem.CreateTransaction(ctx, &model.Transaction{
		UserId: "user-1", Type: model.TransactionTypeIncome,
		Amount: 40, Category: "salary", Date: testNow,
	}))

	require.NoError(t, svc.RecomputeGoals(ctx, "user-1"))
	assert.Equal(t, 40.0, getGoal(t, mem, "g1").CurrentAmount)
}
