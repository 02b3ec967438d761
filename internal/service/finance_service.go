// Package service coordinates the stores and engines behind the HTTP
// surface: transaction and goal lifecycles (with their goal-side
// allocation effects), the dashboard, alerts and forecasts.
package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/finflow/backend/internal/allocation"
	"github.com/finflow/backend/internal/forecast"
	"github.com/finflow/backend/internal/insight"
	"github.com/finflow/backend/internal/log"
	"github.com/finflow/backend/internal/model"
	"github.com/finflow/backend/internal/store"
)

const (
	// unusualExpenseWindow is how far back expense statistics reach.
	unusualExpenseWindow = 30 * 24 * time.Hour
	// unusualExpenseMinSamples is the minimum history before an
	// expense can be judged unusual.
	unusualExpenseMinSamples = 5
)

// Config carries service-level tunables.
type Config struct {
	// LowBalanceThreshold triggers a dashboard balance alert when the
	// user's balance falls below it.
	LowBalanceThreshold float64
}

// FinanceService implements the application operations over a Store
// and the two engines.
type FinanceService struct {
	store      store.Store
	allocator  *allocation.Engine
	forecaster *forecast.Engine
	logger     *log.Logger
	cfg        Config
	retry      store.RetryConfig
	now        func() time.Time
}

// NewFinanceService wires a service with its engines over one store.
func NewFinanceService(st store.Store, logger *log.Logger, cfg Config) *FinanceService {
	return &FinanceService{
		store:      st,
		allocator:  allocation.New(st, logger),
		forecaster: forecast.New(st, logger),
		logger:     logger.WithComponent("service"),
		cfg:        cfg,
		retry:      store.DefaultRetryConfig,
		now:        time.Now,
	}
}

// ValidationError reports a rejected request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ============================================================================
// Transactions
// ============================================================================

// CreateTransaction records a transaction and applies its goal-side
// impact exactly once. If allocation fails the transaction is removed
// again, so no transaction is ever recorded without its effect.
func (s *FinanceService) CreateTransaction(ctx context.Context, userID string, tx *model.Transaction) (*model.Transaction, error) {
	if err := validateTransaction(tx); err != nil {
		return nil, err
	}

	tx.Id = uuid.New().String()
	tx.UserId = userID
	if tx.Date.IsZero() {
		tx.Date = s.now()
	}
	tx.CreatedAt = s.now()
	tx.UpdatedAt = tx.CreatedAt

	// The unusual-expense check must see history without the new
	// transaction, so run it before the write.
	unusual := false
	if tx.Type == model.TransactionTypeExpense {
		var err error
		unusual, err = s.isUnusualExpense(ctx, userID, tx.Amount)
		if err != nil {
			return nil, err
		}
	}

	if err := store.Retry(ctx, s.retry, func(ctx context.Context) error {
		return s.store.CreateTransaction(ctx, tx)
	}); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	if err := s.applyImpact(ctx, tx); err != nil {
		// Compensate: do not leave the transaction recorded without
		// its goal-side effect.
		if delErr := store.Retry(ctx, s.retry, func(ctx context.Context) error {
			return s.store.DeleteTransaction(ctx, tx.Id)
		}); delErr != nil {
			s.logger.Error("failed to roll back transaction after allocation failure",
				"transaction_id", tx.Id, "error", delErr)
		}
		return nil, err
	}

	if unusual {
		s.createExpenseAlert(ctx, userID, tx)
	}

	return tx, nil
}

// UpdateTransaction replaces a transaction, reverting the old impact
// and applying the new one. If the store update fails after the
// revert, the old impact is re-applied; if applying the new impact
// fails, the previous version is restored with its impact.
func (s *FinanceService) UpdateTransaction(ctx context.Context, userID, txID string, updated *model.Transaction) (*model.Transaction, error) {
	if err := validateTransaction(updated); err != nil {
		return nil, err
	}

	existing, err := s.getOwnedTransaction(ctx, userID, txID)
	if err != nil {
		return nil, err
	}

	if err := s.allocator.Revert(ctx, existing); err != nil {
		return nil, fmt.Errorf("revert old impact: %w", err)
	}

	updated.Id = existing.Id
	updated.UserId = userID
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = s.now()
	if updated.Date.IsZero() {
		updated.Date = existing.Date
	}

	if err := store.Retry(ctx, s.retry, func(ctx context.Context) error {
		return s.store.UpdateTransaction(ctx, updated)
	}); err != nil {
		if reapplyErr := s.applyImpact(ctx, existing); reapplyErr != nil {
			s.logger.Error("failed to re-apply old impact after update failure",
				"transaction_id", txID, "error", reapplyErr)
		}
		return nil, fmt.Errorf("update transaction: %w", err)
	}

	if err := s.applyImpact(ctx, updated); err != nil {
		// Compensate: put the previous version back with its impact so
		// the stored transaction and the goal state stay in step.
		if restoreErr := store.Retry(ctx, s.retry, func(ctx context.Context) error {
			return s.store.UpdateTransaction(ctx, existing)
		}); restoreErr != nil {
			s.logger.Error("failed to restore transaction after allocation failure",
				"transaction_id", txID, "error", restoreErr)
		} else if reapplyErr := s.applyImpact(ctx, existing); reapplyErr != nil {
			s.logger.Error("failed to re-apply old impact after allocation failure",
				"transaction_id", txID, "error", reapplyErr)
		}
		return nil, err
	}

	return updated, nil
}

// DeleteTransaction reverts a transaction's impact and removes it.
// If the delete fails after the revert, the impact is re-applied.
func (s *FinanceService) DeleteTransaction(ctx context.Context, userID, txID string) error {
	existing, err := s.getOwnedTransaction(ctx, userID, txID)
	if err != nil {
		return err
	}

	if err := s.allocator.Revert(ctx, existing); err != nil {
		return fmt.Errorf("revert impact: %w", err)
	}

	if err := store.Retry(ctx, s.retry, func(ctx context.Context) error {
		return s.store.DeleteTransaction(ctx, txID)
	}); err != nil {
		if reapplyErr := s.applyImpact(ctx, existing); reapplyErr != nil {
			s.logger.Error("failed to re-apply impact after delete failure",
				"transaction_id", txID, "error", reapplyErr)
		}
		return fmt.Errorf("delete transaction: %w", err)
	}

	return nil
}

// ListTransactions returns the user's transaction history, latest first.
func (s *FinanceService) ListTransactions(ctx context.Context, userID string) ([]*model.Transaction, error) {
	transactions, err := store.WithRetry(ctx, s.retry, func(ctx context.Context) ([]*model.Transaction, error) {
		return s.store.ListTransactions(ctx, userID, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return transactions, nil
}

// RecomputeGoals rebuilds the user's goal amounts from their net
// balance. Exposed for authoritative cleanup after bulk deletions.
func (s *FinanceService) RecomputeGoals(ctx context.Context, userID string) error {
	return s.allocator.RecomputeFromBalance(ctx, userID)
}

func (s *FinanceService) applyImpact(ctx context.Context, tx *model.Transaction) error {
	switch tx.Type {
	case model.TransactionTypeIncome:
		return s.allocator.ApplyIncome(ctx, tx.UserId, tx.Amount)
	case model.TransactionTypeExpense:
		return s.allocator.ApplyExpense(ctx, tx.UserId, tx.Amount)
	default:
		return &ValidationError{Field: "type", Message: fmt.Sprintf("unknown transaction type %q", tx.Type)}
	}
}

func (s *FinanceService) getOwnedTransaction(ctx context.Context, userID, txID string) (*model.Transaction, error) {
	tx, err := store.WithRetry(ctx, s.retry, func(ctx context.Context) (*model.Transaction, error) {
		return s.store.GetTransaction(ctx, txID)
	})
	if err != nil {
		return nil, err
	}
	if tx.UserId != userID {
		// Ownership mismatch surfaces as not-found, never as a hint
		// that the id exists.
		return nil, fmt.Errorf("transaction %s: %w", txID, store.ErrNotFound)
	}
	return tx, nil
}

func validateTransaction(tx *model.Transaction) error {
	if !tx.Type.Valid() {
		return &ValidationError{Field: "type", Message: "must be income or expense"}
	}
	if tx.Amount <= 0 {
		return &ValidationError{Field: "amount", Message: "must be positive"}
	}
	if tx.Category == "" {
		return &ValidationError{Field: "category", Message: "must not be empty"}
	}
	return nil
}

// ============================================================================
// Goals
// ============================================================================

// CreateGoal registers a new savings goal starting from zero progress.
func (s *FinanceService) CreateGoal(ctx context.Context, userID string, goal *model.Goal) (*model.Goal, error) {
	if err := validateGoal(goal); err != nil {
		return nil, err
	}

	goal.Id = uuid.New().String()
	goal.UserId = userID
	goal.CurrentAmount = 0
	goal.Completed = false
	goal.CompletionDate = nil
	goal.CreatedAt = s.now()
	goal.UpdatedAt = goal.CreatedAt

	if err := store.Retry(ctx, s.retry, func(ctx context.Context) error {
		return s.store.CreateGoal(ctx, goal)
	}); err != nil {
		return nil, fmt.Errorf("create goal: %w", err)
	}
	return goal, nil
}

// UpdateGoal edits a goal's name, target and deadline. Progress and
// completion state belong to the allocation engine and are preserved.
func (s *FinanceService) UpdateGoal(ctx context.Context, userID, goalID string, updated *model.Goal) (*model.Goal, error) {
	if err := validateGoal(updated); err != nil {
		return nil, err
	}

	existing, err := s.getOwnedGoal(ctx, userID, goalID)
	if err != nil {
		return nil, err
	}

	updated.Id = existing.Id
	updated.UserId = userID
	updated.CurrentAmount = existing.CurrentAmount
	updated.Completed = existing.Completed
	updated.CompletionDate = existing.CompletionDate
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = s.now()

	if err := store.Retry(ctx, s.retry, func(ctx context.Context) error {
		return s.store.UpdateGoal(ctx, updated)
	}); err != nil {
		return nil, fmt.Errorf("update goal: %w", err)
	}
	return updated, nil
}

// DeleteGoal removes a goal.
func (s *FinanceService) DeleteGoal(ctx context.Context, userID, goalID string) error {
	if _, err := s.getOwnedGoal(ctx, userID, goalID); err != nil {
		return err
	}
	if err := store.Retry(ctx, s.retry, func(ctx context.Context) error {
		return s.store.DeleteGoal(ctx, goalID)
	}); err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	return nil
}

// ListGoals returns all of the user's goals ordered by deadline.
func (s *FinanceService) ListGoals(ctx context.Context, userID string) ([]*model.Goal, error) {
	goals, err := store.WithRetry(ctx, s.retry, func(ctx context.Context) ([]*model.Goal, error) {
		return s.store.ListGoals(ctx, userID)
	})
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	return goals, nil
}

func (s *FinanceService) getOwnedGoal(ctx context.Context, userID, goalID string) (*model.Goal, error) {
	goal, err := store.WithRetry(ctx, s.retry, func(ctx context.Context) (*model.Goal, error) {
		return s.store.GetGoal(ctx, goalID)
	})
	if err != nil {
		return nil, err
	}
	if goal.UserId != userID {
		return nil, fmt.Errorf("goal %s: %w", goalID, store.ErrNotFound)
	}
	return goal, nil
}

func validateGoal(goal *model.Goal) error {
	if goal.Name == "" {
		return &ValidationError{Field: "name", Message: "must not be empty"}
	}
	if goal.TargetAmount <= 0 {
		return &ValidationError{Field: "target_amount", Message: "must be positive"}
	}
	if goal.Deadline.IsZero() {
		return &ValidationError{Field: "deadline", Message: "must be set"}
	}
	return nil
}

// ============================================================================
// Dashboard and alerts
// ============================================================================

// Dashboard aggregates the user's totals. A balance below the
// configured threshold raises an alert notification, at most once per
// day, which is attached to the summary.
func (s *FinanceService) Dashboard(ctx context.Context, userID string) (*model.DashboardSummary, error) {
	transactions, err := store.WithRetry(ctx, s.retry, func(ctx context.Context) ([]*model.Transaction, error) {
		return s.store.ListTransactions(ctx, userID, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	summary := &model.DashboardSummary{}
	for _, tx := range transactions {
		switch tx.Type {
		case model.TransactionTypeIncome:
			summary.Income += tx.Amount
		case model.TransactionTypeExpense:
			summary.Expense += tx.Amount
		}
	}
	summary.Balance = summary.Income - summary.Expense

	if summary.Balance < s.cfg.LowBalanceThreshold {
		n, err := s.createBalanceAlert(ctx, userID, summary.Balance)
		if err != nil {
			// The summary is still valid without the alert.
			s.logger.Error("failed to create balance alert", "user_id", userID, "error", err)
		} else {
			summary.Notification = n
		}
	}

	return summary, nil
}

// createBalanceAlert raises a low-balance notification unless one was
// already raised today.
func (s *FinanceService) createBalanceAlert(ctx context.Context, userID string, balance float64) (*model.Notification, error) {
	existing, err := store.WithRetry(ctx, s.retry, func(ctx context.Context) ([]*model.Notification, error) {
		return s.store.ListNotifications(ctx, userID, false)
	})
	if err != nil {
		return nil, err
	}
	today := s.now().Truncate(24 * time.Hour)
	for _, n := range existing {
		if n.Type == model.NotificationTypeBalanceAlert && !n.CreatedAt.Truncate(24*time.Hour).Before(today) {
			return nil, nil
		}
	}

	n := &model.Notification{
		Id:        uuid.New().String(),
		UserId:    userID,
		Type:      model.NotificationTypeBalanceAlert,
		Title:     "Low Balance Alert",
		Message:   fmt.Sprintf("Your balance has dropped to %.2f", balance),
		CreatedAt: s.now(),
	}
	if err := store.Retry(ctx, s.retry, func(ctx context.Context) error {
		return s.store.CreateNotification(ctx, n)
	}); err != nil {
		return nil, err
	}
	return n, nil
}

// isUnusualExpense reports whether amount exceeds the mean plus two
// standard deviations of the user's expenses over the last 30 days.
// Fewer than five samples is never unusual.
func (s *FinanceService) isUnusualExpense(ctx context.Context, userID string, amount float64) (bool, error) {
	since := s.now().Add(-unusualExpenseWindow)
	transactions, err := store.WithRetry(ctx, s.retry, func(ctx context.Context) ([]*model.Transaction, error) {
		return s.store.ListTransactions(ctx, userID, &since)
	})
	if err != nil {
		return false, fmt.Errorf("list recent transactions: %w", err)
	}

	var expenses []float64
	for _, tx := range transactions {
		if tx.Type == model.TransactionTypeExpense {
			expenses = append(expenses, tx.Amount)
		}
	}
	if len(expenses) < unusualExpenseMinSamples {
		return false, nil
	}

	mean, stdDev := meanStdDev(expenses)
	return amount > mean+2*stdDev, nil
}

func (s *FinanceService) createExpenseAlert(ctx context.Context, userID string, tx *model.Transaction) {
	n := &model.Notification{
		Id:        uuid.New().String(),
		UserId:    userID,
		Type:      model.NotificationTypeExpenseAlert,
		Title:     "Unusual Expense Alert",
		Message:   fmt.Sprintf("Large %s expense of %.2f detected", tx.Category, tx.Amount),
		CreatedAt: s.now(),
	}
	// Alerts are best-effort; the transaction itself already committed.
	if err := store.Retry(ctx, s.retry, func(ctx context.Context) error {
		return s.store.CreateNotification(ctx, n)
	}); err != nil {
		s.logger.Error("failed to create expense alert", "user_id", userID, "error", err)
	}
}

// meanStdDev returns the mean and sample standard deviation.
func meanStdDev(values []float64) (float64, float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values) - 1)

	return mean, math.Sqrt(variance)
}

// ============================================================================
// Forecast
// ============================================================================

// ForecastReport bundles the numeric forecast with derived insights.
type ForecastReport struct {
	Forecast *model.Forecast `json:"forecast"`
	Insights *insight.Report `json:"insights"`
}

// Forecast projects the user's finances horizonMonths ahead and
// derives insight metrics from the projection.
func (s *FinanceService) Forecast(ctx context.Context, userID string, horizonMonths int) (*ForecastReport, error) {
	f, err := s.forecaster.Forecast(ctx, userID, horizonMonths)
	if err != nil {
		return nil, err
	}
	return &ForecastReport{
		Forecast: f,
		Insights: insight.Derive(f),
	}, nil
}
