// Package allocation keeps each user's savings goals consistent with
// the net effect of their income and expense transactions.
//
// Income is distributed across active goals earliest-deadline first,
// completing goals along the way. Expenses drain goals latest-deadline
// first, so the goals furthest from their deadline absorb cuts before
// urgent ones. Reverting a transaction applies the inverse operation
// with the same amount; this restores the aggregate balance but not
// necessarily the per-goal split, because completion is one-directional
// (see Revert). RecomputeFromBalance is the authoritative fallback.
package allocation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/finflow/backend/internal/log"
	"github.com/finflow/backend/internal/model"
	"github.com/finflow/backend/internal/store"
)

// Engine distributes monetary deltas across a user's active goals.
// All operations serialize per user: concurrent calls for the same
// user never interleave their read-compute-write cycles.
type Engine struct {
	store  store.Store
	logger *log.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates an allocation engine backed by the given store.
func New(st store.Store, logger *log.Logger) *Engine {
	return &Engine{
		store:  st,
		logger: logger.WithComponent("allocation"),
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}
}

// userLock returns the mutex serializing allocation for one user.
// Locks are never discarded; the per-user footprint is one mutex.
func (e *Engine) userLock(userID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	l, ok := e.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[userID] = l
	}
	return l
}

// ApplyIncome distributes a positive amount across the user's active
// goals in ascending deadline order. Goals that can be fully funded
// are completed; the first goal that cannot absorbs the remainder and
// distribution stops.
func (e *Engine) ApplyIncome(ctx context.Context, userID string, amount float64) error {
	if amount <= 0 {
		return &Error{Code: ErrInvalidAmount, Message: fmt.Sprintf("income amount must be positive, got %v", amount)}
	}

	l := e.userLock(userID)
	l.Lock()
	defer l.Unlock()

	return e.distributeIncome(ctx, userID, amount)
}

// ApplyExpense distributes a positive decrement across the user's
// active goals in descending deadline order. Each goal is drained to
// zero before the next one is touched; the goal that can absorb the
// whole remainder ends distribution.
func (e *Engine) ApplyExpense(ctx context.Context, userID string, amount float64) error {
	if amount <= 0 {
		return &Error{Code: ErrInvalidAmount, Message: fmt.Sprintf("expense amount must be positive, got %v", amount)}
	}

	l := e.userLock(userID)
	l.Lock()
	defer l.Unlock()

	return e.distributeExpense(ctx, userID, amount)
}

// Revert undoes the goal-side impact of a transaction by applying the
// inverse operation with the same amount.
//
// This is an approximation, not a true undo: allocation order is fixed
// by deadline, not by which goal a specific transaction funded, and a
// goal completed by the original income stays completed (completion is
// sticky). The aggregate across goals is restored; the per-goal split
// may differ. RecomputeFromBalance is the exact reconciliation path.
func (e *Engine) Revert(ctx context.Context, tx *model.Transaction) error {
	switch tx.Type {
	case model.TransactionTypeIncome:
		return e.ApplyExpense(ctx, tx.UserId, tx.Amount)
	case model.TransactionTypeExpense:
		return e.ApplyIncome(ctx, tx.UserId, tx.Amount)
	default:
		return &Error{Code: ErrInvalidAmount, Message: fmt.Sprintf("unknown transaction type %q", tx.Type)}
	}
}

// RecomputeFromBalance rebuilds the user's active goal amounts from
// scratch: it computes the net balance over all transactions, zeroes
// every active goal, and redistributes the balance in ascending
// deadline order. Completed goals are left untouched. This is the
// authoritative fallback after deletions, since incremental reversal
// is lossy for completed goals.
func (e *Engine) RecomputeFromBalance(ctx context.Context, userID string) error {
	l := e.userLock(userID)
	l.Lock()
	defer l.Unlock()

	transactions, err := e.store.ListTransactions(ctx, userID, nil)
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}

	var balance float64
	for _, tx := range transactions {
		switch tx.Type {
		case model.TransactionTypeIncome:
			balance += tx.Amount
		case model.TransactionTypeExpense:
			balance -= tx.Amount
		}
	}

	goals, err := e.store.ListActiveGoals(ctx, userID, store.DeadlineAsc)
	if err != nil {
		return fmt.Errorf("list active goals: %w", err)
	}

	remaining := balance
	if remaining < 0 {
		remaining = 0
	}

	for _, goal := range goals {
		if err := checkBounds(goal); err != nil {
			return err
		}

		prev := goal.CurrentAmount
		goal.CurrentAmount = 0

		if remaining >= goal.TargetAmount {
			remaining -= goal.TargetAmount
			e.completeGoal(goal)
		} else if remaining > 0 {
			goal.CurrentAmount = remaining
			remaining = 0
		}

		if goal.CurrentAmount == prev && !goal.Completed {
			continue
		}
		goal.UpdatedAt = e.now()
		if err := e.store.UpdateGoal(ctx, goal); err != nil {
			return fmt.Errorf("update goal %s: %w", goal.Id, err)
		}
	}

	e.logger.Info("recomputed goals from balance", "user_id", userID, "balance", balance)
	return nil
}

// distributeIncome applies the income funding loop over a single
// snapshot of active goals. Caller holds the user lock.
func (e *Engine) distributeIncome(ctx context.Context, userID string, amount float64) error {
	goals, err := e.store.ListActiveGoals(ctx, userID, store.DeadlineAsc)
	if err != nil {
		return fmt.Errorf("list active goals: %w", err)
	}

	remaining := amount
	for _, goal := range goals {
		if remaining <= 0 {
			break
		}
		if err := checkBounds(goal); err != nil {
			return err
		}

		needed := goal.Remaining()
		if remaining >= needed {
			e.completeGoal(goal)
			remaining -= needed
		} else {
			goal.CurrentAmount += remaining
			remaining = 0
		}

		goal.UpdatedAt = e.now()
		if err := e.store.UpdateGoal(ctx, goal); err != nil {
			return fmt.Errorf("update goal %s: %w", goal.Id, err)
		}
		if goal.Completed {
			e.logger.Info("goal completed", "user_id", userID, "goal_id", goal.Id, "target", goal.TargetAmount)
		}
	}

	return nil
}

// distributeExpense applies the expense draining loop over a single
// snapshot of active goals. Caller holds the user lock.
func (e *Engine) distributeExpense(ctx context.Context, userID string, amount float64) error {
	goals, err := e.store.ListActiveGoals(ctx, userID, store.DeadlineDesc)
	if err != nil {
		return fmt.Errorf("list active goals: %w", err)
	}

	remaining := amount
	for _, goal := range goals {
		if remaining <= 0 {
			break
		}
		if err := checkBounds(goal); err != nil {
			return err
		}
		if goal.CurrentAmount == 0 {
			continue
		}

		if goal.CurrentAmount >= remaining {
			goal.CurrentAmount -= remaining
			remaining = 0
		} else {
			remaining -= goal.CurrentAmount
			goal.CurrentAmount = 0
		}

		goal.UpdatedAt = e.now()
		if err := e.store.UpdateGoal(ctx, goal); err != nil {
			return fmt.Errorf("update goal %s: %w", goal.Id, err)
		}
	}

	return nil
}

func (e *Engine) completeGoal(goal *model.Goal) {
	goal.CurrentAmount = goal.TargetAmount
	goal.Completed = true
	t := e.now()
	goal.CompletionDate = &t
}

// checkBounds rejects goals whose stored amount is already outside
// [0, target]. The engine never writes such a state, so finding one
// means an upstream bug; it must surface, not be clamped away.
func checkBounds(goal *model.Goal) error {
	if goal.CurrentAmount < 0 || goal.CurrentAmount > goal.TargetAmount {
		return &Error{
			Code:    ErrInconsistentState,
			Message: fmt.Sprintf("current amount %v outside [0, %v]", goal.CurrentAmount, goal.TargetAmount),
			GoalID:  goal.Id,
		}
	}
	return nil
}
