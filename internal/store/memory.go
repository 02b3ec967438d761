package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/finflow/backend/internal/model"
	"github.com/google/uuid"
)

// MemoryStore implements the Store interface with in-memory storage.
// All reads return copies, so callers can mutate results freely and
// nothing changes until the corresponding Update call.
type MemoryStore struct {
	mu sync.RWMutex

	transactions  map[string]*model.Transaction
	goals         map[string]*model.Goal
	notifications map[string]*model.Notification
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transactions:  make(map[string]*model.Transaction),
		goals:         make(map[string]*model.Goal),
		notifications: make(map[string]*model.Notification),
	}
}

// Transaction operations

func (m *MemoryStore) CreateTransaction(ctx context.Context, tx *model.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tx.Id == "" {
		tx.Id = uuid.New().String()
	}

	cp := *tx
	m.transactions[tx.Id] = &cp
	return nil
}

func (m *MemoryStore) GetTransaction(ctx context.Context, txID string) (*model.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tx, ok := m.transactions[txID]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", txID, ErrNotFound)
	}

	cp := *tx
	return &cp, nil
}

func (m *MemoryStore) UpdateTransaction(ctx context.Context, tx *model.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.transactions[tx.Id]; !ok {
		return fmt.Errorf("transaction %s: %w", tx.Id, ErrNotFound)
	}

	cp := *tx
	m.transactions[tx.Id] = &cp
	return nil
}

func (m *MemoryStore) DeleteTransaction(ctx context.Context, txID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.transactions[txID]; !ok {
		return fmt.Errorf("transaction %s: %w", txID, ErrNotFound)
	}

	delete(m.transactions, txID)
	return nil
}

func (m *MemoryStore) ListTransactions(ctx context.Context, userID string, since *time.Time) ([]*model.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*model.Transaction
	for _, tx := range m.transactions {
		if tx.UserId != userID {
			continue
		}
		if since != nil && tx.Date.Before(*since) {
			continue
		}
		cp := *tx
		result = append(result, &cp)
	}

	// Latest first
	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.After(result[j].Date)
	})

	return result, nil
}

// Goal operations

func (m *MemoryStore) CreateGoal(ctx context.Context, goal *model.Goal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if goal.Id == "" {
		goal.Id = uuid.New().String()
	}

	cp := *goal
	m.goals[goal.Id] = &cp
	return nil
}

func (m *MemoryStore) GetGoal(ctx context.Context, goalID string) (*model.Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	goal, ok := m.goals[goalID]
	if !ok {
		return nil, fmt.Errorf("goal %s: %w", goalID, ErrNotFound)
	}

	cp := *goal
	return &cp, nil
}

func (m *MemoryStore) UpdateGoal(ctx context.Context, goal *model.Goal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.goals[goal.Id]; !ok {
		return fmt.Errorf("goal %s: %w", goal.Id, ErrNotFound)
	}

	cp := *goal
	m.goals[goal.Id] = &cp
	return nil
}

func (m *MemoryStore) DeleteGoal(ctx context.Context, goalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.goals[goalID]; !ok {
		return fmt.Errorf("goal %s: %w", goalID, ErrNotFound)
	}

	delete(m.goals, goalID)
	return nil
}

func (m *MemoryStore) ListGoals(ctx context.Context, userID string) ([]*model.Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*model.Goal
	for _, goal := range m.goals {
		if goal.UserId != userID {
			continue
		}
		cp := *goal
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Deadline.Before(result[j].Deadline)
	})

	return result, nil
}

func (m *MemoryStore) ListActiveGoals(ctx context.Context, userID string, order DeadlineOrder) ([]*model.Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*model.Goal
	for _, goal := range m.goals {
		if goal.UserId != userID || goal.Completed {
			continue
		}
		cp := *goal
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		if order == DeadlineDesc {
			return result[i].Deadline.After(result[j].Deadline)
		}
		return result[i].Deadline.Before(result[j].Deadline)
	})

	return result, nil
}

// Notification operations

func (m *MemoryStore) CreateNotification(ctx context.Context, n *model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n.Id == "" {
		n.Id = uuid.New().String()
	}

	cp := *n
	m.notifications[n.Id] = &cp
	return nil
}

func (m *MemoryStore) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]*model.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*model.Notification
	for _, n := range m.notifications {
		if n.UserId != userID {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		cp := *n
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}
