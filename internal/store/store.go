package store

import (
	"context"
	"errors"
	"time"

	"github.com/finflow/backend/internal/model"
)

//go:generate mockgen -source=store.go -destination=store_mock.go -package=store

// ErrNotFound is returned when a referenced document does not exist.
// Implementations wrap it so callers can test with errors.Is.
var ErrNotFound = errors.New("not found")

// DeadlineOrder controls the deadline sort direction for active-goal queries.
type DeadlineOrder int

const (
	// DeadlineAsc lists earliest deadlines first (funding order).
	DeadlineAsc DeadlineOrder = iota
	// DeadlineDesc lists latest deadlines first (decrement order).
	DeadlineDesc
)

// Store defines the interface for all database operations used by the
// engines and the service layer.
type Store interface {
	// Transaction operations
	CreateTransaction(ctx context.Context, tx *model.Transaction) error
	GetTransaction(ctx context.Context, txID string) (*model.Transaction, error)
	UpdateTransaction(ctx context.Context, tx *model.Transaction) error
	DeleteTransaction(ctx context.Context, txID string) error
	// ListTransactions returns the user's transactions sorted by date,
	// latest first. A non-nil since bounds the range to date >= since.
	ListTransactions(ctx context.Context, userID string, since *time.Time) ([]*model.Transaction, error)

	// Goal operations
	CreateGoal(ctx context.Context, goal *model.Goal) error
	GetGoal(ctx context.Context, goalID string) (*model.Goal, error)
	UpdateGoal(ctx context.Context, goal *model.Goal) error
	DeleteGoal(ctx context.Context, goalID string) error
	ListGoals(ctx context.Context, userID string) ([]*model.Goal, error)
	// ListActiveGoals returns the user's non-completed goals sorted by
	// deadline in the given order.
	ListActiveGoals(ctx context.Context, userID string, order DeadlineOrder) ([]*model.Goal, error)

	// Notification operations
	CreateNotification(ctx context.Context, n *model.Notification) error
	ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]*model.Notification, error)
}
