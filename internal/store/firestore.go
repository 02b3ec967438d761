package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/finflow/backend/internal/model"
)

const (
	transactionsCollection  = "transactions"
	goalsCollection         = "goals"
	notificationsCollection = "notifications"
)

// FirestoreStore implements the Store interface using Firestore.
// NOTE: query field names must match Go struct field names (PascalCase),
// which is how Firestore serializes the model structs.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore creates a new Firestore-backed store.
func NewFirestoreStore(client *firestore.Client) Store {
	return &FirestoreStore{
		client: client,
	}
}

func wrapFirestoreError(op, id string, err error) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s %s: %w", op, id, ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", op, id, err)
}

// Transaction operations

func (s *FirestoreStore) CreateTransaction(ctx context.Context, tx *model.Transaction) error {
	_, err := s.client.Collection(transactionsCollection).Doc(tx.Id).Set(ctx, tx)
	if err != nil {
		return fmt.Errorf("create transaction %s: %w", tx.Id, err)
	}
	return nil
}

func (s *FirestoreStore) GetTransaction(ctx context.Context, txID string) (*model.Transaction, error) {
	doc, err := s.client.Collection(transactionsCollection).Doc(txID).Get(ctx)
	if err != nil {
		return nil, wrapFirestoreError("get transaction", txID, err)
	}

	var tx model.Transaction
	if err := doc.DataTo(&tx); err != nil {
		return nil, fmt.Errorf("parse transaction %s: %w", txID, err)
	}
	return &tx, nil
}

func (s *FirestoreStore) UpdateTransaction(ctx context.Context, tx *model.Transaction) error {
	// Existence check first: Set would silently create the document.
	if _, err := s.client.Collection(transactionsCollection).Doc(tx.Id).Get(ctx); err != nil {
		return wrapFirestoreError("update transaction", tx.Id, err)
	}

	_, err := s.client.Collection(transactionsCollection).Doc(tx.Id).Set(ctx, tx)
	if err != nil {
		return fmt.Errorf("update transaction %s: %w", tx.Id, err)
	}
	return nil
}

func (s *FirestoreStore) DeleteTransaction(ctx context.Context, txID string) error {
	if _, err := s.client.Collection(transactionsCollection).Doc(txID).Get(ctx); err != nil {
		return wrapFirestoreError("delete transaction", txID, err)
	}

	_, err := s.client.Collection(transactionsCollection).Doc(txID).Delete(ctx)
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", txID, err)
	}
	return nil
}

func (s *FirestoreStore) ListTransactions(ctx context.Context, userID string, since *time.Time) ([]*model.Transaction, error) {
	query := s.client.Collection(transactionsCollection).
		Where("UserId", "==", userID)
	if since != nil {
		query = query.Where("Date", ">=", *since)
	}
	query = query.OrderBy("Date", firestore.Desc)

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list transactions for %s: %w", userID, err)
	}

	transactions := make([]*model.Transaction, 0, len(docs))
	for _, doc := range docs {
		var tx model.Transaction
		if err := doc.DataTo(&tx); err != nil {
			return nil, fmt.Errorf("parse transaction %s: %w", doc.Ref.ID, err)
		}
		transactions = append(transactions, &tx)
	}
	return transactions, nil
}

// Goal operations

func (s *FirestoreStore) CreateGoal(ctx context.Context, goal *model.Goal) error {
	_, err := s.client.Collection(goalsCollection).Doc(goal.Id).Set(ctx, goal)
	if err != nil {
		return fmt.Errorf("create goal %s: %w", goal.Id, err)
	}
	return nil
}

func (s *FirestoreStore) GetGoal(ctx context.Context, goalID string) (*model.Goal, error) {
	doc, err := s.client.Collection(goalsCollection).Doc(goalID).Get(ctx)
	if err != nil {
		return nil, wrapFirestoreError("get goal", goalID, err)
	}

	var goal model.Goal
	if err := doc.DataTo(&goal); err != nil {
		return nil, fmt.Errorf("parse goal %s: %w", goalID, err)
	}
	return &goal, nil
}

func (s *FirestoreStore) UpdateGoal(ctx context.Context, goal *model.Goal) error {
	if _, err := s.client.Collection(goalsCollection).Doc(goal.Id).Get(ctx); err != nil {
		return wrapFirestoreError("update goal", goal.Id, err)
	}

	_, err := s.client.Collection(goalsCollection).Doc(goal.Id).Set(ctx, goal)
	if err != nil {
		return fmt.Errorf("update goal %s: %w", goal.Id, err)
	}
	return nil
}

func (s *FirestoreStore) DeleteGoal(ctx context.Context, goalID string) error {
	if _, err := s.client.Collection(goalsCollection).Doc(goalID).Get(ctx); err != nil {
		return wrapFirestoreError("delete goal", goalID, err)
	}

	_, err := s.client.Collection(goalsCollection).Doc(goalID).Delete(ctx)
	if err != nil {
		return fmt.Errorf("delete goal %s: %w", goalID, err)
	}
	return nil
}

func (s *FirestoreStore) ListGoals(ctx context.Context, userID string) ([]*model.Goal, error) {
	docs, err := s.client.Collection(goalsCollection).
		Where("UserId", "==", userID).
		OrderBy("Deadline", firestore.Asc).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list goals for %s: %w", userID, err)
	}

	return goalsFromDocs(docs)
}

func (s *FirestoreStore) ListActiveGoals(ctx context.Context, userID string, order DeadlineOrder) ([]*model.Goal, error) {
	direction := firestore.Asc
	if order == DeadlineDesc {
		direction = firestore.Desc
	}

	docs, err := s.client.Collection(goalsCollection).
		Where("UserId", "==", userID).
		Where("Completed", "==", false).
		OrderBy("Deadline", direction).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list active goals for %s: %w", userID, err)
	}

	return goalsFromDocs(docs)
}

func goalsFromDocs(docs []*firestore.DocumentSnapshot) ([]*model.Goal, error) {
	goals := make([]*model.Goal, 0, len(docs))
	for _, doc := range docs {
		var goal model.Goal
		if err := doc.DataTo(&goal); err != nil {
			return nil, fmt.Errorf("parse goal %s: %w", doc.Ref.ID, err)
		}
		goals = append(goals, &goal)
	}
	return goals, nil
}

// Notification operations

func (s *FirestoreStore) CreateNotification(ctx context.Context, n *model.Notification) error {
	_, err := s.client.Collection(notificationsCollection).Doc(n.Id).Set(ctx, n)
	if err != nil {
		return fmt.Errorf("create notification %s: %w", n.Id, err)
	}
	return nil
}

func (s *FirestoreStore) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]*model.Notification, error) {
	query := s.client.Collection(notificationsCollection).
		Where("UserId", "==", userID)
	if unreadOnly {
		query = query.Where("Read", "==", false)
	}
	query = query.OrderBy("CreatedAt", firestore.Desc)

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list notifications for %s: %w", userID, err)
	}

	notifications := make([]*model.Notification, 0, len(docs))
	for _, doc := range docs {
		var n model.Notification
		if err := doc.DataTo(&n); err != nil {
			return nil, fmt.Errorf("parse notification %s: %w", doc.Ref.ID, err)
		}
		notifications = append(notifications, &n)
	}
	return notifications, nil
}
