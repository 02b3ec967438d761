package model

import "time"

// TransactionType distinguishes money coming in from money going out.
// Amounts are always positive; the type carries the sign.
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

// Valid reports whether t is one of the two known variants.
func (t TransactionType) Valid() bool {
	return t == TransactionTypeIncome || t == TransactionTypeExpense
}

// Transaction is a single income or expense event for one user.
type Transaction struct {
	Id        string          `json:"id"`
	UserId    string          `json:"user_id"`
	Type      TransactionType `json:"type"`
	Amount    float64         `json:"amount"`
	Category  string          `json:"category"`
	Date      time.Time       `json:"date"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Goal is a savings target funded by the allocation engine.
// CurrentAmount stays within [0, TargetAmount]; once Completed is set,
// CurrentAmount equals TargetAmount and CompletionDate is non-nil.
type Goal struct {
	Id             string     `json:"id"`
	UserId         string     `json:"user_id"`
	Name           string     `json:"name"`
	TargetAmount   float64    `json:"target_amount"`
	CurrentAmount  float64    `json:"current_amount"`
	Deadline       time.Time  `json:"deadline"`
	Completed      bool       `json:"completed"`
	CompletionDate *time.Time `json:"completion_date,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Remaining is the amount still needed to complete the goal.
func (g *Goal) Remaining() float64 {
	return g.TargetAmount - g.CurrentAmount
}

// NotificationType tags the reason a notification was raised.
type NotificationType string

const (
	NotificationTypeBalanceAlert NotificationType = "balanceAlert"
	NotificationTypeExpenseAlert NotificationType = "expenseAlert"
)

// Notification is an in-app alert for a user.
type Notification struct {
	Id        string           `json:"id"`
	UserId    string           `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}

// ForecastPoint is one projected month: a date and the amount expected
// for that month. Points are ephemeral and never persisted.
type ForecastPoint struct {
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
}

// GoalProjection estimates how feasible a goal is given the savings
// forecast: the average monthly saving the deadline demands and the
// fraction of projected months that meet it.
type GoalProjection struct {
	GoalId          string  `json:"goal_id"`
	Name            string  `json:"name"`
	MonthlyRequired float64 `json:"monthly_required"`
	Probability     float64 `json:"probability"`
}

// CategoryForecasts holds per-category projections, partitioned by
// transaction type.
type CategoryForecasts struct {
	Income  map[string][]ForecastPoint `json:"income"`
	Expense map[string][]ForecastPoint `json:"expense"`
}

// Forecast is the full projection for one user over a fixed horizon.
// Income, expense and savings series have identical length and dates.
type Forecast struct {
	IncomeForecast    []ForecastPoint   `json:"income_forecast"`
	ExpenseForecast   []ForecastPoint   `json:"expense_forecast"`
	SavingsForecast   []ForecastPoint   `json:"savings_forecast"`
	CategoryForecasts CategoryForecasts `json:"category_forecasts"`
	GoalProjections   []GoalProjection  `json:"goal_projections"`
}

// DashboardSummary aggregates a user's transactions into totals.
type DashboardSummary struct {
	Income       float64       `json:"income"`
	Expense      float64       `json:"expense"`
	Balance      float64       `json:"balance"`
	Notification *Notification `json:"notification,omitempty"`
}
