// Package forecast projects a user's future income, expenses and
// savings from their transaction history, and estimates how likely
// each active goal is to be reached by its deadline.
//
// The projection is a least-squares line over monthly totals,
// extrapolated at 30-day steps and clamped at zero. Histories shorter
// than two months fall back to a flat projection at the historical
// mean. Identical input always produces identical output.
package forecast

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/finflow/backend/internal/log"
	"github.com/finflow/backend/internal/model"
	"github.com/finflow/backend/internal/store"
)

const (
	// MinHorizonMonths and MaxHorizonMonths bound how far a forecast
	// may project.
	MinHorizonMonths = 1
	MaxHorizonMonths = 24

	// projectionStep is the spacing between projected points.
	projectionStep = 30 * 24 * time.Hour

	// maxConcurrentRegressions bounds the per-category fan-out.
	maxConcurrentRegressions = 4
)

// Engine computes forecasts over already-persisted transactions.
// It is read-only and safe for concurrent use.
type Engine struct {
	store  store.Store
	logger *log.Logger
	now    func() time.Time
}

// New creates a forecast engine backed by the given store.
func New(st store.Store, logger *log.Logger) *Engine {
	return &Engine{
		store:  st,
		logger: logger.WithComponent("forecast"),
		now:    time.Now,
	}
}

// Forecast projects horizonMonths of income, expenses and savings for
// the user, with per-category breakdowns and goal projections.
// It returns ErrNoHistory when the user has no transactions.
func (e *Engine) Forecast(ctx context.Context, userID string, horizonMonths int) (*model.Forecast, error) {
	if horizonMonths < MinHorizonMonths || horizonMonths > MaxHorizonMonths {
		return nil, ErrInvalidHorizon
	}

	transactions, err := e.store.ListTransactions(ctx, userID, nil)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	if len(transactions) == 0 {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNoHistory)
	}

	var income, expense []*model.Transaction
	for _, tx := range transactions {
		switch tx.Type {
		case model.TransactionTypeIncome:
			income = append(income, tx)
		case model.TransactionTypeExpense:
			expense = append(expense, tx)
		}
	}

	now := e.now()
	incomeForecast := forecastSeries(monthlyTotals(income), horizonMonths, now)
	expenseForecast := forecastSeries(monthlyTotals(expense), horizonMonths, now)

	savingsForecast := make([]model.ForecastPoint, len(incomeForecast))
	for i := range incomeForecast {
		savingsForecast[i] = model.ForecastPoint{
			Date:   incomeForecast[i].Date,
			Amount: incomeForecast[i].Amount - expenseForecast[i].Amount,
		}
	}

	categories, err := e.categoryForecasts(ctx, income, expense, horizonMonths, now)
	if err != nil {
		return nil, err
	}

	projections, err := e.goalProjections(ctx, userID, savingsForecast, now)
	if err != nil {
		return nil, err
	}

	return &model.Forecast{
		IncomeForecast:    incomeForecast,
		ExpenseForecast:   expenseForecast,
		SavingsForecast:   savingsForecast,
		CategoryForecasts: categories,
		GoalProjections:   projections,
	}, nil
}

// categoryForecasts runs the extrapolation independently per
// (type, category) pair. Regressions fan out concurrently with a
// bounded limit; a context check between regressions makes the
// fan-out cancellable for large category counts.
func (e *Engine) categoryForecasts(ctx context.Context, income, expense []*model.Transaction, horizonMonths int, now time.Time) (model.CategoryForecasts, error) {
	result := model.CategoryForecasts{
		Income:  make(map[string][]model.ForecastPoint),
		Expense: make(map[string][]model.ForecastPoint),
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentRegressions)

	run := func(transactions []*model.Transaction, dest map[string][]model.ForecastPoint) {
		for category, txs := range partitionByCategory(transactions) {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				points := forecastSeries(monthlyTotals(txs), horizonMonths, now)
				mu.Lock()
				dest[category] = points
				mu.Unlock()
				return nil
			})
		}
	}

	run(income, result.Income)
	run(expense, result.Expense)

	if err := g.Wait(); err != nil {
		return model.CategoryForecasts{}, fmt.Errorf("category forecasts: %w", err)
	}
	return result, nil
}

// goalProjections derives monthly-required amounts and completion
// probabilities for the user's active goals. Goals whose deadline has
// passed, or falls within the next day, are excluded: no meaningful
// monthly requirement is computable for them.
func (e *Engine) goalProjections(ctx context.Context, userID string, savings []model.ForecastPoint, now time.Time) ([]model.GoalProjection, error) {
	goals, err := e.store.ListActiveGoals(ctx, userID, store.DeadlineAsc)
	if err != nil {
		return nil, fmt.Errorf("list active goals: %w", err)
	}

	projections := make([]model.GoalProjection, 0, len(goals))
	for _, goal := range goals {
		// Whole days only: a goal due within 24 hours has no months
		// left to save in.
		daysRemaining := int(goal.Deadline.Sub(now).Hours() / 24)
		if daysRemaining <= 0 {
			continue
		}
		monthsRemaining := float64(daysRemaining) / 30
		monthlyRequired := goal.Remaining() / monthsRemaining
		projections = append(projections, model.GoalProjection{
			GoalId:          goal.Id,
			Name:            goal.Name,
			MonthlyRequired: monthlyRequired,
			Probability:     goalProbability(monthlyRequired, savings),
		})
	}
	return projections, nil
}

// goalProbability is the percentage of projected months whose savings
// meet or exceed the monthly requirement, rounded to 2 decimals.
func goalProbability(monthlyRequired float64, savings []model.ForecastPoint) float64 {
	if len(savings) == 0 {
		return 0
	}
	var met int
	for _, p := range savings {
		if p.Amount >= monthlyRequired {
			met++
		}
	}
	probability := float64(met) / float64(len(savings)) * 100
	return math.Round(probability*100) / 100
}

// monthPoint is one calendar month's total.
type monthPoint struct {
	month  time.Time
	amount float64
}

// monthlyTotals sums transactions per calendar month and returns the
// series in chronological order. Every calendar month between the
// first and last transaction appears, with total 0 for empty months;
// compacting them out would steepen the fitted trend.
func monthlyTotals(transactions []*model.Transaction) []monthPoint {
	buckets := make(map[time.Time]float64)
	for _, tx := range transactions {
		month := time.Date(tx.Date.Year(), tx.Date.Month(), 1, 0, 0, 0, 0, time.UTC)
		buckets[month] += tx.Amount
	}
	if len(buckets) == 0 {
		return nil
	}

	var first, last time.Time
	for month := range buckets {
		if first.IsZero() || month.Before(first) {
			first = month
		}
		if month.After(last) {
			last = month
		}
	}

	var series []monthPoint
	for month := first; !month.After(last); month = month.AddDate(0, 1, 0) {
		series = append(series, monthPoint{month: month, amount: buckets[month]})
	}
	return series
}

// forecastSeries extrapolates a monthly series horizonMonths ahead at
// 30-day spacing. Fewer than two historical points produce a flat
// projection at the historical mean (0 when empty) starting from now;
// otherwise an OLS line from the last historical month, clamped at 0.
func forecastSeries(hist []monthPoint, horizonMonths int, now time.Time) []model.ForecastPoint {
	points := make([]model.ForecastPoint, 0, horizonMonths)

	amounts := make([]float64, len(hist))
	for i, p := range hist {
		amounts[i] = p.amount
	}

	slope, intercept, ok := linearFit(amounts)
	if !ok {
		avg := mean(amounts)
		for i := 0; i < horizonMonths; i++ {
			points = append(points, model.ForecastPoint{
				Date:   now.Add(time.Duration(i) * projectionStep),
				Amount: avg,
			})
		}
		return points
	}

	last := hist[len(hist)-1].month
	for i := 1; i <= horizonMonths; i++ {
		x := float64(len(hist) + i - 1)
		amount := slope*x + intercept
		if amount < 0 {
			amount = 0
		}
		points = append(points, model.ForecastPoint{
			Date:   last.Add(time.Duration(i) * projectionStep),
			Amount: amount,
		})
	}
	return points
}

func partitionByCategory(transactions []*model.Transaction) map[string][]*model.Transaction {
	byCategory := make(map[string][]*model.Transaction)
	for _, tx := range transactions {
		byCategory[tx.Category] = append(byCategory[tx.Category], tx)
	}
	return byCategory
}
