// Package insight derives numeric financial health metrics from a
// forecast: savings rate, trends, risk level and tagged
// recommendations. It deliberately produces codes and numbers, not
// prose; human-readable text is assembled separately by Renderer so
// the numeric derivation stays free of presentation concerns.
package insight

import (
	"math"
	"sort"

	"github.com/finflow/backend/internal/model"
)

// RiskLevel buckets the overall financial risk.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RiskFactor identifies one contributing risk condition.
type RiskFactor string

const (
	RiskFactorNegativeCashFlow RiskFactor = "negative_cash_flow"
	RiskFactorLowSavings       RiskFactor = "low_savings"
	RiskFactorHighExpenses     RiskFactor = "high_expenses"
	RiskFactorDecliningIncome  RiskFactor = "declining_income"
)

// Priority orders recommendations.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
)

// RecommendationCode tags the kind of action a recommendation suggests.
type RecommendationCode string

const (
	RecommendGoalShortfall  RecommendationCode = "goal_shortfall"
	RecommendCategoryGrowth RecommendationCode = "category_growth"
	RecommendCategoryWeight RecommendationCode = "category_weight"
)

// Metrics are the headline numbers derived from the near-term forecast.
// Rates and trends are percentages.
type Metrics struct {
	SavingsRate     float64 `json:"savings_rate"`
	ExpenseRatio    float64 `json:"expense_ratio"`
	IncomeTrend     float64 `json:"income_trend"`
	ExpenseTrend    float64 `json:"expense_trend"`
	SavingsTrend    float64 `json:"savings_trend"`
	MonthlySavings  float64 `json:"monthly_savings"`
	AverageIncome   float64 `json:"average_income"`
	AverageExpenses float64 `json:"average_expenses"`
}

// Recommendation is one tagged, prioritized suggestion.
type Recommendation struct {
	Code     RecommendationCode `json:"code"`
	Priority Priority           `json:"priority"`
	// Target names what the recommendation is about: a goal name for
	// goal_shortfall, a category for the category codes.
	Target string `json:"target"`
	// Amount is the monetary figure attached to the recommendation:
	// the monthly gap for a goal shortfall, the projected monthly
	// amount for a category.
	Amount float64 `json:"amount"`
	// Percent carries the growth rate or expense share, depending on code.
	Percent float64 `json:"percent"`
}

// Report is the full derived insight set for one forecast.
type Report struct {
	Metrics         Metrics          `json:"metrics"`
	Risk            RiskLevel        `json:"risk"`
	RiskFactors     []RiskFactor     `json:"risk_factors"`
	Recommendations []Recommendation `json:"recommendations"`
}

// recentMonths is how many leading forecast months feed the averages.
const recentMonths = 3

// Derive computes a Report from a forecast. A nil or empty forecast
// yields a zero-valued low-risk report.
func Derive(f *model.Forecast) *Report {
	report := &Report{Risk: RiskLow}
	if f == nil || len(f.IncomeForecast) == 0 {
		return report
	}

	report.Metrics = deriveMetrics(f)
	report.RiskFactors = deriveRiskFactors(report.Metrics)

	switch {
	case len(report.RiskFactors) >= 3:
		report.Risk = RiskHigh
	case len(report.RiskFactors) >= 1:
		report.Risk = RiskMedium
	}

	report.Recommendations = append(report.Recommendations, goalRecommendations(f, report.Metrics)...)
	report.Recommendations = append(report.Recommendations, categoryRecommendations(f)...)

	// Highest priority first; stable so same-priority order is preserved.
	sort.SliceStable(report.Recommendations, func(i, j int) bool {
		return report.Recommendations[i].Priority > report.Recommendations[j].Priority
	})

	return report
}

func deriveMetrics(f *model.Forecast) Metrics {
	avgIncome := averageLeading(f.IncomeForecast, recentMonths)
	avgExpenses := averageLeading(f.ExpenseForecast, recentMonths)
	avgSavings := averageLeading(f.SavingsForecast, recentMonths)

	m := Metrics{
		IncomeTrend:     round1(trend(amounts(f.IncomeForecast))),
		ExpenseTrend:    round1(trend(amounts(f.ExpenseForecast))),
		SavingsTrend:    round1(trend(amounts(f.SavingsForecast))),
		MonthlySavings:  round2(avgSavings),
		AverageIncome:   round2(avgIncome),
		AverageExpenses: round2(avgExpenses),
	}
	if avgIncome > 0 {
		m.SavingsRate = round1(avgSavings / avgIncome * 100)
		m.ExpenseRatio = round1(avgExpenses / avgIncome * 100)
	}
	return m
}

func deriveRiskFactors(m Metrics) []RiskFactor {
	var factors []RiskFactor
	if m.AverageIncome < m.AverageExpenses {
		factors = append(factors, RiskFactorNegativeCashFlow)
	}
	if m.SavingsRate < 10 {
		factors = append(factors, RiskFactorLowSavings)
	}
	if m.ExpenseRatio > 80 {
		factors = append(factors, RiskFactorHighExpenses)
	}
	if m.IncomeTrend < -5 {
		factors = append(factors, RiskFactorDecliningIncome)
	}
	return factors
}

// goalRecommendations flags goals with completion probability below
// 50%, with the monthly savings gap needed to get back on track.
func goalRecommendations(f *model.Forecast, m Metrics) []Recommendation {
	var recs []Recommendation
	for _, goal := range f.GoalProjections {
		if goal.Probability >= 50 {
			continue
		}
		priority := PriorityMedium
		if goal.Probability < 30 {
			priority = PriorityHigh
		}
		recs = append(recs, Recommendation{
			Code:     RecommendGoalShortfall,
			Priority: priority,
			Target:   goal.Name,
			Amount:   round2(goal.MonthlyRequired - m.MonthlySavings),
			Percent:  goal.Probability,
		})
	}
	return recs
}

// categoryRecommendations flags expense categories growing faster than
// 15% over the horizon and categories above 30% of projected spending.
func categoryRecommendations(f *model.Forecast) []Recommendation {
	expense := f.CategoryForecasts.Expense
	if len(expense) == 0 {
		return nil
	}

	var totalFinal float64
	for _, points := range expense {
		if len(points) > 0 {
			totalFinal += points[len(points)-1].Amount
		}
	}
	if totalFinal <= 0 {
		return nil
	}

	// Deterministic order over the map
	categories := make([]string, 0, len(expense))
	for category := range expense {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	var recs []Recommendation
	for _, category := range categories {
		points := expense[category]
		if len(points) == 0 {
			continue
		}
		growth := trend(amounts(points))
		share := points[len(points)-1].Amount / totalFinal * 100

		if growth > 15 {
			priority := PriorityMedium
			if share > 20 {
				priority = PriorityHigh
			}
			recs = append(recs, Recommendation{
				Code:     RecommendCategoryGrowth,
				Priority: priority,
				Target:   category,
				Amount:   round2(points[len(points)-1].Amount),
				Percent:  round1(growth),
			})
		}
		if share > 30 {
			recs = append(recs, Recommendation{
				Code:     RecommendCategoryWeight,
				Priority: PriorityHigh,
				Target:   category,
				Amount:   round2(points[len(points)-1].Amount),
				Percent:  round1(share),
			})
		}
	}
	return recs
}

// trend is the percentage change from the first to the last value.
// Series shorter than two points, or starting at zero, have no trend.
func trend(values []float64) float64 {
	if len(values) < 2 || values[0] == 0 {
		return 0
	}
	return (values[len(values)-1] - values[0]) / values[0] * 100
}

func amounts(points []model.ForecastPoint) []float64 {
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Amount
	}
	return values
}

func averageLeading(points []model.ForecastPoint, n int) float64 {
	if len(points) == 0 {
		return 0
	}
	if n > len(points) {
		n = len(points)
	}
	var sum float64
	for _, p := range points[:n] {
		sum += p.Amount
	}
	return sum / float64(n)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
