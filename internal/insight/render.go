package insight

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Renderer turns a derived Report into human-readable text, with
// numbers formatted for the requested locale. All prose lives here;
// the derivation itself never produces strings.
type Renderer struct {
	printer *message.Printer
}

// NewRenderer creates a renderer for the given BCP 47 locale tag.
// Unparseable tags fall back to English.
func NewRenderer(locale string) *Renderer {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return &Renderer{printer: message.NewPrinter(tag)}
}

// Headline summarizes the report in one sentence, led by the most
// critical risk factor.
func (r *Renderer) Headline(report *Report) string {
	m := report.Metrics
	for _, factor := range report.RiskFactors {
		switch factor {
		case RiskFactorNegativeCashFlow:
			return r.printer.Sprintf("Monthly expenses (%.0f) exceed income (%.0f); immediate action is required to balance the budget.", m.AverageExpenses, m.AverageIncome)
		case RiskFactorHighExpenses:
			return r.printer.Sprintf("Expenses consume %.1f%% of income, leaving little room for savings.", m.ExpenseRatio)
		case RiskFactorDecliningIncome:
			return r.printer.Sprintf("Income shows a declining trend of %.1f%% over the forecast period.", m.IncomeTrend)
		case RiskFactorLowSavings:
			return r.printer.Sprintf("The savings rate of %.1f%% is below the recommended 20%%.", m.SavingsRate)
		}
	}
	return r.printer.Sprintf("Finances look healthy with a %.1f%% savings rate and a balanced expense ratio.", m.SavingsRate)
}

// Describe renders one recommendation as a sentence.
func (r *Renderer) Describe(rec Recommendation) string {
	switch rec.Code {
	case RecommendGoalShortfall:
		return r.printer.Sprintf("Increase monthly savings by %.2f to stay on track for %s.", rec.Amount, rec.Target)
	case RecommendCategoryGrowth:
		return r.printer.Sprintf("%s expenses are growing rapidly (+%.1f%%); consider a budget cap.", rec.Target, rec.Percent)
	case RecommendCategoryWeight:
		return r.printer.Sprintf("%s represents %.1f%% of projected spending; look for alternatives or better rates.", rec.Target, rec.Percent)
	default:
		return ""
	}
}
