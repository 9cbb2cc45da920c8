package fraud

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	highAmount     = decimal.NewFromInt(HighAmountThreshold)
	elevatedAmount = decimal.NewFromInt(ElevatedAmountThreshold)
)

// RuleScore is the deterministic fallback score. It depends only on its
// arguments and always lands in [MinScore, MaxScore].
func RuleScore(amount decimal.Decimal, hour int, category string) int {
	score := 0

	switch {
	case amount.GreaterThan(highAmount):
		score += HighAmountPoints
	case amount.GreaterThan(elevatedAmount):
		score += ElevatedAmountPoints
	}

	if hour >= OffHoursStart || hour <= OffHoursEnd {
		score += OffHoursPoints
	}

	if IsRiskyCategory(category) {
		score += RiskyCategoryPoints
	}

	return clamp(score)
}

// IsRiskyCategory reports whether category carries the category penalty
func IsRiskyCategory(category string) bool {
	_, ok := riskyCategories[strings.ToLower(strings.TrimSpace(category))]
	return ok
}

func clamp(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
