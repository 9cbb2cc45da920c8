package fraud

import "time"

// Rule-based fallback weights
const (
	HighAmountThreshold     = 100000
	ElevatedAmountThreshold = 50000

	HighAmountPoints     = 30
	ElevatedAmountPoints = 20
	OffHoursPoints       = 25
	RiskyCategoryPoints  = 30

	// Off hours are hour >= OffHoursStart or hour <= OffHoursEnd
	OffHoursStart = 23
	OffHoursEnd   = 5

	MinScore = 0
	MaxScore = 100
)

// Scoring defaults
const (
	DefaultModelTimeout  = 2 * time.Second
	DefaultScoreCacheTTL = time.Hour
)

// Feature defaults
const (
	// DefaultLocationChangeThreshold is in degrees of |dlat|+|dlng|, not a
	// geodesic distance
	DefaultLocationChangeThreshold = 1.0

	// VelocityWindow bounds the transaction count feature
	VelocityWindow = 24 * time.Hour
)

// riskyCategories are matched after lower-casing
var riskyCategories = map[string]struct{}{
	"gambling":      {},
	"crypto":        {},
	"international": {},
}
