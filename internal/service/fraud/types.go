package fraud

// FeatureVector is the model input derived from a transaction and the
// customer's recent history. The JSON names are the scoring service's wire
// format.
type FeatureVector struct {
	Amount              float64 `json:"amount"`
	AmountDeviation     float64 `json:"amount_deviation"`
	TransactionCount24h int     `json:"transaction_count_24h"`
	MerchantCategory    string  `json:"merchant_category"`
	HourOfDay           int     `json:"hour_of_day"`
	DayOfWeek           int     `json:"day_of_week"`
	IsWeekend           bool    `json:"is_weekend"`
	DeviceChanged       bool    `json:"device_change"`
	LocationChanged     bool    `json:"location_change"`
}

// Strategy names the path that produced a score
type Strategy string

const (
	StrategyModel  Strategy = "model"
	StrategyCached Strategy = "cached"
	StrategyRules  Strategy = "rules"
)

func (s Strategy) String() string {
	return string(s)
}

// ScoreResult is a 0..100 risk score and how it was obtained
type ScoreResult struct {
	Score    int      `json:"score"`
	Strategy Strategy `json:"strategy"`
}
