package fraud

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/davidleathers/fraud-stepup-backend/internal/domain/transaction"
)

// FeatureBuilder derives feature vectors. The zero value uses UTC and the
// default location threshold.
type FeatureBuilder struct {
	// LocationThreshold is the |dlat|+|dlng| above which the location
	// counts as changed
	LocationThreshold float64
	TimeZone          *time.Location
}

// NewFeatureBuilder returns a builder with the given threshold and zone,
// falling back to defaults for zero values
func NewFeatureBuilder(locationThreshold float64, tz *time.Location) FeatureBuilder {
	return FeatureBuilder{LocationThreshold: locationThreshold, TimeZone: tz}
}

// Build computes the feature vector for tx given history, newest first. It
// is a pure function of its inputs: the 24h window is measured back from the
// transaction's own timestamp.
func (b FeatureBuilder) Build(tx *transaction.Transaction, history []transaction.HistoryEntry) FeatureVector {
	amount := tx.Amount.Amount()
	local := tx.SubmittedAt.In(b.timeZone())
	weekday := local.Weekday()

	amountFloat, _ := amount.Float64()

	return FeatureVector{
		Amount:              amountFloat,
		AmountDeviation:     amountDeviation(amount, history),
		TransactionCount24h: countWithin(history, tx.SubmittedAt, VelocityWindow),
		MerchantCategory:    transaction.NormalizeCategory(tx.MerchantCategory),
		HourOfDay:           local.Hour(),
		DayOfWeek:           int(weekday),
		IsWeekend:           weekday == time.Saturday || weekday == time.Sunday,
		DeviceChanged:       deviceChanged(tx.Device, history),
		LocationChanged:     locationChanged(tx.Location, history, b.locationThreshold()),
	}
}

func (b FeatureBuilder) timeZone() *time.Location {
	if b.TimeZone == nil {
		return time.UTC
	}
	return b.TimeZone
}

func (b FeatureBuilder) locationThreshold() float64 {
	if b.LocationThreshold <= 0 {
		return DefaultLocationChangeThreshold
	}
	return b.LocationThreshold
}

// amountDeviation is |amount - avg| / avg over history. Empty history uses
// the current amount as the average; an average of zero divides by one.
func amountDeviation(amount decimal.Decimal, history []transaction.HistoryEntry) float64 {
	if len(history) == 0 {
		return 0
	}

	sum := decimal.Zero
	for _, h := range history {
		sum = sum.Add(h.Amount)
	}
	avg := sum.Div(decimal.NewFromInt(int64(len(history))))

	divisor := avg
	if divisor.IsZero() {
		divisor = decimal.NewFromInt(1)
	}

	dev, _ := amount.Sub(avg).Abs().Div(divisor).Float64()
	return dev
}

// countWithin counts entries in [ref-window, ref]
func countWithin(history []transaction.HistoryEntry, ref time.Time, window time.Duration) int {
	start := ref.Add(-window)
	count := 0
	for _, h := range history {
		if !h.Timestamp.Before(start) && !h.Timestamp.After(ref) {
			count++
		}
	}
	return count
}

func deviceChanged(current *transaction.DeviceInfo, history []transaction.HistoryEntry) bool {
	if current == nil || len(history) == 0 || history[0].Device == nil {
		return false
	}
	return history[0].Device.DeviceID != current.DeviceID
}

func locationChanged(current *transaction.Location, history []transaction.HistoryEntry, threshold float64) bool {
	if current == nil || len(history) == 0 || history[0].Location == nil {
		return false
	}
	prev := history[0].Location
	delta := math.Abs(current.Latitude-prev.Latitude) + math.Abs(current.Longitude-prev.Longitude)
	return delta > threshold
}
