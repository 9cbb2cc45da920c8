package fraud

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/fraud-stepup-backend/internal/domain/transaction"
	"github.com/davidleathers/fraud-stepup-backend/internal/domain/values"
)

var submittedAt = time.Date(2024, 3, 16, 12, 0, 0, 0, time.UTC) // Saturday

func newTestTransaction(t *testing.T, amount float64, category string, at time.Time) *transaction.Transaction {
	t.Helper()
	tx, err := transaction.New(transaction.Params{
		TenantID:         "tenant-1",
		CustomerID:       "cust-1",
		Amount:           values.MustNewMoneyFromFloat(amount, values.PKR),
		MerchantCategory: category,
		MerchantName:     "Merchant",
		Location:         &transaction.Location{Latitude: 24.86, Longitude: 67.00},
		Device:           &transaction.DeviceInfo{DeviceID: "dev-1"},
		SubmittedAt:      at,
	}, at)
	require.NoError(t, err)
	return tx
}

func entry(amount int64, age time.Duration) transaction.HistoryEntry {
	return transaction.HistoryEntry{
		Amount:    decimal.NewFromInt(amount),
		Timestamp: submittedAt.Add(-age),
	}
}

func TestFeatureBuilder_EmptyHistory(t *testing.T) {
	tx := newTestTransaction(t, 5000, "Grocery", submittedAt)

	fv := FeatureBuilder{}.Build(tx, nil)

	assert.Equal(t, 5000.0, fv.Amount)
	assert.Zero(t, fv.AmountDeviation)
	assert.Zero(t, fv.TransactionCount24h)
	assert.Equal(t, "grocery", fv.MerchantCategory)
	assert.Equal(t, 12, fv.HourOfDay)
	assert.Equal(t, int(time.Saturday), fv.DayOfWeek)
	assert.True(t, fv.IsWeekend)
	assert.False(t, fv.DeviceChanged)
	assert.False(t, fv.LocationChanged)
}

func TestFeatureBuilder_Build(t *testing.T) {
	tests := []struct {
		name     string
		amount   float64
		history  []transaction.HistoryEntry
		validate func(t *testing.T, fv FeatureVector)
	}{
		{
			name:    "deviation against average",
			amount:  300,
			history: []transaction.HistoryEntry{entry(100, time.Hour), entry(100, 2*time.Hour)},
			validate: func(t *testing.T, fv FeatureVector) {
				assert.InDelta(t, 2.0, fv.AmountDeviation, 1e-9)
			},
		},
		{
			name:    "zero average divides by one",
			amount:  50,
			history: []transaction.HistoryEntry{entry(0, time.Hour)},
			validate: func(t *testing.T, fv FeatureVector) {
				assert.InDelta(t, 50.0, fv.AmountDeviation, 1e-9)
			},
		},
		{
			name:   "counts only the last 24 hours",
			amount: 100,
			history: []transaction.HistoryEntry{
				entry(100, time.Minute),
				entry(100, 23*time.Hour),
				entry(100, 24*time.Hour),
				entry(100, 25*time.Hour),
				entry(100, -time.Hour),
			},
			validate: func(t *testing.T, fv FeatureVector) {
				assert.Equal(t, 3, fv.TransactionCount24h)
			},
		},
		{
			name:   "device change compares most recent entry",
			amount: 100,
			history: []transaction.HistoryEntry{
				{Amount: decimal.NewFromInt(100), Timestamp: submittedAt.Add(-time.Hour), Device: &transaction.DeviceInfo{DeviceID: "dev-9"}},
				{Amount: decimal.NewFromInt(100), Timestamp: submittedAt.Add(-2 * time.Hour), Device: &transaction.DeviceInfo{DeviceID: "dev-1"}},
			},
			validate: func(t *testing.T, fv FeatureVector) {
				assert.True(t, fv.DeviceChanged)
			},
		},
		{
			name:   "missing device and location count as no change",
			amount: 100,
			history: []transaction.HistoryEntry{
				entry(100, time.Hour),
			},
			validate: func(t *testing.T, fv FeatureVector) {
				assert.False(t, fv.DeviceChanged)
				assert.False(t, fv.LocationChanged)
			},
		},
		{
			name:   "location beyond threshold",
			amount: 100,
			history: []transaction.HistoryEntry{
				{Amount: decimal.NewFromInt(100), Timestamp: submittedAt.Add(-time.Hour), Location: &transaction.Location{Latitude: 31.52, Longitude: 74.35}},
			},
			validate: func(t *testing.T, fv FeatureVector) {
				assert.True(t, fv.LocationChanged)
			},
		},
		{
			name:   "location within threshold",
			amount: 100,
			history: []transaction.HistoryEntry{
				{Amount: decimal.NewFromInt(100), Timestamp: submittedAt.Add(-time.Hour), Location: &transaction.Location{Latitude: 25.26, Longitude: 67.50}},
			},
			validate: func(t *testing.T, fv FeatureVector) {
				assert.False(t, fv.LocationChanged)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := newTestTransaction(t, tt.amount, "grocery", submittedAt)
			tt.validate(t, FeatureBuilder{}.Build(tx, tt.history))
		})
	}
}

func TestFeatureBuilder_TimeZoneAndThreshold(t *testing.T) {
	karachi := time.FixedZone("PKT", 5*3600)
	at := time.Date(2024, 3, 15, 21, 30, 0, 0, time.UTC) // Friday 02:30 Saturday in PKT
	tx := newTestTransaction(t, 100, "grocery", at)

	fv := NewFeatureBuilder(0.1, karachi).Build(tx, []transaction.HistoryEntry{
		{Amount: decimal.NewFromInt(100), Timestamp: at.Add(-time.Hour), Location: &transaction.Location{Latitude: 24.90, Longitude: 67.10}},
	})

	assert.Equal(t, 2, fv.HourOfDay)
	assert.Equal(t, int(time.Saturday), fv.DayOfWeek)
	assert.True(t, fv.IsWeekend)
	assert.True(t, fv.LocationChanged)
}

func TestFeatureBuilder_Deterministic(t *testing.T) {
	tx := newTestTransaction(t, 777, "travel", submittedAt)
	history := []transaction.HistoryEntry{entry(100, time.Hour), entry(900, 30*time.Hour)}

	b := FeatureBuilder{}
	assert.Equal(t, b.Build(tx, history), b.Build(tx, history))
}
