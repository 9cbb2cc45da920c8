package transaction_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/fraud-stepup-backend/internal/domain/errors"
	"github.com/davidleathers/fraud-stepup-backend/internal/domain/transaction"
	"github.com/davidleathers/fraud-stepup-backend/internal/domain/values"
)

var now = time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)

func validParams() transaction.Params {
	return transaction.Params{
		TenantID:         "tenant-1",
		CustomerID:       "cust-42",
		Amount:           values.MustNewMoneyFromFloat(5000, values.PKR),
		MerchantCategory: " Grocery ",
		MerchantName:     "Imtiaz",
		Location:         &transaction.Location{Latitude: 24.86, Longitude: 67.01, City: "Karachi", Country: "PK"},
		Device:           &transaction.DeviceInfo{DeviceID: "dev-1", IPAddress: "10.0.0.1"},
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(p *transaction.Params)
		wantCode string
		validate func(t *testing.T, tx *transaction.Transaction)
	}{
		{
			name: "creates pending transaction with defaults",
			validate: func(t *testing.T, tx *transaction.Transaction) {
				assert.NotEqual(t, uuid.Nil, tx.ID)
				assert.Equal(t, transaction.StatusPending, tx.Status)
				assert.Equal(t, "grocery", tx.MerchantCategory)
				assert.Equal(t, now, tx.SubmittedAt)
				assert.Nil(t, tx.RiskScore)
			},
		},
		{
			name: "keeps caller id and timestamp",
			mutate: func(p *transaction.Params) {
				p.ID = uuid.MustParse("6f1c2b55-7d0e-4f7a-9d1e-2f1c8e4b9a10")
				p.SubmittedAt = now.Add(-time.Minute)
			},
			validate: func(t *testing.T, tx *transaction.Transaction) {
				assert.Equal(t, "6f1c2b55-7d0e-4f7a-9d1e-2f1c8e4b9a10", tx.ID.String())
				assert.Equal(t, now.Add(-time.Minute), tx.SubmittedAt)
			},
		},
		{
			name:     "rejects missing tenant",
			mutate:   func(p *transaction.Params) { p.TenantID = "" },
			wantCode: "MISSING_TENANT_ID",
		},
		{
			name:     "rejects missing customer",
			mutate:   func(p *transaction.Params) { p.CustomerID = "  " },
			wantCode: "MISSING_CUSTOMER_ID",
		},
		{
			name:     "rejects zero amount",
			mutate:   func(p *transaction.Params) { p.Amount = values.MustNewMoneyFromFloat(0, values.PKR) },
			wantCode: "INVALID_AMOUNT",
		},
		{
			name:     "rejects negative amount",
			mutate:   func(p *transaction.Params) { p.Amount = values.MustNewMoneyFromFloat(-10, values.PKR) },
			wantCode: "INVALID_AMOUNT",
		},
		{
			name:     "rejects missing category",
			mutate:   func(p *transaction.Params) { p.MerchantCategory = "" },
			wantCode: "MISSING_MERCHANT_CATEGORY",
		},
		{
			name:     "rejects missing merchant name",
			mutate:   func(p *transaction.Params) { p.MerchantName = "" },
			wantCode: "MISSING_MERCHANT_NAME",
		},
		{
			name:     "rejects missing location",
			mutate:   func(p *transaction.Params) { p.Location = nil },
			wantCode: "MISSING_LOCATION",
		},
		{
			name:     "rejects latitude out of range",
			mutate:   func(p *transaction.Params) { p.Location = &transaction.Location{Latitude: 91} },
			wantCode: "INVALID_LOCATION",
		},
		{
			name:     "rejects missing device",
			mutate:   func(p *transaction.Params) { p.Device = nil },
			wantCode: "MISSING_DEVICE_INFO",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			if tt.mutate != nil {
				tt.mutate(&p)
			}

			tx, err := transaction.New(p, now)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
				var appErr *errors.AppError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, tt.wantCode, appErr.Code)
				return
			}
			require.NoError(t, err)
			tt.validate(t, tx)
		})
	}
}

func TestTransaction_Transitions(t *testing.T) {
	later := now.Add(time.Second)

	t.Run("approve sets score and status", func(t *testing.T) {
		tx, err := transaction.New(validParams(), now)
		require.NoError(t, err)

		require.NoError(t, tx.Approve(12, later))
		score, ok := tx.Score()
		assert.True(t, ok)
		assert.Equal(t, 12, score)
		assert.Equal(t, transaction.StatusApproved, tx.Status)
		assert.Equal(t, later, tx.UpdatedAt)

		err = tx.RequireVerification(90, later)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))
	})

	t.Run("step-up path ends verified", func(t *testing.T) {
		tx, err := transaction.New(validParams(), now)
		require.NoError(t, err)

		require.NoError(t, tx.RequireVerification(85, later))
		assert.Equal(t, transaction.StatusPendingVerification, tx.Status)
		require.NoError(t, tx.MarkVerified(later))
		assert.Equal(t, transaction.StatusVerified, tx.Status)
		assert.Error(t, tx.MarkBlocked(later))
	})

	t.Run("step-up path ends blocked", func(t *testing.T) {
		tx, err := transaction.New(validParams(), now)
		require.NoError(t, err)

		require.NoError(t, tx.RequireVerification(85, later))
		require.NoError(t, tx.MarkBlocked(later))
		assert.Equal(t, transaction.StatusBlocked, tx.Status)
		assert.True(t, tx.Status.IsFinal())
	})

	t.Run("verify without challenge is rejected", func(t *testing.T) {
		tx, err := transaction.New(validParams(), now)
		require.NoError(t, err)

		assert.Error(t, tx.MarkVerified(later))
		assert.Equal(t, transaction.StatusPending, tx.Status)
	})

	t.Run("score outside range is rejected", func(t *testing.T) {
		tx, err := transaction.New(validParams(), now)
		require.NoError(t, err)

		err = tx.Approve(101, later)
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
		_, ok := tx.Score()
		assert.False(t, ok)
		assert.Equal(t, transaction.StatusPending, tx.Status)
	})
}

func TestStatus_RoundTrip(t *testing.T) {
	for _, s := range []transaction.Status{
		transaction.StatusPending,
		transaction.StatusApproved,
		transaction.StatusPendingVerification,
		transaction.StatusVerified,
		transaction.StatusBlocked,
	} {
		parsed, err := transaction.ParseStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}

	_, err := transaction.ParseStatus("refunded")
	assert.Error(t, err)
}

func TestHistoryEntryFrom(t *testing.T) {
	tx, err := transaction.New(validParams(), now)
	require.NoError(t, err)

	entry := transaction.HistoryEntryFrom(tx)
	assert.True(t, entry.Amount.Equal(tx.Amount.Amount()))
	assert.Equal(t, tx.SubmittedAt, entry.Timestamp)
	assert.Equal(t, "dev-1", entry.Device.DeviceID)
}
