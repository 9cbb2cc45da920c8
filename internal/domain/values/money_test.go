package values

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	tests := []struct {
		name     string
		amount   decimal.Decimal
		currency string
		want     string
		wantErr  bool
	}{
		{
			name:     "valid PKR amount",
			amount:   decimal.NewFromFloat(250000),
			currency: PKR,
			want:     PKR,
		},
		{
			name:     "lower case currency is normalized",
			amount:   decimal.NewFromFloat(100.0),
			currency: "usd",
			want:     USD,
		},
		{
			name:     "empty currency",
			amount:   decimal.NewFromFloat(100.0),
			currency: "",
			wantErr:  true,
		},
		{
			name:     "invalid currency",
			amount:   decimal.NewFromFloat(100.0),
			currency: "INVALID",
			wantErr:  true,
		},
		{
			name:     "unsupported currency",
			amount:   decimal.NewFromFloat(100.0),
			currency: "XYZ",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			money, err := NewMoney(tt.amount, tt.currency)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.True(t, money.Amount().Equal(tt.amount))
			assert.Equal(t, tt.want, money.Currency())
		})
	}
}

func TestNewMoneyFromString(t *testing.T) {
	m, err := NewMoneyFromString("50000.01", PKR)
	require.NoError(t, err)
	assert.Equal(t, "50000.01 PKR", m.String())
	assert.True(t, m.IsPositive())

	_, err = NewMoneyFromString("abc", PKR)
	assert.Error(t, err)
}

func TestMoney_JSON(t *testing.T) {
	m := MustNewMoneyFromFloat(1234.5, PKR)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"1234.5","currency":"PKR"}`, string(data))

	var decoded Money
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.Amount().Equal(m.Amount()))
	assert.Equal(t, PKR, decoded.Currency())
}
