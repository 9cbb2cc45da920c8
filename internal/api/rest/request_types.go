package rest

import (
	"encoding/json"
	"strings"

	"github.com/davidleathers/fraud-stepup-backend/internal/domain/errors"
	"github.com/davidleathers/fraud-stepup-backend/internal/domain/transaction"
	"github.com/davidleathers/fraud-stepup-backend/internal/domain/values"
)

// SubmitTransactionRequest is the body of POST /v1/transactions
type SubmitTransactionRequest struct {
	CustomerID       string         `json:"customerId" validate:"required,max=64"`
	Amount           json.Number    `json:"amount" validate:"required"`
	Currency         string         `json:"currency" validate:"omitempty,iso4217"`
	MerchantCategory string         `json:"merchantCategory" validate:"required,max=64"`
	MerchantName     string         `json:"merchantName" validate:"required,max=128"`
	Location         *LocationDTO   `json:"location" validate:"required"`
	DeviceInfo       *DeviceInfoDTO `json:"deviceInfo" validate:"required"`
}

// LocationDTO is the reported geolocation
type LocationDTO struct {
	Latitude  *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
	City      string   `json:"city,omitempty" validate:"max=128"`
	Country   string   `json:"country,omitempty" validate:"max=64"`
}

// DeviceInfoDTO is the reported device fingerprint
type DeviceInfoDTO struct {
	DeviceID  string `json:"deviceId" validate:"required,max=128"`
	IP        string `json:"ip,omitempty" validate:"omitempty,ip"`
	UserAgent string `json:"userAgent,omitempty" validate:"max=512"`
}

// ToParams converts the request into transaction parameters for tenantID
func (r SubmitTransactionRequest) ToParams(tenantID string) (transaction.Params, error) {
	currency := strings.ToUpper(strings.TrimSpace(r.Currency))
	if currency == "" {
		currency = values.DefaultCurrency
	}

	amount, err := values.NewMoneyFromString(r.Amount.String(), currency)
	if err != nil {
		return transaction.Params{}, errors.NewValidationError("INVALID_AMOUNT", err.Error())
	}

	return transaction.Params{
		TenantID:         tenantID,
		CustomerID:       r.CustomerID,
		Amount:           amount,
		MerchantCategory: r.MerchantCategory,
		MerchantName:     r.MerchantName,
		Location: &transaction.Location{
			Latitude:  *r.Location.Latitude,
			Longitude: *r.Location.Longitude,
			City:      r.Location.City,
			Country:   r.Location.Country,
		},
		Device: &transaction.DeviceInfo{
			DeviceID:  r.DeviceInfo.DeviceID,
			IPAddress: r.DeviceInfo.IP,
			UserAgent: r.DeviceInfo.UserAgent,
		},
	}, nil
}
