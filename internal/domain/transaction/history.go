package transaction

import (
	"time"

	"github.com/shopspring/decimal"
)

// HistoryEntry summarizes a prior transaction of the same customer. Device and
// Location are nil when the store has no data for them.
type HistoryEntry struct {
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
	Device    *DeviceInfo     `json:"device,omitempty"`
	Location  *Location       `json:"location,omitempty"`
}

// HistoryEntryFrom summarizes t for use as another transaction's history
func HistoryEntryFrom(t *Transaction) HistoryEntry {
	return HistoryEntry{
		Amount:    t.Amount.Amount(),
		Timestamp: t.SubmittedAt,
		Device:    t.Device,
		Location:  t.Location,
	}
}
