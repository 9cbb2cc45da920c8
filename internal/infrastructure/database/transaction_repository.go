package database

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/davidleathers/fraud-stepup-backend/internal/domain/errors"
	"github.com/davidleathers/fraud-stepup-backend/internal/domain/transaction"
	"github.com/davidleathers/fraud-stepup-backend/internal/domain/values"
)

// TransactionRepository stores transactions and serves the history lookup
type TransactionRepository struct {
	db Querier
}

// NewTransactionRepository creates a repository over db
func NewTransactionRepository(db Querier) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `
	id, tenant_id, customer_id, amount::text, currency, merchant_category, merchant_name,
	latitude, longitude, city, country, device_id, ip_address, user_agent,
	submitted_at, risk_score, status, updated_at`

// Create inserts tx
func (r *TransactionRepository) Create(ctx context.Context, tx *transaction.Transaction) error {
	const query = `
		INSERT INTO transactions (
			id, tenant_id, customer_id, amount, currency, merchant_category, merchant_name,
			latitude, longitude, city, country, device_id, ip_address, user_agent,
			submitted_at, risk_score, status, updated_at
		) VALUES (
			$1, $2, $3, $4::numeric, $5, $6, $7,
			$8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18
		)`

	loc := locationOrZero(tx.Location)
	dev := deviceOrZero(tx.Device)

	_, err := r.db.Exec(ctx, query,
		tx.ID, tx.TenantID, tx.CustomerID, tx.Amount.Amount().String(), tx.Amount.Currency(),
		tx.MerchantCategory, tx.MerchantName,
		loc.Latitude, loc.Longitude, loc.City, loc.Country,
		dev.DeviceID, dev.IPAddress, dev.UserAgent,
		tx.SubmittedAt, tx.RiskScore, tx.Status.String(), tx.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// Update writes the decision fields of tx
func (r *TransactionRepository) Update(ctx context.Context, tx *transaction.Transaction) error {
	const query = `
		UPDATE transactions
		SET risk_score = $2, status = $3, updated_at = $4
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, tx.ID, tx.RiskScore, tx.Status.String(), tx.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NewNotFoundError("transaction").
			WithDetails(map[string]interface{}{"transaction_id": tx.ID.String()})
	}
	return nil
}

// GetByID loads a transaction
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	row := r.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)

	tx, err := scanTransaction(row)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.NewNotFoundError("transaction").
				WithDetails(map[string]interface{}{"transaction_id": id.String()})
		}
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}
	return tx, nil
}

// RecentHistory returns up to limit of the customer's transactions submitted
// before the given time, newest first
func (r *TransactionRepository) RecentHistory(ctx context.Context, tenantID, customerID string, before time.Time, limit int) ([]transaction.HistoryEntry, error) {
	const query = `
		SELECT amount::text, submitted_at, latitude, longitude, city, country,
		       device_id, ip_address, user_agent
		FROM transactions
		WHERE tenant_id = $1 AND customer_id = $2 AND submitted_at < $3
		ORDER BY submitted_at DESC
		LIMIT $4`

	rows, err := r.db.Query(ctx, query, tenantID, customerID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	history := make([]transaction.HistoryEntry, 0, limit)
	for rows.Next() {
		var (
			amount string
			entry  transaction.HistoryEntry
			loc    transaction.Location
			dev    transaction.DeviceInfo
		)
		if err := rows.Scan(&amount, &entry.Timestamp,
			&loc.Latitude, &loc.Longitude, &loc.City, &loc.Country,
			&dev.DeviceID, &dev.IPAddress, &dev.UserAgent,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		entry.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("invalid stored amount %q: %w", amount, err)
		}
		entry.Timestamp = entry.Timestamp.UTC()
		entry.Location = &loc
		entry.Device = &dev
		history = append(history, entry)
	}
	return history, rows.Err()
}

func scanTransaction(row pgx.Row) (*transaction.Transaction, error) {
	var (
		tx       transaction.Transaction
		amount   string
		currency string
		status   string
		loc      transaction.Location
		dev      transaction.DeviceInfo
	)

	if err := row.Scan(
		&tx.ID, &tx.TenantID, &tx.CustomerID, &amount, &currency,
		&tx.MerchantCategory, &tx.MerchantName,
		&loc.Latitude, &loc.Longitude, &loc.City, &loc.Country,
		&dev.DeviceID, &dev.IPAddress, &dev.UserAgent,
		&tx.SubmittedAt, &tx.RiskScore, &status, &tx.UpdatedAt,
	); err != nil {
		return nil, err
	}

	money, err := values.NewMoneyFromString(amount, currency)
	if err != nil {
		return nil, fmt.Errorf("invalid stored amount: %w", err)
	}
	tx.Amount = money

	tx.Status, err = transaction.ParseStatus(status)
	if err != nil {
		return nil, err
	}

	tx.SubmittedAt = tx.SubmittedAt.UTC()
	tx.UpdatedAt = tx.UpdatedAt.UTC()
	tx.Location = &loc
	tx.Device = &dev
	return &tx, nil
}

func locationOrZero(l *transaction.Location) transaction.Location {
	if l == nil {
		return transaction.Location{}
	}
	return *l
}

func deviceOrZero(d *transaction.DeviceInfo) transaction.DeviceInfo {
	if d == nil {
		return transaction.DeviceInfo{}
	}
	return *d
}
