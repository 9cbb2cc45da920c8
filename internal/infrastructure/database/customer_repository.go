package database

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/davidleathers/fraud-stepup-backend/internal/domain/customer"
	"github.com/davidleathers/fraud-stepup-backend/internal/domain/errors"
	"github.com/davidleathers/fraud-stepup-backend/internal/domain/values"
	"github.com/davidleathers/fraud-stepup-backend/internal/infrastructure/secrets"
)

// Decrypter opens sealed national IDs
type Decrypter interface {
	Decrypt(s secrets.Sealed) (string, error)
}

// CustomerRepository reads customer challenge data and applies blocks
type CustomerRepository struct {
	db     Querier
	cipher Decrypter
	logger *zap.Logger
}

// NewCustomerRepository creates a repository decrypting national IDs with cipher
func NewCustomerRepository(db Querier, cipher Decrypter, logger *zap.Logger) *CustomerRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CustomerRepository{db: db, cipher: cipher, logger: logger}
}

// GetByID loads and decrypts a customer
func (r *CustomerRepository) GetByID(ctx context.Context, tenantID, customerID string) (*customer.Customer, error) {
	const query = `
		SELECT id, tenant_id, name, phone, preferred_language,
		       national_id_ciphertext, national_id_iv, national_id_tag,
		       account_status, blocked_until
		FROM customers
		WHERE tenant_id = $1 AND id = $2`

	var (
		c      customer.Customer
		phone  string
		status string
		sealed secrets.Sealed
	)
	err := r.db.QueryRow(ctx, query, tenantID, customerID).Scan(
		&c.ID, &c.TenantID, &c.Name, &phone, &c.Language,
		&sealed.Ciphertext, &sealed.IV, &sealed.Tag,
		&status, &c.BlockedUntil,
	)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.NewNotFoundError("customer").
				WithDetails(map[string]interface{}{"customer_id": customerID})
		}
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}
	c.Status = customer.AccountStatus(status)

	if phone != "" {
		c.Phone, err = values.NewPhoneNumber(phone)
		if err != nil {
			r.logger.Warn("stored phone number is invalid",
				zap.String("customer_id", customerID),
				zap.String("phone", values.MaskPhone(phone)))
		}
	}

	if len(sealed.Ciphertext) > 0 {
		c.NationalID, err = r.cipher.Decrypt(sealed)
		if err != nil {
			return nil, errors.NewInternalError("failed to decrypt customer identity").
				WithCause(err).
				WithDetails(map[string]interface{}{"customer_id": customerID})
		}
	}
	return &c, nil
}

// ChallengeProfile returns the phone, language and expected code for a
// step-up challenge
func (r *CustomerRepository) ChallengeProfile(ctx context.Context, tenantID, customerID string) (*customer.ChallengeProfile, error) {
	c, err := r.GetByID(ctx, tenantID, customerID)
	if err != nil {
		return nil, err
	}
	return c.ChallengeProfile()
}

// Block marks the customer blocked until the given time
func (r *CustomerRepository) Block(ctx context.Context, tenantID, customerID string, until time.Time) error {
	const query = `
		UPDATE customers
		SET account_status = $3, blocked_until = $4, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2`

	tag, err := r.db.Exec(ctx, query, tenantID, customerID, string(customer.AccountBlocked), until)
	if err != nil {
		return fmt.Errorf("failed to block customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NewNotFoundError("customer").
			WithDetails(map[string]interface{}{"customer_id": customerID})
	}
	return nil
}

// Upsert stores c, sealing its national ID with cipher
func (r *CustomerRepository) Upsert(ctx context.Context, c *customer.Customer, cipher *secrets.Cipher) error {
	sealed, err := cipher.Encrypt(c.NationalID)
	if err != nil {
		return fmt.Errorf("failed to seal national id: %w", err)
	}

	status := c.Status
	if status == "" {
		status = customer.AccountActive
	}

	const query = `
		INSERT INTO customers (
			tenant_id, id, name, phone, preferred_language,
			national_id_ciphertext, national_id_iv, national_id_tag,
			account_status, blocked_until
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tenant_id, id) DO UPDATE SET
			name = EXCLUDED.name,
			phone = EXCLUDED.phone,
			preferred_language = EXCLUDED.preferred_language,
			national_id_ciphertext = EXCLUDED.national_id_ciphertext,
			national_id_iv = EXCLUDED.national_id_iv,
			national_id_tag = EXCLUDED.national_id_tag,
			account_status = EXCLUDED.account_status,
			blocked_until = EXCLUDED.blocked_until,
			updated_at = NOW()`

	_, err = r.db.Exec(ctx, query,
		c.TenantID, c.ID, c.Name, c.Phone.String(), c.Language,
		sealed.Ciphertext, sealed.IV, sealed.Tag,
		string(status), c.BlockedUntil,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert customer: %w", err)
	}
	return nil
}
