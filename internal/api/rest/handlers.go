package rest

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davidleathers/fraud-stepup-backend/internal/domain/clock"
	"github.com/davidleathers/fraud-stepup-backend/internal/domain/errors"
	"github.com/davidleathers/fraud-stepup-backend/internal/domain/transaction"
	"github.com/davidleathers/fraud-stepup-backend/internal/domain/verification"
	"github.com/davidleathers/fraud-stepup-backend/internal/service/pipeline"
)

// maxBodySize caps request bodies
const maxBodySize = 1 << 20

// TransactionPipeline is the pipeline surface used by the handlers
type TransactionPipeline interface {
	Submit(ctx context.Context, tx *transaction.Transaction) (*pipeline.SubmitResult, error)
	RetryChallengeCall(ctx context.Context, id uuid.UUID) error
	VerificationStatus(ctx context.Context, id uuid.UUID) (*transaction.Transaction, *verification.Session, error)
}

// CallRetryLimiter caps challenge call retries per transaction
type CallRetryLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RetryLimit bounds POST /v1/transactions/{id}/challenge-call
type RetryLimit struct {
	Limit  int
	Window time.Duration
}

// TransactionHandler serves the tenant-facing transaction endpoints
type TransactionHandler struct {
	pipeline   TransactionPipeline
	limiter    CallRetryLimiter
	retryLimit RetryLimit
	validate   *validator.Validate
	clock      clock.Clock
	logger     *zap.Logger
}

// NewTransactionHandler creates the handler. limiter may be nil to disable
// the retry cap.
func NewTransactionHandler(p TransactionPipeline, limiter CallRetryLimiter, retryLimit RetryLimit, c clock.Clock, logger *zap.Logger) *TransactionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransactionHandler{
		pipeline:   p,
		limiter:    limiter,
		retryLimit: retryLimit,
		validate:   newValidator(),
		clock:      clock.OrReal(c),
		logger:     logger,
	}
}

// Submit handles POST /v1/transactions
func (h *TransactionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	tenant, ok := TenantFromContext(r.Context())
	if !ok {
		writeError(w, r, errors.NewUnauthorizedError("authentication required"))
		return
	}

	var req SubmitTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}

	params, err := req.ToParams(tenant.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := transaction.New(params, h.clock.Now())
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.pipeline.Submit(r.Context(), tx)
	if err != nil {
		h.logger.Error("transaction submission failed",
			zap.String("transaction_id", tx.ID.String()),
			zap.String("tenant_id", tenant.ID),
			zap.Error(err))
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, newSubmitResponse(res))
}

// VerificationStatus handles GET /v1/transactions/{id}/verification
func (h *TransactionHandler) VerificationStatus(w http.ResponseWriter, r *http.Request) {
	tx, sess, err := h.ownedTransaction(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newVerificationStatusResponse(tx, sess))
}

// RetryChallengeCall handles POST /v1/transactions/{id}/challenge-call
func (h *TransactionHandler) RetryChallengeCall(w http.ResponseWriter, r *http.Request) {
	tx, _, err := h.ownedTransaction(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if h.limiter != nil && h.retryLimit.Limit > 0 {
		allowed, err := h.limiter.Allow(r.Context(), "challenge-call:"+tx.ID.String(), h.retryLimit.Limit, h.retryLimit.Window)
		if err != nil {
			h.logger.Warn("retry limiter unavailable, allowing call", zap.Error(err))
		} else if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(h.retryLimit.Window.Seconds())))
			writeError(w, r, errors.NewRateLimitError("too many challenge calls for this transaction"))
			return
		}
	}

	if err := h.pipeline.RetryChallengeCall(r.Context(), tx.ID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ChallengeCallResponse{TransactionID: tx.ID.String(), Status: "calling"})
}

// ownedTransaction loads the path transaction and hides other tenants'
// transactions behind a 404
func (h *TransactionHandler) ownedTransaction(r *http.Request) (*transaction.Transaction, *verification.Session, error) {
	tenant, ok := TenantFromContext(r.Context())
	if !ok {
		return nil, nil, errors.NewUnauthorizedError("authentication required")
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return nil, nil, errors.NewValidationError("INVALID_TRANSACTION_ID", "transaction ID must be a UUID")
	}

	tx, sess, err := h.pipeline.VerificationStatus(r.Context(), id)
	if err != nil {
		return nil, nil, err
	}
	if tx.TenantID != tenant.ID {
		return nil, nil, errors.NewNotFoundError("transaction")
	}
	return tx, sess, nil
}

// newValidator reports fields by their JSON names
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if stderrors.As(err, &maxErr) {
			return errors.NewValidationError("BODY_TOO_LARGE", "request body too large")
		}
		if _, ok := err.(*json.SyntaxError); ok {
			return err
		}
		if _, ok := err.(*json.UnmarshalTypeError); ok {
			return err
		}
		return errors.NewValidationError("INVALID_BODY", "request body could not be decoded").WithCause(err)
	}
	return nil
}
