package rest

import (
	"time"

	"github.com/davidleathers/fraud-stepup-backend/internal/domain/transaction"
	"github.com/davidleathers/fraud-stepup-backend/internal/domain/verification"
	"github.com/davidleathers/fraud-stepup-backend/internal/service/pipeline"
)

// SubmitTransactionResponse is returned by POST /v1/transactions
type SubmitTransactionResponse struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	FraudScore    int    `json:"fraudScore"`
	// VerificationExpiresAt is set when a step-up challenge was started
	VerificationExpiresAt *time.Time `json:"verificationExpiresAt,omitempty"`
}

func newSubmitResponse(res *pipeline.SubmitResult) SubmitTransactionResponse {
	return SubmitTransactionResponse{
		TransactionID:         res.TransactionID.String(),
		Status:                res.Status.String(),
		FraudScore:            res.RiskScore,
		VerificationExpiresAt: res.ExpiresAt,
	}
}

// VerificationStatusResponse reports a transaction's challenge progress.
// The expected code is never part of it.
type VerificationStatusResponse struct {
	TransactionID     string      `json:"transactionId"`
	TransactionStatus string      `json:"transactionStatus"`
	FraudScore        *int        `json:"fraudScore,omitempty"`
	Session           *SessionDTO `json:"session,omitempty"`
}

// SessionDTO is the public view of a verification session
type SessionDTO struct {
	Status    string    `json:"status"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func newVerificationStatusResponse(tx *transaction.Transaction, sess *verification.Session) VerificationStatusResponse {
	resp := VerificationStatusResponse{
		TransactionID:     tx.ID.String(),
		TransactionStatus: tx.Status.String(),
		FraudScore:        tx.RiskScore,
	}
	if sess != nil {
		resp.Session = &SessionDTO{
			Status:    string(sess.Status),
			Attempts:  sess.Attempts,
			CreatedAt: sess.CreatedAt,
			ExpiresAt: sess.ExpiresAt,
		}
	}
	return resp
}

// ChallengeCallResponse is returned when a retry call was placed
type ChallengeCallResponse struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
}
