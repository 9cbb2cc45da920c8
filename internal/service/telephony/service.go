package telephony

import (
	"context"
	stderrors "errors"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/davidleathers/fraud-stepup-backend/internal/domain/audit"
	"github.com/davidleathers/fraud-stepup-backend/internal/domain/clock"
	"github.com/davidleathers/fraud-stepup-backend/internal/domain/errors"
	"github.com/davidleathers/fraud-stepup-backend/internal/domain/values"
)

// Callback paths served by the REST layer
const (
	VoicePath  = "/v1/voice/twiml"
	InputPath  = "/v1/voice/input"
	StatusPath = "/v1/voice/status"
)

// DefaultCallTimeout bounds a single provider call placement
const DefaultCallTimeout = 10 * time.Second

// Config holds the outbound call settings
type Config struct {
	FromNumber string
	// PublicBaseURL is where the provider reaches our callbacks
	PublicBaseURL string
	CallTimeout   time.Duration
}

// Service places challenge calls and tracks their progress
type Service struct {
	provider Provider
	recorder AuditRecorder
	metrics  MetricsCollector
	clock    clock.Clock
	logger   *zap.Logger

	from    string
	baseURL string
	timeout time.Duration
}

// NewService creates a telephony service. metrics and c may be nil.
func NewService(provider Provider, recorder AuditRecorder, metrics MetricsCollector, c clock.Clock, logger *zap.Logger, cfg Config) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}

	return &Service{
		provider: provider,
		recorder: recorder,
		metrics:  metrics,
		clock:    clock.OrReal(c),
		logger:   logger,
		from:     cfg.FromNumber,
		baseURL:  strings.TrimRight(cfg.PublicBaseURL, "/"),
		timeout:  cfg.CallTimeout,
	}
}

// StartChallenge dials the customer for a step-up challenge. Provider
// failures are audited and returned as external errors.
func (s *Service) StartChallenge(ctx context.Context, req ChallengeCallRequest) (*CallResponse, error) {
	if err := validateChallengeRequest(req); err != nil {
		return nil, err
	}

	log := s.logger.With(
		zap.String("transaction_id", req.TransactionID),
		zap.String("to", req.Phone.Masked()))

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	callSID, err := s.provider.InitiateCall(callCtx, s.from, req.Phone.String(),
		s.VoiceURL(req.TransactionID, req.Language), s.StatusURL(req.TransactionID))
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordCall(ctx, false)
		}
		cause := scrubbed(err)
		payload := map[string]interface{}{
			"phone_last4": lastFour(req.Phone.String()),
			"provider":    s.provider.GetProviderName(),
			"error":       cause.Error(),
		}
		var providerErr ProviderError
		if stderrors.As(err, &providerErr) {
			payload["provider_status"] = providerErr.ProviderStatus()
			payload["provider_code"] = providerErr.ProviderCode()
		}
		s.recorder.Record(ctx, audit.EventCallFailed, req.TransactionID, payload)
		log.Error("failed to place challenge call", zap.Error(cause))

		return nil, errors.NewExternalError("telephony provider", "failed to initiate call").
			WithCause(cause).
			WithDetails(map[string]interface{}{"transaction_id": req.TransactionID})
	}

	if s.metrics != nil {
		s.metrics.RecordCall(ctx, true)
	}
	s.recorder.Record(ctx, audit.EventCallInitiated, req.TransactionID, map[string]interface{}{
		"call_sid":    callSID,
		"phone_last4": lastFour(req.Phone.String()),
		"language":    req.Language,
		"provider":    s.provider.GetProviderName(),
	})
	log.Info("challenge call placed", zap.String("call_sid", callSID))

	return &CallResponse{
		CallSID:   callSID,
		Provider:  s.provider.GetProviderName(),
		StartedAt: s.clock.Now(),
	}, nil
}

// HandleStatus audits a provider progress callback
func (s *Service) HandleStatus(ctx context.Context, update StatusUpdate) error {
	if update.TransactionID == "" {
		return errors.NewValidationError("MISSING_TRANSACTION_ID", "transaction ID is required")
	}

	status := MapProviderStatus(update.Status)
	payload := map[string]interface{}{
		"call_sid": update.CallSID,
		"status":   string(status),
	}
	if update.Duration != nil {
		payload["duration_seconds"] = *update.Duration
	}
	s.recorder.Record(ctx, audit.EventCallStatusUpdate, update.TransactionID, payload)

	s.logger.Debug("call status update",
		zap.String("transaction_id", update.TransactionID),
		zap.String("call_sid", update.CallSID),
		zap.String("status", string(status)))
	return nil
}

// VoiceURL is the first TwiML document for the call
func (s *Service) VoiceURL(transactionID, language string) string {
	return s.callbackURL(VoicePath, transactionID, language)
}

// InputURL is the Gather action receiving recognized speech
func (s *Service) InputURL(transactionID, language string) string {
	return s.callbackURL(InputPath, transactionID, language)
}

// StatusURL receives call progress events
func (s *Service) StatusURL(transactionID string) string {
	return s.callbackURL(StatusPath, transactionID, "")
}

func (s *Service) callbackURL(path, transactionID, language string) string {
	q := url.Values{}
	q.Set("transactionId", transactionID)
	if language != "" {
		q.Set("lang", language)
	}
	return s.baseURL + path + "?" + q.Encode()
}

// MapProviderStatus normalizes a provider status string
func MapProviderStatus(providerStatus string) CallStatus {
	switch strings.ToLower(strings.TrimSpace(providerStatus)) {
	case "queued":
		return CallStatusQueued
	case "initiated":
		return CallStatusInitiated
	case "ringing":
		return CallStatusRinging
	case "answered":
		return CallStatusAnswered
	case "in-progress":
		return CallStatusInProgress
	case "completed":
		return CallStatusCompleted
	case "busy":
		return CallStatusBusy
	case "no-answer":
		return CallStatusNoAnswer
	case "failed":
		return CallStatusFailed
	case "canceled":
		return CallStatusCanceled
	default:
		return CallStatusUnknown
	}
}

func validateChallengeRequest(req ChallengeCallRequest) error {
	if req.TransactionID == "" {
		return errors.NewValidationError("MISSING_TRANSACTION_ID", "transaction ID is required")
	}
	if req.Phone.IsEmpty() {
		return errors.NewValidationError("INVALID_TO_NUMBER", "customer phone number is required")
	}
	return nil
}

func lastFour(phone string) string {
	return strings.TrimPrefix(values.MaskPhone(phone), "****")
}

// scrubbedError masks phone numbers in a provider error's text while
// keeping the original reachable through errors.As
type scrubbedError struct {
	err error
	msg string
}

func scrubbed(err error) error {
	return &scrubbedError{err: err, msg: values.ScrubPhones(err.Error())}
}

func (e *scrubbedError) Error() string { return e.msg }

func (e *scrubbedError) Unwrap() error { return e.err }
