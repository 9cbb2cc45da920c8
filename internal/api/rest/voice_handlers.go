package rest

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/davidleathers/fraud-stepup-backend/internal/domain/errors"
	twilio "github.com/davidleathers/fraud-stepup-backend/internal/infrastructure/telephony"
	"github.com/davidleathers/fraud-stepup-backend/internal/service/challenge"
	"github.com/davidleathers/fraud-stepup-backend/internal/service/telephony"
)

// ChallengeConversation drives the spoken challenge
type ChallengeConversation interface {
	Greeting(transactionID, lang string) challenge.Prompt
	HandleUtterance(ctx context.Context, transactionID, lang, utterance string) challenge.Prompt
}

// CallService handles provider progress callbacks and builds callback URLs
type CallService interface {
	HandleStatus(ctx context.Context, update telephony.StatusUpdate) error
	InputURL(transactionID, language string) string
}

// SignatureValidator authenticates provider webhooks
type SignatureValidator interface {
	Validate(fullURL string, params url.Values, signature string) bool
}

// VoiceHandler serves the telephony provider's webhooks
type VoiceHandler struct {
	conversation  ChallengeConversation
	calls         CallService
	validator     SignatureValidator
	publicBaseURL string
	logger        *zap.Logger
}

// NewVoiceHandler creates the handler. A nil validator accepts unsigned
// callbacks.
func NewVoiceHandler(conversation ChallengeConversation, calls CallService, validator SignatureValidator, publicBaseURL string, logger *zap.Logger) *VoiceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VoiceHandler{
		conversation:  conversation,
		calls:         calls,
		validator:     validator,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logger,
	}
}

// TwiML handles POST /v1/voice/twiml, the first document of a challenge call
func (h *VoiceHandler) TwiML(w http.ResponseWriter, r *http.Request) {
	txID, lang, ok := h.callbackParams(w, r)
	if !ok {
		return
	}
	h.writePrompt(w, r, h.conversation.Greeting(txID, lang), txID, lang)
}

// Input handles POST /v1/voice/input with the recognized speech
func (h *VoiceHandler) Input(w http.ResponseWriter, r *http.Request) {
	txID, lang, ok := h.callbackParams(w, r)
	if !ok {
		return
	}

	speech := r.PostFormValue("SpeechResult")
	h.logger.Debug("speech received",
		zap.String("transaction_id", txID),
		zap.String("call_sid", r.PostFormValue("CallSid")),
		zap.String("confidence", r.PostFormValue("Confidence")))

	prompt := h.conversation.HandleUtterance(r.Context(), txID, lang, speech)
	h.writePrompt(w, r, prompt, txID, lang)
}

// Status handles POST /v1/voice/status progress events
func (h *VoiceHandler) Status(w http.ResponseWriter, r *http.Request) {
	txID, _, ok := h.callbackParams(w, r)
	if !ok {
		return
	}

	update := telephony.StatusUpdate{
		TransactionID: txID,
		CallSID:       r.PostFormValue("CallSid"),
		Status:        r.PostFormValue("CallStatus"),
	}
	if raw := r.PostFormValue("CallDuration"); raw != "" {
		if d, err := strconv.Atoi(raw); err == nil {
			update.Duration = &d
		}
	}

	if err := h.calls.HandleStatus(r.Context(), update); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// callbackParams parses the form, checks the signature and extracts the
// transaction id and language
func (h *VoiceHandler) callbackParams(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := r.ParseForm(); err != nil {
		writeError(w, r, errors.NewValidationError("INVALID_FORM", "callback form could not be parsed"))
		return "", "", false
	}

	if h.validator != nil {
		fullURL := h.publicBaseURL + r.URL.RequestURI()
		if !h.validator.Validate(fullURL, r.PostForm, r.Header.Get(twilio.SignatureHeader)) {
			h.logger.Warn("rejected unsigned voice callback", zap.String("path", r.URL.Path))
			writeError(w, r, errors.NewUnauthorizedError("invalid callback signature"))
			return "", "", false
		}
	}

	txID := r.URL.Query().Get("transactionId")
	if txID == "" {
		writeError(w, r, errors.NewValidationError("MISSING_TRANSACTION_ID", "transactionId is required"))
		return "", "", false
	}
	return txID, r.URL.Query().Get("lang"), true
}

func (h *VoiceHandler) writePrompt(w http.ResponseWriter, r *http.Request, p challenge.Prompt, txID, lang string) {
	var action string
	if p.Gather {
		action = h.calls.InputURL(txID, lang)
	}

	doc, err := telephony.RenderPrompt(p, action)
	if err != nil {
		h.logger.Error("failed to render prompt", zap.String("transaction_id", txID), zap.Error(err))
		writeError(w, r, errors.NewInternalError("failed to render voice response").WithCause(err))
		return
	}

	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}
