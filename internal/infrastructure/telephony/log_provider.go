package telephony

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davidleathers/fraud-stepup-backend/internal/domain/values"
)

// LogProvider records calls instead of placing them. Used in development.
type LogProvider struct {
	logger *zap.Logger
}

// NewLogProvider creates a provider that only logs
func NewLogProvider(logger *zap.Logger) *LogProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogProvider{logger: logger}
}

// GetProviderName returns the provider name
func (p *LogProvider) GetProviderName() string {
	return "log"
}

// InitiateCall logs the call and returns a synthetic SID
func (p *LogProvider) InitiateCall(ctx context.Context, from, to, voiceURL, statusURL string) (string, error) {
	sid := "LOG" + uuid.NewString()
	p.logger.Info("challenge call (not dialed)",
		zap.String("call_sid", sid),
		zap.String("from", from),
		zap.String("to", values.MaskPhone(to)),
		zap.String("voice_url", voiceURL),
		zap.String("status_url", statusURL))
	return sid, nil
}
