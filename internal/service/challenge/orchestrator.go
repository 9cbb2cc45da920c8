package challenge

import (
	"context"
	stderrors "errors"

	"go.uber.org/zap"

	"github.com/davidleathers/fraud-stepup-backend/internal/domain/verification"
)

// Verifier applies a parsed code to a transaction's session
type Verifier interface {
	Attempt(ctx context.Context, transactionID, code string) (verification.AttemptResult, error)
}

// OutcomeNotifier is told when a challenge reaches a terminal state
type OutcomeNotifier interface {
	ResolveVerification(ctx context.Context, transactionID string, status verification.Status) error
}

// Orchestrator turns caller utterances into session attempts and chooses the
// next prompt
type Orchestrator struct {
	verifier Verifier
	notifier OutcomeNotifier
	logger   *zap.Logger
}

// NewOrchestrator creates an orchestrator. notifier may be nil.
func NewOrchestrator(verifier Verifier, notifier OutcomeNotifier, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{verifier: verifier, notifier: notifier, logger: logger}
}

// Greeting returns the opening prompt for a transaction's challenge call
func (o *Orchestrator) Greeting(transactionID, lang string) Prompt {
	o.logger.Debug("challenge greeting", zap.String("transaction_id", transactionID))
	return GreetingPrompt(ParseLanguage(lang))
}

// HandleUtterance processes one recognized utterance. Input without two
// digits re-prompts and leaves the session untouched.
func (o *Orchestrator) HandleUtterance(ctx context.Context, transactionID, lang, utterance string) Prompt {
	language := ParseLanguage(lang)
	log := o.logger.With(zap.String("transaction_id", transactionID))

	digits := ExtractDigits(utterance)
	if !IsComplete(digits) {
		log.Info("no valid digits in utterance, re-prompting", zap.Int("digits_heard", len(digits)))
		return RepromptPrompt(language)
	}

	result, err := o.verifier.Attempt(ctx, transactionID, digits)
	if err != nil {
		if stderrors.Is(err, verification.ErrSessionNotFound) {
			log.Warn("utterance for unknown or closed session")
		} else {
			log.Error("verification attempt failed", zap.Error(err))
		}
		return FailurePrompt(language)
	}

	switch result.Outcome {
	case verification.OutcomeVerified:
		o.notify(ctx, transactionID, verification.StatusVerified, log)
		return VerifiedPrompt(language)
	case verification.OutcomeBlocked:
		o.notify(ctx, transactionID, verification.StatusBlocked, log)
		return BlockedPrompt(language)
	case verification.OutcomeIncorrect:
		return IncorrectPrompt(language, result.Remaining)
	default:
		log.Error("unknown attempt outcome", zap.String("outcome", string(result.Outcome)))
		return FailurePrompt(language)
	}
}

func (o *Orchestrator) notify(ctx context.Context, transactionID string, status verification.Status, log *zap.Logger) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.ResolveVerification(ctx, transactionID, status); err != nil {
		log.Error("failed to resolve transaction after challenge",
			zap.String("status", string(status)),
			zap.Error(err))
	}
}
