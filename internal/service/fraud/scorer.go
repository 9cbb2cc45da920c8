package fraud

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/davidleathers/fraud-stepup-backend/internal/domain/transaction"
)

// ScorerConfig tunes the model path
type ScorerConfig struct {
	ModelTimeout time.Duration
	CacheTTL     time.Duration
}

// Scorer produces risk scores from the model, the score cache, or the rule
// fallback. It never fails: every problem on the model path ends in the rules.
type Scorer struct {
	model    ModelClient
	cache    ScoreCache
	recorder ScoreRecorder
	logger   *zap.Logger

	modelTimeout time.Duration
	cacheTTL     time.Duration
}

// NewScorer creates a scorer. model, cache and recorder may be nil.
func NewScorer(model ModelClient, cache ScoreCache, recorder ScoreRecorder, logger *zap.Logger, cfg ScorerConfig) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ModelTimeout <= 0 {
		cfg.ModelTimeout = DefaultModelTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultScoreCacheTTL
	}

	return &Scorer{
		model:        model,
		cache:        cache,
		recorder:     recorder,
		logger:       logger,
		modelTimeout: cfg.ModelTimeout,
		cacheTTL:     cfg.CacheTTL,
	}
}

// Score returns the risk score for tx
func (s *Scorer) Score(ctx context.Context, tx *transaction.Transaction, features FeatureVector) ScoreResult {
	start := time.Now()
	result := s.score(ctx, tx, features)

	if s.recorder != nil {
		s.recorder.RecordScore(ctx, result.Score, result.Strategy.String(), time.Since(start))
	}
	return result
}

func (s *Scorer) score(ctx context.Context, tx *transaction.Transaction, features FeatureVector) ScoreResult {
	txID := tx.ID.String()
	log := s.logger.With(zap.String("transaction_id", txID))

	if s.cache != nil {
		cached, found, err := s.cache.GetScore(ctx, txID)
		switch {
		case err != nil:
			log.Warn("score cache read failed", zap.Error(err))
		case found:
			return ScoreResult{Score: clamp(cached), Strategy: StrategyCached}
		}
	}

	if s.model != nil {
		if score, ok := s.predict(ctx, features, log); ok {
			if s.cache != nil {
				if err := s.cache.SetScore(ctx, txID, score, s.cacheTTL); err != nil {
					log.Warn("score cache write failed", zap.Error(err))
				}
			}
			return ScoreResult{Score: score, Strategy: StrategyModel}
		}
	}

	score := RuleScore(tx.Amount.Amount(), features.HourOfDay, features.MerchantCategory)
	log.Debug("using rule-based score", zap.Int("score", score))
	return ScoreResult{Score: score, Strategy: StrategyRules}
}

func (s *Scorer) predict(ctx context.Context, features FeatureVector, log *zap.Logger) (int, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.modelTimeout)
	defer cancel()

	p, err := s.model.Predict(ctx, features)
	if err != nil {
		log.Warn("model scoring failed, falling back to rules", zap.Error(err))
		return 0, false
	}
	if math.IsNaN(p) || p < 0 || p > 1 {
		log.Warn("model returned invalid probability, falling back to rules",
			zap.Float64("probability", p))
		return 0, false
	}

	return int(math.Round(p * 100)), true
}
