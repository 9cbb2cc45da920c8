package fraud

import (
	"context"
	"time"
)

// ModelClient returns a fraud probability in [0,1] for a feature vector
type ModelClient interface {
	Predict(ctx context.Context, features FeatureVector) (float64, error)
}

// ScoreCache keeps model scores by transaction id
type ScoreCache interface {
	// GetScore reports found=false with a nil error on a miss
	GetScore(ctx context.Context, transactionID string) (score int, found bool, err error)
	SetScore(ctx context.Context, transactionID string, score int, ttl time.Duration) error
}

// ScoreRecorder receives scoring metrics
type ScoreRecorder interface {
	RecordScore(ctx context.Context, score int, strategy string, latency time.Duration)
}
