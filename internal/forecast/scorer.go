package forecast

import (
	"context"
	"time"

	"github.com/findmyspot/findmyspot/internal/model"
)

// Scorer is the live model capability: an availability in [0,1] for a zone
// at a target time, or an error when the model cannot answer.
type Scorer interface {
	Score(ctx context.Context, zone model.ZoneID, at time.Time) (float64, error)
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(ctx context.Context, zone model.ZoneID, at time.Time) (float64, error)

// Score calls f.
func (f ScorerFunc) Score(ctx context.Context, zone model.ZoneID, at time.Time) (float64, error) {
	return f(ctx, zone, at)
}
