// Package sources fetches raw announcement candidates from the disclosure portals.
package sources

import (
	"context"
	"time"

	"listingwatch/types"

	"go.uber.org/zap"
)

// Source is one disclosure portal. Fetch returns raw candidates; filtering
// happens downstream in the pipeline.
type Source interface {
	Name() types.Source
	Fetch(ctx context.Context) ([]types.Candidate, error)
}

// Strategy is one way of reading a portal. Strategies are tried in order and
// the first non-empty result wins.
type Strategy struct {
	Name  string
	Fetch func(ctx context.Context) ([]types.Candidate, error)
}

// runStrategies returns the first non-empty strategy result. Errors and empty
// results fall through to the next strategy; exhausting all of them is not an error.
func runStrategies(ctx context.Context, logger *zap.Logger, strategies []Strategy) []types.Candidate {
	for _, s := range strategies {
		if ctx.Err() != nil {
			return nil
		}
		logger.Info("Trying strategy", zap.String("strategy", s.Name))

		items, err := s.Fetch(ctx)
		if err != nil {
			logger.Warn("Strategy failed", zap.String("strategy", s.Name), zap.Error(err))
			continue
		}
		if len(items) == 0 {
			logger.Debug("Strategy returned nothing", zap.String("strategy", s.Name))
			continue
		}
		logger.Info("Strategy succeeded", zap.String("strategy", s.Name), zap.Int("candidates", len(items)))
		return items
	}
	return nil
}

// capItems truncates items to at most limit entries
func capItems(items []types.Candidate, limit int) []types.Candidate {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

func today(now func() time.Time) string {
	return now().Format("2006-01-02")
}
