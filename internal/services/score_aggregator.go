package services

import (
	"sort"

	"gmscanner/internal/backend"
	"gmscanner/internal/core"
)

// ScoreAggregator produces the ranked scoreboard. When the strategy carries
// orchestrator scores those win; otherwise the local computation is used.
type ScoreAggregator struct {
	strategy backend.Strategy
}

func NewScoreAggregator(strategy backend.Strategy) *ScoreAggregator {
	return &ScoreAggregator{strategy: strategy}
}

// TeamScores returns every team ordered by score, highest first. Ties are
// broken by team id.
func (a *ScoreAggregator) TeamScores() []core.TeamScore {
	if src, ok := a.strategy.(backend.AuthoritativeSource); ok {
		if scores := src.AuthoritativeScores(); len(scores) > 0 {
			return rank(scores)
		}
	}
	return rank(a.strategy.TeamScores())
}

func rank(scores []core.TeamScore) []core.TeamScore {
	out := append([]core.TeamScore(nil), scores...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].TeamID < out[j].TeamID
	})
	return out
}
