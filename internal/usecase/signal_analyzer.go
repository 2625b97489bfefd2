package usecase

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/Ritenoob/cypherscoping--sub005/internal/domain"
	"go.uber.org/zap"
)

// consistencyRatio is the share of score steps that must move with the
// overall change for the trend to count as consistent.
const consistencyRatio = 0.6

// ScoreChange describes how the composite score moved over one window.
type ScoreChange struct {
	StartScore   float64
	EndScore     float64
	Change       float64
	IsConsistent bool
	Direction    domain.Direction
}

// SignalSummary aggregates the stored signal history of one symbol.
type SignalSummary struct {
	Symbol         string
	Signals        int
	Authorized     int
	AuthorizedPct  float64
	LatestScore    float64
	LatestTier     domain.Tier
	MeanConfidence float64
	TierCounts     map[domain.Tier]int
	BlockReasons   map[string]int
	Change1h       ScoreChange
	Change4h       ScoreChange
	Change24h      ScoreChange
}

type SignalAnalyzerService struct {
	repo   domain.ResultRepository
	logger *zap.Logger
}

func NewSignalAnalyzerService(repo domain.ResultRepository, logger *zap.Logger) *SignalAnalyzerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SignalAnalyzerService{repo: repo, logger: logger}
}

// Analyze summarises the newest limit signals, optionally for one symbol.
func (s *SignalAnalyzerService) Analyze(ctx context.Context, symbol string, limit int) ([]SignalSummary, error) {
	signals, err := s.repo.ListSignals(ctx, symbol, limit)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Signals loaded", zap.Int("count", len(signals)))
	return SummarizeSignals(signals), nil
}

// SummarizeSignals groups signals by symbol. Results are sorted by the
// absolute 1h score change, largest first.
func SummarizeSignals(signals []*domain.CompositeSignal) []SignalSummary {
	history := make(map[string][]*domain.CompositeSignal)
	for _, sig := range signals {
		history[sig.Symbol] = append(history[sig.Symbol], sig)
	}

	results := make([]SignalSummary, 0, len(history))
	for symbol, points := range history {
		sort.SliceStable(points, func(i, j int) bool { return points[i].Timestamp.Before(points[j].Timestamp) })

		sum := SignalSummary{
			Symbol:       symbol,
			Signals:      len(points),
			TierCounts:   make(map[domain.Tier]int),
			BlockReasons: make(map[string]int),
		}
		var confidence float64
		for _, p := range points {
			if p.Authorized {
				sum.Authorized++
			}
			confidence += p.Confidence
			sum.TierCounts[p.SignalStrength]++
			for _, r := range p.BlockReasons {
				sum.BlockReasons[r]++
			}
		}
		last := points[len(points)-1]
		sum.LatestScore = last.CompositeScore
		sum.LatestTier = last.SignalStrength
		sum.MeanConfidence = confidence / float64(len(points))
		sum.AuthorizedPct = float64(sum.Authorized) / float64(len(points)) * 100

		sum.Change1h = scoreChange(points, time.Hour)
		sum.Change4h = scoreChange(points, 4*time.Hour)
		sum.Change24h = scoreChange(points, 24*time.Hour)
		results = append(results, sum)
	}

	sort.Slice(results, func(i, j int) bool {
		ai, aj := math.Abs(results[i].Change1h.Change), math.Abs(results[j].Change1h.Change)
		if ai != aj {
			return ai > aj
		}
		return results[i].Symbol < results[j].Symbol
	})
	return results
}

// scoreChange compares the newest score with the last one at or before
// window ago. A history shorter than the window yields a zero change.
func scoreChange(points []*domain.CompositeSignal, window time.Duration) ScoreChange {
	current := points[len(points)-1]
	target := current.Timestamp.Add(-window)

	start := -1
	for i := len(points) - 1; i >= 0; i-- {
		if !points[i].Timestamp.After(target) {
			start = i
			break
		}
	}
	if start == -1 {
		return ScoreChange{}
	}

	change := current.CompositeScore - points[start].CompositeScore
	var up, down, total int
	for i := start + 1; i < len(points); i++ {
		diff := points[i].CompositeScore - points[i-1].CompositeScore
		switch {
		case diff > 0:
			up++
		case diff < 0:
			down++
		}
		if diff != 0 {
			total++
		}
	}

	res := ScoreChange{
		StartScore: points[start].CompositeScore,
		EndScore:   current.CompositeScore,
		Change:     change,
	}
	switch {
	case change > 0:
		res.Direction = domain.DirectionBullish
		res.IsConsistent = total > 0 && float64(up)/float64(total) > consistencyRatio
	case change < 0:
		res.Direction = domain.DirectionBearish
		res.IsConsistent = total > 0 && float64(down)/float64(total) > consistencyRatio
	}
	return res
}
