// Package pipeline turns raw source candidates into confirmed, deduplicated events.
package pipeline

import (
	"context"
	"strings"

	"listingwatch/analyzer"
	"listingwatch/deduplication"
	"listingwatch/metrics"
	"listingwatch/types"

	"go.uber.org/zap"
)

// Ledger is the subset of *deduplication.Ledger the pipeline needs
type Ledger interface {
	IsSeen(hash string) bool
	MarkSeen(ctx context.Context, hash string)
}

// Pipeline applies the filter chain to one source's candidates
type Pipeline struct {
	analyzer   *analyzer.Analyzer
	ledger     Ledger
	pageSize   int
	topicGates map[types.Source][]string
	logger     *zap.Logger
}

// Option customizes a Pipeline
type Option func(*Pipeline)

// WithTopicGate requires candidates from source to mention one of terms
func WithTopicGate(source types.Source, terms []string) Option {
	upper := make([]string, 0, len(terms))
	for _, t := range terms {
		upper = append(upper, strings.ToUpper(t))
	}
	return func(p *Pipeline) {
		p.topicGates[source] = upper
	}
}

func New(a *analyzer.Analyzer, ledger Ledger, pageSize int, logger *zap.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		analyzer:   a,
		ledger:     ledger,
		pageSize:   pageSize,
		topicGates: make(map[types.Source][]string),
		logger:     logger.Named("pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process filters candidates in order and returns the events that passed.
// Each emitted event's hash is persisted before the event is returned, so a
// second call with the same candidates yields nothing.
func (p *Pipeline) Process(ctx context.Context, source types.Source, candidates []types.Candidate) []types.Event {
	if p.pageSize > 0 && len(candidates) > p.pageSize {
		dropped := len(candidates) - p.pageSize
		metrics.CandidatesTotal.WithLabelValues(string(source), metrics.OutcomeOverflowed).Add(float64(dropped))
		p.logger.Debug("Capping candidates", zap.String("source", string(source)), zap.Int("dropped", dropped))
		candidates = candidates[:p.pageSize]
	}

	var events []types.Event
	for _, c := range candidates {
		event, outcome := p.processOne(ctx, source, c)
		metrics.CandidatesTotal.WithLabelValues(string(source), outcome).Inc()
		if outcome != metrics.OutcomeEmitted {
			p.logger.Debug("Discarded candidate",
				zap.String("source", string(source)),
				zap.String("reason", outcome),
				zap.String("title", c.Title))
			continue
		}
		p.logger.Info("New critical event",
			zap.String("source", string(source)),
			zap.String("event_type", string(event.EventType)),
			zap.String("title", event.Title))
		events = append(events, event)
	}
	return events
}

func (p *Pipeline) processOne(ctx context.Context, source types.Source, c types.Candidate) (types.Event, string) {
	if !p.analyzer.MatchesEntity(c.Title) {
		return types.Event{}, metrics.OutcomeNotEntity
	}
	if terms, ok := p.topicGates[source]; ok && !containsAny(c.Title, terms) {
		return types.Event{}, metrics.OutcomeOffTopic
	}
	if p.analyzer.ContainsExcludeKeyword(c.Title) {
		return types.Event{}, metrics.OutcomeNoise
	}

	hash := deduplication.Hash(c)
	if p.ledger.IsSeen(hash) {
		return types.Event{}, metrics.OutcomeDuplicate
	}

	eventType, ok := p.analyzer.IdentifyEventType(c.Title, "")
	if !ok {
		return types.Event{}, metrics.OutcomeUnmatched
	}

	p.ledger.MarkSeen(ctx, hash)
	supplementary := p.analyzer.ExtractSupplementaryInfo(c.Title)
	return types.NewEvent(source, c, eventType, types.ImportanceHigh, supplementary), metrics.OutcomeEmitted
}

func containsAny(text string, upperTerms []string) bool {
	upper := strings.ToUpper(text)
	for _, t := range upperTerms {
		if strings.Contains(upper, t) {
			return true
		}
	}
	return false
}
