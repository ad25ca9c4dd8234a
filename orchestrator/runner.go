// Package orchestrator runs one monitoring pass: load the ledger, read every
// source through the pipeline, then deliver the new events to every channel.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"listingwatch/analyzer"
	"listingwatch/config"
	"listingwatch/deduplication"
	"listingwatch/metrics"
	"listingwatch/notifier"
	"listingwatch/pipeline"
	"listingwatch/sources"
	"listingwatch/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrRunInProgress is returned when a run is triggered while another is active
var ErrRunInProgress = errors.New("a run is already in progress")

// Deps are the factories the runner builds its collaborators from
type Deps struct {
	OpenStore func(ctx context.Context, cfg config.Config) (deduplication.Store, error)
	Sources   func(cfg config.Config, logger *zap.Logger) []sources.Source
	Notifiers func(ctx context.Context, cfg config.Config, logger *zap.Logger) []notifier.Notifier
}

// RunOptions tune a single run
type RunOptions struct {
	// Test sends one synthetic event and skips sources and the ledger.
	Test bool
}

// Runner serializes runs; cron and the HTTP trigger share one instance
type Runner struct {
	cfg      config.Config
	deps     Deps
	analyzer *analyzer.Analyzer
	status   *Status
	logger   *zap.Logger
	running  atomic.Bool
	now      func() time.Time
}

func NewRunner(cfg config.Config, deps Deps, logger *zap.Logger) *Runner {
	def := DefaultDeps()
	if deps.OpenStore == nil {
		deps.OpenStore = def.OpenStore
	}
	if deps.Sources == nil {
		deps.Sources = def.Sources
	}
	if deps.Notifiers == nil {
		deps.Notifiers = def.Notifiers
	}
	return &Runner{
		cfg:      cfg,
		deps:     deps,
		analyzer: analyzer.New(cfg.Taxonomy),
		status:   NewStatus(),
		logger:   logger.Named("runner"),
		now:      time.Now,
	}
}

// Status exposes the run tracker
func (r *Runner) Status() *Status { return r.status }

// Analyzer exposes the classifier built from the configured taxonomy
func (r *Runner) Analyzer() *analyzer.Analyzer { return r.analyzer }

// Run executes one pass and blocks until it finishes
func (r *Runner) Run(ctx context.Context, opts RunOptions) (RunSummary, error) {
	if !r.running.CompareAndSwap(false, true) {
		return RunSummary{}, ErrRunInProgress
	}
	defer r.running.Store(false)
	return r.run(ctx, uuid.NewString(), opts)
}

// RunAsync starts a pass in the background and returns its run ID
func (r *Runner) RunAsync(opts RunOptions) (string, error) {
	if !r.running.CompareAndSwap(false, true) {
		return "", ErrRunInProgress
	}
	runID := uuid.NewString()
	go func() {
		defer r.running.Store(false)
		if _, err := r.run(context.Background(), runID, opts); err != nil {
			r.logger.Error("Background run failed", zap.String("run_id", runID), zap.Error(err))
		}
	}()
	return runID, nil
}

// Running reports whether a run is in progress
func (r *Runner) Running() bool { return r.running.Load() }

func (r *Runner) run(ctx context.Context, runID string, opts RunOptions) (summary RunSummary, err error) {
	logger := r.logger.With(zap.String("run_id", runID))
	summary = RunSummary{
		RunID:      runID,
		Test:       opts.Test || r.cfg.TestMode,
		StartedAt:  r.now(),
		Candidates: make(map[string]int),
	}
	r.status.StartRun(runID)
	logger.Info("Run started", zap.Bool("test", summary.Test))

	defer func() {
		summary.FinishedAt = r.now()
		status := metrics.StatusSuccess
		if err != nil {
			status = metrics.StatusError
			summary.Error = err.Error()
			r.status.SetError(err)
		} else {
			r.status.SetState(StateDone)
		}
		metrics.RunDuration.WithLabelValues(status).Observe(summary.FinishedAt.Sub(summary.StartedAt).Seconds())
		r.status.FinishRun(summary)
		logger.Info("Run finished",
			zap.Int("events", len(summary.Events)),
			zap.Int("delivered", summary.Delivered),
			zap.Int("failed", summary.Failed),
			zap.Error(err))
	}()

	var events []types.Event
	if summary.Test {
		r.status.AddLog("Test mode: sending synthetic event")
		events = []types.Event{types.NewTestEvent(r.now())}
	} else {
		events, err = r.collect(ctx, logger, &summary)
		if err != nil {
			return summary, err
		}
	}
	summary.Events = events

	r.status.SetState(StateNotify)
	if len(events) == 0 {
		logger.Info("No new critical events found")
		return summary, nil
	}

	// Delivery outlives cancellation; channel calls carry their own timeouts
	deliverCtx := context.WithoutCancel(ctx)
	notifiers := r.deps.Notifiers(deliverCtx, r.cfg, logger)
	defer notifier.CloseAll(notifiers, logger)
	for _, n := range notifiers {
		summary.Channels = append(summary.Channels, n.Name())
	}
	if len(notifiers) == 0 {
		logger.Warn("No notification channel configured", zap.Int("events", len(events)))
		r.status.AddLog("No notification channel configured; %d events not delivered", len(events))
	}

	r.deliver(deliverCtx, logger, notifiers, events, &summary)
	return summary, nil
}

// collect loads the ledger and runs every source through the pipeline
func (r *Runner) collect(ctx context.Context, logger *zap.Logger, summary *RunSummary) ([]types.Event, error) {
	r.status.SetState(StateLoadLedger)
	store, err := r.deps.OpenStore(ctx, r.cfg)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer closeStore(store, logger)

	ledger := deduplication.LoadLedger(ctx, store, logger)
	r.status.SetLedgerSize(ledger.Len())
	r.status.AddLog("Loaded %d seen hashes from %s", ledger.Len(), store.Name())

	p := pipeline.New(r.analyzer, ledger, r.cfg.HTTP.PageSize, logger,
		pipeline.WithTopicGate(types.SourceCNINFO, r.cfg.Taxonomy.HShareTopics))

	// Marks must persist even if ctx is cancelled mid-run
	markCtx := context.WithoutCancel(ctx)

	var merged []types.Event
	for _, src := range r.deps.Sources(r.cfg, logger) {
		name := string(src.Name())
		if err := ctx.Err(); err != nil {
			summary.SourceErrors = setError(summary.SourceErrors, name, err)
			logger.Warn("Run cancelled, skipping source", zap.String("source", name), zap.Error(err))
			r.status.AddLog("%s skipped: %v", name, err)
			continue
		}
		r.status.SetSource(name)

		candidates, err := fetchSafely(ctx, src)
		if err != nil {
			metrics.SourceFetchTotal.WithLabelValues(name, metrics.StatusError).Inc()
			summary.SourceErrors = setError(summary.SourceErrors, name, err)
			logger.Error("Source failed", zap.String("source", name), zap.Error(err))
			r.status.AddLog("%s failed: %v", name, err)
			continue
		}
		if len(candidates) == 0 {
			metrics.SourceFetchTotal.WithLabelValues(name, metrics.StatusEmpty).Inc()
		} else {
			metrics.SourceFetchTotal.WithLabelValues(name, metrics.StatusSuccess).Inc()
		}
		summary.Candidates[name] = len(candidates)

		events := p.Process(markCtx, src.Name(), candidates)
		logger.Info("Source processed", zap.String("source", name),
			zap.Int("candidates", len(candidates)), zap.Int("events", len(events)))
		r.status.AddLog("%s: %d new critical events", name, len(events))
		merged = append(merged, events...)
	}

	r.status.SetState(StateMerge)
	r.status.SetLedgerSize(ledger.Len())
	return merged, nil
}

// deliver sends each event to each channel in order, one call at a time
func (r *Runner) deliver(ctx context.Context, logger *zap.Logger, notifiers []notifier.Notifier, events []types.Event, summary *RunSummary) {
	for _, event := range events {
		for _, n := range notifiers {
			if err := n.Notify(ctx, event); err != nil {
				summary.Failed++
				metrics.NotificationsTotal.WithLabelValues(n.Name(), metrics.StatusError).Inc()
				logger.Error("Notification failed",
					zap.String("channel", n.Name()),
					zap.String("event_id", event.ID),
					zap.Error(err))
				r.status.AddLog("%s delivery failed: %v", n.Name(), err)
				continue
			}
			summary.Delivered++
			metrics.NotificationsTotal.WithLabelValues(n.Name(), metrics.StatusSuccess).Inc()
		}
	}
}

// fetchSafely turns a panicking source into an error
func fetchSafely(ctx context.Context, src sources.Source) (candidates []types.Candidate, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			candidates = nil
			err = fmt.Errorf("source panicked: %v", rec)
		}
	}()
	return src.Fetch(ctx)
}

// closeStore releases stores that hold connections
func closeStore(store deduplication.Store, logger *zap.Logger) {
	if err := deduplication.CloseStore(store); err != nil {
		logger.Warn("Failed to close ledger store", zap.String("backend", store.Name()), zap.Error(err))
	}
}

func setError(m map[string]string, key string, err error) map[string]string {
	if m == nil {
		m = make(map[string]string)
	}
	m[key] = err.Error()
	return m
}
