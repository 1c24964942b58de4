package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/planify/backend-go/internal/domain"
	"github.com/andresuchdata/planify/backend-go/internal/planning/report"
)

// ErrNoDemand is returned when a run is started without demand rows.
var ErrNoDemand = errors.New("pipeline: no demand rows")

// PlanCache memoizes plan results by input fingerprint.
type PlanCache interface {
	Get(ctx context.Context, fingerprint string) (*domain.PlanResult, bool, error)
	Set(ctx context.Context, fingerprint string, res *domain.PlanResult) error
}

// RunRepository records plan run tracking rows.
type RunRepository interface {
	CreateRun(ctx context.Context, run *PlanRun) error
	UpdateRun(ctx context.Context, run *PlanRun) error
}

// NoopCache never hits.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (*domain.PlanResult, bool, error) { return nil, false, nil }
func (NoopCache) Set(context.Context, string, *domain.PlanResult) error         { return nil }

// NoopRunRepository discards run tracking.
type NoopRunRepository struct{}

func (NoopRunRepository) CreateRun(context.Context, *PlanRun) error { return nil }
func (NoopRunRepository) UpdateRun(context.Context, *PlanRun) error { return nil }

// Orchestrator coordinates a plan run: fingerprint, cache lookup, the SKU
// worker pool and the ordered merge.
type Orchestrator struct {
	cfg    Config
	worker *Worker
	cache  PlanCache
	runs   RunRepository
	now    func() time.Time

	mu      sync.Mutex
	metrics RunMetrics
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithCache sets the plan cache.
func WithCache(c PlanCache) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.cache = c
		}
	}
}

// WithRunRepository sets the run tracking repository.
func WithRunRepository(r RunRepository) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.runs = r
		}
	}
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:    cfg,
		worker: NewWorker(cfg),
		cache:  NoopCache{},
		runs:   NoopRunRepository{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Config returns the engine configuration.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// Metrics returns the accumulated counters.
func (o *Orchestrator) Metrics() RunMetrics {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.metrics
}

// Run computes the plan for the inputs, serving it from the cache when the
// fingerprint was seen before.
func (o *Orchestrator) Run(ctx context.Context, in Inputs) (*domain.PlanResult, error) {
	if len(in.Demand) == 0 {
		return nil, ErrNoDemand
	}

	fingerprint := Fingerprint(in, o.cfg)
	logger := log.With().Str("fingerprint", fingerprint[:12]).Logger()

	cached, ok, err := o.cache.Get(ctx, fingerprint)
	if err != nil {
		logger.Warn().Err(err).Msg("plan cache lookup failed")
	}
	if ok {
		logger.Info().Str("run_id", cached.RunID).Msg("plan served from cache")
		now := o.now()
		o.track(ctx, &PlanRun{
			ID:            uuid.NewString(),
			Fingerprint:   fingerprint,
			Status:        StatusCompleted,
			TotalSKUs:     len(cached.SKUs),
			ProcessedSKUs: len(cached.SKUs),
			CacheHit:      true,
			StartedAt:     now,
			CompletedAt:   &now,
		})
		return cached, nil
	}

	start := o.now()
	inputs := SplitBySKU(in)
	run := &PlanRun{
		ID:          uuid.NewString(),
		Fingerprint: fingerprint,
		Status:      StatusProcessing,
		TotalSKUs:   len(inputs),
		StartedAt:   start,
	}
	if err := o.runs.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create plan run: %w", err)
	}

	win := runWindow{
		lastMonth:    lastDemandMonth(in.Demand),
		asOf:         o.cfg.AsOf,
		hasStockFeed: len(in.StockHistory) > 0,
	}
	if win.asOf.IsZero() {
		win.asOf = domain.AddMonths(win.lastMonth, 1)
	}

	logger.Info().Int("skus", len(inputs)).Str("last_month", domain.FormatMonth(win.lastMonth)).
		Str("as_of", domain.FormatMonth(win.asOf)).Msg("plan run started")

	results, err := o.worker.processParallel(ctx, inputs, win)
	if err != nil {
		o.fail(context.WithoutCancel(ctx), run, err)
		return nil, err
	}

	res := merge(results, win, productDescriptions(in))
	res.RunID = run.ID
	res.Fingerprint = fingerprint
	res.GeneratedAt = o.now().UTC()

	if err := o.cache.Set(ctx, fingerprint, res); err != nil {
		logger.Warn().Err(err).Msg("plan cache store failed")
	}

	fallbacks := 0
	for _, m := range res.Metrics {
		fallbacks += m.FallbackPoints
	}
	completed := o.now()
	run.Status = StatusCompleted
	run.ProcessedSKUs = len(results)
	run.FallbackPoints = fallbacks
	run.CompletedAt = &completed
	o.track(ctx, run)

	o.mu.Lock()
	o.metrics.SKUsProcessed += int64(len(results))
	o.metrics.FallbackPoints += int64(fallbacks)
	o.metrics.Duration += completed.Sub(start)
	o.mu.Unlock()

	logger.Info().Str("run_id", run.ID).Int("skus", len(results)).Int("fallback_points", fallbacks).
		Dur("took", completed.Sub(start)).Msg("plan run completed")
	return res, nil
}

// merge concatenates per-SKU results in SKU order and derives the cross-SKU
// tables.
func merge(results []SKUResult, win runWindow, descriptions map[string]string) *domain.PlanResult {
	res := &domain.PlanResult{
		LastMonth: win.lastMonth,
		AsOf:      win.asOf,
		SKUs:      make([]string, 0, len(results)),
	}
	for _, r := range results {
		res.SKUs = append(res.SKUs, r.SKU)
		res.CleanedDemand = append(res.CleanedDemand, r.Cleaned...)
		res.Forecast = append(res.Forecast, r.Forecast.Points...)
		res.Metrics = append(res.Metrics, r.Forecast.Metrics)
		res.MethodScores = append(res.MethodScores, r.Forecast.Scores...)
		res.Policies = append(res.Policies, r.Policy)
		res.Decisions = append(res.Decisions, r.Decision)
		res.Projection = append(res.Projection, r.Projection...)
		res.HistoricalLoss = append(res.HistoricalLoss, r.HistoricalLoss...)
	}

	res.ABC = report.ClassifyABC(res.CleanedDemand, descriptions)
	classes := report.ClassIndex(res.ABC)

	res.Summary = make([]domain.SKUSummary, 0, len(results))
	for _, r := range results {
		res.Summary = append(res.Summary, report.Summarize(report.SummaryInput{
			SKU:            r.SKU,
			LastMonth:      win.lastMonth,
			Forecast:       r.Forecast.Points,
			Projection:     r.Projection,
			HistoricalLoss: r.HistoricalLoss,
			Policy:         r.Policy,
			Decision:       r.Decision,
			UnitCost:       r.UnitCost,
			Class:          classes[r.SKU],
		}))
	}
	res.Totals = report.Totals(res.Summary)
	return res
}

func (o *Orchestrator) fail(ctx context.Context, run *PlanRun, err error) {
	now := o.now()
	run.Status = StatusFailed
	run.ErrorMessage = err.Error()
	run.CompletedAt = &now
	if uerr := o.runs.UpdateRun(ctx, run); uerr != nil {
		log.Warn().Err(uerr).Str("run_id", run.ID).Msg("failed to mark plan run failed")
	}
	log.Error().Err(err).Str("run_id", run.ID).Msg("plan run failed")
}

// track records a run; tracking failures are logged but do not fail the plan.
func (o *Orchestrator) track(ctx context.Context, run *PlanRun) {
	var err error
	if run.CacheHit {
		err = o.runs.CreateRun(ctx, run)
	} else {
		err = o.runs.UpdateRun(ctx, run)
	}
	if err != nil {
		log.Warn().Err(err).Str("run_id", run.ID).Msg("failed to record plan run")
	}
}

func productDescriptions(in Inputs) map[string]string {
	out := make(map[string]string)
	for _, c := range in.CurrentStock {
		if c.Description != "" {
			out[c.SKU] = c.Description
		}
	}
	for _, p := range in.Products {
		if p.Description != "" {
			out[p.SKU] = p.Description
		}
	}
	return out
}
