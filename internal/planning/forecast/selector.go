package forecast

import (
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/planify/backend-go/internal/domain"
	"github.com/andresuchdata/planify/backend-go/internal/planning/stats"
)

const scoreEpsilon = 1e-9

// Config controls the forecast engine.
//
// With ProjectionUsesLeadTime a projection for month T sees history up to
// T-L-1, the same lag the backtest uses. Setting it to false lets a
// projection see everything up to T-1, which is how the dashboard's simple
// forecast behaves.
type Config struct {
	LeadTimeMonths         int
	HorizonMonths          int
	SelectionBufferMonths  int
	ProjectionUsesLeadTime bool // projection cut-off lags the target by the lead time too
	MinValidMonths         int  // positive months required before non-MA methods are eligible
	UpperSigmaWindow       int  // clean observations behind the forecast_up margin
	FallbackWindow         int  // trailing values averaged by the insufficient-data fallback
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		LeadTimeMonths:         3,
		HorizonMonths:          6,
		SelectionBufferMonths:  3,
		ProjectionUsesLeadTime: true,
		MinValidMonths:         12,
		UpperSigmaWindow:       6,
		FallbackWindow:         4,
	}
}

// Result is the forecast engine output for one SKU.
type Result struct {
	Method  domain.ForecastMethod
	Points  []domain.ForecastPoint
	Scores  []domain.MethodScore
	Metrics domain.ForecastMetrics
}

// Selector backtests the candidate methods and produces the forecast table.
type Selector struct {
	cfg     Config
	methods []Method
}

// NewSelector creates a Selector, filling zero-valued settings with defaults.
func NewSelector(cfg Config) *Selector {
	def := DefaultConfig()
	if cfg.LeadTimeMonths < 0 {
		cfg.LeadTimeMonths = def.LeadTimeMonths
	}
	if cfg.HorizonMonths <= 0 {
		cfg.HorizonMonths = def.HorizonMonths
	}
	if cfg.SelectionBufferMonths < 0 {
		cfg.SelectionBufferMonths = def.SelectionBufferMonths
	}
	if cfg.MinValidMonths <= 0 {
		cfg.MinValidMonths = def.MinValidMonths
	}
	if cfg.UpperSigmaWindow <= 0 {
		cfg.UpperSigmaWindow = def.UpperSigmaWindow
	}
	if cfg.FallbackWindow <= 0 {
		cfg.FallbackWindow = def.FallbackWindow
	}
	return &Selector{cfg: cfg, methods: Methods()}
}

// Config returns the effective configuration.
func (s *Selector) Config() Config {
	return s.cfg
}

// Forecast runs selection and emits historical, backtest and projection
// rows for one SKU. lastMonth is the last observed month of the whole run;
// projections start the month after it. A zero lastMonth uses the SKU's
// own last month.
func (s *Selector) Forecast(sku string, monthly []domain.MonthlyDemand, lastMonth time.Time) Result {
	if len(monthly) == 0 {
		return Result{Method: domain.MethodMA4, Metrics: domain.ForecastMetrics{SKU: sku, Method: domain.MethodMA4}}
	}
	if lastMonth.IsZero() {
		lastMonth = monthly[len(monthly)-1].Month
	}

	method, scores := s.Select(sku, monthly)
	values := CleanValues(monthly)

	points := make([]domain.ForecastPoint, 0, 2*len(monthly)+s.cfg.HorizonMonths)

	// 1. historical
	for _, m := range monthly {
		points = append(points, domain.ForecastPoint{
			SKU:          sku,
			Month:        m.Month,
			Segment:      domain.SegmentHistorical,
			DemandActual: m.Actual,
			DemandClean:  m.Clean,
			Method:       method.Name(),
		})
	}

	// 2. backtest under the lead-time lag
	backtestStart := len(points)
	for _, m := range monthly {
		cutoff := domain.AddMonths(m.Month, -(s.cfg.LeadTimeMonths + 1))
		if cutoff.Before(monthly[0].Month) {
			continue
		}
		value, fallback := s.pointForecast(sku, method, values, monthly[0].Month, cutoff, m.Month)
		points = append(points, domain.ForecastPoint{
			SKU:          sku,
			Month:        m.Month,
			Segment:      domain.SegmentBacktest,
			DemandActual: m.Actual,
			DemandClean:  m.Clean,
			Forecast:     intPtr(value),
			Method:       method.Name(),
			Fallback:     fallback,
		})
	}
	ApplyRollingDPA(points[backtestStart:])

	// 3. projection
	sigma := stats.SampleStd(stats.Tail(values, s.cfg.UpperSigmaWindow))
	for h := 1; h <= s.cfg.HorizonMonths; h++ {
		target := domain.AddMonths(lastMonth, h)
		cutoff := s.ProjectionCutoff(target)
		value, fallback := s.pointForecast(sku, method, values, monthly[0].Month, cutoff, target)
		points = append(points, domain.ForecastPoint{
			SKU:           sku,
			Month:         target,
			Segment:       domain.SegmentProjection,
			Forecast:      intPtr(value),
			ForecastUpper: intPtr(stats.NonNegativeInt(float64(value) + sigma)),
			Method:        method.Name(),
			Fallback:      fallback,
		})
	}

	return Result{
		Method:  method.Name(),
		Points:  points,
		Scores:  scores,
		Metrics: Metrics(sku, method.Name(), points),
	}
}

// ProjectionCutoff is the last month of history a projection for target may
// see.
func (s *Selector) ProjectionCutoff(target time.Time) time.Time {
	if s.cfg.ProjectionUsesLeadTime {
		return domain.AddMonths(target, -(s.cfg.LeadTimeMonths + 1))
	}
	return domain.AddMonths(target, -1)
}

// BacktestValue forecasts target with method using only the months of
// monthly up to target minus the lead time and one month. ok is false when
// no history precedes the cut-off.
func (s *Selector) BacktestValue(sku string, method Method, monthly []domain.MonthlyDemand, target time.Time) (value int, fallback, ok bool) {
	if len(monthly) == 0 {
		return 0, false, false
	}
	cutoff := domain.AddMonths(target, -(s.cfg.LeadTimeMonths + 1))
	if cutoff.Before(monthly[0].Month) {
		return 0, false, false
	}
	value, fallback = s.pointForecast(sku, method, CleanValues(monthly), monthly[0].Month, cutoff, target)
	return value, fallback, true
}

// Select scores every eligible method with a buffered one-step backtest and
// returns the winner together with the comparison rows.
func (s *Selector) Select(sku string, monthly []domain.MonthlyDemand) (Method, []domain.MethodScore) {
	values := CleanValues(monthly)
	seasonal := len(stats.Positive(values)) >= s.cfg.MinValidMonths

	var chosen Method
	best := math.Inf(1)
	scores := make([]domain.MethodScore, 0, len(s.methods))
	for _, m := range s.methods {
		score := domain.MethodScore{SKU: sku, Method: m.Name()}
		score.Eligible = seasonal || m.Name() == domain.MethodMA4
		if score.Eligible {
			mape, n := s.selectionMAPE(m, values)
			score.Points = n
			if !math.IsInf(mape, 1) {
				score.MAPE = floatPtr(stats.RoundTo(mape*100, 2))
				if mape < best-scoreEpsilon {
					best = mape
					chosen = m
				}
			}
		}
		scores = append(scores, score)
	}

	if chosen == nil {
		chosen = movingAverage{window: 4}
	}
	for i := range scores {
		scores[i].Chosen = scores[i].Method == chosen.Name()
	}
	return chosen, scores
}

// selectionMAPE is the mean absolute percentage error of one-step forecasts
// made with a knowledge lag of SelectionBufferMonths. Months with zero
// demand or without a usable forecast contribute no point.
func (s *Selector) selectionMAPE(m Method, values []float64) (float64, int) {
	var sum float64
	n := 0
	for j, actual := range values {
		if actual == 0 {
			continue
		}
		cut := j - s.cfg.SelectionBufferMonths - 1
		if cut < 0 {
			continue
		}
		v, err := m.Predict(values[:cut+1])
		if err != nil || !stats.IsFinite(v) {
			continue
		}
		pred := float64(stats.NonNegativeInt(v))
		sum += math.Abs(actual-pred) / actual
		n++
	}
	if n == 0 {
		return math.Inf(1), 0
	}
	return sum / float64(n), n
}

// pointForecast predicts target from the history up to cutoff, falling back
// to the mean of the trailing values when the method cannot produce one.
func (s *Selector) pointForecast(sku string, m Method, values []float64, first, cutoff, target time.Time) (int, bool) {
	end := domain.MonthsBetween(first, cutoff) + 1
	if end > len(values) {
		end = len(values)
	}
	if end < 0 {
		end = 0
	}
	history := values[:end]

	v, err := m.Predict(history)
	if err == nil && stats.IsFinite(v) {
		return stats.NonNegativeInt(v), false
	}

	fallback := stats.Mean(stats.Tail(history, s.cfg.FallbackWindow))
	log.Debug().
		Str("event", "insufficient_data_fallback").
		Str("sku", sku).
		Str("method", string(m.Name())).
		Str("month", domain.FormatMonth(target)).
		Int("history", len(history)).
		Float64("fallback", fallback).
		Msg("forecast fell back to trailing mean")
	return stats.NonNegativeInt(fallback), true
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }
