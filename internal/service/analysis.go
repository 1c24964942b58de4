package service

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/andresuchdata/planify/backend-go/internal/domain"
	"github.com/andresuchdata/planify/backend-go/internal/ingest"
	"github.com/andresuchdata/planify/backend-go/internal/planning/cleaner"
	"github.com/andresuchdata/planify/backend-go/internal/planning/forecast"
	"github.com/andresuchdata/planify/backend-go/internal/planning/policy"
	"github.com/andresuchdata/planify/backend-go/internal/planning/purchase"
	"github.com/andresuchdata/planify/backend-go/internal/planning/stats"
)

// HistoryPoint is one month of demand in a forecast request.
type HistoryPoint struct {
	Month  string  `json:"mes" binding:"required"`
	Demand float64 `json:"demanda"`
}

type ForecastRequest struct {
	ProductID       string         `json:"product_id" binding:"required"`
	HistoricalData  []HistoryPoint `json:"historical_data" binding:"required,min=1"`
	ForecastHorizon int            `json:"forecast_horizon"`
	Clean           bool           `json:"clean"`
}

type ForecastResponse struct {
	ProductID string                 `json:"product_id"`
	Method    domain.ForecastMethod  `json:"method"`
	Forecast  []domain.ForecastPoint `json:"forecast"`
	Metrics   domain.ForecastMetrics `json:"metrics"`
	Scores    []domain.MethodScore   `json:"method_scores"`
}

// ForecastRow is one row of the forecast table supplied to inventory analysis.
type ForecastRow struct {
	Month       string `json:"mes" binding:"required"`
	Segment     string `json:"tipo_mes" binding:"required"`
	DemandClean int    `json:"demanda_limpia"`
	Forecast    *int   `json:"forecast"`
}

// Replenishment is an incoming delivery in a request body.
type Replenishment struct {
	Date     string `json:"fecha"`
	Quantity int    `json:"cantidad"`
}

type InventoryRequest struct {
	ProductID      string          `json:"product_id" binding:"required"`
	ForecastData   []ForecastRow   `json:"forecast_data" binding:"required"`
	Replenishments []Replenishment `json:"replenishments"`
	AsOf           string          `json:"as_of"`
}

type InventoryResponse struct {
	ProductID            string  `json:"product_id"`
	ReorderPoint         float64 `json:"reorder_point"`
	AdjustedReorderPoint float64 `json:"adjusted_reorder_point"`
	SafetyStock          int     `json:"safety_stock"`
	AvgMonthlyDemand     int     `json:"average_monthly_demand"`
	StandardDeviation    float64 `json:"standard_deviation"`
	UnitsInTransit       int     `json:"units_in_transit"`
	EOQ                  float64 `json:"eoq"`
}

// PolicyInput carries the policy figures the purchase evaluation reads.
type PolicyInput struct {
	AvgMonthlyDemand int     `json:"avg_monthly_demand"`
	SafetyStock      int     `json:"safety_stock"`
	EOQ              float64 `json:"eoq"`
}

type PurchaseRequest struct {
	SKU            string          `json:"sku" binding:"required"`
	CurrentStock   int             `json:"current_stock"`
	AsOf           string          `json:"as_of" binding:"required"`
	Policy         PolicyInput     `json:"policy"`
	Replenishments []Replenishment `json:"replenishments"`
}

// BadRequestError marks request content the engine cannot interpret.
type BadRequestError struct {
	Field string
	Value string
}

func (e *BadRequestError) Error() string {
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}

// MaxForecastHorizon bounds the horizon a forecast request may ask for.
const MaxForecastHorizon = 36

// PredictForecast runs method selection over a single demand series.
func (s *PlanningService) PredictForecast(req ForecastRequest) (*ForecastResponse, error) {
	if len(req.HistoricalData) == 0 {
		return nil, &BadRequestError{Field: "historical_data", Value: ""}
	}
	if req.ForecastHorizon < 0 || req.ForecastHorizon > MaxForecastHorizon {
		return nil, &BadRequestError{Field: "forecast_horizon", Value: strconv.Itoa(req.ForecastHorizon)}
	}

	obs := make([]domain.DemandObservation, 0, len(req.HistoricalData))
	for _, h := range req.HistoricalData {
		month, err := domain.ParseMonth(h.Month)
		if err != nil {
			return nil, &BadRequestError{Field: "mes", Value: h.Month}
		}
		v := max(stats.RoundInt(h.Demand), 0)
		obs = append(obs, domain.DemandObservation{
			SKU:                req.ProductID,
			Date:               month,
			RawQuantity:        h.Demand,
			QuantityNoStockout: v,
			QuantityNoOutlier:  v,
		})
	}
	sort.SliceStable(obs, func(i, j int) bool { return obs[i].Date.Before(obs[j].Date) })

	cfg := s.orchestrator.Config()
	if req.Clean {
		obs = cleaner.New(cfg.Cleaner).Clean(obs, nil)
	}

	fcfg := cfg.Forecast
	if req.ForecastHorizon > 0 {
		fcfg.HorizonMonths = req.ForecastHorizon
	}
	monthly := forecast.MonthlyAggregate(req.ProductID, obs)
	result := forecast.NewSelector(fcfg).Forecast(req.ProductID, monthly, obs[len(obs)-1].Date)

	return &ForecastResponse{
		ProductID: req.ProductID,
		Method:    result.Method,
		Forecast:  result.Points,
		Metrics:   result.Metrics,
		Scores:    result.Scores,
	}, nil
}

// AnalyzeInventory derives the stocking policy from a forecast table.
func (s *PlanningService) AnalyzeInventory(req InventoryRequest) (*InventoryResponse, error) {
	var (
		points  []domain.ForecastPoint
		history []domain.MonthlyDemand
	)
	for _, row := range req.ForecastData {
		month, err := domain.ParseMonth(row.Month)
		if err != nil {
			return nil, &BadRequestError{Field: "mes", Value: row.Month}
		}
		segment, ok := domain.ParseSegment(row.Segment)
		if !ok {
			return nil, &BadRequestError{Field: "tipo_mes", Value: row.Segment}
		}
		if segment == domain.SegmentHistorical {
			history = append(history, domain.MonthlyDemand{SKU: req.ProductID, Month: month, Clean: row.DemandClean})
			continue
		}
		points = append(points, domain.ForecastPoint{SKU: req.ProductID, Month: month, Segment: segment, Forecast: row.Forecast})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Month.Before(points[j].Month) })

	asOf, err := optionalMonth(req.AsOf)
	if err != nil {
		return nil, err
	}
	events, err := replenishments(req.ProductID, req.Replenishments)
	if err != nil {
		return nil, err
	}

	p := policy.NewCalculator(s.orchestrator.Config().Policy).Calculate(policy.Input{
		SKU:            req.ProductID,
		Projection:     points,
		History:        history,
		Replenishments: events,
		AsOf:           asOf,
	})

	return &InventoryResponse{
		ProductID:            req.ProductID,
		ReorderPoint:         p.ReorderPoint,
		AdjustedReorderPoint: p.AdjustedReorderPoint,
		SafetyStock:          p.SafetyStock,
		AvgMonthlyDemand:     p.AvgMonthlyDemand,
		StandardDeviation:    p.DemandStd,
		UnitsInTransit:       p.UnitsInTransit,
		EOQ:                  p.EOQ,
	}, nil
}

// EvaluatePurchase runs the buy / no-buy simulation for one SKU.
// Replenishments with unparseable dates are kept and reported by the
// evaluator.
func (s *PlanningService) EvaluatePurchase(req PurchaseRequest) (*domain.PurchaseDecision, error) {
	asOf, err := domain.ParseMonth(req.AsOf)
	if err != nil {
		return nil, &BadRequestError{Field: "as_of", Value: req.AsOf}
	}

	events := make([]domain.ReplenishmentEvent, 0, len(req.Replenishments))
	for _, r := range req.Replenishments {
		ev := domain.ReplenishmentEvent{SKU: req.SKU, Quantity: r.Quantity, RawDate: r.Date}
		if d, err := ingest.ParseDate(r.Date); err == nil {
			ev.Date = d
		}
		events = append(events, ev)
	}

	d := purchase.NewEvaluator(s.orchestrator.Config().PurchaseHorizonMonths).Evaluate(purchase.Input{
		SKU:          req.SKU,
		CurrentStock: req.CurrentStock,
		AsOf:         asOf,
		Policy: domain.InventoryPolicy{
			SKU:              req.SKU,
			AvgMonthlyDemand: req.Policy.AvgMonthlyDemand,
			SafetyStock:      req.Policy.SafetyStock,
			EOQ:              req.Policy.EOQ,
		},
		Replenishments: events,
	})
	return &d, nil
}

func optionalMonth(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	m, err := domain.ParseMonth(s)
	if err != nil {
		return time.Time{}, &BadRequestError{Field: "as_of", Value: s}
	}
	return m, nil
}

func replenishments(sku string, in []Replenishment) ([]domain.ReplenishmentEvent, error) {
	out := make([]domain.ReplenishmentEvent, 0, len(in))
	for _, r := range in {
		d, err := ingest.ParseDate(r.Date)
		if err != nil {
			return nil, &BadRequestError{Field: "fecha", Value: r.Date}
		}
		out = append(out, domain.ReplenishmentEvent{SKU: sku, Date: d, Quantity: r.Quantity, RawDate: r.Date})
	}
	return out, nil
}
