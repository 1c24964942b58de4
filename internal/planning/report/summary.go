package report

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/andresuchdata/planify/backend-go/internal/domain"
	"github.com/andresuchdata/planify/backend-go/internal/planning/stats"
)

// SummaryInput gathers the per-SKU tables the summary row is built from.
type SummaryInput struct {
	SKU            string
	LastMonth      time.Time
	Forecast       []domain.ForecastPoint
	Projection     []domain.StockProjectionRow
	HistoricalLoss []domain.HistoricalLossRow
	Policy         domain.InventoryPolicy
	Decision       domain.PurchaseDecision
	UnitCost       decimal.Decimal
	Class          domain.ABCClass
}

// Summarize builds the business context row for one SKU.
func Summarize(in SummaryInput) domain.SKUSummary {
	s := domain.SKUSummary{
		SKU:                 in.SKU,
		ReorderPoint:        in.Policy.ReorderPointBase,
		EOQ:                 in.Policy.EOQ,
		SafetyStock:         in.Policy.SafetyStock,
		UnitsInTransit:      in.Policy.UnitsInTransit,
		Action:              in.Decision.Action,
		Class:               in.Class,
		HistoricalLostValue: decimal.Zero,
		PurchaseCost:        decimal.Zero,
	}

	// 1. Projected demand and ending stock
	var forecasts []float64
	if len(in.Projection) > 0 {
		for _, r := range in.Projection {
			forecasts = append(forecasts, float64(r.Forecast))
		}
		s.ProjectedStock = in.Projection[len(in.Projection)-1].StockEnd
	} else {
		for _, p := range in.Forecast {
			if p.Segment == domain.SegmentProjection {
				forecasts = append(forecasts, float64(p.ForecastValue()))
			}
		}
	}
	s.AvgForecast = stats.RoundTo(stats.Mean(forecasts), 1)

	total := 0.0
	for _, f := range forecasts {
		total += f
	}
	s.UnitsToBuy = max(stats.RoundInt(total)-s.ProjectedStock, 0)
	s.PurchaseCost = in.UnitCost.Mul(decimal.NewFromInt(int64(s.UnitsToBuy)))

	// 2. Historical losses and stockout rate
	var demandAll float64
	from := domain.AddMonths(in.LastMonth, -TrailingWindowMonths)
	for _, r := range in.HistoricalLoss {
		s.HistoricalLostUnits += r.LostUnits
		s.HistoricalLostValue = s.HistoricalLostValue.Add(r.LostValue)
		demandAll += r.DemandReal
		if r.Month.After(from) {
			s.DemandReal += r.DemandReal
			s.DemandClean += r.DemandClean
		}
	}
	if denom := demandAll + float64(s.HistoricalLostUnits); denom > 0 {
		s.StockoutRate = stats.RoundTo(float64(s.HistoricalLostUnits)/denom*100, 2)
	}
	return s
}

// Totals aggregates the summary rows.
func Totals(rows []domain.SKUSummary) domain.PlanTotals {
	t := domain.PlanTotals{TotalPurchaseCost: decimal.Zero}
	for _, r := range rows {
		t.TotalUnitsToBuy += r.UnitsToBuy
		if r.UnitsToBuy > 0 {
			t.SKUsToBuy++
		}
		t.TotalPurchaseCost = t.TotalPurchaseCost.Add(r.PurchaseCost)
		t.TotalUnitsInTransit += r.UnitsInTransit
	}
	return t
}
