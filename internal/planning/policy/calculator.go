// Package policy derives safety stock, reorder point and order quantity per
// SKU from the forecast table and the cleaned demand history.
package policy

import (
	"math"
	"time"

	"github.com/andresuchdata/planify/backend-go/internal/domain"
	"github.com/andresuchdata/planify/backend-go/internal/planning/stats"
)

// Variant selects where demand volatility is measured.
type Variant string

const (
	// VariantHistorical uses the spread of cleaned monthly demand: ss = z·σ.
	VariantHistorical Variant = "historical"
	// VariantForecastDispersion uses the spread of the projected forecasts
	// scaled to the lead time: ss = z·σ·√L.
	VariantForecastDispersion Variant = "forecast_dispersion"
)

// ParseVariant maps a setting onto a Variant, defaulting to historical.
func ParseVariant(s string) Variant {
	if Variant(s) == VariantForecastDispersion {
		return VariantForecastDispersion
	}
	return VariantHistorical
}

// Config holds the policy parameters.
type Config struct {
	LeadTimeMonths int
	ServiceLevelZ  float64
	Variant        Variant
	EOQMultiplier  float64
	AvgWindow      int // projection months averaged into avg monthly demand
	StdWindow      int // positive history months behind the historical σ
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		LeadTimeMonths: 5,
		ServiceLevelZ:  1.65,
		Variant:        VariantHistorical,
		EOQMultiplier:  3,
		AvgWindow:      4,
		StdWindow:      12,
	}
}

// Input is everything the calculator reads for one SKU.
type Input struct {
	SKU            string
	Projection     []domain.ForecastPoint // projection segment, month ordered
	History        []domain.MonthlyDemand
	Replenishments []domain.ReplenishmentEvent
	AsOf           time.Time
}

// Calculator computes inventory policies.
type Calculator struct {
	cfg Config
}

// NewCalculator creates a Calculator, filling zero-valued settings with
// defaults.
func NewCalculator(cfg Config) *Calculator {
	def := DefaultConfig()
	if cfg.LeadTimeMonths <= 0 {
		cfg.LeadTimeMonths = def.LeadTimeMonths
	}
	if cfg.ServiceLevelZ <= 0 {
		cfg.ServiceLevelZ = def.ServiceLevelZ
	}
	if cfg.Variant == "" {
		cfg.Variant = def.Variant
	}
	if cfg.EOQMultiplier <= 0 {
		cfg.EOQMultiplier = def.EOQMultiplier
	}
	if cfg.AvgWindow <= 0 {
		cfg.AvgWindow = def.AvgWindow
	}
	if cfg.StdWindow <= 0 {
		cfg.StdWindow = def.StdWindow
	}
	return &Calculator{cfg: cfg}
}

// Config returns the effective configuration.
func (c *Calculator) Config() Config {
	return c.cfg
}

// Calculate returns the policy for one SKU. Without projected forecasts the
// derived fields stay at zero.
func (c *Calculator) Calculate(in Input) domain.InventoryPolicy {
	p := domain.InventoryPolicy{
		SKU:            in.SKU,
		LeadTimeMonths: c.cfg.LeadTimeMonths,
		Variant:        string(c.cfg.Variant),
		UnitsInTransit: UnitsInTransit(in.Replenishments),
	}

	forecasts := upcoming(in.Projection, in.AsOf)
	if len(forecasts) == 0 {
		return p
	}

	// 1. Average monthly demand over the next projected months
	p.AvgMonthlyDemand = stats.RoundInt(stats.Mean(stats.Head(forecasts, c.cfg.AvgWindow)))

	// 2. Demand volatility and safety stock
	lead := float64(c.cfg.LeadTimeMonths)
	switch c.cfg.Variant {
	case VariantForecastDispersion:
		p.DemandStd = stats.SampleStd(forecasts)
		p.SafetyStock = stats.RoundInt(c.cfg.ServiceLevelZ * p.DemandStd * math.Sqrt(lead))
	default:
		p.DemandStd = stats.SampleStd(recentPositive(in.History, c.cfg.StdWindow))
		p.SafetyStock = stats.RoundInt(c.cfg.ServiceLevelZ * p.DemandStd)
	}
	p.DemandStd = stats.RoundTo(p.DemandStd, 2)

	// 3. Reorder point = avg × lead time + safety stock
	p.ReorderPointBase = float64(p.AvgMonthlyDemand) * lead
	p.ReorderPoint = p.ReorderPointBase + float64(p.SafetyStock)

	// 4. Adjusted reorder point nets out stock already on its way
	p.AdjustedReorderPoint = p.ReorderPoint
	if p.UnitsInTransit > 0 {
		p.AdjustedReorderPoint = p.ReorderPoint - float64(p.UnitsInTransit)
	}

	// 5. Order quantity as a fixed multiple of monthly demand
	p.EOQ = float64(p.AvgMonthlyDemand) * c.cfg.EOQMultiplier

	return p
}

// UnitsInTransit sums the quantities of the events that carry a valid date.
func UnitsInTransit(events []domain.ReplenishmentEvent) int {
	total := 0
	for _, e := range events {
		if e.Valid() && e.Quantity > 0 {
			total += e.Quantity
		}
	}
	return total
}

func upcoming(projection []domain.ForecastPoint, asOf time.Time) []float64 {
	out := make([]float64, 0, len(projection))
	for _, pt := range projection {
		if pt.Segment != domain.SegmentProjection || pt.Forecast == nil {
			continue
		}
		if !asOf.IsZero() && pt.Month.Before(domain.MonthStart(asOf)) {
			continue
		}
		out = append(out, float64(*pt.Forecast))
	}
	return out
}

func recentPositive(history []domain.MonthlyDemand, n int) []float64 {
	values := make([]float64, 0, len(history))
	for _, m := range history {
		if m.Clean > 0 {
			values = append(values, float64(m.Clean))
		}
	}
	return stats.Tail(values, n)
}
