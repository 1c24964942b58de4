// Package purchase decides whether a SKU needs a purchase order by
// simulating its stock over a short horizon.
package purchase

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/planify/backend-go/internal/domain"
	"github.com/andresuchdata/planify/backend-go/internal/planning/stats"
)

// Decision reasons.
const (
	ReasonInvalidDates    = "Fechas inválidas en reposiciones"
	ReasonBelowSafety     = "Stock simulado por debajo del stock de seguridad"
	ReasonBelowCoverage   = "Stock actual no cubre la demanda del horizonte más el stock de seguridad"
	ReasonEnoughInTransit = "Las reposiciones en camino cubren el stock de seguridad"
	ReasonEnoughOnHand    = "El stock actual cubre la demanda del horizonte"
)

const defaultHorizonMonths = 5

// Input is the state of one SKU at evaluation time.
type Input struct {
	SKU            string
	CurrentStock   int
	AsOf           time.Time
	Policy         domain.InventoryPolicy
	Replenishments []domain.ReplenishmentEvent
}

// Evaluator runs the buy / no-buy simulation.
type Evaluator struct {
	horizon int
}

// NewEvaluator creates an Evaluator simulating horizonMonths forward months
// (5 when not positive).
func NewEvaluator(horizonMonths int) *Evaluator {
	if horizonMonths <= 0 {
		horizonMonths = defaultHorizonMonths
	}
	return &Evaluator{horizon: horizonMonths}
}

// Evaluate simulates the next months and applies the decision rule. With
// stock in transit the simulated ending stock is compared against the safety
// stock; otherwise the current stock is compared against the horizon demand
// plus safety stock.
func (e *Evaluator) Evaluate(in Input) domain.PurchaseDecision {
	d := domain.PurchaseDecision{
		SKU:          in.SKU,
		Action:       domain.ActionNoBuy,
		CurrentStock: in.CurrentStock,
	}

	for _, ev := range in.Replenishments {
		if !ev.Valid() {
			log.Warn().Str("sku", in.SKU).Str("fecha", ev.RawDate).Msg("invalid replenishment date, skipping purchase evaluation")
			d.SimulatedEndingStock = in.CurrentStock
			d.Reason = ReasonInvalidDates
			return d
		}
	}

	asOf := in.AsOf
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	asOf = domain.MonthStart(asOf)

	schedule := make([]int, e.horizon)
	for _, ev := range in.Replenishments {
		k := domain.MonthsBetween(asOf, ev.Date)
		if k < 0 || k >= e.horizon || ev.Quantity <= 0 {
			continue
		}
		schedule[k] += ev.Quantity
		d.UnitsInTransit += ev.Quantity
	}

	avg := float64(in.Policy.AvgMonthlyDemand)
	safety := float64(in.Policy.SafetyStock)

	stock := float64(in.CurrentStock)
	for k := 0; k < e.horizon; k++ {
		stock += float64(schedule[k])
		stock -= avg
	}
	d.SimulatedEndingStock = stats.RoundInt(stock)

	var compared float64
	if d.UnitsInTransit > 0 {
		d.ThresholdUsed = safety
		compared = float64(d.SimulatedEndingStock)
	} else {
		d.ThresholdUsed = stats.Round(avg*float64(e.horizon) + safety)
		compared = float64(in.CurrentStock)
	}

	if compared >= d.ThresholdUsed {
		d.Reason = ReasonEnoughOnHand
		if d.UnitsInTransit > 0 {
			d.Reason = ReasonEnoughInTransit
		}
		return d
	}

	d.Action = domain.ActionBuy
	d.Reason = ReasonBelowCoverage
	if d.UnitsInTransit > 0 {
		d.Reason = ReasonBelowSafety
	}
	if in.Policy.EOQ > 0 {
		d.SuggestedQuantity = stats.RoundInt(in.Policy.EOQ)
	} else {
		d.SuggestedQuantity = stats.RoundInt(d.ThresholdUsed - compared)
	}
	return d
}
