package report

import (
	"sort"
	"time"

	"github.com/andresuchdata/planify/backend-go/internal/domain"
	"github.com/andresuchdata/planify/backend-go/internal/planning/stats"
)

// ABC cut-offs on cumulative share of demand.
const (
	ClassALimit = 0.7
	ClassBLimit = 0.9
)

// TrailingWindowMonths is the demand window the ABC ranking and the summary
// 12-month figures look at.
const TrailingWindowMonths = 12

// ClassifyABC ranks SKUs by clean demand over the trailing twelve months
// ending at the latest observation across all SKUs.
func ClassifyABC(cleaned []domain.DemandObservation, descriptions map[string]string) []domain.ABCClassification {
	if len(cleaned) == 0 {
		return nil
	}

	var latest time.Time
	for _, o := range cleaned {
		if o.Date.After(latest) {
			latest = o.Date
		}
	}
	from := latest.AddDate(0, -TrailingWindowMonths, 0)

	totals := make(map[string]int)
	for _, o := range cleaned {
		if _, ok := totals[o.SKU]; !ok {
			totals[o.SKU] = 0
		}
		if !o.Date.Before(from) {
			totals[o.SKU] += o.QuantityNoOutlier
		}
	}

	out := make([]domain.ABCClassification, 0, len(totals))
	grand := 0
	for sku, total := range totals {
		out = append(out, domain.ABCClassification{SKU: sku, Description: descriptions[sku], TotalDemand: total})
		grand += total
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalDemand != out[j].TotalDemand {
			return out[i].TotalDemand > out[j].TotalDemand
		}
		return out[i].SKU < out[j].SKU
	})

	cumulative := 0.0
	for i := range out {
		if grand == 0 {
			out[i].Class = domain.ClassC
			continue
		}
		share := float64(out[i].TotalDemand) / float64(grand)
		cumulative += share
		out[i].Share = stats.RoundTo(share, 4)
		out[i].Cumulative = stats.RoundTo(cumulative, 4)
		out[i].Class = classFor(cumulative)
	}
	return out
}

func classFor(cumulative float64) domain.ABCClass {
	switch {
	case cumulative <= ClassALimit+1e-12:
		return domain.ClassA
	case cumulative <= ClassBLimit+1e-12:
		return domain.ClassB
	default:
		return domain.ClassC
	}
}

// ClassIndex maps SKU to class.
func ClassIndex(rows []domain.ABCClassification) map[string]domain.ABCClass {
	idx := make(map[string]domain.ABCClass, len(rows))
	for _, r := range rows {
		idx[r.SKU] = r.Class
	}
	return idx
}
