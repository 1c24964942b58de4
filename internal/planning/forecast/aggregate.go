package forecast

import (
	"sort"
	"time"

	"github.com/andresuchdata/planify/backend-go/internal/domain"
	"github.com/andresuchdata/planify/backend-go/internal/planning/stats"
)

// MonthlyAggregate sums one SKU's cleaned observations per month. Months
// between the first and last observation with no rows are emitted as zero
// so the series is contiguous.
func MonthlyAggregate(sku string, obs []domain.DemandObservation) []domain.MonthlyDemand {
	if len(obs) == 0 {
		return nil
	}

	raw := make(map[time.Time]float64)
	clean := make(map[time.Time]int)
	months := make([]time.Time, 0)
	for _, o := range obs {
		m := domain.MonthStart(o.Date)
		if _, ok := raw[m]; !ok {
			months = append(months, m)
		}
		raw[m] += o.RawQuantity
		clean[m] += o.QuantityNoOutlier
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

	first, last := months[0], months[len(months)-1]
	out := make([]domain.MonthlyDemand, 0, domain.MonthsBetween(first, last)+1)
	for m := first; !m.After(last); m = domain.AddMonths(m, 1) {
		out = append(out, domain.MonthlyDemand{
			SKU:    sku,
			Month:  m,
			Actual: stats.RoundInt(raw[m]),
			Clean:  clean[m],
		})
	}
	return out
}

// CleanValues returns the cleaned monthly series as floats.
func CleanValues(monthly []domain.MonthlyDemand) []float64 {
	out := make([]float64, len(monthly))
	for i, m := range monthly {
		out[i] = float64(m.Clean)
	}
	return out
}
