package forecast

import (
	"math"

	"github.com/andresuchdata/planify/backend-go/internal/domain"
	"github.com/andresuchdata/planify/backend-go/internal/planning/stats"
)

// DPAWindow is the number of backtest months in a rolling DPA bag.
const DPAWindow = 3

// RollingDPA computes the demand-plan accuracy over trailing bags of
// DPAWindow points. Entries before the third point, and bags with no demand,
// are nil.
func RollingDPA(demand, forecast []float64) []*float64 {
	out := make([]*float64, len(demand))
	for i := DPAWindow - 1; i < len(demand) && i < len(forecast); i++ {
		var d, f float64
		for k := i - DPAWindow + 1; k <= i; k++ {
			d += demand[k]
			f += forecast[k]
		}
		if d <= 0 {
			continue
		}
		dpa := math.Max(1-math.Abs(d-f)/d, 0)
		out[i] = floatPtr(stats.RoundTo(dpa, 4))
	}
	return out
}

// ApplyRollingDPA fills DPARolling on month-ordered backtest rows of a
// single SKU.
func ApplyRollingDPA(backtest []domain.ForecastPoint) {
	demand := make([]float64, len(backtest))
	forecast := make([]float64, len(backtest))
	for i, p := range backtest {
		demand[i] = float64(p.DemandClean)
		forecast[i] = float64(p.ForecastValue())
	}
	for i, dpa := range RollingDPA(demand, forecast) {
		backtest[i].DPARolling = dpa
	}
}

// Metrics summarises the backtest rows among points.
func Metrics(sku string, method domain.ForecastMethod, points []domain.ForecastPoint) domain.ForecastMetrics {
	m := domain.ForecastMetrics{SKU: sku, Method: method}

	var apeSum, sqSum float64
	apeN := 0
	for _, p := range points {
		if p.Segment != domain.SegmentBacktest {
			continue
		}
		m.BacktestPoints++
		if p.Fallback {
			m.FallbackPoints++
		}
		actual := float64(p.DemandClean)
		diff := actual - float64(p.ForecastValue())
		sqSum += diff * diff
		if actual > 0 {
			apeSum += math.Abs(diff) / actual
			apeN++
		}
		if p.DPARolling != nil {
			m.LatestDPA = floatPtr(*p.DPARolling)
		}
	}

	if apeN > 0 {
		m.MAPE = floatPtr(stats.RoundTo(apeSum/float64(apeN)*100, 2))
	}
	if m.BacktestPoints > 0 {
		m.RMSE = floatPtr(stats.RoundTo(math.Sqrt(sqSum/float64(m.BacktestPoints)), 2))
	}
	return m
}
