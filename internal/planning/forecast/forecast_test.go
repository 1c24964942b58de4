package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/planify/backend-go/internal/domain"
)

var jan2023 = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)

func series(sku string, values ...int) []domain.MonthlyDemand {
	out := make([]domain.MonthlyDemand, len(values))
	for i, v := range values {
		out[i] = domain.MonthlyDemand{SKU: sku, Month: domain.AddMonths(jan2023, i), Actual: v, Clean: v}
	}
	return out
}

func bySegment(points []domain.ForecastPoint, seg domain.Segment) []domain.ForecastPoint {
	var out []domain.ForecastPoint
	for _, p := range points {
		if p.Segment == seg {
			out = append(out, p)
		}
	}
	return out
}

func TestMonthlyAggregate(t *testing.T) {
	obs := []domain.DemandObservation{
		{SKU: "A", Date: jan2023.AddDate(0, 0, 3), RawQuantity: 4.4, QuantityNoOutlier: 4},
		{SKU: "A", Date: jan2023.AddDate(0, 0, 20), RawQuantity: 2, QuantityNoOutlier: 3},
		{SKU: "A", Date: jan2023.AddDate(0, 3, 1), RawQuantity: 7, QuantityNoOutlier: 7},
	}

	monthly := MonthlyAggregate("A", obs)
	require.Len(t, monthly, 4)
	assert.Equal(t, jan2023, monthly[0].Month)
	assert.Equal(t, 6, monthly[0].Actual)
	assert.Equal(t, 7, monthly[0].Clean)
	assert.Equal(t, 0, monthly[1].Clean)
	assert.Equal(t, 0, monthly[2].Clean)
	assert.Equal(t, 7, monthly[3].Clean)

	assert.Nil(t, MonthlyAggregate("A", nil))
}

func TestMethodPredictions(t *testing.T) {
	seasonal := []float64{5, 8, 12, 20, 25, 30, 28, 22, 15, 10, 6, 4}
	var twoYears []float64
	for i := 0; i < 27; i++ {
		twoYears = append(twoYears, seasonal[i%12])
	}

	tests := []struct {
		name    string
		method  Method
		history []float64
		want    float64
	}{
		{"ma_4 ignores zero months", movingAverage{window: 4}, []float64{9, 0, 0, 4, 8}, 6},
		{"ma_6", simpleMovingAverage{period: 6}, []float64{1, 2, 3, 4, 5, 6}, 3.5},
		{"wma_4", weightedMovingAverage{window: 4}, []float64{100, 1, 2, 3, 4}, 3},
		{"ses on a flat series", exponentialSmoothing{periods: []int{2, 3}}, []float64{5, 5, 5, 5, 5, 5}, 5},
		{"holt on a linear series", holtLinear{alphas: []float64{0.5}, betas: []float64{0.5}}, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 11},
		{"holt_winters on a repeating season", holtWinters{alphas: []float64{0.5}, betas: []float64{0.1}, gammas: []float64{0.1}}, twoYears, seasonal[27%12]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.method.Predict(tt.history)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-6)
		})
	}
}

func TestMethodsRejectShortHistory(t *testing.T) {
	tests := []struct {
		method  Method
		history []float64
	}{
		{movingAverage{window: 4}, []float64{3, 0, 0, 0, 0}},
		{movingAverage{window: 4}, nil},
		{simpleMovingAverage{period: 6}, []float64{1, 2, 3}},
		{weightedMovingAverage{window: 6}, []float64{1, 2, 3}},
		{exponentialSmoothing{periods: []int{4}}, []float64{1, 2, 3, 4}},
		{holtLinear{alphas: []float64{0.5}, betas: []float64{0.5}}, []float64{1, 2}},
		{holtWinters{alphas: []float64{0.5}, betas: []float64{0.1}, gammas: []float64{0.1}}, make([]float64, 23)},
	}

	for _, tt := range tests {
		t.Run(string(tt.method.Name()), func(t *testing.T) {
			_, err := tt.method.Predict(tt.history)
			assert.ErrorIs(t, err, ErrInsufficientData)
		})
	}
}

func TestMethodsPriorityOrder(t *testing.T) {
	var names []domain.ForecastMethod
	for _, m := range Methods() {
		names = append(names, m.Name())
	}
	assert.Equal(t, []domain.ForecastMethod{
		domain.MethodHoltWinters, domain.MethodHolt, domain.MethodSES,
		domain.MethodWMA6, domain.MethodWMA4, domain.MethodMA6, domain.MethodMA4,
	}, names)

	m, ok := MethodByName(domain.MethodSES)
	require.True(t, ok)
	assert.Equal(t, domain.MethodSES, m.Name())
	_, ok = MethodByName("arima")
	assert.False(t, ok)
}

func TestSelectShortHistoryOnlyMovingAverage(t *testing.T) {
	s := NewSelector(DefaultConfig())
	method, scores := s.Select("A1", series("A1", 10, 12, 9, 11, 0, 10, 10, 10, 10, 13, 14, 12))

	assert.Equal(t, domain.MethodMA4, method.Name())
	require.Len(t, scores, 7)
	for _, sc := range scores {
		if sc.Method == domain.MethodMA4 {
			assert.True(t, sc.Eligible)
			assert.True(t, sc.Chosen)
			require.NotNil(t, sc.MAPE)
			continue
		}
		assert.False(t, sc.Eligible, sc.Method)
		assert.Nil(t, sc.MAPE)
	}
}

func TestSelectTieBreaksByPriority(t *testing.T) {
	flat := make([]int, 24)
	for i := range flat {
		flat[i] = 5
	}

	s := NewSelector(DefaultConfig())
	method, scores := s.Select("F", series("F", flat...))

	// holt_winters has no scorable point within two seasons, every other
	// method is exact on a flat series
	assert.Equal(t, domain.MethodHolt, method.Name())
	chosen := 0
	for _, sc := range scores {
		assert.True(t, sc.Eligible)
		if sc.Chosen {
			chosen++
		}
	}
	assert.Equal(t, 1, chosen)
}

func TestForecastSegments(t *testing.T) {
	monthly := series("A1", 10, 12, 9, 11, 0, 10, 10, 10, 10, 13, 14, 12)
	s := NewSelector(DefaultConfig())
	res := s.Forecast("A1", monthly, time.Time{})

	hist := bySegment(res.Points, domain.SegmentHistorical)
	back := bySegment(res.Points, domain.SegmentBacktest)
	proj := bySegment(res.Points, domain.SegmentProjection)
	require.Len(t, hist, 12)
	require.Len(t, back, 8)
	require.Len(t, proj, 6)
	assert.Len(t, res.Points, 26)

	for _, p := range hist {
		assert.Nil(t, p.Forecast)
		assert.Nil(t, p.ForecastUpper)
	}
	assert.Equal(t, domain.AddMonths(jan2023, 4), back[0].Month)
	for _, p := range back {
		require.NotNil(t, p.Forecast)
		assert.GreaterOrEqual(t, *p.Forecast, 0)
		assert.Nil(t, p.ForecastUpper)
	}
	for i, p := range proj {
		assert.Equal(t, domain.AddMonths(jan2023, 12+i), p.Month)
		require.NotNil(t, p.Forecast)
		require.NotNil(t, p.ForecastUpper)
		assert.GreaterOrEqual(t, *p.ForecastUpper, *p.Forecast)
		assert.Equal(t, domain.MethodMA4, p.Method)
	}
}

func TestProjectionRespectsLeadTime(t *testing.T) {
	s := NewSelector(DefaultConfig())
	monthly := series("A1", 10, 12, 9, 11, 0, 10, 10, 10, 10, 13, 14, 12)

	proj := bySegment(s.Forecast("A1", monthly, time.Time{}).Points, domain.SegmentProjection)
	require.NotEmpty(t, proj)
	require.NotNil(t, proj[0].Forecast)
	// month 13 sees months 6..9 only
	assert.Equal(t, 10, *proj[0].Forecast)

	mutated := series("A1", 10, 12, 9, 11, 0, 10, 10, 10, 10, 90, 95, 99)
	again := bySegment(s.Forecast("A1", mutated, time.Time{}).Points, domain.SegmentProjection)
	assert.Equal(t, *proj[0].Forecast, *again[0].Forecast)
}

func TestBacktestHasNoLookAhead(t *testing.T) {
	s := NewSelector(DefaultConfig())
	base := []int{8, 10, 12, 9, 11, 14, 13, 12, 15, 16, 14, 13, 12, 15, 17, 16, 18, 17, 19, 20, 18, 21, 22, 20, 23, 24}

	for _, method := range Methods() {
		for target := 4; target < len(base); target++ {
			original := series("X", base...)
			mutated := series("X", base...)
			for i := target + 1; i < len(mutated); i++ {
				mutated[i].Clean *= 7
			}
			// the lag window itself is also invisible
			for i := target - s.Config().LeadTimeMonths; i <= target; i++ {
				mutated[i].Clean += 50
			}

			month := domain.AddMonths(jan2023, target)
			a, _, okA := s.BacktestValue("X", method, original, month)
			b, _, okB := s.BacktestValue("X", method, mutated, month)
			require.True(t, okA)
			require.True(t, okB)
			assert.Equal(t, a, b, "%s month %d", method.Name(), target)
		}
	}
}

func TestForecastFallbackIsFlagged(t *testing.T) {
	s := NewSelector(DefaultConfig())
	res := s.Forecast("Z", series("Z", 0, 0, 0, 0, 0, 0, 0, 5), time.Time{})

	assert.Equal(t, domain.MethodMA4, res.Method)
	assert.Equal(t, 4, res.Metrics.BacktestPoints)
	assert.Equal(t, 4, res.Metrics.FallbackPoints)

	proj := bySegment(res.Points, domain.SegmentProjection)
	require.Len(t, proj, 6)
	assert.True(t, proj[0].Fallback)
	assert.Equal(t, 0, *proj[0].Forecast)
	assert.False(t, proj[3].Fallback)
	assert.Equal(t, 5, *proj[3].Forecast)
}

func TestForecastEmptySeries(t *testing.T) {
	res := NewSelector(DefaultConfig()).Forecast("E", nil, time.Time{})
	assert.Empty(t, res.Points)
	assert.Equal(t, domain.MethodMA4, res.Method)
}

func TestRollingDPA(t *testing.T) {
	dpa := RollingDPA([]float64{10, 10, 10, 10, 0, 0, 0}, []float64{0, 0, 0, 40, 3, 3, 3})
	require.Len(t, dpa, 7)
	assert.Nil(t, dpa[0])
	assert.Nil(t, dpa[1])
	require.NotNil(t, dpa[2])
	assert.Equal(t, 0.0, *dpa[2])
	require.NotNil(t, dpa[3])
	assert.Equal(t, 0.6667, *dpa[3])
	require.NotNil(t, dpa[4])
	assert.Equal(t, 0.0, *dpa[4])
	assert.Nil(t, dpa[6])
}

func TestRollingDPABounds(t *testing.T) {
	monthly := series("B", 3, 50, 0, 7, 120, 4, 0, 0, 9, 60, 2, 8, 30, 1, 0, 45)
	res := NewSelector(DefaultConfig()).Forecast("B", monthly, time.Time{})

	seen := 0
	for _, p := range bySegment(res.Points, domain.SegmentBacktest) {
		if p.DPARolling == nil {
			continue
		}
		seen++
		assert.GreaterOrEqual(t, *p.DPARolling, 0.0)
		assert.LessOrEqual(t, *p.DPARolling, 1.0)
	}
	assert.NotZero(t, seen)
	for _, p := range res.Points {
		if p.Segment != domain.SegmentBacktest {
			assert.Nil(t, p.DPARolling)
		}
	}
}

func TestMetrics(t *testing.T) {
	f := func(v int) *int { return &v }
	points := []domain.ForecastPoint{
		{Segment: domain.SegmentHistorical, DemandClean: 10},
		{Segment: domain.SegmentBacktest, DemandClean: 10, Forecast: f(8)},
		{Segment: domain.SegmentBacktest, DemandClean: 0, Forecast: f(2), Fallback: true},
		{Segment: domain.SegmentProjection, Forecast: f(100)},
	}

	m := Metrics("S", domain.MethodMA4, points)
	assert.Equal(t, 2, m.BacktestPoints)
	assert.Equal(t, 1, m.FallbackPoints)
	require.NotNil(t, m.MAPE)
	assert.Equal(t, 20.0, *m.MAPE)
	require.NotNil(t, m.RMSE)
	assert.Equal(t, 2.0, *m.RMSE)
	assert.Nil(t, m.LatestDPA)
}
