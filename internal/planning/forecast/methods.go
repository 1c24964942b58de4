package forecast

import (
	"errors"
	"math"

	"github.com/andresuchdata/planify/backend-go/internal/domain"
	"github.com/andresuchdata/planify/backend-go/internal/planning/stats"
	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
)

// ErrInsufficientData is returned by a Method that cannot produce a value
// from the history it was given.
var ErrInsufficientData = errors.New("insufficient data")

// SeasonLength is the period of the seasonal method, in months.
const SeasonLength = 12

// Method predicts the value following a monthly history.
type Method interface {
	Name() domain.ForecastMethod
	Predict(history []float64) (float64, error)
}

// movingAverage averages the strictly positive values among the last
// `window` months.
type movingAverage struct {
	window int
}

func (m movingAverage) Name() domain.ForecastMethod { return domain.MethodMA4 }

func (m movingAverage) Predict(history []float64) (float64, error) {
	valid := stats.Positive(stats.Tail(history, m.window))
	if len(valid) == 0 {
		return 0, ErrInsufficientData
	}
	return stats.Mean(valid), nil
}

// simpleMovingAverage is the plain rolling mean over a full window.
type simpleMovingAverage struct {
	period int
}

func (m simpleMovingAverage) Name() domain.ForecastMethod { return domain.MethodMA6 }

func (m simpleMovingAverage) Predict(history []float64) (float64, error) {
	if len(history) < m.period {
		return 0, ErrInsufficientData
	}
	sma := trend.NewSmaWithPeriod[float64](m.period)
	out := helper.ChanToSlice(sma.Compute(helper.SliceToChan(history)))
	if len(out) == 0 {
		return 0, ErrInsufficientData
	}
	return out[len(out)-1], nil
}

// weightedMovingAverage weights the last `window` months linearly, the most
// recent month weighing `window`.
type weightedMovingAverage struct {
	window int
}

func (m weightedMovingAverage) Name() domain.ForecastMethod {
	if m.window == 6 {
		return domain.MethodWMA6
	}
	return domain.MethodWMA4
}

func (m weightedMovingAverage) Predict(history []float64) (float64, error) {
	if len(history) < m.window {
		return 0, ErrInsufficientData
	}
	tail := stats.Tail(history, m.window)
	var sum, weights float64
	for i, v := range tail {
		w := float64(i + 1)
		sum += w * v
		weights += w
	}
	return sum / weights, nil
}

// exponentialSmoothing is simple exponential smoothing on top of the EMA
// indicator. The smoothing period with the lowest in-sample one-step error
// wins.
type exponentialSmoothing struct {
	periods []int
}

func (m exponentialSmoothing) Name() domain.ForecastMethod { return domain.MethodSES }

func (m exponentialSmoothing) Predict(history []float64) (float64, error) {
	bestErr := math.Inf(1)
	best := 0.0
	for _, p := range m.periods {
		if len(history) < p+1 {
			continue
		}
		ema := helper.ChanToSlice(trend.NewEmaWithPeriod[float64](p).Compute(helper.SliceToChan(history)))
		if len(ema) < 2 {
			continue
		}

		// ema[k] smooths history up to index k+p-1
		var sse float64
		n := 0
		for k := 0; k < len(ema)-1 && k+p < len(history); k++ {
			d := history[k+p] - ema[k]
			sse += d * d
			n++
		}
		if n == 0 {
			continue
		}
		if mse := sse / float64(n); mse < bestErr {
			bestErr = mse
			best = ema[len(ema)-1]
		}
	}
	if math.IsInf(bestErr, 1) {
		return 0, ErrInsufficientData
	}
	return best, nil
}

// holtLinear is double exponential smoothing with an additive trend. The
// smoothing constants are picked from a small grid by in-sample error.
type holtLinear struct {
	alphas []float64
	betas  []float64
}

func (m holtLinear) Name() domain.ForecastMethod { return domain.MethodHolt }

func (m holtLinear) Predict(history []float64) (float64, error) {
	if len(history) < 4 {
		return 0, ErrInsufficientData
	}
	bestErr := math.Inf(1)
	best := 0.0
	for _, a := range m.alphas {
		for _, b := range m.betas {
			level, slope := history[0], history[1]-history[0]
			var sse float64
			for t := 1; t < len(history); t++ {
				d := history[t] - (level + slope)
				sse += d * d
				next := a*history[t] + (1-a)*(level+slope)
				slope = b*(next-level) + (1-b)*slope
				level = next
			}
			if sse < bestErr {
				bestErr = sse
				best = level + slope
			}
		}
	}
	return best, nil
}

// holtWinters is additive triple exponential smoothing with a 12-month
// season. It needs two full seasons to initialise.
type holtWinters struct {
	alphas []float64
	betas  []float64
	gammas []float64
}

func (m holtWinters) Name() domain.ForecastMethod { return domain.MethodHoltWinters }

func (m holtWinters) Predict(history []float64) (float64, error) {
	const s = SeasonLength
	if len(history) < 2*s {
		return 0, ErrInsufficientData
	}

	first := stats.Mean(history[:s])
	second := stats.Mean(history[s : 2*s])

	bestErr := math.Inf(1)
	best := 0.0
	season := make([]float64, s)
	for _, a := range m.alphas {
		for _, b := range m.betas {
			for _, g := range m.gammas {
				level := first
				slope := (second - first) / s
				for i := 0; i < s; i++ {
					season[i] = history[i] - first
				}

				var sse float64
				for t := s; t < len(history); t++ {
					idx := t % s
					d := history[t] - (level + slope + season[idx])
					sse += d * d
					next := a*(history[t]-season[idx]) + (1-a)*(level+slope)
					slope = b*(next-level) + (1-b)*slope
					season[idx] = g*(history[t]-next) + (1-g)*season[idx]
					level = next
				}
				if sse < bestErr {
					bestErr = sse
					best = level + slope + season[len(history)%s]
				}
			}
		}
	}
	return best, nil
}

// Methods returns the candidate methods in tie-break priority order: the
// seasonal method first, the plain four-month average last.
func Methods() []Method {
	return []Method{
		holtWinters{alphas: []float64{0.2, 0.5, 0.8}, betas: []float64{0.1, 0.2}, gammas: []float64{0.1, 0.3}},
		holtLinear{alphas: []float64{0.2, 0.4, 0.6, 0.8}, betas: []float64{0.1, 0.2, 0.3}},
		exponentialSmoothing{periods: []int{2, 3, 4, 6, 9}},
		weightedMovingAverage{window: 6},
		weightedMovingAverage{window: 4},
		simpleMovingAverage{period: 6},
		movingAverage{window: 4},
	}
}

// MethodByName looks up a candidate method.
func MethodByName(name domain.ForecastMethod) (Method, bool) {
	for _, m := range Methods() {
		if m.Name() == name {
			return m, true
		}
	}
	return nil, false
}
