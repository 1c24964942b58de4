// Package cleaner removes stockout-driven demand suppression and caps
// statistical outliers, one SKU at a time.
package cleaner

import (
	"math"
	"sort"
	"time"

	"github.com/andresuchdata/planify/backend-go/internal/domain"
	"github.com/andresuchdata/planify/backend-go/internal/planning/stats"
)

// Config controls the cleaning heuristics.
type Config struct {
	LookbackPeriods     int     // prior periods in the reference window
	CandidatePercentile float64 // demand at or below this percentile is a stockout candidate
	ImputePercentile    float64 // percentile of the reference window used as replacement
	OutlierPercentile   float64 // cap for the post-imputation series
	ObsoleteMonths      int     // trailing months of zero stock that mark a SKU obsolete
	EpisodeWindowMonths int     // trailing window for counting stock-outage episodes
	MinStockoutEpisodes int     // episodes in the window that confirm suppression on their own
	NoStockRunEvidence  int     // without stock data, low-demand runs required; 0 confirms unconditionally
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		LookbackPeriods:     24,
		CandidatePercentile: 20,
		ImputePercentile:    60,
		OutlierPercentile:   95,
		ObsoleteMonths:      12,
		EpisodeWindowMonths: 12,
		MinStockoutEpisodes: 2,
		NoStockRunEvidence:  0,
	}
}

// Cleaner applies stockout imputation and outlier capping.
type Cleaner struct {
	cfg Config
}

// New creates a Cleaner, filling zero-valued settings with defaults.
func New(cfg Config) *Cleaner {
	def := DefaultConfig()
	if cfg.LookbackPeriods <= 0 {
		cfg.LookbackPeriods = def.LookbackPeriods
	}
	if cfg.CandidatePercentile <= 0 {
		cfg.CandidatePercentile = def.CandidatePercentile
	}
	if cfg.ImputePercentile <= 0 {
		cfg.ImputePercentile = def.ImputePercentile
	}
	if cfg.OutlierPercentile <= 0 {
		cfg.OutlierPercentile = def.OutlierPercentile
	}
	if cfg.ObsoleteMonths <= 0 {
		cfg.ObsoleteMonths = def.ObsoleteMonths
	}
	if cfg.EpisodeWindowMonths <= 0 {
		cfg.EpisodeWindowMonths = def.EpisodeWindowMonths
	}
	return &Cleaner{cfg: cfg}
}

// Clean returns a date-ordered copy of one SKU's observations with
// QuantityNoStockout and QuantityNoOutlier filled. A nil oracle means no
// stock feed was supplied for the run.
func (c *Cleaner) Clean(obs []domain.DemandObservation, oracle *StockOracle) []domain.DemandObservation {
	out := append([]domain.DemandObservation(nil), obs...)
	if len(out) == 0 {
		return out
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	if oracle != nil && oracle.Obsolete(c.cfg.ObsoleteMonths) {
		for i := range out {
			v := stats.NonNegativeInt(out[i].RawQuantity)
			out[i].QuantityNoStockout = v
			out[i].QuantityNoOutlier = v
		}
		return out
	}

	raw := make([]float64, len(out))
	for i, o := range out {
		if stats.IsFinite(o.RawQuantity) {
			raw[i] = math.Max(o.RawQuantity, 0)
		}
	}
	low := stats.Percentile(stats.Positive(raw), c.cfg.CandidatePercentile)

	imputed := make([]float64, len(out))
	for i := range out {
		imputed[i] = raw[i]
		if !isCandidate(raw[i], low) {
			continue
		}
		window := stats.Positive(raw[max(0, i-c.cfg.LookbackPeriods):i])
		if len(window) == 0 {
			continue
		}
		if !c.confirmed(i, out, raw, low, oracle) {
			continue
		}
		imputed[i] = stats.Round(stats.Percentile(window, c.cfg.ImputePercentile))
	}

	capValue := math.Inf(1)
	if positives := stats.Positive(imputed); len(positives) > 0 {
		capValue = math.Floor(stats.Percentile(positives, c.cfg.OutlierPercentile))
	}

	for i := range out {
		out[i].QuantityNoStockout = stats.NonNegativeInt(imputed[i])
		out[i].QuantityNoOutlier = stats.NonNegativeInt(math.Min(stats.Round(imputed[i]), capValue))
	}
	return out
}

func (c *Cleaner) confirmed(i int, obs []domain.DemandObservation, raw []float64, low float64, oracle *StockOracle) bool {
	if oracle != nil {
		month := domain.MonthStart(obs[i].Date)
		if oracle.ZeroAround(month) {
			return true
		}
		return c.cfg.MinStockoutEpisodes > 0 &&
			oracle.Episodes(month, c.cfg.EpisodeWindowMonths) >= c.cfg.MinStockoutEpisodes
	}

	if c.cfg.NoStockRunEvidence <= 0 {
		return true
	}
	return lowRuns(raw[max(0, i-11):i+1], low) >= c.cfg.NoStockRunEvidence
}

func isCandidate(v, low float64) bool {
	return v == 0 || v <= low
}

// lowRuns counts maximal runs of consecutive zero or near-zero values.
func lowRuns(values []float64, low float64) int {
	runs := 0
	inRun := false
	for _, v := range values {
		if isCandidate(v, low) {
			if !inRun {
				runs++
			}
			inRun = true
			continue
		}
		inRun = false
	}
	return runs
}

// StockOracle answers stock questions for a single SKU from its monthly
// stock history.
type StockOracle struct {
	levels map[time.Time]int
	last   time.Time
}

// NewStockOracle indexes one SKU's stock observations by month. When a
// month appears more than once the last observation wins.
func NewStockOracle(obs []domain.StockObservation) *StockOracle {
	o := &StockOracle{levels: make(map[time.Time]int, len(obs))}
	for _, s := range obs {
		m := domain.MonthStart(s.Month)
		o.levels[m] = s.Quantity
		if m.After(o.last) {
			o.last = m
		}
	}
	return o
}

// ZeroAround reports whether stock was zero in the month before, the month
// itself or the month after.
func (o *StockOracle) ZeroAround(month time.Time) bool {
	for _, offset := range []int{-1, 0, 1} {
		if level, ok := o.levels[domain.AddMonths(month, offset)]; ok && level == 0 {
			return true
		}
	}
	return false
}

// Episodes counts runs of consecutive zero-stock months in the window of
// `window` months before month.
func (o *StockOracle) Episodes(month time.Time, window int) int {
	episodes := 0
	inEpisode := false
	for k := window; k >= 1; k-- {
		level, ok := o.levels[domain.AddMonths(month, -k)]
		if ok && level == 0 {
			if !inEpisode {
				episodes++
			}
			inEpisode = true
			continue
		}
		inEpisode = false
	}
	return episodes
}

// Obsolete reports whether the last n recorded months all show zero stock.
// Missing months break the streak.
func (o *StockOracle) Obsolete(n int) bool {
	if n <= 0 || len(o.levels) < n {
		return false
	}
	for k := 0; k < n; k++ {
		level, ok := o.levels[domain.AddMonths(o.last, -k)]
		if !ok || level != 0 {
			return false
		}
	}
	return true
}
