package pipeline

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/planify/backend-go/internal/config"
	"github.com/andresuchdata/planify/backend-go/internal/domain"
	"github.com/andresuchdata/planify/backend-go/internal/planning/policy"
)

var jan2024 = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

func demandSeries(sku string, values ...float64) []domain.DemandObservation {
	obs := make([]domain.DemandObservation, len(values))
	for i, v := range values {
		obs[i] = domain.DemandObservation{SKU: sku, Date: domain.AddMonths(jan2024, i).AddDate(0, 0, 9), RawQuantity: v}
	}
	return obs
}

func stockSeries(sku string, values ...int) []domain.StockObservation {
	obs := make([]domain.StockObservation, len(values))
	for i, v := range values {
		obs[i] = domain.StockObservation{SKU: sku, Month: domain.AddMonths(jan2024, i), Quantity: v}
	}
	return obs
}

// a1Inputs is a single SKU with two confirmed stockout months (8 and 9)
// and a genuine zero in month 5.
func a1Inputs() Inputs {
	return Inputs{
		Demand:       demandSeries("A1", 10, 12, 9, 11, 0, 10, 9, 0, 0, 13, 14, 12),
		StockHistory: stockSeries("A1", 50, 50, 50, 50, 50, 50, 50, 0, 0, 50, 50, 50),
		CurrentStock: []domain.CurrentStock{
			{SKU: "A1", Description: "Widget", Quantity: 40, Date: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)},
		},
		Products: []domain.Product{
			{SKU: "A1", Description: "Widget A1", ManufacturingCost: decimal.NewFromInt(4), SalePrice: decimal.NewFromInt(9), HasPrice: true},
		},
	}
}

func fixedClock(o *Orchestrator) {
	now := time.Date(2025, time.January, 5, 12, 0, 0, 0, time.UTC)
	o.now = func() time.Time { return now }
}

type memCache struct {
	mu    sync.Mutex
	plans map[string]*domain.PlanResult
	gets  int
}

func newMemCache() *memCache {
	return &memCache{plans: make(map[string]*domain.PlanResult)}
}

func (c *memCache) Get(_ context.Context, fingerprint string) (*domain.PlanResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	res, ok := c.plans[fingerprint]
	return res, ok, nil
}

func (c *memCache) Set(_ context.Context, fingerprint string, res *domain.PlanResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plans[fingerprint] = res
	return nil
}

type memRuns struct {
	mu      sync.Mutex
	created []PlanRun
	updated []PlanRun
}

func (r *memRuns) CreateRun(_ context.Context, run *PlanRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, *run)
	return nil
}

func (r *memRuns) UpdateRun(_ context.Context, run *PlanRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updated = append(r.updated, *run)
	return nil
}

func TestRunSingleSKUEndToEnd(t *testing.T) {
	runs := &memRuns{}
	o := NewOrchestrator(DefaultConfig(), WithRunRepository(runs))
	fixedClock(o)

	res, err := o.Run(context.Background(), a1Inputs())
	require.NoError(t, err)

	assert.Equal(t, []string{"A1"}, res.SKUs)
	assert.Equal(t, domain.AddMonths(jan2024, 11), res.LastMonth)
	assert.Equal(t, domain.AddMonths(jan2024, 12), res.AsOf)
	assert.NotEmpty(t, res.RunID)
	assert.Len(t, res.Fingerprint, 64)

	// stockout months are imputed, the month with stock on hand stays zero
	require.Len(t, res.CleanedDemand, 12)
	assert.Equal(t, 0, res.CleanedDemand[4].QuantityNoStockout)
	assert.Equal(t, 10, res.CleanedDemand[7].QuantityNoStockout)
	assert.Equal(t, 10, res.CleanedDemand[8].QuantityNoStockout)

	// 12 historical, 8 backtest, 6 projection rows
	require.Len(t, res.Forecast, 26)
	first := res.Forecast[20]
	assert.Equal(t, domain.SegmentProjection, first.Segment)
	assert.Equal(t, domain.AddMonths(jan2024, 12), first.Month)
	assert.Equal(t, domain.MethodMA4, first.Method)
	require.NotNil(t, first.Forecast)
	assert.Equal(t, 10, *first.Forecast)

	require.Len(t, res.Policies, 1)
	assert.Equal(t, string(policy.VariantHistorical), res.Policies[0].Variant)
	require.Len(t, res.Decisions, 1)
	require.Len(t, res.Summary, 1)
	require.Len(t, res.ABC, 1)
	assert.Equal(t, "Widget A1", res.ABC[0].Description)
	assert.NotEmpty(t, res.Projection)
	for _, row := range res.Projection {
		assert.GreaterOrEqual(t, row.StockEnd, 0)
	}

	require.Len(t, runs.created, 1)
	assert.Equal(t, StatusProcessing, runs.created[0].Status)
	require.Len(t, runs.updated, 1)
	assert.Equal(t, StatusCompleted, runs.updated[0].Status)
	assert.Equal(t, 1, runs.updated[0].ProcessedSKUs)

	m := o.Metrics()
	assert.Equal(t, int64(1), m.SKUsProcessed)
}

func TestRunIsDeterministicAcrossWorkerCounts(t *testing.T) {
	in := a1Inputs()
	in.Demand = append(in.Demand, demandSeries("B2", 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14)...)
	in.Demand = append(in.Demand, demandSeries("C3", 1, 0, 1, 0, 1, 0, 1, 0, 1, 0, 1, 0)...)

	serial := DefaultConfig()
	serial.WorkerCount = 1
	parallel := DefaultConfig()
	parallel.WorkerCount = 8

	a, err := NewOrchestrator(serial).Run(context.Background(), in)
	require.NoError(t, err)
	b, err := NewOrchestrator(parallel).Run(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, []string{"A1", "B2", "C3"}, a.SKUs)
	assert.Equal(t, a.Fingerprint, b.Fingerprint)
	assert.Equal(t, a.Forecast, b.Forecast)
	assert.Equal(t, a.Policies, b.Policies)
	assert.Equal(t, a.Summary, b.Summary)
	assert.Equal(t, a.ABC, b.ABC)
}

func TestRunServesRepeatedInputsFromCache(t *testing.T) {
	cache := newMemCache()
	runs := &memRuns{}
	o := NewOrchestrator(DefaultConfig(), WithCache(cache), WithRunRepository(runs))

	first, err := o.Run(context.Background(), a1Inputs())
	require.NoError(t, err)
	second, err := o.Run(context.Background(), a1Inputs())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 2, cache.gets)
	assert.Equal(t, int64(1), o.Metrics().SKUsProcessed)

	require.Len(t, runs.created, 2)
	assert.True(t, runs.created[1].CacheHit)
	assert.Equal(t, StatusCompleted, runs.created[1].Status)
}

func TestRunCancelled(t *testing.T) {
	runs := &memRuns{}
	o := NewOrchestrator(DefaultConfig(), WithRunRepository(runs))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := o.Run(ctx, a1Inputs())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)

	require.Len(t, runs.updated, 1)
	assert.Equal(t, StatusFailed, runs.updated[0].Status)
	assert.NotEmpty(t, runs.updated[0].ErrorMessage)
}

func TestRunWithoutDemand(t *testing.T) {
	_, err := NewOrchestrator(DefaultConfig()).Run(context.Background(), Inputs{})
	assert.ErrorIs(t, err, ErrNoDemand)
}

func TestFingerprint(t *testing.T) {
	cfg := DefaultConfig()
	in := a1Inputs()
	base := Fingerprint(in, cfg)

	t.Run("row order does not matter", func(t *testing.T) {
		shuffled := a1Inputs()
		d := shuffled.Demand
		for i, j := 0, len(d)-1; i < j; i, j = i+1, j-1 {
			d[i], d[j] = d[j], d[i]
		}
		assert.Equal(t, base, Fingerprint(shuffled, cfg))
	})

	t.Run("worker count does not matter", func(t *testing.T) {
		other := cfg
		other.WorkerCount = 16
		assert.Equal(t, base, Fingerprint(in, other))
	})

	t.Run("data changes the fingerprint", func(t *testing.T) {
		changed := a1Inputs()
		changed.Demand[3].RawQuantity = 99
		assert.NotEqual(t, base, Fingerprint(changed, cfg))
	})

	t.Run("configuration changes the fingerprint", func(t *testing.T) {
		other := cfg
		other.Forecast.LeadTimeMonths = 2
		assert.NotEqual(t, base, Fingerprint(in, other))
	})

	t.Run("non-finite settings still separate configs", func(t *testing.T) {
		nan := cfg
		nan.Policy.ServiceLevelZ = math.NaN()
		shorter := nan
		shorter.Forecast.LeadTimeMonths = 2

		assert.NotEqual(t, base, Fingerprint(in, nan))
		assert.NotEqual(t, Fingerprint(in, nan), Fingerprint(in, shorter))
		assert.Equal(t, Fingerprint(in, nan), Fingerprint(in, nan))
	})
}

func TestSplitBySKU(t *testing.T) {
	in := Inputs{
		Demand:       append(demandSeries("B", 1, 2), demandSeries("A", 3)...),
		StockHistory: append(stockSeries("A", 5), stockSeries("Z", 7)...),
		Products: []domain.Product{
			{SKU: "A", Description: "first"},
			{SKU: "A", Description: "second"},
		},
	}

	got := SplitBySKU(in)
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].SKU)
	assert.Equal(t, "B", got[1].SKU)
	assert.Len(t, got[0].StockHistory, 1)
	assert.True(t, got[0].HasProduct)
	assert.Equal(t, "first", got[0].Product.Description)
	assert.Len(t, got[1].Demand, 2)
	assert.False(t, got[1].HasProduct)
}

func TestConfigFromSettings(t *testing.T) {
	cfg := ConfigFromSettings(config.PlanningConfig{
		LeadTimeMonths:         2,
		PolicyLeadTimeMonths:   4,
		HorizonMonths:          9,
		SelectionBufferMonths:  1,
		ProjectionUsesLeadTime: true,
		ServiceLevelZ:          2.05,
		SafetyStockVariant:     "forecast_dispersion",
		EOQMultiplier:          2,
		PurchaseHorizonMonths:  6,
		LookbackPeriods:        12,
		CandidatePercentile:    20,
		ImputePercentile:       60,
		OutlierPercentile:      95,
		MinStockoutEpisodes:    2,
		WorkerCount:            3,
		AsOfMonth:              "2025-03",
	})

	assert.Equal(t, 2, cfg.Forecast.LeadTimeMonths)
	assert.Equal(t, 9, cfg.Forecast.HorizonMonths)
	assert.Equal(t, 4, cfg.Policy.LeadTimeMonths)
	assert.Equal(t, policy.VariantForecastDispersion, cfg.Policy.Variant)
	assert.Equal(t, 12, cfg.Cleaner.LookbackPeriods)
	assert.Equal(t, 6, cfg.PurchaseHorizonMonths)
	assert.Equal(t, 3, cfg.WorkerCount)
	assert.Equal(t, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), cfg.AsOf)

	fallback := ConfigFromSettings(config.PlanningConfig{AsOfMonth: "soon"})
	assert.True(t, fallback.AsOf.IsZero())
	assert.Equal(t, 4, fallback.WorkerCount)
}

func TestOutputWriter(t *testing.T) {
	res, err := NewOrchestrator(DefaultConfig()).Run(context.Background(), a1Inputs())
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "out")
	var flushed []string
	w := NewOutputWriter(dir, func(_ context.Context, got *domain.PlanResult, files []string) error {
		assert.Equal(t, res.RunID, got.RunID)
		flushed = files
		return nil
	})

	files, err := w.Write(context.Background(), res)
	require.NoError(t, err)
	assert.Len(t, files, 10)
	assert.Equal(t, files, flushed)

	data, err := os.ReadFile(filepath.Join(dir, "forecast.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "A1")
}
