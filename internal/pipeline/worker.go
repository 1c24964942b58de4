package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/planify/backend-go/internal/domain"
	"github.com/andresuchdata/planify/backend-go/internal/planning/cleaner"
	"github.com/andresuchdata/planify/backend-go/internal/planning/forecast"
	"github.com/andresuchdata/planify/backend-go/internal/planning/policy"
	"github.com/andresuchdata/planify/backend-go/internal/planning/projection"
	"github.com/andresuchdata/planify/backend-go/internal/planning/purchase"
	"github.com/andresuchdata/planify/backend-go/internal/planning/report"
)

// Worker runs the per-SKU engine stages
type Worker struct {
	config     Config
	cleaner    *cleaner.Cleaner
	selector   *forecast.Selector
	calculator *policy.Calculator
	evaluator  *purchase.Evaluator
}

// NewWorker creates a new SKU worker
func NewWorker(config Config) *Worker {
	return &Worker{
		config:     config,
		cleaner:    cleaner.New(config.Cleaner),
		selector:   forecast.NewSelector(config.Forecast),
		calculator: policy.NewCalculator(config.Policy),
		evaluator:  purchase.NewEvaluator(config.PurchaseHorizonMonths),
	}
}

// runWindow is the shared time frame of a run
type runWindow struct {
	lastMonth    time.Time
	asOf         time.Time
	hasStockFeed bool
}

// ProcessSKU runs clean → forecast → policy → purchase → projection for one
// SKU. It never fails: data gaps resolve to defaults inside each stage.
func (w *Worker) ProcessSKU(in SKUInput, win runWindow) SKUResult {
	res := SKUResult{SKU: in.SKU, UnitCost: in.Product.ManufacturingCost}

	// 1. Demand cleaning
	var oracle *cleaner.StockOracle
	if win.hasStockFeed {
		oracle = cleaner.NewStockOracle(in.StockHistory)
	}
	res.Cleaned = w.cleaner.Clean(in.Demand, oracle)

	// 2. Forecast selection
	res.Monthly = forecast.MonthlyAggregate(in.SKU, res.Cleaned)
	res.Forecast = w.selector.Forecast(in.SKU, res.Monthly, win.lastMonth)

	// 3. Inventory policy
	res.Policy = w.calculator.Calculate(policy.Input{
		SKU:            in.SKU,
		Projection:     res.Forecast.Points,
		History:        res.Monthly,
		Replenishments: in.Replenishments,
		AsOf:           win.asOf,
	})

	// 4. Purchase decision
	current := 0
	if len(in.CurrentStock) > 0 {
		current = in.CurrentStock[0].Quantity
	}
	res.Decision = w.evaluator.Evaluate(purchase.Input{
		SKU:            in.SKU,
		CurrentStock:   current,
		AsOf:           win.asOf,
		Policy:         res.Policy,
		Replenishments: in.Replenishments,
	})

	// 5. Stock projection from the earliest stock snapshot
	if start, ok := projection.StartMonth(in.CurrentStock); ok {
		res.Projection = projection.Project(projection.Input{
			SKU:            in.SKU,
			Forecast:       res.Forecast.Points,
			StartMonth:     start,
			Stock:          in.CurrentStock,
			Replenishments: in.Replenishments,
			UnitPrice:      in.Product.SalePrice,
			HasPrice:       in.HasProduct && in.Product.HasPrice,
		})
	}

	// 6. Historical lost sales
	res.HistoricalLoss = report.HistoricalLoss(in.SKU, res.Cleaned, in.Product.SalePrice, in.HasProduct && in.Product.HasPrice)

	return res
}

// processParallel maps ProcessSKU over inputs using a worker pool. Each
// goroutine writes only results[i] for the index it received. Cancellation
// stops dispatching and the partial results are discarded.
func (w *Worker) processParallel(ctx context.Context, inputs []SKUInput, win runWindow) ([]SKUResult, error) {
	workerCount := w.config.WorkerCount
	if workerCount < 1 {
		workerCount = 1
	}

	results := make([]SKUResult, len(inputs))
	jobChan := make(chan int, workerCount)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for idx := range jobChan {
				if ctx.Err() != nil {
					continue
				}
				results[idx] = w.ProcessSKU(inputs[idx], win)
				log.Debug().Int("worker", workerID).Str("sku", inputs[idx].SKU).
					Str("method", string(results[idx].Forecast.Method)).Msg("sku processed")
			}
		}(i)
	}

	// Enqueue jobs
dispatch:
	for i := range inputs {
		select {
		case <-ctx.Done():
			break dispatch
		case jobChan <- i:
		}
	}
	close(jobChan)

	// Wait for all workers
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// SplitBySKU slices the input tables per SKU. The SKU universe is the set
// of SKUs with demand rows, sorted.
func SplitBySKU(in Inputs) []SKUInput {
	bySKU := make(map[string]*SKUInput)
	for _, d := range in.Demand {
		s, ok := bySKU[d.SKU]
		if !ok {
			s = &SKUInput{SKU: d.SKU}
			bySKU[d.SKU] = s
		}
		s.Demand = append(s.Demand, d)
	}
	for _, st := range in.StockHistory {
		if s, ok := bySKU[st.SKU]; ok {
			s.StockHistory = append(s.StockHistory, st)
		}
	}
	for _, cs := range in.CurrentStock {
		if s, ok := bySKU[cs.SKU]; ok {
			s.CurrentStock = append(s.CurrentStock, cs)
		}
	}
	for _, ev := range in.Replenishments {
		if s, ok := bySKU[ev.SKU]; ok {
			s.Replenishments = append(s.Replenishments, ev)
		}
	}
	for _, p := range in.Products {
		if s, ok := bySKU[p.SKU]; ok && !s.HasProduct {
			s.Product = p
			s.HasProduct = true
		}
	}

	out := make([]SKUInput, 0, len(bySKU))
	for _, s := range bySKU {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out
}

// lastDemandMonth is the latest month with a demand row across all SKUs.
func lastDemandMonth(demand []domain.DemandObservation) time.Time {
	var last time.Time
	for _, d := range demand {
		if d.Date.After(last) {
			last = d.Date
		}
	}
	if last.IsZero() {
		return last
	}
	return domain.MonthStart(last)
}
