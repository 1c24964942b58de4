// Package projection simulates stock and lost sales month by month over the
// forecast horizon.
package projection

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andresuchdata/planify/backend-go/internal/domain"
)

// Input is one SKU's projection request.
type Input struct {
	SKU            string
	Forecast       []domain.ForecastPoint // only projection rows are used
	StartMonth     time.Time
	Stock          []domain.CurrentStock
	Replenishments []domain.ReplenishmentEvent
	UnitPrice      decimal.Decimal
	HasPrice       bool
}

// Project returns the monthly stock trace starting at StartMonth. Without a
// stock record for that month the result is empty.
func Project(in Input) []domain.StockProjectionRow {
	start := domain.MonthStart(in.StartMonth)
	initial, ok := InitialStock(in.Stock, start)
	if !ok {
		return nil
	}

	points := make([]domain.ForecastPoint, 0, len(in.Forecast))
	for _, p := range in.Forecast {
		if p.Segment == domain.SegmentProjection && !p.Month.Before(start) {
			points = append(points, p)
		}
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Month.Before(points[j].Month) })

	incoming := make(map[time.Time]int)
	for _, ev := range in.Replenishments {
		if ev.Valid() && ev.Quantity > 0 {
			incoming[domain.MonthStart(ev.Date)] += ev.Quantity
		}
	}

	price := decimal.Zero
	if in.HasPrice {
		price = in.UnitPrice
	}

	rows := make([]domain.StockProjectionRow, 0, len(points))
	stock := initial
	for _, p := range points {
		forecast := p.ForecastValue()
		repl := incoming[p.Month]
		available := stock + repl

		row := domain.StockProjectionRow{
			SKU:                  in.SKU,
			Month:                p.Month,
			Forecast:             forecast,
			ReplenishmentApplied: repl,
			StockStart:           stock,
			StockEnd:             max(available-forecast, 0),
			LostUnits:            max(forecast-available, 0),
		}
		row.LostValue = price.Mul(decimal.NewFromInt(int64(row.LostUnits)))
		rows = append(rows, row)

		stock = row.StockEnd
	}
	return rows
}

// InitialStock returns the quantity of the first stock record dated in
// month.
func InitialStock(records []domain.CurrentStock, month time.Time) (int, bool) {
	month = domain.MonthStart(month)
	for _, r := range records {
		if domain.MonthStart(r.Date).Equal(month) {
			return r.Quantity, true
		}
	}
	return 0, false
}

// StartMonth is the earliest month among a SKU's stock records.
func StartMonth(records []domain.CurrentStock) (time.Time, bool) {
	var start time.Time
	for _, r := range records {
		m := domain.MonthStart(r.Date)
		if start.IsZero() || m.Before(start) {
			start = m
		}
	}
	return start, !start.IsZero()
}
