// Package report builds the business tables that sit on top of the engine
// output: historical lost sales, ABC classes and the per-SKU summary.
package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andresuchdata/planify/backend-go/internal/domain"
)

// HistoricalLoss aggregates one SKU's cleaned observations per month. Lost
// units are the imputed quantities of rows whose recorded demand was zero.
func HistoricalLoss(sku string, cleaned []domain.DemandObservation, price decimal.Decimal, hasPrice bool) []domain.HistoricalLossRow {
	byMonth := make(map[time.Time]*domain.HistoricalLossRow)
	for _, o := range cleaned {
		m := domain.MonthStart(o.Date)
		row, ok := byMonth[m]
		if !ok {
			row = &domain.HistoricalLossRow{SKU: sku, Month: m, LostValue: decimal.Zero}
			byMonth[m] = row
		}
		row.DemandReal += o.RawQuantity
		row.DemandClean += o.QuantityNoOutlier
		if o.RawQuantity == 0 && o.QuantityNoOutlier > 0 {
			row.LostUnits += o.QuantityNoOutlier
		}
	}

	rows := make([]domain.HistoricalLossRow, 0, len(byMonth))
	for _, row := range byMonth {
		if hasPrice {
			row.LostValue = price.Mul(decimal.NewFromInt(int64(row.LostUnits)))
		}
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Month.Before(rows[j].Month) })
	return rows
}
