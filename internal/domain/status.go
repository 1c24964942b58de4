package domain

import "strings"

// Segment labels the three kinds of forecast rows.
type Segment string

const (
	SegmentHistorical Segment = "histórico"
	SegmentBacktest   Segment = "backtest"
	SegmentProjection Segment = "proyección"
)

// PurchaseAction is the buy / no-buy outcome of a purchase evaluation.
type PurchaseAction string

const (
	ActionBuy   PurchaseAction = "Comprar"
	ActionNoBuy PurchaseAction = "No comprar"
)

// ForecastMethod names a forecasting method.
type ForecastMethod string

const (
	MethodMA4         ForecastMethod = "ma_4"
	MethodMA6         ForecastMethod = "ma_6"
	MethodWMA4        ForecastMethod = "wma_4"
	MethodWMA6        ForecastMethod = "wma_6"
	MethodSES         ForecastMethod = "ses"
	MethodHolt        ForecastMethod = "holt"
	MethodHoltWinters ForecastMethod = "holt_winters"
)

// ABCClass is the demand-share class of a SKU.
type ABCClass string

const (
	ClassA ABCClass = "A"
	ClassB ABCClass = "B"
	ClassC ABCClass = "C"
)

var segmentAliases = map[string]Segment{
	"historico":  SegmentHistorical,
	"histórico":  SegmentHistorical,
	"historical": SegmentHistorical,
	"backtest":   SegmentBacktest,
	"proyeccion": SegmentProjection,
	"proyección": SegmentProjection,
	"projection": SegmentProjection,
}

// ParseSegment accepts the Spanish labels with or without accents and the
// English names.
func ParseSegment(label string) (Segment, bool) {
	s, ok := segmentAliases[strings.ToLower(strings.TrimSpace(label))]
	return s, ok
}
