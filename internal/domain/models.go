// backend-go/internal/domain/models.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DemandObservation is one demand record for a SKU. The cleaned quantities
// are filled by the demand cleaner and never mutated afterwards.
type DemandObservation struct {
	SKU                string    `json:"sku" db:"sku"`
	Date               time.Time `json:"fecha" db:"fecha"`
	RawQuantity        float64   `json:"demanda" db:"demanda"`
	QuantityNoStockout int       `json:"demanda_sin_stockout" db:"demanda_sin_stockout"`
	QuantityNoOutlier  int       `json:"demanda_sin_outlier" db:"demanda_sin_outlier"`
}

// StockObservation is a monthly stock level from the historical stock feed.
type StockObservation struct {
	SKU      string    `json:"sku" db:"sku"`
	Month    time.Time `json:"mes" db:"mes"`
	Quantity int       `json:"stock" db:"stock"`
}

// CurrentStock is a row of the current stock snapshot.
type CurrentStock struct {
	SKU         string    `json:"sku" db:"sku"`
	Description string    `json:"descripcion" db:"descripcion"`
	Quantity    int       `json:"stock" db:"stock"`
	Date        time.Time `json:"fecha" db:"fecha"`
}

// ReplenishmentEvent is a planned incoming delivery. RawDate keeps the
// source text so that unparseable dates can be reported per SKU.
type ReplenishmentEvent struct {
	SKU      string    `json:"sku" db:"sku"`
	Date     time.Time `json:"fecha" db:"fecha"`
	Quantity int       `json:"cantidad" db:"cantidad"`
	RawDate  string    `json:"-" db:"-"`
}

// Valid reports whether the event carries a usable date.
func (e ReplenishmentEvent) Valid() bool {
	return !e.Date.IsZero()
}

// Product is a row of the product master.
type Product struct {
	SKU               string          `json:"sku" db:"sku"`
	Description       string          `json:"descripcion" db:"descripcion"`
	ManufacturingCost decimal.Decimal `json:"costo_fabricacion" db:"costo_fabricacion"`
	SalePrice         decimal.Decimal `json:"precio_venta" db:"precio_venta"`
	Category          string          `json:"categoria" db:"categoria"`
	HasPrice          bool            `json:"-" db:"-"`
}

// MonthlyDemand is the per-month aggregate the forecast engine works on.
type MonthlyDemand struct {
	SKU    string    `json:"sku"`
	Month  time.Time `json:"mes"`
	Actual int       `json:"demanda"`
	Clean  int       `json:"demanda_limpia"`
}

// ForecastPoint is one row of the forecast table.
type ForecastPoint struct {
	SKU           string         `json:"sku" db:"sku"`
	Month         time.Time      `json:"mes" db:"mes"`
	Segment       Segment        `json:"tipo_mes" db:"tipo_mes"`
	DemandActual  int            `json:"demanda" db:"demanda"`
	DemandClean   int            `json:"demanda_limpia" db:"demanda_limpia"`
	Forecast      *int           `json:"forecast" db:"forecast"`
	ForecastUpper *int           `json:"forecast_up" db:"forecast_up"`
	Method        ForecastMethod `json:"metodo_forecast" db:"metodo_forecast"`
	DPARolling    *float64       `json:"dpa_movil" db:"dpa_movil"`
	Fallback      bool           `json:"fallback" db:"fallback"`
}

// ForecastValue returns the forecast or 0 for historical rows.
func (p ForecastPoint) ForecastValue() int {
	if p.Forecast == nil {
		return 0
	}
	return *p.Forecast
}

// ForecastMetrics summarises backtest accuracy for a SKU.
type ForecastMetrics struct {
	SKU            string         `json:"sku" db:"sku"`
	Method         ForecastMethod `json:"metodo_forecast" db:"metodo_forecast"`
	MAPE           *float64       `json:"mape" db:"mape"`
	RMSE           *float64       `json:"rmse" db:"rmse"`
	LatestDPA      *float64       `json:"dpa_movil" db:"dpa_movil"`
	BacktestPoints int            `json:"backtest_points" db:"backtest_points"`
	FallbackPoints int            `json:"fallback_points" db:"fallback_points"`
}

// MethodScore is one row of the method comparison table.
type MethodScore struct {
	SKU      string         `json:"sku"`
	Method   ForecastMethod `json:"metodo"`
	MAPE     *float64       `json:"mape"`
	Points   int            `json:"puntos"`
	Eligible bool           `json:"elegible"`
	Chosen   bool           `json:"elegido"`
}

// InventoryPolicy holds the derived stocking parameters for a SKU.
type InventoryPolicy struct {
	SKU                  string  `json:"sku" db:"sku"`
	AvgMonthlyDemand     int     `json:"avg_monthly_demand" db:"avg_monthly_demand"`
	DemandStd            float64 `json:"demand_std" db:"demand_std"`
	SafetyStock          int     `json:"safety_stock" db:"safety_stock"`
	ReorderPointBase     float64 `json:"reorder_point_base" db:"reorder_point_base"`
	ReorderPoint         float64 `json:"reorder_point" db:"reorder_point"`
	AdjustedReorderPoint float64 `json:"adjusted_reorder_point" db:"adjusted_reorder_point"`
	EOQ                  float64 `json:"eoq" db:"eoq"`
	UnitsInTransit       int     `json:"units_in_transit" db:"units_in_transit"`
	LeadTimeMonths       int     `json:"lead_time_months" db:"lead_time_months"`
	Variant              string  `json:"variant" db:"variant"`
}

// PurchaseDecision is the outcome of a purchase evaluation.
type PurchaseDecision struct {
	SKU                  string         `json:"sku" db:"sku"`
	Action               PurchaseAction `json:"accion" db:"accion"`
	SuggestedQuantity    int            `json:"sugerido" db:"sugerido"`
	SimulatedEndingStock int            `json:"stock_final_simulado" db:"stock_final_simulado"`
	ThresholdUsed        float64        `json:"umbral" db:"umbral"`
	CurrentStock         int            `json:"stock_actual" db:"stock_actual"`
	UnitsInTransit       int            `json:"unidades_en_camino" db:"unidades_en_camino"`
	Reason               string         `json:"razon,omitempty" db:"razon"`
}

// StockProjectionRow is one month of the simulated stock trace.
type StockProjectionRow struct {
	SKU                  string          `json:"sku" db:"sku"`
	Month                time.Time       `json:"mes" db:"mes"`
	Forecast             int             `json:"forecast" db:"forecast"`
	ReplenishmentApplied int             `json:"repos_aplicadas" db:"repos_aplicadas"`
	StockStart           int             `json:"stock_inicial_mes" db:"stock_inicial_mes"`
	StockEnd             int             `json:"stock_final_mes" db:"stock_final_mes"`
	LostUnits            int             `json:"unidades_perdidas" db:"unidades_perdidas"`
	LostValue            decimal.Decimal `json:"perdida_proyectada_euros" db:"perdida_proyectada_euros"`
}

// HistoricalLossRow aggregates real, clean and lost demand per SKU and month.
type HistoricalLossRow struct {
	SKU         string          `json:"sku"`
	Month       time.Time       `json:"mes"`
	DemandReal  float64         `json:"demanda_real"`
	DemandClean int             `json:"demanda_limpia"`
	LostUnits   int             `json:"unidades_perdidas"`
	LostValue   decimal.Decimal `json:"valor_perdido_euros"`
}

// ABCClassification ranks SKUs by their share of trailing clean demand.
type ABCClassification struct {
	SKU         string   `json:"sku"`
	Description string   `json:"descripcion"`
	TotalDemand int      `json:"demanda_total"`
	Share       float64  `json:"participacion"`
	Cumulative  float64  `json:"acumulado"`
	Class       ABCClass `json:"clase_abc"`
}

// SKUSummary is the per-SKU business context row.
type SKUSummary struct {
	SKU                 string          `json:"sku"`
	AvgForecast         float64         `json:"forecast_promedio_mensual"`
	ProjectedStock      int             `json:"stock_proyectado"`
	UnitsToBuy          int             `json:"unidades_a_comprar"`
	HistoricalLostUnits int             `json:"unidades_perdidas"`
	HistoricalLostValue decimal.Decimal `json:"perdida_historica"`
	StockoutRate        float64         `json:"tasa_quiebre"`
	DemandReal          float64         `json:"demanda_real_12m"`
	DemandClean         int             `json:"demanda_limpia_12m"`
	ReorderPoint        float64         `json:"rop"`
	EOQ                 float64         `json:"eoq"`
	SafetyStock         int             `json:"safety_stock"`
	PurchaseCost        decimal.Decimal `json:"costo_compra"`
	UnitsInTransit      int             `json:"unidades_en_camino"`
	Action              PurchaseAction  `json:"accion"`
	Class               ABCClass        `json:"clase_abc"`
}

// PlanTotals are the aggregate figures across all SKUs.
type PlanTotals struct {
	TotalUnitsToBuy     int             `json:"total_unidades_a_comprar"`
	SKUsToBuy           int             `json:"total_skus_a_comprar"`
	TotalPurchaseCost   decimal.Decimal `json:"costo_total_compra"`
	TotalUnitsInTransit int             `json:"total_unidades_en_camino"`
}

// Dataset is the set of input tables of a planning run. Only Demand is
// mandatory.
type Dataset struct {
	Demand         []DemandObservation  `json:"demand"`
	StockHistory   []StockObservation   `json:"stock_history"`
	CurrentStock   []CurrentStock       `json:"current_stock"`
	Replenishments []ReplenishmentEvent `json:"replenishments"`
	Products       []Product            `json:"products"`
}

// PlanResult is the full output of a planning run. Every table has exactly
// one producing stage.
type PlanResult struct {
	RunID          string               `json:"run_id"`
	Fingerprint    string               `json:"fingerprint"`
	GeneratedAt    time.Time            `json:"generated_at"`
	LastMonth      time.Time            `json:"last_month"`
	AsOf           time.Time            `json:"as_of"`
	SKUs           []string             `json:"skus"`
	CleanedDemand  []DemandObservation  `json:"cleaned_demand"`
	Forecast       []ForecastPoint      `json:"forecast"`
	Metrics        []ForecastMetrics    `json:"metrics"`
	MethodScores   []MethodScore        `json:"method_scores"`
	Policies       []InventoryPolicy    `json:"policies"`
	Decisions      []PurchaseDecision   `json:"decisions"`
	Projection     []StockProjectionRow `json:"projection"`
	HistoricalLoss []HistoricalLossRow  `json:"historical_loss"`
	ABC            []ABCClassification  `json:"abc"`
	Summary        []SKUSummary         `json:"summary"`
	Totals         PlanTotals           `json:"totals"`
}

// UploadedFile represents an uploaded file for processing. Table names the
// input table explicitly; when empty it is detected from Filename.
type UploadedFile struct {
	Filename string
	Path     string
	Size     int64
	Table    string
}
