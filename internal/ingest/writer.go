package ingest

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/andresuchdata/planify/backend-go/internal/domain"
)

// OutputTable is a named CSV rendering of one plan table.
type OutputTable struct {
	Name  string
	Write func(w io.Writer) error
}

// OutputTables lists every table of a plan result in a stable order.
func OutputTables(res *domain.PlanResult) []OutputTable {
	return []OutputTable{
		{"demanda_limpia", func(w io.Writer) error { return WriteCleanedDemand(w, res.CleanedDemand) }},
		{"forecast", func(w io.Writer) error { return WriteForecast(w, res.Forecast) }},
		{"metricas_forecast", func(w io.Writer) error { return WriteMetrics(w, res.Metrics) }},
		{"comparacion_metodos", func(w io.Writer) error { return WriteMethodScores(w, res.MethodScores) }},
		{"politica_inventario", func(w io.Writer) error { return WritePolicies(w, res.Policies) }},
		{"decisiones_compra", func(w io.Writer) error { return WriteDecisions(w, res.Decisions) }},
		{"proyeccion_stock", func(w io.Writer) error { return WriteProjection(w, res.Projection) }},
		{"perdidas_historicas", func(w io.Writer) error { return WriteHistoricalLoss(w, res.HistoricalLoss) }},
		{"clasificacion_abc", func(w io.Writer) error { return WriteABC(w, res.ABC) }},
		{"resumen_sku", func(w io.Writer) error { return WriteSummary(w, res.Summary) }},
	}
}

// FindOutputTable looks up a table by name.
func FindOutputTable(res *domain.PlanResult, name string) (OutputTable, bool) {
	for _, t := range OutputTables(res) {
		if t.Name == name {
			return t, true
		}
	}
	return OutputTable{}, false
}

func writeRows(w io.Writer, header []string, n int, record func(i int) []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := cw.Write(record(i)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCleanedDemand writes the demand table with the cleaned columns.
func WriteCleanedDemand(w io.Writer, rows []domain.DemandObservation) error {
	header := []string{"sku", "fecha", "demanda", "demanda_sin_stockout", "demanda_sin_outlier"}
	return writeRows(w, header, len(rows), func(i int) []string {
		r := rows[i]
		return []string{r.SKU, formatDate(r.Date), formatFloat(r.RawQuantity), itoa(r.QuantityNoStockout), itoa(r.QuantityNoOutlier)}
	})
}

// WriteForecast writes the forecast table.
func WriteForecast(w io.Writer, rows []domain.ForecastPoint) error {
	header := []string{"sku", "mes", "demanda", "demanda_limpia", "forecast", "forecast_up", "tipo_mes", "dpa_movil", "metodo_forecast"}
	return writeRows(w, header, len(rows), func(i int) []string {
		r := rows[i]
		demand, clean := itoa(r.DemandActual), itoa(r.DemandClean)
		if r.Segment == domain.SegmentProjection {
			demand, clean = "", ""
		}
		return []string{
			r.SKU, domain.FormatMonth(r.Month), demand, clean,
			optInt(r.Forecast), optInt(r.ForecastUpper), string(r.Segment),
			optFloat(r.DPARolling), string(r.Method),
		}
	})
}

// WriteMetrics writes the per-SKU accuracy table.
func WriteMetrics(w io.Writer, rows []domain.ForecastMetrics) error {
	header := []string{"sku", "metodo_forecast", "mape", "rmse", "dpa_movil", "puntos_backtest", "puntos_fallback"}
	return writeRows(w, header, len(rows), func(i int) []string {
		r := rows[i]
		return []string{r.SKU, string(r.Method), optFloat(r.MAPE), optFloat(r.RMSE), optFloat(r.LatestDPA), itoa(r.BacktestPoints), itoa(r.FallbackPoints)}
	})
}

// WriteMethodScores writes the method comparison table.
func WriteMethodScores(w io.Writer, rows []domain.MethodScore) error {
	header := []string{"sku", "metodo", "mape", "puntos", "elegible", "elegido"}
	return writeRows(w, header, len(rows), func(i int) []string {
		r := rows[i]
		return []string{r.SKU, string(r.Method), optFloat(r.MAPE), itoa(r.Points), strconv.FormatBool(r.Eligible), strconv.FormatBool(r.Chosen)}
	})
}

// WritePolicies writes the inventory policy table.
func WritePolicies(w io.Writer, rows []domain.InventoryPolicy) error {
	header := []string{
		"sku", "avg_monthly_demand", "demand_std", "safety_stock", "reorder_point_base", "reorder_point",
		"adjusted_reorder_point", "eoq", "units_in_transit", "lead_time_months", "variant",
	}
	return writeRows(w, header, len(rows), func(i int) []string {
		r := rows[i]
		return []string{
			r.SKU, itoa(r.AvgMonthlyDemand), formatFloat(r.DemandStd), itoa(r.SafetyStock),
			formatFloat(r.ReorderPointBase), formatFloat(r.ReorderPoint), formatFloat(r.AdjustedReorderPoint),
			formatFloat(r.EOQ), itoa(r.UnitsInTransit), itoa(r.LeadTimeMonths), r.Variant,
		}
	})
}

// WriteDecisions writes the purchase decisions.
func WriteDecisions(w io.Writer, rows []domain.PurchaseDecision) error {
	header := []string{"sku", "accion", "sugerido", "stock_final_simulado", "umbral", "stock_actual", "unidades_en_camino", "razon"}
	return writeRows(w, header, len(rows), func(i int) []string {
		r := rows[i]
		return []string{
			r.SKU, string(r.Action), itoa(r.SuggestedQuantity), itoa(r.SimulatedEndingStock),
			formatFloat(r.ThresholdUsed), itoa(r.CurrentStock), itoa(r.UnitsInTransit), r.Reason,
		}
	})
}

// WriteProjection writes the consolidated stock projection.
func WriteProjection(w io.Writer, rows []domain.StockProjectionRow) error {
	header := []string{"sku", "mes", "forecast", "repos_aplicadas", "stock_inicial_mes", "stock_final_mes", "unidades_perdidas", "perdida_proyectada_euros"}
	return writeRows(w, header, len(rows), func(i int) []string {
		r := rows[i]
		return []string{
			r.SKU, domain.FormatMonth(r.Month), itoa(r.Forecast), itoa(r.ReplenishmentApplied),
			itoa(r.StockStart), itoa(r.StockEnd), itoa(r.LostUnits), r.LostValue.StringFixed(2),
		}
	})
}

// WriteHistoricalLoss writes the monthly historical loss table.
func WriteHistoricalLoss(w io.Writer, rows []domain.HistoricalLossRow) error {
	header := []string{"sku", "mes", "demanda_real", "demanda_limpia", "unidades_perdidas", "valor_perdido_euros"}
	return writeRows(w, header, len(rows), func(i int) []string {
		r := rows[i]
		return []string{r.SKU, domain.FormatMonth(r.Month), formatFloat(r.DemandReal), itoa(r.DemandClean), itoa(r.LostUnits), r.LostValue.StringFixed(2)}
	})
}

// WriteABC writes the ABC classification.
func WriteABC(w io.Writer, rows []domain.ABCClassification) error {
	header := []string{"sku", "descripcion", "demanda_total", "participacion", "acumulado", "clase_abc"}
	return writeRows(w, header, len(rows), func(i int) []string {
		r := rows[i]
		return []string{r.SKU, r.Description, itoa(r.TotalDemand), formatFloat(r.Share), formatFloat(r.Cumulative), string(r.Class)}
	})
}

// WriteSummary writes the per-SKU business summary.
func WriteSummary(w io.Writer, rows []domain.SKUSummary) error {
	header := []string{
		"sku", "forecast_promedio_mensual", "stock_proyectado", "unidades_a_comprar", "unidades_perdidas",
		"perdida_historica", "tasa_quiebre", "demanda_real_12m", "demanda_limpia_12m", "rop", "eoq",
		"safety_stock", "costo_compra", "unidades_en_camino", "accion", "clase_abc",
	}
	return writeRows(w, header, len(rows), func(i int) []string {
		r := rows[i]
		return []string{
			r.SKU, formatFloat(r.AvgForecast), itoa(r.ProjectedStock), itoa(r.UnitsToBuy), itoa(r.HistoricalLostUnits),
			r.HistoricalLostValue.StringFixed(2), formatFloat(r.StockoutRate), formatFloat(r.DemandReal), itoa(r.DemandClean),
			formatFloat(r.ReorderPoint), formatFloat(r.EOQ), itoa(r.SafetyStock), r.PurchaseCost.StringFixed(2),
			itoa(r.UnitsInTransit), string(r.Action), string(r.Class),
		}
	})
}

func itoa(v int) string { return strconv.Itoa(v) }

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func optFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
