package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/planify/backend-go/internal/domain"
)

type planRepository struct {
	db *DB
}

func NewPlanRepository(db *DB) *planRepository {
	return &planRepository{db: db}
}

// SavePlan writes the forecast, policy, decision, projection and summary
// tables of a run in one transaction. Rows of a previous save of the same
// run are replaced.
func (r *planRepository) SavePlan(ctx context.Context, res *domain.PlanResult) error {
	if res.RunID == "" {
		return fmt.Errorf("plan has no run id")
	}

	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		// 1. Clear earlier rows of the run
		for _, table := range []string{"plan_forecast", "plan_policies", "plan_decisions", "plan_projection", "plan_summary"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE run_id = $1", res.RunID); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}

		// 2. Forecast rows
		err := insertRows(ctx, tx, `
			INSERT INTO plan_forecast (
				run_id, sku, mes, tipo_mes, demanda, demanda_limpia,
				forecast, forecast_up, metodo_forecast, dpa_movil, fallback
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, len(res.Forecast), func(i int) []any {
			p := res.Forecast[i]
			var demand, clean *int
			if p.Segment != domain.SegmentProjection {
				demand, clean = &p.DemandActual, &p.DemandClean
			}
			return []any{
				res.RunID, p.SKU, p.Month, string(p.Segment), demand, clean,
				p.Forecast, p.ForecastUpper, string(p.Method), p.DPARolling, p.Fallback,
			}
		})
		if err != nil {
			return err
		}

		// 3. Inventory policies
		err = insertRows(ctx, tx, `
			INSERT INTO plan_policies (
				run_id, sku, avg_monthly_demand, demand_std, safety_stock, reorder_point_base,
				reorder_point, adjusted_reorder_point, eoq, units_in_transit, lead_time_months, variant
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, len(res.Policies), func(i int) []any {
			p := res.Policies[i]
			return []any{
				res.RunID, p.SKU, p.AvgMonthlyDemand, p.DemandStd, p.SafetyStock, p.ReorderPointBase,
				p.ReorderPoint, p.AdjustedReorderPoint, p.EOQ, p.UnitsInTransit, p.LeadTimeMonths, p.Variant,
			}
		})
		if err != nil {
			return err
		}

		// 4. Purchase decisions
		err = insertRows(ctx, tx, `
			INSERT INTO plan_decisions (
				run_id, sku, accion, sugerido, stock_final_simulado,
				umbral, stock_actual, unidades_en_camino, razon
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, len(res.Decisions), func(i int) []any {
			d := res.Decisions[i]
			return []any{
				res.RunID, d.SKU, string(d.Action), d.SuggestedQuantity, d.SimulatedEndingStock,
				d.ThresholdUsed, d.CurrentStock, d.UnitsInTransit, d.Reason,
			}
		})
		if err != nil {
			return err
		}

		// 5. Stock projection
		err = insertRows(ctx, tx, `
			INSERT INTO plan_projection (
				run_id, sku, mes, forecast, repos_aplicadas, stock_inicial_mes,
				stock_final_mes, unidades_perdidas, perdida_proyectada_euros
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, len(res.Projection), func(i int) []any {
			p := res.Projection[i]
			return []any{
				res.RunID, p.SKU, p.Month, p.Forecast, p.ReplenishmentApplied, p.StockStart,
				p.StockEnd, p.LostUnits, p.LostValue,
			}
		})
		if err != nil {
			return err
		}

		// 6. Business summary
		err = insertRows(ctx, tx, `
			INSERT INTO plan_summary (
				run_id, sku, forecast_promedio_mensual, stock_proyectado, unidades_a_comprar,
				unidades_perdidas, perdida_historica, tasa_quiebre, demanda_real_12m, demanda_limpia_12m,
				rop, eoq, safety_stock, costo_compra, unidades_en_camino, accion, clase_abc
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		`, len(res.Summary), func(i int) []any {
			s := res.Summary[i]
			return []any{
				res.RunID, s.SKU, s.AvgForecast, s.ProjectedStock, s.UnitsToBuy,
				s.HistoricalLostUnits, s.HistoricalLostValue, s.StockoutRate, s.DemandReal, s.DemandClean,
				s.ReorderPoint, s.EOQ, s.SafetyStock, s.PurchaseCost, s.UnitsInTransit, string(s.Action), string(s.Class),
			}
		})
		if err != nil {
			return err
		}

		log.Info().Str("run_id", res.RunID).Int("skus", len(res.SKUs)).Int("forecast_rows", len(res.Forecast)).
			Msg("plan persisted")
		return nil
	})
}

func insertRows(ctx context.Context, tx *sqlx.Tx, query string, n int, args func(i int) []any) error {
	if n == 0 {
		return nil
	}

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", i, err)
		}
	}
	return nil
}

func (r *planRepository) GetSummaries(ctx context.Context, runID string) ([]domain.SKUSummary, error) {
	query := `
		SELECT sku, forecast_promedio_mensual, stock_proyectado, unidades_a_comprar,
		       unidades_perdidas, perdida_historica, tasa_quiebre, demanda_real_12m, demanda_limpia_12m,
		       rop, eoq, safety_stock, costo_compra, unidades_en_camino, accion, clase_abc
		FROM plan_summary
		WHERE run_id = $1
		ORDER BY sku
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer rows.Close()

	var out []domain.SKUSummary
	for rows.Next() {
		var s domain.SKUSummary
		if err := rows.Scan(
			&s.SKU, &s.AvgForecast, &s.ProjectedStock, &s.UnitsToBuy,
			&s.HistoricalLostUnits, &s.HistoricalLostValue, &s.StockoutRate, &s.DemandReal, &s.DemandClean,
			&s.ReorderPoint, &s.EOQ, &s.SafetyStock, &s.PurchaseCost, &s.UnitsInTransit, &s.Action, &s.Class,
		); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		out = append(out, s)
	}

	return out, rows.Err()
}

func (r *planRepository) GetDecisions(ctx context.Context, runID string) ([]domain.PurchaseDecision, error) {
	query := `
		SELECT sku, accion, sugerido, stock_final_simulado, umbral,
		       stock_actual, unidades_en_camino, razon
		FROM plan_decisions
		WHERE run_id = $1
		ORDER BY sku
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	var out []domain.PurchaseDecision
	for rows.Next() {
		var d domain.PurchaseDecision
		if err := rows.Scan(
			&d.SKU, &d.Action, &d.SuggestedQuantity, &d.SimulatedEndingStock, &d.ThresholdUsed,
			&d.CurrentStock, &d.UnitsInTransit, &d.Reason,
		); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		out = append(out, d)
	}

	return out, rows.Err()
}
