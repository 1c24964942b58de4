package postgres

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS plan_runs (
	id              TEXT PRIMARY KEY,
	fingerprint     TEXT NOT NULL,
	status          TEXT NOT NULL,
	total_skus      INTEGER NOT NULL DEFAULT 0,
	processed_skus  INTEGER NOT NULL DEFAULT 0,
	fallback_points INTEGER NOT NULL DEFAULT 0,
	cache_hit       BOOLEAN NOT NULL DEFAULT FALSE,
	started_at      TIMESTAMPTZ NOT NULL,
	completed_at    TIMESTAMPTZ,
	error_message   TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_plan_runs_started_at ON plan_runs (started_at);
CREATE INDEX IF NOT EXISTS idx_plan_runs_fingerprint ON plan_runs (fingerprint);

CREATE TABLE IF NOT EXISTS plan_forecast (
	run_id          TEXT NOT NULL REFERENCES plan_runs (id) ON DELETE CASCADE,
	sku             TEXT NOT NULL,
	mes             DATE NOT NULL,
	tipo_mes        TEXT NOT NULL,
	demanda         INTEGER,
	demanda_limpia  INTEGER,
	forecast        INTEGER,
	forecast_up     INTEGER,
	metodo_forecast TEXT NOT NULL,
	dpa_movil       DOUBLE PRECISION,
	fallback        BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_plan_forecast_run_sku ON plan_forecast (run_id, sku);

CREATE TABLE IF NOT EXISTS plan_policies (
	run_id                 TEXT NOT NULL REFERENCES plan_runs (id) ON DELETE CASCADE,
	sku                    TEXT NOT NULL,
	avg_monthly_demand     INTEGER NOT NULL,
	demand_std             DOUBLE PRECISION NOT NULL,
	safety_stock           INTEGER NOT NULL,
	reorder_point_base     DOUBLE PRECISION NOT NULL,
	reorder_point          DOUBLE PRECISION NOT NULL,
	adjusted_reorder_point DOUBLE PRECISION NOT NULL,
	eoq                    DOUBLE PRECISION NOT NULL,
	units_in_transit       INTEGER NOT NULL,
	lead_time_months       INTEGER NOT NULL,
	variant                TEXT NOT NULL,
	PRIMARY KEY (run_id, sku)
);

CREATE TABLE IF NOT EXISTS plan_decisions (
	run_id               TEXT NOT NULL REFERENCES plan_runs (id) ON DELETE CASCADE,
	sku                  TEXT NOT NULL,
	accion               TEXT NOT NULL,
	sugerido             INTEGER NOT NULL,
	stock_final_simulado INTEGER NOT NULL,
	umbral               DOUBLE PRECISION NOT NULL,
	stock_actual         INTEGER NOT NULL,
	unidades_en_camino   INTEGER NOT NULL,
	razon                TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, sku)
);

CREATE TABLE IF NOT EXISTS plan_projection (
	run_id                   TEXT NOT NULL REFERENCES plan_runs (id) ON DELETE CASCADE,
	sku                      TEXT NOT NULL,
	mes                      DATE NOT NULL,
	forecast                 INTEGER NOT NULL,
	repos_aplicadas          INTEGER NOT NULL,
	stock_inicial_mes        INTEGER NOT NULL,
	stock_final_mes          INTEGER NOT NULL,
	unidades_perdidas        INTEGER NOT NULL,
	perdida_proyectada_euros NUMERIC(14, 2) NOT NULL,
	PRIMARY KEY (run_id, sku, mes)
);

CREATE TABLE IF NOT EXISTS plan_summary (
	run_id                    TEXT NOT NULL REFERENCES plan_runs (id) ON DELETE CASCADE,
	sku                       TEXT NOT NULL,
	forecast_promedio_mensual DOUBLE PRECISION NOT NULL,
	stock_proyectado          INTEGER NOT NULL,
	unidades_a_comprar        INTEGER NOT NULL,
	unidades_perdidas         INTEGER NOT NULL,
	perdida_historica         NUMERIC(14, 2) NOT NULL,
	tasa_quiebre              DOUBLE PRECISION NOT NULL,
	demanda_real_12m          DOUBLE PRECISION NOT NULL,
	demanda_limpia_12m        INTEGER NOT NULL,
	rop                       DOUBLE PRECISION NOT NULL,
	eoq                       DOUBLE PRECISION NOT NULL,
	safety_stock              INTEGER NOT NULL,
	costo_compra              NUMERIC(14, 2) NOT NULL,
	unidades_en_camino        INTEGER NOT NULL,
	accion                    TEXT NOT NULL,
	clase_abc                 TEXT NOT NULL,
	PRIMARY KEY (run_id, sku)
);
`

// EnsureSchema creates the planning tables when they do not exist yet
func EnsureSchema(ctx context.Context, db *DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
