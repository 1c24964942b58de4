package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/planify/backend-go/internal/domain"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return Wrap(sqlx.NewDb(raw, "sqlmock")), mock
}

func smallPlan() *domain.PlanResult {
	ten := 10
	month := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	return &domain.PlanResult{
		RunID: "run-1",
		SKUs:  []string{"A1"},
		Forecast: []domain.ForecastPoint{
			{SKU: "A1", Month: month, Segment: domain.SegmentProjection, Forecast: &ten, ForecastUpper: &ten, Method: domain.MethodMA4},
		},
		Policies:  []domain.InventoryPolicy{{SKU: "A1", AvgMonthlyDemand: 10, SafetyStock: 5, Variant: "historical"}},
		Decisions: []domain.PurchaseDecision{{SKU: "A1", Action: domain.ActionBuy, SuggestedQuantity: 30}},
		Summary:   []domain.SKUSummary{{SKU: "A1", UnitsToBuy: 20, PurchaseCost: decimal.NewFromInt(80), Action: domain.ActionBuy, Class: domain.ClassA}},
	}
}

func expectClears(mock sqlmock.Sqlmock) {
	for _, table := range []string{"plan_forecast", "plan_policies", "plan_decisions", "plan_projection", "plan_summary"} {
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM " + table)).
			WithArgs("run-1").
			WillReturnResult(sqlmock.NewResult(0, 0))
	}
}

func TestSavePlan(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPlanRepository(db)

	mock.ExpectBegin()
	expectClears(mock)
	mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO plan_forecast")).ExpectExec().
		WithArgs("run-1", "A1", sqlmock.AnyArg(), "proyección", nil, nil, 10, 10, "ma_4", nil, false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO plan_policies")).ExpectExec().
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO plan_decisions")).ExpectExec().
		WithArgs("run-1", "A1", "Comprar", 30, 0, 0.0, 0, 0, "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO plan_summary")).ExpectExec().
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.SavePlan(context.Background(), smallPlan()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSavePlanRollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPlanRepository(db)

	mock.ExpectBegin()
	expectClears(mock)
	mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO plan_forecast")).ExpectExec().
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.SavePlan(context.Background(), smallPlan())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSavePlanRequiresRunID(t *testing.T) {
	db, _ := newMockDB(t)
	res := smallPlan()
	res.RunID = ""
	assert.Error(t, NewPlanRepository(db).SavePlan(context.Background(), res))
}

func TestGetSummaries(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPlanRepository(db)

	columns := []string{
		"sku", "forecast_promedio_mensual", "stock_proyectado", "unidades_a_comprar",
		"unidades_perdidas", "perdida_historica", "tasa_quiebre", "demanda_real_12m", "demanda_limpia_12m",
		"rop", "eoq", "safety_stock", "costo_compra", "unidades_en_camino", "accion", "clase_abc",
	}
	mock.ExpectQuery(regexp.QuoteMeta("FROM plan_summary")).
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("A1", 10.5, 12, 20, 3, "27.00", 4.17, 120.0, 118, 50.0, 30.0, 5, "80.00", 0, "Comprar", "A"))

	got, err := repo.GetSummaries(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A1", got[0].SKU)
	assert.Equal(t, domain.ActionBuy, got[0].Action)
	assert.Equal(t, domain.ClassA, got[0].Class)
	assert.True(t, got[0].PurchaseCost.Equal(decimal.NewFromInt(80)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDecisions(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPlanRepository(db)

	columns := []string{"sku", "accion", "sugerido", "stock_final_simulado", "umbral", "stock_actual", "unidades_en_camino", "razon"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM plan_decisions")).
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows(columns).AddRow("A1", "No comprar", 0, 40, 25.0, 40, 0, "Stock suficiente"))

	got, err := repo.GetDecisions(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.ActionNoBuy, got[0].Action)
	assert.Equal(t, 25.0, got[0].ThresholdUsed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS plan_runs")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, EnsureSchema(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}
