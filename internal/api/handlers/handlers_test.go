package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/planify/backend-go/internal/pipeline"
	"github.com/andresuchdata/planify/backend-go/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) *gin.Engine {
	svc := service.NewPlanningService(pipeline.NewOrchestrator(pipeline.DefaultConfig()))
	plans := NewPlanHandler(svc, t.TempDir())
	analysis := NewAnalysisHandler(svc)

	r := gin.New()
	r.POST("/plans", plans.CreatePlan)
	r.GET("/plans/:id", plans.GetPlan)
	r.GET("/plans/:id/:table", plans.GetPlanTable)
	runs := NewRunHandler(svc)
	r.GET("/runs", runs.ListRuns)
	r.GET("/metrics", runs.Metrics)
	r.POST("/forecast/predict", analysis.PredictForecast)
	r.POST("/inventory/analyze", analysis.AnalyzeInventory)
	r.POST("/purchase/evaluate", analysis.EvaluatePurchase)
	return r
}

type part struct {
	field, filename, content string
}

func multipartRequest(t *testing.T, parts ...part) *http.Request {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, p := range parts {
		fw, err := w.CreateFormFile(p.field, p.filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(p.content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/plans", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func demandCSV(sku string, values ...int) string {
	var b strings.Builder
	b.WriteString("sku,fecha,demanda\n")
	for i, v := range values {
		fmt.Fprintf(&b, "%s,2024-%02d-15,%d\n", sku, i+1, v)
	}
	return b.String()
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func jsonRequest(t *testing.T, path string, v any) *http.Request {
	body, err := json.Marshal(v)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestCreateAndFetchPlan(t *testing.T) {
	r := newTestRouter(t)

	w := serve(r, multipartRequest(t, part{"files", "demanda.csv", demandCSV("A1", 10, 10, 10, 10, 10, 10, 10, 10)}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created planSummaryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.RunID)
	assert.Equal(t, 1, created.SKUs)
	assert.Equal(t, "2024-09", created.AsOf)
	require.Len(t, created.Summary, 1)
	assert.Equal(t, "A1", created.Summary[0].SKU)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/plans/"+created.RunID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var fetched planSummaryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fetched))
	assert.Equal(t, created.RunID, fetched.RunID)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/plans/"+created.RunID+"/forecast", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "A1")

	w = serve(r, httptest.NewRequest(http.MethodGet, "/plans/"+created.RunID+"/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreatePlanWithTableField(t *testing.T) {
	r := newTestRouter(t)

	w := serve(r, multipartRequest(t, part{"demanda", "export.csv", demandCSV("B2", 4, 6, 5, 5, 4, 6, 5, 5)}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestCreatePlanErrors(t *testing.T) {
	r := newTestRouter(t)

	t.Run("missing columns", func(t *testing.T) {
		w := serve(r, multipartRequest(t, part{"files", "demanda.csv", "sku,cantidad\nA1,3\n"}))
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "demanda", body["table"])
		assert.NotEmpty(t, body["missing_columns"])
	})

	t.Run("unknown file", func(t *testing.T) {
		w := serve(r, multipartRequest(t, part{"files", "notes.csv", "a,b\n1,2\n"}))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("no files", func(t *testing.T) {
		w := serve(r, multipartRequest(t))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("not multipart", func(t *testing.T) {
		w := serve(r, httptest.NewRequest(http.MethodPost, "/plans", strings.NewReader("x")))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetUnknownPlan(t *testing.T) {
	r := newTestRouter(t)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/plans/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPredictForecastEndpoint(t *testing.T) {
	r := newTestRouter(t)

	history := make([]map[string]any, 0, 8)
	for m := 1; m <= 8; m++ {
		history = append(history, map[string]any{"mes": fmt.Sprintf("2024-%02d", m), "demanda": 10})
	}

	w := serve(r, jsonRequest(t, "/forecast/predict", map[string]any{
		"product_id":       "A1",
		"historical_data":  history,
		"forecast_horizon": 3,
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp service.ForecastResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "A1", resp.ProductID)
	// 8 historical, 4 backtest, 3 projection
	assert.Len(t, resp.Forecast, 15)

	w = serve(r, jsonRequest(t, "/forecast/predict", map[string]any{"product_id": "A1"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(r, jsonRequest(t, "/forecast/predict", map[string]any{
		"product_id":      "A1",
		"historical_data": []map[string]any{{"mes": "soon", "demanda": 1}},
	}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEvaluatePurchaseEndpoint(t *testing.T) {
	r := newTestRouter(t)

	w := serve(r, jsonRequest(t, "/purchase/evaluate", map[string]any{
		"sku":           "A1",
		"current_stock": 0,
		"as_of":         "2025-01",
		"policy":        map[string]any{"avg_monthly_demand": 10, "safety_stock": 5, "eoq": 30},
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "A1")

	w = serve(r, jsonRequest(t, "/purchase/evaluate", map[string]any{"sku": "A1", "as_of": "later"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunEndpoints(t *testing.T) {
	r := newTestRouter(t)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/runs", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/runs?days=-1", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(r, multipartRequest(t, part{"files", "demanda.csv", demandCSV("A1", 10, 10, 10, 10, 10, 10, 10, 10)}))
	require.Equal(t, http.StatusCreated, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"skus_processed":1`)
}
