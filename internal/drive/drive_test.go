package drive

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/andresuchdata/planify/backend-go/internal/domain"
	"github.com/andresuchdata/planify/backend-go/internal/ingest"
)

type fakeStore struct {
	files   []*File
	content map[string][]byte
	folders map[string]string
}

func (f *fakeStore) ListFiles(_ context.Context, folderID string) ([]*File, error) {
	return f.files, nil
}

func (f *fakeStore) DownloadFile(_ context.Context, fileID string, w io.Writer) error {
	data, ok := f.content[fileID]
	if !ok {
		return errors.New("no such file")
	}
	_, err := w.Write(data)
	return err
}

func (f *fakeStore) FindFolderByPath(_ context.Context, path string) (string, error) {
	if id, ok := f.folders[path]; ok {
		return id, nil
	}
	return "", ErrFolderNotFound
}

type recordingPlanner struct {
	tables []ingest.Table
}

func (p *recordingPlanner) Plan(ctx context.Context, sources []ingest.Source) (*domain.PlanResult, error) {
	for _, s := range sources {
		p.tables = append(p.tables, s.Table)
	}
	if _, err := ingest.Load(ctx, sources); err != nil {
		return nil, err
	}
	return &domain.PlanResult{RunID: "run-1", SKUs: []string{"A1"}}, nil
}

func workbook(t *testing.T, rows ...[]any) []byte {
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func newFakeStore(t *testing.T) *fakeStore {
	return &fakeStore{
		files: []*File{
			{ID: "1", Name: "demanda.csv"},
			{ID: "2", Name: "maestro.xlsx"},
			{ID: "3", Name: "notes.pdf"},
		},
		content: map[string][]byte{
			"1": []byte("sku,fecha,demanda\nA1,2024-01-10,5\n"),
			"2": workbook(t,
				[]any{"sku", "descripcion", "costo_fabricacion", "precio_venta", "categoria"},
				[]any{"A1", "Widget", 4, 9},
			),
		},
		folders: map[string]string{"planning/inputs": "folder-9"},
	}
}

func TestDownloadFolderCSV(t *testing.T) {
	dir := t.TempDir()
	d := NewDownloader(newFakeStore(t))

	paths, err := d.DownloadFolderCSV(context.Background(), DownloadOptions{FolderID: "f", DownloadDir: dir})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "demanda.csv"), filepath.Join(dir, "maestro.csv")}, paths)

	// the workbook is converted and removed
	_, err = os.Stat(filepath.Join(dir, "maestro.xlsx"))
	assert.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(filepath.Join(dir, "maestro.csv"))
	require.NoError(t, err)
	assert.Equal(t, "sku,descripcion,costo_fabricacion,precio_venta,categoria\nA1,Widget,4,9,\n", string(data))
}

func TestDownloadFolderRequiresDir(t *testing.T) {
	_, err := NewDownloader(newFakeStore(t)).DownloadFolderCSV(context.Background(), DownloadOptions{})
	assert.Error(t, err)
}

func TestImportFolder(t *testing.T) {
	planner := &recordingPlanner{}
	imp := NewImporter(NewDownloader(newFakeStore(t)), planner, t.TempDir())

	res, err := imp.ImportFolder(context.Background(), "folder-9")
	require.NoError(t, err)
	assert.Equal(t, "run-1", res.RunID)
	assert.ElementsMatch(t, []ingest.Table{ingest.TableDemand, ingest.TableProducts}, planner.tables)
}

func newRouter(t *testing.T, store *fakeStore) *mux.Router {
	router := mux.NewRouter()
	imp := NewImporter(NewDownloader(store), &recordingPlanner{}, t.TempDir())
	NewHandler(store, imp).RegisterRoutes(router)
	return router
}

func TestHandlerListFiles(t *testing.T) {
	router := newRouter(t, newFakeStore(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/drive/files?path=planning/inputs", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "demanda.csv")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/drive/files?path=missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerDownloadFile(t *testing.T) {
	router := newRouter(t, newFakeStore(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/drive/files/download?fileId=1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/drive/files/download", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerImportPlan(t *testing.T) {
	router := newRouter(t, newFakeStore(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/drive/plans?folderId=folder-9", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"run_id":"run-1"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/drive/plans", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerImportPlanSchemaError(t *testing.T) {
	store := newFakeStore(t)
	store.content["1"] = []byte("sku,demanda\nA1,5\n")
	router := newRouter(t, store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/drive/plans?folderId=folder-9", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing_columns")
}

func TestPickSheet(t *testing.T) {
	assert.Equal(t, "", pickSheet(nil, "maestro.xlsx"))
	assert.Equal(t, "Sheet1", pickSheet([]string{"Sheet1", "Notas"}, "/tmp/maestro.xlsx"))
	assert.Equal(t, "Maestro", pickSheet([]string{"Sheet1", "Maestro"}, "/tmp/maestro.xlsx"))
}

func TestBlankRow(t *testing.T) {
	assert.True(t, blank(nil))
	assert.True(t, blank([]string{"", "  "}))
	assert.False(t, blank([]string{"", "A1"}))
}
