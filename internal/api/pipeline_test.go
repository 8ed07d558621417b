package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/energy-pipeline/internal/domain"
	"github.com/ashureev/energy-pipeline/internal/objstore"
	"github.com/ashureev/energy-pipeline/internal/store"
)

type simulatorFunc func(ctx context.Context) (string, error)

func (f simulatorFunc) Simulate(ctx context.Context) (string, error) { return f(ctx) }

type pipelineFixture struct {
	files  *objstore.LocalStore
	db     *store.SQLiteStore
	router chi.Router
}

func newPipelineFixture(t *testing.T, sim Simulator) *pipelineFixture {
	t.Helper()
	files, err := objstore.NewLocal(t.TempDir())
	require.NoError(t, err)
	db, err := store.NewSQLite(filepath.Join(t.TempDir(), "pipeline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	r := chi.NewRouter()
	NewPipelineHandler(sim, files, db).RegisterRoutes(r)
	NewHealthHandler(db).RegisterHealth(r)
	return &pipelineFixture{files: files, db: db, router: r}
}

func (f *pipelineFixture) get(path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestSimulateDataEndpoint(t *testing.T) {
	f := newPipelineFixture(t, simulatorFunc(func(context.Context) (string, error) {
		return "energy_data_1700000000.json", nil
	}))

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/simulatedata", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "energy_data_1700000000.json", body["filename"])
}

func TestSimulateDataEndpointFailure(t *testing.T) {
	f := newPipelineFixture(t, simulatorFunc(func(context.Context) (string, error) {
		return "", errors.New("bucket unavailable")
	}))

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/simulatedata", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "bucket unavailable", decode(t, rec)["detail"])
}

func TestGetFileEndpoint(t *testing.T) {
	f := newPipelineFixture(t, nil)
	require.NoError(t, f.files.Put(context.Background(), "energy_data_1.json", []byte(`[{"site_id":"site_alpha"}]`)))

	rec := f.get("/file/energy_data_1.json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"site_id":"site_alpha"}]`, rec.Body.String())

	rec = f.get("/file/missing.json")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode(t, rec)["detail"], "missing.json")

	rec = f.get("/file/..")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func seedRecords(t *testing.T, db *store.SQLiteStore) {
	t.Helper()
	require.NoError(t, db.UpsertRecords(context.Background(), []domain.EnergyRecord{
		{SiteID: "site_alpha", Timestamp: "2025-06-01T10:00:00.000000", EnergyGeneratedKWh: 50, EnergyConsumedKWh: 20, NetEnergyKWh: 30},
		{SiteID: "site_alpha", Timestamp: "2025-06-02T10:00:00.000000", EnergyGeneratedKWh: -5, EnergyConsumedKWh: 20, NetEnergyKWh: -25, Anomaly: true},
		{SiteID: "site_alpha", Timestamp: "2025-06-03T10:00:00.000000", EnergyGeneratedKWh: 10, EnergyConsumedKWh: 5, NetEnergyKWh: 5},
		{SiteID: "site_beta", Timestamp: "2025-06-01T10:00:00.000000", EnergyGeneratedKWh: 1, EnergyConsumedKWh: 1},
	}))
}

func TestRecordEndpoints(t *testing.T) {
	f := newPipelineFixture(t, nil)
	seedRecords(t, f.db)

	rec := f.get("/records?site_id=site_alpha")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["records"], 3)

	rec = f.get("/records?site_id=site_alpha&start=2025-06-02T00:00:00&end=2025-06-02T23:59:59")
	require.Equal(t, http.StatusOK, rec.Code)
	records := decode(t, rec)["records"].([]interface{})
	require.Len(t, records, 1)
	assert.Equal(t, true, records[0].(map[string]interface{})["anomaly"])

	rec = f.get("/records?site_id=site_alpha&start=2025-06-02")
	assert.Len(t, decode(t, rec)["records"], 2)

	rec = f.get("/records?site_id=site_alpha&start=yesterday")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.get("/records")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.get("/anomalies/site_alpha")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["anomalies"], 1)

	rec = f.get("/anomalies/site_gamma")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec)["anomalies"])

	rec = f.get("/all-records")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["records"], 4)
}

func TestHealthEndpoint(t *testing.T) {
	f := newPipelineFixture(t, nil)

	rec := f.get("/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])

	require.NoError(t, f.db.Close())
	rec = f.get("/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", decode(t, rec)["status"])
}
