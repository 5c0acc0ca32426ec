package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aristath/hxzfactors/internal/domain"
	"github.com/aristath/hxzfactors/internal/modules/factors"
)

type mockRunReader struct {
	mock.Mock
}

func (m *mockRunReader) ListRuns(ctx context.Context, limit int) ([]factors.RunRecord, error) {
	args := m.Called(ctx, limit)
	runs, _ := args.Get(0).([]factors.RunRecord)
	return runs, args.Error(1)
}

func (m *mockRunReader) GetRun(ctx context.Context, id string) (*factors.RunRecord, error) {
	args := m.Called(ctx, id)
	run, _ := args.Get(0).(*factors.RunRecord)
	return run, args.Error(1)
}

func (m *mockRunReader) GetLatestRun(ctx context.Context) (*factors.RunRecord, error) {
	args := m.Called(ctx)
	run, _ := args.Get(0).(*factors.RunRecord)
	return run, args.Error(1)
}

func (m *mockRunReader) GetFactorSeries(ctx context.Context, runID string) (factors.Series, factors.Series, error) {
	args := m.Called(ctx, runID)
	return args.Get(0).(factors.Series), args.Get(1).(factors.Series), args.Error(2)
}

func (m *mockRunReader) GetPortfolioReturns(ctx context.Context, runID string, month domain.Month) ([]factors.PortfolioReturn, error) {
	args := m.Called(ctx, runID, month)
	ports, _ := args.Get(0).([]factors.PortfolioReturn)
	return ports, args.Error(1)
}

func (m *mockRunReader) GetClassification(ctx context.Context, runID string, month domain.Month) (*factors.ClassificationSnapshot, error) {
	args := m.Called(ctx, runID, month)
	snap, _ := args.Get(0).(*factors.ClassificationSnapshot)
	return snap, args.Error(1)
}

type mockRecomputer struct {
	mock.Mock
}

func (m *mockRecomputer) Recompute(ctx context.Context, workbook string) (*factors.RunRecord, error) {
	args := m.Called(ctx, workbook)
	run, _ := args.Get(0).(*factors.RunRecord)
	return run, args.Error(1)
}

var june2019 = domain.NewMonth(2019, time.June)

func sampleRun() *factors.RunRecord {
	return &factors.RunRecord{
		ID:         "run-1",
		Source:     "/data/DataSet.xlsx",
		Options:    factors.DefaultOptions(),
		Months:     2,
		FirstMonth: domain.NewMonth(2019, time.May),
		LastMonth:  june2019,
		CreatedAt:  time.Date(2019, 7, 1, 6, 0, 0, 0, time.UTC),
	}
}

func sampleSeries() (factors.Series, factors.Series) {
	inv := factors.Series{Dimension: factors.DimensionInvestment, Points: []factors.Point{
		{Month: domain.NewMonth(2019, time.May), Value: domain.Present(0.01)},
		{Month: june2019, Value: domain.Absent()},
	}}
	prof := factors.Series{Dimension: factors.DimensionProfitability, Points: []factors.Point{
		{Month: domain.NewMonth(2019, time.May), Value: domain.Present(-0.02)},
		{Month: june2019, Value: domain.Present(0.04)},
	}}
	return inv, prof
}

func setupRouter(runs *mockRunReader, rc *mockRecomputer) *chi.Mux {
	h := NewHandler(runs, rc, "/data", "/data/DataSet.xlsx", zerolog.New(nil).Level(zerolog.Disabled))
	router := chi.NewRouter()
	router.Route("/api", h.RegisterRoutes)
	return router
}

func serve(t *testing.T, router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "response has a data object")
	assert.Contains(t, resp, "metadata")
	return data
}

func TestHandleListRuns(t *testing.T) {
	runs := new(mockRunReader)
	runs.On("ListRuns", mock.Anything, 5).Return([]factors.RunRecord{*sampleRun()}, nil)

	rec := serve(t, setupRouter(runs, new(mockRecomputer)), http.MethodGet, "/api/factors/runs?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	data := decodeData(t, rec)
	assert.Equal(t, float64(1), data["count"])
	runs.AssertExpectations(t)
}

func TestHandleListRuns_Empty(t *testing.T) {
	runs := new(mockRunReader)
	runs.On("ListRuns", mock.Anything, 50).Return(nil, nil)

	rec := serve(t, setupRouter(runs, new(mockRecomputer)), http.MethodGet, "/api/factors/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, []interface{}{}, data["runs"])
}

func TestHandleGetRun(t *testing.T) {
	runs := new(mockRunReader)
	inv, prof := sampleSeries()
	runs.On("GetRun", mock.Anything, "run-1").Return(sampleRun(), nil)
	runs.On("GetFactorSeries", mock.Anything, "run-1").Return(inv, prof, nil)

	rec := serve(t, setupRouter(runs, new(mockRecomputer)), http.MethodGet, "/api/factors/runs/run-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeData(t, rec)
	investment := data["investment"].(map[string]interface{})
	points := investment["points"].([]interface{})
	require.Len(t, points, 2)
	assert.Equal(t, "2019-06", points[1].(map[string]interface{})["month"])
	assert.Nil(t, points[1].(map[string]interface{})["value"], "absent values render as null")

	summaries := data["summaries"].([]interface{})
	require.Len(t, summaries, 2)
	assert.Equal(t, float64(2), summaries[1].(map[string]interface{})["defined"])
}

func TestHandleGetRun_NotFound(t *testing.T) {
	runs := new(mockRunReader)
	runs.On("GetRun", mock.Anything, "missing").Return(nil, nil)

	rec := serve(t, setupRouter(runs, new(mockRecomputer)), http.MethodGet, "/api/factors/runs/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetLatestRun(t *testing.T) {
	t.Run("no runs", func(t *testing.T) {
		runs := new(mockRunReader)
		runs.On("GetLatestRun", mock.Anything).Return(nil, nil)

		rec := serve(t, setupRouter(runs, new(mockRecomputer)), http.MethodGet, "/api/factors/runs/latest", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("latest run", func(t *testing.T) {
		runs := new(mockRunReader)
		inv, prof := sampleSeries()
		runs.On("GetLatestRun", mock.Anything).Return(sampleRun(), nil)
		runs.On("GetFactorSeries", mock.Anything, "run-1").Return(inv, prof, nil)

		rec := serve(t, setupRouter(runs, new(mockRecomputer)), http.MethodGet, "/api/factors/runs/latest", "")
		require.Equal(t, http.StatusOK, rec.Code)
		data := decodeData(t, rec)
		assert.Equal(t, "run-1", data["run"].(map[string]interface{})["id"])
		runs.AssertNotCalled(t, "GetRun", mock.Anything, "latest")
	})

	t.Run("store failure", func(t *testing.T) {
		runs := new(mockRunReader)
		runs.On("GetLatestRun", mock.Anything).Return(nil, errors.New("disk full"))

		rec := serve(t, setupRouter(runs, new(mockRecomputer)), http.MethodGet, "/api/factors/runs/latest", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHandleGetPortfolios(t *testing.T) {
	runs := new(mockRunReader)
	runs.On("GetRun", mock.Anything, "run-1").Return(sampleRun(), nil)
	runs.On("GetPortfolioReturns", mock.Anything, "run-1", june2019).Return([]factors.PortfolioReturn{
		{Month: june2019, Label: "Small-Low_IA-Low_ROE", Members: 2, Contributing: 2, TotalWeight: 300, Return: domain.Present(0.01)},
		{Month: june2019, Label: "Big-High_IA-Low_ROE", Return: domain.Absent()},
	}, nil)
	router := setupRouter(runs, new(mockRecomputer))

	rec := serve(t, router, http.MethodGet, "/api/factors/runs/run-1/portfolios?month=2019-06", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	ports := data["portfolios"].([]interface{})
	require.Len(t, ports, 2)
	assert.Nil(t, ports[1].(map[string]interface{})["return"])

	testCases := []struct {
		name   string
		target string
		status int
	}{
		{name: "missing month", target: "/api/factors/runs/run-1/portfolios", status: http.StatusBadRequest},
		{name: "malformed month", target: "/api/factors/runs/run-1/portfolios?month=June", status: http.StatusBadRequest},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.status, serve(t, router, http.MethodGet, tc.target, "").Code)
		})
	}
}

func TestHandleGetPortfolios_MonthNotInRun(t *testing.T) {
	runs := new(mockRunReader)
	month := domain.NewMonth(2030, time.January)
	runs.On("GetRun", mock.Anything, "run-1").Return(sampleRun(), nil)
	runs.On("GetPortfolioReturns", mock.Anything, "run-1", month).Return(nil, nil)

	rec := serve(t, setupRouter(runs, new(mockRecomputer)), http.MethodGet, "/api/factors/runs/run-1/portfolios?month=2030-01", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetClassification(t *testing.T) {
	runs := new(mockRunReader)
	runs.On("GetRun", mock.Anything, "run-1").Return(sampleRun(), nil)
	runs.On("GetClassification", mock.Anything, "run-1", june2019).Return(&factors.ClassificationSnapshot{
		Month:          june2019,
		FormationMonth: june2019,
		SizeMedian:     1095,
		Eligible:       1,
		Labels:         map[string]string{"S01": "Small-Low_IA-Mid_ROE"},
	}, nil)

	rec := serve(t, setupRouter(runs, new(mockRecomputer)), http.MethodGet, "/api/factors/runs/run-1/classification?month=2019-06", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	cls := data["classification"].(map[string]interface{})
	assert.Equal(t, "2019-06", cls["formation_month"])
	assert.Equal(t, "Small-Low_IA-Mid_ROE", cls["labels"].(map[string]interface{})["S01"])
}

func TestHandleRecompute(t *testing.T) {
	testCases := []struct {
		name     string
		body     string
		workbook string
		err      error
		status   int
	}{
		{name: "default workbook", body: "", workbook: "/data/DataSet.xlsx", status: http.StatusCreated},
		{name: "named workbook", body: `{"workbook":"SPX.xlsx"}`, workbook: "/data/SPX.xlsx", status: http.StatusCreated},
		{name: "in progress", workbook: "/data/DataSet.xlsx", err: factors.ErrRecomputeInProgress, status: http.StatusConflict},
		{
			name:     "misaligned inputs",
			workbook: "/data/DataSet.xlsx",
			err:      fmt.Errorf("failed to compute factors: %w", domain.NewAlignmentError("roe", []string{"S07"}, nil)),
			status:   http.StatusUnprocessableEntity,
		},
		{name: "load failure", workbook: "/data/DataSet.xlsx", err: errors.New("no such file"), status: http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rc := new(mockRecomputer)
			if tc.err != nil {
				rc.On("Recompute", mock.Anything, tc.workbook).Return(nil, tc.err)
			} else {
				rc.On("Recompute", mock.Anything, tc.workbook).Return(sampleRun(), nil)
			}

			rec := serve(t, setupRouter(new(mockRunReader), rc), http.MethodPost, "/api/factors/runs", tc.body)
			assert.Equal(t, tc.status, rec.Code)
			rc.AssertExpectations(t)
		})
	}
}

func TestHandleRecompute_RejectsPaths(t *testing.T) {
	rc := new(mockRecomputer)
	router := setupRouter(new(mockRunReader), rc)

	for _, body := range []string{`{"workbook":"../etc/passwd.xlsx"}`, `{"workbook":"data.csv"}`, `{not json`} {
		rec := serve(t, router, http.MethodPost, "/api/factors/runs", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	rc.AssertNotCalled(t, "Recompute", mock.Anything, mock.Anything)
}

func TestRegisterRoutes(t *testing.T) {
	h := NewHandler(new(mockRunReader), new(mockRecomputer), "/data", "/data/DataSet.xlsx", zerolog.Nop())
	router := chi.NewRouter()

	assert.NotPanics(t, func() {
		h.RegisterRoutes(router)
	})
}
