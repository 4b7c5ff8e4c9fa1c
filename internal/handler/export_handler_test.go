package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"edubrief/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/assert/v2"
)

type fakeExportLogStore struct {
	latest  *model.ExportRecord
	history []model.ExportRecord
	total   int
	err     error
}

func (f *fakeExportLogStore) GetLatest(ctx context.Context, track string) (*model.ExportRecord, error) {
	return f.latest, f.err
}

func (f *fakeExportLogStore) GetHistory(ctx context.Context, track string, limit, offset int) ([]model.ExportRecord, error) {
	return f.history, f.err
}

func (f *fakeExportLogStore) GetTotal(ctx context.Context, track string) (int, error) {
	return f.total, f.err
}

func newExportRouter(store ExportLogStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewExportHandler(store)
	r.GET("/api/review/exports", h.GetExportHistory)
	r.GET("/api/review/exports/latest", h.GetLatestExport)
	return r
}

func TestGetLatestExport(t *testing.T) {
	store := &fakeExportLogStore{
		latest: &model.ExportRecord{
			ID: 3, ReportTrack: model.TrackZongbao, Period: 45, TotalPeriod: 312,
			Count: 18, ExportedBy: "editor", ExportedAt: time.Now(),
		},
	}
	r := newExportRouter(store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/review/exports/latest?track=zongbao", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var res ExportRecordResponse
	json.Unmarshal(w.Body.Bytes(), &res)
	assert.Equal(t, 45, res.Period)
	assert.Equal(t, 312, res.TotalPeriod)
	assert.Equal(t, "editor", res.ExportedBy)
}

func TestGetLatestExport_None(t *testing.T) {
	r := newExportRouter(&fakeExportLogStore{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/review/exports/latest", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetExportHistory(t *testing.T) {
	store := &fakeExportLogStore{
		history: []model.ExportRecord{
			{ID: 2, ReportTrack: model.TrackWanbao, Period: 40, ExportedAt: time.Now()},
			{ID: 1, ReportTrack: model.TrackWanbao, Period: 39, ExportedAt: time.Now()},
		},
		total: 2,
	}
	r := newExportRouter(store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/review/exports?track=wanbao", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var res ExportHistoryResponse
	json.Unmarshal(w.Body.Bytes(), &res)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 2, len(res.Exports))
	assert.Equal(t, 40, res.Exports[0].Period)
}
