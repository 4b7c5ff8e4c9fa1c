package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"edubrief/internal/model"

	"github.com/gin-gonic/gin"
)

type ExportLogStore interface {
	GetLatest(ctx context.Context, track string) (*model.ExportRecord, error)
	GetHistory(ctx context.Context, track string, limit, offset int) ([]model.ExportRecord, error)
	GetTotal(ctx context.Context, track string) (int, error)
}

type ExportHandler struct {
	store ExportLogStore
}

func NewExportHandler(store ExportLogStore) *ExportHandler {
	return &ExportHandler{store: store}
}

func toExportRecordResponse(rec model.ExportRecord) ExportRecordResponse {
	return ExportRecordResponse{
		ID:          rec.ID,
		Track:       rec.ReportTrack,
		Period:      rec.Period,
		TotalPeriod: rec.TotalPeriod,
		Count:       rec.Count,
		ExportedBy:  rec.ExportedBy,
		ExportedAt:  rec.ExportedAt.Format(time.RFC3339),
	}
}

func (h *ExportHandler) GetLatestExport(c *gin.Context) {
	track, ok := getQueryTrack(c)
	if !ok {
		return
	}

	rec, err := h.store.GetLatest(c.Request.Context(), track)
	if err != nil {
		slog.Error("error fetching latest export", "error", err, "track", track)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No exports yet"})
		return
	}

	c.JSON(http.StatusOK, toExportRecordResponse(*rec))
}

func (h *ExportHandler) GetExportHistory(c *gin.Context) {
	track, ok := getQueryTrack(c)
	if !ok {
		return
	}

	limit := getQueryLimit(c)
	offset := getQueryOffset(c)

	total, err := h.store.GetTotal(c.Request.Context(), track)
	if err != nil {
		slog.Error("error fetching export total", "error", err, "track", track)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	records, err := h.store.GetHistory(c.Request.Context(), track, limit, offset)
	if err != nil {
		slog.Error("error fetching export history", "error", err, "track", track)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	res := ExportHistoryResponse{Total: total, Limit: limit, Offset: offset}
	for _, rec := range records {
		res.Exports = append(res.Exports, toExportRecordResponse(rec))
	}

	c.JSON(http.StatusOK, res)
}
