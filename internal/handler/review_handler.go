package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"edubrief/internal/cluster"
	"edubrief/internal/model"
	"edubrief/internal/repository"
	"edubrief/internal/review"

	"github.com/gin-gonic/gin"
)

type ReviewHandler struct {
	store    review.Store
	clusters *cluster.Engine
}

func NewReviewHandler(store review.Store, clusters *cluster.Engine) *ReviewHandler {
	return &ReviewHandler{store: store, clusters: clusters}
}

func toCandidateResponse(c model.CandidateArticle) CandidateResponse {
	res := CandidateResponse{
		ID:             c.ID,
		Title:          c.Title,
		URL:            c.URL,
		Source:         c.Source,
		DisplaySource:  review.DisplaySource(c.Article),
		Summary:        c.Summary,
		BeijingRelated: c.BeijingRelated,
		Sentiment:      c.SentimentLabel,
		Bucket:         string(review.Categorize(c.Article)),
		Topic:          review.ClassifyTopic(c.Article),
		ExternalScore:  c.ExternalScore,
		Score:          c.Score,
		BonusKeywords:  c.BonusKeywords,
		ClusterID:      c.ClusterID,
		PublishedAt:    c.PublishedAt.Format(time.RFC3339),
		Status:         c.ManualStatus,
		DecidedBy:      c.DecidedBy,
	}
	if c.DecidedAt != nil {
		res.DecidedAt = c.DecidedAt.Format(time.RFC3339)
	}
	return res
}

func getQueryTrack(c *gin.Context) (string, bool) {
	track := c.DefaultQuery("track", model.TrackZongbao)
	if !review.ValidTrack(track) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid report track"})
		return "", false
	}
	return track, true
}

func (h *ReviewHandler) GetCandidates(c *gin.Context) {
	track, ok := getQueryTrack(c)
	if !ok {
		return
	}

	q := review.CandidateQuery{
		Region:       c.Query("region"),
		Sentiment:    c.Query("sentiment"),
		Track:        track,
		Cluster:      c.Query("cluster") == "true",
		ForceRefresh: c.Query("force_refresh") == "true",
		Limit:        getQueryLimit(c),
		Offset:       getQueryOffset(c),
	}

	page, err := h.store.FetchCandidates(c.Request.Context(), q)
	if err != nil {
		slog.Error("error fetching candidates", "error", err, "track", track)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	var clusterRes []ClusterResponse
	if q.Cluster && h.clusters != nil {
		for _, cl := range h.clusters.Clusters(track, page.Items, q.ForceRefresh) {
			members := make([]int64, 0, len(cl.Members))
			for _, m := range cl.Members {
				members = append(members, m.ID)
			}
			clusterRes = append(clusterRes, ClusterResponse{
				ID:      cl.ID,
				Members: members,
				Status:  cl.Status,
			})
		}
	}

	res := CandidatesResponse{
		Clusters: clusterRes,
		Total:    page.Total,
		Limit:    q.Limit,
		Offset:   q.Offset,
	}
	for _, item := range page.Items {
		res.Candidates = append(res.Candidates, toCandidateResponse(item))
	}

	c.JSON(http.StatusOK, res)
}

func (h *ReviewHandler) GetReviewItems(c *gin.Context) {
	track, ok := getQueryTrack(c)
	if !ok {
		return
	}

	status := c.DefaultQuery("status", model.DecisionSelected)
	if !review.ValidStatus(status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
		return
	}

	items, err := h.store.FetchReviewItems(c.Request.Context(), track, status, getQueryInt("limit", 0, c))
	if err != nil {
		slog.Error("error fetching review items", "error", err, "track", track, "status", status)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	res := ReviewItemsResponse{Track: track}
	for _, item := range items {
		res.Items = append(res.Items, toCandidateResponse(item))
	}

	c.JSON(http.StatusOK, res)
}

func (h *ReviewHandler) GetDiscarded(c *gin.Context) {
	track, ok := getQueryTrack(c)
	if !ok {
		return
	}

	limit := getQueryLimit(c)
	offset := getQueryOffset(c)

	items, total, err := h.store.FetchDiscarded(c.Request.Context(), track, limit, offset)
	if err != nil {
		slog.Error("error fetching discarded items", "error", err, "track", track)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	res := DiscardedResponse{Total: total, Limit: limit, Offset: offset}
	for _, item := range items {
		res.Items = append(res.Items, toCandidateResponse(item))
	}

	c.JSON(http.StatusOK, res)
}

func (h *ReviewHandler) PostEdits(c *gin.Context) {
	var req EditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if !review.ValidTrack(req.Track) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid report track"})
		return
	}
	if len(req.Edits) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No edits given"})
		return
	}

	edits := make(map[int64]review.Edit, len(req.Edits))
	for id, e := range req.Edits {
		edits[id] = review.Edit{Summary: e.Summary, LLMSource: e.LLMSource}
	}

	if err := h.store.SaveEdits(c.Request.Context(), edits, req.Actor, req.Track); err != nil {
		if errors.Is(err, repository.ErrArticleMissing) {
			c.JSON(http.StatusConflict, gin.H{"error": "Article no longer present"})
			return
		}
		slog.Error("error saving edits", "error", err, "track", req.Track)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": len(edits)})
}

func (h *ReviewHandler) PostDecide(c *gin.Context) {
	var req DecideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	d := review.Decision{
		Track:     req.Track,
		Actor:     req.Actor,
		Selected:  req.Selected,
		Backup:    req.Backup,
		Discarded: req.Discarded,
		Pending:   req.Pending,
	}
	if err := d.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	counts, err := h.store.Decide(c.Request.Context(), d)
	if err != nil {
		if errors.Is(err, repository.ErrArticleMissing) {
			c.JSON(http.StatusConflict, gin.H{"error": "Article no longer present"})
			return
		}
		slog.Error("error applying decision", "error", err, "track", req.Track)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if h.clusters != nil {
		h.clusters.Invalidate(req.Track)
	}

	c.JSON(http.StatusOK, DecideResponse{
		Selected:  counts.Selected,
		Backup:    counts.Backup,
		Discarded: counts.Discarded,
	})
}

func (h *ReviewHandler) PostOrder(c *gin.Context) {
	var req OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if !review.ValidTrack(req.Track) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid report track"})
		return
	}

	err := h.store.SaveOrder(c.Request.Context(), req.Track, req.SelectedOrder, req.BackupOrder, req.Actor)
	if err != nil {
		if errors.Is(err, review.ErrOrderMismatch) {
			c.JSON(http.StatusConflict, gin.H{"error": "Order does not match current items"})
			return
		}
		slog.Error("error saving order", "error", err, "track", req.Track)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"saved": true})
}

func (h *ReviewHandler) PostRestore(c *gin.Context) {
	var req RestoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.Target == "" {
		req.Target = model.DecisionPending
	}

	err := h.store.Restore(c.Request.Context(), req.ID, req.Target, req.Actor, req.Track)
	if err != nil {
		if errors.Is(err, review.ErrInvalidStatus) || errors.Is(err, review.ErrInvalidTrack) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if errors.Is(err, repository.ErrArticleMissing) {
			c.JSON(http.StatusConflict, gin.H{"error": "Article no longer present"})
			return
		}
		slog.Error("error restoring article", "error", err, "article_id", req.ID, "track", req.Track)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"restored": req.ID})
}

func (h *ReviewHandler) PostExport(c *gin.Context) {
	var req ExportRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if !review.ValidTrack(req.Track) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid report track"})
		return
	}

	result, err := h.store.Export(c.Request.Context(), review.ExportRequest{
		ReportTag:    req.ReportTag,
		Template:     req.Template,
		Period:       req.Period,
		TotalPeriod:  req.TotalPeriod,
		DryRun:       req.DryRun,
		MarkExported: req.MarkExported,
		Track:        req.Track,
		View:         req.View,
		Actor:        req.Actor,
	})
	if err != nil {
		slog.Error("error exporting digest", "error", err, "track", req.Track)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, ExportResponse{
		Content:     result.Content,
		Count:       result.Count,
		Period:      result.Period,
		TotalPeriod: result.TotalPeriod,
	})
}

func (h *ReviewHandler) PostArchive(c *gin.Context) {
	var req ArchiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if !review.ValidTrack(req.Track) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid report track"})
		return
	}
	if len(req.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No ids given"})
		return
	}

	count, err := h.store.Archive(c.Request.Context(), req.IDs, req.Actor, req.Track)
	if err != nil {
		slog.Error("error archiving articles", "error", err, "track", req.Track)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"archived": count})
}

func (h *ReviewHandler) GetStats(c *gin.Context) {
	track, ok := getQueryTrack(c)
	if !ok {
		return
	}

	stats, err := h.store.FetchStats(c.Request.Context(), track)
	if err != nil {
		slog.Error("error fetching stats", "error", err, "track", track)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, StatsResponse{
		Track:    track,
		Pending:  stats.Pending,
		Selected: stats.Selected,
		Backup:   stats.Backup,
		Exported: stats.Exported,
	})
}

func (h *ReviewHandler) GetHealth(c *gin.Context) {
	_, err := h.store.FetchStats(c.Request.Context(), model.TrackZongbao)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": "disconnected",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": "connected",
	})
}

func getQueryInt(name string, defaultValue int, c *gin.Context) int {
	paramLimit := c.Query(name)

	if paramLimit == "" {
		return defaultValue
	}

	parsedValue, err := strconv.Atoi(paramLimit)
	if err != nil {
		slog.Warn("invalid query parameter, using default", "param", name, "value", paramLimit, "error", err)
		return defaultValue
	}

	return parsedValue
}

func getQueryLimit(c *gin.Context) int {
	const (
		defaultLimit = 50
		maxLimit     = 200
	)

	limit := getQueryInt("limit", defaultLimit, c)
	if limit < 1 {
		slog.Warn("invalid query parameter, using default", "param", "limit", "value", limit, "default", defaultLimit)
		return defaultLimit
	}

	if limit > maxLimit {
		slog.Warn("query parameter exceeds max, clamping", "param", "limit", "value", limit, "max", maxLimit)
		return maxLimit
	}

	return limit
}

func getQueryOffset(c *gin.Context) int {
	offset := getQueryInt("offset", 0, c)
	if offset < 0 {
		slog.Warn("invalid query parameter, using default", "param", "offset", "value", offset, "default", 0)
		return 0
	}
	return offset
}
