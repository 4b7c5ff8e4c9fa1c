package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"edubrief/internal/repository"

	"github.com/gin-gonic/gin"
)

type SearchStore interface {
	Search(ctx context.Context, q repository.SearchQuery) (repository.SearchPage, error)
}

type SearchHandler struct {
	store SearchStore
}

func NewSearchHandler(store SearchStore) *SearchHandler {
	return &SearchHandler{store: store}
}

func (h *SearchHandler) Search(c *gin.Context) {
	q := repository.SearchQuery{
		Text:      c.Query("q"),
		Source:    c.Query("source"),
		Sentiment: c.Query("sentiment"),
		Status:    c.Query("status"),
		From:      c.Query("from"),
		To:        c.Query("to"),
		Page:      getQueryInt("page", 1, c),
		PerPage:   getQueryInt("per_page", 20, c),
	}

	page, err := h.store.Search(c.Request.Context(), q)
	if err != nil {
		slog.Error("error searching articles", "error", err, "query", q.Text)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	res := SearchResponse{
		Total:   page.Total,
		Page:    page.Page,
		Pages:   page.Pages,
		PerPage: page.PerPage,
	}
	for _, a := range page.Items {
		res.Articles = append(res.Articles, SearchArticleResponse{
			ID:          a.ID,
			Title:       a.Title,
			URL:         a.URL,
			Source:      a.Source,
			Summary:     a.Summary,
			Sentiment:   a.SentimentLabel,
			Status:      a.Status,
			PublishedAt: a.PublishedAt.Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, res)
}
